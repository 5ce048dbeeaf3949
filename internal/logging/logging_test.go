package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", logger.GetLevel())
	}
	logger.WithField("form_id", "f1").Debug("hello")
	if !strings.Contains(buf.String(), `"form_id":"f1"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, "loud", ""); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(nil, "", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestOr(t *testing.T) {
	if Or(nil) == nil {
		t.Fatalf("expected discard logger")
	}
	logger := logrus.New()
	if Or(logger) != logger {
		t.Fatalf("expected logger to pass through")
	}
}
