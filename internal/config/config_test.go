package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
respondent_id: device-1
api:
  base_url: https://forms.example.com
  timeout: 5s
log:
  level: debug
  format: json
drafts:
  backend: sqlite
  path: /tmp/drafts.db
  async_buffer: 8
runner:
  page_mode: true
`)
	t.Setenv("FORMFLOW_API_BASE_URL", "https://override.example.com")
	t.Setenv("FORMFLOW_DRAFTS_MAX_AGE", "48h")
	t.Setenv("FORMFLOW_RUNNER_OUTPUT", "pretty")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Default()
	want.RespondentID = "device-1"
	want.API.BaseURL = "https://override.example.com"
	want.API.Timeout = 5 * time.Second
	want.Log = Log{Level: "debug", Format: "json"}
	want.Drafts.Backend = DraftsSQLite
	want.Drafts.Path = "/tmp/drafts.db"
	want.Drafts.AsyncBuffer = 8
	want.Drafts.MaxAge = 48 * time.Hour
	want.Runner.PageMode = true
	want.Runner.Output = "pretty"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := Load(writeFile(t, "api: [")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(writeFile(t, "drafts:\n  backend: etcd\n")); err == nil {
		t.Fatalf("expected unknown backend error")
	}

	t.Setenv("FORMFLOW_API_TIMEOUT", "soon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected environment error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "xml"
	cfg.Drafts.Backend = DraftsRedis
	cfg.Drafts.RedisAddr = ""
	cfg.API.Timeout = -time.Second
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, fragment := range []string{"log.format", "redis_addr", "api.timeout"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestOpenDrafts(t *testing.T) {
	ctx := context.Background()

	for _, cfg := range []Drafts{
		{Backend: DraftsMemory},
		{Backend: DraftsSQLite, Path: filepath.Join(t.TempDir(), "drafts.db"), AsyncBuffer: 4},
	} {
		store, closeFn, err := OpenDrafts(cfg, "device-1", nil)
		if err != nil {
			t.Fatalf("%s: open: %v", cfg.Backend, err)
		}
		store.Save(ctx, "f-1", model.Answers{"a": "x"}, 2)
		record, ok := store.Restore(ctx, "f-1")
		if !ok || record.CurrentQuestionIndex != 2 {
			t.Fatalf("%s: unexpected restore %+v %v", cfg.Backend, record, ok)
		}
		if err := closeFn(); err != nil {
			t.Fatalf("%s: close: %v", cfg.Backend, err)
		}
	}

	if _, _, err := OpenDrafts(Drafts{Backend: "etcd"}, "", nil); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
