package screens

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func TestRender_RecallsAnswers(t *testing.T) {
	renderer := New()
	form := model.FormDefinition{ID: "f", Title: "Onboarding"}
	answers := model.Answers{"name": "O'Brien", "field-3": []string{"a", "b"}}
	screen := &model.Screen{
		Title:      "Thanks {{ answers.name }}!",
		Body:       "You picked {{ recall(\"field-3\") }} in {{ form.title }}.",
		ButtonText: "<b>Done</b>",
	}

	got, err := renderer.Render(screen, form, answers)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := Rendered{
		Title:      "Thanks O'Brien!",
		Body:       "You picked a,b in Onboarding.",
		ButtonText: "Done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rendered mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_StripsMarkup(t *testing.T) {
	renderer := New()
	screen := &model.Screen{Title: "<script>alert(1)</script>Welcome", Body: "Hi {{ answers.x }}"}

	got, err := renderer.Render(screen, model.FormDefinition{}, model.Answers{"x": "<i>there</i>"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got.Title != "Welcome" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Body != "Hi <i>there</i>" {
		t.Fatalf("body = %q", got.Body)
	}
}

func TestRender_BrokenTemplateFallsBack(t *testing.T) {
	renderer := New()
	screen := &model.Screen{Title: "Hello {{ answers.name", Body: "plain"}

	got, err := renderer.Render(screen, model.FormDefinition{}, nil)
	if err == nil {
		t.Fatalf("expected template error")
	}
	if got.Title != "Hello {{ answers.name" || got.Body != "plain" {
		t.Fatalf("unexpected fallback %#v", got)
	}
}

func TestThankYou_Default(t *testing.T) {
	got, err := New().ThankYou(model.FormDefinition{}, nil)
	if err != nil {
		t.Fatalf("ThankYou: %v", err)
	}
	if got.Title != DefaultThankYou.Title || got.Body != DefaultThankYou.Body {
		t.Fatalf("unexpected default %#v", got)
	}
}

func TestRender_CannotReadLocalFiles(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(secret, []byte("top-secret-value"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	renderer := New()
	for _, source := range []string{
		`{% include "` + secret + `" %}`,
		`{% ssi "` + secret + `" %}`,
		`{% import "` + secret + `" x %}`,
		`{% extends "` + secret + `" %}`,
	} {
		got, err := renderer.Render(&model.Screen{Title: source}, model.FormDefinition{}, nil)
		if err == nil {
			t.Errorf("Render(%q) should fail", source)
		}
		if strings.Contains(got.Title, "top-secret-value") {
			t.Errorf("Render(%q) leaked file contents: %q", source, got.Title)
		}
	}
}
