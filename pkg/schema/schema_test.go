package schema

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func floatPtr(v float64) *float64 { return &v }

func expectedContact() model.FormDefinition {
	return model.FormDefinition{
		Slug:     "contact",
		Title:    "Contact us",
		Settings: model.Settings{RequireVerification: true, Identity: model.IdentityOptional},
		Fields: []model.Field{
			{ID: "field-0", Type: model.FieldTypeSection, Label: "About you"},
			{ID: "name", Type: model.FieldTypeText, Label: "Name", Required: true},
			{
				ID:    "topic",
				Type:  model.FieldTypeMultipleChoice,
				Label: "Topic",
				Options: []model.Option{
					{Value: "sales", Label: "sales"},
					{Value: "support", Label: "Support"},
				},
			},
			{
				ID:    "ticket",
				Type:  model.FieldTypeNumber,
				Label: "Ticket",
				Rules: model.ValidationRules{Min: floatPtr(1)},
				Logic: &model.ConditionalLogic{
					Enabled:        true,
					TriggerFieldID: "topic",
					Condition:      model.ConditionEquals,
					Value:          "support",
				},
			},
		},
	}
}

func TestParse_JSONAndYAMLAgree(t *testing.T) {
	jsonData, err := os.ReadFile("testdata/contact.json")
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	yamlData, err := os.ReadFile("testdata/contact.yaml")
	if err != nil {
		t.Fatalf("read yaml: %v", err)
	}

	fromJSON, err := Parse(jsonData, "contact.json")
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	fromYAML, err := Parse(yamlData, "contact.yaml")
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}

	want := expectedContact()
	want.ID = "42"
	want.ThankYou = &model.Screen{Title: "Thanks {{ answers.name }}"}
	if diff := cmp.Diff(want, fromJSON); diff != "" {
		t.Fatalf("json definition mismatch (-want +got):\n%s", diff)
	}

	want = expectedContact()
	want.ID = "contact"
	if diff := cmp.Diff(want, fromYAML); diff != "" {
		t.Fatalf("yaml definition mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ShapeIssues(t *testing.T) {
	raw := []byte(`{
  "slug": "broken",
  "fields": [
    {"id": "a", "type": 7},
    {"id": "b", "validationRules": {"minLength": "five"}}
  ]
}`)
	_, err := Parse(raw, "broken.json")

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	paths := make([]string, 0, len(loadErr.Issues))
	for _, issue := range loadErr.Issues {
		paths = append(paths, issue.Path)
	}
	want := []string{"/fields/0/type", "/fields/1/validationRules/minLength"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("issue paths mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RejectsMissingFieldsAndGarbage(t *testing.T) {
	cases := map[string]string{
		"missing fields": `{"slug": "x"}`,
		"empty":          "   ",
		"garbage":        "{ not: [valid",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw), name)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected LoadError, got %v", err)
			}
			if !strings.Contains(loadErr.Error(), name) {
				t.Fatalf("error should carry the location: %v", loadErr)
			}
		})
	}
}

func TestParse_DuplicateIDs(t *testing.T) {
	raw := []byte(`{"fields": [{"type": "text"}, {"id": "field-0", "type": "text"}]}`)
	_, err := Parse(raw, "dup.json")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || len(loadErr.Issues) != 1 || loadErr.Issues[0].Path != "/fields/1/id" {
		t.Fatalf("expected duplicate id issue, got %v", err)
	}
}

func TestLoader_Sources(t *testing.T) {
	ctx := context.Background()
	data, err := os.ReadFile("testdata/contact.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contact.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	loader := NewLoader(
		WithFS(fstest.MapFS{"forms/contact.json": {Data: data}}),
		WithHTTPClient(server.Client()),
	)

	urlSource, err := SourceFromURL(server.URL + "/contact.json")
	if err != nil {
		t.Fatalf("SourceFromURL: %v", err)
	}
	sources := []Source{
		SourceFromFile("testdata/contact.json"),
		SourceFromFS("forms/contact.json"),
		urlSource,
	}
	for _, src := range sources {
		def, err := loader.Load(ctx, src)
		if err != nil {
			t.Fatalf("Load(%s): %v", src.Kind(), err)
		}
		if def.Slug != "contact" || len(def.Fields) != 4 {
			t.Fatalf("Load(%s) returned %#v", src.Kind(), def)
		}
	}

	missing, _ := SourceFromURL(server.URL + "/missing.json")
	if _, err := loader.Load(ctx, missing); err == nil {
		t.Fatalf("expected error for missing document")
	}
	if _, err := NewLoader().Load(ctx, urlSource); err == nil {
		t.Fatalf("expected error when http is disabled")
	}
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("https://example.com/form.json")
	if err != nil || src.Kind() != SourceKindURL {
		t.Fatalf("ParseSource url = %v, %v", src, err)
	}
	src, err = ParseSource("./forms/a.yaml")
	if err != nil || src.Kind() != SourceKindFile || src.Location() != "forms/a.yaml" {
		t.Fatalf("ParseSource file = %v, %v", src, err)
	}
	if _, err := SourceFromURL("ftp://example.com/x"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

func TestLint(t *testing.T) {
	def := model.FormDefinition{
		Fields: []model.Field{
			{ID: "field-0", Type: model.FieldTypeText},
			{ID: "pick", Type: model.FieldTypeDropdown},
			{ID: "later", Type: model.FieldTypeText, Logic: &model.ConditionalLogic{Enabled: true, TriggerFieldID: "tail", Condition: model.ConditionEquals}},
			{ID: "ghost", Type: model.FieldTypeText, Logic: &model.ConditionalLogic{Enabled: true, TriggerFieldID: "nope", Condition: "greater_than"}},
			{ID: "tail", Type: model.FieldTypeText},
		},
	}

	issues := Lint(def)
	paths := make([]string, 0, len(issues))
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}
	want := []string{
		"/fields/0/id",
		"/fields/1/options",
		"/fields/2/conditionalLogic/triggerFieldId",
		"/fields/3/conditionalLogic/triggerFieldId",
		"/fields/3/conditionalLogic/condition",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("lint paths mismatch (-want +got):\n%s", diff)
	}
}
