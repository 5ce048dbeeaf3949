package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveType(t *testing.T) {
	cases := map[string]FieldType{
		"text":               FieldTypeText,
		"  Multiple-Choice ": FieldTypeMultipleChoice,
		"yes/no":             FieldTypeDefault,
		"yesno":              FieldTypeYesNo,
		"YES_NO":             FieldTypeYesNo,
		"color-selector":     FieldTypeColorSelector,
		"date range":         FieldTypeDateRange,
		"signature":          FieldTypeDefault,
		"":                   FieldTypeDefault,
	}
	for tag, want := range cases {
		if got := ResolveType(tag); got != want {
			t.Errorf("ResolveType(%q) = %q, want %q", tag, got, want)
		}
	}
}

func TestRegistry_RegisterAlias(t *testing.T) {
	reg := NewRegistry()
	reg.Register("signature", FieldTypeTextarea)
	reg.Register("ignored", FieldType("not-a-type"))

	if got := reg.Resolve("Signature"); got != FieldTypeTextarea {
		t.Fatalf("expected registered alias to resolve, got %q", got)
	}
	if got := reg.Resolve("ignored"); got != FieldTypeDefault {
		t.Fatalf("expected unknown target to be rejected, got %q", got)
	}
}

func TestNormalizeField_SynthesisesPositionalID(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want string
	}{
		{name: "missing", raw: nil, want: "field-3"},
		{name: "blank", raw: "   ", want: "field-3"},
		{name: "trimmed", raw: " email ", want: "email"},
		{name: "numeric", raw: float64(12), want: "12"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			field := NormalizeField(RawField{ID: tc.raw, Type: "text"}, 3)
			if field.ID != tc.want {
				t.Fatalf("id = %q, want %q", field.ID, tc.want)
			}
		})
	}
}

func TestNormalizeField_OptionsAndSanitising(t *testing.T) {
	raw := RawField{
		ID:    "colour",
		Type:  "dropdown",
		Label: "<b>Pick</b> one &amp; only one",
		Options: []any{
			"red",
			map[string]any{"value": "gr", "label": "Green"},
			map[string]any{"label": "Blue"},
			float64(3),
			nil,
		},
		ConditionalLogic: &ConditionalLogic{Enabled: true, TriggerFieldID: " f1 ", Condition: " EQUALS "},
	}

	field := NormalizeField(raw, 0)

	want := []Option{
		{Value: "red", Label: "red"},
		{Value: "gr", Label: "Green"},
		{Value: "Blue", Label: "Blue"},
		{Value: float64(3), Label: "3"},
	}
	if diff := cmp.Diff(want, field.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if field.Label != "Pick one & only one" {
		t.Fatalf("unexpected label %q", field.Label)
	}
	if field.Logic == nil || field.Logic.TriggerFieldID != "f1" || field.Logic.Condition != ConditionEquals {
		t.Fatalf("unexpected logic %+v", field.Logic)
	}
}

func TestNormalizeDefinition(t *testing.T) {
	raw := RawDefinition{
		Slug: "onboarding",
		Fields: []RawField{
			{Type: "section", Label: "About you", Required: true},
			{ID: "name", Type: "text"},
			{Type: "mystery"},
		},
		Settings: RawSettings{PasswordProtected: true, CaptchaEnabled: true, RespondentIdentity: "Required"},
	}

	def := NormalizeDefinition(raw)

	if def.ID != "onboarding" {
		t.Fatalf("expected id to default to slug, got %q", def.ID)
	}
	ids := []string{def.Fields[0].ID, def.Fields[1].ID, def.Fields[2].ID}
	if diff := cmp.Diff([]string{"field-0", "name", "field-2"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if def.Fields[0].Required {
		t.Fatalf("section fields are never required")
	}
	if def.Fields[2].Type != FieldTypeDefault {
		t.Fatalf("unknown tag should fall back to default, got %q", def.Fields[2].Type)
	}
	want := Settings{PasswordProtected: true, RequireVerification: true, Identity: IdentityRequired}
	if diff := cmp.Diff(want, def.Settings); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		value any
		want  bool
	}{
		{nil, true},
		{"", true},
		{[]string{}, true},
		{[]any{}, true},
		{" ", false},
		{float64(0), false},
		{false, false},
		{[]string{"a"}, false},
		{DateRange{}, false},
		{map[string]any{}, false},
		{ColorValue{IsCustom: true}, false},
	}
	for _, tc := range cases {
		if got := IsEmpty(tc.value); got != tc.want {
			t.Errorf("IsEmpty(%#v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestStringOf(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(3), "3"},
		{2.5, "2.5"},
		{true, "true"},
		{[]string{"a", "b"}, "a,b"},
		{[]any{"a", float64(1)}, "a,1"},
		{DateRange{Start: "2024-01-01", End: "2024-01-02"}, `{"start":"2024-01-01","end":"2024-01-02"}`},
	}
	for _, tc := range cases {
		if got := StringOf(tc.value); got != tc.want {
			t.Errorf("StringOf(%#v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestNormalizeAnswers_RestoresTypedValues(t *testing.T) {
	form := FormDefinition{Fields: []Field{
		{ID: "when", Type: FieldTypeDateRange},
		{ID: "doc", Type: FieldTypeFileUpload},
		{ID: "tags", Type: FieldTypeCheckbox},
		{ID: "colour", Type: FieldTypeColorSelector},
		{ID: "intro", Type: FieldTypeSection},
	}}
	answers := Answers{
		"when":   map[string]any{"start": "2024-01-01", "end": "2024-02-01"},
		"doc":    map[string]any{"url": "https://cdn/x.pdf", "name": "x.pdf", "size": float64(10), "type": "application/pdf"},
		"tags":   []any{"a", "b"},
		"colour": map[string]any{"pantoneCode": "186 C", "isCustom": true},
		"intro":  "ignored",
		"stale":  "dropped",
	}

	got := NormalizeAnswers(form, answers)

	want := Answers{
		"when":   DateRange{Start: "2024-01-01", End: "2024-02-01"},
		"doc":    FileValue{URL: "https://cdn/x.pdf", Name: "x.pdf", Size: 10, Type: "application/pdf"},
		"tags":   []string{"a", "b"},
		"colour": ColorValue{PantoneCode: "186 C", IsCustom: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeValue_CollapsesBlankAnswers(t *testing.T) {
	cases := []struct {
		field Field
		value any
		want  any
	}{
		{Field{Type: FieldTypeDateRange}, DateRange{}, nil},
		{Field{Type: FieldTypeDateRange}, map[string]any{"start": "", "end": ""}, nil},
		{Field{Type: FieldTypeFileUpload}, FileValue{Size: 3}, nil},
		{Field{Type: FieldTypePayment}, map[string]any{"amount": float64(5)}, nil},
		{Field{Type: FieldTypeColorSelector}, ColorValue{IsCustom: true}, nil},
		{Field{Type: FieldTypeMatrix}, map[string]any{}, nil},
		{Field{Type: FieldTypeCheckbox}, []any{"", "a", "  "}, []string{"a"}},
		{Field{Type: FieldTypeCheckbox}, []string{""}, []string{}},
		{Field{Type: FieldTypeText}, " ", " "},
	}
	for _, tc := range cases {
		got := NormalizeValue(tc.field, tc.value)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("NormalizeValue(%s, %#v) mismatch (-want +got):\n%s", tc.field.Type, tc.value, diff)
		}
	}
}
