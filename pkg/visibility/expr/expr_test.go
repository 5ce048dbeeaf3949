package expr

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func TestRuleHolds(t *testing.T) {
	t.Parallel()

	answers := model.Answers{
		"plan":     "pro",
		"seats":    float64(3),
		"trial":    false,
		"consent":  "true",
		"tags":     []string{"beta", "ops"},
		"bio":      "Loves Go and tea",
		"matrix":   map[string]any{"speed": "good"},
		"dates":    model.DateRange{Start: "2024-01-01", End: "2024-01-05"},
		"cta.text": "verbatim",
	}

	cases := []struct {
		rule string
		want bool
	}{
		{"", true},
		{`plan == "pro"`, true},
		{`plan == 'pro'`, true},
		{`plan == pro`, true},
		{`plan != "pro"`, false},
		{`plan == "Pro"`, false},
		{"seats == 3", true},
		{"seats != 3.0", false},
		{"trial == false", true},
		{"consent == true", true},
		{"!trial", true},
		{"not trial and seats == 3", true},
		{"trial || plan == free", false},
		{`plan == "pro" && (seats == 1 || !trial)`, true},
		{`tags contains "beta"`, true},
		{`tags contains "bet"`, false},
		{`bio contains "go"`, true},
		{`matrix.speed == good`, true},
		{`matrix.quality == null`, true},
		{`dates.end == "2024-01-05"`, true},
		{`cta.text == verbatim`, true},
		{"missing", false},
		{"missing == null", true},
		{"plan", true},
	}

	for _, tc := range cases {
		rule, err := Compile(tc.rule)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.rule, err)
		}
		if got := rule.Holds(answers); got != tc.want {
			t.Errorf("%q: got %v, want %v", tc.rule, got, tc.want)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	for _, rule := range []string{
		"plan = pro",
		"plan == ",
		"(plan == pro",
		`plan == "pro`,
		"plan == pro extra",
		"&& plan",
		"== 3",
		"a & b",
	} {
		if _, err := Compile(rule); err == nil {
			t.Errorf("Compile(%q): expected error", rule)
		}
	}
}

func TestEvaluator(t *testing.T) {
	t.Parallel()

	eval, err := New(map[string]string{
		"discount": `plan == "pro"`,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	discount := model.Field{ID: "discount", Type: model.FieldTypeText}
	conditional := model.Field{
		ID:   "reason",
		Type: model.FieldTypeText,
		Logic: &model.ConditionalLogic{
			Enabled:        true,
			TriggerFieldID: "plan",
			Condition:      model.ConditionEquals,
			Value:          "free",
		},
	}

	got := map[string]bool{
		"pro discount":    eval.IsVisible(discount, model.Answers{"plan": "pro"}),
		"free discount":   eval.IsVisible(discount, model.Answers{"plan": "free"}),
		"free reason":     eval.IsVisible(conditional, model.Answers{"plan": "free"}),
		"pro reason":      eval.IsVisible(conditional, model.Answers{"plan": "pro"}),
		"plain unchanged": eval.IsVisible(model.Field{ID: "other"}, nil),
	}
	want := map[string]bool{
		"pro discount":    true,
		"free discount":   false,
		"free reason":     true,
		"pro reason":      false,
		"plain unchanged": true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("visibility mismatch (-want +got):\n%s", diff)
	}

	if rule, ok := eval.Rule("discount"); !ok || rule.String() != `plan == "pro"` {
		t.Fatalf("unexpected rule lookup: %v %v", rule, ok)
	}
}

func TestNewReportsEveryBadRule(t *testing.T) {
	t.Parallel()

	_, err := New(map[string]string{"a": "x ==", "b": "(y", "c": "ok"})
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	for _, id := range []string{`"a"`, `"b"`} {
		if !strings.Contains(msg, id) {
			t.Errorf("error %q does not mention %s", msg, id)
		}
	}
	if strings.Contains(msg, `"c"`) {
		t.Errorf("error %q mentions a valid rule", msg)
	}
}

func TestParseRules(t *testing.T) {
	t.Parallel()

	rules, err := ParseRules([]byte("discount: plan == \"pro\"\nreason: '!consent'\n"))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	want := map[string]string{"discount": `plan == "pro"`, "reason": "!consent"}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseRules([]byte("- a\n- b\n")); err == nil {
		t.Fatalf("expected error for a list")
	}
}
