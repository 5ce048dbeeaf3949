// Package expr adds rule expressions on top of field conditional logic. A
// rule is a small boolean expression over answers, keyed by the id of the
// field it controls:
//
//	plan == "pro" && (seats != 1 || !trial)
//	tags contains "beta"
//	address.city == "Rome"
//
// Identifiers name fields; dotted paths reach into structured answers such
// as matrix rows or date ranges. Literals are strings, numbers, true, false
// and null; a bare word on the right of an operator is read as a string.
package expr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Rule is a compiled expression.
type Rule struct {
	source string
	root   node
}

// Compile parses rule. An empty rule always holds.
func Compile(rule string) (*Rule, error) {
	trimmed := strings.TrimSpace(rule)
	compiled := &Rule{source: trimmed}
	if trimmed == "" {
		return compiled, nil
	}
	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	root, err := parse(tokens)
	if err != nil {
		return nil, err
	}
	compiled.root = root
	return compiled, nil
}

// Holds evaluates the rule against answers.
func (r *Rule) Holds(answers model.Answers) bool {
	if r == nil || r.root == nil {
		return true
	}
	return r.root.eval(answers)
}

func (r *Rule) String() string {
	return r.source
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFallback sets the evaluator consulted for fields without a rule.
func WithFallback(eval visibility.Evaluator) Option {
	return func(e *Evaluator) {
		e.fallback = visibility.Or(eval)
	}
}

// Evaluator is a visibility.Evaluator driven by per-field rules. A rule
// replaces the field's conditional logic; fields without one use the
// fallback, which defaults to conditional logic.
type Evaluator struct {
	rules    map[string]*Rule
	fallback visibility.Evaluator
}

var _ visibility.Evaluator = (*Evaluator)(nil)

// New compiles rules keyed by field id. Every malformed rule is reported.
func New(rules map[string]string, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		rules:    make(map[string]*Rule, len(rules)),
		fallback: visibility.Default(),
	}

	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		compiled, err := Compile(rules[id])
		if err != nil {
			errs = append(errs, fmt.Errorf("rule for %q: %w", id, err))
			continue
		}
		e.rules[strings.TrimSpace(id)] = compiled
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// IsVisible implements visibility.Evaluator.
func (e *Evaluator) IsVisible(field model.Field, answers model.Answers) bool {
	if rule, ok := e.rules[field.ID]; ok {
		return rule.Holds(answers)
	}
	return e.fallback.IsVisible(field, answers)
}

// Rule returns the compiled rule for fieldID.
func (e *Evaluator) Rule(fieldID string) (*Rule, bool) {
	rule, ok := e.rules[fieldID]
	return rule, ok
}

// ParseRules reads a YAML (or JSON) mapping of field id to rule.
func ParseRules(data []byte) (map[string]string, error) {
	rules := make(map[string]string)
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("visibility/expr: rules: %w", err)
	}
	return rules, nil
}
