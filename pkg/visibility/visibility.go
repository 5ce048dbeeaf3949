// Package visibility decides whether a field is shown given the answers
// collected so far. Evaluation is pure and cheap so callers re-run it after
// every answer change: a later answer can hide or reveal a field that was
// already evaluated.
package visibility

import "github.com/goliatone/go-formflow/pkg/model"

// Evaluator determines whether a field should be visible for the current
// answers.
type Evaluator interface {
	IsVisible(field model.Field, answers model.Answers) bool
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(field model.Field, answers model.Answers) bool

// IsVisible delegates to the underlying function.
func (fn EvaluatorFunc) IsVisible(field model.Field, answers model.Answers) bool {
	return fn(field, answers)
}

// Conditional is the default Evaluator backed by the field's conditional
// logic.
type Conditional struct{}

// IsVisible implements Evaluator.
func (Conditional) IsVisible(field model.Field, answers model.Answers) bool {
	return IsVisible(field, answers)
}

// Default returns the evaluator used when callers do not supply one.
func Default() Evaluator {
	return Conditional{}
}

// Or returns eval, falling back to Default when eval is nil.
func Or(eval Evaluator) Evaluator {
	if eval == nil {
		return Default()
	}
	return eval
}
