package tui

import (
	"time"

	"github.com/goliatone/go-formflow/pkg/screens"
)

// Theme captures optional prefixes the runner adds to the messages it prints.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// DefaultTheme is applied when no theme is configured.
var DefaultTheme = Theme{InfoPrefix: "", ErrorPrefix: "! "}

// DefaultBackKeyword is typed into a text prompt to return to the previous
// question.
const DefaultBackKeyword = ":back"

// Option configures a Runner.
type Option func(*Runner)

// WithPromptDriver overrides the prompt driver used by the runner.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Runner) {
		r.theme = theme
	}
}

// WithScreens sets the renderer used for welcome and thank-you screens.
func WithScreens(renderer *screens.Renderer) Option {
	return func(r *Runner) {
		if renderer != nil {
			r.screens = renderer
		}
	}
}

// WithAutoAdvanceDelay overrides the pause before an auto-advancing answer
// moves on. Zero advances immediately.
func WithAutoAdvanceDelay(delay time.Duration) Option {
	return func(r *Runner) {
		if delay >= 0 {
			r.delay = delay
		}
	}
}

// WithPageMode asks a whole page before validating it, instead of one
// question at a time.
func WithPageMode(enabled bool) Option {
	return func(r *Runner) {
		r.pageMode = enabled
	}
}

// WithFileOpener replaces how upload paths are opened. A nil opener
// disables uploads.
func WithFileOpener(open FileOpener) Option {
	return func(r *Runner) {
		r.open = open
	}
}

// WithVerifier supplies verification tokens before submitting forms that
// require them. Without one the respondent is asked for a code.
func WithVerifier(verify Verifier) Option {
	return func(r *Runner) {
		r.verify = verify
	}
}

// WithBackKeyword changes the text that navigates back from text prompts.
func WithBackKeyword(keyword string) Option {
	return func(r *Runner) {
		if keyword != "" {
			r.backKeyword = keyword
		}
	}
}
