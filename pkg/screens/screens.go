// Package screens renders the welcome and thank-you text of a form. Titles and
// bodies are pongo2 templates that may recall earlier answers, for example
// "Thanks {{ answers.name }}" or {{ recall("field-3") }} for ids that are not
// valid identifiers.
package screens

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formflow/pkg/model"
)

// DefaultThankYou is shown after submitting a form without its own
// thank-you screen.
var DefaultThankYou = model.Screen{
	Title: "Thank you!",
	Body:  "Your response has been recorded.",
}

// Rendered is a screen with its templates executed and the output reduced to
// plain text.
type Rendered struct {
	Title      string
	Body       string
	ButtonText string
}

// Renderer executes screen templates. It caches parsed templates and is safe
// for concurrent use.
type Renderer struct {
	set *pongo2.TemplateSet

	mu        sync.RWMutex
	templates map[string]*pongo2.Template
}

// bannedTags read other templates or files. Screen text arrives with the
// form definition, so it may only reference the answers it is given.
var bannedTags = []string{"include", "import", "ssi", "extends"}

// ErrNoFiles is returned when a screen template tries to load another file.
var ErrNoFiles = errors.New("screens: templates cannot load files")

// noFiles is a pongo2 loader that resolves nothing.
type noFiles struct{}

func (noFiles) Abs(_, name string) string { return name }

func (noFiles) Get(string) (io.Reader, error) { return nil, ErrNoFiles }

// New returns a Renderer with its own template set.
func New() *Renderer {
	set := pongo2.NewSet("formflow-screens", noFiles{})
	for _, tag := range bannedTags {
		// BanTag only fails for unknown tags or after parsing started.
		_ = set.BanTag(tag)
	}
	return &Renderer{
		set:       set,
		templates: make(map[string]*pongo2.Template),
	}
}

// Render executes screen against the form and answers. When a template fails
// the raw text is returned together with the error so callers can still show
// something.
func (r *Renderer) Render(screen *model.Screen, form model.FormDefinition, answers model.Answers) (Rendered, error) {
	if screen == nil {
		return Rendered{}, nil
	}
	ctx := r.context(form, answers)

	var errs []error
	render := func(source string) string {
		out, err := r.execute(source, ctx)
		if err != nil {
			errs = append(errs, err)
			return model.SanitizeText(source)
		}
		return out
	}

	rendered := Rendered{
		Title:      render(screen.Title),
		Body:       render(screen.Body),
		ButtonText: model.SanitizeText(screen.ButtonText),
	}
	return rendered, errors.Join(errs...)
}

// ThankYou renders the form's thank-you screen, or DefaultThankYou.
func (r *Renderer) ThankYou(form model.FormDefinition, answers model.Answers) (Rendered, error) {
	screen := form.ThankYou
	if screen.Empty() {
		fallback := DefaultThankYou
		screen = &fallback
	}
	return r.Render(screen, form, answers)
}

func (r *Renderer) context(form model.FormDefinition, answers model.Answers) pongo2.Context {
	texts := make(map[string]string, len(answers))
	for id, value := range answers {
		texts[id] = model.StringOf(value)
	}
	return pongo2.Context{
		"form": map[string]any{
			"id":          form.ID,
			"slug":        form.Slug,
			"title":       form.Title,
			"description": form.Description,
		},
		"answers": texts,
		"recall": func(id string) string {
			return texts[strings.TrimSpace(id)]
		},
	}
}

func (r *Renderer) execute(source string, ctx pongo2.Context) (string, error) {
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return model.SanitizeText(source), nil
	}
	tmpl, err := r.template(source)
	if err != nil {
		return "", err
	}
	out, err := tmpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("screens: execute: %w", err)
	}
	return model.SanitizeText(out), nil
}

func (r *Renderer) template(source string) (*pongo2.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[source]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := r.set.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("screens: parse: %w", err)
	}
	r.mu.Lock()
	r.templates[source] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}
