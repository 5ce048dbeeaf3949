package devserver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/schema"
)

var definitionExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// Catalog is the read-only set of forms a server publishes.
type Catalog struct {
	bySlug map[string]model.FormDefinition
	slugOf map[string]string
}

// NewCatalog indexes forms by slug and id. Both must be unique.
func NewCatalog(forms ...model.FormDefinition) (*Catalog, error) {
	c := &Catalog{
		bySlug: make(map[string]model.FormDefinition, len(forms)),
		slugOf: make(map[string]string, len(forms)),
	}
	for _, form := range forms {
		if err := c.add(form); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(form model.FormDefinition) error {
	if form.Slug == "" {
		return fmt.Errorf("devserver: form %q has no slug", form.ID)
	}
	if form.ID == "" {
		form.ID = form.Slug
	}
	if _, exists := c.bySlug[form.Slug]; exists {
		return fmt.Errorf("devserver: duplicate slug %q", form.Slug)
	}
	if _, exists := c.slugOf[form.ID]; exists {
		return fmt.Errorf("devserver: duplicate form id %q", form.ID)
	}
	c.bySlug[form.Slug] = form
	c.slugOf[form.ID] = form.Slug
	return nil
}

// LoadDir publishes every definition file in dir.
func LoadDir(ctx context.Context, dir string, logger logrus.FieldLogger) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("devserver: forms dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("devserver: %s is not a directory", dir)
	}
	return LoadFS(ctx, os.DirFS(dir), logger)
}

// LoadFS publishes every .json, .yaml and .yml definition in files. Files
// that fail to load are logged and skipped; a missing slug defaults to the
// file name.
func LoadFS(ctx context.Context, files fs.FS, logger logrus.FieldLogger) (*Catalog, error) {
	logger = logging.Or(logger)
	loader := schema.NewLoader(schema.WithFS(files))
	catalog, _ := NewCatalog()

	err := fs.WalkDir(files, ".", func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !definitionExts[strings.ToLower(path.Ext(name))] {
			return nil
		}
		log := logger.WithField("file", name)

		form, err := loader.Load(ctx, schema.SourceFromFS(name))
		if err != nil {
			log.WithError(err).Warn("skipping form")
			return nil
		}
		if form.Slug == "" {
			form.Slug = strings.TrimSuffix(path.Base(name), path.Ext(name))
		}
		if err := catalog.add(form); err != nil {
			log.WithError(err).Warn("skipping form")
			return nil
		}
		log.WithFields(logrus.Fields{"slug": form.Slug, "form_id": form.ID}).Debug("form published")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("devserver: walk forms: %w", err)
	}
	return catalog, nil
}

// BySlug returns the form published under slug.
func (c *Catalog) BySlug(slug string) (model.FormDefinition, bool) {
	form, ok := c.bySlug[slug]
	return form, ok
}

// ByID returns the form with id, accepting a slug as well.
func (c *Catalog) ByID(id string) (model.FormDefinition, bool) {
	if slug, ok := c.slugOf[id]; ok {
		return c.bySlug[slug], true
	}
	return c.BySlug(id)
}

// List returns the forms sorted by slug.
func (c *Catalog) List() []model.FormDefinition {
	out := make([]model.FormDefinition, 0, len(c.bySlug))
	for _, form := range c.bySlug {
		out = append(out, form)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Len reports the number of published forms.
func (c *Catalog) Len() int {
	return len(c.bySlug)
}
