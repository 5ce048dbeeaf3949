// Package schema loads form definitions from files, fs.FS entries or URLs,
// checks their shape and normalises them into model.FormDefinition values.
package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Loader reads definitions through file, fs.FS or HTTP strategies.
type Loader struct {
	files   fs.FS
	http    *http.Client
	timeout time.Duration
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS enables SourceKindFS sources.
func WithFS(files fs.FS) LoaderOption {
	return func(l *Loader) {
		l.files = files
	}
}

// WithHTTPClient enables SourceKindURL sources.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.http = client
	}
}

// WithTimeout bounds URL fetches.
func WithTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

// NewLoader returns a Loader. URL sources fail unless an HTTP client is
// configured.
func NewLoader(opts ...LoaderOption) *Loader {
	loader := &Loader{}
	for _, opt := range opts {
		if opt != nil {
			opt(loader)
		}
	}
	return loader
}

// Read fetches the raw document behind src.
func (l *Loader) Read(ctx context.Context, src Source) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		data, err = readFile(src.Location())
	case SourceKindFS:
		data, err = readFS(l.files, src.Location())
	case SourceKindURL:
		data, err = l.readHTTP(ctx, src.Location())
	default:
		err = fmt.Errorf("schema: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return Document{}, err
	}
	return NewDocument(src, data)
}

// Load reads and parses the definition behind src.
func (l *Loader) Load(ctx context.Context, src Source) (model.FormDefinition, error) {
	doc, err := l.Read(ctx, src)
	if err != nil {
		return model.FormDefinition{}, &LoadError{Location: locationOf(src), Err: err}
	}
	return Parse(doc.Raw(), doc.Location())
}

func locationOf(src Source) string {
	if src == nil {
		return ""
	}
	return src.Location()
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("schema: file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func readFS(files fs.FS, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("schema: fs path is required")
	}
	if files == nil {
		return nil, errors.New("schema: fs is not configured")
	}
	return fs.ReadFile(files, name)
}

func (l *Loader) readHTTP(ctx context.Context, url string) ([]byte, error) {
	if l.http == nil {
		return nil, errors.New("schema: http support disabled")
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("schema: unexpected status " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
