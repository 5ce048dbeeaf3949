package schema

import (
	"fmt"
	"strings"
)

// Issue is one problem found in a definition. Path is a JSON pointer into the
// raw document.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// LoadError reports a definition that could not be read, parsed or that
// failed the shape check.
type LoadError struct {
	Location string
	Issues   []Issue
	Err      error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("schema: load")
	if e.Location != "" {
		fmt.Fprintf(&b, " %s", e.Location)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Issues) > 0 {
		parts := make([]string, 0, len(e.Issues))
		for _, issue := range e.Issues {
			parts = append(parts, issue.String())
		}
		fmt.Fprintf(&b, ": %s", strings.Join(parts, "; "))
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
