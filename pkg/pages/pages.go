// Package pages groups the currently visible fields of a form into pages
// split by section marker fields, and maps absolute question indices onto
// those pages.
package pages

import (
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/visibility"
)

// Page is an optional leading section plus the run of non-section fields up
// to the next section. Pages are derived, never stored.
type Page struct {
	Header *model.Field
	Fields []model.Field
}

// Title returns the section label, or an empty string for a headerless page.
func (p Page) Title() string {
	if p.Header == nil {
		return ""
	}
	return p.Header.Label
}

// Partition walks fields in declaration order, skips hidden fields and splits
// on visible section fields. A page without answerable fields is dropped, so
// consecutive sections never produce an empty page. A nil evaluator uses the
// fields' conditional logic.
func Partition(fields []model.Field, answers model.Answers, eval visibility.Evaluator) []Page {
	eval = visibility.Or(eval)

	var (
		out     []Page
		current Page
	)
	flush := func() {
		if len(current.Fields) > 0 {
			out = append(out, current)
		}
	}

	for idx := range fields {
		field := fields[idx]
		if !eval.IsVisible(field, answers) {
			continue
		}
		if field.IsSection() {
			flush()
			header := field
			current = Page{Header: &header}
			continue
		}
		current.Fields = append(current.Fields, field)
	}
	flush()
	return out
}

// Questions flattens pages into the ordered list of visible questions. The
// session's question index addresses this list.
func Questions(pages []Page) []model.Field {
	var out []model.Field
	for _, page := range pages {
		out = append(out, page.Fields...)
	}
	return out
}

// Count returns the number of questions across pages.
func Count(pages []Page) int {
	total := 0
	for _, page := range pages {
		total += len(page.Fields)
	}
	return total
}

// Locate returns the page holding the absolute question index and the offset
// of the question inside that page.
func Locate(pages []Page, index int) (page, offset int, ok bool) {
	if index < 0 {
		return 0, 0, false
	}
	remaining := index
	for i, p := range pages {
		if remaining < len(p.Fields) {
			return i, remaining, true
		}
		remaining -= len(p.Fields)
	}
	return 0, 0, false
}

// FirstIndex returns the absolute index of the first question on page.
func FirstIndex(pages []Page, page int) int {
	index := 0
	for i := 0; i < page && i < len(pages); i++ {
		index += len(pages[i].Fields)
	}
	return index
}

// Reconcile keeps index when it still addresses a question after a
// recomputation and re-derives its page. An out of range index resets to 0.
func Reconcile(pages []Page, index int) (newIndex, page int) {
	if p, _, ok := Locate(pages, index); ok {
		return index, p
	}
	return 0, 0
}
