package expr

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

type node interface {
	eval(answers model.Answers) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(answers model.Answers) bool {
	return n.left.eval(answers) || n.right.eval(answers)
}

type andNode struct{ left, right node }

func (n andNode) eval(answers model.Answers) bool {
	return n.left.eval(answers) && n.right.eval(answers)
}

type notNode struct{ inner node }

func (n notNode) eval(answers model.Answers) bool {
	return !n.inner.eval(answers)
}

type truthyNode struct{ path []string }

func (n truthyNode) eval(answers model.Answers) bool {
	value, _ := lookup(answers, n.path)
	return truthy(value)
}

// compareNode compares an answer with a literal. want is a string, float64,
// bool or nil.
type compareNode struct {
	path []string
	op   tokenKind
	want any
}

func (n compareNode) eval(answers model.Answers) bool {
	value, _ := lookup(answers, n.path)
	switch n.op {
	case tokenEq:
		return equal(value, n.want)
	case tokenNeq:
		return !equal(value, n.want)
	case tokenContains:
		return contains(value, n.want)
	}
	return false
}

// equal coerces the answer to the literal's kind. Null only equals an empty
// answer.
func equal(value, want any) bool {
	switch w := want.(type) {
	case nil:
		return model.IsEmpty(value)
	case bool:
		got, ok := asBool(value)
		return ok && got == w
	case float64:
		got, ok := model.Float64Of(value)
		return ok && got == w
	default:
		return model.StringOf(value) == model.StringOf(want)
	}
}

// contains matches a list element exactly, or a case-insensitive substring of
// a scalar answer.
func contains(value, want any) bool {
	needle := model.StringOf(want)
	if model.IsList(value) {
		for _, item := range model.StringsOf(value) {
			if item == needle {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(model.StringOf(value)), strings.ToLower(needle))
}

func truthy(value any) bool {
	if model.IsEmpty(value) {
		return false
	}
	if b, ok := value.(bool); ok {
		return b
	}
	if n, ok := value.(float64); ok {
		return n != 0
	}
	return true
}

func asBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return parsed, err == nil
	case nil:
		return false, false
	}
	return truthy(value), true
}

// lookup resolves a field id, then walks the rest of the path through
// structured answers. A dotted key stored verbatim wins.
func lookup(answers model.Answers, path []string) (any, bool) {
	if value, ok := answers[strings.Join(path, ".")]; ok {
		return value, true
	}
	current, ok := answers[path[0]]
	if !ok {
		return nil, false
	}
	for _, part := range path[1:] {
		fields, ok := members(current)
		if !ok {
			return nil, false
		}
		if current, ok = fields[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

func members(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out, true
	case model.DateRange:
		return map[string]any{"start": v.Start, "end": v.End}, true
	case model.FileValue:
		return map[string]any{"url": v.URL, "name": v.Name, "size": float64(v.Size), "type": v.Type}, true
	case model.PaymentValue:
		return map[string]any{"intentId": v.IntentID, "status": v.Status, "amount": v.Amount, "currency": v.Currency}, true
	case model.ColorValue:
		return map[string]any{"hex": v.Hex, "pantoneCode": v.PantoneCode, "label": v.Label, "isCustom": v.IsCustom}, true
	}
	return nil, false
}
