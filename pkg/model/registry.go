package model

import (
	"strings"
	"sync"
)

// TypeTraits describes how the engine treats a field type.
type TypeTraits struct {
	// Answerable is false for layout-only types such as sections.
	Answerable bool
	// AutoAdvance marks single-choice style types whose presentation may move
	// to the next question once a value is picked.
	AutoAdvance bool
	// List marks types whose answer is an ordered list of values.
	List bool
	// Choice marks types whose answers must come from Options.
	Choice bool
}

var builtinTraits = map[FieldType]TypeTraits{
	FieldTypeText:           {Answerable: true},
	FieldTypeTextarea:       {Answerable: true},
	FieldTypeEmail:          {Answerable: true},
	FieldTypeNumber:         {Answerable: true},
	FieldTypePhone:          {Answerable: true},
	FieldTypeURL:            {Answerable: true},
	FieldTypeDate:           {Answerable: true},
	FieldTypeTime:           {Answerable: true},
	FieldTypeDateTime:       {Answerable: true},
	FieldTypeDateRange:      {Answerable: true},
	FieldTypeDropdown:       {Answerable: true, AutoAdvance: true, Choice: true},
	FieldTypeMultipleChoice: {Answerable: true, AutoAdvance: true, Choice: true},
	FieldTypeCheckbox:       {Answerable: true, List: true, Choice: true},
	FieldTypeYesNo:          {Answerable: true, AutoAdvance: true},
	FieldTypeRating:         {Answerable: true, AutoAdvance: true},
	FieldTypeOpinionScale:   {Answerable: true, AutoAdvance: true},
	FieldTypeMatrix:         {Answerable: true},
	FieldTypeRanking:        {Answerable: true, List: true},
	FieldTypeFileUpload:     {Answerable: true},
	FieldTypePayment:        {Answerable: true},
	FieldTypeSection:        {},
	FieldTypeColorSelector:  {Answerable: true},
	FieldTypeDefault:        {Answerable: true},
}

// Traits returns the behaviour traits of the type. Unknown types behave like
// FieldTypeDefault.
func (t FieldType) Traits() TypeTraits {
	if traits, ok := builtinTraits[t]; ok {
		return traits
	}
	return builtinTraits[FieldTypeDefault]
}

// Known reports whether t is part of the closed enumeration.
func (t FieldType) Known() bool {
	_, ok := builtinTraits[t]
	return ok
}

var builtinAliases = map[string]FieldType{
	"short_text":     FieldTypeText,
	"string":         FieldTypeText,
	"long_text":      FieldTypeTextarea,
	"paragraph":      FieldTypeTextarea,
	"tel":            FieldTypePhone,
	"phone_number":   FieldTypePhone,
	"website":        FieldTypeURL,
	"date_time":      FieldTypeDateTime,
	"daterange":      FieldTypeDateRange,
	"select":         FieldTypeDropdown,
	"radio":          FieldTypeMultipleChoice,
	"single_choice":  FieldTypeMultipleChoice,
	"checkboxes":     FieldTypeCheckbox,
	"multi_select":   FieldTypeCheckbox,
	"yesno":          FieldTypeYesNo,
	"boolean":        FieldTypeYesNo,
	"stars":          FieldTypeRating,
	"opinion":        FieldTypeOpinionScale,
	"nps":            FieldTypeOpinionScale,
	"grid":           FieldTypeMatrix,
	"file":           FieldTypeFileUpload,
	"upload":         FieldTypeFileUpload,
	"heading":        FieldTypeSection,
	"page_break":     FieldTypeSection,
	"color":          FieldTypeColorSelector,
	"colour":         FieldTypeColorSelector,
	"color_picker":   FieldTypeColorSelector,
	"pantone":        FieldTypeColorSelector,
	"custom_color":   FieldTypeColorSelector,
	"colorselector":  FieldTypeColorSelector,
	"multiplechoice": FieldTypeMultipleChoice,
	"opinionscale":   FieldTypeOpinionScale,
	"fileupload":     FieldTypeFileUpload,
}

// Registry resolves free-form type tags onto FieldType values. Canonical
// names always resolve; aliases can be added at runtime. An unknown tag
// resolves to FieldTypeDefault.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]FieldType
}

// NewRegistry constructs a registry with the built-in aliases registered.
func NewRegistry() *Registry {
	reg := &Registry{aliases: make(map[string]FieldType, len(builtinAliases))}
	for alias, target := range builtinAliases {
		reg.aliases[alias] = target
	}
	return reg
}

// Register maps alias onto a known field type. Later registrations win.
func (r *Registry) Register(alias string, target FieldType) {
	if r == nil || !target.Known() {
		return
	}
	key := canonicalTag(alias)
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[key] = target
}

// Resolve returns the field type for a raw tag.
func (r *Registry) Resolve(tag string) FieldType {
	key := canonicalTag(tag)
	if key == "" {
		return FieldTypeDefault
	}
	if candidate := FieldType(key); candidate.Known() {
		return candidate
	}
	if r == nil {
		return FieldTypeDefault
	}
	r.mu.RLock()
	target, ok := r.aliases[key]
	r.mu.RUnlock()
	if ok {
		return target
	}
	return FieldTypeDefault
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by NormalizeField.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// ResolveType resolves tag through the default registry.
func ResolveType(tag string) FieldType {
	return defaultRegistry.Resolve(tag)
}

func canonicalTag(tag string) string {
	key := strings.ToLower(strings.TrimSpace(tag))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	return key
}
