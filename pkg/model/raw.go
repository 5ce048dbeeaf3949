package model

import (
	"fmt"
	"strings"
)

// RawDefinition mirrors the wire shape of a form definition before
// normalisation. Identifiers may be strings, numbers or missing.
type RawDefinition struct {
	ID          any            `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Fields      []RawField     `json:"fields"`
	Settings    RawSettings    `json:"settings"`
	Welcome     *Screen        `json:"welcomeScreen"`
	ThankYou    *Screen        `json:"thankYouScreen"`
	Theme       map[string]any `json:"theme"`
}

// RawSettings is the wire shape of Settings.
type RawSettings struct {
	PasswordProtected   bool   `json:"passwordProtected"`
	VerificationEnabled bool   `json:"verificationEnabled"`
	CaptchaEnabled      bool   `json:"captchaEnabled"`
	RespondentIdentity  string `json:"respondentIdentity"`
}

// RawField is the wire shape of a single field.
type RawField struct {
	ID               any               `json:"id"`
	Type             string            `json:"type"`
	Label            string            `json:"label"`
	Description      string            `json:"description"`
	Required         bool              `json:"required"`
	Options          []any             `json:"options"`
	ValidationRules  *ValidationRules  `json:"validationRules"`
	ConditionalLogic *ConditionalLogic `json:"conditionalLogic"`
}

// NormalizeDefinition converts a raw definition into the immutable model.
// Field order is preserved; positional ids are derived from the declaration
// index.
func NormalizeDefinition(raw RawDefinition) FormDefinition {
	def := FormDefinition{
		ID:          strings.TrimSpace(StringOf(raw.ID)),
		Slug:        strings.TrimSpace(raw.Slug),
		Title:       SanitizeText(raw.Title),
		Description: SanitizeText(raw.Description),
		Settings:    normalizeSettings(raw.Settings),
		Welcome:     raw.Welcome,
		ThankYou:    raw.ThankYou,
		Theme:       raw.Theme,
	}
	if def.ID == "" {
		def.ID = def.Slug
	}
	def.Fields = make([]Field, 0, len(raw.Fields))
	for idx, field := range raw.Fields {
		def.Fields = append(def.Fields, NormalizeField(field, idx))
	}
	return def
}

func normalizeSettings(raw RawSettings) Settings {
	settings := Settings{
		PasswordProtected:   raw.PasswordProtected,
		RequireVerification: raw.VerificationEnabled || raw.CaptchaEnabled,
		Identity:            IdentityNone,
	}
	switch IdentityMode(strings.ToLower(strings.TrimSpace(raw.RespondentIdentity))) {
	case IdentityOptional:
		settings.Identity = IdentityOptional
	case IdentityRequired:
		settings.Identity = IdentityRequired
	}
	return settings
}

// NormalizeField produces a Field with a guaranteed non-empty id (synthesised
// as field-<position> when the supplied id is missing or blank) and a type from
// the closed enumeration.
func NormalizeField(raw RawField, position int) Field {
	id := strings.TrimSpace(StringOf(raw.ID))
	if id == "" {
		id = PositionalID(position)
	}

	field := Field{
		ID:          id,
		Type:        ResolveType(raw.Type),
		Label:       SanitizeText(raw.Label),
		Description: SanitizeText(raw.Description),
		Required:    raw.Required,
		Options:     normalizeOptions(raw.Options),
	}
	if raw.ValidationRules != nil {
		field.Rules = *raw.ValidationRules
	}
	if raw.ConditionalLogic != nil {
		logic := *raw.ConditionalLogic
		logic.TriggerFieldID = strings.TrimSpace(logic.TriggerFieldID)
		logic.Condition = Condition(strings.ToLower(strings.TrimSpace(string(logic.Condition))))
		field.Logic = &logic
	}
	if field.IsSection() {
		field.Required = false
	}
	return field
}

// PositionalID returns the synthetic id used for a field without one.
func PositionalID(position int) string {
	return fmt.Sprintf("field-%d", position)
}

func normalizeOptions(raw []any) []Option {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Option, 0, len(raw))
	for _, item := range raw {
		switch typed := item.(type) {
		case nil:
			continue
		case map[string]any:
			value, hasValue := typed["value"]
			label := strings.TrimSpace(StringOf(typed["label"]))
			if !hasValue || value == nil {
				value = label
			}
			if label == "" {
				label = StringOf(value)
			}
			if IsEmpty(value) && label == "" {
				continue
			}
			out = append(out, Option{Value: value, Label: SanitizeText(label)})
		default:
			label := StringOf(typed)
			out = append(out, Option{Value: typed, Label: SanitizeText(label)})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
