package model

// FieldType is the closed enumeration of question kinds a form can declare.
type FieldType string

const (
	FieldTypeText           FieldType = "text"
	FieldTypeTextarea       FieldType = "textarea"
	FieldTypeEmail          FieldType = "email"
	FieldTypeNumber         FieldType = "number"
	FieldTypePhone          FieldType = "phone"
	FieldTypeURL            FieldType = "url"
	FieldTypeDate           FieldType = "date"
	FieldTypeTime           FieldType = "time"
	FieldTypeDateTime       FieldType = "datetime"
	FieldTypeDateRange      FieldType = "date_range"
	FieldTypeDropdown       FieldType = "dropdown"
	FieldTypeMultipleChoice FieldType = "multiple_choice"
	FieldTypeCheckbox       FieldType = "checkbox"
	FieldTypeYesNo          FieldType = "yes_no"
	FieldTypeRating         FieldType = "rating"
	FieldTypeOpinionScale   FieldType = "opinion_scale"
	FieldTypeMatrix         FieldType = "matrix"
	FieldTypeRanking        FieldType = "ranking"
	FieldTypeFileUpload     FieldType = "file_upload"
	FieldTypePayment        FieldType = "payment"
	FieldTypeSection        FieldType = "section"
	FieldTypeColorSelector  FieldType = "color_selector"
	// FieldTypeDefault is the generic single-line text variant unknown tags
	// resolve to.
	FieldTypeDefault FieldType = "default"
)

// Condition enumerates the comparison operators of a conditional rule.
type Condition string

const (
	ConditionEquals     Condition = "equals"
	ConditionNotEquals  Condition = "not_equals"
	ConditionContains   Condition = "contains"
	ConditionIsEmpty    Condition = "is_empty"
	ConditionIsNotEmpty Condition = "is_not_empty"
)

// IdentityMode controls whether the respondent's identity is captured with
// the submission.
type IdentityMode string

const (
	IdentityNone     IdentityMode = "none"
	IdentityOptional IdentityMode = "optional"
	IdentityRequired IdentityMode = "required"
)

// Option is one selectable choice of a choice-like field.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// ValidationRules holds the per-field constraints. Pointer fields are unset
// when the definition omits them.
type ValidationRules struct {
	MinLength    *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength    *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min          *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern      string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`

	// Scale is the upper bound of rating and opinion_scale fields.
	Scale *int `json:"scale,omitempty" yaml:"scale,omitempty"`

	Rows    []string `json:"rows,omitempty" yaml:"rows,omitempty"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	Amount   *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Currency string   `json:"currency,omitempty" yaml:"currency,omitempty"`

	MaxFileSize  *int64   `json:"maxFileSize,omitempty" yaml:"maxFileSize,omitempty"`
	AllowedTypes []string `json:"allowedTypes,omitempty" yaml:"allowedTypes,omitempty"`
}

// ConditionalLogic makes a field's visibility depend on another field's
// current answer.
type ConditionalLogic struct {
	Enabled        bool      `json:"enabled"`
	TriggerFieldID string    `json:"triggerFieldId"`
	Condition      Condition `json:"condition"`
	Value          any       `json:"value,omitempty"`
}

// Field is one normalised question definition.
type Field struct {
	ID          string            `json:"id"`
	Type        FieldType         `json:"type"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Required    bool              `json:"required"`
	Options     []Option          `json:"options,omitempty"`
	Rules       ValidationRules   `json:"validationRules"`
	Logic       *ConditionalLogic `json:"conditionalLogic,omitempty"`
}

// IsSection reports whether the field is a page-boundary marker.
func (f Field) IsSection() bool {
	return f.Type == FieldTypeSection
}

// DisplayLabel falls back to the field id when no label is configured.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// Default upper bounds of rating and opinion_scale fields.
const (
	DefaultRatingScale  = 5
	DefaultOpinionScale = 10
)

// ScaleBounds returns the inclusive answer range of a rating (1..scale) or
// opinion_scale (0..scale) field.
func (f Field) ScaleBounds() (lower, upper int) {
	lower, upper = 1, DefaultRatingScale
	if f.Type == FieldTypeOpinionScale {
		lower, upper = 0, DefaultOpinionScale
	}
	if f.Rules.Scale != nil && *f.Rules.Scale > 0 {
		upper = *f.Rules.Scale
	}
	return lower, upper
}

// Settings carries the per-form behaviour switches.
type Settings struct {
	PasswordProtected   bool         `json:"passwordProtected"`
	RequireVerification bool         `json:"verificationEnabled"`
	Identity            IdentityMode `json:"respondentIdentity"`
}

// Screen is the text shown before the first or after the last question.
// Title and Body may reference answers through template expressions.
type Screen struct {
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Body       string `json:"body,omitempty" yaml:"body,omitempty"`
	ButtonText string `json:"buttonText,omitempty" yaml:"buttonText,omitempty"`
}

// Empty reports whether the screen has nothing to show.
func (s *Screen) Empty() bool {
	return s == nil || (s.Title == "" && s.Body == "")
}

// FormDefinition is the immutable, normalised form loaded for a session.
type FormDefinition struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Fields      []Field        `json:"fields"`
	Settings    Settings       `json:"settings"`
	Welcome     *Screen        `json:"welcomeScreen,omitempty"`
	ThankYou    *Screen        `json:"thankYouScreen,omitempty"`
	Theme       map[string]any `json:"theme,omitempty"`
}

// Field returns the field with the supplied id.
func (f FormDefinition) Field(id string) (Field, bool) {
	for _, field := range f.Fields {
		if field.ID == id {
			return field, true
		}
	}
	return Field{}, false
}
