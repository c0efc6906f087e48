package model

import (
	"strings"
)

// FieldType enumerates the input kinds a form may declare.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeEmail     FieldType = "email"
	FieldTypeURL       FieldType = "url"
	FieldTypePassword  FieldType = "password"
	FieldTypeTextarea  FieldType = "textarea"
	FieldTypeNumber    FieldType = "number"
	FieldTypeRange     FieldType = "range"
	FieldTypeSelect    FieldType = "select"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeSwitch    FieldType = "switch"
	FieldTypeColor     FieldType = "color"
	FieldTypeDate      FieldType = "date"
	FieldTypeTime      FieldType = "time"
	FieldTypeDateTime  FieldType = "datetime"
	FieldTypeFile      FieldType = "file"
	FieldTypeRichText  FieldType = "richtext"
	FieldTypeEncrypted FieldType = "encrypted"
	FieldTypeHidden    FieldType = "hidden"
)

// FieldTypes lists every supported type in a stable order.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText, FieldTypeEmail, FieldTypeURL, FieldTypePassword,
		FieldTypeTextarea, FieldTypeNumber, FieldTypeRange, FieldTypeSelect,
		FieldTypeRadio, FieldTypeCheckbox, FieldTypeSwitch, FieldTypeColor,
		FieldTypeDate, FieldTypeTime, FieldTypeDateTime, FieldTypeFile,
		FieldTypeRichText, FieldTypeEncrypted, FieldTypeHidden,
	}
}

// ParseFieldType normalises raw input into a known FieldType.
func ParseFieldType(raw string) (FieldType, bool) {
	candidate := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	switch candidate {
	case "date-time", "date_time":
		candidate = FieldTypeDateTime
	case "wysiwyg", "editor":
		candidate = FieldTypeRichText
	case "toggle":
		candidate = FieldTypeSwitch
	}
	return candidate, candidate.Valid()
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	for _, known := range FieldTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Checkable reports whether the type submits nothing when unchecked. Absence
// of such a field in a submission means "off" rather than "unchanged".
func (t FieldType) Checkable() bool {
	return t == FieldTypeCheckbox || t == FieldTypeSwitch
}

// Choice reports whether values are restricted to declared options.
func (t FieldType) Choice() bool {
	switch t {
	case FieldTypeSelect, FieldTypeRadio, FieldTypeCheckbox, FieldTypeSwitch:
		return true
	default:
		return false
	}
}

// Numeric reports whether the type carries a number.
func (t FieldType) Numeric() bool {
	return t == FieldTypeNumber || t == FieldTypeRange
}

// Option is an ordered label/value pair for choice fields.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Operator names a comparison used by a visibility condition.
type Operator string

const (
	OperatorIsChecked  Operator = "is_checked"
	OperatorNotChecked Operator = "not_checked"
	OperatorEquals     Operator = "equals"
	OperatorNotEquals  Operator = "not_equals"
	OperatorIn         Operator = "in"
	OperatorNotIn      Operator = "not_in"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OperatorIsChecked, OperatorNotChecked, OperatorEquals, OperatorNotEquals, OperatorIn, OperatorNotIn:
		return true
	default:
		return false
	}
}

// NeedsValue reports whether the operator compares against an operand.
func (op Operator) NeedsValue() bool {
	return op != OperatorIsChecked && op != OperatorNotChecked
}

// Condition compares the current value of another field.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// ConditionGroup holds conditions that must all be true.
type ConditionGroup []Condition

// VisibilityRule is a list of condition groups of which at least one must be
// true. An empty rule means the field is always visible.
type VisibilityRule []ConditionGroup

// References returns the distinct field names the rule reads, in first-seen
// order.
func (r VisibilityRule) References() []string {
	if len(r) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, group := range r {
		for _, cond := range group {
			name := strings.TrimSpace(cond.Field)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Clone returns a deep copy of the rule.
func (r VisibilityRule) Clone() VisibilityRule {
	if r == nil {
		return nil
	}
	out := make(VisibilityRule, len(r))
	for idx, group := range r {
		copied := make(ConditionGroup, len(group))
		for cIdx, cond := range group {
			cond.Value = cloneValue(cond.Value)
			copied[cIdx] = cond
		}
		out[idx] = copied
	}
	return out
}

// Field declares a single input.
type Field struct {
	Name        string         `json:"name" yaml:"name"`
	Type        FieldType      `json:"type" yaml:"type"`
	Label       string         `json:"label,omitempty" yaml:"label,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Placeholder string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default     any            `json:"default,omitempty" yaml:"default,omitempty"`
	Options     []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64       `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64       `json:"max,omitempty" yaml:"max,omitempty"`
	Step        *float64       `json:"step,omitempty" yaml:"step,omitempty"`
	MinLength   int            `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   int            `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern     string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Accept      string         `json:"accept,omitempty" yaml:"accept,omitempty"`
	MaxSize     int64          `json:"maxSize,omitempty" yaml:"maxSize,omitempty"`
	Multiple    bool           `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Required    bool           `json:"required" yaml:"required"`
	Encrypted   bool           `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
	Visibility  VisibilityRule `json:"showWhen,omitempty" yaml:"showWhen,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MultiValued reports whether the field submits a list of values.
func (f Field) MultiValued() bool {
	switch f.Type {
	case FieldTypeCheckbox:
		return len(f.Options) > 0
	case FieldTypeSelect, FieldTypeFile:
		return f.Multiple
	default:
		return false
	}
}

// HasOption reports whether value matches one of the declared options.
func (f Field) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	out.Default = cloneValue(f.Default)
	if f.Options != nil {
		out.Options = append([]Option(nil), f.Options...)
	}
	out.Min = cloneFloat(f.Min)
	out.Max = cloneFloat(f.Max)
	out.Step = cloneFloat(f.Step)
	out.Visibility = f.Visibility.Clone()
	if f.Metadata != nil {
		out.Metadata = make(map[string]string, len(f.Metadata))
		for key, value := range f.Metadata {
			out.Metadata[key] = value
		}
	}
	return out
}

// StorageKind selects the persistence strategy for a form.
type StorageKind string

const (
	StorageOptions    StorageKind = "options"
	StorageEntityMeta StorageKind = "entity_meta"
	StorageCallback   StorageKind = "callback"
)

// Storage describes where validated values are committed.
type Storage struct {
	Kind     StorageKind `json:"kind" yaml:"kind"`
	Prefix   string      `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	EntityID string      `json:"entityId,omitempty" yaml:"entityId,omitempty"`
}

// DefaultCapability is required to submit a form unless overridden.
const DefaultCapability = "manage_options"

// Form is the complete, immutable declaration of a form.
type Form struct {
	ID             string            `json:"id" yaml:"id"`
	Title          string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	Fields         []Field           `json:"fields" yaml:"fields"`
	Storage        Storage           `json:"storage" yaml:"storage"`
	SuccessMessage string            `json:"successMessage,omitempty" yaml:"successMessage,omitempty"`
	ErrorMessage   string            `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	Capability     string            `json:"capability,omitempty" yaml:"capability,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// CSRFTokenName is the request field carrying the form's CSRF token.
func (f Form) CSRFTokenName() string {
	return "_formengine_nonce_" + f.ID
}

// FormIDFieldName is the hidden field carrying the submitted form id.
const FormIDFieldName = "_formengine_form"

// Multipart reports whether the form must be submitted as multipart data. It
// is derived from the declared fields and cannot be set independently.
func (f Form) Multipart() bool {
	for _, field := range f.Fields {
		if field.Type == FieldTypeFile {
			return true
		}
	}
	return false
}

// Field looks up a declared field by name.
func (f Form) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// FieldNames returns the declared names in declaration order.
func (f Form) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		names = append(names, field.Name)
	}
	return names
}

// Clone returns a deep copy of the form.
func (f Form) Clone() Form {
	out := f
	if f.Fields != nil {
		out.Fields = make([]Field, len(f.Fields))
		for idx, field := range f.Fields {
			out.Fields[idx] = field.Clone()
		}
	}
	if f.Metadata != nil {
		out.Metadata = make(map[string]string, len(f.Metadata))
		for key, value := range f.Metadata {
			out.Metadata[key] = value
		}
	}
	return out
}

func cloneFloat(in *float64) *float64 {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
