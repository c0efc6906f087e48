package builder

import (
	"fmt"

	"github.com/goliatone/go-formengine/pkg/model"
)

// FieldHandle configures a single declared field. Every method returns the
// handle so calls can be chained.
type FieldHandle struct {
	builder  *Builder
	field    *model.Field
	detached bool
}

// Name returns the declared field name.
func (h *FieldHandle) Name() string {
	return h.field.Name
}

// Required marks the field as required while it is visible.
func (h *FieldHandle) Required() *FieldHandle {
	h.field.Required = true
	return h
}

// Default sets the value used when nothing was submitted or stored.
func (h *FieldHandle) Default(value any) *FieldHandle {
	h.field.Default = value
	return h
}

// Placeholder sets the input placeholder.
func (h *FieldHandle) Placeholder(text string) *FieldHandle {
	h.field.Placeholder = text
	return h
}

// Description sets the help text.
func (h *FieldHandle) Description(text string) *FieldHandle {
	h.field.Description = text
	return h
}

// Options replaces the ordered choices for choice fields.
func (h *FieldHandle) Options(options ...model.Option) *FieldHandle {
	h.field.Options = append([]model.Option(nil), options...)
	return h
}

// Option appends a single choice.
func (h *FieldHandle) Option(label, value string) *FieldHandle {
	h.field.Options = append(h.field.Options, model.Option{Label: label, Value: value})
	return h
}

// Min sets the lower numeric bound.
func (h *FieldHandle) Min(n float64) *FieldHandle {
	h.field.Min = &n
	return h
}

// Max sets the upper numeric bound.
func (h *FieldHandle) Max(n float64) *FieldHandle {
	h.field.Max = &n
	return h
}

// Step sets the numeric increment.
func (h *FieldHandle) Step(n float64) *FieldHandle {
	h.field.Step = &n
	return h
}

// MinLength sets the minimum text length in characters.
func (h *FieldHandle) MinLength(n int) *FieldHandle {
	h.field.MinLength = n
	return h
}

// MaxLength sets the maximum text length in characters.
func (h *FieldHandle) MaxLength(n int) *FieldHandle {
	h.field.MaxLength = n
	return h
}

// Pattern sets a regular expression the whole text value must match.
func (h *FieldHandle) Pattern(pattern string) *FieldHandle {
	h.field.Pattern = pattern
	return h
}

// Accept restricts file uploads by MIME pattern or extension list, for
// example "image/*" or ".pdf,.docx".
func (h *FieldHandle) Accept(pattern string) *FieldHandle {
	h.field.Accept = pattern
	return h
}

// MaxSize caps the upload size in bytes.
func (h *FieldHandle) MaxSize(bytes int64) *FieldHandle {
	h.field.MaxSize = bytes
	return h
}

// Multiple allows several values (multi-select, several files).
func (h *FieldHandle) Multiple() *FieldHandle {
	h.field.Multiple = true
	return h
}

// Encrypted stores the value reversibly encrypted.
func (h *FieldHandle) Encrypted() *FieldHandle {
	h.field.Encrypted = true
	return h
}

// ShowWhen appends OR'd condition groups to the visibility rule.
func (h *FieldHandle) ShowWhen(groups ...model.ConditionGroup) *FieldHandle {
	for _, group := range groups {
		h.field.Visibility = append(h.field.Visibility, append(model.ConditionGroup(nil), group...))
	}
	return h
}

// ShowWhenExpr appends the groups compiled from a textual rule such as
// `enable && plan in ["pro"]`. Syntax errors are reported by Build.
func (h *FieldHandle) ShowWhenExpr(rule string) *FieldHandle {
	compiled := h.builder.parseRule(h.field.Name, rule)
	h.field.Visibility = append(h.field.Visibility, compiled...)
	return h
}

// Meta attaches renderer-facing metadata.
func (h *FieldHandle) Meta(key, value string) *FieldHandle {
	if h.field.Metadata == nil {
		h.field.Metadata = make(map[string]string)
	}
	h.field.Metadata[key] = value
	return h
}

// Field ends the chain on this handle and declares the next field.
func (h *FieldHandle) Field(name string, fieldType model.FieldType, label string) *FieldHandle {
	return h.builder.Field(name, fieldType, label)
}

// End returns the owning builder.
func (h *FieldHandle) End() *Builder {
	return h.builder
}

// String implements fmt.Stringer for debugging.
func (h *FieldHandle) String() string {
	return fmt.Sprintf("field(%s:%s)", h.field.Name, h.field.Type)
}
