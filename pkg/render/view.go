// Package render defines the surface the form facade hands to markup
// targets: an ordered list of fields with their visibility, value and errors,
// the hidden inputs a submission needs, and a summary of the last submission.
package render

import (
	"github.com/goliatone/go-formengine/pkg/model"
)

// FieldView is one declared field as the renderer should draw it.
type FieldView struct {
	Field   model.Field `json:"field"`
	Visible bool        `json:"visible"`
	Value   any         `json:"value,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// Summary describes the outcome of the request that produced the view.
type Summary struct {
	State      string            `json:"state"`
	Submitted  bool              `json:"submitted"`
	Valid      bool              `json:"valid"`
	Errors     map[string]string `json:"errors,omitempty"`
	FormErrors []string          `json:"formErrors,omitempty"`
	Messages   []string          `json:"messages,omitempty"`
}

// View is everything a renderer needs to draw a form.
type View struct {
	Form    model.Form    `json:"form"`
	Fields  []FieldView   `json:"fields"`
	Hidden  []HiddenField `json:"hidden,omitempty"`
	Summary Summary       `json:"summary"`
}

// VisibleFields returns the fields to draw, in declaration order.
func (v View) VisibleFields() []FieldView {
	out := make([]FieldView, 0, len(v.Fields))
	for _, field := range v.Fields {
		if field.Visible {
			out = append(out, field)
		}
	}
	return out
}

// Field looks up a field view by name.
func (v View) Field(name string) (FieldView, bool) {
	for _, field := range v.Fields {
		if field.Field.Name == name {
			return field, true
		}
	}
	return FieldView{}, false
}

// Clone returns a copy safe to mutate during localisation or filtering.
func (v View) Clone() View {
	out := v
	out.Form = v.Form.Clone()
	if v.Fields != nil {
		out.Fields = make([]FieldView, len(v.Fields))
		for idx, field := range v.Fields {
			field.Field = field.Field.Clone()
			field.Errors = append([]string(nil), field.Errors...)
			out.Fields[idx] = field
		}
	}
	out.Hidden = append([]HiddenField(nil), v.Hidden...)
	return out
}
