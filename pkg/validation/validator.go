// Package validation runs every visible field of a form through the field
// factory in one pass. Validation is pure: it performs no I/O and never
// mutates its inputs, so callers may run it speculatively for previews.
package validation

import (
	"github.com/goliatone/go-formengine/pkg/field"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/upload"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// Issue is a single validation problem.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result captures the outcome of validating a submission.
type Result struct {
	Valid bool `json:"valid"`
	// Errors maps a field name to its first problem.
	Errors map[string]string `json:"errors,omitempty"`
	// Issues lists every problem in declaration order.
	Issues []Issue `json:"issues,omitempty"`
	// Data holds sanitised values for visible fields that were submitted.
	// Checkbox-family fields are always present.
	Data map[string]any `json:"data,omitempty"`
	// Visible lists the fields that took part, in declaration order.
	Visible []string `json:"visible,omitempty"`
}

// Options supplies the non-scalar parts of a submission.
type Options struct {
	Files  map[string][]upload.File
	Stored map[string]any
}

// Option configures a Validator.
type Option func(*Validator)

// WithRegistry overrides the field factory.
func WithRegistry(registry *field.Registry) Option {
	return func(v *Validator) {
		if registry != nil {
			v.registry = registry
		}
	}
}

// WithPolicy sets how hidden fields referenced by other rules are treated.
func WithPolicy(policy visibility.Policy) Option {
	return func(v *Validator) {
		v.policy = policy
	}
}

// Validator evaluates submissions against form declarations.
type Validator struct {
	registry *field.Registry
	policy   visibility.Policy
}

// New constructs a Validator with the built-in field registry.
func New(options ...Option) *Validator {
	v := &Validator{policy: visibility.PolicyPermissive}
	for _, opt := range options {
		if opt != nil {
			opt(v)
		}
	}
	if v.registry == nil {
		v.registry = field.NewRegistry()
	}
	return v
}

// Registry exposes the field factory in use.
func (v *Validator) Registry() *field.Registry {
	return v.registry
}

// Validate checks values against form. Hidden fields are skipped entirely:
// they produce no errors and never appear in Data.
func (v *Validator) Validate(form model.Form, values map[string]any, opts Options) Result {
	normalized := Normalize(form, values)
	resolution := visibility.New(form, visibility.WithPolicy(v.policy)).Resolve(normalized)

	result := Result{
		Errors: make(map[string]string),
		Data:   make(map[string]any),
	}
	for _, def := range form.Fields {
		if !resolution.Visible(def.Name) {
			continue
		}
		result.Visible = append(result.Visible, def.Name)

		value, present := normalized[def.Name]
		files := opts.Files[def.Name]
		if def.Type == model.FieldTypeFile {
			present = len(files) > 0
		}
		inst, err := v.registry.Create(def, field.Input{
			Value:   value,
			Present: present,
			Files:   files,
			Stored:  opts.Stored[def.Name],
		})
		if err != nil {
			result.add(def.Name, "unsupported field type")
			continue
		}

		problems := inst.Validate()
		for _, problem := range problems {
			result.add(def.Name, problem)
		}
		if len(problems) == 0 && present {
			result.Data[def.Name] = inst.Value()
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func (r *Result) add(name, message string) {
	if _, exists := r.Errors[name]; !exists {
		r.Errors[name] = message
	}
	r.Issues = append(r.Issues, Issue{Field: name, Message: message})
}

// Normalize returns a copy of values in which checkbox-family fields absent
// from the submission read as unchecked. Browsers omit unchecked boxes, so
// absence means "off" rather than "unchanged".
func Normalize(form model.Form, values map[string]any) map[string]any {
	out := make(map[string]any, len(values)+len(form.Fields))
	for key, value := range values {
		out[key] = value
	}
	for _, def := range form.Fields {
		if !def.Type.Checkable() {
			continue
		}
		if _, present := out[def.Name]; present {
			continue
		}
		if def.MultiValued() {
			out[def.Name] = []string{}
		} else {
			out[def.Name] = false
		}
	}
	return out
}
