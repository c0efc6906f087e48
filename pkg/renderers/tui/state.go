package tui

import (
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// State tracks answers collected during a session, seeded from the view's
// current values and errors.
type State struct {
	form     model.Form
	eval     *visibility.Evaluator
	values   map[string]any
	errors   map[string][]string
	prompted map[string]bool
}

// NewState seeds the state from a view.
func NewState(view render.View, policy visibility.Policy) *State {
	s := &State{
		form:     view.Form,
		eval:     visibility.New(view.Form, visibility.WithPolicy(policy)),
		values:   make(map[string]any, len(view.Fields)),
		errors:   make(map[string][]string),
		prompted: make(map[string]bool),
	}
	for _, fv := range view.Fields {
		if fv.Value != nil {
			s.values[fv.Field.Name] = cloneValue(fv.Value)
		}
		if len(fv.Errors) > 0 {
			s.errors[fv.Field.Name] = append([]string(nil), fv.Errors...)
		}
	}
	return s
}

// Value returns the current answer for name.
func (s *State) Value(name string) (any, bool) {
	value, ok := s.values[name]
	return value, ok
}

// Set records an answer.
func (s *State) Set(name string, value any) {
	s.values[name] = value
	s.prompted[name] = true
	delete(s.errors, name)
}

// ErrorsFor returns the errors attached to a field before prompting.
func (s *State) ErrorsFor(name string) []string {
	return s.errors[name]
}

// Pending returns the visible fields not yet prompted, in declaration order.
// Visibility is re-evaluated against the answers so far.
func (s *State) Pending() []model.Field {
	resolution := s.eval.Resolve(s.values)
	var out []model.Field
	for _, field := range s.form.Fields {
		if s.prompted[field.Name] || !resolution.Visible(field.Name) {
			continue
		}
		out = append(out, field)
	}
	return out
}

// Skip marks a field as handled without recording an answer.
func (s *State) Skip(name string) {
	s.prompted[name] = true
}

// Submission returns the answers of fields visible under the final values.
func (s *State) Submission() map[string]any {
	resolution := s.eval.Resolve(s.values)
	out := make(map[string]any, len(s.values))
	for _, field := range s.form.Fields {
		if !resolution.Visible(field.Name) {
			continue
		}
		if value, ok := s.values[field.Name]; ok {
			out[field.Name] = cloneValue(value)
		}
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case []string:
		return append([]string(nil), typed...)
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = cloneValue(v)
		}
		return clone
	default:
		return typed
	}
}
