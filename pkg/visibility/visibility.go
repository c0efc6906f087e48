package visibility

import (
	"github.com/goliatone/go-formengine/pkg/model"
)

// Policy controls which value a hidden field contributes when another field's
// rule references it.
type Policy int

const (
	// PolicyPermissive uses a hidden field's effective value (submitted if
	// present, default otherwise) in downstream rules. This is the default.
	PolicyPermissive Policy = iota
	// PolicyStrict forces hidden source fields to their declared default, so a
	// client cannot steer a gated branch by posting inputs it never rendered.
	PolicyStrict
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	default:
		return "permissive"
	}
}

// ParsePolicy maps configuration strings onto a Policy. Unknown values fall
// back to PolicyPermissive.
func ParsePolicy(raw string) Policy {
	if raw == "strict" {
		return PolicyStrict
	}
	return PolicyPermissive
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithPolicy selects the hidden-source policy.
func WithPolicy(policy Policy) Option {
	return func(e *Evaluator) {
		e.policy = policy
	}
}

// Evaluator decides which fields of a form are visible for a given set of
// current values. It holds no per-request state and is safe for concurrent
// use.
type Evaluator struct {
	form   model.Form
	index  map[string]int
	cyclic map[string]bool
	policy Policy
}

// New constructs an Evaluator for form.
func New(form model.Form, options ...Option) *Evaluator {
	e := &Evaluator{
		form:  form,
		index: make(map[string]int, len(form.Fields)),
	}
	for idx, field := range form.Fields {
		if _, exists := e.index[field.Name]; !exists {
			e.index[field.Name] = idx
		}
	}
	e.cyclic = e.cycles()
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

// cycles marks every field whose rule can reach back to itself through the
// fields it references.
func (e *Evaluator) cycles() map[string]bool {
	out := make(map[string]bool)
	for _, field := range e.form.Fields {
		seen := make(map[string]bool)
		stack := e.references(field.Name)
		for len(stack) > 0 {
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if name == field.Name {
				out[field.Name] = true
				break
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			stack = append(stack, e.references(name)...)
		}
	}
	return out
}

func (e *Evaluator) references(name string) []string {
	idx, ok := e.index[name]
	if !ok {
		return nil
	}
	var out []string
	for _, group := range e.form.Fields[idx].Visibility {
		for _, cond := range group {
			out = append(out, cond.Field)
		}
	}
	return out
}

// Policy reports the configured hidden-source policy.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// IsVisible reports whether the named field is visible given values. Values
// hold submitted input keyed by field name; missing keys fall back to the
// declared default. Undeclared names are never visible.
func (e *Evaluator) IsVisible(name string, values map[string]any) bool {
	return e.Resolve(values).Visible(name)
}

// VisibleSet returns the names of every visible field as a set.
func (e *Evaluator) VisibleSet(values map[string]any) map[string]bool {
	names := e.Resolve(values).VisibleNames()
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = true
	}
	return out
}

// Resolve evaluates every field against values and returns the memoised
// outcome.
func (e *Evaluator) Resolve(values map[string]any) *Resolution {
	res := &Resolution{
		evaluator: e,
		values:    values,
		state:     make(map[string]visitState, len(e.form.Fields)),
		visible:   make(map[string]bool, len(e.form.Fields)),
	}
	for _, field := range e.form.Fields {
		res.Visible(field.Name)
	}
	return res
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Resolution is the visibility outcome for one set of values. It is not safe
// for concurrent use.
type Resolution struct {
	evaluator *Evaluator
	values    map[string]any
	state     map[string]visitState
	visible   map[string]bool
}

// Visible reports whether name is visible. Fields caught in a reference cycle
// resolve as hidden.
func (r *Resolution) Visible(name string) bool {
	idx, ok := r.evaluator.index[name]
	if !ok || r.evaluator.cyclic[name] {
		return false
	}
	switch r.state[name] {
	case visited:
		return r.visible[name]
	case visiting:
		return false
	}

	r.state[name] = visiting
	field := r.evaluator.form.Fields[idx]
	ok = r.evalRule(field.Visibility)
	r.state[name] = visited
	r.visible[name] = ok
	return ok
}

// VisibleNames returns visible field names in declaration order.
func (r *Resolution) VisibleNames() []string {
	var out []string
	for _, field := range r.evaluator.form.Fields {
		if r.Visible(field.Name) {
			out = append(out, field.Name)
		}
	}
	return out
}

// Value returns the effective value of a declared field: the submitted value
// when present, the default otherwise. Under PolicyStrict a hidden field
// always yields its default. Undeclared fields report false.
func (r *Resolution) Value(name string) (any, bool) {
	idx, ok := r.evaluator.index[name]
	if !ok {
		return nil, false
	}
	field := r.evaluator.form.Fields[idx]
	if r.evaluator.policy == PolicyStrict && len(field.Visibility) > 0 && !r.Visible(name) {
		return field.Default, true
	}
	if value, present := r.values[name]; present {
		return value, true
	}
	return field.Default, true
}

func (r *Resolution) evalRule(rule model.VisibilityRule) bool {
	if len(rule) == 0 {
		return true
	}
	for _, group := range rule {
		if r.evalGroup(group) {
			return true
		}
	}
	return false
}

func (r *Resolution) evalGroup(group model.ConditionGroup) bool {
	for _, cond := range group {
		if !r.evalCondition(cond) {
			return false
		}
	}
	return true
}

func (r *Resolution) evalCondition(cond model.Condition) bool {
	value, declared := r.Value(cond.Field)
	return Compare(cond.Operator, value, declared, cond.Value)
}

// Compare applies a single operator. declared reports whether the referenced
// field exists; undeclared fields are never checked and compare as empty.
// Unknown operators evaluate to false.
func Compare(op model.Operator, value any, declared bool, operand any) bool {
	switch op {
	case model.OperatorIsChecked:
		return declared && Truthy(value)
	case model.OperatorNotChecked:
		return declared && !Truthy(value)
	case model.OperatorEquals:
		if !declared {
			value = nil
		}
		return Normalize(value) == Normalize(operand)
	case model.OperatorNotEquals:
		if !declared {
			value = nil
		}
		return Normalize(value) != Normalize(operand)
	case model.OperatorIn:
		if !declared {
			value = nil
		}
		return memberOf(value, operand)
	case model.OperatorNotIn:
		if !declared {
			value = nil
		}
		return !memberOf(value, operand)
	default:
		return false
	}
}

func memberOf(value any, operand any) bool {
	set := make(map[string]struct{})
	for _, item := range Set(operand) {
		set[item] = struct{}{}
	}
	if len(set) == 0 {
		return false
	}
	for _, candidate := range List(value) {
		if _, ok := set[candidate]; ok {
			return true
		}
	}
	return false
}
