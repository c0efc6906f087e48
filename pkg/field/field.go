// Package field turns field declarations plus submitted input into validated,
// sanitised values. Each supported type has a constructor registered in an
// explicit table; callers may add or replace constructors per registry.
package field

import (
	"fmt"
	"sort"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/upload"
)

// Input carries what arrived for one field.
type Input struct {
	// Value is the raw submitted value: a string, a []string for multi-valued
	// inputs, or an already typed value from non-HTTP callers.
	Value any
	// Present reports whether the field appeared in the submission.
	Present bool
	// Files holds uploads for file fields.
	Files []upload.File
	// Stored is the previously persisted value, if any. File fields use it to
	// relax the required check.
	Stored any
}

// Instance is a declared field bound to submitted input.
type Instance interface {
	Field() model.Field
	// Validate returns human readable problems; empty means valid.
	Validate() []string
	// Value returns the sanitised value to persist.
	Value() any
}

// Constructor builds an Instance for one declaration.
type Constructor func(def model.Field, in Input) Instance

// Registry maps field types to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[model.FieldType]Constructor
	strict       *bluemonday.Policy
	rich         *bluemonday.Policy
}

// NewRegistry returns a registry populated with constructors for every
// built-in field type.
func NewRegistry() *Registry {
	r := &Registry{
		constructors: make(map[model.FieldType]Constructor),
		strict:       bluemonday.StrictPolicy(),
		rich:         bluemonday.UGCPolicy(),
	}
	for fieldType, ctor := range r.builtins() {
		r.constructors[fieldType] = ctor
	}
	return r
}

func (r *Registry) builtins() map[model.FieldType]Constructor {
	return map[model.FieldType]Constructor{
		model.FieldTypeText:      r.newText,
		model.FieldTypeTextarea:  r.newText,
		model.FieldTypeHidden:    r.newText,
		model.FieldTypeEmail:     r.newText,
		model.FieldTypeURL:       r.newText,
		model.FieldTypeColor:     r.newText,
		model.FieldTypeRichText:  r.newRichText,
		model.FieldTypePassword:  newSecret,
		model.FieldTypeEncrypted: newSecret,
		model.FieldTypeNumber:    newNumber,
		model.FieldTypeRange:     newNumber,
		model.FieldTypeSelect:    newChoice,
		model.FieldTypeRadio:     newChoice,
		model.FieldTypeCheckbox:  newChoice,
		model.FieldTypeSwitch:    newChoice,
		model.FieldTypeDate:      newTemporal,
		model.FieldTypeTime:      newTemporal,
		model.FieldTypeDateTime:  newTemporal,
		model.FieldTypeFile:      newFile,
	}
}

// Register adds a constructor for a type that has none.
func (r *Registry) Register(fieldType model.FieldType, ctor Constructor) error {
	if fieldType == "" {
		return fmt.Errorf("field: type is required")
	}
	if ctor == nil {
		return fmt.Errorf("field: constructor for %q is nil", fieldType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[fieldType]; exists {
		return fmt.Errorf("field: constructor for %q already registered", fieldType)
	}
	r.constructors[fieldType] = ctor
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(fieldType model.FieldType, ctor Constructor) {
	if err := r.Register(fieldType, ctor); err != nil {
		panic(err)
	}
}

// Replace swaps the constructor for a type, registering it when missing.
func (r *Registry) Replace(fieldType model.FieldType, ctor Constructor) {
	if ctor == nil {
		return
	}
	r.mu.Lock()
	r.constructors[fieldType] = ctor
	r.mu.Unlock()
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []model.FieldType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.FieldType, 0, len(r.constructors))
	for fieldType := range r.constructors {
		out = append(out, fieldType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create binds def to the submitted input.
func (r *Registry) Create(def model.Field, in Input) (Instance, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[def.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("field: no constructor for type %q (field %q)", def.Type, def.Name)
	}
	return ctor(def, in), nil
}

// SanitizeText strips all markup from a plain text value.
func (r *Registry) SanitizeText(raw string) string {
	return sanitizePlain(r.strict, raw)
}
