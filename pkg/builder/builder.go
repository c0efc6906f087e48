package builder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/visibility/expr"
)

const (
	defaultSuccessMessage = "Settings saved."
	defaultErrorMessage   = "Unable to save settings. Please try again."
)

var (
	// ErrDuplicateField is matched by DuplicateFieldError via errors.Is.
	ErrDuplicateField = errors.New("builder: duplicate field")
	errFormIDMissing  = errors.New("builder: form id is required")
	fieldNamePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)
)

// DuplicateFieldError reports a second declaration of the same field name.
type DuplicateFieldError struct {
	Name string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("builder: field %q declared more than once", e.Name)
}

// Is matches ErrDuplicateField.
func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}

// Builder accumulates a form declaration. Handles returned by Field write into
// builder-owned state only; Build returns an independent snapshot, so later
// handle calls never leak into forms that were already built. A Builder is
// not safe for concurrent use.
type Builder struct {
	form       model.Form
	fields     []*model.Field
	index      map[string]int
	errs       []error
	warnings   []string
	decorators []model.Decorator
}

// New starts a form declaration with the supplied id.
func New(id string) *Builder {
	id = strings.TrimSpace(id)
	return &Builder{
		form: model.Form{
			ID: id,
			Storage: model.Storage{
				Kind:   model.StorageOptions,
				Prefix: id + "_",
			},
		},
		index: make(map[string]int),
	}
}

// Title sets the human readable form title.
func (b *Builder) Title(title string) *Builder {
	b.form.Title = title
	return b
}

// Description sets the form description.
func (b *Builder) Description(description string) *Builder {
	b.form.Description = description
	return b
}

// SuccessMessage overrides the message shown after a successful save.
func (b *Builder) SuccessMessage(message string) *Builder {
	b.form.SuccessMessage = message
	return b
}

// ErrorMessage overrides the generic message shown when persistence fails.
func (b *Builder) ErrorMessage(message string) *Builder {
	b.form.ErrorMessage = message
	return b
}

// Capability sets the capability an actor needs to submit the form.
func (b *Builder) Capability(capability string) *Builder {
	b.form.Capability = strings.TrimSpace(capability)
	return b
}

// Metadata attaches free-form metadata to the form.
func (b *Builder) Metadata(key, value string) *Builder {
	if b.form.Metadata == nil {
		b.form.Metadata = make(map[string]string)
	}
	b.form.Metadata[key] = value
	return b
}

// StoreOptions commits each field under prefix+name in the key-value store.
func (b *Builder) StoreOptions(prefix string) *Builder {
	b.form.Storage = model.Storage{Kind: model.StorageOptions, Prefix: prefix}
	return b
}

// StoreEntityMeta commits each field as metadata attached to entityID.
func (b *Builder) StoreEntityMeta(entityID string) *Builder {
	b.form.Storage = model.Storage{Kind: model.StorageEntityMeta, EntityID: strings.TrimSpace(entityID)}
	return b
}

// StoreCallback hands validated data to a caller supplied function. The
// function itself is attached to the form facade.
func (b *Builder) StoreCallback() *Builder {
	b.form.Storage = model.Storage{Kind: model.StorageCallback}
	return b
}

// Field declares a new field and returns a handle for chained configuration.
// Declaring a name twice records a DuplicateFieldError reported by Build; the
// returned handle is detached so its calls have no effect.
func (b *Builder) Field(name string, fieldType model.FieldType, label string) *FieldHandle {
	name = strings.TrimSpace(name)
	if _, exists := b.index[name]; exists {
		b.errs = append(b.errs, &DuplicateFieldError{Name: name})
		return &FieldHandle{builder: b, field: &model.Field{Name: name, Type: fieldType}, detached: true}
	}

	field := &model.Field{
		Name:  name,
		Type:  fieldType,
		Label: label,
	}
	if fieldType == model.FieldTypeEncrypted {
		field.Encrypted = true
	}
	b.index[name] = len(b.fields)
	b.fields = append(b.fields, field)
	return &FieldHandle{builder: b, field: field}
}

// Add declares a fully populated field, applying the same checks as Field.
func (b *Builder) Add(field model.Field) *FieldHandle {
	handle := b.Field(field.Name, field.Type, field.Label)
	if handle.detached {
		return handle
	}
	copied := field.Clone()
	copied.Name = handle.field.Name
	if copied.Type == model.FieldTypeEncrypted {
		copied.Encrypted = true
	}
	*handle.field = copied
	return handle
}

// Decorate registers decorators that run on every Build, after defaults are
// applied and before the declaration is checked.
func (b *Builder) Decorate(decorators ...model.Decorator) *Builder {
	b.decorators = append(b.decorators, decorators...)
	return b
}

// Warnings lists non-fatal problems found by the last Build call, such as
// conditions referencing undeclared fields.
func (b *Builder) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// Build validates the declaration and returns an independent snapshot.
func (b *Builder) Build() (model.Form, error) {
	b.warnings = nil
	errs := append([]error(nil), b.errs...)

	if b.form.ID == "" {
		errs = append(errs, errFormIDMissing)
	}

	form := b.form.Clone()
	form.Fields = make([]model.Field, 0, len(b.fields))
	for _, field := range b.fields {
		form.Fields = append(form.Fields, field.Clone())
	}
	if form.SuccessMessage == "" {
		form.SuccessMessage = defaultSuccessMessage
	}
	if form.ErrorMessage == "" {
		form.ErrorMessage = defaultErrorMessage
	}
	if form.Capability == "" {
		form.Capability = model.DefaultCapability
	}
	if form.Storage.Kind == "" {
		form.Storage = model.Storage{Kind: model.StorageOptions, Prefix: form.ID + "_"}
	}
	if err := model.ApplyDecorators(&form, b.decorators...); err != nil {
		errs = append(errs, fmt.Errorf("builder: decorate form %q: %w", form.ID, err))
	}
	if form.Storage.Kind == model.StorageEntityMeta && form.Storage.EntityID == "" {
		errs = append(errs, errors.New("builder: entity metadata storage requires an entity id"))
	}

	for _, field := range form.Fields {
		errs = append(errs, validateField(field)...)
	}

	declared := make(map[string]struct{}, len(form.Fields))
	for _, field := range form.Fields {
		declared[field.Name] = struct{}{}
	}
	for _, field := range form.Fields {
		for _, ref := range field.Visibility.References() {
			if _, ok := declared[ref]; !ok {
				b.warnings = append(b.warnings, fmt.Sprintf("field %q: condition references undeclared field %q", field.Name, ref))
			}
		}
	}
	if cycle := findCycle(form.Fields); len(cycle) > 0 {
		errs = append(errs, fmt.Errorf("builder: visibility rules form a cycle: %s", strings.Join(cycle, " -> ")))
	}

	if err := errors.Join(errs...); err != nil {
		return model.Form{}, err
	}
	return form, nil
}

// MustBuild panics when Build fails. Useful for static declarations.
func (b *Builder) MustBuild() model.Form {
	form, err := b.Build()
	if err != nil {
		panic(err)
	}
	return form
}

func (b *Builder) recordError(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

func validateField(field model.Field) []error {
	var errs []error
	if field.Name == "" {
		return []error{errors.New("builder: field name is required")}
	}
	if !fieldNamePattern.MatchString(field.Name) {
		errs = append(errs, fmt.Errorf("builder: field %q: name must start with a letter or underscore and contain only letters, digits, '_' or '-'", field.Name))
	}
	if !field.Type.Valid() {
		errs = append(errs, fmt.Errorf("builder: field %q: unknown type %q", field.Name, field.Type))
	}
	if field.Pattern != "" {
		if _, err := regexp.Compile(field.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("builder: field %q: invalid pattern: %w", field.Name, err))
		}
	}
	if field.Min != nil && field.Max != nil && *field.Min > *field.Max {
		errs = append(errs, fmt.Errorf("builder: field %q: min %v exceeds max %v", field.Name, *field.Min, *field.Max))
	}
	if field.Step != nil && *field.Step <= 0 {
		errs = append(errs, fmt.Errorf("builder: field %q: step must be positive", field.Name))
	}
	if field.MinLength < 0 || field.MaxLength < 0 || (field.MaxLength > 0 && field.MinLength > field.MaxLength) {
		errs = append(errs, fmt.Errorf("builder: field %q: invalid length bounds", field.Name))
	}
	if (field.Type == model.FieldTypeSelect || field.Type == model.FieldTypeRadio) && len(field.Options) == 0 {
		errs = append(errs, fmt.Errorf("builder: field %q: %s fields require options", field.Name, field.Type))
	}
	if field.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("builder: field %q: max size must not be negative", field.Name))
	}
	seen := make(map[string]struct{}, len(field.Options))
	for _, opt := range field.Options {
		if _, dup := seen[opt.Value]; dup {
			errs = append(errs, fmt.Errorf("builder: field %q: duplicate option value %q", field.Name, opt.Value))
		}
		seen[opt.Value] = struct{}{}
	}
	for gIdx, group := range field.Visibility {
		for cIdx, cond := range group {
			if strings.TrimSpace(cond.Field) == "" {
				errs = append(errs, fmt.Errorf("builder: field %q: condition %d.%d has no field", field.Name, gIdx, cIdx))
			}
			if !cond.Operator.Valid() {
				errs = append(errs, fmt.Errorf("builder: field %q: condition %d.%d has unknown operator %q", field.Name, gIdx, cIdx, cond.Operator))
			}
			if cond.Field == field.Name {
				errs = append(errs, fmt.Errorf("builder: field %q: condition %d.%d references itself", field.Name, gIdx, cIdx))
			}
		}
	}
	return errs
}

// findCycle returns the names along the first visibility reference cycle, or
// nil when the dependency graph is acyclic. Self references are reported by
// validateField instead.
func findCycle(fields []model.Field) []string {
	edges := make(map[string][]string, len(fields))
	for _, field := range fields {
		for _, ref := range field.Visibility.References() {
			if ref != field.Name {
				edges[field.Name] = append(edges[field.Name], ref)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(fields))
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(name string) bool {
		color[name] = grey
		stack = append(stack, name)
		for _, next := range edges[name] {
			switch color[next] {
			case grey:
				for idx, candidate := range stack {
					if candidate == next {
						cycle = append(append([]string(nil), stack[idx:]...), next)
						break
					}
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, field := range fields {
		if color[field.Name] == white && visit(field.Name) {
			return cycle
		}
	}
	return nil
}

// parseRule compiles a textual rule, recording errors against the builder.
func (b *Builder) parseRule(fieldName, rule string) model.VisibilityRule {
	compiled, err := expr.Parse(rule)
	if err != nil {
		b.recordError(fmt.Errorf("builder: field %q: %w", fieldName, err))
		return nil
	}
	return compiled
}
