// Package form drives one form declaration through a request: rendering with
// a fresh CSRF token, then on submission the security checks, hooks,
// validation, upload moves, encryption and the final commit.
//
// A Form is built per request and is not safe for concurrent use. Every
// submission ends in exactly one terminal state.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/persistence"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/upload"
	"github.com/goliatone/go-formengine/pkg/validation"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// ErrNoFileStorage reports an upload accepted by validation with nowhere to
// move it.
var ErrNoFileStorage = errors.New("form: file storage not configured")

// State is a lifecycle state.
type State string

const (
	StateBuilt     State = "built"
	StateRendered  State = "rendered"
	StateSubmitted State = "submitted"
	StateInvalid   State = "invalid"
	StateValid     State = "valid"
	StateSaved     State = "saved"
	StateFailed    State = "failed"
)

// Terminal reports whether no further processing follows s.
func (s State) Terminal() bool {
	switch s {
	case StateInvalid, StateSaved, StateFailed:
		return true
	default:
		return false
	}
}

// Result is the outcome of one submission.
type Result struct {
	State      State             `json:"state"`
	Submitted  bool              `json:"submitted"`
	Valid      bool              `json:"valid"`
	Errors     map[string]string `json:"errors,omitempty"`
	FormErrors []string          `json:"formErrors,omitempty"`
	// Data is what was committed. Encrypted fields hold ciphertext.
	Data     map[string]any `json:"data,omitempty"`
	Messages []string       `json:"messages,omitempty"`

	security bool
}

// Err maps the terminal state onto the error taxonomy: ErrSecurity,
// ValidationErrors or ErrSaveFailed. Saved and non-terminal results return
// nil.
func (r Result) Err() error {
	switch r.State {
	case StateInvalid:
		if r.security {
			return ErrSecurity
		}
		return ValidationErrors(copyErrors(r.Errors))
	case StateFailed:
		return ErrSaveFailed
	default:
		return nil
	}
}

// Form is the lifecycle facade for one declaration.
type Form struct {
	def       model.Form
	csrf      security.CSRF
	strategy  persistence.Strategy
	cipher    security.Cipher
	files     upload.Storage
	logger    *slog.Logger
	policy    visibility.Policy
	validator *validation.Validator
	hooks     Hooks

	state     State
	submitted map[string]any
	result    *Result
}

// New binds def to its collaborators. A CSRF provider is required.
func New(def model.Form, options ...Option) (*Form, error) {
	if strings.TrimSpace(def.ID) == "" {
		return nil, errors.New("form: id is required")
	}
	f := &Form{
		def:    def.Clone(),
		logger: slog.New(slog.DiscardHandler),
		policy: visibility.PolicyPermissive,
		state:  StateBuilt,
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	if f.csrf == nil {
		return nil, ErrNoCSRF
	}
	if f.validator == nil {
		f.validator = validation.New(validation.WithPolicy(f.policy))
	}
	return f, nil
}

// Definition returns a copy of the bound declaration.
func (f *Form) Definition() model.Form {
	return f.def.Clone()
}

// State reports the current lifecycle state.
func (f *Form) State() State {
	return f.state
}

// Result returns the last submission outcome, if any.
func (f *Form) Result() (Result, bool) {
	if f.result == nil {
		return Result{}, false
	}
	return *f.result, true
}

// Render builds the view for the current state. Visibility is evaluated
// against defaults merged with stored values and, after a rejected
// submission, the submitted values. Encrypted and password values are never
// exposed.
func (f *Form) Render(ctx context.Context) (render.View, error) {
	if err := ctx.Err(); err != nil {
		return render.View{}, err
	}
	values, err := f.currentValues(ctx)
	if err != nil {
		return render.View{}, err
	}
	if f.result != nil && f.result.State != StateSaved && f.submitted != nil {
		for key, value := range f.submitted {
			values[key] = value
		}
		values = validation.Normalize(f.def, values)
	}

	token, err := f.csrf.Mint(f.def.ID)
	if err != nil {
		return render.View{}, fmt.Errorf("form: mint csrf token for %q: %w", f.def.ID, err)
	}

	resolution := visibility.New(f.def, visibility.WithPolicy(f.policy)).Resolve(values)
	view := render.View{
		Form:   f.def.Clone(),
		Fields: make([]render.FieldView, 0, len(f.def.Fields)),
		Hidden: []render.HiddenField{render.FormMarker(f.def), render.CSRFToken(f.def, token)},
	}
	for _, def := range f.def.Fields {
		fv := render.FieldView{Field: def.Clone(), Visible: resolution.Visible(def.Name)}
		if value, ok := values[def.Name]; ok && !secret(def) {
			fv.Value = value
		}
		if f.result != nil {
			if msg, ok := f.result.Errors[def.Name]; ok {
				fv.Errors = []string{msg}
			}
		}
		view.Fields = append(view.Fields, fv)
	}

	if f.state == StateBuilt {
		f.state = StateRendered
	}
	view.Summary = f.summary()
	return view, nil
}

// Handle runs a submission through the lifecycle. Requests that are not
// submissions leave the form untouched.
func (f *Form) Handle(ctx context.Context, req request.Request) Result {
	if req == nil || !req.IsSubmission() {
		return Result{State: f.state}
	}
	f.state = StateSubmitted
	f.submitted = nil

	values := req.Values()
	token := tokenValue(values[f.def.CSRFTokenName()])
	delete(values, f.def.CSRFTokenName())
	delete(values, model.FormIDFieldName)

	if !f.csrf.Verify(token, f.def.ID) {
		f.logger.WarnContext(ctx, "form: csrf verification failed", "form", f.def.ID)
		return f.rejectSecurity()
	}
	actor := req.Actor()
	if err := actor.Require(f.def.Capability); err != nil {
		f.logger.WarnContext(ctx, "form: capability denied",
			"form", f.def.ID, "actor", actor.ID, "capability", f.def.Capability)
		return f.rejectSecurity()
	}

	sub := &Submission{Form: f.def.Clone(), Actor: actor, Values: values}
	if err := runHooks(ctx, f.hooks.BeforeValidate, sub); err != nil {
		f.submitted = sub.Values
		return f.rejectHook(ctx, "before_validate", err, sub)
	}
	f.submitted = sub.Values

	stored, err := f.storedValues(ctx)
	if err != nil {
		return f.fail(ctx, "load", err)
	}
	outcome := f.validator.Validate(f.def, sub.Values, validation.Options{
		Files:  f.collectFiles(req),
		Stored: stored,
	})
	sub.Data = outcome.Data
	sub.Errors = outcome.Errors
	if err := runHooks(ctx, f.hooks.AfterValidate, sub); err != nil {
		return f.rejectHook(ctx, "after_validate", err, sub)
	}
	if len(sub.Errors) > 0 {
		errs, formErrs := f.mapErrors(sub.Errors)
		return f.finish(Result{State: StateInvalid, Submitted: true, Errors: errs, FormErrors: formErrs})
	}
	f.state = StateValid

	data, err := f.prepare(ctx, sub.Data, stored)
	if err != nil {
		return f.fail(ctx, "prepare", err)
	}
	sub.Data = data
	if err := runHooks(ctx, f.hooks.BeforeSave, sub); err != nil {
		return f.fail(ctx, "before_save", err)
	}
	if f.strategy == nil {
		return f.fail(ctx, "commit", ErrNoStrategy)
	}
	if err := f.strategy.Commit(ctx, sub.Data); err != nil {
		return f.fail(ctx, "commit", err)
	}
	if err := runHooks(ctx, f.hooks.AfterSave, sub); err != nil {
		f.logger.WarnContext(ctx, "form: after_save hook failed", "form", f.def.ID, "error", err)
	}
	f.logger.InfoContext(ctx, "form: saved", "form", f.def.ID, "strategy", f.strategy.Name(), "fields", len(sub.Data))

	return f.finish(Result{
		State:     StateSaved,
		Submitted: true,
		Valid:     true,
		Data:      sub.Data,
		Messages:  nonEmpty(f.def.SuccessMessage),
	})
}

func (f *Form) rejectSecurity() Result {
	f.submitted = nil
	return f.finish(Result{
		State:      StateInvalid,
		Submitted:  true,
		FormErrors: []string{SecurityMessage},
		security:   true,
	})
}

// rejectHook turns a validate hook error into an Invalid result. Field
// errors returned as ValidationErrors are surfaced, with keys naming no
// declared field moved to the form-level messages; anything else is logged
// and reported with the form's error message.
func (f *Form) rejectHook(ctx context.Context, stage string, err error, sub *Submission) Result {
	var fieldErrs ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		errs, formErrs := f.mapErrors(sub.Errors, fieldErrs)
		return f.finish(Result{State: StateInvalid, Submitted: true, Errors: errs, FormErrors: formErrs})
	}
	f.logger.ErrorContext(ctx, "form: hook failed", "form", f.def.ID, "stage", stage, "error", err)
	errs, formErrs := f.mapErrors(sub.Errors)
	return f.finish(Result{
		State:      StateInvalid,
		Submitted:  true,
		Errors:     errs,
		FormErrors: render.MergeFormErrors(formErrs, f.def.ErrorMessage),
	})
}

// mapErrors merges error sets, earlier sets winning per field, and splits
// them into declared-field errors and form-level messages.
func (f *Form) mapErrors(sets ...map[string]string) (map[string]string, []string) {
	payload := make(map[string][]string)
	for _, set := range sets {
		for name, message := range set {
			payload[name] = append(payload[name], message)
		}
	}
	mapping := render.MapErrors(f.def, payload)
	var errs map[string]string
	for name, messages := range mapping.Fields {
		if errs == nil {
			errs = make(map[string]string, len(mapping.Fields))
		}
		errs[name] = messages[0]
	}
	return errs, mapping.Form
}

func (f *Form) fail(ctx context.Context, stage string, err error) Result {
	attrs := []any{"form", f.def.ID, "stage", stage, "error", err}
	if f.strategy != nil {
		attrs = append(attrs, "strategy", f.strategy.Name())
	}
	f.logger.ErrorContext(ctx, "form: submission failed", attrs...)
	return f.finish(Result{
		State:     StateFailed,
		Submitted: true,
		Valid:     f.state == StateValid,
		Messages:  nonEmpty(f.def.ErrorMessage),
	})
}

func (f *Form) finish(res Result) Result {
	f.state = res.State
	stored := res
	f.result = &stored
	return res
}

func (f *Form) summary() render.Summary {
	if f.result == nil {
		return render.Summary{State: string(f.state)}
	}
	return render.Summary{
		State:      string(f.result.State),
		Submitted:  f.result.Submitted,
		Valid:      f.result.Valid,
		Errors:     copyErrors(f.result.Errors),
		FormErrors: append([]string(nil), f.result.FormErrors...),
		Messages:   append([]string(nil), f.result.Messages...),
	}
}

// currentValues returns declared defaults overlaid with stored values.
func (f *Form) currentValues(ctx context.Context) (map[string]any, error) {
	values := make(map[string]any, len(f.def.Fields))
	for _, def := range f.def.Fields {
		if def.Default != nil {
			values[def.Name] = def.Default
		}
	}
	stored, err := f.storedValues(ctx)
	if err != nil {
		return nil, err
	}
	for key, value := range stored {
		values[key] = value
	}
	return values, nil
}

func (f *Form) storedValues(ctx context.Context) (map[string]any, error) {
	if f.strategy == nil {
		return map[string]any{}, nil
	}
	stored, err := f.strategy.Load(ctx, f.def.FieldNames())
	if err != nil {
		return nil, fmt.Errorf("form: load %q: %w", f.def.ID, err)
	}
	return stored, nil
}

func (f *Form) collectFiles(req request.Request) map[string][]upload.File {
	var out map[string][]upload.File
	for _, def := range f.def.Fields {
		if def.Type != model.FieldTypeFile {
			continue
		}
		files := req.Files(def.Name)
		if len(files) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]upload.File)
		}
		out[def.Name] = files
	}
	return out
}

// prepare moves accepted uploads and enciphers encrypted fields. A blank
// encrypted value keeps the stored secret instead of overwriting it.
func (f *Form) prepare(ctx context.Context, data, stored map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	for _, def := range f.def.Fields {
		value, ok := out[def.Name]
		if !ok {
			continue
		}
		if files, isUpload := value.([]upload.File); isUpload {
			ref, err := f.moveFiles(ctx, def, files)
			if err != nil {
				return nil, err
			}
			out[def.Name] = ref
			continue
		}
		if !def.Encrypted {
			continue
		}
		if blank(value) {
			if _, has := stored[def.Name]; has {
				delete(out, def.Name)
				continue
			}
		}
		enc, err := f.encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("form: encrypt %q: %w", def.Name, err)
		}
		out[def.Name] = enc
	}
	return out, nil
}

func (f *Form) moveFiles(ctx context.Context, def model.Field, files []upload.File) (any, error) {
	if f.files == nil {
		return nil, ErrNoFileStorage
	}
	refs := make([]string, 0, len(files))
	for _, file := range files {
		ref, err := f.files.Accept(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("form: store upload for %q: %w", def.Name, err)
		}
		refs = append(refs, ref.String())
	}
	if def.Multiple {
		return refs, nil
	}
	if len(refs) == 0 {
		return "", nil
	}
	return refs[0], nil
}

func (f *Form) encrypt(value any) (any, error) {
	if f.cipher == nil {
		return nil, ErrNoCipher
	}
	switch v := value.(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			enc, err := f.cipher.Encrypt(item)
			if err != nil {
				return nil, err
			}
			out = append(out, enc)
		}
		return out, nil
	case string:
		return f.cipher.Encrypt(v)
	default:
		return f.cipher.Encrypt(fmt.Sprint(v))
	}
}

func secret(def model.Field) bool {
	return def.Encrypted || def.Type == model.FieldTypePassword || def.Type == model.FieldTypeEncrypted
}

func blank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func tokenValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func nonEmpty(message string) []string {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return []string{message}
}

func copyErrors(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
