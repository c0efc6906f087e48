package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-formengine/pkg/field"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// Name is the registry name of the terminal renderer.
const Name = "tui"

const noneOption = "(none)"

// Renderer implements render.Renderer for terminal sessions. Instead of
// markup it prompts for every visible field and returns the answers as a
// submission payload, hidden inputs included, ready to be handled by the form.
type Renderer struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	fields            *field.Registry
	policy            visibility.Policy
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		driver:       NewSurveyDriver(nil),
		outputFormat: OutputFormatJSON,
		fields:       field.NewRegistry(),
		policy:       visibility.PolicyPermissive,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		return nil, ErrNoDriver
	}
	return r, nil
}

// WithPolicy sets the hidden-source policy used while re-evaluating
// visibility between prompts.
func WithPolicy(policy visibility.Policy) Option {
	return func(r *Renderer) {
		r.policy = policy
	}
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return Name
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Render prompts for each visible field. Visibility is re-evaluated after
// every answer so conditional fields appear as soon as they apply.
func (r *Renderer) Render(ctx context.Context, view render.View, opts render.RenderOptions) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.driver == nil {
		return nil, ErrNoDriver
	}

	view = render.LocalizeView(view, opts)
	state := NewState(view, r.policy)
	drawable := subsetNames(view, opts.Subset)

	if view.Form.Title != "" {
		if err := r.driver.Notify(ctx, r.theme.InfoPrefix+view.Form.Title); err != nil {
			return nil, err
		}
	}
	for _, message := range append(append([]string(nil), view.Summary.FormErrors...), view.Summary.Messages...) {
		if err := r.driver.Notify(ctx, r.theme.InfoPrefix+message); err != nil {
			return nil, err
		}
	}

	for {
		pending := state.Pending()
		if len(pending) == 0 {
			break
		}
		next := pending[0]
		if !drawable[next.Name] {
			state.Skip(next.Name)
			continue
		}
		if err := r.promptField(ctx, next, state); err != nil {
			return nil, err
		}
	}

	values := state.Submission()
	for _, hidden := range view.Hidden {
		values[hidden.Name] = hidden.Value
	}
	if r.submitTransformer != nil {
		var err error
		values, err = r.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return r.serialize(values)
}

func (r *Renderer) promptField(ctx context.Context, def model.Field, state *State) error {
	label := displayLabel(def)
	for _, message := range state.ErrorsFor(def.Name) {
		if err := r.driver.Notify(ctx, r.theme.ErrorPrefix+label+": "+message); err != nil {
			return err
		}
	}

	switch def.Type {
	case model.FieldTypeHidden:
		state.Skip(def.Name)
		return nil
	case model.FieldTypeFile:
		state.Skip(def.Name)
		return r.driver.Notify(ctx, r.theme.InfoPrefix+label+": file uploads are not supported in terminal sessions")
	}

	current, _ := state.Value(def.Name)
	prompt, values := r.promptFor(def, current)
	for {
		answer, err := r.driver.Ask(ctx, prompt)
		if err != nil {
			return err
		}
		value := answerValue(prompt, values, answer)
		if problem := r.check(def, value); problem != nil {
			if err := r.driver.Notify(ctx, r.theme.ErrorPrefix+label+": "+problem.Error()); err != nil {
				return err
			}
			continue
		}
		state.Set(def.Name, value)
		return nil
	}
}

// promptFor maps a field to its prompt. values are the submitted values
// behind Options, in the same order.
func (r *Renderer) promptFor(def model.Field, current any) (Prompt, []string) {
	p := Prompt{
		Field:   def.Name,
		Message: displayLabel(def),
		Help:    displayHelp(def),
	}
	switch {
	case def.Type.Checkable() && len(def.Options) == 0:
		p.Kind = PromptToggle
		p.Toggled = visibility.Truthy(current)
		return p, nil
	case def.MultiValued():
		labels, values := optionLists(def.Options)
		p.Kind, p.Options = PromptMulti, labels
		p.Selected = indicesOf(values, visibility.List(current))
		return p, values
	case def.Type == model.FieldTypeSelect || def.Type == model.FieldTypeRadio:
		labels, values := optionLists(def.Options)
		if !def.Required {
			labels = append([]string{noneOption}, labels...)
			values = append([]string{""}, values...)
		}
		p.Kind, p.Options = PromptChoice, labels
		if idx := indexOf(values, visibility.Normalize(current)); idx >= 0 {
			p.Selected = []int{idx}
		}
		return p, values
	case def.Type == model.FieldTypeTextarea || def.Type == model.FieldTypeRichText:
		p.Kind = PromptLong
		p.Default = visibility.Normalize(current)
		return p, nil
	case def.Type == model.FieldTypePassword || def.Type == model.FieldTypeEncrypted || def.Encrypted:
		p.Kind = PromptSecret
		p.Help = def.Description
		p.Check = func(answer string) error { return r.check(def, answer) }
		return p, nil
	default:
		p.Kind = PromptText
		p.Default = visibility.Normalize(current)
		p.Check = func(answer string) error { return r.check(def, strings.TrimSpace(answer)) }
		return p, nil
	}
}

func answerValue(p Prompt, values []string, answer Answer) any {
	switch p.Kind {
	case PromptToggle:
		return answer.Toggled
	case PromptMulti:
		return pick(values, answer.Chosen)
	case PromptChoice:
		if chosen := pick(values, answer.Chosen); len(chosen) > 0 {
			return chosen[0]
		}
		return ""
	case PromptText:
		return strings.TrimSpace(answer.Text)
	default:
		return answer.Text
	}
}

func (r *Renderer) check(def model.Field, answer any) error {
	instance, err := r.fields.Create(def, field.Input{Value: answer, Present: true})
	if err != nil {
		return err
	}
	if problems := instance.Validate(); len(problems) > 0 {
		return errors.New(problems[0])
	}
	return nil
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.Marshal(values)
	}
}

// subsetNames lists the fields the subset allows prompting for, regardless of
// their current visibility.
func subsetNames(view render.View, subset render.FieldSubset) map[string]bool {
	all := view.Clone()
	for idx := range all.Fields {
		all.Fields[idx].Visible = true
	}
	all = render.ApplySubset(all, subset)
	out := make(map[string]bool, len(all.Fields))
	for _, fv := range all.Fields {
		out[fv.Field.Name] = fv.Visible
	}
	return out
}

func displayLabel(def model.Field) string {
	if def.Label != "" {
		return def.Label
	}
	return def.Name
}

func displayHelp(def model.Field) string {
	if def.Description != "" {
		return def.Description
	}
	return def.Placeholder
}

func optionLists(options []model.Option) (labels, values []string) {
	labels = make([]string, 0, len(options))
	values = make([]string, 0, len(options))
	for _, opt := range options {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		labels = append(labels, label)
		values = append(values, opt.Value)
	}
	return labels, values
}

func flattenForm(values map[string]any) string {
	out := url.Values{}
	for key, value := range values {
		switch v := value.(type) {
		case []string:
			for _, item := range v {
				out.Add(key, item)
			}
		case bool:
			if v {
				out.Set(key, "1")
			}
		default:
			out.Set(key, visibility.Normalize(v))
		}
	}
	return out.Encode()
}

func prettyPrint(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		switch v := values[key].(type) {
		case []string:
			fmt.Fprintf(&b, "%s=%s\n", key, strings.Join(v, ", "))
		default:
			fmt.Fprintf(&b, "%s=%v\n", key, v)
		}
	}
	return b.String()
}
