// Package html renders form views as server-side HTML using pongo2
// templates. Output is autoescaped; only visible fields are drawn, and
// secret values are never written back into the markup.
package html

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/visibility"
	"github.com/goliatone/go-formengine/pkg/visibility/expr"
)

// Name is the registry name of the HTML renderer.
const Name = "html"

// DefaultSubmitLabel is the submit button text when none is configured.
const DefaultSubmitLabel = "Save changes"

type Option func(*Renderer)

// WithTemplatesFS supplies an alternate template bundle. It must contain
// templates/form.tmpl and templates/field.tmpl, or theme partials that
// replace them.
func WithTemplatesFS(files fs.FS) Option {
	return func(r *Renderer) {
		if files != nil {
			r.templates = files
		}
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(r *Renderer) {
		if path != "" {
			r.templates = os.DirFS(path)
		}
	}
}

// WithTheme applies a fixed theme configuration.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(r *Renderer) {
		r.theme = cfg
	}
}

// WithThemeSelector resolves the theme on every render. RenderOptions.Theme,
// when set, overrides the variant.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return func(r *Renderer) {
		r.selector = selector
		r.themeName = name
		r.themeVariant = variant
	}
}

// WithSubmitLabel sets the submit button text. The label is passed through
// the translator, so it may be a translation key.
func WithSubmitLabel(label string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(label) != "" {
			r.submitLabel = label
		}
	}
}

// Renderer draws render.View values as an HTML form fragment.
type Renderer struct {
	templates fs.FS
	set       *pongo2.TemplateSet

	mu    sync.RWMutex
	cache map[string]*pongo2.Template

	theme        *theme.RendererConfig
	selector     theme.ThemeSelector
	themeName    string
	themeVariant string
	submitLabel  string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the HTML renderer.
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		templates:   TemplatesFS(),
		cache:       make(map[string]*pongo2.Template),
		submitLabel: DefaultSubmitLabel,
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.templates == nil {
		return nil, fmt.Errorf("html renderer: templates are required")
	}
	r.set = pongo2.NewSet("formengine", pongo2.NewFSLoader(r.templates))
	return r, nil
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render draws the view. Subset filtering and localisation are applied
// before drawing.
func (r *Renderer) Render(ctx context.Context, view render.View, options render.RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := r.resolveTheme(options.Theme)
	if err != nil {
		return nil, err
	}

	view = render.LocalizeView(view, options)
	view = render.ApplySubset(view, options.Subset)

	path := formTemplate
	if cfg != nil {
		if partial := strings.TrimSpace(cfg.Partials[FormPartial]); partial != "" {
			path = partial
		}
	}
	tpl, err := r.template(path)
	if err != nil {
		return nil, err
	}

	data := pongo2.Context{
		"form":         formContext(view, options),
		"fields":       fieldContexts(view),
		"hidden":       hiddenContexts(view.Hidden),
		"summary":      summaryContext(view.Summary),
		"theme":        themeContext(cfg),
		"submit_label": r.submitLabel,
	}
	for name, fn := range render.TemplateFuncs(options.Translator, options.Locale) {
		data[name] = fn
	}
	if translate, ok := data["translate"].(func(string, ...any) string); ok {
		data["submit_label"] = translate(r.submitLabel)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(data, &buf); err != nil {
		return nil, fmt.Errorf("html renderer: execute template %q: %w", path, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) template(path string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.cache[path]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[path]; ok {
		return tpl, nil
	}
	tpl, err := r.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("html renderer: load template %q: %w", path, err)
	}
	r.cache[path] = tpl
	return tpl, nil
}

func formContext(view render.View, options render.RenderOptions) map[string]any {
	return map[string]any{
		"id":          view.Form.ID,
		"title":       view.Form.Title,
		"description": view.Form.Description,
		"action":      options.Action,
		"multipart":   view.Form.Multipart(),
	}
}

func summaryContext(summary render.Summary) map[string]any {
	tone := "info"
	switch {
	case summary.Submitted && summary.Valid && summary.State != "failed":
		tone = "success"
	case summary.Submitted:
		tone = "error"
	}
	return map[string]any{
		"state":       summary.State,
		"tone":        tone,
		"messages":    summary.Messages,
		"form_errors": summary.FormErrors,
	}
}

func hiddenContexts(hidden []render.HiddenField) []map[string]any {
	out := make([]map[string]any, 0, len(hidden))
	for _, input := range render.SortedHiddenFields(render.MergeHiddenFields(nil, hidden...)) {
		out = append(out, map[string]any{"name": input.Name, "value": input.Value})
	}
	return out
}

func fieldContexts(view render.View) []map[string]any {
	visible := view.VisibleFields()
	out := make([]map[string]any, 0, len(visible))
	for _, fv := range visible {
		out = append(out, fieldContext(view.Form.ID, fv))
	}
	return out
}

func fieldContext(formID string, fv render.FieldView) map[string]any {
	field := fv.Field
	kind, inputType := fieldKind(field)
	ctx := map[string]any{
		"id":          formID + "-" + field.Name,
		"name":        field.Name,
		"type":        string(field.Type),
		"kind":        kind,
		"input_type":  inputType,
		"label":       labelOf(field),
		"description": field.Description,
		"placeholder": field.Placeholder,
		"required":    field.Required,
		"multiple":    field.Multiple,
		"encrypted":   field.Encrypted || field.Type == model.FieldTypeEncrypted,
		"pattern":     field.Pattern,
		"accept":      field.Accept,
		"min":         formatFloat(field.Min),
		"max":         formatFloat(field.Max),
		"step":        formatFloat(field.Step),
		"min_length":  positive(field.MinLength),
		"max_length":  positive(field.MaxLength),
		"rule":        expr.Format(field.Visibility),
		"errors":      fv.Errors,
		"value":       "",
	}

	switch {
	case field.Type == model.FieldTypePassword || field.Type == model.FieldTypeEncrypted || field.Encrypted:
		// never prefilled
	case kind == "toggle":
		ctx["checked"] = visibility.Truthy(fv.Value)
	case kind == "group" || kind == "select":
		selected := make(map[string]struct{})
		for _, value := range visibility.List(fv.Value) {
			selected[value] = struct{}{}
		}
		options := make([]map[string]any, 0, len(field.Options))
		for _, opt := range field.Options {
			_, isSelected := selected[opt.Value]
			options = append(options, map[string]any{
				"label":    opt.Label,
				"value":    opt.Value,
				"selected": isSelected,
			})
		}
		ctx["options"] = options
	case kind == "file":
		if stored, ok := fv.Value.(string); ok {
			ctx["stored"] = stored
		}
	default:
		ctx["value"] = visibility.Normalize(fv.Value)
	}
	return ctx
}

func fieldKind(field model.Field) (kind, inputType string) {
	switch field.Type {
	case model.FieldTypeSwitch:
		return "toggle", "checkbox"
	case model.FieldTypeCheckbox:
		if len(field.Options) == 0 {
			return "toggle", "checkbox"
		}
		return "group", "checkbox"
	case model.FieldTypeRadio:
		return "group", "radio"
	case model.FieldTypeSelect:
		return "select", ""
	case model.FieldTypeTextarea, model.FieldTypeRichText:
		return "textarea", ""
	case model.FieldTypeHidden:
		return "hidden", "hidden"
	case model.FieldTypeFile:
		return "file", "file"
	case model.FieldTypePassword, model.FieldTypeEncrypted:
		return "input", "password"
	case model.FieldTypeDateTime:
		return "input", "datetime-local"
	default:
		return "input", string(field.Type)
	}
}

func labelOf(field model.Field) string {
	if strings.TrimSpace(field.Label) != "" {
		return field.Label
	}
	return field.Name
}

func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
