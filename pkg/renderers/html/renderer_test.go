package html_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/renderers/html"
)

func settingsView(t *testing.T, values map[string]any, visible map[string]bool) render.View {
	t.Helper()

	b := builder.New("settings").Title("Plugin settings")
	b.Field("enable_feature", model.FieldTypeCheckbox, "Enable feature")
	b.Field("feature_name", model.FieldTypeText, "Feature name").Required().ShowWhen(builder.All(builder.Checked("enable_feature")))
	b.Field("api_key", model.FieldTypeEncrypted, "API key")
	b.Field("mode", model.FieldTypeSelect, "Mode").Option("Fast", "fast").Option("Safe", "safe")
	form, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	view := render.View{
		Form:   form,
		Hidden: []render.HiddenField{render.CSRFToken(form, "tok-123"), render.FormMarker(form)},
	}
	for _, field := range form.Fields {
		view.Fields = append(view.Fields, render.FieldView{
			Field:   field,
			Visible: visible[field.Name],
			Value:   values[field.Name],
		})
	}
	return view
}

func renderString(t *testing.T, r *html.Renderer, view render.View, opts render.RenderOptions) string {
	t.Helper()
	out, err := r.Render(context.Background(), view, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return string(out)
}

func TestRenderDrawsOnlyVisibleFields(t *testing.T) {
	t.Parallel()

	r, err := html.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := settingsView(t,
		map[string]any{"enable_feature": false, "mode": "safe", "api_key": "enc:v1:secret"},
		map[string]bool{"enable_feature": true, "api_key": true, "mode": true},
	)
	out := renderString(t, r, view, render.RenderOptions{Action: "/forms/settings"})

	for _, want := range []string{
		`name="_formengine_nonce_settings" value="tok-123"`,
		`name="_formengine_form" value="settings"`,
		`name="enable_feature"`,
		`action="/forms/settings"`,
		`<option value="safe" selected>Safe</option>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, `name="feature_name"`) {
		t.Fatalf("hidden field must not be drawn:\n%s", out)
	}
	if strings.Contains(out, "enc:v1:secret") {
		t.Fatalf("encrypted value leaked into markup")
	}
	if strings.Contains(out, "multipart/form-data") {
		t.Fatalf("form without file fields must not be multipart")
	}
}

func TestRenderEmitsVisibilityRuleAndErrors(t *testing.T) {
	t.Parallel()

	r, err := html.New(html.WithSubmitLabel("Store"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := settingsView(t,
		map[string]any{"enable_feature": true},
		map[string]bool{"enable_feature": true, "feature_name": true},
	)
	view.Fields[1].Errors = []string{"required"}
	view.Summary = render.Summary{Submitted: true, State: "invalid", FormErrors: []string{"Please fix the errors below."}}

	out := renderString(t, r, view, render.RenderOptions{})
	for _, want := range []string{
		`data-show-when="enable_feature"`,
		`<p class="fe-error" role="alert">required</p>`,
		`fe-notice--error`,
		`checked`,
		`>Store</button>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderEscapesValues(t *testing.T) {
	t.Parallel()

	r, err := html.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := settingsView(t,
		map[string]any{"feature_name": `"><script>alert(1)</script>`},
		map[string]bool{"feature_name": true},
	)
	out := renderString(t, r, view, render.RenderOptions{})
	if strings.Contains(out, "<script>") {
		t.Fatalf("value was not escaped:\n%s", out)
	}
}

func TestRenderMultipartForFileFields(t *testing.T) {
	t.Parallel()

	b := builder.New("media")
	b.Field("logo", model.FieldTypeFile, "Logo").Accept("image/*")
	form := b.MustBuild()

	r, err := html.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := render.View{Form: form, Fields: []render.FieldView{{Field: form.Fields[0], Visible: true, Value: "/uploads/2026/10/logo.png"}}}
	out := renderString(t, r, view, render.RenderOptions{})

	for _, want := range []string{`enctype="multipart/form-data"`, `type="file"`, `accept="image/*"`, "/uploads/2026/10/logo.png"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderAppliesSubsetAndTranslations(t *testing.T) {
	t.Parallel()

	r, err := html.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := settingsView(t, nil, map[string]bool{"enable_feature": true, "mode": true})
	view.Fields[3].Field.Metadata = map[string]string{render.LabelKeyMeta: "fields.mode"}

	translator := render.TranslatorFunc(func(_, key string, _ ...any) (string, error) {
		if key == "fields.mode" {
			return "Modo", nil
		}
		return key, nil
	})
	out := renderString(t, r, view, render.RenderOptions{
		Translator: translator,
		Subset:     render.FieldSubset{Names: []string{"mode"}},
	})
	if !strings.Contains(out, "Modo") {
		t.Fatalf("expected translated label:\n%s", out)
	}
	if strings.Contains(out, `name="enable_feature"`) {
		t.Fatalf("subset should hide enable_feature:\n%s", out)
	}
}

func themeManifest() *theme.Manifest {
	return &theme.Manifest{
		Name:    "acme",
		Version: "1.0.0",
		Tokens:  map[string]string{"brand": "#123456"},
		Assets: theme.Assets{
			Prefix: "/assets/themes/acme",
			Files:  map[string]string{html.StylesheetAsset: "form.css"},
		},
		Variants: map[string]theme.Variant{
			"dark": {
				Tokens: map[string]string{"brand": "#654321"},
				Assets: theme.Assets{Files: map[string]string{html.StylesheetAsset: "form.dark.css"}},
			},
		},
	}
}

func TestThemeConfigMergesVariant(t *testing.T) {
	t.Parallel()

	manifest := themeManifest()
	if err := theme.NewRegistry().Register(manifest); err != nil {
		t.Fatalf("register manifest: %v", err)
	}

	cfg := html.ThemeConfig(manifest, "dark")
	if cfg.CSSVars["--brand"] != "#654321" {
		t.Fatalf("variant token not applied: %v", cfg.CSSVars)
	}
	if got := cfg.AssetURL(html.StylesheetAsset); got != "/assets/themes/acme/form.dark.css" {
		t.Fatalf("unexpected stylesheet url %q", got)
	}

	base := html.ThemeConfig(manifest, "missing")
	if base.Variant != "" || base.Tokens["brand"] != "#123456" {
		t.Fatalf("unknown variant should fall back to base, got %+v", base)
	}
}

type stubSelector struct {
	manifest *theme.Manifest
	variants []string
}

func (s *stubSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.variants = append(s.variants, variant)
	return &theme.Selection{Theme: name, Variant: variant, Manifest: s.manifest}, nil
}

func TestRenderWithThemeSelector(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{manifest: themeManifest()}
	r, err := html.New(html.WithThemeSelector(selector, "acme", "light"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := settingsView(t, nil, map[string]bool{"enable_feature": true})

	out := renderString(t, r, view, render.RenderOptions{Theme: "dark"})
	for _, want := range []string{`data-theme="acme"`, `--brand: #654321;`, `href="/assets/themes/acme/form.dark.css"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if len(selector.variants) != 1 || selector.variants[0] != "dark" {
		t.Fatalf("render option should override variant, got %v", selector.variants)
	}
}

func TestThemePartialReplacesFormTemplate(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"themes/compact.tmpl": {Data: []byte(`<form data-compact="{{ form.id }}">{% for f in fields %}[{{ f.name }}]{% endfor %}</form>`)},
	}
	r, err := html.New(
		html.WithTemplatesFS(files),
		html.WithTheme(&theme.RendererConfig{Theme: "compact", Partials: map[string]string{html.FormPartial: "themes/compact.tmpl"}}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	view := settingsView(t, nil, map[string]bool{"enable_feature": true, "mode": true})
	out := renderString(t, r, view, render.RenderOptions{})
	if out != `<form data-compact="settings">[enable_feature][mode]</form>` {
		t.Fatalf("unexpected partial output: %s", out)
	}
}
