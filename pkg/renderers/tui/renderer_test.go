package tui

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/render"
)

// stubDriver replays scripted answers per prompt kind.
type stubDriver struct {
	texts        []string
	secrets      []string
	longs        []string
	toggles      []bool
	choices      [][]int
	infoMessages []string
	prompts      []string
}

// Ask mimics survey for single-line prompts: answers failing Check are
// rejected and the next scripted answer is used.
func (s *stubDriver) Ask(_ context.Context, p Prompt) (Answer, error) {
	s.prompts = append(s.prompts, p.Message)
	switch p.Kind {
	case PromptToggle:
		if len(s.toggles) == 0 {
			return Answer{}, errors.New("no toggle scripted")
		}
		answer := Answer{Toggled: s.toggles[0]}
		s.toggles = s.toggles[1:]
		return answer, nil
	case PromptChoice, PromptMulti:
		if len(s.choices) == 0 {
			return Answer{}, errors.New("no choice scripted")
		}
		answer := Answer{Chosen: s.choices[0]}
		s.choices = s.choices[1:]
		return answer, nil
	case PromptLong:
		if len(s.longs) == 0 {
			return Answer{}, errors.New("no long text scripted")
		}
		answer := Answer{Text: s.longs[0]}
		s.longs = s.longs[1:]
		return answer, nil
	}

	queue := &s.texts
	if p.Kind == PromptSecret {
		queue = &s.secrets
	}
	for {
		if len(*queue) == 0 {
			return Answer{}, errors.New("no input scripted")
		}
		text := (*queue)[0]
		*queue = (*queue)[1:]
		if p.Check != nil {
			if err := p.Check(text); err != nil {
				s.infoMessages = append(s.infoMessages, err.Error())
				continue
			}
		}
		return Answer{Text: text}, nil
	}
}

func (s *stubDriver) Notify(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func viewOf(form model.Form, values map[string]any) render.View {
	view := render.View{Form: form, Hidden: []render.HiddenField{render.CSRFToken(form, "tok"), render.FormMarker(form)}}
	for _, field := range form.Fields {
		view.Fields = append(view.Fields, render.FieldView{Field: field, Visible: true, Value: values[field.Name]})
	}
	return view
}

func decode(t *testing.T, out []byte) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return got
}

func TestRenderPromptsConditionalFieldsAsTheyAppear(t *testing.T) {
	t.Parallel()

	b := builder.New("settings").Title("Settings")
	b.Field("enable_feature", model.FieldTypeCheckbox, "Enable feature")
	b.Field("feature_name", model.FieldTypeText, "Feature name").Required().ShowWhen(builder.All(builder.Checked("enable_feature")))
	b.Field("mode", model.FieldTypeSelect, "Mode").Required().Option("Fast", "fast").Option("Safe", "safe")
	form := b.MustBuild()

	driver := &stubDriver{toggles: []bool{true}, texts: []string{"", "Beta"}, choices: [][]int{{1}}}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := r.Render(context.Background(), viewOf(form, nil), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := map[string]any{
		"enable_feature":             true,
		"feature_name":               "Beta",
		"mode":                       "safe",
		"_formengine_nonce_settings": "tok",
		"_formengine_form":           "settings",
	}
	if diff := cmp.Diff(want, decode(t, out)); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Settings", "required"}, driver.infoMessages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderSkipsFieldsThatStayHidden(t *testing.T) {
	t.Parallel()

	b := builder.New("settings")
	b.Field("enable_feature", model.FieldTypeCheckbox, "Enable feature")
	b.Field("feature_name", model.FieldTypeText, "Feature name").ShowWhen(builder.All(builder.Checked("enable_feature")))
	form := b.MustBuild()

	driver := &stubDriver{toggles: []bool{false}}
	r, err := New(WithPromptDriver(driver), WithOutputFormat(OutputFormatFormURLEncoded))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render(context.Background(), viewOf(form, map[string]any{"feature_name": "stale"}), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	values, err := url.ParseQuery(string(out))
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if values.Has("feature_name") || values.Has("enable_feature") {
		t.Fatalf("unexpected values in %v", values)
	}
	if diff := cmp.Diff([]string{"Enable feature"}, driver.prompts); diff != "" {
		t.Fatalf("prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderChoicesAndSecrets(t *testing.T) {
	t.Parallel()

	b := builder.New("profile")
	b.Field("roles", model.FieldTypeCheckbox, "Roles").Option("Admin", "admin").Option("Editor", "editor").Option("Viewer", "viewer")
	b.Field("api_key", model.FieldTypeEncrypted, "API key")
	b.Field("bio", model.FieldTypeTextarea, "Bio").MaxLength(5)
	b.Field("avatar", model.FieldTypeFile, "Avatar")
	form := b.MustBuild()

	driver := &stubDriver{
		choices: [][]int{{0, 2}},
		secrets: []string{"s3cret"},
		longs:   []string{"too long", "short"},
	}
	r, err := New(WithPromptDriver(driver), WithTheme(Theme{ErrorPrefix: "! "}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render(context.Background(), viewOf(form, nil), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := decode(t, out)
	if diff := cmp.Diff([]any{"admin", "viewer"}, got["roles"]); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
	if got["api_key"] != "s3cret" || got["bio"] != "short" {
		t.Fatalf("unexpected values %v", got)
	}
	if _, ok := got["avatar"]; ok {
		t.Fatalf("file fields are not collected")
	}
	if driver.infoMessages[0] != "! Bio: must be at most 5 characters" {
		t.Fatalf("expected length problem first, got %v", driver.infoMessages)
	}
}

func TestRenderHonoursSubset(t *testing.T) {
	t.Parallel()

	b := builder.New("settings")
	b.Field("title", model.FieldTypeText, "Title").Meta(render.GroupMeta, "general")
	b.Field("color", model.FieldTypeColor, "Color").Meta(render.GroupMeta, "appearance")
	form := b.MustBuild()

	driver := &stubDriver{texts: []string{"#ABCDEF"}}
	r, err := New(WithPromptDriver(driver), WithOutputFormat(OutputFormatPrettyText))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render(context.Background(), viewOf(form, map[string]any{"title": "Kept"}), render.RenderOptions{
		Subset: render.FieldSubset{Groups: []string{"appearance"}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "_formengine_form=settings\n_formengine_nonce_settings=tok\ncolor=#ABCDEF\ntitle=Kept\n"
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderPropagatesAbort(t *testing.T) {
	t.Parallel()

	form := builder.New("settings").Field("title", model.FieldTypeText, "Title").End().MustBuild()
	r, err := New(WithPromptDriver(&stubDriver{}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := r.Render(context.Background(), viewOf(form, nil), render.RenderOptions{}); err == nil {
		t.Fatalf("expected driver error")
	}
}

func TestPromptForMapsFieldKinds(t *testing.T) {
	t.Parallel()

	b := builder.New("settings")
	b.Field("api_key", model.FieldTypeEncrypted, "API key")
	b.Field("mode", model.FieldTypeSelect, "Mode").Option("Fast", "fast").Option("Safe", "safe")
	b.Field("title", model.FieldTypeText, "Title").MaxLength(3)
	form := b.MustBuild()

	r, err := New(WithPromptDriver(&stubDriver{}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	secret, _ := r.promptFor(form.Fields[0], "enc:v1:stored")
	if secret.Kind != PromptSecret || secret.Default != "" {
		t.Fatalf("secret prompt leaked a default: %+v", secret)
	}

	choice, values := r.promptFor(form.Fields[1], "safe")
	if diff := cmp.Diff([]string{noneOption, "Fast", "Safe"}, choice.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, choice.Selected); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
	if got := answerValue(choice, values, Answer{Chosen: []int{0}}); got != "" {
		t.Fatalf("none option should submit an empty value, got %v", got)
	}

	text, _ := r.promptFor(form.Fields[2], nil)
	if text.Check == nil || text.Check(" abcd ") == nil || text.Check(" abc ") != nil {
		t.Fatalf("text check should trim and enforce the length limit")
	}
}
