package field

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/upload"
)

func floatPtr(v float64) *float64 { return &v }

func create(t *testing.T, def model.Field, in Input) Instance {
	t.Helper()
	inst, err := NewRegistry().Create(def, in)
	if err != nil {
		t.Fatalf("Create(%s): %v", def.Type, err)
	}
	return inst
}

func TestRegistryCoversEveryType(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	for _, fieldType := range model.FieldTypes() {
		if _, err := registry.Create(model.Field{Name: "x", Type: fieldType}, Input{}); err != nil {
			t.Fatalf("missing constructor for %s: %v", fieldType, err)
		}
	}
	if _, err := registry.Create(model.Field{Name: "x", Type: "slider"}, Input{}); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}

func TestRegistryRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register(model.FieldTypeText, newSecret); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := registry.Register("slider", newNumber); err != nil {
		t.Fatalf("Register: %v", err)
	}
	inst, err := registry.Create(model.Field{Name: "s", Type: "slider"}, Input{Value: "4", Present: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.Value() != 4.0 {
		t.Fatalf("custom constructor not used, value %v", inst.Value())
	}
}

func TestRequiredMessage(t *testing.T) {
	t.Parallel()

	cases := []model.Field{
		{Name: "a", Type: model.FieldTypeText, Required: true},
		{Name: "a", Type: model.FieldTypeNumber, Required: true},
		{Name: "a", Type: model.FieldTypeSelect, Required: true, Options: []model.Option{{Label: "A", Value: "a"}}},
		{Name: "a", Type: model.FieldTypeCheckbox, Required: true},
		{Name: "a", Type: model.FieldTypeDate, Required: true},
		{Name: "a", Type: model.FieldTypeFile, Required: true},
		{Name: "a", Type: model.FieldTypeEncrypted, Required: true},
	}
	for _, def := range cases {
		got := create(t, def, Input{Value: "", Present: true}).Validate()
		if diff := cmp.Diff([]string{MessageRequired}, got); diff != "" {
			t.Fatalf("%s required mismatch (-want +got):\n%s", def.Type, diff)
		}
	}
}

func TestTextSanitisesAndChecksConstraints(t *testing.T) {
	t.Parallel()

	def := model.Field{Name: "title", Type: model.FieldTypeText, MinLength: 3, MaxLength: 10}
	inst := create(t, def, Input{Value: "  <b>Tom &amp; Ann</b><script>x</script> ", Present: true})
	if inst.Value() != "Tom & Ann" {
		t.Fatalf("unexpected sanitised value %q", inst.Value())
	}
	if problems := inst.Validate(); len(problems) != 0 {
		t.Fatalf("unexpected problems %v", problems)
	}

	for _, raw := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"&amp;lt;img src=x onerror=alert(1)&amp;gt;",
	} {
		got := create(t, model.Field{Name: "title", Type: model.FieldTypeText}, Input{Value: raw, Present: true}).Value()
		if s, _ := got.(string); strings.ContainsAny(s, "<>") {
			t.Fatalf("encoded markup %q came back live as %q", raw, s)
		}
	}
	if got := create(t, model.Field{Name: "title", Type: model.FieldTypeText}, Input{Value: "a < b", Present: true}).Value(); got != "a < b" {
		t.Fatalf("plain comparison text should survive, got %q", got)
	}

	short := create(t, def, Input{Value: "ab", Present: true}).Validate()
	if len(short) != 1 || !strings.Contains(short[0], "at least 3") {
		t.Fatalf("expected too short, got %v", short)
	}

	pattern := model.Field{Name: "code", Type: model.FieldTypeText, Pattern: `[A-Z]{3}`}
	if got := create(t, pattern, Input{Value: "ABCD", Present: true}).Validate(); len(got) != 1 {
		t.Fatalf("pattern must match the whole value, got %v", got)
	}
	if got := create(t, pattern, Input{Value: "ABC", Present: true}).Validate(); len(got) != 0 {
		t.Fatalf("unexpected pattern problems %v", got)
	}
}

func TestFormatChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fieldType model.FieldType
		value     string
		valid     bool
	}{
		{model.FieldTypeEmail, "ann@example.com", true},
		{model.FieldTypeEmail, "Ann <ann@example.com>", false},
		{model.FieldTypeEmail, "nope", false},
		{model.FieldTypeURL, "https://example.com/a", true},
		{model.FieldTypeURL, "javascript:alert(1)", false},
		{model.FieldTypeColor, "#AABBCC", true},
		{model.FieldTypeColor, "#abc", true},
		{model.FieldTypeColor, "red", false},
		{model.FieldTypeDate, "2024-02-29", true},
		{model.FieldTypeDate, "2023-02-29", false},
		{model.FieldTypeTime, "23:59", true},
		{model.FieldTypeTime, "24:01", false},
		{model.FieldTypeDateTime, "2024-01-02T10:30", true},
		{model.FieldTypeDateTime, "2024-01-02", false},
	}
	for _, tc := range cases {
		got := create(t, model.Field{Name: "v", Type: tc.fieldType}, Input{Value: tc.value, Present: true}).Validate()
		if (len(got) == 0) != tc.valid {
			t.Fatalf("%s %q: valid=%v, problems %v", tc.fieldType, tc.value, tc.valid, got)
		}
	}
}

func TestRichTextKeepsSafeMarkup(t *testing.T) {
	t.Parallel()

	inst := create(t, model.Field{Name: "body", Type: model.FieldTypeRichText}, Input{
		Value:   `<p onclick="x()">Hello <strong>world</strong></p><script>alert(1)</script>`,
		Present: true,
	})
	if got := inst.Value(); got != "<p>Hello <strong>world</strong></p>" {
		t.Fatalf("unexpected rich text %q", got)
	}
}

func TestSecretsAreNotSanitised(t *testing.T) {
	t.Parallel()

	raw := " p<a>&ss "
	inst := create(t, model.Field{Name: "pw", Type: model.FieldTypePassword}, Input{Value: raw, Present: true})
	if inst.Value() != raw {
		t.Fatalf("password must be kept verbatim, got %q", inst.Value())
	}
}

func TestNumberBoundsAndStep(t *testing.T) {
	t.Parallel()

	def := model.Field{Name: "n", Type: model.FieldTypeRange, Min: floatPtr(1), Max: floatPtr(10), Step: floatPtr(0.5)}
	cases := map[string]int{"1": 0, "5.5": 0, "10": 0, "0": 1, "11": 1, "2.25": 1, "abc": 1}
	for raw, want := range cases {
		if got := create(t, def, Input{Value: raw, Present: true}).Validate(); len(got) != want {
			t.Fatalf("%q: expected %d problems, got %v", raw, want, got)
		}
	}
	if v := create(t, def, Input{Value: "2.5", Present: true}).Value(); v != 2.5 {
		t.Fatalf("unexpected value %v", v)
	}
	if v := create(t, def, Input{Present: false}).Value(); v != nil {
		t.Fatalf("empty number should yield nil, got %v", v)
	}
}

func TestChoiceMembership(t *testing.T) {
	t.Parallel()

	options := []model.Option{{Label: "Red", Value: "red"}, {Label: "Blue", Value: "blue"}}

	single := model.Field{Name: "c", Type: model.FieldTypeSelect, Options: options}
	if got := create(t, single, Input{Value: "green", Present: true}).Validate(); len(got) != 1 {
		t.Fatalf("expected invalid option, got %v", got)
	}
	if got := create(t, single, Input{Value: []string{"red", "blue"}, Present: true}).Validate(); len(got) != 1 {
		t.Fatalf("single select must reject several values, got %v", got)
	}

	group := model.Field{Name: "c", Type: model.FieldTypeCheckbox, Options: options}
	inst := create(t, group, Input{Value: []string{"red", "blue", "red"}, Present: true})
	if len(inst.Validate()) != 0 {
		t.Fatalf("unexpected problems %v", inst.Validate())
	}
	if diff := cmp.Diff([]string{"red", "blue"}, inst.Value()); diff != "" {
		t.Fatalf("group value mismatch (-want +got):\n%s", diff)
	}
	if got := create(t, group, Input{Value: []string{"red", "pink"}, Present: true}).Validate(); len(got) != 1 {
		t.Fatalf("expected invalid member, got %v", got)
	}
}

func TestBooleanChoice(t *testing.T) {
	t.Parallel()

	def := model.Field{Name: "enable", Type: model.FieldTypeSwitch}
	cases := map[any]bool{"on": true, "1": true, true: true, "0": false, false: false, "": false}
	for raw, want := range cases {
		inst := create(t, def, Input{Value: raw, Present: true})
		if len(inst.Validate()) != 0 || inst.Value() != want {
			t.Fatalf("%v: got %v problems %v", raw, inst.Value(), inst.Validate())
		}
	}
	if got := create(t, def, Input{Value: "maybe", Present: true}).Validate(); len(got) != 1 {
		t.Fatalf("expected malformed boolean, got %v", got)
	}
}

func TestFileChecks(t *testing.T) {
	t.Parallel()

	def := model.Field{Name: "doc", Type: model.FieldTypeFile, Accept: "*", MaxSize: 1024, Required: true}

	if got := create(t, def, Input{Stored: "2024/01/x.pdf"}).Validate(); len(got) != 0 {
		t.Fatalf("stored value should satisfy required, got %v", got)
	}
	shell := create(t, def, Input{Files: []upload.File{{Name: "shell.php", Size: 10}}, Present: true}).Validate()
	if len(shell) != 1 || !strings.Contains(shell[0], "not allowed") {
		t.Fatalf("expected dangerous name rejection, got %v", shell)
	}

	image := model.Field{Name: "photo", Type: model.FieldTypeFile, Accept: "image/*", MaxSize: 4096}
	ok := create(t, image, Input{Files: []upload.File{{Name: "photo.jpg", Size: 100, ContentType: "image/jpeg"}}, Present: true})
	if got := ok.Validate(); len(got) != 0 {
		t.Fatalf("expected photo to pass, got %v", got)
	}
	two := create(t, image, Input{Files: []upload.File{{Name: "a.jpg", Size: 1}, {Name: "b.jpg", Size: 1}}, Present: true})
	if got := two.Validate(); len(got) != 1 {
		t.Fatalf("expected single file rejection, got %v", got)
	}
}
