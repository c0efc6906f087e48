package builder

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/model"
)

func TestBuildDeclaresFieldsInOrder(t *testing.T) {
	t.Parallel()

	b := New("settings").Title("Settings")
	b.Field("enable", model.FieldTypeCheckbox, "Enable")
	b.Field("name", model.FieldTypeText, "Name").Required().ShowWhen(All(Checked("enable")))
	b.Field("api_key", model.FieldTypeEncrypted, "API key")

	form, err := b.Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"enable", "name", "api_key"}, form.FieldNames()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
	name, _ := form.Field("name")
	want := model.VisibilityRule{{{Field: "enable", Operator: model.OperatorIsChecked}}}
	if diff := cmp.Diff(want, name.Visibility); diff != "" {
		t.Fatalf("visibility mismatch (-want +got):\n%s", diff)
	}
	if key, _ := form.Field("api_key"); !key.Encrypted {
		t.Fatalf("encrypted type must imply the encrypted flag")
	}
	if form.Storage.Kind != model.StorageOptions || form.Storage.Prefix != "settings_" {
		t.Fatalf("unexpected default storage: %+v", form.Storage)
	}
	if form.Capability != model.DefaultCapability {
		t.Fatalf("expected default capability, got %q", form.Capability)
	}
	if form.SuccessMessage == "" || form.ErrorMessage == "" {
		t.Fatalf("expected default messages")
	}
	if got := form.CSRFTokenName(); got != "_formengine_nonce_settings" {
		t.Fatalf("unexpected csrf token name %q", got)
	}
}

func TestDuplicateFieldIsReported(t *testing.T) {
	t.Parallel()

	b := New("dup")
	b.Field("title", model.FieldTypeText, "Title")
	b.Field("title", model.FieldTypeNumber, "Again").Required()

	_, err := b.Build()
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	if !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("expected ErrDuplicateField, got %v", err)
	}
	var dup *DuplicateFieldError
	if !errors.As(err, &dup) || dup.Name != "title" {
		t.Fatalf("expected DuplicateFieldError for title, got %v", err)
	}
}

func TestDuplicateHandleDoesNotAlterOriginal(t *testing.T) {
	t.Parallel()

	b := New("dup")
	b.Field("title", model.FieldTypeText, "Title")
	b.Field("title", model.FieldTypeText, "Again").Required()

	field := *b.fields[0]
	if field.Required || field.Label != "Title" {
		t.Fatalf("detached handle leaked into the declared field: %+v", field)
	}
}

func TestBuildSnapshotsAreIndependent(t *testing.T) {
	t.Parallel()

	b := New("snap")
	handle := b.Field("color", model.FieldTypeSelect, "Color").Options(model.Option{Label: "Red", Value: "red"})

	first := b.MustBuild()
	handle.Option("Blue", "blue").Required()
	second := b.MustBuild()

	firstField, _ := first.Field("color")
	secondField, _ := second.Field("color")
	if len(firstField.Options) != 1 || firstField.Required {
		t.Fatalf("first snapshot changed after build: %+v", firstField)
	}
	if len(secondField.Options) != 2 || !secondField.Required {
		t.Fatalf("second snapshot missing updates: %+v", secondField)
	}

	firstField.Options[0].Label = "mutated"
	again := b.MustBuild()
	if field, _ := again.Field("color"); field.Options[0].Label != "Red" {
		t.Fatalf("mutating a snapshot reached the builder")
	}
}

func TestMultipartDerivedFromFileFields(t *testing.T) {
	t.Parallel()

	plain := New("plain")
	plain.Field("a", model.FieldTypeText, "A")
	if plain.MustBuild().Multipart() {
		t.Fatalf("form without file fields must not be multipart")
	}

	upload := New("upload")
	upload.Field("a", model.FieldTypeText, "A")
	upload.Field("avatar", model.FieldTypeFile, "Avatar").Accept("image/*")
	if !upload.MustBuild().Multipart() {
		t.Fatalf("form with a file field must be multipart")
	}
}

func TestShowWhenExpr(t *testing.T) {
	t.Parallel()

	b := New("expr")
	b.Field("enable", model.FieldTypeCheckbox, "Enable")
	b.Field("plan", model.FieldTypeSelect, "Plan").Option("Free", "free").Option("Pro", "pro")
	b.Field("seats", model.FieldTypeNumber, "Seats").ShowWhenExpr(`enable && plan == "pro"`)

	form, err := b.Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	seats, _ := form.Field("seats")
	want := model.VisibilityRule{{
		{Field: "enable", Operator: model.OperatorIsChecked},
		{Field: "plan", Operator: model.OperatorEquals, Value: "pro"},
	}}
	if diff := cmp.Diff(want, seats.Visibility); diff != "" {
		t.Fatalf("visibility mismatch (-want +got):\n%s", diff)
	}

	bad := New("expr")
	bad.Field("x", model.FieldTypeText, "X").ShowWhenExpr("a = 1")
	if _, err := bad.Build(); err == nil || !strings.Contains(err.Error(), `field "x"`) {
		t.Fatalf("expected expr error naming the field, got %v", err)
	}
}

func TestBuildRejectsInvalidDeclarations(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Builder){
		"unknown type":     func(b *Builder) { b.Field("a", "slider", "A") },
		"bad name":         func(b *Builder) { b.Field("1abc", model.FieldTypeText, "A") },
		"bad pattern":      func(b *Builder) { b.Field("a", model.FieldTypeText, "A").Pattern("([") },
		"min over max":     func(b *Builder) { b.Field("a", model.FieldTypeNumber, "A").Min(10).Max(1) },
		"select no opts":   func(b *Builder) { b.Field("a", model.FieldTypeSelect, "A") },
		"bad operator":     func(b *Builder) { b.Field("a", model.FieldTypeText, "A").ShowWhen(All(model.Condition{Field: "b", Operator: "like"})) },
		"self reference":   func(b *Builder) { b.Field("a", model.FieldTypeText, "A").ShowWhen(All(Checked("a"))) },
		"duplicate option": func(b *Builder) { b.Field("a", model.FieldTypeRadio, "A").Option("X", "x").Option("Y", "x") },
		"entity no id":     func(b *Builder) { b.StoreEntityMeta("") },
	}
	for name, declare := range cases {
		declare := declare
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b := New("bad")
			declare(b)
			if _, err := b.Build(); err == nil {
				t.Fatalf("expected build error")
			}
		})
	}
}

func TestBuildDetectsCycles(t *testing.T) {
	t.Parallel()

	b := New("cycle")
	b.Field("a", model.FieldTypeCheckbox, "A").ShowWhen(All(Checked("b")))
	b.Field("b", model.FieldTypeCheckbox, "B").ShowWhen(All(Checked("c")))
	b.Field("c", model.FieldTypeCheckbox, "C").ShowWhen(All(Checked("a")))

	_, err := b.Build()
	if err == nil || !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestUndeclaredReferenceIsWarning(t *testing.T) {
	t.Parallel()

	b := New("warn")
	b.Field("a", model.FieldTypeText, "A").ShowWhen(All(Checked("ghost")))
	if _, err := b.Build(); err != nil {
		t.Fatalf("undeclared references must not fail the build: %v", err)
	}
	warnings := b.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "ghost") {
		t.Fatalf("expected one warning about ghost, got %v", warnings)
	}
}

func TestStorageSelection(t *testing.T) {
	t.Parallel()

	form := New("meta").StoreEntityMeta("42").MustBuild()
	if form.Storage.Kind != model.StorageEntityMeta || form.Storage.EntityID != "42" {
		t.Fatalf("unexpected storage %+v", form.Storage)
	}
	form = New("cb").StoreCallback().MustBuild()
	if form.Storage.Kind != model.StorageCallback {
		t.Fatalf("unexpected storage %+v", form.Storage)
	}
	form = New("kv").StoreOptions("acme_").MustBuild()
	if form.Storage.Prefix != "acme_" {
		t.Fatalf("unexpected storage %+v", form.Storage)
	}
}

func TestDecoratorsRunBeforeChecks(t *testing.T) {
	t.Parallel()

	b := New("settings")
	b.Field("name", model.FieldTypeText, "Name")
	b.Decorate(model.DecoratorFunc(func(f *model.Form) error {
		f.Title = "Decorated"
		f.Fields[0].Label = "Display name"
		return nil
	}))
	form, err := b.Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	name, _ := form.Field("name")
	if form.Title != "Decorated" || name.Label != "Display name" {
		t.Fatalf("decorator changes missing: %q / %q", form.Title, name.Label)
	}

	broken := New("broken")
	broken.Field("name", model.FieldTypeText, "Name")
	broken.Decorate(model.DecoratorFunc(func(f *model.Form) error {
		f.Fields[0].Type = "nonsense"
		return nil
	}))
	if _, err := broken.Build(); err == nil {
		t.Fatalf("expected decorated fields to be checked")
	}

	failing := New("failing").Decorate(model.DecoratorFunc(func(*model.Form) error {
		return errors.New("lookup failed")
	}))
	if _, err := failing.Build(); err == nil || !strings.Contains(err.Error(), "lookup failed") {
		t.Fatalf("expected decorator error, got %v", err)
	}
}
