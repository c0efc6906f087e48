package form_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/form"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/persistence"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/store"
	"github.com/goliatone/go-formengine/pkg/upload"
)

var (
	secret = []byte("0123456789abcdef0123456789abcdef")
	admin  = security.Actor{ID: "1", Capabilities: []string{model.DefaultCapability}}
)

type fixture struct {
	def    model.Form
	csrf   *security.TokenCSRF
	cipher *security.FieldCipher
	kv     *store.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b := builder.New("settings")
	b.Field("enable", model.FieldTypeCheckbox, "Enable")
	b.Field("name", model.FieldTypeText, "Name").Required().ShowWhen(builder.All(builder.Checked("enable")))
	b.Field("api_key", model.FieldTypeEncrypted, "API key")
	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	csrf, err := security.NewTokenCSRF(secret)
	if err != nil {
		t.Fatalf("NewTokenCSRF: %v", err)
	}
	cipher, err := security.NewFieldCipher(secret)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	return fixture{def: def, csrf: csrf, cipher: cipher, kv: store.NewMemory()}
}

func (fx fixture) form(t *testing.T, options ...form.Option) *form.Form {
	t.Helper()
	base := []form.Option{
		form.WithCSRF(fx.csrf),
		form.WithStrategy(persistence.NewKeyValue(fx.kv, fx.def.Storage.Prefix)),
		form.WithEncryption(fx.cipher),
	}
	f, err := form.New(fx.def, append(base, options...)...)
	if err != nil {
		t.Fatalf("form.New: %v", err)
	}
	return f
}

func (fx fixture) submission(t *testing.T, data map[string]any) request.Static {
	t.Helper()
	token, err := fx.csrf.Mint(fx.def.ID)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	values := map[string]any{
		fx.def.CSRFTokenName(): token,
		model.FormIDFieldName:  fx.def.ID,
	}
	for key, value := range data {
		values[key] = value
	}
	return request.Static{Submission: true, Data: values, Principal: admin}
}

func TestNewRequiresCSRF(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	if _, err := form.New(fx.def); !errors.Is(err, form.ErrNoCSRF) {
		t.Fatalf("expected ErrNoCSRF, got %v", err)
	}
}

func TestValidSubmissionIsSaved(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	f := fx.form(t)
	ctx := context.Background()

	res := f.Handle(ctx, fx.submission(t, map[string]any{"enable": "1", "name": "Ann", "api_key": "s3cret"}))
	if res.State != form.StateSaved || !res.Valid || res.Err() != nil {
		t.Fatalf("expected saved, got %+v", res)
	}
	if diff := cmp.Diff([]string{fx.def.SuccessMessage}, res.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if f.State() != form.StateSaved {
		t.Fatalf("facade state = %s", f.State())
	}

	if got, _, _ := fx.kv.Get(ctx, "settings_name"); got != "Ann" {
		t.Fatalf("name not committed: %v", got)
	}
	if got, _, _ := fx.kv.Get(ctx, "settings_enable"); got != true {
		t.Fatalf("enable not committed: %v", got)
	}
	stored, _, _ := fx.kv.Get(ctx, "settings_api_key")
	ciphertext, _ := stored.(string)
	if !security.IsEncrypted(ciphertext) || strings.Contains(ciphertext, "s3cret") {
		t.Fatalf("encrypted field stored in clear: %v", stored)
	}
	plain, err := fx.cipher.Decrypt(ciphertext, admin)
	if err != nil || plain != "s3cret" {
		t.Fatalf("decrypt = %q, %v", plain, err)
	}
	if _, leaked, _ := fx.kv.Get(ctx, "settings_"+model.FormIDFieldName); leaked {
		t.Fatalf("form marker must not be committed")
	}
}

func TestTamperedTokenShortCircuits(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	hookRan := false
	f := fx.form(t, form.BeforeValidate(func(context.Context, *form.Submission) error {
		hookRan = true
		return nil
	}))

	req := fx.submission(t, map[string]any{"enable": "1", "name": ""})
	req.Data[fx.def.CSRFTokenName()] = req.Data[fx.def.CSRFTokenName()].(string) + "x"

	res := f.Handle(context.Background(), req)
	if res.State != form.StateInvalid {
		t.Fatalf("expected invalid, got %s", res.State)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("security failure must not populate field errors: %v", res.Errors)
	}
	if diff := cmp.Diff([]string{form.SecurityMessage}, res.FormErrors); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(res.Err(), form.ErrSecurity) {
		t.Fatalf("expected ErrSecurity, got %v", res.Err())
	}
	if hookRan {
		t.Fatalf("hooks must not run after a security failure")
	}
	if keys := fx.kv.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be committed, got %v", keys)
	}
}

func TestCapabilityDenied(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	f := fx.form(t)
	req := fx.submission(t, map[string]any{"enable": "1", "name": "Ann"})
	req.Principal = security.Actor{ID: "7", Capabilities: []string{"read"}}

	res := f.Handle(context.Background(), req)
	if res.State != form.StateInvalid || len(res.Errors) != 0 || !errors.Is(res.Err(), form.ErrSecurity) {
		t.Fatalf("expected security rejection, got %+v", res)
	}
}

func TestEnableNameLifecycle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		values map[string]any
		state  form.State
		errors map[string]string
		data   map[string]any
	}{
		{
			name:   "disabled",
			values: map[string]any{"enable": false},
			state:  form.StateSaved,
			data:   map[string]any{"enable": false},
		},
		{
			name:   "enabled without name",
			values: map[string]any{"enable": true, "name": ""},
			state:  form.StateInvalid,
			errors: map[string]string{"name": "required"},
		},
		{
			name:   "enabled with name",
			values: map[string]any{"enable": true, "name": "Ann"},
			state:  form.StateSaved,
			data:   map[string]any{"enable": true, "name": "Ann"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t)
			res := fx.form(t).Handle(context.Background(), fx.submission(t, tc.values))
			if res.State != tc.state {
				t.Fatalf("state = %s, want %s (%+v)", res.State, tc.state, res)
			}
			if diff := cmp.Diff(tc.errors, res.Errors); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.data, res.Data); diff != "" {
				t.Fatalf("data mismatch (-want +got):\n%s", diff)
			}
			if tc.state == form.StateInvalid && len(fx.kv.Keys()) != 0 {
				t.Fatalf("invalid submissions must not be committed")
			}
		})
	}
}

func TestCommitFailureIsLoggedNotShown(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	failing := persistence.NewCallback(func(context.Context, map[string]any) error {
		return errors.New("disk full")
	}, nil)

	f := fx.form(t, form.WithStrategy(failing), form.WithLogger(logger))
	res := f.Handle(context.Background(), fx.submission(t, map[string]any{"enable": "1", "name": "Ann", "api_key": "s3cret"}))
	if res.State != form.StateFailed || !errors.Is(res.Err(), form.ErrSaveFailed) {
		t.Fatalf("expected failed, got %+v", res)
	}
	if diff := cmp.Diff([]string{fx.def.ErrorMessage}, res.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if res.Data != nil {
		t.Fatalf("failed results carry no data: %v", res.Data)
	}
	if !strings.Contains(logs.String(), "disk full") {
		t.Fatalf("cause should be logged, got %s", logs.String())
	}
	if strings.Contains(logs.String(), "s3cret") {
		t.Fatalf("plaintext leaked into logs")
	}
}

func TestHooks(t *testing.T) {
	t.Parallel()

	t.Run("before validate rewrites values", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		f := fx.form(t, form.BeforeValidate(func(_ context.Context, sub *form.Submission) error {
			sub.Values["name"] = strings.ToUpper(sub.Values["name"].(string))
			return nil
		}))
		res := f.Handle(context.Background(), fx.submission(t, map[string]any{"enable": "1", "name": "ann"}))
		if res.State != form.StateSaved || res.Data["name"] != "ANN" {
			t.Fatalf("unexpected result %+v", res)
		}
	})

	t.Run("after validate adds field errors", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		f := fx.form(t, form.AfterValidate(func(_ context.Context, sub *form.Submission) error {
			if sub.Data["name"] == "root" {
				return form.ValidationErrors{"name": "reserved"}
			}
			return nil
		}))
		res := f.Handle(context.Background(), fx.submission(t, map[string]any{"enable": "1", "name": "root"}))
		if diff := cmp.Diff(map[string]string{"name": "reserved"}, res.Errors); diff != "" {
			t.Fatalf("errors mismatch (-want +got):\n%s", diff)
		}
		var fieldErrs form.ValidationErrors
		if !errors.As(res.Err(), &fieldErrs) || fieldErrs["name"] != "reserved" {
			t.Fatalf("expected ValidationErrors, got %v", res.Err())
		}
	})

	t.Run("hook errors for undeclared names are form level", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		f := fx.form(t, form.AfterValidate(func(context.Context, *form.Submission) error {
			return form.ValidationErrors{"name": "reserved", "_form": "Quota exceeded.", "ghost": "Try later."}
		}))
		res := f.Handle(context.Background(), fx.submission(t, map[string]any{"enable": "1", "name": "Ann"}))
		if diff := cmp.Diff(map[string]string{"name": "reserved"}, res.Errors); diff != "" {
			t.Fatalf("errors mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Quota exceeded.", "Try later."}, res.FormErrors); diff != "" {
			t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("validate hook failure is form level", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		f := fx.form(t, form.BeforeValidate(func(context.Context, *form.Submission) error {
			return errors.New("quota lookup failed")
		}))
		res := f.Handle(context.Background(), fx.submission(t, map[string]any{"enable": "1", "name": "Ann"}))
		if res.State != form.StateInvalid || len(res.Errors) != 0 {
			t.Fatalf("unexpected result %+v", res)
		}
		if diff := cmp.Diff([]string{fx.def.ErrorMessage}, res.FormErrors); diff != "" {
			t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("before save failure", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		var sawCipher bool
		f := fx.form(t, form.BeforeSave(func(_ context.Context, sub *form.Submission) error {
			value, _ := sub.Data["api_key"].(string)
			sawCipher = security.IsEncrypted(value)
			return errors.New("locked")
		}))
		res := f.Handle(context.Background(), fx.submission(t, map[string]any{"api_key": "s3cret"}))
		if res.State != form.StateFailed {
			t.Fatalf("expected failed, got %s", res.State)
		}
		if !sawCipher {
			t.Fatalf("before_save must observe enciphered values")
		}
		if len(fx.kv.Keys()) != 0 {
			t.Fatalf("nothing should be committed")
		}
	})
}

func TestBlankEncryptedValueKeepsStoredSecret(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	first := fx.form(t).Handle(ctx, fx.submission(t, map[string]any{"api_key": "s3cret"}))
	if first.State != form.StateSaved {
		t.Fatalf("first save failed: %+v", first)
	}
	before, _, _ := fx.kv.Get(ctx, "settings_api_key")

	second := fx.form(t).Handle(ctx, fx.submission(t, map[string]any{"api_key": ""}))
	if second.State != form.StateSaved {
		t.Fatalf("second save failed: %+v", second)
	}
	after, _, _ := fx.kv.Get(ctx, "settings_api_key")
	if before != after {
		t.Fatalf("blank submission overwrote the stored secret")
	}
}

func TestStoredValueLoadFailureFails(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	var committed bool
	strategy := persistence.NewCallback(
		func(context.Context, map[string]any) error {
			committed = true
			return nil
		},
		func(context.Context, []string) (map[string]any, error) {
			return nil, errors.New("backend down")
		},
	)
	res := fx.form(t, form.WithStrategy(strategy)).Handle(context.Background(), fx.submission(t, map[string]any{"api_key": ""}))
	if res.State != form.StateFailed || res.Valid {
		t.Fatalf("expected failed before validation, got %+v", res)
	}
	if !errors.Is(res.Err(), form.ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", res.Err())
	}
	if committed {
		t.Fatalf("a blank secret must not be committed when stored values are unknown")
	}
}

func TestRenderMintsTokenAndHidesSecrets(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	ciphertext, err := fx.cipher.Encrypt("s3cret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_ = fx.kv.Set(ctx, "settings_enable", true)
	_ = fx.kv.Set(ctx, "settings_api_key", ciphertext)

	f := fx.form(t)
	view, err := f.Render(ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if f.State() != form.StateRendered || view.Summary.State != string(form.StateRendered) {
		t.Fatalf("expected rendered state, got %s / %s", f.State(), view.Summary.State)
	}

	hidden := make(map[string]string)
	for _, field := range view.Hidden {
		hidden[field.Name] = field.Value
	}
	if hidden[model.FormIDFieldName] != "settings" {
		t.Fatalf("missing form marker: %v", hidden)
	}
	if !fx.csrf.Verify(hidden[fx.def.CSRFTokenName()], "settings") {
		t.Fatalf("rendered token must verify")
	}

	name, _ := view.Field("name")
	if !name.Visible {
		t.Fatalf("stored enable=true should reveal name")
	}
	key, _ := view.Field("api_key")
	if key.Value != nil {
		t.Fatalf("encrypted value exposed: %v", key.Value)
	}
}

func TestRenderAfterInvalidShowsSubmission(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	f := fx.form(t)
	ctx := context.Background()
	if res := f.Handle(ctx, fx.submission(t, map[string]any{"enable": "1", "name": ""})); res.State != form.StateInvalid {
		t.Fatalf("expected invalid, got %s", res.State)
	}
	view, err := f.Render(ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	name, _ := view.Field("name")
	if !name.Visible || len(name.Errors) != 1 || name.Errors[0] != "required" {
		t.Fatalf("expected visible name with error, got %+v", name)
	}
	if view.Summary.State != string(form.StateInvalid) || !view.Summary.Submitted || view.Summary.Valid {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
}

func TestNonSubmissionLeavesFormUntouched(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	f := fx.form(t)
	res := f.Handle(context.Background(), request.Static{})
	if res.State != form.StateBuilt || res.Submitted {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := f.Result(); ok {
		t.Fatalf("no result should be recorded")
	}
}

func TestUploadsMoveAfterValidation(t *testing.T) {
	t.Parallel()

	b := builder.New("media")
	b.Field("logo", model.FieldTypeFile, "Logo").Accept("image/*").MaxSize(1024)
	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	csrf, _ := security.NewTokenCSRF(secret)
	storage, err := upload.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"), upload.WithBaseURL("/uploads"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	kv := store.NewMemory()

	stage := func(name string) upload.File {
		path := filepath.Join(t.TempDir(), "tmp-"+name)
		if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		return upload.File{Name: name, Size: 4, ContentType: "image/jpeg", TmpPath: path}
	}
	submit := func(file upload.File) form.Result {
		f, err := form.New(def,
			form.WithCSRF(csrf),
			form.WithStrategy(persistence.NewKeyValue(kv, def.Storage.Prefix)),
			form.WithFileStorage(storage),
		)
		if err != nil {
			t.Fatalf("form.New: %v", err)
		}
		token, _ := csrf.Mint(def.ID)
		return f.Handle(context.Background(), request.Static{
			Submission: true,
			Data:       map[string]any{def.CSRFTokenName(): token},
			Uploads:    map[string][]upload.File{"logo": {file}},
			Principal:  admin,
		})
	}

	if res := submit(stage("shell.php")); res.State != form.StateInvalid || res.Errors["logo"] == "" {
		t.Fatalf("dangerous upload must be rejected, got %+v", res)
	}

	res := submit(stage("photo.jpg"))
	if res.State != form.StateSaved {
		t.Fatalf("expected saved, got %+v", res)
	}
	ref, _ := res.Data["logo"].(string)
	if !strings.HasPrefix(ref, "/uploads/") || !strings.HasSuffix(ref, "photo.jpg") {
		t.Fatalf("unexpected reference %q", ref)
	}
	if stored, _, _ := kv.Get(context.Background(), "media_logo"); stored != ref {
		t.Fatalf("reference not committed: %v", stored)
	}
}
