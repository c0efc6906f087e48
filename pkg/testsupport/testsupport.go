// Package testsupport holds fixtures shared by the package tests: signing
// secrets, actors, declaration loading and submissions.
package testsupport

import (
	"testing"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/loader"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
)

// Secret is a fixed master secret long enough for every security component.
const Secret = "0123456789abcdef0123456789abcdef"

// Admin holds the default form capability.
var Admin = security.Actor{ID: "1", Capabilities: []string{model.DefaultCapability}}

// MustCSRF returns a token provider signing with Secret.
func MustCSRF(t testing.TB, options ...security.CSRFOption) *security.TokenCSRF {
	t.Helper()
	csrf, err := security.NewTokenCSRF([]byte(Secret), options...)
	if err != nil {
		t.Fatalf("new csrf: %v", err)
	}
	return csrf
}

// MustCipher returns a field cipher keyed from Secret.
func MustCipher(t testing.TB, options ...security.CipherOption) *security.FieldCipher {
	t.Helper()
	cipher, err := security.NewFieldCipher([]byte(Secret), options...)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return cipher
}

// MustBuild finishes a builder, failing the test on declaration errors.
func MustBuild(t testing.TB, b *builder.Builder) model.Form {
	t.Helper()
	form, err := b.Build()
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	return form
}

// MustLoadForm parses a declaration file holding exactly one form.
func MustLoadForm(t testing.TB, path string) model.Form {
	t.Helper()
	defs, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("load form: %s declares %d forms, want 1", path, len(defs))
	}
	return defs[0].Form
}

// MustCatalog indexes forms as if they had been loaded from disk.
func MustCatalog(t testing.TB, forms ...model.Form) *loader.Catalog {
	t.Helper()
	defs := make([]loader.Definition, 0, len(forms))
	for _, form := range forms {
		defs = append(defs, loader.Definition{Form: form, Source: "test"})
	}
	catalog, err := loader.NewCatalog(defs...)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return catalog
}

// MustSubmission mints a token for form and returns a submission carrying it
// alongside values.
func MustSubmission(t testing.TB, csrf security.CSRF, form model.Form, actor security.Actor, values map[string]any) request.Static {
	t.Helper()
	token, err := csrf.Mint(form.ID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	data := make(map[string]any, len(values)+2)
	for key, value := range values {
		data[key] = value
	}
	data[form.CSRFTokenName()] = token
	data[model.FormIDFieldName] = form.ID
	return request.Static{Submission: true, Data: data, Principal: actor}
}
