package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/goliatone/go-formengine/pkg/model"
)

// Transformer rewrites a declaration before it is bound to the facade.
// Implementations can relabel fields, inject metadata or change messages.
type Transformer interface {
	Transform(ctx context.Context, form *model.Form) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, form *model.Form) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, form *model.Form) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, form)
}

// JSONPresetTransformer applies declarative overrides loaded from a JSON
// file. Presets are keyed by form id; forms without a preset are untouched:
//
//	{
//	  "settings": {
//	    "title": "Plugin settings",
//	    "successMessage": "Saved!",
//	    "metadata": {"section": "general"},
//	    "fields": {
//	      "api_key": {"label": "License key", "metadata": {"labelKey": "fields.license"}}
//	    }
//	  }
//	}
type JSONPresetTransformer struct {
	document map[string]jsonFormPatch
}

type jsonFormPatch struct {
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
	SuccessMessage string                    `json:"successMessage"`
	ErrorMessage   string                    `json:"errorMessage"`
	Metadata       map[string]string         `json:"metadata"`
	Fields         map[string]jsonFieldPatch `json:"fields"`
}

type jsonFieldPatch struct {
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Placeholder string            `json:"placeholder"`
	Metadata    map[string]string `json:"metadata"`
}

// NewJSONPresetTransformer constructs a transformer from raw JSON bytes.
func NewJSONPresetTransformer(data []byte) (*JSONPresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("json preset transformer: document is empty")
	}
	var document map[string]jsonFormPatch
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("json preset transformer: parse document: %w", err)
	}
	return &JSONPresetTransformer{document: document}, nil
}

// NewJSONPresetTransformerFromFS loads a JSON transformer document from the
// provided filesystem path.
func NewJSONPresetTransformerFromFS(fsys fs.FS, path string) (*JSONPresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("json preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("json preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("json preset transformer: read %s: %w", path, err)
	}
	return NewJSONPresetTransformer(data)
}

// Transform applies the preset for form.ID, if any. Patching a field the form
// does not declare is an error.
func (t *JSONPresetTransformer) Transform(ctx context.Context, form *model.Form) error {
	if form == nil {
		return errors.New("json preset transformer: form is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, ok := t.document[form.ID]
	if !ok {
		return nil
	}

	setIfNotEmpty(&form.Title, patch.Title)
	setIfNotEmpty(&form.Description, patch.Description)
	setIfNotEmpty(&form.SuccessMessage, patch.SuccessMessage)
	setIfNotEmpty(&form.ErrorMessage, patch.ErrorMessage)
	if len(patch.Metadata) > 0 {
		form.Metadata = mergeStringMap(form.Metadata, patch.Metadata)
	}

	for name, fieldPatch := range patch.Fields {
		field := findField(form.Fields, name)
		if field == nil {
			return fmt.Errorf("json preset transformer: field %q not found in form %q", name, form.ID)
		}
		applyFieldPatch(field, fieldPatch)
	}
	return nil
}

func applyFieldPatch(field *model.Field, patch jsonFieldPatch) {
	setIfNotEmpty(&field.Label, patch.Label)
	setIfNotEmpty(&field.Description, patch.Description)
	setIfNotEmpty(&field.Placeholder, patch.Placeholder)
	if len(patch.Metadata) > 0 {
		field.Metadata = mergeStringMap(field.Metadata, patch.Metadata)
	}
}

func findField(fields []model.Field, name string) *model.Field {
	name = strings.TrimSpace(name)
	for idx := range fields {
		if fields[idx].Name == name {
			return &fields[idx]
		}
	}
	return nil
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func mergeStringMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
