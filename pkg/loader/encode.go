package loader

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/visibility/expr"
)

// Encode writes forms in the YAML layout Parse reads. Visibility rules are
// written as expressions.
func Encode(forms ...model.Form) ([]byte, error) {
	files := make([]formFile, 0, len(forms))
	for _, form := range forms {
		files = append(files, toFile(form))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	var doc any = documentFile{Forms: files}
	if len(files) == 1 {
		doc = files[0]
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("loader: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("loader: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func toFile(form model.Form) formFile {
	out := formFile{
		ID:             form.ID,
		Title:          form.Title,
		Description:    form.Description,
		Capability:     form.Capability,
		SuccessMessage: form.SuccessMessage,
		ErrorMessage:   form.ErrorMessage,
		Metadata:       form.Metadata,
		Storage: &storageFile{
			Kind:     string(form.Storage.Kind),
			Prefix:   form.Storage.Prefix,
			EntityID: form.Storage.EntityID,
		},
	}
	for _, field := range form.Fields {
		entry := fieldFile{
			Name:        field.Name,
			Type:        string(field.Type),
			Label:       field.Label,
			Description: field.Description,
			Placeholder: field.Placeholder,
			Default:     field.Default,
			Min:         field.Min,
			Max:         field.Max,
			Step:        field.Step,
			MinLength:   field.MinLength,
			MaxLength:   field.MaxLength,
			Pattern:     field.Pattern,
			Accept:      field.Accept,
			MaxSize:     field.MaxSize,
			Multiple:    field.Multiple,
			Required:    field.Required,
			Encrypted:   field.Encrypted && field.Type != model.FieldTypeEncrypted,
			Metadata:    field.Metadata,
		}
		for _, opt := range field.Options {
			entry.Options = append(entry.Options, map[string]any{"label": opt.Label, "value": opt.Value})
		}
		if len(field.Visibility) > 0 {
			entry.ShowWhen = expr.Format(field.Visibility)
		}
		out.Fields = append(out.Fields, entry)
	}
	return out
}
