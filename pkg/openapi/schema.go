package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formengine/pkg/model"
)

type extension struct {
	fieldType   string
	label       string
	placeholder string
	showWhen    string
	accept      string
	maxSize     int64
	encrypted   bool
	order       *int
}

func readExtension(raw map[string]any) extension {
	values, ok := raw[ExtensionKey].(map[string]any)
	if !ok {
		return extension{}
	}
	ext := extension{
		fieldType:   stringValue(values["type"]),
		label:       stringValue(values["label"]),
		placeholder: stringValue(values["placeholder"]),
		showWhen:    stringValue(values["showWhen"]),
		accept:      stringValue(values["accept"]),
	}
	if encrypted, ok := values["encrypted"].(bool); ok {
		ext.encrypted = encrypted
	}
	if size, ok := numberValue(values["maxSize"]); ok {
		ext.maxSize = int64(size)
	}
	if order, ok := numberValue(values["order"]); ok {
		n := int(order)
		ext.order = &n
	}
	return ext
}

// convertProperty maps one schema property to a field. It reports false with
// a note when the property cannot be represented.
func convertProperty(name string, schema *openapi3.Schema, required bool) (model.Field, bool, string) {
	if schema.ReadOnly {
		return model.Field{}, false, fmt.Sprintf("property %q is read-only and was skipped", name)
	}
	ext := readExtension(schema.Extensions)

	field := model.Field{
		Name:        name,
		Label:       firstNonEmpty(ext.label, schema.Title, humanize(name)),
		Description: schema.Description,
		Placeholder: ext.placeholder,
		Default:     schema.Default,
		Pattern:     schema.Pattern,
		Accept:      ext.accept,
		MaxSize:     ext.maxSize,
		Required:    required,
		Encrypted:   ext.encrypted,
	}
	if schema.MinLength > 0 {
		field.MinLength = int(schema.MinLength)
	}
	if schema.MaxLength != nil {
		field.MaxLength = int(*schema.MaxLength)
	}

	inferred, ok := inferType(schema, &field)
	if override := strings.TrimSpace(ext.fieldType); override != "" {
		parsed, valid := model.ParseFieldType(override)
		if !valid {
			return model.Field{}, false, fmt.Sprintf("property %q has unknown %s type %q and was skipped", name, ExtensionKey, override)
		}
		inferred, ok = parsed, true
	}
	if !ok {
		return model.Field{}, false, fmt.Sprintf("property %q of type %q cannot be represented as a field and was skipped", name, schemaType(schema))
	}
	field.Type = inferred
	if field.Type == model.FieldTypeHidden {
		field.Required = false
	}
	return field, true, ""
}

// inferType picks a field type from the schema type and format, filling
// type-specific constraints on field.
func inferType(schema *openapi3.Schema, field *model.Field) (model.FieldType, bool) {
	switch schemaType(schema) {
	case openapi3.TypeBoolean:
		return model.FieldTypeCheckbox, true
	case openapi3.TypeInteger, openapi3.TypeNumber:
		field.Min = cloneFloat(schema.Min)
		field.Max = cloneFloat(schema.Max)
		switch {
		case schema.MultipleOf != nil:
			field.Step = cloneFloat(schema.MultipleOf)
		case schemaType(schema) == openapi3.TypeInteger:
			step := 1.0
			field.Step = &step
		}
		return model.FieldTypeNumber, true
	case openapi3.TypeString:
		if len(schema.Enum) > 0 {
			field.Options = enumOptions(schema.Enum)
			return model.FieldTypeSelect, true
		}
		return stringFormat(schema.Format), true
	case openapi3.TypeArray:
		if schema.Items == nil || schema.Items.Value == nil {
			return "", false
		}
		items := schema.Items.Value
		if schemaType(items) == openapi3.TypeString && items.Format == "binary" {
			field.Multiple = true
			return model.FieldTypeFile, true
		}
		if len(items.Enum) > 0 {
			field.Options = enumOptions(items.Enum)
			return model.FieldTypeCheckbox, true
		}
		return "", false
	default:
		return "", false
	}
}

func stringFormat(format string) model.FieldType {
	switch strings.ToLower(format) {
	case "email":
		return model.FieldTypeEmail
	case "uri", "url":
		return model.FieldTypeURL
	case "password":
		return model.FieldTypePassword
	case "date":
		return model.FieldTypeDate
	case "date-time":
		return model.FieldTypeDateTime
	case "time":
		return model.FieldTypeTime
	case "binary":
		return model.FieldTypeFile
	case "color":
		return model.FieldTypeColor
	case "html":
		return model.FieldTypeRichText
	default:
		return model.FieldTypeText
	}
}

func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return ""
	}
	for _, candidate := range schema.Type.Slice() {
		if candidate != "null" {
			return candidate
		}
	}
	return ""
}

func enumOptions(values []any) []model.Option {
	out := make([]model.Option, 0, len(values))
	for _, value := range values {
		if value == nil {
			continue
		}
		text := fmt.Sprint(value)
		out = append(out, model.Option{Label: humanize(text), Value: text})
	}
	return out
}

func cloneFloat(in *float64) *float64 {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}

func stringValue(value any) string {
	text, _ := value.(string)
	return strings.TrimSpace(text)
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
