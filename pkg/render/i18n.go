package render

import (
	"errors"
	"strings"
)

// Metadata keys that name translation keys for a field or form.
const (
	LabelKeyMeta       = "labelKey"
	DescriptionKeyMeta = "descriptionKey"
	PlaceholderKeyMeta = "placeholderKey"
	TitleKeyMeta       = "titleKey"
)

// ErrMissingTranslator is passed to MissingTranslationHandler when no
// translator is configured.
var ErrMissingTranslator = errors.New("render: translator not configured")

// Translator resolves translation keys.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

func (f TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return f(locale, key, args...)
}

// MissingTranslationHandler chooses the text used when a key cannot be
// translated.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

func missingTranslationDefault(_ string, key string, args []any, _ error) string {
	for _, arg := range args {
		if values, ok := arg.(map[string]any); ok {
			if fallback, ok := values["default"].(string); ok && strings.TrimSpace(fallback) != "" {
				return fallback
			}
		}
	}
	return key
}

// LocalizeView returns a copy of view with labels, descriptions and
// placeholders translated wherever the declaration carries *Key metadata.
func LocalizeView(view View, opts RenderOptions) View {
	out := view.Clone()
	onMissing := opts.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}

	if key := metadataKey(out.Form.Metadata, TitleKeyMeta); key != "" {
		out.Form.Title = translate(opts.Locale, key, out.Form.Title, opts.Translator, onMissing)
	}
	for idx := range out.Fields {
		field := &out.Fields[idx].Field
		if key := metadataKey(field.Metadata, LabelKeyMeta); key != "" {
			field.Label = translate(opts.Locale, key, field.Label, opts.Translator, onMissing)
		}
		if key := metadataKey(field.Metadata, DescriptionKeyMeta); key != "" {
			field.Description = translate(opts.Locale, key, field.Description, opts.Translator, onMissing)
		}
		if key := metadataKey(field.Metadata, PlaceholderKeyMeta); key != "" {
			field.Placeholder = translate(opts.Locale, key, field.Placeholder, opts.Translator, onMissing)
		}
	}
	return out
}

// TemplateFuncs exposes a translate(key, ...args) helper for template
// engines, bound to a locale.
func TemplateFuncs(t Translator, locale string) map[string]any {
	return map[string]any{
		"translate": func(key string, params ...any) string {
			key = strings.TrimSpace(key)
			if key == "" {
				return ""
			}
			if t == nil {
				return key
			}
			msg, err := t.Translate(locale, key, params...)
			if err != nil || strings.TrimSpace(msg) == "" {
				return key
			}
			return msg
		},
	}
}

func translate(locale, key, fallback string, t Translator, onMissing MissingTranslationHandler) string {
	args := []any{map[string]any{"default": fallback}}
	if t == nil {
		return onMissing(locale, key, args, ErrMissingTranslator)
	}
	result, err := t.Translate(locale, key)
	if err == nil && strings.TrimSpace(result) != "" {
		return result
	}
	return onMissing(locale, key, args, err)
}

func metadataKey(values map[string]string, key string) string {
	if values == nil {
		return ""
	}
	return strings.TrimSpace(values[key])
}
