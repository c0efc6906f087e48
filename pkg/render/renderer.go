package render

import (
	"context"
)

// Renderer draws a View for one markup target (HTML, terminal, JSON...).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, view View, options RenderOptions) ([]byte, error)
}

// RenderOptions carry per-request presentation settings that do not belong
// on the form declaration.
type RenderOptions struct {
	// Action is the submission URL; empty submits to the current page.
	Action string
	// Locale and Translator localise labels that declare *Key metadata.
	Locale     string
	Translator Translator
	OnMissing  MissingTranslationHandler
	// Subset limits drawing to fields matching the filters.
	Subset FieldSubset
	// Theme selects a theme variant for renderers that support theming.
	Theme string
}
