package html

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

const (
	formTemplate = "templates/form.tmpl"

	// FormPartial names the theme partial that replaces the form template.
	FormPartial = "forms.form"
	// StylesheetAsset names the theme asset linked from the rendered form.
	StylesheetAsset = "formengine.stylesheet"
)

// TemplatesFS exposes the embedded template bundle so callers can copy or
// extend it.
func TemplatesFS() fs.FS {
	return embeddedTemplates
}
