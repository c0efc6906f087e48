package html

import (
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// ThemeConfig flattens a manifest and one of its variants into the renderer
// configuration: variant tokens, templates and asset files override the base
// manifest. An unknown variant yields the base manifest.
func ThemeConfig(manifest *theme.Manifest, variant string) *theme.RendererConfig {
	if manifest == nil {
		return nil
	}

	tokens := copyStrings(manifest.Tokens)
	partials := copyStrings(manifest.Templates)
	files := copyStrings(manifest.Assets.Files)
	prefix := manifest.Assets.Prefix

	if selected, ok := manifest.Variants[variant]; ok {
		for key, value := range selected.Tokens {
			tokens[key] = value
		}
		for key, value := range selected.Templates {
			partials[key] = value
		}
		for key, value := range selected.Assets.Files {
			files[key] = value
		}
		if strings.TrimSpace(selected.Assets.Prefix) != "" {
			prefix = selected.Assets.Prefix
		}
	} else {
		variant = ""
	}

	cssVars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		cssVars["--"+strings.TrimPrefix(key, "--")] = value
	}

	return &theme.RendererConfig{
		Theme:    manifest.Name,
		Variant:  variant,
		Partials: partials,
		Tokens:   tokens,
		CSSVars:  cssVars,
		AssetURL: func(key string) string {
			file, ok := files[key]
			if !ok || file == "" {
				return ""
			}
			if prefix == "" {
				return file
			}
			return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(file, "/")
		},
	}
}

func (r *Renderer) resolveTheme(variant string) (*theme.RendererConfig, error) {
	if r.selector == nil {
		return r.theme, nil
	}
	if variant == "" {
		variant = r.themeVariant
	}
	selection, err := r.selector.Select(r.themeName, variant)
	if err != nil {
		return nil, fmt.Errorf("html renderer: select theme %q: %w", r.themeName, err)
	}
	if selection == nil || selection.Manifest == nil {
		return r.theme, nil
	}
	return ThemeConfig(selection.Manifest, selection.Variant), nil
}

func themeContext(cfg *theme.RendererConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	out := map[string]any{
		"name":    cfg.Theme,
		"variant": cfg.Variant,
		"style":   cssVarsStyle(cfg.CSSVars),
	}
	if cfg.AssetURL != nil {
		out["stylesheet"] = cfg.AssetURL(StylesheetAsset)
	}
	return out
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString("; ")
	}
	return strings.TrimSpace(b.String())
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
