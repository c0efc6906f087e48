// Package loader reads form declarations from YAML or JSON files. Each file
// holds either a single form or a top level `forms:` list. Declarations go
// through the builder, so loaded forms get the same checks as code-declared
// ones.
package loader

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/model"
)

// Definition is one loaded form plus where it came from.
type Definition struct {
	Form     model.Form
	Source   string
	Warnings []string
}

// Catalog indexes loaded definitions by form id. Populate it before sharing;
// lookups are safe for concurrent use once loading is done.
type Catalog struct {
	definitions map[string]Definition
}

// NewCatalog indexes definitions built elsewhere, such as forms declared in
// code or imported from OpenAPI.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	catalog := &Catalog{definitions: make(map[string]Definition, len(defs))}
	if err := catalog.Add(defs...); err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadFS walks fsys and parses every .yaml, .yml and .json file. A nil fsys
// yields an empty catalog. Form ids must be unique across files.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	catalog := &Catalog{definitions: make(map[string]Definition)}
	if fsys == nil {
		return catalog, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("loader: read %s: %w", path, err)
		}
		defs, err := Parse(data, path)
		if err != nil {
			return err
		}
		return catalog.Add(defs...)
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadDir loads every definition file below dir.
func LoadDir(dir string) (*Catalog, error) {
	if strings.TrimSpace(dir) == "" {
		return LoadFS(nil)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFile parses a single definition file from disk.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Form returns the form declared under id.
func (c *Catalog) Form(id string) (model.Form, bool) {
	if c == nil {
		return model.Form{}, false
	}
	def, ok := c.definitions[id]
	return def.Form, ok
}

// Definition returns the definition declared under id.
func (c *Catalog) Definition(id string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	def, ok := c.definitions[id]
	return def, ok
}

// IDs returns the loaded form ids, sorted.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.definitions))
	for id := range c.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports how many forms are loaded.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.definitions)
}

// Add indexes more definitions. Form ids must stay unique.
func (c *Catalog) Add(defs ...Definition) error {
	if c.definitions == nil {
		c.definitions = make(map[string]Definition, len(defs))
	}
	for _, def := range defs {
		if existing, ok := c.definitions[def.Form.ID]; ok {
			return fmt.Errorf("loader: duplicate form %q (files %s and %s)", def.Form.ID, existing.Source, def.Source)
		}
		c.definitions[def.Form.ID] = def
	}
	return nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

type documentFile struct {
	Forms []formFile `json:"forms" yaml:"forms"`
}

type formFile struct {
	ID             string            `json:"id" yaml:"id"`
	Title          string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	Capability     string            `json:"capability,omitempty" yaml:"capability,omitempty"`
	SuccessMessage string            `json:"successMessage,omitempty" yaml:"successMessage,omitempty"`
	ErrorMessage   string            `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	Storage        *storageFile      `json:"storage,omitempty" yaml:"storage,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Fields         []fieldFile       `json:"fields" yaml:"fields"`
}

type storageFile struct {
	Kind     string `json:"kind" yaml:"kind"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	EntityID string `json:"entityId,omitempty" yaml:"entityId,omitempty"`
}

type fieldFile struct {
	Name        string            `json:"name" yaml:"name"`
	Type        string            `json:"type" yaml:"type"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Placeholder string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default     any               `json:"default,omitempty" yaml:"default,omitempty"`
	Options     []any             `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64          `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64          `json:"max,omitempty" yaml:"max,omitempty"`
	Step        *float64          `json:"step,omitempty" yaml:"step,omitempty"`
	MinLength   int               `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   int               `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern     string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Accept      string            `json:"accept,omitempty" yaml:"accept,omitempty"`
	MaxSize     int64             `json:"maxSize,omitempty" yaml:"maxSize,omitempty"`
	Multiple    bool              `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Required    bool              `json:"required,omitempty" yaml:"required,omitempty"`
	Encrypted   bool              `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
	ShowWhen    any               `json:"showWhen,omitempty" yaml:"showWhen,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Parse decodes one definition file. source names the file in errors.
func Parse(data []byte, source string) ([]Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("loader: file %s is empty", source)
	}

	var raw []formFile
	var doc documentFile
	if err := decode(data, &doc); err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", source, err)
	}
	if len(doc.Forms) > 0 {
		raw = doc.Forms
	} else {
		var single formFile
		if err := decode(data, &single); err != nil {
			return nil, fmt.Errorf("loader: parse %s: %w", source, err)
		}
		raw = []formFile{single}
	}

	out := make([]Definition, 0, len(raw))
	for _, file := range raw {
		def, err := buildForm(file, source)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func decode(data []byte, target any) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return json.Unmarshal(data, target)
	}
	return yaml.Unmarshal(data, target)
}

func buildForm(file formFile, source string) (Definition, error) {
	b := builder.New(file.ID).
		Title(file.Title).
		Description(file.Description).
		Capability(file.Capability).
		SuccessMessage(file.SuccessMessage).
		ErrorMessage(file.ErrorMessage)
	for key, value := range file.Metadata {
		b.Metadata(key, value)
	}

	if file.Storage != nil {
		switch model.StorageKind(strings.TrimSpace(file.Storage.Kind)) {
		case model.StorageOptions, "":
			prefix := file.Storage.Prefix
			if prefix == "" {
				prefix = file.ID + "_"
			}
			b.StoreOptions(prefix)
		case model.StorageEntityMeta:
			b.StoreEntityMeta(file.Storage.EntityID)
		case model.StorageCallback:
			b.StoreCallback()
		default:
			return Definition{}, fmt.Errorf("loader: form %q (file %s): unknown storage kind %q", file.ID, source, file.Storage.Kind)
		}
	}

	for _, raw := range file.Fields {
		fieldType, ok := model.ParseFieldType(raw.Type)
		if !ok {
			return Definition{}, fmt.Errorf("loader: form %q (file %s): field %q has unknown type %q", file.ID, source, raw.Name, raw.Type)
		}
		options, err := parseOptions(raw.Options)
		if err != nil {
			return Definition{}, fmt.Errorf("loader: form %q (file %s): field %q: %w", file.ID, source, raw.Name, err)
		}
		handle := b.Add(model.Field{
			Name:        raw.Name,
			Type:        fieldType,
			Label:       raw.Label,
			Description: raw.Description,
			Placeholder: raw.Placeholder,
			Default:     raw.Default,
			Options:     options,
			Min:         raw.Min,
			Max:         raw.Max,
			Step:        raw.Step,
			MinLength:   raw.MinLength,
			MaxLength:   raw.MaxLength,
			Pattern:     raw.Pattern,
			Accept:      raw.Accept,
			MaxSize:     raw.MaxSize,
			Multiple:    raw.Multiple,
			Required:    raw.Required,
			Encrypted:   raw.Encrypted,
			Metadata:    raw.Metadata,
		})
		if err := applyShowWhen(handle, raw.ShowWhen); err != nil {
			return Definition{}, fmt.Errorf("loader: form %q (file %s): field %q: %w", file.ID, source, raw.Name, err)
		}
	}

	form, err := b.Build()
	if err != nil {
		return Definition{}, fmt.Errorf("loader: form %q (file %s): %w", file.ID, source, err)
	}
	return Definition{Form: form, Source: source, Warnings: b.Warnings()}, nil
}

// parseOptions accepts plain values or {label, value} objects.
func parseOptions(raw []any) ([]model.Option, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]model.Option, 0, len(raw))
	for idx, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			value := scalarString(v["value"])
			label := scalarString(v["label"])
			if value == "" && label == "" {
				return nil, fmt.Errorf("option %d needs a label or value", idx)
			}
			if value == "" {
				value = label
			}
			if label == "" {
				label = value
			}
			out = append(out, model.Option{Label: label, Value: value})
		case nil:
			return nil, fmt.Errorf("option %d is empty", idx)
		default:
			value := scalarString(v)
			out = append(out, model.Option{Label: value, Value: value})
		}
	}
	return out, nil
}

func scalarString(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
