package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/model"
)

// ExtensionKey is the schema extension read from each property.
const ExtensionKey = "x-formengine"

var (
	// ErrOperationNotFound is returned when no operation matches the id.
	ErrOperationNotFound = errors.New("openapi: operation not found")
	// ErrNoRequestBody is returned when the operation declares no usable
	// object schema for its request body.
	ErrNoRequestBody = errors.New("openapi: operation has no object request body")
)

var preferredMediaTypes = []string{
	"application/x-www-form-urlencoded",
	"multipart/form-data",
	"application/json",
}

// Option tunes an import.
type Option func(*importConfig)

type importConfig struct {
	formID  string
	storage *model.Storage
}

// WithFormID overrides the form id, which defaults to the operation id.
func WithFormID(id string) Option {
	return func(cfg *importConfig) {
		cfg.formID = strings.TrimSpace(id)
	}
}

// WithStorage sets the storage destination of the imported form.
func WithStorage(storage model.Storage) Option {
	return func(cfg *importConfig) {
		cfg.storage = &storage
	}
}

// Result is an imported form plus non-fatal notes such as skipped
// properties.
type Result struct {
	Form     model.Form
	Warnings []string
}

// Operations lists the operation ids of a document, sorted. Operations
// without an id are listed as "method:path".
func Operations(ctx context.Context, data []byte) ([]string, error) {
	doc, err := load(ctx, data)
	if err != nil {
		return nil, err
	}
	var ids []string
	forEachOperation(doc, func(id string, _ *openapi3.Operation) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

// Import builds a form from the request body of operationID.
func Import(ctx context.Context, data []byte, operationID string, options ...Option) (Result, error) {
	cfg := importConfig{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	doc, err := load(ctx, data)
	if err != nil {
		return Result{}, err
	}

	var operation *openapi3.Operation
	forEachOperation(doc, func(id string, op *openapi3.Operation) bool {
		if id == operationID {
			operation = op
			return false
		}
		return true
	})
	if operation == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}

	schema := requestSchema(operation.RequestBody)
	if schema == nil || len(schema.Properties) == 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrNoRequestBody, operationID)
	}

	formID := cfg.formID
	if formID == "" {
		formID = sanitizeID(operationID)
	}
	b := builder.New(formID).Title(operation.Summary).Description(operation.Description)
	if cfg.storage != nil {
		switch cfg.storage.Kind {
		case model.StorageEntityMeta:
			b.StoreEntityMeta(cfg.storage.EntityID)
		case model.StorageCallback:
			b.StoreCallback()
		default:
			b.StoreOptions(cfg.storage.Prefix)
		}
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var warnings []string
	for _, prop := range orderedProperties(schema.Properties) {
		fieldDef, ok, note := convertProperty(prop.name, prop.schema, required[prop.name])
		if note != "" {
			warnings = append(warnings, note)
		}
		if !ok {
			continue
		}
		handle := b.Add(fieldDef)
		if rule := prop.ext.showWhen; rule != "" {
			handle.ShowWhenExpr(rule)
		}
	}

	form, err := b.Build()
	if err != nil {
		return Result{}, fmt.Errorf("openapi: build form %q: %w", formID, err)
	}
	return Result{Form: form, Warnings: append(warnings, b.Warnings()...)}, nil
}

func load(ctx context.Context, data []byte) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	return doc, nil
}

// forEachOperation visits operations in path then method order until fn
// returns false.
func forEachOperation(doc *openapi3.T, fn func(id string, op *openapi3.Operation) bool) {
	if doc.Paths == nil {
		return
	}
	paths := doc.Paths.Map()
	names := make([]string, 0, len(paths))
	for path := range paths {
		names = append(names, path)
	}
	sort.Strings(names)

	for _, path := range names {
		item := paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for method := range ops {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			op := ops[method]
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			if !fn(id, op) {
				return
			}
		}
	}
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range preferredMediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if mt := content[key]; mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

type property struct {
	name   string
	schema *openapi3.Schema
	ext    extension
}

// orderedProperties sorts by the extension's order, then by name. Properties
// without an order come after ordered ones.
func orderedProperties(props openapi3.Schemas) []property {
	out := make([]property, 0, len(props))
	for name, ref := range props {
		if ref == nil || ref.Value == nil {
			continue
		}
		out = append(out, property{name: name, schema: ref.Value, ext: readExtension(ref.Value.Extensions)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].ext.order, out[j].ext.order
		switch {
		case oi != nil && oj != nil && *oi != *oj:
			return *oi < *oj
		case oi != nil && oj == nil:
			return true
		case oi == nil && oj != nil:
			return false
		default:
			return out[i].name < out[j].name
		}
	})
	return out
}

func humanize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	if len(words) == 0 {
		return name
	}
	first := []rune(words[0])
	first[0] = unicode.ToUpper(first[0])
	words[0] = string(first)
	return strings.Join(words, " ")
}

func sanitizeID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
