package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-formengine/pkg/form"
	"github.com/goliatone/go-formengine/pkg/loader"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/persistence"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/renderers/html"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/upload"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

const defaultRendererName = html.Name

// ErrFormNotFound is returned for ids missing from the catalog.
var ErrFormNotFound = errors.New("orchestrator: form not found")

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithCatalog sets the declarations served by the orchestrator.
func WithCatalog(catalog *loader.Catalog) Option {
	return func(o *Orchestrator) {
		o.catalog = catalog
	}
}

// WithRegistry injects a renderer registry.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefaultRenderer overrides the renderer used when a request omits an
// explicit Renderer field.
func WithDefaultRenderer(name string) Option {
	return func(o *Orchestrator) {
		o.defaultRenderer = name
	}
}

// WithTransformer registers a Transformer that can rewrite a declaration
// before it is bound to the facade.
func WithTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.transformers = append(o.transformers, t)
		}
	}
}

// WithBackends supplies the stores persistence strategies write through.
func WithBackends(backends persistence.Backends) Option {
	return func(o *Orchestrator) {
		o.backends = backends
	}
}

// WithCSRF sets the token provider shared by every form.
func WithCSRF(csrf security.CSRF) Option {
	return func(o *Orchestrator) {
		o.csrf = csrf
	}
}

// WithEncryption sets the cipher for encrypted fields.
func WithEncryption(cipher security.Cipher) Option {
	return func(o *Orchestrator) {
		o.cipher = cipher
	}
}

// WithFileStorage sets where uploads are moved after validation.
func WithFileStorage(storage upload.Storage) Option {
	return func(o *Orchestrator) {
		o.files = storage
	}
}

// WithLogger sets the logger handed to every facade.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolicy selects the hidden-source visibility policy.
func WithPolicy(policy visibility.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithFormOptions appends facade options, such as hooks, for one form id.
func WithFormOptions(formID string, options ...form.Option) Option {
	return func(o *Orchestrator) {
		if o.formOptions == nil {
			o.formOptions = make(map[string][]form.Option)
		}
		o.formOptions[formID] = append(o.formOptions[formID], options...)
	}
}

// Orchestrator serves every form of a catalog. It holds no per-request state
// and is safe for concurrent use once constructed.
type Orchestrator struct {
	catalog         *loader.Catalog
	registry        *render.Registry
	defaultRenderer string
	transformers    []Transformer
	backends        persistence.Backends
	csrf            security.CSRF
	cipher          security.Cipher
	files           upload.Storage
	logger          *slog.Logger
	policy          visibility.Policy
	formOptions     map[string][]form.Option
	initialiseErr   error
}

// New constructs an Orchestrator applying any provided options. A missing
// registry gets the HTML renderer.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		defaultRenderer: defaultRendererName,
		logger:          slog.New(slog.DiscardHandler),
		policy:          visibility.PolicyPermissive,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Request describes one page load or submission.
type Request struct {
	FormID string
	// Renderer names the renderer to use. If empty, the orchestrator falls back
	// to the configured default renderer.
	Renderer string
	// Request is the incoming request. Nil or a non-submission only renders.
	Request       request.Request
	RenderOptions render.RenderOptions
}

// Response carries the rendered output and the submission outcome.
type Response struct {
	Output      []byte
	ContentType string
	View        render.View
	Result      form.Result
}

// Forms lists the served form ids.
func (o *Orchestrator) Forms() []string {
	return o.catalog.IDs()
}

// Definition returns the transformed declaration for id.
func (o *Orchestrator) Definition(ctx context.Context, id string) (model.Form, error) {
	def, ok := o.catalog.Form(id)
	if !ok {
		return model.Form{}, fmt.Errorf("%w: %q", ErrFormNotFound, id)
	}
	def = def.Clone()
	for _, t := range o.transformers {
		if err := t.Transform(ctx, &def); err != nil {
			return model.Form{}, fmt.Errorf("orchestrator: transform form %q: %w", id, err)
		}
	}
	return def, nil
}

// Form binds the declaration for id to a fresh lifecycle facade.
func (o *Orchestrator) Form(ctx context.Context, id string) (*form.Form, error) {
	def, err := o.Definition(ctx, id)
	if err != nil {
		return nil, err
	}
	strategy, err := persistence.ForForm(def, o.backends)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: form %q: %w", id, err)
	}
	options := []form.Option{
		form.WithCSRF(o.csrf),
		form.WithStrategy(strategy),
		form.WithEncryption(o.cipher),
		form.WithFileStorage(o.files),
		form.WithLogger(o.logger.With("form", id)),
		form.WithPolicy(o.policy),
	}
	options = append(options, o.formOptions[id]...)
	f, err := form.New(def, options...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: form %q: %w", id, err)
	}
	return f, nil
}

// Stored loads the persisted values of names for form id, exactly as stored:
// encrypted fields come back as ciphertext.
func (o *Orchestrator) Stored(ctx context.Context, id string, names ...string) (map[string]any, error) {
	def, err := o.Definition(ctx, id)
	if err != nil {
		return nil, err
	}
	strategy, err := persistence.ForForm(def, o.backends)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: form %q: %w", id, err)
	}
	if len(names) == 0 {
		names = def.FieldNames()
	}
	values, err := strategy.Load(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load form %q: %w", id, err)
	}
	return values, nil
}

// Generate runs the catalog → transformer → facade → renderer sequence and
// returns the rendered bytes with the submission outcome.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Response, error) {
	if ctx == nil {
		return Response{}, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if err := o.initialiseErr; err != nil {
		return Response{}, err
	}
	if req.FormID == "" {
		return Response{}, errors.New("orchestrator: form id is required")
	}

	f, err := o.Form(ctx, req.FormID)
	if err != nil {
		return Response{}, err
	}
	renderer, err := o.rendererFor(req.Renderer)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if req.Request != nil && req.Request.IsSubmission() {
		resp.Result = f.Handle(ctx, req.Request)
	}
	view, err := f.Render(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("orchestrator: build view: %w", err)
	}
	output, err := renderer.Render(ctx, view, req.RenderOptions)
	if err != nil {
		return Response{}, fmt.Errorf("orchestrator: render output: %w", err)
	}
	resp.View = view
	resp.Output = output
	resp.ContentType = renderer.ContentType()
	if !resp.Result.Submitted {
		resp.Result.State = f.State()
	}
	return resp, nil
}

func (o *Orchestrator) rendererFor(name string) (render.Renderer, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: renderer registry is nil")
	}

	target := name
	if target == "" {
		target = o.defaultRenderer
	}

	if target != "" {
		renderer, err := o.registry.Get(target)
		if err == nil {
			return renderer, nil
		}
		if name != "" {
			return nil, fmt.Errorf("orchestrator: renderer %q: %w", name, err)
		}
	}

	names := o.registry.List()
	if len(names) == 0 {
		return nil, errors.New("orchestrator: no renderers registered")
	}

	renderer, err := o.registry.Get(names[0])
	if err != nil {
		return nil, fmt.Errorf("orchestrator: renderer %q: %w", names[0], err)
	}
	return renderer, nil
}

func (o *Orchestrator) applyDefaults() {
	if o.catalog == nil {
		o.catalog, _ = loader.NewCatalog()
	}
	if o.registry == nil {
		o.registry = render.NewRegistry()
		renderer, err := html.New()
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default renderer: %w", err)
		} else {
			o.registry.MustRegister(renderer)
		}
	}
	if o.defaultRenderer == "" {
		o.defaultRenderer = defaultRendererName
	}
	if o.csrf == nil {
		o.initialiseErr = errors.Join(o.initialiseErr, form.ErrNoCSRF)
	}
}
