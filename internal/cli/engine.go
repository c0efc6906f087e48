package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"

	"github.com/goliatone/go-formengine/internal/config"
	"github.com/goliatone/go-formengine/internal/logging"
	"github.com/goliatone/go-formengine/pkg/httpapi"
	"github.com/goliatone/go-formengine/pkg/loader"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/persistence"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/store"
	"github.com/goliatone/go-formengine/pkg/upload"
)

// engine is everything a command needs to serve the configured forms.
type engine struct {
	cfg     *config.Config
	catalog *loader.Catalog
	orch    *orchestrator.Orchestrator
	csrf    *security.TokenCSRF
	cipher  *security.FieldCipher
	closers []func() error
}

// newEngine loads the form declarations and opens storage. A nil registry
// gets the HTML renderer.
func newEngine(ctx context.Context, cfg *config.Config, registry *render.Registry, extra ...orchestrator.Option) (*engine, error) {
	logger := logging.Default()

	catalog, err := loader.LoadDir(cfg.Forms.Dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load forms", goerr.V("dir", cfg.Forms.Dir))
	}
	for _, id := range catalog.IDs() {
		def, _ := catalog.Definition(id)
		for _, warning := range def.Warnings {
			logger.Warn("form declaration warning", "form", id, "source", def.Source, "warning", warning)
		}
	}
	logger.Info("Loaded forms", "dir", cfg.Forms.Dir, "count", catalog.Len())

	e := &engine{cfg: cfg, catalog: catalog}
	backends, err := e.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.Security.Secret)
	if e.csrf, err = security.NewTokenCSRF(secret, security.WithTokenTTL(cfg.Security.TTL())); err != nil {
		e.Close()
		return nil, goerr.Wrap(err, "failed to configure csrf")
	}
	if e.cipher, err = security.NewFieldCipher(secret); err != nil {
		e.Close()
		return nil, goerr.Wrap(err, "failed to configure field encryption")
	}
	files, err := upload.NewLocalStorage(cfg.Uploads.Dir, upload.WithBaseURL(cfg.Uploads.BaseURL))
	if err != nil {
		e.Close()
		return nil, goerr.Wrap(err, "failed to configure upload storage", goerr.V("dir", cfg.Uploads.Dir))
	}

	options := []orchestrator.Option{
		orchestrator.WithCatalog(catalog),
		orchestrator.WithBackends(backends),
		orchestrator.WithCSRF(e.csrf),
		orchestrator.WithEncryption(e.cipher),
		orchestrator.WithFileStorage(files),
		orchestrator.WithLogger(logger),
		orchestrator.WithPolicy(cfg.Forms.VisibilityPolicy()),
	}
	if registry != nil {
		options = append(options, orchestrator.WithRegistry(registry))
	}
	if cfg.Forms.Renderer != "" {
		options = append(options, orchestrator.WithDefaultRenderer(cfg.Forms.Renderer))
	}
	if path := cfg.Forms.Presets; path != "" {
		presets, err := orchestrator.NewJSONPresetTransformerFromFS(os.DirFS(filepath.Dir(path)), filepath.Base(path))
		if err != nil {
			e.Close()
			return nil, goerr.Wrap(err, "failed to load presets", goerr.V("path", path))
		}
		options = append(options, orchestrator.WithTransformer(presets))
	}
	e.orch = orchestrator.New(append(options, extra...)...)
	return e, nil
}

func (e *engine) openStorage(ctx context.Context) (persistence.Backends, error) {
	switch e.cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(ctx, e.cfg.Storage.Path)
		if err != nil {
			return persistence.Backends{}, goerr.Wrap(err, "failed to open sqlite store", goerr.V("path", e.cfg.Storage.Path))
		}
		e.closers = append(e.closers, db.Close)
		logging.Default().Info("Using SQLite store", "path", e.cfg.Storage.Path)
		return persistence.Backends{KV: db, Meta: db}, nil
	default:
		mem := store.NewMemory()
		logging.Default().Info("Using in-memory store (development mode)")
		return persistence.Backends{KV: mem, Meta: mem}, nil
	}
}

// handler binds the engine to HTTP with the configured bearer actor.
func (e *engine) handler() http.Handler {
	return httpapi.New(e.orch,
		httpapi.WithActorResolver(httpapi.BearerActor(e.cfg.Auth.Token, e.cfg.Auth.Principal())),
		httpapi.WithFieldSecurity(e.csrf, e.cipher),
		httpapi.WithLogger(logging.Default()),
		httpapi.WithRequestOptions(request.WithMaxMemory(e.cfg.Server.MaxMemory)),
	)
}

// Close releases the storage backends.
func (e *engine) Close() error {
	var errs []error
	for _, closer := range e.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
