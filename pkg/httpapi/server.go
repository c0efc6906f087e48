// Package httpapi binds the form engine to HTTP with chi: form pages at
// /forms/{id} and the encrypt/decrypt utility endpoints under /api/fields.
package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
)

// TokenHeader carries the form's CSRF token on the utility endpoints.
const TokenHeader = "X-Formengine-Token"

// ActorResolver identifies the principal behind a request.
type ActorResolver func(r *http.Request) security.Actor

// BearerActor resolves actor for requests presenting token as a bearer
// credential and the anonymous actor otherwise.
func BearerActor(token string, actor security.Actor) ActorResolver {
	return func(r *http.Request) security.Actor {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			return security.Actor{}
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return security.Actor{}
		}
		return actor
	}
}

type Server struct {
	router  *chi.Mux
	orch    *orchestrator.Orchestrator
	csrf    security.CSRF
	cipher  security.Cipher
	actorOf ActorResolver
	logger  *slog.Logger
	reqOpts []request.HTTPOption
}

type Options func(*Server)

// WithActorResolver sets how requests are mapped to actors. The default reads
// the actor stored on the request context.
func WithActorResolver(resolver ActorResolver) Options {
	return func(s *Server) {
		if resolver != nil {
			s.actorOf = resolver
		}
	}
}

// WithFieldSecurity enables the encrypt and decrypt endpoints.
func WithFieldSecurity(csrf security.CSRF, cipher security.Cipher) Options {
	return func(s *Server) {
		s.csrf = csrf
		s.cipher = cipher
	}
}

func WithLogger(logger *slog.Logger) Options {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestOptions tunes multipart parsing of submissions.
func WithRequestOptions(options ...request.HTTPOption) Options {
	return func(s *Server) {
		s.reqOpts = append(s.reqOpts, options...)
	}
}

func New(orch *orchestrator.Orchestrator, opts ...Options) *Server {
	r := chi.NewRouter()
	s := &Server{
		router: r,
		orch:   orch,
		logger: slog.New(slog.DiscardHandler),
		actorOf: func(r *http.Request) security.Actor {
			return security.ActorFrom(r.Context())
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/forms", s.listForms)
	r.Get("/forms/{id}", s.serveForm)
	r.Post("/forms/{id}", s.serveForm)

	if s.cipher != nil && s.csrf != nil {
		r.Route("/api/fields", func(r chi.Router) {
			r.Post("/encrypt", s.encryptField)
			r.Post("/decrypt", s.decryptField)
		})
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
