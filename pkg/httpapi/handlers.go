package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/goliatone/go-formengine/pkg/form"
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/request"
	"github.com/goliatone/go-formengine/pkg/security"
)

const maxFieldBody = 1 << 20

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Forms []string `json:"forms"`
	}
	forms := s.orch.Forms()
	if forms == nil {
		forms = []string{}
	}
	writeJSON(w, http.StatusOK, response{Forms: forms})
}

// serveForm renders the form on GET and runs the submission lifecycle on
// POST. Both re-render the form; the status code reflects the outcome.
func (s *Server) serveForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	actor := s.actorOf(r)

	def, err := s.orch.Definition(ctx, id)
	if errors.Is(err, orchestrator.ErrFormNotFound) {
		s.handleHTTP(ctx, w, goerr.Wrap(err, "unknown form", goerr.V("form", id)), http.StatusNotFound, "form not found")
		return
	}
	if err != nil {
		s.handleHTTP(ctx, w, goerr.Wrap(err, "failed to resolve form", goerr.V("form", id)), http.StatusInternalServerError, "internal error")
		return
	}
	if r.Method == http.MethodGet && !actor.Can(def.Capability) {
		s.handleHTTP(ctx, w, goerr.New("capability denied", goerr.V("form", id), goerr.V("actor", actor.ID)), http.StatusForbidden, "forbidden")
		return
	}

	req, err := request.FromHTTP(r, actor, s.reqOpts...)
	if err != nil {
		s.handleHTTP(ctx, w, goerr.Wrap(err, "failed to parse submission", goerr.V("form", id)), http.StatusBadRequest, "malformed submission")
		return
	}
	defer req.Cleanup()

	query := r.URL.Query()
	resp, err := s.orch.Generate(ctx, orchestrator.Request{
		FormID:   id,
		Renderer: query.Get("renderer"),
		Request:  req,
		RenderOptions: render.RenderOptions{
			Action: r.URL.Path,
			Locale: query.Get("locale"),
			Theme:  query.Get("theme"),
		},
	})
	if err != nil {
		s.handleHTTP(ctx, w, goerr.Wrap(err, "failed to render form", goerr.V("form", id)), http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusFor(resp.Result))
	w.Write(resp.Output) //nolint:errcheck // header already committed
}

func statusFor(res form.Result) int {
	switch res.State {
	case form.StateInvalid:
		if errors.Is(res.Err(), form.ErrSecurity) {
			return http.StatusForbidden
		}
		return http.StatusUnprocessableEntity
	case form.StateFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

type fieldRequest struct {
	Form  string `json:"form"`
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
}

type fieldResponse struct {
	Value string `json:"value"`
}

// fieldTarget decodes the body and runs the security checks before anything
// about the form is looked up: the admin capability when admin is set, then
// the CSRF token against the requested form id, then the form's own
// capability. Every security failure gets the same response, so callers
// cannot tell which forms or encrypted fields exist. It writes the error
// response itself when it fails.
func (s *Server) fieldTarget(w http.ResponseWriter, r *http.Request, admin bool) (fieldRequest, model.Form, security.Actor, bool) {
	ctx := r.Context()
	var body fieldRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFieldBody)).Decode(&body); err != nil {
		s.handleJSON(ctx, w, goerr.Wrap(err, "failed to decode field request"), http.StatusBadRequest, "malformed request")
		return fieldRequest{}, model.Form{}, security.Actor{}, false
	}
	deny := func(err error) (fieldRequest, model.Form, security.Actor, bool) {
		s.handleJSON(ctx, w, err, http.StatusForbidden, form.SecurityMessage)
		return fieldRequest{}, model.Form{}, security.Actor{}, false
	}

	actor := s.actorOf(r)
	if admin {
		if err := actor.Require(security.AdminCapability); err != nil {
			return deny(goerr.Wrap(err, "field access denied", goerr.V("form", body.Form), goerr.V("field", body.Field)))
		}
	}
	if !s.csrf.Verify(r.Header.Get(TokenHeader), body.Form) {
		return deny(goerr.New("csrf verification failed", goerr.V("form", body.Form)))
	}
	def, err := s.orch.Definition(ctx, body.Form)
	if err != nil {
		return deny(goerr.Wrap(err, "unknown form", goerr.V("form", body.Form)))
	}
	if err := actor.Require(def.Capability); err != nil {
		return deny(goerr.Wrap(err, "field access denied", goerr.V("form", def.ID), goerr.V("field", body.Field)))
	}

	if field, ok := def.Field(body.Field); !ok || !field.Encrypted {
		s.handleJSON(ctx, w, goerr.New("field is not encrypted", goerr.V("form", def.ID), goerr.V("field", body.Field)), http.StatusBadRequest, "field is not encrypted")
		return fieldRequest{}, model.Form{}, security.Actor{}, false
	}
	return body, def, actor, true
}

func (s *Server) encryptField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, def, _, ok := s.fieldTarget(w, r, false)
	if !ok {
		return
	}
	ciphertext, err := s.cipher.Encrypt(body.Value)
	if err != nil {
		s.handleJSON(ctx, w, goerr.Wrap(err, "failed to encrypt field", goerr.V("form", def.ID), goerr.V("field", body.Field)), http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, fieldResponse{Value: ciphertext})
}

// decryptField returns the plaintext of a stored encrypted value. The
// capability check runs before the form is resolved or the value loaded; the
// ciphertext always comes from storage, never from the client.
func (s *Server) decryptField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, def, actor, ok := s.fieldTarget(w, r, true)
	if !ok {
		return
	}

	stored, err := s.orch.Stored(ctx, def.ID, body.Field)
	if err != nil {
		s.handleJSON(ctx, w, goerr.Wrap(err, "failed to load field", goerr.V("form", def.ID), goerr.V("field", body.Field)), http.StatusInternalServerError, "internal error")
		return
	}
	ciphertext, _ := stored[body.Field].(string)
	if ciphertext == "" {
		s.handleJSON(ctx, w, goerr.New("no stored value", goerr.V("form", def.ID), goerr.V("field", body.Field)), http.StatusNotFound, "no stored value")
		return
	}

	plain, err := s.cipher.Decrypt(ciphertext, actor)
	switch {
	case errors.Is(err, security.ErrUnauthorized):
		s.handleJSON(ctx, w, goerr.Wrap(err, "decrypt denied", goerr.V("form", def.ID)), http.StatusForbidden, "forbidden")
		return
	case err != nil:
		s.handleJSON(ctx, w, goerr.Wrap(err, "failed to decrypt field", goerr.V("form", def.ID), goerr.V("field", body.Field)), http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, fieldResponse{Value: plain})
}
