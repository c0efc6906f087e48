package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
)

// logError records err with its goerr context. Client errors log at warn
// level, server errors at error level.
func (s *Server) logError(ctx context.Context, err error, status int) {
	attrs := []any{"status", status, "error", err.Error()}
	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs = append(attrs, "values", ge.Values())
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "HTTP error", attrs...)
		return
	}
	s.logger.WarnContext(ctx, "HTTP error", attrs...)
}

// handleHTTP logs err and writes public as a plain text response. The cause
// never reaches the client.
func (s *Server) handleHTTP(ctx context.Context, w http.ResponseWriter, err error, status int, public string) {
	s.logError(ctx, err, status)
	http.Error(w, public, status)
}

// handleJSON logs err and writes public as a JSON error body.
func (s *Server) handleJSON(ctx context.Context, w http.ResponseWriter, err error, status int, public string) {
	s.logError(ctx, err, status)
	writeJSON(w, status, errorResponse{Error: public})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}
