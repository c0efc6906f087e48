// Package request adapts incoming submissions to the narrow view the form
// engine needs: whether this is a submission, the raw field values, uploads,
// and the acting principal.
package request

import (
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/upload"
)

// Request is the request context consumed by the form facade.
type Request interface {
	IsSubmission() bool
	// Field returns the raw value for name: a string, a []string for repeated
	// keys, or nil when absent.
	Field(name string) (any, bool)
	// Values returns all submitted scalar values.
	Values() map[string]any
	Files(name string) []upload.File
	Actor() security.Actor
}

// Static is a map-backed Request for programmatic submissions and tests.
type Static struct {
	Submission bool
	Data       map[string]any
	Uploads    map[string][]upload.File
	Principal  security.Actor
}

func (s Static) IsSubmission() bool { return s.Submission }

func (s Static) Field(name string) (any, bool) {
	value, ok := s.Data[name]
	return value, ok
}

func (s Static) Values() map[string]any {
	out := make(map[string]any, len(s.Data))
	for key, value := range s.Data {
		out[key] = value
	}
	return out
}

func (s Static) Files(name string) []upload.File {
	return append([]upload.File(nil), s.Uploads[name]...)
}

func (s Static) Actor() security.Actor { return s.Principal }
