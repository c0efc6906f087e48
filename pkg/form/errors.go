package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SecurityMessage is shown for every CSRF or capability failure. It never
// names the check that failed.
const SecurityMessage = "The request could not be verified. Reload the page and try again."

var (
	// ErrSecurity reports a CSRF or capability failure.
	ErrSecurity = errors.New("form: request could not be verified")
	// ErrSaveFailed reports a terminal storage failure: stored values could
	// not be loaded, or the validated data could not be saved.
	ErrSaveFailed = errors.New("form: save failed")
	// ErrNoCSRF is returned by New when no CSRF provider is configured.
	ErrNoCSRF = errors.New("form: csrf provider is required")
	// ErrNoStrategy reports a submission without a persistence strategy.
	ErrNoStrategy = errors.New("form: persistence strategy not configured")
	// ErrNoCipher reports an encrypted field submitted without a cipher.
	ErrNoCipher = errors.New("form: encryption service not configured")
)

// ValidationErrors maps field names to their first problem. Hooks return it
// to attach field errors; Result.Err returns it for invalid submissions.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "form: validation failed"
	}
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, v[name]))
	}
	return "form: validation failed: " + strings.Join(parts, "; ")
}
