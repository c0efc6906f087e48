package form

import (
	"log/slog"

	"github.com/goliatone/go-formengine/pkg/persistence"
	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/upload"
	"github.com/goliatone/go-formengine/pkg/validation"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

// Option customises a Form.
type Option func(*Form)

// WithCSRF sets the token provider. It is required.
func WithCSRF(csrf security.CSRF) Option {
	return func(f *Form) {
		f.csrf = csrf
	}
}

// WithStrategy sets where validated values are committed and loaded from.
func WithStrategy(strategy persistence.Strategy) Option {
	return func(f *Form) {
		f.strategy = strategy
	}
}

// WithEncryption sets the cipher applied to encrypted fields before commit.
func WithEncryption(cipher security.Cipher) Option {
	return func(f *Form) {
		f.cipher = cipher
	}
}

// WithFileStorage sets where accepted uploads are moved after validation.
func WithFileStorage(storage upload.Storage) Option {
	return func(f *Form) {
		f.files = storage
	}
}

// WithLogger sets the logger used for failures that are hidden from the
// caller. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithPolicy selects the hidden-source policy used for visibility.
func WithPolicy(policy visibility.Policy) Option {
	return func(f *Form) {
		f.policy = policy
	}
}

// WithValidator overrides the validator, for example to use a registry with
// custom field types. It takes precedence over WithPolicy for validation.
func WithValidator(v *validation.Validator) Option {
	return func(f *Form) {
		f.validator = v
	}
}

// WithHooks appends lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(f *Form) {
		f.hooks.merge(hooks)
	}
}

// BeforeValidate appends a hook that runs after the security checks.
func BeforeValidate(hook Hook) Option {
	return WithHooks(Hooks{BeforeValidate: []Hook{hook}})
}

// AfterValidate appends a hook that runs after field validation.
func AfterValidate(hook Hook) Option {
	return WithHooks(Hooks{AfterValidate: []Hook{hook}})
}

// BeforeSave appends a hook that runs right before commit.
func BeforeSave(hook Hook) Option {
	return WithHooks(Hooks{BeforeSave: []Hook{hook}})
}

// AfterSave appends a hook that runs after a successful commit. Its errors
// are logged; the values are already stored.
func AfterSave(hook Hook) Option {
	return WithHooks(Hooks{AfterSave: []Hook{hook}})
}
