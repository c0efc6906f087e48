package form

import (
	"context"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/security"
)

// Submission is the mutable state hooks observe while a request moves
// through the lifecycle.
type Submission struct {
	Form  model.Form
	Actor security.Actor
	// Values holds the raw submitted values without the CSRF and marker
	// fields. before_validate hooks may rewrite them.
	Values map[string]any
	// Data holds validated values once validation ran. before_save hooks may
	// rewrite it; encrypted fields are already enciphered at that point.
	Data map[string]any
	// Errors holds field errors once validation ran. after_validate hooks may
	// add to it to reject the submission.
	Errors map[string]string
}

// Hook runs at a lifecycle point. Returning ValidationErrors from a validate
// hook attaches field errors; any other error aborts with a form-level
// message.
type Hook func(ctx context.Context, sub *Submission) error

// Hooks groups lifecycle callbacks. Each list runs in order and stops at the
// first error.
type Hooks struct {
	BeforeValidate []Hook
	AfterValidate  []Hook
	BeforeSave     []Hook
	AfterSave      []Hook
}

func (h *Hooks) merge(other Hooks) {
	h.BeforeValidate = append(h.BeforeValidate, other.BeforeValidate...)
	h.AfterValidate = append(h.AfterValidate, other.AfterValidate...)
	h.BeforeSave = append(h.BeforeSave, other.BeforeSave...)
	h.AfterSave = append(h.AfterSave, other.AfterSave...)
}

func runHooks(ctx context.Context, hooks []Hook, sub *Submission) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}
