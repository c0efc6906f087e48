// Package security holds the CSRF provider, the field encryption service and
// the actor/capability model the form engine checks before touching data.
package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-formengine/pkg/model"
)

// AdminCapability is required to decrypt stored values.
const AdminCapability = model.DefaultCapability

// ErrUnauthorized is matched by AuthorizationError.
var ErrUnauthorized = errors.New("security: capability denied")

// AuthorizationError reports a missing capability. It never carries the
// value the caller tried to reach.
type AuthorizationError struct {
	ActorID    string
	Capability string
}

func (e *AuthorizationError) Error() string {
	actor := e.ActorID
	if actor == "" {
		actor = "anonymous"
	}
	return fmt.Sprintf("security: actor %s lacks capability %q", actor, e.Capability)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Actor is the principal behind a request.
type Actor struct {
	ID           string
	Capabilities []string
}

// Can reports whether the actor holds capability. An empty capability is
// always granted.
func (a Actor) Can(capability string) bool {
	if capability == "" {
		return true
	}
	for _, held := range a.Capabilities {
		if held == capability {
			return true
		}
	}
	return false
}

// Require returns an AuthorizationError unless the actor holds capability.
func (a Actor) Require(capability string) error {
	if a.Can(capability) {
		return nil
	}
	return &AuthorizationError{ActorID: a.ID, Capability: capability}
}

type actorKey struct{}

// WithActor stores actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored on ctx, or an anonymous actor.
func ActorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}
