// Package store provides the key-value and entity metadata backends that
// persistence strategies write through. Writes are last-writer-wins per key;
// there is no optimistic concurrency control.
package store

import "context"

// KV is a flat key-value store.
type KV interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
}

// MetaStore stores values scoped to an entity id.
type MetaStore interface {
	GetMeta(ctx context.Context, entityID, key string) (any, bool, error)
	SetMeta(ctx context.Context, entityID, key string, value any) error
}
