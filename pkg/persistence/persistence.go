// Package persistence commits validated form data to a backend. Strategies
// receive only values that passed validation for visible fields; keys absent
// from the data map are left untouched in storage.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/store"
)

// ErrNoBackend reports a storage kind without a configured backend.
var ErrNoBackend = errors.New("persistence: backend not configured")

// Strategy commits and loads form values.
type Strategy interface {
	Name() string
	Commit(ctx context.Context, data map[string]any) error
	// Load returns previously stored values for names. Missing keys are
	// omitted from the result.
	Load(ctx context.Context, names []string) (map[string]any, error)
}

// PersistError wraps a backend failure. Its message never includes values.
type PersistError struct {
	Strategy string
	Key      string
	Err      error
}

func (e *PersistError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("persistence: %s: write %q failed: %v", e.Strategy, e.Key, e.Err)
	}
	return fmt.Sprintf("persistence: %s: commit failed: %v", e.Strategy, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// KeyValue writes each field under {prefix}{name}.
type KeyValue struct {
	kv     store.KV
	prefix string
}

// NewKeyValue returns a KeyValue strategy.
func NewKeyValue(kv store.KV, prefix string) *KeyValue {
	return &KeyValue{kv: kv, prefix: prefix}
}

func (s *KeyValue) Name() string { return string(model.StorageOptions) }

// Key returns the storage key for a field name.
func (s *KeyValue) Key(name string) string {
	return s.prefix + name
}

func (s *KeyValue) Commit(ctx context.Context, data map[string]any) error {
	for _, name := range sortedKeys(data) {
		key := s.Key(name)
		if err := s.kv.Set(ctx, key, data[name]); err != nil {
			return &PersistError{Strategy: s.Name(), Key: key, Err: err}
		}
	}
	return nil
}

func (s *KeyValue) Load(ctx context.Context, names []string) (map[string]any, error) {
	out := make(map[string]any, len(names))
	for _, name := range names {
		value, ok, err := s.kv.Get(ctx, s.Key(name))
		if err != nil {
			return nil, &PersistError{Strategy: s.Name(), Key: s.Key(name), Err: err}
		}
		if ok {
			out[name] = value
		}
	}
	return out, nil
}

// EntityMeta writes each field as metadata of one entity.
type EntityMeta struct {
	meta     store.MetaStore
	entityID string
}

// NewEntityMeta returns an EntityMeta strategy bound to entityID.
func NewEntityMeta(meta store.MetaStore, entityID string) *EntityMeta {
	return &EntityMeta{meta: meta, entityID: entityID}
}

func (s *EntityMeta) Name() string { return string(model.StorageEntityMeta) }

func (s *EntityMeta) Commit(ctx context.Context, data map[string]any) error {
	for _, name := range sortedKeys(data) {
		if err := s.meta.SetMeta(ctx, s.entityID, name, data[name]); err != nil {
			return &PersistError{Strategy: s.Name(), Key: name, Err: err}
		}
	}
	return nil
}

func (s *EntityMeta) Load(ctx context.Context, names []string) (map[string]any, error) {
	out := make(map[string]any, len(names))
	for _, name := range names {
		value, ok, err := s.meta.GetMeta(ctx, s.entityID, name)
		if err != nil {
			return nil, &PersistError{Strategy: s.Name(), Key: name, Err: err}
		}
		if ok {
			out[name] = value
		}
	}
	return out, nil
}

// CommitFunc receives the whole validated data map.
type CommitFunc func(ctx context.Context, data map[string]any) error

// LoadFunc supplies stored values for rendering.
type LoadFunc func(ctx context.Context, names []string) (map[string]any, error)

// Callback hands the data map to caller code.
type Callback struct {
	commit CommitFunc
	load   LoadFunc
}

// NewCallback returns a Callback strategy. load may be nil.
func NewCallback(commit CommitFunc, load LoadFunc) *Callback {
	return &Callback{commit: commit, load: load}
}

func (s *Callback) Name() string { return string(model.StorageCallback) }

func (s *Callback) Commit(ctx context.Context, data map[string]any) error {
	if s.commit == nil {
		return &PersistError{Strategy: s.Name(), Err: ErrNoBackend}
	}
	if err := s.commit(ctx, copyData(data)); err != nil {
		return &PersistError{Strategy: s.Name(), Err: err}
	}
	return nil
}

func (s *Callback) Load(ctx context.Context, names []string) (map[string]any, error) {
	if s.load == nil {
		return map[string]any{}, nil
	}
	values, err := s.load(ctx, names)
	if err != nil {
		return nil, &PersistError{Strategy: s.Name(), Err: err}
	}
	return values, nil
}

// Backends groups the collaborators a form's storage declaration may need.
type Backends struct {
	KV       store.KV
	Meta     store.MetaStore
	Commit   CommitFunc
	LoadFunc LoadFunc
}

// ForForm selects the strategy matching form.Storage.
func ForForm(form model.Form, backends Backends) (Strategy, error) {
	switch form.Storage.Kind {
	case model.StorageOptions, "":
		if backends.KV == nil {
			return nil, fmt.Errorf("%w: key-value store for form %q", ErrNoBackend, form.ID)
		}
		return NewKeyValue(backends.KV, form.Storage.Prefix), nil
	case model.StorageEntityMeta:
		if backends.Meta == nil {
			return nil, fmt.Errorf("%w: metadata store for form %q", ErrNoBackend, form.ID)
		}
		return NewEntityMeta(backends.Meta, form.Storage.EntityID), nil
	case model.StorageCallback:
		if backends.Commit == nil {
			return nil, fmt.Errorf("%w: callback for form %q", ErrNoBackend, form.ID)
		}
		return NewCallback(backends.Commit, backends.LoadFunc), nil
	default:
		return nil, fmt.Errorf("persistence: unknown storage kind %q", form.Storage.Kind)
	}
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	return out
}
