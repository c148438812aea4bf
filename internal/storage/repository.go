// Package storage persists whole ledger snapshots as a single JSON document
// in a blob store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledgerspace/internal/blob"
	"ledgerspace/internal/core"
	"ledgerspace/internal/log"
)

const (
	DefaultKey    = "ledgerspace/state.json"
	schemaVersion = 1
	contentType   = "application/json"
)

// Bootstrap holds the secrets used to seed a fresh ledger.
type Bootstrap struct {
	AdminSecret  string
	MasterSecret string
}

type envelope struct {
	Schema int           `json:"schema"`
	State  core.AppState `json:"state"`
}

// Repository reads and writes the snapshot under one key.
type Repository struct {
	store     blob.Store
	key       string
	bootstrap Bootstrap
	logger    *log.Logger
}

func NewRepository(store blob.Store, key string, bootstrap Bootstrap, logger *log.Logger) *Repository {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Repository{
		store:     store,
		key:       key,
		bootstrap: bootstrap,
		logger:    logger.WithComponent(log.ComponentStorage),
	}
}

// Load returns the stored snapshot. When none exists yet it returns a fresh
// default state; the default is not written until the first Save.
func (r *Repository) Load(ctx context.Context) (core.AppState, error) {
	_, data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, blob.ErrNotFound) {
		r.logger.InfoContext(ctx, "No snapshot found, bootstrapping default ledger",
			log.FieldBlobKey, r.key, log.FieldDriver, string(r.store.Driver()))
		s, err := core.DefaultState(core.NewID, r.bootstrap.AdminSecret, r.bootstrap.MasterSecret)
		if err != nil {
			return core.AppState{}, fmt.Errorf("bootstrap default state: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return core.AppState{}, fmt.Errorf("read snapshot %s: %w", r.key, err)
	}
	s, err := Decode(data)
	if err != nil {
		return core.AppState{}, fmt.Errorf("decode snapshot %s: %w", r.key, err)
	}
	r.logger.DebugContext(ctx, "Snapshot loaded",
		log.FieldBlobKey, r.key, log.FieldVersion, s.Version, log.FieldSizeBytes, len(data))
	return s, nil
}

// Save writes s in full, replacing any earlier snapshot.
func (r *Repository) Save(ctx context.Context, s core.AppState) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := r.store.Put(ctx, r.key, data, contentType); err != nil {
		return fmt.Errorf("write snapshot %s: %w", r.key, err)
	}
	r.logger.DebugContext(ctx, "Snapshot saved",
		log.FieldBlobKey, r.key, log.FieldVersion, s.Version, log.FieldSizeBytes, len(data))
	return nil
}

// Encode serializes s deterministically.
func Encode(s core.AppState) ([]byte, error) {
	b, err := json.MarshalIndent(envelope{Schema: schemaVersion, State: s}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Decode parses a snapshot written by Encode and checks its invariants.
func Decode(data []byte) (core.AppState, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.AppState{}, err
	}
	if env.Schema != schemaVersion {
		return core.AppState{}, fmt.Errorf("unsupported snapshot schema %d", env.Schema)
	}
	if err := env.State.Validate(); err != nil {
		return core.AppState{}, err
	}
	return env.State, nil
}
