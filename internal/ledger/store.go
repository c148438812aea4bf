// Package ledger owns the canonical AppState. Every change goes through
// Store.Apply as a named Transition; a transition either produces a complete
// new snapshot or leaves the previous one untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ledgerspace/internal/core"
	"ledgerspace/internal/log"
)

// ErrNotPersisted marks a transition that was applied in memory but whose
// snapshot could not be saved. The next successful save writes the whole
// state again.
var ErrNotPersisted = errors.New("snapshot not persisted")

// Persister saves complete snapshots.
type Persister interface {
	Save(ctx context.Context, s core.AppState) error
}

// Publisher is notified after a snapshot has been committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Event describes one committed transition.
type Event struct {
	Transition  string    `json:"transition"`
	Version     int64     `json:"version"`
	WorkspaceID string    `json:"workspaceId,omitempty"`
	ActorID     string    `json:"actorId,omitempty"`
	At          time.Time `json:"at"`
}

// Store serializes transitions over a single snapshot.
type Store struct {
	mu         sync.RWMutex
	state      core.AppState
	env        Env
	persister  Persister
	publishers []Publisher
	logger     *log.Logger
	audit      *log.StructuredLogger
}

// Option configures a Store.
type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.env.Now = now }
}

func WithIDGenerator(gen core.IDGenerator) Option {
	return func(s *Store) { s.env.NewID = gen }
}

// NewStore starts from initial, which must satisfy every invariant.
func NewStore(initial core.AppState, opts ...Option) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	s := &Store{
		state: initial.Clone(),
		env:   Env{Now: time.Now, NewID: core.NewID},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.FromContext(context.Background()).WithComponent(log.ComponentLedger)
	}
	s.audit = log.NewStructuredLogger(s.logger)
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() core.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Apply runs t against a copy of the current snapshot and commits the copy
// on success. On rejection the returned error wraps one of the core outcome
// errors and the store is unchanged. The returned state is the snapshot in
// effect after the call.
func (s *Store) Apply(ctx context.Context, t Transition) (core.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next := prev.Clone()

	err := t.Apply(s.env, &next)
	if errors.Is(err, errNoChange) {
		s.audit.LogTransition(ctx, t.Kind(), prev.ActiveUserID, prev.Version, core.Kind(nil), nil)
		return prev.Clone(), nil
	}
	if err == nil {
		if verr := next.Validate(); verr != nil {
			err = fmt.Errorf("%s left state invalid: %w", t.Kind(), verr)
		}
	}
	if err != nil {
		s.audit.LogTransition(ctx, t.Kind(), prev.ActiveUserID, prev.Version, core.Kind(err), err)
		return prev.Clone(), err
	}

	next.Version = prev.Version + 1
	s.state = next
	s.audit.LogTransition(ctx, t.Kind(), actorOf(prev, next), next.Version, core.Kind(nil), nil)
	if add, ok := t.(*AddExpense); ok {
		e := add.Created
		s.audit.LogExpenseCreated(ctx, e.WorkspaceID, e.ID, e.Description, e.Amount.Cents, string(e.Category))
	}

	out := next.Clone()
	var saveErr error
	if s.persister != nil {
		if err := s.persister.Save(ctx, out); err != nil {
			s.audit.LogError(ctx, "Failed to persist snapshot", err, log.ComponentStorage, log.OpSave,
				log.NewFields().WithTransition(t.Kind(), next.Version))
			saveErr = fmt.Errorf("%w: %v", ErrNotPersisted, err)
		}
	}
	s.publish(ctx, t, next)
	return out, saveErr
}

func (s *Store) publish(ctx context.Context, t Transition, next core.AppState) {
	if len(s.publishers) == 0 {
		return
	}
	ev := Event{
		Transition:  t.Kind(),
		Version:     next.Version,
		WorkspaceID: next.CurrentWorkspaceID,
		ActorID:     next.ActiveUserID,
		At:          s.env.Now().UTC(),
	}
	if sc, ok := t.(scoped); ok {
		ev.WorkspaceID = sc.Scope(next)
	}
	for _, p := range s.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			// committed state stands; subscribers catch up from the next event
			s.logger.WarnContext(ctx, "Failed to publish transition event",
				log.FieldTransition, ev.Transition,
				log.FieldVersion, ev.Version,
				log.FieldError, err)
		}
	}
}

// actorOf picks the user to attribute a transition to: whoever was active
// before it, or whoever it logged in.
func actorOf(prev, next core.AppState) string {
	if prev.ActiveUserID != "" {
		return prev.ActiveUserID
	}
	return next.ActiveUserID
}
