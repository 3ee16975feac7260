// Package facts implements the append-only fact set and its delegating
// decorator.
package facts

import (
	"context"
	"sync"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// Querier answers fact membership queries.
type Querier interface {
	IsValid(fact core.Fact) bool
}

// Registry is a Querier that also accepts new facts.
type Registry interface {
	Querier
	RegisterFact(ctx context.Context, fact core.Fact) error
}

// Backend persists the fact set. SaveFact must be idempotent.
type Backend interface {
	LoadFacts(ctx context.Context) ([]core.Fact, error)
	SaveFact(ctx context.Context, fact core.Fact) error
}

// Store is an append-only set of facts. Membership once true never becomes
// false. With a Backend attached every new fact is written through before it
// becomes visible.
type Store struct {
	mu         sync.RWMutex
	facts      map[core.Fact]struct{}
	backend    Backend
	registered bool
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{facts: make(map[core.Fact]struct{})}
}

// Open creates a store backed by backend, preloaded with its persisted facts.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	s := NewStore()
	if backend == nil {
		return s, nil
	}
	persisted, err := backend.LoadFacts(ctx)
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, err, "load persisted facts")
	}
	for _, f := range persisted {
		s.facts[f] = struct{}{}
	}
	s.registered = len(persisted) > 0
	s.backend = backend
	return s, nil
}

// IsValid reports whether fact was registered
func (s *Store) IsValid(fact core.Fact) bool {
	s.mu.RLock()
	_, ok := s.facts[fact]
	s.mu.RUnlock()
	return ok
}

// RegisterFact adds fact to the set. Registering a present fact is a no-op.
func (s *Store) RegisterFact(ctx context.Context, fact core.Fact) error {
	if s.IsValid(fact) {
		return nil
	}
	// The backend write happens outside the lock so readers are never held
	// up by I/O; SaveFact is idempotent so a concurrent duplicate is harmless.
	if s.backend != nil {
		if err := s.backend.SaveFact(ctx, fact); err != nil {
			return core.Wrap(core.ErrStorage, err, "persist fact %s", fact.Hex())
		}
	}
	s.mu.Lock()
	s.facts[fact] = struct{}{}
	s.registered = true
	s.mu.Unlock()
	return nil
}

// HasRegisteredFact reports whether any fact was ever registered
func (s *Store) HasRegisteredFact() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

// Len returns the number of facts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}
