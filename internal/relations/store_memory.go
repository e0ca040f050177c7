package relations

import (
	"context"
	"sync"
)

// NewMemoryEdgeStore returns an EdgeStore backed by an in-memory map. The
// single mutex gives it the same atomicity the Postgres store gets from its
// uniqueness constraint, so it is safe for concurrent engine tests.
func NewMemoryEdgeStore() *MemoryEdgeStore {
	return &MemoryEdgeStore{edges: make(map[tupleKey]Edge)}
}

type tupleKey struct {
	actorID  string
	targetID string
	kind     Kind
}

// MemoryEdgeStore implements EdgeStore for tests and local development.
type MemoryEdgeStore struct {
	mu    sync.Mutex
	edges map[tupleKey]Edge

	// TargetExists, when set, lets tests simulate targets disappearing
	// mid-flight the way a foreign key violation would surface.
	TargetExists func(targetID string, kind Kind) bool
}

// Insert adds the edge, failing when the tuple already has one.
func (s *MemoryEdgeStore) Insert(_ context.Context, edge Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TargetExists != nil && !s.TargetExists(edge.TargetID, edge.Kind) {
		return ErrNotFound
	}

	key := tupleKey{actorID: edge.ActorID, targetID: edge.TargetID, kind: edge.Kind}
	if _, exists := s.edges[key]; exists {
		return ErrConflict
	}
	s.edges[key] = edge
	return nil
}

// DeleteTuple removes the tuple's edge and reports whether one existed.
func (s *MemoryEdgeStore) DeleteTuple(_ context.Context, actorID, targetID string, kind Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tupleKey{actorID: actorID, targetID: targetID, kind: kind}
	if _, exists := s.edges[key]; !exists {
		return false, nil
	}
	delete(s.edges, key)
	return true, nil
}

// ListByActor returns the actor's edges for the kind.
func (s *MemoryEdgeStore) ListByActor(_ context.Context, actorID string, kind Kind) ([]Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var edges []Edge
	for key, edge := range s.edges {
		if key.actorID == actorID && key.kind == kind {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

// ListByTarget returns the edges pointing at the target for the kind.
func (s *MemoryEdgeStore) ListByTarget(_ context.Context, targetID string, kind Kind) ([]Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var edges []Edge
	for key, edge := range s.edges {
		if key.targetID == targetID && key.kind == kind {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

// Count reports the number of stored edges. Useful for tests.
func (s *MemoryEdgeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}
