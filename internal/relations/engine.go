// Package relations manages on/off relationship edges such as likes and
// subscriptions. An edge's existence is the whole state: toggling on creates
// it, toggling off deletes it, and at most one edge exists per
// (actor, target, kind) tuple. The invariant is enforced by the store, never
// by an application-level check followed by a separate write.
package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamtube/backend/internal/apperr"
)

// Kind identifies which relationship an edge encodes.
type Kind string

const (
	KindVideoLike    Kind = "video-like"
	KindCommentLike  Kind = "comment-like"
	KindPostLike     Kind = "post-like"
	KindSubscription Kind = "channel-subscription"
)

// Valid reports whether the kind is one of the supported relationship kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVideoLike, KindCommentLike, KindPostLike, KindSubscription:
		return true
	}
	return false
}

// Edge is a directed relationship from an actor to a target.
type Edge struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	TargetID  string    `json:"targetId"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// EdgeStore persists relationship edges. Implementations must make Insert
// atomic with respect to the tuple uniqueness constraint: a concurrent insert
// of the same (actor, target, kind) tuple must fail with
// ErrConflict rather than create a second edge. Inserting an edge
// whose target no longer exists must fail with ErrNotFound.
type EdgeStore interface {
	Insert(ctx context.Context, edge Edge) error
	DeleteTuple(ctx context.Context, actorID, targetID string, kind Kind) (bool, error)
	ListByActor(ctx context.Context, actorID string, kind Kind) ([]Edge, error)
	ListByTarget(ctx context.Context, targetID string, kind Kind) ([]Edge, error)
}

// Result reports which branch of a toggle ran.
type Result struct {
	Edge    *Edge  `json:"edge"`
	Active  bool   `json:"active"`
	Message string `json:"message"`
}

// Engine flips edge existence for like and subscription toggles.
type Engine struct {
	store EdgeStore

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewEngine constructs an Engine over the provided store.
func NewEngine(store EdgeStore) *Engine {
	if store == nil {
		panic("relations: edge store must not be nil")
	}
	return &Engine{store: store}
}

// toggleAttempts bounds the insert/delete loop when concurrent toggles for the
// same tuple keep flipping the edge between attempts.
const toggleAttempts = 3

// Toggle creates the tuple's edge when absent and deletes it when present.
// Exactly one of the two branches takes effect per call. The uniqueness
// constraint in the store keeps concurrent toggle-on calls from creating a
// second edge: the loser of the race observes a conflict and runs the delete
// branch instead.
func (e *Engine) Toggle(ctx context.Context, actorID, targetID string, kind Kind) (Result, error) {
	if uuid.Validate(actorID) != nil {
		return Result{}, apperr.BadRequest("a valid actor id is required")
	}
	if uuid.Validate(targetID) != nil {
		return Result{}, apperr.BadRequest("a valid target id is required")
	}
	if !kind.Valid() {
		return Result{}, apperr.BadRequest("unknown relation kind")
	}

	for attempt := 0; attempt < toggleAttempts; attempt++ {
		edge := Edge{
			ID:        uuid.NewString(),
			ActorID:   actorID,
			TargetID:  targetID,
			Kind:      kind,
			CreatedAt: e.now(),
		}

		err := e.store.Insert(ctx, edge)
		switch {
		case err == nil:
			return Result{Edge: &edge, Active: true, Message: kind.onMessage()}, nil
		case errors.Is(err, ErrConflict):
			removed, err := e.store.DeleteTuple(ctx, actorID, targetID, kind)
			if err != nil {
				return Result{}, fmt.Errorf("delete %s edge: %w", kind, err)
			}
			if removed {
				return Result{Active: false, Message: kind.offMessage()}, nil
			}
			// A concurrent toggle removed the edge between our insert and
			// delete. Re-run the insert branch.
		case errors.Is(err, ErrNotFound):
			return Result{}, apperr.BadRequest("target does not exist")
		default:
			return Result{}, fmt.Errorf("insert %s edge: %w", kind, err)
		}
	}

	return Result{}, apperr.Conflict("toggle is contended, please retry")
}

// ListByActor returns the edges created by the actor for the given kind.
func (e *Engine) ListByActor(ctx context.Context, actorID string, kind Kind) ([]Edge, error) {
	if uuid.Validate(actorID) != nil {
		return nil, apperr.BadRequest("a valid actor id is required")
	}
	edges, err := e.store.ListByActor(ctx, actorID, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s edges by actor: %w", kind, err)
	}
	return edges, nil
}

// ListByTarget returns the edges pointing at the target for the given kind.
func (e *Engine) ListByTarget(ctx context.Context, targetID string, kind Kind) ([]Edge, error) {
	if uuid.Validate(targetID) != nil {
		return nil, apperr.BadRequest("a valid target id is required")
	}
	edges, err := e.store.ListByTarget(ctx, targetID, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s edges by target: %w", kind, err)
	}
	return edges, nil
}

func (e *Engine) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}

func (k Kind) onMessage() string {
	if k == KindSubscription {
		return "subscribed"
	}
	return "liked"
}

func (k Kind) offMessage() string {
	if k == KindSubscription {
		return "unsubscribed"
	}
	return "unliked"
}
