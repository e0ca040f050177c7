package relations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/streamtube/backend/internal/apperr"
)

func TestToggleCreatesAndRemovesEdge(t *testing.T) {
	store := NewMemoryEdgeStore()
	engine := NewEngine(store)

	actor := uuid.NewString()
	target := uuid.NewString()

	on, err := engine.Toggle(context.Background(), actor, target, KindVideoLike)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !on.Active || on.Edge == nil {
		t.Fatalf("expected active edge, got %+v", on)
	}
	if on.Message != "liked" {
		t.Fatalf("unexpected message %q", on.Message)
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 edge, got %d", store.Count())
	}

	off, err := engine.Toggle(context.Background(), actor, target, KindVideoLike)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if off.Active || off.Edge != nil {
		t.Fatalf("expected inactive result, got %+v", off)
	}
	if off.Message != "unliked" {
		t.Fatalf("unexpected message %q", off.Message)
	}
	if store.Count() != 0 {
		t.Fatalf("expected 0 edges, got %d", store.Count())
	}
}

func TestToggleSubscriptionMessages(t *testing.T) {
	engine := NewEngine(NewMemoryEdgeStore())

	actor := uuid.NewString()
	target := uuid.NewString()

	on, err := engine.Toggle(context.Background(), actor, target, KindSubscription)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if on.Message != "subscribed" {
		t.Fatalf("unexpected message %q", on.Message)
	}

	off, err := engine.Toggle(context.Background(), actor, target, KindSubscription)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if off.Message != "unsubscribed" {
		t.Fatalf("unexpected message %q", off.Message)
	}
}

func TestToggleKindsAreIndependent(t *testing.T) {
	store := NewMemoryEdgeStore()
	engine := NewEngine(store)

	actor := uuid.NewString()
	target := uuid.NewString()

	if _, err := engine.Toggle(context.Background(), actor, target, KindVideoLike); err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if _, err := engine.Toggle(context.Background(), actor, target, KindSubscription); err != nil {
		t.Fatalf("toggle subscription: %v", err)
	}
	if store.Count() != 2 {
		t.Fatalf("expected independent edges per kind, got %d", store.Count())
	}
}

func TestToggleRejectsInvalidInput(t *testing.T) {
	engine := NewEngine(NewMemoryEdgeStore())

	cases := []struct {
		name   string
		actor  string
		target string
		kind   Kind
	}{
		{"bad actor", "not-a-uuid", uuid.NewString(), KindVideoLike},
		{"bad target", uuid.NewString(), "", KindVideoLike},
		{"bad kind", uuid.NewString(), uuid.NewString(), Kind("favorite")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Toggle(context.Background(), tc.actor, tc.target, tc.kind)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Status != 400 {
				t.Fatalf("expected 400, got %v", err)
			}
		})
	}
}

func TestToggleMissingTarget(t *testing.T) {
	store := NewMemoryEdgeStore()
	store.TargetExists = func(string, Kind) bool { return false }
	engine := NewEngine(store)

	_, err := engine.Toggle(context.Background(), uuid.NewString(), uuid.NewString(), KindVideoLike)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if appErr.Message != "target does not exist" {
		t.Fatalf("unexpected message %q", appErr.Message)
	}
}

func TestToggleConcurrentCallsKeepAtMostOneEdge(t *testing.T) {
	store := NewMemoryEdgeStore()
	engine := NewEngine(store)

	actor := uuid.NewString()
	target := uuid.NewString()

	const workers = 32

	var wg sync.WaitGroup
	results := make([]Result, workers)
	errs := make([]error, workers)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Toggle(context.Background(), actor, target, KindVideoLike)
		}(i)
	}
	wg.Wait()

	var activations, deactivations int
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			// Contended toggles may exhaust their retries. That is an
			// explicit outcome, not a broken invariant.
			var appErr *apperr.Error
			if !errors.As(errs[i], &appErr) || appErr.Status != 409 {
				t.Fatalf("worker %d: unexpected error %v", i, errs[i])
			}
			continue
		}
		if results[i].Active {
			activations++
		} else {
			deactivations++
		}
	}

	if got := store.Count(); got != activations-deactivations {
		t.Fatalf("store holds %d edges but toggles net out to %d", got, activations-deactivations)
	}
	if store.Count() < 0 || store.Count() > 1 {
		t.Fatalf("tuple must have at most one edge, got %d", store.Count())
	}
}

func TestListByActorAndTarget(t *testing.T) {
	store := NewMemoryEdgeStore()
	engine := NewEngine(store)

	actor := uuid.NewString()
	other := uuid.NewString()
	target := uuid.NewString()

	for _, a := range []string{actor, other} {
		if _, err := engine.Toggle(context.Background(), a, target, KindSubscription); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	byActor, err := engine.ListByActor(context.Background(), actor, KindSubscription)
	if err != nil {
		t.Fatalf("list by actor: %v", err)
	}
	if len(byActor) != 1 {
		t.Fatalf("expected 1 edge for actor, got %d", len(byActor))
	}

	byTarget, err := engine.ListByTarget(context.Background(), target, KindSubscription)
	if err != nil {
		t.Fatalf("list by target: %v", err)
	}
	if len(byTarget) != 2 {
		t.Fatalf("expected 2 edges for target, got %d", len(byTarget))
	}
}
