package handlers

import (
	"net/http"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/middleware"
	"github.com/streamtube/backend/internal/relations"
)

// SubscriptionHandler exposes channel subscriptions backed by the relations engine.
type SubscriptionHandler struct {
	Relations RelationToggler
}

// Toggle handles POST /api/v1/subscriptions/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	channelID := r.PathValue("channelId")
	if channelID == principal.User.ID {
		respondError(ctx, w, apperr.BadRequest("cannot subscribe to your own channel"), "")
		return
	}

	result, err := h.Relations.Toggle(ctx, principal.User.ID, channelID, relations.KindSubscription)
	if err != nil {
		respondError(ctx, w, err, "failed to toggle subscription")
		return
	}

	respondJSON(ctx, w, http.StatusOK, result)
}

// Subscribers handles GET /api/v1/channels/{channelId}/subscribers.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	edges, err := h.Relations.ListByTarget(ctx, r.PathValue("channelId"), relations.KindSubscription)
	if err != nil {
		respondError(ctx, w, err, "unable to list subscribers")
		return
	}
	if edges == nil {
		edges = []relations.Edge{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"subscribers": edges})
}

// Subscriptions handles GET /api/v1/users/{userId}/subscriptions.
func (h SubscriptionHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	edges, err := h.Relations.ListByActor(ctx, r.PathValue("userId"), relations.KindSubscription)
	if err != nil {
		respondError(ctx, w, err, "unable to list subscriptions")
		return
	}
	if edges == nil {
		edges = []relations.Edge{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"subscriptions": edges})
}
