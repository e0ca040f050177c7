package handlers

import (
	"net/http"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/middleware"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/relations"
)

// LikeHandler exposes the like toggles backed by the relations engine.
type LikeHandler struct {
	Relations RelationToggler
	Videos    VideoStore
}

// ToggleVideo handles POST /api/v1/likes/videos/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "videoId", relations.KindVideoLike)
}

// ToggleComment handles POST /api/v1/likes/comments/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "commentId", relations.KindCommentLike)
}

// TogglePost handles POST /api/v1/likes/posts/{postId}.
func (h LikeHandler) TogglePost(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "postId", relations.KindPostLike)
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, param string, kind relations.Kind) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	result, err := h.Relations.Toggle(ctx, principal.User.ID, r.PathValue(param), kind)
	if err != nil {
		respondError(ctx, w, err, "failed to toggle like")
		return
	}

	respondJSON(ctx, w, http.StatusOK, result)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	edges, err := h.Relations.ListByActor(ctx, principal.User.ID, relations.KindVideoLike)
	if err != nil {
		respondError(ctx, w, err, "unable to list liked videos")
		return
	}

	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.TargetID)
	}

	videos, err := h.Videos.FindByIDs(ctx, ids)
	if err != nil {
		respondError(ctx, w, err, "unable to list liked videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}
