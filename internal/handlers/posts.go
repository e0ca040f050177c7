package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/middleware"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// PostHandler provides channel post endpoints.
type PostHandler struct {
	Posts   PostStore
	NowFunc func() time.Time
}

type postRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/posts.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid request body"), "")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(ctx, w, apperr.BadRequest("content is required"), "")
		return
	}

	post := models.Post{
		ID:        uuid.NewString(),
		OwnerID:   principal.User.ID,
		Content:   content,
		CreatedAt: h.now(),
	}

	if err := h.Posts.Create(ctx, post); err != nil {
		respondError(ctx, w, err, "failed to create post")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"post": post})
}

// ListByOwner handles GET /api/v1/users/{userId}/posts.
func (h PostHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID := r.PathValue("userId")
	if uuid.Validate(ownerID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid user id is required"), "")
		return
	}

	posts, err := h.Posts.ListByOwner(ctx, ownerID)
	if err != nil {
		respondError(ctx, w, err, "unable to list posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"posts": posts})
}

// Delete handles DELETE /api/v1/posts/{postId}.
func (h PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	postID := r.PathValue("postId")
	if uuid.Validate(postID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid post id is required"), "")
		return
	}

	if err := h.Posts.Delete(ctx, postID, principal.User.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperr.NotFound("post does not exist"), "")
			return
		}
		respondError(ctx, w, err, "failed to delete post")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "post deleted"})
}

func (h PostHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
