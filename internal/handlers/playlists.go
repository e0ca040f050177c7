package handlers

import (
	"context"
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

// PlaylistHandler provides playlist endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	NowFunc   func() time.Time
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid request body"), "")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(ctx, w, apperr.BadRequest("name is required"), "")
		return
	}

	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     principal.User.ID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   h.now(),
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondError(ctx, w, err, "failed to create playlist")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"playlist": playlist})
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlistID := r.PathValue("playlistId")
	if uuid.Validate(playlistID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid playlist id is required"), "")
		return
	}

	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperr.NotFound("playlist does not exist"), "")
			return
		}
		respondError(ctx, w, err, "unable to load playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"playlist": playlist})
}

// ListByOwner handles GET /api/v1/users/{userId}/playlists.
func (h PlaylistHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID := r.PathValue("userId")
	if uuid.Validate(ownerID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid user id is required"), "")
		return
	}

	playlists, err := h.Playlists.ListByOwner(ctx, ownerID)
	if err != nil {
		respondError(ctx, w, err, "unable to list playlists")
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"playlists": playlists})
}

// AddVideo handles POST /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	h.mutateVideo(w, r, h.Playlists.AddVideo, "video added to playlist")
}

// RemoveVideo handles DELETE /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	h.mutateVideo(w, r, h.Playlists.RemoveVideo, "video removed from playlist")
}

func (h PlaylistHandler) mutateVideo(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, playlistID, ownerID, videoID string) error, message string) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	playlistID := r.PathValue("playlistId")
	videoID := r.PathValue("videoId")
	if uuid.Validate(playlistID) != nil || uuid.Validate(videoID) != nil {
		respondError(ctx, w, apperr.BadRequest("valid playlist and video ids are required"), "")
		return
	}

	if err := op(ctx, playlistID, principal.User.ID, videoID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, apperr.NotFound("playlist or video does not exist"), "")
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, apperr.Conflict("video is already in the playlist"), "")
		default:
			respondError(ctx, w, err, "failed to update playlist")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": message})
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	playlistID := r.PathValue("playlistId")
	if uuid.Validate(playlistID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid playlist id is required"), "")
		return
	}

	if err := h.Playlists.Delete(ctx, playlistID, principal.User.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperr.NotFound("playlist does not exist"), "")
			return
		}
		respondError(ctx, w, err, "failed to delete playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "playlist deleted"})
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
