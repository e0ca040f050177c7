package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/logging"
	"github.com/streamtube/backend/internal/middleware"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// VideoHandler provides endpoints for publishing and watching videos.
type VideoHandler struct {
	Videos  VideoStore
	Users   UserStore
	Blobs   BlobStore
	Views   ViewRecorder
	NowFunc func() time.Time
}

// maxUploadBytes caps a single publish request.
const maxUploadBytes = 1 << 30

// Publish handles POST /api/v1/videos with multipart video and thumbnail files.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid multipart form"), "")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondError(ctx, w, apperr.BadRequest("title and description are required"), "")
		return
	}

	videoFile, videoHeader, err := r.FormFile("video")
	if err != nil {
		respondError(ctx, w, apperr.BadRequest("video file is required"), "")
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := r.FormFile("thumbnail")
	if err != nil {
		respondError(ctx, w, apperr.BadRequest("thumbnail file is required"), "")
		return
	}
	defer thumbFile.Close()

	uploadCtx, span := logging.StartSpan(ctx, "upload video")
	videoURL, err := h.Blobs.Save(uploadCtx, objectKey("videos", videoHeader.Filename), videoFile)
	if err != nil {
		span.End()
		logger.Error("store video blob", "error", err)
		respondError(ctx, w, err, "failed to store video")
		return
	}
	thumbURL, err := h.Blobs.Save(uploadCtx, objectKey("thumbnails", thumbHeader.Filename), thumbFile)
	span.End()
	if err != nil {
		logger.Error("store thumbnail blob", "error", err)
		respondError(ctx, w, err, "failed to store thumbnail")
		return
	}

	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)

	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     principal.User.ID,
		Title:       title,
		Description: description,
		VideoURL:    videoURL,
		Thumbnail:   thumbURL,
		Duration:    duration,
		Published:   true,
		CreatedAt:   h.now(),
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("create video", "error", err, "videoId", video.ID)
		respondError(ctx, w, err, "failed to publish video")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"video": video})
}

// Get handles GET /api/v1/videos/{videoId}. Fetching a video counts a view
// and appends it to the caller's watch history.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	videoID := r.PathValue("videoId")
	if uuid.Validate(videoID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid video id is required"), "")
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperr.NotFound("video does not exist"), "")
			return
		}
		respondError(ctx, w, err, "unable to load video")
		return
	}

	// Both writes are best-effort: a failed counter or history append must
	// not block playback.
	if h.Views != nil {
		if err := h.Views.Record(ctx, video.ID); err != nil {
			logger.Warn("record view", "videoId", video.ID, "error", err)
		}
	}
	if err := h.Users.AppendWatchEntry(ctx, principal.User.ID, video.ID, h.now()); err != nil {
		logger.Warn("append watch history", "videoId", video.ID, "error", err)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"video": video})
}

// List handles GET /api/v1/videos with optional limit/offset query parameters.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	videos, err := h.Videos.ListRecent(ctx, limit, offset)
	if err != nil {
		respondError(ctx, w, err, "unable to list videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

// ListByOwner handles GET /api/v1/users/{userId}/videos.
func (h VideoHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID := r.PathValue("userId")
	if uuid.Validate(ownerID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid user id is required"), "")
		return
	}

	videos, err := h.Videos.ListByOwner(ctx, ownerID)
	if err != nil {
		respondError(ctx, w, err, "unable to list videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

// Delete handles DELETE /api/v1/videos/{videoId}. Only the owner may delete;
// the repository cascades edges and comments in the same transaction.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	videoID := r.PathValue("videoId")
	if uuid.Validate(videoID) != nil {
		respondError(ctx, w, apperr.BadRequest("a valid video id is required"), "")
		return
	}

	if err := h.Videos.Delete(ctx, videoID, principal.User.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperr.NotFound("video does not exist"), "")
			return
		}
		respondError(ctx, w, err, "failed to delete video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "video deleted"})
}

// History handles GET /api/v1/users/history, most recently watched first.
func (h VideoHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Users.WatchHistory(ctx, principal.User.ID, limit)
	if err != nil {
		respondError(ctx, w, err, "unable to load watch history")
		return
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.VideoID)
	}

	videos, err := h.Videos.FindByIDs(ctx, ids)
	if err != nil {
		respondError(ctx, w, err, "unable to load watch history")
		return
	}

	// Preserve history order, most recently watched first.
	byID := make(map[string]models.Video, len(videos))
	for _, video := range videos {
		byID[video.ID] = video
	}
	ordered := make([]models.Video, 0, len(entries))
	for _, entry := range entries {
		if video, ok := byID[entry.VideoID]; ok {
			ordered = append(ordered, video)
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": ordered})
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
