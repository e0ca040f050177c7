package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

type memComments struct {
	comments map[string]models.Comment
	videos   map[string]bool
}

func newMemComments(videoIDs ...string) *memComments {
	s := &memComments{comments: make(map[string]models.Comment), videos: make(map[string]bool)}
	for _, id := range videoIDs {
		s.videos[id] = true
	}
	return s
}

func (s *memComments) Create(_ context.Context, comment models.Comment) error {
	if !s.videos[comment.VideoID] {
		return repositories.ErrNotFound
	}
	s.comments[comment.ID] = comment
	return nil
}

func (s *memComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s *memComments) ListByVideo(_ context.Context, videoID string, _, _ int) ([]models.Comment, error) {
	var out []models.Comment
	for _, comment := range s.comments {
		if comment.VideoID == videoID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (s *memComments) UpdateContent(_ context.Context, commentID, ownerID, content string) error {
	comment, ok := s.comments[commentID]
	if !ok || comment.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	comment.Content = content
	s.comments[commentID] = comment
	return nil
}

func (s *memComments) Delete(_ context.Context, commentID, ownerID string) error {
	comment, ok := s.comments[commentID]
	if !ok || comment.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.comments, commentID)
	return nil
}

type commentEnv struct {
	auth     authEnv
	token    string
	comments *memComments
	handler  CommentHandler
}

func newCommentEnv(t *testing.T, videoIDs ...string) commentEnv {
	t.Helper()

	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")
	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store := newMemComments(videoIDs...)
	return commentEnv{
		auth:     env,
		token:    pair.AccessToken,
		comments: store,
		handler:  CommentHandler{Comments: store},
	}
}

func TestCreateComment(t *testing.T) {
	videoID := uuid.NewString()
	env := newCommentEnv(t, videoID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/"+videoID+"/comments", strings.NewReader(`{"content":"nice"}`))
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: env.token})
	req.SetPathValue("videoId", videoID)
	rec := httptest.NewRecorder()

	env.auth.gate(http.HandlerFunc(env.handler.Create)).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	comment, ok := body["comment"].(map[string]any)
	if !ok || comment["content"] != "nice" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreateCommentOnMissingVideo(t *testing.T) {
	env := newCommentEnv(t)
	videoID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/"+videoID+"/comments", strings.NewReader(`{"content":"nice"}`))
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: env.token})
	req.SetPathValue("videoId", videoID)
	rec := httptest.NewRecorder()

	env.auth.gate(http.HandlerFunc(env.handler.Create)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "video does not exist" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestUpdateCommentRequiresOwnership(t *testing.T) {
	videoID := uuid.NewString()
	env := newCommentEnv(t, videoID)

	commentID := uuid.NewString()
	env.comments.comments[commentID] = models.Comment{
		ID: commentID, VideoID: videoID, OwnerID: uuid.NewString(), Content: "original",
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/comments/"+commentID, strings.NewReader(`{"content":"edited"}`))
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: env.token})
	req.SetPathValue("commentId", commentID)
	rec := httptest.NewRecorder()

	env.auth.gate(http.HandlerFunc(env.handler.Update)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner edit, got %d", rec.Code)
	}
	if env.comments.comments[commentID].Content != "original" {
		t.Fatal("comment must be unchanged after a non-owner edit")
	}
}
