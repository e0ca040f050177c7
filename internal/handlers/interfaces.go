package handlers

import (
	"context"
	"io"
	"time"

	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/relations"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
	UpdateProfile(ctx context.Context, userID, fullName, email string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
	UpdateCoverImage(ctx context.Context, userID, coverURL string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	AppendWatchEntry(ctx context.Context, userID, videoID string, watchedAt time.Time) error
	WatchHistory(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error)
}

// CredentialChecker verifies a submitted identity and password.
type CredentialChecker interface {
	Verify(ctx context.Context, identity, password string) (models.User, error)
}

// SessionIssuer mints a signed token pair and stores the refresh token.
type SessionIssuer interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
}

// SessionRotator exchanges a presented refresh token for a new pair.
type SessionRotator interface {
	Rotate(ctx context.Context, presented string) (models.User, models.TokenPair, error)
}

// RelationToggler flips and lists relationship edges.
type RelationToggler interface {
	Toggle(ctx context.Context, actorID, targetID string, kind relations.Kind) (relations.Result, error)
	ListByActor(ctx context.Context, actorID string, kind relations.Kind) ([]relations.Edge, error)
	ListByTarget(ctx context.Context, targetID string, kind relations.Kind) ([]relations.Edge, error)
}

// BlobStore persists an uploaded blob and returns its durable location.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ViewRecorder counts a video playback.
type ViewRecorder interface {
	Record(ctx context.Context, videoID string) error
}

// VideoStore captures persistence for published videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	ListRecent(ctx context.Context, limit, offset int) ([]models.Video, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	Delete(ctx context.Context, videoID, ownerID string) error
}

// CommentStore captures persistence for video comments.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListByVideo(ctx context.Context, videoID string, limit, offset int) ([]models.Comment, error)
	UpdateContent(ctx context.Context, commentID, ownerID, content string) error
	Delete(ctx context.Context, commentID, ownerID string) error
}

// PostStore captures persistence for channel posts.
type PostStore interface {
	Create(ctx context.Context, post models.Post) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Post, error)
	Delete(ctx context.Context, postID, ownerID string) error
}

// PlaylistStore captures persistence for playlists.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error)
	AddVideo(ctx context.Context, playlistID, ownerID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, ownerID, videoID string) error
	Delete(ctx context.Context, playlistID, ownerID string) error
}
