package handlers

import (
	"net/http"

	"github.com/streamtube/backend/internal/auth"
	"github.com/streamtube/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	UserSource  auth.UserSource
	Credentials CredentialChecker
	Issuer      SessionIssuer
	Rotator     SessionRotator
	Verifier    middleware.AccessVerifier
	Relations   RelationToggler
	Videos      VideoStore
	Comments    CommentStore
	Posts       PostStore
	Playlists   PlaylistStore
	Blobs       BlobStore
	Views       ViewRecorder
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Routes that
// act on behalf of a user sit behind the authentication gate; reads of public
// resources do not.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Credentials: deps.Credentials, Issuer: deps.Issuer, Rotator: deps.Rotator, Blobs: deps.Blobs}
	videos := VideoHandler{Videos: deps.Videos, Users: deps.Users, Blobs: deps.Blobs, Views: deps.Views}
	likes := LikeHandler{Relations: deps.Relations, Videos: deps.Videos}
	subs := SubscriptionHandler{Relations: deps.Relations}
	comments := CommentHandler{Comments: deps.Comments}
	posts := PostHandler{Posts: deps.Posts}
	playlists := PlaylistHandler{Playlists: deps.Playlists}

	gate := middleware.Authenticate(deps.Verifier, deps.UserSource)
	protected := func(h http.HandlerFunc) http.Handler { return gate(h) }

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/auth/register", authH.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authH.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authH.Refresh)
	mux.Handle("POST /api/v1/auth/logout", protected(authH.Logout))
	mux.Handle("GET /api/v1/auth/me", protected(authH.Me))
	mux.Handle("POST /api/v1/auth/change-password", protected(authH.ChangePassword))
	mux.Handle("PATCH /api/v1/auth/account", protected(authH.UpdateAccount))
	mux.Handle("PATCH /api/v1/auth/avatar", protected(authH.UpdateAvatar))
	mux.Handle("PATCH /api/v1/auth/cover-image", protected(authH.UpdateCoverImage))

	mux.Handle("POST /api/v1/videos", protected(videos.Publish))
	mux.HandleFunc("GET /api/v1/videos", videos.List)
	mux.Handle("GET /api/v1/videos/{videoId}", protected(videos.Get))
	mux.Handle("DELETE /api/v1/videos/{videoId}", protected(videos.Delete))
	mux.HandleFunc("GET /api/v1/users/{userId}/videos", videos.ListByOwner)
	mux.Handle("GET /api/v1/users/history", protected(videos.History))

	mux.Handle("POST /api/v1/videos/{videoId}/comments", protected(comments.Create))
	mux.HandleFunc("GET /api/v1/videos/{videoId}/comments", comments.List)
	mux.Handle("PATCH /api/v1/comments/{commentId}", protected(comments.Update))
	mux.Handle("DELETE /api/v1/comments/{commentId}", protected(comments.Delete))

	mux.Handle("POST /api/v1/likes/videos/{videoId}", protected(likes.ToggleVideo))
	mux.Handle("POST /api/v1/likes/comments/{commentId}", protected(likes.ToggleComment))
	mux.Handle("POST /api/v1/likes/posts/{postId}", protected(likes.TogglePost))
	mux.Handle("GET /api/v1/likes/videos", protected(likes.LikedVideos))

	mux.Handle("POST /api/v1/subscriptions/{channelId}", protected(subs.Toggle))
	mux.HandleFunc("GET /api/v1/channels/{channelId}/subscribers", subs.Subscribers)
	mux.HandleFunc("GET /api/v1/users/{userId}/subscriptions", subs.Subscriptions)

	mux.Handle("POST /api/v1/posts", protected(posts.Create))
	mux.HandleFunc("GET /api/v1/users/{userId}/posts", posts.ListByOwner)
	mux.Handle("DELETE /api/v1/posts/{postId}", protected(posts.Delete))

	mux.Handle("POST /api/v1/playlists", protected(playlists.Create))
	mux.HandleFunc("GET /api/v1/playlists/{playlistId}", playlists.Get)
	mux.HandleFunc("GET /api/v1/users/{userId}/playlists", playlists.ListByOwner)
	mux.Handle("POST /api/v1/playlists/{playlistId}/videos/{videoId}", protected(playlists.AddVideo))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}/videos/{videoId}", protected(playlists.RemoveVideo))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}", protected(playlists.Delete))
}
