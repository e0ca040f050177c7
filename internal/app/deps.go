package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/streamtube/backend/internal/auth"
	"github.com/streamtube/backend/internal/cache"
	"github.com/streamtube/backend/internal/config"
	"github.com/streamtube/backend/internal/db"
	"github.com/streamtube/backend/internal/handlers"
	"github.com/streamtube/backend/internal/relations"
	"github.com/streamtube/backend/internal/repositories"
	"github.com/streamtube/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers, plus the background view flusher that drains the Redis counter
// into Postgres.
func buildDependencies(ctx context.Context, pool db.Pool, redisClient redis.UniversalClient, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, *cache.ViewFlusher, error) {
	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)

	issuer, err := auth.NewIssuer(auth.TokenConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, users)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	blobs, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	counter := cache.NewViewCounter(redisClient)
	flusher := cache.NewViewFlusher(counter, videos, cfg.ViewFlushInterval, logger)

	deps := handlers.Dependencies{
		Users:       users,
		UserSource:  users,
		Credentials: auth.NewCredentialVerifier(users),
		Issuer:      issuer,
		Rotator:     auth.NewRotator(issuer, users),
		Verifier:    issuer,
		Relations:   relations.NewEngine(repositories.NewPostgresEdgeStore(pool)),
		Videos:      videos,
		Comments:    repositories.NewPostgresCommentRepository(pool),
		Posts:       repositories.NewPostgresPostRepository(pool),
		Playlists:   repositories.NewPostgresPlaylistRepository(pool),
		Blobs:       blobs,
		Views:       counter,
	}

	return deps, flusher, nil
}
