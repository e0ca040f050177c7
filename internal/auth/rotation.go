package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// Rotator exchanges a presented refresh token for a new token pair. Only the
// most recently issued refresh token for a user is ever accepted; presenting a
// rotated-away token is treated as reuse and rejected even before its expiry.
type Rotator struct {
	issuer *Issuer
	users  UserSource
}

// NewRotator constructs a Rotator over the issuer and user source.
func NewRotator(issuer *Issuer, users UserSource) *Rotator {
	return &Rotator{issuer: issuer, users: users}
}

// Rotate validates the presented refresh token and, on success, issues a new
// pair, overwriting the stored token. Validation order: presence, signature
// and expiry, principal existence, equality with the stored token.
func (r *Rotator) Rotate(ctx context.Context, presented string) (models.User, models.TokenPair, error) {
	if presented == "" {
		return models.User{}, models.TokenPair{}, apperr.Unauthorized("unauthorized request")
	}

	claims, err := r.issuer.VerifyRefresh(presented)
	if err != nil {
		return models.User{}, models.TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}

	user, err := r.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, models.TokenPair{}, apperr.Unauthorized("unauthorized request")
		}
		return models.User{}, models.TokenPair{}, fmt.Errorf("lookup user %s: %w", claims.UserID, err)
	}

	if user.CurrentRefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(*user.CurrentRefreshToken)) != 1 {
		return models.User{}, models.TokenPair{}, apperr.Unauthorized("refresh token is expired or already used")
	}

	pair, err := r.issuer.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("issue rotated tokens: %w", err)
	}

	return user, pair, nil
}
