package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// UserSource resolves users for credential checks and token validation.
type UserSource interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
}

// CredentialVerifier checks a submitted identity and password against the
// stored password hash. It performs no writes.
type CredentialVerifier struct {
	users UserSource
}

// NewCredentialVerifier constructs a verifier over the provided user source.
func NewCredentialVerifier(users UserSource) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify resolves the user by username or email (usernames compared
// case-insensitively) and compares the password against the stored bcrypt
// hash. The comparison is constant-time by construction.
func (v *CredentialVerifier) Verify(ctx context.Context, identity, password string) (models.User, error) {
	identity = strings.TrimSpace(strings.ToLower(identity))
	if identity == "" || password == "" {
		return models.User{}, apperr.BadRequest("username or email and password are required")
	}

	user, err := v.users.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.NotFound("user does not exist")
		}
		return models.User{}, fmt.Errorf("lookup user %q: %w", identity, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperr.Unauthorized("invalid user credentials")
	}

	return user, nil
}
