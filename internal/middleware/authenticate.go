package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/auth"
	"github.com/streamtube/backend/internal/logging"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

type principalCtxKey struct{}

// Principal is the sanitized identity the gate attaches to the request
// context. Handlers behind the gate receive it instead of reading tokens
// themselves.
type Principal struct {
	User models.PublicUser
}

// PrincipalFromContext retrieves the authenticated principal placed on the
// context by Authenticate.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(Principal)
	return principal, ok
}

// AccessVerifier validates an access token's signature and expiry.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// Authenticate validates the inbound access token and resolves the calling
// user before the wrapped handler runs. The check is stateless: signature and
// expiry only, plus one read to confirm the user still exists. It never
// touches session state.
func Authenticate(verifier AccessVerifier, users auth.UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := accessTokenFromRequest(r)
			if token == "" {
				denyUnauthorized(ctx, w, "unauthorized request")
				return
			}

			claims, err := verifier.VerifyAccess(token)
			if err != nil {
				denyUnauthorized(ctx, w, err.Error())
				return
			}

			user, err := users.FindByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					denyUnauthorized(ctx, w, "invalid access token")
					return
				}
				logging.FromContext(ctx).Error("resolve authenticated user", "userId", claims.UserID, "error", err)
				writeError(ctx, w, apperr.Internal("unable to resolve user"))
				return
			}

			principal := Principal{User: user.Public()}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, principalCtxKey{}, principal)))
		})
	}
}

// accessTokenFromRequest prefers the cookie over the Authorization header.
func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func denyUnauthorized(ctx context.Context, w http.ResponseWriter, message string) {
	writeError(ctx, w, apperr.Unauthorized(message))
}

func writeError(ctx context.Context, w http.ResponseWriter, appErr *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	payload := map[string]any{"status": appErr.Status, "error": appErr.Message}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode error response", "status", appErr.Status, "error", err)
	}
}
