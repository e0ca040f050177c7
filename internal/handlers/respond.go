package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/logging"
	"github.com/streamtube/backend/internal/models"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError converts any error into the uniform error envelope. Errors that
// are not part of the apperr taxonomy become 500s carrying only the fallback
// message, so store and signing failures never leak to callers.
func respondError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	appErr := apperr.From(err, fallback)
	if appErr.Status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("internal error", "error", err)
	}
	respondJSON(ctx, w, appErr.Status, map[string]any{"status": appErr.Status, "error": appErr.Message})
}

// authCookie builds one of the auth cookies. All of them are HttpOnly and
// Secure, with SameSite=None so browser clients on another origin receive them.
func authCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func setAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, authCookie("accessToken", pair.AccessToken, 0))
	http.SetCookie(w, authCookie("refreshToken", pair.RefreshToken, 0))
}

func clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, authCookie("accessToken", "", -1))
	http.SetCookie(w, authCookie("refreshToken", "", -1))
}
