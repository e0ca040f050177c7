package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/streamtube/backend/internal/apperr"
	"github.com/streamtube/backend/internal/logging"
	"github.com/streamtube/backend/internal/middleware"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// AuthHandler implements account and session endpoints.
type AuthHandler struct {
	Users       UserStore
	Credentials CredentialChecker
	Issuer      SessionIssuer
	Rotator     SessionRotator
	Blobs       BlobStore
	NowFunc     func() time.Time
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identity string `json:"identity"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /api/v1/auth/register. Browser clients may submit a
// multipart form carrying optional avatar and cover image files; API clients
// send plain JSON.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var (
		req       registerRequest
		avatarURL string
		coverURL  string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			respondError(ctx, w, apperr.BadRequest("invalid multipart form"), "")
			return
		}
		req.Username = r.FormValue("username")
		req.Email = r.FormValue("email")
		req.FullName = r.FormValue("fullName")
		req.Password = r.FormValue("password")

		var err error
		if avatarURL, err = h.saveOptionalImage(ctx, r, "avatar"); err != nil {
			respondError(ctx, w, err, "failed to store image")
			return
		}
		if coverURL, err = h.saveOptionalImage(ctx, r, "coverImage"); err != nil {
			respondError(ctx, w, err, "failed to store image")
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid request body"), "")
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Email == "" || req.FullName == "" || req.Password == "" {
		respondError(ctx, w, apperr.BadRequest("all fields are required"), "")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid email address"), "")
		return
	}
	if len(req.Password) < 8 {
		respondError(ctx, w, apperr.BadRequest("password must be at least 8 characters"), "")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, err, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperr.Conflict("user with email or username already exists"), "")
			return
		}
		logger.Error("create user", "error", err, "username", req.Username)
		respondError(ctx, w, err, "failed to create account")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"user": user.Public()})
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid request body"), "")
		return
	}

	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		identity = strings.TrimSpace(req.Username)
	}
	if identity == "" {
		identity = strings.TrimSpace(req.Email)
	}
	if identity == "" {
		respondError(ctx, w, apperr.BadRequest("username or email is required"), "")
		return
	}

	user, err := h.Credentials.Verify(ctx, identity, req.Password)
	if err != nil {
		respondError(ctx, w, err, "unable to verify credentials")
		return
	}

	pair, err := h.Issuer.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, err, "failed to create session")
		return
	}

	setAuthCookies(w, pair)
	respondJSON(ctx, w, http.StatusOK, loginResponse{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is read from
// the cookie first, then from the request body for non-browser clients.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie("refreshToken"); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}

	_, pair, err := h.Rotator.Rotate(ctx, presented)
	if err != nil {
		respondError(ctx, w, err, "unable to refresh session")
		return
	}

	setAuthCookies(w, pair)
	respondJSON(ctx, w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /api/v1/auth/logout. Requires the gate.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	if err := h.Users.ClearRefreshToken(ctx, principal.User.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logging.FromContext(ctx).Error("clear refresh token", "error", err, "userId", principal.User.ID)
		respondError(ctx, w, err, "failed to log out")
		return
	}

	clearAuthCookies(w)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "user logged out"})
}

// Me handles GET /api/v1/auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": principal.User})
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid request body"), "")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		respondError(ctx, w, apperr.BadRequest("passwords do not match"), "")
		return
	}
	if len(req.NewPassword) < 8 {
		respondError(ctx, w, apperr.BadRequest("password must be at least 8 characters"), "")
		return
	}

	user, err := h.Users.FindByID(ctx, principal.User.ID)
	if err != nil {
		respondError(ctx, w, err, "unable to load account")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		respondError(ctx, w, apperr.BadRequest("invalid old password"), "")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, err, "failed to secure password")
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		respondError(ctx, w, err, "failed to change password")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "password changed successfully"})
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// UpdateAccount handles PATCH /api/v1/auth/account.
func (h AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid request body"), "")
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if fullName == "" && email == "" {
		respondError(ctx, w, apperr.BadRequest("full name or email is required"), "")
		return
	}
	if fullName == "" {
		fullName = principal.User.FullName
	}
	if email == "" {
		email = principal.User.Email
	} else if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid email address"), "")
		return
	}

	if err := h.Users.UpdateProfile(ctx, principal.User.ID, fullName, email); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperr.Conflict("email already in use"), "")
			return
		}
		respondError(ctx, w, err, "failed to update account")
		return
	}

	user, err := h.Users.FindByID(ctx, principal.User.ID)
	if err != nil {
		respondError(ctx, w, err, "unable to load account")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user.Public()})
}

// UpdateAvatar handles PATCH /api/v1/auth/avatar with a multipart image.
func (h AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/auth/cover-image with a multipart image.
func (h AuthHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.Users.UpdateCoverImage)
}

func (h AuthHandler) updateImage(w http.ResponseWriter, r *http.Request, field string, persist func(ctx context.Context, userID, url string) error) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"), "")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(ctx, w, apperr.BadRequest("invalid multipart form"), "")
		return
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		respondError(ctx, w, apperr.BadRequest(field+" file is required"), "")
		return
	}
	defer file.Close()

	uploadCtx, span := logging.StartSpan(ctx, "upload "+field)
	url, err := h.Blobs.Save(uploadCtx, objectKey(field+"s", header.Filename), file)
	span.End()
	if err != nil {
		logging.FromContext(ctx).Error("store image", "field", field, "error", err)
		respondError(ctx, w, err, "failed to store image")
		return
	}

	if err := persist(ctx, principal.User.ID, url); err != nil {
		respondError(ctx, w, err, "failed to update account")
		return
	}

	user, err := h.Users.FindByID(ctx, principal.User.ID)
	if err != nil {
		respondError(ctx, w, err, "unable to load account")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user.Public()})
}

// saveOptionalImage uploads the named multipart file when present. A missing
// file is not an error.
func (h AuthHandler) saveOptionalImage(ctx context.Context, r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil
	}
	defer file.Close()

	if h.Blobs == nil {
		return "", apperr.BadRequest(field + " uploads are not supported")
	}

	uploadCtx, span := logging.StartSpan(ctx, "upload "+field)
	url, err := h.Blobs.Save(uploadCtx, objectKey(field+"s", header.Filename), file)
	span.End()
	if err != nil {
		logging.FromContext(ctx).Error("store image", "field", field, "error", err)
		return "", err
	}
	return url, nil
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// objectKey builds a collision-free blob key preserving the upload's extension.
func objectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return prefix + "/" + uuid.NewString() + ext
}
