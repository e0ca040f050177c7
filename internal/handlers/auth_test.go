package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/streamtube/backend/internal/auth"
	"github.com/streamtube/backend/internal/middleware"
	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// memUsers is a map-backed UserStore used across the handler tests. It also
// satisfies auth.UserSource and auth.SessionStore so real issuers and rotators
// can run against it.
type memUsers struct {
	mu      sync.Mutex
	users   map[string]models.User
	history map[string][]models.WatchEntry
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User), history: make(map[string][]models.WatchEntry)}
}

func (s *memUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memUsers) FindByIdentity(_ context.Context, identity string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, identity) || strings.EqualFold(user.Email, identity) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUsers) UpdateProfile(_ context.Context, userID, fullName, email string) error {
	return s.update(userID, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (s *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return s.update(userID, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (s *memUsers) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	return s.update(userID, func(u *models.User) { u.Avatar = avatarURL })
}

func (s *memUsers) UpdateCoverImage(_ context.Context, userID, coverURL string) error {
	return s.update(userID, func(u *models.User) { u.CoverImage = coverURL })
}

func (s *memUsers) SetRefreshToken(_ context.Context, userID, token string) error {
	return s.update(userID, func(u *models.User) { u.CurrentRefreshToken = &token })
}

func (s *memUsers) ClearRefreshToken(_ context.Context, userID string) error {
	return s.update(userID, func(u *models.User) { u.CurrentRefreshToken = nil })
}

func (s *memUsers) AppendWatchEntry(_ context.Context, userID, videoID string, watchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID] = append(s.history[userID], models.WatchEntry{VideoID: videoID, WatchedAt: watchedAt})
	return nil
}

func (s *memUsers) WatchHistory(_ context.Context, userID string, _ int) ([]models.WatchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[userID], nil
}

func (s *memUsers) update(userID string, apply func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	apply(&user)
	s.users[userID] = user
	return nil
}

type authEnv struct {
	store   *memUsers
	issuer  *auth.Issuer
	handler AuthHandler
	gate    func(http.Handler) http.Handler
}

func newAuthEnv(t *testing.T) authEnv {
	t.Helper()

	store := newMemUsers()
	issuer, err := auth.NewIssuer(auth.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	}, store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	return authEnv{
		store:  store,
		issuer: issuer,
		handler: AuthHandler{
			Users:       store,
			Credentials: auth.NewCredentialVerifier(store),
			Issuer:      issuer,
			Rotator:     auth.NewRotator(issuer, store),
		},
		gate: middleware.Authenticate(issuer, store),
	}
}

func (e authEnv) addUser(t *testing.T, username, email, password string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		ID:           "aaaaaaaa-0000-0000-0000-000000000001",
		Username:     username,
		Email:        email,
		FullName:     "Test User",
		PasswordHash: string(hash),
	}
	if err := e.store.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func postJSON(t *testing.T, target string, payload any) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterCreatesAccount(t *testing.T) {
	env := newAuthEnv(t)

	req := postJSON(t, "/api/v1/auth/register", registerRequest{
		Username: "alice", Email: "alice@example.com", FullName: "Alice", Password: "supersafe",
	})
	rec := httptest.NewRecorder()

	env.handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %v", body)
	}
	if user["username"] != "alice" {
		t.Fatalf("unexpected username %v", user["username"])
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("password hash must not appear in responses")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(t, "alice", "alice@example.com", "supersafe")

	req := postJSON(t, "/api/v1/auth/register", registerRequest{
		Username: "alice", Email: "other@example.com", FullName: "Alice", Password: "supersafe",
	})
	rec := httptest.NewRecorder()

	env.handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	env := newAuthEnv(t)

	req := postJSON(t, "/api/v1/auth/register", registerRequest{
		Username: "alice", Email: "alice@example.com", FullName: "Alice", Password: "short",
	})
	rec := httptest.NewRecorder()

	env.handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoginReturnsTokensAndCookies(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(t, "alice", "alice@example.com", "supersafe")

	req := postJSON(t, "/api/v1/auth/login", loginRequest{Identity: "alice", Password: "supersafe"})
	rec := httptest.NewRecorder()

	env.handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["accessToken"] == "" || body["refreshToken"] == "" {
		t.Fatal("expected both tokens in the response body")
	}
	if _, ok := body["user"].(map[string]any); !ok {
		t.Fatal("expected user in the response body")
	}

	cookies := rec.Result().Cookies()
	for _, name := range []string{"accessToken", "refreshToken"} {
		cookie := cookieByName(cookies, name)
		if cookie == nil || cookie.Value == "" {
			t.Fatalf("expected %s cookie", name)
		}
		if !cookie.HttpOnly || !cookie.Secure {
			t.Fatalf("%s cookie must be HttpOnly and Secure", name)
		}
	}
}

func TestLoginAcceptsEmailField(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(t, "alice", "alice@example.com", "supersafe")

	req := postJSON(t, "/api/v1/auth/login", loginRequest{Email: "alice@example.com", Password: "supersafe"})
	rec := httptest.NewRecorder()

	env.handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginUnknownUser(t *testing.T) {
	env := newAuthEnv(t)

	req := postJSON(t, "/api/v1/auth/login", loginRequest{Identity: "ghost", Password: "supersafe"})
	rec := httptest.NewRecorder()

	env.handler.Login(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "user does not exist" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(t, "alice", "alice@example.com", "supersafe")

	req := postJSON(t, "/api/v1/auth/login", loginRequest{Identity: "alice", Password: "nope"})
	rec := httptest.NewRecorder()

	env.handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid user credentials" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestRefreshRotatesTokenFromCookie(t *testing.T) {
	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")

	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	rec := httptest.NewRecorder()

	env.handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["refreshToken"] == pair.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// Replaying the rotated-away token must be rejected.
	replay := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	replay.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	replayRec := httptest.NewRecorder()

	env.handler.Refresh(replayRec, replay)

	if replayRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on reuse, got %d", replayRec.Code)
	}
	if body := decodeBody(t, replayRec); body["error"] != "refresh token is expired or already used" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestRefreshAcceptsBodyToken(t *testing.T) {
	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")

	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := postJSON(t, "/api/v1/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken})
	rec := httptest.NewRecorder()

	env.handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	env := newAuthEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	rec := httptest.NewRecorder()

	env.handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")

	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: pair.AccessToken})
	rec := httptest.NewRecorder()

	env.gate(http.HandlerFunc(env.handler.Logout)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := env.store.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.CurrentRefreshToken != nil {
		t.Fatal("logout must clear the stored refresh token")
	}

	access := cookieByName(rec.Result().Cookies(), "accessToken")
	if access == nil || access.MaxAge != -1 {
		t.Fatal("logout must expire the auth cookies")
	}

	// The old refresh token must be dead after logout.
	refresh := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	refresh.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	refreshRec := httptest.NewRecorder()

	env.handler.Refresh(refreshRec, refresh)

	if refreshRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", refreshRec.Code)
	}
}

func TestMeReturnsAuthenticatedUser(t *testing.T) {
	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")

	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()

	env.gate(http.HandlerFunc(env.handler.Me)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	userBody, ok := body["user"].(map[string]any)
	if !ok || userBody["id"] != user.ID {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestChangePasswordRequiresMatchingConfirmation(t *testing.T) {
	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")

	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := postJSON(t, "/api/v1/auth/change-password", changePasswordRequest{
		OldPassword: "supersafe", NewPassword: "newpassword", ConfirmPassword: "different",
	})
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: pair.AccessToken})
	rec := httptest.NewRecorder()

	env.gate(http.HandlerFunc(env.handler.ChangePassword)).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChangePasswordUpdatesHash(t *testing.T) {
	env := newAuthEnv(t)
	user := env.addUser(t, "alice", "alice@example.com", "supersafe")

	pair, err := env.issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := postJSON(t, "/api/v1/auth/change-password", changePasswordRequest{
		OldPassword: "supersafe", NewPassword: "newpassword", ConfirmPassword: "newpassword",
	})
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: pair.AccessToken})
	rec := httptest.NewRecorder()

	env.gate(http.HandlerFunc(env.handler.ChangePassword)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := env.store.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword")) != nil {
		t.Fatal("new password must verify against the stored hash")
	}
}
