package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streamtube/backend/internal/models"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func TestNewIssuerRejectsSharedSecret(t *testing.T) {
	cfg := testTokenConfig()
	cfg.RefreshSecret = cfg.AccessSecret

	if _, err := NewIssuer(cfg, NewMemoryUserStore()); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestIssuePersistsRefreshToken(t *testing.T) {
	store := NewMemoryUserStore()
	store.Add(models.User{ID: "user-1", Username: "alice"})

	issuer, err := NewIssuer(testTokenConfig(), store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	pair, err := issuer.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be signed")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	user, err := store.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.CurrentRefreshToken == nil || *user.CurrentRefreshToken != pair.RefreshToken {
		t.Fatal("expected stored refresh token to match the issued one")
	}
}

func TestIssueReturnsNoTokensWhenStoreFails(t *testing.T) {
	issuer, err := NewIssuer(testTokenConfig(), failingSessionStore{})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	pair, err := issuer.Issue(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
	if pair.AccessToken != "" || pair.RefreshToken != "" {
		t.Fatal("no tokens should escape a failed issuance")
	}
}

func TestVerifyAccessRoundTrip(t *testing.T) {
	store := NewMemoryUserStore()
	store.Add(models.User{ID: "user-1"})

	issuer, err := NewIssuer(testTokenConfig(), store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	pair, err := issuer.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected uid user-1, got %q", claims.UserID)
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	store := NewMemoryUserStore()
	store.Add(models.User{ID: "user-1"})

	issuer, err := NewIssuer(testTokenConfig(), store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	pair, err := issuer.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.RefreshToken); err == nil {
		t.Fatal("a refresh token must not verify as an access token")
	}
	if _, err := issuer.VerifyRefresh(pair.AccessToken); err == nil {
		t.Fatal("an access token must not verify as a refresh token")
	}
}

func TestVerifyAccessRejectsExpiredToken(t *testing.T) {
	store := NewMemoryUserStore()
	store.Add(models.User{ID: "user-1"})

	issuer, err := NewIssuer(testTokenConfig(), store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	issuer.NowFunc = func() time.Time { return time.Now().UTC().Add(-time.Hour) }

	pair, err := issuer.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.AccessToken); err == nil {
		t.Fatal("expected expired access token to be rejected")
	}
}

func TestVerifyAccessRejectsForeignSignature(t *testing.T) {
	store := NewMemoryUserStore()
	store.Add(models.User{ID: "user-1"})

	issuer, err := NewIssuer(testTokenConfig(), store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	other := testTokenConfig()
	other.AccessSecret = []byte("some-other-secret")
	foreign, err := NewIssuer(other, store)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	pair, err := foreign.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.AccessToken); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

type failingSessionStore struct{}

func (failingSessionStore) SetRefreshToken(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func (failingSessionStore) ClearRefreshToken(context.Context, string) error {
	return errors.New("store unavailable")
}
