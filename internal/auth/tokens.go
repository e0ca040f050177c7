// Package auth implements the session authentication protocol: credential
// verification, signed token issuance, and refresh-token rotation with reuse
// detection. Access tokens are stateless; refresh tokens are valid only while
// they match the single token stored for the user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamtube/backend/internal/models"
)

// SessionStore persists the single active refresh token per user. Overwriting
// it is the session policy: issuing a new pair revokes every previously issued
// refresh token for that user.
type SessionStore interface {
	SetRefreshToken(ctx context.Context, userID, token string) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

// TokenConfig holds the signing material and lifetimes for both token kinds.
// The secrets must differ so a leaked access token cannot be replayed as a
// refresh token.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the payload embedded in both access and refresh tokens.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Issuer mints signed access and refresh token pairs.
type Issuer struct {
	cfg      TokenConfig
	sessions SessionStore

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewIssuer constructs an Issuer backed by the provided session store.
func NewIssuer(cfg TokenConfig, sessions SessionStore) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("auth: both token secrets must be provided")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	if sessions == nil {
		return nil, errors.New("auth: session store must not be nil")
	}
	return &Issuer{cfg: cfg, sessions: sessions}, nil
}

// Issue signs a fresh token pair for the user and overwrites their stored
// refresh token. Signing happens before the store write so an interrupted call
// leaves no inconsistent session state: the caller simply receives no tokens.
func (i *Issuer) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("auth: user id must be provided")
	}

	now := i.now()
	accessExpiry := now.Add(i.cfg.AccessTTL)
	refreshExpiry := now.Add(i.cfg.RefreshTTL)

	accessToken, err := signToken(userID, now, accessExpiry, i.cfg.AccessSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := signToken(userID, now, refreshExpiry, i.cfg.RefreshSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := i.sessions.SetRefreshToken(ctx, userID, refreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccess checks the signature and expiry of an access token and returns
// its claims. No store lookup happens here; access tokens are stateless.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return parseToken(token, i.cfg.AccessSecret)
}

// VerifyRefresh checks the signature and expiry of a refresh token. Equality
// with the stored token is the rotation engine's job, not this method's.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return parseToken(token, i.cfg.RefreshSecret)
}

func (i *Issuer) now() time.Time {
	if i.NowFunc != nil {
		return i.NowFunc()
	}
	return time.Now().UTC()
}

func signToken(userID string, issuedAt, expiresAt time.Time, secret []byte) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		return nil, errors.New("token is missing a user id")
	}
	return claims, nil
}
