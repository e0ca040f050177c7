package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/streamtube/backend/internal/models"
	"github.com/streamtube/backend/internal/repositories"
)

// NewMemoryUserStore returns a map-backed store implementing UserSource and
// SessionStore for tests and local development.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

// MemoryUserStore keeps users and their refresh tokens in memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Add inserts or replaces a user record.
func (s *MemoryUserStore) Add(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// Remove deletes a user record if present.
func (s *MemoryUserStore) Remove(id string) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

// FindByID retrieves a user by their identifier.
func (s *MemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

// FindByIdentity retrieves a user by username or email, case-insensitively.
func (s *MemoryUserStore) FindByIdentity(_ context.Context, identity string) (models.User, error) {
	identity = strings.ToLower(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.ToLower(user.Username) == identity || strings.ToLower(user.Email) == identity {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

// SetRefreshToken overwrites the user's stored refresh token.
func (s *MemoryUserStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.CurrentRefreshToken = &token
	s.users[userID] = user
	return nil
}

// ClearRefreshToken removes the user's stored refresh token.
func (s *MemoryUserStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.CurrentRefreshToken = nil
	s.users[userID] = user
	return nil
}
