package repositories

import "github.com/streamtube/backend/internal/relations"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = relations.ErrNotFound
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = relations.ErrConflict
)
