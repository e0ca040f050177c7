package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/streamtube/backend/internal/db"
	"github.com/streamtube/backend/internal/relations"
)

// PostgresEdgeStore persists relationship edges. The unique index on
// (actor_id, target_id, kind) is what upholds the at-most-one-edge invariant
// under concurrent toggles; this store only translates its violations into
// ErrConflict for the engine.
type PostgresEdgeStore struct {
	pool db.Pool
}

// NewPostgresEdgeStore constructs an edge store backed by PostgreSQL.
func NewPostgresEdgeStore(pool db.Pool) *PostgresEdgeStore {
	return &PostgresEdgeStore{pool: pool}
}

// targetTables maps each relation kind to the table its targets live in.
var targetTables = map[relations.Kind]string{
	relations.KindVideoLike:    "videos",
	relations.KindCommentLike:  "comments",
	relations.KindPostLike:     "posts",
	relations.KindSubscription: "users",
}

// Insert adds the edge. The existence probe is part of the insert statement so
// an edge is never created for a target that has already been deleted.
func (s *PostgresEdgeStore) Insert(ctx context.Context, edge relations.Edge) error {
	table, ok := targetTables[edge.Kind]
	if !ok {
		return fmt.Errorf("unknown relation kind %q", edge.Kind)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        INSERT INTO relation_edges (id, actor_id, target_id, kind, created_at)
        SELECT $1, $2, $3, $4, $5
        WHERE EXISTS (SELECT 1 FROM `+table+` WHERE id = $3)
    `, edge.ID, edge.ActorID, edge.TargetID, string(edge.Kind), edge.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert edge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteTuple removes the tuple's edge and reports whether one existed.
func (s *PostgresEdgeStore) DeleteTuple(ctx context.Context, actorID, targetID string, kind relations.Kind) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM relation_edges
        WHERE actor_id = $1 AND target_id = $2 AND kind = $3
    `, actorID, targetID, string(kind))
	if err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListByActor returns the actor's edges for the kind, newest first.
func (s *PostgresEdgeStore) ListByActor(ctx context.Context, actorID string, kind relations.Kind) ([]relations.Edge, error) {
	return s.list(ctx, `
        SELECT id, actor_id, target_id, kind, created_at
        FROM relation_edges
        WHERE actor_id = $1 AND kind = $2
        ORDER BY created_at DESC
    `, actorID, string(kind))
}

// ListByTarget returns the edges pointing at the target for the kind, newest first.
func (s *PostgresEdgeStore) ListByTarget(ctx context.Context, targetID string, kind relations.Kind) ([]relations.Edge, error) {
	return s.list(ctx, `
        SELECT id, actor_id, target_id, kind, created_at
        FROM relation_edges
        WHERE target_id = $1 AND kind = $2
        ORDER BY created_at DESC
    `, targetID, string(kind))
}

func (s *PostgresEdgeStore) list(ctx context.Context, query string, args ...any) ([]relations.Edge, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []relations.Edge
	for rows.Next() {
		var (
			edge relations.Edge
			kind string
		)
		if err := rows.Scan(&edge.ID, &edge.ActorID, &edge.TargetID, &kind, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edge.Kind = relations.Kind(kind)
		edge.CreatedAt = edge.CreatedAt.UTC()
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}

	return edges, nil
}
