// README: Play request store backed by PostgreSQL.
package match

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rally/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO play_requests (
			id, from_id, to_id, game, proposed_time, message, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(r.ID), string(r.FromID), string(r.ToID),
		r.Game, r.ProposedTime, r.Message, string(r.Status), r.CreatedAt,
	)
	return errors.Wrap(err, "inserting play request")
}

// Resolve advances a pending request to its terminal status.
func (s *Store) Resolve(ctx context.Context, id types.ID, status Status, reason *string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE play_requests
		SET status = $2, fail_reason = $3, resolved_at = $4
		WHERE id = $1 AND status = $5`,
		string(id), string(status), reason, at, string(StatusPending),
	)
	return errors.Wrap(err, "resolving play request")
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, from_id, to_id, game, proposed_time, message, status,
		       created_at, resolved_at, fail_reason
		FROM play_requests
		WHERE id = $1`, string(id),
	)

	var (
		r          Request
		resolvedAt sql.NullTime
		failReason sql.NullString
	)
	err := row.Scan(&r.ID, &r.FromID, &r.ToID, &r.Game, &r.ProposedTime,
		&r.Message, &r.Status, &r.CreatedAt, &resolvedAt, &failReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading play request")
	}
	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	if failReason.Valid {
		r.FailReason = &failReason.String
	}
	return &r, nil
}
