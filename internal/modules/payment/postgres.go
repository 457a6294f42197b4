// README: OTP store backed by PostgreSQL.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, r *OTPRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO otp_records (
			id, order_id, user_id, agent_id, code, purpose,
			expires_at, is_verified, attempt_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(r.ID), string(r.OrderID), string(r.UserID), string(r.AgentID),
		r.Code, string(r.Purpose), r.ExpiresAt, r.IsVerified, r.AttemptCount, r.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*OTPRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, user_id, agent_id, code, purpose,
		       expires_at, is_verified, verified_at, attempt_count, created_at
		FROM otp_records
		WHERE id = $1`, string(id),
	)
	var r OTPRecord
	err := row.Scan(
		&r.ID, &r.OrderID, &r.UserID, &r.AgentID, &r.Code, &r.Purpose,
		&r.ExpiresAt, &r.IsVerified, &r.VerifiedAt, &r.AttemptCount, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PgStore) IncrementAttempts(ctx context.Context, id types.ID) (int, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE otp_records
		SET attempt_count = attempt_count + 1
		WHERE id = $1
		RETURNING attempt_count`, string(id),
	)
	var n int
	err := row.Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

func (s *PgStore) MarkVerified(ctx context.Context, id types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE otp_records
		SET is_verified = TRUE, verified_at = $1
		WHERE id = $2 AND is_verified = FALSE`,
		at, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
