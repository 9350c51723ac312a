package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type tokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

func (r *tokenRepository) PutVerificationToken(ctx context.Context, token, email string, expiresAt time.Time) error {
	const q = `
		INSERT INTO verification_tokens (token, email, expires_at)
		VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, token, email, expiresAt)
	return err
}

// TakeVerificationToken is an atomic get-and-delete. Concurrent
// redemptions of the same token resolve to a single winner because the
// DELETE claims the row.
func (r *tokenRepository) TakeVerificationToken(ctx context.Context, token string) (string, bool, error) {
	const q = `
		DELETE FROM verification_tokens
		WHERE token = $1 AND expires_at > now()
		RETURNING email`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var email string
	err := r.pool.QueryRow(ctx, q, token).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return email, true, nil
}

func (r *tokenRepository) PutResetToken(ctx context.Context, token, email string, expiresAt time.Time) error {
	const q = `
		INSERT INTO reset_tokens (token, email, expires_at)
		VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, token, email, expiresAt)
	return err
}

// TakeResetToken deletes and returns the token row even when expired;
// the caller owns the expiry decision per the store contract.
func (r *tokenRepository) TakeResetToken(ctx context.Context, token string) (string, time.Time, bool, error) {
	const q = `
		DELETE FROM reset_tokens
		WHERE token = $1
		RETURNING email, expires_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var email string
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, q, token).Scan(&email, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return email, expiresAt, true, nil
}

func (r *tokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `
		WITH v AS (DELETE FROM verification_tokens WHERE expires_at < now() RETURNING 1),
		     p AS (DELETE FROM reset_tokens WHERE expires_at < now() RETURNING 1)
		SELECT (SELECT count(*) FROM v) + (SELECT count(*) FROM p)`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var deleted int64
	if err := r.pool.QueryRow(ctx, q).Scan(&deleted); err != nil {
		return 0, err
	}
	return deleted, nil
}
