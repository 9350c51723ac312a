package repository

import (
	"context"
	"time"

	"github.com/craftbazaar/accounts/internal/domain"
)

// AccountRepository owns account persistence and uniqueness. Exists is
// advisory: Insert re-enforces uniqueness atomically and returns a
// *domain.ConflictError when a concurrent insert won the race.
type AccountRepository interface {
	Exists(ctx context.Context, email, phone string) (conflictField string, err error)
	Insert(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, id string, patch domain.Patch) (*domain.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateSecret(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)
}

// TokenRepository stores the single-use verification and reset tokens.
// The Take methods are destructive reads: the row is gone once the call
// returns, and two concurrent takers see exactly one success.
type TokenRepository interface {
	PutVerificationToken(ctx context.Context, token, email string, expiresAt time.Time) error
	TakeVerificationToken(ctx context.Context, token string) (email string, ok bool, err error)
	PutResetToken(ctx context.Context, token, email string, expiresAt time.Time) error
	TakeResetToken(ctx context.Context, token string) (email string, expiresAt time.Time, ok bool, err error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// RateLimitRepository throttles abuse-prone endpoints. Implementations
// fail open: a backend error never blocks a legitimate request.
type RateLimitRepository interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, err error)
}
