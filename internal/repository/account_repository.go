package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftbazaar/accounts/internal/domain"
)

type accountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountCols = `id, role, email, phone, password_hash, first_name, last_name,
	business_name, business_address, permissions, newsletter, email_verified,
	is_active, created_at, updated_at, last_login`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var phone, businessName, businessAddress *string
	err := row.Scan(
		&a.ID, &a.Role, &a.Email, &phone, &a.PasswordHash, &a.FirstName, &a.LastName,
		&businessName, &businessAddress, &a.Permissions, &a.Newsletter, &a.EmailVerified,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	if phone != nil {
		a.Phone = *phone
	}
	if businessName != nil {
		a.BusinessName = *businessName
	}
	if businessAddress != nil {
		a.BusinessAddress = *businessAddress
	}
	return &a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// phoneColumn maps a patch phone onto its column value. A cleared
// phone must be stored as NULL, never '': the partial unique index
// covers phone IS NOT NULL, so '' would collide across accounts.
func phoneColumn(patch domain.Patch) (value *string, set bool) {
	if patch.Phone == nil {
		return nil, false
	}
	return nullable(domain.NormalizePhone(*patch.Phone)), true
}

func (r *accountRepository) Exists(ctx context.Context, email, phone string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const q = `SELECT
		EXISTS (SELECT 1 FROM accounts WHERE email = $1),
		EXISTS (SELECT 1 FROM accounts WHERE phone = $2 AND $2 <> '')`

	var emailTaken, phoneTaken bool
	if err := r.pool.QueryRow(ctx, q, email, phone).Scan(&emailTaken, &phoneTaken); err != nil {
		return "", err
	}

	// Email precedence when both collide.
	if emailTaken {
		return "email", nil
	}
	if phoneTaken {
		return "phone", nil
	}
	return "", nil
}

func (r *accountRepository) Insert(ctx context.Context, a *domain.Account) error {
	const q = `
		INSERT INTO accounts (id, role, email, phone, password_hash, first_name, last_name,
			business_name, business_address, permissions, newsletter, email_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q,
		a.ID, a.Role, a.Email, nullable(a.Phone), a.PasswordHash, a.FirstName, a.LastName,
		nullable(a.BusinessName), nullable(a.BusinessAddress), a.Permissions, a.Newsletter,
		a.EmailVerified, a.IsActive,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}
	return nil
}

// mapConflict turns a unique-constraint violation into the typed
// conflict error the service reports, so the check-then-insert race is
// closed at the storage layer.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "accounts_phone_key":
			return &domain.ConflictError{Field: "phone"}
		default:
			return &domain.ConflictError{Field: "email"}
		}
	}
	return err
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *accountRepository) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Account, error) {
	// COALESCE cannot express "set phone to NULL", so the phone column
	// takes an explicit set flag instead.
	const q = `
		UPDATE accounts
		SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			phone = CASE WHEN $8 THEN $4 ELSE phone END,
			business_name = COALESCE($5, business_name),
			business_address = COALESCE($6, business_address),
			newsletter = COALESCE($7, newsletter),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + accountCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	phone, phoneSet := phoneColumn(patch)

	a, err := scanAccount(r.pool.QueryRow(ctx, q, id,
		patch.FirstName, patch.LastName, phone,
		patch.BusinessName, patch.BusinessAddress, patch.Newsletter, phoneSet))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapConflict(err)
	}
	return a, nil
}

func (r *accountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE accounts SET last_login = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, id, at)
}

func (r *accountRepository) MarkEmailVerified(ctx context.Context, id string) error {
	const q = `UPDATE accounts SET email_verified = true, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, id)
}

func (r *accountRepository) UpdateSecret(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, id, passwordHash)
}

func (r *accountRepository) SetActive(ctx context.Context, id string, active bool) error {
	const q = `UPDATE accounts SET is_active = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, id, active)
}

func (r *accountRepository) exec(ctx context.Context, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT ` + accountCols + `
		FROM accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}

	return accounts, rows.Err()
}
