package repository

import (
	"context"
	"sync"
	"time"

	"github.com/craftbazaar/accounts/internal/domain"
)

// MemoryStore is an in-process AccountRepository + TokenRepository used
// for local development and tests. All mutation happens under one
// mutex, so check-then-insert and take-and-delete stay atomic under
// concurrent callers.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account // id -> account
	byEmail  map[string]string          // email -> id
	byPhone  map[string]string          // phone -> id

	verifications map[string]memoryToken // token -> binding
	resets        map[string]memoryToken

	now func() time.Time
}

type memoryToken struct {
	email     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]*domain.Account),
		byEmail:       make(map[string]string),
		byPhone:       make(map[string]string),
		verifications: make(map[string]memoryToken),
		resets:        make(map[string]memoryToken),
		now:           time.Now,
	}
}

func (s *MemoryStore) Exists(_ context.Context, email, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflictLocked(email, phone)
}

func (s *MemoryStore) conflictLocked(email, phone string) (string, error) {
	if _, ok := s.byEmail[email]; ok {
		return "email", nil
	}
	if phone != "" {
		if _, ok := s.byPhone[phone]; ok {
			return "phone", nil
		}
	}
	return "", nil
}

func (s *MemoryStore) Insert(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock: an Exists that passed earlier does not
	// protect against a concurrent insert.
	field, _ := s.conflictLocked(a.Email, a.Phone)
	if field != "" {
		return &domain.ConflictError{Field: field}
	}

	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := *a
	s.accounts[a.ID] = &cp
	s.byEmail[a.Email] = a.ID
	if a.Phone != "" {
		s.byPhone[a.Phone] = a.ID
	}
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch domain.Patch) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if patch.FirstName != nil {
		a.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		a.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		normalized := domain.NormalizePhone(*patch.Phone)
		if normalized != a.Phone {
			if owner, taken := s.byPhone[normalized]; taken && owner != id {
				return nil, &domain.ConflictError{Field: "phone"}
			}
			delete(s.byPhone, a.Phone)
			a.Phone = normalized
			if normalized != "" {
				s.byPhone[normalized] = id
			}
		}
	}
	if patch.BusinessName != nil {
		a.BusinessName = *patch.BusinessName
	}
	if patch.BusinessAddress != nil {
		a.BusinessAddress = *patch.BusinessAddress
	}
	if patch.Newsletter != nil {
		a.Newsletter = *patch.Newsletter
	}
	a.UpdatedAt = s.now()

	cp := *a
	return &cp, nil
}

func (s *MemoryStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(a *domain.Account) {
		a.LastLogin = &at
	})
}

func (s *MemoryStore) MarkEmailVerified(_ context.Context, id string) error {
	return s.mutate(id, func(a *domain.Account) {
		a.EmailVerified = true
	})
}

func (s *MemoryStore) UpdateSecret(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(a *domain.Account) {
		a.PasswordHash = passwordHash
	})
}

func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) error {
	return s.mutate(id, func(a *domain.Account) {
		a.IsActive = active
	})
}

func (s *MemoryStore) mutate(id string, fn func(*domain.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, *a)
	}
	// Newest first, matching the Postgres ordering.
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].CreatedAt.After(all[i].CreatedAt) {
				all[i], all[j] = all[j], all[i]
			}
		}
	}

	if offset >= len(all) {
		return []domain.Account{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) PutVerificationToken(_ context.Context, token, email string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[token] = memoryToken{email: email, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) TakeVerificationToken(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.verifications[token]
	if !ok {
		return "", false, nil
	}
	delete(s.verifications, token)
	if s.now().After(t.expiresAt) {
		return "", false, nil
	}
	return t.email, true, nil
}

func (s *MemoryStore) PutResetToken(_ context.Context, token, email string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[token] = memoryToken{email: email, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) TakeResetToken(_ context.Context, token string) (string, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.resets[token]
	if !ok {
		return "", time.Time{}, false, nil
	}
	delete(s.resets, token)
	return t.email, t.expiresAt, true, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for token, t := range s.verifications {
		if now.After(t.expiresAt) {
			delete(s.verifications, token)
			deleted++
		}
	}
	for token, t := range s.resets {
		if now.After(t.expiresAt) {
			delete(s.resets, token)
			deleted++
		}
	}
	return deleted, nil
}
