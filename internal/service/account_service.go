package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/craftbazaar/accounts/internal/domain"
	"github.com/craftbazaar/accounts/internal/mailer"
	"github.com/craftbazaar/accounts/internal/repository"
	"github.com/craftbazaar/accounts/internal/token"
	"github.com/craftbazaar/accounts/internal/validation"
	"github.com/craftbazaar/accounts/pkg/auth"
	"github.com/craftbazaar/accounts/pkg/config"
	"github.com/craftbazaar/accounts/pkg/events"
	"github.com/craftbazaar/accounts/pkg/logger"
)

// ResetRequestedMessage is returned for every well-formed reset
// request, found or not. Byte-identical responses keep account
// existence unguessable.
const ResetRequestedMessage = "If an account with this email exists, you will receive a password reset link shortly."

type AccountService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.Account, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	Logout(ctx context.Context, accountID string)
	VerifyEmail(ctx context.Context, tokenStr string) (*domain.Account, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, tokenStr, newPassword string) error
	RefreshToken(ctx context.Context, refreshToken string) (*domain.LoginResponse, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, id string, patch domain.Patch) (*domain.Account, error)
	Deactivate(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error)
}

type accountService struct {
	accounts repository.AccountRepository
	tokens   repository.TokenRepository
	issuer   *token.Issuer
	mailer   mailer.Service
	eventBus events.Publisher
	config   *config.Config
}

func NewAccountService(
	accounts repository.AccountRepository,
	tokens repository.TokenRepository,
	issuer *token.Issuer,
	mailer mailer.Service,
	eventBus events.Publisher,
	config *config.Config,
) AccountService {
	return &accountService{
		accounts: accounts,
		tokens:   tokens,
		issuer:   issuer,
		mailer:   mailer,
		eventBus: eventBus,
		config:   config,
	}
}

func (s *accountService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.Account, error) {
	req.Normalize()

	// Collect every violation, not just the first.
	var errs domain.ValidationErrors

	if v := validation.Name(req.FirstName, "First name"); !v.Valid {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidFirstName, Message: v.Message, Field: "first_name"})
	}
	if v := validation.Name(req.LastName, "Last name"); !v.Valid {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidLastName, Message: v.Message, Field: "last_name"})
	}
	if v := validation.Email(req.Email); !v.Valid {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidEmail, Message: v.Message, Field: "email"})
	}
	if v := validation.Phone(req.Phone); !v.Valid {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidPhone, Message: v.Message, Field: "phone"})
	}
	if v := validation.Password(req.Password); !v.Valid {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidPassword, Message: v.Message, Field: "password"})
	}
	if req.Password != req.ConfirmPassword {
		errs = append(errs, domain.FieldError{Code: domain.CodePasswordMismatch, Message: "Passwords do not match", Field: "confirm_password"})
	}
	if !req.AgreeToTerms {
		errs = append(errs, domain.FieldError{Code: domain.CodeTermsNotAccepted, Message: "You must agree to the terms and conditions", Field: "agree_to_terms"})
	}
	if !domain.IsValidRole(req.Role) || req.Role == domain.RoleAdmin {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidRole, Message: "Invalid account role", Field: "role"})
	}
	if req.Role == domain.RoleSeller && req.BusinessName == "" {
		errs = append(errs, domain.FieldError{Code: domain.CodeBusinessNameRequired, Message: "Business name is required for sellers", Field: "business_name"})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	// Advisory existence check before the insert; the store enforces
	// uniqueness again atomically.
	conflictField, err := s.accounts.Exists(ctx, req.Email, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if conflictField != "" {
		return nil, &domain.ConflictError{Field: conflictField}
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		ID:              uuid.NewString(),
		Role:            req.Role,
		Email:           req.Email,
		Phone:           req.Phone,
		PasswordHash:    passwordHash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		BusinessName:    req.BusinessName,
		BusinessAddress: req.BusinessAddress,
		Permissions:     domain.DefaultPermissions(req.Role),
		Newsletter:      req.Newsletter,
		EmailVerified:   false,
		IsActive:        true,
	}

	if err := s.accounts.Insert(ctx, account); err != nil {
		return nil, err
	}

	s.sendVerification(ctx, account)

	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		CreatedAt: account.CreatedAt,
	})

	return account, nil
}

func (s *accountService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()

	var errs domain.ValidationErrors
	if v := validation.Email(req.Email); !v.Valid {
		errs = append(errs, domain.FieldError{Code: domain.CodeInvalidEmail, Message: v.Message, Field: "email"})
	}
	if req.Password == "" {
		errs = append(errs, domain.FieldError{Code: domain.CodePasswordRequired, Message: "Password is required", Field: "password"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	// Unknown email and wrong password produce the same error value;
	// responses must not distinguish the two.
	if account == nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, domain.ErrAccountDeactivated
	}

	now := time.Now()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		logger.WarnContext(ctx, "Failed to record last login", "error", err, "account_id", account.ID)
	}
	account.LastLogin = &now

	resp, err := s.newSession(account)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AccountLoggedIn, events.AccountLoggedInEvent{
		AccountID: account.ID,
		Email:     account.Email,
		LoginAt:   now,
	})

	return resp, nil
}

// Logout clears nothing server-side: sessions are stateless JWTs and
// the cookie is dropped at the HTTP boundary.
func (s *accountService) Logout(ctx context.Context, accountID string) {
	logger.InfoContext(ctx, "Account logged out", "account_id", accountID)
}

func (s *accountService) VerifyEmail(ctx context.Context, tokenStr string) (*domain.Account, error) {
	// Destructive read: the token is burned on redemption even if a
	// later step fails.
	email, ok, err := s.tokens.TakeVerificationToken(ctx, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidToken
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		logger.ErrorContext(ctx, "Verification token bound to missing account", "email", email)
		return nil, domain.ErrNotFound
	}

	if err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}
	account.EmailVerified = true

	s.publish(ctx, events.AccountVerified, events.AccountVerifiedEvent{
		AccountID:  account.ID,
		Email:      account.Email,
		VerifiedAt: time.Now(),
	})

	return account, nil
}

func (s *accountService) ResendVerification(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if v := validation.Email(email); !v.Valid {
		return domain.ValidationErrors{{Code: domain.CodeInvalidEmail, Message: v.Message, Field: "email"}}
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}

	// Silently succeed for unknown or already-verified addresses.
	if account == nil || account.EmailVerified {
		return nil
	}

	s.sendVerification(ctx, account)
	return nil
}

func (s *accountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if v := validation.Email(email); !v.Valid {
		return "", domain.ValidationErrors{{Code: domain.CodeInvalidEmail, Message: v.Message, Field: "email"}}
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find account: %w", err)
	}

	if account == nil {
		// Same message as the found branch.
		return ResetRequestedMessage, nil
	}

	resetToken := s.issuer.Issue()
	expiresAt := s.issuer.ExpiryFor(s.config.Auth.ResetTokenTTL)

	if err := s.tokens.PutResetToken(ctx, resetToken, account.Email, expiresAt); err != nil {
		return "", fmt.Errorf("failed to create reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.App.PublicBaseURL, resetToken)
	if err := s.mailer.SendPasswordResetEmail(account.Email, account.FirstName, resetURL, resetToken); err != nil {
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "account_id", account.ID)
		// Token stays valid; delivery is best-effort.
	}

	return ResetRequestedMessage, nil
}

func (s *accountService) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	if v := validation.Password(newPassword); !v.Valid {
		return domain.ValidationErrors{{Code: domain.CodeInvalidPassword, Message: v.Message, Field: "new_password"}}
	}

	email, expiresAt, ok, err := s.tokens.TakeResetToken(ctx, tokenStr)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if !ok || time.Now().After(expiresAt) {
		return domain.ErrInvalidOrExpiredToken
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		logger.ErrorContext(ctx, "Reset token bound to missing account", "email", email)
		return domain.ErrNotFound
	}

	passwordHash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.accounts.UpdateSecret(ctx, account.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	s.publish(ctx, events.AccountPasswordReset, events.AccountPasswordResetEvent{
		AccountID: account.ID,
		Email:     account.Email,
		ResetAt:   time.Now(),
	})

	return nil
}

func (s *accountService) RefreshToken(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	claims, err := auth.Parse(refreshToken, s.config.Auth.JWTSecret)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if claims.Role != "refresh" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByID(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, domain.ErrAccountDeactivated
	}

	accessToken, err := auth.NewAccessToken(
		account.ID, account.Email, account.Role, auth.ScopeFor(account.Role),
		s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		Account:      account.ToInfo(),
	}, nil
}

func (s *accountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, id string, patch domain.Patch) (*domain.Account, error) {
	var errs domain.ValidationErrors
	if patch.FirstName != nil {
		if v := validation.Name(*patch.FirstName, "First name"); !v.Valid {
			errs = append(errs, domain.FieldError{Code: domain.CodeInvalidFirstName, Message: v.Message, Field: "first_name"})
		}
	}
	if patch.LastName != nil {
		if v := validation.Name(*patch.LastName, "Last name"); !v.Valid {
			errs = append(errs, domain.FieldError{Code: domain.CodeInvalidLastName, Message: v.Message, Field: "last_name"})
		}
	}
	if patch.Phone != nil && *patch.Phone != "" {
		if v := validation.RequiredPhone(*patch.Phone); !v.Valid {
			errs = append(errs, domain.FieldError{Code: domain.CodeInvalidPhone, Message: v.Message, Field: "phone"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return s.accounts.Update(ctx, id, patch)
}

// Deactivate blocks future logins. Accounts are never physically
// deleted.
func (s *accountService) Deactivate(ctx context.Context, id string) error {
	if err := s.accounts.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.publish(ctx, events.AccountDeactivated, events.AccountDeactivatedEvent{
		AccountID:     id,
		DeactivatedAt: time.Now(),
	})
	return nil
}

func (s *accountService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Helper methods

func (s *accountService) newSession(account *domain.Account) (*domain.LoginResponse, error) {
	accessToken, err := auth.NewAccessToken(
		account.ID, account.Email, account.Role, auth.ScopeFor(account.Role),
		s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := auth.NewRefreshToken(
		account.ID, account.Email, s.config.Auth.JWTSecret, s.config.Auth.RefreshTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		Account:      account.ToInfo(),
	}, nil
}

func (s *accountService) sendVerification(ctx context.Context, account *domain.Account) {
	verifyToken := s.issuer.Issue()
	expiresAt := s.issuer.ExpiryFor(s.config.Auth.VerificationTTL)

	if err := s.tokens.PutVerificationToken(ctx, verifyToken, account.Email, expiresAt); err != nil {
		logger.ErrorContext(ctx, "Failed to create verification token", "error", err, "account_id", account.ID)
		return
	}

	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.config.App.PublicBaseURL, verifyToken)
	if err := s.mailer.SendVerificationEmail(account.Email, account.FirstName, verifyURL, verifyToken); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "account_id", account.ID)
		// The token remains redeemable; a resend path exists.
	}
}

func (s *accountService) publish(ctx context.Context, subject string, payload interface{}) {
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
