package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftbazaar/accounts/internal/domain"
	"github.com/craftbazaar/accounts/internal/repository"
	"github.com/craftbazaar/accounts/internal/token"
	"github.com/craftbazaar/accounts/pkg/config"
	"github.com/craftbazaar/accounts/pkg/events"
)

// mockMailer records sent messages instead of delivering them.
type mockMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
	err           error
}

type sentMail struct {
	toEmail string
	toName  string
	url     string
	token   string
}

func (m *mockMailer) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, sentMail{toEmail, toName, verifyURL, token})
	return m.err
}

func (m *mockMailer) SendPasswordResetEmail(toEmail, toName, resetURL, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{toEmail, toName, resetURL, token})
	return m.err
}

func (m *mockMailer) lastVerification(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.verifications, "no verification email sent")
	return m.verifications[len(m.verifications)-1]
}

func (m *mockMailer) lastReset(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.resets, "no reset email sent")
	return m.resets[len(m.resets)-1]
}

type fixture struct {
	svc    AccountService
	store  *repository.MemoryStore
	mailer *mockMailer
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			VerificationTTL: 48 * time.Hour,
			ResetTokenTTL:   24 * time.Hour,
		},
		App: config.AppConfig{PublicBaseURL: "http://localhost:5173"},
	}

	store := repository.NewMemoryStore()
	mail := &mockMailer{}
	svc := NewAccountService(store, store, token.NewIssuer(), mail, events.NoopPublisher{}, cfg)

	return &fixture{svc: svc, store: store, mailer: mail, cfg: cfg}
}

func validSignup() *domain.SignupRequest {
	return &domain.SignupRequest{
		FirstName:       "Maya",
		LastName:        "Chen",
		Email:           "maya@example.com",
		Phone:           "+1 (555) 010-2030",
		Password:        "Abcdef1!",
		ConfirmPassword: "Abcdef1!",
		Role:            domain.RoleBuyer,
		AgreeToTerms:    true,
	}
}

func (f *fixture) signup(t *testing.T, req *domain.SignupRequest) *domain.Account {
	t.Helper()
	account, err := f.svc.Signup(context.Background(), req)
	require.NoError(t, err)
	return account
}

func TestSignupSuccess(t *testing.T) {
	f := newFixture(t)

	account := f.signup(t, validSignup())

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "maya@example.com", account.Email)
	assert.Equal(t, "15550102030", account.Phone, "phone should be normalized to digits")
	assert.Equal(t, domain.RoleBuyer, account.Role)
	assert.Equal(t, []string{"orders.view"}, account.Permissions)
	assert.False(t, account.EmailVerified)
	assert.True(t, account.IsActive)
	assert.NotEqual(t, "Abcdef1!", account.PasswordHash, "password must not be stored in the clear")

	sent := f.mailer.lastVerification(t)
	assert.Equal(t, "maya@example.com", sent.toEmail)
	assert.Contains(t, sent.url, "http://localhost:5173/verify-email?token=")
	assert.Contains(t, sent.url, sent.token)
}

func TestSignupSellerPermissions(t *testing.T) {
	f := newFixture(t)

	req := validSignup()
	req.Role = domain.RoleSeller
	req.BusinessName = "Maya's Pottery"

	account := f.signup(t, req)
	assert.Equal(t, []string{"seller.dashboard", "products.create"}, account.Permissions)
}

func TestSignupCollectsAllViolations(t *testing.T) {
	f := newFixture(t)

	req := &domain.SignupRequest{
		FirstName:       "M",
		LastName:        "",
		Email:           "not-an-email",
		Password:        "weak",
		ConfirmPassword: "different",
		Role:            domain.RoleBuyer,
		AgreeToTerms:    false,
	}

	_, err := f.svc.Signup(context.Background(), req)
	require.Error(t, err)

	var errs domain.ValidationErrors
	require.ErrorAs(t, err, &errs)

	codes := make(map[string]bool)
	for _, fe := range errs {
		codes[fe.Code] = true
	}
	for _, want := range []string{
		domain.CodeInvalidFirstName,
		domain.CodeInvalidLastName,
		domain.CodeInvalidEmail,
		domain.CodeInvalidPassword,
		domain.CodePasswordMismatch,
		domain.CodeTermsNotAccepted,
	} {
		assert.True(t, codes[want], "missing code %s", want)
	}
}

func TestSignupSellerRequiresBusinessName(t *testing.T) {
	f := newFixture(t)

	req := validSignup()
	req.Role = domain.RoleSeller

	_, err := f.svc.Signup(context.Background(), req)

	var errs domain.ValidationErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeBusinessNameRequired, errs[0].Code)
}

func TestSignupRejectsAdminRole(t *testing.T) {
	f := newFixture(t)

	req := validSignup()
	req.Role = domain.RoleAdmin

	_, err := f.svc.Signup(context.Background(), req)

	var errs domain.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, domain.CodeInvalidRole, errs[0].Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	dup := validSignup()
	dup.Phone = "5559990000"
	_, err := f.svc.Signup(context.Background(), dup)

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)
	assert.Equal(t, domain.CodeUserExists, conflict.FieldError().Code)
}

func TestSignupDuplicateEmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	// Same address in different case is still the same account.
	dup := validSignup()
	dup.Email = "MAYA@Example.COM"
	dup.Phone = "5559990000"
	_, err := f.svc.Signup(context.Background(), dup)

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)
}

func TestSignupDuplicatePhone(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	dup := validSignup()
	dup.Email = "other@example.com"
	_, err := f.svc.Signup(context.Background(), dup)

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "phone", conflict.Field)
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	account := f.signup(t, validSignup())

	resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "  MAYA@example.com  ",
		Password: "Abcdef1!",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, account.ID, resp.Account.ID)
	assert.NotNil(t, resp.Account.LastLogin)

	stored, err := f.store.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin, "login should be recorded")
}

func TestLoginEnumerationResistance(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	_, errUnknown := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "Abcdef1!",
	})
	_, errWrongPass := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "maya@example.com",
		Password: "Wrong-pass1!",
	})

	// Identical error values: nothing distinguishes the two failures.
	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)
	assert.Equal(t, errUnknown, errWrongPass)
	assert.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	account := f.signup(t, validSignup())

	require.NoError(t, f.svc.Deactivate(context.Background(), account.ID))

	_, err := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "maya@example.com",
		Password: "Abcdef1!",
	})
	assert.ErrorIs(t, err, domain.ErrAccountDeactivated)
}

func TestLoginDeactivatedWrongPassword(t *testing.T) {
	f := newFixture(t)
	account := f.signup(t, validSignup())
	require.NoError(t, f.svc.Deactivate(context.Background(), account.ID))

	// Wrong password on a deactivated account reports bad credentials,
	// not deactivation: the credential check runs first.
	_, err := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "maya@example.com",
		Password: "Wrong-pass1!",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	account := f.signup(t, validSignup())

	sent := f.mailer.lastVerification(t)

	verified, err := f.svc.VerifyEmail(context.Background(), sent.token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, verified.ID)
	assert.True(t, verified.EmailVerified)

	stored, err := f.store.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	// Single use.
	_, err = f.svc.VerifyEmail(context.Background(), sent.token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VerifyEmail(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	first := f.mailer.lastVerification(t)

	require.NoError(t, f.svc.ResendVerification(context.Background(), "maya@example.com"))
	second := f.mailer.lastVerification(t)
	assert.NotEqual(t, first.token, second.token, "resend should mint a fresh token")

	// The old token still works until swept or redeemed.
	_, err := f.svc.VerifyEmail(context.Background(), first.token)
	require.NoError(t, err)

	// Unknown and already-verified addresses succeed silently.
	require.NoError(t, f.svc.ResendVerification(context.Background(), "nobody@example.com"))
	before := len(f.mailer.verifications)
	require.NoError(t, f.svc.ResendVerification(context.Background(), "maya@example.com"))
	assert.Equal(t, before, len(f.mailer.verifications), "verified account should not trigger mail")
}

func TestRequestPasswordResetEnumerationResistance(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	msgKnown, err := f.svc.RequestPasswordReset(context.Background(), "maya@example.com")
	require.NoError(t, err)

	msgUnknown, err := f.svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.NoError(t, err)

	// Byte-identical responses for found and not-found.
	assert.Equal(t, msgKnown, msgUnknown)
	assert.Equal(t, ResetRequestedMessage, msgKnown)

	// But only the real account received mail.
	require.Len(t, f.mailer.resets, 1)
	assert.Equal(t, "maya@example.com", f.mailer.resets[0].toEmail)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	_, err := f.svc.RequestPasswordReset(context.Background(), "maya@example.com")
	require.NoError(t, err)
	sent := f.mailer.lastReset(t)

	require.NoError(t, f.svc.ResetPassword(context.Background(), sent.token, "Newpass1!"))

	// Old credential is dead, new one works.
	_, err = f.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "maya@example.com", Password: "Abcdef1!",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "maya@example.com", Password: "Newpass1!",
	})
	assert.NoError(t, err)
}

func TestResetPasswordTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	_, err := f.svc.RequestPasswordReset(context.Background(), "maya@example.com")
	require.NoError(t, err)
	sent := f.mailer.lastReset(t)

	require.NoError(t, f.svc.ResetPassword(context.Background(), sent.token, "Newpass1!"))

	err = f.svc.ResetPassword(context.Background(), sent.token, "Another1!")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	// Issue tokens with an already-elapsed expiry.
	svc := f.svc.(*accountService)
	svc.issuer.Now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	_, err := f.svc.RequestPasswordReset(context.Background(), "maya@example.com")
	require.NoError(t, err)
	sent := f.mailer.lastReset(t)

	err = f.svc.ResetPassword(context.Background(), sent.token, "Newpass1!")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}

func TestResetPasswordRejectsWeakPassword(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	_, err := f.svc.RequestPasswordReset(context.Background(), "maya@example.com")
	require.NoError(t, err)
	sent := f.mailer.lastReset(t)

	err = f.svc.ResetPassword(context.Background(), sent.token, "weak")
	var errs domain.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, domain.CodeInvalidPassword, errs[0].Code)

	// Weak-password rejection happens before the take; the token
	// survives for a second, stronger attempt.
	require.NoError(t, f.svc.ResetPassword(context.Background(), sent.token, "Newpass1!"))
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	f.signup(t, validSignup())

	resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "maya@example.com", Password: "Abcdef1!",
	})
	require.NoError(t, err)

	refreshed, err := f.svc.RefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, resp.RefreshToken, refreshed.RefreshToken)

	// An access token is not a refresh token.
	_, err = f.svc.RefreshToken(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.RefreshToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefreshTokenDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	account := f.signup(t, validSignup())

	resp, err := f.svc.Login(context.Background(), &domain.LoginRequest{
		Email: "maya@example.com", Password: "Abcdef1!",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(context.Background(), account.ID))

	_, err = f.svc.RefreshToken(context.Background(), resp.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrAccountDeactivated)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	account := f.signup(t, validSignup())

	first := "Margaret"
	updated, err := f.svc.UpdateAccount(context.Background(), account.ID, domain.Patch{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Margaret", updated.FirstName)

	bad := "X"
	_, err = f.svc.UpdateAccount(context.Background(), account.ID, domain.Patch{FirstName: &bad})
	var errs domain.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, domain.CodeInvalidFirstName, errs[0].Code)
}

func TestGetAccountNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetAccount(context.Background(), "missing-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
