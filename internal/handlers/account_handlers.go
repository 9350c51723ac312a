package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/craftbazaar/accounts/internal/domain"
	"github.com/craftbazaar/accounts/pkg/logger"
)

const sessionCookie = "cb_session"

// Signup handles account registration
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	account, err := h.accountService.Signup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration successful. Please check your email to verify your account.",
		"account": account.ToInfo(),
	})
}

// Login handles authentication and session establishment
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	resp, err := h.accountService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    resp.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if req.RememberMe {
		cookie.MaxAge = int(h.config.Auth.RefreshTokenTTL.Seconds())
	}
	http.SetCookie(w, cookie)

	writeJSON(w, http.StatusOK, resp)
}

// Logout clears the session cookie. Account state is untouched.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := getClaims(r); claims != nil {
		h.accountService.Logout(r.Context(), claims.Sub)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out",
	})
}

// VerifyEmail redeems a verification token
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.Token
		}
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing verification token", "INVALID_INPUT")
		return
	}

	account, err := h.accountService.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.ErrorContext(r.Context(), "Verification hit missing account", "error", err)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Email verified successfully",
		"account": account.ToInfo(),
	})
}

// ResendVerification re-issues a verification token
func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required", "INVALID_INPUT")
		return
	}

	if err := h.accountService.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an unverified account with this email exists, a new verification email has been sent.",
	})
}

// ForgotPassword starts the reset flow
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required", "INVALID_INPUT")
		return
	}

	message, err := h.accountService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": message,
	})
}

// ResetPassword completes the reset flow
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "Token and new password are required", "INVALID_INPUT")
		return
	}

	if err := h.accountService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.ErrorContext(r.Context(), "Reset hit missing account", "error", err)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password has been reset successfully",
	})
}

// RefreshToken exchanges a refresh token for a fresh access token
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	resp, err := h.accountService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated account
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing session", "UNAUTHORIZED")
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), claims.Sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account.ToInfo())
}

// UpdateMe updates the authenticated account's profile fields
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing session", "UNAUTHORIZED")
		return
	}

	var patch domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	account, err := h.accountService.UpdateAccount(r.Context(), claims.Sub, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account.ToInfo())
}
