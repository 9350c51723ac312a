package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/craftbazaar/accounts/internal/domain"
	"github.com/craftbazaar/accounts/internal/repository"
	"github.com/craftbazaar/accounts/internal/service"
	"github.com/craftbazaar/accounts/pkg/auth"
	"github.com/craftbazaar/accounts/pkg/config"
	"github.com/craftbazaar/accounts/pkg/logger"
)

type claimsKey struct{}

type Handlers struct {
	accountService service.AccountService
	rateLimit      repository.RateLimitRepository
	config         *config.Config
}

func New(
	accountService service.AccountService,
	rateLimit repository.RateLimitRepository,
	config *config.Config,
) *Handlers {
	return &Handlers{
		accountService: accountService,
		rateLimit:      rateLimit,
		config:         config,
	}
}

// RequireJWT authenticates the request and optionally demands a role.
// Admins pass any role gate.
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(tokenStr, h.config.Auth.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			// A refresh token is only good for /auth/refresh, never as
			// an access token.
			if claims.Role == "refresh" {
				writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != domain.RoleAdmin {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), logger.AccountIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit throttles abuse-prone auth endpoints per client IP.
func (h *Handlers) RateLimit(name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + getClientIP(r)

			allowed, err := h.rateLimit.Check(r.Context(), key, limit, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
				// Fail open
			} else if !allowed {
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"errors": []domain.FieldError{{Code: code, Message: message}},
	})
}

// writeServiceError maps the service error taxonomy onto HTTP. Every
// failure crosses this boundary as a typed value; nothing panics
// through.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErrs domain.ValidationErrors
	if errors.As(err, &validationErrs) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": validationErrs})
		return
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"errors": []domain.FieldError{conflict.FieldError()},
		})
		return
	}

	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		status := http.StatusUnauthorized
		if authErr.Code == domain.CodeAccountDeactivated {
			status = http.StatusForbidden
		}
		writeError(w, status, authErr.Message, authErr.Code)
		return
	}

	var tokenErr *domain.TokenError
	if errors.As(err, &tokenErr) {
		writeError(w, http.StatusBadRequest, tokenErr.Message, tokenErr.Code)
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Account not found", "NOT_FOUND")
		return
	}

	writeError(w, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
