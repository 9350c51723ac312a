package domain

import (
	"strings"
	"time"
	"unicode"
)

type Account struct {
	ID              string     `json:"id"`
	Role            string     `json:"role"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	BusinessName    string     `json:"business_name,omitempty"`
	BusinessAddress string     `json:"business_address,omitempty"`
	Permissions     []string   `json:"permissions"`
	Newsletter      bool       `json:"newsletter"`
	EmailVerified   bool       `json:"email_verified"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastLogin       *time.Time `json:"last_login"`
}

type SignupRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
	AgreeToTerms    bool   `json:"agree_to_terms"`
	Newsletter      bool   `json:"newsletter,omitempty"`
	BusinessName    string `json:"business_name,omitempty"`
	BusinessAddress string `json:"business_address,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int64        `json:"expires_in"`
	Account      *AccountInfo `json:"account"`
}

// AccountInfo is the caller-facing projection of an Account. The
// credential hash never leaves the service boundary.
type AccountInfo struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	BusinessName  string     `json:"business_name,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login"`
}

// Patch carries a partial account update. Nil fields are left unchanged.
type Patch struct {
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	BusinessName    *string `json:"business_name,omitempty"`
	BusinessAddress *string `json:"business_address,omitempty"`
	Newsletter      *bool   `json:"newsletter,omitempty"`
}

// Valid account roles
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

var validRoles = map[string]bool{
	RoleBuyer:  true,
	RoleSeller: true,
	RoleAdmin:  true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// DefaultPermissions returns the permission set a freshly registered
// account receives for its role.
func DefaultPermissions(role string) []string {
	switch role {
	case RoleSeller:
		return []string{"seller.dashboard", "products.create"}
	case RoleAdmin:
		return []string{"admin.dashboard", "accounts.manage"}
	default:
		return []string{"orders.view"}
	}
}

func (r *SignupRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = NormalizeEmail(r.Email)
	r.Phone = NormalizePhone(r.Phone)
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.BusinessAddress = strings.TrimSpace(r.BusinessAddress)
	if r.Role == "" {
		r.Role = RoleBuyer
	}
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits. "+1 (555) 010-2030"
// becomes "15550102030".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (a *Account) ToInfo() *AccountInfo {
	return &AccountInfo{
		ID:            a.ID,
		Email:         a.Email,
		Phone:         a.Phone,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Role:          a.Role,
		Permissions:   a.Permissions,
		BusinessName:  a.BusinessName,
		EmailVerified: a.EmailVerified,
		IsActive:      a.IsActive,
		CreatedAt:     a.CreatedAt,
		LastLogin:     a.LastLogin,
	}
}
