package validation

import (
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		valid   bool
		message string
	}{
		{"valid simple", "user@example.com", true, ""},
		{"valid subdomain", "user@mail.example.co.uk", true, ""},
		{"valid plus tag", "user+tag@example.com", true, ""},
		{"empty", "", false, "Email is required"},
		{"missing at", "userexample.com", false, "Please enter a valid email address"},
		{"missing domain dot", "user@example", false, "Please enter a valid email address"},
		{"embedded space", "us er@example.com", false, "Please enter a valid email address"},
		{"double at", "user@@example.com", false, "Please enter a valid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Email(tt.email)
			if result.Valid != tt.valid {
				t.Errorf("Email(%q).Valid = %v, want %v", tt.email, result.Valid, tt.valid)
			}
			if !tt.valid && result.Message != tt.message {
				t.Errorf("Email(%q).Message = %q, want %q", tt.email, result.Message, tt.message)
			}
		})
	}
}

func TestEmailLengthLimits(t *testing.T) {
	// Local part at the 64-char cap passes; one more fails.
	local64 := strings.Repeat("a", 64)
	if r := Email(local64 + "@example.com"); !r.Valid {
		t.Errorf("64-char local part should be valid, got %q", r.Message)
	}
	local65 := strings.Repeat("a", 65)
	if r := Email(local65 + "@example.com"); r.Valid {
		t.Error("65-char local part should be invalid")
	}

	// Total length over 254 fails even when the shape is fine.
	long := strings.Repeat("a", 60) + "@" + strings.Repeat("b", 190) + ".com"
	if len(long) <= 254 {
		t.Fatalf("test address is only %d chars", len(long))
	}
	if r := Email(long); r.Valid {
		t.Error("over-length address should be invalid")
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{"empty is optional", "", true},
		{"ten digits", "5550102030", true},
		{"formatted", "+1 (555) 010-2030", true},
		{"fifteen digits", "555010203040506", true},
		{"nine digits", "555010203", false},
		{"sixteen digits", "5550102030405060", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Phone(tt.phone); result.Valid != tt.valid {
				t.Errorf("Phone(%q).Valid = %v, want %v", tt.phone, result.Valid, tt.valid)
			}
		})
	}
}

func TestRequiredPhone(t *testing.T) {
	if r := RequiredPhone(""); r.Valid {
		t.Error("empty phone should fail when required")
	}
	if r := RequiredPhone("5550102030"); !r.Valid {
		t.Errorf("ten digits should pass, got %q", r.Message)
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		strength int
	}{
		{"all five rules", "Abcdef1!", true, 5},
		{"empty", "", false, 0},
		{"lowercase only", "abcdefgh", false, 2},
		{"no special", "Abcdefg1", false, 4},
		{"no digit", "Abcdefg!", false, 4},
		{"short but complex", "Ab1!", false, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Password(tt.password)
			if result.Valid != tt.valid {
				t.Errorf("Password(%q).Valid = %v, want %v", tt.password, result.Valid, tt.valid)
			}
			if result.Strength != tt.strength {
				t.Errorf("Password(%q).Strength = %d, want %d", tt.password, result.Strength, tt.strength)
			}
		})
	}
}

func TestPasswordMessageListsMissingRules(t *testing.T) {
	result := Password("abcdef")
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !strings.HasPrefix(result.Message, "Password must contain ") {
		t.Errorf("unexpected message prefix: %q", result.Message)
	}
	for _, want := range []string{"at least 8 characters", "one uppercase letter", "one number", "one special character"} {
		if !strings.Contains(result.Message, want) {
			t.Errorf("message %q missing %q", result.Message, want)
		}
	}
	if strings.Contains(result.Message, "lowercase") {
		t.Errorf("message %q should not mention the satisfied lowercase rule", result.Message)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{"simple", "Maya", true, ""},
		{"hyphenated", "Jean-Luc", true, ""},
		{"apostrophe", "O'Brien", true, ""},
		{"with space", "Mary Jane", true, ""},
		{"trims whitespace", "  Maya  ", true, ""},
		{"empty", "", false, "First name is required"},
		{"whitespace only", "   ", false, "First name is required"},
		{"single char", "M", false, "First name must be at least 2 characters"},
		{"digits", "Maya2", false, "First name can only contain letters, spaces, hyphens, and apostrophes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Name(tt.input, "First name")
			if result.Valid != tt.valid {
				t.Errorf("Name(%q).Valid = %v, want %v", tt.input, result.Valid, tt.valid)
			}
			if !tt.valid && result.Message != tt.message {
				t.Errorf("Name(%q).Message = %q, want %q", tt.input, result.Message, tt.message)
			}
		})
	}
}

func TestNameLengthCap(t *testing.T) {
	if r := Name(strings.Repeat("a", 50), "Last name"); !r.Valid {
		t.Errorf("50-char name should be valid, got %q", r.Message)
	}
	if r := Name(strings.Repeat("a", 51), "Last name"); r.Valid {
		t.Error("51-char name should be invalid")
	}
}
