package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "user@example.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"valid_dot", "user.name@example.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_no_user", "@example.com", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_spaces", "user @example.com", false},
		{"invalid_no_tld", "user@example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email), "Email: %s", tt.email)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "riley@acumant.com", NormalizeEmail("  Riley@Acumant.COM "))
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{"chat", true},
		{"deep-research", true},
		{"data-formulator", true},
		{"gpt4", true},
		{"", false},
		{"Chat", false},
		{"deep_research", false},
		{"-chat", false},
		{"chat-", false},
		{"deep--research", false},
		{"tools/chat", false},
		{"chat tool", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidSlug(tt.slug))
		})
	}
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("1"))
	assert.True(t, IsValidID("acumant"))
	assert.True(t, IsValidID("customer2"))
	assert.True(t, IsValidID("3f1c2a9e-2d4b-4f7e-8a90-1b2c3d4e5f60"))
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("-leading"))
	assert.False(t, IsValidID("has space"))
	assert.False(t, IsValidID("slash/id"))
}

func TestIsValidHTTPURL(t *testing.T) {
	assert.True(t, IsValidHTTPURL("https://tools.example.com/embed"))
	assert.True(t, IsValidHTTPURL("http://localhost:5000"))
	assert.False(t, IsValidHTTPURL("ftp://example.com"))
	assert.False(t, IsValidHTTPURL("/relative/path"))
	assert.False(t, IsValidHTTPURL("https://"))
	assert.False(t, IsValidHTTPURL("::not a url"))
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid", "Portal#2024", true},
		{"too_short", "Ab1!", false},
		{"no_upper", "portal#2024", false},
		{"no_lower", "PORTAL#2024", false},
		{"no_number", "Portal#Pass", false},
		{"no_special", "Portal2024", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := IsValidPassword(tt.password)
			assert.Equal(t, tt.valid, valid)
			if !tt.valid {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acumant", SanitizeString("  Acu\x00mant\x07 "))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
}
