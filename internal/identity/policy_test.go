package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy(DefaultMinLength)
	attrs := UserAttributes{"username": "alice", "email address": "alice@example.com"}

	tests := []struct {
		name     string
		password string
		want     []string
	}{
		{
			name:     "strong password passes",
			password: "Tr0ub4dor&3x!",
			want:     nil,
		},
		{
			name:     "too short",
			password: "x9!Tq",
			want:     []string{"This password is too short. It must contain at least 8 characters."},
		},
		{
			name:     "entirely numeric and common",
			password: "12345678",
			want: []string{
				"This password is too common.",
				"This password is entirely numeric.",
			},
		},
		{
			name:     "common is case-insensitive",
			password: "PassWord123",
			want:     []string{"This password is too common."},
		},
		{
			name:     "similar to a user attribute",
			password: "alice123",
			want: []string{
				"The password is too similar to the email address.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Validate(tt.password, attrs))
		})
	}
}

func TestUserAttributeSimilarity_ChecksEachAttribute(t *testing.T) {
	v := UserAttributeSimilarity{MaxSimilarity: DefaultMaxSimilarity}

	assert.Equal(t, "The password is too similar to the username.",
		v.Validate("Bobbington9", UserAttributes{"username": "bobbington"}))
	assert.Empty(t, v.Validate("Tr0ub4dor&3x!", UserAttributes{"username": "bobbington"}))
	assert.Empty(t, v.Validate("anything-goes", UserAttributes{"username": ""}))
}

func TestUserAttributeSimilarity_ScrambledAttributeIsSimilar(t *testing.T) {
	v := UserAttributeSimilarity{MaxSimilarity: DefaultMaxSimilarity}

	assert.Equal(t, "The password is too similar to the username.",
		v.Validate("notgnibbob", UserAttributes{"username": "bobbington"}))
}

func TestMaximumLength(t *testing.T) {
	v := MaximumLength{Max: MaxPasswordBytes}

	assert.Empty(t, v.Validate(strings.Repeat("a", 72), nil))
	assert.Equal(t, "This password is too long. It must contain at most 72 bytes.",
		v.Validate(strings.Repeat("a", 73), nil))
	// 36 two-byte runes fit, 37 do not
	assert.Empty(t, v.Validate(strings.Repeat("é", 36), nil))
	assert.NotEmpty(t, v.Validate(strings.Repeat("é", 37), nil))
}

func TestDefaultPolicy_RejectsOverlongPassword(t *testing.T) {
	problems := DefaultPolicy(DefaultMinLength).Validate("Tr0ub4dor&3x!"+strings.Repeat("z", 60), nil)

	assert.Equal(t, []string{"This password is too long. It must contain at most 72 bytes."}, problems)
}

func TestQuickRatio(t *testing.T) {
	assert.Equal(t, 1.0, quickRatio("abc", "cba"))
	assert.Equal(t, 0.0, quickRatio("abc", "xyz"))
	assert.InDelta(t, 0.5, quickRatio("ab", "ax"), 1e-9)
}

func TestNumericPassword(t *testing.T) {
	v := NumericPassword{}
	assert.NotEmpty(t, v.Validate("00112233", nil))
	assert.Empty(t, v.Validate("0011223a", nil))
	assert.Empty(t, v.Validate("", nil))
}
