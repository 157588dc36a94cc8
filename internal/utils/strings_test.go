package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@x.com", true},
		{"  Alice@Example.COM ", true},
		{"first.last+tag@sub.domain.zm", true},
		{"foo", false},
		{"foo@", false},
		{"", false},
		{"   ", false},
		{"@bar.com", false},
		{"foo@bar", false},
		{"foo@@bar.com", false},
		{"fo o@bar.com", false},
		{"foo@bar.", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidEmail(tt.email))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM\t"))
	assert.Equal(t, "Mary Jane", NormalizeName("  Mary   Jane "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@x.com", MaskEmail("alice@x.com"))
	assert.Equal(t, "***", MaskEmail("nope"))
	assert.Equal(t, "***", MaskEmail("@x.com"))

	masked := MaskEmail("élodie@x.com")
	assert.Equal(t, "é***@x.com", masked)
	assert.True(t, utf8.ValidString(masked))
}
