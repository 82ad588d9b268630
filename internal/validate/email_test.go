package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestEmailValid(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  user@example.com  ", "user@example.com"},
		{"first.last@example.co.uk", "first.last@example.co.uk"},
		{"user+tag@example.com", "user+tag@example.com"},
		{"user_name@sub.example.com", "user_name@sub.example.com"},
	}
	for _, tt := range tests {
		got, err := Email(tt.input)
		if err != nil {
			t.Errorf("Email(%q) returned error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEmailInvalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace only", "   ", ErrEmpty},
		{"no at sign", "userexample.com", ErrInvalidEmail},
		{"no domain", "user@", ErrInvalidEmail},
		{"no local part", "@example.com", ErrInvalidEmail},
		{"no TLD", "user@example", ErrInvalidEmail},
		{"spaces inside", "us er@example.com", ErrInvalidEmail},
		{"too long", strings.Repeat("a", 250) + "@example.com", ErrStringTooLong},
		{"local part too long", strings.Repeat("a", 65) + "@example.com", ErrStringTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Email(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Email(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
