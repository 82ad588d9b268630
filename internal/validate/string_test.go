package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestStringConstraints(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]+$`)

	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		want        string
		wantErr     error
	}{
		{"within bounds", "hello", StringConstraints{MinLength: 1, MaxLength: 10}, "hello", nil},
		{"too short", "ab", StringConstraints{MinLength: 3}, "", ErrStringTooShort},
		{"too long", "abcdef", StringConstraints{MaxLength: 5}, "", ErrStringTooLong},
		{"empty rejected", "", StringConstraints{}, "", ErrEmpty},
		{"empty allowed", "", StringConstraints{AllowEmpty: true}, "", nil},
		{"trimmed", "  hi  ", StringConstraints{TrimSpace: true}, "hi", nil},
		{"trim to empty", "   ", StringConstraints{TrimSpace: true}, "", ErrEmpty},
		{"pattern match", "12345", StringConstraints{AllowedPattern: digits}, "12345", nil},
		{"pattern mismatch", "12a45", StringConstraints{AllowedPattern: digits}, "", ErrInvalidCharacters},
		{"sql keyword", "1; DROP TABLE users", StringConstraints{CheckSQLKeywords: true}, "", ErrSQLKeyword},
		{"rune counting", "héllo", StringConstraints{MaxLength: 5}, "héllo", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("String error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("String returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("String = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeHTML(t *testing.T) {
	got := SanitizeHTML(`<script>alert("xss")</script>`)
	if strings.Contains(got, "<script>") {
		t.Errorf("SanitizeHTML left raw script tag: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("SanitizeHTML did not escape tags: %q", got)
	}
}

func TestProductName(t *testing.T) {
	valid := []string{
		"Mechanical Keyboard",
		"USB-C Hub (7-port)",
		"Coffee & Tea Sampler",
		"Running Shoes, Size 42",
	}
	for _, name := range valid {
		if _, err := ProductName(name); err != nil {
			t.Errorf("ProductName(%q) returned error: %v", name, err)
		}
	}

	if _, err := ProductName(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty product name error = %v, want ErrEmpty", err)
	}
	if _, err := ProductName(strings.Repeat("a", 201)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long product name error = %v, want ErrStringTooLong", err)
	}
	if _, err := ProductName("Widget <script>"); !errors.Is(err, ErrInvalidCharacters) {
		t.Errorf("product name with markup error = %v, want ErrInvalidCharacters", err)
	}
	if _, err := ProductName("Gadget; DROP TABLE products"); err == nil {
		t.Error("product name with SQL injection accepted")
	}
}

func TestReviewContent(t *testing.T) {
	got, err := ReviewContent("  Great product, would buy again!  ")
	if err != nil {
		t.Fatalf("ReviewContent returned error: %v", err)
	}
	if got != "Great product, would buy again!" {
		t.Errorf("ReviewContent = %q", got)
	}

	if _, err := ReviewContent(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty review error = %v, want ErrEmpty", err)
	}
	if _, err := ReviewContent(strings.Repeat("a", 5001)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long review error = %v, want ErrStringTooLong", err)
	}

	// Reviews may mention words that happen to be SQL keywords.
	if _, err := ReviewContent("I ordered this from the update page"); err != nil {
		t.Errorf("review with incidental keywords rejected: %v", err)
	}
}

func TestDescription(t *testing.T) {
	if _, err := Description(""); err != nil {
		t.Errorf("empty description rejected: %v", err)
	}
	if _, err := Description(strings.Repeat("a", 5001)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long description error = %v, want ErrStringTooLong", err)
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"USD", "USD"},
		{"usd", "USD"},
		{" try ", "TRY"},
		{"EUR", "EUR"},
	}
	for _, tt := range tests {
		got, err := Currency(tt.input)
		if err != nil {
			t.Errorf("Currency(%q) returned error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Currency(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	invalid := []string{"", "US", "USDT", "U$D", "123"}
	for _, code := range invalid {
		if _, err := Currency(code); err == nil {
			t.Errorf("Currency(%q) accepted", code)
		}
	}
}
