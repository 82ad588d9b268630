package payment

import (
	"errors"
	"testing"
)

func TestFormatMinor(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		exponent int
		want     string
	}{
		{"typical price", 129900, 2, "1299.00"},
		{"with cents", 129950, 2, "1299.50"},
		{"sub-unit amount", 5, 2, "0.05"},
		{"zero", 0, 2, "0.00"},
		{"one minor unit", 1, 2, "0.01"},
		{"negative", -129950, 2, "-1299.50"},
		{"zero exponent", 1299, 0, "1299"},
		{"three digit exponent", 1299500, 3, "1299.500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatMinor(tt.amount, tt.exponent)
			if got != tt.want {
				t.Errorf("FormatMinor(%d, %d) = %q, want %q", tt.amount, tt.exponent, got, tt.want)
			}
		})
	}
}

func TestParseMinor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		exponent int
		want     int64
	}{
		{"typical price", "1299.00", 2, 129900},
		{"with cents", "1299.50", 2, 129950},
		{"no fraction", "1299", 2, 129900},
		{"short fraction", "1299.5", 2, 129950},
		{"zero", "0.00", 2, 0},
		{"bare zero", "0", 2, 0},
		{"negative", "-1299.50", 2, -129950},
		{"leading plus", "+12.34", 2, 1234},
		{"bare fraction", ".50", 2, 50},
		{"trailing dot", "12.", 2, 1200},
		{"whitespace", " 12.34 ", 2, 1234},
		{"round half up", "12.345", 2, 1235},
		{"round down", "12.344", 2, 1234},
		{"round up above half", "12.346", 2, 1235},
		{"negative round half up", "-12.345", 2, -1235},
		{"long fraction truncates after rounding digit", "12.3449", 2, 1234},
		{"zero exponent rounds", "12.5", 0, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMinor(tt.input, tt.exponent)
			if err != nil {
				t.Fatalf("ParseMinor(%q, %d) returned error: %v", tt.input, tt.exponent, err)
			}
			if got != tt.want {
				t.Errorf("ParseMinor(%q, %d) = %d, want %d", tt.input, tt.exponent, got, tt.want)
			}
		})
	}
}

func TestParseMinorMalformed(t *testing.T) {
	inputs := []string{"", ".", "abc", "12.3a", "1a.34", "12..34", "-", "--12"}
	for _, input := range inputs {
		if _, err := ParseMinor(input, 2); !errors.Is(err, ErrMalformedAmount) {
			t.Errorf("ParseMinor(%q) error = %v, want ErrMalformedAmount", input, err)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	amounts := []int64{0, 1, 99, 100, 129900, 999999999, -5, -129950}
	for _, amount := range amounts {
		s := FormatMinor(amount, 2)
		got, err := ParseMinor(s, 2)
		if err != nil {
			t.Fatalf("ParseMinor(%q) returned error: %v", s, err)
		}
		if got != amount {
			t.Errorf("round trip %d -> %q -> %d", amount, s, got)
		}
	}
}
