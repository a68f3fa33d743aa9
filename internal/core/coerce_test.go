package core

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// AsText Tests
// ----------------------------------------------------------------------------

func TestAsText(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"trims string", "  Tornillos  ", "Tornillos", true},
		{"empty string", "   ", "", false},
		{"formula wrapper", `="0003"`, "0003", true},
		{"integer float", float64(10), "10", true},
		{"decimal float", 250.5, "250.5", true},
		{"large id float", float64(20123456789), "20123456789", true},
		{"bool true", true, "true", true},
		{"bool false", false, "false", true},
		{"NaN", math.NaN(), "", false},
		{"infinity", math.Inf(1), "", false},
		{"nil", nil, "", false},
		{"time is not text", time.Now(), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsText(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("AsText(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("AsText(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// AsInteger Tests
// ----------------------------------------------------------------------------

func TestAsInteger(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   int
		wantOK bool
	}{
		{"float truncated", 3.9, 3, true},
		{"negative float truncated toward zero", -3.9, -3, true},
		{"plain string", "3", 3, true},
		{"padded string", "0003", 3, true},
		{"label noise", "Pto 0005", 5, true},
		{"leading minus", "-12", -12, true},
		{"no digits", "abc", 0, false},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInteger(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("AsInteger(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("AsInteger(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// AsDecimal Tests
// ----------------------------------------------------------------------------

func TestAsDecimal(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		// Locale formats
		{"european grouping and comma", "1.234,56", "1234.56", true},
		{"plain point", "1234.56", "1234.56", true},
		{"comma decimal", "250,50", "250.5", true},
		{"us grouping", "1,234.56", "1234.56", true},
		{"repeated dot grouping", "1.234.567", "1234567", true},
		{"repeated comma grouping", "1,234,567", "1234567", true},

		// Noise
		{"currency symbol", "$ 250,50", "250.5", true},
		{"negative", "-15,5", "-15.5", true},
		{"spaces", " 10 ", "10", true},

		// Native numbers
		{"float", 250.5, "250.5", true},
		{"integer", 10, "10", true},

		// No value
		{"empty", "", "0", false},
		{"letters only", "abc", "0", false},
		{"lone separator", ",", "0", false},
		{"NaN", math.NaN(), "0", false},
		{"nil", nil, "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsDecimal(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("AsDecimal(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("AsDecimal(%v) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestAsDecimal_LocaleRoundTrip(t *testing.T) {
	a, okA := AsDecimal("1.234,56")
	b, okB := AsDecimal("1234.56")
	if !okA || !okB {
		t.Fatalf("expected both values to parse, got ok=%v, ok=%v", okA, okB)
	}
	if !a.Equal(b) {
		t.Errorf("got %s and %s, want equal values", a, b)
	}
	if f := a.InexactFloat64(); f != 1234.56 {
		t.Errorf("got %v, want 1234.56", f)
	}
}

// ----------------------------------------------------------------------------
// AsDate Tests
// ----------------------------------------------------------------------------

func TestAsDate(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"serial", float64(45000), "2023-03-15", true},
		{"serial with time fraction", 45000.75, "2023-03-15", true},
		{"serial int", 45000, "2023-03-15", true},
		{"unix epoch serial", float64(25569), "1970-01-01", true},
		{"iso", "2023-03-15", "2023-03-15", true},
		{"iso with time", "2023-03-15T10:00:00", "2023-03-15", true},
		{"compact", "20230315", "2023-03-15", true},
		{"slashes", "15/03/2023", "2023-03-15", true},
		{"dashes", "15-03-2023", "2023-03-15", true},
		{"single digit day and month", "5/3/2023", "2023-03-05", true},
		{"serial as text", "45000", "2023-03-15", true},
		{"serial as text with fraction", "45000.75", "2023-03-15", true},
		{"four digits are not a serial", "2023", "", false},
		{"native time", time.Date(2023, 3, 15, 18, 0, 0, 0, time.UTC), "2023-03-15", true},

		{"calendar invalid", "2023-02-30", "", false},
		{"compact invalid", "20231340", "", false},
		{"free text", "mañana", "", false},
		{"empty", "", "", false},
		{"zero time", time.Time{}, "", false},
		{"bool", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("AsDate(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("AsDate(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAsDate_SerialMatchesText(t *testing.T) {
	fromSerial, _ := AsDate(float64(45000))
	fromText, _ := AsDate("2023-03-15")
	if fromSerial != fromText {
		t.Errorf("serial gave %q, text gave %q", fromSerial, fromText)
	}
}
