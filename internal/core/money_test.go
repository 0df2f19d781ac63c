package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input     string
		wantCents int64
		wantErr   bool
	}{
		{"12.34", 1234, false},
		{"12", 1200, false},
		{"0.5", 50, false},
		{"-5.25", -525, false},
		{"12.345", 1235, false}, // rounds half away from zero
		{"12.344", 1234, false},
		{"0", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12.3.4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if m.Cents != tt.wantCents {
				t.Errorf("ParseAmount(%q) = %d cents, want %d", tt.input, m.Cents, tt.wantCents)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: 1000}
	b := Money{Cents: 250}

	if got := a.Add(b); got.Cents != 1250 {
		t.Errorf("Add = %d, want 1250", got.Cents)
	}
	if got := a.Sub(b); got.Cents != 750 {
		t.Errorf("Sub = %d, want 750", got.Cents)
	}
	if got := b.Neg(); got.Cents != -250 {
		t.Errorf("Neg = %d, want -250", got.Cents)
	}
	if !(Money{}).IsZero() || a.IsZero() {
		t.Error("IsZero misreported")
	}
	if a.IsNegative() || !a.Neg().IsNegative() {
		t.Error("IsNegative misreported")
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{-50, "-0.50"},
		{0, "0.00"},
		{100000, "1000.00"},
	}

	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	in := Money{Cents: -12345}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Money
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed value: %v -> %v", in, out)
	}

	// Plain JSON numbers are accepted too.
	var fromNumber Money
	if err := json.Unmarshal([]byte(`42.5`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if fromNumber.Cents != 4250 {
		t.Errorf("unmarshal number = %d cents, want 4250", fromNumber.Cents)
	}
}
