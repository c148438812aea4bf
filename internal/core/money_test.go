package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyStringAndFormat(t *testing.T) {
	cases := []struct {
		cents  int64
		str    string
		format string
	}{
		{0, "0.00", "$0.00"},
		{5, "0.05", "$0.05"},
		{123456, "1234.56", "$1234.56"},
		{-3500, "-35.00", "-$35.00"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		if got := m.String(); got != tc.str {
			t.Errorf("String(%d) = %q, want %q", tc.cents, got, tc.str)
		}
		if got := m.Format("$"); got != tc.format {
			t.Errorf("Format(%d) = %q, want %q", tc.cents, got, tc.format)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	cases := []int64{0, 1, 250, 99999, -1250}
	for _, cents := range cases {
		b, err := json.Marshal(Money{Cents: cents})
		if err != nil {
			t.Fatalf("marshal %d: %v", cents, err)
		}
		var back Money
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if back.Cents != cents {
			t.Fatalf("round trip %d via %s gave %d", cents, b, back.Cents)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`12.5`), &m); err != nil || m.Cents != 1250 {
		t.Fatalf("unmarshal 12.5: cents=%d err=%v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non numeric money")
	}
}
