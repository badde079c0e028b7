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
		{".5", 50, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"1.٥", 0, false},
		{"1.５", 0, false},
		{"٥", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
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

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		150:    "1.50",
		123456: "1234.56",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: Money{Cents: 100010}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"total":1000.10}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestMoneyAddIsExact(t *testing.T) {
	var total Money
	for i := 0; i < 100000; i++ {
		total = total.Add(Money{Cents: 10})
	}
	if total.Cents != 1000000 {
		t.Fatalf("expected exact sum, got %d", total.Cents)
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	cases := map[string]int64{
		`1000.10`: 100010,
		`"12,34"`: 1234,
		`0.00`:    0,
		`7`:       700,
	}
	for in, want := range cases {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil || m.Cents != want {
			t.Errorf("unmarshal %s = %d, %v; want %d", in, m.Cents, err, want)
		}
	}
	for _, in := range []string{`"abc"`, `-2.50`, `"-1"`, `"1.５"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err == nil {
			t.Errorf("unmarshal %s: expected error, got %d", in, m.Cents)
		}
	}
}
