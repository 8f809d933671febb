package coerce

import (
	"testing"
	"time"
)

func TestValue_Integer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     any
		want   any
		wantOK bool
	}{
		{"10", int64(10), true},
		{" 000123 ", int64(123), true},
		{"-7", int64(-7), true},
		{"12.5", nil, false},
		{"12,0", nil, false},
		{"abc", nil, false},
		{"", nil, true},
		{nil, nil, true},
	}
	for _, tc := range cases {
		got, ok := Value(Integer, tc.in, false)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("Value(Integer, %#v) = (%#v, %v), want (%#v, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestValue_FloatLocale(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in           string
		decimalComma bool
		want         any
		wantOK       bool
	}{
		{"1 234,56", true, 1234.56, true},
		{"1 234,5", true, 1234.5, true},
		{"-0,25", true, -0.25, true},
		{"3.5", false, 3.5, true},
		{"1 234,56", false, nil, false},
		{"n/a", true, nil, false},
		{"NaN", true, nil, false},
		{"inf", true, nil, false},
		{"-Infinity", false, nil, false},
		{"0x1p4", false, nil, false},
		{"1_000", false, nil, false},
		{"1e3", false, 1000.0, true},
		{",5", true, 0.5, true},
		{"1e999", false, nil, false},
	}
	for _, tc := range cases {
		got, ok := Value(Float, tc.in, tc.decimalComma)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("Value(Float, %q, %v) = (%#v, %v), want (%#v, %v)", tc.in, tc.decimalComma, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestValue_DateAndTime(t *testing.T) {
	t.Parallel()

	got, ok := Value(Date, "05.03.2024", false)
	if !ok {
		t.Fatalf("date not parsed")
	}
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	if !got.(time.Time).Equal(want) {
		t.Fatalf("date = %v, want %v", got, want)
	}

	if v, ok := Value(Date, "2024-03-05", false); ok || v != nil {
		t.Fatalf("ISO date must fail, got (%v, %v)", v, ok)
	}

	tod, ok := Value(Time, "07:08:09", false)
	if !ok || tod.(TimeOfDay) != (TimeOfDay{7, 8, 9}) {
		t.Fatalf("time = (%v, %v)", tod, ok)
	}
	if s := tod.(TimeOfDay).String(); s != "07:08:09" {
		t.Fatalf("String() = %q", s)
	}
	if v, ok := Value(Time, "25:00:00", false); ok || v != nil {
		t.Fatalf("invalid hour must fail, got (%v, %v)", v, ok)
	}
}

func TestValue_TextKeepsEmpty(t *testing.T) {
	t.Parallel()

	got, ok := Value(Text, "", false)
	if !ok || got != "" {
		t.Fatalf("empty text = (%#v, %v), want (\"\", true)", got, ok)
	}
	got, ok = Value(Text, "  padded ", false)
	if !ok || got != "  padded " {
		t.Fatalf("text must pass through unchanged, got %q", got)
	}
	got, ok = Value(Text, nil, false)
	if !ok || got != nil {
		t.Fatalf("nil text = (%#v, %v)", got, ok)
	}
}

func TestValue_Passthrough(t *testing.T) {
	t.Parallel()

	if v, ok := Value(Integer, int64(5), false); !ok || v != int64(5) {
		t.Fatalf("int64 passthrough = (%v, %v)", v, ok)
	}
	if v, ok := Value(Text, int64(5), false); !ok || v != "5" {
		t.Fatalf("text of int = (%v, %v)", v, ok)
	}
	if v, ok := Value(Date, 5, false); ok || v != nil {
		t.Fatalf("int as date must fail, got (%v, %v)", v, ok)
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Type{
		"int": Integer, "Integer": Integer, "float": Float, "date": Date,
		"time": Time, "str": Text, " text ": Text,
	} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseType("bool"); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
