package convert

import "testing"

func TestNumToStrInternal(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{3, "3"},
		{-3, "-3"},
		{3.5, "3.5"},
		{0.1, "0.1"},
	}
	for _, tc := range tests {
		if got := NumToStrInternal(tc.in); got != tc.want {
			t.Errorf("NumToStrInternal(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNumToStrInternalRoundTrip(t *testing.T) {
	for _, x := range []float64{0, 1, -1, 3.14159, 100000, 0.001} {
		s := NumToStrInternal(x)
		n, ok := StrToNum(s)
		if !ok {
			t.Fatalf("StrToNum(%q) failed to parse round-tripped number", s)
		}
		if NumToStrInternal(n) != s {
			t.Errorf("round-trip broke: x=%v s=%q n=%v s2=%q", x, s, n, NumToStrInternal(n))
		}
	}
}

func TestNumToStrUserIntegersIgnoreFormat(t *testing.T) {
	if got := NumToStrUser(3, "%.6g"); got != "3" {
		t.Errorf("NumToStrUser(3, %%.6g) = %q, want %q", got, "3")
	}
	if got := NumToStrUser(3.14159265, "%.2f"); got != "3.14" {
		t.Errorf("NumToStrUser(3.14159265, %%.2f) = %q, want %q", got, "3.14")
	}
}

func TestStrToNum(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantOk  bool
	}{
		{"3", 3, true},
		{"  -2.5  ", -2.5, true},
		{"3abc", 3, true},
		{"abc", 0, false},
		{"", 0, false},
		{"1e3", 1000, true},
		{"0x10", 0, true}, // only the leading "0" parses
	}
	for _, tc := range tests {
		got, ok := StrToNum(tc.in)
		if ok != tc.wantOk || (ok && got != tc.want) {
			t.Errorf("StrToNum(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.wantOk)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"3", true},
		{" -2.5e3 ", true},
		{"3abc", false},
		{"", false},
		{"   ", false},
		{"abc", false},
		{"3.14", true},
	}
	for _, tc := range tests {
		if got := IsNumeric(tc.in); got != tc.want {
			t.Errorf("IsNumeric(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
