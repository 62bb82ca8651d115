package value

import "testing"

func TestUninitializedIsEmptyStrNum(t *testing.T) {
	u := Uninitialized()
	if u.Kind() != KindStrNum {
		t.Fatalf("Uninitialized().Kind() = %v, want KindStrNum", u.Kind())
	}
	if u.ToStringInternal() != "" {
		t.Fatalf("Uninitialized().ToStringInternal() = %q, want empty", u.ToStringInternal())
	}
	if u.Truthy() {
		t.Fatalf("Uninitialized() must be falsy")
	}
}

func TestStrNumParticipatesNumericallyOnlyWhenNumeric(t *testing.T) {
	numeric := StrNumFromString("42")
	if !numeric.IsNumericLike() {
		t.Errorf(`StrNum("42").IsNumericLike() = false, want true`)
	}
	if numeric.ToNumber() != 42 {
		t.Errorf(`StrNum("42").ToNumber() = %v, want 42`, numeric.ToNumber())
	}

	text := StrNumFromString("abc")
	if text.IsNumericLike() {
		t.Errorf(`StrNum("abc").IsNumericLike() = true, want false`)
	}
}

func TestStrNeverParticipatesNumerically(t *testing.T) {
	s := StrFromString("42")
	if s.IsNumericLike() {
		t.Errorf(`Str("42").IsNumericLike() = true, want false (Str always textual)`)
	}
}

func TestCompareNumericVsLexicographic(t *testing.T) {
	a := Num(2)
	b := StrNumFromString("10")
	if Compare(a, b) >= 0 {
		t.Errorf("Compare(2, StrNum(10)) should be numeric and negative")
	}

	c := StrFromString("2")
	d := StrFromString("10")
	if Compare(c, d) <= 0 {
		t.Errorf(`Compare(Str("2"), Str("10")) should be lexicographic and positive`)
	}
}

func TestToStringUserHonorsFormatForFractional(t *testing.T) {
	n := Num(3.14159265)
	if got := n.ToStringUser("%.2f"); got != "3.14" {
		t.Errorf("ToStringUser(%%.2f) = %q, want %q", got, "3.14")
	}
	if got := StrFromString("hi").ToStringUser("%.2f"); got != "hi" {
		t.Errorf("Str.ToStringUser must pass strings through unchanged, got %q", got)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		s    Scalar
		want bool
	}{
		{Num(0), false},
		{Num(1), true},
		{StrFromString(""), false},
		{StrFromString("0"), true}, // Str "0" is truthy: non-empty string, not numeric
		{StrNumFromString("0"), false},
		{StrNumFromString(""), false},
		{StrNumFromString("abc"), true},
	}
	for _, tc := range tests {
		if got := tc.s.Truthy(); got != tc.want {
			t.Errorf("Truthy(%+v) = %v, want %v", tc.s, got, tc.want)
		}
	}
}
