package format

import "testing"

type numArg float64

func (n numArg) ToNumber() float64 { return float64(n) }
func (n numArg) ToStringUser(convfmt string) string {
	s, _ := Sprintf("%g", []Arg{n}, convfmt)
	return s
}
func (n numArg) IsNumericLike() bool { return true }

type strArg string

func (s strArg) ToNumber() float64                  { return 0 }
func (s strArg) ToStringUser(convfmt string) string { return string(s) }
func (s strArg) IsNumericLike() bool                { return false }

func TestSprintfBasicVerbs(t *testing.T) {
	cases := []struct {
		format string
		args   []Arg
		want   string
	}{
		{"%d", []Arg{numArg(42)}, "42"},
		{"%i", []Arg{numArg(42)}, "42"},
		{"%5d", []Arg{numArg(3)}, "    3"},
		{"%-5d|", []Arg{numArg(3)}, "3    |"},
		{"%05d", []Arg{numArg(3)}, "00003"},
		{"%x", []Arg{numArg(255)}, "ff"},
		{"%X", []Arg{numArg(255)}, "FF"},
		{"%o", []Arg{numArg(8)}, "10"},
		{"%s", []Arg{strArg("hi")}, "hi"},
		{"%10s", []Arg{strArg("hi")}, "        hi"},
		{"%-10s|", []Arg{strArg("hi")}, "hi        |"},
		{"%c", []Arg{strArg("hello")}, "h"},
		{"%c", []Arg{numArg(65)}, "A"},
		{"%%", nil, "%"},
		{"%.2f", []Arg{numArg(3.14159)}, "3.14"},
	}
	for _, c := range cases {
		got, err := Sprintf(c.format, c.args, "%.6g")
		if err != nil {
			t.Fatalf("Sprintf(%q): %v", c.format, err)
		}
		if got != c.want {
			t.Errorf("Sprintf(%q) = %q, want %q", c.format, got, c.want)
		}
	}
}

func TestSprintfStarWidth(t *testing.T) {
	got, err := Sprintf("%*d", []Arg{numArg(6), numArg(7)}, "%.6g")
	if err != nil {
		t.Fatalf("Sprintf: %v", err)
	}
	if got != "     7" {
		t.Errorf("got %q, want %q", got, "     7")
	}
}

func TestSprintfMultipleDirectives(t *testing.T) {
	got, err := Sprintf("%s is %d", []Arg{strArg("x"), numArg(1)}, "%.6g")
	if err != nil {
		t.Fatalf("Sprintf: %v", err)
	}
	if got != "x is 1" {
		t.Errorf("got %q, want %q", got, "x is 1")
	}
}

func TestSprintfMissingArgError(t *testing.T) {
	_, err := Sprintf("%d %d", []Arg{numArg(1)}, "%.6g")
	if err == nil {
		t.Fatalf("expected error for missing argument")
	}
}
