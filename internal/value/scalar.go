package value

import (
	"goawk-core/internal/convert"
)

// Kind tags the variant of a Scalar.
type Kind uint8

const (
	KindNum Kind = iota
	KindStr
	KindStrNum
)

// Scalar is the tagged scalar value from spec.md §3.1. A value never
// silently changes tag; every conversion produces a new Scalar.
type Scalar struct {
	kind Kind
	num  float64
	str  RefBytes
}

// Num builds a numeric scalar. Num always participates numerically.
func Num(x float64) Scalar {
	return Scalar{kind: KindNum, num: x}
}

// Str builds a string scalar from an owned RefBytes. Str always
// participates textually, even if it looks like a number.
func Str(b RefBytes) Scalar {
	return Scalar{kind: KindStr, str: b}
}

// StrNum builds a scalar from an owned RefBytes that originated at the
// record/field/getline boundary. It participates numerically iff it
// parses as a number under AWK rules, else textually.
func StrNum(b RefBytes) Scalar {
	return Scalar{kind: KindStrNum, str: b}
}

// StrFromString and StrNumFromString are convenience constructors for
// values that don't need arena pooling (constant pools, builtin
// results that aren't on the record hot path).
func StrFromString(s string) Scalar    { return Str(NewRefBytes([]byte(s))) }
func StrNumFromString(s string) Scalar { return StrNum(NewRefBytes([]byte(s))) }

// Uninitialized is the value read back from a never-assigned scalar or
// array element (spec.md §7): the empty string, typed StrNum. This is
// NOT an error per AWK semantics.
func Uninitialized() Scalar {
	return Scalar{kind: KindStrNum, str: EmptyRefBytes()}
}

// Kind reports the value's tag.
func (s Scalar) Kind() Kind { return s.kind }

// IsNumericLike reports whether s participates numerically in a
// comparison: true for Num, true for StrNum that parses as a number,
// false for Str and non-numeric StrNum.
func (s Scalar) IsNumericLike() bool {
	switch s.kind {
	case KindNum:
		return true
	case KindStrNum:
		return convert.IsNumeric(s.str.String())
	default:
		return false
	}
}

// ToNumber converts s for use in a numeric context (spec.md §4.4): Num
// as is; Str/StrNum parsed leading-digit style, invalid ⇒ 0.0.
func (s Scalar) ToNumber() float64 {
	if s.kind == KindNum {
		return s.num
	}
	v, ok := convert.StrToNum(s.str.String())
	if !ok {
		return 0
	}
	return v
}

// ToStringInternal renders s for array subscript keys and internal
// comparisons: a fixed, lossless form for Num, the raw bytes for
// Str/StrNum.
func (s Scalar) ToStringInternal() string {
	if s.kind == KindNum {
		return convert.NumToStrInternal(s.num)
	}
	return s.str.String()
}

// ToStringUser renders s for interpolation/printing using the supplied
// CONVFMT or OFMT specifier; Str/StrNum pass through unchanged.
func (s Scalar) ToStringUser(format string) string {
	if s.kind == KindNum {
		return convert.NumToStrUser(s.num, format)
	}
	return s.str.String()
}

// Truthy implements AWK truthiness (spec.md §4.4).
func (s Scalar) Truthy() bool {
	switch s.kind {
	case KindNum:
		return s.num != 0
	case KindStrNum:
		if v, ok := convert.StrToNum(s.str.String()); ok {
			return v != 0
		}
		return s.str.Len() > 0
	default:
		return s.str.Len() > 0
	}
}

// Compare implements the comparison rule of spec.md §4.4: numeric
// compare when both sides are numeric-like, else lexicographic byte
// compare. Returns -1, 0, or 1.
func Compare(a, b Scalar) int {
	if a.IsNumericLike() && b.IsNumericLike() {
		x, y := a.ToNumber(), b.ToNumber()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	sa, sb := a.ToStringInternal(), b.ToStringInternal()
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// RefBytesOf returns the backing RefBytes of a Str/StrNum scalar and
// true, or the zero value and false for Num.
func (s Scalar) RefBytesOf() (RefBytes, bool) {
	if s.kind == KindNum {
		return RefBytes{}, false
	}
	return s.str, true
}
