// Package convert implements the number/string converter from spec.md
// §4.8: a lossless internal conversion used for subscript keys and
// internal comparisons, a user-facing conversion honoring CONVFMT/OFMT,
// and a lenient leading-digit string-to-number parser.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumToStrInternal renders x in a fixed, lossless textual form. Integral
// values (including negative zero folded to "0") print without a
// fractional part; everything else prints with the shortest
// round-tripping decimal, matching the spec's round-trip law
// num_to_str_internal ∘ str_to_num ∘ num_to_str_internal = num_to_str_internal.
func NumToStrInternal(x float64) string {
	if math.IsNaN(x) {
		return "nan"
	}
	if math.IsInf(x, 1) {
		return "inf"
	}
	if math.IsInf(x, -1) {
		return "-inf"
	}
	if x == math.Trunc(x) && math.Abs(x) < 1e18 {
		if x == 0 {
			return "0"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// NumToStrUser renders x using the user-visible CONVFMT/OFMT format
// specifier, except that integral values are always rendered as plain
// integers regardless of the format (POSIX AWK behavior: "%.6g" applied
// to 3 still prints "3", not "3.00000").
func NumToStrUser(x float64, format string) string {
	if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e18 {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return sprintfOne(format, x)
}

// sprintfOne applies a single-conversion printf format string to x,
// translating the AWK-only %i alias for %d; anything else is handed to
// fmt verbatim since CONVFMT/OFMT are ordinary printf float/string specs.
func sprintfOne(format string, x float64) string {
	format = strings.Replace(format, "%i", "%d", 1)
	if strings.Contains(format, "%d") || strings.Contains(format, "%o") ||
		strings.Contains(format, "%x") || strings.Contains(format, "%X") ||
		strings.Contains(format, "%u") {
		return fmt.Sprintf(strings.ReplaceAll(format, "%u", "%d"), int64(x))
	}
	return fmt.Sprintf(format, x)
}

// StrToNum implements AWK's lenient leading-numeric-prefix parser: it
// returns the number formed by the longest valid numeric prefix of s
// (after skipping leading whitespace), and ok=false if no such prefix
// exists. "0x10" parses only the "0" (AWK numeric literals are decimal
// in string context, hex only in source text), matching common awk
// behavior.
func StrToNum(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\n")
	if s == "" {
		return 0, false
	}
	i := 0
	n := len(s)
	if i < n && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	sawDigits := false
	for i < n && isDigit(s[i]) {
		i++
		sawDigits = true
	}
	if i < n && s[i] == '.' {
		i++
		for i < n && isDigit(s[i]) {
			i++
			sawDigits = true
		}
	}
	if !sawDigits {
		// Allow "inf"/"nan" the way strconv does, but AWK traditionally
		// treats those as non-numeric strings; stay conservative and fail.
		return 0, false
	}
	mantissaEnd := i
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < n && isDigit(s[j]) {
			j++
			for j < n && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	_ = start
	numStr := s[:i]
	v, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		// Fall back to the mantissa alone (exponent parse glitch shouldn't happen).
		v, err = strconv.ParseFloat(s[:mantissaEnd], 64)
		if err != nil {
			return 0, false
		}
	}
	return v, true
}

// IsNumeric reports whether s, trimmed of surrounding whitespace, is
// ENTIRELY a valid number (not merely prefixed by one) — the POSIX
// "looks like a number" test that decides whether a StrNum participates
// numerically in a comparison. "3" and " -2.5e3 " qualify; "3abc" and
// "" do not, even though StrToNum("3abc") happily returns 3 for numeric
// context conversion.
func IsNumeric(s string) bool {
	t := strings.Trim(s, " \t\n")
	if t == "" {
		return false
	}
	if _, ok := StrToNum(t); !ok {
		return false
	}
	return consumesAll(t)
}

// consumesAll reports whether StrToNum's numeric-prefix scan over t
// (already trimmed) reaches the end of the string, i.e. every byte of t
// took part in the number.
func consumesAll(s string) bool {
	i := 0
	n := len(s)
	if i < n && (s[i] == '+' || s[i] == '-') {
		i++
	}
	sawDigits := false
	for i < n && isDigit(s[i]) {
		i++
		sawDigits = true
	}
	if i < n && s[i] == '.' {
		i++
		for i < n && isDigit(s[i]) {
			i++
			sawDigits = true
		}
	}
	if !sawDigits {
		return false
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < n && isDigit(s[j]) {
			j++
			for j < n && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i == n
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
