// Package format implements the printf/sprintf formatter collaborator
// of spec.md §6.2: `format(fmt_bytes, args) -> []byte | Error`, covering
// the specifier set `%d %i %o %u %x %X %e %E %f %g %G %c %s %%` with
// width, precision, and the `- + space 0 #` flags. No third-party
// formatting library in the retrieved pack implements AWK's specifier
// set (the `%i` alias, the scalar-aware `%c`/`%s`, `*`-width/precision
// pulling an extra argument) — see DESIGN.md. Each directive is
// translated to the equivalent Go fmt verb and handed to fmt.Sprintf,
// the same "build a translated verb, delegate the hard part" approach
// internal/convert's sprintfOne already uses for CONVFMT/OFMT.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"goawk-core/internal/errors"
)

// Arg is the minimal scalar interface format needs: a value that can
// render itself as a number or as a user-facing string, and that can
// say whether it carries a numeric value at all. value.Scalar
// satisfies this directly via its Kind/IsNumericLike.
type Arg interface {
	ToNumber() float64
	ToStringUser(convfmt string) string
	IsNumericLike() bool
}

// Sprintf renders fmtStr against args, consuming one arg per
// conversion (two for `*` width/precision), using convfmt to stringify
// any numeric argument passed to %s.
func Sprintf(fmtStr string, args []Arg, convfmt string) (string, error) {
	var sb strings.Builder
	pos := 0

	next := func() (Arg, error) {
		if pos >= len(args) {
			return nil, errors.NewRuntimeError("printf: not enough arguments for format string")
		}
		a := args[pos]
		pos++
		return a, nil
	}

	i, n := 0, len(fmtStr)
	for i < n {
		c := fmtStr[i]
		if c != '%' {
			sb.WriteByte(c)
			i++
			continue
		}
		if i+1 < n && fmtStr[i+1] == '%' {
			sb.WriteByte('%')
			i += 2
			continue
		}

		i++ // past '%'
		var flags strings.Builder
		for i < n && strings.IndexByte("-+ 0#", fmtStr[i]) >= 0 {
			flags.WriteByte(fmtStr[i])
			i++
		}

		width, widthSet, err := readAmount(fmtStr, &i, next)
		if err != nil {
			return "", err
		}

		var prec int
		precSet := false
		if i < n && fmtStr[i] == '.' {
			i++
			prec, precSet, err = readAmount(fmtStr, &i, next)
			if err != nil {
				return "", err
			}
			if !precSet {
				precSet = true // ".": precision 0
			}
		}

		if i >= n {
			return "", errors.NewRuntimeError("printf: incomplete format specifier")
		}
		verb := fmtStr[i]
		i++

		arg, err := next()
		if err != nil {
			return "", err
		}

		out, err := formatOne(verb, flags.String(), width, widthSet, prec, precSet, arg, convfmt)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

// readAmount parses a literal digit run or a `*` (which consumes the
// next argument as the amount), advancing *i past what it read.
func readAmount(s string, i *int, next func() (Arg, error)) (int, bool, error) {
	if *i < len(s) && s[*i] == '*' {
		*i++
		a, err := next()
		if err != nil {
			return 0, false, err
		}
		return int(a.ToNumber()), true, nil
	}
	start := *i
	for *i < len(s) && s[*i] >= '0' && s[*i] <= '9' {
		*i++
	}
	if *i == start {
		return 0, false, nil
	}
	v, _ := strconv.Atoi(s[start:*i])
	return v, true, nil
}

func formatOne(verb byte, flags string, width int, widthSet bool, prec int, precSet bool, arg Arg, convfmt string) (string, error) {
	spec := "%" + flags
	if widthSet {
		spec += strconv.Itoa(width)
	}
	if precSet {
		spec += "." + strconv.Itoa(prec)
	}

	switch verb {
	case 'd', 'i':
		return fmt.Sprintf(spec+"d", int64(arg.ToNumber())), nil
	case 'o':
		return fmt.Sprintf(spec+"o", int64(arg.ToNumber())), nil
	case 'x':
		return fmt.Sprintf(spec+"x", int64(arg.ToNumber())), nil
	case 'X':
		return fmt.Sprintf(spec+"X", int64(arg.ToNumber())), nil
	case 'u':
		return fmt.Sprintf(spec+"d", uint32(int64(arg.ToNumber()))), nil
	case 'e':
		return fmt.Sprintf(spec+"e", arg.ToNumber()), nil
	case 'E':
		return fmt.Sprintf(spec+"E", arg.ToNumber()), nil
	case 'f', 'F':
		return fmt.Sprintf(spec+"f", arg.ToNumber()), nil
	case 'g':
		return fmt.Sprintf(spec+"g", arg.ToNumber()), nil
	case 'G':
		return fmt.Sprintf(spec+"G", arg.ToNumber()), nil
	case 'c':
		return formatChar(spec, arg, convfmt), nil
	case 's':
		return fmt.Sprintf(spec+"s", arg.ToStringUser(convfmt)), nil
	default:
		return "", errors.NewRuntimeError(fmt.Sprintf("printf: unsupported format verb %%%c", verb))
	}
}

// formatChar implements %c: a numeric argument prints as the character
// with that code point; a string argument prints its first character.
// The numeric-vs-string decision follows the argument's own kind
// (IsNumericLike), not a guess from its stringified form — ToStringUser
// already renders numbers as digit strings, so checking for emptiness
// there would never see the numeric case.
func formatChar(spec string, arg Arg, convfmt string) string {
	var ch string
	if arg.IsNumericLike() {
		ch = string(rune(int(arg.ToNumber())))
	} else if s := arg.ToStringUser(convfmt); s != "" {
		r, _ := utf8.DecodeRuneInString(s)
		ch = string(r)
	}
	return fmt.Sprintf(spec+"s", ch)
}
