package vm

import (
	"math"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"time"

	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
	"goawk-core/internal/format"
	"goawk-core/internal/record"
	"goawk-core/internal/regexcache"
	"goawk-core/internal/value"
)

// callBuiltin dispatches one CallBuiltin opcode. numArgs counts only
// the scalar-stack arguments the compiler pushed for this call
// (internal/compiler/call.go); length(array) and both split() forms
// additionally carry an array id on the separate array stack, popped
// here regardless of numArgs since the two stacks are independent.
func (vm *VM) callBuiltin(op bytecode.BuiltinOp, numArgs int) error {
	switch op {
	case bytecode.BLength:
		s, _ := vm.currentRecordText()
		vm.pushScalar(value.Num(float64(len(s))))

	case bytecode.BLengthArg:
		s := vm.popScalar().ToStringUser(vm.convfmt)
		vm.pushScalar(value.Num(float64(len(s))))

	case bytecode.BLengthArr:
		id := vm.popArray()
		vm.pushScalar(value.Num(float64(vm.arrStore.Count(id))))

	case bytecode.BSubstr2:
		args := vm.popScalars(2)
		s := args[0].ToStringUser(vm.convfmt)
		start := args[1].ToNumber()
		vm.pushScalar(value.StrFromString(substr(s, start, false, 0)))

	case bytecode.BSubstr3:
		args := vm.popScalars(3)
		s := args[0].ToStringUser(vm.convfmt)
		start := args[1].ToNumber()
		length := args[2].ToNumber()
		vm.pushScalar(value.StrFromString(substr(s, start, true, length)))

	case bytecode.BIndex:
		args := vm.popScalars(2)
		s := args[0].ToStringUser(vm.convfmt)
		t := args[1].ToStringUser(vm.convfmt)
		vm.pushScalar(value.Num(float64(strings.Index(s, t) + 1)))

	case bytecode.BSplit2:
		args := vm.popScalars(numArgs)
		id := vm.popArray()
		s := args[0].ToStringUser(vm.convfmt)
		n := vm.doSplit(id, s, vm.fs)
		vm.pushScalar(value.Num(float64(n)))

	case bytecode.BSplit3:
		args := vm.popScalars(numArgs)
		id := vm.popArray()
		s := args[0].ToStringUser(vm.convfmt)
		fs := args[1].ToStringUser(vm.convfmt)
		n := vm.doSplit(id, s, fs)
		vm.pushScalar(value.Num(float64(n)))

	case bytecode.BSprintf:
		args := vm.popScalars(numArgs)
		if len(args) == 0 {
			return errors.NewRuntimeError("sprintf: missing format string")
		}
		fmtStr := args[0].ToStringUser(vm.convfmt)
		rest := make([]format.Arg, len(args)-1)
		for i, a := range args[1:] {
			rest[i] = a
		}
		out, err := format.Sprintf(fmtStr, rest, vm.convfmt)
		if err != nil {
			return err
		}
		vm.pushScalar(value.StrFromString(out))

	case bytecode.BSub, bytecode.BGsub:
		args := vm.popScalars(3)
		ere := args[0].ToStringUser(vm.convfmt)
		repl := args[1].ToStringUser(vm.convfmt)
		target := args[2].ToStringUser(vm.convfmt)
		re, err := vm.cache.Get(ere)
		if err != nil {
			return errors.NewRuntimeError("invalid regular expression: " + err.Error())
		}
		out, count := substitute(re, repl, target, op == bytecode.BGsub)
		vm.pushScalar(value.Num(float64(count)))
		vm.pushScalar(value.StrFromString(out))

	case bytecode.BMatch:
		args := vm.popScalars(2)
		s := args[0].ToStringUser(vm.convfmt)
		ere := args[1].ToStringUser(vm.convfmt)
		re, err := vm.cache.Get(ere)
		if err != nil {
			return errors.NewRuntimeError("invalid regular expression: " + err.Error())
		}
		start, length, ok := re.Find([]byte(s))
		if !ok {
			vm.rstart, vm.rlength = 0, -1
		} else {
			vm.rstart, vm.rlength = start+1, length
		}
		vm.pushScalar(value.Num(float64(vm.rstart)))

	case bytecode.BTolower:
		s := vm.popScalar().ToStringUser(vm.convfmt)
		vm.pushScalar(value.StrFromString(strings.ToLower(s)))

	case bytecode.BToupper:
		s := vm.popScalar().ToStringUser(vm.convfmt)
		vm.pushScalar(value.StrFromString(strings.ToUpper(s)))

	case bytecode.BSin:
		vm.pushScalar(value.Num(math.Sin(vm.popScalar().ToNumber())))
	case bytecode.BCos:
		vm.pushScalar(value.Num(math.Cos(vm.popScalar().ToNumber())))
	case bytecode.BExp:
		vm.pushScalar(value.Num(math.Exp(vm.popScalar().ToNumber())))
	case bytecode.BLog:
		vm.pushScalar(value.Num(math.Log(vm.popScalar().ToNumber())))
	case bytecode.BSqrt:
		vm.pushScalar(value.Num(math.Sqrt(vm.popScalar().ToNumber())))
	case bytecode.BInt:
		vm.pushScalar(value.Num(math.Trunc(vm.popScalar().ToNumber())))

	case bytecode.BAtan2:
		args := vm.popScalars(2)
		vm.pushScalar(value.Num(math.Atan2(args[0].ToNumber(), args[1].ToNumber())))

	case bytecode.BRand:
		vm.pushScalar(value.Num(vm.rnd.Float64()))

	case bytecode.BSrand:
		prev := vm.lastSeed
		seed := float64(time.Now().UnixNano())
		vm.lastSeed = seed
		vm.rnd = rand.New(rand.NewSource(int64(seed)))
		vm.pushScalar(value.Num(prev))

	case bytecode.BSrandSeed:
		seed := vm.popScalar().ToNumber()
		prev := vm.lastSeed
		vm.lastSeed = seed
		vm.rnd = rand.New(rand.NewSource(int64(seed)))
		vm.pushScalar(value.Num(prev))

	case bytecode.BSystem:
		cmdline := vm.popScalar().ToStringUser(vm.convfmt)
		vm.fflush("")
		cmd := exec.Command("sh", "-c", cmdline)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		code := 0
		if err := cmd.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		vm.pushScalar(value.Num(float64(code)))

	case bytecode.BClose:
		target := vm.popScalar().ToStringUser(vm.convfmt)
		vm.pushScalar(value.Num(float64(vm.closeStream(target))))

	case bytecode.BFflush:
		var target string
		if numArgs == 1 {
			target = vm.popScalar().ToStringUser(vm.convfmt)
		}
		vm.pushScalar(value.Num(float64(vm.fflush(target))))

	case bytecode.BFflushAll:
		// Never emitted by the compiler: fflush() with zero args compiles
		// to BFflush with numArgs==0, which flushes every stream itself.
		errors.Bug("BFflushAll reached at runtime")

	default:
		errors.Bug("unhandled builtin %v", op)
	}
	return nil
}

// popScalars pops n scalar-stack values and returns them in their
// original push (left-to-right argument) order.
func (vm *VM) popScalars(n int) []value.Scalar {
	args := make([]value.Scalar, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = vm.popScalar()
	}
	return args
}

// doSplit implements split(s, arr[, fs]): clears arr, splits s on fs
// using the same three-way dispatch as field splitting, and populates
// arr with 1-based numeric string keys.
func (vm *VM) doSplit(id int, s, fs string) int {
	vm.arrStore.Clear(id)
	parts := record.SplitFields(s, fs, vm.cache)
	for i, p := range parts {
		vm.arrStore.Assign(id, value.Num(float64(i+1)).ToStringInternal(), value.StrNumFromString(p))
	}
	return len(parts)
}

// substr implements the substr(s, m[, n]) builtin's POSIX clamping
// rules: a fractional or out-of-range m/n is rounded and clipped rather
// than rejected.
func substr(s string, start float64, hasLen bool, length float64) string {
	runes := []rune(s)
	n := len(runes)
	m := int(math.Round(start))
	var end int
	if hasLen {
		l := int(math.Round(length))
		if l < 0 {
			l = 0
		}
		end = m + l
	} else {
		end = n + 1
	}
	if m < 1 {
		m = 1
	}
	if end > n+1 {
		end = n + 1
	}
	if end <= m {
		return ""
	}
	return string(runes[m-1 : end-1])
}

// substitute implements sub()/gsub(): replaces the first (sub) or
// every non-overlapping (gsub) match of re in target with repl,
// honoring & (matched text) and \& (literal &) in repl, and returns
// the new string plus the number of replacements made.
func substitute(re *regexcache.Regex, repl, target string, global bool) (string, int) {
	var out strings.Builder
	rest := target
	count := 0
	for {
		start, length, ok := re.Find([]byte(rest))
		if !ok {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		out.WriteString(expandRepl(repl, rest[start:start+length]))
		count++
		if length == 0 {
			if start < len(rest) {
				out.WriteByte(rest[start])
				rest = rest[start+1:]
			} else {
				rest = ""
			}
		} else {
			rest = rest[start+length:]
		}
		if !global {
			out.WriteString(rest)
			break
		}
		if rest == "" {
			break
		}
	}
	return out.String(), count
}

// expandRepl substitutes & with matched, \& with a literal & and \\
// with a single backslash, leaving any other backslash sequence
// untouched (spec.md §8.4 scenario 6).
func expandRepl(repl, matched string) string {
	var out strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '\\' && i+1 < len(repl) && (repl[i+1] == '&' || repl[i+1] == '\\') {
			out.WriteByte(repl[i+1])
			i++
			continue
		}
		if c == '&' {
			out.WriteString(matched)
			continue
		}
		out.WriteByte(c)
	}
	return out.String()
}
