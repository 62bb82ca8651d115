package vm

import (
	"io"
	"os"
	"strings"

	"goawk-core/internal/bytecode"
	"goawk-core/internal/record"
	"goawk-core/internal/value"
)

// ExitCode reports the value set by exit (or 0 if the program never
// called exit).
func (vm *VM) ExitCode() int { return vm.exitCode }

// RunProgram drives the full BEGIN -> per-file record/rule loop -> END
// sequence (spec.md §6.1). fileArgs are the CLI's file operands
// (ARGV[1:], already split from -v/-F/--debug/--save); when the
// program references ARGV, its mutations (including live ARGC edits)
// are honored during the main loop per POSIX, since that array was
// seeded from fileArgs before RunProgram was called.
func (vm *VM) RunProgram(fileArgs []string) (int, error) {
	defer vm.closeAll()

	if vm.prog.Begin != nil && vm.prog.Begin.Len() > 0 {
		res, err := vm.run(vm.prog.Begin)
		if err != nil {
			return 1, err
		}
		if res == resExit {
			return vm.runEnd()
		}
	}

	if len(vm.prog.Rules) > 0 || (vm.prog.End != nil && vm.prog.End.Len() > 0) {
		exited, code, err := vm.mainLoop(fileArgs)
		if err != nil {
			return 1, err
		}
		if exited {
			vm.exitCode = code
			return vm.runEnd()
		}
	}

	return vm.runEnd()
}

// runEnd runs the END action (if any exit inside END re-sets the exit
// code, per POSIX) and reports the final exit status.
func (vm *VM) runEnd() (int, error) {
	if vm.prog.End != nil && vm.prog.End.Len() > 0 {
		if _, err := vm.run(vm.prog.End); err != nil {
			return 1, err
		}
	}
	return vm.exitCode, nil
}

// mainLoop processes file operands (var=value assignment operands are
// applied in order; everything else is opened as a file, "-" meaning
// stdin), falling back to stdin alone if no file operand appears.
// Returns (true, code) if exit ran during the main loop. When the
// program references ARGV, operands are read live from the array
// store (honoring BEGIN-time edits and ARGC truncation); otherwise the
// static fileArgs list from the command line is used directly, since
// there is no array storage to read mutations from.
func (vm *VM) mainLoop(fileArgs []string) (bool, int, error) {
	argvID, haveArgv := vm.globalArrayID("ARGV")
	sawFile := false

	operandAt := func(i int) string {
		if haveArgv {
			arg, _ := vm.arrStore.Access(argvID, value.Num(float64(i)).ToStringInternal())
			return arg.ToStringUser(vm.convfmt)
		}
		return fileArgs[i-1]
	}
	count := len(fileArgs) + 1
	if haveArgv {
		count = vm.ARGC()
	}

	for i := 1; i < count; i++ {
		s := operandAt(i)
		if s == "" {
			continue
		}
		if name, val, ok := parseAssignment(s); ok {
			vm.SetGlobalScalar(name, wrapArgValue(val))
			continue
		}
		sawFile = true
		exited, code, err := vm.runFileOperand(s)
		if err != nil {
			return false, 0, err
		}
		if exited {
			return true, code, nil
		}
		if haveArgv {
			count = vm.ARGC() // honor a rule's mid-run ARGC edit
		}
	}
	if !sawFile {
		return vm.runOneInput(os.Stdin, "")
	}
	return false, 0, nil
}

// runFileOperand opens one ARGV-style operand ("-" meaning stdin) and
// streams it through runOneInput.
func (vm *VM) runFileOperand(s string) (bool, int, error) {
	f := os.Stdin
	if s != "-" {
		opened, err := os.Open(s)
		if err != nil {
			return false, 0, err
		}
		f = opened
	}
	exited, code, err := vm.runOneInput(f, s)
	if f != os.Stdin {
		f.Close()
	}
	return exited, code, err
}

// parseAssignment recognizes a POSIX `var=value` file operand: an
// identifier-shaped prefix up to the first '='.
func parseAssignment(s string) (name, val string, ok bool) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = s[:eq]
	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return "", "", false
		}
		if i > 0 && !isLetter && !isDigit {
			return "", "", false
		}
	}
	return name, s[eq+1:], true
}

// wrapArgValue gives a command-line assignment's value StrNum
// semantics, same as an input field (POSIX: "-v" and operand
// assignments behave like assigned input text).
func wrapArgValue(s string) value.Scalar {
	return value.StrNumFromString(unescapeArg(s))
}

// unescapeArg processes the same backslash escapes POSIX requires for
// -v/operand assignment values (\\, \n, \t, etc.), distinct from the
// program text's own escaping (already handled by the lexer).
func unescapeArg(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case '\\':
			out.WriteByte('\\')
		case '"':
			out.WriteByte('"')
		case '/':
			out.WriteByte('/')
		default:
			out.WriteByte('\\')
			out.WriteByte(s[i])
		}
	}
	return out.String()
}

// runOneInput streams every record of one input file through every
// rule, maintaining range-pattern active state across the whole
// program run (vm.rangeActive), and returns (true, code) if an exit
// statement fired.
func (vm *VM) runOneInput(f *os.File, filename string) (bool, int, error) {
	if vm.rangeActive == nil {
		vm.rangeActive = make([]bool, len(vm.prog.Rules))
	}
	vm.reader = record.New(f, filename, vm.rs, vm.fs, vm.cache)
	vm.filename = filename
	vm.fnr = 0

recordLoop:
	for {
		ok, err := vm.reader.NextRecord()
		if err != nil {
			return false, 0, err
		}
		if !ok {
			return false, 0, nil
		}
		vm.nr++
		vm.fnr++

		for i := range vm.prog.Rules {
			rule := &vm.prog.Rules[i]
			matched, err := vm.ruleMatches(rule, i)
			if err != nil {
				return false, 0, err
			}
			if !matched {
				continue
			}
			res, err := vm.runRuleBody(rule)
			if err != nil {
				return false, 0, err
			}
			switch res {
			case resNext:
				continue recordLoop
			case resNextFile:
				return false, 0, nil
			case resExit:
				return true, vm.exitCode, nil
			}
		}
	}
}

// ruleMatches evaluates a rule's pattern against the current record:
// unconditional (nil pattern), a single boolean expression, or a range
// pattern whose active state persists across records per spec.md's
// range-pattern description.
func (vm *VM) ruleMatches(rule *bytecode.Rule, idx int) (bool, error) {
	if rule.Pattern == nil {
		return true, nil
	}
	if rule.RangeEnd == nil {
		return vm.evalBoolChunk(rule.Pattern)
	}
	if !vm.rangeActive[idx] {
		start, err := vm.evalBoolChunk(rule.Pattern)
		if err != nil || !start {
			return false, err
		}
		vm.rangeActive[idx] = true
	}
	stop, err := vm.evalBoolChunk(rule.RangeEnd)
	if err != nil {
		return false, err
	}
	if stop {
		vm.rangeActive[idx] = false
	}
	return true, nil
}

func (vm *VM) evalBoolChunk(chunk *bytecode.Chunk) (bool, error) {
	if _, err := vm.run(chunk); err != nil {
		return false, err
	}
	return vm.popScalar().Truthy(), nil
}

// runRuleBody runs a rule's action, or the default action (print $0)
// when the rule names a pattern with no body.
func (vm *VM) runRuleBody(rule *bytecode.Rule) (result, error) {
	if rule.Body == nil {
		s, _ := vm.reader.Record()
		io.WriteString(vm.io.stdout, s+vm.ors)
		return resHalt, nil
	}
	return vm.run(rule.Body)
}
