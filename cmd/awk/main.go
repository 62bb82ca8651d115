// cmd/awk/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"goawk-core/internal/compiler"
	"goawk-core/internal/errors"
	"goawk-core/internal/inference"
	"goawk-core/internal/parser"
	"goawk-core/internal/regexcache"
	"goawk-core/internal/symbol"
	"goawk-core/internal/value"
	"goawk-core/internal/vm"
)

const regexCacheSize = 256

type cliAssign struct {
	name, value string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		debug      bool
		savePath   string
		fs         string
		fsSet      bool
		assigns    []cliAssign
		progFile   string
		progText   string
		haveProg   bool
		fileArgs   []string
	)

	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--debug":
			debug = true
		case a == "--save":
			i++
			if i >= len(args) {
				return usageError("--save requires a path argument")
			}
			savePath = args[i]
		case a == "-F":
			i++
			if i >= len(args) {
				return usageError("-F requires a field separator argument")
			}
			fs, fsSet = args[i], true
		case a == "-v":
			i++
			if i >= len(args) {
				return usageError("-v requires a var=value argument")
			}
			name, val, ok := splitAssign(args[i])
			if !ok {
				return usageError("-v argument must be var=value")
			}
			assigns = append(assigns, cliAssign{name, val})
		case a == "-f":
			i++
			if i >= len(args) {
				return usageError("-f requires a program file argument")
			}
			progFile = args[i]
			haveProg = true
		case a == "--":
			i++
			goto operands
		case strings.HasPrefix(a, "-") && a != "-":
			return usageError("unrecognized option: " + a)
		default:
			if !haveProg {
				progText = a
				haveProg = true
				i++
			}
			goto operands
		}
	}

operands:
	fileArgs = append(fileArgs, args[i:]...)

	if !haveProg {
		return usageError("no program given")
	}

	var source string
	if progFile != "" {
		b, err := os.ReadFile(progFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "awk:", err)
			return 1
		}
		source = string(b)
	} else {
		source = progText
	}

	interner := symbol.New()
	prog, err := parser.Parse(progFile, source, interner)
	if err != nil {
		return reportErr(err)
	}

	res, err := inference.Infer(prog)
	if err != nil {
		return reportErr(err)
	}

	compiled, err := compiler.Compile(prog, res)
	if err != nil {
		return reportErr(err)
	}

	if debug {
		fmt.Fprintln(os.Stderr, compiled.Disassemble())
	}
	if savePath != "" {
		if err := os.WriteFile(savePath, []byte(compiled.Disassemble()), 0644); err != nil {
			fmt.Fprintln(os.Stderr, "awk:", err)
			return 1
		}
	}

	cache, err := regexcache.New(regexCacheSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, "awk:", err)
		return 1
	}

	machine := vm.New(compiled, cache)
	machine.DebugIO = debug
	if fsSet {
		machine.SetGlobalScalar("FS", value.StrFromString(fs))
	}
	for _, as := range assigns {
		machine.SetGlobalScalar(as.name, value.StrNumFromString(as.value))
	}

	setupEnviron(machine)
	setupArgs(machine, fileArgs)

	code, err := machine.RunProgram(fileArgs)
	if err != nil {
		return reportErr(err)
	}
	return code
}

// setupEnviron populates the ENVIRON array from the process
// environment (SPEC_FULL.md §2.3: a natural companion to ARGV/ARGC
// that the distillation dropped).
func setupEnviron(m *vm.VM) {
	id, ok := m.GlobalArrayID("ENVIRON")
	if !ok {
		return
	}
	for _, kv := range os.Environ() {
		if name, val, ok := splitAssign(kv); ok {
			m.Arrays().Assign(id, name, value.StrNumFromString(val))
		}
	}
}

// setupArgs populates ARGV[0]="awk", ARGV[1..]=file operands, and ARGC
// accordingly (spec.md's special-variable gateway; SPEC_FULL.md §2.3's
// multi-file ARGV/ARGC semantics).
func setupArgs(m *vm.VM, fileArgs []string) {
	argvID, ok := m.GlobalArrayID("ARGV")
	if ok {
		m.Arrays().Assign(argvID, "0", value.StrFromString("awk"))
		for i, a := range fileArgs {
			m.Arrays().Assign(argvID, value.Num(float64(i+1)).ToStringInternal(), value.StrNumFromString(a))
		}
	}
	m.SetARGC(len(fileArgs) + 1)
}

func splitAssign(s string) (name, val string, ok bool) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", false
	}
	return s[:eq], s[eq+1:], true
}

// exitCompilerBug is returned for a CompilerBug diagnostic (sysexits.h
// EX_SOFTWARE), distinct from the exit 1 a user program error or
// runtime fault gets: a compiler bug is never the user's mistake, so
// it gets reported and exits differently rather than funneling through
// the normal "awk: <message>" error path.
const exitCompilerBug = 70

// reportErr prints err to stderr and returns the process exit code.
// A *errors.AWKError with Type CompilerBug is a spec.md §7.3 internal
// assertion failure, not a user-facing diagnostic: report it as an
// internal error with exit code exitCompilerBug rather than the
// ordinary formatted message.
func reportErr(err error) int {
	if ae, ok := err.(*errors.AWKError); ok && ae.Type == errors.CompilerBug {
		fmt.Fprintln(os.Stderr, "awk: internal error:", ae.Message)
		fmt.Fprintln(os.Stderr, "this is a bug in the awk implementation, not in your program")
		return exitCompilerBug
	}
	fmt.Fprintln(os.Stderr, "awk: "+formatErr(err))
	return 1
}

func formatErr(err error) string {
	if ae, ok := err.(*errors.AWKError); ok {
		return ae.Error()
	}
	return err.Error()
}

func usageError(msg string) int {
	fmt.Fprintln(os.Stderr, "awk:", msg)
	fmt.Fprintln(os.Stderr, "usage: awk [--debug] [--save PATH] [-F fs] [-v var=value]... ( -f PROGFILE | PROGRAM ) FILE ...")
	return 2
}
