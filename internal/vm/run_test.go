package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"goawk-core/internal/compiler"
	"goawk-core/internal/inference"
	"goawk-core/internal/parser"
	"goawk-core/internal/regexcache"
	"goawk-core/internal/symbol"
)

// runProgram compiles src through the full Parse -> Infer -> Compile
// pipeline and runs it against stdinText, returning everything written
// to stdout.
func runProgram(t *testing.T, src, stdinText string, fileArgs []string) string {
	t.Helper()

	interner := symbol.New()
	prog, err := parser.Parse("test.awk", src, interner)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := inference.Infer(prog)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	compiled, err := compiler.Compile(prog, res)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cache, err := regexcache.New(64)
	if err != nil {
		t.Fatalf("regexcache: %v", err)
	}

	machine := New(compiled, cache)
	var out bytes.Buffer
	machine.SetOutput(&out)

	if stdinText != "" {
		dir := t.TempDir()
		path := filepath.Join(dir, "stdin.txt")
		if err := os.WriteFile(path, []byte(stdinText), 0644); err != nil {
			t.Fatalf("write stdin fixture: %v", err)
		}
		fileArgs = append([]string{path}, fileArgs...)
	}

	if _, err := machine.RunProgram(fileArgs); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String()
}

// TestFieldSplittingAndRebuild exercises spec.md §8.4 scenario 1: field
// access and $0 rebuild after an OFS change.
func TestFieldSplittingAndRebuild(t *testing.T) {
	got := runProgram(t, `{ OFS="-"; $1=$1; print }`, "a b c\n", nil)
	want := "a-b-c\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestBeginEnd exercises BEGIN/END running without any input rules.
func TestBeginEnd(t *testing.T) {
	got := runProgram(t, `BEGIN { print "start" } END { print "end" }`, "x\n", nil)
	want := "start\nend\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestNRAndNF checks the NR/NF special variables across records.
func TestNRAndNF(t *testing.T) {
	got := runProgram(t, `{ print NR, NF }`, "a b\nc d e\n", nil)
	want := "1 2\n2 3\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestRangePattern exercises a start/stop range pattern spanning
// several records, including the record where it deactivates still
// being printed.
func TestRangePattern(t *testing.T) {
	got := runProgram(t, `/start/,/stop/`, "before\nstart\nmiddle\nstop\nafter\n", nil)
	want := "start\nmiddle\nstop\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestSubGsubEscaping covers spec.md §8.4 scenario 6: & and \& in the
// replacement string.
func TestSubGsubEscaping(t *testing.T) {
	got := runProgram(t, `BEGIN {
		s = "cat"
		n = gsub(/a/, "[&]", s)
		print n, s
		t = "cat"
		gsub(/a/, "\\&", t)
		print t
	}`, "", nil)
	want := "1 c[a]t\nc&t\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestUserFunctionRecursion exercises user-defined functions with
// scalar params and recursion.
func TestUserFunctionRecursion(t *testing.T) {
	got := runProgram(t, `
		function fact(n) {
			if (n <= 1) return 1
			return n * fact(n - 1)
		}
		BEGIN { print fact(5) }
	`, "", nil)
	want := "120\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestArrayForIn exercises array assignment, membership, and for-in
// iteration snapshotting keys at loop entry (spec.md §8.1).
func TestArrayForIn(t *testing.T) {
	got := runProgram(t, `BEGIN {
		a["x"] = 1
		a["y"] = 2
		n = 0
		for (k in a) n++
		print n, ("x" in a), ("z" in a)
	}`, "", nil)
	want := "2 1 0\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestGetlineFromMain exercises plain getline advancing NR/NF/$0 on the
// main input stream.
func TestGetlineFromMain(t *testing.T) {
	got := runProgram(t, `NR==1 { getline; print }`, "one\ntwo\nthree\n", nil)
	want := "two\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestPrintfBuiltins exercises printf formatting together with a few
// string builtins in combination.
func TestPrintfBuiltins(t *testing.T) {
	got := runProgram(t, `BEGIN {
		printf "%d-%s-%5.2f\n", 3, "hi", 1.5
		print length("hello"), substr("hello", 2, 3), index("hello", "ll")
		print toupper("aB"), tolower("aB")
	}`, "", nil)
	want := "3-hi- 1.50\n5 ell 3\nAB ab\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestExitCode exercises exit's process exit code (spec.md §8.4).
func TestExitCode(t *testing.T) {
	interner := symbol.New()
	prog, err := parser.Parse("test.awk", `BEGIN { exit 3 }`, interner)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := inference.Infer(prog)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	compiled, err := compiler.Compile(prog, res)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cache, err := regexcache.New(8)
	if err != nil {
		t.Fatalf("regexcache: %v", err)
	}
	machine := New(compiled, cache)
	var out bytes.Buffer
	machine.SetOutput(&out)
	code, err := machine.RunProgram(nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}
