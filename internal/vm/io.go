package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"goawk-core/internal/ast"
	"goawk-core/internal/errors"
	"goawk-core/internal/format"
	"goawk-core/internal/record"
	"goawk-core/internal/value"
)

// outStream is one open output redirection target: a plain file (">"
// or ">>") or the stdin side of a piped command ("|"). gen tags the
// handle with a fresh id each time a target is (re)opened, so --debug
// tracing can tell a close()+reopen of the same target string apart
// from the handle that preceded it.
type outStream struct {
	w   *bufio.Writer
	f   *os.File
	cmd *exec.Cmd
	gen uuid.UUID
}

func (o *outStream) close() error {
	err := o.w.Flush()
	if o.f != nil {
		if cerr := o.f.Close(); err == nil {
			err = cerr
		}
	}
	if o.cmd != nil {
		if cerr := o.cmd.Wait(); err == nil {
			err = cerr
		}
	}
	return err
}

// inStream is one open getline source: a plain file ("< file") or the
// stdout side of a piped command ("cmd |").
type inStream struct {
	reader *record.Reader
	cmd    *exec.Cmd
	gen    uuid.UUID
}

// ioState owns every redirection target opened by the running program,
// keyed by its target string so repeated redirection to the same
// target reuses the handle until close() (spec.md §6.2's I/O
// redirection table), and the main stdout/stderr writers.
type ioState struct {
	stdout io.Writer
	stderr io.Writer

	outs map[string]*outStream
	ins  map[string]*inStream
}

func newIOState() *ioState {
	return &ioState{
		stdout: os.Stdout,
		stderr: os.Stderr,
		outs:   make(map[string]*outStream),
		ins:    make(map[string]*inStream),
	}
}

// SetOutput redirects print/printf's default destination (tests and
// embedders that don't want output on the process's real stdout).
func (vm *VM) SetOutput(w io.Writer) { vm.io.stdout = w }

func (vm *VM) outputWriter(mode int, target string) (io.Writer, error) {
	if mode == int(ast.RedirectNone) {
		return vm.io.stdout, nil
	}
	if existing, ok := vm.io.outs[target]; ok {
		return existing.w, nil
	}
	var os_ *outStream
	switch ast.RedirectMode(mode) {
	case ast.RedirectTruncate, ast.RedirectAppend:
		flags := os.O_WRONLY | os.O_CREATE
		if ast.RedirectMode(mode) == ast.RedirectAppend {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(target, flags, 0644)
		if err != nil {
			return nil, errors.NewIOError("cannot open output file: "+err.Error(), target)
		}
		os_ = &outStream{w: bufio.NewWriter(f), f: f, gen: uuid.New()}
	case ast.RedirectPipe:
		cmd := exec.Command("sh", "-c", target)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		pipeIn, err := cmd.StdinPipe()
		if err != nil {
			return nil, errors.NewIOError("cannot start pipe command: "+err.Error(), target)
		}
		if err := cmd.Start(); err != nil {
			return nil, errors.NewIOError("cannot start pipe command: "+err.Error(), target)
		}
		os_ = &outStream{w: bufio.NewWriter(pipeIn), cmd: cmd, gen: uuid.New()}
	}
	vm.io.outs[target] = os_
	if vm.DebugIO {
		fmt.Fprintf(os.Stderr, "io: opened output %q [%s]\n", target, os_.gen)
	}
	return os_.w, nil
}

func (vm *VM) execPrint(n, mode int) error {
	args := make([]value.Scalar, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = vm.popScalar()
	}
	var target string
	if mode != int(ast.RedirectNone) {
		target = vm.popScalar().ToStringUser(vm.convfmt)
	}
	w, err := vm.outputWriter(mode, target)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		s, _ := vm.currentRecordText()
		_, err = io.WriteString(w, s+vm.ors)
		return err
	}
	for i, a := range args {
		if i > 0 {
			if _, err := io.WriteString(w, vm.ofs); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, a.ToStringUser(vm.ofmt)); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, vm.ors)
	return err
}

func (vm *VM) execPrintf(n, mode int) error {
	args := make([]value.Scalar, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = vm.popScalar()
	}
	var target string
	if mode != int(ast.RedirectNone) {
		target = vm.popScalar().ToStringUser(vm.convfmt)
	}
	w, err := vm.outputWriter(mode, target)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.NewRuntimeError("printf: missing format string")
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
	_, err = io.WriteString(w, out)
	return err
}

// execGetLine implements every getline form (spec.md §6.2): reads one
// record from the chosen source and pushes the result code (1 success,
// 0 EOF, -1 error), then, when hasVar is set, pushes the record text on
// top of it so the compiler's emitted store can consume it.
func (vm *VM) execGetLine(mode int, hasVar bool) error {
	// pushStatus keeps GetLine's net scalar-stack effect fixed by
	// hasVar alone, regardless of which runtime path is taken: the
	// compiler always emits a store+Pop pair after GetLine when hasVar
	// is set, so every path here must push exactly 2 scalars (status,
	// then a value for that store to consume) or 1 otherwise.
	pushStatus := func(status float64) {
		vm.pushScalar(value.Num(status))
		if hasVar {
			vm.pushScalar(value.Uninitialized())
		}
	}

	var sourceExpr string
	if mode != int(ast.SourceMain) {
		sourceExpr = vm.popScalar().ToStringUser(vm.convfmt)
	}

	var reader *record.Reader
	switch ast.GetlineSource(mode) {
	case ast.SourceMain:
		reader = vm.reader
	case ast.SourceFile:
		in, ok := vm.io.ins[sourceExpr]
		if !ok {
			f, err := os.Open(sourceExpr)
			if err != nil {
				pushStatus(-1)
				return nil
			}
			in = &inStream{reader: record.New(f, sourceExpr, vm.rs, vm.fs, vm.cache), gen: uuid.New()}
			vm.io.ins[sourceExpr] = in
			if vm.DebugIO {
				fmt.Fprintf(os.Stderr, "io: opened input %q [%s]\n", sourceExpr, in.gen)
			}
		}
		reader = in.reader
	case ast.SourcePipe:
		in, ok := vm.io.ins[sourceExpr]
		if !ok {
			cmd := exec.Command("sh", "-c", sourceExpr)
			cmd.Stderr = os.Stderr
			out, err := cmd.StdoutPipe()
			if err != nil {
				pushStatus(-1)
				return nil
			}
			if err := cmd.Start(); err != nil {
				pushStatus(-1)
				return nil
			}
			in = &inStream{reader: record.New(out, sourceExpr, vm.rs, vm.fs, vm.cache), cmd: cmd, gen: uuid.New()}
			vm.io.ins[sourceExpr] = in
			if vm.DebugIO {
				fmt.Fprintf(os.Stderr, "io: opened input pipe %q [%s]\n", sourceExpr, in.gen)
			}
		}
		reader = in.reader
	}

	if reader == nil {
		pushStatus(-1)
		return nil
	}

	ok, err := reader.NextRecord()
	if err != nil {
		pushStatus(-1)
		return nil
	}
	if !ok {
		pushStatus(0)
		return nil
	}

	text, isNum := reader.Record()
	switch ast.GetlineSource(mode) {
	case ast.SourceMain:
		vm.nr++
		vm.fnr++
		if !hasVar {
			vm.reader.SetRecord(text)
		}
	case ast.SourcePipe:
		vm.nr++
		if !hasVar {
			vm.reader.SetRecord(text)
		}
	case ast.SourceFile:
		if !hasVar {
			vm.reader.SetRecord(text)
		}
	}
	if hasVar {
		vm.pushScalar(value.Num(1)) // status, left in place below the stored text
		vm.pushScalar(vm.wrapField(text, isNum))
	} else {
		vm.pushScalar(value.Num(1))
	}
	return nil
}

// closeStream implements the close() builtin: flush/close an output target
// or an input getline source, returning 0 on success, -1 if target was
// never opened.
func (vm *VM) closeStream(target string) int {
	found := -1
	if o, ok := vm.io.outs[target]; ok {
		o.close()
		delete(vm.io.outs, target)
		found = 0
		if vm.DebugIO {
			fmt.Fprintf(os.Stderr, "io: closed output %q [%s]\n", target, o.gen)
		}
	}
	if in, ok := vm.io.ins[target]; ok {
		in.reader.Close()
		if in.cmd != nil {
			in.cmd.Wait()
		}
		delete(vm.io.ins, target)
		found = 0
		if vm.DebugIO {
			fmt.Fprintf(os.Stderr, "io: closed input %q [%s]\n", target, in.gen)
		}
	}
	return found
}

func (vm *VM) fflush(target string) int {
	if target == "" {
		for _, o := range vm.io.outs {
			o.w.Flush()
		}
		return 0
	}
	if o, ok := vm.io.outs[target]; ok {
		o.w.Flush()
		return 0
	}
	return -1
}

// closeAll flushes and closes every redirection target still open when
// the program exits.
func (vm *VM) closeAll() {
	for _, o := range vm.io.outs {
		o.close()
	}
	for _, in := range vm.io.ins {
		in.reader.Close()
		if in.cmd != nil {
			in.cmd.Wait()
		}
	}
}
