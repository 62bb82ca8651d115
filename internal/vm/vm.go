// Package vm implements the stack-based bytecode interpreter of
// spec.md §4.4: a dispatch loop over internal/bytecode.Program with two
// independent value stacks (scalars, array ids) plus a call-frame
// stack for user functions, mirroring the teacher's EnhancedVM "fetch,
// switch, dispatch" loop (internal/vm/vm.go's Run method) adapted to
// AWK's two-stack design instead of one untyped Value stack.
package vm

import (
	"math"
	"math/rand"

	"goawk-core/internal/array"
	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
	"goawk-core/internal/record"
	"goawk-core/internal/regexcache"
	"goawk-core/internal/value"
)

// result is what run reports back to the rule-loop driver: either
// the chunk ran to completion (resHalt) or a control statement
// unwound every active call frame (resNext/resNextFile/resExit).
type result int

const (
	resHalt result = iota
	resNext
	resNextFile
	resExit
)

// callFrame is one activation of a chunk: a top-level rule/BEGIN/END
// body (scalars/arrays nil, since top-level code only ever addresses
// globals) or a user function invocation (scalars/arrays sized to the
// callee's parameter counts, per internal/bytecode.Function).
type callFrame struct {
	chunk   *bytecode.Chunk
	ip      int
	scalars []value.Scalar
	arrays  []int
}

// forInIter is a snapshot of an array's keys at loop entry (spec.md
// §8.1: mutating the array mid-loop never changes which keys are
// visited).
type forInIter struct {
	keys []string
	pos  int
}

// VM holds all mutable interpreter state for one program run: the
// global scalar/array stores, the special-variable gateway, and the
// I/O and regex collaborators. One VM executes exactly one
// internal/bytecode.Program from BEGIN through END.
type VM struct {
	prog *bytecode.Program

	globals  []value.Scalar
	arrStore *array.Store

	scalarStack []value.Scalar
	arrayStack  []int
	barrierTop  []int
	iterStack   []*forInIter

	frames []callFrame

	cache *regexcache.Cache
	arena *value.Arena

	reader *record.Reader

	fs, rs, ofs, ors, subsep, convfmt, ofmt, filename string
	nr, fnr                                           int
	rstart, rlength                                   int
	argc                                              int

	rnd      *rand.Rand
	lastSeed float64

	io *ioState

	exitCode int

	// rangeActive tracks each rule's range-pattern ("active") state
	// across the whole run, indexed by rule position; nil until the
	// first input file starts.
	rangeActive []bool

	// DebugIO, set by the CLI's --debug flag, traces each redirection
	// target's open/close to stderr tagged with its generation id
	// (spec.md's I/O redirection table is otherwise silent about which
	// physical handle a repeated target string landed on across a
	// close()+reopen cycle).
	DebugIO bool
}

// New builds a VM ready to run prog, with every global scalar
// initialized to the uninitialized empty StrNum and every global array
// pre-allocated, per spec.md §3.6.
func New(prog *bytecode.Program, cache *regexcache.Cache) *VM {
	vm := &VM{
		prog:     prog,
		globals:  make([]value.Scalar, prog.NumScalars),
		arrStore: array.Alloc(prog.NumArrays),
		cache:    cache,
		arena:    value.NewArena(),
		fs:       " ",
		rs:       "\n",
		ofs:      " ",
		ors:      "\n",
		subsep:   "\x1c",
		convfmt:  "%.6g",
		ofmt:     "%.6g",
		rnd:      rand.New(rand.NewSource(0)),
	}
	for i := range vm.globals {
		vm.globals[i] = value.Uninitialized()
	}
	vm.io = newIOState()
	return vm
}

// globalScalarID resolves a global scalar name to its dense id, used
// by SetGlobalScalar for -v and command-line operand assignments.
func (vm *VM) globalScalarID(name string) (int, bool) {
	for i, n := range vm.prog.ScalarNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (vm *VM) globalArrayID(name string) (int, bool) {
	for i, n := range vm.prog.ArrayNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// SetGlobalScalar assigns name := v. A special variable (FS, OFS, NR,
// ...) is always assigned, through the special-variable gateway; any
// other name is assigned only if the program references it as a global
// scalar, and is a no-op otherwise.
func (vm *VM) SetGlobalScalar(name string, v value.Scalar) {
	if sp, ok := bytecode.LookupSpecial(name); ok {
		vm.setSpecial(sp, v)
		return
	}
	if id, ok := vm.globalScalarID(name); ok {
		vm.globals[id] = v
	}
}

// GlobalArrayID exposes a global array's id for the driver to populate
// ENVIRON/ARGV directly through the array store, and false if the
// program never references that array.
func (vm *VM) GlobalArrayID(name string) (int, bool) { return vm.globalArrayID(name) }

// Arrays exposes the array store for the driver's ARGV/ENVIRON setup.
func (vm *VM) Arrays() *array.Store { return vm.arrStore }

// ARGC and SetARGC expose the ARGC special (spec.md's special-variable
// gateway keeps it as a VM field rather than a plain global scalar, so
// the driver needs direct access rather than going through
// SetGlobalScalar/globalScalarID).
func (vm *VM) ARGC() int     { return vm.argc }
func (vm *VM) SetARGC(n int) { vm.argc = n }

func (vm *VM) pushScalar(v value.Scalar) { vm.scalarStack = append(vm.scalarStack, v) }

func (vm *VM) popScalar() value.Scalar {
	n := len(vm.scalarStack) - 1
	v := vm.scalarStack[n]
	vm.scalarStack = vm.scalarStack[:n]
	return v
}

func (vm *VM) pushArray(id int) { vm.arrayStack = append(vm.arrayStack, id) }

func (vm *VM) popArray() int {
	n := len(vm.arrayStack) - 1
	id := vm.arrayStack[n]
	vm.arrayStack = vm.arrayStack[:n]
	return id
}

// popSubscript pops k scalars (pushed left-to-right, so popped
// right-to-left) and joins them with SUBSEP into one array key.
func (vm *VM) popSubscript(k int) string {
	if k == 1 {
		return vm.popScalar().ToStringInternal()
	}
	parts := make([]string, k)
	for i := k - 1; i >= 0; i-- {
		parts[i] = vm.popScalar().ToStringInternal()
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += vm.subsep + p
	}
	return out
}

func (f *callFrame) fetch(code []int32) int32 {
	v := code[f.ip]
	f.ip++
	return v
}

// run executes entry (a BEGIN/END/rule chunk) to completion or until a
// next/nextfile/exit statement unwinds the call stack.
func (vm *VM) run(entry *bytecode.Chunk) (result, error) {
	vm.frames = append(vm.frames, callFrame{chunk: entry})

	for len(vm.frames) > 0 {
		fr := &vm.frames[len(vm.frames)-1]
		code := fr.chunk.Code
		op := bytecode.Op(code[fr.ip])
		fr.ip++

		switch op {
		case bytecode.Nop:

		case bytecode.NumConst:
			idx := fr.fetch(code)
			vm.pushScalar(value.Num(fr.chunk.Nums[idx]))
		case bytecode.StrConst:
			idx := fr.fetch(code)
			vm.pushScalar(value.StrFromString(fr.chunk.Strs[idx]))
		case bytecode.FloatZero:
			vm.pushScalar(value.Num(0))
		case bytecode.FloatOne:
			vm.pushScalar(value.Num(1))
		case bytecode.EmptyStr:
			vm.pushScalar(value.StrFromString(""))
		case bytecode.RegexConst:
			idx := fr.fetch(code)
			rec, _ := vm.currentRecordText()
			matched, err := vm.regexMatches(fr.chunk.Regexes[idx], rec)
			if err != nil {
				return 0, err
			}
			vm.pushScalar(boolScalar(matched))

		case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod, bytecode.Pow:
			b := vm.popScalar().ToNumber()
			a := vm.popScalar().ToNumber()
			v, err := arith(op, a, b)
			if err != nil {
				return 0, err
			}
			vm.pushScalar(value.Num(v))
		case bytecode.Neg:
			vm.pushScalar(value.Num(-vm.popScalar().ToNumber()))
		case bytecode.Pos:
			vm.pushScalar(value.Num(vm.popScalar().ToNumber()))

		case bytecode.Lt, bytecode.Le, bytecode.Gt, bytecode.Ge, bytecode.Eq, bytecode.Ne:
			b := vm.popScalar()
			a := vm.popScalar()
			c := value.Compare(a, b)
			vm.pushScalar(boolScalar(compareHolds(op, c)))

		case bytecode.Matches, bytecode.NotMatches:
			reSrc := vm.popScalar().ToStringInternal()
			subject := vm.popScalar().ToStringUser(vm.convfmt)
			matched, err := vm.regexMatches(reSrc, subject)
			if err != nil {
				return 0, err
			}
			if op == bytecode.NotMatches {
				matched = !matched
			}
			vm.pushScalar(boolScalar(matched))

		case bytecode.Concat:
			n := int(fr.fetch(code))
			parts := make([]string, n)
			for i := n - 1; i >= 0; i-- {
				parts[i] = vm.popScalar().ToStringUser(vm.convfmt)
			}
			out := ""
			for _, p := range parts {
				out += p
			}
			vm.pushScalar(value.StrFromString(out))

		case bytecode.Not:
			vm.pushScalar(boolScalar(!vm.popScalar().Truthy()))
		case bytecode.Bool:
			vm.pushScalar(boolScalar(vm.popScalar().Truthy()))

		case bytecode.GSclGet:
			id := fr.fetch(code)
			vm.pushScalar(vm.globals[id])
		case bytecode.GSclSet:
			id := fr.fetch(code)
			vm.globals[id] = vm.scalarStack[len(vm.scalarStack)-1]
		case bytecode.ArgSclGet:
			id := fr.fetch(code)
			vm.pushScalar(fr.scalars[id])
		case bytecode.ArgSclSet:
			id := fr.fetch(code)
			fr.scalars[id] = vm.scalarStack[len(vm.scalarStack)-1]

		case bytecode.GArrGet:
			id := fr.fetch(code)
			vm.pushArray(int(id))
		case bytecode.ArgArrGet:
			id := fr.fetch(code)
			vm.pushArray(fr.arrays[id])

		case bytecode.ArrIndex:
			k := int(fr.fetch(code))
			id := vm.popArray()
			key := vm.popSubscript(k)
			vm.pushScalar(vm.arrStore.Get(id, key))
		case bytecode.ArrAssign:
			k := int(fr.fetch(code))
			id := vm.popArray()
			key := vm.popSubscript(k)
			val := vm.popScalar()
			vm.arrStore.Assign(id, key, val)
			vm.pushScalar(val)
		case bytecode.ArrIn:
			k := int(fr.fetch(code))
			id := vm.popArray()
			key := vm.popSubscript(k)
			vm.pushScalar(boolScalar(vm.arrStore.InArray(id, key)))
		case bytecode.ArrDelete:
			k := int(fr.fetch(code))
			id := vm.popArray()
			if k == 0 {
				vm.arrStore.Clear(id)
			} else {
				key := vm.popSubscript(k)
				vm.arrStore.Delete(id, key)
			}

		case bytecode.Column:
			idx := int(vm.popScalar().ToNumber())
			vm.pushScalar(vm.getField(idx))
		case bytecode.ColumnAssign:
			idx := int(vm.popScalar().ToNumber())
			val := vm.popScalar()
			vm.setField(idx, val)
			vm.pushScalar(val)

		case bytecode.Jump:
			delta := fr.fetch(code)
			fr.ip += int(delta)
		case bytecode.JumpIfFalse:
			delta := fr.fetch(code)
			if !vm.popScalar().Truthy() {
				fr.ip += int(delta)
			}
		case bytecode.JumpIfTrue:
			delta := fr.fetch(code)
			if vm.popScalar().Truthy() {
				fr.ip += int(delta)
			}

		case bytecode.Pop:
			vm.popScalar()
		case bytecode.Dup:
			vm.pushScalar(vm.scalarStack[len(vm.scalarStack)-1])
		case bytecode.Barrier:
			vm.barrierTop = append(vm.barrierTop, len(vm.scalarStack))
		case bytecode.PopBarrier:
			n := len(vm.barrierTop) - 1
			mark := vm.barrierTop[n]
			vm.barrierTop = vm.barrierTop[:n]
			if mark != len(vm.scalarStack) {
				errors.Bug("vm: barrier stack-height mismatch")
			}

		case bytecode.Call:
			funcIdx := fr.fetch(code)
			numScalar := int(fr.fetch(code))
			numArray := int(fr.fetch(code))
			vm.doCall(int(funcIdx), numScalar, numArray)
			continue

		case bytecode.Ret:
			retval := vm.popScalar()
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.pushScalar(retval)
			continue

		case bytecode.NextLine:
			vm.frames = vm.frames[:0]
			return resNext, nil
		case bytecode.NextFile:
			vm.frames = vm.frames[:0]
			return resNextFile, nil
		case bytecode.Exit:
			hasCode := fr.fetch(code)
			if hasCode != 0 {
				vm.exitCode = int(vm.popScalar().ToNumber())
			}
			vm.frames = vm.frames[:0]
			return resExit, nil

		case bytecode.ForInInit:
			id := vm.popArray()
			vm.iterStack = append(vm.iterStack, &forInIter{keys: vm.arrStore.Keys(id)})
		case bytecode.ForInNext:
			exitDelta := fr.fetch(code)
			top := vm.iterStack[len(vm.iterStack)-1]
			if top.pos < len(top.keys) {
				k := top.keys[top.pos]
				top.pos++
				vm.pushScalar(value.StrNumFromString(k))
			} else {
				vm.iterStack = vm.iterStack[:len(vm.iterStack)-1]
				fr.ip += int(exitDelta)
			}

		case bytecode.Print:
			n := int(fr.fetch(code))
			mode := int(fr.fetch(code))
			if err := vm.execPrint(n, mode); err != nil {
				return 0, err
			}
		case bytecode.Printf:
			n := int(fr.fetch(code))
			mode := int(fr.fetch(code))
			if err := vm.execPrintf(n, mode); err != nil {
				return 0, err
			}
		case bytecode.GetLine:
			mode := int(fr.fetch(code))
			hasVar := fr.fetch(code) != 0
			if err := vm.execGetLine(mode, hasVar); err != nil {
				return 0, err
			}

		case bytecode.SclSpecialGet:
			id := fr.fetch(code)
			vm.pushScalar(vm.getSpecial(bytecode.Special(id)))
		case bytecode.SclSpecialSet:
			id := fr.fetch(code)
			vm.setSpecial(bytecode.Special(id), vm.scalarStack[len(vm.scalarStack)-1])

		case bytecode.CallBuiltin:
			builtinOp := fr.fetch(code)
			numArgs := int(fr.fetch(code))
			if err := vm.callBuiltin(bytecode.BuiltinOp(builtinOp), numArgs); err != nil {
				return 0, err
			}

		case bytecode.Halt:
			vm.frames = vm.frames[:0]
			return resHalt, nil

		default:
			errors.Bug("vm: unimplemented opcode %v", op)
		}
	}
	return resHalt, nil
}

// doCall pushes a new frame for prog.Functions[funcIdx], binding
// numScalar scalar args (popped off the shared scalar stack) and
// numArray array ids (popped off the shared array stack) to the
// callee's parameter slots; parameters beyond what was passed default
// to the uninitialized scalar or a fresh per-call array.
func (vm *VM) doCall(funcIdx, numScalar, numArray int) {
	fn := vm.prog.Functions[funcIdx]

	scalarArgs := make([]value.Scalar, numScalar)
	for i := numScalar - 1; i >= 0; i-- {
		scalarArgs[i] = vm.popScalar()
	}
	arrayArgs := make([]int, numArray)
	for i := numArray - 1; i >= 0; i-- {
		arrayArgs[i] = vm.popArray()
	}

	scalars := make([]value.Scalar, fn.NumScalars)
	for i := range scalars {
		if i < len(scalarArgs) {
			scalars[i] = scalarArgs[i]
		} else {
			scalars[i] = value.Uninitialized()
		}
	}
	arrays := make([]int, fn.NumArrays)
	for i := range arrays {
		if i < len(arrayArgs) {
			arrays[i] = arrayArgs[i]
		} else {
			id := vm.arrStore.Len()
			vm.arrStore.Grow(id + 1)
			arrays[i] = id
		}
	}

	vm.frames = append(vm.frames, callFrame{chunk: fn.Chunk, scalars: scalars, arrays: arrays})
}

func boolScalar(b bool) value.Scalar {
	if b {
		return value.Num(1)
	}
	return value.Num(0)
}

func compareHolds(op bytecode.Op, c int) bool {
	switch op {
	case bytecode.Lt:
		return c < 0
	case bytecode.Le:
		return c <= 0
	case bytecode.Gt:
		return c > 0
	case bytecode.Ge:
		return c >= 0
	case bytecode.Eq:
		return c == 0
	case bytecode.Ne:
		return c != 0
	}
	return false
}

func arith(op bytecode.Op, a, b float64) (float64, error) {
	switch op {
	case bytecode.Add:
		return a + b, nil
	case bytecode.Sub:
		return a - b, nil
	case bytecode.Mul:
		return a * b, nil
	case bytecode.Div:
		if b == 0 {
			return 0, errors.NewRuntimeError("division by zero")
		}
		return a / b, nil
	case bytecode.Mod:
		if b == 0 {
			return 0, errors.NewRuntimeError("division by zero in %")
		}
		return math.Mod(a, b), nil
	case bytecode.Pow:
		return math.Pow(a, b), nil
	}
	return 0, nil
}

// regexMatches compiles pattern through the shared cache and tests hay
// against it.
func (vm *VM) regexMatches(pattern, hay string) (bool, error) {
	re, err := vm.cache.Get(pattern)
	if err != nil {
		return false, errors.NewRuntimeError("invalid regular expression: " + err.Error())
	}
	return re.Matches([]byte(hay)), nil
}
