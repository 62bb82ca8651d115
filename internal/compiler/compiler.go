// Package compiler lowers an internal/ast.Program, already resolved by
// internal/inference, into an internal/bytecode.Program (spec.md §4.3):
// a flat instruction stream per function/rule/BEGIN/END block, with
// deduplicated constant pools and backpatched jump targets. Like the
// teacher's stmt_compiler.go, one Compiler value walks the whole tree
// and owns the chunk currently being emitted into; unlike it, there is
// no visitor interface — the AST is a closed set of node shapes, so a
// type switch is simpler.
package compiler

import (
	"sort"

	"goawk-core/internal/ast"
	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
	"goawk-core/internal/inference"
	"goawk-core/internal/symbol"
)

// builtinByName maps a builtin's source name to its opcode (variadic
// forms such as substr/split are distinguished by arg count at the
// call site).
var builtinByName = map[string]bytecode.BuiltinOp{
	"sin": bytecode.BSin, "cos": bytecode.BCos, "atan2": bytecode.BAtan2,
	"exp": bytecode.BExp, "log": bytecode.BLog, "sqrt": bytecode.BSqrt,
	"int": bytecode.BInt, "rand": bytecode.BRand, "srand": bytecode.BSrand,
	"tolower": bytecode.BTolower, "toupper": bytecode.BToupper,
	"index": bytecode.BIndex, "sprintf": bytecode.BSprintf,
	"sub": bytecode.BSub, "gsub": bytecode.BGsub, "match": bytecode.BMatch,
	"system": bytecode.BSystem, "close": bytecode.BClose, "fflush": bytecode.BFflush,
}

// Compile lowers prog into a bytecode.Program using the parameter and
// global classifications res computed.
func Compile(prog *ast.Program, res *inference.Result) (out *bytecode.Program, err error) {
	c := &compiler{
		res:            res,
		globalScalarID: make(map[string]int),
		globalArrayID:  make(map[string]int),
		funcIndex:      make(map[string]int),
	}
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*errors.AWKError); ok {
				err = ae
				return
			}
			panic(r)
		}
	}()

	c.assignGlobals()

	out = &bytecode.Program{
		ScalarNames: c.scalarNames,
		ArrayNames:  c.arrayNames,
		NumScalars:  len(c.scalarNames),
		NumArrays:   len(c.arrayNames),
	}

	for i, fn := range prog.Functions {
		c.funcIndex[fn.Name.Name] = i
	}
	// Pre-allocate Function entries so forward-referenced calls
	// (function a calls function b declared later in the file) can
	// resolve their target index before b itself is compiled.
	out.Functions = make([]*bytecode.Function, len(prog.Functions))
	for i, fn := range prog.Functions {
		sig := res.Funcs[fn.Name.Name]
		out.Functions[i] = &bytecode.Function{
			Name:       fn.Name.Name,
			NumScalars: sig.NumScalars,
			NumArrays:  sig.NumArrays,
			ParamNames: namesOf(fn.Params),
			IsArray:    isArrayOf(sig.ParamKinds),
		}
	}

	out.Begin = c.compileTopLevel(prog.Begin)
	out.End = c.compileTopLevel(prog.End)

	for _, r := range prog.Rules {
		out.Rules = append(out.Rules, c.compileRule(r))
	}

	for i, fn := range prog.Functions {
		out.Functions[i].Chunk = c.compileFunction(fn, res.Funcs[fn.Name.Name])
	}

	// spec.md §4.3/§8.1: every chunk's scalar/array stack heights must
	// be independent of the path taken to reach any instruction. A
	// violation here is always a compiler bug, never a user mistake.
	if err := bytecode.ValidateProgram(out); err != nil {
		errors.Bug("%s", err)
	}

	return out, nil
}

func namesOf(syms []*symbol.Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name
	}
	return out
}

type compiler struct {
	res *inference.Result

	globalScalarID map[string]int
	globalArrayID  map[string]int
	scalarNames    []string
	arrayNames     []string

	funcIndex map[string]int
}

func isArrayOf(kinds []inference.Kind) []bool {
	out := make([]bool, len(kinds))
	for i, k := range kinds {
		out[i] = k == inference.Array
	}
	return out
}

// assignGlobals assigns dense ids to every classified global name,
// scalars and arrays each in their own id space, in sorted order for
// reproducible output across runs.
func (c *compiler) assignGlobals() {
	names := make([]string, 0, len(c.res.Globals))
	for name := range c.res.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if c.res.Globals[name] == inference.Array {
			c.globalArrayID[name] = len(c.arrayNames)
			c.arrayNames = append(c.arrayNames, name)
		} else {
			c.globalScalarID[name] = len(c.scalarNames)
			c.scalarNames = append(c.scalarNames, name)
		}
	}
}

// fnCtx is the per-chunk compilation context: which function (if any)
// is being compiled, its parameter bindings, and loop-exit/continue
// jump-patch lists for break/continue.
type fnCtx struct {
	chunk      *bytecode.Chunk
	fn         *inference.FuncSig // nil at top level
	paramIndex map[string]int     // name -> declared position, nil at top level

	breakPatches    [][]int // stack of pending break-jump positions, one slice per enclosing loop
	continuePatches [][]int
}

func newFnCtx(chunk *bytecode.Chunk) *fnCtx {
	return &fnCtx{chunk: chunk}
}

func (c *compiler) compileTopLevel(stmts []ast.Stmt) *bytecode.Chunk {
	chunk := bytecode.NewChunk()
	fc := newFnCtx(chunk)
	c.compileStmts(stmts, fc)
	chunk.Emit(bytecode.Halt, 0, 0)
	return chunk
}

func (c *compiler) compileRule(r ast.Rule) bytecode.Rule {
	var out bytecode.Rule
	if r.Pattern.Expr != nil {
		out.Pattern = bytecode.NewChunk()
		fc := newFnCtx(out.Pattern)
		c.compileExpr(r.Pattern.Expr, fc)
		out.Pattern.Emit(bytecode.Halt, 0, 0)
	} else if r.Pattern.RangeStart != nil {
		out.Pattern = bytecode.NewChunk()
		fc := newFnCtx(out.Pattern)
		c.compileExpr(r.Pattern.RangeStart, fc)
		out.Pattern.Emit(bytecode.Halt, 0, 0)

		out.RangeEnd = bytecode.NewChunk()
		fc2 := newFnCtx(out.RangeEnd)
		c.compileExpr(r.Pattern.RangeStop, fc2)
		out.RangeEnd.Emit(bytecode.Halt, 0, 0)
	}
	if r.Body != nil {
		out.Body = bytecode.NewChunk()
		fc := newFnCtx(out.Body)
		c.compileStmts(r.Body, fc)
		out.Body.Emit(bytecode.Halt, 0, 0)
	}
	return out
}

func (c *compiler) compileFunction(fn *ast.Function, sig *inference.FuncSig) *bytecode.Chunk {
	chunk := bytecode.NewChunk()
	fc := &fnCtx{chunk: chunk, fn: sig, paramIndex: make(map[string]int, len(fn.Params))}
	for i, p := range fn.Params {
		fc.paramIndex[p.Name] = i
	}
	c.compileStmts(fn.Body, fc)
	// A function falling off the end returns the uninitialized value.
	c.emitPushEmptyStr(fc)
	chunk.Emit(bytecode.Ret, 0, 0)
	return chunk
}

func (c *compiler) emitPushEmptyStr(fc *fnCtx) {
	fc.chunk.Emit(bytecode.EmptyStr, 0, 0)
}

// scalarRef is what resolveScalar returns for a bare name: either a
// local parameter slot or a global scalar id.
type scalarRef struct {
	local bool
	slot  int // ArgSclGet/Set slot, or GSclGet/Set global id
}

func (c *compiler) resolveScalar(name string, fc *fnCtx) scalarRef {
	if fc.paramIndex != nil {
		if pos, ok := fc.paramIndex[name]; ok {
			return scalarRef{local: true, slot: fc.fn.ParamSlot[pos]}
		}
	}
	id, ok := c.globalScalarID[name]
	if !ok {
		errors.Bug("unresolved global scalar %q", name)
	}
	return scalarRef{local: false, slot: id}
}

type arrayRef struct {
	local bool
	slot  int
}

func (c *compiler) resolveArray(name string, fc *fnCtx) arrayRef {
	if fc.paramIndex != nil {
		if pos, ok := fc.paramIndex[name]; ok {
			return arrayRef{local: true, slot: fc.fn.ParamSlot[pos]}
		}
	}
	id, ok := c.globalArrayID[name]
	if !ok {
		errors.Bug("unresolved global array %q", name)
	}
	return arrayRef{local: false, slot: id}
}

func (c *compiler) emitScalarGet(ref scalarRef, fc *fnCtx) {
	if ref.local {
		fc.chunk.Emit(bytecode.ArgSclGet, 0, 0)
	} else {
		fc.chunk.Emit(bytecode.GSclGet, 0, 0)
	}
	fc.chunk.EmitArg(int32(ref.slot), 0, 0)
}

func (c *compiler) emitScalarSet(ref scalarRef, fc *fnCtx) {
	if ref.local {
		fc.chunk.Emit(bytecode.ArgSclSet, 0, 0)
	} else {
		fc.chunk.Emit(bytecode.GSclSet, 0, 0)
	}
	fc.chunk.EmitArg(int32(ref.slot), 0, 0)
}

func (c *compiler) emitArrayGet(ref arrayRef, fc *fnCtx) {
	if ref.local {
		fc.chunk.Emit(bytecode.ArgArrGet, 0, 0)
	} else {
		fc.chunk.Emit(bytecode.GArrGet, 0, 0)
	}
	fc.chunk.EmitArg(int32(ref.slot), 0, 0)
}

func resolveBuiltin(name string) (bytecode.BuiltinOp, bool) {
	op, ok := builtinByName[name]
	return op, ok
}
