// Package inference implements the interprocedural type inferencer of
// spec.md §4.2: for every user function it decides, per formal
// parameter, whether the parameter is a Scalar or an Array, and it
// classifies every free (non-parameter) name as a global scalar or
// global array. AWK has no declared types, so this is the only thing
// standing between "a[1]=2" and a compiler that doesn't know whether
// `a` needs a scalar slot or an array slot.
//
// The spec describes a worklist over call-graph edges with precise
// re-enqueueing rules. This implementation realizes the same
// monotone-lattice fixed point by iterating every edge to a
// quiescent pass instead of a FIFO queue with targeted re-enqueueing:
// the lattice (Unknown ⊑ Scalar, Unknown ⊑ Array) is finite and each
// step only moves forward, so repeated full passes converge to the
// identical classification, just without tracking exactly which edge
// changed. Kept for simplicity; see DESIGN.md.
package inference

import (
	"fmt"

	"goawk-core/internal/ast"
	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
)

// Kind is a position in the lattice Unknown ⊑ Scalar, Unknown ⊑ Array.
type Kind int

const (
	Unknown Kind = iota
	Scalar
	Array
)

// FuncSig is the resolved signature of one user-defined function.
type FuncSig struct {
	Name       string
	ParamKinds []Kind // per declared parameter position
	ParamSlot  []int  // per position, index within its own kind-group
	NumScalars int
	NumArrays  int
}

// Result is the output of Infer, consumed by internal/compiler.
type Result struct {
	Funcs   map[string]*FuncSig
	Globals map[string]Kind // resolved Scalar or Array; never Unknown
}

type funcState struct {
	sig        *FuncSig
	paramIndex map[string]int // param name -> declaration position
	fn         *ast.Function
}

type argRef struct {
	isLocal bool
	localIdx int // valid if isLocal
	name     string // valid if !isLocal (global) or empty (fixed scalar expr)
	isArray  bool // syntactically certain to be an array (bare array name passed where callee param already known array, unused currently)
}

type edge struct {
	callerFn string // "" for main
	target   string
	args     []argRef
	line     int
}

type infer struct {
	prog    *ast.Program
	funcs   map[string]*funcState
	globals map[string]Kind
	edges   []edge
}

// Infer runs type inference over prog and returns the resolved
// per-function parameter kinds and global classifications.
func Infer(prog *ast.Program) (res *Result, err error) {
	in := &infer{
		prog:    prog,
		funcs:   make(map[string]*funcState),
		globals: make(map[string]Kind),
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

	for _, fn := range prog.Functions {
		paramIndex := make(map[string]int, len(fn.Params))
		for i, p := range fn.Params {
			paramIndex[p.Name] = i
		}
		in.funcs[fn.Name.Name] = &funcState{
			sig: &FuncSig{
				Name:       fn.Name.Name,
				ParamKinds: make([]Kind, len(fn.Params)),
			},
			paramIndex: paramIndex,
			fn:         fn,
		}
	}

	in.collectUsesAndEdges()
	in.runFixedPoint()
	in.resolveDefaults()
	in.assignSlots()

	funcs := make(map[string]*FuncSig, len(in.funcs))
	for name, fs := range in.funcs {
		funcs[name] = fs.sig
	}
	return &Result{Funcs: funcs, Globals: in.globals}, nil
}

// --- syntactic collection ---

type ctx struct {
	funcName string
	fs       *funcState // nil for main
}

func (in *infer) collectUsesAndEdges() {
	main := ctx{}
	in.walkStmts(in.prog.Begin, main)
	in.walkStmts(in.prog.End, main)
	for _, r := range in.prog.Rules {
		if r.Pattern.Expr != nil {
			in.walkExpr(r.Pattern.Expr, main)
		}
		if r.Pattern.RangeStart != nil {
			in.walkExpr(r.Pattern.RangeStart, main)
			in.walkExpr(r.Pattern.RangeStop, main)
		}
		in.walkStmts(r.Body, main)
	}
	for _, fn := range in.prog.Functions {
		fs := in.funcs[fn.Name.Name]
		in.walkStmts(fn.Body, ctx{funcName: fn.Name.Name, fs: fs})
	}
}

func (in *infer) markArray(name string, c ctx) {
	if c.fs != nil {
		if idx, ok := c.fs.paramIndex[name]; ok {
			in.setParamKind(c.fs, idx, Array)
			return
		}
	}
	in.setGlobalKind(name, Array)
}

func (in *infer) markScalar(name string, c ctx) {
	if c.fs != nil {
		if idx, ok := c.fs.paramIndex[name]; ok {
			in.setParamKind(c.fs, idx, Scalar)
			return
		}
	}
	in.setGlobalKind(name, Scalar)
}

func (in *infer) setParamKind(fs *funcState, idx int, k Kind) {
	cur := fs.sig.ParamKinds[idx]
	if cur == Unknown {
		fs.sig.ParamKinds[idx] = k
		return
	}
	if cur != k {
		panic(errors.NewTypeError(fmt.Sprintf("scalar vs array mismatch on parameter %d of %s", idx, fs.sig.Name), "", 0, 0))
	}
}

func (in *infer) setGlobalKind(name string, k Kind) {
	cur, ok := in.globals[name]
	if !ok || cur == Unknown {
		in.globals[name] = k
		return
	}
	if cur != k {
		panic(errors.NewTypeError(fmt.Sprintf("scalar vs array mismatch on %q", name), "", 0, 0))
	}
}

func (in *infer) walkStmts(stmts []ast.Stmt, c ctx) {
	for _, s := range stmts {
		in.walkStmt(s, c)
	}
}

func (in *infer) walkStmt(s ast.Stmt, c ctx) {
	switch n := s.(type) {
	case ast.ExprStmt:
		in.walkExpr(n.X, c)
	case ast.PrintStmt:
		for _, a := range n.Args {
			in.walkExpr(a, c)
		}
		in.walkRedirect(n.Redirect, c)
	case ast.PrintfStmt:
		for _, a := range n.Args {
			in.walkExpr(a, c)
		}
		in.walkRedirect(n.Redirect, c)
	case ast.IfStmt:
		in.walkExpr(n.Cond, c)
		in.walkStmts(n.Then, c)
		in.walkStmts(n.Else, c)
	case ast.WhileStmt:
		in.walkExpr(n.Cond, c)
		in.walkStmts(n.Body, c)
	case ast.DoWhileStmt:
		in.walkStmts(n.Body, c)
		in.walkExpr(n.Cond, c)
	case ast.ForStmt:
		if n.Init != nil {
			in.walkStmt(n.Init, c)
		}
		if n.Cond != nil {
			in.walkExpr(n.Cond, c)
		}
		if n.Post != nil {
			in.walkStmt(n.Post, c)
		}
		in.walkStmts(n.Body, c)
	case ast.ForInStmt:
		in.markScalar(n.Var.Name, c)
		in.markArray(n.Array.Name, c)
		in.walkStmts(n.Body, c)
	case ast.ExitStmt:
		if n.Code != nil {
			in.walkExpr(n.Code, c)
		}
	case ast.ReturnStmt:
		if n.Value != nil {
			in.walkExpr(n.Value, c)
		}
	case ast.DeleteStmt:
		in.markArray(n.Array.Name, c)
		for _, idx := range n.Indices {
			in.walkExpr(idx, c)
		}
	case ast.BlockStmt:
		in.walkStmts(n.Body, c)
	}
}

func (in *infer) walkRedirect(r *ast.Redirect, c ctx) {
	if r != nil {
		in.walkExpr(r.Target, c)
	}
}

func (in *infer) walkExpr(e ast.Expr, c ctx) {
	switch n := e.(type) {
	case ast.VarRef:
		if _, isSpecial := bytecode.LookupSpecial(n.Name.Name); isSpecial {
			return
		}
		in.markScalar(n.Name.Name, c)
	case ast.IndexExpr:
		in.markArray(n.Array.Name, c)
		for _, idx := range n.Indices {
			in.walkExpr(idx, c)
		}
	case ast.FieldExpr:
		in.walkExpr(n.Index, c)
	case ast.AssignExpr:
		in.walkExpr(n.Target, c)
		in.walkExpr(n.Value, c)
	case ast.BinaryExpr:
		in.walkExpr(n.Left, c)
		in.walkExpr(n.Right, c)
	case ast.LogicalExpr:
		in.walkExpr(n.Left, c)
		in.walkExpr(n.Right, c)
	case ast.UnaryExpr:
		in.walkExpr(n.Operand, c)
	case ast.IncDecExpr:
		in.walkExpr(n.Target, c)
	case ast.TernaryExpr:
		in.walkExpr(n.Cond, c)
		in.walkExpr(n.Then, c)
		in.walkExpr(n.Else, c)
	case ast.InExpr:
		in.markArray(n.Array.Name, c)
		for _, idx := range n.Indices {
			in.walkExpr(idx, c)
		}
	case ast.CallExpr:
		in.walkCall(n, c)
	case ast.GetlineExpr:
		if n.Var != nil {
			in.walkExpr(n.Var, c)
		}
		if n.SourceExpr != nil {
			in.walkExpr(n.SourceExpr, c)
		}
	}
}

func (in *infer) walkCall(n ast.CallExpr, c ctx) {
	target, isUser := in.funcs[n.Name.Name]
	if !isUser {
		// Builtin: every argument is evaluated in scalar context
		// except split's array argument, which is marked an array, and a
		// bare name passed to length, which may name either kind: its
		// other uses decide, and it defaults to scalar if it has none.
		for i, a := range n.Args {
			v, isName := a.(ast.VarRef)
			if isName && n.Name.Name == "split" && i == 1 {
				in.markArray(v.Name.Name, c)
				continue
			}
			if isName && n.Name.Name == "length" {
				name := v.Name.Name
				_, special := bytecode.LookupSpecial(name)
				local := false
				if c.fs != nil {
					_, local = c.fs.paramIndex[name]
				}
				if _, seen := in.globals[name]; !special && !local && !seen {
					in.globals[name] = Unknown
				}
				continue
			}
			in.walkExpr(a, c)
		}
		return
	}
	if len(n.Args) > len(target.fn.Params) {
		panic(errors.NewArityError(fmt.Sprintf("too many arguments to %s", n.Name.Name), "", 0, 0))
	}
	refs := make([]argRef, len(n.Args))
	for i, a := range n.Args {
		refs[i] = in.classifyArg(a, c)
		// Still walk non-bare-name arguments for nested calls/uses.
		if refs[i].name == "" && !refs[i].isLocal {
			in.walkExpr(a, c)
		}
	}
	in.edges = append(in.edges, edge{callerFn: c.funcName, target: n.Name.Name, args: refs})
}

// classifyArg describes how a call argument relates to the caller's
// own bindings: a bare reference to a local parameter or a global
// name propagates type information bidirectionally; anything else
// (a literal, an arithmetic expression, a field) is necessarily a
// scalar and carries no back-propagation.
func (in *infer) classifyArg(a ast.Expr, c ctx) argRef {
	v, ok := a.(ast.VarRef)
	if !ok {
		return argRef{}
	}
	if c.fs != nil {
		if idx, isLocal := c.fs.paramIndex[v.Name.Name]; isLocal {
			return argRef{isLocal: true, localIdx: idx}
		}
	}
	return argRef{name: v.Name.Name}
}

// --- fixed point ---

func (in *infer) runFixedPoint() {
	for {
		changed := false
		for _, e := range in.edges {
			if in.processEdge(e) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (in *infer) processEdge(e edge) bool {
	target := in.funcs[e.target]
	changed := false
	for i, ref := range e.args {
		if i >= len(target.sig.ParamKinds) {
			break
		}
		callerKind := in.argKind(ref, e.callerFn)
		targetKind := target.sig.ParamKinds[i]

		switch {
		case targetKind == Unknown && callerKind != Unknown:
			target.sig.ParamKinds[i] = callerKind
			changed = true
		case targetKind != Unknown && callerKind != Unknown && targetKind != callerKind:
			panic(errors.NewTypeError(fmt.Sprintf("scalar vs array mismatch calling %s", e.target), "", 0, 0))
		case callerKind == Unknown && targetKind != Unknown:
			if in.setArgKind(ref, e.callerFn, targetKind) {
				changed = true
			}
		}
	}
	return changed
}

func (in *infer) argKind(ref argRef, callerFn string) Kind {
	if ref.name == "" && !ref.isLocal {
		return Scalar // fixed expression: never an array
	}
	if ref.isLocal {
		return in.funcs[callerFn].sig.ParamKinds[ref.localIdx]
	}
	return in.globals[ref.name]
}

func (in *infer) setArgKind(ref argRef, callerFn string, k Kind) bool {
	if ref.name == "" && !ref.isLocal {
		return false
	}
	if ref.isLocal {
		fs := in.funcs[callerFn]
		if fs.sig.ParamKinds[ref.localIdx] == Unknown {
			fs.sig.ParamKinds[ref.localIdx] = k
			return true
		}
		return false
	}
	if in.globals[ref.name] == Unknown {
		in.globals[ref.name] = k
		return true
	}
	return false
}

// --- finalization ---

func (in *infer) resolveDefaults() {
	for _, fs := range in.funcs {
		for i, k := range fs.sig.ParamKinds {
			if k == Unknown {
				fs.sig.ParamKinds[i] = Scalar
			}
		}
	}
	for name, k := range in.globals {
		if k == Unknown {
			in.globals[name] = Scalar
		}
	}
}

func (in *infer) assignSlots() {
	for _, fs := range in.funcs {
		sig := fs.sig
		sig.ParamSlot = make([]int, len(sig.ParamKinds))
		for i, k := range sig.ParamKinds {
			if k == Array {
				sig.ParamSlot[i] = sig.NumArrays
				sig.NumArrays++
			} else {
				sig.ParamSlot[i] = sig.NumScalars
				sig.NumScalars++
			}
		}
	}
}
