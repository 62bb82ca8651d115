package compiler

import (
	"goawk-core/internal/ast"
	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
	"goawk-core/internal/inference"
)

// fieldZero synthesizes the implicit $0 target used by two-argument
// sub/gsub.
var fieldZero = ast.FieldExpr{Index: ast.NumLit{Value: 0}}

func (c *compiler) compileCall(n ast.CallExpr, fc *fnCtx) {
	ch := fc.chunk
	name := n.Name.Name

	if idx, isUser := c.funcIndex[name]; isUser {
		c.compileUserCall(idx, name, n.Args, fc)
		return
	}

	switch name {
	case "length":
		c.compileLength(n, fc)
		return
	case "substr":
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		if len(n.Args) >= 3 {
			ch.EmitArg(int32(bytecode.BSubstr3), 0, 0)
		} else {
			ch.EmitArg(int32(bytecode.BSubstr2), 0, 0)
		}
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		return
	case "split":
		c.compileSplit(n, fc)
		return
	case "sub", "gsub":
		c.compileSubGsub(n, fc, name == "gsub")
		return
	case "sprintf", "match", "index":
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		op, _ := resolveBuiltin(name)
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		ch.EmitArg(int32(op), 0, 0)
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		return
	case "tolower", "toupper", "sin", "cos", "exp", "log", "sqrt", "int", "rand", "system", "close", "fflush":
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		op, _ := resolveBuiltin(name)
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		ch.EmitArg(int32(op), 0, 0)
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		return
	case "atan2":
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		ch.EmitArg(int32(bytecode.BAtan2), 0, 0)
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		return
	case "srand":
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		if len(n.Args) > 0 {
			ch.EmitArg(int32(bytecode.BSrandSeed), 0, 0)
		} else {
			ch.EmitArg(int32(bytecode.BSrand), 0, 0)
		}
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		return
	default:
		errors.Bug("compiler: call to unknown function %q", name)
	}
}

func (c *compiler) compileLength(n ast.CallExpr, fc *fnCtx) {
	ch := fc.chunk
	if len(n.Args) == 0 {
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		ch.EmitArg(int32(bytecode.BLength), 0, 0)
		ch.EmitArg(0, 0, 0)
		return
	}
	if v, ok := n.Args[0].(ast.VarRef); ok && c.isArrayName(v.Name.Name, fc) {
		c.emitArrayGet(c.resolveArray(v.Name.Name, fc), fc)
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		ch.EmitArg(int32(bytecode.BLengthArr), 0, 0)
		ch.EmitArg(1, 0, 0)
		return
	}
	c.compileExpr(n.Args[0], fc)
	ch.Emit(bytecode.CallBuiltin, 0, 0)
	ch.EmitArg(int32(bytecode.BLengthArg), 0, 0)
	ch.EmitArg(1, 0, 0)
}

// isArrayName reports whether name resolves (in fc's scope) to a
// binding the inferencer classified as an array.
func (c *compiler) isArrayName(name string, fc *fnCtx) bool {
	if fc.paramIndex != nil {
		if pos, ok := fc.paramIndex[name]; ok {
			return fc.fn.ParamKinds[pos] == inference.Array
		}
	}
	_, isArray := c.globalArrayID[name]
	return isArray
}

func (c *compiler) compileSplit(n ast.CallExpr, fc *fnCtx) {
	ch := fc.chunk
	c.compileExpr(n.Args[0], fc) // s
	arrRef := n.Args[1].(ast.VarRef)
	c.emitArrayGet(c.resolveArray(arrRef.Name.Name, fc), fc)
	if len(n.Args) >= 3 {
		c.compileExpr(n.Args[2], fc) // fs
		ch.Emit(bytecode.CallBuiltin, 0, 0)
		ch.EmitArg(int32(bytecode.BSplit3), 0, 0)
		ch.EmitArg(2, 0, 0) // 2 scalar args: s, fs
		return
	}
	ch.Emit(bytecode.CallBuiltin, 0, 0)
	ch.EmitArg(int32(bytecode.BSplit2), 0, 0)
	ch.EmitArg(1, 0, 0)
}

// compileSubGsub implements sub(ere, repl [, target]) / gsub(...):
// POSIX functions that both return a substitution count and mutate
// their third argument (default $0) in place. The target is
// re-evaluated as a full lvalue store after the builtin computes the
// replacement text.
func (c *compiler) compileSubGsub(n ast.CallExpr, fc *fnCtx, isGsub bool) {
	ch := fc.chunk
	target := ast.Expr(fieldZero)
	if len(n.Args) >= 3 {
		target = n.Args[2]
	}
	if lit, ok := n.Args[0].(ast.RegexLit); ok { // ere as pattern text, not a $0 match
		ch.Emit(bytecode.StrConst, 0, 0)
		ch.EmitArg(int32(ch.AddStr(lit.Pattern)), 0, 0)
	} else {
		c.compileExpr(n.Args[0], fc) // ere
	}
	c.compileExpr(n.Args[1], fc) // repl
	c.compileLoad(target, fc)    // old target string
	ch.Emit(bytecode.CallBuiltin, 0, 0)
	if isGsub {
		ch.EmitArg(int32(bytecode.BGsub), 0, 0)
	} else {
		ch.EmitArg(int32(bytecode.BSub), 0, 0)
	}
	ch.EmitArg(3, 0, 0)
	// Builtin leaves [count, newStr]; store newStr, then discard the
	// store's own leftover copy so count is the expression's value.
	c.compileStoreWithValueOnStack(target, fc)
	ch.Emit(bytecode.Pop, 0, 0)
}

func (c *compiler) compileUserCall(idx int, name string, args []ast.Expr, fc *fnCtx) {
	ch := fc.chunk
	sig := c.res.Funcs[name]
	if len(args) > len(sig.ParamKinds) {
		panic(errors.NewArityError("too many arguments to "+name, "", 0, 0))
	}
	numScalar, numArray := 0, 0
	for i, a := range args {
		if sig.ParamKinds[i] == inference.Array {
			ref := a.(ast.VarRef)
			c.emitArrayGet(c.resolveArray(ref.Name.Name, fc), fc)
			numArray++
		} else {
			c.compileExpr(a, fc)
			numScalar++
		}
	}
	ch.Emit(bytecode.Call, 0, 0)
	ch.EmitArg(int32(idx), 0, 0)
	ch.EmitArg(int32(numScalar), 0, 0)
	ch.EmitArg(int32(numArray), 0, 0)
}

func (c *compiler) compileGetline(n ast.GetlineExpr, fc *fnCtx) {
	ch := fc.chunk
	if n.Source != ast.SourceMain {
		c.compileExpr(n.SourceExpr, fc)
	}
	ch.Emit(bytecode.GetLine, 0, 0)
	ch.EmitArg(int32(n.Source), 0, 0)
	hasVar := int32(0)
	if n.Var != nil {
		hasVar = 1
	}
	ch.EmitArg(hasVar, 0, 0)
	if n.Var != nil {
		c.compileStoreWithValueOnStack(n.Var, fc)
		ch.Emit(bytecode.Pop, 0, 0)
	}
}
