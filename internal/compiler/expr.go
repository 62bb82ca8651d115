package compiler

import (
	"goawk-core/internal/ast"
	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
	"goawk-core/internal/symbol"
)

// compileExpr lowers e, leaving exactly one scalar value on the stack.
func (c *compiler) compileExpr(e ast.Expr, fc *fnCtx) {
	ch := fc.chunk
	switch n := e.(type) {
	case ast.NumLit:
		ch.Emit(bytecode.NumConst, 0, 0)
		ch.EmitArg(int32(ch.AddNum(n.Value)), 0, 0)

	case ast.StrLit:
		ch.Emit(bytecode.StrConst, 0, 0)
		ch.EmitArg(int32(ch.AddStr(n.Value)), 0, 0)

	case ast.RegexLit:
		ch.Emit(bytecode.RegexConst, 0, 0)
		ch.EmitArg(int32(ch.AddRegex(n.Pattern)), 0, 0)

	case ast.VarRef:
		c.compileVarGet(n.Name, fc)

	case ast.IndexExpr:
		c.compileIndexGet(n, fc)

	case ast.FieldExpr:
		c.compileExpr(n.Index, fc)
		ch.Emit(bytecode.Column, 0, 0)

	case ast.AssignExpr:
		c.compileAssign(n, fc)

	case ast.BinaryExpr:
		c.compileBinary(n, fc)

	case ast.LogicalExpr:
		c.compileLogical(n, fc)

	case ast.UnaryExpr:
		c.compileExpr(n.Operand, fc)
		switch n.Op {
		case ast.Neg:
			ch.Emit(bytecode.Neg, 0, 0)
		case ast.Pos:
			ch.Emit(bytecode.Pos, 0, 0)
		case ast.Not:
			ch.Emit(bytecode.Not, 0, 0)
		}

	case ast.IncDecExpr:
		c.compileIncDec(n, fc)

	case ast.TernaryExpr:
		c.compileTernary(n, fc)

	case ast.InExpr:
		for _, idx := range n.Indices {
			c.compileExpr(idx, fc)
		}
		c.emitArrayGet(c.resolveArray(n.Array.Name, fc), fc)
		ch.Emit(bytecode.ArrIn, 0, 0)
		ch.EmitArg(int32(len(n.Indices)), 0, 0)

	case ast.CallExpr:
		c.compileCall(n, fc)

	case ast.GetlineExpr:
		c.compileGetline(n, fc)

	default:
		errors.Bug("compiler: unhandled expression node %T", e)
	}
}

func (c *compiler) compileVarGet(sym *symbol.Symbol, fc *fnCtx) {
	ch := fc.chunk
	if sp, ok := bytecode.LookupSpecial(sym.Name); ok {
		ch.Emit(bytecode.SclSpecialGet, 0, 0)
		ch.EmitArg(int32(sp), 0, 0)
		return
	}
	c.emitScalarGet(c.resolveScalar(sym.Name, fc), fc)
}

func (c *compiler) compileIndexGet(n ast.IndexExpr, fc *fnCtx) {
	ch := fc.chunk
	for _, idx := range n.Indices {
		c.compileExpr(idx, fc)
	}
	c.emitArrayGet(c.resolveArray(n.Array.Name, fc), fc)
	ch.Emit(bytecode.ArrIndex, 0, 0)
	ch.EmitArg(int32(len(n.Indices)), 0, 0)
}

// compileLoad pushes the current value of an lvalue expression
// (VarRef, IndexExpr, or FieldExpr).
func (c *compiler) compileLoad(target ast.Expr, fc *fnCtx) {
	switch t := target.(type) {
	case ast.VarRef:
		c.compileVarGet(t.Name, fc)
	case ast.IndexExpr:
		c.compileIndexGet(t, fc)
	case ast.FieldExpr:
		c.compileExpr(t.Index, fc)
		fc.chunk.Emit(bytecode.Column, 0, 0)
	default:
		errors.Bug("compiler: invalid assignment target %T", target)
	}
}

// compileStoreWithValueOnStack assumes the new value is already atop
// the stack and finishes storing it into target, re-evaluating any
// subscript/index expressions fresh. Per the store opcodes' contract
// it leaves the stored value in place as the net stack effect.
func (c *compiler) compileStoreWithValueOnStack(target ast.Expr, fc *fnCtx) {
	ch := fc.chunk
	switch t := target.(type) {
	case ast.VarRef:
		if sp, ok := bytecode.LookupSpecial(t.Name.Name); ok {
			ch.Emit(bytecode.SclSpecialSet, 0, 0)
			ch.EmitArg(int32(sp), 0, 0)
			return
		}
		c.emitScalarSet(c.resolveScalar(t.Name.Name, fc), fc)
	case ast.IndexExpr:
		for _, idx := range t.Indices {
			c.compileExpr(idx, fc)
		}
		c.emitArrayGet(c.resolveArray(t.Array.Name, fc), fc)
		ch.Emit(bytecode.ArrAssign, 0, 0)
		ch.EmitArg(int32(len(t.Indices)), 0, 0)
	case ast.FieldExpr:
		// Value is already on top; ColumnAssign wants index pushed
		// above it (pop order: index, then value).
		c.compileExpr(t.Index, fc)
		ch.Emit(bytecode.ColumnAssign, 0, 0)
	default:
		errors.Bug("compiler: invalid assignment target %T", target)
	}
}

func (c *compiler) compileAssign(n ast.AssignExpr, fc *fnCtx) {
	ch := fc.chunk
	if n.Op == ast.Assign {
		c.compileExpr(n.Value, fc)
		c.compileStoreWithValueOnStack(n.Target, fc)
		return
	}
	c.compileLoad(n.Target, fc)
	c.compileExpr(n.Value, fc)
	switch n.Op {
	case ast.AddAssign:
		ch.Emit(bytecode.Add, 0, 0)
	case ast.SubAssign:
		ch.Emit(bytecode.Sub, 0, 0)
	case ast.MulAssign:
		ch.Emit(bytecode.Mul, 0, 0)
	case ast.DivAssign:
		ch.Emit(bytecode.Div, 0, 0)
	case ast.ModAssign:
		ch.Emit(bytecode.Mod, 0, 0)
	case ast.PowAssign:
		ch.Emit(bytecode.Pow, 0, 0)
	}
	c.compileStoreWithValueOnStack(n.Target, fc)
}

func (c *compiler) compileBinary(n ast.BinaryExpr, fc *fnCtx) {
	ch := fc.chunk
	if n.Op == ast.Matches || n.Op == ast.NotMatches {
		c.compileExpr(n.Left, fc)
		if lit, ok := n.Right.(ast.RegexLit); ok {
			ch.Emit(bytecode.StrConst, 0, 0)
			ch.EmitArg(int32(ch.AddStr(lit.Pattern)), 0, 0)
		} else {
			c.compileExpr(n.Right, fc)
		}
		if n.Op == ast.Matches {
			ch.Emit(bytecode.Matches, 0, 0)
		} else {
			ch.Emit(bytecode.NotMatches, 0, 0)
		}
		return
	}

	c.compileExpr(n.Left, fc)
	c.compileExpr(n.Right, fc)
	switch n.Op {
	case ast.Add:
		ch.Emit(bytecode.Add, 0, 0)
	case ast.Sub:
		ch.Emit(bytecode.Sub, 0, 0)
	case ast.Mul:
		ch.Emit(bytecode.Mul, 0, 0)
	case ast.Div:
		ch.Emit(bytecode.Div, 0, 0)
	case ast.Mod:
		ch.Emit(bytecode.Mod, 0, 0)
	case ast.Pow:
		ch.Emit(bytecode.Pow, 0, 0)
	case ast.Lt:
		ch.Emit(bytecode.Lt, 0, 0)
	case ast.Le:
		ch.Emit(bytecode.Le, 0, 0)
	case ast.Gt:
		ch.Emit(bytecode.Gt, 0, 0)
	case ast.Ge:
		ch.Emit(bytecode.Ge, 0, 0)
	case ast.Eq:
		ch.Emit(bytecode.Eq, 0, 0)
	case ast.Ne:
		ch.Emit(bytecode.Ne, 0, 0)
	case ast.Concat:
		ch.Emit(bytecode.Concat, 0, 0)
		ch.EmitArg(2, 0, 0)
	default:
		errors.Bug("compiler: unhandled binary op %v", n.Op)
	}
}

func (c *compiler) compileLogical(n ast.LogicalExpr, fc *fnCtx) {
	ch := fc.chunk
	switch n.Op {
	case ast.And:
		c.compileExpr(n.Left, fc)
		falsePos := c.emitJump(bytecode.JumpIfFalse, fc)
		c.compileExpr(n.Right, fc)
		falsePos2 := c.emitJump(bytecode.JumpIfFalse, fc)
		ch.Emit(bytecode.FloatOne, 0, 0)
		endPos := c.emitJump(bytecode.Jump, fc)
		falseLabel := ch.Len()
		ch.Emit(bytecode.FloatZero, 0, 0)
		endLabel := ch.Len()
		c.patchJump(fc, falsePos, falseLabel)
		c.patchJump(fc, falsePos2, falseLabel)
		c.patchJump(fc, endPos, endLabel)
	case ast.Or:
		c.compileExpr(n.Left, fc)
		truePos := c.emitJump(bytecode.JumpIfTrue, fc)
		c.compileExpr(n.Right, fc)
		truePos2 := c.emitJump(bytecode.JumpIfTrue, fc)
		ch.Emit(bytecode.FloatZero, 0, 0)
		endPos := c.emitJump(bytecode.Jump, fc)
		trueLabel := ch.Len()
		ch.Emit(bytecode.FloatOne, 0, 0)
		endLabel := ch.Len()
		c.patchJump(fc, truePos, trueLabel)
		c.patchJump(fc, truePos2, trueLabel)
		c.patchJump(fc, endPos, endLabel)
	}
}

func (c *compiler) compileTernary(n ast.TernaryExpr, fc *fnCtx) {
	ch := fc.chunk
	c.compileExpr(n.Cond, fc)
	elsePos := c.emitJump(bytecode.JumpIfFalse, fc)
	c.compileExpr(n.Then, fc)
	endPos := c.emitJump(bytecode.Jump, fc)
	c.patchJump(fc, elsePos, ch.Len())
	c.compileExpr(n.Else, fc)
	c.patchJump(fc, endPos, ch.Len())
}

func (c *compiler) compileIncDec(n ast.IncDecExpr, fc *fnCtx) {
	ch := fc.chunk
	var delta bytecode.Op = bytecode.Add
	var isPost bool
	switch n.Op {
	case ast.PreIncr:
		delta = bytecode.Add
	case ast.PreDecr:
		delta = bytecode.Sub
	case ast.PostIncr:
		delta = bytecode.Add
		isPost = true
	case ast.PostDecr:
		delta = bytecode.Sub
		isPost = true
	}

	c.compileLoad(n.Target, fc)
	if isPost {
		ch.Emit(bytecode.Dup, 0, 0)
	}
	ch.Emit(bytecode.FloatOne, 0, 0)
	ch.Emit(delta, 0, 0)
	c.compileStoreWithValueOnStack(n.Target, fc)
	if isPost {
		ch.Emit(bytecode.Pop, 0, 0)
	}
}

// --- jump helpers ---

// emitJump writes op followed by a placeholder immediate and returns
// the position of that immediate for later patching.
func (c *compiler) emitJump(op bytecode.Op, fc *fnCtx) int {
	fc.chunk.Emit(op, 0, 0)
	pos := fc.chunk.Len()
	fc.chunk.EmitArg(0, 0, 0)
	return pos
}

// patchJump resolves a placeholder emitted by emitJump in fc's chunk
// to a relative offset pointing at target, measured from the slot
// after the immediate (where the VM's instruction pointer sits once
// the jump instruction has been fully read).
func (c *compiler) patchJump(fc *fnCtx, argPos, target int) {
	fc.chunk.PatchArg(argPos, int32(target-(argPos+1)))
}
