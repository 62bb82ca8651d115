package compiler

import (
	"goawk-core/internal/ast"
	"goawk-core/internal/bytecode"
	"goawk-core/internal/errors"
)

func (c *compiler) compileStmts(stmts []ast.Stmt, fc *fnCtx) {
	for _, s := range stmts {
		c.compileStmt(s, fc)
	}
}

func (c *compiler) compileStmt(s ast.Stmt, fc *fnCtx) {
	ch := fc.chunk
	switch n := s.(type) {
	case ast.ExprStmt:
		c.compileExpr(n.X, fc)
		ch.Emit(bytecode.Pop, 0, 0)

	case ast.PrintStmt:
		c.compilePrintArgs(n.Args, n.Redirect, fc)
		ch.Emit(bytecode.Print, 0, 0)
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		ch.EmitArg(int32(redirectMode(n.Redirect)), 0, 0)

	case ast.PrintfStmt:
		c.compilePrintArgs(n.Args, n.Redirect, fc)
		ch.Emit(bytecode.Printf, 0, 0)
		ch.EmitArg(int32(len(n.Args)), 0, 0)
		ch.EmitArg(int32(redirectMode(n.Redirect)), 0, 0)

	case ast.IfStmt:
		c.compileIf(n, fc)

	case ast.WhileStmt:
		c.compileWhile(n, fc)

	case ast.DoWhileStmt:
		c.compileDoWhile(n, fc)

	case ast.ForStmt:
		c.compileFor(n, fc)

	case ast.ForInStmt:
		c.compileForIn(n, fc)

	case ast.BreakStmt:
		if len(fc.breakPatches) == 0 {
			errors.Bug("compiler: break outside loop")
		}
		pos := c.emitJump(bytecode.Jump, fc)
		top := len(fc.breakPatches) - 1
		fc.breakPatches[top] = append(fc.breakPatches[top], pos)

	case ast.ContinueStmt:
		if len(fc.continuePatches) == 0 {
			errors.Bug("compiler: continue outside loop")
		}
		pos := c.emitJump(bytecode.Jump, fc)
		top := len(fc.continuePatches) - 1
		fc.continuePatches[top] = append(fc.continuePatches[top], pos)

	case ast.NextStmt:
		ch.Emit(bytecode.NextLine, 0, 0)

	case ast.NextfileStmt:
		ch.Emit(bytecode.NextFile, 0, 0)

	case ast.ExitStmt:
		if n.Code != nil {
			c.compileExpr(n.Code, fc)
			ch.Emit(bytecode.Exit, 0, 0)
			ch.EmitArg(1, 0, 0)
		} else {
			ch.Emit(bytecode.Exit, 0, 0)
			ch.EmitArg(0, 0, 0)
		}

	case ast.ReturnStmt:
		if n.Value != nil {
			c.compileExpr(n.Value, fc)
		} else {
			ch.Emit(bytecode.EmptyStr, 0, 0)
		}
		ch.Emit(bytecode.Ret, 0, 0)

	case ast.DeleteStmt:
		if len(n.Indices) == 0 {
			c.emitArrayGet(c.resolveArray(n.Array.Name, fc), fc)
			ch.Emit(bytecode.ArrDelete, 0, 0)
			ch.EmitArg(0, 0, 0)
			return
		}
		for _, idx := range n.Indices {
			c.compileExpr(idx, fc)
		}
		c.emitArrayGet(c.resolveArray(n.Array.Name, fc), fc)
		ch.Emit(bytecode.ArrDelete, 0, 0)
		ch.EmitArg(int32(len(n.Indices)), 0, 0)

	case ast.BlockStmt:
		c.compileStmts(n.Body, fc)

	default:
		errors.Bug("compiler: unhandled statement node %T", s)
	}
}

func redirectMode(r *ast.Redirect) ast.RedirectMode {
	if r == nil {
		return ast.RedirectNone
	}
	return r.Mode
}

// compilePrintArgs pushes the redirect target (if any) below the
// argument list, matching Print/Printf's stack contract.
func (c *compiler) compilePrintArgs(args []ast.Expr, r *ast.Redirect, fc *fnCtx) {
	if r != nil {
		c.compileExpr(r.Target, fc)
	}
	for _, a := range args {
		c.compileExpr(a, fc)
	}
}

func (c *compiler) compileIf(n ast.IfStmt, fc *fnCtx) {
	ch := fc.chunk
	c.compileExpr(n.Cond, fc)
	elsePos := c.emitJump(bytecode.JumpIfFalse, fc)
	c.compileStmts(n.Then, fc)
	if len(n.Else) == 0 {
		c.patchJump(fc, elsePos, ch.Len())
		return
	}
	endPos := c.emitJump(bytecode.Jump, fc)
	c.patchJump(fc, elsePos, ch.Len())
	c.compileStmts(n.Else, fc)
	c.patchJump(fc, endPos, ch.Len())
}

func (c *compiler) pushLoop(fc *fnCtx) {
	fc.breakPatches = append(fc.breakPatches, nil)
	fc.continuePatches = append(fc.continuePatches, nil)
}

// popLoop patches every break/continue recorded for the innermost
// loop to breakTarget/continueTarget respectively.
func (c *compiler) popLoop(fc *fnCtx, breakTarget, continueTarget int) {
	top := len(fc.breakPatches) - 1
	for _, pos := range fc.breakPatches[top] {
		c.patchJump(fc, pos, breakTarget)
	}
	fc.breakPatches = fc.breakPatches[:top]

	top = len(fc.continuePatches) - 1
	for _, pos := range fc.continuePatches[top] {
		c.patchJump(fc, pos, continueTarget)
	}
	fc.continuePatches = fc.continuePatches[:top]
}

func (c *compiler) compileWhile(n ast.WhileStmt, fc *fnCtx) {
	ch := fc.chunk
	c.pushLoop(fc)
	condStart := ch.Len()
	c.compileExpr(n.Cond, fc)
	exitPos := c.emitJump(bytecode.JumpIfFalse, fc)
	c.compileStmts(n.Body, fc)
	c.emitJumpTo(bytecode.Jump, fc, condStart)
	endPos := ch.Len()
	c.patchJump(fc, exitPos, endPos)
	c.popLoop(fc, endPos, condStart)
}

func (c *compiler) compileDoWhile(n ast.DoWhileStmt, fc *fnCtx) {
	ch := fc.chunk
	c.pushLoop(fc)
	bodyStart := ch.Len()
	c.compileStmts(n.Body, fc)
	condStart := ch.Len()
	c.compileExpr(n.Cond, fc)
	c.emitJumpTo(bytecode.JumpIfTrue, fc, bodyStart)
	endPos := ch.Len()
	c.popLoop(fc, endPos, condStart)
}

func (c *compiler) compileFor(n ast.ForStmt, fc *fnCtx) {
	ch := fc.chunk
	if n.Init != nil {
		c.compileStmt(n.Init, fc)
	}
	c.pushLoop(fc)
	condStart := ch.Len()
	var exitPos int
	hasCond := n.Cond != nil
	if hasCond {
		c.compileExpr(n.Cond, fc)
		exitPos = c.emitJump(bytecode.JumpIfFalse, fc)
	}
	c.compileStmts(n.Body, fc)
	postStart := ch.Len()
	if n.Post != nil {
		c.compileStmt(n.Post, fc)
	}
	c.emitJumpTo(bytecode.Jump, fc, condStart)
	endPos := ch.Len()
	if hasCond {
		c.patchJump(fc, exitPos, endPos)
	}
	c.popLoop(fc, endPos, postStart)
}

// compileForIn lowers `for (k in a) body` onto ForInInit/ForInNext
// (spec.md §4.3): the array is snapshotted once at loop entry, so
// mutating a during iteration never changes which keys are visited.
func (c *compiler) compileForIn(n ast.ForInStmt, fc *fnCtx) {
	ch := fc.chunk
	c.emitArrayGet(c.resolveArray(n.Array.Name, fc), fc)
	ch.Emit(bytecode.ForInInit, 0, 0)

	c.pushLoop(fc)
	headerPos := ch.Len()
	ch.Emit(bytecode.ForInNext, 0, 0)
	exitPos := ch.Len()
	ch.EmitArg(0, 0, 0)

	c.compileStoreWithValueOnStack(ast.VarRef{Name: n.Var}, fc)
	ch.Emit(bytecode.Pop, 0, 0)
	c.compileStmts(n.Body, fc)
	c.emitJumpTo(bytecode.Jump, fc, headerPos)

	endPos := ch.Len()
	c.patchJump(fc, exitPos, endPos)
	c.popLoop(fc, endPos, headerPos)
}

// emitJumpTo emits an unconditional (or conditional) jump whose
// target is already known, patching it immediately.
func (c *compiler) emitJumpTo(op bytecode.Op, fc *fnCtx, target int) {
	pos := c.emitJump(op, fc)
	c.patchJump(fc, pos, target)
}

