// Package parser implements a recursive-descent parser producing the
// untyped ast.Program from a lexer.Token stream (spec.md §6.2's
// `parse(tokens, symbolizer) -> Program | Error`). Precedence is
// handled by a cascade of mutually-recursive parseX methods, one per
// precedence level, in the style of the classic AWK grammar rather
// than an operator-precedence table — this keeps each level legible
// on its own and matches how the teacher's own lexer/parser pairing
// reads top to bottom.
package parser

import (
	"goawk-core/internal/ast"
	"goawk-core/internal/errors"
	"goawk-core/internal/lexer"
	"goawk-core/internal/symbol"
)

type Parser struct {
	file     string
	tokens   []lexer.Token
	pos      int
	interner *symbol.Interner

	// noGT suppresses treating a bare '>' as the relational operator
	// while parsing a print/printf argument list, where '>' instead
	// starts a redirection.
	noGT bool
}

// Parse lexes and parses source in one call, attributing errors to
// file.
func Parse(file, source string, interner *symbol.Interner) (prog *ast.Program, err error) {
	toks, err := lexer.NewScanner(file, source).ScanTokens()
	if err != nil {
		return nil, err
	}
	p := &Parser{file: file, tokens: toks, interner: interner}
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*errors.AWKError); ok {
				err = ae
				return
			}
			panic(r)
		}
	}()
	return p.parseProgram(), nil
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	p.skipTerms()
	for !p.check(lexer.EOF) {
		switch {
		case p.match(lexer.BEGIN):
			p.skipNewlines()
			prog.Begin = append(prog.Begin, p.parseBlock()...)
		case p.match(lexer.END):
			p.skipNewlines()
			prog.End = append(prog.End, p.parseBlock()...)
		case p.check(lexer.FUNCTION):
			prog.Functions = append(prog.Functions, p.parseFunction())
		default:
			prog.Rules = append(prog.Rules, p.parseRule())
		}
		p.skipTerms()
	}
	return prog
}

func (p *Parser) parseFunction() *ast.Function {
	p.advance() // FUNCTION
	nameTok := p.expect(lexer.IDENT, lexer.FUNC_NAME)
	fn := &ast.Function{Name: p.interner.Intern(nameTok.Text)}
	p.expect(lexer.LPAREN)
	for !p.check(lexer.RPAREN) {
		t := p.expect(lexer.IDENT)
		fn.Params = append(fn.Params, p.interner.Intern(t.Text))
		if !p.match(lexer.COMMA) {
			break
		}
		p.skipNewlines()
	}
	p.expect(lexer.RPAREN)
	p.skipNewlines()
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseRule() ast.Rule {
	var rule ast.Rule
	if !p.check(lexer.LBRACE) {
		first := p.parseExpr()
		if p.match(lexer.COMMA) {
			p.skipNewlines()
			stop := p.parseExpr()
			rule.Pattern = ast.Pattern{RangeStart: first, RangeStop: stop}
		} else {
			rule.Pattern = ast.Pattern{Expr: first}
		}
	}
	if p.check(lexer.LBRACE) {
		rule.Body = p.parseBlock()
	}
	return rule
}

// --- statements ---

func (p *Parser) parseBlock() []ast.Stmt {
	p.expect(lexer.LBRACE)
	stmts := p.parseStmtList()
	p.expect(lexer.RBRACE)
	return stmts
}

func (p *Parser) parseStmtList() []ast.Stmt {
	var stmts []ast.Stmt
	p.skipTerms()
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		stmts = append(stmts, p.parseStmt())
		p.skipTerms()
	}
	return stmts
}

func (p *Parser) parseStmt() ast.Stmt {
	switch {
	case p.check(lexer.LBRACE):
		return ast.BlockStmt{Body: p.parseBlock()}
	case p.match(lexer.IF):
		return p.parseIf()
	case p.match(lexer.WHILE):
		return p.parseWhile()
	case p.match(lexer.DO):
		return p.parseDoWhile()
	case p.match(lexer.FOR):
		return p.parseFor()
	case p.match(lexer.BREAK):
		return ast.BreakStmt{}
	case p.match(lexer.CONTINUE):
		return ast.ContinueStmt{}
	case p.match(lexer.NEXT):
		return ast.NextStmt{}
	case p.match(lexer.NEXTFILE):
		return ast.NextfileStmt{}
	case p.match(lexer.EXIT):
		var code ast.Expr
		if p.startsExpr() {
			code = p.parseExpr()
		}
		return ast.ExitStmt{Code: code}
	case p.match(lexer.RETURN):
		var v ast.Expr
		if p.startsExpr() {
			v = p.parseExpr()
		}
		return ast.ReturnStmt{Value: v}
	case p.match(lexer.DELETE):
		return p.parseDelete()
	case p.match(lexer.PRINT):
		return p.parsePrint()
	case p.match(lexer.PRINTF):
		return p.parsePrintf()
	case p.match(lexer.SEMI):
		return ast.BlockStmt{}
	default:
		return ast.ExprStmt{X: p.parseExpr()}
	}
}

func (p *Parser) parseIf() ast.Stmt {
	p.expect(lexer.LPAREN)
	cond := p.parseExpr()
	p.expect(lexer.RPAREN)
	p.skipNewlines()
	then := p.parseStmtOrBlock()
	p.skipOptionalTermBeforeElse()
	var els []ast.Stmt
	if p.match(lexer.ELSE) {
		p.skipNewlines()
		els = p.parseStmtOrBlock()
	}
	return ast.IfStmt{Cond: cond, Then: then, Else: els}
}

// skipOptionalTermBeforeElse allows `stmt\nelse` / `stmt; else`.
func (p *Parser) skipOptionalTermBeforeElse() {
	save := p.pos
	p.skipTerms()
	if !p.check(lexer.ELSE) {
		p.pos = save
	}
}

func (p *Parser) parseStmtOrBlock() []ast.Stmt {
	if p.check(lexer.LBRACE) {
		return p.parseBlock()
	}
	return []ast.Stmt{p.parseStmt()}
}

func (p *Parser) parseWhile() ast.Stmt {
	p.expect(lexer.LPAREN)
	cond := p.parseExpr()
	p.expect(lexer.RPAREN)
	p.skipNewlines()
	return ast.WhileStmt{Cond: cond, Body: p.parseStmtOrBlock()}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	p.skipNewlines()
	body := p.parseStmtOrBlock()
	p.skipTerms()
	p.expect(lexer.WHILE)
	p.expect(lexer.LPAREN)
	cond := p.parseExpr()
	p.expect(lexer.RPAREN)
	return ast.DoWhileStmt{Body: body, Cond: cond}
}

func (p *Parser) parseFor() ast.Stmt {
	p.expect(lexer.LPAREN)
	// for (k in a) body
	if p.check(lexer.IDENT) && p.peekAt(1).Type == lexer.IN {
		v := p.advance()
		p.advance() // IN
		arrTok := p.expect(lexer.IDENT)
		p.expect(lexer.RPAREN)
		p.skipNewlines()
		return ast.ForInStmt{
			Var:   p.interner.Intern(v.Text),
			Array: p.interner.Intern(arrTok.Text),
			Body:  p.parseStmtOrBlock(),
		}
	}
	var init ast.Stmt
	if !p.check(lexer.SEMI) {
		init = ast.ExprStmt{X: p.parseExpr()}
	}
	p.expect(lexer.SEMI)
	var cond ast.Expr
	if !p.check(lexer.SEMI) {
		cond = p.parseExpr()
	}
	p.expect(lexer.SEMI)
	var post ast.Stmt
	if !p.check(lexer.RPAREN) {
		post = ast.ExprStmt{X: p.parseExpr()}
	}
	p.expect(lexer.RPAREN)
	p.skipNewlines()
	return ast.ForStmt{Init: init, Cond: cond, Post: post, Body: p.parseStmtOrBlock()}
}

func (p *Parser) parseDelete() ast.Stmt {
	name := p.expect(lexer.IDENT)
	var idx []ast.Expr
	if p.match(lexer.LBRACKET) {
		idx = p.parseExprList(lexer.RBRACKET)
		p.expect(lexer.RBRACKET)
	}
	return ast.DeleteStmt{Array: p.interner.Intern(name.Text), Indices: idx}
}

func (p *Parser) parsePrint() ast.Stmt {
	var args []ast.Expr
	if p.startsExpr() {
		args = p.parsePrintExprList()
	}
	return ast.PrintStmt{Args: args, Redirect: p.parseOptionalRedirect()}
}

func (p *Parser) parsePrintf() ast.Stmt {
	args := p.parsePrintExprList()
	return ast.PrintfStmt{Args: args, Redirect: p.parseOptionalRedirect()}
}

// parsePrintExprList parses a comma-separated expression list for
// print/printf, treating a bare '>' as the start of a redirection
// rather than the greater-than operator.
func (p *Parser) parsePrintExprList() []ast.Expr {
	save := p.noGT
	p.noGT = true
	defer func() { p.noGT = save }()

	var list []ast.Expr
	list = append(list, p.parseTernary())
	for p.match(lexer.COMMA) {
		p.skipNewlines()
		list = append(list, p.parseTernary())
	}
	return list
}

func (p *Parser) parseOptionalRedirect() *ast.Redirect {
	switch {
	case p.match(lexer.GT):
		return &ast.Redirect{Mode: ast.RedirectTruncate, Target: p.parseConcat()}
	case p.match(lexer.APPEND):
		return &ast.Redirect{Mode: ast.RedirectAppend, Target: p.parseConcat()}
	case p.match(lexer.PIPE):
		return &ast.Redirect{Mode: ast.RedirectPipe, Target: p.parseConcat()}
	}
	return nil
}

// --- expressions ---

func (p *Parser) parseExprList(end lexer.TokenType) []ast.Expr {
	var list []ast.Expr
	if p.check(end) {
		return list
	}
	list = append(list, p.parseExpr())
	for p.match(lexer.COMMA) {
		p.skipNewlines()
		list = append(list, p.parseExpr())
	}
	return list
}

func (p *Parser) parseExpr() ast.Expr { return p.parseAssign() }

func (p *Parser) parseAssign() ast.Expr {
	left := p.parseTernary()
	var op ast.AssignOp
	switch {
	case p.match(lexer.ASSIGN):
		op = ast.Assign
	case p.match(lexer.ADD_ASSIGN):
		op = ast.AddAssign
	case p.match(lexer.SUB_ASSIGN):
		op = ast.SubAssign
	case p.match(lexer.MUL_ASSIGN):
		op = ast.MulAssign
	case p.match(lexer.DIV_ASSIGN):
		op = ast.DivAssign
	case p.match(lexer.MOD_ASSIGN):
		op = ast.ModAssign
	case p.match(lexer.POW_ASSIGN):
		op = ast.PowAssign
	default:
		return left
	}
	p.skipNewlines()
	value := p.parseAssign()
	return ast.AssignExpr{Target: left, Op: op, Value: value}
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseOr()
	if p.match(lexer.QUESTION) {
		p.skipNewlines()
		then := p.parseTernary()
		p.skipNewlines()
		p.expect(lexer.COLON)
		p.skipNewlines()
		els := p.parseTernary()
		return ast.TernaryExpr{Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.match(lexer.OR) {
		p.skipNewlines()
		left = ast.LogicalExpr{Op: ast.Or, Left: left, Right: p.parseAnd()}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseIn()
	for p.match(lexer.AND) {
		p.skipNewlines()
		left = ast.LogicalExpr{Op: ast.And, Left: left, Right: p.parseIn()}
	}
	return left
}

func (p *Parser) parseIn() ast.Expr {
	left := p.parseMatch()
	for p.match(lexer.IN) {
		arrTok := p.expect(lexer.IDENT)
		left = ast.InExpr{Indices: []ast.Expr{left}, Array: p.interner.Intern(arrTok.Text)}
	}
	return left
}

func (p *Parser) parseMatch() ast.Expr {
	left := p.parseRel()
	for {
		switch {
		case p.match(lexer.MATCH):
			left = ast.BinaryExpr{Op: ast.Matches, Left: left, Right: p.parseRel()}
		case p.match(lexer.NOTMATCH):
			left = ast.BinaryExpr{Op: ast.NotMatches, Left: left, Right: p.parseRel()}
		default:
			return left
		}
	}
}

func (p *Parser) parseRel() ast.Expr {
	left := p.parseConcat()
	var op ast.BinaryOp
	switch {
	case p.match(lexer.LT):
		op = ast.Lt
	case p.match(lexer.LE):
		op = ast.Le
	case !p.noGT && p.check(lexer.GT):
		p.advance()
		op = ast.Gt
	case p.match(lexer.GE):
		op = ast.Ge
	case p.match(lexer.EQ):
		op = ast.Eq
	case p.match(lexer.NE):
		op = ast.Ne
	default:
		return left
	}
	return ast.BinaryExpr{Op: op, Left: left, Right: p.parseConcat()}
}

func (p *Parser) parseConcat() ast.Expr {
	left := p.parseAdditive()
	for p.startsConcatOperand() {
		left = ast.BinaryExpr{Op: ast.Concat, Left: left, Right: p.parseAdditive()}
	}
	for p.check(lexer.PIPE) && p.peekAt(1).Type == lexer.GETLINE {
		p.advance() // PIPE
		p.advance() // GETLINE
		var v ast.Expr
		if p.check(lexer.IDENT) || p.check(lexer.DOLLAR) {
			v = p.parsePostfix()
		}
		left = ast.GetlineExpr{Var: v, Source: ast.SourcePipe, SourceExpr: left}
	}
	return left
}

// startsConcatOperand reports whether the current token can begin a
// new operand for string concatenation by juxtaposition, e.g. `"a" x`
// or `$1 $2`. It must exclude tokens that would otherwise belong to
// an enclosing construct.
func (p *Parser) startsConcatOperand() bool {
	switch p.peek().Type {
	case lexer.NUMBER, lexer.STRING, lexer.ERE, lexer.IDENT, lexer.FUNC_NAME,
		lexer.DOLLAR, lexer.LPAREN, lexer.NOT, lexer.INCR, lexer.DECR:
		return true
	default:
		return false
	}
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for {
		switch {
		case p.match(lexer.PLUS):
			left = ast.BinaryExpr{Op: ast.Add, Left: left, Right: p.parseMultiplicative()}
		case p.match(lexer.MINUS):
			left = ast.BinaryExpr{Op: ast.Sub, Left: left, Right: p.parseMultiplicative()}
		default:
			return left
		}
	}
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for {
		switch {
		case p.match(lexer.STAR):
			left = ast.BinaryExpr{Op: ast.Mul, Left: left, Right: p.parseUnary()}
		case p.match(lexer.SLASH):
			left = ast.BinaryExpr{Op: ast.Div, Left: left, Right: p.parseUnary()}
		case p.match(lexer.PERCENT):
			left = ast.BinaryExpr{Op: ast.Mod, Left: left, Right: p.parseUnary()}
		default:
			return left
		}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch {
	case p.match(lexer.NOT):
		return ast.UnaryExpr{Op: ast.Not, Operand: p.parseUnary()}
	case p.match(lexer.MINUS):
		return ast.UnaryExpr{Op: ast.Neg, Operand: p.parseUnary()}
	case p.match(lexer.PLUS):
		return ast.UnaryExpr{Op: ast.Pos, Operand: p.parseUnary()}
	default:
		return p.parsePow()
	}
}

func (p *Parser) parsePow() ast.Expr {
	left := p.parsePostfix()
	if p.match(lexer.CARET) {
		right := p.parseUnary() // right-assoc, binds unary minus tighter on rhs
		return ast.BinaryExpr{Op: ast.Pow, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	switch {
	case p.match(lexer.INCR):
		return ast.IncDecExpr{Op: ast.PostIncr, Target: e}
	case p.match(lexer.DECR):
		return ast.IncDecExpr{Op: ast.PostDecr, Target: e}
	}
	return e
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.NUMBER:
		p.advance()
		return ast.NumLit{Value: tok.Num}
	case lexer.STRING:
		p.advance()
		return ast.StrLit{Value: tok.Text}
	case lexer.ERE:
		p.advance()
		return ast.RegexLit{Pattern: tok.Text}
	case lexer.INCR:
		p.advance()
		return ast.IncDecExpr{Op: ast.PreIncr, Target: p.parseUnary()}
	case lexer.DECR:
		p.advance()
		return ast.IncDecExpr{Op: ast.PreDecr, Target: p.parseUnary()}
	case lexer.DOLLAR:
		p.advance()
		return ast.FieldExpr{Index: p.parsePrimaryForField()}
	case lexer.LPAREN:
		p.advance()
		first := p.parseExpr()
		if p.match(lexer.COMMA) {
			indices := []ast.Expr{first}
			p.skipNewlines()
			indices = append(indices, p.parseExpr())
			for p.match(lexer.COMMA) {
				p.skipNewlines()
				indices = append(indices, p.parseExpr())
			}
			p.expect(lexer.RPAREN)
			p.expect(lexer.IN)
			arrTok := p.expect(lexer.IDENT)
			return ast.InExpr{Indices: indices, Array: p.interner.Intern(arrTok.Text)}
		}
		p.expect(lexer.RPAREN)
		return first
	case lexer.GETLINE:
		return p.parseGetline()
	case lexer.FUNC_NAME:
		p.advance()
		return p.parseCall(tok.Text)
	case lexer.IDENT:
		p.advance()
		if p.match(lexer.LBRACKET) {
			indices := p.parseExprList(lexer.RBRACKET)
			p.expect(lexer.RBRACKET)
			return ast.IndexExpr{Array: p.interner.Intern(tok.Text), Indices: indices}
		}
		return ast.VarRef{Name: p.interner.Intern(tok.Text)}
	default:
		panic(errors.NewSyntaxError("unexpected token "+tok.Text, p.file, tok.Line, tok.Column))
	}
}

// parsePrimaryForField parses the operand of `$`, which binds tighter
// than binary operators but still allows `$NF`, `$(expr)`, `$i++`.
func (p *Parser) parsePrimaryForField() ast.Expr {
	switch {
	case p.match(lexer.INCR):
		return ast.IncDecExpr{Op: ast.PreIncr, Target: p.parsePrimaryForField()}
	case p.match(lexer.DECR):
		return ast.IncDecExpr{Op: ast.PreDecr, Target: p.parsePrimaryForField()}
	case p.match(lexer.MINUS):
		return ast.UnaryExpr{Op: ast.Neg, Operand: p.parsePrimaryForField()}
	case p.match(lexer.DOLLAR):
		return ast.FieldExpr{Index: p.parsePrimaryForField()}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseCall(name string) ast.Expr {
	p.expect(lexer.LPAREN)
	args := p.parseExprList(lexer.RPAREN)
	p.expect(lexer.RPAREN)
	return ast.CallExpr{Name: p.interner.Intern(name), Args: args}
}

func (p *Parser) parseGetline() ast.Expr {
	p.advance() // GETLINE
	var v ast.Expr
	if p.check(lexer.IDENT) || p.check(lexer.DOLLAR) {
		v = p.parsePostfix()
	}
	if p.match(lexer.LT) {
		src := p.parseConcat()
		return ast.GetlineExpr{Var: v, Source: ast.SourceFile, SourceExpr: src}
	}
	return ast.GetlineExpr{Var: v, Source: ast.SourceMain}
}

// --- token cursor helpers ---

func (p *Parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) peekAt(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(types ...lexer.TokenType) lexer.Token {
	for _, t := range types {
		if p.check(t) {
			return p.advance()
		}
	}
	tok := p.peek()
	panic(errors.NewSyntaxError("unexpected "+tok.Text, p.file, tok.Line, tok.Column))
}

func (p *Parser) skipNewlines() {
	for p.check(lexer.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) skipTerms() {
	for p.check(lexer.NEWLINE) || p.check(lexer.SEMI) {
		p.advance()
	}
}

// startsExpr reports whether the current token can begin an
// expression, used to decide whether print/exit/return have a
// following operand.
func (p *Parser) startsExpr() bool {
	switch p.peek().Type {
	case lexer.NEWLINE, lexer.SEMI, lexer.RBRACE, lexer.EOF, lexer.GT, lexer.APPEND, lexer.PIPE:
		return false
	default:
		return true
	}
}
