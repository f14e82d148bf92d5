package parser

import (
	"strconv"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/token"
)

// recoverable runs fn and, if it added a new parse error, applies
// the statement-level resume policy: skip to the next statement-opening
// token rather than letting one bad statement cascade into the rest
// of the block.
func (p *Parser) recoverable(fn func() ast.NodeIndex) ast.NodeIndex {
	before := len(p.errors)
	node := fn()
	if len(p.errors) > before {
		p.skipToNextStatement()
	}
	return node
}

// parseStatementList parses statements up to (not including) stop,
// chaining them into the intrusive sibling list and returning its
// head.
func (p *Parser) parseStatementList(stop token.Kind) ast.NodeIndex {
	var stmts []ast.NodeIndex
	for !p.at(stop) && !p.at(token.EOF) {
		stmts = append(stmts, p.parseStatement())
	}
	return p.chain(stmts)
}

// parseBracedOrSingleStatements parses either a `{ Statement* }` block
// or a single bare statement, and returns the chain head directly (no
// wrapping block node) — the shape ast.ConditionalPayload.BodyHead and
// .Else expect, since an else-if chain is just a one-element chain
// whose sole element happens to itself be a Conditional node.
func (p *Parser) parseBracedOrSingleStatements() ast.NodeIndex {
	if p.accept(token.LBrace) {
		head := p.parseStatementList(token.RBrace)
		p.expect(token.RBrace)
		return head
	}
	return p.parseStatement()
}

// parseLoopBody parses a while/for body the same way
// parseBracedOrSingleStatements does, but wraps the result in an
// ast.KindActionBlock node: WhileLoopPayload.Body and
// ForLoopPayload.Body are single node indices, not chain heads.
func (p *Parser) parseLoopBody() ast.NodeIndex {
	head := p.parseBracedOrSingleStatements()
	return p.alloc(ast.KindActionBlock, ast.BlockPayload{First: head})
}

// parseActionBlock parses `do/ Statement* \`, the block shape
// ast.FuncDefPayload.Body requires.
func (p *Parser) parseActionBlock() ast.NodeIndex {
	p.expect(token.DoSlash)
	first := p.parseStatementList(token.Backslash)
	p.expect(token.Backslash)
	return p.alloc(ast.KindActionBlock, ast.BlockPayload{First: first})
}

// parseDeclareBlock parses `declare/ Statement* \`, toggling
// inDeclareBlock for the functions defined inside it (ast.FuncDefPayload.Declared).
func (p *Parser) parseDeclareBlock() ast.NodeIndex {
	p.expect(token.DeclareSlash)
	prev := p.inDeclareBlock
	p.inDeclareBlock = true
	first := p.parseStatementList(token.Backslash)
	p.inDeclareBlock = prev
	p.expect(token.Backslash)
	return p.alloc(ast.KindDeclareBlock, ast.BlockPayload{First: first})
}

func varTypeFromToken(k token.Kind) ast.VarType {
	switch k {
	case token.VarFloat:
		return ast.TypeFloat
	case token.VarString:
		return ast.TypeString
	case token.VarBool:
		return ast.TypeBool
	case token.VarSolid:
		return ast.TypeSolid
	case token.VarInt, token.VarChar, token.Var, token.Const:
		return ast.TypeInt
	}
	return ast.TypeInt
}

// parseVarDefInner parses a typed variable/constant declaration,
// accepting either the bracketed-initializer form (`var.int x [5]`)
// or plain assignment (`var x = 5`); consumeSemi is false inside a
// for-loop's init clause, where the caller owns the terminating
// semicolon.
func (p *Parser) parseVarDefInner(consumeSemi bool) ast.NodeIndex {
	kindTok := p.advance()
	varType := varTypeFromToken(kindTok.Kind)
	nameTok := p.expect(token.Identifier)
	nameOff, nameLen := p.intern(p.tokenText(nameTok))

	init := ast.InvalidNode
	switch {
	case p.accept(token.LBrack):
		init = p.parseExpression()
		p.expect(token.RBrack)
	case p.accept(token.Assign):
		init = p.parseExpression()
	}
	if consumeSemi {
		p.accept(token.Semicolon)
	}
	return p.alloc(ast.KindVarDef, ast.VarDefPayload{
		NameOffset: nameOff, NameLength: nameLen, VarType: varType, Init: init,
	})
}

func (p *Parser) parseVarDef() ast.NodeIndex { return p.parseVarDefInner(true) }

// parseSimpleStatementNoSemicolon parses a for-loop init/post clause:
// either a variable declaration or a bare expression, with no
// terminating semicolon consumed (the for-loop grammar owns those).
func (p *Parser) parseSimpleStatementNoSemicolon() ast.NodeIndex {
	switch p.peek().Kind {
	case token.Var, token.VarInt, token.VarFloat, token.VarString, token.VarBool, token.VarSolid, token.VarChar, token.Const:
		return p.parseVarDefInner(false)
	default:
		return p.parseExpression()
	}
}

func (p *Parser) parseExpressionStatement() ast.NodeIndex {
	expr := p.parseExpression()
	p.accept(token.Semicolon)
	return expr
}

// looksLikeFuncDef implements the `|name|` lookahead rule:
// a pipe-delimited identifier immediately followed by a method-dispatch
// dot, a parameter list, or the function-body opener enters
// function-definition mode; a lone `|expr|` is parenthesization.
func (p *Parser) looksLikeFuncDef() bool {
	if !(p.at(token.Pipe) && p.peekAt(1).Kind == token.Identifier && p.peekAt(2).Kind == token.Pipe) {
		return false
	}
	switch p.peekAt(3).Kind {
	case token.Dot, token.LParen:
		return true
	case token.BlockOpen:
		return true
	case token.Lt:
		// The lexer cannot tell the body-opening `<` from less-than;
		// `|name| <` only opens a function body when a `do/` block
		// actually follows, otherwise `|name|` was parenthesization
		// compared against something.
		return p.peekAt(4).Kind == token.DoSlash
	}
	return false
}

// expectBlockOpen consumes the `<` that opens a function body. The
// lexer emits it as Lt (it has no parser context to classify it as
// BlockOpen), so both kinds are accepted here.
func (p *Parser) expectBlockOpen() {
	if !p.accept(token.BlockOpen) && !p.accept(token.Lt) {
		tok := p.advance()
		p.errorf(tok.Offset, "expected %s, got %s", token.BlockOpen, tok.Kind)
	}
}

func (p *Parser) parseParamList() []ast.NodeIndex {
	p.expect(token.LParen)
	var params []ast.NodeIndex
	for !p.at(token.RParen) && !p.at(token.EOF) {
		tok := p.expect(token.Identifier)
		off, ln := p.intern(p.tokenText(tok))
		params = append(params, p.alloc(ast.KindIdentifier, ast.IdentifierPayload{Offset: off, Length: ln}))
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseFuncDef() ast.NodeIndex {
	p.expect(token.Pipe)
	nameTok := p.expect(token.Identifier)
	p.expect(token.Pipe)
	nameOff, nameLen := p.intern(p.tokenText(nameTok))
	nameIdent := p.alloc(ast.KindIdentifier, ast.IdentifierPayload{Offset: nameOff, Length: nameLen})

	// Optional method-dispatch qualifier (`.name`): parsed and
	// discarded. Blaze lowers every FuncDef to a single plain call
	// target; dispatch-shaped sugar doesn't reach codegen, the same
	// treatment solid numbers and timing ops get.
	for p.accept(token.Dot) {
		p.advance()
	}

	var params []ast.NodeIndex
	for p.at(token.LParen) {
		params = append(params, p.parseParamList()...)
	}
	paramHead := p.chain(params)

	p.expectBlockOpen()
	body := p.parseActionBlock()
	p.expect(token.BlockEnd)

	return p.alloc(ast.KindFuncDef, ast.FuncDefPayload{
		Body: body, ParamHead: paramHead, Declared: p.inDeclareBlock, NameIdent: nameIdent,
	})
}

func (p *Parser) parseIf() ast.NodeIndex {
	opTok := p.advance()
	p.expect(token.LParen)
	cond := p.parseExpression()
	p.expect(token.RParen)
	body := p.parseBracedOrSingleStatements()

	elseIdx := ast.InvalidNode
	if p.accept(token.Else) {
		if p.at(token.If) {
			elseIdx = p.parseIf()
		} else {
			elseIdx = p.parseBracedOrSingleStatements()
		}
	}
	return p.alloc(ast.KindConditional, ast.ConditionalPayload{Op: opTok.Kind, Cond: cond, BodyHead: body, Else: elseIdx})
}

// parseShortConditional handles the f.if/f.whl/f.ens/f.chk/f.try/f.grd/
// f.unl/f.unt/f.ver/f.msr forms. The language assigns these no
// semantics distinct from a plain guard, so each is parsed as a plain
// guard (condition + body, no else) tagged with its own operator so a
// future pass could special-case one without touching the others.
func (p *Parser) parseShortConditional() ast.NodeIndex {
	opTok := p.advance()
	p.expect(token.LParen)
	cond := p.parseExpression()
	p.expect(token.RParen)
	body := p.parseBracedOrSingleStatements()
	return p.alloc(ast.KindConditional, ast.ConditionalPayload{Op: opTok.Kind, Cond: cond, BodyHead: body, Else: ast.InvalidNode})
}

func (p *Parser) parseWhile() ast.NodeIndex {
	p.expect(token.While)
	p.expect(token.LParen)
	cond := p.parseExpression()
	p.expect(token.RParen)
	body := p.parseLoopBody()
	return p.alloc(ast.KindWhileLoop, ast.WhileLoopPayload{Cond: cond, Body: body})
}

func (p *Parser) parseFor() ast.NodeIndex {
	p.expect(token.For)
	p.expect(token.LParen)

	init := ast.InvalidNode
	if !p.at(token.Semicolon) {
		init = p.parseSimpleStatementNoSemicolon()
	}
	p.expect(token.Semicolon)

	cond := ast.InvalidNode
	if !p.at(token.Semicolon) {
		cond = p.parseExpression()
	}
	p.expect(token.Semicolon)

	post := ast.InvalidNode
	if !p.at(token.RParen) {
		post = p.parseSimpleStatementNoSemicolon()
	}
	p.expect(token.RParen)

	body := p.parseLoopBody()
	return p.alloc(ast.KindForLoop, ast.ForLoopPayload{Init: init, Cond: cond, Post: post, Body: body})
}

// atReturnTerminator reports whether the next token may follow a bare
// `return` with no expression.
func (p *Parser) atReturnTerminator() bool {
	return p.at(token.Semicolon) || p.at(token.EOF) || p.at(token.RBrace) ||
		p.at(token.Backslash) || p.at(token.BlockEnd) || isStatementStart(p.peek().Kind)
}

func (p *Parser) parseReturn() ast.NodeIndex {
	p.expect(token.Return)
	expr := ast.InvalidNode
	if !p.atReturnTerminator() {
		expr = p.parseExpression()
	}
	p.accept(token.Semicolon)
	return p.alloc(ast.KindReturn, ast.ReturnPayload{Expr: expr})
}

func (p *Parser) parseBreak() ast.NodeIndex {
	p.expect(token.Break)
	p.accept(token.Semicolon)
	return p.alloc(ast.KindBreak, ast.BreakPayload{Expr: ast.InvalidNode})
}

func (p *Parser) parseContinue() ast.NodeIndex {
	p.expect(token.Continue)
	p.accept(token.Semicolon)
	return p.alloc(ast.KindContinue, ast.ContinuePayload{Expr: ast.InvalidNode})
}

func outputKindFromToken(k token.Kind) ast.OutputKind {
	switch k {
	case token.Txt:
		return ast.OutputTxt
	case token.Out:
		return ast.OutputOut
	case token.Fmt:
		return ast.OutputFmt
	case token.Dyn:
		return ast.OutputDyn
	}
	return ast.OutputPrint
}

// parseOutput parses a print/txt/out/fmt/dyn statement, including its
// comma-separated content list, building the Next-chained list of
// Output nodes right-to-left so the returned head is the first one.
func (p *Parser) parseOutput() ast.NodeIndex {
	kindTok := p.advance()
	kind := outputKindFromToken(kindTok.Kind)

	var contents []ast.NodeIndex
	contents = append(contents, p.parseExpression())
	for p.accept(token.Comma) {
		contents = append(contents, p.parseExpression())
	}
	p.accept(token.Semicolon)

	next := ast.InvalidNode
	var head ast.NodeIndex
	for i := len(contents) - 1; i >= 0; i-- {
		node := p.alloc(ast.KindOutput, ast.OutputPayload{Kind: kind, Content: contents[i], Next: next})
		next = node
		head = node
	}
	return head
}

func timingKindFromToken(k token.Kind) ast.TimingKind {
	switch k {
	case token.TimingInto:
		return ast.TimingInto
	case token.TimingBoth:
		return ast.TimingBoth
	case token.TimingBefore:
		return ast.TimingBefore
	case token.TimingAfter:
		return ast.TimingAfter
	}
	return ast.TimingOnto
}

// parseTimingOp parses `onto(expr)`, `into(expr)`, ... with an
// optional signed bracketed offset, e.g. `before(x)[-2]`. Concrete
// surface syntax for this family is otherwise open; the chosen shape
// is recorded in DESIGN.md.
func (p *Parser) parseTimingOp() ast.NodeIndex {
	kindTok := p.advance()
	kind := timingKindFromToken(kindTok.Kind)
	p.expect(token.LParen)
	expr := p.parseExpression()
	p.expect(token.RParen)

	var offset int32
	if p.accept(token.LBrack) {
		neg := p.accept(token.Minus)
		numTok := p.expect(token.Number)
		v, _ := strconv.ParseInt(p.tokenText(numTok), 10, 32)
		if neg {
			v = -v
		}
		offset = int32(v)
		p.expect(token.RBrack)
	}
	p.accept(token.Semicolon)
	return p.alloc(ast.KindTimingOp, ast.TimingOpPayload{Kind: kind, Expr: expr, Offset: offset})
}

// parseInlineAsm parses `asm "raw instruction text"`: the lexer hands
// the raw body through as an ordinary String token, so InlineAsmPayload
// mirrors StringPayload exactly, raw escapes and all.
func (p *Parser) parseInlineAsm() ast.NodeIndex {
	p.expect(token.Asm)
	strTok := p.expect(token.String)
	off, ln := p.intern(p.stringLiteralText(strTok))
	p.accept(token.Semicolon)
	return p.alloc(ast.KindInlineAsm, ast.InlineAsmPayload{Offset: off, Length: ln})
}

func (p *Parser) parseArray4dDef() ast.NodeIndex {
	p.expect(token.Array4D)
	nameTok := p.expect(token.Identifier)
	off, ln := p.intern(p.tokenText(nameTok))
	dims := p.parseFourDims()
	p.accept(token.Semicolon)
	return p.alloc(ast.KindArray4dDef, ast.Array4dDefPayload{NameOffset: off, NameLength: ln, Dims: dims})
}

// parseFourDims parses the mandatory `[d1,d2,d3,d4]` dimension list
// shared by array.4d definitions and accesses.
func (p *Parser) parseFourDims() [4]ast.NodeIndex {
	var dims [4]ast.NodeIndex
	p.expect(token.LBrack)
	for i := 0; i < 4; i++ {
		dims[i] = p.parseExpression()
		if i < 3 {
			p.expect(token.Comma)
		}
	}
	p.expect(token.RBrack)
	return dims
}

func (p *Parser) setCaseNext(idx, next ast.NodeIndex) {
	n := p.pool.Get(idx)
	cp := n.Payload.(ast.CasePayload)
	cp.Next = next
	p.pool.SetPayload(idx, cp)
}

func (p *Parser) parseCaseBody() ast.NodeIndex {
	var stmts []ast.NodeIndex
	for !p.match(token.Case, token.Default, token.RBrace) && !p.at(token.EOF) {
		stmts = append(stmts, p.parseStatement())
	}
	return p.chain(stmts)
}

func (p *Parser) parseCase() ast.NodeIndex {
	p.expect(token.Case)
	value := p.parseExpression()
	p.expect(token.Colon)
	body := p.parseCaseBody()
	return p.alloc(ast.KindCase, ast.CasePayload{Value: value, ActionHead: body, Next: ast.InvalidNode})
}

func (p *Parser) parseDefault() ast.NodeIndex {
	p.expect(token.Default)
	p.expect(token.Colon)
	body := p.parseCaseBody()
	return p.alloc(ast.KindDefault, ast.DefaultPayload{ActionHead: body})
}

func (p *Parser) parseSwitch() ast.NodeIndex {
	p.expect(token.Switch)
	p.expect(token.LParen)
	value := p.parseExpression()
	p.expect(token.RParen)
	p.expect(token.LBrace)

	var cases []ast.NodeIndex
	defaultIdx := ast.InvalidNode
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		switch p.peek().Kind {
		case token.Case:
			cases = append(cases, p.parseCase())
		case token.Default:
			defaultIdx = p.parseDefault()
		default:
			tok := p.advance()
			p.errorf(tok.Offset, "expected case or default in switch body, got %s", tok.Kind)
		}
	}
	p.expect(token.RBrace)

	for i := 0; i+1 < len(cases); i++ {
		p.setCaseNext(cases[i], cases[i+1])
		p.pool.SetSibling(cases[i], cases[i+1])
	}
	first := ast.InvalidNode
	if len(cases) > 0 {
		first = cases[0]
	}
	return p.alloc(ast.KindSwitch, ast.SwitchPayload{Value: value, FirstCase: first, Default: defaultIdx})
}

// parseInCase parses a standalone `incase: { Statement* }` block.
// ast.InCasePayload carries no Next field (unlike ast.CasePayload), so
// it cannot participate in a switch's case chain the way Case/Default
// do — it's a freestanding statement, lowered to an unconditional
// nested block.
func (p *Parser) parseInCase() ast.NodeIndex {
	p.expect(token.InCase)
	p.expect(token.Colon)
	p.expect(token.LBrace)
	head := p.parseStatementList(token.RBrace)
	p.expect(token.RBrace)
	return p.alloc(ast.KindInCase, ast.InCasePayload{ActionHead: head})
}

// parseStatement dispatches on the next token's kind to the matching
// statement production, falling back to a bare expression statement
// (covers assignment and bare function calls) for anything else.
func (p *Parser) parseStatement() ast.NodeIndex {
	switch p.peek().Kind {
	case token.Var, token.VarInt, token.VarFloat, token.VarString, token.VarBool, token.VarSolid, token.VarChar, token.Const:
		return p.recoverable(p.parseVarDef)
	case token.DeclareSlash:
		return p.recoverable(p.parseDeclareBlock)
	case token.DoSlash:
		return p.recoverable(p.parseActionBlock)
	case token.Pipe:
		if p.looksLikeFuncDef() {
			return p.recoverable(p.parseFuncDef)
		}
	case token.If:
		return p.recoverable(p.parseIf)
	case token.ShortIf, token.ShortWhl, token.ShortEns, token.ShortChk, token.ShortTry,
		token.ShortGrd, token.ShortUnl, token.ShortUnt, token.ShortVer, token.ShortMsr:
		return p.recoverable(p.parseShortConditional)
	case token.While:
		return p.recoverable(p.parseWhile)
	case token.For:
		return p.recoverable(p.parseFor)
	case token.Return:
		return p.recoverable(p.parseReturn)
	case token.Break:
		return p.recoverable(p.parseBreak)
	case token.Continue:
		return p.recoverable(p.parseContinue)
	case token.Print, token.Txt, token.Out, token.Fmt, token.Dyn:
		return p.recoverable(p.parseOutput)
	case token.Switch:
		return p.recoverable(p.parseSwitch)
	case token.InCase:
		return p.recoverable(p.parseInCase)
	case token.Asm:
		return p.recoverable(p.parseInlineAsm)
	case token.Array4D:
		return p.recoverable(p.parseArray4dDef)
	case token.TimingOnto, token.TimingInto, token.TimingBoth, token.TimingBefore, token.TimingAfter:
		return p.recoverable(p.parseTimingOp)
	}
	return p.recoverable(p.parseExpressionStatement)
}
