package parser

import (
	"strconv"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/token"
)

// precedenceOf is the 8-level binary operator table. Level 7 (**) and level 1 (assignment, ternary) are right-associative;
// everything else is left-associative.
func precedenceOf(k token.Kind) (level int, rightAssoc bool, ok bool) {
	switch k {
	case token.StarStar:
		return 7, true, true
	case token.Star, token.Slash, token.Percent:
		return 6, false, true
	case token.Plus, token.Minus:
		return 5, false, true
	case token.Lt, token.Gt, token.Leq, token.Geq, token.Shl, token.Shr:
		return 4, false, true
	case token.EqEq, token.NotEq, token.Amp, token.Caret, token.Pipe,
		token.BlazeCmpGt, token.BlazeCmpLt, token.BlazeCmpEq, token.BlazeCmpNeq:
		return 3, false, true
	case token.AndAnd:
		return 2, false, true
	case token.OrOr, token.Assign, token.PlusAssign, token.MinusAssign,
		token.StarAssign, token.SlashAssign, token.PercentAssign, token.StarStarAssign,
		token.Question:
		return 1, true, true
	}
	return 0, false, false
}

func (p *Parser) parseExpression() ast.NodeIndex {
	return p.parseBinary(1)
}

// parseBinary is the precedence-climbing recursion: parse a unary
// operand, then
// repeatedly fold in operators at or above minPrec, recursing one
// level deeper (or at the same level, for right-associative operators)
// to parse each right-hand operand.
func (p *Parser) parseBinary(minPrec int) ast.NodeIndex {
	left := p.parseUnary()
	for {
		tok := p.peek()
		if tok.Kind == token.Pipe && p.inPipeGroup {
			// Inside `|expr|` parenthesization the next pipe closes
			// the group; it is never bitwise-or there.
			return left
		}
		if tok.Kind == token.Pipe && p.looksLikeFuncDef() {
			// `|name|` followed by a dispatch dot, a parameter list or
			// the body opener starts the next statement's function
			// definition; it is never bitwise-or.
			return left
		}
		level, rightAssoc, ok := precedenceOf(tok.Kind)
		if !ok || level < minPrec {
			return left
		}
		if tok.Kind == token.Question {
			left = p.parseTernary(left)
			continue
		}
		p.advance()
		nextMin := level + 1
		if rightAssoc {
			nextMin = level
		}
		right := p.parseBinary(nextMin)
		left = p.buildBinary(tok.Kind, left, right)
	}
}

// parseTernary parses the `? then : else` tail of a level-1 ternary,
// given its already-parsed condition.
func (p *Parser) parseTernary(cond ast.NodeIndex) ast.NodeIndex {
	p.expect(token.Question)
	thenExpr := p.parseExpression()
	p.expect(token.Colon)
	elseExpr := p.parseBinary(1)
	return p.alloc(ast.KindTernary, ast.TernaryPayload{Cond: cond, Then: thenExpr, Else: elseExpr})
}

// buildBinary lowers a compound-assignment operator to
// Assign(Left, BinaryOp(baseOp, Left, Right)) — the same
// lower-to-a-simpler-primitive treatment unary minus gets in codegen,
// and otherwise allocates a plain BinaryOp node, which also covers
// plain `=` (codegen's assignment case switches on Op == token.Assign).
func (p *Parser) buildBinary(op token.Kind, left, right ast.NodeIndex) ast.NodeIndex {
	switch op {
	case token.PlusAssign:
		return p.desugarCompoundAssign(token.Plus, left, right)
	case token.MinusAssign:
		return p.desugarCompoundAssign(token.Minus, left, right)
	case token.StarAssign:
		return p.desugarCompoundAssign(token.Star, left, right)
	case token.SlashAssign:
		return p.desugarCompoundAssign(token.Slash, left, right)
	case token.PercentAssign:
		return p.desugarCompoundAssign(token.Percent, left, right)
	case token.StarStarAssign:
		return p.desugarCompoundAssign(token.StarStar, left, right)
	}
	return p.alloc(ast.KindBinaryOp, ast.BinaryOpPayload{Op: op, Left: left, Right: right})
}

func (p *Parser) desugarCompoundAssign(baseOp token.Kind, left, right ast.NodeIndex) ast.NodeIndex {
	sum := p.alloc(ast.KindBinaryOp, ast.BinaryOpPayload{Op: baseOp, Left: left, Right: right})
	return p.alloc(ast.KindBinaryOp, ast.BinaryOpPayload{Op: token.Assign, Left: left, Right: sum})
}

// parseUnary handles the tightest-binding prefix operators (-, !, ~),
// which bind tighter than any binary operator in the table, before falling through to postfix handling.
func (p *Parser) parseUnary() ast.NodeIndex {
	if p.match(token.Minus, token.Not, token.Tilde) {
		op := p.advance()
		operand := p.parseUnary()
		return p.alloc(ast.KindUnaryOp, ast.UnaryOpPayload{Op: op.Kind, Operand: operand})
	}
	return p.parsePostfix()
}

// parsePostfix lowers x++ / x-- to Assign(x, BinaryOp(+/-, x, 1)),
// the same compound-assignment shape buildBinary produces, so codegen
// only needs one assignment code path.
func (p *Parser) parsePostfix() ast.NodeIndex {
	node := p.parsePrimary()
	for p.match(token.Inc, token.Dec) {
		op := p.advance()
		delta := token.Plus
		if op.Kind == token.Dec {
			delta = token.Minus
		}
		one := p.alloc(ast.KindNumber, ast.NumberPayload{Value: 1})
		sum := p.alloc(ast.KindBinaryOp, ast.BinaryOpPayload{Op: delta, Left: node, Right: one})
		node = p.alloc(ast.KindBinaryOp, ast.BinaryOpPayload{Op: token.Assign, Left: node, Right: sum})
	}
	return node
}

func (p *Parser) parsePrimary() ast.NodeIndex {
	tok := p.peek()
	switch tok.Kind {
	case token.Number:
		p.advance()
		v, err := strconv.ParseInt(p.tokenText(tok), 10, 64)
		if err != nil {
			p.errorf(tok.Offset, "malformed integer literal %q", p.tokenText(tok))
		}
		return p.alloc(ast.KindNumber, ast.NumberPayload{Value: v})

	case token.Float:
		p.advance()
		v, err := strconv.ParseFloat(p.tokenText(tok), 64)
		if err != nil {
			p.errorf(tok.Offset, "malformed float literal %q", p.tokenText(tok))
		}
		return p.alloc(ast.KindFloat, ast.FloatPayload{Value: v})

	case token.True:
		p.advance()
		return p.alloc(ast.KindBool, ast.BoolPayload{Value: true})

	case token.False:
		p.advance()
		return p.alloc(ast.KindBool, ast.BoolPayload{Value: false})

	case token.String:
		p.advance()
		// Escapes stay undecoded here: the lexer deliberately leaves
		// them raw, and codegen.decodeStringLiteral resolves them at
		// embed time (internal/codegen/strings.go), so the string
		// pool holds exactly what the source byte span contains.
		off, ln := p.intern(p.stringLiteralText(tok))
		return p.alloc(ast.KindString, ast.StringPayload{Offset: off, Length: ln})

	case token.SolidNumber:
		p.advance()
		return p.parseSolidLiteral(tok)

	case token.Identifier:
		return p.parseIdentifierOrCall()

	case token.Pipe:
		p.advance()
		prev := p.inPipeGroup
		p.inPipeGroup = true
		inner := p.parseExpression()
		p.inPipeGroup = prev
		p.expect(token.Pipe)
		return inner

	case token.LParen:
		p.advance()
		prev := p.inPipeGroup
		p.inPipeGroup = false
		inner := p.parseExpression()
		p.inPipeGroup = prev
		p.expect(token.RParen)
		return inner

	case token.LBrack:
		p.advance()
		prev := p.inPipeGroup
		p.inPipeGroup = false
		inner := p.parseExpression()
		p.inPipeGroup = prev
		p.expect(token.RBrack)
		return inner
	}

	p.errorf(tok.Offset, "unexpected token in expression: %s", tok.Kind)
	p.advance()
	return p.alloc(ast.KindNumber, ast.NumberPayload{Value: 0})
}

// parseIdentifierOrCall disambiguates a bare identifier from a call
// (name immediately followed by `(`) and an array.4d access (name
// immediately followed by `[`).
func (p *Parser) parseIdentifierOrCall() ast.NodeIndex {
	tok := p.advance()
	off, ln := p.intern(p.tokenText(tok))

	if p.at(token.LParen) {
		callee := p.alloc(ast.KindIdentifier, ast.IdentifierPayload{Offset: off, Length: ln})
		args := p.parseArgList()
		return p.alloc(ast.KindFuncCall, ast.FuncCallPayload{Callee: callee, ArgHead: p.chain(args)})
	}
	if p.at(token.LBrack) {
		dims := p.parseFourDims()
		return p.alloc(ast.KindArray4dAccess, ast.Array4dAccessPayload{NameOffset: off, NameLength: ln, Dims: dims})
	}
	return p.alloc(ast.KindIdentifier, ast.IdentifierPayload{Offset: off, Length: ln})
}

func (p *Parser) parseArgList() []ast.NodeIndex {
	p.expect(token.LParen)
	prev := p.inPipeGroup
	p.inPipeGroup = false
	defer func() { p.inPipeGroup = prev }()
	var args []ast.NodeIndex
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpression())
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return args
}

// parseSolidLiteral interns the literal's raw digit span as its known
// value and leaves the barrier/confidence/terminal fields at their
// zero value: a bare SolidNumber token carries no further structure
// for the lexer to have split out, and solid numbers are parsed-and-
// resolved but never lowered by codegen regardless.
func (p *Parser) parseSolidLiteral(tok token.Token) ast.NodeIndex {
	off, ln := p.intern(p.tokenText(tok))
	return p.alloc(ast.KindSolid, ast.SolidPayload{KnownOffset: off, KnownLength: ln})
}
