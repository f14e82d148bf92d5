// Package parser implements Blaze's recursive-descent, precedence-
// climbing parser: token stream + source text in,
// either a root ast.NodeIndex or a set of parse errors out, with every
// allocated node and interned string landing in the shared ast.Pool /
// ast.StringPool.
//
// The parser is a local value owned by whoever calls Parse — there is
// no module-level parser singleton.
package parser

import (
	"fmt"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/token"
)

// Error is a parse-stage diagnostic carrying a source byte offset.
// It is always recoverable: the driver's line
// resumption is implemented by skipToNextStatement, not by aborting.
type Error struct {
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Msg)
}

// fatalAbort unwinds the whole parse in one step when a pool or string
// pool allocation is exhausted. Panic/recover confined to Parse's own stack
// frame mirrors the pattern ast.Pool.Get already uses for
// can't-happen-except-as-a-bug conditions, scaled up to a condition
// that legitimately can happen on attacker- or fuzzer-sized input.
type fatalAbort struct{ err error }

// Parser holds the single mutable cursor over the token stream, the
// declare-block flag, and the two pools every allocation lands in.
type Parser struct {
	tokens []token.Token
	src    []byte
	pos    int

	pool *ast.Pool
	strs *ast.StringPool

	inDeclareBlock bool
	// inPipeGroup suppresses Pipe as a binary operator while parsing
	// the inside of a `|expr|` parenthesization, where the next pipe
	// closes the group instead.
	inPipeGroup bool
	errors      []*Error
}

// New returns a Parser over tokens (always ending in a token.EOF
// sentinel per internal/lexer's contract), with src kept only so
// identifier/string/number literal text can be sliced out of it.
func New(tokens []token.Token, src []byte, pool *ast.Pool, strs *ast.StringPool) *Parser {
	return &Parser{tokens: tokens, src: src, pool: pool, strs: strs}
}

// Parse parses the complete token stream into a Program rooted at
// ast.NodeIndex 0 (index 0 is pre-reserved by ast.NewPool for exactly
// this purpose; see ast.Pool.SetPayload). It returns every recoverable
// parse error found, and a non-nil fatal error if a pool was
// exhausted — in which case no partial AST should be trusted or acted
// upon: a failed compilation must never produce an output file.
func Parse(tokens []token.Token, src []byte, pool *ast.Pool, strs *ast.StringPool) (root ast.NodeIndex, errs []*Error, fatal error) {
	p := New(tokens, src, pool, strs)
	defer func() {
		if r := recover(); r != nil {
			if fa, ok := r.(fatalAbort); ok {
				fatal = fa.err
				return
			}
			panic(r)
		}
	}()
	first := p.parseStatementList(token.EOF)
	p.pool.SetPayload(ast.NodeIndex(0), ast.BlockPayload{First: first})
	return ast.NodeIndex(0), p.errors, nil
}

// === token cursor ===

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF, Offset: len(p.src)}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return token.Token{Kind: token.EOF, Offset: len(p.src)}
	}
	return p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) at(kind token.Kind) bool { return p.peek().Kind == kind }

func (p *Parser) match(kinds ...token.Kind) bool {
	k := p.peek().Kind
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// accept consumes and returns true if the next token is kind.
func (p *Parser) accept(kind token.Kind) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	return false
}

// expect consumes and returns the next token, recording a recoverable
// parse error if its kind doesn't match (the mismatched token is still
// returned) — it never stalls the cursor, so a missing
// token can never wedge the parser into an infinite loop.
func (p *Parser) expect(kind token.Kind) token.Token {
	tok := p.advance()
	if tok.Kind != kind {
		p.errorf(tok.Offset, "expected %s, got %s", kind, tok.Kind)
	}
	return tok
}

func (p *Parser) errorf(offset int, format string, args ...any) {
	p.errors = append(p.errors, &Error{Offset: offset, Msg: fmt.Sprintf(format, args...)})
}

// tokenText slices the raw source text of tok.
func (p *Parser) tokenText(tok token.Token) string {
	end := tok.Offset + tok.Length
	if end > len(p.src) {
		end = len(p.src)
	}
	if tok.Offset > end {
		return ""
	}
	return string(p.src[tok.Offset:end])
}

// stringLiteralText returns a String token's text with its surrounding
// quote characters stripped. The lexer's scanString spans the opening
// quote through the closing one inclusive, so every caller that interns
// a string literal's body (as opposed to its full token span) needs
// this instead of tokenText — escapes stay raw, only the quotes go.
func (p *Parser) stringLiteralText(tok token.Token) string {
	s := p.tokenText(tok)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// === pool allocation (fatal on exhaustion) ===

func (p *Parser) alloc(kind ast.Kind, payload ast.Payload) ast.NodeIndex {
	idx, err := p.pool.Alloc(kind, payload)
	if err != nil {
		panic(fatalAbort{err})
	}
	return idx
}

func (p *Parser) intern(s string) (uint32, uint32) {
	return p.strs.Put(s)
}

// chain links a strictly-increasing list of statement/child indices
// into the intrusive sibling list, skipping
// ast.InvalidNode entries a sub-parse may have produced on error
// recovery, and returns the head (ast.InvalidNode if the list is
// empty).
func (p *Parser) chain(nodes []ast.NodeIndex) ast.NodeIndex {
	var head, prev ast.NodeIndex
	for _, n := range nodes {
		if n == ast.InvalidNode {
			continue
		}
		if head == ast.InvalidNode {
			head = n
		} else {
			p.pool.SetSibling(prev, n)
		}
		prev = n
	}
	return head
}

// skipToNextStatement implements the parser's error recovery: on a
// parse error, skip to end-of-line-equivalent (here: the next
// statement-opening token or a Semicolon) and try to resume there,
// rather than aborting the whole parse over one bad statement.
func (p *Parser) skipToNextStatement() {
	for !p.at(token.EOF) {
		if p.accept(token.Semicolon) {
			return
		}
		if isStatementStart(p.peek().Kind) {
			return
		}
		p.advance()
	}
}

func isStatementStart(k token.Kind) bool {
	switch k {
	case token.Var, token.VarInt, token.VarFloat, token.VarString, token.VarBool,
		token.VarSolid, token.VarChar, token.Const,
		token.If, token.While, token.For, token.Return, token.Break, token.Continue,
		token.Switch, token.InCase, token.Print, token.Txt, token.Out, token.Fmt, token.Dyn,
		token.DoSlash, token.DeclareSlash, token.Asm, token.Array4D, token.Pipe,
		token.ShortIf, token.ShortWhl, token.ShortEns, token.ShortChk, token.ShortTry,
		token.ShortGrd, token.ShortUnl, token.ShortUnt, token.ShortVer, token.ShortMsr,
		token.TimingOnto, token.TimingInto, token.TimingBoth, token.TimingBefore, token.TimingAfter:
		return true
	}
	return false
}
