package codegen

import (
	"github.com/samber/lo"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/symbols"
)

// ImportFixup records a `mov reg, [rip+disp32]` emitted for a Windows
// IAT call: Offset is the disp32 field's position in
// the finished code, Name is the kernel32 export it must resolve to.
// internal/binary patches these once it knows the .idata layout.
type ImportFixup struct {
	Offset int
	Name   string
}

// EmbeddedString is one inline string literal codegen wrote directly
// into the code buffer. Kept in Result for tests that assert no
// duplicate literal gets embedded twice; the --dump-* diagnostics do
// not read it.
type EmbeddedString struct {
	Offset int
	Length int
	Text   string
}

// Result is everything internal/binary needs to package a finished
// compilation as an ELF64 or PE32+ file.
type Result struct {
	Code         []byte
	Platform     Platform
	ImportFixups []ImportFixup
	Strings      []EmbeddedString
}

// Generator walks a resolved AST and emits x86-64 machine code.
// It owns the code buffer, the running stack-slot
// allocator, and the fixups the binary emitter must finish.
type Generator struct {
	buf   *Buffer
	pool  *ast.Pool
	strs  *ast.StringPool
	syms  *symbols.Table

	stringMap    map[string]EmbeddedString
	stringOrder  []string
	importFixups []ImportFixup

	// funcEntry maps a FuncDef node to the code offset of its first
	// instruction (the `push rbp` that opens its prologue — the correct
	// `call rel32` target, since CALL itself pushes the return address
	// the prologue's frame layout assumes is already there), filled in
	// once that FuncDef has been emitted.
	funcEntry map[ast.NodeIndex]int
	// pendingCalls records a `call rel32` fixup awaiting a callee whose
	// FuncDef hasn't been emitted yet (Blaze allows forward calls to
	// declare/-block functions, and ordinary same-scope forward calls
	// the resolver tolerated).
	pendingCalls []pendingCall

	// localOffset is the magnitude of the last allocated rbp-relative
	// stack slot (kept positive; LoadLocal/StoreLocal apply the sign),
	// tracked per function; it resets to 0 on entering a new frame.
	localOffset int

	// scope is the current name-binding scope, replaying the same
	// push/declare/pop structure the resolver walked over the same
	// tree (see env.go's doc comment).
	scope *genScope

	debug      bool
	debugLines []string
}

type pendingCall struct {
	target      ast.NodeIndex
	patchOffset int
}

// NewGenerator returns a Generator targeting platform, consuming pool
// as resolved by syms.
func NewGenerator(pool *ast.Pool, strs *ast.StringPool, syms *symbols.Table, platform Platform) *Generator {
	return &Generator{
		buf:       NewBuffer(platform),
		pool:      pool,
		strs:      strs,
		syms:      syms,
		stringMap: make(map[string]EmbeddedString),
		funcEntry: make(map[ast.NodeIndex]int),
		scope:     newGenScope(nil),
	}
}

// SetDebug enables stderr-trace-style debug bookkeeping.
func (g *Generator) SetDebug(on bool) { g.debug = on }

// DebugLines returns the accumulated per-phase debug lines, if SetDebug(true).
func (g *Generator) DebugLines() []string { return g.debugLines }

func (g *Generator) trace(line string) {
	if g.debug {
		g.debugLines = append(g.debugLines, line)
	}
}

// Generate emits code for the whole program rooted at root and returns
// the finished Result, or a *CodegenError.
func (g *Generator) Generate(root ast.NodeIndex) (*Result, error) {
	g.trace("codegen: start")
	g.buf.PushRBP()
	g.buf.MovRBPRSP()
	g.localOffset = 0

	n := g.pool.Get(root)
	body, ok := n.Payload.(ast.BlockPayload)
	if !ok {
		return nil, &CodegenError{Kind: ErrUnsupportedOperand, Detail: "program root is not a block"}
	}
	g.pushScope()
	for _, stmt := range g.pool.Siblings(body.First) {
		if err := g.genStmt(stmt); err != nil {
			return nil, err
		}
	}
	g.popScope()

	if err := g.resolvePendingCalls(); err != nil {
		return nil, err
	}

	g.emitExit(0)
	g.trace("codegen: done")

	strs := lo.Map(g.stringOrder, func(text string, _ int) EmbeddedString {
		return g.stringMap[text]
	})
	return &Result{
		Code:         g.buf.Bytes(),
		Platform:     g.buf.Platform(),
		ImportFixups: g.importFixups,
		Strings:      strs,
	}, nil
}

func (g *Generator) resolvePendingCalls() error {
	for _, pc := range g.pendingCalls {
		entry, ok := g.funcEntry[pc.target]
		if !ok {
			return &CodegenError{Kind: ErrUndefinedSymbol, Detail: "function never emitted"}
		}
		g.buf.PatchRel32(pc.patchOffset, entry)
	}
	return nil
}

// allocLocal reserves the next 8-byte stack slot and returns its
// rbp-relative offset (positive magnitude; callers pass it to
// LoadLocal/StoreLocal which apply the sign), growing the frame
// on demand rather than pre-computing a total size up front — safe
// because expression temporaries are managed via push/pop against
// RSP and never reference RBP.
func (g *Generator) allocLocal() int {
	g.localOffset += 8
	g.buf.SubRSPImm32(8)
	return g.localOffset
}
