package codegen

import "goblaze.dev/blazec/internal/ast"

// genStmt emits code for one statement node, dispatching on its
// payload type the same way genExpr does.
func (g *Generator) genStmt(idx ast.NodeIndex) error {
	n := g.pool.Get(idx)
	switch p := n.Payload.(type) {
	case ast.BlockPayload:
		g.pushScope()
		defer g.popScope()
		return g.genStmtChain(p.First)

	case ast.VarDefPayload:
		return g.genVarDef(p)

	case ast.FuncDefPayload:
		return g.genFuncDef(idx, p)

	case ast.ConditionalPayload:
		return g.genConditional(p)

	case ast.WhileLoopPayload:
		return g.genWhileLoop(p)

	case ast.ForLoopPayload:
		return g.genForLoop(p)

	case ast.ReturnPayload:
		return g.genReturn(p)

	case ast.BreakPayload:
		return g.genBreak()

	case ast.ContinuePayload:
		return g.genContinue()

	case ast.OutputPayload:
		return g.genOutput(p)

	case ast.SwitchPayload:
		return g.genSwitch(p)

	case ast.InCasePayload:
		return g.genInCase(p)

	case ast.InlineAsmPayload:
		return g.genInlineAsm()

	case ast.Array4dDefPayload:
		return g.genArray4dDef(p)

	case ast.TimingOpPayload:
		return g.genTimingOpStmt()

	default:
		// A bare expression in statement position: assignment, a plain
		// function call, or a ++/-- desugared into one of those. Its
		// result register is simply discarded.
		return g.genExpr(idx)
	}
}

// genStmtChain walks an intrusive sibling chain, emitting each
// statement in order and stopping at the first error. head may be
// ast.InvalidNode (an empty chain), which Siblings already treats as
// zero statements.
func (g *Generator) genStmtChain(head ast.NodeIndex) error {
	for _, stmt := range g.pool.Siblings(head) {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// genSimpleClause handles a for-loop's init/post clause, which the
// parser allows to be either a variable declaration or a bare
// expression (parseSimpleStatementNoSemicolon).
func (g *Generator) genSimpleClause(idx ast.NodeIndex) error {
	n := g.pool.Get(idx)
	if vd, ok := n.Payload.(ast.VarDefPayload); ok {
		return g.genVarDef(vd)
	}
	return g.genExpr(idx)
}

// genVarDef declares a name binding in the current scope and, for
// stack-resident types, reserves a slot and stores its initializer
// (or a zero value, so every numeric/float/bool slot is deterministic
// the moment it's declared rather than holding stale stack bytes).
// String and solid variables get no stack slot at all (env.go's
// isStatic): their only representation is whatever static data their
// initializer's own codegen already embedded.
func (g *Generator) genVarDef(p ast.VarDefPayload) error {
	name := g.strs.Get(p.NameOffset, p.NameLength)
	lv := g.declareLocal(name, p.VarType)

	if p.VarType == ast.TypeString || p.VarType == ast.TypeSolid {
		lv.isStatic = true
		if p.Init != ast.InvalidNode {
			if err := g.genExpr(p.Init); err != nil {
				return err
			}
		}
		return nil
	}

	lv.slot = g.allocLocal()

	if p.Init == ast.InvalidNode {
		if p.VarType == ast.TypeFloat {
			g.loadFloatImm(0)
			g.buf.MovsdStore(lv.slot, 0)
		} else {
			g.buf.MovRegImm64(RegRAX, 0)
			g.buf.StoreLocal(lv.slot, RegRAX)
		}
		return nil
	}

	if err := g.genExpr(p.Init); err != nil {
		return err
	}
	if p.VarType == ast.TypeFloat {
		if !g.isFloatExpr(p.Init) {
			g.buf.Cvtsi2sd(0, RegRAX)
		}
		g.buf.MovsdStore(lv.slot, 0)
	} else {
		g.buf.StoreLocal(lv.slot, RegRAX)
	}
	lv.initialized = true
	return nil
}

// genFuncDef emits a skip-jump over the function body (so straight-
// line execution never falls into it), records the call target at
// the body's first instruction, binds each parameter to its
// stack-argument slot above the new frame's rbp, and appends a safety-net epilogue in case the
// body falls off the end without an explicit return.
func (g *Generator) genFuncDef(idx ast.NodeIndex, p ast.FuncDefPayload) error {
	skip := g.buf.JmpRel32()
	entry := g.buf.Position()
	g.funcEntry[idx] = entry

	g.buf.PushRBP()
	g.buf.MovRBPRSP()

	savedOffset := g.localOffset
	g.localOffset = 0
	g.pushScope()

	params := g.pool.Siblings(p.ParamHead)
	for i, paramIdx := range params {
		ident, ok := g.pool.Get(paramIdx).Payload.(ast.IdentifierPayload)
		if !ok {
			continue
		}
		name := g.strs.Get(ident.Offset, ident.Length)
		lv := g.declareLocal(name, ast.TypeInt)
		lv.slot = -(16 + 8*i)
		lv.initialized = true
	}

	body, ok := g.pool.Get(p.Body).Payload.(ast.BlockPayload)
	if !ok {
		g.popScope()
		g.localOffset = savedOffset
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "function body is not a block"}
	}
	if err := g.genStmtChain(body.First); err != nil {
		g.popScope()
		g.localOffset = savedOffset
		return err
	}

	g.buf.MovRSPRBP()
	g.buf.PopRBP()
	g.buf.Ret()

	g.popScope()
	g.localOffset = savedOffset
	g.buf.PatchRel32Here(skip)
	return nil
}

// genConditional lowers if/else and every short-conditional form the
// same way: the short forms carry no distinct
// semantics of their own, so Op is never consulted here.
func (g *Generator) genConditional(p ast.ConditionalPayload) error {
	if err := g.genExpr(p.Cond); err != nil {
		return err
	}
	g.buf.TestRR(RegRAX, RegRAX)
	elseJump := g.buf.JccRel32(CCEqual)

	if err := g.genStmtChain(p.BodyHead); err != nil {
		return err
	}
	if p.Else == ast.InvalidNode {
		g.buf.PatchRel32Here(elseJump)
		return nil
	}
	endJump := g.buf.JmpRel32()
	g.buf.PatchRel32Here(elseJump)
	if err := g.genStmtChain(p.Else); err != nil {
		return err
	}
	g.buf.PatchRel32Here(endJump)
	return nil
}

// genWhileLoop lowers a condition-at-top loop: LoopStart is the
// condition re-check, which is also where `continue` jumps back to.
func (g *Generator) genWhileLoop(p ast.WhileLoopPayload) error {
	loopStart := g.buf.Position()
	if err := g.genExpr(p.Cond); err != nil {
		return err
	}
	g.buf.TestRR(RegRAX, RegRAX)
	exitFix := g.buf.JccRel32(CCEqual)

	if err := g.buf.PushLoop(loopStart); err != nil {
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: err.Error()}
	}
	bodyErr := g.genStmt(p.Body)
	loop, loopErr := g.buf.PopLoop()
	if bodyErr != nil {
		return bodyErr
	}
	if loopErr != nil {
		return &CodegenError{Kind: ErrLoopControlOutsideLoop, Detail: loopErr.Error()}
	}

	jmpBack := g.buf.JmpRel32()
	g.buf.PatchRel32(jmpBack, loopStart)
	g.buf.PatchRel32Here(exitFix)
	for _, fix := range loop.ExitFixups {
		g.buf.PatchRel32Here(fix)
	}
	return nil
}

// genForLoop lowers init/cond/post the same way a C for-loop does,
// with one deliberate simplification: `continue` jumps straight back
// to the condition re-check rather than through the post-clause
// first, since LoopContext tracks a single back-edge
// target, not a separate continue target. A for-loop whose post-
// clause matters on every continued iteration needs to fold that
// update into the loop body instead.
func (g *Generator) genForLoop(p ast.ForLoopPayload) error {
	g.pushScope()
	defer g.popScope()

	if p.Init != ast.InvalidNode {
		if err := g.genSimpleClause(p.Init); err != nil {
			return err
		}
	}

	loopStart := g.buf.Position()
	exitFix := -1
	if p.Cond != ast.InvalidNode {
		if err := g.genExpr(p.Cond); err != nil {
			return err
		}
		g.buf.TestRR(RegRAX, RegRAX)
		exitFix = g.buf.JccRel32(CCEqual)
	}

	if err := g.buf.PushLoop(loopStart); err != nil {
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: err.Error()}
	}
	bodyErr := g.genStmt(p.Body)
	loop, loopErr := g.buf.PopLoop()
	if bodyErr != nil {
		return bodyErr
	}
	if loopErr != nil {
		return &CodegenError{Kind: ErrLoopControlOutsideLoop, Detail: loopErr.Error()}
	}

	if p.Post != ast.InvalidNode {
		if err := g.genSimpleClause(p.Post); err != nil {
			return err
		}
	}
	jmpBack := g.buf.JmpRel32()
	g.buf.PatchRel32(jmpBack, loopStart)
	if exitFix >= 0 {
		g.buf.PatchRel32Here(exitFix)
	}
	for _, fix := range loop.ExitFixups {
		g.buf.PatchRel32Here(fix)
	}
	return nil
}

func (g *Generator) genReturn(p ast.ReturnPayload) error {
	if p.Expr != ast.InvalidNode {
		if err := g.genExpr(p.Expr); err != nil {
			return err
		}
	}
	g.buf.MovRSPRBP()
	g.buf.PopRBP()
	g.buf.Ret()
	return nil
}

func (g *Generator) genBreak() error {
	loop, err := g.buf.CurrentLoop()
	if err != nil {
		return &CodegenError{Kind: ErrLoopControlOutsideLoop, Detail: err.Error()}
	}
	fix := g.buf.JmpRel32()
	loop.ExitFixups = append(loop.ExitFixups, fix)
	return nil
}

func (g *Generator) genContinue() error {
	loop, err := g.buf.CurrentLoop()
	if err != nil {
		return &CodegenError{Kind: ErrLoopControlOutsideLoop, Detail: err.Error()}
	}
	jmp := g.buf.JmpRel32()
	g.buf.PatchRel32(jmp, loop.LoopStart)
	return nil
}

// genOutput lowers print/txt/out/fmt/dyn. A literal string content
// node is written out byte-for-byte with no added newline; everything
// else is evaluated and routed to the float, bool, or integer print
// helper by its syntactic type, each of which appends its own
// trailing newline.
func (g *Generator) genOutput(p ast.OutputPayload) error {
	windows := g.buf.Platform() == PlatformWindows
	content := g.pool.Get(p.Content)

	switch {
	case isa[ast.StringPayload](content.Payload):
		sp := content.Payload.(ast.StringPayload)
		text := decodeStringLiteral(g.strs.Get(sp.Offset, sp.Length))
		if windows {
			g.printLiteralWindows(text)
		} else {
			g.printLiteralLinux(text)
		}

	case g.isFloatExpr(p.Content):
		if err := g.genExpr(p.Content); err != nil {
			return err
		}
		if windows {
			g.printFloatWindows()
		} else {
			g.printFloatLinux()
		}

	case g.isBoolExpr(p.Content):
		if err := g.genExpr(p.Content); err != nil {
			return err
		}
		if windows {
			g.printBoolWindows()
		} else {
			g.printBoolLinux()
		}

	default:
		if err := g.genExpr(p.Content); err != nil {
			return err
		}
		if windows {
			g.printIntWindows()
		} else {
			g.printIntLinux()
		}
	}

	if p.Next != ast.InvalidNode {
		return g.genStmt(p.Next)
	}
	return nil
}

// isa reports whether v holds a T, without the caller needing a named
// variable for a throwaway type assertion inside a switch guard.
func isa[T ast.Payload](v ast.Payload) bool {
	_, ok := v.(T)
	return ok
}

// genSwitch lowers switch/case/default: the switch value is evaluated once and spilled to
// its own stack slot before any case is considered, so a case
// expression that itself calls a function can never clobber the value
// still being matched against. Each case falls through to an
// unconditional jump to the end once its body runs — there is no
// C-style case-to-case fallthrough.
func (g *Generator) genSwitch(p ast.SwitchPayload) error {
	if err := g.genExpr(p.Value); err != nil {
		return err
	}
	slot := g.allocLocal()
	g.buf.StoreLocal(slot, RegRAX)

	var endFixups []int
	for _, caseIdx := range g.pool.Siblings(p.FirstCase) {
		cp, ok := g.pool.Get(caseIdx).Payload.(ast.CasePayload)
		if !ok {
			continue
		}
		if err := g.genExpr(cp.Value); err != nil {
			return err
		}
		g.buf.MovRR(RegR10, RegRAX)
		g.buf.LoadLocal(slot, RegRAX)
		g.buf.CmpRR(RegRAX, RegR10)
		skip := g.buf.JccRel32(CCNotEqual)

		if err := g.genStmtChain(cp.ActionHead); err != nil {
			return err
		}
		endFixups = append(endFixups, g.buf.JmpRel32())
		g.buf.PatchRel32Here(skip)
	}

	if p.Default != ast.InvalidNode {
		dp, ok := g.pool.Get(p.Default).Payload.(ast.DefaultPayload)
		if ok {
			if err := g.genStmtChain(dp.ActionHead); err != nil {
				return err
			}
		}
	}
	for _, fix := range endFixups {
		g.buf.PatchRel32Here(fix)
	}
	return nil
}

// genInCase lowers a standalone incase block to an unconditional
// nested scope, matching the parser's own doc comment on
// parseInCase.
func (g *Generator) genInCase(p ast.InCasePayload) error {
	g.pushScope()
	defer g.popScope()
	return g.genStmtChain(p.ActionHead)
}

// genInlineAsm always fails: this compiler has no text assembler (it
// emits machine code directly from the AST), so raw asm source has
// nowhere to go. asm blocks parse and resolve cleanly; they simply
// cannot reach a finished binary.
func (g *Generator) genInlineAsm() error {
	return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "inline asm text is not assembled by this compiler"}
}

// genTimingOpStmt refuses a bare timing-op statement, the same
// not-lowered treatment genExpr gives SolidPayload.
func (g *Generator) genTimingOpStmt() error {
	return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "timing operators are resolved but not lowered by codegen"}
}

// genArray4dDef reserves as many stack slots as the product of the
// positive integer-literal dimensions (any other dimension counts as
// 1, so an array with no such dimension gets a single slot), binding the array's name
// to the first cell's offset — array.4d's runtime indexing is an
// open-ended surface with only its AST shape pinned down.
func (g *Generator) genArray4dDef(p ast.Array4dDefPayload) error {
	name := g.strs.Get(p.NameOffset, p.NameLength)
	lv := g.declareLocal(name, ast.TypeInt)

	count := 1
	for _, d := range p.Dims {
		if d == ast.InvalidNode {
			continue
		}
		if v, ok := g.asIntLiteral(d); ok && v > 0 {
			count *= int(v)
		}
	}
	if count < 1 {
		count = 1
	}

	first := g.allocLocal()
	for i := 1; i < count; i++ {
		g.allocLocal()
	}
	lv.slot = first
	return nil
}

// emitExit dispatches process exit to the target platform's own
// convention: a direct exit syscall on Linux, ExitProcess
// through the IAT on Windows.
func (g *Generator) emitExit(code int64) {
	if g.buf.Platform() == PlatformWindows {
		g.emitExitWindows(code)
	} else {
		g.emitExitLinux(code)
	}
}
