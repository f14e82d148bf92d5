package codegen

import (
	"strings"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/token"
)

// genExpr emits code for node so that its result lands in the
// canonical location: RAX for integer/bool/pointer/
// solid-handle results, XMM0 for float results. Callers that need to
// know which one happened call isFloatExpr on the same node first.
func (g *Generator) genExpr(idx ast.NodeIndex) error {
	n := g.pool.Get(idx)
	switch p := n.Payload.(type) {
	case ast.NumberPayload:
		g.buf.MovRegImm64(RegRAX, uint64(p.Value))
		return nil

	case ast.FloatPayload:
		g.loadFloatImm(p.Value)
		return nil

	case ast.BoolPayload:
		v := uint64(0)
		if p.Value {
			v = 1
		}
		g.buf.MovRegImm64(RegRAX, v)
		return nil

	case ast.StringPayload:
		text := decodeStringLiteral(g.strs.Get(p.Offset, p.Length))
		s := g.embedString(text)
		fix := g.buf.LeaRipRel(RegRAX)
		g.buf.PatchRel32(fix, s.Offset)
		return nil

	case ast.SolidPayload:
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "solid numbers are not lowered by codegen"}

	case ast.IdentifierPayload:
		return g.genLoadIdentifier(idx, g.strs.Get(p.Offset, p.Length))

	case ast.BinaryOpPayload:
		return g.genBinary(idx, p)

	case ast.UnaryOpPayload:
		return g.genUnary(p)

	case ast.TernaryPayload:
		return g.genTernary(idx, p)

	case ast.FuncCallPayload:
		return g.genCall(idx, p)

	case ast.Array4dAccessPayload:
		return g.genArray4dAccess(idx, p)
	}

	return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "expression kind has no codegen"}
}

// loadFloatImm materializes a float64 bit pattern into XMM0 via a
// stack trampoline: push the bit pattern, movsd from [rsp], then
// rebalance RSP. Float constants never go to a separate data section.
func (g *Generator) loadFloatImm(v float64) {
	bits := floatBits(v)
	g.buf.MovRegImm64(RegR10, bits)
	g.buf.PushR(RegR10)
	g.buf.MovsdLoadRSP(0)
	g.buf.AddRI(RegRSP, 8)
}

func (g *Generator) genLoadIdentifier(idx ast.NodeIndex, name string) error {
	lv, ok := g.lookupLocal(name)
	if !ok {
		return &CodegenError{Kind: ErrUndefinedSymbol, Detail: "undefined identifier " + name}
	}
	if lv.isStatic {
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "identifier " + name + " has no runtime stack slot"}
	}
	if lv.varType == ast.TypeFloat {
		g.buf.MovsdLoad(lv.slot, 0)
	} else {
		g.buf.LoadLocal(lv.slot, RegRAX)
	}
	return nil
}

// isFloatExpr is the conservative syntactic float-ness predicate:
// a Float literal, a binary op with a float
// operand, an identifier declared float, or a call to a known math
// function. Everything else is non-float.
func (g *Generator) isFloatExpr(idx ast.NodeIndex) bool {
	n := g.pool.Get(idx)
	switch p := n.Payload.(type) {
	case ast.FloatPayload:
		return true
	case ast.IdentifierPayload:
		if lv, ok := g.lookupLocal(g.strs.Get(p.Offset, p.Length)); ok {
			return lv.varType == ast.TypeFloat
		}
		return false
	case ast.BinaryOpPayload:
		if p.Op == token.Assign {
			return g.isFloatExpr(p.Right)
		}
		return g.isFloatExpr(p.Left) || g.isFloatExpr(p.Right)
	case ast.UnaryOpPayload:
		return g.isFloatExpr(p.Operand)
	case ast.TernaryPayload:
		return g.isFloatExpr(p.Then) || g.isFloatExpr(p.Else)
	case ast.FuncCallPayload:
		return g.isKnownMathFunc(p.Callee)
	}
	return false
}

// isBoolExpr is the syntactic bool-ness predicate Output's print
// dispatch uses to pick the true/false print helper over the plain
// integer one: a Bool literal, a bool-declared identifier, a
// comparison/logical operator, a `!` unary, or a ternary whose
// branches are themselves bool-valued.
func (g *Generator) isBoolExpr(idx ast.NodeIndex) bool {
	n := g.pool.Get(idx)
	switch p := n.Payload.(type) {
	case ast.BoolPayload:
		return true
	case ast.IdentifierPayload:
		if lv, ok := g.lookupLocal(g.strs.Get(p.Offset, p.Length)); ok {
			return lv.varType == ast.TypeBool
		}
		return false
	case ast.BinaryOpPayload:
		switch p.Op {
		case token.AndAnd, token.OrOr, token.Lt, token.Gt, token.Leq, token.Geq,
			token.EqEq, token.NotEq,
			token.BlazeCmpGt, token.BlazeCmpLt, token.BlazeCmpEq, token.BlazeCmpNeq:
			return true
		}
		return false
	case ast.UnaryOpPayload:
		return p.Op == token.Not
	case ast.TernaryPayload:
		return g.isBoolExpr(p.Then) || g.isBoolExpr(p.Else)
	}
	return false
}

func (g *Generator) isKnownMathFunc(callee ast.NodeIndex) bool {
	ident, ok := g.pool.Get(callee).Payload.(ast.IdentifierPayload)
	if !ok {
		return false
	}
	name := g.strs.Get(ident.Offset, ident.Length)
	name = strings.TrimPrefix(name, "math.")
	switch name {
	case "sqrt", "sin", "cos", "pow":
		return true
	}
	return false
}

// isSolidExpr reports whether node is solid-typed (an identifier
// declared solid, or a Solid literal): codegen refuses these the
// moment they reach an operator.
func (g *Generator) isSolidExpr(idx ast.NodeIndex) bool {
	n := g.pool.Get(idx)
	switch p := n.Payload.(type) {
	case ast.SolidPayload:
		return true
	case ast.IdentifierPayload:
		if lv, ok := g.lookupLocal(g.strs.Get(p.Offset, p.Length)); ok {
			return lv.varType == ast.TypeSolid
		}
	}
	return false
}

// genBinary routes to the integer, float, comparison, or logical
// path, after handling assignment (which is a statement-
// shaped operator that can also appear as an expression, e.g. inside a
// for-loop's post clause).
func (g *Generator) genBinary(idx ast.NodeIndex, p ast.BinaryOpPayload) error {
	if p.Op == token.Assign {
		return g.genAssign(p)
	}
	if g.isSolidExpr(p.Left) || g.isSolidExpr(p.Right) {
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "solid numbers are not lowered by codegen"}
	}

	switch p.Op {
	case token.AndAnd, token.OrOr:
		return g.genLogical(p)
	case token.Lt, token.Gt, token.Leq, token.Geq, token.EqEq, token.NotEq,
		token.BlazeCmpGt, token.BlazeCmpLt, token.BlazeCmpEq, token.BlazeCmpNeq:
		return g.genComparison(p)
	}

	if g.isFloatExpr(p.Left) || g.isFloatExpr(p.Right) {
		return g.genFloatBinary(p)
	}
	return g.genIntBinary(p)
}

// genIntBinary implements the integer path: evaluate the
// right operand first and stash it in R10 (caller-saved scratch),
// evaluate the left operand into RAX, move the stashed value to RDX,
// then emit the operator — honoring the required peepholes for +1/-1/
// small-constant-add/power-of-two and 3/5/9 multiply before falling
// back to the generic encoding.
func (g *Generator) genIntBinary(p ast.BinaryOpPayload) error {
	if lit, ok := g.asIntLiteral(p.Right); ok && (p.Op == token.Plus || p.Op == token.Minus) {
		if err := g.genExpr(p.Left); err != nil {
			return err
		}
		if p.Op == token.Minus {
			lit = -lit
		}
		peepholeAdd(g.buf, RegRAX, lit)
		return nil
	}
	if lit, ok := g.asIntLiteral(p.Right); ok && p.Op == token.Star {
		if err := g.genExpr(p.Left); err != nil {
			return err
		}
		if peepholeMul(g.buf, RegRAX, lit) {
			return nil
		}
		g.buf.MovRegImm64(RegRCX, uint64(lit))
		g.buf.ImulRR(RegRAX, RegRCX)
		return nil
	}

	if err := g.genExpr(p.Right); err != nil {
		return err
	}
	g.buf.MovRR(RegR10, RegRAX)
	if err := g.genExpr(p.Left); err != nil {
		return err
	}
	g.buf.MovRR(RegRDX, RegR10)

	switch p.Op {
	case token.Plus:
		g.buf.AddRR(RegRAX, RegRDX)
	case token.Minus:
		g.buf.SubRR(RegRAX, RegRDX)
	case token.Star:
		g.buf.ImulRR(RegRAX, RegRDX)
	case token.Slash:
		// cqo sign-extends RAX into RDX, so the divisor has to move
		// out of RDX first.
		g.buf.MovRR(RegRCX, RegRDX)
		g.buf.Cqo()
		g.buf.IdivR(RegRCX)
	case token.Percent:
		g.buf.MovRR(RegRCX, RegRDX)
		g.buf.Cqo()
		g.buf.IdivR(RegRCX)
		g.buf.MovRR(RegRAX, RegRDX)
	case token.Amp:
		g.buf.AndRR(RegRAX, RegRDX)
	case token.Caret:
		g.buf.XorRR(RegRAX, RegRDX)
	case token.Pipe:
		g.buf.OrRR(RegRAX, RegRDX)
	case token.Shl:
		g.buf.MovRR(RegRCX, RegRDX)
		g.buf.ShlCl(RegRAX)
	case token.Shr:
		g.buf.MovRR(RegRCX, RegRDX)
		g.buf.ShrCl(RegRAX)
	case token.StarStar:
		g.genIntPow()
	default:
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "unsupported integer operator " + p.Op.String()}
	}
	return nil
}

// genIntPow lowers exponentiation to a counted loop:
// base in RAX on entry (left operand), exponent in RDX; RCX holds the
// base, RBX the remaining count, RAX the running accumulator.
func (g *Generator) genIntPow() {
	g.buf.MovRR(RegRCX, RegRAX) // base
	g.buf.MovRR(RegRBX, RegRDX) // counter
	g.buf.MovRegImm64(RegRAX, 1)
	top := g.buf.Position()
	g.buf.TestRR(RegRBX, RegRBX)
	exit := g.buf.JccRel32(CCEqual)
	g.buf.ImulRR(RegRAX, RegRCX)
	g.buf.DecR(RegRBX)
	jmp := g.buf.JmpRel32()
	g.buf.PatchRel32(jmp, top)
	g.buf.PatchRel32Here(exit)
}

// asIntLiteral reports the literal's value if idx is an (optionally
// negated) integer constant, for the peephole-selection fast paths.
func (g *Generator) asIntLiteral(idx ast.NodeIndex) (int64, bool) {
	n := g.pool.Get(idx)
	if num, ok := n.Payload.(ast.NumberPayload); ok {
		return num.Value, true
	}
	if u, ok := n.Payload.(ast.UnaryOpPayload); ok && u.Op == token.Minus {
		if v, ok := g.asIntLiteral(u.Operand); ok {
			return -v, true
		}
	}
	return 0, false
}

// genFloatBinary implements the float path: evaluate right
// into XMM0, push it to the stack, evaluate left into XMM0 (converting
// an integer result via cvtsi2sd), pop back into XMM1, then apply the
// scalar-double operator.
func (g *Generator) genFloatBinary(p ast.BinaryOpPayload) error {
	if err := g.genFloatOperand(p.Right); err != nil {
		return err
	}
	g.buf.PushXmm0()
	if err := g.genFloatOperand(p.Left); err != nil {
		return err
	}
	g.buf.MovsdLoadRSP(1)
	g.buf.AddRI(RegRSP, 8)

	switch p.Op {
	case token.Plus:
		g.buf.Addsd(0, 1)
	case token.Minus:
		g.buf.Subsd(0, 1)
	case token.Star:
		g.buf.Mulsd(0, 1)
	case token.Slash:
		g.buf.Divsd(0, 1)
	default:
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "unsupported float operator " + p.Op.String()}
	}
	return nil
}

// genFloatOperand evaluates idx into XMM0, converting an integer
// result with cvtsi2sd if idx itself isn't float-valued.
func (g *Generator) genFloatOperand(idx ast.NodeIndex) error {
	if g.isFloatExpr(idx) {
		return g.genExpr(idx)
	}
	if err := g.genExpr(idx); err != nil {
		return err
	}
	g.buf.Cvtsi2sd(0, RegRAX)
	return nil
}

// genComparison emits the `cmp; setcc AL; movzx rax, AL` sequence,
// dispatching to the float-aware ucomisd form when either operand is
// float-valued. Blaze-compare operators *> *_< *= *!= behave as plain
// >, <, ==, !=; the language gives them no distinct semantics.
func (g *Generator) genComparison(p ast.BinaryOpPayload) error {
	if g.isFloatExpr(p.Left) || g.isFloatExpr(p.Right) {
		return g.genFloatComparison(p)
	}

	if err := g.genExpr(p.Right); err != nil {
		return err
	}
	g.buf.MovRR(RegR10, RegRAX)
	if err := g.genExpr(p.Left); err != nil {
		return err
	}
	g.buf.CmpRR(RegRAX, RegR10)

	switch normalizeCompare(p.Op) {
	case token.Lt:
		g.buf.SetL(RegRAX)
	case token.Gt:
		g.buf.SetG(RegRAX)
	case token.Leq:
		g.buf.SetLE(RegRAX)
	case token.Geq:
		g.buf.SetGE(RegRAX)
	case token.EqEq:
		g.buf.SetE(RegRAX)
	case token.NotEq:
		g.buf.SetNE(RegRAX)
	}
	g.buf.MovzxB(RegRAX)
	return nil
}

// normalizeCompare maps the Blaze-compare aliases onto the ordinary
// comparison operator they behave as.
func normalizeCompare(op token.Kind) token.Kind {
	switch op {
	case token.BlazeCmpGt:
		return token.Gt
	case token.BlazeCmpLt:
		return token.Lt
	case token.BlazeCmpEq:
		return token.EqEq
	case token.BlazeCmpNeq:
		return token.NotEq
	}
	return op
}

func (g *Generator) genFloatComparison(p ast.BinaryOpPayload) error {
	if err := g.genFloatOperand(p.Right); err != nil {
		return err
	}
	g.buf.PushXmm0()
	if err := g.genFloatOperand(p.Left); err != nil {
		return err
	}
	g.buf.MovsdLoadRSP(1)
	g.buf.AddRI(RegRSP, 8)
	g.buf.Ucomisd(0, 1)

	switch normalizeCompare(p.Op) {
	case token.Lt:
		g.buf.SetB(RegRAX)
	case token.Gt:
		g.buf.SetA(RegRAX)
	case token.Leq:
		g.buf.SetBE(RegRAX)
	case token.Geq:
		g.buf.SetAE(RegRAX)
	case token.EqEq:
		g.buf.SetE(RegRAX)
	case token.NotEq:
		g.buf.SetNE(RegRAX)
	}
	g.buf.MovzxB(RegRAX)
	return nil
}

// genLogical normalizes both operands to 0/1 via test+setnz before
// combining them bitwise.
func (g *Generator) genLogical(p ast.BinaryOpPayload) error {
	if err := g.genExpr(p.Right); err != nil {
		return err
	}
	g.buf.TestRR(RegRAX, RegRAX)
	g.buf.SetNE(RegRAX)
	g.buf.MovzxB(RegRAX)
	g.buf.MovRR(RegR10, RegRAX)

	if err := g.genExpr(p.Left); err != nil {
		return err
	}
	g.buf.TestRR(RegRAX, RegRAX)
	g.buf.SetNE(RegRAX)
	g.buf.MovzxB(RegRAX)

	if p.Op == token.AndAnd {
		g.buf.AndRR(RegRAX, RegR10)
	} else {
		g.buf.OrRR(RegRAX, RegR10)
	}
	return nil
}

func (g *Generator) genUnary(p ast.UnaryOpPayload) error {
	switch p.Op {
	case token.Minus:
		if g.isFloatExpr(p.Operand) {
			if err := g.genExpr(p.Operand); err != nil {
				return err
			}
			g.buf.MovRegImm64(RegR10, 0)
			g.buf.Cvtsi2sd(1, RegR10)
			g.buf.Subsd(1, 0)
			g.buf.MovsdRR(0, 1)
			return nil
		}
		if err := g.genExpr(p.Operand); err != nil {
			return err
		}
		g.buf.NegR(RegRAX)
		return nil
	case token.Tilde:
		if err := g.genExpr(p.Operand); err != nil {
			return err
		}
		g.buf.NotR(RegRAX)
		return nil
	case token.Not:
		if err := g.genExpr(p.Operand); err != nil {
			return err
		}
		g.buf.TestRR(RegRAX, RegRAX)
		g.buf.SetE(RegRAX)
		g.buf.MovzxB(RegRAX)
		return nil
	}
	return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "unsupported unary operator " + p.Op.String()}
}

// genTernary lowers `cond ? then : else` the same way genConditional
// lowers if/else, except the result must land in the canonical
// location rather than falling through to whatever statement follows.
func (g *Generator) genTernary(idx ast.NodeIndex, p ast.TernaryPayload) error {
	if err := g.genExpr(p.Cond); err != nil {
		return err
	}
	g.buf.TestRR(RegRAX, RegRAX)
	elseJump := g.buf.JccRel32(CCEqual)
	if err := g.genExpr(p.Then); err != nil {
		return err
	}
	endJump := g.buf.JmpRel32()
	g.buf.PatchRel32Here(elseJump)
	if err := g.genExpr(p.Else); err != nil {
		return err
	}
	g.buf.PatchRel32Here(endJump)
	return nil
}

// genAssign evaluates the RHS into the canonical location and stores
// it to the LHS identifier's slot.
func (g *Generator) genAssign(p ast.BinaryOpPayload) error {
	ident, ok := g.pool.Get(p.Left).Payload.(ast.IdentifierPayload)
	if !ok {
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "assignment target must be an identifier"}
	}
	name := g.strs.Get(ident.Offset, ident.Length)
	lv, ok := g.lookupLocal(name)
	if !ok {
		return &CodegenError{Kind: ErrUndefinedSymbol, Detail: "undefined identifier " + name}
	}

	if err := g.genExpr(p.Right); err != nil {
		return err
	}
	if lv.varType == ast.TypeFloat {
		if !g.isFloatExpr(p.Right) {
			g.buf.Cvtsi2sd(0, RegRAX)
		}
		g.buf.MovsdStore(lv.slot, 0)
	} else {
		g.buf.StoreLocal(lv.slot, RegRAX)
	}
	lv.initialized = true
	return nil
}

// genCall lowers a function call using a stack-based calling
// convention (Blaze has no external ABI to match, so codegen defines
// its own): arguments are evaluated and
// pushed right-to-left — integer/bool/string results via PushR(RAX),
// float results via PushXmm0 — so that inside the callee's prologue
// the first declared parameter sits at [rbp+16], the second at
// [rbp+24], and so on, mirroring the classic cdecl stack-argument
// layout. The caller pops its own arguments back off after the call
// returns (callee does not clean the stack).
func (g *Generator) genCall(idx ast.NodeIndex, p ast.FuncCallPayload) error {
	ident, ok := g.pool.Get(p.Callee).Payload.(ast.IdentifierPayload)
	if !ok {
		return &CodegenError{Kind: ErrUnsupportedOperand, Detail: "call target must be an identifier"}
	}
	name := g.strs.Get(ident.Offset, ident.Length)

	args := g.pool.Siblings(p.ArgHead)
	for i := len(args) - 1; i >= 0; i-- {
		if g.isFloatExpr(args[i]) {
			if err := g.genExpr(args[i]); err != nil {
				return err
			}
			g.buf.PushXmm0()
		} else {
			if err := g.genExpr(args[i]); err != nil {
				return err
			}
			g.buf.PushR(RegRAX)
		}
	}

	sym, ok := g.syms.Lookup(name)
	if !ok {
		return &CodegenError{Kind: ErrUndefinedSymbol, Detail: "undefined function " + name}
	}
	target := sym.Node

	fix := g.buf.CallRel32()
	if entry, ok := g.funcEntry[target]; ok {
		g.buf.PatchRel32(fix, entry)
	} else {
		g.pendingCalls = append(g.pendingCalls, pendingCall{target: target, patchOffset: fix})
	}

	if len(args) > 0 {
		g.buf.AddRI(RegRSP, int32(8*len(args)))
	}
	return nil
}

// genArray4dAccess loads the first cell of the array's reserved range
// whatever the indices are: the four index expressions are neither
// evaluated nor folded into an offset, even when all four are literal —
// array.4d's runtime indexing is an open-ended surface with only its
// AST shape pinned down.
func (g *Generator) genArray4dAccess(idx ast.NodeIndex, p ast.Array4dAccessPayload) error {
	name := g.strs.Get(p.NameOffset, p.NameLength)
	lv, ok := g.lookupLocal(name)
	if !ok {
		return &CodegenError{Kind: ErrUndefinedSymbol, Detail: "undefined array " + name}
	}
	g.buf.LoadLocal(lv.slot, RegRAX)
	return nil
}
