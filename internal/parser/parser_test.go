package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/lexer"
	"goblaze.dev/blazec/internal/token"
)

type fixture struct {
	pool *ast.Pool
	strs *ast.StringPool
	root ast.NodeIndex
}

func parseOK(t *testing.T, src string) fixture {
	t.Helper()
	pool := ast.NewPool()
	strs := ast.NewStringPool()
	toks := lexer.New([]byte(src)).Tokenize()
	root, errs, fatal := Parse(toks, []byte(src), pool, strs)
	require.NoError(t, fatal)
	require.Empty(t, errs)
	return fixture{pool: pool, strs: strs, root: root}
}

func (f fixture) topLevel(t *testing.T) []ast.NodeIndex {
	t.Helper()
	block, ok := f.pool.Get(f.root).Payload.(ast.BlockPayload)
	require.True(t, ok)
	return f.pool.Siblings(block.First)
}

func (f fixture) name(off, ln uint32) string { return f.strs.Get(off, ln) }

func TestEmptyProgram(t *testing.T) {
	f := parseOK(t, "")
	assert.Empty(t, f.topLevel(t))
}

func TestVarDefForms(t *testing.T) {
	f := parseOK(t, "var x = 41; var.float f [2.5]; var.bool b")
	stmts := f.topLevel(t)
	require.Len(t, stmts, 3)

	x := f.pool.Get(stmts[0]).Payload.(ast.VarDefPayload)
	assert.Equal(t, "x", f.name(x.NameOffset, x.NameLength))
	assert.Equal(t, ast.TypeInt, x.VarType)
	require.NotEqual(t, ast.InvalidNode, x.Init)
	assert.Equal(t, ast.NumberPayload{Value: 41}, f.pool.Get(x.Init).Payload)

	fl := f.pool.Get(stmts[1]).Payload.(ast.VarDefPayload)
	assert.Equal(t, ast.TypeFloat, fl.VarType)
	assert.Equal(t, ast.FloatPayload{Value: 2.5}, f.pool.Get(fl.Init).Payload)

	b := f.pool.Get(stmts[2]).Payload.(ast.VarDefPayload)
	assert.Equal(t, ast.TypeBool, b.VarType)
	assert.Equal(t, ast.InvalidNode, b.Init)
}

func TestPrecedenceShape(t *testing.T) {
	f := parseOK(t, "1 + 2 * 3")
	stmts := f.topLevel(t)
	require.Len(t, stmts, 1)

	add := f.pool.Get(stmts[0]).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Plus, add.Op)
	assert.Equal(t, ast.NumberPayload{Value: 1}, f.pool.Get(add.Left).Payload)

	mul := f.pool.Get(add.Right).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Star, mul.Op)
	assert.Equal(t, ast.NumberPayload{Value: 2}, f.pool.Get(mul.Left).Payload)
	assert.Equal(t, ast.NumberPayload{Value: 3}, f.pool.Get(mul.Right).Payload)
}

func TestExponentIsRightAssociative(t *testing.T) {
	f := parseOK(t, "2 ** 3 ** 2")
	outer := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.BinaryOpPayload)
	require.Equal(t, token.StarStar, outer.Op)
	assert.Equal(t, ast.NumberPayload{Value: 2}, f.pool.Get(outer.Left).Payload)
	inner := f.pool.Get(outer.Right).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.StarStar, inner.Op)
}

func TestUnaryMinusBindsTighter(t *testing.T) {
	f := parseOK(t, "-1 + 2")
	add := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.BinaryOpPayload)
	require.Equal(t, token.Plus, add.Op)
	neg := f.pool.Get(add.Left).Payload.(ast.UnaryOpPayload)
	assert.Equal(t, token.Minus, neg.Op)
}

func TestPipeParenthesization(t *testing.T) {
	// |x + 1| groups; the closing pipe is not bitwise-or.
	f := parseOK(t, "var x = 1; |x + 1| * 2")
	stmts := f.topLevel(t)
	require.Len(t, stmts, 2)
	mul := f.pool.Get(stmts[1]).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Star, mul.Op)
	add := f.pool.Get(mul.Left).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Plus, add.Op)
}

func TestCompoundAssignDesugars(t *testing.T) {
	f := parseOK(t, "var x = 1; x += 2")
	stmts := f.topLevel(t)
	assign := f.pool.Get(stmts[1]).Payload.(ast.BinaryOpPayload)
	require.Equal(t, token.Assign, assign.Op)
	sum := f.pool.Get(assign.Right).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Plus, sum.Op)
	assert.Equal(t, assign.Left, sum.Left)
}

func TestPostfixIncDesugars(t *testing.T) {
	f := parseOK(t, "var x = 1; x++")
	stmts := f.topLevel(t)
	assign := f.pool.Get(stmts[1]).Payload.(ast.BinaryOpPayload)
	require.Equal(t, token.Assign, assign.Op)
	sum := f.pool.Get(assign.Right).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Plus, sum.Op)
	assert.Equal(t, ast.NumberPayload{Value: 1}, f.pool.Get(sum.Right).Payload)
}

func TestTernary(t *testing.T) {
	f := parseOK(t, "1 < 2 ? 10 : 20")
	tern := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.TernaryPayload)
	cmp := f.pool.Get(tern.Cond).Payload.(ast.BinaryOpPayload)
	assert.Equal(t, token.Lt, cmp.Op)
	assert.Equal(t, ast.NumberPayload{Value: 10}, f.pool.Get(tern.Then).Payload)
	assert.Equal(t, ast.NumberPayload{Value: 20}, f.pool.Get(tern.Else).Payload)
}

func TestIfElseChain(t *testing.T) {
	f := parseOK(t, `if (1 < 2) print "yes" else print "no"`)
	cond := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.ConditionalPayload)
	assert.Equal(t, token.If, cond.Op)
	require.NotEqual(t, ast.InvalidNode, cond.Else)
	assert.Equal(t, ast.KindOutput, f.pool.Get(cond.BodyHead).Kind)
	assert.Equal(t, ast.KindOutput, f.pool.Get(cond.Else).Kind)
}

func TestShortConditional(t *testing.T) {
	f := parseOK(t, "f.ens (1) { print 1 }")
	cond := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.ConditionalPayload)
	assert.Equal(t, token.ShortEns, cond.Op)
	assert.Equal(t, ast.InvalidNode, cond.Else)
}

func TestWhileAndFor(t *testing.T) {
	f := parseOK(t, "var i = 0; while (i < 3) { i = i + 1 } for (var j = 0; j < 2; j = j + 1) { print j }")
	stmts := f.topLevel(t)
	require.Len(t, stmts, 3)

	w := f.pool.Get(stmts[1]).Payload.(ast.WhileLoopPayload)
	assert.Equal(t, ast.KindBinaryOp, f.pool.Get(w.Cond).Kind)
	assert.Equal(t, ast.KindActionBlock, f.pool.Get(w.Body).Kind)

	fl := f.pool.Get(stmts[2]).Payload.(ast.ForLoopPayload)
	assert.Equal(t, ast.KindVarDef, f.pool.Get(fl.Init).Kind)
	assert.NotEqual(t, ast.InvalidNode, fl.Cond)
	assert.NotEqual(t, ast.InvalidNode, fl.Post)
}

func TestFuncDefAndCall(t *testing.T) {
	f := parseOK(t, `|add|(a, b) < do/ return a + b \ :> add(1, 2)`)
	stmts := f.topLevel(t)
	require.Len(t, stmts, 2)

	fd := f.pool.Get(stmts[0]).Payload.(ast.FuncDefPayload)
	params := f.pool.Siblings(fd.ParamHead)
	require.Len(t, params, 2)
	nameIdent := f.pool.Get(fd.NameIdent).Payload.(ast.IdentifierPayload)
	assert.Equal(t, "add", f.name(nameIdent.Offset, nameIdent.Length))
	body := f.pool.Get(fd.Body).Payload.(ast.BlockPayload)
	assert.Equal(t, ast.KindReturn, f.pool.Get(body.First).Kind)

	call := f.pool.Get(stmts[1]).Payload.(ast.FuncCallPayload)
	assert.Len(t, f.pool.Siblings(call.ArgHead), 2)
}

func TestDeclareBlockMarksFunctions(t *testing.T) {
	f := parseOK(t, `declare/ |helper|() < do/ return 1 \ :> \`)
	db := f.pool.Get(f.topLevel(t)[0])
	require.Equal(t, ast.KindDeclareBlock, db.Kind)
	inner := f.pool.Siblings(db.Payload.(ast.BlockPayload).First)
	require.Len(t, inner, 1)
	fd := f.pool.Get(inner[0]).Payload.(ast.FuncDefPayload)
	assert.True(t, fd.Declared)
}

func TestOutputChain(t *testing.T) {
	f := parseOK(t, `print 1, 2`)
	head := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.OutputPayload)
	assert.Equal(t, ast.OutputPrint, head.Kind)
	require.NotEqual(t, ast.InvalidNode, head.Next)
	second := f.pool.Get(head.Next).Payload.(ast.OutputPayload)
	assert.Equal(t, ast.InvalidNode, second.Next)
}

func TestSwitchCases(t *testing.T) {
	f := parseOK(t, `switch (2) { case 1: print 1 case 2: print 2 default: print 0 }`)
	sw := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.SwitchPayload)
	cases := f.pool.Siblings(sw.FirstCase)
	require.Len(t, cases, 2)
	require.NotEqual(t, ast.InvalidNode, sw.Default)

	c1 := f.pool.Get(cases[0]).Payload.(ast.CasePayload)
	assert.Equal(t, cases[1], c1.Next)
	assert.Equal(t, ast.NumberPayload{Value: 1}, f.pool.Get(c1.Value).Payload)
}

func TestArray4d(t *testing.T) {
	f := parseOK(t, "array.4d grid [2, 3, 4, 5]; grid[0, 0, 0, 0]")
	stmts := f.topLevel(t)
	require.Len(t, stmts, 2)

	def := f.pool.Get(stmts[0]).Payload.(ast.Array4dDefPayload)
	assert.Equal(t, "grid", f.name(def.NameOffset, def.NameLength))
	for _, d := range def.Dims {
		assert.NotEqual(t, ast.InvalidNode, d)
	}
	acc := f.pool.Get(stmts[1]).Payload.(ast.Array4dAccessPayload)
	assert.Equal(t, "grid", f.name(acc.NameOffset, acc.NameLength))
}

func TestTimingOp(t *testing.T) {
	f := parseOK(t, "var x = 1; before(x)[-2]")
	top := f.pool.Get(f.topLevel(t)[1]).Payload.(ast.TimingOpPayload)
	assert.Equal(t, ast.TimingBefore, top.Kind)
	assert.Equal(t, int32(-2), top.Offset)
}

func TestInlineAsm(t *testing.T) {
	f := parseOK(t, `asm "nop"`)
	ia := f.pool.Get(f.topLevel(t)[0]).Payload.(ast.InlineAsmPayload)
	assert.Equal(t, "nop", f.name(ia.Offset, ia.Length))
}

// Every child index in any payload refers to an already-allocated node
// with a strictly smaller index: parents are allocated after their
// children. CasePayload.Next, which links a case to the one parsed
// after it, is the one payload link that points forward; childIndices
// leaves it out.
func TestChildIndicesAreSmaller(t *testing.T) {
	f := parseOK(t, `
var x = 41
x = x + 1
if (x > 0) { print x } else { print 0 }
while (x < 50) { x = x + 1 }
|twice|(n) < do/ return n * 2 \ :>
print twice(x)
switch (x) { case 42: print 1 default: print 2 }
`)
	for i := 1; i < f.pool.Len(); i++ {
		idx := ast.NodeIndex(i)
		for _, child := range childIndices(f.pool.Get(idx)) {
			assert.Less(t, child, idx, "node #%d", i)
		}
	}
}

func childIndices(n ast.Node) []ast.NodeIndex {
	var out []ast.NodeIndex
	add := func(idx ast.NodeIndex) {
		if idx != ast.InvalidNode {
			out = append(out, idx)
		}
	}
	switch p := n.Payload.(type) {
	case ast.BlockPayload:
		add(p.First)
	case ast.BinaryOpPayload:
		add(p.Left)
		add(p.Right)
	case ast.UnaryOpPayload:
		add(p.Operand)
	case ast.TernaryPayload:
		add(p.Cond)
		add(p.Then)
		add(p.Else)
	case ast.VarDefPayload:
		add(p.Init)
	case ast.FuncDefPayload:
		add(p.Body)
		add(p.ParamHead)
		add(p.NameIdent)
	case ast.FuncCallPayload:
		add(p.Callee)
		add(p.ArgHead)
	case ast.ConditionalPayload:
		add(p.Cond)
		add(p.BodyHead)
		add(p.Else)
	case ast.WhileLoopPayload:
		add(p.Cond)
		add(p.Body)
	case ast.ForLoopPayload:
		add(p.Init)
		add(p.Cond)
		add(p.Post)
		add(p.Body)
	case ast.ReturnPayload:
		add(p.Expr)
	case ast.OutputPayload:
		add(p.Content)
		add(p.Next)
	case ast.SwitchPayload:
		add(p.Value)
		add(p.FirstCase)
		add(p.Default)
	case ast.CasePayload:
		add(p.Value)
		add(p.ActionHead)
	case ast.DefaultPayload:
		add(p.ActionHead)
	}
	return out
}

func TestParseErrorIsRecoverable(t *testing.T) {
	pool := ast.NewPool()
	strs := ast.NewStringPool()
	src := "var = 5\nprint 1"
	toks := lexer.New([]byte(src)).Tokenize()
	root, errs, fatal := Parse(toks, []byte(src), pool, strs)
	require.NoError(t, fatal)
	require.NotEmpty(t, errs)

	// The statement after the bad line still parsed.
	block := pool.Get(root).Payload.(ast.BlockPayload)
	found := false
	for _, idx := range pool.Siblings(block.First) {
		if pool.Get(idx).Kind == ast.KindOutput {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPoolExhaustionIsFatal(t *testing.T) {
	pool := ast.NewPool()
	strs := ast.NewStringPool()
	src := ""
	for i := 0; i < ast.MaxNodes; i++ {
		src += "1;"
	}
	toks := lexer.New([]byte(src)).Tokenize()
	_, _, fatal := Parse(toks, []byte(src), pool, strs)
	require.ErrorIs(t, fatal, ast.ErrPoolExhausted)
}
