package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/lexer"
	"goblaze.dev/blazec/internal/parser"
)

func resolveSrc(t *testing.T, src string) (*Table, []Warning, *ast.StringPool) {
	t.Helper()
	pool := ast.NewPool()
	strs := ast.NewStringPool()
	toks := lexer.New([]byte(src)).Tokenize()
	root, errs, fatal := parser.Parse(toks, []byte(src), pool, strs)
	require.NoError(t, fatal)
	require.Empty(t, errs)
	table, warns := Resolve(pool, strs, root)
	return table, warns, strs
}

func TestDeclareAndLookup(t *testing.T) {
	strs := ast.NewStringPool()
	table := NewTable(strs)
	off, ln := strs.Put("x")
	require.NoError(t, table.Declare("x", &Symbol{NameOffset: off, NameLength: ln, Kind: KindVar}))

	sym, ok := table.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "x", table.SymbolName(sym))
	assert.Equal(t, 0, sym.ScopeLevel)

	_, ok = table.Lookup("y")
	assert.False(t, ok)
}

func TestRedeclarationInSameScope(t *testing.T) {
	table := NewTable(ast.NewStringPool())
	require.NoError(t, table.Declare("x", &Symbol{Kind: KindVar}))
	err := table.Declare("x", &Symbol{Kind: KindVar})
	var rd *ErrRedeclared
	require.ErrorAs(t, err, &rd)
	assert.Equal(t, "x", rd.Name)
}

func TestShadowingAcrossScopes(t *testing.T) {
	table := NewTable(ast.NewStringPool())
	outer := &Symbol{Kind: KindVar, VarType: ast.TypeInt}
	require.NoError(t, table.Declare("x", outer))

	table.PushScope()
	inner := &Symbol{Kind: KindVar, VarType: ast.TypeFloat}
	require.NoError(t, table.Declare("x", inner))

	sym, ok := table.Lookup("x")
	require.True(t, ok)
	assert.Same(t, inner, sym)
	assert.Equal(t, 1, table.Level())

	table.PopScope()
	sym, ok = table.Lookup("x")
	require.True(t, ok)
	assert.Same(t, outer, sym)
}

func TestTemporalScopeVisibleAfterClose(t *testing.T) {
	table := NewTable(ast.NewStringPool())
	table.PushTemporalScope(-2)

	off, ok := table.CurrentTemporalOffset()
	require.True(t, ok)
	assert.Equal(t, -2, off)

	require.NoError(t, table.Declare("past", &Symbol{Kind: KindVar, VisibleInPast: true}))
	table.PopScope()

	// The scope is closed, but the temporal symbol still resolves
	// from outside its lexical extent.
	sym, found := table.Lookup("past")
	require.True(t, found)
	assert.True(t, sym.VisibleInPast)
}

func TestTemporalScopeHidesUnmarkedSymbols(t *testing.T) {
	table := NewTable(ast.NewStringPool())
	table.PushTemporalScope(1)
	require.NoError(t, table.Declare("hidden", &Symbol{Kind: KindVar}))
	table.PopScope()

	_, found := table.Lookup("hidden")
	assert.False(t, found)
}

func TestPopRootScopePanics(t *testing.T) {
	table := NewTable(ast.NewStringPool())
	assert.Panics(t, func() { table.PopScope() })
}

func TestResolveDeclaresTopLevelNames(t *testing.T) {
	table, warns, _ := resolveSrc(t, `var x = 1; |f|(a) < do/ return a \ :> array.4d g [1, 1, 1, 1]`)
	assert.Empty(t, warns)

	root := table.RootSymbols()
	require.Contains(t, root, "x")
	require.Contains(t, root, "f")
	require.Contains(t, root, "g")

	assert.Equal(t, KindVar, root["x"].Kind)
	assert.Equal(t, KindFunc, root["f"].Kind)
	assert.Equal(t, 1, root["f"].Arity)
	assert.Equal(t, KindArray4D, root["g"].Kind)
	assert.Equal(t, [4]int{1, 1, 1, 1}, root["g"].Dims)
}

func TestDeclareBlockFunctionsVisibleEverywhere(t *testing.T) {
	table, warns, _ := resolveSrc(t, `print helper()
declare/ |helper|() < do/ return 1 \ :> \`)
	// The call precedes the declare block, yet resolves.
	assert.Empty(t, warns)

	sym, ok := table.Lookup("helper")
	require.True(t, ok)
	assert.True(t, sym.VisibleInPast)
	assert.True(t, sym.VisibleInFuture)
}

func TestUnresolvedIdentifierIsWarningNotError(t *testing.T) {
	_, warns, strs := resolveSrc(t, "print mystery")
	require.Len(t, warns, 1)
	assert.Equal(t, "mystery", strs.Get(warns[0].Offset, warns[0].Length))
}

func TestForwardCallToPlainFunctionWarnsButResolvesLater(t *testing.T) {
	// A plain (non-declare-block) function used before its definition:
	// the use site warns, but the symbol is in the table afterwards.
	table, warns, _ := resolveSrc(t, `print later()
|later|() < do/ return 1 \ :>`)
	assert.Len(t, warns, 1)
	_, ok := table.Lookup("later")
	assert.True(t, ok)
}

func TestBracedElseStatementsAllResolve(t *testing.T) {
	// Every statement of a braced else is walked, not just the chain
	// head: y declares and resolves, and the unresolved name in the
	// third statement is seen and warned about.
	_, warns, strs := resolveSrc(t, `var c = 0
if (c == 1) { print 1 } else { var y = 2; print y; print mystery }`)
	require.Len(t, warns, 1)
	assert.Equal(t, "mystery", strs.Get(warns[0].Offset, warns[0].Length))
}

func TestFuncDefInsideElseIsDeclared(t *testing.T) {
	// A function defined as the second statement of a braced else
	// lands in the flat function namespace, so a call anywhere in the
	// program resolves.
	table, warns, _ := resolveSrc(t, `var c = 0
if (c == 1) { print 1 } else { print 2
|late|() < do/ return 3 \ :> }
print late()`)
	assert.Empty(t, warns)

	sym, ok := table.Lookup("late")
	require.True(t, ok)
	assert.Equal(t, KindFunc, sym.Kind)
	assert.Equal(t, 0, sym.ScopeLevel)
}

func TestSwitchDefaultBodyIsResolved(t *testing.T) {
	_, warns, strs := resolveSrc(t, `switch (1) { case 1: print 1 default: print missing }`)
	require.Len(t, warns, 1)
	assert.Equal(t, "missing", strs.Get(warns[0].Offset, warns[0].Length))
}

func TestFunctionParametersScopeToBody(t *testing.T) {
	_, warns, _ := resolveSrc(t, `|f|(a, b) < do/ return a + b \ :>`)
	assert.Empty(t, warns)

	_, warns2, _ := resolveSrc(t, `|f|(a) < do/ return a \ :> print a`)
	assert.Len(t, warns2, 1)
}
