package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/codegen"
)

func TestEmptyProgramCompiles(t *testing.T) {
	res, err := Run(nil, Options{Target: TargetLinux})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, res.Binary[:4])
}

func TestHelloLinux(t *testing.T) {
	res, err := Run([]byte(`print "hello\n"`), Options{Target: TargetLinux})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(res.Binary, []byte("hello\n")))
	// Direct write syscall, not an import: no PE structures anywhere.
	assert.False(t, bytes.Contains(res.Binary, []byte("kernel32.dll")))
}

func TestHelloWindows(t *testing.T) {
	res, err := Run([]byte(`print "hi"`), Options{Target: TargetWindows})
	require.NoError(t, err)
	assert.Equal(t, byte('M'), res.Binary[0])
	assert.Equal(t, byte('Z'), res.Binary[1])
	for _, name := range []string{"kernel32.dll", "GetStdHandle", "WriteConsoleA", "ExitProcess"} {
		assert.True(t, bytes.Contains(res.Binary, []byte(name)), "missing %s", name)
	}
}

func TestByteIdenticalAcrossRuns(t *testing.T) {
	src := []byte(`
var x = 41
x = x + 1
print x
var.float f = 2.5
var.float g = 4.0
print (f * g)
var i = 0
while (i < 3) { print i; i = i + 1 }
if (1 < 2) print "yes" else print "no"
print 1024 * 8
`)
	for _, target := range []Target{TargetLinux, TargetWindows} {
		a, err := Run(src, Options{Target: target})
		require.NoError(t, err)
		b, err := Run(src, Options{Target: target})
		require.NoError(t, err)
		assert.Equal(t, a.Binary, b.Binary, "target %s", target)
	}
}

func TestParseErrorProducesNoBinary(t *testing.T) {
	res, err := Run([]byte("var = ;"), Options{Target: TargetLinux})
	require.Error(t, err)
	assert.Nil(t, res)

	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestCodegenErrorProducesNoBinary(t *testing.T) {
	res, err := Run([]byte("break"), Options{Target: TargetLinux})
	require.Error(t, err)
	assert.Nil(t, res)

	var ce *codegen.CodegenError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, codegen.ErrLoopControlOutsideLoop, ce.Kind)
}

func TestPoolExhaustionSurfacesAsFatal(t *testing.T) {
	var b strings.Builder
	for i := 0; i < ast.MaxNodes; i++ {
		b.WriteString("1;")
	}
	res, err := Run([]byte(b.String()), Options{Target: TargetLinux})
	require.ErrorIs(t, err, ast.ErrPoolExhausted)
	assert.Nil(t, res)
}

func TestDiagnoseFormatsLineAndColumn(t *testing.T) {
	src := []byte("var x = 1\nvar = 2")
	_, err := Run(src, Options{Target: TargetLinux})
	require.Error(t, err)
	line := Diagnose(src, err)
	assert.Contains(t, line, "parse error")
	assert.Contains(t, line, "2:")
}

func TestDebugTraceLines(t *testing.T) {
	res, err := Run([]byte("print 1"), Options{Target: TargetLinux, Debug: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.DebugLines)
}

func TestDumpAST(t *testing.T) {
	res, err := Run([]byte("var x = 1; print x"), Options{Target: TargetLinux, DumpAST: true})
	require.NoError(t, err)
	assert.Contains(t, res.ASTDump, "VarDef")
	assert.Contains(t, res.ASTDump, "Output")
}

func TestDumpSymbols(t *testing.T) {
	res, err := Run([]byte("var x = 1"), Options{Target: TargetLinux, DumpSymbols: true})
	require.NoError(t, err)
	assert.Contains(t, res.SymbolDump, "x: kind=var")
}
