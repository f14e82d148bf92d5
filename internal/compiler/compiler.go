// Package compiler wires the pipeline one invocation runs end to
// end: lex, parse, resolve, generate, emit. It owns every
// pool for the duration of the call and releases them on return —
// nothing here survives past one Run.
package compiler

import (
	"fmt"
	"os"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/binary"
	"goblaze.dev/blazec/internal/codegen"
	"goblaze.dev/blazec/internal/diag"
	"goblaze.dev/blazec/internal/lexer"
	"goblaze.dev/blazec/internal/parser"
	"goblaze.dev/blazec/internal/symbols"
)

// Target selects the output binary format.
type Target string

const (
	TargetLinux   Target = "linux"
	TargetWindows Target = "windows"
)

// ParseError wraps the parser's own diagnostics into the driver's
// typed error taxonomy.
type ParseError struct {
	Errs []*parser.Error
}

func (e *ParseError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	return fmt.Sprintf("%d parse errors (first: %s)", len(e.Errs), e.Errs[0].Error())
}

// ResolveError reports a hard failure during symbol resolution.
// Run never returns one: resolution itself only ever produces
// warnings, and codegen's undefined-symbol failures surface as
// *codegen.CodegenError.
type ResolveError struct {
	Msg string
}

func (e *ResolveError) Error() string { return e.Msg }

// Options controls one compilation.
type Options struct {
	Target     Target
	Debug      bool
	DumpAST    bool
	DumpSymbols bool
}

// Result is everything a caller might want out of a successful Run:
// the finished binary bytes plus whatever diagnostics --debug/--dump-*
// asked for.
type Result struct {
	Binary     []byte
	DebugLines []string
	ASTDump    string
	SymbolDump string
}

// Run compiles src (already read off disk by the caller) into a
// runnable ELF64 or PE32+ image. It never writes the output file
// itself; the caller (cmd/blazec) does the single file write
// once Run returns successfully, so a failed compile never leaves a
// partial file on disk.
func Run(src []byte, opts Options) (*Result, error) {
	pool := ast.NewPool()
	strs := ast.NewStringPool()
	var debugLines []string
	trace := func(line string) {
		if opts.Debug {
			debugLines = append(debugLines, line)
		}
	}

	toks := lexer.New(src).Tokenize()
	trace("tokenized")

	root, perrs, fatal := parser.Parse(toks, src, pool, strs)
	if fatal != nil {
		return nil, fatal
	}
	if len(perrs) > 0 {
		return nil, &ParseError{Errs: perrs}
	}
	trace("parsed")

	syms, _ := symbols.Resolve(pool, strs, root)
	trace("resolved")

	platform := codegen.PlatformLinux
	if opts.Target == TargetWindows {
		platform = codegen.PlatformWindows
	}

	gen := codegen.NewGenerator(pool, strs, syms, platform)
	gen.SetDebug(opts.Debug)

	genResult, err := gen.Generate(root)
	if err != nil {
		return nil, err
	}
	debugLines = append(debugLines, gen.DebugLines()...)

	var out []byte
	switch platform {
	case codegen.PlatformWindows:
		out, err = binary.WriteEXE(genResult)
	default:
		out, err = binary.WriteELF64(genResult)
	}
	if err != nil {
		return nil, err
	}

	trace("emitted")

	res := &Result{Binary: out, DebugLines: debugLines}
	if opts.DumpAST {
		res.ASTDump = dumpAST(pool, root)
	}
	if opts.DumpSymbols {
		res.SymbolDump = dumpSymbols(syms)
	}
	return res, nil
}

// Diagnose formats err as a single diagnostic line, recovering line/column from whichever offset the error
// carries (ParseError's first entry, or a bare offset-carrying error).
func Diagnose(src []byte, err error) string {
	switch e := err.(type) {
	case *ParseError:
		first := e.Errs[0]
		return diag.Format(src, first.Offset, "parse error", first.Msg)
	case *codegen.CodegenError:
		return diag.Format(src, e.Offset, "codegen error", e.Kind.String()+": "+e.Detail)
	case *binary.EmitError:
		return fmt.Sprintf("emit error: %s: %s", e.Kind, e.Detail)
	default:
		return err.Error()
	}
}

// WriteFile is the compiler's one blocking file write: it
// creates path fresh (truncating any stale partial output) and marks
// it executable, since the whole point of this compiler is producing
// something the OS loader can run directly.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o755)
}
