// Command blazec is the CLI driver for the Blaze ahead-of-time
// compiler: it owns file I/O and diagnostics formatting, and calls
// into internal/compiler.Run for everything else.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/compiler"
)

// exitPoolExhausted is the distinct exit code pool exhaustion aborts
// with.
const exitPoolExhausted = 3

var (
	flagTarget      string
	flagOutput      string
	flagDebug       bool
	flagDumpAST     bool
	flagDumpSymbols bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, ast.ErrPoolExhausted) {
			os.Exit(exitPoolExhausted)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blazec",
		Short:         "Ahead-of-time compiler for the Blaze language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(compileCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print blazec's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "blazec 0.1.0")
			return nil
		},
	}
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <source-file>",
		Short: "Compile a Blaze source file to a native executable",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	cmd.Flags().StringVar(&flagTarget, "target", "linux", `output target: "linux" or "windows"`)
	cmd.Flags().StringVarP(&flagOutput, "o", "o", "", "output file path (default: source file name minus its extension, or a.out)")
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "print per-phase stderr trace lines")
	cmd.Flags().BoolVar(&flagDumpAST, "dump-ast", false, "dump the parsed AST to stderr and exit without emitting")
	cmd.Flags().BoolVar(&flagDumpSymbols, "dump-symbols", false, "dump the resolved symbol table to stderr and exit without emitting")
	return cmd
}

// runCompile implements `compile <source-file> [--target linux|windows]
// [-o <output-file>]`. Exit code 0 on success; any parse,
// resolution, or emission error returns a non-nil error, which main
// reports and turns into a non-zero exit.
func runCompile(cmd *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("blazec: cannot read %s: %w", path, err)
	}

	target := compiler.TargetLinux
	if flagTarget == "windows" {
		target = compiler.TargetWindows
	} else if flagTarget != "linux" {
		return fmt.Errorf("blazec: unknown --target %q (want linux or windows)", flagTarget)
	}

	opts := compiler.Options{
		Target:      target,
		Debug:       flagDebug,
		DumpAST:     flagDumpAST,
		DumpSymbols: flagDumpSymbols,
	}

	res, err := compiler.Run(src, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, compiler.Diagnose(src, err))
		return err
	}

	for _, line := range res.DebugLines {
		fmt.Fprintf(os.Stderr, "debug: %s\n", line)
	}
	if flagDumpAST {
		fmt.Fprint(os.Stderr, res.ASTDump)
	}
	if flagDumpSymbols {
		fmt.Fprint(os.Stderr, res.SymbolDump)
	}
	if flagDumpAST || flagDumpSymbols {
		return nil
	}

	out := flagOutput
	if out == "" {
		out = defaultOutputPath(path, target)
	}
	if err := compiler.WriteFile(out, res.Binary); err != nil {
		return fmt.Errorf("blazec: cannot write %s: %w", out, err)
	}
	return nil
}

// defaultOutputPath mirrors a plain `cc -o a.out`-style default: the
// source path with its extension stripped, plus .exe on Windows; on
// Linux a source with no extension to strip gets a.out, so the source
// file itself is never the output path.
func defaultOutputPath(source string, target compiler.Target) string {
	base := source
	for i := len(base) - 1; i >= 0 && base[i] != '/'; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	if target == compiler.TargetWindows {
		return base + ".exe"
	}
	if base == source {
		return "a.out"
	}
	return base
}
