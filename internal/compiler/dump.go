package compiler

import (
	"fmt"
	"sort"
	"strings"

	"goblaze.dev/blazec/internal/ast"
	"goblaze.dev/blazec/internal/symbols"
)

// dumpAST renders a flat, one-line-per-node textual trace of the AST
// reachable from root. Each line is the node's own index and its Kind;
// sibling-chain nodes print at the same depth, and a node's own
// payload children print one level deeper.
func dumpAST(pool *ast.Pool, root ast.NodeIndex) string {
	var b strings.Builder
	seen := make(map[ast.NodeIndex]bool)
	var walk func(idx ast.NodeIndex, depth int)
	walk = func(idx ast.NodeIndex, depth int) {
		for cur := idx; cur != ast.InvalidNode && !seen[cur]; {
			seen[cur] = true
			n := pool.Get(cur)
			fmt.Fprintf(&b, "%s#%d %s\n", strings.Repeat("  ", depth), cur, n.Kind)
			for _, child := range payloadChildren(n) {
				walk(child, depth+1)
			}
			next := n.Sibling
			if next <= cur {
				break
			}
			cur = next
		}
	}
	// The Program root sits at index 0, which is also ast.InvalidNode,
	// so walk would stop before printing it: print the root here and
	// walk its children.
	seen[root] = true
	rootNode := pool.Get(root)
	fmt.Fprintf(&b, "#%d %s\n", root, rootNode.Kind)
	for _, child := range payloadChildren(rootNode) {
		walk(child, 1)
	}
	return b.String()
}

// payloadChildren extracts every meaningful node-index field from a
// payload, skipping ast.InvalidNode, so dumpAST can recurse without a
// type switch per caller — payload shapes vary too much
// for one generic walk to do better than "list all indices present".
// Sibling links are handled separately by the caller's own chain walk,
// not returned here.
func payloadChildren(n ast.Node) []ast.NodeIndex {
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
	case ast.BreakPayload:
		add(p.Expr)
	case ast.ContinuePayload:
		add(p.Expr)
	case ast.OutputPayload:
		add(p.Content)
		add(p.Next)
	case ast.TimingOpPayload:
		add(p.Expr)
	case ast.Array4dDefPayload:
		for _, d := range p.Dims {
			add(d)
		}
	case ast.Array4dAccessPayload:
		for _, d := range p.Dims {
			add(d)
		}
	case ast.SwitchPayload:
		add(p.Value)
		add(p.FirstCase)
		add(p.Default)
	case ast.CasePayload:
		add(p.Value)
		add(p.ActionHead)
		add(p.Next)
	case ast.DefaultPayload:
		add(p.ActionHead)
	case ast.InCasePayload:
		add(p.ActionHead)
	}
	return out
}

// dumpSymbols renders the root scope's symbol table, one line per
// name: kind, storage class, and scope level, sorted by name so the
// output is deterministic across runs.
func dumpSymbols(table *symbols.Table) string {
	names := table.RootSymbols()
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, name := range keys {
		sym := names[name]
		fmt.Fprintf(&b, "%s: kind=%s storage=%d scope=%d\n", name, sym.Kind, sym.Storage, sym.ScopeLevel)
	}
	return b.String()
}
