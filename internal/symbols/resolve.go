package symbols

import "goblaze.dev/blazec/internal/ast"

// Warning is a non-fatal resolution warning: an identifier that could
// not be bound to any symbol anywhere in the currently-visible or
// temporal scopes. This is never a hard error at this
// phase: the language admits forward and temporal references that
// only resolve once the whole AST has been seen, and codegen is free
// to still emit a reference that fails later, at the emitter or at
// run time.
type Warning struct {
	Node   ast.NodeIndex
	Offset uint32
	Length uint32
}

// Resolve walks the AST rooted at root and returns the populated
// symbol table plus any unresolved-identifier warnings.
// It performs no code emission.
func Resolve(pool *ast.Pool, strs *ast.StringPool, root ast.NodeIndex) (*Table, []Warning) {
	r := &resolver{pool: pool, strs: strs, table: NewTable(strs)}
	r.hoistDeclareBlocks(root)
	r.walkBlock(root)
	return r.table, r.warnings
}

type resolver struct {
	pool     *ast.Pool
	strs     *ast.StringPool
	table    *Table
	warnings []Warning
}

// hoistDeclareBlocks pre-declares every FuncDef found directly inside a
// DeclareBlock into the root scope before the main traversal, so that
// ordinary ancestor-chain lookup makes them visible everywhere in the
// translation unit, independent of source order.
func (r *resolver) hoistDeclareBlocks(root ast.NodeIndex) {
	for _, idx := range r.pool.Siblings(r.pool.Get(root).Payload.(ast.BlockPayload).First) {
		n := r.pool.Get(idx)
		if n.Kind != ast.KindDeclareBlock {
			continue
		}
		body := n.Payload.(ast.BlockPayload)
		for _, childIdx := range r.pool.Siblings(body.First) {
			child := r.pool.Get(childIdx)
			if child.Kind != ast.KindFuncDef {
				continue
			}
			r.declareFunc(childIdx, child, true)
		}
	}
}

func (r *resolver) declareFunc(idx ast.NodeIndex, n ast.Node, declaredBefore bool) {
	fd := n.Payload.(ast.FuncDefPayload)
	if fd.NameIdent == ast.InvalidNode {
		return
	}
	ident := r.pool.Get(fd.NameIdent).Payload.(ast.IdentifierPayload)
	name := r.strs.Get(ident.Offset, ident.Length)
	sym := &Symbol{
		NameOffset:      ident.Offset,
		NameLength:      ident.Length,
		Kind:            KindFunc,
		Storage:         StorageNone,
		Node:            idx,
		Arity:           len(r.pool.Siblings(fd.ParamHead)),
		VisibleInPast:   declaredBefore,
		VisibleInFuture: declaredBefore,
	}
	// First definition wins: a declare-block hoist followed by the
	// main walk reaching the same node must not redeclare, and neither
	// must a second declare block naming the same function.
	_ = r.table.DeclareGlobal(name, sym)
}

// walkChain walks a bare statement chain head (a conditional's then or
// else branch, a case body) inside a fresh scope of its own.
func (r *resolver) walkChain(head ast.NodeIndex) {
	r.table.PushScope()
	for _, s := range r.pool.Siblings(head) {
		r.walkStmt(s)
	}
	r.table.PopScope()
}

// walkBlock walks a Program/ActionBlock/DeclareBlock's statement chain.
func (r *resolver) walkBlock(idx ast.NodeIndex) {
	n := r.pool.Get(idx)
	body := n.Payload.(ast.BlockPayload)
	for _, stmt := range r.pool.Siblings(body.First) {
		r.walkStmt(stmt)
	}
}

func (r *resolver) walkStmt(idx ast.NodeIndex) {
	if idx == ast.InvalidNode {
		return
	}
	n := r.pool.Get(idx)
	switch n.Kind {
	case ast.KindProgram, ast.KindActionBlock, ast.KindDeclareBlock:
		r.table.PushScope()
		r.walkBlock(idx)
		r.table.PopScope()

	case ast.KindVarDef:
		vd := n.Payload.(ast.VarDefPayload)
		if vd.Init != ast.InvalidNode {
			r.walkExpr(vd.Init)
		}
		sym := &Symbol{
			NameOffset: vd.NameOffset,
			NameLength: vd.NameLength,
			Kind:       KindVar,
			VarType:    vd.VarType,
			Storage:    StorageStack,
			Node:       idx,
		}
		name := r.strs.Get(vd.NameOffset, vd.NameLength)
		_ = r.table.Declare(name, sym) // redeclaration surfaces via ErrRedeclared if the caller checks; tolerated here, resolution stays non-fatal

	case ast.KindArray4dDef:
		ad := n.Payload.(ast.Array4dDefPayload)
		for _, dim := range ad.Dims {
			r.walkExpr(dim)
		}
		sym := &Symbol{
			NameOffset: ad.NameOffset,
			NameLength: ad.NameLength,
			Kind:       KindArray4D,
			Storage:    StorageStack,
			Node:       idx,
		}
		for i, dim := range ad.Dims {
			if dim != ast.InvalidNode {
				if num, ok := r.pool.Get(dim).Payload.(ast.NumberPayload); ok {
					sym.Dims[i] = int(num.Value)
				}
			}
		}
		name := r.strs.Get(ad.NameOffset, ad.NameLength)
		_ = r.table.Declare(name, sym)

	case ast.KindFuncDef:
		fd := n.Payload.(ast.FuncDefPayload)
		if _, exists := r.findByNode(idx); !exists {
			r.declareFunc(idx, n, fd.Declared)
		}
		r.table.PushScope()
		for _, p := range r.pool.Siblings(fd.ParamHead) {
			pn := r.pool.Get(p)
			if ident, ok := pn.Payload.(ast.IdentifierPayload); ok {
				name := r.strs.Get(ident.Offset, ident.Length)
				_ = r.table.Declare(name, &Symbol{
					NameOffset: ident.Offset, NameLength: ident.Length,
					Kind: KindParam, Storage: StorageStack, Node: p,
				})
			}
		}
		if fd.Body != ast.InvalidNode {
			r.walkStmt(fd.Body)
		}
		r.table.PopScope()

	case ast.KindConditional:
		c := n.Payload.(ast.ConditionalPayload)
		r.walkExpr(c.Cond)
		r.walkChain(c.BodyHead)
		// Else is a chain head too (a braced else holds several
		// statements; an else-if is a one-element chain), so it gets
		// the same scoped chain walk as the then branch.
		if c.Else != ast.InvalidNode {
			r.walkChain(c.Else)
		}

	case ast.KindWhileLoop:
		w := n.Payload.(ast.WhileLoopPayload)
		r.walkExpr(w.Cond)
		// Body is an ActionBlock; its own walkStmt case pushes the
		// scope, the same way genWhileLoop leaves scoping to genStmt.
		r.walkStmt(w.Body)

	case ast.KindForLoop:
		// The for-loop's own scope holds the init clause's variable;
		// the body ActionBlock pushes its own nested scope, mirroring
		// genForLoop.
		f := n.Payload.(ast.ForLoopPayload)
		r.table.PushScope()
		r.walkStmt(f.Init)
		r.walkExpr(f.Cond)
		r.walkStmt(f.Body)
		r.walkStmt(f.Post)
		r.table.PopScope()

	case ast.KindReturn:
		if e := n.Payload.(ast.ReturnPayload).Expr; e != ast.InvalidNode {
			r.walkExpr(e)
		}
	case ast.KindBreak:
		if e := n.Payload.(ast.BreakPayload).Expr; e != ast.InvalidNode {
			r.walkExpr(e)
		}
	case ast.KindContinue:
		if e := n.Payload.(ast.ContinuePayload).Expr; e != ast.InvalidNode {
			r.walkExpr(e)
		}

	case ast.KindOutput:
		o := n.Payload.(ast.OutputPayload)
		if o.Content != ast.InvalidNode {
			r.walkExpr(o.Content)
		}
		if o.Next != ast.InvalidNode {
			r.walkStmt(o.Next)
		}

	case ast.KindTimingOp:
		t := n.Payload.(ast.TimingOpPayload)
		r.table.PushTemporalScope(int(t.Offset))
		r.walkExpr(t.Expr)
		r.table.PopScope()

	case ast.KindSwitch:
		sw := n.Payload.(ast.SwitchPayload)
		r.walkExpr(sw.Value)
		for _, c := range r.pool.Siblings(sw.FirstCase) {
			r.walkCase(c)
		}
		if sw.Default != ast.InvalidNode {
			r.walkCase(sw.Default)
		}

	case ast.KindInlineAsm:
		// No names to resolve: opaque text span.

	default:
		// Bare expression statement (FuncCall, BinaryOp assignment, etc).
		r.walkExpr(idx)
	}
}

func (r *resolver) walkCase(idx ast.NodeIndex) {
	n := r.pool.Get(idx)
	switch n.Kind {
	case ast.KindCase:
		c := n.Payload.(ast.CasePayload)
		r.walkExpr(c.Value)
		r.walkChain(c.ActionHead)
	case ast.KindDefault:
		d := n.Payload.(ast.DefaultPayload)
		r.walkChain(d.ActionHead)
	case ast.KindInCase:
		ic := n.Payload.(ast.InCasePayload)
		r.walkChain(ic.ActionHead)
	}
}

func (r *resolver) walkExpr(idx ast.NodeIndex) {
	if idx == ast.InvalidNode {
		return
	}
	n := r.pool.Get(idx)
	switch p := n.Payload.(type) {
	case ast.IdentifierPayload:
		name := r.strs.Get(p.Offset, p.Length)
		if _, ok := r.table.Lookup(name); !ok {
			r.warnings = append(r.warnings, Warning{Node: idx, Offset: p.Offset, Length: p.Length})
		}
	case ast.BinaryOpPayload:
		r.walkExpr(p.Left)
		r.walkExpr(p.Right)
	case ast.UnaryOpPayload:
		r.walkExpr(p.Operand)
	case ast.TernaryPayload:
		r.walkExpr(p.Cond)
		r.walkExpr(p.Then)
		r.walkExpr(p.Else)
	case ast.FuncCallPayload:
		r.walkExpr(p.Callee)
		for _, a := range r.pool.Siblings(p.ArgHead) {
			r.walkExpr(a)
		}
	case ast.Array4dAccessPayload:
		for _, d := range p.Dims {
			r.walkExpr(d)
		}
	case ast.SolidPayload, ast.NumberPayload, ast.FloatPayload, ast.BoolPayload, ast.StringPayload:
		// Literals bind no names.
	}
}

// findByNode reports whether idx has already been declared as a
// symbol anywhere visible, used to avoid re-declaring a hoisted
// declare-block function when the main traversal reaches its
// definition site.
func (r *resolver) findByNode(idx ast.NodeIndex) (*Symbol, bool) {
	fd, ok := r.pool.Get(idx).Payload.(ast.FuncDefPayload)
	if !ok || fd.NameIdent == ast.InvalidNode {
		return nil, false
	}
	ident := r.pool.Get(fd.NameIdent).Payload.(ast.IdentifierPayload)
	name := r.strs.Get(ident.Offset, ident.Length)
	sym, ok := r.table.Lookup(name)
	if ok && sym.Node == idx {
		return sym, true
	}
	return nil, false
}
