package codegen

import "goblaze.dev/blazec/internal/ast"

// localVar is one name binding in the generator's own scope chain.
// Codegen keeps this bookkeeping separate from symbols.Table: the
// resolver's nested scopes are popped as the resolve walk finishes,
// so by the time Generate runs only its root scope (function names and
// top-level declarations) survives — which genCall still consults for
// call targets — and no local binding is left to reuse. Codegen instead replays the same
// push/declare/pop structure over the same tree with its own
// lightweight environment, whose only job is stack-slot and register
// bookkeeping.
type localVar struct {
	varType     ast.VarType
	slot        int  // LoadLocal/StoreLocal-style signed offset argument
	isStatic    bool // string/solid literals stored as static embedded data, not a stack cell
	initialized bool
}

type genScope struct {
	parent *genScope
	vars   map[string]*localVar
}

func newGenScope(parent *genScope) *genScope {
	return &genScope{parent: parent, vars: make(map[string]*localVar)}
}

func (g *Generator) pushScope() {
	g.scope = newGenScope(g.scope)
}

func (g *Generator) popScope() {
	g.scope = g.scope.parent
}

func (g *Generator) declareLocal(name string, vt ast.VarType) *localVar {
	lv := &localVar{varType: vt}
	g.scope.vars[name] = lv
	return lv
}

func (g *Generator) lookupLocal(name string) (*localVar, bool) {
	for s := g.scope; s != nil; s = s.parent {
		if lv, ok := s.vars[name]; ok {
			return lv, true
		}
	}
	return nil, false
}
