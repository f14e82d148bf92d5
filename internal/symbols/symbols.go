// Package symbols implements Blaze's lexically-scoped symbol table,
// including the "temporal scope" extension a TimingOp introduces: a
// scope tagged with a signed time offset that lookups can see across,
// regardless of where in the AST they sit relative to its definition
// site.
package symbols

import (
	"fmt"

	"goblaze.dev/blazec/internal/ast"
)

// Kind classifies a Symbol.
type Kind int

const (
	KindVar Kind = iota
	KindConst
	KindFunc
	KindParam
	KindArray4D
)

func (k Kind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindConst:
		return "const"
	case KindFunc:
		return "func"
	case KindParam:
		return "param"
	case KindArray4D:
		return "array4d"
	}
	return "?"
}

// StorageClass distinguishes stack-resident from statically-allocated
// storage, mirroring the two storage strategies the codegen stage must
// choose between.
type StorageClass int

const (
	StorageStack StorageClass = iota
	StorageStatic
	StorageNone // functions: no storage slot of their own
)

// Symbol is one resolved name. NameOffset/NameLength point into the
// shared ast.StringPool the parser populated; Node is the defining AST
// node, kept so codegen never needs a second name-based lookup once
// resolution has run.
type Symbol struct {
	NameOffset uint32
	NameLength uint32
	Kind       Kind
	VarType    ast.VarType
	Storage    StorageClass
	Node       ast.NodeIndex
	ScopeLevel int

	// VisibleInPast/VisibleInFuture mark a symbol defined inside a
	// temporal scope as reachable from lookups issued before or after
	// its definition site in source order. Both false for an ordinary, non-temporal symbol.
	VisibleInPast   bool
	VisibleInFuture bool

	// Arity is the declared parameter count, meaningful only for KindFunc.
	Arity int
	// Dims holds each axis's declared extent, meaningful only for KindArray4D.
	Dims [4]int

	// StackSlot is the byte offset from the frame base codegen assigns
	// this symbol, valid only once codegen has run (zero until then).
	StackSlot int
}

// Scope is one lexical frame: a name table plus a parent-pointer link
// to its enclosing scope. A non-nil Temporal marks it as a temporal
// scope opened by a TimingOp, carrying the signed time offset from
// the point it was opened.
type Scope struct {
	parent   *Scope
	names    map[string]*Symbol
	Temporal *int
	Level    int
}

func newScope(parent *Scope, temporal *int) *Scope {
	level := 0
	if parent != nil {
		level = parent.Level + 1
	}
	return &Scope{parent: parent, names: make(map[string]*Symbol), Temporal: temporal, Level: level}
}

// ErrRedeclared is returned by Declare when name already exists in the
// current scope.
type ErrRedeclared struct {
	Name string
}

func (e *ErrRedeclared) Error() string {
	return fmt.Sprintf("symbols: %q already declared in this scope", e.Name)
}

// Table is the resolver's working set of open scopes plus the
// append-only list of every temporal scope ever opened, kept around
// after it closes so a later-in-source, earlier-in-time lookup can
// still find it.
type Table struct {
	current  *Scope
	root     *Scope
	temporal []*Scope // every temporal scope opened during the walk, closed or not
	strings  *ast.StringPool
}

// NewTable returns a Table with a single open root scope.
func NewTable(strings *ast.StringPool) *Table {
	root := newScope(nil, nil)
	return &Table{current: root, root: root, strings: strings}
}

// PushScope opens an ordinary lexical scope nested inside the current one.
func (t *Table) PushScope() {
	t.current = newScope(t.current, nil)
}

// PushTemporalScope opens a scope tagged with a signed time offset.
// The scope is recorded in t.temporal for the lifetime of the Table,
// not just while it's open, since later lookups must be able to reach
// into closed temporal scopes.
func (t *Table) PushTemporalScope(offset int) {
	s := newScope(t.current, &offset)
	t.current = s
	t.temporal = append(t.temporal, s)
}

// PopScope closes the current scope and returns to its parent. Popping
// the root scope is a programmer error and panics, matching Get's
// contract in package ast: it can only indicate a compiler bug.
func (t *Table) PopScope() {
	if t.current.parent == nil {
		panic("symbols: pop of root scope")
	}
	t.current = t.current.parent
}

// Level reports the current scope's nesting depth (root is 0).
func (t *Table) Level() int { return t.current.Level }

// Declare adds sym under name in the current scope. It fails with
// ErrRedeclared if name is already bound in this exact scope (shadowing
// an outer scope's binding is allowed).
func (t *Table) Declare(name string, sym *Symbol) error {
	if _, exists := t.current.names[name]; exists {
		return &ErrRedeclared{Name: name}
	}
	sym.ScopeLevel = t.current.Level
	t.current.names[name] = sym
	return nil
}

// DeclareGlobal binds sym under name in the root scope regardless of
// the current nesting. Function names form a single flat call
// namespace: codegen resolves call targets against the table after
// every lexical scope has been popped, so a function defined inside a
// nested block (an else branch, a case body) must still be reachable
// from the root.
func (t *Table) DeclareGlobal(name string, sym *Symbol) error {
	if _, exists := t.root.names[name]; exists {
		return &ErrRedeclared{Name: name}
	}
	sym.ScopeLevel = 0
	t.root.names[name] = sym
	return nil
}

// Lookup resolves name starting at the current scope and walking
// parent links outward (ordinary lexical resolution). If that fails,
// it falls back to scanning every temporal scope recorded so far,
// regardless of lexical nesting, per the two-pass forward/temporal
// tolerance forward references need: a lookup issued from outside
// a temporal scope's lexical extent can still see a symbol declared
// inside it, provided that symbol is marked visible in the requesting
// direction.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	for s := t.current; s != nil; s = s.parent {
		if sym, ok := s.names[name]; ok {
			return sym, true
		}
	}
	for _, s := range t.temporal {
		if sym, ok := s.names[name]; ok {
			if sym.VisibleInPast || sym.VisibleInFuture {
				return sym, true
			}
		}
	}
	return nil, false
}

// LookupLocal resolves name only in the current scope, without walking
// parents or temporal scopes — for callers that need to distinguish
// "shadows an outer binding" from "is the same binding".
func (t *Table) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := t.current.names[name]
	return sym, ok
}

// CurrentTemporalOffset returns the signed time offset of the nearest
// enclosing temporal scope, if any.
func (t *Table) CurrentTemporalOffset() (int, bool) {
	for s := t.current; s != nil; s = s.parent {
		if s.Temporal != nil {
			return *s.Temporal, true
		}
	}
	return 0, false
}

// SymbolName recovers sym's text from the string pool the Table was
// built with — the only place a Symbol's name lives as bytes rather
// than an offset/length pair.
func (t *Table) SymbolName(sym *Symbol) string {
	return t.strings.Get(sym.NameOffset, sym.NameLength)
}

// RootSymbols returns every symbol declared directly in the root
// scope (function names and any top-level var/const), for --dump-symbols.
func (t *Table) RootSymbols() map[string]*Symbol {
	return t.root.names
}
