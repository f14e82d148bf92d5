// Package ast implements the Blaze abstract syntax tree: a fixed-capacity,
// append-only node pool addressed by 16-bit indices, and
// the string pool backing interned names and literal text.
//
// Node is a true sum type: each variant's Payload is a distinct struct
// type carried behind the Payload interface, rather than one struct
// with overloaded union fields.
package ast

import (
	"fmt"

	"goblaze.dev/blazec/internal/token"
)

// NodeIndex is a 16-bit index into a Pool. Index 0 is reserved as
// "none/invalid".
type NodeIndex uint16

// InvalidNode is the reserved "none" index.
const InvalidNode NodeIndex = 0

// MaxNodes is the pool's fixed capacity.
const MaxNodes = 4096

// Kind tags which payload a Node carries.
type Kind int

const (
	KindProgram Kind = iota
	KindActionBlock
	KindDeclareBlock
	KindNumber
	KindFloat
	KindBool
	KindString
	KindSolid
	KindIdentifier
	KindBinaryOp
	KindUnaryOp
	KindVarDef
	KindFuncDef
	KindFuncCall
	KindConditional
	KindWhileLoop
	KindForLoop
	KindReturn
	KindBreak
	KindContinue
	KindOutput
	KindTimingOp
	KindArray4dDef
	KindArray4dAccess
	KindSwitch
	KindCase
	KindDefault
	KindInCase
	KindInlineAsm
	KindTernary
)

func (k Kind) String() string {
	switch k {
	case KindProgram:
		return "Program"
	case KindActionBlock:
		return "ActionBlock"
	case KindDeclareBlock:
		return "DeclareBlock"
	case KindNumber:
		return "Number"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindSolid:
		return "Solid"
	case KindIdentifier:
		return "Identifier"
	case KindBinaryOp:
		return "BinaryOp"
	case KindUnaryOp:
		return "UnaryOp"
	case KindVarDef:
		return "VarDef"
	case KindFuncDef:
		return "FuncDef"
	case KindFuncCall:
		return "FuncCall"
	case KindConditional:
		return "Conditional"
	case KindWhileLoop:
		return "WhileLoop"
	case KindForLoop:
		return "ForLoop"
	case KindReturn:
		return "Return"
	case KindBreak:
		return "Break"
	case KindContinue:
		return "Continue"
	case KindOutput:
		return "Output"
	case KindTimingOp:
		return "TimingOp"
	case KindArray4dDef:
		return "Array4dDef"
	case KindArray4dAccess:
		return "Array4dAccess"
	case KindSwitch:
		return "Switch"
	case KindCase:
		return "Case"
	case KindDefault:
		return "Default"
	case KindInCase:
		return "InCase"
	case KindInlineAsm:
		return "InlineAsm"
	case KindTernary:
		return "Ternary"
	}
	return "?"
}

// Payload is implemented by every per-variant payload struct. It carries
// no methods beyond the marker: the interface exists purely to let Node
// hold exactly one of a closed set of concrete payload types.
type Payload interface {
	isPayload()
}

// VarType tags the declared or inferred type of a variable.
type VarType int

const (
	TypeInt VarType = iota
	TypeFloat
	TypeString
	TypeBool
	TypeSolid
)

func (t VarType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeSolid:
		return "solid"
	}
	return "?"
}

// OutputKind distinguishes the Output node's print/txt/out/fmt/dyn form.
type OutputKind int

const (
	OutputPrint OutputKind = iota
	OutputTxt
	OutputOut
	OutputFmt
	OutputDyn
)

// TimingKind distinguishes a TimingOp node's onto/into/both/before/after form.
type TimingKind int

const (
	TimingOnto TimingKind = iota
	TimingInto
	TimingBoth
	TimingBefore
	TimingAfter
)

// ConditionalKind distinguishes if/while/ens/chk/... conditional forms
// carried in a Conditional node's Op field; the concrete operator tag is
// whatever token.Kind the parser saw (If, ShortIf, ShortEns, ...).
type ConditionalKind int

// BlockPayload backs Program, ActionBlock, and DeclareBlock: an
// intrusive singly-linked list of statement/child indices via Sibling.
type BlockPayload struct {
	First NodeIndex
}

func (BlockPayload) isPayload() {}

type NumberPayload struct{ Value int64 }

func (NumberPayload) isPayload() {}

type FloatPayload struct{ Value float64 }

func (FloatPayload) isPayload() {}

type BoolPayload struct{ Value bool }

func (BoolPayload) isPayload() {}

// StringPayload points at an unescaped, NUL-terminated span in the
// string pool.
type StringPayload struct {
	Offset uint32
	Length uint32
}

func (StringPayload) isPayload() {}

// SolidPayload is parsed and resolved but never lowered by codegen;
// its fields are kept exactly as the grammar can produce them.
type SolidPayload struct {
	KnownOffset      uint32
	KnownLength      uint32
	BarrierKind      int
	BarrierMagnitude int64
	ConfidenceMilli  int // confidence × 1000
	TerminalOffset   uint32
	TerminalLength   uint32
	TerminalKind     int
}

func (SolidPayload) isPayload() {}

type IdentifierPayload struct {
	Offset uint32
	Length uint32
}

func (IdentifierPayload) isPayload() {}

type BinaryOpPayload struct {
	Op    token.Kind
	Left  NodeIndex
	Right NodeIndex
}

func (BinaryOpPayload) isPayload() {}

type UnaryOpPayload struct {
	Op      token.Kind
	Operand NodeIndex
}

func (UnaryOpPayload) isPayload() {}

type VarDefPayload struct {
	NameOffset uint32
	NameLength uint32
	VarType    VarType
	Init       NodeIndex // InvalidNode if uninitialized
}

func (VarDefPayload) isPayload() {}

// FuncDefPayload: the function body, the parameter-list head, the
// declared-before-use flag, and the function's own name identifier.
type FuncDefPayload struct {
	Body      NodeIndex
	ParamHead NodeIndex
	Declared  bool
	NameIdent NodeIndex
}

func (FuncDefPayload) isPayload() {}

type FuncCallPayload struct {
	Callee  NodeIndex
	ArgHead NodeIndex
}

func (FuncCallPayload) isPayload() {}

// ConditionalPayload covers if/else and the short forms (f.if, f.ens, ...);
// Op is the token.Kind that introduced the construct.
type ConditionalPayload struct {
	Op       token.Kind
	Cond     NodeIndex
	BodyHead NodeIndex
	Else     NodeIndex // InvalidNode if absent
}

func (ConditionalPayload) isPayload() {}

type WhileLoopPayload struct {
	Cond NodeIndex
	Body NodeIndex
}

func (WhileLoopPayload) isPayload() {}

type ForLoopPayload struct {
	Init NodeIndex
	Cond NodeIndex
	Post NodeIndex
	Body NodeIndex
}

func (ForLoopPayload) isPayload() {}

type ReturnPayload struct{ Expr NodeIndex }

func (ReturnPayload) isPayload() {}

type BreakPayload struct{ Expr NodeIndex }

func (BreakPayload) isPayload() {}

type ContinuePayload struct{ Expr NodeIndex }

func (ContinuePayload) isPayload() {}

type OutputPayload struct {
	Kind    OutputKind
	Content NodeIndex
	Next    NodeIndex
}

func (OutputPayload) isPayload() {}

type TimingOpPayload struct {
	Kind   TimingKind
	Expr   NodeIndex
	Offset int32
}

func (TimingOpPayload) isPayload() {}

type Array4dDefPayload struct {
	NameOffset uint32
	NameLength uint32
	Dims       [4]NodeIndex
}

func (Array4dDefPayload) isPayload() {}

type Array4dAccessPayload struct {
	NameOffset uint32
	NameLength uint32
	Dims       [4]NodeIndex
}

func (Array4dAccessPayload) isPayload() {}

type SwitchPayload struct {
	Value     NodeIndex
	FirstCase NodeIndex
	Default   NodeIndex
}

func (SwitchPayload) isPayload() {}

type CasePayload struct {
	Value      NodeIndex
	ActionHead NodeIndex
	Next       NodeIndex
}

func (CasePayload) isPayload() {}

type DefaultPayload struct {
	ActionHead NodeIndex
}

func (DefaultPayload) isPayload() {}

type InCasePayload struct {
	ActionHead NodeIndex
}

func (InCasePayload) isPayload() {}

type InlineAsmPayload struct {
	Offset uint32
	Length uint32
}

func (InlineAsmPayload) isPayload() {}

// TernaryPayload backs the `cond ? then : else` expression form from
// the level-1 operator table. The grammar requires a true three-way
// branch that BinaryOpPayload's two operand slots cannot hold, so it
// gets its own sum-type arm rather than being shoehorned into
// BinaryOp.
type TernaryPayload struct {
	Cond NodeIndex
	Then NodeIndex
	Else NodeIndex
}

func (TernaryPayload) isPayload() {}

// Node is one AST node: its Kind, an intrusive sibling-chain pointer
// (separate from Payload, never overloaded into a payload field), and
// its variant-specific Payload.
type Node struct {
	Kind    Kind
	Sibling NodeIndex
	Payload Payload
}

// ErrPoolExhausted is returned by Alloc once the pool's fixed capacity
// is reached. This is fatal, not recoverable.
var ErrPoolExhausted = fmt.Errorf("ast: node pool exhausted (capacity %d)", MaxNodes)

// Pool is the fixed-capacity, append-only node store. Nodes are
// allocated in strictly increasing index order and never freed,
// reordered, or reallocated.
type Pool struct {
	nodes []Node
}

// NewPool returns an empty Pool with slot 0 reserved as InvalidNode.
func NewPool() *Pool {
	p := &Pool{nodes: make([]Node, 1, MaxNodes)}
	p.nodes[0] = Node{Kind: KindProgram, Payload: BlockPayload{}}
	return p
}

// Len returns the number of allocated nodes, including the reserved slot 0.
func (p *Pool) Len() int { return len(p.nodes) }

// Alloc appends a new node and returns its index, or ErrPoolExhausted if
// the pool is at capacity.
func (p *Pool) Alloc(kind Kind, payload Payload) (NodeIndex, error) {
	if len(p.nodes) >= MaxNodes {
		return InvalidNode, ErrPoolExhausted
	}
	idx := NodeIndex(len(p.nodes))
	p.nodes = append(p.nodes, Node{Kind: kind, Payload: payload})
	return idx, nil
}

// Get returns the node at idx. idx must be strictly less than the
// current pool size; Get panics on an
// out-of-range index since that can only indicate a compiler bug, not
// malformed input (every index the parser stores was itself validated
// at allocation time).
func (p *Pool) Get(idx NodeIndex) Node {
	if int(idx) >= len(p.nodes) {
		panic(fmt.Sprintf("ast: node index %d out of range (pool size %d)", idx, len(p.nodes)))
	}
	return p.nodes[idx]
}

// SetPayload overwrites the payload of the node at idx, keeping its
// Kind and Sibling. The parser uses this exactly once per compilation,
// to finalize the pre-allocated Program root's child list once every
// top-level statement has been parsed and allocated: NewPool reserves
// index 0 for both "none" and the program root simultaneously, so the
// root's own BlockPayload.First cannot be known at Alloc time the way
// every other node's payload is.
func (p *Pool) SetPayload(idx NodeIndex, payload Payload) {
	n := p.nodes[idx]
	n.Payload = payload
	p.nodes[idx] = n
}

// SetSibling links next as the sibling of the node at idx.
func (p *Pool) SetSibling(idx, next NodeIndex) {
	n := p.nodes[idx]
	n.Sibling = next
	p.nodes[idx] = n
}

// Siblings walks the intrusive sibling chain starting at head,
// defending against a malformed chain: sibling links must strictly
// increase in index, so a
// self-loop or backward link is treated as end-of-chain rather than an
// infinite walk.
func (p *Pool) Siblings(head NodeIndex) []NodeIndex {
	var out []NodeIndex
	cur := head
	for cur != InvalidNode {
		out = append(out, cur)
		next := p.Get(cur).Sibling
		if next <= cur {
			break
		}
		cur = next
	}
	return out
}
