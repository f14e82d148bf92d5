// Package token defines the closed set of lexical token kinds the Blaze
// parser consumes. The lexer that produces a []Token is an external
// collaborator: this package only fixes the shape of its output.
package token

// Kind classifies a Token. The set is closed; the parser switches
// exhaustively over it and treats any other value as a lex error.
type Kind int

const (
	EOF Kind = iota
	Error

	// Literals
	Number
	Float
	SolidNumber
	String
	True
	False

	// Identifiers and typed-variable forms
	Identifier
	Var
	VarInt
	VarFloat
	VarString
	VarBool
	VarSolid
	VarChar
	Const

	// Punctuation
	LParen
	RParen
	LBrack
	RBrack
	LBrace
	RBrace
	Comma
	Dot
	Colon
	Semicolon
	At
	Pipe
	Slash
	Backslash
	Minus
	Underscore
	Question

	// Arithmetic operators
	Plus
	Star
	Percent
	StarStar

	// Comparison operators
	Lt
	Gt
	Leq
	Geq
	EqEq
	NotEq
	BlazeCmpGt  // *>
	BlazeCmpLt  // *_<
	BlazeCmpEq  // *=
	BlazeCmpNeq // *!=

	// Logical operators
	AndAnd
	OrOr
	Not

	// Bitwise operators
	Amp
	Caret
	Tilde
	Shl
	Shr

	// Assignment operators
	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	StarStarAssign

	// Increment / decrement
	Inc
	Dec

	// Control keywords
	If
	Else
	While
	For
	Return
	Break
	Continue
	Switch
	Case
	Default
	InCase
	ShortIf  // f.if
	ShortWhl // f.whl
	ShortEns // f.ens
	ShortChk // f.chk
	ShortTry // f.try
	ShortGrd // f.grd
	ShortUnl // f.unl
	ShortUnt // f.unt
	ShortVer // f.ver
	ShortMsr // f.msr

	// Output
	Print
	Txt
	Out
	Fmt
	Dyn

	// Structural
	DoSlash     // do/
	FwdConnect  // \>|
	BackConnect // \<|
	BlockEnd    // :>
	BlockOpen   // <  (after a conditional keyword)

	// Timing
	TimingOnto
	TimingInto
	TimingBoth
	TimingBefore
	TimingAfter

	// Other
	Asm
	MathDot      // math.
	Array4D      // array.4d
	DeclareSlash // declare/
	JumpMarker   // ^
	ParamToken   // {@param:name}
)

// Token is an immutable classified lexeme with a source-offset span.
// For keyword-like tokens that encode a name inline (e.g. var.int-name),
// NameOffset/NameLength describe the same span as the identifier the
// token carries; for everything else they are zero.
type Token struct {
	Kind       Kind
	Offset     int
	Length     int
	NameOffset int
	NameLength int
}

// End returns the offset one past the token's last byte.
func (t Token) End() int { return t.Offset + t.Length }

var names = map[Kind]string{
	EOF: "EOF", Error: "<error>",
	Number: "number", Float: "float", SolidNumber: "solid", String: "string",
	True: "true", False: "false", Identifier: "identifier",
	Var: "var", VarInt: "var.int", VarFloat: "var.float", VarString: "var.string",
	VarBool: "var.bool", VarSolid: "var.solid", VarChar: "var.char", Const: "const",
	LParen: "(", RParen: ")", LBrack: "[", RBrack: "]", LBrace: "{", RBrace: "}",
	Comma: ",", Dot: ".", Colon: ":", Semicolon: ";", At: "@", Pipe: "|",
	Slash: "/", Backslash: "\\", Minus: "-", Underscore: "_", Question: "?",
	Plus: "+", Star: "*", Percent: "%", StarStar: "**",
	Lt: "<", Gt: ">", Leq: "<=", Geq: ">=", EqEq: "==", NotEq: "!=",
	BlazeCmpGt: "*>", BlazeCmpLt: "*_<", BlazeCmpEq: "*=", BlazeCmpNeq: "*!=",
	AndAnd: "&&", OrOr: "||", Not: "!",
	Amp: "&", Caret: "^", Tilde: "~", Shl: "<<", Shr: ">>",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=",
	SlashAssign: "/=", PercentAssign: "%=", StarStarAssign: "**=",
	Inc: "++", Dec: "--",
	If: "if", Else: "else", While: "while", For: "for", Return: "return",
	Break: "break", Continue: "continue", Switch: "switch", Case: "case",
	Default: "default", InCase: "incase",
	ShortIf: "f.if", ShortWhl: "f.whl", ShortEns: "f.ens", ShortChk: "f.chk",
	ShortTry: "f.try", ShortGrd: "f.grd", ShortUnl: "f.unl", ShortUnt: "f.unt",
	ShortVer: "f.ver", ShortMsr: "f.msr",
	Print: "print", Txt: "txt", Out: "out", Fmt: "fmt", Dyn: "dyn",
	DoSlash: "do/", FwdConnect: `\>|`, BackConnect: `\<|`, BlockEnd: ":>", BlockOpen: "<",
	TimingOnto: "onto", TimingInto: "into", TimingBoth: "both",
	TimingBefore: "before", TimingAfter: "after",
	Asm: "asm", MathDot: "math.", Array4D: "array.4d", DeclareSlash: "declare/",
	JumpMarker: "^", ParamToken: "{@param}",
}

// String returns the canonical textual name of a Kind, for diagnostics.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "?"
}
