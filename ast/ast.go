// Package ast defines the node shapes the evaluator consumes. The
// lexer/parser that produces these nodes from source text is out of scope
// (spec 1) — this package only declares the immutable node interfaces and a
// small constructor set (build.go) used to build fixtures in tests.
package ast

// Span identifies a source range for diagnostics. The parser that is out of
// scope for this module is responsible for populating accurate offsets;
// zero-value spans are legal for synthetically constructed nodes.
type Span struct {
	Start int
	End   int
}

// SourceRef names the origin file of a module, when it has one (the prelude
// module, if any, has none).
type SourceRef struct {
	Path string
}

// Module is the parsed top-level unit: a sequence of declarations.
type Module struct {
	Declarations []Declaration
}

// Declaration is a named top-level binding: either a LetDeclare or an
// FnDeclare.
type Declaration interface {
	DeclName() string
	declaration()
}

// LetDeclare is `let <name> = <expr>`.
type LetDeclare struct {
	Span Span
	Pub  bool
	Name string
	Expr Expr
}

func (l *LetDeclare) DeclName() string { return l.Name }
func (*LetDeclare) declaration()       {}

// FnDeclare is `fn <name>(<params>) { <block> }`.
type FnDeclare struct {
	Span   Span
	Pub    bool
	Name   string
	Params []string
	Body   *Block
}

func (f *FnDeclare) DeclName() string { return f.Name }
func (*FnDeclare) declaration()       {}

// Expr is any expression node.
type Expr interface {
	Span() Span
	expr()
}

type baseExpr struct{ S Span }

func (b baseExpr) Span() Span { return b.S }

// Ident is an identifier reference.
type Ident struct {
	baseExpr
	Name string
}

func NewIdent(s Span, name string) *Ident { return &Ident{baseExpr{s}, name} }
func (*Ident) expr()                      {}

// IntegerLiteral is the source text of an integer literal (parsed lazily by
// the evaluator so that parse failures surface as InvalidIntegerLiteral at
// evaluation time, matching spec 4.3.2 and the original's lazy
// `.parse::<isize>()`).
type IntegerLiteral struct {
	baseExpr
	Text string
}

func NewIntegerLiteral(s Span, text string) *IntegerLiteral {
	return &IntegerLiteral{baseExpr{s}, text}
}
func (*IntegerLiteral) expr() {}

// StringLiteral is a string literal's decoded contents.
type StringLiteral struct {
	baseExpr
	Value string
}

func NewStringLiteral(s Span, v string) *StringLiteral { return &StringLiteral{baseExpr{s}, v} }
func (*StringLiteral) expr()                           {}

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	baseExpr
	Value bool
}

func NewBoolLiteral(s Span, v bool) *BoolLiteral { return &BoolLiteral{baseExpr{s}, v} }
func (*BoolLiteral) expr()                       {}

// BinaryOperatorKind enumerates the binary operators of spec 6.3.
type BinaryOperatorKind uint8

const (
	OpAdd BinaryOperatorKind = iota
	OpSub
	OpMul
	OpDiv
	OpDot
	OpLogicalAnd
	OpLogicalOr
	OpEquals
	OpNotEquals
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
)

// BinaryOp is a binary operator application.
type BinaryOp struct {
	baseExpr
	Op    BinaryOperatorKind
	Left  Expr
	Right Expr
}

func NewBinaryOp(s Span, op BinaryOperatorKind, left, right Expr) *BinaryOp {
	return &BinaryOp{baseExpr{s}, op, left, right}
}
func (*BinaryOp) expr() {}

// UnaryNot is the `!` prefix operator.
type UnaryNot struct {
	baseExpr
	Operand Expr
}

func NewUnaryNot(s Span, operand Expr) *UnaryNot { return &UnaryNot{baseExpr{s}, operand} }
func (*UnaryNot) expr()                          {}

// If is `if <cond> { <then> } else { <else> }`. Else is nil when absent, in
// which case a false condition yields Unit.
type If struct {
	baseExpr
	Cond Expr
	Then *Block
	Else *Block
}

func NewIf(s Span, cond Expr, then, els *Block) *If { return &If{baseExpr{s}, cond, then, els} }
func (*If) expr()                                   {}

// Call is function application: callee(args...).
type Call struct {
	baseExpr
	Callee Expr
	Args   []Expr
}

func NewCall(s Span, callee Expr, args []Expr) *Call { return &Call{baseExpr{s}, callee, args} }
func (*Call) expr()                                  {}

// RecordLit is `{ k = v, ... }`; duplicate keys take the last value (spec
// 4.3.2).
type RecordLit struct {
	baseExpr
	Keys   []string
	Values []Expr
}

func NewRecordLit(s Span, keys []string, values []Expr) *RecordLit {
	return &RecordLit{baseExpr{s}, keys, values}
}
func (*RecordLit) expr() {}

// ListLit is `[ ..., ]`.
type ListLit struct {
	baseExpr
	Elems []Expr
}

func NewListLit(s Span, elems []Expr) *ListLit { return &ListLit{baseExpr{s}, elems} }
func (*ListLit) expr()                         {}

// ClosureLit is `fn(args){ block }`.
type ClosureLit struct {
	baseExpr
	Params []string
	Body   *Block
}

func NewClosureLit(s Span, params []string, body *Block) *ClosureLit {
	return &ClosureLit{baseExpr{s}, params, body}
}
func (*ClosureLit) expr() {}

// InternalRef is `internal.<name>`, resolving to an InternalFunction value.
type InternalRef struct {
	baseExpr
	Name string
}

func NewInternalRef(s Span, name string) *InternalRef { return &InternalRef{baseExpr{s}, name} }
func (*InternalRef) expr()                            {}

// Statement is one statement inside a Block.
type Statement interface {
	statement()
}

// ExprStmt is a bare expression used for its value or side effect.
type ExprStmt struct{ Expr Expr }

func (ExprStmt) statement() {}

// LetStmt installs a local binding visible in the remainder of the block.
type LetStmt struct {
	Name string
	Expr Expr
}

func (LetStmt) statement() {}

// Block is a sequence of statements; its value is the value of its last
// expression statement, or Unit if it ends in a let-statement.
type Block struct {
	Span       Span
	Statements []Statement
}
