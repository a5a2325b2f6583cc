package lower

import (
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/symtab"
	"lattice.build/go/corec/ty"
)

// Expr is a node of the parsed expression tree the body builder lowers
// into MIR (spec §4.3). It is intentionally the smallest node set that
// covers the lowering rules the spec names; a real frontend's AST would
// carry far more (string interpolation, pattern-match expressions,
// generics) but every one of those eventually bottoms out at one of
// these forms for the purposes of MIR emission.
type Expr interface {
	isExpr()
}

// LitExpr is a literal value already classified to a ConstValue by the
// resolver (spec §1 scopes tokenizing the literal's text out of this
// core; classifying `1` as an IntConst vs `1.0` as a FloatConst is a
// lexing concern, not a lowering one).
type LitExpr struct {
	Value mir.ConstValue
	Ty    ty.Ty
}

// NameExpr reads a local, parameter, or capture by the name it was
// declared under.
type NameExpr struct{ Name string }

// MoveExpr wraps a place-producing expression to lower it as a
// MoveOperand instead of a CopyOperand — the AST's explicit `move(x)`
// form (spec §4.5 "move").
type MoveExpr struct{ Place Expr }

type UnaryExpr struct {
	Op      mir.UnOp
	Operand Expr
	Ty      ty.Ty // result type, carried by the resolver the way LitExpr/CondExpr do
}

type BinaryExpr struct {
	Op       mir.BinOp
	Lhs, Rhs Expr
	Ty       ty.Ty
}

// LogicalOp is the short-circuit boolean connective of a LogicalExpr.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// LogicalExpr is `&&`/`||`: Rhs must not be evaluated unless Lhs's
// value doesn't already settle the result (spec §4.3 "short-circuit").
type LogicalExpr struct {
	Op       LogicalOp
	Lhs, Rhs Expr
}

// CondExpr is an if-expression: exactly one of Then/Else is evaluated.
type CondExpr struct {
	Cond, Then, Else Expr
	Ty               ty.Ty // join type of Then/Else, for the result temp
}

// CallArg is one call-site argument; Name is empty for a positional
// argument (spec §4.3 "Overload/named-argument binding").
type CallArg struct {
	Name  string
	Value Expr
	Mode  symtab.Mode
}

// CallExpr is a free/static function call. Qualified names the overload
// set to resolve against via BindCall.
type CallExpr struct {
	Qualified string
	Args      []CallArg
}

// MethodCallExpr is a call through a receiver expression; the body
// builder places Receiver as argument 0 ahead of Args (spec §4.3
// "method-receiver-into-first-arg") and resolves Owner.Method against
// the symbol index, consulting the vtable for virtual dispatch.
type MethodCallExpr struct {
	Receiver     Expr
	ReceiverMode symtab.Mode
	Owner        string
	Method       string
	Args         []CallArg
}

// FieldExpr projects a named field off Base.
type FieldExpr struct {
	Base  Expr
	Name  string
	Index int
}

// IndexExpr projects a dynamic index off Base.
type IndexExpr struct {
	Base, Index Expr
}

// DerefExpr dereferences a pointer/reference-typed Base.
type DerefExpr struct{ Base Expr }

// AddressOfExpr borrows Place (spec §4.5 "Borrow"). The body builder
// emits a BorrowStmt carrying the id of the local that stores the
// resulting reference, so the borrow checker can release it again on
// that local's StorageDead (spec §8.3 scenario 3).
type AddressOfExpr struct {
	Place   Expr
	Mutable bool
}

// CastExpr classifies and lowers a source-level cast via
// lower.ClassifyCast before emitting a mir.CastRvalue.
type CastExpr struct {
	Operand       Expr
	Kind          CastKind
	TargetTy      ty.Ty
	InUnsafeBlock bool
	Narrowing     bool
}

func (LitExpr) isExpr()         {}
func (NameExpr) isExpr()        {}
func (MoveExpr) isExpr()        {}
func (UnaryExpr) isExpr()       {}
func (BinaryExpr) isExpr()      {}
func (LogicalExpr) isExpr()     {}
func (CondExpr) isExpr()        {}
func (CallExpr) isExpr()        {}
func (MethodCallExpr) isExpr()  {}
func (FieldExpr) isExpr()       {}
func (IndexExpr) isExpr()       {}
func (DerefExpr) isExpr()       {}
func (AddressOfExpr) isExpr()   {}
func (CastExpr) isExpr()        {}

// Stmt is one statement of the parsed function body.
type Stmt interface {
	isStmt()
}

// LetStmt declares a new local, initialised from Init (nil for a
// declaration with no initializer, which still gets a StorageLive so
// later uses see a well-defined, if unassigned, slot).
type LetStmt struct {
	Name    string
	Ty      ty.Ty
	Init    Expr
	Mutable bool
}

// ExprStmt evaluates Expr for its side effects, discarding the result.
type ExprStmt struct{ Expr Expr }

// AssignStmt stores Value into the place Target resolves to.
type AssignStmt struct{ Target, Value Expr }

type ReturnStmt struct{ Value Expr }

type IfStmt struct {
	Cond       Expr
	Then, Else []Stmt
}

type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

// BlockStmt introduces a nested lexical scope: locals declared inside
// it (including borrow temporaries) go out of scope, and are released
// via StorageDead, when the block ends.
type BlockStmt struct{ Stmts []Stmt }

func (LetStmt) isStmt()    {}
func (ExprStmt) isStmt()   {}
func (AssignStmt) isStmt() {}
func (ReturnStmt) isStmt() {}
func (IfStmt) isStmt()     {}
func (WhileStmt) isStmt()  {}
func (BlockStmt) isStmt()  {}

// ParamDecl is one parameter or capture the body builder materializes
// as a local before lowering the body (spec §4.3 "locals & captures").
type ParamDecl struct {
	Name string
	Ty   ty.Ty
	Mode mir.ParamMode
}

// FunctionAST is the parsed declaration the body builder lowers into a
// mir.MirBody: spec §1's "parsed module tree" input, scoped down to one
// function. Receiver, when non-nil, becomes Arg(0) ahead of Params
// (spec §4.3 "method-receiver-into-first-arg" at the declaration site);
// Captures become the Arg slots following Params, the convention a
// closure's environment is passed in as trailing hidden arguments.
type FunctionAST struct {
	Receiver *ParamDecl
	Params   []ParamDecl
	Captures []ParamDecl
	ReturnTy ty.Ty
	Body     []Stmt
}
