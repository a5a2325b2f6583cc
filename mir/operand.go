package mir

import "lattice.build/go/corec/ty"

// ConstValue is the tagged-union constant payload shared by operands and
// the const evaluator (spec §4.6, GLOSSARY "ConstValue").
type ConstValue interface {
	isConstValue()
}

type IntConst struct{ Value int64 }
type UIntConst struct{ Value uint64 }
type FloatConst struct{ Value float64 }
type BoolConst struct{ Value bool }
type StringConst struct{ Value string }
type BytesConst struct{ Value []byte }
type UnitConst struct{}
type AggregateConst struct {
	TypeName string
	Fields   []ConstValue
}
type QuoteConst struct {
	Hygiene       string
	Captures      []string
	Interpolation []ConstValue
	Source        string
}

func (IntConst) isConstValue()       {}
func (UIntConst) isConstValue()      {}
func (FloatConst) isConstValue()     {}
func (BoolConst) isConstValue()      {}
func (StringConst) isConstValue()    {}
func (BytesConst) isConstValue()     {}
func (UnitConst) isConstValue()      {}
func (AggregateConst) isConstValue() {}
func (QuoteConst) isConstValue()     {}

// ConstOperand pairs a folded constant with its static type.
type ConstOperand struct {
	Value ConstValue
	Ty    ty.Ty
}

// BorrowKind discriminates Shared/Mutable/Unique borrows (spec §4.5).
type BorrowKind int

const (
	BorrowShared BorrowKind = iota
	BorrowMutable
	BorrowUnique
)

func (k BorrowKind) String() string {
	switch k {
	case BorrowShared:
		return "shared"
	case BorrowMutable:
		return "mutable"
	case BorrowUnique:
		return "unique"
	default:
		return "unknown"
	}
}

// Operand is a value consumed by an Rvalue or terminator (spec §3.4).
type Operand interface {
	isOperand()
}

type CopyOperand struct{ Place Place }
type MoveOperand struct{ Place Place }
type ConstOp struct{ Const ConstOperand }
type BorrowOperand struct {
	Place Place
	Kind  BorrowKind
}

// MMIOOperand denotes a read from a memory-mapped accelerator register;
// it is never subject to ordinary move/copy analysis (spec §4.5 "MMIO").
type MMIOOperand struct {
	Register string
	Ty       ty.Ty
}

// PendingOperand is an opaque placeholder for an operand not yet lowered
// by an upstream stage (spec §9 open question on partial lowering).
type PendingOperand struct{ Repr string }

func (CopyOperand) isOperand()    {}
func (MoveOperand) isOperand()    {}
func (ConstOp) isOperand()        {}
func (BorrowOperand) isOperand()  {}
func (MMIOOperand) isOperand()    {}
func (PendingOperand) isOperand() {}

// PlaceOf returns the place an operand reads from, if it has one.
func PlaceOf(op Operand) (Place, bool) {
	switch v := op.(type) {
	case CopyOperand:
		return v.Place, true
	case MoveOperand:
		return v.Place, true
	case BorrowOperand:
		return v.Place, true
	default:
		return Place{}, false
	}
}
