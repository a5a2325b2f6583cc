package borrowck_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/borrowck"
	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/ty"
)

func bodyWith(locals []mir.Local, statements []mir.Statement, term mir.Terminator) *mir.MirBody {
	return &mir.MirBody{
		Locals: locals,
		Blocks: []mir.Block{{ID: 0, Statements: statements, Terminator: term}},
	}
}

// TestMoveWhileBorrowedIsRejected exercises spec §8.3's borrow-then-move
// scenario: a Unique borrow of a place is live when a Move of that place
// is attempted.
func TestMoveWhileBorrowedIsRejected(t *testing.T) {
	t.Parallel()

	place := mir.Place{Local: 0}
	body := bodyWith(
		[]mir.Local{{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.I32)}},
		[]mir.Statement{
			mir.BorrowStmt{Kind: mir.BorrowUnique, Place: place},
		},
		mir.Return{Value: mir.MoveOperand{Place: place}},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	require.True(t, bag.HasErrors())
}

// TestStorageDeadClearsBorrowBeforeMove exercises spec §8.3 scenario 3:
// adding a StorageDead on the borrow's owning local before the move
// clears the "cannot move while borrowed" diagnostic.
func TestStorageDeadClearsBorrowBeforeMove(t *testing.T) {
	t.Parallel()

	place := mir.Place{Local: 0}
	borrowLocal := mir.LocalID(1)
	body := bodyWith(
		[]mir.Local{
			{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.I32)},
			{Kind: mir.KindLocal, Ty: ty.NewNamed("core", "Ref")},
		},
		[]mir.Statement{
			mir.BorrowStmt{ID: int(borrowLocal), Kind: mir.BorrowShared, Place: place},
			mir.StorageDead{Local: borrowLocal},
		},
		mir.Return{Value: mir.MoveOperand{Place: place}},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	assert.False(t, bag.HasErrors(), "move after the borrow's StorageDead should be permitted: %v", bag.Sorted())
}

func TestUseAfterMoveIsRejected(t *testing.T) {
	t.Parallel()

	place := mir.Place{Local: 0}
	body := bodyWith(
		[]mir.Local{{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.I32)}},
		[]mir.Statement{
			mir.Assign{Place: mir.Place{Local: 1}, Rvalue: mir.UseRvalue{Operand: mir.MoveOperand{Place: place}}},
		},
		mir.Return{Value: mir.MoveOperand{Place: place}},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	require.True(t, bag.HasErrors())
}

func TestMovingPinnedBindingIsRejected(t *testing.T) {
	t.Parallel()

	place := mir.Place{Local: 0}
	body := bodyWith(
		[]mir.Local{{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.I32), IsPinned: true}},
		nil,
		mir.Return{Value: mir.MoveOperand{Place: place}},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	require.True(t, bag.HasErrors())
}

func TestSharedBorrowWhileUniqueIsRejected(t *testing.T) {
	t.Parallel()

	place := mir.Place{Local: 0}
	body := bodyWith(
		[]mir.Local{{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.I32)}},
		[]mir.Statement{
			mir.BorrowStmt{Kind: mir.BorrowUnique, Place: place},
			mir.BorrowStmt{Kind: mir.BorrowShared, Place: place},
		},
		mir.Return{},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	require.True(t, bag.HasErrors())
}

// TestAcceleratorStreamCopyThenWaitClearsTheBorrow exercises spec
// §8.3's accelerator-copy scenario: EnqueueCopy borrows dst/src until a
// matching WaitEvent observes completion, after which a move succeeds.
func TestAcceleratorStreamCopyThenWaitClearsTheBorrow(t *testing.T) {
	t.Parallel()

	dst := mir.Place{Local: 0}
	src := mir.Place{Local: 1}
	body := bodyWith(
		[]mir.Local{
			{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.U8)},
			{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.U8)},
		},
		[]mir.Statement{
			mir.EnqueueCopy{Stream: "s0", Dst: dst, Src: mir.CopyOperand{Place: src}, Event: 1},
			mir.WaitEvent{Stream: "s0", Event: 1},
		},
		mir.Return{Value: mir.MoveOperand{Place: dst}},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	assert.False(t, bag.HasErrors(), "move after WaitEvent should be permitted: %v", bag.Sorted())
}

func TestAcceleratorStreamMoveBeforeWaitIsRejected(t *testing.T) {
	t.Parallel()

	dst := mir.Place{Local: 0}
	src := mir.Place{Local: 1}
	body := bodyWith(
		[]mir.Local{
			{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.U8)},
			{Kind: mir.KindLocal, Ty: ty.NewPrimitive(prim.U8)},
		},
		[]mir.Statement{
			mir.EnqueueCopy{Stream: "s0", Dst: dst, Src: mir.CopyOperand{Place: src}, Event: 1},
			mir.Assign{Place: mir.Place{Local: 1}, Rvalue: mir.UseRvalue{Operand: mir.MoveOperand{Place: dst}}},
		},
		mir.Return{},
	)

	bag := diag.NewBag()
	borrowck.NewChecker(body, bag).Check()
	require.True(t, bag.HasErrors())
}
