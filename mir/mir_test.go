package mir_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/ty"
)

func returnBody() *mir.MirBody {
	return &mir.MirBody{
		Locals: []mir.Local{
			{Kind: mir.KindReturn, Ty: ty.NewPrimitive(prim.I32)},
		},
		Blocks: []mir.Block{
			{
				ID: 0,
				Statements: []mir.Statement{
					mir.Assign{
						Place:  mir.Place{Local: 0},
						Rvalue: mir.UseRvalue{Operand: mir.ConstOp{Const: mir.ConstOperand{Value: mir.IntConst{Value: 1}, Ty: ty.NewPrimitive(prim.I32)}}},
					},
				},
				Terminator: mir.Return{Value: mir.CopyOperand{Place: mir.Place{Local: 0}}},
			},
		},
		ArgCount: 0,
	}
}

// TestWellFormedAcceptsSimpleReturn exercises spec §8.1's base case: a
// single block, one terminator, no dangling successors.
func TestWellFormedAcceptsSimpleReturn(t *testing.T) {
	t.Parallel()

	body := returnBody()
	assert.Empty(t, body.WellFormed())
	assert.Equal(t, map[mir.BlockID]bool{0: true}, body.Reachable())
}

func TestWellFormedRejectsMissingTerminator(t *testing.T) {
	t.Parallel()

	body := &mir.MirBody{
		Locals: []mir.Local{{Kind: mir.KindReturn, Ty: ty.NewUnit()}},
		Blocks: []mir.Block{{ID: 0}},
	}
	problems := body.WellFormed()
	require.NotEmpty(t, problems)
}

// TestSwitchIntTargetUniqueness exercises spec §8.1: a SwitchInt whose
// arms repeat a target block is ill-formed.
func TestSwitchIntTargetUniqueness(t *testing.T) {
	t.Parallel()

	sw := mir.SwitchInt{
		Discriminant: mir.CopyOperand{Place: mir.Place{Local: 0}},
		Arms: []mir.SwitchIntArm{
			{Value: 0, Target: 1},
			{Value: 1, Target: 1},
		},
		Otherwise: 2,
	}
	dups := mir.DuplicateSwitchTargets(sw)
	assert.Contains(t, dups, mir.BlockID(1))

	body := &mir.MirBody{
		Locals: []mir.Local{{Kind: mir.KindArg, Ty: ty.NewPrimitive(prim.I32)}},
		Blocks: []mir.Block{
			{ID: 0, Terminator: sw},
			{ID: 1, Terminator: mir.Return{}},
			{ID: 2, Terminator: mir.Return{}},
		},
	}
	assert.NotEmpty(t, body.WellFormed())
}

func TestPlaceIsAncestorOf(t *testing.T) {
	t.Parallel()

	base := mir.Place{Local: 0, Projection: []mir.Projection{mir.FieldProjection{Index: 1}}}
	nested := mir.Place{Local: 0, Projection: []mir.Projection{
		mir.FieldProjection{Index: 1},
		mir.DerefProjection{},
	}}
	assert.True(t, base.IsAncestorOf(nested))
	assert.False(t, nested.IsAncestorOf(base))

	other := mir.Place{Local: 1}
	assert.False(t, base.IsAncestorOf(other))
}

func TestCloneFunctionIsIndependent(t *testing.T) {
	t.Parallel()

	fn := &mir.MirFunction{
		QualifiedName: "app.identity",
		InternalName:  "app.identity",
		Sig: mir.FnSig{
			Params: []mir.Param{{Name: "x", Ty: ty.NewPrimitive(prim.I32), Mode: mir.ModeValue}},
			Ret:    ty.NewPrimitive(prim.I32),
		},
		Body: returnBody(),
	}

	clone, err := mir.CloneFunction(fn)
	require.NoError(t, err)
	require.NotNil(t, clone.Body)

	// testify's ObjectsAreEqual is too coarse for a MirFunction — it
	// would report the two reflect.DeepEqual-equal values as equal even
	// if a nested Ty's unexported fields diverged in a way Ty.Equal
	// cares about; cmp.Diff is told to use Ty.Equal via its Equal method
	// so a real structural mismatch still surfaces.
	if diff := cmp.Diff(fn, clone); diff != "" {
		t.Fatalf("clone diverged from original before mutation:\n%s", diff)
	}

	clone.Body.Locals[0].Name = "renamed"
	assert.Empty(t, fn.Body.Locals[0].Name, "mutating the clone must not affect the original")
}
