package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/symtab"
	"lattice.build/go/corec/ty"
)

func TestAddFunctionRejectsDefaultedSelf(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	bag := diag.NewBag()
	ix.AddFunction(&symtab.FunctionSymbol{
		QualifiedName: "app.Widget.draw",
		Params: []symtab.Param{
			{Name: "self", Mode: symtab.In, HasDefault: true},
		},
		Ret: ty.NewUnit(),
	}, bag)

	require.True(t, bag.HasErrors())
}

func TestAddFunctionRejectsDefaultedRefOut(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	bag := diag.NewBag()
	ix.AddFunction(&symtab.FunctionSymbol{
		QualifiedName: "app.update",
		Params: []symtab.Param{
			{Name: "out", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Out, HasDefault: true},
		},
		Ret: ty.NewUnit(),
	}, bag)

	require.True(t, bag.HasErrors())
}

func TestAddFunctionConflictingDefaults(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	bag := diag.NewBag()

	ix.AddFunction(&symtab.FunctionSymbol{
		QualifiedName: "app.f",
		Params: []symtab.Param{
			{Name: "x", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value},
			{Name: "y", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value, HasDefault: true},
		},
		Ret: ty.NewUnit(),
	}, bag)
	require.False(t, bag.HasErrors())

	ix.AddFunction(&symtab.FunctionSymbol{
		QualifiedName: "app.f",
		Params: []symtab.Param{
			{Name: "x", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value},
			{Name: "y", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value, HasDefault: true},
		},
		Ret: ty.NewUnit(),
	}, bag)

	assert.True(t, bag.HasErrors(), "two overloads defaulting the same-named parameter must be flagged")
}

// TestOverloadSelectionWithDefaults exercises the spec §8.3.1 scenario:
// f(int x) and f(int x, int y = 2) register as distinct, non-conflicting
// overloads under the same qualified name.
func TestOverloadSelectionWithDefaults(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	bag := diag.NewBag()

	ix.AddFunction(&symtab.FunctionSymbol{
		QualifiedName: "app.f",
		Params: []symtab.Param{
			{Name: "x", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value},
		},
		Ret: ty.NewPrimitive(prim.I32),
	}, bag)

	ix.AddFunction(&symtab.FunctionSymbol{
		QualifiedName: "app.f",
		Params: []symtab.Param{
			{Name: "x", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value},
			{Name: "y", Ty: ty.NewPrimitive(prim.I32), Mode: symtab.Value, HasDefault: true},
		},
		Ret: ty.NewPrimitive(prim.I32),
	}, bag)

	require.False(t, bag.HasErrors())
	overloads := ix.FunctionOverloads("app.f")
	require.Len(t, overloads, 2)
	assert.Equal(t, "app.f", overloads[0].InternalName)
	assert.Equal(t, "app.f$1", overloads[1].InternalName)
}

func TestConstAndStaticLookup(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	ix.AddConst(&symtab.ConstSymbol{QualifiedName: "app.MAX", Ty: ty.NewPrimitive(prim.I32)})
	ix.AddStatic(&symtab.StaticSymbol{QualifiedName: "app.counter", Ty: ty.NewPrimitive(prim.I32), Mutable: true})

	c, ok := ix.Const("app.MAX")
	require.True(t, ok)
	assert.Equal(t, "app.MAX", c.QualifiedName)

	s, ok := ix.Static("app.counter")
	require.True(t, ok)
	assert.True(t, s.Mutable)

	_, ok = ix.Const("app.missing")
	assert.False(t, ok)
}

func TestVtableRoundTrip(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	slots := []symtab.VirtualSlot{
		{Method: "draw", SlotIndex: 0},
		{Method: "resize", SlotIndex: 1, BaseOwner: "app.Widget"},
	}
	ix.SetVtable("app.Button", slots)

	got, ok := ix.Vtable("app.Button")
	require.True(t, ok)
	assert.Equal(t, slots, got)

	_, ok = ix.Vtable("app.Missing")
	assert.False(t, ok)
}

func TestTypeNameSet(t *testing.T) {
	t.Parallel()

	ix := symtab.NewIndex()
	assert.False(t, ix.HasTypeName("app.Widget"))
	ix.AddTypeName("app.Widget")
	assert.True(t, ix.HasTypeName("app.Widget"))
}
