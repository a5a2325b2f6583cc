package abi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/abi"
	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/ty"
)

func TestValidateRejectsDynamicLibraryStatic(t *testing.T) {
	t.Parallel()

	e := &abi.Extern{QualifiedName: "app.counter", IsStatic: true, Library: "libapp.so", Ty: ty.NewPrimitive(prim.I32)}
	bag := diag.NewBag()
	tbl := layout.NewTable(prim.NewRegistry(prim.Pointer64))
	abi.Validate(e, tbl, bag)
	require.True(t, bag.HasErrors())
}

func TestValidateRequiresReprCForExternStatic(t *testing.T) {
	t.Parallel()

	tbl := layout.NewTable(prim.NewRegistry(prim.Pointer64))
	tbl.Register(layout.Decl{Name: "Header", Kind: layout.Struct})
	require.NoError(t, tbl.FinalizeAll(diag.NewBag()))

	e := &abi.Extern{QualifiedName: "app.header", IsStatic: true, Ty: ty.NewNamed("Header")}
	bag := diag.NewBag()
	abi.Validate(e, tbl, bag)
	require.True(t, bag.HasErrors())
}

func TestValidateAcceptsReprCExternStatic(t *testing.T) {
	t.Parallel()

	tbl := layout.NewTable(prim.NewRegistry(prim.Pointer64))
	tbl.Register(layout.Decl{Name: "Header", Kind: layout.Struct, Repr: layout.Repr{Kind: layout.ReprC}})
	require.NoError(t, tbl.FinalizeAll(diag.NewBag()))

	e := &abi.Extern{QualifiedName: "app.header", IsStatic: true, Ty: ty.NewNamed("Header")}
	bag := diag.NewBag()
	abi.Validate(e, tbl, bag)
	assert.False(t, bag.HasErrors())
}

func TestValidateRequiresExternAbiForFFIFunctionPointer(t *testing.T) {
	t.Parallel()

	fnTy := ty.NewFn([]ty.Ty{ty.NewPrimitive(prim.I32)}, ty.NewUnit(), ty.Abi{}, nil, false, false)
	e := &abi.Extern{QualifiedName: "app.callback", Ty: fnTy}
	bag := diag.NewBag()
	tbl := layout.NewTable(prim.NewRegistry(prim.Pointer64))
	abi.Validate(e, tbl, bag)
	require.True(t, bag.HasErrors())
}
