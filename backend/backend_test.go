package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/backend"
	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
)

func TestTraitVtableSymbolSanitization(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "__vtable_app__Draw__app__Button", backend.TraitVtableSymbol("app::Draw", "app::Button"))
}

func TestClassVtableSymbolSanitization(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "__class_vtable_app__3DWidget", backend.ClassVtableSymbol("app::3DWidget"))
}

func TestClassVtableSymbolPrefixesLeadingDigit(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "__class_vtable__42", backend.ClassVtableSymbol("42"))
}

func TestViewResolvesLayoutsAndStatics(t *testing.T) {
	t.Parallel()

	tbl := layout.NewTable(prim.NewRegistry(prim.Pointer64))
	tbl.Register(layout.Decl{Name: "Header", Kind: layout.Struct})
	require.NoError(t, tbl.FinalizeAll(diag.NewBag()))

	module := &mir.MirModule{
		Name:      "app",
		Functions: []*mir.MirFunction{{QualifiedName: "app.main"}},
		Statics:   []mir.StaticDef{{QualifiedName: "app.counter", Init: mir.IntConst{Value: 0}}},
	}

	view := backend.NewView(module, tbl)
	assert.Len(t, view.Functions(), 1)

	_, ok := view.LayoutFor("Header")
	assert.True(t, ok)

	s, ok := view.StaticVarByName("app.counter")
	require.True(t, ok)
	assert.Equal(t, mir.IntConst{Value: 0}, s.Def.Init)

	byID, ok := view.StaticVarByID(0)
	require.True(t, ok)
	assert.Equal(t, s, byID)

	_, ok = view.StaticVarByID(5)
	assert.False(t, ok)
}
