package layout_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/ty"
)

func newTable() *layout.Table {
	return layout.NewTable(prim.NewRegistry(prim.Pointer64))
}

// TestFlagEnum exercises the end-to-end scenario from spec §8.3.2:
// Permissions{Read,Write,Execute} gets 1,2,4; All=7 is accepted; Weird=12
// is diagnosed.
func TestFlagEnum(t *testing.T) {
	t.Parallel()

	tbl := newTable()
	tbl.Register(layout.Decl{
		Name:       "Permissions",
		Kind:       layout.Enum,
		Underlying: prim.U8,
		IsFlags:    true,
		Variants: []layout.VariantDecl{
			{Name: "Read"},
			{Name: "Write"},
			{Name: "Execute"},
			{Name: "All", ExplicitDiscrim: big.NewInt(7)},
		},
	})

	bag := diag.NewBag()
	require.NoError(t, tbl.FinalizeAll(bag))
	assert.False(t, bag.HasErrors(), "All=7 should not trigger a flag diagnostic: %v", bag.Sorted())

	l, ok := tbl.Lookup("Permissions")
	require.True(t, ok)
	require.Len(t, l.Variants, 4)
	assert.Equal(t, "1", l.Variants[0].Discriminant.String())
	assert.Equal(t, "2", l.Variants[1].Discriminant.String())
	assert.Equal(t, "4", l.Variants[2].Discriminant.String())
	assert.Equal(t, "7", l.Variants[3].Discriminant.String())
}

func TestFlagEnumUndefinedBits(t *testing.T) {
	t.Parallel()

	tbl := newTable()
	tbl.Register(layout.Decl{
		Name:       "Weird",
		Kind:       layout.Enum,
		Underlying: prim.U8,
		IsFlags:    true,
		Variants: []layout.VariantDecl{
			{Name: "A"},                                        // 1
			{Name: "B"},                                        // 2
			{Name: "Combo", ExplicitDiscrim: big.NewInt(12)}, // bits 2,3; neither set by A or B
		},
	})

	bag := diag.NewBag()
	require.NoError(t, tbl.FinalizeAll(bag))
	require.True(t, bag.HasErrors())
	found := false
	for _, d := range bag.Sorted() {
		if containsAll(d.Message, "Combo", "undefined flag bit") {
			found = true
		}
	}
	assert.True(t, found, "expected an 'introduces multiple undefined flag bits' diagnostic, got: %v", bag.Sorted())
}

// TestReprCOffsets checks the §3.2/§8.1 invariant: offsets are monotone
// non-decreasing and size is align_to(end_of_last_field, align).
func TestReprCOffsets(t *testing.T) {
	t.Parallel()

	tbl := newTable()
	tbl.Register(layout.Decl{
		Name: "Header",
		Kind: layout.Struct,
		Repr: layout.Repr{Kind: layout.ReprC},
		Fields: []layout.FieldDecl{
			{Name: "flag", Ty: ty.NewPrimitive(prim.U8)},
			{Name: "count", Ty: ty.NewPrimitive(prim.U32)},
			{Name: "id", Ty: ty.NewPrimitive(prim.U64)},
		},
	})

	bag := diag.NewBag()
	require.NoError(t, tbl.FinalizeAll(bag))
	assert.False(t, bag.HasErrors())

	l, ok := tbl.Lookup("Header")
	require.True(t, ok)
	require.Len(t, l.Fields, 3)

	for i := 1; i < len(l.Fields); i++ {
		prevEnd := l.Fields[i-1].Offset + int64(l.Fields[i-1].Size)
		assert.GreaterOrEqual(t, l.Fields[i].Offset, prevEnd)
	}

	last := l.Fields[len(l.Fields)-1]
	wantSize := layout.AlignTo(last.Offset+int64(last.Size), *l.Align)
	assert.Equal(t, wantSize, *l.Size)
}

// TestPackedCapsAlignment exercises Packed(n) capping field alignment.
func TestPackedCapsAlignment(t *testing.T) {
	t.Parallel()

	tbl := newTable()
	tbl.Register(layout.Decl{
		Name: "Packed",
		Kind: layout.Struct,
		Repr: layout.Repr{Kind: layout.ReprPacked, Packed: 1},
		Fields: []layout.FieldDecl{
			{Name: "a", Ty: ty.NewPrimitive(prim.U8)},
			{Name: "b", Ty: ty.NewPrimitive(prim.U32)},
		},
	})

	bag := diag.NewBag()
	require.NoError(t, tbl.FinalizeAll(bag))

	l, ok := tbl.Lookup("Packed")
	require.True(t, ok)
	// With Packed(1), b's offset is not rounded up to 4: it immediately
	// follows a.
	assert.Equal(t, int64(1), l.Fields[1].Offset)
}

// TestAutoTraitsMonotone exercises §4.1: a field with Known(false) forces
// the aggregate to Known(false) for that trait.
func TestAutoTraitsMonotone(t *testing.T) {
	t.Parallel()

	tbl := newTable()
	tbl.Register(layout.Decl{
		Name: "NotCopy",
		Kind: layout.Struct,
		Fields: []layout.FieldDecl{
			{Name: "handle", Ty: ty.NewRef(ty.NewPrimitive(prim.U8), true)}, // mutable ref: not Copy
		},
	})

	bag := diag.NewBag()
	require.NoError(t, tbl.FinalizeAll(bag))

	l, ok := tbl.Lookup("NotCopy")
	require.True(t, ok)
	assert.Equal(t, layout.KnownFalse, l.AutoTraits[layout.Copy])
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
