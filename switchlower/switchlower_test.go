package switchlower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/switchlower"
)

func blockAllocator() (switchlower.BlockAllocator, *int) {
	n := 0
	return func() mir.BlockID {
		n++
		return mir.BlockID(n)
	}, &n
}

func TestLowerCasesOrdersMatchBlocksFirstToLast(t *testing.T) {
	t.Parallel()

	alloc, _ := blockAllocator()
	cases := []switchlower.Case{
		{Pattern: switchlower.LiteralPattern{Value: mir.IntConst{Value: 1}}},
		{Pattern: switchlower.LiteralPattern{Value: mir.IntConst{Value: 2}}},
		{Pattern: switchlower.WildcardPattern{}},
	}

	plans, firstMatchBlock := switchlower.LowerCases(cases, mir.Place{Local: 0}, mir.BlockID(99), alloc)
	require.Len(t, plans, 3)
	assert.Equal(t, plans[0].MatchBlock, firstMatchBlock)

	ids := make(map[mir.BlockID]bool)
	for _, p := range plans {
		assert.False(t, ids[p.MatchBlock], "match blocks must be distinct")
		ids[p.MatchBlock] = true
		assert.False(t, ids[p.BindingBlock])
		ids[p.BindingBlock] = true
	}
}

func TestLowerCasesThreadsGuardChainToFallback(t *testing.T) {
	t.Parallel()

	alloc, _ := blockAllocator()
	cases := []switchlower.Case{
		{
			Pattern: switchlower.WildcardPattern{},
			Guards:  []switchlower.Guard{{Cond: mir.CopyOperand{Place: mir.Place{Local: 1}}}},
		},
	}

	plans, _ := switchlower.LowerCases(cases, mir.Place{Local: 0}, mir.BlockID(7), alloc)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].GuardBlocks, 1)
	require.Len(t, plans[0].FailureBlocks, 1)
	assert.Equal(t, mir.BlockID(7), plans[0].FailureBlocks[0])
}

func TestBindListPatternEmitsLenAndIndexAssignments(t *testing.T) {
	t.Parallel()

	c := switchlower.Case{
		Pattern: switchlower.ListPattern{
			Prefix: []switchlower.Binding{{Name: "head", Index: 0}},
			Suffix: []switchlower.Binding{{Name: "tail", Index: 0, FromEnd: true}},
		},
	}
	alloc, _ := blockAllocator()
	plans, _ := switchlower.LowerCases([]switchlower.Case{c}, mir.Place{Local: 0}, mir.BlockID(0), alloc)
	require.NotEmpty(t, plans[0].Statements)
}

func TestBindSubslicePatternBuildsReadOnlySpanAggregate(t *testing.T) {
	t.Parallel()

	c := switchlower.Case{Pattern: switchlower.SubslicePattern{Name: "rest", From: 1, To: 1}}
	alloc, _ := blockAllocator()
	plans, _ := switchlower.LowerCases([]switchlower.Case{c}, mir.Place{Local: 0}, mir.BlockID(0), alloc)
	require.Len(t, plans[0].Statements, 3)

	last := plans[0].Statements[2].(mir.Assign)
	agg, ok := last.Rvalue.(mir.AggregateRvalue)
	require.True(t, ok)
	assert.Equal(t, "core.ReadOnlySpan", agg.TypeName)
}
