package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/lower"
	"lattice.build/go/corec/symtab"
	"lattice.build/go/corec/ty"
)

func overload(params ...symtab.Param) *symtab.FunctionSymbol {
	return &symtab.FunctionSymbol{QualifiedName: "app.f", Params: params, Ret: ty.NewUnit()}
}

// TestBindCallSelectsExactOverload exercises spec §8.3.1: f(int x) and
// f(int x, int y = 2) both register; a one-argument call binds the
// one-parameter overload only.
func TestBindCallSelectsExactOverload(t *testing.T) {
	t.Parallel()

	short := overload(symtab.Param{Name: "x", Mode: symtab.Value})
	long := overload(symtab.Param{Name: "x", Mode: symtab.Value}, symtab.Param{Name: "y", Mode: symtab.Value, HasDefault: true})

	binding, failures, ambiguous := lower.BindCall([]*symtab.FunctionSymbol{short, long}, []lower.Argument{{Mode: symtab.Value}})
	require.Nil(t, ambiguous)
	require.Empty(t, failures)
	require.NotNil(t, binding)
	assert.Len(t, binding.Candidate.Params, 1)
}

func TestBindCallAmbiguous(t *testing.T) {
	t.Parallel()

	a := overload(symtab.Param{Name: "x", Mode: symtab.Value})
	b := overload(symtab.Param{Name: "x", Mode: symtab.Value})

	binding, _, ambiguous := lower.BindCall([]*symtab.FunctionSymbol{a, b}, []lower.Argument{{Mode: symtab.Value}})
	assert.Nil(t, binding)
	require.NotNil(t, ambiguous)
	assert.Len(t, ambiguous.Candidates, 2)
}

func TestBindCallUnknownName(t *testing.T) {
	t.Parallel()

	a := overload(symtab.Param{Name: "x", Mode: symtab.Value})
	_, failures, ambiguous := lower.BindCall([]*symtab.FunctionSymbol{a}, []lower.Argument{{Name: "z", Mode: symtab.Value}})
	require.Nil(t, ambiguous)
	require.Len(t, failures, 1)
	assert.Equal(t, lower.UnknownName, failures[0].Kind)
}

func TestBindCallMissingArguments(t *testing.T) {
	t.Parallel()

	a := overload(symtab.Param{Name: "x", Mode: symtab.Value})
	_, failures, _ := lower.BindCall([]*symtab.FunctionSymbol{a}, nil)
	require.Len(t, failures, 1)
	assert.Equal(t, lower.MissingArguments, failures[0].Kind)
}

func TestBindCallModifierMismatch(t *testing.T) {
	t.Parallel()

	a := overload(symtab.Param{Name: "x", Mode: symtab.Ref})
	_, failures, _ := lower.BindCall([]*symtab.FunctionSymbol{a}, []lower.Argument{{Mode: symtab.Value}})
	require.Len(t, failures, 1)
	assert.Equal(t, lower.ModifierMismatch, failures[0].Kind)
}

func TestResolveTraitDispatchAmbiguous(t *testing.T) {
	t.Parallel()

	traits := []lower.TraitMethodTable{
		{TraitName: "Draw", Slots: map[string]int{"render": 0}, SlotCount: 1},
		{TraitName: "Paint", Slots: map[string]int{"render": 0}, SlotCount: 1},
	}
	_, err := lower.ResolveTraitDispatch(traits, "render")
	assert.Error(t, err)
}

func TestResolveTraitDispatchNotDefined(t *testing.T) {
	t.Parallel()

	_, err := lower.ResolveTraitDispatch(nil, "render")
	assert.ErrorContains(t, err, "not defined")
}

func TestClassifyCastRequiresUnsafe(t *testing.T) {
	t.Parallel()

	d := lower.ClassifyCast(lower.CastIntToPointer, false, false)
	require.NotNil(t, d)
	assert.True(t, d.Blocking)
}

func TestClassifyCastNarrowingHint(t *testing.T) {
	t.Parallel()

	d := lower.ClassifyCast(lower.CastIntToInt, true, true)
	require.NotNil(t, d)
	assert.False(t, d.Blocking)
	assert.Contains(t, d.Message, "truncate")
}
