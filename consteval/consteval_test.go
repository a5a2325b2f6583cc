package consteval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/consteval"
	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
)

func newEvaluator(t *testing.T) *consteval.Evaluator {
	t.Helper()
	tbl := layout.NewTable(prim.NewRegistry(prim.Pointer64))
	ev, err := consteval.NewEvaluator(1000, 128, tbl)
	require.NoError(t, err)
	return ev
}

func TestEvalArithmetic(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	bag := diag.NewBag()
	expr := consteval.BinaryNode{
		Op:  mir.Add,
		Lhs: consteval.LitNode{Value: mir.IntConst{Value: 2}},
		Rhs: consteval.LitNode{Value: mir.IntConst{Value: 3}},
	}

	res := ev.Eval(context.Background(), expr, consteval.CacheKey{ExpressionText: "2+3"}, consteval.NewFuel(100), bag)
	require.False(t, bag.HasErrors())
	assert.Equal(t, mir.IntConst{Value: 5}, res.Value)
}

func TestEvalOutOfFuel(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	bag := diag.NewBag()
	expr := consteval.BinaryNode{
		Op:  mir.Add,
		Lhs: consteval.LitNode{Value: mir.IntConst{Value: 1}},
		Rhs: consteval.LitNode{Value: mir.IntConst{Value: 1}},
	}

	ev.Eval(context.Background(), expr, consteval.CacheKey{ExpressionText: "1+1-starved"}, consteval.NewFuel(1), bag)
	assert.True(t, bag.HasErrors())
}

func TestEvalMemoizes(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	bag := diag.NewBag()
	key := consteval.CacheKey{ExpressionText: "7", Namespace: "app"}
	expr := consteval.LitNode{Value: mir.IntConst{Value: 7}}

	first := ev.Eval(context.Background(), expr, key, consteval.NewFuel(10), bag)
	second := ev.Eval(context.Background(), expr, key, consteval.NewFuel(0), bag)

	assert.Equal(t, first.Value, second.Value)
	assert.False(t, bag.HasErrors(), "second call should hit the memo cache without spending fuel")
}

func TestConstFnCycleDetected(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	bag := diag.NewBag()

	var fn *consteval.ConstFn
	fn = &consteval.ConstFn{
		QualifiedName: "app.loop",
		Body:          consteval.CallNode{QualifiedName: "app.loop"},
	}
	fn.Body = consteval.CallNode{QualifiedName: "app.loop", Fn: fn}

	call := consteval.CallNode{QualifiedName: "app.loop", Fn: fn}
	ev.Eval(context.Background(), call, consteval.CacheKey{ExpressionText: "app.loop()"}, consteval.NewFuel(100), bag)
	assert.True(t, bag.HasErrors())
}

// TestConstFnBindsArguments exercises the requirement that a const fn's
// result depends on the arguments it was called with, not just its
// body's structure: double(x) = x + x must yield 10 for x=5 and 6 for
// x=3, from the same Fn value.
func TestConstFnBindsArguments(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	fn := &consteval.ConstFn{
		QualifiedName: "app.double",
		Params:        []string{"x"},
		Body: consteval.BinaryNode{
			Op:  mir.Add,
			Lhs: consteval.ParamNode{Name: "x"},
			Rhs: consteval.ParamNode{Name: "x"},
		},
	}

	bag := diag.NewBag()
	callFive := consteval.CallNode{QualifiedName: "app.double", Fn: fn, Args: []consteval.Node{consteval.LitNode{Value: mir.IntConst{Value: 5}}}}
	res := ev.Eval(context.Background(), callFive, consteval.CacheKey{ExpressionText: "double(5)"}, consteval.NewFuel(100), bag)
	require.False(t, bag.HasErrors())
	assert.Equal(t, mir.IntConst{Value: 10}, res.Value)

	callThree := consteval.CallNode{QualifiedName: "app.double", Fn: fn, Args: []consteval.Node{consteval.LitNode{Value: mir.IntConst{Value: 3}}}}
	res = ev.Eval(context.Background(), callThree, consteval.CacheKey{ExpressionText: "double(3)"}, consteval.NewFuel(100), bag)
	require.False(t, bag.HasErrors())
	assert.Equal(t, mir.IntConst{Value: 6}, res.Value)
}

func TestConstFnRejectsAsync(t *testing.T) {
	t.Parallel()

	fn := &consteval.ConstFn{QualifiedName: "app.f", IsAsync: true, Body: consteval.LitNode{Value: mir.UnitConst{}}}
	assert.Error(t, fn.Validate())
}

func TestQuoteInterpolationRequiresQuote(t *testing.T) {
	t.Parallel()

	ev := newEvaluator(t)
	bag := diag.NewBag()
	q := consteval.QuoteNode{
		Source:        "x + 1",
		Sanitized:     "x + 1",
		Interpolation: []consteval.Node{consteval.LitNode{Value: mir.IntConst{Value: 1}}},
	}

	ev.Eval(context.Background(), q, consteval.CacheKey{ExpressionText: "quote(x+1)"}, consteval.NewFuel(100), bag)
	assert.True(t, bag.HasErrors(), "interpolating a non-Quote value must be diagnosed")
}
