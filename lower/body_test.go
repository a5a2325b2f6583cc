package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/lower"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/symtab"
	"lattice.build/go/corec/ty"
)

// TestBuildLowersParamsLetIfAndLogical exercises the body builder end to
// end: a receiver and a param materialize as Arg locals, a `let` binds a
// `&&` expression, and an `if` branches via SwitchInt into two arms
// that both return.
func TestBuildLowersParamsLetIfAndLogical(t *testing.T) {
	t.Parallel()

	boolTy := ty.NewPrimitive(prim.Bool)
	i32 := ty.NewPrimitive(prim.I32)

	bag := diag.NewBag()
	b := lower.NewBuilder(
		func(string) []*symtab.FunctionSymbol { return nil },
		func(string) ([]symtab.VirtualSlot, bool) { return nil, false },
		bag,
	)

	fn := lower.FunctionAST{
		Receiver: &lower.ParamDecl{Name: "self", Ty: ty.NewNamed("app", "Widget"), Mode: mir.ModeValue},
		Params: []lower.ParamDecl{
			{Name: "ready", Ty: boolTy, Mode: mir.ModeValue},
			{Name: "armed", Ty: boolTy, Mode: mir.ModeValue},
		},
		ReturnTy: i32,
		Body: []lower.Stmt{
			lower.LetStmt{
				Name: "go",
				Ty:   boolTy,
				Init: lower.LogicalExpr{
					Op:  lower.LogicalAnd,
					Lhs: lower.NameExpr{Name: "ready"},
					Rhs: lower.NameExpr{Name: "armed"},
				},
			},
			lower.IfStmt{
				Cond: lower.NameExpr{Name: "go"},
				Then: []lower.Stmt{
					lower.ReturnStmt{Value: lower.LitExpr{Value: mir.IntConst{Value: 1}, Ty: i32}},
				},
				Else: []lower.Stmt{
					lower.ReturnStmt{Value: lower.LitExpr{Value: mir.IntConst{Value: 0}, Ty: i32}},
				},
			},
		},
	}

	body := b.Build(fn)
	require.NotNil(t, body)
	assert.Empty(t, body.WellFormed(), "ill-formed body: %v", body.WellFormed())
	assert.False(t, bag.HasErrors(), "diagnostics: %v", bag.Sorted())

	require.GreaterOrEqual(t, len(body.Locals), 4, "return + receiver + 2 params")
	assert.Equal(t, mir.KindReturn, body.Locals[0].Kind)
	assert.Equal(t, mir.KindArg, body.Locals[1].Kind)
	assert.Equal(t, 0, body.Locals[1].ArgIndex, "receiver is argument 0")

	// every block must end in a terminator; both if-arms return directly
	// rather than joining, so the join block itself is unreachable but
	// still well-formed (no dangling statements without a terminator).
	for _, blk := range body.Blocks {
		assert.NotNil(t, blk.Terminator, "block %d has no terminator", blk.ID)
	}
}

// TestBuildPlacesMethodReceiverAsFirstArgument exercises spec §4.3's
// method-receiver-into-first-arg rule: a MethodCallExpr's Receiver lowers
// ahead of its Args into the emitted Call's argument list.
func TestBuildPlacesMethodReceiverAsFirstArgument(t *testing.T) {
	t.Parallel()

	i32 := ty.NewPrimitive(prim.I32)
	callee := &symtab.FunctionSymbol{
		QualifiedName: "app.Widget.scale",
		InternalName:  "app_Widget_scale",
		Params: []symtab.Param{
			{Name: "self", Mode: symtab.Value},
			{Name: "factor", Mode: symtab.Value},
		},
		Ret: i32,
	}

	bag := diag.NewBag()
	b := lower.NewBuilder(
		func(q string) []*symtab.FunctionSymbol {
			if q == "app.Widget.scale" {
				return []*symtab.FunctionSymbol{callee}
			}
			return nil
		},
		func(string) ([]symtab.VirtualSlot, bool) { return nil, false },
		bag,
	)

	fn := lower.FunctionAST{
		Receiver: &lower.ParamDecl{Name: "w", Ty: ty.NewNamed("app", "Widget"), Mode: mir.ModeValue},
		ReturnTy: i32,
		Body: []lower.Stmt{
			lower.ReturnStmt{
				Value: lower.MethodCallExpr{
					Receiver: lower.NameExpr{Name: "w"},
					Owner:    "app.Widget",
					Method:   "scale",
					Args:     []lower.CallArg{{Value: lower.LitExpr{Value: mir.IntConst{Value: 2}, Ty: i32}}},
				},
			},
		},
	}

	body := b.Build(fn)
	require.NotNil(t, body)
	assert.False(t, bag.HasErrors(), "diagnostics: %v", bag.Sorted())

	var call *mir.Call
	for _, blk := range body.Blocks {
		if c, ok := blk.Terminator.(mir.Call); ok {
			call = &c
			break
		}
	}
	require.NotNil(t, call, "expected a Call terminator")
	require.Len(t, call.Args, 2, "receiver then factor")
}
