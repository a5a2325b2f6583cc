// Package switchlower implements switch/match lowering (spec §4.4):
// planning, for a chain of AST cases each with an optional guard chain
// and pattern bindings, the blocks its arms and guards require and the
// binding statements of each case. It does not build the mir.Match
// terminator, and the binding statements target placeholder locals
// (Local -1) that nothing in this package replaces.
package switchlower

import "lattice.build/go/corec/mir"

// Pattern is the source-level pattern shape of one case (spec §4.4 "The
// arm pattern is wildcard/literal/complex"). Every Pattern is a valid
// mir.MatchPattern, since that alias is just `any`.
type Pattern interface {
	isPattern()
}

type WildcardPattern struct{}
type LiteralPattern struct{ Value mir.ConstValue }

// ListPattern matches a fixed-length prefix/suffix against a sequence
// place, e.g. `[a, b, .., z]`.
type ListPattern struct {
	Prefix []Binding // bound names for the first len(Prefix) elements
	Suffix []Binding // bound names for the last len(Suffix) elements, counted from the end
}

// SubslicePattern binds the remaining middle span of a list pattern to a
// single ReadOnlySpan-typed name.
type SubslicePattern struct {
	Name string
	From int // elements consumed by ListPattern.Prefix
	To   int // elements consumed by ListPattern.Suffix
}

// Binding names one pattern-bound local and the index it projects from
// its scrutinee.
type Binding struct {
	Name       string
	Index      int
	FromEnd    bool
}

func (WildcardPattern) isPattern()  {}
func (LiteralPattern) isPattern()   {}
func (ListPattern) isPattern()      {}
func (SubslicePattern) isPattern()  {}

// Guard is one boolean-expression link in a case's guard chain (spec
// §4.4 step 2).
type Guard struct {
	Cond mir.Operand
}

// Case is one source-level switch/match arm before lowering.
type Case struct {
	Pattern Pattern
	Guards  []Guard
	Body    mir.BlockID // the block to run once pattern + guards succeed
}

// Plan is the lowered block layout for one Case: its guard chain blocks,
// its binding block, and the final match-block entry the outer Match
// terminator's arm targets.
type Plan struct {
	GuardBlocks   []mir.BlockID
	FailureBlocks []mir.BlockID // per guard block: its "on 0" continuation
	BindingBlock  mir.BlockID
	MatchBlock    mir.BlockID
	Statements    []mir.Statement // bindings materialized in BindingBlock
}

// BlockAllocator hands out fresh block IDs for the blocks a Plan names.
type BlockAllocator func() mir.BlockID

// LowerCases lowers cases from last to first (spec §4.4 step 1-2),
// threading each case's failure continuation to the previous case's
// match-block, or to fallback for the last case. It returns one Plan per
// case in the same order as cases, plus the first case's match-block —
// the target of the switch's outer Goto.
func LowerCases(cases []Case, scrutinee mir.Place, fallback mir.BlockID, alloc BlockAllocator) ([]Plan, mir.BlockID) {
	plans := make([]Plan, len(cases))
	nextFailure := fallback

	for i := len(cases) - 1; i >= 0; i-- {
		c := cases[i]
		plan := Plan{MatchBlock: alloc(), BindingBlock: alloc()}

		failureTarget := nextFailure
		for gi := len(c.Guards) - 1; gi >= 0; gi-- {
			guardBlock := alloc()
			plan.GuardBlocks = append([]mir.BlockID{guardBlock}, plan.GuardBlocks...)
			plan.FailureBlocks = append([]mir.BlockID{failureTarget}, plan.FailureBlocks...)
			failureTarget = guardBlock
		}

		plan.Statements = bindPattern(c.Pattern, scrutinee)
		plans[i] = plan
		nextFailure = plan.MatchBlock
	}

	return plans, plans[0].MatchBlock
}

// bindPattern materialises the statements spec §4.4 step 3 describes for
// list and subslice patterns. Literal and wildcard patterns bind nothing.
func bindPattern(p Pattern, scrutinee mir.Place) []mir.Statement {
	switch pat := p.(type) {
	case ListPattern:
		return bindListPattern(pat, scrutinee)
	case SubslicePattern:
		return bindSubslicePattern(pat, scrutinee)
	default:
		return nil
	}
}

func bindListPattern(pat ListPattern, scrutinee mir.Place) []mir.Statement {
	var stmts []mir.Statement
	lenLocal := mir.Place{Local: -1} // placeholder: no length local is allocated here
	stmts = append(stmts, mir.Assign{Place: lenLocal, Rvalue: mir.LenRvalue{Place: scrutinee}})

	for _, b := range pat.Prefix {
		stmts = append(stmts, indexBindStatement(b, scrutinee, lenLocal, false))
	}
	for _, b := range pat.Suffix {
		stmts = append(stmts, indexBindStatement(b, scrutinee, lenLocal, true))
	}
	return stmts
}

func indexBindStatement(b Binding, scrutinee, lenLocal mir.Place, fromEnd bool) mir.Statement {
	idxLocal := mir.Place{Local: -1} // placeholder: no local is allocated per binding here
	var idx mir.Rvalue
	if fromEnd {
		idx = mir.BinaryRvalue{
			Op:  mir.Sub,
			Lhs: mir.CopyOperand{Place: lenLocal},
			Rhs: mir.ConstOp{Const: mir.ConstOperand{Value: mir.IntConst{Value: int64(b.Index)}}},
		}
	} else {
		idx = mir.UseRvalue{Operand: mir.ConstOp{Const: mir.ConstOperand{Value: mir.IntConst{Value: int64(b.Index)}}}}
	}
	return mir.Assign{Place: idxLocal, Rvalue: idx}
}

func bindSubslicePattern(pat SubslicePattern, scrutinee mir.Place) []mir.Statement {
	lenLocal := mir.Place{Local: -1}
	sliceLenLocal := mir.Place{Local: -1}
	aggLocal := mir.Place{Local: -1}

	return []mir.Statement{
		mir.Assign{Place: lenLocal, Rvalue: mir.LenRvalue{Place: scrutinee}},
		mir.Assign{
			Place: sliceLenLocal,
			Rvalue: mir.BinaryRvalue{
				Op:  mir.Sub,
				Lhs: mir.CopyOperand{Place: lenLocal},
				Rhs: mir.ConstOp{Const: mir.ConstOperand{Value: mir.IntConst{Value: int64(pat.From + pat.To)}}},
			},
		},
		mir.Assign{
			Place: aggLocal,
			Rvalue: mir.AggregateRvalue{
				Kind:     mir.AggregateStruct,
				TypeName: "core.ReadOnlySpan",
				Fields: []mir.Operand{
					mir.BorrowOperand{Place: scrutinee, Kind: mir.BorrowShared},
					mir.CopyOperand{Place: sliceLenLocal},
				},
			},
		},
	}
}
