// Package driver implements the module driver of spec §4.7: it
// coordinates lowering in the fixed order the contract requires (layout
// finalisation, symbol index, defaults, bodies, borrow check, vtable
// finalisation) and assembles the merged MirModule.
package driver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"lattice.build/go/corec/abi"
	"lattice.build/go/corec/borrowck"
	"lattice.build/go/corec/consteval"
	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/internal/xlog"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/lower"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/symtab"
)

// ClassDecl describes one class's inheritance edge and virtual method
// set, enough for vtable slot resolution (spec §4.7 step 2).
type ClassDecl struct {
	Name           string
	BaseOwner      string // empty for a root class
	VirtualMethods []string
	Overrides      map[string]bool // method name -> declared with `override`
}

// FunctionInput is one function's symbol plus either a parsed AST (the
// common case, lowered into MIR by step 4 below) or an already-built
// Body for a function with no AST to lower — an extern declaration, or
// a body some other stage assembled directly. When both are set, Body
// wins and AST is ignored.
type FunctionInput struct {
	Symbol       *symtab.FunctionSymbol
	AST          *lower.FunctionAST
	Body         *mir.MirBody
	Owner        string // class/trait qualified name, empty for free functions
	Sig          mir.FnSig
	DefaultExprs map[int]consteval.Node // param index -> default-value expression, for params with HasDefault
}

// ModuleInput is everything the driver needs to lower one module.
type ModuleInput struct {
	Name      string
	Types     []layout.Decl
	Classes   []ClassDecl
	Functions []FunctionInput
	Externs   []*abi.Extern
	Statics   []mir.StaticDef
	ConstFuel int
}

// LoweringResult is the driver's output: the merged module plus every
// diagnostic accumulated along the way (spec §6.3).
type LoweringResult struct {
	Module      *mir.MirModule
	Diagnostics []diag.Diagnostic
}

// Lower runs the full §4.7 pipeline for one module.
func Lower(in ModuleInput, registry *prim.Registry) LoweringResult {
	bag := diag.NewBag()
	xlog.Stage("lower.begin", in.Name)

	// 1. Register all type skeletons; finalise layouts.
	layouts := layout.NewTable(registry)
	for _, decl := range in.Types {
		layouts.Register(decl)
	}
	if err := layouts.FinalizeAll(bag); err != nil {
		bag.Error(nil, "layout finalisation failed: %v", err)
	}

	// 2. Build symbol index; resolve virtual slots by walking base-class
	// chains.
	index := symtab.NewIndex()
	for _, fn := range in.Functions {
		index.AddFunction(fn.Symbol, bag)
	}
	vtables := resolveVirtualSlots(in.Classes, bag)
	for owner, slots := range vtables {
		index.SetVtable(owner, slots)
	}

	// 3. Lower defaults: per function symbol with at least one defaulted
	// parameter, fold each default with the const evaluator and store the
	// result as a mir.DefaultConst. No mir.DefaultThunk is emitted here.
	evaluator, err := consteval.NewEvaluator(in.ConstFuel, 4096, layouts)
	if err != nil {
		bag.Error(nil, "building const evaluator: %v", err)
	}
	for i := range in.Functions {
		fn := &in.Functions[i]
		if evaluator == nil || len(fn.DefaultExprs) == 0 {
			continue
		}
		if fn.Sig.Defaults == nil {
			fn.Sig.Defaults = make(map[int]mir.DefaultArg, len(fn.DefaultExprs))
		}
		for pi, expr := range fn.DefaultExprs {
			key := consteval.CacheKey{
				ExpressionText: fn.Symbol.QualifiedName,
				Namespace:      in.Name,
				Owner:          fn.Owner,
				TargetType:     fn.Symbol.Params[pi].Ty.CanonicalName(),
			}
			res := evaluator.Eval(context.Background(), expr, key, consteval.NewFuel(in.ConstFuel), bag)
			fn.Sig.Defaults[pi] = mir.DefaultConst{Value: mir.ConstOperand{Value: res.Value, Ty: res.Ty}}
		}
	}

	// 4. Lower each function's AST into a MIR body (spec §4.3). A
	// function with a Body already set (extern-like, no AST) skips this.
	candidateLookup := lower.CandidateLookup(index.FunctionOverloads)
	vtableLookup := lower.VtableLookup(index.Vtable)
	builder := lower.NewBuilder(candidateLookup, vtableLookup, bag)
	for i := range in.Functions {
		fn := &in.Functions[i]
		if fn.Body == nil && fn.AST != nil {
			fn.Body = builder.Build(*fn.AST)
		}
	}

	// 5. Run borrow check.
	functions := make([]*mir.MirFunction, 0, len(in.Functions))
	for _, fn := range in.Functions {
		if fn.Body != nil {
			borrowck.NewChecker(fn.Body, bag).Check()
			if problems := fn.Body.WellFormed(); len(problems) > 0 {
				for _, p := range problems {
					bag.Error(nil, "%s: %s", fn.Symbol.QualifiedName, p)
				}
			}
		}
		functions = append(functions, &mir.MirFunction{
			QualifiedName: fn.Symbol.QualifiedName,
			InternalName:  fn.Symbol.InternalName,
			Sig:           fn.Sig,
			Body:          fn.Body,
		})
	}

	// 6. Finalise class vtables: skip tables with any unresolved symbols.
	finalVtables := make(map[string][]mir.VirtualDispatch, len(vtables))
	for owner, slots := range vtables {
		if hasUnresolvedSymbol(owner, slots, index) {
			xlog.Trace("driver.vtable_skipped", "owner", owner)
			continue
		}
		dispatch := make([]mir.VirtualDispatch, len(slots))
		for i, s := range slots {
			dispatch[i] = mir.VirtualDispatch{SlotIndex: s.SlotIndex, BaseOwner: s.BaseOwner}
		}
		finalVtables[owner] = dispatch
	}

	for _, ext := range in.Externs {
		abi.Validate(ext, layouts, bag)
	}

	// 7. Emit the merged MirModule plus a diagnostic list.
	module := &mir.MirModule{
		Name:      in.Name,
		Functions: functions,
		Statics:   in.Statics,
		Vtables:   finalVtables,
	}

	xlog.Stage("lower.end", in.Name)
	return LoweringResult{Module: module, Diagnostics: bag.Sorted()}
}

// resolveVirtualSlots walks each class's base-class chain, assigning
// slot indices in declaration order and flagging a method marked
// `override` with no virtual base providing that slot.
func resolveVirtualSlots(classes []ClassDecl, bag *diag.Bag) map[string][]symtab.VirtualSlot {
	byName := make(map[string]ClassDecl, len(classes))
	for _, c := range classes {
		byName[c.Name] = c
	}

	out := make(map[string][]symtab.VirtualSlot, len(classes))
	for _, c := range classes {
		var slots []symtab.VirtualSlot
		inherited := inheritedSlots(c, byName)
		slots = append(slots, inherited...)

		for _, m := range c.VirtualMethods {
			if hasSlot(slots, m) {
				continue
			}
			slots = append(slots, symtab.VirtualSlot{Method: m, SlotIndex: len(slots)})
		}

		for method, isOverride := range c.Overrides {
			if isOverride && !hasSlot(inherited, method) {
				bag.Error(nil, "%s.%s: marked override without a virtual base", c.Name, method)
			}
		}

		out[c.Name] = slots
	}
	return out
}

func inheritedSlots(c ClassDecl, byName map[string]ClassDecl) []symtab.VirtualSlot {
	if c.BaseOwner == "" {
		return nil
	}
	base, ok := byName[c.BaseOwner]
	if !ok {
		return nil
	}
	baseSlots := inheritedSlots(base, byName)
	for _, m := range base.VirtualMethods {
		if !hasSlot(baseSlots, m) {
			baseSlots = append(baseSlots, symtab.VirtualSlot{Method: m, SlotIndex: len(baseSlots), BaseOwner: base.Name})
		}
	}
	return baseSlots
}

func hasSlot(slots []symtab.VirtualSlot, method string) bool {
	for _, s := range slots {
		if s.Method == method {
			return true
		}
	}
	return false
}

func hasUnresolvedSymbol(owner string, slots []symtab.VirtualSlot, index *symtab.Index) bool {
	for _, s := range slots {
		if len(index.FunctionOverloads(owner+"."+s.Method)) == 0 {
			return true
		}
	}
	return false
}

// LowerAll lowers every module in inputs concurrently — across modules
// lowering is embarrassingly parallel given a shared read-only primitive
// registry (spec §5) — and returns results in input order.
func LowerAll(ctx context.Context, inputs []ModuleInput, registry *prim.Registry) ([]LoweringResult, error) {
	results := make([]LoweringResult, len(inputs))
	g, _ := errgroup.WithContext(ctx)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			results[i] = Lower(in, registry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
