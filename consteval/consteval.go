// Package consteval implements the constant evaluator of spec §4.6: a
// fuel-bounded, memoised interpreter for the pure expression sublanguage
// (literals, operators, const fn calls, sizeof/alignof/nameof, and
// quote() literals).
package consteval

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/internal/wire"
	"lattice.build/go/corec/internal/xlog"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/ty"
)

// Fuel is a per-evaluation expression budget. Each node visited consumes
// one unit; exhausting it yields an "out of fuel" diagnostic rather than
// evaluating forever.
type Fuel struct {
	remaining int
}

// NewFuel constructs a budget of n units.
func NewFuel(n int) *Fuel { return &Fuel{remaining: n} }

// Spend consumes one unit, reporting whether any remained.
func (f *Fuel) Spend() bool {
	if f.remaining <= 0 {
		return false
	}
	f.remaining--
	return true
}

// Remaining reports the unspent budget.
func (f *Fuel) Remaining() int { return f.remaining }

// CacheKey is the memoisation key named in spec §4.6:
// (expression_text, namespace, owner, target_type).
type CacheKey struct {
	ExpressionText string
	Namespace      string
	Owner          string
	TargetType     string
}

// String returns the canonical byte form of k: each field is
// length-prefixed with internal/wire's protobuf-wire byte encoding, so
// two keys compare equal iff every field does, regardless of incidental
// delimiter characters inside an expression's text.
func (k CacheKey) String() string {
	var buf []byte
	buf = wire.EncodeBytes(buf, []byte(k.ExpressionText))
	buf = wire.EncodeBytes(buf, []byte(k.Namespace))
	buf = wire.EncodeBytes(buf, []byte(k.Owner))
	buf = wire.EncodeBytes(buf, []byte(k.TargetType))
	return string(buf)
}

// Result is a folded constant and its type.
type Result struct {
	Value mir.ConstValue
	Ty    ty.Ty
}

// Evaluator folds expressions under a shared fuel budget, memoisation
// cache, and recursion guard.
//
// The memoisation cache is an LRU (hashicorp/golang-lru) the way hyperpb
// caches compiled message descriptors; concurrent evaluators deduplicate
// in-flight work for the same key via singleflight, mirroring the
// "embarrassingly parallel across modules" concurrency model of spec §5.
type Evaluator struct {
	DefaultFuel int
	cache       *lru.Cache[string, Result]
	group       singleflight.Group
	stack       []string // qualified names currently being evaluated, for cycle detection
	layouts     *layout.Table
}

// NewEvaluator constructs an evaluator with a bounded memoisation cache
// of capacity cacheSize and a default per-evaluation fuel budget.
func NewEvaluator(defaultFuel, cacheSize int, layouts *layout.Table) (*Evaluator, error) {
	cache, err := lru.New[string, Result](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Evaluator{DefaultFuel: defaultFuel, cache: cache, layouts: layouts}, nil
}

// Node is the pure-expression AST consteval walks. It is deliberately
// minimal — only the forms spec §4.6 names — and is produced by an
// upstream parser/resolver this core does not implement.
type Node interface {
	isNode()
}

type LitNode struct{ Value mir.ConstValue }
type UnaryNode struct {
	Op      mir.UnOp
	Operand Node
}
type BinaryNode struct {
	Op       mir.BinOp
	Lhs, Rhs Node
}
type CallNode struct {
	QualifiedName string
	Args          []Node
	Fn            *ConstFn
}
type SizeofNode struct{ TypeName string }
type AlignofNode struct{ TypeName string }
type NameofNode struct{ Symbol string }
type EnumPathNode struct {
	TypeName string
	Variant  string
}

// ParamNode references a const fn's parameter by name. It only resolves
// inside the env bound by evalCall for the duration of that call's body
// fold; outside any call it is an error (a bare param reference at
// module scope is not something a resolver should ever produce).
type ParamNode struct{ Name string }
type QuoteNode struct {
	Source        string
	Sanitized     string
	Span          diag.Span
	Captures      []string
	Interpolation []Node
}

func (ParamNode) isNode()    {}
func (LitNode) isNode()      {}
func (UnaryNode) isNode()    {}
func (BinaryNode) isNode()   {}
func (CallNode) isNode()     {}
func (SizeofNode) isNode()   {}
func (AlignofNode) isNode()  {}
func (NameofNode) isNode()   {}
func (EnumPathNode) isNode() {}
func (QuoteNode) isNode()    {}

// ConstFn is a user-defined const fn callable from a const context. Spec
// §4.6 requires it be non-async, non-extern, non-generic, with a body
// that returns a value.
type ConstFn struct {
	QualifiedName string
	Params        []string
	Body          Node
	IsAsync       bool
	IsExtern      bool
	IsGeneric     bool
}

// Validate reports why fn cannot be invoked from a const context, or nil
// if it can.
func (fn *ConstFn) Validate() error {
	switch {
	case fn.IsAsync:
		return fmt.Errorf("const fn %q must not be async", fn.QualifiedName)
	case fn.IsExtern:
		return fmt.Errorf("const fn %q must not be extern", fn.QualifiedName)
	case fn.IsGeneric:
		return fmt.Errorf("const fn %q must not be generic", fn.QualifiedName)
	case fn.Body == nil:
		return fmt.Errorf("const fn %q has no body", fn.QualifiedName)
	}
	return nil
}

// Eval folds expr under key's memoisation identity, consuming fuel and
// recording diagnostics into bag. It returns the zero Result and reports
// via bag on any failure (fuel exhaustion, cycle, type error).
func (e *Evaluator) Eval(ctx context.Context, expr Node, key CacheKey, fuel *Fuel, bag *diag.Bag) Result {
	if cached, ok := e.cache.Get(key.String()); ok {
		xlog.Trace("consteval.cache_hit", "key", key.String())
		return cached
	}

	v, err, _ := e.group.Do(key.String(), func() (any, error) {
		res, err := e.eval(expr, fuel, bag, nil)
		if err == nil {
			e.cache.Add(key.String(), res)
		}
		return res, err
	})
	if err != nil {
		bag.Error(nil, "const evaluation failed: %v", err)
		return Result{}
	}
	return v.(Result)
}

// eval folds n under env, the parameter bindings (if any) of the
// innermost const fn call currently being evaluated.
func (e *Evaluator) eval(n Node, fuel *Fuel, bag *diag.Bag, env map[string]Result) (Result, error) {
	if !fuel.Spend() {
		return Result{}, fmt.Errorf("out of fuel")
	}

	switch v := n.(type) {
	case LitNode:
		return Result{Value: v.Value, Ty: tyOfConst(v.Value)}, nil

	case ParamNode:
		res, ok := env[v.Name]
		if !ok {
			return Result{}, fmt.Errorf("reference to parameter %q outside a const fn call", v.Name)
		}
		return res, nil

	case UnaryNode:
		operand, err := e.eval(v.Operand, fuel, bag, env)
		if err != nil {
			return Result{}, err
		}
		return evalUnary(v.Op, operand)

	case BinaryNode:
		lhs, err := e.eval(v.Lhs, fuel, bag, env)
		if err != nil {
			return Result{}, err
		}
		rhs, err := e.eval(v.Rhs, fuel, bag, env)
		if err != nil {
			return Result{}, err
		}
		return evalBinary(v.Op, lhs, rhs)

	case CallNode:
		return e.evalCall(v, fuel, bag, env)

	case SizeofNode:
		l, ok := e.layouts.Lookup(v.TypeName)
		if !ok || l.Size == nil {
			return Result{}, fmt.Errorf("sizeof: %q has no finalized layout", v.TypeName)
		}
		return Result{Value: mir.UIntConst{Value: uint64(*l.Size)}, Ty: ty.NewPrimitive(prim.U64)}, nil

	case AlignofNode:
		l, ok := e.layouts.Lookup(v.TypeName)
		if !ok || l.Align == nil {
			return Result{}, fmt.Errorf("alignof: %q has no finalized layout", v.TypeName)
		}
		return Result{Value: mir.UIntConst{Value: uint64(*l.Align)}, Ty: ty.NewPrimitive(prim.U64)}, nil

	case NameofNode:
		return Result{Value: mir.StringConst{Value: v.Symbol}, Ty: ty.NewString()}, nil

	case EnumPathNode:
		l, ok := e.layouts.Lookup(v.TypeName)
		if !ok {
			return Result{}, fmt.Errorf("enum path: %q is not a registered type", v.TypeName)
		}
		for _, variant := range l.Variants {
			if variant.Name == v.Variant {
				return Result{
					Value: mir.IntConst{Value: variant.Discriminant.Int64()},
					Ty:    ty.NewNamed(v.TypeName),
				}, nil
			}
		}
		return Result{}, fmt.Errorf("enum path: %q has no variant %q", v.TypeName, v.Variant)

	case QuoteNode:
		return e.evalQuote(v, fuel, bag, env)

	default:
		return Result{}, fmt.Errorf("unsupported const node %T", n)
	}
}

// evalCall binds call.Args into a fresh environment keyed by
// call.Fn.Params before folding the body, so a const fn's result
// depends on the arguments it was actually invoked with rather than
// just its (argument-independent) structure.
func (e *Evaluator) evalCall(call CallNode, fuel *Fuel, bag *diag.Bag, env map[string]Result) (Result, error) {
	if call.Fn == nil {
		return Result{}, fmt.Errorf("call to unresolved const fn %q", call.QualifiedName)
	}
	if err := call.Fn.Validate(); err != nil {
		return Result{}, err
	}
	for _, name := range e.stack {
		if name == call.QualifiedName {
			return Result{}, fmt.Errorf("cycle detected: %q is already being evaluated", call.QualifiedName)
		}
	}
	if len(call.Args) != len(call.Fn.Params) {
		return Result{}, fmt.Errorf("const fn %q expects %d argument(s), got %d", call.QualifiedName, len(call.Fn.Params), len(call.Args))
	}

	callEnv := make(map[string]Result, len(call.Fn.Params))
	for i, name := range call.Fn.Params {
		argResult, err := e.eval(call.Args[i], fuel, bag, env)
		if err != nil {
			return Result{}, err
		}
		callEnv[name] = argResult
	}

	e.stack = append(e.stack, call.QualifiedName)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	return e.eval(call.Fn.Body, fuel, bag, callEnv)
}

func (e *Evaluator) evalQuote(q QuoteNode, fuel *Fuel, bag *diag.Bag, env map[string]Result) (Result, error) {
	interp := make([]mir.ConstValue, 0, len(q.Interpolation))
	for _, part := range q.Interpolation {
		res, err := e.eval(part, fuel, bag, env)
		if err != nil {
			return Result{}, err
		}
		if _, ok := res.Value.(mir.QuoteConst); !ok {
			bag.Error(&q.Span, "quote interpolation must itself evaluate to a Quote value")
			continue
		}
		interp = append(interp, res.Value)
	}

	return Result{
		Value: mir.QuoteConst{
			Hygiene:       fmt.Sprintf("%s#%d", q.Sanitized, q.Span.Start),
			Captures:      append([]string(nil), q.Captures...),
			Interpolation: interp,
			Source:        q.Source,
		},
		Ty: ty.NewNamed("core", "Quote"),
	}, nil
}

func tyOfConst(v mir.ConstValue) ty.Ty {
	switch v.(type) {
	case mir.IntConst:
		return ty.NewPrimitive(prim.I64)
	case mir.UIntConst:
		return ty.NewPrimitive(prim.U64)
	case mir.FloatConst:
		return ty.NewPrimitive(prim.F64)
	case mir.BoolConst:
		return ty.NewPrimitive(prim.Bool)
	case mir.StringConst:
		return ty.NewString()
	case mir.BytesConst:
		return ty.NewSpan(ty.NewPrimitive(prim.U8))
	case mir.UnitConst:
		return ty.NewUnit()
	default:
		return ty.NewUnknown()
	}
}
