// Package ty implements the closed Ty variant set of spec §3.1: every
// type the lowering pipeline can reason about, together with its stable
// canonical name.
package ty

import (
	"strconv"
	"strings"

	"lattice.build/go/corec/prim"
)

// Kind discriminates the Ty variant.
type Kind int

const (
	Unit Kind = iota
	Unknown
	Named
	Pointer
	Ref
	Nullable
	Array
	Vec
	Span
	ReadOnlySpan
	Rc
	Arc
	TupleKind
	String
	Str
	Fn
	Vector
	TraitObject
	Primitive
)

// Abi identifies a function's calling convention.
type Abi struct {
	Extern     bool
	Convention string // e.g. "C", "stdcall"; empty when not Extern.
}

// Effect enumerates side-effect classes attached to a Fn type; spec §3.3
// carries FnSig.effects but leaves their exact vocabulary to the
// implementation. This core defines a small set; neither the const
// evaluator nor the borrow checker branches on them.
type Effect int

const (
	EffectPure Effect = iota
	EffectIO
	EffectAsync
	EffectUnsafe
)

// Ty is an immutable, structurally-comparable description of a type.
//
// Two Tys are compared with Equal, not Go's ==, because Ty contains
// slices; see the Invariants in spec §3.1 for what "equal" means
// (reference/pointer mutability is part of identity; Nullable never
// double-wraps).
type Ty struct {
	kind Kind

	// Named
	path []string

	// Pointer / Ref / Nullable / Array / Vec / Span / ReadOnlySpan / Rc / Arc
	elem    *Ty
	mutable bool
	length  int64 // Array only; -1 if unknown at this point.

	// Tuple
	elements []Ty

	// Fn
	params       []Ty
	ret          *Ty
	abi          Abi
	effects      []Effect
	lendsToRet   bool
	variadic     bool

	// Vector (SIMD)
	lanes int

	// TraitObject
	traits []string

	// Primitive
	prim prim.Kind
}

// NewUnit, NewUnknown, NewString, NewStr return the corresponding
// zero-argument variants.
func NewUnit() Ty    { return Ty{kind: Unit} }
func NewUnknown() Ty { return Ty{kind: Unknown} }
func NewString() Ty  { return Ty{kind: String} }
func NewStr() Ty     { return Ty{kind: Str} }

// NewPrimitive wraps a primitive registry kind as a Ty.
func NewPrimitive(k prim.Kind) Ty { return Ty{kind: Primitive, prim: k} }

// NewNamed constructs a Named(path) type from a `::`-qualified path's
// segments, e.g. []string{"app", "widgets", "Button"}.
func NewNamed(path ...string) Ty {
	return Ty{kind: Named, path: append([]string(nil), path...)}
}

// NewPointer constructs Pointer{pointee, mutable}.
func NewPointer(pointee Ty, mutable bool) Ty {
	return Ty{kind: Pointer, elem: &pointee, mutable: mutable}
}

// NewRef constructs Ref{pointee, mutable}.
func NewRef(pointee Ty, mutable bool) Ty {
	return Ty{kind: Ref, elem: &pointee, mutable: mutable}
}

// NewNullable constructs Nullable(inner). Per spec §3.1's invariant,
// Nullable(Nullable(_)) collapses: wrapping an already-nullable type
// returns the input unchanged rather than double-wrapping.
func NewNullable(inner Ty) Ty {
	if inner.kind == Nullable {
		return inner
	}
	return Ty{kind: Nullable, elem: &inner}
}

// NewArray constructs Array{element, length}.
func NewArray(elem Ty, length int64) Ty {
	return Ty{kind: Array, elem: &elem, length: length}
}

// NewVec, NewSpan, NewReadOnlySpan construct the corresponding
// single-element-parameter container types.
func NewVec(elem Ty) Ty          { return Ty{kind: Vec, elem: &elem} }
func NewSpan(elem Ty) Ty         { return Ty{kind: Span, elem: &elem} }
func NewReadOnlySpan(elem Ty) Ty { return Ty{kind: ReadOnlySpan, elem: &elem} }
func NewRc(inner Ty) Ty          { return Ty{kind: Rc, elem: &inner} }
func NewArc(inner Ty) Ty         { return Ty{kind: Arc, elem: &inner} }

// NewTuple constructs Tuple(elements). An empty element list yields
// Unit, whose canonical name "()" the empty tuple shares.
func NewTuple(elements ...Ty) Ty {
	if len(elements) == 0 {
		return NewUnit()
	}
	return Ty{kind: TupleKind, elements: append([]Ty(nil), elements...)}
}

// NewFn constructs a Fn type.
func NewFn(params []Ty, ret Ty, abi Abi, effects []Effect, lendsToRet, variadic bool) Ty {
	return Ty{
		kind:       Fn,
		params:     append([]Ty(nil), params...),
		ret:        &ret,
		abi:        abi,
		effects:    append([]Effect(nil), effects...),
		lendsToRet: lendsToRet,
		variadic:   variadic,
	}
}

// NewVector constructs a fixed-lane SIMD Vector{element, lanes} type.
func NewVector(elem Ty, lanes int) Ty {
	return Ty{kind: Vector, elem: &elem, lanes: lanes}
}

// NewTraitObject constructs TraitObject{traits}, canonicalized by sorting
// the trait names so that `dyn A + B` and `dyn B + A` are the same Ty.
func NewTraitObject(traits ...string) Ty {
	sorted := append([]string(nil), traits...)
	sortStrings(sorted)
	return Ty{kind: TraitObject, traits: sorted}
}

// Kind returns the discriminant.
func (t Ty) Kind() Kind { return t.kind }

// Elem returns the element/pointee/inner type for container-like
// variants, or nil if t does not carry one.
func (t Ty) Elem() *Ty { return t.elem }

// Mutable reports pointer/reference mutability. Part of Ty identity per
// spec §3.1.
func (t Ty) Mutable() bool { return t.mutable }

// Length returns the Array element count.
func (t Ty) Length() int64 { return t.length }

// Path returns the Named path segments.
func (t Ty) Path() []string { return t.path }

// Elements returns the Tuple member types.
func (t Ty) Elements() []Ty { return t.elements }

// Params, Ret, FnAbi, Effects, LendsToReturn, Variadic expose the Fn
// variant's fields.
func (t Ty) Params() []Ty        { return t.params }
func (t Ty) Ret() *Ty            { return t.ret }
func (t Ty) FnAbi() Abi          { return t.abi }
func (t Ty) Effects() []Effect   { return t.effects }
func (t Ty) LendsToReturn() bool { return t.lendsToRet }
func (t Ty) Variadic() bool      { return t.variadic }

// Lanes returns the Vector lane count.
func (t Ty) Lanes() int { return t.lanes }

// Traits returns the TraitObject's trait name set, sorted.
func (t Ty) Traits() []string { return t.traits }

// Primitive returns the wrapped primitive kind.
func (t Ty) Primitive() prim.Kind { return t.prim }

// FFISafe implements spec §6.1: "Fn with Abi::Extern(convention) is
// FFI-safe iff every parameter/return is FFI-safe."
func (t Ty) FFISafe() bool {
	switch t.kind {
	case Primitive:
		return t.prim.FFISafe()
	case Pointer:
		return true
	case Unit:
		return true
	case Fn:
		if !t.abi.Extern {
			return false
		}
		for _, p := range t.params {
			if !p.FFISafe() {
				return false
			}
		}
		return t.ret.FFISafe()
	default:
		return false
	}
}

// Equal reports structural equality, honoring the spec §3.1 identity
// rules (mutability differs ⇒ non-equal; two Nullable never nest).
func (t Ty) Equal(o Ty) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case Unit, Unknown, String, Str:
		return true
	case Primitive:
		return t.prim == o.prim
	case Named:
		return slicesEqual(t.path, o.path)
	case Pointer, Ref:
		return t.mutable == o.mutable && elemEqual(t.elem, o.elem)
	case Nullable, Vec, Span, ReadOnlySpan, Rc, Arc:
		return elemEqual(t.elem, o.elem)
	case Array:
		return t.length == o.length && elemEqual(t.elem, o.elem)
	case Vector:
		return t.lanes == o.lanes && elemEqual(t.elem, o.elem)
	case TupleKind:
		if len(t.elements) != len(o.elements) {
			return false
		}
		for i := range t.elements {
			if !t.elements[i].Equal(o.elements[i]) {
				return false
			}
		}
		return true
	case Fn:
		if t.abi != o.abi || t.variadic != o.variadic || len(t.params) != len(o.params) {
			return false
		}
		for i := range t.params {
			if !t.params[i].Equal(o.params[i]) {
				return false
			}
		}
		return elemEqual(t.ret, o.ret)
	case TraitObject:
		return slicesEqual(t.traits, o.traits)
	default:
		return false
	}
}

func elemEqual(a, b *Ty) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// CanonicalName returns the fully-qualified, `::`-separated name of t,
// independent of surface syntax (spec §3.1, GLOSSARY "Canonical name").
func (t Ty) CanonicalName() string {
	var b strings.Builder
	t.writeCanonical(&b)
	return b.String()
}

func (t Ty) writeCanonical(b *strings.Builder) {
	switch t.kind {
	case Unit:
		b.WriteString("()")
	case Unknown:
		b.WriteString("?")
	case String:
		b.WriteString("String")
	case Str:
		b.WriteString("str")
	case Primitive:
		b.WriteString(t.prim.Name())
	case Named:
		b.WriteString(strings.Join(t.path, "::"))
	case Pointer:
		b.WriteString("*")
		if t.mutable {
			b.WriteString("mut ")
		} else {
			b.WriteString("const ")
		}
		t.elem.writeCanonical(b)
	case Ref:
		b.WriteString("&")
		if t.mutable {
			b.WriteString("mut ")
		}
		t.elem.writeCanonical(b)
	case Nullable:
		b.WriteString("?")
		t.elem.writeCanonical(b)
	case Array:
		b.WriteString("[")
		t.elem.writeCanonical(b)
		b.WriteString("; ")
		b.WriteString(strconv.FormatInt(t.length, 10))
		b.WriteString("]")
	case Vec:
		b.WriteString("Vec<")
		t.elem.writeCanonical(b)
		b.WriteString(">")
	case Span:
		b.WriteString("Span<")
		t.elem.writeCanonical(b)
		b.WriteString(">")
	case ReadOnlySpan:
		b.WriteString("ReadOnlySpan<")
		t.elem.writeCanonical(b)
		b.WriteString(">")
	case Rc:
		b.WriteString("Rc<")
		t.elem.writeCanonical(b)
		b.WriteString(">")
	case Arc:
		b.WriteString("Arc<")
		t.elem.writeCanonical(b)
		b.WriteString(">")
	case TupleKind:
		b.WriteString("(")
		for i, e := range t.elements {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeCanonical(b)
		}
		b.WriteString(")")
	case Fn:
		if t.abi.Extern {
			b.WriteString("extern \"")
			b.WriteString(t.abi.Convention)
			b.WriteString("\" ")
		}
		b.WriteString("fn(")
		for i, p := range t.params {
			if i > 0 {
				b.WriteString(", ")
			}
			p.writeCanonical(b)
		}
		if t.variadic {
			if len(t.params) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("...")
		}
		b.WriteString(") -> ")
		t.ret.writeCanonical(b)
	case Vector:
		b.WriteString("Vector<")
		t.elem.writeCanonical(b)
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(t.lanes))
		b.WriteString(">")
	case TraitObject:
		b.WriteString("dyn ")
		b.WriteString(strings.Join(t.traits, " + "))
	default:
		b.WriteString("<invalid>")
	}
}
