// Package layout implements the type-layout table of spec §3.2/§4.1: it
// registers struct/union/enum/class declarations and computes their
// sizes, alignments, field offsets, enum discriminants, and auto-trait
// status.
//
// The registration algorithm is two-phase, and cyclic references are
// resolved with the same strongly-connected-component approach the
// teacher's compiler uses to lay out mutually-recursive message types
// (internal/tdp/compiler/compile.go's use of internal/scc): a reference
// through a pointer or reference field is a "weak" edge that is left out
// of the dependency graph, so it neither forces its target to be laid out
// first nor joins two types into one component. Only types that contain
// each other inline share a component.
package layout

import (
	"fmt"
	"iter"
	"math/big"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/internal/arena"
	"lattice.build/go/corec/internal/scc"
	"lattice.build/go/corec/internal/xlog"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/ty"
)

// Kind discriminates the TypeLayout variant (spec §3.2).
type Kind int

const (
	Struct Kind = iota
	Enum
	Union
	Class
)

// Repr is the representation policy of a type.
type Repr struct {
	Kind   ReprKind
	Packed int // valid iff Kind == ReprPacked; caps alignment to this value.
}

type ReprKind int

const (
	ReprDefault ReprKind = iota
	ReprC
	ReprPacked
)

// Tri is a tri-state boolean used for auto-trait inference (spec §3.2:
// "Known(bool) | Unknown").
type Tri int

const (
	Unknown Tri = iota
	KnownTrue
	KnownFalse
)

// And computes the monotone join used when folding a field's trait value
// into its aggregate's: any Known(false) field forces the aggregate to
// Known(false); Unknown only becomes Known(true) once every field is
// Known(true).
func (t Tri) And(o Tri) Tri {
	if t == KnownFalse || o == KnownFalse {
		return KnownFalse
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return KnownTrue
}

// AutoTrait names one of the four inferred marker traits.
type AutoTrait int

const (
	Copy AutoTrait = iota
	Clone
	Send
	Sync
	Unpin
	numAutoTraits
)

// Field is a single struct/union/class field within a computed layout.
type Field struct {
	Name   string
	Ty     ty.Ty
	Offset int64
	Align  int
	Size   int
}

// Variant is one case of an Enum layout.
type Variant struct {
	Name         string
	Index        int
	Discriminant big.Int
	Fields       []Field
}

// ClassInfo carries class-specific layout data (spec §3.2).
type ClassInfo struct {
	Kind         string // e.g. "open", "sealed", "abstract"; surface-defined.
	Bases        []string
	VtableOffset int64
	Dispose      string // symbol name of the dispose method, if any.
}

// UnionView is a typed reinterpretation of a Union's shared storage.
type UnionView struct {
	Name   string
	Ty     ty.Ty
	Offset int64
}

// TypeLayout is the tagged variant type of spec §3.2.
type TypeLayout struct {
	Kind          Kind
	Name          string // fully-qualified canonical name
	Repr          Repr
	Size          *int64 // nil until fully computed
	Align         *int
	Fields        []Field
	AutoTraits    [numAutoTraits]Tri
	AutoOverrides [numAutoTraits]bool // true if an @override attribute pinned this trait

	// Enum-only.
	Underlying prim.Kind
	Variants   []Variant
	IsFlags    bool

	// Class-only.
	Class *ClassInfo

	// Union-only.
	Views []UnionView
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset int64, align int) int64 {
	if align <= 1 {
		return offset
	}
	a := int64(align)
	return (offset + a - 1) / a * a
}

// FieldDecl is the AST-level shape the table consumes for a struct/union
// field, before layout is computed.
type FieldDecl struct {
	Name string
	Ty   ty.Ty
}

// VariantDecl is the AST-level shape of an enum variant, before
// discriminants are folded.
type VariantDecl struct {
	Name               string
	Fields             []FieldDecl
	ExplicitDiscrim    *big.Int // nil if not explicitly given
}

// Decl is a type declaration as registered with a Table, independent of
// its eventual computed layout.
type Decl struct {
	Name       string
	Kind       Kind
	Repr       Repr
	Fields     []FieldDecl // Struct/Union/Class
	Variants   []VariantDecl
	Underlying prim.Kind // Enum only; zero value (I8) if unspecified by surface syntax
	IsFlags    bool
	Class      *ClassInfo
}

// Table is the TypeLayoutTable of spec §3.2/§4.1.
type Table struct {
	prims    *prim.Registry
	interner *arena.Interner[TypeLayout]
	decls    map[string]Decl
	shortIdx map[string][]string // unqualified name -> matching canonical names
	order    []string            // registration order, for deterministic iteration
}

// NewTable constructs an empty table for the given target's primitive
// registry.
func NewTable(prims *prim.Registry) *Table {
	return &Table{
		prims:    prims,
		interner: arena.NewInterner[TypeLayout](),
		decls:    make(map[string]Decl),
		shortIdx: make(map[string][]string),
	}
}

// Register inserts a skeleton entry for d, per spec §4.1 phase (1): "insert
// skeleton entries so forward references resolve."
func (t *Table) Register(d Decl) {
	t.decls[d.Name] = d
	t.order = append(t.order, d.Name)

	short := shortName(d.Name)
	t.shortIdx[short] = append(t.shortIdx[short], d.Name)

	t.interner.GetOrInsert(d.Name, func(l *TypeLayout) {
		l.Kind = d.Kind
		l.Name = d.Name
		l.Repr = d.Repr
		l.Underlying = d.Underlying
		l.IsFlags = d.IsFlags
		l.Class = d.Class
		for i := range l.AutoTraits {
			l.AutoTraits[i] = Unknown
		}
	})

	xlog.Stage("layout.register", d.Name)
}

// Lookup resolves by canonical name, and by unqualified short name when
// unambiguous, per spec §4.1's contract.
func (t *Table) Lookup(name string) (*TypeLayout, bool) {
	if l, ok := t.interner.Lookup(name); ok {
		return l, true
	}
	matches := t.shortIdx[name]
	if len(matches) == 1 {
		return t.interner.Lookup(matches[0])
	}
	return nil, false
}

// FinalizeAll computes field layouts for every registered declaration,
// topologically by dependency, deferring cycles through a pointer or
// reference field exactly as spec §4.1 describes, using strongly
// connected components to lay out a mutually-recursive group together.
func (t *Table) FinalizeAll(bag *diag.Bag) error {
	graph := func(name string) iter.Seq[string] {
		return func(yield func(string) bool) {
			d := t.decls[name]
			for _, dep := range strongDeps(d) {
				if !yield(dep) {
					return
				}
			}
		}
	}

	// Build one DAG rooted at a synthetic node that depends on every
	// declaration, so Finalize covers the whole table, not just one
	// connected component.
	const root = "\x00root"
	t.decls[root] = Decl{Name: root}
	rootGraph := func(n string) iter.Seq[string] {
		if n == root {
			return func(yield func(string) bool) {
				for _, name := range t.order {
					if !yield(name) {
						return
					}
				}
			}
		}
		return graph(n)
	}

	dag := scc.Sort(root, scc.Graph[string](rootGraph))
	delete(t.decls, root)

	for component := range dag.Topological() {
		for _, name := range component.Members() {
			if name == root {
				continue
			}
			if err := t.finalizeOne(name, bag); err != nil {
				return err
			}
		}
	}
	return nil
}

// strongDeps returns the set of declarations name depends on "strongly":
// a field whose type is laid out inline (same struct/union/class storage)
// must be laid out first. A field reached only through a Pointer or Ref is
// a weak edge and is excluded, matching spec §4.1 ("deferring any cycle
// through a pointer/reference").
func strongDeps(d Decl) []string {
	var deps []string
	var walk func(ty.Ty)
	walk = func(typ ty.Ty) {
		switch typ.Kind() {
		case ty.Named:
			deps = append(deps, joinPath(typ.Path()))
		case ty.Array:
			walk(*typ.Elem())
		case ty.TupleKind:
			for _, e := range typ.Elements() {
				walk(e)
			}
		}
		// Pointer, Ref, Vec, Span, Rc, Arc, Fn etc. are all out-of-line /
		// weak: they do not require their pointee's layout to be known to
		// compute this field's own size/align.
	}
	for _, f := range d.Fields {
		walk(f.Ty)
	}
	for _, v := range d.Variants {
		for _, f := range v.Fields {
			walk(f.Ty)
		}
	}
	return deps
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "::" + p
	}
	return out
}

func shortName(canonical string) string {
	last := canonical
	for i := len(canonical) - 1; i >= 1; i-- {
		if canonical[i] == ':' && canonical[i-1] == ':' {
			last = canonical[i+1:]
			break
		}
	}
	return last
}

func (t *Table) finalizeOne(name string, bag *diag.Bag) error {
	d, ok := t.decls[name]
	if !ok {
		return fmt.Errorf("layout: unknown type %q", name)
	}
	l, _ := t.interner.Lookup(name)
	if l.Size != nil {
		return nil // already finalized (shared across a component)
	}

	switch d.Kind {
	case Struct, Union, Class:
		t.layoutFields(d, l, bag)
	case Enum:
		t.layoutEnum(d, l, bag)
	}

	t.computeAutoTraits(l)
	xlog.Stage("layout.finalize", name)
	return nil
}

// layoutFields implements spec §4.1's field-placement algorithm: "place it
// at align_to(current_offset, field_align) when representation is C, or
// at the next free position permitted by Packed(n) which caps alignment
// to n."
func (t *Table) layoutFields(d Decl, l *TypeLayout, bag *diag.Bag) {
	isUnion := d.Kind == Union
	var offset int64
	maxAlign := 1
	maxSize := 0

	for _, fd := range d.Fields {
		align, size := t.sizeAlignOf(fd.Ty)
		if d.Repr.Kind == ReprPacked {
			align = min(align, max(1, d.Repr.Packed))
		}
		var fieldOffset int64
		if isUnion {
			fieldOffset = 0
		} else {
			fieldOffset = AlignTo(offset, align)
		}

		l.Fields = append(l.Fields, Field{Name: fd.Name, Ty: fd.Ty, Offset: fieldOffset, Align: align, Size: size})

		if isUnion {
			maxSize = max(maxSize, size)
		} else {
			offset = fieldOffset + int64(size)
		}
		maxAlign = max(maxAlign, align)
	}

	if d.Repr.Kind == ReprC && d.Class == nil {
		// §3.2 invariant check: @repr(c) requires monotone, non-decreasing
		// offsets, which AlignTo already guarantees by construction; nothing
		// further to validate here beyond what layoutFields already does.
		_ = bag
	}

	finalAlign := maxAlign
	if d.Repr.Kind == ReprPacked {
		finalAlign = min(finalAlign, max(1, d.Repr.Packed))
	}
	var finalSize int64
	if isUnion {
		finalSize = AlignTo(int64(maxSize), finalAlign)
	} else {
		finalSize = AlignTo(offset, finalAlign)
	}

	l.Align = &finalAlign
	l.Size = &finalSize

	if d.Class != nil {
		info := *d.Class
		l.Class = &info
	}
	if isUnion {
		for _, f := range l.Fields {
			l.Views = append(l.Views, UnionView{Name: f.Name, Ty: f.Ty, Offset: f.Offset})
		}
	}
}

func (t *Table) sizeAlignOf(typ ty.Ty) (align, size int) {
	switch typ.Kind() {
	case ty.Primitive:
		b := typ.Primitive().Bytes()
		return b, b
	case ty.Pointer, ty.Ref:
		return t.prims.PointerAlign(), t.prims.PointerBytes()
	case ty.Unit:
		return 1, 0
	case ty.Array:
		a, s := t.sizeAlignOf(*typ.Elem())
		return a, s * int(typ.Length())
	case ty.Named:
		if l, ok := t.Lookup(joinPath(typ.Path())); ok && l.Size != nil {
			return *l.Align, int(*l.Size)
		}
		return 1, 0 // unresolved forward reference; diagnosed elsewhere
	case ty.TupleKind:
		var align, offset int
		align = 1
		for _, e := range typ.Elements() {
			ea, es := t.sizeAlignOf(e)
			offset = int(AlignTo(int64(offset), ea)) + es
			align = max(align, ea)
		}
		return align, int(AlignTo(int64(offset), align))
	default:
		// Vec/Span/Rc/Arc/String/TraitObject etc. are modeled as a fat
		// pointer (pointer + length/vtable word) for layout purposes.
		w := t.prims.PointerBytes()
		return w, 2 * w
	}
}

// layoutEnum implements spec §4.1's discriminant-assignment algorithm.
func (t *Table) layoutEnum(d Decl, l *TypeLayout, bag *diag.Bag) {
	underlying := d.Underlying
	bits := underlying.Bits()
	maxVal := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	seen := map[string]bool{}
	usedBits := big.NewInt(0) // for @flags: union of assigned bits

	var prev big.Int
	prev.SetInt64(-1)

	for i, vd := range d.Variants {
		var discrim big.Int
		switch {
		case vd.ExplicitDiscrim != nil:
			discrim.Set(vd.ExplicitDiscrim)
		case d.IsFlags:
			discrim = nextFreeBit(usedBits)
		default:
			discrim.Add(&prev, big.NewInt(1))
		}

		if !underlying.IsSigned() && discrim.Sign() < 0 {
			bag.Error(nil, "enum %q variant %q: negative discriminant not allowed for unsigned underlying type", d.Name, vd.Name)
			discrim.Mod(&discrim, maxVal)
		}
		if discrim.CmpAbs(maxVal) >= 0 {
			bag.Error(nil, "enum %q variant %q: discriminant does not fit in %s", d.Name, vd.Name, underlying.Name())
		}

		key := discrim.String()
		if seen[key] {
			bag.Error(nil, "enum %q: duplicate discriminant %s for variant %q", d.Name, key, vd.Name)
		}
		seen[key] = true

		if d.IsFlags {
			if vd.ExplicitDiscrim != nil && !isPowerOfTwo(&discrim) {
				if introducesUndefinedBit(&discrim, usedBits) {
					bag.Error(nil, "enum %q: variant %q introduces multiple undefined flag bits", d.Name, vd.Name)
				}
			}
			usedBits.Or(usedBits, &discrim)
		}

		var fields []Field
		for _, fd := range vd.Fields {
			align, size := t.sizeAlignOf(fd.Ty)
			fields = append(fields, Field{Name: fd.Name, Ty: fd.Ty, Align: align, Size: size})
		}

		l.Variants = append(l.Variants, Variant{Name: vd.Name, Index: i, Discriminant: discrim, Fields: fields})
		prev.Set(&discrim)
	}

	discrSize := underlying.Bytes()
	align := discrSize
	maxPayload := 0
	for _, v := range l.Variants {
		sum := 0
		for _, f := range v.Fields {
			sum += f.Size
			align = max(align, f.Align)
		}
		maxPayload = max(maxPayload, sum)
	}
	size := AlignTo(int64(discrSize+maxPayload), align)
	l.Size = &size
	l.Align = &align
}

// nextFreeBit returns the lowest power of two not already present in the
// union of previously assigned bits, per spec §4.1: "implicit values
// select the lowest bit not present in the union of previously assigned
// bits."
func nextFreeBit(used *big.Int) big.Int {
	i := 0
	for used.Bit(i) == 1 {
		i++
	}
	var bit big.Int
	bit.Lsh(big.NewInt(1), uint(i))
	return bit
}

func isPowerOfTwo(v *big.Int) bool {
	if v.Sign() <= 0 {
		return false
	}
	var one big.Int
	one.SetInt64(1)
	var vMinus1 big.Int
	vMinus1.Sub(v, &one)
	var and big.Int
	and.And(v, &vMinus1)
	return and.Sign() == 0
}

func introducesUndefinedBit(v, used *big.Int) bool {
	var newBits big.Int
	newBits.AndNot(v, used)
	// "unless all bits are previously known": flag v as soon as it sets
	// any bit that is not already in used, whether one new bit or several.
	return newBits.BitLen() > 0 && !subsetOfKnown(v, used)
}

func subsetOfKnown(v, used *big.Int) bool {
	var rest big.Int
	rest.AndNot(v, used)
	return rest.Sign() == 0
}

// computeAutoTraits implements spec §4.1: "Compute Known(true) only when
// every field of the aggregate is Known(true); any Known(false) field
// forces aggregate Known(false)."
func (t *Table) computeAutoTraits(l *TypeLayout) {
	for trait := AutoTrait(0); trait < numAutoTraits; trait++ {
		if l.AutoOverrides[trait] {
			continue // @override attributes win over inference (spec §4.1)
		}
		acc := KnownTrue
		if len(l.Fields) == 0 && l.Kind != Enum {
			acc = KnownTrue
		}
		for _, f := range l.Fields {
			acc = acc.And(t.autoTraitOf(f.Ty, trait))
		}
		for _, v := range l.Variants {
			for _, f := range v.Fields {
				acc = acc.And(t.autoTraitOf(f.Ty, trait))
			}
		}
		l.AutoTraits[trait] = acc
	}
}

func (t *Table) autoTraitOf(typ ty.Ty, trait AutoTrait) Tri {
	switch typ.Kind() {
	case ty.Primitive, ty.Unit:
		return KnownTrue
	case ty.Ref, ty.Pointer:
		// Shared refs/pointers are Copy/Send/Sync; mutable refs are not Copy.
		if trait == Copy && typ.Mutable() {
			return KnownFalse
		}
		return KnownTrue
	case ty.Named:
		if l, ok := t.Lookup(joinPath(typ.Path())); ok {
			return l.AutoTraits[trait]
		}
		return Unknown
	case ty.Array:
		return t.autoTraitOf(*typ.Elem(), trait)
	case ty.TupleKind:
		acc := KnownTrue
		for _, e := range typ.Elements() {
			acc = acc.And(t.autoTraitOf(e, trait))
		}
		return acc
	default:
		return Unknown
	}
}

// SetOverride pins an auto-trait to a fixed value via an @override
// attribute, per spec §4.1.
func (l *TypeLayout) SetOverride(trait AutoTrait, value bool) {
	l.AutoOverrides[trait] = true
	if value {
		l.AutoTraits[trait] = KnownTrue
	} else {
		l.AutoTraits[trait] = KnownFalse
	}
}
