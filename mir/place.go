// Package mir implements the lowered, control-flow-graph intermediate
// representation of spec §3.3–§3.5: functions, basic blocks, statements,
// terminators, rvalues, operands, and places.
package mir

import "lattice.build/go/corec/ty"

// LocalID identifies a local within a MirBody.
type LocalID int

// BlockID identifies a basic block within a MirBody.
type BlockID int

// LocalKind discriminates a Local's role (spec §3.3).
type LocalKind int

const (
	KindReturn LocalKind = iota
	KindArg
	KindLocal
	KindTemp
)

// Local is a single local variable/slot within a MirBody.
type Local struct {
	Name       string // empty if unnamed
	Ty         ty.Ty
	IsMutable  bool
	IsPinned   bool
	Kind       LocalKind
	ArgIndex   int // valid iff Kind == KindArg
}

// Projection is one step of a Place's projection chain.
type Projection interface {
	isProjection()
}

type FieldProjection struct{ Index int }
type FieldNamedProjection struct{ Name string }
type DowncastProjection struct{ Variant string }
type UnionFieldProjection struct {
	Index int
	Name  string
}
type IndexProjection struct{ Local LocalID }
type SubsliceProjection struct{ From, To int }
type DerefProjection struct{}

func (FieldProjection) isProjection()       {}
func (FieldNamedProjection) isProjection()  {}
func (DowncastProjection) isProjection()    {}
func (UnionFieldProjection) isProjection()  {}
func (IndexProjection) isProjection()       {}
func (SubsliceProjection) isProjection()    {}
func (DerefProjection) isProjection()       {}

// Place is a path (local + projection chain) identifying a memory
// location (spec §3.4, GLOSSARY "Place").
type Place struct {
	Local      LocalID
	Projection []Projection
}

// Base returns the place with its last projection stripped, and the
// stripped projection, or ok=false if Place has no projections.
func (p Place) Base() (base Place, last Projection, ok bool) {
	if len(p.Projection) == 0 {
		return p, nil, false
	}
	base = Place{Local: p.Local, Projection: p.Projection[:len(p.Projection)-1]}
	return base, p.Projection[len(p.Projection)-1], true
}

// IsAncestorOf reports whether p is a prefix of other's projection chain
// on the same local — i.e. other denotes a location nested inside p. Used
// by the borrow checker to decide whether a borrow of p conflicts with an
// access to other.
func (p Place) IsAncestorOf(other Place) bool {
	if p.Local != other.Local || len(p.Projection) > len(other.Projection) {
		return false
	}
	for i, proj := range p.Projection {
		if !projectionsEqual(proj, other.Projection[i]) {
			return false
		}
	}
	return true
}

func projectionsEqual(a, b Projection) bool {
	switch av := a.(type) {
	case FieldProjection:
		bv, ok := b.(FieldProjection)
		return ok && av == bv
	case FieldNamedProjection:
		bv, ok := b.(FieldNamedProjection)
		return ok && av == bv
	case DowncastProjection:
		bv, ok := b.(DowncastProjection)
		return ok && av == bv
	case UnionFieldProjection:
		bv, ok := b.(UnionFieldProjection)
		return ok && av == bv
	case IndexProjection:
		bv, ok := b.(IndexProjection)
		return ok && av == bv
	case SubsliceProjection:
		bv, ok := b.(SubsliceProjection)
		return ok && av == bv
	case DerefProjection:
		_, ok := b.(DerefProjection)
		return ok
	default:
		return false
	}
}
