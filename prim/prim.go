// Package prim is the primitive registry (spec §2): canonical names,
// widths, and signedness for built-in numerics, plus pointer-size
// resolution for the active target.
package prim

import "fmt"

// Kind enumerates the built-in numeric and scalar primitives.
type Kind uint8

const (
	I8 Kind = iota
	I16
	I32
	I64
	I128
	U8
	U16
	U32
	U64
	U128
	F32
	F64
	Bool
	Char
	Decimal
)

// info is the static description of a Kind.
type info struct {
	name     string
	bits     int
	signed   bool
	float    bool
	decimal  bool
}

var table = map[Kind]info{
	I8:      {"i8", 8, true, false, false},
	I16:     {"i16", 16, true, false, false},
	I32:     {"i32", 32, true, false, false},
	I64:     {"i64", 64, true, false, false},
	I128:    {"i128", 128, true, false, false},
	U8:      {"u8", 8, false, false, false},
	U16:     {"u16", 16, false, false, false},
	U32:     {"u32", 32, false, false, false},
	U64:     {"u64", 64, false, false, false},
	U128:    {"u128", 128, false, false, false},
	F32:     {"f32", 32, true, true, false},
	F64:     {"f64", 64, true, true, false},
	Bool:    {"bool", 8, false, false, false},
	Char:    {"char", 32, false, false, false},
	Decimal: {"decimal", 128, true, false, true},
}

// Name returns the canonical spelling of k, e.g. "i32".
func (k Kind) Name() string {
	i, ok := table[k]
	if !ok {
		return fmt.Sprintf("<invalid-primitive-%d>", k)
	}
	return i.name
}

// Bits returns the bit width of k.
func (k Kind) Bits() int { return table[k].bits }

// Bytes returns the byte width of k, rounding up (used for i128/u128/decimal).
func (k Kind) Bytes() int { return (k.Bits() + 7) / 8 }

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool { return table[k].signed && !table[k].float }

// IsFloat reports whether k is a floating-point kind.
func (k Kind) IsFloat() bool { return table[k].float }

// IsInteger reports whether k is an integer kind (signed or unsigned,
// excluding bool/char/decimal/float).
func (k Kind) IsInteger() bool {
	switch k {
	case I8, I16, I32, I64, I128, U8, U16, U32, U64, U128:
		return true
	default:
		return false
	}
}

// IsDecimal reports whether k is the arbitrary-precision decimal kind.
func (k Kind) IsDecimal() bool { return table[k].decimal }

// ByName resolves a canonical primitive name back to its Kind.
func ByName(name string) (Kind, bool) {
	for k, i := range table {
		if i.name == name {
			return k, true
		}
	}
	return 0, false
}

// PointerWidth describes the address width of a compilation target.
type PointerWidth int

const (
	Pointer32 PointerWidth = 32
	Pointer64 PointerWidth = 64
)

// Registry resolves target-dependent primitive facts, principally pointer
// size, which every `Pointer`/`Ref` type layout (spec §3.2) depends on.
type Registry struct {
	pointerWidth PointerWidth
}

// NewRegistry constructs a registry for the given target pointer width.
func NewRegistry(width PointerWidth) *Registry {
	return &Registry{pointerWidth: width}
}

// PointerBytes returns the size, in bytes, of a pointer or reference on
// this target.
func (r *Registry) PointerBytes() int { return int(r.pointerWidth) / 8 }

// PointerAlign returns the alignment of a pointer or reference on this
// target; pointers are always naturally aligned.
func (r *Registry) PointerAlign() int { return r.PointerBytes() }

// FFISafe reports whether a primitive kind is always safe to pass across
// an extern ABI boundary (spec §6.1). Every primitive here is FFI-safe
// except i128/u128/decimal, which are excluded because not every extern calling
// convention defines their passing rules.
func (k Kind) FFISafe() bool {
	switch k {
	case I128, U128, Decimal:
		return false
	default:
		return true
	}
}
