package lower

import (
	"fmt"
)

// ResolveVirtualDispatch looks up the vtable slot index of a call on a
// class method with a virtual slot table (spec §4.3 "Virtual dispatch").
// It returns only the slot index: receiverIndex is not used and nothing
// about the receiver is recorded. vtables is typically a symtab.Index's
// Vtable method. ok is
// false when owner has no vtable or method isn't in it, meaning the
// call is a plain static dispatch.
func ResolveVirtualDispatch(vtables VtableLookup, owner, method string, receiverIndex int) (slotIndex int, ok bool) {
	slots, has := vtables(owner)
	if !has {
		return 0, false
	}
	for _, s := range slots {
		if s.Method == method {
			return s.SlotIndex, true
		}
	}
	return 0, false
}

// TraitDispatchResult is the outcome of resolving a method call on a
// trait-object-typed receiver.
type TraitDispatchResult struct {
	TraitName string
	SlotIndex int
	SlotCount int
}

// TraitMethodTable maps a trait's method name to its slot index and the
// trait's total slot count; callers build one per trait from its
// declaration order.
type TraitMethodTable struct {
	TraitName string
	Slots     map[string]int
	SlotCount int
}

// ResolveTraitDispatch resolves method against the union of traits
// bounding a trait-object or generic-with-bounds receiver (spec §4.3):
// exactly one match succeeds, zero matches is "method not defined on dyn
// …", more than one requires an explicit trait-qualified cast.
func ResolveTraitDispatch(traits []TraitMethodTable, method string) (*TraitDispatchResult, error) {
	var matches []TraitDispatchResult
	for _, t := range traits {
		if idx, ok := t.Slots[method]; ok {
			matches = append(matches, TraitDispatchResult{TraitName: t.TraitName, SlotIndex: idx, SlotCount: t.SlotCount})
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("method %q not defined on dyn …", method)
	case 1:
		return &matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.TraitName
		}
		return nil, fmt.Errorf("method %q is ambiguous across traits %v: requires an explicit trait-qualified cast", method, names)
	}
}

// CastKind mirrors spec §4.3's cast-lowering taxonomy, distinct from
// mir.CastKind (the MIR-level rvalue tag) since this enumerates the
// *source-level* cast forms the body builder must classify before
// choosing a mir.CastKind and any accompanying diagnostic.
type CastKind int

const (
	CastIntToInt CastKind = iota
	CastIntToFloat
	CastFloatToInt
	CastFloatToFloat
	CastPointerToInt
	CastIntToPointer
	CastDynTrait
	CastUnknown
)

// CastDiagnostic is the advisory or blocking note attached to a cast
// lowering, per spec §4.3.
type CastDiagnostic struct {
	Blocking bool
	Message  string
}

// ClassifyCast reports the diagnostic (if any) that accompanies lowering
// a cast of the given kind, given whether it executes inside an unsafe
// block and whether it's narrowing (fewer bits in the target).
func ClassifyCast(kind CastKind, inUnsafeBlock, narrowing bool) *CastDiagnostic {
	switch kind {
	case CastPointerToInt, CastIntToPointer:
		if !inUnsafeBlock {
			return &CastDiagnostic{Blocking: true, Message: "requires an unsafe block"}
		}
	case CastIntToInt, CastFloatToFloat:
		if narrowing {
			return &CastDiagnostic{Blocking: false, Message: "may truncate or wrap"}
		}
		return &CastDiagnostic{Blocking: false, Message: "prefer an explicit From/Into conversion"}
	}
	return nil
}
