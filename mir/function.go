package mir

import "lattice.build/go/corec/ty"

// Effect tags one observable side-effect a function may perform, as
// reported by FnSig.HasEffect. The const evaluator does not consult
// effects.
type Effect int

const (
	EffectPure Effect = iota
	EffectIO
	EffectUnsafe
	EffectThrows
	EffectAsync
	EffectAcceleratorStream
)

// DefaultArg is the folded or thunked value of a defaulted parameter
// (spec §4.2/§4.3).
type DefaultArg interface {
	isDefaultArg()
}

type DefaultConst struct{ Value ConstOperand }

// DefaultThunk names a synthesized zero-argument function that computes
// a default value too complex to fold eagerly (spec §4.3 "default-value
// thunks").
type DefaultThunk struct {
	Symbol        string
	MetadataCount int
}

func (DefaultConst) isDefaultArg() {}
func (DefaultThunk) isDefaultArg() {}

// FnSig is a function's signature as lowered for MIR consumers: parameter
// types/modes, return type, calling convention, and declared effects.
type FnSig struct {
	Params        []Param
	Ret           ty.Ty
	Abi           ty.Abi
	Effects       map[Effect]bool
	Variadic      bool
	LendsToReturn bool // a Ref/In parameter's borrow may outlive the call (spec §4.5)
	Defaults      map[int]DefaultArg
}

// Param is a MIR-level function parameter.
type Param struct {
	Name string
	Ty   ty.Ty
	Mode ParamMode
}

// ParamMode mirrors symtab.Mode without importing symtab, since mir must
// not depend on the symbol index.
type ParamMode int

const (
	ModeValue ParamMode = iota
	ModeIn
	ModeRef
	ModeOut
)

func (s FnSig) HasEffect(e Effect) bool { return s.Effects[e] }

// VirtualDispatch records the vtable slot a class method occupies, if
// any (spec §4.7 "Finalise class vtables").
type VirtualDispatch struct {
	SlotIndex     int
	ReceiverIndex int
	BaseOwner     string
}

// TraitDispatch records a trait method's slot within its trait's vtable
// layout, and the concrete implementing type when monomorphized.
type TraitDispatch struct {
	TraitName string
	Method    string
	SlotIndex int
	SlotCount int
	ImplType  string
}

// MirFunction is one fully lowered function body plus its signature and
// any virtual/trait dispatch metadata (spec §3.3, GLOSSARY "MirFunction").
type MirFunction struct {
	QualifiedName string
	InternalName  string
	Sig           FnSig
	Body          *MirBody
	Virtual       *VirtualDispatch
	Trait         *TraitDispatch
}
