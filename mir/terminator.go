package mir

// Terminator ends a basic block and names its successors (spec §3.4).
// Every reachable block must have exactly one terminator (spec §8.1).
type Terminator interface {
	isTerminator()
	successors() []BlockID
}

type Goto struct{ Target BlockID }
type Return struct{ Value Operand }

// SwitchIntArm pairs a discriminant value with its target block. Target
// block IDs across a SwitchInt's arms must be unique (spec §8.1
// "SwitchInt target uniqueness").
type SwitchIntArm struct {
	Value  int64
	Target BlockID
}
type SwitchInt struct {
	Discriminant Operand
	Arms         []SwitchIntArm
	Otherwise    BlockID
}

// MatchArm pairs a pattern-lowering plan with its target block (see
// package switchlower for plan construction).
type MatchArm struct {
	Pattern MatchPattern
	Guard   *Operand
	Target  BlockID
}
type Match struct {
	Value     Place
	Arms      []MatchArm
	Otherwise *BlockID
}

// MatchPattern is an opaque handle into the compiled decision structure
// switchlower builds; mir only needs to thread it through as a terminator
// payload, never to interpret it.
type MatchPattern = any

type Call struct {
	Callee    Operand
	Args      []Operand
	Dest      *Place
	Target    BlockID
	Unwind    *BlockID
	IsVirtual bool
	VTableIdx int
}
type Throw struct{ Value Operand }
type Panic struct{ Message string }
type Unreachable struct{}

// Yield and Await model coroutine/async suspension points; spec §3.5
// leaves their resumption ABI to the backend, so mir carries only the
// resume target and the value crossing the suspension point.
type Yield struct {
	Value  Operand
	Resume BlockID
}
type Await struct {
	Future Operand
	Resume BlockID
}
type PendingTerminator struct{ Repr string }

func (Goto) isTerminator()              {}
func (Return) isTerminator()            {}
func (SwitchInt) isTerminator()         {}
func (Match) isTerminator()             {}
func (Call) isTerminator()              {}
func (Throw) isTerminator()             {}
func (Panic) isTerminator()             {}
func (Unreachable) isTerminator()       {}
func (Yield) isTerminator()             {}
func (Await) isTerminator()             {}
func (PendingTerminator) isTerminator() {}

func (t Goto) successors() []BlockID   { return []BlockID{t.Target} }
func (Return) successors() []BlockID   { return nil }
func (t SwitchInt) successors() []BlockID {
	out := make([]BlockID, 0, len(t.Arms)+1)
	for _, a := range t.Arms {
		out = append(out, a.Target)
	}
	return append(out, t.Otherwise)
}
func (t Match) successors() []BlockID {
	out := make([]BlockID, 0, len(t.Arms)+1)
	for _, a := range t.Arms {
		out = append(out, a.Target)
	}
	if t.Otherwise != nil {
		out = append(out, *t.Otherwise)
	}
	return out
}
func (t Call) successors() []BlockID {
	out := []BlockID{t.Target}
	if t.Unwind != nil {
		out = append(out, *t.Unwind)
	}
	return out
}
func (Throw) successors() []BlockID       { return nil }
func (Panic) successors() []BlockID       { return nil }
func (Unreachable) successors() []BlockID { return nil }
func (t Yield) successors() []BlockID     { return []BlockID{t.Resume} }
func (t Await) successors() []BlockID     { return []BlockID{t.Resume} }
func (PendingTerminator) successors() []BlockID { return nil }

// Successors returns every block a terminator may transfer control to.
func Successors(t Terminator) []BlockID { return t.successors() }

// DuplicateSwitchTargets returns the set of block IDs that a SwitchInt
// names more than once across its arms and its Otherwise target,
// violating spec §8.1's target-uniqueness
// invariant. An empty result means the terminator is well-formed.
func DuplicateSwitchTargets(s SwitchInt) []BlockID {
	seen := make(map[BlockID]int, len(s.Arms)+1)
	seen[s.Otherwise]++
	for _, a := range s.Arms {
		seen[a.Target]++
	}
	var dups []BlockID
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}
