// Package borrowck implements the borrow checker of spec §4.5: a
// worklist dataflow over lowered MIR tracking move and borrow state per
// local across block boundaries.
package borrowck

import (
	"fmt"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/mir"
)

// placeKey flattens a Place into a comparable map key. Two places with
// the same local and rendered projection chain are the same key.
func placeKey(p mir.Place) string {
	key := fmt.Sprintf("L%d", p.Local)
	for _, proj := range p.Projection {
		key += fmt.Sprintf("/%T%v", proj, proj)
	}
	return key
}

// activeBorrow records one live borrow of a place. id is the
// BorrowStmt's id (spec §3.3's `Borrow{id, kind, place, region}`), which
// doubles as the LocalID of the storage slot that owns the borrow's
// reference value — the slot whose StorageDead ends the borrow's
// lexical region (spec §8.3 scenario 3).
type activeBorrow struct {
	id   int
	kind mir.BorrowKind
	span *diag.Span
}

// state is the dataflow fact set live at a program point: which places
// are moved-and-not-reinitialised, and which places carry live borrows.
// byID indexes the same borrows by id for StorageDead release.
type state struct {
	moved   map[string]bool
	borrows map[string][]activeBorrow
	byID    map[int]string // borrow id -> placeKey, for StorageDead lookup
}

func newState() *state {
	return &state{moved: map[string]bool{}, borrows: map[string][]activeBorrow{}, byID: map[int]string{}}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.moved {
		out.moved[k] = v
	}
	for k, v := range s.borrows {
		out.borrows[k] = append([]activeBorrow(nil), v...)
	}
	for k, v := range s.byID {
		out.byID[k] = v
	}
	return out
}

// merge unions two predecessor states at a join point: a place is moved
// iff it's moved on every incoming edge (conservative: unmoved on any
// edge means a well-formed program must have reinitialised it there, so
// treating the join as "moved only if moved everywhere" avoids false
// positives on reconverging branches); borrows union across edges.
func merge(a, b *state) *state {
	if a == nil {
		return b.clone()
	}
	out := newState()
	for k := range a.moved {
		if b.moved[k] {
			out.moved[k] = true
		}
	}
	for k, v := range a.borrows {
		out.borrows[k] = append(out.borrows[k], v...)
	}
	for k, v := range b.borrows {
		out.borrows[k] = append(out.borrows[k], v...)
	}
	for k, v := range a.byID {
		out.byID[k] = v
	}
	for k, v := range b.byID {
		out.byID[k] = v
	}
	return out
}

// Checker runs the borrow-check dataflow over one function body.
type Checker struct {
	body    *mir.MirBody
	bag     *diag.Bag
	pinned  map[mir.LocalID]bool
	streams map[string]*streamState
}

type streamState struct {
	dstKey, srcKey string
	pendingEvent   int
}

// NewChecker constructs a checker for body, reporting into bag. It
// records which locals are declared `is_pinned = true`.
func NewChecker(body *mir.MirBody, bag *diag.Bag) *Checker {
	pinned := map[mir.LocalID]bool{}
	for i, l := range body.Locals {
		if l.IsPinned {
			pinned[mir.LocalID(i)] = true
		}
	}
	return &Checker{body: body, bag: bag, pinned: pinned, streams: map[string]*streamState{}}
}

// Check runs the worklist dataflow to a fixpoint over body's blocks,
// emitting every violation of spec §4.5's rules.
func (c *Checker) Check() {
	in := make(map[mir.BlockID]*state, len(c.body.Blocks))
	out := make(map[mir.BlockID]*state, len(c.body.Blocks))

	worklist := []mir.BlockID{c.body.Entry()}
	in[c.body.Entry()] = newState()
	visited := map[mir.BlockID]bool{}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]

		blk, ok := c.body.Block(id)
		if !ok || blk.Terminator == nil {
			continue
		}

		s := in[id]
		if s == nil {
			s = newState()
		}
		result := c.walkBlock(blk, s.clone())
		prev, hadPrev := out[id]
		out[id] = result
		visited[id] = true

		if hadPrev && statesEqual(prev, result) {
			continue
		}

		for _, succ := range mir.Successors(blk.Terminator) {
			merged := merge(in[succ], result)
			in[succ] = merged
			worklist = append(worklist, succ)
		}
	}
}

func statesEqual(a, b *state) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.moved) != len(b.moved) {
		return false
	}
	for k := range a.moved {
		if !b.moved[k] {
			return false
		}
	}
	return len(a.borrows) == len(b.borrows)
}

// walkBlock applies every statement's effect in order and returns the
// resulting out-state.
func (c *Checker) walkBlock(blk *mir.Block, s *state) *state {
	for _, stmt := range blk.Statements {
		c.applyStatement(stmt, s)
	}
	c.applyTerminator(blk.Terminator, s)
	return s
}

func (c *Checker) applyStatement(stmt mir.Statement, s *state) {
	switch st := stmt.(type) {
	case mir.Assign:
		c.applyOperandUse(st.Rvalue, s)
		s.moved[placeKey(st.Place)] = false

	case mir.Deinit:
		s.moved[placeKey(st.Place)] = false

	case mir.Drop:
		// dropping consumes the place like a move for subsequent-use purposes
		s.moved[placeKey(st.Place)] = true

	case mir.BorrowStmt:
		c.applyBorrow(st.Place, st.Kind, st.ID, s, nil)

	case mir.StorageDead:
		c.releaseBorrow(int(st.Local), s)

	case mir.StorageLive:
		// no state changes here: any borrow id previously keyed to this
		// local is already gone once it reached StorageDead, and a move
		// recorded against the local is not cleared.

	case mir.EnqueueCopy:
		c.applyEnqueueCopy(st, s)

	case mir.WaitEvent:
		c.applyWaitEvent(st, s)

	case mir.AtomicOp:
		c.applyPlaceRead(st.Place, s)
	}
}

// releaseBorrow ends the borrow (if any) whose id is the dying local id,
// per spec §8.3 scenario 3: a StorageDead on the local that owns a
// borrow's reference value clears that borrow before it's checked.
func (c *Checker) releaseBorrow(localID int, s *state) {
	key, ok := s.byID[localID]
	if !ok {
		return
	}
	delete(s.byID, localID)

	remaining := s.borrows[key][:0]
	for _, b := range s.borrows[key] {
		if b.id != localID {
			remaining = append(remaining, b)
		}
	}
	if len(remaining) == 0 {
		delete(s.borrows, key)
	} else {
		s.borrows[key] = remaining
	}
}

func (c *Checker) applyTerminator(term mir.Terminator, s *state) {
	switch t := term.(type) {
	case mir.Return:
		c.applyOperandRead(t.Value, s)
	case mir.SwitchInt:
		c.applyOperandRead(t.Discriminant, s)
	case mir.Match:
		c.applyPlaceRead(t.Value, s)
	case mir.Call:
		c.applyOperandRead(t.Callee, s)
		for _, a := range t.Args {
			c.applyOperandRead(a, s)
		}
	case mir.Throw:
		c.applyOperandRead(t.Value, s)
	}
}

func (c *Checker) applyOperandUse(rv mir.Rvalue, s *state) {
	switch r := rv.(type) {
	case mir.UseRvalue:
		c.applyOperandRead(r.Operand, s)
	case mir.UnaryRvalue:
		c.applyOperandRead(r.Operand, s)
	case mir.BinaryRvalue:
		c.applyOperandRead(r.Lhs, s)
		c.applyOperandRead(r.Rhs, s)
	case mir.CastRvalue:
		c.applyOperandRead(r.Operand, s)
	case mir.LenRvalue:
		c.applyPlaceRead(r.Place, s)
	case mir.AddressOfRvalue:
		kind := mir.BorrowShared
		if r.Mutable {
			kind = mir.BorrowUnique
		}
		c.applyBorrow(r.Place, kind, -1, s, nil)
	case mir.AggregateRvalue:
		for _, f := range r.Fields {
			c.applyOperandRead(f, s)
		}
	}
}

func (c *Checker) applyOperandRead(op mir.Operand, s *state) {
	switch o := op.(type) {
	case mir.MoveOperand:
		c.applyMove(o.Place, s)
	case mir.CopyOperand:
		c.applyPlaceRead(o.Place, s)
	case mir.BorrowOperand:
		c.applyBorrow(o.Place, o.Kind, -1, s, nil)
	}
}

func (c *Checker) applyPlaceRead(p mir.Place, s *state) {
	if s.moved[placeKey(p)] {
		c.bag.Error(nil, "use of %q after move", describePlace(p))
	}
}

func (c *Checker) applyMove(p mir.Place, s *state) {
	if c.pinned[p.Local] {
		c.bag.Error(nil, "cannot move pinned binding %q", describePlace(p))
		return
	}
	key := placeKey(p)
	if borrows := s.borrows[key]; len(borrows) > 0 {
		c.bag.Error(borrows[0].span, "cannot move %q while %v borrow is active", describePlace(p), borrows[0].kind)
		return
	}
	if s.moved[key] {
		c.bag.Error(nil, "use of %q after move", describePlace(p))
		return
	}
	s.moved[key] = true
}

// applyBorrow records a new borrow of p. id is the owning BorrowStmt's
// id for release via releaseBorrow on a matching StorageDead, or -1 for
// a transient rvalue/operand-level borrow with no storage slot of its
// own to die (never released early; it simply doesn't outlive the
// state it was recorded in).
func (c *Checker) applyBorrow(p mir.Place, kind mir.BorrowKind, id int, s *state, span *diag.Span) {
	key := placeKey(p)
	existing := s.borrows[key]

	if kind != mir.BorrowUnique {
		for _, b := range existing {
			if b.kind == mir.BorrowUnique {
				c.bag.Error(span, "cannot borrow %q as %s: unique borrow is active", describePlace(p), kind)
				return
			}
		}
	}
	if kind == mir.BorrowUnique && len(existing) > 0 {
		c.bag.Error(span, "cannot borrow %q as unique: a borrow is already active", describePlace(p))
		return
	}

	s.borrows[key] = append(existing, activeBorrow{id: id, kind: kind, span: span})
	if id >= 0 {
		s.byID[id] = key
	}
}

func (c *Checker) applyEnqueueCopy(st mir.EnqueueCopy, s *state) {
	dstKey, srcKey := placeKey(st.Dst), ""
	c.applyBorrow(st.Dst, mir.BorrowUnique, -1, s, nil)
	if srcPlace, ok := mir.PlaceOf(st.Src); ok {
		srcKey = placeKey(srcPlace)
		c.applyBorrow(srcPlace, mir.BorrowShared, -1, s, nil)
	}
	c.streams[st.Stream] = &streamState{dstKey: dstKey, srcKey: srcKey, pendingEvent: st.Event}
}

func (c *Checker) applyWaitEvent(st mir.WaitEvent, s *state) {
	ss, ok := c.streams[st.Stream]
	if !ok || ss.pendingEvent != st.Event {
		return
	}
	delete(s.borrows, ss.dstKey)
	if ss.srcKey != "" {
		delete(s.borrows, ss.srcKey)
	}
	delete(c.streams, st.Stream)
}

func describePlace(p mir.Place) string {
	return fmt.Sprintf("local#%d", p.Local)
}
