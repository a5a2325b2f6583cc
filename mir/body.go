package mir

import "lattice.build/go/corec/diag"

// Block is one basic block of a MirBody.
type Block struct {
	ID         BlockID
	Statements []Statement
	Terminator Terminator
	Span       *diag.Span
}

// MirBody is the control-flow graph of a single function body (spec
// §3.3, GLOSSARY "MirBody").
type MirBody struct {
	Locals   []Local
	Blocks   []Block
	ArgCount int
}

// Entry is the entry block's ID, always 0 by construction.
func (b *MirBody) Entry() BlockID { return 0 }

// Block looks up a block by ID.
func (b *MirBody) Block(id BlockID) (*Block, bool) {
	for i := range b.Blocks {
		if b.Blocks[i].ID == id {
			return &b.Blocks[i], true
		}
	}
	return nil, false
}

// Local looks up a local by ID.
func (b *MirBody) Local(id LocalID) (*Local, bool) {
	if int(id) < 0 || int(id) >= len(b.Locals) {
		return nil, false
	}
	return &b.Locals[id], true
}

// WellFormed checks the spec §8.1 structural invariants: every block
// carries a terminator, and every SwitchInt's arms and Otherwise name
// distinct targets.
func (b *MirBody) WellFormed() []string {
	var problems []string
	ids := make(map[BlockID]bool, len(b.Blocks))
	for _, blk := range b.Blocks {
		if blk.Terminator == nil {
			problems = append(problems, "block has no terminator")
			continue
		}
		ids[blk.ID] = true
		if sw, ok := blk.Terminator.(SwitchInt); ok {
			if dups := DuplicateSwitchTargets(sw); len(dups) > 0 {
				problems = append(problems, "SwitchInt duplicates target block(s)")
			}
		}
	}
	for _, blk := range b.Blocks {
		if blk.Terminator == nil {
			continue
		}
		for _, succ := range Successors(blk.Terminator) {
			if !ids[succ] {
				problems = append(problems, "terminator targets unknown block")
			}
		}
	}
	return problems
}

// Reachable returns the set of block IDs reachable from the entry block.
func (b *MirBody) Reachable() map[BlockID]bool {
	seen := map[BlockID]bool{b.Entry(): true}
	stack := []BlockID{b.Entry()}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		blk, ok := b.Block(id)
		if !ok || blk.Terminator == nil {
			continue
		}
		for _, succ := range Successors(blk.Terminator) {
			if !seen[succ] {
				seen[succ] = true
				stack = append(stack, succ)
			}
		}
	}
	return seen
}
