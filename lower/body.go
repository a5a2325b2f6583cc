package lower

import (
	"fmt"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/symtab"
	"lattice.build/go/corec/ty"
)

// CandidateLookup resolves a qualified name to its overload set, the
// way the body builder consults the symbol index built in driver step 2
// without importing symtab.Index's full surface.
type CandidateLookup func(qualifiedName string) []*symtab.FunctionSymbol

// VtableLookup resolves a class/trait's virtual slot table, mirroring
// symtab.Index.Vtable, for the body builder to classify a method call as
// virtual dispatch.
type VtableLookup func(owner string) ([]symtab.VirtualSlot, bool)

// Builder lowers one FunctionAST into a mir.MirBody, threading a
// "current block" cursor through the recursive descent the way a
// hand-written CFG builder does: every lowering call takes the block
// it's emitting into and returns (or mutates, for statements) the block
// where lowering should resume (spec §4.3).
type Builder struct {
	body        *mir.MirBody
	scopes      []map[string]mir.LocalID
	scopeLocals [][]mir.LocalID
	candidates  CandidateLookup
	vtables     VtableLookup
	bag         *diag.Bag
}

// NewBuilder constructs a body builder consulting candidates for
// overload resolution and vtables for virtual dispatch classification,
// reporting failures into bag.
func NewBuilder(candidates CandidateLookup, vtables VtableLookup, bag *diag.Bag) *Builder {
	return &Builder{candidates: candidates, vtables: vtables, bag: bag}
}

// Build lowers fn into a fresh MirBody: local 0 is always the return
// slot, followed by the receiver (if any), then Params, then Captures,
// each materialized as an Arg(i) local in that order (spec §4.3).
func (b *Builder) Build(fn FunctionAST) *mir.MirBody {
	b.body = &mir.MirBody{}
	b.scopes = nil
	b.scopeLocals = nil

	b.body.Locals = append(b.body.Locals, mir.Local{Kind: mir.KindReturn, Ty: fn.ReturnTy})

	b.pushScope()
	argIndex := 0
	if fn.Receiver != nil {
		b.declareArg(*fn.Receiver, argIndex)
		argIndex++
	}
	for _, p := range fn.Params {
		b.declareArg(p, argIndex)
		argIndex++
	}
	for _, c := range fn.Captures {
		b.declareArg(c, argIndex)
		argIndex++
	}
	b.body.ArgCount = argIndex

	entry := b.newBlock()
	cur := entry
	cur = b.lowerStmts(cur, fn.Body)

	if b.blockOpen(cur) {
		// a body that falls off its last statement without an explicit
		// return yields the zero-initialised return local, matching the
		// implicit-unit-return convention of an expression-bodied function
		// whose last statement isn't itself a return.
		b.setTerminator(cur, mir.Return{Value: mir.CopyOperand{Place: mir.Place{Local: 0}}})
	}

	return b.body
}

func (b *Builder) declareArg(p ParamDecl, argIndex int) {
	id := mir.LocalID(len(b.body.Locals))
	b.body.Locals = append(b.body.Locals, mir.Local{Name: p.Name, Ty: p.Ty, Kind: mir.KindArg, ArgIndex: argIndex})
	b.bind(p.Name, id)
}

// -- scope/local bookkeeping --

func (b *Builder) pushScope() {
	b.scopes = append(b.scopes, map[string]mir.LocalID{})
	b.scopeLocals = append(b.scopeLocals, nil)
}

// popScope releases every local declared in the innermost scope via
// StorageDead, in reverse declaration order, before discarding it. This
// is what makes a `let` binding's or a borrow temporary's StorageDead
// appear in the emitted MIR without requiring the AST to spell it out.
func (b *Builder) popScope(cur mir.BlockID) {
	n := len(b.scopeLocals) - 1
	locals := b.scopeLocals[n]
	for i := len(locals) - 1; i >= 0; i-- {
		b.emit(cur, mir.StorageDead{Local: locals[i]})
	}
	b.scopes = b.scopes[:n]
	b.scopeLocals = b.scopeLocals[:n]
}

func (b *Builder) bind(name string, id mir.LocalID) {
	top := len(b.scopes) - 1
	b.scopes[top][name] = id
	b.scopeLocals[top] = append(b.scopeLocals[top], id)
}

func (b *Builder) lookup(name string) (mir.LocalID, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if id, ok := b.scopes[i][name]; ok {
			return id, true
		}
	}
	return 0, false
}

func (b *Builder) newLocal(kind mir.LocalKind, t ty.Ty) mir.LocalID {
	id := mir.LocalID(len(b.body.Locals))
	b.body.Locals = append(b.body.Locals, mir.Local{Ty: t, Kind: kind})
	return id
}

// -- block bookkeeping --

func (b *Builder) newBlock() mir.BlockID {
	id := mir.BlockID(len(b.body.Blocks))
	b.body.Blocks = append(b.body.Blocks, mir.Block{ID: id})
	return id
}

func (b *Builder) blockOpen(cur mir.BlockID) bool {
	return b.body.Blocks[cur].Terminator == nil
}

func (b *Builder) emit(cur mir.BlockID, stmt mir.Statement) {
	b.body.Blocks[cur].Statements = append(b.body.Blocks[cur].Statements, stmt)
}

func (b *Builder) setTerminator(cur mir.BlockID, term mir.Terminator) {
	b.body.Blocks[cur].Terminator = term
}

func (b *Builder) errorf(format string, args ...any) {
	b.bag.Error(nil, format, args...)
}

// -- statement lowering --

// lowerStmts lowers stmts under a fresh lexical scope, returning the
// block where lowering should resume after the last statement. Once a
// statement terminates its block (a return), later statements in the
// same list are unreachable and are skipped rather than lowered into a
// dead block. An if or while always resumes in a fresh join block, so
// statements after one are lowered even when every arm returns.
func (b *Builder) lowerStmts(cur mir.BlockID, stmts []Stmt) mir.BlockID {
	b.pushScope()
	for _, st := range stmts {
		if !b.blockOpen(cur) {
			break
		}
		cur = b.lowerStmt(cur, st)
	}
	if b.blockOpen(cur) {
		b.popScope(cur)
	} else {
		// the block already terminated (e.g. a return): its locals still
		// need the scope array popped, but emitting StorageDead past a
		// terminator would make the block ill-formed, so just drop them.
		b.scopes = b.scopes[:len(b.scopes)-1]
		b.scopeLocals = b.scopeLocals[:len(b.scopeLocals)-1]
	}
	return cur
}

func (b *Builder) lowerStmt(cur mir.BlockID, stmt Stmt) mir.BlockID {
	switch st := stmt.(type) {
	case LetStmt:
		var operand mir.Operand
		haveInit := st.Init != nil
		if haveInit {
			operand, cur = b.lowerExpr(cur, st.Init)
		}

		id := mir.LocalID(len(b.body.Locals))
		b.body.Locals = append(b.body.Locals, mir.Local{Name: st.Name, Ty: st.Ty, IsMutable: st.Mutable, Kind: mir.KindLocal})
		b.bind(st.Name, id)
		b.emit(cur, mir.StorageLive{Local: id})
		if haveInit {
			b.emit(cur, mir.Assign{Place: mir.Place{Local: id}, Rvalue: mir.UseRvalue{Operand: operand}})
		}
		return cur

	case ExprStmt:
		_, cur = b.lowerExpr(cur, st.Expr)
		return cur

	case AssignStmt:
		value, next := b.lowerExpr(cur, st.Value)
		cur = next
		place, ok := b.lowerPlace(st.Target)
		if !ok {
			b.errorf("assignment target is not a place expression")
			return cur
		}
		b.emit(cur, mir.Assign{Place: place, Rvalue: mir.UseRvalue{Operand: value}})
		return cur

	case ReturnStmt:
		var operand mir.Operand = mir.ConstOp{Const: mir.ConstOperand{Value: mir.UnitConst{}, Ty: ty.NewUnit()}}
		if st.Value != nil {
			operand, cur = b.lowerExpr(cur, st.Value)
		}
		b.setTerminator(cur, mir.Return{Value: operand})
		return cur

	case IfStmt:
		return b.lowerIf(cur, st)

	case WhileStmt:
		return b.lowerWhile(cur, st)

	case BlockStmt:
		return b.lowerStmts(cur, st.Stmts)

	default:
		b.errorf("unsupported statement node %T", stmt)
		return cur
	}
}

func (b *Builder) lowerIf(cur mir.BlockID, st IfStmt) mir.BlockID {
	cond, cur := b.lowerExpr(cur, st.Cond)

	thenBlock := b.newBlock()
	join := b.newBlock()
	elseBlock := join
	if len(st.Else) > 0 {
		elseBlock = b.newBlock()
	}
	b.setTerminator(cur, mir.SwitchInt{
		Discriminant: cond,
		Arms:         []mir.SwitchIntArm{{Value: 1, Target: thenBlock}},
		Otherwise:    elseBlock,
	})

	thenOut := b.lowerStmts(thenBlock, st.Then)
	if b.blockOpen(thenOut) {
		b.setTerminator(thenOut, mir.Goto{Target: join})
	}

	if len(st.Else) > 0 {
		elseOut := b.lowerStmts(elseBlock, st.Else)
		if b.blockOpen(elseOut) {
			b.setTerminator(elseOut, mir.Goto{Target: join})
		}
	}

	return join
}

func (b *Builder) lowerWhile(cur mir.BlockID, st WhileStmt) mir.BlockID {
	header := b.newBlock()
	b.setTerminator(cur, mir.Goto{Target: header})

	cond, headerOut := b.lowerExpr(header, st.Cond)
	body := b.newBlock()
	after := b.newBlock()
	b.setTerminator(headerOut, mir.SwitchInt{
		Discriminant: cond,
		Arms:         []mir.SwitchIntArm{{Value: 1, Target: body}},
		Otherwise:    after,
	})

	bodyOut := b.lowerStmts(body, st.Body)
	if b.blockOpen(bodyOut) {
		b.setTerminator(bodyOut, mir.Goto{Target: header})
	}

	return after
}

// -- expression lowering --

// lowerExpr lowers expr into an operand usable by an Assign/terminator,
// returning the block lowering should resume in (expression forms that
// branch — LogicalExpr, CondExpr, a CallExpr — advance the cursor past
// the blocks they introduce).
func (b *Builder) lowerExpr(cur mir.BlockID, expr Expr) (mir.Operand, mir.BlockID) {
	switch e := expr.(type) {
	case LitExpr:
		return mir.ConstOp{Const: mir.ConstOperand{Value: e.Value, Ty: e.Ty}}, cur

	case NameExpr:
		id, ok := b.lookup(e.Name)
		if !ok {
			b.errorf("reference to undeclared name %q", e.Name)
			return mir.PendingOperand{Repr: e.Name}, cur
		}
		return mir.CopyOperand{Place: mir.Place{Local: id}}, cur

	case MoveExpr:
		place, ok := b.lowerPlace(e.Place)
		if !ok {
			b.errorf("move operand is not a place expression")
			return mir.PendingOperand{}, cur
		}
		return mir.MoveOperand{Place: place}, cur

	case UnaryExpr:
		operand, next := b.lowerExpr(cur, e.Operand)
		return b.emitRvalueTemp(next, mir.UnaryRvalue{Op: e.Op, Operand: operand}, e.Ty), next

	case BinaryExpr:
		lhs, next := b.lowerExpr(cur, e.Lhs)
		rhs, next := b.lowerExpr(next, e.Rhs)
		return b.emitRvalueTemp(next, mir.BinaryRvalue{Op: e.Op, Lhs: lhs, Rhs: rhs}, e.Ty), next

	case LogicalExpr:
		return b.lowerLogical(cur, e)

	case CondExpr:
		return b.lowerCond(cur, e)

	case CallExpr:
		return b.lowerCall(cur, e.Qualified, e.Args, nil, false)

	case MethodCallExpr:
		args := append([]CallArg{{Value: e.Receiver, Mode: e.ReceiverMode}}, e.Args...)
		return b.lowerCall(cur, e.Owner+"."+e.Method, args, &e, true)

	case FieldExpr:
		place, ok := b.lowerPlace(e)
		if !ok {
			b.errorf("invalid field access")
			return mir.PendingOperand{}, cur
		}
		return mir.CopyOperand{Place: place}, cur

	case IndexExpr:
		place, ok := b.lowerPlace(e)
		if !ok {
			b.errorf("invalid index access")
			return mir.PendingOperand{}, cur
		}
		return mir.CopyOperand{Place: place}, cur

	case DerefExpr:
		place, ok := b.lowerPlace(e)
		if !ok {
			b.errorf("invalid dereference")
			return mir.PendingOperand{}, cur
		}
		return mir.CopyOperand{Place: place}, cur

	case AddressOfExpr:
		return b.lowerAddressOf(cur, e)

	case CastExpr:
		return b.lowerCast(cur, e)

	default:
		b.errorf("unsupported expression node %T", expr)
		return mir.PendingOperand{}, cur
	}
}

// lowerLogical lowers `&&`/`||` by threading the result through a fresh
// local and branching around the right-hand side when the left already
// settles the value (spec §4.3 "short-circuit `&&`/`||`").
func (b *Builder) lowerLogical(cur mir.BlockID, e LogicalExpr) (mir.Operand, mir.BlockID) {
	lhs, cur := b.lowerExpr(cur, e.Lhs)
	result := b.newLocal(mir.KindTemp, ty.NewPrimitive(prim.Bool))
	b.emit(cur, mir.Assign{Place: mir.Place{Local: result}, Rvalue: mir.UseRvalue{Operand: lhs}})

	rhsBlock := b.newBlock()
	join := b.newBlock()

	// And: lhs=false already decides the result (false); only evaluate
	// rhs when lhs=true. Or: lhs=true already decides the result (true);
	// only evaluate rhs when lhs=false.
	sw := mir.SwitchInt{Discriminant: mir.CopyOperand{Place: mir.Place{Local: result}}}
	if e.Op == LogicalAnd {
		sw.Arms = []mir.SwitchIntArm{{Value: 1, Target: rhsBlock}}
		sw.Otherwise = join
	} else {
		sw.Arms = []mir.SwitchIntArm{{Value: 0, Target: rhsBlock}}
		sw.Otherwise = join
	}
	b.setTerminator(cur, sw)

	rhs, rhsOut := b.lowerExpr(rhsBlock, e.Rhs)
	b.emit(rhsOut, mir.Assign{Place: mir.Place{Local: result}, Rvalue: mir.UseRvalue{Operand: rhs}})
	if b.blockOpen(rhsOut) {
		b.setTerminator(rhsOut, mir.Goto{Target: join})
	}

	return mir.CopyOperand{Place: mir.Place{Local: result}}, join
}

// lowerCond lowers an if-expression via SwitchInt, joining both arms
// into a single result local (spec §4.3 "conditionals branching via
// SwitchInt").
func (b *Builder) lowerCond(cur mir.BlockID, e CondExpr) (mir.Operand, mir.BlockID) {
	cond, cur := b.lowerExpr(cur, e.Cond)
	result := b.newLocal(mir.KindTemp, e.Ty)

	thenBlock := b.newBlock()
	elseBlock := b.newBlock()
	join := b.newBlock()

	b.setTerminator(cur, mir.SwitchInt{
		Discriminant: cond,
		Arms:         []mir.SwitchIntArm{{Value: 1, Target: thenBlock}},
		Otherwise:    elseBlock,
	})

	thenVal, thenOut := b.lowerExpr(thenBlock, e.Then)
	b.emit(thenOut, mir.Assign{Place: mir.Place{Local: result}, Rvalue: mir.UseRvalue{Operand: thenVal}})
	if b.blockOpen(thenOut) {
		b.setTerminator(thenOut, mir.Goto{Target: join})
	}

	elseVal, elseOut := b.lowerExpr(elseBlock, e.Else)
	b.emit(elseOut, mir.Assign{Place: mir.Place{Local: result}, Rvalue: mir.UseRvalue{Operand: elseVal}})
	if b.blockOpen(elseOut) {
		b.setTerminator(elseOut, mir.Goto{Target: join})
	}

	return mir.CopyOperand{Place: mir.Place{Local: result}}, join
}

// lowerCall resolves callee against candidates, places a method's
// receiver as argument 0, and emits a Call terminator — calls are
// terminators in this MIR (spec §3.3), so lowering one always ends the
// current block and resumes in a fresh continuation block. method, when
// non-nil, additionally triggers virtual-dispatch classification.
func (b *Builder) lowerCall(cur mir.BlockID, qualified string, args []CallArg, method *MethodCallExpr, isMethod bool) (mir.Operand, mir.BlockID) {
	operands := make([]mir.Operand, len(args))
	bindArgs := make([]Argument, len(args))
	for i, a := range args {
		operands[i], cur = b.lowerExpr(cur, a.Value)
		bindArgs[i] = Argument{Name: a.Name, Mode: a.Mode}
	}

	candidates := b.candidates(qualified)
	binding, failures, ambiguous := BindCall(candidates, bindArgs)
	if binding == nil {
		if ambiguous != nil {
			b.errorf("%s", ambiguous.Error())
		} else {
			for _, f := range failures {
				b.errorf("%s: %s", qualified, f.Error())
			}
		}
		return mir.PendingOperand{Repr: qualified}, cur
	}

	ordered := make([]mir.Operand, len(binding.ArgIndex))
	for pi, ai := range binding.ArgIndex {
		if ai == -1 {
			b.errorf("%s: call site omits parameter %q with no resolvable default", qualified, binding.Candidate.Params[pi].Name)
			ordered[pi] = mir.ConstOp{Const: mir.ConstOperand{Value: mir.UnitConst{}, Ty: ty.NewUnit()}}
			continue
		}
		ordered[pi] = operands[ai]
	}

	var dest *mir.Place
	var resultOperand mir.Operand = mir.ConstOp{Const: mir.ConstOperand{Value: mir.UnitConst{}, Ty: ty.NewUnit()}}
	if !isUnit(binding.Candidate.Ret) {
		id := b.newLocal(mir.KindTemp, binding.Candidate.Ret)
		place := mir.Place{Local: id}
		dest = &place
		resultOperand = mir.CopyOperand{Place: place}
	}

	call := mir.Call{
		Callee: mir.ConstOp{Const: mir.ConstOperand{Value: mir.StringConst{Value: binding.Candidate.InternalName}, Ty: binding.Candidate.Sig}},
		Args:   ordered,
		Dest:   dest,
	}
	if isMethod && method != nil && b.vtables != nil {
		if slotIndex, ok := ResolveVirtualDispatch(b.vtables, method.Owner, method.Method, 0); ok {
			call.IsVirtual = true
			call.VTableIdx = slotIndex
		}
	}

	next := b.newBlock()
	call.Target = next
	b.setTerminator(cur, call)
	return resultOperand, next
}

// lowerAddressOf emits a borrow scoped to the local storing the
// resulting reference: the BorrowStmt's id is that local's id, so a
// later StorageDead on it (from the enclosing scope's popScope) releases
// the borrow against the borrowed place (spec §4.5, §8.3 scenario 3).
func (b *Builder) lowerAddressOf(cur mir.BlockID, e AddressOfExpr) (mir.Operand, mir.BlockID) {
	place, ok := b.lowerPlace(e.Place)
	if !ok {
		b.errorf("borrow operand is not a place expression")
		return mir.PendingOperand{}, cur
	}

	kind := mir.BorrowShared
	if e.Mutable {
		kind = mir.BorrowUnique
	}

	result := b.newLocal(mir.KindTemp, ty.NewUnknown())
	b.bind(fmt.Sprintf("$borrow%d", result), result)
	b.emit(cur, mir.StorageLive{Local: result})
	b.emit(cur, mir.BorrowStmt{ID: int(result), Kind: kind, Place: place})
	b.emit(cur, mir.Assign{
		Place:  mir.Place{Local: result},
		Rvalue: mir.UseRvalue{Operand: mir.BorrowOperand{Place: place, Kind: kind}},
	})
	return mir.CopyOperand{Place: mir.Place{Local: result}}, cur
}

func (b *Builder) lowerCast(cur mir.BlockID, e CastExpr) (mir.Operand, mir.BlockID) {
	operand, cur := b.lowerExpr(cur, e.Operand)

	if d := ClassifyCast(e.Kind, e.InUnsafeBlock, e.Narrowing); d != nil {
		switch {
		case d.Blocking:
			b.errorf("cast: %s", d.Message)
		case e.Narrowing:
			b.bag.Warning(nil, "cast: %s", d.Message)
		default:
			b.bag.Hint(nil, "cast: %s", d.Message)
		}
	}

	return b.emitRvalueTemp(cur, mir.CastRvalue{
		Kind:       toMirCastKind(e.Kind, e.Narrowing),
		Operand:    operand,
		TargetType: e.TargetTy,
	}, e.TargetTy), cur
}

// lowerPlace resolves a place-producing expression (a name, field
// projection, index projection, or dereference) to a mir.Place, the way
// the left-hand side of an assignment or the operand of `&`/move must.
func (b *Builder) lowerPlace(expr Expr) (mir.Place, bool) {
	switch e := expr.(type) {
	case NameExpr:
		id, ok := b.lookup(e.Name)
		if !ok {
			b.errorf("reference to undeclared name %q", e.Name)
			return mir.Place{}, false
		}
		return mir.Place{Local: id}, true

	case FieldExpr:
		base, ok := b.lowerPlace(e.Base)
		if !ok {
			return mir.Place{}, false
		}
		if e.Name != "" {
			base.Projection = append(base.Projection, mir.FieldNamedProjection{Name: e.Name})
		} else {
			base.Projection = append(base.Projection, mir.FieldProjection{Index: e.Index})
		}
		return base, true

	case DerefExpr:
		base, ok := b.lowerPlace(e.Base)
		if !ok {
			return mir.Place{}, false
		}
		base.Projection = append(base.Projection, mir.DerefProjection{})
		return base, true

	case IndexExpr:
		base, ok := b.lowerPlace(e.Base)
		if !ok {
			return mir.Place{}, false
		}
		indexLocal, ok := b.lookup(indexName(e.Index))
		if !ok {
			b.errorf("index expression must be a named local")
			return mir.Place{}, false
		}
		base.Projection = append(base.Projection, mir.IndexProjection{Local: indexLocal})
		return base, true

	default:
		return mir.Place{}, false
	}
}

func indexName(e Expr) string {
	if n, ok := e.(NameExpr); ok {
		return n.Name
	}
	return ""
}

// emitRvalueTemp assigns rv into a fresh temp of type t and returns a
// CopyOperand reading it back — the standard way a sub-expression that
// isn't already a place becomes an operand its parent can consume.
func (b *Builder) emitRvalueTemp(cur mir.BlockID, rv mir.Rvalue, t ty.Ty) mir.Operand {
	id := b.newLocal(mir.KindTemp, t)
	b.emit(cur, mir.Assign{Place: mir.Place{Local: id}, Rvalue: rv})
	return mir.CopyOperand{Place: mir.Place{Local: id}}
}

func isUnit(t ty.Ty) bool { return t.CanonicalName() == ty.NewUnit().CanonicalName() }

func toMirCastKind(k CastKind, narrowing bool) mir.CastKind {
	switch k {
	case CastIntToInt, CastFloatToFloat:
		if narrowing {
			return mir.CastNumericNarrow
		}
		return mir.CastNumericWiden
	case CastIntToFloat:
		return mir.CastIntToFloat
	case CastFloatToInt:
		return mir.CastFloatToInt
	case CastDynTrait:
		return mir.CastUnsizeToTraitObject
	default:
		return mir.CastBitcast
	}
}
