// Package lower implements the body builder of spec §4.3: it lowers a
// function's AST into a mir.MirBody, resolving overloads, virtual
// dispatch and casts along the way.
package lower

import (
	"fmt"
	"sort"

	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/symtab"
)

// BindFailureKind discriminates why a call site failed to bind to an
// overload candidate (spec §4.3 "Overload/named-argument binding").
type BindFailureKind int

const (
	UnknownName BindFailureKind = iota
	DuplicateName
	TooManyArguments
	MissingArguments
	ModifierMismatch
)

func (k BindFailureKind) String() string {
	switch k {
	case UnknownName:
		return "UnknownName"
	case DuplicateName:
		return "DuplicateName"
	case TooManyArguments:
		return "TooManyArguments"
	case MissingArguments:
		return "MissingArguments"
	case ModifierMismatch:
		return "ModifierMismatch"
	default:
		return "Unknown"
	}
}

// BindFailure reports why one candidate overload did not match a call
// site.
type BindFailure struct {
	Kind      BindFailureKind
	Candidate *symtab.FunctionSymbol
	Detail    string
}

func (f BindFailure) Error() string {
	return fmt.Sprintf("%s: %s (candidate %s)", f.Kind, f.Detail, f.Candidate.QualifiedName)
}

// Argument is one call-site argument: positional if Name is empty.
type Argument struct {
	Name     string
	Mode     symtab.Mode
	IsDefault bool // true for a synthesized placeholder, never present at a real call site
}

// Binding is a successful overload resolution: the chosen candidate and
// the argument that fills each of its parameter slots (-1 where a
// default must be substituted).
type Binding struct {
	Candidate *symtab.FunctionSymbol
	ArgIndex  []int // per-parameter index into the call's Argument slice, or -1
}

// BindCall resolves a call site's arguments against every overload in
// candidates, returning either a single successful Binding or the
// sharpest available failure, per spec §4.3's matching rule: a candidate
// matches iff all required parameters are filled and every argument's
// mode equals its parameter's mode; exactly one match binds, zero
// matches report the most specific failure, more than one is reported as
// AmbiguousCall.
func BindCall(candidates []*symtab.FunctionSymbol, args []Argument) (*Binding, []BindFailure, *AmbiguousCall) {
	var matches []*Binding
	var failures []BindFailure

	for _, cand := range candidates {
		binding, err := tryBind(cand, args)
		if err != nil {
			failures = append(failures, *err)
			continue
		}
		matches = append(matches, binding)
	}

	switch len(matches) {
	case 0:
		return nil, sharpestFailures(failures), nil
	case 1:
		return matches[0], nil, nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Candidate.QualifiedName
		}
		sort.Strings(names)
		return nil, nil, &AmbiguousCall{Candidates: names}
	}
}

// AmbiguousCall is emitted when more than one overload candidate
// matches a call site.
type AmbiguousCall struct {
	Candidates []string
}

func (a *AmbiguousCall) Error() string {
	return fmt.Sprintf("ambiguous call: candidates %v", a.Candidates)
}

func tryBind(cand *symtab.FunctionSymbol, args []Argument) (*Binding, *BindFailure) {
	argIndex := make([]int, len(cand.Params))
	for i := range argIndex {
		argIndex[i] = -1
	}

	used := make([]bool, len(args))
	positional := 0

	for ai, arg := range args {
		if arg.Name == "" {
			if positional >= len(cand.Params) {
				return nil, &BindFailure{Kind: TooManyArguments, Candidate: cand, Detail: "more positional arguments than parameters"}
			}
			if argIndex[positional] != -1 {
				return nil, &BindFailure{Kind: DuplicateName, Candidate: cand, Detail: cand.Params[positional].Name}
			}
			argIndex[positional] = ai
			used[ai] = true
			positional++
			continue
		}

		pi := paramIndex(cand, arg.Name)
		if pi < 0 {
			return nil, &BindFailure{Kind: UnknownName, Candidate: cand, Detail: arg.Name}
		}
		if argIndex[pi] != -1 {
			return nil, &BindFailure{Kind: DuplicateName, Candidate: cand, Detail: arg.Name}
		}
		argIndex[pi] = ai
		used[ai] = true
	}

	for pi, p := range cand.Params {
		if argIndex[pi] == -1 && !p.HasDefault {
			return nil, &BindFailure{Kind: MissingArguments, Candidate: cand, Detail: p.Name}
		}
		if argIndex[pi] != -1 && args[argIndex[pi]].Mode != p.Mode {
			return nil, &BindFailure{Kind: ModifierMismatch, Candidate: cand, Detail: p.Name}
		}
	}

	return &Binding{Candidate: cand, ArgIndex: argIndex}, nil
}

func paramIndex(cand *symtab.FunctionSymbol, name string) int {
	for i, p := range cand.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// sharpestFailures keeps the most specific failure kind present, the way
// the spec's ordering UnknownName > DuplicateName > TooManyArguments >
// MissingArguments > ModifierMismatch implies the earliest-listed,
// structurally-cheapest-to-diagnose failure should surface first when a
// caller has to pick one to report.
func sharpestFailures(failures []BindFailure) []BindFailure {
	if len(failures) == 0 {
		return nil
	}
	best := failures[0].Kind
	for _, f := range failures[1:] {
		if f.Kind < best {
			best = f.Kind
		}
	}
	var out []BindFailure
	for _, f := range failures {
		if f.Kind == best {
			out = append(out, f)
		}
	}
	return out
}

// DefaultFill is one unfilled parameter slot resolved to either a
// constant assignment or a thunk call the body builder must lower as a
// zero-argument Call terminator whose Dest is Place (spec §4.3 "Default
// arguments").
type DefaultFill struct {
	ParamIndex int
	Place      mir.Place
	Const      *mir.ConstOperand // set iff the default folded to a constant
	ThunkSymbol string           // set iff the default requires a thunk call
}

// ResolveDefaults reports, for every unfilled parameter slot of binding,
// whether it is satisfied by a stored constant or requires a call to its
// thunk symbol. Builder does not call it: when a call leaves a
// parameter unfilled, the builder reports an error and passes a unit
// constant in that slot.
func ResolveDefaults(sig *mir.FnSig, binding *Binding, dest func(paramIndex int) mir.Place) []DefaultFill {
	var fills []DefaultFill
	for pi, ai := range binding.ArgIndex {
		if ai != -1 {
			continue
		}
		def, ok := sig.Defaults[pi]
		if !ok {
			continue
		}
		place := dest(pi)
		switch d := def.(type) {
		case mir.DefaultConst:
			c := d.Value
			fills = append(fills, DefaultFill{ParamIndex: pi, Place: place, Const: &c})
		case mir.DefaultThunk:
			fills = append(fills, DefaultFill{ParamIndex: pi, Place: place, ThunkSymbol: d.Symbol})
		}
	}
	return fills
}
