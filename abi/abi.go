// Package abi implements the ABI/FFI contracts of spec §6.1: extern
// declaration validation and the Abi shape attached to Fn types and
// extern statics.
package abi

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"lattice.build/go/corec/diag"
	"lattice.build/go/corec/internal/guard"
	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/ty"
)

// Binding discriminates how an extern symbol is resolved at load time.
type Binding int

const (
	Lazy Binding = iota
	Eager
	Static
)

// Extern is one extern declaration's full shape (spec §6.1).
type Extern struct {
	QualifiedName string
	Convention    string
	Library       string // empty for a statically linked symbol
	Alias         string
	BindingMode   Binding
	Optional      bool
	Charset       string
	Weak          bool
	Ty            ty.Ty
	IsStatic      bool
}

// guardChecker holds the CEL rule set validating extern declarations,
// built once in init(), the way the rest of this core wires internal/guard for
// structural checks instead of hand-rolled predicates.
var guardChecker *guard.Checker

func init() {
	c, err := guard.NewChecker(
		[]cel.EnvOption{
			cel.Variable("is_static", cel.BoolType),
			cel.Variable("library", cel.StringType),
		},
		guard.Rule{
			Name:    "dynamic-library-static",
			Expr:    `!(is_static && library != "")`,
			Message: "dynamic library bindings are rejected for statics",
		},
	)
	if err != nil {
		panic(fmt.Sprintf("abi: invalid guard rule set: %v", err))
	}
	guardChecker = c
}

// Validate checks e against spec §6.1's invariants, reporting into bag.
// layouts resolves e.Ty's @repr(c) status when e is a static.
func Validate(e *Extern, layouts *layout.Table, bag *diag.Bag) {
	for _, v := range guardChecker.Check(map[string]any{
		"is_static": e.IsStatic,
		"library":   e.Library,
	}) {
		bag.Error(nil, "%s: %s", e.QualifiedName, v.Message)
	}

	if e.IsStatic {
		validateExternStaticType(e, layouts, bag)
	} else if e.Ty.Kind() == ty.Fn {
		if fnAbi := e.Ty.FnAbi(); !fnAbi.Extern {
			bag.Error(nil, "extern function pointer %q used across FFI must have Abi::Extern(convention)", e.QualifiedName)
		}
	}
}

func validateExternStaticType(e *Extern, layouts *layout.Table, bag *diag.Bag) {
	if e.Ty.Kind() == ty.Primitive {
		return
	}
	if e.Ty.Kind() != ty.Named {
		bag.Error(nil, "extern static type %q must be annotated with @repr(c)", e.QualifiedName)
		return
	}
	l, ok := layouts.Lookup(e.Ty.CanonicalName())
	if !ok || l.Repr.Kind != layout.ReprC {
		bag.Error(nil, "extern static type %q must be annotated with @repr(c)", e.QualifiedName)
	}
}
