// Package backend implements the read-only backend surface of spec
// §6.2: the view a code generator gets over a finalized mir.MirModule
// and its layout table.
package backend

import (
	"strings"
	"unicode"

	"lattice.build/go/corec/layout"
	"lattice.build/go/corec/mir"
)

// StaticVar is a typed view of one module-level static, as exposed to
// backends.
type StaticVar struct {
	ID            int
	QualifiedName string
	Def           mir.StaticDef
}

// View wraps a MirModule and its TypeLayout table with the read-only
// accessors backends are given (spec §6.2); it never exposes a mutation
// path, mirroring the "backends consume, never lower" boundary of §6.
type View struct {
	module  *mir.MirModule
	layouts *layout.Table
	statics []StaticVar
}

// NewView builds a backend view over a finalized module and its layout
// table.
func NewView(module *mir.MirModule, layouts *layout.Table) *View {
	statics := make([]StaticVar, len(module.Statics))
	for i, s := range module.Statics {
		statics[i] = StaticVar{ID: i, QualifiedName: s.QualifiedName, Def: s}
	}
	return &View{module: module, layouts: layouts, statics: statics}
}

// Functions returns every lowered function in the module.
func (v *View) Functions() []*mir.MirFunction { return v.module.Functions }

// LayoutFor returns the resolved TypeLayout for a canonical type name,
// or ok=false if it was never registered or never finalized.
func (v *View) LayoutFor(canonicalName string) (layout.TypeLayout, bool) {
	l, ok := v.layouts.Lookup(canonicalName)
	if !ok || l.Size == nil {
		return layout.TypeLayout{}, false
	}
	return *l, true
}

// StaticVarByID returns the static at id, or ok=false if out of range.
func (v *View) StaticVarByID(id int) (StaticVar, bool) {
	if id < 0 || id >= len(v.statics) {
		return StaticVar{}, false
	}
	return v.statics[id], true
}

// StaticVarByName returns the static with the given qualified name.
func (v *View) StaticVarByName(qualifiedName string) (StaticVar, bool) {
	for _, s := range v.statics {
		if s.QualifiedName == qualifiedName {
			return s, true
		}
	}
	return StaticVar{}, false
}

// TraitVtableSymbol returns the deterministic mangled name for a trait
// implementation's vtable: `__vtable_{sanitized_trait}__{sanitized_impl}`
// (spec §6.2).
func TraitVtableSymbol(trait, implType string) string {
	return "__vtable_" + sanitize(trait) + "__" + sanitize(implType)
}

// ClassVtableSymbol returns the deterministic mangled name for a class's
// vtable: `__class_vtable_{sanitized_type}` (spec §6.2).
func ClassVtableSymbol(typeName string) string {
	return "__class_vtable_" + sanitize(typeName)
}

// sanitize implements spec §6.2's mangling rule: replace `::` with `__`,
// every other non-alphanumeric with `_`, and prefix an underscore before
// a leading digit.
func sanitize(name string) string {
	replaced := strings.ReplaceAll(name, "::", "__")

	var b strings.Builder
	b.Grow(len(replaced) + 1)
	for _, r := range replaced {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	out := b.String()
	if len(out) > 0 && unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}
