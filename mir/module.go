package mir

// MirModule is the fully lowered output of one source module: its
// functions, the statics it defines, and the vtables it finalizes (spec
// §4.7 "Module driver").
type MirModule struct {
	Name      string
	Functions []*MirFunction
	Statics   []StaticDef
	Vtables   map[string][]VirtualDispatch
}

// StaticDef is a module-level static/global variable after lowering.
type StaticDef struct {
	QualifiedName string
	Init          ConstValue
	Mutable       bool
}

// FunctionByName finds a function by its qualified or internal name.
func (m *MirModule) FunctionByName(name string) (*MirFunction, bool) {
	for _, f := range m.Functions {
		if f.QualifiedName == name || f.InternalName == name {
			return f, true
		}
	}
	return nil, false
}
