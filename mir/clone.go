package mir

import "github.com/tiendc/go-deepcopy"

// CloneFunction produces an independent deep copy of fn. Mutating the
// clone's Body never affects fn's.
func CloneFunction(fn *MirFunction) (*MirFunction, error) {
	var out *MirFunction
	if err := deepcopy.Copy(&out, &fn); err != nil {
		return nil, err
	}
	return out, nil
}

// CloneBody deep-copies a body in isolation.
func CloneBody(body *MirBody) (*MirBody, error) {
	var out *MirBody
	if err := deepcopy.Copy(&out, &body); err != nil {
		return nil, err
	}
	return out, nil
}
