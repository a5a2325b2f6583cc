package ty

import (
	"fmt"
	"strconv"
	"strings"

	"lattice.build/go/corec/prim"
)

// FromCanonical parses the output of Ty.CanonicalName back into a Ty. It
// is the partner half of the round-trip property in spec §8.2:
// Ty::from_canonical(ty.canonical_name()) == ty for every representable Ty.
func FromCanonical(s string) (Ty, error) {
	p := &parser{s: s}
	t, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return Ty{}, fmt.Errorf("ty: trailing input after %q: %q", s, p.s[p.pos:])
	}
	return t, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) consume(lit string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.s[p.pos:], lit) {
		p.pos += len(lit)
		return true
	}
	return false
}

func (p *parser) expect(lit string) error {
	if !p.consume(lit) {
		return fmt.Errorf("ty: expected %q at %q", lit, p.s[p.pos:])
	}
	return nil
}

func (p *parser) parseTy() (Ty, error) {
	p.skipSpace()
	switch {
	case p.consume("()"):
		return NewUnit(), nil
	case p.consume("?"):
		if p.peek() == 0 || p.peek() == ',' || p.peek() == '>' || p.peek() == ')' {
			return NewUnknown(), nil
		}
		inner, err := p.parseTy()
		if err != nil {
			return Ty{}, err
		}
		return NewNullable(inner), nil
	case p.consume("String"):
		return NewString(), nil
	case p.consume("str"):
		return NewStr(), nil
	case p.consume("*"):
		return p.parsePointer()
	case p.consume("&"):
		return p.parseRef()
	case p.consume("["):
		return p.parseArray()
	case p.consume("Vec<"):
		return p.parseWrapped(NewVec)
	case p.consume("Span<"):
		return p.parseWrapped(NewSpan)
	case p.consume("ReadOnlySpan<"):
		return p.parseWrapped(NewReadOnlySpan)
	case p.consume("Rc<"):
		return p.parseWrapped(NewRc)
	case p.consume("Arc<"):
		return p.parseWrapped(NewArc)
	case p.consume("Vector<"):
		return p.parseVector()
	case p.consume("dyn "):
		return p.parseTraitObject()
	case p.consume("("):
		return p.parseTuple()
	case strings.HasPrefix(p.s[p.pos:], "extern \"") || strings.HasPrefix(p.s[p.pos:], "fn("):
		return p.parseFn()
	default:
		return p.parseNamedOrPrimitive()
	}
}

func (p *parser) parsePointer() (Ty, error) {
	mutable := false
	if p.consume("mut ") {
		mutable = true
	} else if err := p.expect("const "); err != nil {
		return Ty{}, err
	}
	inner, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	return NewPointer(inner, mutable), nil
}

func (p *parser) parseRef() (Ty, error) {
	mutable := p.consume("mut ")
	inner, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	return NewRef(inner, mutable), nil
}

func (p *parser) parseArray() (Ty, error) {
	elem, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	if err := p.expect(";"); err != nil {
		return Ty{}, err
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ']' {
		p.pos++
	}
	n, err := strconv.ParseInt(p.s[start:p.pos], 10, 64)
	if err != nil {
		return Ty{}, fmt.Errorf("ty: bad array length: %w", err)
	}
	if err := p.expect("]"); err != nil {
		return Ty{}, err
	}
	return NewArray(elem, n), nil
}

func (p *parser) parseWrapped(ctor func(Ty) Ty) (Ty, error) {
	inner, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	if err := p.expect(">"); err != nil {
		return Ty{}, err
	}
	return ctor(inner), nil
}

func (p *parser) parseVector() (Ty, error) {
	inner, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	if err := p.expect(","); err != nil {
		return Ty{}, err
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != '>' {
		p.pos++
	}
	lanes, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return Ty{}, fmt.Errorf("ty: bad lane count: %w", err)
	}
	if err := p.expect(">"); err != nil {
		return Ty{}, err
	}
	return NewVector(inner, lanes), nil
}

func (p *parser) parseTraitObject() (Ty, error) {
	var traits []string
	for {
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] != ' ' && p.s[p.pos] != '+' {
			p.pos++
		}
		traits = append(traits, p.s[start:p.pos])
		if !p.consume("+") {
			break
		}
	}
	return NewTraitObject(traits...), nil
}

func (p *parser) parseTuple() (Ty, error) {
	var elements []Ty
	p.skipSpace()
	if p.consume(")") {
		return NewTuple(elements...), nil
	}
	for {
		t, err := p.parseTy()
		if err != nil {
			return Ty{}, err
		}
		elements = append(elements, t)
		if p.consume(",") {
			continue
		}
		break
	}
	if err := p.expect(")"); err != nil {
		return Ty{}, err
	}
	return NewTuple(elements...), nil
}

func (p *parser) parseFn() (Ty, error) {
	abi := Abi{}
	if p.consume("extern \"") {
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] != '"' {
			p.pos++
		}
		abi = Abi{Extern: true, Convention: p.s[start:p.pos]}
		if err := p.expect("\""); err != nil {
			return Ty{}, err
		}
	}
	if err := p.expect("fn("); err != nil {
		return Ty{}, err
	}
	var params []Ty
	variadic := false
	p.skipSpace()
	for !p.consume(")") {
		if p.consume("...") {
			variadic = true
			if err := p.expect(")"); err != nil {
				return Ty{}, err
			}
			break
		}
		t, err := p.parseTy()
		if err != nil {
			return Ty{}, err
		}
		params = append(params, t)
		if p.consume(",") {
			continue
		}
		if err := p.expect(")"); err != nil {
			return Ty{}, err
		}
		break
	}
	if err := p.expect("->"); err != nil {
		return Ty{}, err
	}
	ret, err := p.parseTy()
	if err != nil {
		return Ty{}, err
	}
	return NewFn(params, ret, abi, nil, false, variadic), nil
}

func (p *parser) parseNamedOrPrimitive() (Ty, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && isIdentByte(p.s[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return Ty{}, fmt.Errorf("ty: unexpected input at %q", p.s[p.pos:])
	}
	name := p.s[start:p.pos]

	if k, ok := prim.ByName(name); ok {
		return NewPrimitive(k), nil
	}
	path := strings.Split(name, "::")
	return NewNamed(path...), nil
}

func isIdentByte(c byte) bool {
	return c == ':' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
