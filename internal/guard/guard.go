// Package guard validates compiler configuration and ABI declarations
// against small CEL expressions, the way a descriptor-driven validator
// checks field constraints, but applied here to plain Go structs rather
// than proto messages.
package guard

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Rule is a single named CEL constraint evaluated against a struct's
// fields, exposed to the expression as named variables.
type Rule struct {
	Name       string
	Expr       string
	Message    string
	Vars       []cel.EnvOption
}

// Checker compiles and caches a fixed set of rules for repeated use
// against many values of the same shape (e.g. once per abi.Extern
// declaration that driver.Lower passes to abi.Validate).
type Checker struct {
	env     *cel.Env
	rules   []Rule
	program map[string]cel.Program
}

// NewChecker compiles rules against an environment declaring vars.
func NewChecker(vars []cel.EnvOption, rules ...Rule) (*Checker, error) {
	env, err := cel.NewEnv(vars...)
	if err != nil {
		return nil, fmt.Errorf("guard: building CEL environment: %w", err)
	}

	programs := make(map[string]cel.Program, len(rules))
	for _, r := range rules {
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("guard: compiling rule %q: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("guard: building program for rule %q: %w", r.Name, err)
		}
		programs[r.Name] = prg
	}

	return &Checker{env: env, rules: rules, program: programs}, nil
}

// Violation describes a failed rule.
type Violation struct {
	Rule    string
	Message string
}

// Check evaluates every rule against the given variable bindings and
// returns every rule that evaluated to false. A rule whose expression
// itself errors (e.g. a missing variable) is reported as a violation
// rather than panicking, consistent with the "never panics on malformed
// input" discipline of spec §7.
func (c *Checker) Check(vars map[string]any) []Violation {
	var out []Violation
	for _, r := range c.rules {
		prg := c.program[r.Name]
		val, _, err := prg.Eval(vars)
		if err != nil {
			out = append(out, Violation{Rule: r.Name, Message: fmt.Sprintf("%s: %v", r.Message, err)})
			continue
		}
		if ok, isBool := asBool(val); !isBool || !ok {
			out = append(out, Violation{Rule: r.Name, Message: r.Message})
		}
	}
	return out
}

func asBool(v ref.Val) (value bool, ok bool) {
	b, isBool := v.(types.Bool)
	if !isBool {
		return false, false
	}
	return bool(b), true
}
