// Package config implements LoweringConfig (spec SPEC_FULL.md AMBIENT
// STACK "Configuration"): the fuel budget default, target pointer
// width, ABI defaults, and diagnostic limits. driver.Lower does not take
// a LoweringConfig; cmd/latticec builds its module input from one. The
// core itself runs config-free (every field has
// a code default) — this package exists for collaborators (the CLI,
// a build-system plugin) that want to load overrides from a file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"lattice.build/go/corec/internal/guard"
)

// PointerWidth is the target architecture's pointer size in bits.
type PointerWidth int

const (
	Pointer32 PointerWidth = 32
	Pointer64 PointerWidth = 64
)

// LoweringConfig is the full set of lowering tunables a collaborator can
// load from a file. Every field has a sane default (see Default()) so a
// collaborator only needs to override what it cares about.
type LoweringConfig struct {
	// ConstFuel is the default fuel budget handed to the const
	// evaluator when a module doesn't specify its own (spec §4.6).
	ConstFuel int `toml:"const_fuel" yaml:"const_fuel"`

	// PointerWidth is the target architecture's pointer width, used by
	// the primitive registry and layout table (spec §2, §3.2).
	PointerWidth PointerWidth `toml:"pointer_width" yaml:"pointer_width"`

	// DefaultCallingConvention names a default ABI convention for extern
	// declarations (spec §6.1). Nothing in this module reads it.
	DefaultCallingConvention string `toml:"default_calling_convention" yaml:"default_calling_convention"`

	// MaxDiagnostics is a limit on the diagnostics of a Lower run.
	// Validate requires it to be positive, but nothing else reads it:
	// driver.Lower does not cap the diagnostics it collects.
	MaxDiagnostics int `toml:"max_diagnostics" yaml:"max_diagnostics"`
}

// Default returns the code-supplied defaults a config-free embedding
// runs with.
func Default() LoweringConfig {
	return LoweringConfig{
		ConstFuel:                10_000,
		PointerWidth:             Pointer64,
		DefaultCallingConvention: "c",
		MaxDiagnostics:           1_000,
	}
}

var guardChecker *guard.Checker

func init() {
	c, err := guard.NewChecker(
		[]cel.EnvOption{
			cel.Variable("const_fuel", cel.IntType),
			cel.Variable("pointer_width", cel.IntType),
			cel.Variable("max_diagnostics", cel.IntType),
		},
		guard.Rule{
			Name:    "positive-fuel",
			Expr:    "const_fuel > 0",
			Message: "const_fuel must be positive",
		},
		guard.Rule{
			Name:    "known-pointer-width",
			Expr:    "pointer_width == 32 || pointer_width == 64",
			Message: "pointer_width must be 32 or 64",
		},
		guard.Rule{
			Name:    "positive-diagnostic-limit",
			Expr:    "max_diagnostics > 0",
			Message: "max_diagnostics must be positive",
		},
	)
	if err != nil {
		panic(fmt.Sprintf("config: invalid guard rule set: %v", err))
	}
	guardChecker = c
}

// Validate reports every violated constraint on c.
func (c LoweringConfig) Validate() []guard.Violation {
	return guardChecker.Check(map[string]any{
		"const_fuel":      int64(c.ConstFuel),
		"pointer_width":   int64(c.PointerWidth),
		"max_diagnostics": int64(c.MaxDiagnostics),
	})
}

// Load reads a LoweringConfig from path, choosing TOML or YAML by file
// extension (.toml, or .yaml/.yml), layering it over Default() so an
// override file only needs to set the fields it changes.
func Load(path string) (LoweringConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return LoweringConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return LoweringConfig{}, fmt.Errorf("config: parsing TOML %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return LoweringConfig{}, fmt.Errorf("config: parsing YAML %s: %w", path, err)
		}
	default:
		return LoweringConfig{}, fmt.Errorf("config: unrecognized config extension %q (want .toml, .yaml, or .yml)", ext)
	}

	if violations := cfg.Validate(); len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.Message
		}
		return LoweringConfig{}, fmt.Errorf("config: %s: %s", path, strings.Join(msgs, "; "))
	}

	return cfg, nil
}
