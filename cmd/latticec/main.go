// Command latticec is a thin CLI collaborator around driver.Lower
// (SPEC_FULL.md AMBIENT STACK "CLI driver"). It is not part of the
// core's contract (spec §1/§6.3 keep surface syntax and file I/O as
// collaborator concerns) — it exists to exercise the pipeline
// end-to-end from a serialized module description.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lattice.build/go/corec/config"
	"lattice.build/go/corec/consteval"
	"lattice.build/go/corec/driver"
	"lattice.build/go/corec/mir"
	"lattice.build/go/corec/prim"
	"lattice.build/go/corec/symtab"
)

// pointerWidthFlag is a pflag.Value restricting --pointer-width to the
// two widths the primitive registry actually supports, rather than
// accepting any integer and failing later inside prim.NewRegistry.
type pointerWidthFlag struct{ width *config.PointerWidth }

func (f pointerWidthFlag) String() string {
	if f.width == nil {
		return ""
	}
	return strconv.Itoa(int(*f.width))
}

func (f pointerWidthFlag) Set(s string) error {
	switch s {
	case "32":
		*f.width = config.Pointer32
	case "64":
		*f.width = config.Pointer64
	default:
		return fmt.Errorf("pointer width must be 32 or 64, got %q", s)
	}
	return nil
}

func (f pointerWidthFlag) Type() string { return "pointerWidth" }

var _ pflag.Value = pointerWidthFlag{}

// moduleFile is the minimal JSON shape latticec reads. It deliberately
// stops short of a full Ty/layout encoding (spec §1 scopes a surface
// AST and its serialization out of this core's contract); it carries
// just enough of ModuleInput to drive the symbol index and default
// folding steps of §4.7 against a real module name and fuel budget.
type moduleFile struct {
	Name      string           `json:"name"`
	ConstFuel int              `json:"const_fuel"`
	Functions []moduleFunction `json:"functions"`
}

type moduleFunction struct {
	QualifiedName string         `json:"qualified_name"`
	Defaults      map[string]int `json:"defaults"` // param index (as string) -> integer literal default
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfgPath := ""

	root := &cobra.Command{
		Use:   "latticec",
		Short: "Driver CLI for the lattice core lowering pipeline",
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a LoweringConfig TOML/YAML file")

	root.AddCommand(newLowerCmd(&cfgPath))
	return root
}

func newLowerCmd(cfgPath *string) *cobra.Command {
	widthOverride := config.Pointer64

	cmd := &cobra.Command{
		Use:   "lower <module.json>",
		Short: "Run driver.Lower over a serialized module description and print its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if *cfgPath != "" {
				loaded, err := config.Load(*cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("pointer-width") {
				cfg.PointerWidth = widthOverride
			}

			mf, err := readModuleFile(args[0])
			if err != nil {
				return err
			}

			in := toModuleInput(mf, cfg)
			registry := prim.NewRegistry(prim.PointerWidth(cfg.PointerWidth))
			result := driver.Lower(in, registry)

			for _, d := range result.Diagnostics {
				fmt.Fprintln(cmd.OutOrStdout(), d.String())
			}
			if result.Module != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "lowered module %q: %d function(s)\n", result.Module.Name, len(result.Module.Functions))
			}
			return nil
		},
	}

	cmd.Flags().Var(pointerWidthFlag{width: &widthOverride}, "pointer-width", "override the config's target pointer width (32 or 64)")
	return cmd
}

func readModuleFile(path string) (moduleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return moduleFile{}, fmt.Errorf("latticec: reading %s: %w", path, err)
	}
	var mf moduleFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return moduleFile{}, fmt.Errorf("latticec: parsing %s: %w", path, err)
	}
	return mf, nil
}

func toModuleInput(mf moduleFile, cfg config.LoweringConfig) driver.ModuleInput {
	fuel := mf.ConstFuel
	if fuel == 0 {
		fuel = cfg.ConstFuel
	}

	in := driver.ModuleInput{
		Name:      mf.Name,
		ConstFuel: fuel,
	}

	for _, f := range mf.Functions {
		sym := &symtab.FunctionSymbol{QualifiedName: f.QualifiedName}
		exprs := make(map[int]consteval.Node, len(f.Defaults))
		for idxStr, v := range f.Defaults {
			idx := 0
			fmt.Sscanf(idxStr, "%d", &idx)
			sym.Params = append(sym.Params, symtab.Param{HasDefault: true})
			exprs[idx] = consteval.LitNode{Value: mir.IntConst{Value: int64(v)}}
		}
		in.Functions = append(in.Functions, driver.FunctionInput{
			Symbol:       sym,
			DefaultExprs: exprs,
		})
	}

	return in
}
