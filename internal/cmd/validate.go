package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/ux"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the blueprint without compiling a plan",
	Long: `Load the blueprint and report every structural problem: phases without
deliverables, deliverables without acceptance criteria, tasks without
capability or scope, dangling or cyclic dependencies. The compile is a
dry run; nothing is persisted and nothing the project governs changes.

Run it after editing blueprint.yaml, before 'foreman plan'.

Examples:
  foreman validate`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfigAt(root)
	if err != nil {
		return err
	}

	bp, err := blueprint.Load(cfg.BlueprintPath(root))
	if err != nil {
		return ux.EnhanceError(err)
	}

	if problems := bp.Validate(); len(problems) > 0 {
		fmt.Printf("%s has %d problem(s):\n", cfg.Blueprint, len(problems))
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return errors.NewBlueprintInvalidError(
			fmt.Sprintf("%d problem(s) found", len(problems))).
			WithSuggestion("Fix the problems listed above, then run 'foreman validate' again.")
	}

	// A structurally sound blueprint can still hide a dependency cycle;
	// that only shows up in compilation.
	compiled, err := plan.Compile(bp)
	if err != nil {
		return ux.FormatError(err, "compiling (dry run)")
	}

	fmt.Printf("%s is valid: %d phases, %d deliverables, %d tasks.\n",
		cfg.Blueprint, len(compiled.Phases), len(compiled.Deliverables), len(compiled.Tasks))
	fmt.Println("Compile it for real with 'foreman plan'.")
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
