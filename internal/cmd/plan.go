package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/ux"
)

var planApprove bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile the blueprint into a phased plan",
	Long: `Compile blueprint.yaml into the executable plan: phases in strict
order, deliverables owned by phases, tasks with capability tags and
scope claims. The compiled plan is persisted but governs nothing until
it is approved.

Examples:
  # Compile, then review interactively
  foreman plan
  foreman approve plan

  # Compile and approve in one step (scripted setups)
  foreman plan --approve`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	compiled, err := p.ctrl.CompilePlan(cmd.Context(), flagActor)
	if err != nil {
		return ux.FormatError(err, "compiling plan")
	}

	fmt.Print(summarizePlan(compiled))

	if planApprove {
		if err := p.ctrl.ApprovePlan(cmd.Context(), flagActor, "approved at compile time"); err != nil {
			return ux.FormatError(err, "approving plan")
		}
		fmt.Printf("\nPlan approved. Phase %q is active.\n", compiled.Phases[0].Name)
		fmt.Println("Queue work with 'foreman submit --all', then 'foreman run'.")
		return nil
	}

	fmt.Println("\nReview and approve with 'foreman approve plan'.")
	return nil
}

// summarizePlan renders the compiled structure for the terminal
func summarizePlan(p *plan.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Compiled plan for %s: %d phases, %d deliverables, %d tasks\n\n",
		p.Project, len(p.Phases), len(p.Deliverables), len(p.Tasks))

	for i := range p.Phases {
		phase := &p.Phases[i]
		fmt.Fprintf(&b, "  %d. %s", phase.Ordinal+1, phase.Name)
		if phase.Goal != "" {
			fmt.Fprintf(&b, " - %s", phase.Goal)
		}
		b.WriteString("\n")

		for _, del := range p.DeliverablesInPhase(phase.ID) {
			fmt.Fprintf(&b, "     %s\n", del.Name)
			for _, task := range p.TasksInDeliverable(del.ID) {
				fmt.Fprintf(&b, "       - %s [%s]", task.Name, task.Capability)
				if len(task.BlockedBy) > 0 {
					fmt.Fprintf(&b, " (waits on %d)", len(task.BlockedBy))
				}
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

func init() {
	planCmd.Flags().BoolVar(&planApprove, "approve", false, "approve the plan immediately after compiling")

	rootCmd.AddCommand(planCmd)
}
