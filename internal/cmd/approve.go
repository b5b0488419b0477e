package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/gate"
	"github.com/crewline/foreman/internal/tui"
	"github.com/crewline/foreman/internal/ux"
)

var (
	approveYes         bool
	approveReject      bool
	approveReason      string
	approveNote        string
	approveRemediation string
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Record a gate decision",
	Long: `Approve or reject at one of the two control gates: the compiled plan
before its first phase activates, or a finished phase before the next
one starts. Every decision appends an entry to the decision log before
taking effect.`,
}

var approvePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Approve or reject the compiled plan",
	Long: `Decide on the plan compiled by 'foreman plan'. Approval activates the
first phase. Rejection returns the project to planning; edit the
blueprint and recompile.

In a terminal this opens an interactive review of every phase and
task. Non-interactive sessions must decide with flags.

Examples:
  # Interactive review
  foreman approve plan

  # Scripted approval
  foreman approve plan --yes

  # Rejection with a recorded reason
  foreman approve plan --reject --reason "phases are too coarse"`,
	RunE: runApprovePlan,
}

var approvePhaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Approve or reject the current phase",
	Long: `Decide on the active phase. If the phase is still active, this first
declares it done, which requires every deliverable in it to be
complete. Approval activates the next phase, or completes the project
after the last one. Rejection returns the phase to active, optionally
queueing a remediation deliverable from a YAML file.

Examples:
  # Confirm interactively
  foreman approve phase

  # Scripted approval with a note
  foreman approve phase --yes --note "demo went clean"

  # Rejection that queues follow-up work
  foreman approve phase --reject --reason "races under load" --remediation fixes.yaml`,
	RunE: runApprovePhase,
}

func runApprovePlan(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	if approveReject {
		if approveReason == "" {
			return fmt.Errorf("--reject requires --reason")
		}
		if err := p.ctrl.RejectPlan(cmd.Context(), flagActor, approveReason); err != nil {
			return ux.FormatError(err, "rejecting plan")
		}
		fmt.Println("Plan rejected. Edit the blueprint and run 'foreman plan' to recompile.")
		return nil
	}

	if approveYes {
		return approvePlanNow(cmd, p)
	}

	if !tui.ShouldPrompt() {
		return fmt.Errorf("not running in a terminal; pass --yes to approve or --reject --reason to reject")
	}

	if st := p.ctrl.State(); st != gate.StateAwaitingPlanApproval {
		return &gate.StateError{Current: st, Event: gate.EventApprovePlan}
	}

	result, err := tui.RunPlanReview(p.ctrl.Plan())
	if err != nil {
		return err
	}
	if !result.Approved {
		if err := p.ctrl.RejectPlan(cmd.Context(), flagActor, result.Reason); err != nil {
			return ux.FormatError(err, "rejecting plan")
		}
		fmt.Println("Plan rejected. Edit the blueprint and run 'foreman plan' to recompile.")
		return nil
	}
	return approvePlanNow(cmd, p)
}

func approvePlanNow(cmd *cobra.Command, p *project) error {
	if err := p.ctrl.ApprovePlan(cmd.Context(), flagActor, approveNote); err != nil {
		return ux.FormatError(err, "approving plan")
	}
	fmt.Printf("Plan approved. Phase %q is active.\n", p.ctrl.ActivePhase())
	fmt.Println("Queue work with 'foreman submit --all', then 'foreman run'.")
	return nil
}

func runApprovePhase(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	// A still-active phase is declared done first; that checks every
	// deliverable is complete before the gate opens for a decision.
	if p.ctrl.State() == gate.StatePhaseActive {
		if err := p.ctrl.PhaseDone(cmd.Context(), flagActor); err != nil {
			return ux.FormatError(err, "declaring phase done")
		}
	}
	phaseID := p.ctrl.ActivePhase()

	if approveReject {
		if approveReason == "" {
			return fmt.Errorf("--reject requires --reason")
		}
		var remediation *blueprint.DeliverableSpec
		if approveRemediation != "" {
			remediation, err = loadRemediation(approveRemediation)
			if err != nil {
				return ux.FormatError(err, "loading remediation deliverable")
			}
		}
		if err := p.ctrl.RejectPhase(cmd.Context(), flagActor, approveReason, remediation); err != nil {
			return ux.FormatError(err, "rejecting phase")
		}
		fmt.Printf("Phase %s returned to active.\n", phaseID)
		if remediation != nil {
			fmt.Printf("Remediation deliverable %q queued.\n", remediation.Name)
		}
		return nil
	}

	if approveYes {
		return approvePhaseNow(cmd, p)
	}

	if !tui.ShouldPrompt() {
		return fmt.Errorf("not running in a terminal; pass --yes to approve or --reject --reason to reject")
	}

	ok, err := tui.PromptForConfirmation(fmt.Sprintf("Approve phase %s?", phaseID), true)
	if err != nil {
		return err
	}
	if !ok {
		reason, err := tui.PromptForString(tui.Prompt{Message: "Rejection reason", Required: true})
		if err != nil {
			return err
		}
		if err := p.ctrl.RejectPhase(cmd.Context(), flagActor, reason, nil); err != nil {
			return ux.FormatError(err, "rejecting phase")
		}
		fmt.Printf("Phase %s returned to active.\n", phaseID)
		return nil
	}
	return approvePhaseNow(cmd, p)
}

func approvePhaseNow(cmd *cobra.Command, p *project) error {
	if err := p.ctrl.ApprovePhase(cmd.Context(), flagActor, approveNote); err != nil {
		return ux.FormatError(err, "approving phase")
	}
	if p.ctrl.State() == gate.StateComplete {
		fmt.Println("Phase approved. Every phase is complete - the project is done.")
		return nil
	}
	fmt.Printf("Phase approved. Phase %q is now active.\n", p.ctrl.ActivePhase())
	return nil
}

// loadRemediation reads a deliverable spec from a YAML file
func loadRemediation(path string) (*blueprint.DeliverableSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec blueprint.DeliverableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("remediation deliverable in %s has no name", path)
	}
	return &spec, nil
}

func init() {
	approveCmd.PersistentFlags().BoolVar(&approveYes, "yes", false, "approve without prompting")
	approveCmd.PersistentFlags().BoolVar(&approveReject, "reject", false, "reject instead of approving")
	approveCmd.PersistentFlags().StringVar(&approveReason, "reason", "", "rejection reason (required with --reject)")
	approveCmd.PersistentFlags().StringVar(&approveNote, "note", "", "note recorded with an approval")
	approvePhaseCmd.Flags().StringVar(&approveRemediation, "remediation", "", "YAML file with a remediation deliverable to queue on rejection")

	approveCmd.AddCommand(approvePlanCmd)
	approveCmd.AddCommand(approvePhaseCmd)
	rootCmd.AddCommand(approveCmd)
}
