package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/ux"
)

var submitAll bool

var submitCmd = &cobra.Command{
	Use:   "submit [task-id...]",
	Short: "Queue tasks from the active phase",
	Long: `Create queued tickets for tasks in the active phase. Submission only
queues; no work starts until 'foreman admit' grants pool slots and
scope leases. Tasks outside the active phase are refused.

Examples:
  # Queue one task
  foreman submit phase-1-foundation-d1-skeleton-t1-lay-out-the-project-structure

  # Queue everything eligible in the active phase
  foreman submit --all`,
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if !submitAll && len(args) == 0 {
		return fmt.Errorf("name at least one task id or pass --all")
	}

	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	if submitAll {
		ids, err := p.ctrl.SubmitPhase(cmd.Context())
		if err != nil {
			return ux.FormatError(err, "submitting phase tasks")
		}
		if len(ids) == 0 {
			fmt.Println("Nothing to queue; every task in the active phase already has a ticket.")
			return nil
		}
		for _, id := range ids {
			fmt.Printf("Queued %s\n", id)
		}
		fmt.Printf("\n%d ticket(s) queued. Grant slots with 'foreman admit'.\n", len(ids))
		return nil
	}

	for _, arg := range args {
		ticketID, err := p.ctrl.Submit(cmd.Context(), domain.TaskID(arg))
		if err != nil {
			return ux.FormatError(err, fmt.Sprintf("submitting %s", arg))
		}
		fmt.Printf("Queued %s\n", ticketID)
	}
	fmt.Println("\nGrant slots with 'foreman admit'.")
	return nil
}

func init() {
	submitCmd.Flags().BoolVar(&submitAll, "all", false, "queue every unticketed queued task in the active phase")

	rootCmd.AddCommand(submitCmd)
}
