package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/ux"
)

var resubmitCmd = &cobra.Command{
	Use:   "resubmit <ticket-id...>",
	Short: "Return blocked or clarified tickets to the queue",
	Long: `Requeue tickets that stopped as blocked or needs_clarification after
the underlying problem is resolved. Foreman never retries on its own:
a stopped ticket waits for this explicit decision. The ticket keeps
its id but joins the back of the queue, and pool ceilings apply as for
a fresh submission.

Orphaned tickets from a controller restart are resubmitted the same
way once you have confirmed no worker is still acting on them.

Examples:
  foreman resubmit tkt-4e1a9b02
  foreman resubmit tkt-4e1a9b02 tkt-77c01d3f`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResubmit,
}

func runResubmit(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	for _, arg := range args {
		if err := p.ctrl.Resubmit(cmd.Context(), domain.TicketID(arg)); err != nil {
			return ux.FormatError(err, fmt.Sprintf("resubmitting %s", arg))
		}
		fmt.Printf("Requeued %s\n", arg)
	}
	fmt.Println("\nGrant slots with 'foreman admit'.")
	return nil
}

func init() {
	rootCmd.AddCommand(resubmitCmd)
}
