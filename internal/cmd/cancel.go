package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/tui"
	"github.com/crewline/foreman/internal/ux"
)

var (
	cancelReason string
	cancelYes    bool
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <ticket-id>",
	Short: "Withdraw a queued or running ticket",
	Long: `Cancel a ticket before its worker reports. The ticket lands in blocked
with the cancellation reason and its scope lease is released, so other
work can claim the same resources immediately. The worker itself is
outside foreman's control; cancelling here only tells the control
plane to stop waiting for its report.

A cancelled ticket can return to the queue later with 'foreman
resubmit'.

Examples:
  foreman cancel tkt-4e1a9b02
  foreman cancel tkt-4e1a9b02 --reason "superseded by the re-scoped task"
  foreman cancel tkt-4e1a9b02 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	ticketID := domain.TicketID(args[0])

	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	if !cancelYes && tui.ShouldPrompt() {
		if !ux.Confirm(os.Stdin, os.Stdout, fmt.Sprintf("Cancel %s and release its scope?", ticketID), false) {
			fmt.Println("Left as is.")
			return nil
		}
	}

	if err := p.ctrl.Cancel(cmd.Context(), ticketID, cancelReason); err != nil {
		return ux.FormatError(err, "cancelling ticket")
	}
	fmt.Printf("Cancelled %s; its scope is released.\n", ticketID)
	return nil
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "why the ticket is withdrawn")
	cancelCmd.Flags().BoolVar(&cancelYes, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(cancelCmd)
}
