package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Rebuild control state after a restart",
	Long: `Reconstruct the project from its durable state: the last snapshot
seeds the control state, decisions logged after it are replayed, and
tasks left running by a dead controller are reclassified as blocked
with their scope released.

Every command resumes this way when it opens the project, so resume is
never required before other commands; run it after a crash or handover
to see explicitly what was repaired, and on a healthy directory to
verify there is nothing to repair.

Examples:
  foreman resume`,
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	replayed, orphaned := p.ctrl.LastResume()

	fmt.Printf("Resumed %s\n", p.root)
	fmt.Printf("Control state: %s\n", p.ctrl.Describe())

	if replayed == 0 && len(orphaned) == 0 {
		fmt.Println("State was consistent; nothing to repair.")
		return nil
	}

	if replayed > 0 {
		fmt.Printf("Replayed %d decision(s) recorded after the last snapshot.\n", replayed)
	}
	if len(orphaned) > 0 {
		fmt.Printf("Reclassified %d task(s) left running by the previous controller:\n", len(orphaned))
		for _, id := range orphaned {
			fmt.Printf("  %s (now blocked; scope released)\n", id)
		}
		fmt.Println("Confirm no worker is still acting on them, then 'foreman resubmit' their tickets.")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
