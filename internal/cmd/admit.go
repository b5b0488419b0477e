package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/sched"
	"github.com/crewline/foreman/internal/ux"
)

var admitWatch bool

var admitCmd = &cobra.Command{
	Use:   "admit",
	Short: "Grant slots and scope leases to queued tickets",
	Long: `Run one admission pass: queued tickets start running, oldest first,
when their capability pool has a free slot, every dependency is
complete, and their scope overlaps no running work. Each admitted
ticket gets a work order file in the run directory for its worker.

Tickets that cannot start are deferred with a reason and stay queued.

Examples:
  # One pass
  foreman admit

  # Keep admitting as worker reports come in
  foreman admit --watch`,
	RunE: runAdmit,
}

func runAdmit(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	admitted, deferred, err := p.ctrl.AdmitOnce(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "admitting work")
	}
	printAdmission(p, admitted, deferred, false)

	if admitWatch {
		return watchLoop(cmd, p)
	}
	return nil
}

// printAdmission reports one admission pass. In quiet mode only
// admissions print, so periodic sweeps do not repeat deferral noise.
func printAdmission(p *project, admitted []*sched.Ticket, deferred []sched.Deferral, quiet bool) {
	for _, t := range admitted {
		fmt.Printf("Admitted %s -> %s [%s]\n", t.ID, t.TaskID, t.Capability)
	}
	if len(admitted) > 0 {
		if rd, err := p.ctrl.EnsureRunDir(); err == nil {
			fmt.Printf("Work orders in %s\n", rd.Path())
		}
	}

	if quiet {
		return
	}
	for _, d := range deferred {
		fmt.Printf("Deferred %s: %s\n", d.TaskID, d.Reason)
	}
	if len(admitted) == 0 && len(deferred) == 0 {
		fmt.Println("No queued tickets.")
	}
}

func init() {
	admitCmd.Flags().BoolVar(&admitWatch, "watch", false, "keep watching for worker reports and admitting")

	rootCmd.AddCommand(admitCmd)
}
