package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/ux"
	"github.com/crewline/foreman/internal/watch"
)

var runInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the active phase until its gate",
	Long: `Queue every eligible task in the active phase, admit what can start,
then watch the run directory for worker reports. Each report is
applied as it lands: completions free their scope and slot, blockers
and clarification requests park the task with the worker's reason.
Admission re-runs after every report and on a periodic sweep.

The loop ends when every deliverable in the phase is complete, or on
ctrl-c. Stopping is always safe; all state is durable and 'foreman
run' picks up where it left off.

Examples:
  foreman run
  foreman run --interval 2s`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	queued, err := p.ctrl.SubmitPhase(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "queueing phase tasks")
	}
	for _, id := range queued {
		fmt.Printf("Queued %s\n", id)
	}

	admitted, deferred, err := p.ctrl.AdmitOnce(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "admitting work")
	}
	printAdmission(p, admitted, deferred, false)

	if phaseReady(p) {
		fmt.Println("\nEvery deliverable in the phase is already complete.")
		fmt.Println("Gate the phase with 'foreman approve phase'.")
		return nil
	}

	return watchLoop(cmd, p)
}

// watchLoop applies worker reports as they land and keeps admitting
// until the phase is ready for its gate or the context ends.
func watchLoop(cmd *cobra.Command, p *project) error {
	ctx := cmd.Context()

	rd, err := p.ctrl.EnsureRunDir()
	if err != nil {
		return ux.FormatError(err, "preparing run directory")
	}
	w, err := watch.New(rd.Path(), p.logger)
	if err != nil {
		return ux.FormatError(err, "watching run directory")
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return ux.FormatError(err, "watching run directory")
	}

	fmt.Printf("\nWatching %s for worker reports. ctrl-c stops; state is durable.\n", rd.Path())

	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped. Resume any time with 'foreman run'.")
			return nil

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := p.ctrl.ApplyReport(ctx, ev.Report); err != nil {
				p.logger.Warn("report not applied", "ticket", ev.TicketID, "error", err)
				continue
			}
			fmt.Printf("Report %s: %s\n", ev.TicketID, ev.Report.Status)

			admitted, deferred, err := p.ctrl.AdmitOnce(ctx)
			if err != nil {
				return ux.FormatError(err, "admitting work")
			}
			printAdmission(p, admitted, deferred, false)

			if phaseReady(p) {
				fmt.Println("\nEvery deliverable in the phase is complete.")
				fmt.Println("Gate the phase with 'foreman approve phase'.")
				return nil
			}

		case <-ticker.C:
			// The sweep also reissues any work order file a worker
			// deleted by accident
			admitted, deferred, err := p.ctrl.AdmitOnce(ctx)
			if err != nil {
				return ux.FormatError(err, "admitting work")
			}
			printAdmission(p, admitted, deferred, true)
		}
	}
}

// phaseReady reports whether the active phase would pass its gate check
func phaseReady(p *project) bool {
	pl := p.ctrl.Plan()
	if pl == nil {
		return false
	}
	return pl.CheckReady(p.ctrl.ActivePhase()) == nil
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 5*time.Second, "periodic admission sweep interval")

	rootCmd.AddCommand(runCmd)
}
