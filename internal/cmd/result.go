package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/sched"
	"github.com/crewline/foreman/internal/ticket"
	"github.com/crewline/foreman/internal/tui"
	"github.com/crewline/foreman/internal/ux"
)

var (
	resultStatus   string
	resultReason   string
	resultQuestion string
	resultReport   string
)

var resultCmd = &cobra.Command{
	Use:   "result <ticket-id>",
	Short: "Record a worker's outcome for a running ticket",
	Long: `Apply one worker result. Normally 'foreman run' picks report files up
from the run directory as workers write them; this command covers the
manual path, for a report file delivered out of band or an outcome
typed straight at the terminal.

A completed ticket frees its scope and pool slot and completes its
task. Blocked tickets and clarification requests park the task with
the worker's reason until you resolve it and resubmit.

Examples:
  # Apply a report file
  foreman result tkt-4e1a9b02 --report run/tkt-4e1a9b02.report.yaml

  # Record an outcome directly
  foreman result tkt-4e1a9b02 --status complete
  foreman result tkt-4e1a9b02 --status blocked --reason "migration script missing"
  foreman result tkt-4e1a9b02 --status needs_clarification --question "which auth scheme?"

  # Pick the outcome at an interactive terminal
  foreman result tkt-4e1a9b02`,
	Args: cobra.ExactArgs(1),
	RunE: runResult,
}

func runResult(cmd *cobra.Command, args []string) error {
	ticketID := domain.TicketID(args[0])

	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	if resultReport != "" {
		r, err := ticket.LoadReport(resultReport)
		if err != nil {
			return ux.FormatError(err, "loading report file")
		}
		if r.TicketID != ticketID.String() {
			return fmt.Errorf("report file is for ticket %s, not %s", r.TicketID, ticketID)
		}
		if err := p.ctrl.ApplyReport(cmd.Context(), r); err != nil {
			return ux.FormatError(err, "applying report")
		}
		fmt.Printf("Report applied: %s is %s\n", ticketID, r.Status)
		return afterResult(p, string(r.Status))
	}

	var outcome sched.Outcome
	if resultStatus == "" && tui.ShouldPrompt() {
		outcome, err = promptOutcome()
	} else {
		outcome, err = outcomeFromFlags()
	}
	if err != nil {
		return err
	}
	if err := p.ctrl.ReportOutcome(cmd.Context(), ticketID, outcome); err != nil {
		return ux.FormatError(err, "recording outcome")
	}
	fmt.Printf("Outcome recorded: %s is %s\n", ticketID, outcome.Status)
	return afterResult(p, string(outcome.Status))
}

// promptOutcome collects an outcome at the terminal when no flag names
// one. Same contract as the flags: blocked needs its reason, a
// clarification needs its question.
func promptOutcome() (sched.Outcome, error) {
	status, err := tui.PromptForSelect("Worker outcome", []string{"complete", "blocked", "needs_clarification"})
	if err != nil {
		return sched.Outcome{}, err
	}
	switch status {
	case "complete":
		return sched.Completed(), nil
	case "blocked":
		reason, err := tui.PromptForString(tui.Prompt{Message: "What is the worker blocked on?", Required: true})
		if err != nil {
			return sched.Outcome{}, err
		}
		return sched.Blocked(reason), nil
	default:
		question, err := tui.PromptForString(tui.Prompt{Message: "What is the worker asking?", Required: true})
		if err != nil {
			return sched.Outcome{}, err
		}
		return sched.NeedsClarification(question), nil
	}
}

// outcomeFromFlags enforces the same contract the report file schema
// does: blocked needs a reason, a clarification needs its question.
func outcomeFromFlags() (sched.Outcome, error) {
	switch resultStatus {
	case "complete":
		return sched.Completed(), nil
	case "blocked":
		if resultReason == "" {
			return sched.Outcome{}, fmt.Errorf("--status blocked requires --reason")
		}
		return sched.Blocked(resultReason), nil
	case "needs_clarification":
		if resultQuestion == "" {
			return sched.Outcome{}, fmt.Errorf("--status needs_clarification requires --question")
		}
		return sched.NeedsClarification(resultQuestion), nil
	case "":
		return sched.Outcome{}, fmt.Errorf("pass --report <file> or --status complete|blocked|needs_clarification")
	default:
		return sched.Outcome{}, fmt.Errorf("unknown status %q (valid: complete, blocked, needs_clarification)", resultStatus)
	}
}

func afterResult(p *project, status string) error {
	switch status {
	case "complete":
		if phaseReady(p) {
			fmt.Println("Every deliverable in the phase is complete. Gate it with 'foreman approve phase'.")
		} else {
			fmt.Println("Admit waiting work with 'foreman admit'.")
		}
	case "blocked":
		fmt.Println("Resolve the blocker, then return the ticket to the queue with 'foreman resubmit'.")
	case "needs_clarification":
		fmt.Println("Answer the worker's question (revise the blueprint or task), then 'foreman resubmit'.")
	}
	return nil
}

func init() {
	resultCmd.Flags().StringVar(&resultStatus, "status", "", "worker outcome: complete, blocked, needs_clarification")
	resultCmd.Flags().StringVar(&resultReason, "reason", "", "why the worker is blocked (with --status blocked)")
	resultCmd.Flags().StringVar(&resultQuestion, "question", "", "the worker's question (with --status needs_clarification)")
	resultCmd.Flags().StringVar(&resultReport, "report", "", "apply a worker report YAML file instead of flags")

	rootCmd.AddCommand(resultCmd)
}
