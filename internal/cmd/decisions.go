package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/store"
	"github.com/crewline/foreman/internal/ux"
)

var (
	decisionsFormat  string
	decisionsTail    int
	decisionsPending bool
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show the decision log",
	Long: `List the project's decision log: every gate transition, approval, and
rejection in append order. The log is the project's ground truth; it is
never edited, only appended to, and a correction appends a new entry
that names the one it supersedes.

Examples:
  # Full log
  foreman decisions

  # Just the latest five entries
  foreman decisions --tail 5

  # Proposed entries nothing has superseded yet
  foreman decisions --pending

  # Structured output
  foreman decisions --format json`,
	RunE: runDecisions,
}

func runDecisions(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	if decisionsPending {
		return runDecisionsPending(cmd, p)
	}

	log, err := p.ctrl.Decisions()
	if err != nil {
		return ux.FormatError(err, "reading decision log")
	}

	entries := log.Entries()
	if decisionsTail > 0 && len(entries) > decisionsTail {
		entries = entries[len(entries)-decisionsTail:]
	}

	formatter, err := ux.NewFormatter(decisionsFormat, &ux.FormatterOptions{NoColor: flagNoColor})
	if err != nil {
		return err
	}
	if decisionsFormat == "" || decisionsFormat == "text" {
		return formatter.Format(renderDecisions(log, entries))
	}
	return formatter.Format(entries)
}

func runDecisionsPending(cmd *cobra.Command, p *project) error {
	rows, err := p.ctrl.PendingDecisions(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "listing pending decisions")
	}

	formatter, err := ux.NewFormatter(decisionsFormat, &ux.FormatterOptions{NoColor: flagNoColor})
	if err != nil {
		return err
	}
	if decisionsFormat != "" && decisionsFormat != "text" {
		return formatter.Format(rows)
	}

	if len(rows) == 0 {
		return formatter.Format("No proposed decisions are waiting.")
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%4d  %s  %s", r.Seq, r.Time.Format("2006-01-02 15:04"), r.Title)
		if r.Actor != "" {
			fmt.Fprintf(&b, " (%s)", r.Actor)
		}
		fmt.Fprintf(&b, "\n      id %s\n", r.ID)
	}
	b.WriteString("Settle one with 'foreman decide ... --supersedes <id>'.")
	return formatter.Format(b.String())
}

// renderDecisions lays entries out one line each, with context and
// consequences indented under the entry they belong to.
func renderDecisions(log *store.DecisionLog, entries []store.Entry) string {
	if len(entries) == 0 {
		return "No decisions recorded yet. The first entry lands when the blueprint is compiled."
	}

	var b strings.Builder
	for _, e := range entries {
		status, _ := log.EffectiveStatus(e.ID)
		fmt.Fprintf(&b, "%4d  %s  [%s] %s", e.Seq, e.Time.Format("2006-01-02 15:04"), status, e.Title)
		if e.Actor != "" {
			fmt.Fprintf(&b, " (%s)", e.Actor)
		}
		b.WriteString("\n")

		if e.Transition != nil {
			fmt.Fprintf(&b, "      %s -> %s", e.Transition.From, e.Transition.To)
			if e.Transition.Phase != "" {
				fmt.Fprintf(&b, " (%s)", e.Transition.Phase)
			}
			b.WriteString("\n")
		}
		if e.Context != "" {
			fmt.Fprintf(&b, "      %s\n", e.Context)
		}
		for _, c := range e.Consequences {
			fmt.Fprintf(&b, "      -> %s\n", c)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionsFormat, "format", "text", "output format: text, json, yaml")
	decisionsCmd.Flags().IntVar(&decisionsTail, "tail", 0, "show only the last N entries")
	decisionsCmd.Flags().BoolVar(&decisionsPending, "pending", false, "list only proposed entries awaiting a follow-up")

	rootCmd.AddCommand(decisionsCmd)
}
