package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/store"
	"github.com/crewline/foreman/internal/tui"
	"github.com/crewline/foreman/internal/ux"
)

var (
	decideContext      string
	decideDecision     string
	decideAlternatives []string
	decideConsequences []string
	decidePropose      bool
	decideSupersedes   string
)

var decideCmd = &cobra.Command{
	Use:   "decide <title>",
	Short: "Record a decision in the project journal",
	Long: `Append one decision entry to the journal. Gate transitions write their
own entries automatically; this records the decisions made around
them: why a scope was cut, which alternative lost, how a rejection was
resolved.

Entries are immutable once accepted. To correct one, record a new
entry with --supersedes naming the old entry's id; readers then see
the old entry as superseded. --propose parks an entry as proposed; it
shows under 'foreman decisions --pending' until a later entry
supersedes it.

Examples:
  foreman decide "Split the importer deliverable" \
    --decision "Importer moves to phase 2; phase 1 ships read-only" \
    --consequence "phase 2 gains two tasks"

  foreman decide "Adopt streaming parser" --propose \
    --decision "Swap the DOM parser for a streaming one" \
    --alternative "keep the DOM parser and raise the memory ceiling"

  foreman decide "Keep the DOM parser" \
    --decision "Streaming rewrite is not worth the phase delay" \
    --supersedes 3f8c2e71-58d4-4b0e-9a78-2f4f5f0b2c11`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	decision := decideDecision
	if decision == "" && tui.ShouldPrompt() {
		decision, err = tui.PromptForString(tui.Prompt{Message: "What was decided?", Required: true})
		if err != nil {
			return err
		}
	}
	if decision == "" {
		return fmt.Errorf("pass --decision; a title alone does not record what was decided")
	}

	e := &store.Entry{
		Title:        args[0],
		Context:      decideContext,
		Decision:     decision,
		Alternatives: decideAlternatives,
		Consequences: decideConsequences,
		Actor:        flagActor,
		Supersedes:   decideSupersedes,
	}
	if decidePropose {
		e.Status = store.StatusProposed
	}

	if err := p.ctrl.RecordDecision(cmd.Context(), e); err != nil {
		return ux.FormatError(err, "recording decision")
	}

	fmt.Printf("Recorded decision %d (%s): %s\n", e.Seq, e.Status, e.Title)
	if e.Status == store.StatusProposed {
		fmt.Println("It stays under 'foreman decisions --pending' until a later entry supersedes it.")
	}
	return nil
}

func init() {
	decideCmd.Flags().StringVar(&decideContext, "context", "", "the situation that forced the decision")
	decideCmd.Flags().StringVar(&decideDecision, "decision", "", "what was decided")
	decideCmd.Flags().StringArrayVar(&decideAlternatives, "alternative", nil, "an option considered and not taken (repeatable)")
	decideCmd.Flags().StringArrayVar(&decideConsequences, "consequence", nil, "what follows from the decision (repeatable)")
	decideCmd.Flags().BoolVar(&decidePropose, "propose", false, "record as proposed instead of accepted")
	decideCmd.Flags().StringVar(&decideSupersedes, "supersedes", "", "id of the entry this one replaces")

	rootCmd.AddCommand(decideCmd)
}
