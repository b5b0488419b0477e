package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/ux"
)

var rehydrateCmd = &cobra.Command{
	Use:   "rehydrate",
	Short: "Rebuild the derived query index",
	Long: `Drop and rebuild the SQLite index from the authoritative files
(plan.json and decisions.jsonl). The index only accelerates queries;
it carries no state of its own, so rehydrating is always safe and the
runtime directory that holds it can be deleted outright whenever.

Foreman reconciles the index automatically after every mutation; use
this when the runtime directory was deleted or the index looks stale.

Examples:
  foreman rehydrate`,
	RunE: runRehydrate,
}

func runRehydrate(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	counts, err := p.ctrl.Rehydrate(cmd.Context())
	if err != nil {
		return ux.FormatError(err, "rebuilding index")
	}

	fmt.Printf("Index rebuilt at %s\n", p.cfg.IndexPath(p.root))
	if len(counts) == 0 {
		fmt.Println("No tasks indexed; compile a plan first.")
		return nil
	}

	statuses := make([]string, 0, len(counts))
	total := 0
	for status, n := range counts {
		statuses = append(statuses, status)
		total += n
	}
	sort.Strings(statuses)

	fmt.Printf("%d task(s) indexed:\n", total)
	for _, status := range statuses {
		fmt.Printf("  %-20s %d\n", status, counts[status])
	}
	return nil
}

func init() {
	rootCmd.AddCommand(rehydrateCmd)
}
