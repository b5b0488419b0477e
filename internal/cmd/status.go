package cmd

import (
	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/report"
	"github.com/crewline/foreman/internal/ux"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project's control state and progress",
	Long: `Project a status snapshot from the governed plan: control state,
per-phase progress, worker pool occupancy, and the prioritized list of
outstanding tasks. The projection is computed fresh from controller
state; it is the same content the controller persists to status.json
and renders into STATUS.md after every mutation.

Examples:
  # Terminal report
  foreman status

  # Structured output for scripting
  foreman status --format json
  foreman status --format yaml`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	snap := p.ctrl.Status()

	formatter, err := ux.NewFormatter(statusFormat, &ux.FormatterOptions{NoColor: flagNoColor})
	if err != nil {
		return err
	}
	if statusFormat == "" || statusFormat == "text" {
		return formatter.Format(report.RenderText(snap))
	}
	return formatter.Format(snap)
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(statusCmd)
}
