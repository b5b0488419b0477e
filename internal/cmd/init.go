package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/config"
	"github.com/crewline/foreman/internal/tui"
	"github.com/crewline/foreman/internal/ux"
)

var (
	initDefaults bool
	initForce    bool
)

// blueprintTemplate is written on non-interactive init. The %s is the
// project name.
const blueprintTemplate = `# blueprint.yaml - authored by the lead, compiled by foreman.
#
# Phases happen in strict order. Each phase owns deliverables; each
# deliverable breaks into tasks small enough for one worker session.
# Tasks name a capability (which worker pool) and a scope (which
# resources they may touch); foreman never runs two overlapping scopes
# at once.
project: %s
mission: One sentence on what done looks like.

phases:
  - name: Foundation
    goal: Core pieces exist and hold together.
    deliverables:
      - name: Project skeleton
        acceptance:
          - Builds clean and the first test passes
        tasks:
          - name: Lay out the project structure
            capability: implementation
            scope:
              - .
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a foreman project",
	Long: `Create foreman.yaml and a starter blueprint in the target directory.

When run in a terminal, init walks through a short interview to seed
the blueprint with your first phase, deliverable, and task. Pass
--defaults (or run non-interactively) to write a commented template
instead.

Examples:
  # Interactive setup in the current directory
  foreman init

  # Non-interactive, template blueprint
  foreman init --defaults

  # Re-scaffold over an existing project
  foreman init --force`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := flagDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists; pass --force to re-scaffold", config.FileName)
	}

	cfg := config.Default()
	if err := config.Save(cfg, cfgPath); err != nil {
		return ux.FormatError(err, "writing config")
	}
	fmt.Printf("Wrote %s\n", config.FileName)

	bpPath := cfg.BlueprintPath(root)
	if _, err := os.Stat(bpPath); err == nil && !initForce {
		// Never clobber an authored blueprint
		fmt.Printf("Keeping existing %s\n", cfg.Blueprint)
	} else if err := writeStarterBlueprint(root, cfg, bpPath); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s (phases, deliverables, tasks)\n", cfg.Blueprint)
	fmt.Println("  2. foreman validate")
	fmt.Println("  3. foreman plan")
	return nil
}

func writeStarterBlueprint(root string, cfg *config.Config, bpPath string) error {
	name := filepath.Base(root)

	if initDefaults || !tui.ShouldPrompt() {
		content := fmt.Sprintf(blueprintTemplate, name)
		if err := os.WriteFile(bpPath, []byte(content), 0644); err != nil {
			return ux.FormatError(err, "writing blueprint template")
		}
		fmt.Printf("Wrote %s (template)\n", cfg.Blueprint)
		return nil
	}

	bp, err := tui.RunBlueprintInterview(name, poolTags(cfg))
	if err != nil {
		return err
	}
	if err := blueprint.Save(bp, bpPath); err != nil {
		return ux.FormatError(err, "writing blueprint")
	}
	fmt.Printf("Wrote %s\n", cfg.Blueprint)
	return nil
}

// poolTags lists the configured capability tags in stable order
func poolTags(cfg *config.Config) []string {
	tags := make([]string, 0, len(cfg.Pools))
	for tag := range cfg.Pools {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "skip the interview and write a template blueprint")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing scaffold files")

	rootCmd.AddCommand(initCmd)
}
