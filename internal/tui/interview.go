package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/crewline/foreman/internal/blueprint"
)

// BlueprintInterview holds the answers collected when scaffolding a
// starter blueprint interactively. The zero value plus Blueprint()
// still yields a valid blueprint; every field has a fallback.
type BlueprintInterview struct {
	Project     string
	Mission     string
	PhaseName   string
	PhaseGoal   string
	Deliverable string
	Acceptance  string
	TaskName    string
	Capability  string
	Scope       string
}

// RunBlueprintInterview walks the user through a starter blueprint: one
// phase, one deliverable, one task. The result is meant to be written
// to blueprint.yaml and grown by hand from there. capabilities lists
// the pool tags the project's config knows about.
func RunBlueprintInterview(project string, capabilities []string) (*blueprint.Blueprint, error) {
	answers := BlueprintInterview{
		Project:   project,
		PhaseName: "Foundation",
	}

	if len(capabilities) == 0 {
		capabilities = []string{"implementation", "design", "review", "testing"}
	}

	capOptions := make([]huh.Option[string], len(capabilities))
	for i, c := range capabilities {
		capOptions[i] = huh.NewOption(c, c)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&answers.Project).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("project name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Mission").
				Description("One sentence on what done looks like").
				Value(&answers.Mission),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First phase").
				Value(&answers.PhaseName),
			huh.NewInput().
				Title("Phase goal").
				Value(&answers.PhaseGoal),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First deliverable").
				Description("A concrete outcome the phase produces").
				Value(&answers.Deliverable),
			huh.NewInput().
				Title("Acceptance criterion").
				Description("How the lead knows the deliverable is done").
				Value(&answers.Acceptance),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First task").
				Value(&answers.TaskName),
			huh.NewSelect[string]().
				Title("Capability").
				Description("Which worker pool the task needs").
				Options(capOptions...).
				Value(&answers.Capability),
			huh.NewInput().
				Title("Scope").
				Description("Comma-separated resources the task may touch").
				Value(&answers.Scope),
		),
	)

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("blueprint interview failed: %w", err)
	}

	return answers.Blueprint(), nil
}

// Blueprint assembles the collected answers into a starter blueprint.
// Blank answers fall back to scaffold text so the result always passes
// validation.
func (bi *BlueprintInterview) Blueprint() *blueprint.Blueprint {
	project := strings.TrimSpace(bi.Project)
	if project == "" {
		project = "untitled-project"
	}

	phaseName := strings.TrimSpace(bi.PhaseName)
	if phaseName == "" {
		phaseName = "Foundation"
	}

	deliverable := strings.TrimSpace(bi.Deliverable)
	if deliverable == "" {
		deliverable = "Initial skeleton"
	}

	acceptance := strings.TrimSpace(bi.Acceptance)
	if acceptance == "" {
		acceptance = "Builds clean and the first test passes"
	}

	taskName := strings.TrimSpace(bi.TaskName)
	if taskName == "" {
		taskName = "Lay out the project structure"
	}

	capability := strings.TrimSpace(bi.Capability)
	if capability == "" {
		capability = "implementation"
	}

	scope := splitScope(bi.Scope)
	if len(scope) == 0 {
		scope = []string{"."}
	}

	return &blueprint.Blueprint{
		Project: project,
		Mission: strings.TrimSpace(bi.Mission),
		Phases: []blueprint.PhaseSpec{
			{
				Name: phaseName,
				Goal: strings.TrimSpace(bi.PhaseGoal),
				Deliverables: []blueprint.DeliverableSpec{
					{
						Name:       deliverable,
						Acceptance: []string{acceptance},
						Tasks: []blueprint.TaskSpec{
							{
								Name:       taskName,
								Capability: capability,
								Scope:      scope,
							},
						},
					},
				},
			},
		},
	}
}

// splitScope turns a comma-separated answer into scope resources
func splitScope(raw string) []string {
	var scope []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			scope = append(scope, trimmed)
		}
	}
	return scope
}
