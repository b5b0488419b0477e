package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/crewline/foreman/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

const barWidth = 20

// RenderText lays the snapshot out for a terminal
func RenderText(snap *store.Snapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Foreman Status"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Control: %s\n", describeControl(snap.Control)))
	b.WriteString("\n")

	if len(snap.Phases) > 0 {
		b.WriteString(sectionStyle.Render("Progress"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %s %d%% overall (%d/%d phases complete)\n",
			progressBar(snap.Progress.Overall),
			snap.Progress.Overall,
			snap.Progress.CompletedPhases,
			snap.Progress.TotalPhases))
		for _, ph := range snap.Phases {
			pct := phasePercent(snap.Progress, ph.ID)
			b.WriteString(fmt.Sprintf("  %s %d. %s (%d%%)\n",
				phaseMarker(ph.Status), ph.Ordinal+1, ph.Name, pct))
		}
		b.WriteString("\n")
	}

	if len(snap.Roster) > 0 {
		b.WriteString(sectionStyle.Render("Workers"))
		b.WriteString("\n")
		for _, slot := range snap.Roster {
			b.WriteString(fmt.Sprintf("  %-16s %d slot(s), %d running, %d queued\n",
				slot.Capability, slot.Capacity, slot.Running, slot.Queued))
		}
		b.WriteString("\n")
	}

	if len(snap.Todo) > 0 {
		b.WriteString(sectionStyle.Render("Todo"))
		b.WriteString("\n")
		for i, item := range snap.Todo {
			tag := "[" + item.Status + "]"
			if item.Status == "blocked" {
				tag = warnStyle.Render(tag)
			}
			line := fmt.Sprintf("  %d. %s %s", i+1, item.TaskID, tag)
			if item.Reason != "" {
				line += dimStyle.Render(" " + item.Reason)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	for _, step := range nextActions(snap) {
		b.WriteString(fmt.Sprintf("Next: %s\n", step))
	}
	return b.String()
}

// RenderMarkdown produces the STATUS.md body. The file is a write-only
// projection; nothing ever parses it back.
func RenderMarkdown(snap *store.Snapshot) string {
	var b strings.Builder

	b.WriteString("# Project Status\n\n")
	if !snap.WrittenAt.IsZero() {
		b.WriteString(fmt.Sprintf("_Generated %s_\n\n", snap.WrittenAt.Format("2006-01-02 15:04:05 MST")))
	}
	b.WriteString(fmt.Sprintf("**Control state:** %s\n\n", describeControl(snap.Control)))

	if len(snap.Phases) > 0 {
		b.WriteString("## Phases\n\n")
		b.WriteString("| # | Phase | Status | Deliverables |\n")
		b.WriteString("|---|-------|--------|--------------|\n")
		for _, ph := range snap.Phases {
			done, total := phaseDeliverables(snap.Progress, ph.ID)
			b.WriteString(fmt.Sprintf("| %d | %s | %s | %d/%d |\n",
				ph.Ordinal+1, ph.Name, ph.Status, done, total))
		}
		b.WriteString(fmt.Sprintf("\nOverall: **%d%%**\n\n", snap.Progress.Overall))
	}

	if len(snap.Roster) > 0 {
		b.WriteString("## Workers\n\n")
		b.WriteString("| Capability | Slots | Running | Queued |\n")
		b.WriteString("|------------|-------|---------|--------|\n")
		for _, slot := range snap.Roster {
			b.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n",
				slot.Capability, slot.Capacity, slot.Running, slot.Queued))
		}
		b.WriteString("\n")
	}

	if len(snap.Todo) > 0 {
		b.WriteString("## Todo\n\n")
		for _, item := range snap.Todo {
			line := fmt.Sprintf("- [ ] `%s` (%s", item.TaskID, item.Status)
			if item.Reason != "" {
				line += ": " + item.Reason
			}
			line += ")"
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if steps := nextActions(snap); len(steps) > 0 {
		b.WriteString("## Next\n\n")
		for _, step := range steps {
			b.WriteString("- " + step + "\n")
		}
	}
	return b.String()
}

// RenderDecisionsMarkdown produces the DECISIONS.md body from the log
func RenderDecisionsMarkdown(decisions *store.DecisionLog) string {
	var b strings.Builder
	b.WriteString("# Decision Log\n\n")
	if decisions.Len() == 0 {
		b.WriteString("_No decisions recorded yet._\n")
		return b.String()
	}

	for _, e := range decisions.Entries() {
		b.WriteString(fmt.Sprintf("## %d. %s\n\n", e.Seq, e.Title))
		b.WriteString(fmt.Sprintf("- Date: %s\n", e.Time.Format("2006-01-02 15:04:05 MST")))
		if e.Actor != "" {
			b.WriteString(fmt.Sprintf("- Actor: %s\n", e.Actor))
		}
		b.WriteString(fmt.Sprintf("- Status: %s\n", e.Status))
		if e.Supersedes != "" {
			b.WriteString(fmt.Sprintf("- Supersedes: %s\n", e.Supersedes))
		}
		if e.Transition != nil {
			line := fmt.Sprintf("- Transition: %s -> %s", e.Transition.From, e.Transition.To)
			if e.Transition.Phase != "" {
				line += fmt.Sprintf(" (%s)", e.Transition.Phase)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
		if e.Context != "" {
			b.WriteString(e.Context + "\n\n")
		}
		if e.Decision != "" {
			b.WriteString(e.Decision + "\n\n")
		}
		if len(e.Alternatives) > 0 {
			for _, a := range e.Alternatives {
				b.WriteString("- Considered: " + a + "\n")
			}
			b.WriteString("\n")
		}
		if len(e.Consequences) > 0 {
			for _, c := range e.Consequences {
				b.WriteString("- " + c + "\n")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func describeControl(c store.ControlStatus) string {
	if c.ActivePhase != "" {
		return fmt.Sprintf("%s (%s)", c.State, c.ActivePhase)
	}
	return c.State
}

func progressBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	if pct >= 100 {
		return okStyle.Render("[" + bar + "]")
	}
	return "[" + bar + "]"
}

func phaseMarker(status string) string {
	switch status {
	case "complete":
		return okStyle.Render("✓")
	case "active":
		return "▶"
	default:
		return dimStyle.Render("·")
	}
}

func phasePercent(prog store.Progress, phaseID string) int {
	for _, pp := range prog.Phases {
		if pp.PhaseID == phaseID {
			return pp.Percent
		}
	}
	return 0
}

func phaseDeliverables(prog store.Progress, phaseID string) (int, int) {
	for _, pp := range prog.Phases {
		if pp.PhaseID == phaseID {
			return pp.CompletedDeliverables, pp.TotalDeliverables
		}
	}
	return 0, 0
}

// nextActions suggests the operator's next command for the control state
func nextActions(snap *store.Snapshot) []string {
	switch snap.Control.State {
	case "blueprint":
		return []string{"Compile the blueprint with 'foreman plan'"}
	case "planning":
		return []string{"Finish compilation with 'foreman plan'"}
	case "awaiting_plan_approval":
		return []string{"Review and approve the plan with 'foreman approve plan'"}
	case "phase_active":
		steps := []string{"Submit work with 'foreman submit', admit with 'foreman admit'"}
		if phaseReady(snap) {
			steps = append(steps, "Phase deliverables are complete; request the gate with 'foreman approve phase'")
		}
		return steps
	case "awaiting_phase_approval":
		return []string{"Approve or reject the phase with 'foreman approve phase'"}
	case "complete":
		return []string{completionNote(snap)}
	}
	return nil
}

func phaseReady(snap *store.Snapshot) bool {
	active := snap.Control.ActivePhase
	if active == "" {
		return false
	}
	for _, pp := range snap.Progress.Phases {
		if pp.PhaseID == active {
			return pp.TotalDeliverables > 0 && pp.CompletedDeliverables == pp.TotalDeliverables
		}
	}
	return false
}

func completionNote(snap *store.Snapshot) string {
	if len(snap.Todo) > 0 {
		return fmt.Sprintf("All phases approved, but %d task(s) remain outstanding", len(snap.Todo))
	}
	return "All phases complete"
}
