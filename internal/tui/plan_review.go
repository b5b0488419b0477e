package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crewline/foreman/internal/plan"
)

// PlanReviewResult holds the outcome of a plan review session
type PlanReviewResult struct {
	Approved bool
	Reason   string
}

// reviewKeyMap defines the keyboard shortcuts for plan review
type reviewKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Inspect key.Binding
	Back    key.Binding
	Approve key.Binding
	Reject  key.Binding
	Quit    key.Binding
}

var reviewKeys = reviewKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/↓", "navigate"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
	),
	Inspect: key.NewBinding(
		key.WithKeys("enter", "right", "l"),
		key.WithHelp("enter", "inspect phase"),
	),
	Back: key.NewBinding(
		key.WithKeys("left", "h", "esc"),
		key.WithHelp("h/esc", "back to phases"),
	),
	Approve: key.NewBinding(
		key.WithKeys("a", "A"),
		key.WithHelp("a", "approve"),
	),
	Reject: key.NewBinding(
		key.WithKeys("r", "R"),
		key.WithHelp("r", "reject"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " | ")
}

// planReviewModel is the BubbleTea model for reviewing a compiled plan
// before it is approved. The list view walks the phases in order; the
// detail view shows one phase's deliverables and tasks.
type planReviewModel struct {
	plan           *plan.Plan
	cursor         int
	selectedPhase  int
	viewMode       string // "list" or "detail"
	approved       *bool  // nil = not decided
	rejectionInput string
	editingReason  bool
	result         *PlanReviewResult
	width          int
	height         int
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true).
				PaddingLeft(2)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	detailKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginLeft(2).
			MarginTop(1)

	approveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	rejectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// Init initializes the model
func (m planReviewModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m planReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Typing a rejection reason captures every key until enter
		if m.editingReason {
			switch msg.String() {
			case "enter":
				m.editingReason = false
				m.result = &PlanReviewResult{
					Approved: false,
					Reason:   m.rejectionInput,
				}
				return m, tea.Quit
			case "esc":
				m.editingReason = false
				m.rejectionInput = ""
				m.approved = nil
				return m, nil
			case "backspace":
				if len(m.rejectionInput) > 0 {
					m.rejectionInput = m.rejectionInput[:len(m.rejectionInput)-1]
				}
				return m, nil
			default:
				if len(msg.String()) == 1 {
					m.rejectionInput += msg.String()
				}
				return m, nil
			}
		}

		// Regular navigation
		switch {
		case key.Matches(msg, reviewKeys.Quit):
			// Leaving without a decision rejects; approval must be explicit
			if m.approved == nil {
				approved := false
				m.approved = &approved
				m.result = &PlanReviewResult{
					Approved: false,
					Reason:   "Review cancelled",
				}
			}
			return m, tea.Quit

		case key.Matches(msg, reviewKeys.Up):
			if m.viewMode == "list" && m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, reviewKeys.Down):
			if m.viewMode == "list" && m.cursor < len(m.plan.Phases)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, reviewKeys.Inspect):
			if m.viewMode == "list" {
				m.selectedPhase = m.cursor
				m.viewMode = "detail"
			}
			return m, nil

		case key.Matches(msg, reviewKeys.Back):
			if m.viewMode == "detail" {
				m.viewMode = "list"
			}
			return m, nil

		case key.Matches(msg, reviewKeys.Approve):
			approved := true
			m.approved = &approved
			m.result = &PlanReviewResult{
				Approved: true,
				Reason:   "",
			}
			return m, tea.Quit

		case key.Matches(msg, reviewKeys.Reject):
			rejected := false
			m.approved = &rejected
			m.editingReason = true
			return m, nil
		}
	}

	return m, nil
}

// View renders the current state
func (m planReviewModel) View() string {
	if m.result != nil {
		if m.result.Approved {
			return approveStyle.Render("\n✓ Plan Approved\n\n")
		}
		reason := m.result.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		return rejectStyle.Render(fmt.Sprintf("\n✗ Plan Rejected\n  Reason: %s\n\n", reason))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("📋 Plan Review"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s: %d phases, %d deliverables, %d tasks",
		m.plan.Project, len(m.plan.Phases), len(m.plan.Deliverables), len(m.plan.Tasks))))
	b.WriteString("\n\n")

	if m.viewMode == "list" {
		for i := range m.plan.Phases {
			phase := &m.plan.Phases[i]
			style := itemStyle
			cursor := "  "
			if i == m.cursor {
				style = selectedItemStyle
				cursor = "→ "
			}

			dels := m.plan.DeliverablesInPhase(phase.ID)
			tasks := m.plan.TasksInPhase(phase.ID)
			line := fmt.Sprintf("%s%d. %s | %d deliverables | %d tasks",
				cursor,
				phase.Ordinal+1,
				phase.Name,
				len(dels),
				len(tasks),
			)
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(m.renderPhaseDetail())
	}

	b.WriteString("\n")

	if m.editingReason {
		b.WriteString(rejectStyle.Render("✗ Rejection Reason:"))
		b.WriteString("\n  ")
		b.WriteString(m.rejectionInput)
		b.WriteString("_")
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter: submit | esc: cancel"))
	} else {
		if m.viewMode == "list" {
			b.WriteString(helpStyle.Render(helpLine(reviewKeys.Up, reviewKeys.Inspect, reviewKeys.Approve, reviewKeys.Reject, reviewKeys.Quit)))
		} else {
			b.WriteString(helpStyle.Render(helpLine(reviewKeys.Back, reviewKeys.Approve, reviewKeys.Reject, reviewKeys.Quit)))
		}
	}

	return b.String()
}

// renderPhaseDetail shows one phase with its deliverables and tasks
func (m planReviewModel) renderPhaseDetail() string {
	var b strings.Builder

	phase := &m.plan.Phases[m.selectedPhase]
	b.WriteString(headerStyle.Render(fmt.Sprintf("Phase %d of %d: %s", phase.Ordinal+1, len(m.plan.Phases), phase.Name)))
	b.WriteString("\n\n")

	if phase.Goal != "" {
		b.WriteString("  ")
		b.WriteString(detailKeyStyle.Render("Goal:"))
		b.WriteString(" ")
		b.WriteString(detailValueStyle.Render(phase.Goal))
		b.WriteString("\n\n")
	}

	if len(phase.Acceptance) > 0 {
		b.WriteString("  ")
		b.WriteString(detailKeyStyle.Render("Acceptance:"))
		b.WriteString("\n")
		for _, crit := range phase.Acceptance {
			b.WriteString(fmt.Sprintf("    • %s\n", crit.Description))
		}
		b.WriteString("\n")
	}

	for _, del := range m.plan.DeliverablesInPhase(phase.ID) {
		b.WriteString("  ")
		b.WriteString(detailKeyStyle.Render(del.Name))
		b.WriteString("\n")
		for _, task := range m.plan.TasksInDeliverable(del.ID) {
			scope := strings.Join(task.Scope, ", ")
			line := fmt.Sprintf("    • %s [%s] %s", task.Name, task.Capability, scope)
			if len(task.BlockedBy) > 0 {
				line += fmt.Sprintf(" (waits on %d)", len(task.BlockedBy))
			}
			b.WriteString(detailValueStyle.Render(line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RunPlanReview launches an interactive review of a compiled plan. The
// decision is returned, not applied; the caller records it through the
// controller so the gate transition lands in the decision log.
func RunPlanReview(p *plan.Plan) (*PlanReviewResult, error) {
	if len(p.Phases) == 0 {
		return &PlanReviewResult{
			Approved: true,
			Reason:   "",
		}, nil
	}

	model := planReviewModel{
		plan:     p,
		cursor:   0,
		viewMode: "list",
	}

	program := tea.NewProgram(model)
	finalModel, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("running plan review UI: %w", err)
	}

	m, ok := finalModel.(planReviewModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type: %T", finalModel)
	}

	if m.result != nil {
		return m.result, nil
	}

	return &PlanReviewResult{
		Approved: false,
		Reason:   "Review ended without a decision",
	}, nil
}
