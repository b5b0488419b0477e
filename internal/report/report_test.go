package report

import (
	"strings"
	"testing"
	"time"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/gate"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/sched"
	"github.com/crewline/foreman/internal/store"
)

const (
	phaseAlpha = "phase-1-alpha"
	phaseBeta  = "phase-2-beta"
	taskFeed   = "phase-1-alpha-d1-core-t1-wire-feed"
	taskRows   = "phase-1-alpha-d1-core-t2-wire-rows"
	taskCLI    = "phase-2-beta-d1-surface-t1-wire-cli"
)

type nopLog struct{}

func (nopLog) AppendDecision(*store.Entry) error { return nil }

func reportBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		Project: "report-demo",
		Phases: []blueprint.PhaseSpec{
			{
				Name: "Alpha",
				Deliverables: []blueprint.DeliverableSpec{
					{
						Name:       "Core",
						Acceptance: []string{"feed and rows wired"},
						Tasks: []blueprint.TaskSpec{
							{Name: "Wire feed", Capability: "implementation", Scope: []string{"internal/feed"}},
							{Name: "Wire rows", Capability: "implementation", Scope: []string{"internal/rows"}},
						},
					},
				},
			},
			{
				Name: "Beta",
				Deliverables: []blueprint.DeliverableSpec{
					{
						Name:       "Surface",
						Acceptance: []string{"cli wired"},
						Tasks: []blueprint.TaskSpec{
							{Name: "Wire cli", Capability: "implementation", Scope: []string{"internal/cli"}},
						},
					},
				},
			},
		},
	}
}

func activeGate(t *testing.T, p *plan.Plan, phase string) *gate.Gate {
	t.Helper()
	g, err := gate.New(nopLog{})
	if err != nil {
		t.Fatalf("gate.New() error = %v", err)
	}
	if err := g.Restore(p, gate.StatePhaseActive, domain.PhaseID(phase)); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	return g
}

func compilePlan(t *testing.T, bp *blueprint.Blueprint) *plan.Plan {
	t.Helper()
	p, err := plan.Compile(bp)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return p
}

func TestBuildProjectsControlAndPlan(t *testing.T) {
	p := compilePlan(t, reportBlueprint())
	g := activeGate(t, p, phaseAlpha)

	roster := []sched.RosterSlot{
		{Capability: "implementation", Capacity: 2, Running: 1, Queued: 1},
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tickets := []*sched.Ticket{
		{
			ID: "tkt-00000001", TaskID: domain.TaskID(taskFeed),
			Capability: "implementation", State: sched.TicketRunning,
			SubmittedAt: now,
		},
	}

	snap := Build(p, g, roster, tickets)

	if snap.Control.State != "phase_active" || snap.Control.ActivePhase != phaseAlpha {
		t.Errorf("control = %+v, want phase_active (%s)", snap.Control, phaseAlpha)
	}

	active := 0
	for _, ph := range snap.Phases {
		if ph.Status == "active" {
			active++
		}
	}
	if active != 1 {
		t.Errorf("%d phases active in projection, want exactly 1", active)
	}

	if len(snap.Tasks) != 3 {
		t.Fatalf("projected %d tasks, want 3", len(snap.Tasks))
	}
	var feed *store.TaskStatus
	for i := range snap.Tasks {
		if snap.Tasks[i].ID == taskFeed {
			feed = &snap.Tasks[i]
		}
	}
	if feed == nil {
		t.Fatal("feed task missing from projection")
	}
	if feed.TicketID != "tkt-00000001" {
		t.Errorf("feed TicketID = %q, want tkt-00000001", feed.TicketID)
	}

	if len(snap.Roster) != 1 || snap.Roster[0].Capability != "implementation" {
		t.Errorf("roster = %+v", snap.Roster)
	}
	if len(snap.Tickets) != 1 || snap.Tickets[0].State != "running" {
		t.Errorf("tickets = %+v", snap.Tickets)
	}
}

func TestBuildWithoutPlan(t *testing.T) {
	g, err := gate.New(nopLog{})
	if err != nil {
		t.Fatalf("gate.New() error = %v", err)
	}

	snap := Build(nil, g, nil, nil)
	if snap.Control.State != "blueprint" {
		t.Errorf("state = %q, want blueprint", snap.Control.State)
	}
	if len(snap.Phases) != 0 || len(snap.Tasks) != 0 {
		t.Errorf("empty project projected content: %+v", snap)
	}
	if snap.Progress.Overall != 0 {
		t.Errorf("Overall = %d, want 0", snap.Progress.Overall)
	}
}

func TestBuildProgressRounding(t *testing.T) {
	bp := &blueprint.Blueprint{
		Project: "thirds",
		Phases: []blueprint.PhaseSpec{
			{
				Name: "Only",
				Deliverables: []blueprint.DeliverableSpec{
					{Name: "One", Acceptance: []string{"a"}, Tasks: []blueprint.TaskSpec{
						{Name: "Do one", Capability: "implementation", Scope: []string{"a"}}}},
					{Name: "Two", Acceptance: []string{"b"}, Tasks: []blueprint.TaskSpec{
						{Name: "Do two", Capability: "implementation", Scope: []string{"b"}}}},
					{Name: "Three", Acceptance: []string{"c"}, Tasks: []blueprint.TaskSpec{
						{Name: "Do three", Capability: "implementation", Scope: []string{"c"}}}},
				},
			},
		},
	}
	p := compilePlan(t, bp)
	g := activeGate(t, p, "phase-1-only")

	p.Tasks[0].Status = plan.TaskComplete
	p.Refresh()
	snap := Build(p, g, nil, nil)
	if snap.Progress.Overall != 33 {
		t.Errorf("1/3 complete: Overall = %d, want 33", snap.Progress.Overall)
	}

	p.Tasks[1].Status = plan.TaskComplete
	p.Refresh()
	snap = Build(p, g, nil, nil)
	if snap.Progress.Overall != 67 {
		t.Errorf("2/3 complete: Overall = %d, want 67", snap.Progress.Overall)
	}
	if len(snap.Progress.Phases) != 1 || snap.Progress.Phases[0].Percent != 67 {
		t.Errorf("phase progress = %+v, want 67%%", snap.Progress.Phases)
	}
}

func TestBuildTodoOrdering(t *testing.T) {
	p := compilePlan(t, reportBlueprint())
	g := activeGate(t, p, phaseAlpha)

	p.TaskByID(taskFeed).Status = plan.TaskBlocked
	p.TaskByID(taskFeed).Reason = "schema dispute"
	p.TaskByID(taskRows).Status = plan.TaskNeedsClarification
	p.TaskByID(taskRows).Reason = "which encoding?"
	// taskCLI stays queued.
	p.Refresh()

	snap := Build(p, g, nil, nil)
	if len(snap.Todo) != 3 {
		t.Fatalf("todo has %d items, want 3", len(snap.Todo))
	}
	wantOrder := []string{taskCLI, taskRows, taskFeed}
	for i, want := range wantOrder {
		if snap.Todo[i].TaskID != want {
			t.Errorf("todo[%d] = %s, want %s", i, snap.Todo[i].TaskID, want)
		}
	}
	if snap.Todo[2].Reason != "schema dispute" {
		t.Errorf("blocked reason = %q, want schema dispute", snap.Todo[2].Reason)
	}
}

func TestBuildQueuedOrderedByPhaseOrdinal(t *testing.T) {
	p := compilePlan(t, reportBlueprint())
	g := activeGate(t, p, phaseAlpha)

	// All three queued: alpha tasks must precede the beta task.
	snap := Build(p, g, nil, nil)
	if len(snap.Todo) != 3 {
		t.Fatalf("todo has %d items, want 3", len(snap.Todo))
	}
	if snap.Todo[0].TaskID != taskFeed || snap.Todo[1].TaskID != taskRows || snap.Todo[2].TaskID != taskCLI {
		t.Errorf("todo order = %v", snap.Todo)
	}
	if snap.Todo[0].PhaseID != phaseAlpha || snap.Todo[2].PhaseID != phaseBeta {
		t.Errorf("phase ids = %s, %s", snap.Todo[0].PhaseID, snap.Todo[2].PhaseID)
	}
}

func TestRenderText(t *testing.T) {
	p := compilePlan(t, reportBlueprint())
	g := activeGate(t, p, phaseAlpha)
	roster := []sched.RosterSlot{
		{Capability: "implementation", Capacity: 2, Running: 0, Queued: 0},
	}

	out := RenderText(Build(p, g, roster, nil))

	for _, want := range []string{
		"Foreman Status",
		"phase_active (" + phaseAlpha + ")",
		"Workers",
		"implementation",
		"Todo",
		"Next:",
		"foreman submit",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q\n%s", want, out)
		}
	}
}

func TestRenderTextSuggestsGateWhenPhaseDone(t *testing.T) {
	p := compilePlan(t, reportBlueprint())
	g := activeGate(t, p, phaseAlpha)
	p.TaskByID(taskFeed).Status = plan.TaskComplete
	p.TaskByID(taskRows).Status = plan.TaskComplete
	p.Refresh()

	out := RenderText(Build(p, g, nil, nil))
	if !strings.Contains(out, "foreman approve phase") {
		t.Errorf("output does not point at the phase gate:\n%s", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	p := compilePlan(t, reportBlueprint())
	g := activeGate(t, p, phaseAlpha)
	p.TaskByID(taskFeed).Status = plan.TaskBlocked
	p.TaskByID(taskFeed).Reason = "schema dispute"
	p.Refresh()

	snap := Build(p, g, nil, nil)
	snap.WrittenAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := RenderMarkdown(snap)

	for _, want := range []string{
		"# Project Status",
		"**Control state:** phase_active (" + phaseAlpha + ")",
		"| 1 | Alpha | active | 0/1 |",
		"- [ ] `" + taskFeed + "` (blocked: schema dispute)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
}

func TestRenderDecisionsMarkdown(t *testing.T) {
	decisions := store.NewDecisionLog([]store.Entry{
		{
			ID: "entry-1", Seq: 1,
			Time:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			Actor:    "lead",
			Title:    "Plan approved",
			Decision: "Execution begins with phase 1.",
			Status:   store.StatusAccepted,
			Transition: &store.Transition{
				From: "awaiting_plan_approval", To: "phase_active",
				Event: "approve_plan", Phase: phaseAlpha,
			},
			Alternatives: []string{"send the plan back for a smaller phase 1"},
			Consequences: []string{"phase-1-alpha is now active"},
		},
	})

	out := RenderDecisionsMarkdown(decisions)
	for _, want := range []string{
		"# Decision Log",
		"## 1. Plan approved",
		"- Actor: lead",
		"- Transition: awaiting_plan_approval -> phase_active (" + phaseAlpha + ")",
		"Execution begins with phase 1.",
		"- Considered: send the plan back for a smaller phase 1",
		"- phase-1-alpha is now active",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("decisions markdown missing %q\n%s", want, out)
		}
	}
}

func TestRenderDecisionsMarkdownEmpty(t *testing.T) {
	out := RenderDecisionsMarkdown(store.NewDecisionLog(nil))
	if !strings.Contains(out, "No decisions recorded yet") {
		t.Errorf("empty log output = %q", out)
	}
}
