package gate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	foremanerrors "github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/store"
)

const (
	phaseAlpha = domain.PhaseID("phase-1-alpha")
	phaseBeta  = domain.PhaseID("phase-2-beta")
)

// logRecorder collects appended entries in memory and can be told to
// refuse writes, standing in for a failing disk.
type logRecorder struct {
	entries []*store.Entry
	fail    bool
}

func (r *logRecorder) AppendDecision(e *store.Entry) error {
	if r.fail {
		return fmt.Errorf("append refused")
	}
	e.Seq = uint64(len(r.entries) + 1)
	r.entries = append(r.entries, e)
	return nil
}

func (r *logRecorder) last(t *testing.T) *store.Entry {
	t.Helper()
	if len(r.entries) == 0 {
		t.Fatal("no entries appended")
	}
	return r.entries[len(r.entries)-1]
}

func gateBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		Project: "gate-demo",
		Phases: []blueprint.PhaseSpec{
			{
				Name: "Alpha",
				Deliverables: []blueprint.DeliverableSpec{
					{
						Name:       "Core",
						Acceptance: []string{"core behaves"},
						Tasks: []blueprint.TaskSpec{
							{Name: "Build core", Capability: "implementation", Scope: []string{"internal/core"}},
						},
					},
				},
			},
			{
				Name: "Beta",
				Deliverables: []blueprint.DeliverableSpec{
					{
						Name:       "Surface",
						Acceptance: []string{"surface behaves"},
						Tasks: []blueprint.TaskSpec{
							{Name: "Build surface", Capability: "implementation", Scope: []string{"internal/surface"}},
						},
					},
				},
			},
		},
	}
}

func compiledPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := plan.Compile(gateBlueprint())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return p
}

func completePhaseTasks(p *plan.Plan, phaseID domain.PhaseID) {
	for _, task := range p.TasksInPhase(phaseID) {
		task.Status = plan.TaskComplete
	}
	p.Refresh()
}

// atAwaitingPhase walks a fresh gate to awaiting_phase_approval on the
// first phase.
func atAwaitingPhase(t *testing.T) (*Gate, *plan.Plan, *logRecorder) {
	t.Helper()
	rec := &logRecorder{}
	g, err := New(rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p := compiledPlan(t)

	if err := g.BlueprintReady("lead", "scope settled"); err != nil {
		t.Fatalf("BlueprintReady() error = %v", err)
	}
	if err := g.PlanCompiled(p, "lead"); err != nil {
		t.Fatalf("PlanCompiled() error = %v", err)
	}
	if err := g.ApprovePlan("lead", "looks right"); err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	completePhaseTasks(p, phaseAlpha)
	if err := g.PhaseDone("lead"); err != nil {
		t.Fatalf("PhaseDone() error = %v", err)
	}
	return g, p, rec
}

func TestFullLifecycle(t *testing.T) {
	rec := &logRecorder{}
	g, err := New(rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.State() != StateBlueprint {
		t.Fatalf("initial state = %s, want blueprint", g.State())
	}

	if err := g.BlueprintReady("lead", ""); err != nil {
		t.Fatalf("BlueprintReady() error = %v", err)
	}
	if g.State() != StatePlanning {
		t.Errorf("state = %s, want planning", g.State())
	}

	p := compiledPlan(t)
	if err := g.PlanCompiled(p, "lead"); err != nil {
		t.Fatalf("PlanCompiled() error = %v", err)
	}
	if g.State() != StateAwaitingPlanApproval {
		t.Errorf("state = %s, want awaiting_plan_approval", g.State())
	}

	if err := g.ApprovePlan("lead", ""); err != nil {
		t.Fatalf("ApprovePlan() error = %v", err)
	}
	if g.State() != StatePhaseActive || g.Phase() != phaseAlpha {
		t.Errorf("state = %s, want phase_active on %s", g.Describe(), phaseAlpha)
	}
	if got := g.Describe(); got != "phase_active (phase-1-alpha)" {
		t.Errorf("Describe() = %q", got)
	}

	completePhaseTasks(p, phaseAlpha)
	if err := g.PhaseDone("lead"); err != nil {
		t.Fatalf("PhaseDone() error = %v", err)
	}
	if g.State() != StateAwaitingPhaseApproval || g.Phase() != phaseAlpha {
		t.Errorf("state = %s, want awaiting_phase_approval on %s", g.Describe(), phaseAlpha)
	}

	if err := g.ApprovePhase("lead", "accepted"); err != nil {
		t.Fatalf("ApprovePhase() error = %v", err)
	}
	if g.State() != StatePhaseActive || g.Phase() != phaseBeta {
		t.Errorf("state = %s, want phase_active on %s", g.Describe(), phaseBeta)
	}
	if p.PhaseByID(phaseAlpha).Status != plan.PhaseComplete {
		t.Error("approved phase should be complete in the plan")
	}

	completePhaseTasks(p, phaseBeta)
	if err := g.PhaseDone("lead"); err != nil {
		t.Fatalf("PhaseDone() error = %v", err)
	}
	if err := g.ApprovePhase("lead", ""); err != nil {
		t.Fatalf("ApprovePhase() error = %v", err)
	}
	if g.State() != StateComplete || g.Phase() != "" {
		t.Errorf("state = %s, want complete with no phase", g.Describe())
	}
	if !p.Complete() {
		t.Error("plan should be complete after the last approval")
	}

	// One decision entry per transition, each carrying the transition.
	if len(rec.entries) != 7 {
		t.Fatalf("appended %d entries, want 7", len(rec.entries))
	}
	for i, e := range rec.entries {
		if e.Transition == nil {
			t.Errorf("entry %d has no transition", i)
		}
	}
	lastTransit := rec.last(t).Transition
	if lastTransit.To != string(StateComplete) || lastTransit.Phase != "" {
		t.Errorf("final transition = %+v, want to complete with no phase", lastTransit)
	}
}

func TestEventsRefusedInWrongState(t *testing.T) {
	p := compiledPlan(t)

	tests := []struct {
		name     string
		fire     func(g *Gate) error
		state    State
		phase    domain.PhaseID
		wantCode foremanerrors.ErrorCode
	}{
		{
			name:     "approve plan before compilation",
			fire:     func(g *Gate) error { return g.ApprovePlan("lead", "") },
			state:    StateBlueprint,
			wantCode: foremanerrors.ErrCodeGateNotAwaiting,
		},
		{
			name:     "blueprint ready twice",
			fire:     func(g *Gate) error { return g.BlueprintReady("lead", "") },
			state:    StatePlanning,
			wantCode: foremanerrors.ErrCodeGateInvalidEvent,
		},
		{
			name:     "phase done while awaiting plan approval",
			fire:     func(g *Gate) error { return g.PhaseDone("lead") },
			state:    StateAwaitingPlanApproval,
			wantCode: foremanerrors.ErrCodeGateInvalidEvent,
		},
		{
			name:     "reject phase while active",
			fire:     func(g *Gate) error { return g.RejectPhase("lead", "nope", nil) },
			state:    StatePhaseActive,
			phase:    phaseAlpha,
			wantCode: foremanerrors.ErrCodeGateNotAwaiting,
		},
		{
			name:     "approve phase after completion",
			fire:     func(g *Gate) error { return g.ApprovePhase("lead", "") },
			state:    StateComplete,
			wantCode: foremanerrors.ErrCodeGateComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logRecorder{}
			g, err := New(rec)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			var restorePlan *plan.Plan
			if tt.state != StateBlueprint && tt.state != StatePlanning {
				restorePlan = p
			}
			if err := g.Restore(restorePlan, tt.state, tt.phase); err != nil {
				t.Fatalf("Restore() error = %v", err)
			}

			err = tt.fire(g)
			var se *StateError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StateError", err)
			}
			if se.ErrorCode() != tt.wantCode {
				t.Errorf("ErrorCode() = %s, want %s", se.ErrorCode(), tt.wantCode)
			}
			if len(rec.entries) != 0 {
				t.Errorf("refused event appended %d entries, want none", len(rec.entries))
			}
			if g.State() != tt.state {
				t.Errorf("state moved to %s after a refused event", g.State())
			}
		})
	}
}

func TestPhaseDoneRequiresCompleteDeliverables(t *testing.T) {
	rec := &logRecorder{}
	g, _ := New(rec)
	p := compiledPlan(t)
	g.BlueprintReady("lead", "")
	g.PlanCompiled(p, "lead")
	g.ApprovePlan("lead", "")
	appendedSoFar := len(rec.entries)

	err := g.PhaseDone("lead")
	var notReady *plan.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("PhaseDone() error = %v, want *plan.NotReadyError", err)
	}
	if g.State() != StatePhaseActive {
		t.Errorf("state = %s, want phase_active after refusal", g.State())
	}
	if len(rec.entries) != appendedSoFar {
		t.Error("refused phase done must not append an entry")
	}
}

func TestRejectPlanReturnsToPlanning(t *testing.T) {
	rec := &logRecorder{}
	g, _ := New(rec)
	g.BlueprintReady("lead", "")
	g.PlanCompiled(compiledPlan(t), "lead")

	if err := g.RejectPlan("lead", "phases are too coarse"); err != nil {
		t.Fatalf("RejectPlan() error = %v", err)
	}
	if g.State() != StatePlanning {
		t.Errorf("state = %s, want planning", g.State())
	}
	if g.Plan() != nil {
		t.Error("rejected plan should be discarded")
	}
	e := rec.last(t)
	if e.Status != store.StatusRejected {
		t.Errorf("entry status = %s, want rejected", e.Status)
	}
	if e.Transition.Note != "phases are too coarse" {
		t.Errorf("transition note = %q, want the rejection reason", e.Transition.Note)
	}

	// A fresh compilation is accepted again.
	if err := g.PlanCompiled(compiledPlan(t), "lead"); err != nil {
		t.Fatalf("PlanCompiled() after rejection error = %v", err)
	}
	if g.State() != StateAwaitingPlanApproval {
		t.Errorf("state = %s, want awaiting_plan_approval", g.State())
	}
}

func TestRejectPhaseAppendsRemediation(t *testing.T) {
	g, p, rec := atAwaitingPhase(t)
	deliverablesBefore := len(p.Deliverables)

	remediation := &blueprint.DeliverableSpec{
		Name:       "Hardening fixes",
		Acceptance: []string{"review findings addressed"},
		Tasks: []blueprint.TaskSpec{
			{Name: "Patch core validation", Capability: "implementation", Scope: []string{"internal/core"}},
		},
	}
	if err := g.RejectPhase("lead", "validation gaps found", remediation); err != nil {
		t.Fatalf("RejectPhase() error = %v", err)
	}

	if g.State() != StatePhaseActive || g.Phase() != phaseAlpha {
		t.Errorf("state = %s, want phase_active on %s", g.Describe(), phaseAlpha)
	}
	if p.PhaseByID(phaseAlpha).Status != plan.PhaseActive {
		t.Error("rejected phase must stay active in the plan")
	}
	if len(p.Deliverables) != deliverablesBefore+1 {
		t.Fatalf("deliverables = %d, want %d", len(p.Deliverables), deliverablesBefore+1)
	}

	e := rec.last(t)
	if e.Status != store.StatusRejected {
		t.Errorf("entry status = %s, want rejected", e.Status)
	}
	if len(e.Consequences) != 1 || !strings.Contains(e.Consequences[0], "hardening-fixes") {
		t.Errorf("consequences = %v, want the remediation deliverable named", e.Consequences)
	}

	// The remediation gates the next review round.
	err := g.PhaseDone("lead")
	var notReady *plan.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("PhaseDone() error = %v, want not ready until remediation done", err)
	}
	completePhaseTasks(p, phaseAlpha)
	if err := g.PhaseDone("lead"); err != nil {
		t.Fatalf("PhaseDone() after remediation error = %v", err)
	}
}

func TestRejectPhaseWithoutRemediation(t *testing.T) {
	g, p, _ := atAwaitingPhase(t)
	deliverablesBefore := len(p.Deliverables)

	if err := g.RejectPhase("lead", "needs another look", nil); err != nil {
		t.Fatalf("RejectPhase() error = %v", err)
	}
	if g.State() != StatePhaseActive {
		t.Errorf("state = %s, want phase_active", g.State())
	}
	if len(p.Deliverables) != deliverablesBefore {
		t.Error("rejection without remediation must not change the plan")
	}
}

func TestRejectPhaseInvalidRemediationAborts(t *testing.T) {
	g, p, rec := atAwaitingPhase(t)
	entriesBefore := len(rec.entries)
	deliverablesBefore := len(p.Deliverables)

	bad := &blueprint.DeliverableSpec{Name: "No criteria"}
	err := g.RejectPhase("lead", "gaps", bad)
	if err == nil {
		t.Fatal("RejectPhase() expected error for invalid remediation")
	}
	if g.State() != StateAwaitingPhaseApproval {
		t.Errorf("state = %s, want awaiting_phase_approval after abort", g.State())
	}
	if len(rec.entries) != entriesBefore {
		t.Error("aborted rejection must not append an entry")
	}
	if len(p.Deliverables) != deliverablesBefore {
		t.Error("aborted rejection must not change the plan")
	}
}

func TestAppendFailureLeavesStateUnchanged(t *testing.T) {
	t.Run("blueprint ready", func(t *testing.T) {
		rec := &logRecorder{fail: true}
		g, _ := New(rec)
		if err := g.BlueprintReady("lead", ""); err == nil {
			t.Fatal("BlueprintReady() expected append error")
		}
		if g.State() != StateBlueprint {
			t.Errorf("state = %s, want blueprint", g.State())
		}
	})

	t.Run("approve phase rolls back the advance", func(t *testing.T) {
		g, p, rec := atAwaitingPhase(t)
		rec.fail = true

		if err := g.ApprovePhase("lead", ""); err == nil {
			t.Fatal("ApprovePhase() expected append error")
		}
		if g.State() != StateAwaitingPhaseApproval || g.Phase() != phaseAlpha {
			t.Errorf("state = %s, want awaiting_phase_approval on %s", g.Describe(), phaseAlpha)
		}
		if p.PhaseByID(phaseAlpha).Status != plan.PhaseActive {
			t.Errorf("phase alpha = %s, want active after rollback", p.PhaseByID(phaseAlpha).Status)
		}
		if p.PhaseByID(phaseBeta).Status != plan.PhasePlanned {
			t.Errorf("phase beta = %s, want planned after rollback", p.PhaseByID(phaseBeta).Status)
		}

		// The same approval succeeds once the log recovers.
		rec.fail = false
		if err := g.ApprovePhase("lead", ""); err != nil {
			t.Fatalf("ApprovePhase() after recovery error = %v", err)
		}
		if g.Phase() != phaseBeta {
			t.Errorf("phase = %s, want %s", g.Phase(), phaseBeta)
		}
	})

	t.Run("reject phase rolls back the remediation", func(t *testing.T) {
		g, p, rec := atAwaitingPhase(t)
		rec.fail = true
		deliverablesBefore := len(p.Deliverables)
		tasksBefore := len(p.Tasks)

		remediation := &blueprint.DeliverableSpec{
			Name:       "Fixes",
			Acceptance: []string{"fixed"},
			Tasks: []blueprint.TaskSpec{
				{Name: "Fix it", Capability: "implementation", Scope: []string{"internal/core"}},
			},
		}
		if err := g.RejectPhase("lead", "gaps", remediation); err == nil {
			t.Fatal("RejectPhase() expected append error")
		}
		if g.State() != StateAwaitingPhaseApproval {
			t.Errorf("state = %s, want awaiting_phase_approval", g.State())
		}
		if len(p.Deliverables) != deliverablesBefore || len(p.Tasks) != tasksBefore {
			t.Error("remediation must be rolled back when the entry cannot be appended")
		}
	})
}

func TestRestore(t *testing.T) {
	p := compiledPlan(t)

	tests := []struct {
		name   string
		plan   *plan.Plan
		state  State
		phase  domain.PhaseID
		errMsg string
	}{
		{name: "blueprint without plan", state: StateBlueprint},
		{name: "planning without plan", state: StatePlanning},
		{name: "awaiting plan approval", plan: p, state: StateAwaitingPlanApproval},
		{name: "phase active", plan: p, state: StatePhaseActive, phase: phaseAlpha},
		{name: "awaiting phase approval", plan: p, state: StateAwaitingPhaseApproval, phase: phaseAlpha},
		{name: "complete", plan: p, state: StateComplete},
		{
			name:   "unknown state",
			state:  State("limbo"),
			errMsg: "unknown control state",
		},
		{
			name:   "awaiting plan approval without plan",
			state:  StateAwaitingPlanApproval,
			errMsg: "requires a plan",
		},
		{
			name:   "phase not in plan",
			plan:   p,
			state:  StatePhaseActive,
			phase:  "phase-9-ghost",
			errMsg: "not in the plan",
		},
		{
			name:   "phase on unphased state",
			plan:   p,
			state:  StateComplete,
			phase:  phaseAlpha,
			errMsg: "does not carry a phase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := New(&logRecorder{})
			err := g.Restore(tt.plan, tt.state, tt.phase)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("Restore() error = %v", err)
				}
				if g.State() != tt.state || g.Phase() != tt.phase {
					t.Errorf("restored to %s, want %s on %q", g.Describe(), tt.state, tt.phase)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Restore() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestReplayTransition(t *testing.T) {
	// Snapshot said awaiting approval on alpha, but the log carries the
	// approval. The plan file also predates it, so replay re-advances.
	p := compiledPlan(t)
	completePhaseTasks(p, phaseAlpha)
	g, _ := New(&logRecorder{})
	if err := g.Restore(p, StateAwaitingPhaseApproval, phaseAlpha); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	approval := &store.Transition{
		From:  string(StateAwaitingPhaseApproval),
		To:    string(StatePhaseActive),
		Event: EventApprovePhase,
		Phase: phaseBeta.String(),
	}
	if err := g.ReplayTransition(approval); err != nil {
		t.Fatalf("ReplayTransition() error = %v", err)
	}
	if g.State() != StatePhaseActive || g.Phase() != phaseBeta {
		t.Errorf("state = %s, want phase_active on %s", g.Describe(), phaseBeta)
	}
	if p.PhaseByID(phaseAlpha).Status != plan.PhaseComplete {
		t.Error("replay should advance the plan when the plan file is stale")
	}
	if p.PhaseByID(phaseBeta).Status != plan.PhaseActive {
		t.Error("replay should activate the next phase")
	}

	// Replaying an already-applied transition is a no-op.
	if err := g.ReplayTransition(approval); err != nil {
		t.Fatalf("ReplayTransition() second apply error = %v", err)
	}
	if g.Phase() != phaseBeta {
		t.Errorf("phase = %s after idempotent replay, want %s", g.Phase(), phaseBeta)
	}

	// A tail that does not follow from the current state is corruption.
	stray := &store.Transition{
		From:  string(StateBlueprint),
		To:    string(StatePlanning),
		Event: EventBlueprintReady,
	}
	err := g.ReplayTransition(stray)
	if err == nil || !strings.Contains(err.Error(), "replay mismatch") {
		t.Errorf("ReplayTransition() error = %v, want replay mismatch", err)
	}
}

func TestReplayTransitionSkipsAdvanceWhenPlanCurrent(t *testing.T) {
	// The plan file already reflects the approval; only the control
	// state lags. Replay must not advance twice.
	p := compiledPlan(t)
	completePhaseTasks(p, phaseAlpha)
	if err := p.Advance(phaseAlpha); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	g, _ := New(&logRecorder{})
	if err := g.Restore(p, StateAwaitingPhaseApproval, phaseAlpha); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	err := g.ReplayTransition(&store.Transition{
		From:  string(StateAwaitingPhaseApproval),
		To:    string(StatePhaseActive),
		Event: EventApprovePhase,
		Phase: phaseBeta.String(),
	})
	if err != nil {
		t.Fatalf("ReplayTransition() error = %v", err)
	}
	if g.State() != StatePhaseActive || g.Phase() != phaseBeta {
		t.Errorf("state = %s, want phase_active on %s", g.Describe(), phaseBeta)
	}
	if p.PhaseByID(phaseBeta).Status != plan.PhaseActive {
		t.Error("beta should stay active, not be advanced again")
	}
}
