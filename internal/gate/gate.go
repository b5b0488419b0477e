package gate

import (
	"fmt"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/store"
)

// State is the control state of the whole project. The two phase-scoped
// states carry the phase they refer to alongside.
type State string

const (
	StateBlueprint             State = "blueprint"
	StatePlanning              State = "planning"
	StateAwaitingPlanApproval  State = "awaiting_plan_approval"
	StatePhaseActive           State = "phase_active"
	StateAwaitingPhaseApproval State = "awaiting_phase_approval"
	StateComplete              State = "complete"
)

// Valid reports whether the state is a known control state
func (s State) Valid() bool {
	switch s {
	case StateBlueprint, StatePlanning, StateAwaitingPlanApproval,
		StatePhaseActive, StateAwaitingPhaseApproval, StateComplete:
		return true
	}
	return false
}

// Phased reports whether the state carries a phase parameter
func (s State) Phased() bool {
	return s == StatePhaseActive || s == StateAwaitingPhaseApproval
}

// Event names recorded in decision-log transitions. Replay after a crash
// switches on these.
const (
	EventBlueprintReady = "blueprint_ready"
	EventPlanCompiled   = "plan_compiled"
	EventApprovePlan    = "approve_plan"
	EventRejectPlan     = "reject_plan"
	EventPhaseDone      = "phase_done"
	EventApprovePhase   = "approve_phase"
	EventRejectPhase    = "reject_phase"
)

// Appender is the durable sink for decision entries. *store.Store
// satisfies it; tests substitute a recorder.
type Appender interface {
	AppendDecision(*store.Entry) error
}

// Gate is the approval state machine. Every transition appends exactly
// one decision entry before it takes effect; if the entry cannot be
// durably appended the transition is rolled back and the control state
// is unchanged. Approvals and rejections arrive as typed events, never
// inferred from any channel.
type Gate struct {
	log   Appender
	plan  *plan.Plan
	state State
	phase domain.PhaseID
}

// New starts a gate at the blueprint state with no plan attached
func New(log Appender) (*Gate, error) {
	if log == nil {
		return nil, fmt.Errorf("decision log cannot be nil")
	}
	return &Gate{log: log, state: StateBlueprint}, nil
}

// Restore places the gate in a previously persisted state. Resume uses
// it before replaying the decision-log tail.
func (g *Gate) Restore(p *plan.Plan, state State, phase domain.PhaseID) error {
	if !state.Valid() {
		return fmt.Errorf("unknown control state %q", state)
	}
	if p == nil && state != StateBlueprint && state != StatePlanning {
		return fmt.Errorf("state %s requires a plan", state)
	}
	if state.Phased() {
		if p.PhaseByID(phase) == nil {
			return fmt.Errorf("state %s names phase %s, which is not in the plan", state, phase)
		}
	} else if phase != "" {
		return fmt.Errorf("state %s does not carry a phase, got %s", state, phase)
	}

	g.plan = p
	g.state = state
	g.phase = phase
	return nil
}

// State returns the current control state
func (g *Gate) State() State {
	return g.state
}

// Phase returns the phase parameter of a phased state, empty otherwise
func (g *Gate) Phase() domain.PhaseID {
	return g.phase
}

// Plan returns the plan the gate governs, nil before compilation
func (g *Gate) Plan() *plan.Plan {
	return g.plan
}

// Describe renders the control state for status output
func (g *Gate) Describe() string {
	if g.state.Phased() {
		return fmt.Sprintf("%s (%s)", g.state, g.phase)
	}
	return string(g.state)
}

func (g *Gate) require(event string, allowed ...State) error {
	for _, s := range allowed {
		if g.state == s {
			return nil
		}
	}
	return &StateError{Current: g.state, Event: event}
}

// BlueprintReady records that the blueprint was judged unambiguous and
// planning may begin. The judgment itself happens outside; the gate only
// records it.
func (g *Gate) BlueprintReady(actor, note string) error {
	if err := g.require(EventBlueprintReady, StateBlueprint); err != nil {
		return err
	}

	e := &store.Entry{
		Actor:    actor,
		Title:    "Blueprint accepted for planning",
		Context:  note,
		Decision: "The blueprint is unambiguous; compile it into a plan.",
		Status:   store.StatusAccepted,
		Transition: &store.Transition{
			From:  string(StateBlueprint),
			To:    string(StatePlanning),
			Event: EventBlueprintReady,
			Note:  note,
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.state = StatePlanning
	return nil
}

// PlanCompiled attaches a freshly compiled plan and moves to awaiting
// plan approval.
func (g *Gate) PlanCompiled(p *plan.Plan, actor string) error {
	if err := g.require(EventPlanCompiled, StatePlanning); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("compiled plan cannot be nil")
	}

	e := &store.Entry{
		Actor: actor,
		Title: "Plan compiled",
		Decision: fmt.Sprintf("Compiled %d phases, %d deliverables, %d tasks; awaiting plan approval.",
			len(p.Phases), len(p.Deliverables), len(p.Tasks)),
		Status: store.StatusAccepted,
		Transition: &store.Transition{
			From:  string(StatePlanning),
			To:    string(StateAwaitingPlanApproval),
			Event: EventPlanCompiled,
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.plan = p
	g.state = StateAwaitingPlanApproval
	return nil
}

// ApprovePlan activates the first phase on an explicit approval
func (g *Gate) ApprovePlan(actor, note string) error {
	if err := g.require(EventApprovePlan, StateAwaitingPlanApproval); err != nil {
		return err
	}
	first := g.plan.ActivePhase()
	if first == nil {
		return fmt.Errorf("compiled plan has no active phase to start")
	}

	e := &store.Entry{
		Actor:    actor,
		Title:    "Plan approved",
		Context:  note,
		Decision: fmt.Sprintf("Begin execution with phase %s (%s).", first.ID, first.Name),
		Status:   store.StatusAccepted,
		Transition: &store.Transition{
			From:  string(StateAwaitingPlanApproval),
			To:    string(StatePhaseActive),
			Event: EventApprovePlan,
			Phase: first.ID.String(),
			Note:  note,
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.state = StatePhaseActive
	g.phase = first.ID
	return nil
}

// RejectPlan returns to planning. The compiled plan is discarded; the
// blueprint is edited outside and compiled again.
func (g *Gate) RejectPlan(actor, reason string) error {
	if err := g.require(EventRejectPlan, StateAwaitingPlanApproval); err != nil {
		return err
	}

	e := &store.Entry{
		Actor:    actor,
		Title:    "Plan rejected",
		Context:  reason,
		Decision: "Discard the compiled plan and return to planning.",
		Status:   store.StatusRejected,
		Transition: &store.Transition{
			From:  string(StateAwaitingPlanApproval),
			To:    string(StatePlanning),
			Event: EventRejectPlan,
			Note:  reason,
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.plan = nil
	g.state = StatePlanning
	return nil
}

// PhaseDone moves the active phase to awaiting approval once every
// deliverable in it is complete. A phase with open deliverables is
// refused with the gaps named.
func (g *Gate) PhaseDone(actor string) error {
	if err := g.require(EventPhaseDone, StatePhaseActive); err != nil {
		return err
	}
	if err := g.plan.CheckReady(g.phase); err != nil {
		return err
	}
	phase := g.plan.PhaseByID(g.phase)

	e := &store.Entry{
		Actor:    actor,
		Title:    fmt.Sprintf("Phase %s ready for review", g.phase),
		Decision: fmt.Sprintf("Every deliverable in %s is complete; awaiting phase approval.", phase.Name),
		Status:   store.StatusAccepted,
		Transition: &store.Transition{
			From:  string(StatePhaseActive),
			To:    string(StateAwaitingPhaseApproval),
			Event: EventPhaseDone,
			Phase: g.phase.String(),
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.state = StateAwaitingPhaseApproval
	return nil
}

// ApprovePhase accepts the awaiting phase and activates its successor,
// or completes the project after the last phase. The plan advances and
// the decision is appended as one unit; an append failure rolls the
// advance back.
func (g *Gate) ApprovePhase(actor, note string) error {
	if err := g.require(EventApprovePhase, StateAwaitingPhaseApproval); err != nil {
		return err
	}

	approved := g.plan.PhaseByID(g.phase)
	if err := g.plan.Advance(g.phase); err != nil {
		return err
	}
	next := g.plan.ActivePhase()

	to, targetPhase := StateComplete, domain.PhaseID("")
	decision := "Every phase is complete; the project is done."
	if next != nil {
		to, targetPhase = StatePhaseActive, next.ID
		decision = fmt.Sprintf("Phase %s accepted; begin phase %s (%s).", g.phase, next.ID, next.Name)
	}

	e := &store.Entry{
		Actor:    actor,
		Title:    fmt.Sprintf("Phase %s approved", g.phase),
		Context:  note,
		Decision: decision,
		Status:   store.StatusAccepted,
		Transition: &store.Transition{
			From:  string(StateAwaitingPhaseApproval),
			To:    string(to),
			Event: EventApprovePhase,
			Phase: targetPhase.String(),
			Note:  note,
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		approved.Status = plan.PhaseActive
		if next != nil {
			next.Status = plan.PhasePlanned
		}
		g.plan.Refresh()
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.state = to
	g.phase = targetPhase
	return nil
}

// RejectPhase returns the awaiting phase to active. When a remediation
// deliverable is given it is appended to the phase first; a remediation
// that fails validation aborts the whole rejection. The plan change is
// rolled back if the decision cannot be appended.
func (g *Gate) RejectPhase(actor, reason string, remediation *blueprint.DeliverableSpec) error {
	if err := g.require(EventRejectPhase, StateAwaitingPhaseApproval); err != nil {
		return err
	}

	var consequences []string
	nDeliverables, nTasks := len(g.plan.Deliverables), len(g.plan.Tasks)
	if remediation != nil {
		d, err := g.plan.AppendDeliverable(g.phase, *remediation)
		if err != nil {
			return fmt.Errorf("remediation rejected, phase still awaiting approval: %w", err)
		}
		consequences = append(consequences,
			fmt.Sprintf("remediation deliverable %s appended with %d task(s)", d.ID, len(d.TaskIDs)))
	}

	e := &store.Entry{
		Actor:        actor,
		Title:        fmt.Sprintf("Phase %s rejected", g.phase),
		Context:      reason,
		Decision:     fmt.Sprintf("Phase %s returns to active for remediation.", g.phase),
		Consequences: consequences,
		Status:       store.StatusRejected,
		Transition: &store.Transition{
			From:  string(StateAwaitingPhaseApproval),
			To:    string(StatePhaseActive),
			Event: EventRejectPhase,
			Phase: g.phase.String(),
			Note:  reason,
		},
	}
	if err := g.log.AppendDecision(e); err != nil {
		g.plan.Deliverables = g.plan.Deliverables[:nDeliverables]
		g.plan.Tasks = g.plan.Tasks[:nTasks]
		g.plan.Refresh()
		return fmt.Errorf("transition not recorded, control state unchanged: %w", err)
	}

	g.state = StatePhaseActive
	return nil
}

// ReplayTransition re-applies a logged transition that a stale snapshot
// does not reflect. It is idempotent: a transition already reflected in
// the current state is a no-op. Phase approvals re-run the plan advance
// when the plan file predates the log entry.
func (g *Gate) ReplayTransition(t *store.Transition) error {
	if t == nil {
		return fmt.Errorf("transition cannot be nil")
	}
	to := State(t.To)
	if !to.Valid() {
		return fmt.Errorf("logged transition names unknown state %q", t.To)
	}
	targetPhase := domain.PhaseID(t.Phase)

	if g.state == to && g.phase == targetPhase {
		return nil
	}
	if string(g.state) != t.From {
		return fmt.Errorf("replay mismatch: log says %s -> %s but control state is %s",
			t.From, t.To, g.Describe())
	}

	if t.Event == EventApprovePhase && g.plan != nil {
		if ph := g.plan.PhaseByID(g.phase); ph != nil && ph.Status == plan.PhaseActive {
			if err := g.plan.Advance(g.phase); err != nil {
				return fmt.Errorf("replaying %s: %w", t.Event, err)
			}
		}
	}

	g.state = to
	g.phase = targetPhase
	return nil
}
