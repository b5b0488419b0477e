package plan

import (
	"fmt"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
)

// Refresh recomputes every derived field from task statuses. Deliverable
// status is a pure rollup of its tasks, criteria met-flags follow
// deliverable completion, and phase acceptance mirrors the criteria of
// the phase's deliverables. Task statuses are the only stored truth;
// callers change a task and call Refresh.
func (p *Plan) Refresh() {
	for i := range p.Deliverables {
		d := &p.Deliverables[i]
		d.Status = rollup(p.TasksInDeliverable(d.ID))
		met := d.Status == DeliverableComplete
		for c := range d.Done {
			d.Done[c].Met = met
		}
	}

	for i := range p.Phases {
		ph := &p.Phases[i]
		ph.Acceptance = ph.Acceptance[:0]
		for _, d := range p.DeliverablesInPhase(ph.ID) {
			ph.Acceptance = append(ph.Acceptance, d.Done...)
		}
	}
}

// rollup derives a deliverable status from its tasks. A deliverable with
// no tasks is vacuously complete.
func rollup(tasks []*Task) DeliverableStatus {
	if len(tasks) == 0 {
		return DeliverableComplete
	}

	complete := 0
	stuck := false
	started := false
	for _, t := range tasks {
		switch t.Status {
		case TaskComplete:
			complete++
		case TaskBlocked, TaskNeedsClarification:
			stuck = true
		case TaskRunning:
			started = true
		}
	}

	switch {
	case complete == len(tasks):
		return DeliverableComplete
	case stuck:
		return DeliverableBlocked
	case started || complete > 0:
		return DeliverableInProgress
	default:
		return DeliverablePlanned
	}
}

// Advance completes the given phase and activates its successor, or
// leaves every phase complete when the last one finishes. It fails with
// a NotReadyError naming each incomplete deliverable and unmet
// criterion. Only the gate controller calls this; admission and result
// handling never move phases.
func (p *Plan) Advance(phaseID domain.PhaseID) error {
	phase := p.PhaseByID(phaseID)
	if phase == nil {
		return errors.New(errors.ErrCodePhaseUnknown, fmt.Sprintf("unknown phase: %s", phaseID))
	}
	if phase.Status == PhaseComplete {
		return errors.New(errors.ErrCodePhaseUnknown, fmt.Sprintf("phase %s is already complete", phaseID))
	}
	if phase.Status != PhaseActive {
		return errors.New(errors.ErrCodePhaseUnknown, fmt.Sprintf("phase %s is not active", phaseID))
	}

	if err := p.CheckReady(phaseID); err != nil {
		return err
	}

	phase.Status = PhaseComplete
	for i := range p.Phases {
		if p.Phases[i].Ordinal == phase.Ordinal+1 {
			p.Phases[i].Status = PhaseActive
			break
		}
	}
	return nil
}

// CheckReady reports whether every deliverable in the phase is complete.
// Rollups are refreshed first; no status changes otherwise. When the
// phase is not ready it returns a NotReadyError naming each incomplete
// deliverable and unmet criterion.
func (p *Plan) CheckReady(phaseID domain.PhaseID) error {
	if p.PhaseByID(phaseID) == nil {
		return errors.New(errors.ErrCodePhaseUnknown, fmt.Sprintf("unknown phase: %s", phaseID))
	}

	p.Refresh()

	notReady := &NotReadyError{PhaseID: phaseID}
	for _, d := range p.DeliverablesInPhase(phaseID) {
		if d.Status == DeliverableComplete {
			continue
		}
		notReady.IncompleteDeliverables = append(notReady.IncompleteDeliverables, d.ID)
		for _, c := range d.Done {
			if !c.Met {
				notReady.UnmetCriteria = append(notReady.UnmetCriteria, c.Description)
			}
		}
	}
	if len(notReady.IncompleteDeliverables) > 0 {
		return notReady
	}
	return nil
}

// Complete reports whether every phase in the plan is complete
func (p *Plan) Complete() bool {
	for i := range p.Phases {
		if p.Phases[i].Status != PhaseComplete {
			return false
		}
	}
	return len(p.Phases) > 0
}

// PlanProgress is a point-in-time completion summary
type PlanProgress struct {
	Phases          []PhaseCompletion
	CompletedPhases int
	TotalPhases     int
	Overall         int
}

// PhaseCompletion counts completed deliverables within one phase
type PhaseCompletion struct {
	PhaseID               domain.PhaseID
	Name                  string
	Status                PhaseStatus
	CompletedDeliverables int
	TotalDeliverables     int
	Percent               int
}

// Progress computes completion percentages. It is pure: same plan in,
// same numbers out, nothing mutated. Percentages round to the nearest
// integer.
func (p *Plan) Progress() PlanProgress {
	out := PlanProgress{TotalPhases: len(p.Phases)}

	for i := range p.Phases {
		ph := p.Phases[i]
		pc := PhaseCompletion{PhaseID: ph.ID, Name: ph.Name, Status: ph.Status}
		for _, d := range p.DeliverablesInPhase(ph.ID) {
			pc.TotalDeliverables++
			if d.Status == DeliverableComplete {
				pc.CompletedDeliverables++
			}
		}
		pc.Percent = roundPercent(pc.CompletedDeliverables, pc.TotalDeliverables)
		if ph.Status == PhaseComplete {
			out.CompletedPhases++
		}
		out.Phases = append(out.Phases, pc)
	}

	out.Overall = roundPercent(out.CompletedPhases, out.TotalPhases)
	return out
}

func roundPercent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return (100*completed + total/2) / total
}
