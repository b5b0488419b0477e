package plan

import (
	"fmt"

	"github.com/crewline/foreman/internal/domain"
)

// Validate checks one task against domain rules
func (t *Task) Validate() error {
	if err := t.ID.Validate(); err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}
	if err := t.DeliverableID.Validate(); err != nil {
		return fmt.Errorf("invalid deliverable ID: %w", err)
	}
	if err := t.Capability.Validate(); err != nil {
		return fmt.Errorf("invalid capability: %w", err)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown task status %q", t.Status)
	}
	if len(t.Scope) == 0 {
		return fmt.Errorf("scope set cannot be empty")
	}
	for i, dep := range t.BlockedBy {
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("dependency at index %d has invalid task ID: %w", i, err)
		}
	}
	return nil
}

// Validate checks the structural integrity of a plan. It is run on every
// load so a hand-edited or corrupted plan file is rejected before the
// controller acts on it.
func (p *Plan) Validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("plan must have at least one phase")
	}

	phaseIDs := make(map[domain.PhaseID]bool)
	active := 0
	for i, phase := range p.Phases {
		if err := phase.ID.Validate(); err != nil {
			return fmt.Errorf("phase at index %d is invalid: %w", i, err)
		}
		if phaseIDs[phase.ID] {
			return fmt.Errorf("duplicate phase ID %q at index %d", phase.ID, i)
		}
		phaseIDs[phase.ID] = true
		if phase.Ordinal != i {
			return fmt.Errorf("phase %s has ordinal %d, want %d", phase.ID, phase.Ordinal, i)
		}
		if !phase.Status.Valid() {
			return fmt.Errorf("phase %s has unknown status %q", phase.ID, phase.Status)
		}
		if phase.Status == PhaseActive {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("%d phases are active, at most one may be", active)
	}

	deliverableIDs := make(map[domain.DeliverableID]bool)
	for i, del := range p.Deliverables {
		if err := del.ID.Validate(); err != nil {
			return fmt.Errorf("deliverable at index %d is invalid: %w", i, err)
		}
		if deliverableIDs[del.ID] {
			return fmt.Errorf("duplicate deliverable ID %q at index %d", del.ID, i)
		}
		deliverableIDs[del.ID] = true
		if !phaseIDs[del.PhaseID] {
			return fmt.Errorf("deliverable %s belongs to phase %q, which does not exist", del.ID, del.PhaseID)
		}
		if len(del.Done) == 0 {
			return fmt.Errorf("deliverable %s has no acceptance criteria", del.ID)
		}
		if !del.Status.Valid() {
			return fmt.Errorf("deliverable %s has unknown status %q", del.ID, del.Status)
		}
	}

	taskIDs := make(map[domain.TaskID]bool)
	for i, task := range p.Tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("task at index %d (%s) is invalid: %w", i, task.ID, err)
		}
		if taskIDs[task.ID] {
			return fmt.Errorf("duplicate task ID %q at index %d", task.ID, i)
		}
		taskIDs[task.ID] = true
		if !deliverableIDs[task.DeliverableID] {
			return fmt.Errorf("task %s belongs to deliverable %q, which does not exist", task.ID, task.DeliverableID)
		}
	}

	for i, task := range p.Tasks {
		for _, dep := range task.BlockedBy {
			if !taskIDs[dep] {
				return fmt.Errorf("task at index %d (%s) has dependency %q that does not exist in plan", i, task.ID, dep)
			}
		}
	}

	if cycle := findCycle(p.Tasks); len(cycle) > 0 {
		return &MalformedError{Cycle: cycle}
	}

	return nil
}
