package plan

import (
	"github.com/crewline/foreman/internal/domain"
)

// PhaseStatus is the lifecycle state of a phase
type PhaseStatus string

const (
	PhasePlanned  PhaseStatus = "planned"
	PhaseActive   PhaseStatus = "active"
	PhaseComplete PhaseStatus = "complete"
)

// DeliverableStatus is the lifecycle state of a deliverable. It is always
// recomputed from the statuses of the deliverable's tasks, never set by hand.
type DeliverableStatus string

const (
	DeliverablePlanned    DeliverableStatus = "planned"
	DeliverableInProgress DeliverableStatus = "in_progress"
	DeliverableComplete   DeliverableStatus = "complete"
	DeliverableBlocked    DeliverableStatus = "blocked"
)

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskQueued             TaskStatus = "queued"
	TaskRunning            TaskStatus = "running"
	TaskComplete           TaskStatus = "complete"
	TaskBlocked            TaskStatus = "blocked"
	TaskNeedsClarification TaskStatus = "needs_clarification"
)

// Valid reports whether the status is a known phase status
func (s PhaseStatus) Valid() bool {
	switch s {
	case PhasePlanned, PhaseActive, PhaseComplete:
		return true
	}
	return false
}

// Valid reports whether the status is a known deliverable status
func (s DeliverableStatus) Valid() bool {
	switch s {
	case DeliverablePlanned, DeliverableInProgress, DeliverableComplete, DeliverableBlocked:
		return true
	}
	return false
}

// Valid reports whether the status is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskQueued, TaskRunning, TaskComplete, TaskBlocked, TaskNeedsClarification:
		return true
	}
	return false
}

// Criterion is one boolean-evaluable acceptance predicate
type Criterion struct {
	Description string `json:"description"`
	Met         bool   `json:"met"`
}

// Phase is one ordered stage of the plan. Exactly one phase is active
// at a time; phases complete strictly in ordinal order.
type Phase struct {
	ID         domain.PhaseID `json:"id"`
	Name       string         `json:"name"`
	Goal       string         `json:"goal,omitempty"`
	Ordinal    int            `json:"ordinal"`
	Acceptance []Criterion    `json:"acceptance"`
	Status     PhaseStatus    `json:"status"`
}

// Deliverable is one concrete outcome owned by exactly one phase
type Deliverable struct {
	ID      domain.DeliverableID `json:"id"`
	PhaseID domain.PhaseID       `json:"phase_id"`
	Name    string               `json:"name"`
	Scope   string               `json:"scope,omitempty"`
	Done    []Criterion          `json:"done"`
	TaskIDs []domain.TaskID      `json:"task_ids"`
	Status  DeliverableStatus    `json:"status"`
}

// Task is one unit of work inside a deliverable. BlockedBy edges form
// a DAG across the whole plan; cycles are rejected at compile time.
type Task struct {
	ID            domain.TaskID        `json:"id"`
	DeliverableID domain.DeliverableID `json:"deliverable_id"`
	Name          string               `json:"name"`
	Capability    domain.CapabilityTag `json:"capability"`
	Scope         []string             `json:"scope"`
	BlockedBy     []domain.TaskID      `json:"blocked_by,omitempty"`
	Success       []string             `json:"success,omitempty"`
	Status        TaskStatus           `json:"status"`
	Reason        string               `json:"reason,omitempty"`
}

// Plan is the compiled execution structure: phases in strict order,
// deliverables owned by phases, tasks owned by deliverables.
type Plan struct {
	Project      string        `json:"project"`
	Phases       []Phase       `json:"phases"`
	Deliverables []Deliverable `json:"deliverables"`
	Tasks        []Task        `json:"tasks"`
}

// PhaseByID returns the phase with the given id, or nil
func (p *Plan) PhaseByID(id domain.PhaseID) *Phase {
	for i := range p.Phases {
		if p.Phases[i].ID.Equals(id) {
			return &p.Phases[i]
		}
	}
	return nil
}

// DeliverableByID returns the deliverable with the given id, or nil
func (p *Plan) DeliverableByID(id domain.DeliverableID) *Deliverable {
	for i := range p.Deliverables {
		if p.Deliverables[i].ID.Equals(id) {
			return &p.Deliverables[i]
		}
	}
	return nil
}

// TaskByID returns the task with the given id, or nil
func (p *Plan) TaskByID(id domain.TaskID) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID.Equals(id) {
			return &p.Tasks[i]
		}
	}
	return nil
}

// ActivePhase returns the currently active phase, or nil if none is active
func (p *Plan) ActivePhase() *Phase {
	for i := range p.Phases {
		if p.Phases[i].Status == PhaseActive {
			return &p.Phases[i]
		}
	}
	return nil
}

// DeliverablesInPhase returns the deliverables owned by the given phase,
// in compilation order.
func (p *Plan) DeliverablesInPhase(phaseID domain.PhaseID) []*Deliverable {
	var out []*Deliverable
	for i := range p.Deliverables {
		if p.Deliverables[i].PhaseID.Equals(phaseID) {
			out = append(out, &p.Deliverables[i])
		}
	}
	return out
}

// TasksInDeliverable returns the tasks owned by the given deliverable,
// in compilation order.
func (p *Plan) TasksInDeliverable(deliverableID domain.DeliverableID) []*Task {
	var out []*Task
	for i := range p.Tasks {
		if p.Tasks[i].DeliverableID.Equals(deliverableID) {
			out = append(out, &p.Tasks[i])
		}
	}
	return out
}

// TasksInPhase returns every task owned by any deliverable of the phase
func (p *Plan) TasksInPhase(phaseID domain.PhaseID) []*Task {
	var out []*Task
	for _, d := range p.DeliverablesInPhase(phaseID) {
		out = append(out, p.TasksInDeliverable(d.ID)...)
	}
	return out
}
