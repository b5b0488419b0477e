package store

import "time"

// SnapshotVersion is bumped when the snapshot schema changes shape
const SnapshotVersion = 1

// Snapshot is the operator-facing view of the whole project, written via
// atomic replace so a reader never observes a partial state. LastAppliedSeq
// bounds the decision-log replay a resuming controller must perform:
// everything at or below it is already reflected here.
type Snapshot struct {
	Version        int                 `json:"version"`
	WrittenAt      time.Time           `json:"written_at"`
	LastAppliedSeq uint64              `json:"last_applied_seq"`
	BlueprintHash  string              `json:"blueprint_hash,omitempty"`
	Control        ControlStatus       `json:"control"`
	Phases         []PhaseStatus       `json:"phases,omitempty"`
	Deliverables   []DeliverableStatus `json:"deliverables,omitempty"`
	Tasks          []TaskStatus        `json:"tasks,omitempty"`
	Tickets        []TicketStatus      `json:"tickets,omitempty"`
	Roster         []RosterSlot        `json:"roster,omitempty"`
	Progress       Progress            `json:"progress"`
	Todo           []TodoItem          `json:"todo,omitempty"`
}

// ControlStatus names the phase gate state and, when one is active, the phase
type ControlStatus struct {
	State       string `json:"state"`
	ActivePhase string `json:"active_phase,omitempty"`
}

// PhaseStatus is the persisted status of one phase
type PhaseStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Ordinal int    `json:"ordinal"`
	Status  string `json:"status"`
}

// DeliverableStatus is the persisted status of one deliverable
type DeliverableStatus struct {
	ID      string `json:"id"`
	PhaseID string `json:"phase_id"`
	Status  string `json:"status"`
}

// TaskStatus is the persisted status of one task
type TaskStatus struct {
	ID            string `json:"id"`
	DeliverableID string `json:"deliverable_id"`
	Capability    string `json:"capability"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	TicketID      string `json:"ticket_id,omitempty"`
}

// TicketStatus is the persisted state of one worker ticket
type TicketStatus struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Capability  string    `json:"capability"`
	State       string    `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
	Reason      string    `json:"reason,omitempty"`
}

// RosterSlot reports one capability pool's occupancy
type RosterSlot struct {
	Capability string `json:"capability"`
	Capacity   int    `json:"capacity"`
	Running    int    `json:"running"`
	Queued     int    `json:"queued"`
}

// Progress aggregates completion counts across the plan
type Progress struct {
	Phases          []PhaseProgress `json:"phases,omitempty"`
	CompletedPhases int             `json:"completed_phases"`
	TotalPhases     int             `json:"total_phases"`
	Overall         int             `json:"overall_percent"`
}

// PhaseProgress reports deliverable completion within one phase
type PhaseProgress struct {
	PhaseID               string `json:"phase_id"`
	CompletedDeliverables int    `json:"completed_deliverables"`
	TotalDeliverables     int    `json:"total_deliverables"`
	Percent               int    `json:"percent"`
}

// TodoItem is one entry in the prioritized work list
type TodoItem struct {
	TaskID  string `json:"task_id"`
	PhaseID string `json:"phase_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}
