package sched

import (
	"time"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/scope"
)

// TicketState is the lifecycle state of a ticket
type TicketState string

const (
	TicketQueued             TicketState = "queued"
	TicketRunning            TicketState = "running"
	TicketComplete           TicketState = "complete"
	TicketBlocked            TicketState = "blocked"
	TicketNeedsClarification TicketState = "needs_clarification"
)

// allowedTransitions encodes the ticket state machine. blocked and
// needs_clarification return to queued only through an explicit
// Resubmit; complete is terminal. Cancellation moves queued or running
// tickets to blocked.
var allowedTransitions = map[TicketState]map[TicketState]struct{}{
	TicketQueued: {
		TicketRunning: {},
		TicketBlocked: {}, // Cancel before admission.
	},
	TicketRunning: {
		TicketComplete:           {},
		TicketBlocked:            {},
		TicketNeedsClarification: {},
	},
	TicketBlocked: {
		TicketQueued: {}, // Resubmit.
	},
	TicketNeedsClarification: {
		TicketQueued: {}, // Resubmit.
	},
}

func canTransition(from, to TicketState) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Valid reports whether the state is a known ticket state
func (s TicketState) Valid() bool {
	switch s {
	case TicketQueued, TicketRunning, TicketComplete, TicketBlocked, TicketNeedsClarification:
		return true
	}
	return false
}

// Ticket is one submitted unit of work moving through the pool
type Ticket struct {
	ID          domain.TicketID
	TaskID      domain.TaskID
	Capability  domain.CapabilityTag
	State       TicketState
	SubmittedAt time.Time
	AdmittedAt  time.Time
	Reason      string

	lease *scope.Lease
}

// OutcomeStatus classifies a worker's reported result
type OutcomeStatus string

const (
	OutcomeComplete           OutcomeStatus = "complete"
	OutcomeBlocked            OutcomeStatus = "blocked"
	OutcomeNeedsClarification OutcomeStatus = "needs_clarification"
)

// Outcome is what a worker reports back for a running ticket
type Outcome struct {
	Status   OutcomeStatus
	Reason   string
	Question string
}

// Completed builds a successful outcome
func Completed() Outcome {
	return Outcome{Status: OutcomeComplete}
}

// Blocked builds a blocked outcome with the worker's reason
func Blocked(reason string) Outcome {
	return Outcome{Status: OutcomeBlocked, Reason: reason}
}

// NeedsClarification builds an outcome asking the lead a question
func NeedsClarification(question string) Outcome {
	return Outcome{Status: OutcomeNeedsClarification, Question: question}
}
