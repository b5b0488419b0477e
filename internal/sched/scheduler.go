package sched

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/scope"
)

// DefaultGlobalLimit bounds total outstanding tickets across all pools
// when the configuration does not say otherwise.
const DefaultGlobalLimit = 15

// Config sizes the worker pools. Pools maps each capability tag to its
// slot count; tags absent from the map cannot be submitted to.
type Config struct {
	GlobalLimit int
	Pools       map[domain.CapabilityTag]int
}

// Scheduler owns the bounded ticket pool. It admits queued work in
// deterministic order, holds the scope registry accountable for
// non-overlap, and records worker outcomes. The controller drives it
// single-threaded; it carries no mutex of its own.
type Scheduler struct {
	plan    *plan.Plan
	scopes  *scope.Registry
	global  int
	pools   map[domain.CapabilityTag]int
	tickets map[domain.TicketID]*Ticket

	now   func() time.Time
	newID func() domain.TicketID
}

// New builds a scheduler over a compiled plan and a scope registry
func New(cfg Config, p *plan.Plan, scopes *scope.Registry) (*Scheduler, error) {
	if p == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}
	if scopes == nil {
		return nil, fmt.Errorf("scope registry cannot be nil")
	}
	if cfg.GlobalLimit < 0 {
		return nil, fmt.Errorf("global limit cannot be negative, got %d", cfg.GlobalLimit)
	}
	if cfg.GlobalLimit == 0 {
		cfg.GlobalLimit = DefaultGlobalLimit
	}

	pools := make(map[domain.CapabilityTag]int, len(cfg.Pools))
	for tag, capacity := range cfg.Pools {
		if err := tag.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pool tag: %w", err)
		}
		if capacity < 1 {
			return nil, fmt.Errorf("pool %q capacity must be positive, got %d", tag, capacity)
		}
		pools[tag] = capacity
	}

	return &Scheduler{
		plan:    p,
		scopes:  scopes,
		global:  cfg.GlobalLimit,
		pools:   pools,
		tickets: make(map[domain.TicketID]*Ticket),
		now:     time.Now,
		newID:   mintTicketID,
	}, nil
}

func mintTicketID() domain.TicketID {
	return domain.TicketID("tkt-" + uuid.NewString()[:8])
}

// Submit enqueues a task for admission and returns its ticket id. It
// fails fast with a SaturatedError when the tag pool or the global
// ceiling has no free slot counting queued and running tickets; nothing
// is ever queued beyond the ceiling.
func (s *Scheduler) Submit(taskID domain.TaskID, tag domain.CapabilityTag) (domain.TicketID, error) {
	task := s.plan.TaskByID(taskID)
	if task == nil {
		return "", errors.New(errors.ErrCodePlanTaskMissing, fmt.Sprintf("task %s is not in the plan", taskID))
	}
	if tag == "" {
		tag = task.Capability
	}
	if _, ok := s.pools[tag]; !ok {
		return "", errors.New(errors.ErrCodePoolUnknownTag,
			fmt.Sprintf("no worker pool for capability %q", tag)).
			WithSuggestion(fmt.Sprintf("Configured pools: %s", strings.Join(s.poolTags(), ", ")))
	}
	if task.Status != plan.TaskQueued {
		return "", errors.New(errors.ErrCodeTicketBadTransit,
			fmt.Sprintf("task %s is %s; only queued tasks can be submitted", taskID, task.Status))
	}
	if live := s.TicketForTask(taskID); live != nil {
		return "", errors.New(errors.ErrCodeTicketBadTransit,
			fmt.Sprintf("task %s already has ticket %s (%s)", taskID, live.ID, live.State))
	}
	if err := s.checkCeilings(tag); err != nil {
		return "", err
	}

	id := s.newID()
	for _, exists := s.tickets[id]; exists; _, exists = s.tickets[id] {
		id = s.newID()
	}

	s.tickets[id] = &Ticket{
		ID:          id,
		TaskID:      taskID,
		Capability:  tag,
		State:       TicketQueued,
		SubmittedAt: s.now().UTC(),
	}
	return id, nil
}

// checkCeilings fails when one more outstanding ticket would not fit
func (s *Scheduler) checkCeilings(tag domain.CapabilityTag) error {
	tagOutstanding, globalOutstanding := 0, 0
	for _, t := range s.tickets {
		if t.State != TicketQueued && t.State != TicketRunning {
			continue
		}
		globalOutstanding++
		if t.Capability == tag {
			tagOutstanding++
		}
	}

	if tagOutstanding >= s.pools[tag] || globalOutstanding >= s.global {
		return &SaturatedError{
			Tag:               tag,
			TagOutstanding:    tagOutstanding,
			TagCapacity:       s.pools[tag],
			GlobalOutstanding: globalOutstanding,
			GlobalLimit:       s.global,
		}
	}
	return nil
}

// Deferral explains why a queued ticket was passed over in an admission
// pass. Deferred tickets stay queued and are reconsidered next pass.
type Deferral struct {
	TicketID domain.TicketID
	TaskID   domain.TaskID
	Reason   string
}

// Admit runs one non-blocking admission pass. Queued tickets are
// considered FIFO by submission time with task id breaking ties; a
// ticket is admitted only when its tag pool and the global ceiling have
// a free running slot, every dependency is complete, and the scope
// registry grants its lease. The whole eligible group is conflict
// pre-checked as a batch, so overlap is caught before any ticket starts
// running.
func (s *Scheduler) Admit() ([]*Ticket, []Deferral) {
	queued := s.queuedInOrder()
	if len(queued) == 0 {
		return nil, nil
	}

	runningByTag := make(map[domain.CapabilityTag]int)
	runningGlobal := 0
	for _, t := range s.tickets {
		if t.State == TicketRunning {
			runningByTag[t.Capability]++
			runningGlobal++
		}
	}

	var deferred []Deferral
	var group []*Ticket

	for _, t := range queued {
		task := s.plan.TaskByID(t.TaskID)
		if task == nil {
			deferred = append(deferred, Deferral{t.ID, t.TaskID, "task is no longer in the plan"})
			continue
		}

		if runningGlobal >= s.global {
			deferred = append(deferred, Deferral{t.ID, t.TaskID, "global ceiling reached"})
			continue
		}
		if runningByTag[t.Capability] >= s.pools[t.Capability] {
			deferred = append(deferred, Deferral{t.ID, t.TaskID, fmt.Sprintf("no free %s slot", t.Capability)})
			continue
		}

		if dep := s.pendingDependency(task); dep != "" {
			deferred = append(deferred, Deferral{t.ID, t.TaskID, dep})
			continue
		}

		// Reserve the slot for the batch conflict check.
		runningByTag[t.Capability]++
		runningGlobal++
		group = append(group, t)
	}

	if len(group) == 0 {
		return nil, deferred
	}

	// Pre-check the parallel group in one batch. The later submission
	// loses each conflict and stays queued.
	requests := make([]scope.Request, len(group))
	for i, t := range group {
		requests[i] = scope.Request{TaskID: t.TaskID, Scope: s.plan.TaskByID(t.TaskID).Scope}
	}
	losers := make(map[domain.TaskID]string)
	for _, c := range s.scopes.ConflictsIn(requests) {
		if _, seen := losers[c.RequestingTaskID]; !seen {
			losers[c.RequestingTaskID] = fmt.Sprintf("scope conflict with %s on %s",
				c.HolderTaskID, strings.Join(c.Overlapping, ", "))
		}
	}

	var admitted []*Ticket
	for _, t := range group {
		if reason, lost := losers[t.TaskID]; lost {
			deferred = append(deferred, Deferral{t.ID, t.TaskID, reason})
			continue
		}

		task := s.plan.TaskByID(t.TaskID)
		lease, err := s.scopes.Claim(t.TaskID, task.Scope)
		if err != nil {
			deferred = append(deferred, Deferral{t.ID, t.TaskID, err.Error()})
			continue
		}

		t.State = TicketRunning
		t.AdmittedAt = s.now().UTC()
		t.Reason = ""
		t.lease = lease
		task.Status = plan.TaskRunning
		task.Reason = ""
		admitted = append(admitted, t)
	}

	if len(admitted) > 0 {
		s.plan.Refresh()
	}
	return admitted, deferred
}

// pendingDependency names the first dependency that is not complete, or
// returns an empty string when the task is unblocked.
func (s *Scheduler) pendingDependency(task *plan.Task) string {
	for _, depID := range task.BlockedBy {
		dep := s.plan.TaskByID(depID)
		if dep == nil {
			return fmt.Sprintf("dependency %s is not in the plan", depID)
		}
		if dep.Status != plan.TaskComplete {
			return fmt.Sprintf("waiting on dependency %s (%s)", depID, dep.Status)
		}
	}
	return ""
}

// queuedInOrder returns queued tickets FIFO by submission time, task id
// breaking ties.
func (s *Scheduler) queuedInOrder() []*Ticket {
	var queued []*Ticket
	for _, t := range s.tickets {
		if t.State == TicketQueued {
			queued = append(queued, t)
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		if !queued[i].SubmittedAt.Equal(queued[j].SubmittedAt) {
			return queued[i].SubmittedAt.Before(queued[j].SubmittedAt)
		}
		return queued[i].TaskID < queued[j].TaskID
	})
	return queued
}

// ReportResult records a worker's outcome for a running ticket. The
// scope lease is released in every case. A completed ticket completes
// its task; blocked and needs_clarification freeze the ticket until an
// explicit Resubmit. The scheduler never retries on its own.
func (s *Scheduler) ReportResult(ticketID domain.TicketID, outcome Outcome) error {
	t, ok := s.tickets[ticketID]
	if !ok {
		return errors.NewTicketUnknownError(ticketID.String())
	}

	var to TicketState
	switch outcome.Status {
	case OutcomeComplete:
		to = TicketComplete
	case OutcomeBlocked:
		to = TicketBlocked
	case OutcomeNeedsClarification:
		to = TicketNeedsClarification
	default:
		return fmt.Errorf("unknown outcome status %q", outcome.Status)
	}

	if !canTransition(t.State, to) {
		return &TransitionError{TicketID: t.ID, From: t.State, To: to}
	}

	s.scopes.Release(t.lease)
	t.lease = nil

	task := s.plan.TaskByID(t.TaskID)
	switch to {
	case TicketComplete:
		t.State = TicketComplete
		t.Reason = ""
		if task != nil {
			task.Status = plan.TaskComplete
			task.Reason = ""
		}
	case TicketBlocked:
		reason := outcome.Reason
		if reason == "" {
			reason = "blocked by worker"
		}
		t.State = TicketBlocked
		t.Reason = reason
		if task != nil {
			task.Status = plan.TaskBlocked
			task.Reason = reason
		}
	case TicketNeedsClarification:
		question := outcome.Question
		if question == "" {
			question = "clarification requested"
		}
		t.State = TicketNeedsClarification
		t.Reason = question
		if task != nil {
			task.Status = plan.TaskNeedsClarification
			task.Reason = question
		}
	}

	s.plan.Refresh()
	return nil
}

// Resubmit returns a blocked or needs_clarification ticket to the queue
// after operator remediation. The ticket keeps its id but joins the back
// of the FIFO order, and the ceilings apply as for a fresh submission.
func (s *Scheduler) Resubmit(ticketID domain.TicketID) error {
	t, ok := s.tickets[ticketID]
	if !ok {
		return errors.NewTicketUnknownError(ticketID.String())
	}
	if !canTransition(t.State, TicketQueued) {
		return &TransitionError{TicketID: t.ID, From: t.State, To: TicketQueued}
	}
	if err := s.checkCeilings(t.Capability); err != nil {
		return err
	}

	t.State = TicketQueued
	t.SubmittedAt = s.now().UTC()
	t.Reason = ""

	if task := s.plan.TaskByID(t.TaskID); task != nil {
		task.Status = plan.TaskQueued
		task.Reason = ""
	}
	s.plan.Refresh()
	return nil
}

// Cancel withdraws a queued or running ticket. The ticket lands in
// blocked with a cancellation reason and its lease, if any, is released.
func (s *Scheduler) Cancel(ticketID domain.TicketID, reason string) error {
	t, ok := s.tickets[ticketID]
	if !ok {
		return errors.NewTicketUnknownError(ticketID.String())
	}
	if !canTransition(t.State, TicketBlocked) {
		return &TransitionError{TicketID: t.ID, From: t.State, To: TicketBlocked}
	}

	s.scopes.Release(t.lease)
	t.lease = nil

	msg := "cancelled"
	if reason != "" {
		msg = "cancelled: " + reason
	}
	t.State = TicketBlocked
	t.Reason = msg

	if task := s.plan.TaskByID(t.TaskID); task != nil {
		task.Status = plan.TaskBlocked
		task.Reason = msg
	}
	s.plan.Refresh()
	return nil
}

// Restore inserts a ticket rebuilt from a snapshot without running the
// transition table. Resume uses it; nothing else should.
func (s *Scheduler) Restore(t *Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket cannot be nil")
	}
	if err := t.ID.Validate(); err != nil {
		return fmt.Errorf("invalid ticket id: %w", err)
	}
	if !t.State.Valid() {
		return fmt.Errorf("unknown ticket state %q", t.State)
	}
	if _, exists := s.tickets[t.ID]; exists {
		return fmt.Errorf("ticket %s already restored", t.ID)
	}
	s.tickets[t.ID] = t
	return nil
}

// RosterSlot summarizes one capability pool
type RosterSlot struct {
	Capability domain.CapabilityTag
	Capacity   int
	Running    int
	Queued     int
}

// Roster reports every pool's occupancy, sorted by tag
func (s *Scheduler) Roster() []RosterSlot {
	byTag := make(map[domain.CapabilityTag]*RosterSlot, len(s.pools))
	for tag, capacity := range s.pools {
		byTag[tag] = &RosterSlot{Capability: tag, Capacity: capacity}
	}
	for _, t := range s.tickets {
		slot, ok := byTag[t.Capability]
		if !ok {
			continue
		}
		switch t.State {
		case TicketRunning:
			slot.Running++
		case TicketQueued:
			slot.Queued++
		}
	}

	roster := make([]RosterSlot, 0, len(byTag))
	for _, slot := range byTag {
		roster = append(roster, *slot)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Capability < roster[j].Capability })
	return roster
}

// Tickets returns every ticket sorted by submission time, then task id
func (s *Scheduler) Tickets() []*Ticket {
	out := make([]*Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// TicketByID looks up one ticket
func (s *Scheduler) TicketByID(id domain.TicketID) (*Ticket, bool) {
	t, ok := s.tickets[id]
	return t, ok
}

// TicketForTask returns the task's live (non-complete) ticket, or nil
func (s *Scheduler) TicketForTask(taskID domain.TaskID) *Ticket {
	for _, t := range s.tickets {
		if t.TaskID.Equals(taskID) && t.State != TicketComplete {
			return t
		}
	}
	return nil
}

// GlobalLimit returns the configured global ceiling
func (s *Scheduler) GlobalLimit() int {
	return s.global
}

func (s *Scheduler) poolTags() []string {
	tags := make([]string, 0, len(s.pools))
	for tag := range s.pools {
		tags = append(tags, tag.String())
	}
	sort.Strings(tags)
	return tags
}
