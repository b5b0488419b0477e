package sched

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	foremanerrors "github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/scope"
)

const (
	taskParse  = domain.TaskID("phase-1-build-d1-pipeline-t1-parse-input")
	taskStore  = domain.TaskID("phase-1-build-d1-pipeline-t2-store-records")
	taskWire   = domain.TaskID("phase-1-build-d1-pipeline-t3-wire-api")
	taskDesign = domain.TaskID("phase-1-build-d1-pipeline-t4-design-schema")
	taskReview = domain.TaskID("phase-1-build-d1-pipeline-t5-review-parse")
)

func schedBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		Project: "pipeline",
		Phases: []blueprint.PhaseSpec{
			{
				Name: "Build",
				Deliverables: []blueprint.DeliverableSpec{
					{
						Name:       "Pipeline",
						Acceptance: []string{"records flow end to end"},
						Tasks: []blueprint.TaskSpec{
							{
								Name:       "Parse input",
								Capability: "implementation",
								Scope:      []string{"internal/parse"},
							},
							{
								Name:       "Store records",
								Capability: "implementation",
								Scope:      []string{"internal/store"},
							},
							{
								Name:       "Wire api",
								Capability: "implementation",
								Scope:      []string{"internal/api"},
								DependsOn:  []string{"Parse input", "Store records"},
							},
							{
								Name:       "Design schema",
								Capability: "design",
								Scope:      []string{"docs/schema.md"},
							},
							{
								Name:       "Review parse",
								Capability: "review",
								Scope:      []string{"internal/parse"},
							},
						},
					},
				},
			},
		},
	}
}

// newScheduler compiles the fixture blueprint and wires a scheduler with
// a stepping clock and sequential ticket ids so admission order is
// reproducible.
func newScheduler(t *testing.T, cfg Config) (*Scheduler, *plan.Plan) {
	t.Helper()
	p, err := plan.Compile(schedBlueprint())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if cfg.Pools == nil {
		cfg.Pools = map[domain.CapabilityTag]int{
			"implementation": 2,
			"design":         1,
			"review":         1,
		}
	}
	s, err := New(cfg, p, scope.NewRegistry())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	s.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	serial := 0
	s.newID = func() domain.TicketID {
		serial++
		return domain.TicketID(fmt.Sprintf("tkt-%04d", serial))
	}
	return s, p
}

func mustSubmit(t *testing.T, s *Scheduler, taskID domain.TaskID) domain.TicketID {
	t.Helper()
	id, err := s.Submit(taskID, "")
	if err != nil {
		t.Fatalf("Submit(%s) error = %v", taskID, err)
	}
	return id
}

func TestNewValidatesConfig(t *testing.T) {
	p, err := plan.Compile(schedBlueprint())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{
			name:   "negative global limit",
			cfg:    Config{GlobalLimit: -1, Pools: map[domain.CapabilityTag]int{"implementation": 1}},
			errMsg: "cannot be negative",
		},
		{
			name:   "zero pool capacity",
			cfg:    Config{Pools: map[domain.CapabilityTag]int{"implementation": 0}},
			errMsg: "must be positive",
		},
		{
			name:   "invalid pool tag",
			cfg:    Config{Pools: map[domain.CapabilityTag]int{"Not A Tag": 1}},
			errMsg: "invalid pool tag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, p, scope.NewRegistry())
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("New() error = %q, want containing %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestNewDefaultsGlobalLimit(t *testing.T) {
	s, _ := newScheduler(t, Config{})
	if got := s.GlobalLimit(); got != DefaultGlobalLimit {
		t.Errorf("GlobalLimit() = %d, want %d", got, DefaultGlobalLimit)
	}
}

func TestSubmitAndAdmit(t *testing.T) {
	s, p := newScheduler(t, Config{})

	ticketID := mustSubmit(t, s, taskParse)
	if ticketID != "tkt-0001" {
		t.Errorf("Submit() ticket = %s, want tkt-0001", ticketID)
	}

	ticket, ok := s.TicketByID(ticketID)
	if !ok {
		t.Fatal("TicketByID() did not find the new ticket")
	}
	if ticket.State != TicketQueued {
		t.Errorf("ticket state = %s, want queued", ticket.State)
	}
	if ticket.Capability != "implementation" {
		t.Errorf("ticket capability = %s, want implementation", ticket.Capability)
	}
	if p.TaskByID(taskParse).Status != plan.TaskQueued {
		t.Error("task should stay queued until admission")
	}

	admitted, deferred := s.Admit()
	if len(admitted) != 1 || admitted[0].ID != ticketID {
		t.Fatalf("Admit() admitted = %v, want [%s]", admitted, ticketID)
	}
	if len(deferred) != 0 {
		t.Errorf("Admit() deferred = %v, want none", deferred)
	}
	if ticket.State != TicketRunning {
		t.Errorf("ticket state after admit = %s, want running", ticket.State)
	}
	if ticket.AdmittedAt.IsZero() {
		t.Error("AdmittedAt should be set on admission")
	}
	if p.TaskByID(taskParse).Status != plan.TaskRunning {
		t.Errorf("task status = %s, want running", p.TaskByID(taskParse).Status)
	}
	if got := p.DeliverableByID(p.Tasks[0].DeliverableID).Status; got != plan.DeliverableInProgress {
		t.Errorf("deliverable status = %s, want in_progress", got)
	}
}

func TestSubmitUnknownTask(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	_, err := s.Submit("phase-9-ghost-d1-x-t1-y", "")
	if err == nil {
		t.Fatal("Submit() expected error for unknown task")
	}
	var coded *foremanerrors.ForemanError
	if !errors.As(err, &coded) || coded.Code != foremanerrors.ErrCodePlanTaskMissing {
		t.Errorf("Submit() error = %v, want code %s", err, foremanerrors.ErrCodePlanTaskMissing)
	}
}

func TestSubmitUnknownTag(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	_, err := s.Submit(taskParse, "sorcery")
	if err == nil {
		t.Fatal("Submit() expected error for unknown tag")
	}
	var coded *foremanerrors.ForemanError
	if !errors.As(err, &coded) || coded.Code != foremanerrors.ErrCodePoolUnknownTag {
		t.Fatalf("Submit() error = %v, want code %s", err, foremanerrors.ErrCodePoolUnknownTag)
	}
	if len(coded.Suggestions) == 0 || !strings.Contains(coded.Suggestions[0], "implementation") {
		t.Errorf("suggestion should name the configured pools, got %v", coded.Suggestions)
	}
}

func TestSubmitDefaultsToTaskCapability(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskDesign)
	ticket, _ := s.TicketByID(id)
	if ticket.Capability != "design" {
		t.Errorf("ticket capability = %s, want design from the task", ticket.Capability)
	}
}

func TestSubmitRejectsDoubleSubmit(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	mustSubmit(t, s, taskParse)
	_, err := s.Submit(taskParse, "")
	if err == nil {
		t.Fatal("Submit() expected error for double submission")
	}
	if !strings.Contains(err.Error(), "already has ticket") {
		t.Errorf("Submit() error = %q, want mention of existing ticket", err.Error())
	}
}

func TestSubmitTagSaturationFailsFast(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	mustSubmit(t, s, taskParse)
	mustSubmit(t, s, taskStore)

	// Third implementation ticket would exceed the two-slot pool even
	// though nothing has been admitted yet.
	_, err := s.Submit(taskWire, "")
	if err == nil {
		t.Fatal("Submit() expected saturation error")
	}
	var sat *SaturatedError
	if !errors.As(err, &sat) {
		t.Fatalf("Submit() error = %T, want *SaturatedError", err)
	}
	if sat.Tag != "implementation" || sat.TagOutstanding != 2 || sat.TagCapacity != 2 {
		t.Errorf("SaturatedError = %+v, want implementation 2/2", sat)
	}
	if !strings.Contains(err.Error(), "queued or running") {
		t.Errorf("error = %q, should count queued and running", err.Error())
	}
	if sat.ErrorCode() != foremanerrors.ErrCodePoolSaturated {
		t.Errorf("ErrorCode() = %s, want %s", sat.ErrorCode(), foremanerrors.ErrCodePoolSaturated)
	}
}

func TestSubmitGlobalSaturationFailsFast(t *testing.T) {
	s, _ := newScheduler(t, Config{GlobalLimit: 2})

	mustSubmit(t, s, taskParse)
	mustSubmit(t, s, taskDesign)

	_, err := s.Submit(taskReview, "")
	if err == nil {
		t.Fatal("Submit() expected global saturation error")
	}
	var sat *SaturatedError
	if !errors.As(err, &sat) {
		t.Fatalf("Submit() error = %T, want *SaturatedError", err)
	}
	if !strings.Contains(err.Error(), "global ceiling") {
		t.Errorf("error = %q, want global ceiling message", err.Error())
	}
	if sat.GlobalOutstanding != 2 || sat.GlobalLimit != 2 {
		t.Errorf("SaturatedError = %+v, want global 2/2", sat)
	}
}

func TestAdmitOrderIsFIFO(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	// Store is submitted before parse; it must be admitted first.
	storeTicket := mustSubmit(t, s, taskStore)
	parseTicket := mustSubmit(t, s, taskParse)

	admitted, _ := s.Admit()
	if len(admitted) != 2 {
		t.Fatalf("Admit() admitted %d tickets, want 2", len(admitted))
	}
	if admitted[0].ID != storeTicket || admitted[1].ID != parseTicket {
		t.Errorf("admission order = [%s %s], want [%s %s]",
			admitted[0].ID, admitted[1].ID, storeTicket, parseTicket)
	}
}

func TestAdmitBreaksTiesByTaskID(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	// Freeze the clock so both submissions share a timestamp.
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	reviewTicket := mustSubmit(t, s, taskReview)
	designTicket := mustSubmit(t, s, taskDesign)

	admitted, _ := s.Admit()
	if len(admitted) != 2 {
		t.Fatalf("Admit() admitted %d tickets, want 2", len(admitted))
	}
	// taskDesign sorts before taskReview.
	if admitted[0].ID != designTicket || admitted[1].ID != reviewTicket {
		t.Errorf("admission order = [%s %s], want [%s %s]",
			admitted[0].ID, admitted[1].ID, designTicket, reviewTicket)
	}
}

func TestAdmitDefersOnDependencies(t *testing.T) {
	s, p := newScheduler(t, Config{})

	wireTicket := mustSubmit(t, s, taskWire)
	admitted, deferred := s.Admit()
	if len(admitted) != 0 {
		t.Fatalf("Admit() admitted %v, want none while dependencies are open", admitted)
	}
	if len(deferred) != 1 || deferred[0].TicketID != wireTicket {
		t.Fatalf("Admit() deferred = %v, want the wire ticket", deferred)
	}
	if !strings.Contains(deferred[0].Reason, "waiting on dependency") {
		t.Errorf("deferral reason = %q, want dependency wait", deferred[0].Reason)
	}

	// Complete both dependencies through the normal flow.
	for _, dep := range []domain.TaskID{taskParse, taskStore} {
		id := mustSubmit(t, s, dep)
		if admitted, _ := s.Admit(); len(admitted) == 0 {
			t.Fatalf("Admit() should admit %s", dep)
		}
		if err := s.ReportResult(id, Completed()); err != nil {
			t.Fatalf("ReportResult(%s) error = %v", id, err)
		}
	}

	admitted, deferred = s.Admit()
	if len(admitted) != 1 || admitted[0].ID != wireTicket {
		t.Fatalf("Admit() admitted = %v, want the wire ticket after deps complete", admitted)
	}
	if len(deferred) != 0 {
		t.Errorf("Admit() deferred = %v, want none", deferred)
	}
	if p.TaskByID(taskWire).Status != plan.TaskRunning {
		t.Errorf("wire task status = %s, want running", p.TaskByID(taskWire).Status)
	}
}

func TestAdmitDefersLaterOfOverlappingPair(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	parseTicket := mustSubmit(t, s, taskParse)
	reviewTicket := mustSubmit(t, s, taskReview)

	admitted, deferred := s.Admit()
	if len(admitted) != 1 || admitted[0].ID != parseTicket {
		t.Fatalf("Admit() admitted = %v, want only the earlier submission", admitted)
	}
	if len(deferred) != 1 || deferred[0].TicketID != reviewTicket {
		t.Fatalf("Admit() deferred = %v, want the overlapping review ticket", deferred)
	}
	if !strings.Contains(deferred[0].Reason, "scope conflict") ||
		!strings.Contains(deferred[0].Reason, "internal/parse") {
		t.Errorf("deferral reason = %q, want scope conflict on internal/parse", deferred[0].Reason)
	}

	review, _ := s.TicketByID(reviewTicket)
	if review.State != TicketQueued {
		t.Errorf("deferred ticket state = %s, want queued", review.State)
	}

	// Once the holder completes, the deferred ticket is admitted.
	if err := s.ReportResult(parseTicket, Completed()); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}
	admitted, deferred = s.Admit()
	if len(admitted) != 1 || admitted[0].ID != reviewTicket {
		t.Fatalf("Admit() admitted = %v, want the review ticket after release", admitted)
	}
	if len(deferred) != 0 {
		t.Errorf("Admit() deferred = %v, want none", deferred)
	}
}

func TestAdmitRespectsPoolCapacity(t *testing.T) {
	s, _ := newScheduler(t, Config{Pools: map[domain.CapabilityTag]int{
		"implementation": 1,
		"design":         1,
		"review":         1,
	}})

	parseTicket := mustSubmit(t, s, taskParse)
	if _, err := s.Submit(taskStore, ""); err == nil {
		t.Fatal("Submit() should saturate a one-slot pool")
	}

	admitted, _ := s.Admit()
	if len(admitted) != 1 || admitted[0].ID != parseTicket {
		t.Fatalf("Admit() admitted = %v, want the parse ticket", admitted)
	}

	// The running ticket still holds the only slot.
	if _, err := s.Submit(taskStore, ""); err == nil {
		t.Fatal("Submit() should stay saturated while the slot is running")
	}
}

func TestAdmitHonorsGlobalCeiling(t *testing.T) {
	s, _ := newScheduler(t, Config{GlobalLimit: 1})

	// Submit against two different pools; the global limit of one is
	// enforced at submission already.
	mustSubmit(t, s, taskParse)
	if _, err := s.Submit(taskDesign, ""); err == nil {
		t.Fatal("Submit() should hit the global ceiling")
	}

	admitted, _ := s.Admit()
	if len(admitted) != 1 {
		t.Fatalf("Admit() admitted %d, want 1", len(admitted))
	}
}

func TestReportResultComplete(t *testing.T) {
	s, p := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()

	if err := s.ReportResult(id, Completed()); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}

	ticket, _ := s.TicketByID(id)
	if ticket.State != TicketComplete {
		t.Errorf("ticket state = %s, want complete", ticket.State)
	}
	if p.TaskByID(taskParse).Status != plan.TaskComplete {
		t.Errorf("task status = %s, want complete", p.TaskByID(taskParse).Status)
	}
	if s.TicketForTask(taskParse) != nil {
		t.Error("TicketForTask() should not return a completed ticket")
	}

	// Complete is terminal.
	err := s.ReportResult(id, Blocked("too late"))
	var transit *TransitionError
	if !errors.As(err, &transit) {
		t.Fatalf("ReportResult() on complete ticket error = %v, want *TransitionError", err)
	}
	if transit.From != TicketComplete || transit.To != TicketBlocked {
		t.Errorf("TransitionError = %+v, want complete to blocked", transit)
	}
}

func TestReportResultReleasesLease(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	parseTicket := mustSubmit(t, s, taskParse)
	reviewTicket := mustSubmit(t, s, taskReview)
	s.Admit()

	// Review is deferred on parse's lease. Blocking parse must free it.
	if err := s.ReportResult(parseTicket, Blocked("compiler missing")); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}
	admitted, _ := s.Admit()
	if len(admitted) != 1 || admitted[0].ID != reviewTicket {
		t.Fatalf("Admit() admitted = %v, want review after lease release", admitted)
	}
}

func TestReportResultBlockedFreezesTicket(t *testing.T) {
	s, p := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()

	if err := s.ReportResult(id, Blocked("missing credentials")); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}

	ticket, _ := s.TicketByID(id)
	if ticket.State != TicketBlocked || ticket.Reason != "missing credentials" {
		t.Errorf("ticket = %s %q, want blocked with reason", ticket.State, ticket.Reason)
	}
	task := p.TaskByID(taskParse)
	if task.Status != plan.TaskBlocked || task.Reason != "missing credentials" {
		t.Errorf("task = %s %q, want blocked with reason", task.Status, task.Reason)
	}
	if got := p.DeliverableByID(task.DeliverableID).Status; got != plan.DeliverableBlocked {
		t.Errorf("deliverable status = %s, want blocked", got)
	}

	// No automatic retry: the next pass admits nothing.
	admitted, deferred := s.Admit()
	if len(admitted) != 0 || len(deferred) != 0 {
		t.Errorf("Admit() = %v %v, want empty pass for a frozen ticket", admitted, deferred)
	}
}

func TestReportResultNeedsClarification(t *testing.T) {
	s, p := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskDesign)
	s.Admit()

	question := "should deletes cascade to line items?"
	if err := s.ReportResult(id, NeedsClarification(question)); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}

	ticket, _ := s.TicketByID(id)
	if ticket.State != TicketNeedsClarification || ticket.Reason != question {
		t.Errorf("ticket = %s %q, want needs_clarification with the question", ticket.State, ticket.Reason)
	}
	if got := p.TaskByID(taskDesign).Reason; got != question {
		t.Errorf("task reason = %q, want the question", got)
	}
}

func TestReportResultUnknownTicket(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	err := s.ReportResult("tkt-nope", Completed())
	var coded *foremanerrors.ForemanError
	if !errors.As(err, &coded) || coded.Code != foremanerrors.ErrCodeTicketUnknown {
		t.Errorf("ReportResult() error = %v, want code %s", err, foremanerrors.ErrCodeTicketUnknown)
	}
}

func TestReportResultRejectsQueuedTicket(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	err := s.ReportResult(id, Completed())
	var transit *TransitionError
	if !errors.As(err, &transit) {
		t.Fatalf("ReportResult() error = %v, want *TransitionError", err)
	}
	if transit.From != TicketQueued || transit.To != TicketComplete {
		t.Errorf("TransitionError = %+v, want queued to complete", transit)
	}
}

func TestReportResultRejectsUnknownOutcome(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()
	err := s.ReportResult(id, Outcome{Status: "exploded"})
	if err == nil || !strings.Contains(err.Error(), "unknown outcome status") {
		t.Errorf("ReportResult() error = %v, want unknown outcome status", err)
	}
}

func TestResubmitReturnsTicketToQueue(t *testing.T) {
	s, p := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()
	if err := s.ReportResult(id, Blocked("flaky fixture")); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}

	if err := s.Resubmit(id); err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}

	ticket, _ := s.TicketByID(id)
	if ticket.State != TicketQueued || ticket.Reason != "" {
		t.Errorf("ticket = %s %q, want queued with cleared reason", ticket.State, ticket.Reason)
	}
	if p.TaskByID(taskParse).Status != plan.TaskQueued {
		t.Errorf("task status = %s, want queued", p.TaskByID(taskParse).Status)
	}

	admitted, _ := s.Admit()
	if len(admitted) != 1 || admitted[0].ID != id {
		t.Fatalf("Admit() admitted = %v, want the resubmitted ticket", admitted)
	}
}

func TestResubmitKeepsTicketIdentity(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()
	s.ReportResult(id, NeedsClarification("which encoding?"))

	if err := s.Resubmit(id); err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if s.TicketForTask(taskParse).ID != id {
		t.Error("resubmission must reuse the ticket id, not mint a new one")
	}
}

func TestResubmitRespectsCeilings(t *testing.T) {
	s, _ := newScheduler(t, Config{Pools: map[domain.CapabilityTag]int{
		"implementation": 1,
		"design":         1,
		"review":         1,
	}})

	parseTicket := mustSubmit(t, s, taskParse)
	s.Admit()
	if err := s.ReportResult(parseTicket, Blocked("waiting on schema")); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}

	// The freed slot goes to another task; resubmission must now wait.
	mustSubmit(t, s, taskStore)
	err := s.Resubmit(parseTicket)
	var sat *SaturatedError
	if !errors.As(err, &sat) {
		t.Fatalf("Resubmit() error = %v, want *SaturatedError", err)
	}
}

func TestResubmitRejectsRunningTicket(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()
	err := s.Resubmit(id)
	var transit *TransitionError
	if !errors.As(err, &transit) {
		t.Fatalf("Resubmit() error = %v, want *TransitionError", err)
	}
}

func TestCancelQueuedTicket(t *testing.T) {
	s, p := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	if err := s.Cancel(id, "superseded by rewrite"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	ticket, _ := s.TicketByID(id)
	if ticket.State != TicketBlocked || ticket.Reason != "cancelled: superseded by rewrite" {
		t.Errorf("ticket = %s %q, want blocked with cancel reason", ticket.State, ticket.Reason)
	}
	if p.TaskByID(taskParse).Reason != "cancelled: superseded by rewrite" {
		t.Errorf("task reason = %q, want the cancel reason", p.TaskByID(taskParse).Reason)
	}
}

func TestCancelRunningTicketReleasesLease(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	parseTicket := mustSubmit(t, s, taskParse)
	reviewTicket := mustSubmit(t, s, taskReview)
	s.Admit()

	if err := s.Cancel(parseTicket, ""); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	ticket, _ := s.TicketByID(parseTicket)
	if ticket.Reason != "cancelled" {
		t.Errorf("ticket reason = %q, want bare cancelled", ticket.Reason)
	}

	admitted, _ := s.Admit()
	if len(admitted) != 1 || admitted[0].ID != reviewTicket {
		t.Fatalf("Admit() admitted = %v, want review after cancellation", admitted)
	}
}

func TestCancelCompleteTicket(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	id := mustSubmit(t, s, taskParse)
	s.Admit()
	s.ReportResult(id, Completed())

	err := s.Cancel(id, "changed my mind")
	var transit *TransitionError
	if !errors.As(err, &transit) {
		t.Fatalf("Cancel() on complete ticket error = %v, want *TransitionError", err)
	}
}

func TestRoster(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	parseTicket := mustSubmit(t, s, taskParse)
	mustSubmit(t, s, taskStore)
	mustSubmit(t, s, taskDesign)
	s.Admit()
	if err := s.ReportResult(parseTicket, Completed()); err != nil {
		t.Fatalf("ReportResult() error = %v", err)
	}
	mustSubmit(t, s, taskWire) // queued, dependencies still open

	roster := s.Roster()
	want := []RosterSlot{
		{Capability: "design", Capacity: 1, Running: 1, Queued: 0},
		{Capability: "implementation", Capacity: 2, Running: 1, Queued: 1},
		{Capability: "review", Capacity: 1, Running: 0, Queued: 0},
	}
	if len(roster) != len(want) {
		t.Fatalf("Roster() returned %d slots, want %d", len(roster), len(want))
	}
	for i, slot := range roster {
		if slot != want[i] {
			t.Errorf("Roster()[%d] = %+v, want %+v", i, slot, want[i])
		}
	}
}

func TestTicketsSortedBySubmission(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	first := mustSubmit(t, s, taskStore)
	second := mustSubmit(t, s, taskParse)

	tickets := s.Tickets()
	if len(tickets) != 2 || tickets[0].ID != first || tickets[1].ID != second {
		t.Errorf("Tickets() order wrong: got %v", tickets)
	}
}

func TestRestore(t *testing.T) {
	s, _ := newScheduler(t, Config{})

	restored := &Ticket{
		ID:          "tkt-aaaa",
		TaskID:      taskParse,
		Capability:  "implementation",
		State:       TicketBlocked,
		SubmittedAt: time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC),
		Reason:      "orphaned on restart",
	}
	if err := s.Restore(restored); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, ok := s.TicketByID("tkt-aaaa")
	if !ok || got.State != TicketBlocked {
		t.Fatalf("restored ticket not found or wrong state")
	}

	if err := s.Restore(restored); err == nil {
		t.Error("Restore() should reject a duplicate ticket id")
	}
	if err := s.Restore(&Ticket{ID: "tkt-bbbb", TaskID: taskStore, State: "limbo"}); err == nil {
		t.Error("Restore() should reject an unknown state")
	}
}

func TestTicketStateTransitions(t *testing.T) {
	tests := []struct {
		from TicketState
		to   TicketState
		ok   bool
	}{
		{TicketQueued, TicketRunning, true},
		{TicketQueued, TicketBlocked, true},
		{TicketQueued, TicketComplete, false},
		{TicketRunning, TicketComplete, true},
		{TicketRunning, TicketBlocked, true},
		{TicketRunning, TicketNeedsClarification, true},
		{TicketRunning, TicketQueued, false},
		{TicketBlocked, TicketQueued, true},
		{TicketBlocked, TicketRunning, false},
		{TicketNeedsClarification, TicketQueued, true},
		{TicketComplete, TicketQueued, false},
		{TicketComplete, TicketBlocked, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}
