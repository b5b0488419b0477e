// Package controller ties the control plane together: the gate, the
// plan, the scheduler, and the stores all hang off one Controller that
// serializes every operation behind a single mutex. Commands talk to
// the controller and to nothing below it.
package controller

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sync"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/cache"
	"github.com/crewline/foreman/internal/config"
	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/gate"
	"github.com/crewline/foreman/internal/log"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/report"
	"github.com/crewline/foreman/internal/resume"
	"github.com/crewline/foreman/internal/sched"
	"github.com/crewline/foreman/internal/scope"
	"github.com/crewline/foreman/internal/store"
	"github.com/crewline/foreman/internal/ticket"
)

// Controller is the single writer over a project's control state. Every
// mutation follows the same durability order: decision entry first where
// a gate transition is involved, then the in-memory change, then
// plan.json, then the status snapshot. The snapshot write is fail-closed;
// the rendered documents and the derived index are best-effort.
type Controller struct {
	mu sync.Mutex

	root   string
	cfg    *config.Config
	logger *log.Logger

	store     *store.Store
	gate      *gate.Gate
	plan      *plan.Plan
	scopes    *scope.Registry
	scheduler *sched.Scheduler

	// index is the disposable SQLite projection; nil when it could not
	// be opened. Nothing above depends on it being there.
	index *cache.Index

	// run is the session's ticket directory, created lazily on the
	// first admission.
	run *ticket.RunDir

	blueprintHash string

	// What the opening resume had to repair, kept for 'foreman resume'
	// to report.
	resumeReplayed int
	resumeOrphaned []domain.TaskID
}

// Open resumes a project from its state directory. A fresh directory
// resumes to the blueprint state; a directory with history is rebuilt
// from snapshot plus decision-log tail. When the resume changed anything
// visible a fresh snapshot is written immediately, so the directory is
// consistent before the first command runs.
func Open(ctx context.Context, root string, cfg *config.Config, logger *log.Logger) (*Controller, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}

	st, err := store.Open(cfg.StatePath(root), logger)
	if err != nil {
		return nil, err
	}

	res, err := resume.Resume(st, cfg.PlanPath(root), cfg.BlueprintPath(root), cfg.SchedConfig(), logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	c := &Controller{
		root:           root,
		cfg:            cfg,
		logger:         logger,
		store:          st,
		gate:           res.Gate,
		plan:           res.Plan,
		scopes:         res.Scopes,
		scheduler:      res.Scheduler,
		resumeReplayed: res.Replayed,
		resumeOrphaned: res.Orphaned,
	}
	c.blueprintHash = carriedHash(res, cfg.BlueprintPath(root))

	idx, err := cache.Open(cfg.IndexPath(root), logger)
	if err != nil {
		logger.Warn("derived index unavailable, continuing without it",
			"path", cfg.IndexPath(root), "error", err)
	} else {
		c.index = idx
	}

	if rd, err := ticket.Latest(cfg.RunsRoot(root)); err == nil {
		c.run = rd
	}

	if res.Replayed > 0 || len(res.Orphaned) > 0 {
		logger.Info("resume applied the decision-log tail",
			"replayed", res.Replayed, "orphaned", len(res.Orphaned))
		c.mu.Lock()
		err := c.persistLocked(ctx)
		c.mu.Unlock()
		if err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// carriedHash decides which blueprint hash the snapshot keeps claiming.
// A prior snapshot's hash names the blueprint the current history is
// based on and survives the restart; without one, the file on disk is
// the basis.
func carriedHash(res *resume.Resumed, blueprintPath string) string {
	if res.Snapshot != nil && res.Snapshot.BlueprintHash != "" {
		return res.Snapshot.BlueprintHash
	}
	bp, err := blueprint.Load(blueprintPath)
	if err != nil {
		return ""
	}
	hash, err := blueprint.Hash(bp)
	if err != nil {
		return ""
	}
	return hash
}

// Close releases the store and the derived index
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil {
		_ = c.index.Close()
		c.index = nil
	}
	return c.store.Close()
}

// Root returns the project directory the controller governs
func (c *Controller) Root() string {
	return c.root
}

// LastResume reports what the opening resume repaired: decision entries
// replayed past the snapshot and tasks orphaned by a dead controller.
// Both are zero when the state directory was already consistent.
func (c *Controller) LastResume() (replayed int, orphaned []domain.TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeReplayed, c.resumeOrphaned
}

// Describe renders the control state for display
func (c *Controller) Describe() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.Describe()
}

// State returns the current control state
func (c *Controller) State() gate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.State()
}

// ActivePhase returns the phase parameter of a phased state
func (c *Controller) ActivePhase() domain.PhaseID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.Phase()
}

// Plan returns the governed plan, nil before compilation. Callers must
// treat it as read-only; every mutation goes through the controller.
func (c *Controller) Plan() *plan.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// ValidateBlueprint loads the blueprint and returns every structural
// problem in it. An empty slice means it is ready to compile.
func (c *Controller) ValidateBlueprint() (*blueprint.Blueprint, []string, error) {
	bp, err := blueprint.Load(c.cfg.BlueprintPath(c.root))
	if err != nil {
		return nil, nil, err
	}
	return bp, bp.Validate(), nil
}

// CompilePlan validates the blueprint, compiles it, and moves the gate
// to awaiting plan approval. From the blueprint state this records the
// blueprint-ready decision first; from planning (after a rejected plan)
// it recompiles directly. The plan file is saved before the compile
// decision is appended, so a crash between the two leaves the log
// behind the plan, never ahead of it.
func (c *Controller) CompilePlan(ctx context.Context, actor string) (*plan.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	actor = c.resolveActor(actor)

	switch c.gate.State() {
	case gate.StateBlueprint, gate.StatePlanning:
	default:
		return nil, &gate.StateError{Current: c.gate.State(), Event: gate.EventPlanCompiled}
	}

	bp, err := blueprint.Load(c.cfg.BlueprintPath(c.root))
	if err != nil {
		return nil, err
	}
	if problems := bp.Validate(); len(problems) > 0 {
		return nil, errors.NewBlueprintInvalidError(
			fmt.Sprintf("%d problem(s), first: %s", len(problems), problems[0]))
	}
	hash, err := blueprint.Hash(bp)
	if err != nil {
		return nil, err
	}

	if c.gate.State() == gate.StateBlueprint {
		if err := c.gate.BlueprintReady(actor, "blueprint "+shortHash(hash)); err != nil {
			return nil, err
		}
	}

	p, err := plan.Compile(bp)
	if err != nil {
		return nil, err
	}
	if err := plan.SavePlan(p, c.cfg.PlanPath(c.root)); err != nil {
		return nil, err
	}
	if err := c.gate.PlanCompiled(p, actor); err != nil {
		return nil, err
	}

	c.plan = p
	c.blueprintHash = hash
	c.scopes = scope.NewRegistry()
	c.scheduler, err = sched.New(c.cfg.SchedConfig(), p, c.scopes)
	if err != nil {
		return nil, err
	}

	c.logger.Info("plan compiled",
		"phases", len(p.Phases), "deliverables", len(p.Deliverables), "tasks", len(p.Tasks))
	return p, c.persistLocked(ctx)
}

// ApprovePlan activates the first phase. The blueprint on disk must
// still hash to what was compiled; an edit in between forces a
// recompile so the operator approves what they reviewed.
func (c *Controller) ApprovePlan(ctx context.Context, actor, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	actor = c.resolveActor(actor)

	if c.gate.State() == gate.StateAwaitingPlanApproval {
		bp, err := blueprint.Load(c.cfg.BlueprintPath(c.root))
		if err != nil {
			return err
		}
		hash, err := blueprint.Hash(bp)
		if err != nil {
			return err
		}
		if hash != c.blueprintHash {
			return errors.NewBlueprintHashMismatchError(shortHash(c.blueprintHash), shortHash(hash)).
				WithSuggestion("The blueprint changed after compilation. Reject this plan, then run 'foreman plan' to recompile from the edited blueprint.")
		}
	}

	if err := c.gate.ApprovePlan(actor, note); err != nil {
		return err
	}
	return c.persistLocked(ctx)
}

// RejectPlan discards the compiled plan and returns to planning. The
// plan file stays on disk as the compiler's last output but no longer
// governs anything.
func (c *Controller) RejectPlan(ctx context.Context, actor, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	actor = c.resolveActor(actor)

	if err := c.gate.RejectPlan(actor, reason); err != nil {
		return err
	}
	c.plan = nil
	c.scheduler = nil
	c.scopes = scope.NewRegistry()
	c.blueprintHash = ""
	return c.persistLocked(ctx)
}

// Submit creates a queued ticket for a task in the active phase
func (c *Controller) Submit(ctx context.Context, taskID domain.TaskID) (domain.TicketID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActiveLocked("task submission"); err != nil {
		return "", err
	}
	if err := c.inActivePhaseLocked(taskID); err != nil {
		return "", err
	}
	id, err := c.scheduler.Submit(taskID, "")
	if err != nil {
		return "", err
	}
	c.logger.Info("task submitted", "task", taskID, "ticket", id)
	return id, c.persistLocked(ctx)
}

// SubmitPhase submits every queued, unticketed task in the active phase
// until the pools saturate. Saturation is backpressure, not an error;
// anything else aborts the sweep.
func (c *Controller) SubmitPhase(ctx context.Context) ([]domain.TicketID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActiveLocked("task submission"); err != nil {
		return nil, err
	}

	var submitted []domain.TicketID
	for _, t := range c.plan.TasksInPhase(c.gate.Phase()) {
		if t.Status != plan.TaskQueued || c.scheduler.TicketForTask(t.ID) != nil {
			continue
		}
		id, err := c.scheduler.Submit(t.ID, "")
		if err != nil {
			var sat *sched.SaturatedError
			if stderrors.As(err, &sat) {
				c.logger.Info("submission sweep stopped at capacity", "task", t.ID, "reason", err.Error())
				break
			}
			return submitted, err
		}
		submitted = append(submitted, id)
	}

	if len(submitted) == 0 {
		return nil, nil
	}
	c.logger.Info("phase tasks submitted", "count", len(submitted))
	return submitted, c.persistLocked(ctx)
}

// AdmitOnce runs one admission pass and issues a work-order file for
// every running ticket that lacks one. The snapshot is written before
// the ticket files: a crash in between reissues the files on the next
// pass, while the reverse order could hand work to a worker the state
// never knew about.
func (c *Controller) AdmitOnce(ctx context.Context) ([]*sched.Ticket, []sched.Deferral, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActiveLocked("admission"); err != nil {
		return nil, nil, err
	}

	admitted, deferred := c.scheduler.Admit()
	if len(admitted) > 0 {
		for _, t := range admitted {
			c.logger.Info("ticket admitted", "ticket", t.ID, "task", t.TaskID, "capability", t.Capability)
		}
		if err := c.persistLocked(ctx); err != nil {
			return admitted, deferred, err
		}
	}
	if err := c.issueTicketsLocked(); err != nil {
		return admitted, deferred, err
	}
	return admitted, deferred, nil
}

// ReportOutcome records a worker outcome for a running ticket
func (c *Controller) ReportOutcome(ctx context.Context, ticketID domain.TicketID, outcome sched.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActiveLocked("recording a result"); err != nil {
		return err
	}
	if err := c.scheduler.ReportResult(ticketID, outcome); err != nil {
		return err
	}
	c.logger.Info("outcome recorded", "ticket", ticketID, "status", outcome.Status)
	return c.persistLocked(ctx)
}

// ApplyReport validates a worker report file's content and records it
func (c *Controller) ApplyReport(ctx context.Context, r *ticket.Report) error {
	outcome, err := outcomeFromReport(r)
	if err != nil {
		return err
	}
	return c.ReportOutcome(ctx, domain.TicketID(r.TicketID), outcome)
}

// Resubmit returns a blocked or needs_clarification ticket to the queue
func (c *Controller) Resubmit(ctx context.Context, ticketID domain.TicketID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActiveLocked("resubmission"); err != nil {
		return err
	}
	if err := c.scheduler.Resubmit(ticketID); err != nil {
		return err
	}
	c.logger.Info("ticket resubmitted", "ticket", ticketID)
	return c.persistLocked(ctx)
}

// Cancel withdraws a queued or running ticket
func (c *Controller) Cancel(ctx context.Context, ticketID domain.TicketID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActiveLocked("cancellation"); err != nil {
		return err
	}
	if err := c.scheduler.Cancel(ticketID, reason); err != nil {
		return err
	}
	c.logger.Info("ticket cancelled", "ticket", ticketID, "reason", reason)
	return c.persistLocked(ctx)
}

// PhaseDone moves the active phase to awaiting approval once every
// deliverable in it is complete.
func (c *Controller) PhaseDone(ctx context.Context, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	actor = c.resolveActor(actor)

	if err := c.gate.PhaseDone(actor); err != nil {
		return err
	}
	return c.persistLocked(ctx)
}

// ApprovePhase accepts the awaiting phase and activates its successor,
// or completes the project after the last one.
func (c *Controller) ApprovePhase(ctx context.Context, actor, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	actor = c.resolveActor(actor)

	if err := c.gate.ApprovePhase(actor, note); err != nil {
		return err
	}
	if c.gate.State() == gate.StateComplete {
		c.logger.Info("project complete", "project", c.plan.Project)
	}
	return c.persistLocked(ctx)
}

// RejectPhase returns the awaiting phase to active, optionally appending
// a remediation deliverable compiled into queued tasks.
func (c *Controller) RejectPhase(ctx context.Context, actor, reason string, remediation *blueprint.DeliverableSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	actor = c.resolveActor(actor)

	if err := c.gate.RejectPhase(actor, reason, remediation); err != nil {
		return err
	}
	return c.persistLocked(ctx)
}

// Status builds the current projection without persisting anything
func (c *Controller) Status() *store.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildSnapshotLocked()
}

// Decisions returns the full decision log from disk
func (c *Controller) Decisions() (*store.DecisionLog, error) {
	decisions, _, err := c.store.ReadAll()
	if err != nil {
		return nil, err
	}
	return decisions, nil
}

// RecordDecision appends an operator decision to the journal. Unlike a
// gate transition it changes no control state and is valid in every
// state; the journal holds the decisions made around the transitions,
// not just the transitions themselves.
func (c *Controller) RecordDecision(ctx context.Context, e *store.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Actor == "" {
		e.Actor = c.cfg.Actor
	}
	if e.Supersedes != "" {
		decisions, _, err := c.store.ReadAll()
		if err != nil {
			return err
		}
		if decisions.ByID(e.Supersedes) == nil {
			return errors.New(errors.ErrCodeDecisionUnknown,
				fmt.Sprintf("no decision entry %s to supersede", e.Supersedes)).
				WithSuggestion("Run 'foreman decisions' to find the id of the entry to replace.")
		}
	}
	if err := c.store.AppendDecision(e); err != nil {
		return err
	}
	c.logger.Info("decision recorded", "seq", e.Seq, "status", e.Status, "title", e.Title)
	return c.persistLocked(ctx)
}

// PendingDecisions lists proposed entries no later entry has settled.
// The derived index answers when it is available; otherwise the log is
// scanned directly.
func (c *Controller) PendingDecisions(ctx context.Context) ([]cache.DecisionRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil {
		rows, err := c.index.PendingDecisions(ctx)
		if err == nil {
			return rows, nil
		}
		c.logger.Warn("pending-decision query fell back to the log", "error", err)
	}

	decisions, _, err := c.store.ReadAll()
	if err != nil {
		return nil, err
	}
	var rows []cache.DecisionRow
	for _, e := range decisions.Entries() {
		status, _ := decisions.EffectiveStatus(e.ID)
		if status != store.StatusProposed {
			continue
		}
		event := ""
		if e.Transition != nil {
			event = e.Transition.Event
		}
		rows = append(rows, cache.DecisionRow{
			Seq: e.Seq, ID: e.ID, Time: e.Time, Actor: e.Actor,
			Title: e.Title, Status: string(e.Status), Event: event,
		})
	}
	return rows, nil
}

// Roster reports pool occupancy, nil before a plan is compiled
func (c *Controller) Roster() []sched.RosterSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Roster()
}

// Tickets lists every ticket the scheduler knows, nil before a plan
func (c *Controller) Tickets() []*sched.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Tickets()
}

// EnsureRunDir returns the session's run directory, creating it when
// this is the first admission of the session.
func (c *Controller) EnsureRunDir() (*ticket.RunDir, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureRunDirLocked()
}

// Rehydrate rebuilds the derived index from the authoritative stores
// and returns the indexed task counts by status. The index is opened on
// demand when the initial open failed.
func (c *Controller) Rehydrate(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		idx, err := cache.Open(c.cfg.IndexPath(c.root), c.logger)
		if err != nil {
			return nil, err
		}
		c.index = idx
	}

	decisions, _, err := c.store.ReadAll()
	if err != nil {
		return nil, err
	}
	if err := c.index.Rehydrate(ctx, c.plan, decisions, c.blueprintHash); err != nil {
		return nil, err
	}
	return c.index.TaskCounts(ctx)
}

// requireActiveLocked refuses scheduling operations outside phase_active
// resolveActor falls back to the configured actor when the caller
// passes none
func (c *Controller) resolveActor(actor string) string {
	if actor == "" {
		return c.cfg.Actor
	}
	return actor
}

func (c *Controller) requireActiveLocked(what string) error {
	if c.gate.State() != gate.StatePhaseActive {
		return errors.New(errors.ErrCodeGateInvalidEvent,
			fmt.Sprintf("%s requires an active phase; control state is %s", what, c.gate.Describe())).
			WithSuggestion("Run 'foreman status' to see what the project is waiting on.")
	}
	return nil
}

// inActivePhaseLocked refuses tasks that belong to any other phase
func (c *Controller) inActivePhaseLocked(taskID domain.TaskID) error {
	task := c.plan.TaskByID(taskID)
	if task == nil {
		return errors.New(errors.ErrCodePlanTaskMissing,
			fmt.Sprintf("task %s is not in the plan", taskID))
	}
	d := c.plan.DeliverableByID(task.DeliverableID)
	if d == nil || !d.PhaseID.Equals(c.gate.Phase()) {
		owner := domain.PhaseID("")
		if d != nil {
			owner = d.PhaseID
		}
		return errors.New(errors.ErrCodeGateInvalidEvent,
			fmt.Sprintf("task %s belongs to phase %s; the active phase is %s", taskID, owner, c.gate.Phase()))
	}
	return nil
}

// persistLocked writes the durable views in order: plan.json, then the
// status snapshot, then the rendered documents and the derived index.
// The snapshot is fail-closed; everything after it only warns, because
// both are rebuildable from what was already written.
func (c *Controller) persistLocked(ctx context.Context) error {
	if c.plan != nil {
		if err := plan.SavePlan(c.plan, c.cfg.PlanPath(c.root)); err != nil {
			return err
		}
	}

	snap := c.buildSnapshotLocked()
	if err := c.store.WriteStatusSnapshot(snap); err != nil {
		return err
	}

	decisions, _, err := c.store.ReadAll()
	if err != nil {
		c.logger.Warn("cannot re-read decision log for rendering", "error", err)
		decisions = nil
	}

	if err := os.WriteFile(c.cfg.StatusMarkdownPath(c.root),
		[]byte(report.RenderMarkdown(snap)), 0644); err != nil {
		c.logger.Warn("STATUS.md not updated", "error", err)
	}
	if decisions != nil {
		if err := os.WriteFile(c.cfg.DecisionsMarkdownPath(c.root),
			[]byte(report.RenderDecisionsMarkdown(decisions)), 0644); err != nil {
			c.logger.Warn("DECISIONS.md not updated", "error", err)
		}
	}

	if c.index != nil && decisions != nil {
		if err := c.index.Reconcile(ctx, c.plan, decisions, c.blueprintHash); err != nil {
			c.logger.Warn("derived index not reconciled", "error", err)
		}
	}
	return nil
}

func (c *Controller) buildSnapshotLocked() *store.Snapshot {
	var roster []sched.RosterSlot
	var tickets []*sched.Ticket
	if c.scheduler != nil {
		roster = c.scheduler.Roster()
		tickets = c.scheduler.Tickets()
	}
	snap := report.Build(c.plan, c.gate, roster, tickets)
	snap.BlueprintHash = c.blueprintHash
	snap.LastAppliedSeq = c.store.LastSeq()
	return snap
}

// issueTicketsLocked writes the work-order file for every running
// ticket that does not have one. Admission normally leaves exactly the
// new tickets without files; after a crash between snapshot and file
// writes this also replaces the lost ones.
func (c *Controller) issueTicketsLocked() error {
	var running []*sched.Ticket
	for _, t := range c.scheduler.Tickets() {
		if t.State == sched.TicketRunning {
			running = append(running, t)
		}
	}
	if len(running) == 0 {
		return nil
	}

	rd, err := c.ensureRunDirLocked()
	if err != nil {
		return err
	}
	for _, t := range running {
		path := rd.TicketPath(t.ID.String())
		if _, err := os.Stat(path); err == nil {
			continue
		}
		task := c.plan.TaskByID(t.TaskID)
		if task == nil {
			continue
		}
		order := c.workOrderLocked(t, task, rd)
		if err := order.Write(path); err != nil {
			return err
		}
		c.logger.Info("work order issued", "ticket", t.ID, "path", path)
	}
	return nil
}

// workOrderLocked renders one running ticket as a worker-facing file.
// Include is the task's normalized scope; Exclude is everything other
// running workers hold at this moment.
func (c *Controller) workOrderLocked(t *sched.Ticket, task *plan.Task, rd *ticket.RunDir) *ticket.Ticket {
	include := scope.Normalize(task.Scope)
	exclude := subtract(c.scopes.LiveResources(), include)

	deps := make([]string, 0, len(task.BlockedBy))
	for _, dep := range task.BlockedBy {
		deps = append(deps, dep.String())
	}

	return &ticket.Ticket{
		ID:            t.ID.String(),
		TaskID:        task.ID.String(),
		DeliverableID: task.DeliverableID.String(),
		Name:          task.Name,
		Capability:    t.Capability.String(),
		Include:       include,
		Exclude:       exclude,
		Success:       task.Success,
		DependsOn:     deps,
		OutputPath:    rd.ReportPath(t.ID.String()),
		SubmittedAt:   t.SubmittedAt,
		AdmittedAt:    t.AdmittedAt,
	}
}

func (c *Controller) ensureRunDirLocked() (*ticket.RunDir, error) {
	if c.run != nil {
		return c.run, nil
	}
	rd, err := ticket.NewRunDir(c.cfg.RunsRoot(c.root))
	if err != nil {
		return nil, err
	}
	c.logger.Info("run directory created", "path", rd.Path())
	c.run = rd
	return rd, nil
}

func outcomeFromReport(r *ticket.Report) (sched.Outcome, error) {
	if r == nil {
		return sched.Outcome{}, errors.New(errors.ErrCodeReportInvalid, "no report to apply")
	}
	if err := r.Validate(); err != nil {
		return sched.Outcome{}, err
	}
	switch r.Status {
	case ticket.ReportComplete:
		return sched.Completed(), nil
	case ticket.ReportBlocked:
		return sched.Blocked(r.Reason), nil
	default:
		return sched.NeedsClarification(r.Question), nil
	}
}

// subtract returns live without the entries in own, preserving order
func subtract(live, own []string) []string {
	skip := make(map[string]struct{}, len(own))
	for _, r := range own {
		skip[r] = struct{}{}
	}
	var out []string
	for _, r := range live {
		if _, ok := skip[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
