package resume

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	foremanerrors "github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/gate"
	"github.com/crewline/foreman/internal/log"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/sched"
	"github.com/crewline/foreman/internal/scope"
	"github.com/crewline/foreman/internal/store"
)

// OrphanReason marks tasks whose worker was lost to a controller crash
const OrphanReason = "orphaned on restart"

// Resumed is the rebuilt in-memory control state. Resume itself writes
// nothing; the caller persists a fresh snapshot once it takes over.
type Resumed struct {
	Plan      *plan.Plan
	Gate      *gate.Gate
	Scheduler *sched.Scheduler
	Scopes    *scope.Registry
	Log       *store.DecisionLog
	Snapshot  *store.Snapshot

	// Replayed counts decision entries applied beyond the snapshot.
	Replayed int
	// Orphaned lists tasks reclassified to blocked because they were
	// running when the previous controller died.
	Orphaned []domain.TaskID
}

// Resume rebuilds control state from the state directory: the snapshot
// seeds the gate, the decision-log tail past LastAppliedSeq is replayed,
// and tickets are reconciled against the plan. plan.json is fresher than
// the snapshot when they disagree, because the controller saves the plan
// first, so reconciliation always moves ticket state toward the task.
// Running work cannot survive a restart; it is reclassified to blocked
// so an operator can resubmit deliberately.
func Resume(st *store.Store, planPath, blueprintPath string, cfg sched.Config, logger *log.Logger) (*Resumed, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	decisions, snap, err := st.ReadAll()
	if err != nil {
		return nil, err
	}

	p, err := loadPlanIfPresent(planPath)
	if err != nil {
		return nil, err
	}

	if snap != nil {
		warnOnBlueprintDrift(snap, blueprintPath, logger)
	}

	g, err := gate.New(st)
	if err != nil {
		return nil, err
	}

	var tail []store.Entry
	if snap == nil {
		if decisions.Len() > 0 {
			logger.Info("no snapshot found, replaying the full decision log",
				"entries", decisions.Len())
		}
		if err := g.Restore(p, gate.StateBlueprint, ""); err != nil {
			return nil, foremanerrors.Wrap(foremanerrors.ErrCodeResumeNoState,
				"cannot seed control state for full replay", err)
		}
		tail = decisions.Entries()
	} else {
		state := gate.State(snap.Control.State)
		phase := domain.PhaseID(snap.Control.ActivePhase)
		if err := g.Restore(p, state, phase); err != nil {
			return nil, foremanerrors.Wrap(foremanerrors.ErrCodeResumeMismatch,
				"snapshot control state does not match the plan on disk", err)
		}
		tail = decisions.After(snap.LastAppliedSeq)
	}

	replayed := 0
	for i := range tail {
		e := &tail[i]
		if e.Transition == nil {
			continue
		}
		if err := g.ReplayTransition(e.Transition); err != nil {
			return nil, foremanerrors.Wrap(foremanerrors.ErrCodeResumeMismatch,
				fmt.Sprintf("replaying decision %d (%s)", e.Seq, e.Title), err)
		}
		replayed++
	}

	// A plan file left behind by a rejected compile no longer governs.
	// Once the gate lands back in blueprint or planning the plan is
	// detached; the file on disk is only the compiler's last output.
	if cs := g.State(); cs == gate.StateBlueprint || cs == gate.StatePlanning {
		if g.Plan() != nil {
			if err := g.Restore(nil, cs, ""); err != nil {
				return nil, foremanerrors.Wrap(foremanerrors.ErrCodeResumeMismatch,
					"detaching stale plan", err)
			}
		}
	}

	out := &Resumed{
		Plan:     g.Plan(),
		Gate:     g,
		Scopes:   scope.NewRegistry(),
		Log:      decisions,
		Snapshot: snap,
		Replayed: replayed,
	}
	p = g.Plan()

	if p == nil {
		return out, nil
	}

	s, err := sched.New(cfg, p, out.Scopes)
	if err != nil {
		return nil, err
	}
	out.Scheduler = s

	out.Orphaned = reconcileTickets(s, p, snap, logger)
	p.Refresh()

	return out, nil
}

func loadPlanIfPresent(path string) (*plan.Plan, error) {
	if path == "" {
		return nil, nil
	}
	p, err := plan.LoadPlan(path)
	if err != nil {
		var fe *foremanerrors.ForemanError
		if errors.As(err, &fe) && fe.Code == foremanerrors.ErrCodePlanNotFound {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// warnOnBlueprintDrift flags a blueprint edited since the last snapshot.
// Drift is not fatal: the compiled plan stays authoritative until the
// operator recompiles, but they should know the source moved.
func warnOnBlueprintDrift(snap *store.Snapshot, blueprintPath string, logger *log.Logger) {
	if snap.BlueprintHash == "" || blueprintPath == "" {
		return
	}
	bp, err := blueprint.Load(blueprintPath)
	if err != nil {
		logger.WithError(err).Warn("cannot re-read blueprint to verify hash",
			"path", blueprintPath)
		return
	}
	hash, err := blueprint.Hash(bp)
	if err != nil {
		logger.WithError(err).Warn("cannot hash blueprint to verify drift")
		return
	}
	if hash != snap.BlueprintHash {
		logger.Warn("blueprint changed since the last snapshot; recompile to pick up edits",
			"path", blueprintPath,
			"snapshot_hash", snap.BlueprintHash,
			"current_hash", hash)
	}
}

// reconcileTickets restores snapshot tickets into the scheduler, moved
// toward what the plan says about their task, and reclassifies every
// running task as blocked. Returns the orphaned task ids.
func reconcileTickets(s *sched.Scheduler, p *plan.Plan, snap *store.Snapshot, logger *log.Logger) []domain.TaskID {
	var orphaned []domain.TaskID

	ticketed := make(map[domain.TaskID]bool)
	if snap != nil {
		for _, ts := range snap.Tickets {
			taskID := domain.TaskID(ts.TaskID)
			task := p.TaskByID(taskID)
			if task == nil {
				logger.Warn("snapshot ticket names a task missing from the plan, dropping it",
					"ticket", ts.ID, "task", ts.TaskID)
				continue
			}

			t := &sched.Ticket{
				ID:          domain.TicketID(ts.ID),
				TaskID:      taskID,
				Capability:  domain.CapabilityTag(ts.Capability),
				State:       sched.TicketState(ts.State),
				SubmittedAt: ts.SubmittedAt,
				Reason:      ts.Reason,
			}

			switch task.Status {
			case plan.TaskComplete:
				t.State = sched.TicketComplete
				t.Reason = ""
			case plan.TaskRunning:
				t.State = sched.TicketBlocked
				t.Reason = OrphanReason
			case plan.TaskBlocked:
				t.State = sched.TicketBlocked
				if task.Reason != "" {
					t.Reason = task.Reason
				}
			case plan.TaskNeedsClarification:
				t.State = sched.TicketNeedsClarification
				if task.Reason != "" {
					t.Reason = task.Reason
				}
			case plan.TaskQueued:
				t.State = sched.TicketQueued
				t.Reason = ""
			}

			if err := s.Restore(t); err != nil {
				logger.WithError(err).Warn("cannot restore snapshot ticket, dropping it",
					"ticket", ts.ID, "task", ts.TaskID)
				continue
			}
			ticketed[taskID] = true
		}
	}

	for i := range p.Tasks {
		task := &p.Tasks[i]
		if task.Status != plan.TaskRunning {
			continue
		}
		task.Status = plan.TaskBlocked
		task.Reason = OrphanReason
		orphaned = append(orphaned, task.ID)

		// A running task with no surviving ticket still needs one, or
		// there would be nothing to resubmit.
		if !ticketed[task.ID] {
			t := &sched.Ticket{
				ID:          mintTicketID(),
				TaskID:      task.ID,
				Capability:  task.Capability,
				State:       sched.TicketBlocked,
				SubmittedAt: time.Now().UTC(),
				Reason:      OrphanReason,
			}
			if err := s.Restore(t); err != nil {
				logger.WithError(err).Warn("cannot mint replacement ticket for orphaned task",
					"task", task.ID)
			}
		}
	}

	if len(orphaned) > 0 {
		logger.Warn("reclassified running tasks from the previous controller",
			"count", len(orphaned), "reason", OrphanReason)
	}
	return orphaned
}

func mintTicketID() domain.TicketID {
	return domain.TicketID("tkt-" + uuid.NewString()[:8])
}
