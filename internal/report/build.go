package report

import (
	"math"
	"sort"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/gate"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/sched"
	"github.com/crewline/foreman/internal/store"
)

// Build projects control state into a snapshot. It is pure: no clock, no
// I/O, no mutation of its inputs. The controller stamps BlueprintHash and
// LastAppliedSeq before persisting.
func Build(p *plan.Plan, g *gate.Gate, roster []sched.RosterSlot, tickets []*sched.Ticket) *store.Snapshot {
	snap := &store.Snapshot{
		Control: store.ControlStatus{
			State:       string(g.State()),
			ActivePhase: string(g.Phase()),
		},
	}

	for _, slot := range roster {
		snap.Roster = append(snap.Roster, store.RosterSlot{
			Capability: string(slot.Capability),
			Capacity:   slot.Capacity,
			Running:    slot.Running,
			Queued:     slot.Queued,
		})
	}

	ticketByTask := make(map[domain.TaskID]domain.TicketID)
	for _, t := range tickets {
		snap.Tickets = append(snap.Tickets, store.TicketStatus{
			ID:          string(t.ID),
			TaskID:      string(t.TaskID),
			Capability:  string(t.Capability),
			State:       string(t.State),
			SubmittedAt: t.SubmittedAt,
			Reason:      t.Reason,
		})
		if t.State != sched.TicketComplete {
			ticketByTask[t.TaskID] = t.ID
		}
	}

	if p == nil {
		return snap
	}

	for i := range p.Phases {
		ph := &p.Phases[i]
		snap.Phases = append(snap.Phases, store.PhaseStatus{
			ID:      string(ph.ID),
			Name:    ph.Name,
			Ordinal: ph.Ordinal,
			Status:  string(ph.Status),
		})
	}
	for i := range p.Deliverables {
		d := &p.Deliverables[i]
		snap.Deliverables = append(snap.Deliverables, store.DeliverableStatus{
			ID:      string(d.ID),
			PhaseID: string(d.PhaseID),
			Status:  string(d.Status),
		})
	}
	for i := range p.Tasks {
		t := &p.Tasks[i]
		snap.Tasks = append(snap.Tasks, store.TaskStatus{
			ID:            string(t.ID),
			DeliverableID: string(t.DeliverableID),
			Capability:    string(t.Capability),
			Status:        string(t.Status),
			Reason:        t.Reason,
			TicketID:      string(ticketByTask[t.ID]),
		})
	}

	snap.Progress = buildProgress(p)
	snap.Todo = buildTodo(p)
	return snap
}

func buildProgress(p *plan.Plan) store.Progress {
	prog := store.Progress{TotalPhases: len(p.Phases)}

	totalDeliverables := 0
	completeDeliverables := 0
	for i := range p.Phases {
		ph := &p.Phases[i]
		if ph.Status == plan.PhaseComplete {
			prog.CompletedPhases++
		}

		done, total := 0, 0
		for j := range p.Deliverables {
			d := &p.Deliverables[j]
			if !d.PhaseID.Equals(ph.ID) {
				continue
			}
			total++
			if d.Status == plan.DeliverableComplete {
				done++
			}
		}
		totalDeliverables += total
		completeDeliverables += done
		prog.Phases = append(prog.Phases, store.PhaseProgress{
			PhaseID:               string(ph.ID),
			CompletedDeliverables: done,
			TotalDeliverables:     total,
			Percent:               percent(done, total),
		})
	}

	prog.Overall = percent(completeDeliverables, totalDeliverables)
	return prog
}

// buildTodo lists outstanding tasks in remediation priority: queued work
// first, then clarification requests, then blocked tasks with their
// reasons. Within a group, phase order then task id.
func buildTodo(p *plan.Plan) []store.TodoItem {
	phaseOf := make(map[domain.DeliverableID]*plan.Phase)
	for i := range p.Deliverables {
		d := &p.Deliverables[i]
		phaseOf[d.ID] = p.PhaseByID(d.PhaseID)
	}

	rank := map[plan.TaskStatus]int{
		plan.TaskQueued:             0,
		plan.TaskNeedsClarification: 1,
		plan.TaskBlocked:            2,
	}

	var items []store.TodoItem
	ordinals := make(map[string]int)
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if _, outstanding := rank[t.Status]; !outstanding {
			continue
		}
		ph := phaseOf[t.DeliverableID]
		item := store.TodoItem{
			TaskID: string(t.ID),
			Status: string(t.Status),
			Reason: t.Reason,
		}
		if ph != nil {
			item.PhaseID = string(ph.ID)
			ordinals[item.TaskID] = ph.Ordinal
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri := rank[plan.TaskStatus(items[i].Status)]
		rj := rank[plan.TaskStatus(items[j].Status)]
		if ri != rj {
			return ri < rj
		}
		if ordinals[items[i].TaskID] != ordinals[items[j].TaskID] {
			return ordinals[items[i].TaskID] < ordinals[items[j].TaskID]
		}
		return items[i].TaskID < items[j].TaskID
	})
	return items
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
