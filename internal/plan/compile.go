package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/scope"
)

// Compile materializes a blueprint into an executable plan. Phase,
// deliverable, and task IDs are derived from their names (slugged and
// ordinal-suffixed, so they stay stable across re-compiles of the same
// blueprint). Dependency references are resolved by task name or slug.
// Any structural problem, dangling reference, or dependency cycle fails
// with a MalformedError; a valid result has the first phase active and
// every task queued.
func Compile(bp *blueprint.Blueprint) (*Plan, error) {
	if problems := bp.Validate(); len(problems) > 0 {
		return nil, &MalformedError{Problems: problems}
	}

	p := &Plan{Project: bp.Project}

	// Tasks may depend on tasks declared later, so resolution needs the
	// full name index before any edge is checked.
	taskIDByRef := make(map[string]domain.TaskID)
	type pendingDep struct {
		task domain.TaskID
		ref  string
	}
	var pending []pendingDep
	var problems []string
	seenIDs := make(map[string]string)

	// claim reports a problem when two differently named elements derive
	// the same id after slug truncation.
	claim := func(id, name string) bool {
		if prior, dup := seenIDs[id]; dup {
			problems = append(problems, fmt.Sprintf("id %s derived for both %q and %q; rename one", id, prior, name))
			return false
		}
		seenIDs[id] = name
		return true
	}

	for pi, phaseSpec := range bp.Phases {
		phaseID, err := domain.NewPhaseID(fmt.Sprintf("phase-%d-%s", pi+1, slugN(phaseSpec.Name, slugBudget)))
		if err != nil {
			problems = append(problems, fmt.Sprintf("phase %d (%s): cannot derive id: %v", pi+1, phaseSpec.Name, err))
			continue
		}
		if !claim(phaseID.String(), phaseSpec.Name) {
			continue
		}

		phase := Phase{
			ID:      phaseID,
			Name:    phaseSpec.Name,
			Goal:    phaseSpec.Goal,
			Ordinal: pi,
			Status:  PhasePlanned,
		}

		for di, delSpec := range phaseSpec.Deliverables {
			delID, err := domain.NewDeliverableID(fmt.Sprintf("%s-d%d-%s", phaseID, di+1, slugN(delSpec.Name, slugBudget)))
			if err != nil {
				problems = append(problems, fmt.Sprintf("deliverable %q: cannot derive id: %v", delSpec.Name, err))
				continue
			}
			if !claim(delID.String(), delSpec.Name) {
				continue
			}

			del := Deliverable{
				ID:      delID,
				PhaseID: phaseID,
				Name:    delSpec.Name,
				Scope:   delSpec.Scope,
				Status:  DeliverablePlanned,
			}
			for _, desc := range delSpec.Acceptance {
				del.Done = append(del.Done, Criterion{Description: desc})
			}

			for ti, taskSpec := range delSpec.Tasks {
				taskID, err := domain.NewTaskID(fmt.Sprintf("%s-t%d-%s", delID, ti+1, slugN(taskSpec.Name, slugBudget)))
				if err != nil {
					problems = append(problems, fmt.Sprintf("task %q: cannot derive id: %v", taskSpec.Name, err))
					continue
				}
				if !claim(taskID.String(), taskSpec.Name) {
					continue
				}

				tag, err := domain.NewCapabilityTag(taskSpec.Capability)
				if err != nil {
					problems = append(problems, fmt.Sprintf("task %q: %v", taskSpec.Name, err))
					continue
				}

				task := Task{
					ID:            taskID,
					DeliverableID: delID,
					Name:          taskSpec.Name,
					Capability:    tag,
					Scope:         scope.Normalize(taskSpec.Scope),
					Success:       taskSpec.Success,
					Status:        TaskQueued,
				}

				// A task is addressable by its exact name and by its slug.
				for _, ref := range []string{taskSpec.Name, slugify(taskSpec.Name)} {
					if ref == "" {
						continue
					}
					if other, dup := taskIDByRef[ref]; dup && !other.Equals(taskID) {
						problems = append(problems, fmt.Sprintf("task name %q is ambiguous: used by %s and %s", ref, other, taskID))
					}
					taskIDByRef[ref] = taskID
				}

				for _, ref := range taskSpec.DependsOn {
					pending = append(pending, pendingDep{task: taskID, ref: ref})
				}

				del.TaskIDs = append(del.TaskIDs, taskID)
				p.Tasks = append(p.Tasks, task)
			}

			p.Deliverables = append(p.Deliverables, del)
		}

		p.Phases = append(p.Phases, phase)
	}

	for _, dep := range pending {
		target, ok := taskIDByRef[dep.ref]
		if !ok {
			target, ok = taskIDByRef[slugify(dep.ref)]
		}
		if !ok {
			problems = append(problems, fmt.Sprintf("task %s depends on %q, which names no task in the blueprint", dep.task, dep.ref))
			continue
		}
		if target.Equals(dep.task) {
			problems = append(problems, fmt.Sprintf("task %s depends on itself", dep.task))
			continue
		}
		t := p.TaskByID(dep.task)
		t.BlockedBy = append(t.BlockedBy, target)
	}

	if len(problems) > 0 {
		return nil, &MalformedError{Problems: problems}
	}

	if cycle := findCycle(p.Tasks); len(cycle) > 0 {
		return nil, &MalformedError{Cycle: cycle}
	}

	if len(p.Phases) > 0 {
		p.Phases[0].Status = PhaseActive
	}
	p.Refresh()
	return p, nil
}

// findCycle runs a DFS over the dependency graph and returns the first
// cycle found as an id path ("a -> b -> a"), or nil when the graph is
// acyclic. Tasks are visited in id order so the reported cycle is
// deterministic.
func findCycle(tasks []Task) []string {
	graph := make(map[domain.TaskID][]domain.TaskID, len(tasks))
	ids := make([]domain.TaskID, 0, len(tasks))
	for _, t := range tasks {
		graph[t.ID] = t.BlockedBy
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	visited := make(map[domain.TaskID]bool)
	recStack := make(map[domain.TaskID]bool)

	var walk func(id domain.TaskID, path []domain.TaskID) []string
	walk = func(id domain.TaskID, path []domain.TaskID) []string {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		deps := append([]domain.TaskID(nil), graph[id]...)
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		for _, dep := range deps {
			if !visited[dep] {
				if cycle := walk(dep, path); cycle != nil {
					return cycle
				}
			} else if recStack[dep] {
				// Trim the path to start at the cycle entry point.
				start := 0
				for i, node := range path {
					if node.Equals(dep) {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				for _, node := range path[start:] {
					cycle = append(cycle, node.String())
				}
				return append(cycle, dep.String())
			}
		}

		recStack[id] = false
		return nil
	}

	for _, id := range ids {
		if !visited[id] {
			if cycle := walk(id, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// slugBudget caps each slug component so a fully nested task id
// (phase + deliverable + task) stays within the domain id length limit.
const slugBudget = 24

func slugify(value string) string {
	if value == "" {
		return ""
	}
	var builder strings.Builder
	previousHyphen := false
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			previousHyphen = false
			continue
		}
		if previousHyphen {
			continue
		}
		builder.WriteRune('-')
		previousHyphen = true
	}
	return strings.Trim(builder.String(), "-")
}

// slugN slugifies and truncates to at most max characters, never ending
// on a hyphen.
func slugN(value string, max int) string {
	slug := slugify(value)
	if len(slug) > max {
		slug = strings.TrimRight(slug[:max], "-")
	}
	return slug
}
