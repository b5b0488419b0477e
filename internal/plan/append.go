package plan

import (
	"fmt"

	"github.com/crewline/foreman/internal/blueprint"
	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/scope"
)

// AppendDeliverable adds a remediation deliverable (with its tasks) to an
// existing phase mid-execution. Remediation targets the active or a
// planned phase; completed phases are not reopened. Dependency references
// resolve in a second pass, so remediation tasks may depend on each other
// in any declaration order. The append rolls back wholesale on any
// failure, so a bad remediation spec never corrupts a running plan.
func (p *Plan) AppendDeliverable(phaseID domain.PhaseID, spec blueprint.DeliverableSpec) (*Deliverable, error) {
	phase := p.PhaseByID(phaseID)
	if phase == nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("unknown phase: %s", phaseID)}}
	}
	if phase.Status == PhaseComplete {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("phase %s is complete; remediation must target an open phase", phaseID)}}
	}
	if spec.Name == "" {
		return nil, &MalformedError{Problems: []string{"remediation deliverable needs a name"}}
	}
	if len(spec.Acceptance) == 0 {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("remediation deliverable %q needs at least one acceptance criterion", spec.Name)}}
	}

	ordinal := len(p.DeliverablesInPhase(phaseID)) + 1
	delID, err := domain.NewDeliverableID(fmt.Sprintf("%s-d%d-%s", phaseID, ordinal, slugN(spec.Name, slugBudget)))
	if err != nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("remediation deliverable %q: cannot derive id: %v", spec.Name, err)}}
	}
	if p.DeliverableByID(delID) != nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("deliverable id %s already exists", delID)}}
	}

	savedDeliverables := len(p.Deliverables)
	savedTasks := len(p.Tasks)
	rollback := func() {
		p.Deliverables = p.Deliverables[:savedDeliverables]
		p.Tasks = p.Tasks[:savedTasks]
	}

	del := Deliverable{
		ID:      delID,
		PhaseID: phaseID,
		Name:    spec.Name,
		Scope:   spec.Scope,
		Status:  DeliverablePlanned,
	}
	for _, desc := range spec.Acceptance {
		del.Done = append(del.Done, Criterion{Description: desc})
	}
	p.Deliverables = append(p.Deliverables, del)

	type pendingDep struct {
		task domain.TaskID
		ref  string
	}
	var pending []pendingDep

	for ti, taskSpec := range spec.Tasks {
		task, err := p.attachTask(delID, ti+1, taskSpec)
		if err != nil {
			rollback()
			return nil, err
		}
		for _, ref := range taskSpec.DependsOn {
			pending = append(pending, pendingDep{task: task.ID, ref: ref})
		}
	}

	for _, dep := range pending {
		target, ok := p.resolveTaskRef(dep.ref)
		if !ok {
			rollback()
			return nil, &MalformedError{Problems: []string{fmt.Sprintf("task %s depends on %q, which names no task in the plan", dep.task, dep.ref)}}
		}
		if target.Equals(dep.task) {
			rollback()
			return nil, &MalformedError{Problems: []string{fmt.Sprintf("task %s depends on itself", dep.task)}}
		}
		t := p.TaskByID(dep.task)
		t.BlockedBy = append(t.BlockedBy, target)
	}

	if cycle := findCycle(p.Tasks); len(cycle) > 0 {
		rollback()
		return nil, &MalformedError{Cycle: cycle}
	}

	p.Refresh()
	return p.DeliverableByID(delID), nil
}

// AppendTask adds a single remediation task to an existing deliverable.
// Dependency references resolve against the whole plan by task id, name,
// or slug; they can only point at tasks that already exist, so a single
// appended task can never close a dependency loop. The append rolls back
// if validation fails.
func (p *Plan) AppendTask(deliverableID domain.DeliverableID, spec blueprint.TaskSpec) (*Task, error) {
	del := p.DeliverableByID(deliverableID)
	if del == nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("unknown deliverable: %s", deliverableID)}}
	}

	savedTasks := len(p.Tasks)
	savedTaskIDs := len(del.TaskIDs)
	rollback := func() {
		p.Tasks = p.Tasks[:savedTasks]
		d := p.DeliverableByID(deliverableID)
		d.TaskIDs = d.TaskIDs[:savedTaskIDs]
	}

	ordinal := len(p.TasksInDeliverable(deliverableID)) + 1
	task, err := p.attachTask(deliverableID, ordinal, spec)
	if err != nil {
		return nil, err
	}

	for _, ref := range spec.DependsOn {
		target, ok := p.resolveTaskRef(ref)
		if !ok {
			rollback()
			return nil, &MalformedError{Problems: []string{fmt.Sprintf("task %s depends on %q, which names no task in the plan", task.ID, ref)}}
		}
		if target.Equals(task.ID) {
			rollback()
			return nil, &MalformedError{Problems: []string{fmt.Sprintf("task %s depends on itself", task.ID)}}
		}
		task.BlockedBy = append(task.BlockedBy, target)
	}

	p.Refresh()
	return p.TaskByID(task.ID), nil
}

// attachTask validates one task spec and, only if everything checks out,
// appends it to the plan and its deliverable. Dependencies are left for
// the caller to resolve.
func (p *Plan) attachTask(deliverableID domain.DeliverableID, ordinal int, spec blueprint.TaskSpec) (*Task, error) {
	var problems []string
	if spec.Name == "" {
		problems = append(problems, "remediation task needs a name")
	}
	if spec.Capability == "" {
		problems = append(problems, fmt.Sprintf("remediation task %q needs a capability tag", spec.Name))
	}
	if len(spec.Scope) == 0 {
		problems = append(problems, fmt.Sprintf("remediation task %q needs at least one scope resource", spec.Name))
	}
	if len(problems) > 0 {
		return nil, &MalformedError{Problems: problems}
	}

	taskID, err := domain.NewTaskID(fmt.Sprintf("%s-t%d-%s", deliverableID, ordinal, slugN(spec.Name, slugBudget)))
	if err != nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("remediation task %q: cannot derive id: %v", spec.Name, err)}}
	}
	if p.TaskByID(taskID) != nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("task id %s already exists", taskID)}}
	}

	tag, err := domain.NewCapabilityTag(spec.Capability)
	if err != nil {
		return nil, &MalformedError{Problems: []string{fmt.Sprintf("remediation task %q: %v", spec.Name, err)}}
	}

	p.Tasks = append(p.Tasks, Task{
		ID:            taskID,
		DeliverableID: deliverableID,
		Name:          spec.Name,
		Capability:    tag,
		Scope:         scope.Normalize(spec.Scope),
		Success:       spec.Success,
		Status:        TaskQueued,
	})
	del := p.DeliverableByID(deliverableID)
	del.TaskIDs = append(del.TaskIDs, taskID)
	return &p.Tasks[len(p.Tasks)-1], nil
}

// resolveTaskRef matches a dependency reference against the plan by
// exact id first, then by task name, then by slug.
func (p *Plan) resolveTaskRef(ref string) (domain.TaskID, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID.String() == ref {
			return p.Tasks[i].ID, true
		}
	}
	for i := range p.Tasks {
		if p.Tasks[i].Name == ref {
			return p.Tasks[i].ID, true
		}
	}
	slug := slugify(ref)
	for i := range p.Tasks {
		if slugify(p.Tasks[i].Name) == slug {
			return p.Tasks[i].ID, true
		}
	}
	return "", false
}
