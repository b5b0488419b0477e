package blueprint

import "fmt"

// Blueprint is the externally authored description of a project: its
// mission and the phased breakdown of work. A blueprint is input only;
// the controller compiles it into a plan and never writes it back.
type Blueprint struct {
	Project string      `yaml:"project" json:"project"`
	Mission string      `yaml:"mission,omitempty" json:"mission,omitempty"`
	Phases  []PhaseSpec `yaml:"phases" json:"phases"`
}

// PhaseSpec describes one ordered phase of the blueprint
type PhaseSpec struct {
	Name         string            `yaml:"name" json:"name"`
	Goal         string            `yaml:"goal,omitempty" json:"goal,omitempty"`
	Deliverables []DeliverableSpec `yaml:"deliverables" json:"deliverables"`
}

// DeliverableSpec describes one concrete outcome within a phase
type DeliverableSpec struct {
	Name       string     `yaml:"name" json:"name"`
	Scope      string     `yaml:"scope,omitempty" json:"scope,omitempty"`
	Acceptance []string   `yaml:"acceptance" json:"acceptance"`
	Tasks      []TaskSpec `yaml:"tasks" json:"tasks"`
}

// TaskSpec describes one unit of work inside a deliverable. DependsOn
// entries name other tasks in the blueprint by name or by slug.
type TaskSpec struct {
	Name       string   `yaml:"name" json:"name"`
	Capability string   `yaml:"capability" json:"capability"`
	Scope      []string `yaml:"scope" json:"scope"`
	DependsOn  []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Success    []string `yaml:"success,omitempty" json:"success,omitempty"`
}

// Validate collects every structural problem in the blueprint. It returns
// all of them rather than stopping at the first so an author can fix a
// file in one pass.
func (b *Blueprint) Validate() []string {
	var problems []string

	if b.Project == "" {
		problems = append(problems, "project name is required")
	}
	if len(b.Phases) == 0 {
		problems = append(problems, "blueprint needs at least one phase")
	}

	for pi, phase := range b.Phases {
		where := fmt.Sprintf("phase %d (%s)", pi+1, phase.Name)
		if phase.Name == "" {
			problems = append(problems, fmt.Sprintf("phase %d has no name", pi+1))
		}
		if len(phase.Deliverables) == 0 {
			problems = append(problems, fmt.Sprintf("%s needs at least one deliverable", where))
		}

		for di, del := range phase.Deliverables {
			dwhere := fmt.Sprintf("%s, deliverable %d (%s)", where, di+1, del.Name)
			if del.Name == "" {
				problems = append(problems, fmt.Sprintf("%s, deliverable %d has no name", where, di+1))
			}
			if len(del.Acceptance) == 0 {
				problems = append(problems, fmt.Sprintf("%s needs at least one acceptance criterion", dwhere))
			}

			for ti, task := range del.Tasks {
				twhere := fmt.Sprintf("%s, task %d (%s)", dwhere, ti+1, task.Name)
				if task.Name == "" {
					problems = append(problems, fmt.Sprintf("%s, task %d has no name", dwhere, ti+1))
				}
				if task.Capability == "" {
					problems = append(problems, fmt.Sprintf("%s needs a capability tag", twhere))
				}
				if len(task.Scope) == 0 {
					problems = append(problems, fmt.Sprintf("%s needs at least one scope resource", twhere))
				}
			}
		}
	}

	return problems
}
