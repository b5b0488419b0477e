package plan

import (
	"fmt"
	"strings"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
)

// MalformedError reports a plan that cannot be executed: a dependency
// cycle, a dangling reference, or a structurally underspecified
// blueprint. It is fatal; the operator must fix the blueprint and
// re-plan.
type MalformedError struct {
	Problems []string
	Cycle    []string
}

func (e *MalformedError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("malformed plan: circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("malformed plan: %s", e.Problems[0])
	}
	return fmt.Sprintf("malformed plan: %d problems:\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// ErrorCode implements errors.Coder
func (e *MalformedError) ErrorCode() errors.ErrorCode {
	if len(e.Cycle) > 0 {
		return errors.ErrCodePlanCyclicDep
	}
	return errors.ErrCodePlanMalformed
}

// NotReadyError reports why a phase cannot be completed yet: which
// deliverables are still open and which acceptance criteria are unmet.
// It is recoverable; the operator is told what remains.
type NotReadyError struct {
	PhaseID                domain.PhaseID
	IncompleteDeliverables []domain.DeliverableID
	UnmetCriteria          []string
}

func (e *NotReadyError) Error() string {
	var parts []string
	if len(e.IncompleteDeliverables) > 0 {
		names := make([]string, len(e.IncompleteDeliverables))
		for i, id := range e.IncompleteDeliverables {
			names[i] = id.String()
		}
		parts = append(parts, fmt.Sprintf("%d deliverable(s) incomplete: %s", len(names), strings.Join(names, ", ")))
	}
	if len(e.UnmetCriteria) > 0 {
		parts = append(parts, fmt.Sprintf("%d acceptance criteria unmet: %s", len(e.UnmetCriteria), strings.Join(e.UnmetCriteria, "; ")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("phase %s is not ready", e.PhaseID)
	}
	return fmt.Sprintf("phase %s is not ready: %s", e.PhaseID, strings.Join(parts, "; "))
}

// ErrorCode implements errors.Coder
func (e *NotReadyError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodePhaseNotReady
}
