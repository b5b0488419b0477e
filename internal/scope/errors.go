package scope

import (
	"fmt"
	"strings"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
)

// ConflictError reports that a requested scope set overlaps a live
// lease (or, in a batch pre-check, another candidate's set). It names
// the holder and the exact overlapping resources so the operator can
// re-scope the task.
type ConflictError struct {
	RequestingTaskID domain.TaskID
	HolderTaskID     domain.TaskID
	Overlapping      []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scope conflict: task %s requests resources held by %s: %s",
		e.RequestingTaskID, e.HolderTaskID, strings.Join(e.Overlapping, ", "))
}

// ErrorCode implements errors.Coder
func (e *ConflictError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeScopeConflict
}
