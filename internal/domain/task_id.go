package domain

// TaskID identifies a single task inside a compiled plan. Task ids are
// compiler-minted slugs that carry their phase and deliverable, e.g.
// phase-1-foundation-d1-order-model-t2-implement-order-store.
type TaskID string

// maxTaskIDLength is the maximum allowed length for a task ID
const maxTaskIDLength = 100

// NewTaskID creates a new TaskID value object with validation
func NewTaskID(value string) (TaskID, error) {
	id := TaskID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the task ID is valid
func (t TaskID) Validate() error {
	return validateSlug("task ID", string(t), maxTaskIDLength)
}

// String returns the string representation
func (t TaskID) String() string {
	return string(t)
}

// Equals checks if this task ID equals another
func (t TaskID) Equals(other TaskID) bool {
	return t == other
}
