package domain

// DeliverableID identifies a deliverable within a phase of a compiled
// plan, e.g. phase-1-foundation-d1-order-model.
type DeliverableID string

// maxDeliverableIDLength is the maximum allowed length for a deliverable ID
const maxDeliverableIDLength = 100

// NewDeliverableID creates a new DeliverableID value object with validation
func NewDeliverableID(value string) (DeliverableID, error) {
	id := DeliverableID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the deliverable ID is valid
func (d DeliverableID) Validate() error {
	return validateSlug("deliverable ID", string(d), maxDeliverableIDLength)
}

// String returns the string representation
func (d DeliverableID) String() string {
	return string(d)
}

// Equals checks if this deliverable ID equals another
func (d DeliverableID) Equals(other DeliverableID) bool {
	return d == other
}
