package domain

// TicketID identifies one submitted unit of work in the scheduler. A
// ticket keeps its id across resubmissions; only a fresh Submit mints a
// new one.
type TicketID string

// maxTicketIDLength is the maximum allowed length for a ticket ID
const maxTicketIDLength = 100

// NewTicketID creates a new TicketID value object with validation
func NewTicketID(value string) (TicketID, error) {
	id := TicketID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the ticket ID is valid
func (t TicketID) Validate() error {
	return validateSlug("ticket ID", string(t), maxTicketIDLength)
}

// String returns the string representation
func (t TicketID) String() string {
	return string(t)
}

// Equals checks if this ticket ID equals another
func (t TicketID) Equals(other TicketID) bool {
	return t == other
}
