package domain

// PhaseID identifies an ordered phase of a compiled plan, e.g.
// phase-1-foundation.
type PhaseID string

// maxPhaseIDLength is the maximum allowed length for a phase ID
const maxPhaseIDLength = 100

// NewPhaseID creates a new PhaseID value object with validation
func NewPhaseID(value string) (PhaseID, error) {
	id := PhaseID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the phase ID is valid
func (p PhaseID) Validate() error {
	return validateSlug("phase ID", string(p), maxPhaseIDLength)
}

// String returns the string representation
func (p PhaseID) String() string {
	return string(p)
}

// Equals checks if this phase ID equals another
func (p PhaseID) Equals(other PhaseID) bool {
	return p == other
}
