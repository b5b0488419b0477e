package domain

// CapabilityTag names the kind of worker a task requires, such as
// "implementation" or "review". Tags are opaque to the scheduler;
// pool configuration decides which tags exist and how many slots each gets.
type CapabilityTag string

// maxCapabilityLength is the maximum allowed length for a capability tag
const maxCapabilityLength = 50

// NewCapabilityTag creates a new CapabilityTag value object with validation
func NewCapabilityTag(value string) (CapabilityTag, error) {
	tag := CapabilityTag(value)
	if err := tag.Validate(); err != nil {
		return "", err
	}
	return tag, nil
}

// Validate checks if the capability tag is valid
func (c CapabilityTag) Validate() error {
	return validateSlug("capability tag", string(c), maxCapabilityLength)
}

// String returns the string representation
func (c CapabilityTag) String() string {
	return string(c)
}

// Equals checks if this capability tag equals another
func (c CapabilityTag) Equals(other CapabilityTag) bool {
	return c == other
}
