// Package domain holds the identifier value objects shared by every
// subsystem: phases, deliverables, tasks, tickets, and capability tags.
// All of them are kebab-case slugs with the same shape rules; only the
// kind name in error messages and the length cap differ.
package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// slugPattern requires a leading letter followed by lowercase letters,
// numbers, and hyphens.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// validateSlug applies the shared identifier rules. kind names the
// identifier in messages ("task ID", "capability tag") so a wrapped
// error still says which field failed.
func validateSlug(kind, s string, maxLen int) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}

	if len(s) > maxLen {
		return fmt.Errorf("%s %q exceeds maximum length of %d characters", kind, s, maxLen)
	}

	if !slugPattern.MatchString(s) {
		return fmt.Errorf("%s %q must start with a letter and contain only lowercase letters, numbers, and hyphens", kind, s)
	}

	if strings.Contains(s, "--") {
		return fmt.Errorf("%s %q cannot contain consecutive hyphens", kind, s)
	}

	if strings.HasSuffix(s, "-") {
		return fmt.Errorf("%s %q cannot end with a hyphen", kind, s)
	}

	return nil
}
