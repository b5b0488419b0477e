package ux

import (
	"os"
	"path/filepath"

	"github.com/crewline/foreman/internal/config"
)

// DiscoverRoot searches dir and its ancestors for a foreman project,
// identified by a foreman.yaml config file or a .foreman state
// directory. It returns the first directory holding a marker. When
// nothing matches it returns dir unchanged with found false, so
// callers can fall back to treating dir as a fresh project.
func DiscoverRoot(dir string) (root string, found bool) {
	start := filepath.Clean(dir)

	for cur := start; ; {
		if hasProjectMarker(cur) {
			return cur, true
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root
			break
		}
		cur = parent
	}

	return start, false
}

func hasProjectMarker(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return true
	}
	if info, err := os.Stat(filepath.Join(dir, ".foreman")); err == nil && info.IsDir() {
		return true
	}
	return false
}
