package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crewline/foreman/internal/errors"
)

// LoadPlan reads and validates a plan from its JSON file
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewPlanNotFoundError(path)
		}
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}

	return &p, nil
}

// SavePlan writes a plan to a JSON file via a temp file and rename, so
// a crash mid-write never leaves a truncated plan behind.
func SavePlan(p *Plan, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create plan directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp plan file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp plan file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		return fmt.Errorf("chmod temp plan file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp plan file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp plan file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp plan file: %w", err)
	}
	committed = true

	return nil
}
