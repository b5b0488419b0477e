package blueprint

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Canonicalize returns a canonical JSON representation of the blueprint
// with stable ordering for consistent hashing. Phase, deliverable, and task
// order is preserved because it is meaningful; only map keys are sorted.
func Canonicalize(bp *Blueprint) ([]byte, error) {
	phases := make([]map[string]interface{}, len(bp.Phases))
	for i, phase := range bp.Phases {
		deliverables := make([]map[string]interface{}, len(phase.Deliverables))
		for j, del := range phase.Deliverables {
			tasks := make([]map[string]interface{}, len(del.Tasks))
			for k, task := range del.Tasks {
				taskMap := map[string]interface{}{
					"name":       task.Name,
					"capability": task.Capability,
					"scope":      task.Scope,
				}
				if len(task.DependsOn) > 0 {
					taskMap["depends_on"] = task.DependsOn
				}
				if len(task.Success) > 0 {
					taskMap["success"] = task.Success
				}
				tasks[k] = taskMap
			}

			delMap := map[string]interface{}{
				"name":       del.Name,
				"acceptance": del.Acceptance,
				"tasks":      tasks,
			}
			if del.Scope != "" {
				delMap["scope"] = del.Scope
			}
			deliverables[j] = delMap
		}

		phaseMap := map[string]interface{}{
			"name":         phase.Name,
			"deliverables": deliverables,
		}
		if phase.Goal != "" {
			phaseMap["goal"] = phase.Goal
		}
		phases[i] = phaseMap
	}

	data := map[string]interface{}{
		"project": bp.Project,
		"mission": bp.Mission,
		"phases":  phases,
	}

	return json.Marshal(sortKeys(data))
}

// Hash computes the blake3 hash of the canonicalized blueprint. The hash is
// recorded in the compiled plan so a changed blueprint is detected at plan
// and resume time.
func Hash(bp *Blueprint) (string, error) {
	canonical, err := Canonicalize(bp)
	if err != nil {
		return "", fmt.Errorf("canonicalize blueprint: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash blueprint: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// sortKeys recursively sorts map keys for stable JSON output
func sortKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorted := make(map[string]interface{}, len(val))
		for _, k := range keys {
			sorted[k] = sortKeys(val[k])
		}
		return sorted

	case []interface{}:
		for i, item := range val {
			val[i] = sortKeys(item)
		}
		return val

	case []map[string]interface{}:
		for i, item := range val {
			val[i] = sortKeys(item).(map[string]interface{})
		}
		return val

	default:
		return v
	}
}
