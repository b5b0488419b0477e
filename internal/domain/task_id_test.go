package domain

import (
	"strings"
	"testing"
)

func TestNewTaskID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"compiled slug", "phase-1-foundation-d1-order-model-t2-implement-order-store", false},
		{"short hand-written ID", "wire-auth-endpoint", false},
		{"digits after the first letter", "t123", false},
		{"at the length cap", strings.Repeat("a", 100), false},
		{"empty is invalid", "", true},
		{"leading digit is invalid", "123-task", true},
		{"leading hyphen is invalid", "-task", true},
		{"trailing hyphen is invalid", "task-", true},
		{"consecutive hyphens are invalid", "task--001", true},
		{"uppercase is invalid", "Task-001", true},
		{"underscore is invalid", "task_001", true},
		{"space is invalid", "task 001", true},
		{"over the length cap is invalid", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTaskID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTaskID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.String() != tt.value {
				t.Errorf("NewTaskID() = %v, want %v", got, tt.value)
			}
		})
	}
}

func TestTaskIDEquals(t *testing.T) {
	if !TaskID("task-001").Equals(TaskID("task-001")) {
		t.Error("identical ids should be equal")
	}
	if TaskID("task-001").Equals(TaskID("task-002")) {
		t.Error("distinct ids should not be equal")
	}
}
