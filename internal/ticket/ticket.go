package ticket

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/errors"
)

// Ticket is the worker-facing work order, written as YAML when a task is
// admitted. Workers read it and nothing else; controller state never
// leaks into the runtime directory. Include lists the resources the
// worker may modify, Exclude the resources other running workers hold at
// admission time.
type Ticket struct {
	ID            string    `yaml:"id"`
	TaskID        string    `yaml:"task_id"`
	DeliverableID string    `yaml:"deliverable_id"`
	Name          string    `yaml:"name,omitempty"`
	Capability    string    `yaml:"capability"`
	Include       []string  `yaml:"include"`
	Exclude       []string  `yaml:"exclude,omitempty"`
	Success       []string  `yaml:"success,omitempty"`
	DependsOn     []string  `yaml:"depends_on,omitempty"`
	OutputPath    string    `yaml:"output_path"`
	SubmittedAt   time.Time `yaml:"submitted_at"`
	AdmittedAt    time.Time `yaml:"admitted_at,omitempty"`
}

// Validate checks the fields a worker cannot do without
func (t *Ticket) Validate() error {
	if t.ID == "" {
		return errors.New(errors.ErrCodeTicketFileInvalid, "ticket has no id")
	}
	if t.TaskID == "" {
		return errors.New(errors.ErrCodeTicketFileInvalid, "ticket has no task_id")
	}
	if t.Capability == "" {
		return errors.New(errors.ErrCodeTicketFileInvalid, "ticket has no capability")
	}
	if len(t.Include) == 0 {
		return errors.New(errors.ErrCodeTicketFileInvalid, "ticket has an empty include scope")
	}
	return nil
}

// Write marshals the ticket to its YAML file, creating parent
// directories as needed.
func (t *Ticket) Write(path string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create ticket directory", err)
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal ticket", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write ticket file", err)
	}
	return nil
}

// LoadTicket reads a ticket file back
func LoadTicket(path string) (*Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "ticket file not found: "+path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read ticket file", err)
	}

	var t Ticket
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTicketFileInvalid, "unmarshal ticket file", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
