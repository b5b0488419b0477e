package ticket

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/errors"
)

// ReportStatus is the worker's verdict on its ticket
type ReportStatus string

const (
	ReportComplete           ReportStatus = "complete"
	ReportBlocked            ReportStatus = "blocked"
	ReportNeedsClarification ReportStatus = "needs_clarification"
)

// Report is what a worker writes back when it stops. Workers propose and
// analyze; they never integrate. The controller reads the report and
// decides what happens to the task.
type Report struct {
	TicketID string       `yaml:"ticket_id"`
	Status   ReportStatus `yaml:"status"`
	Summary  string       `yaml:"summary,omitempty"`
	Analysis string       `yaml:"analysis,omitempty"`
	Proposal string       `yaml:"proposal,omitempty"`
	Affected []string     `yaml:"affected,omitempty"`
	Question string       `yaml:"question,omitempty"`
	Reason   string       `yaml:"reason,omitempty"`
}

// Validate enforces the report contract. A blocked report must say why
// and a clarification request must carry the question.
func (r *Report) Validate() error {
	if r.TicketID == "" {
		return errors.New(errors.ErrCodeReportInvalid, "report has no ticket_id")
	}
	switch r.Status {
	case ReportComplete:
	case ReportBlocked:
		if r.Reason == "" {
			return errors.New(errors.ErrCodeReportInvalid,
				fmt.Sprintf("blocked report for %s has no reason", r.TicketID))
		}
	case ReportNeedsClarification:
		if r.Question == "" {
			return errors.New(errors.ErrCodeReportInvalid,
				fmt.Sprintf("needs_clarification report for %s has no question", r.TicketID))
		}
	default:
		return errors.New(errors.ErrCodeReportInvalid,
			fmt.Sprintf("unknown report status %q", r.Status)).
			WithSuggestion("Valid statuses: complete, blocked, needs_clarification")
	}
	return nil
}

// Write marshals the report to its YAML file. Workers normally write
// these; the controller writes one only in tests and tooling.
func (r *Report) Write(path string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal report", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write report file", err)
	}
	return nil
}

// LoadReport reads and validates a worker report
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "report file not found: "+path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read report file", err)
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeReportInvalid, "unmarshal report file", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
