package ticket

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crewline/foreman/internal/errors"
)

const (
	runPrefix    = "run-"
	ticketSuffix = ".ticket.yaml"

	// ReportSuffix names worker report files; the watcher filters on it.
	ReportSuffix = ".report.yaml"
)

// RunDir is one per-session directory under the runtime root holding
// ticket and report files. Everything in it is ephemeral: deleting the
// runtime root loses no controller state.
type RunDir struct {
	path string
}

// NewRunDir creates a fresh run directory named
// run-<YYYYMMDD-HHMMSS>-<uuid8> under root.
func NewRunDir(root string) (*RunDir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDirectoryFailed, "create runtime root", err)
	}

	name := fmt.Sprintf("%s%s-%s", runPrefix,
		time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(root, name)
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDirectoryFailed, "create run directory", err)
	}
	return &RunDir{path: path}, nil
}

// Latest returns the most recent run directory under root. The stamp in
// the name sorts chronologically, so lexical order decides.
func Latest(root string) (*RunDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeRunDirMissing, "no runtime directory at "+root)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read runtime root", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), runPrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeRunDirMissing, "no run directories under "+root)
	}
	sort.Strings(names)
	return &RunDir{path: filepath.Join(root, names[len(names)-1])}, nil
}

// Path returns the absolute or root-relative run directory path
func (d *RunDir) Path() string {
	return d.path
}

// Name returns the run directory's base name
func (d *RunDir) Name() string {
	return filepath.Base(d.path)
}

// TicketPath returns the ticket file path for a ticket id
func (d *RunDir) TicketPath(ticketID string) string {
	return filepath.Join(d.path, ticketID+ticketSuffix)
}

// ReportPath returns the report file path for a ticket id
func (d *RunDir) ReportPath(ticketID string) string {
	return filepath.Join(d.path, ticketID+ReportSuffix)
}

// IsReportPath reports whether a path names a worker report file
func IsReportPath(path string) bool {
	return strings.HasSuffix(path, ReportSuffix)
}

// TicketIDFromPath extracts the ticket id from a ticket or report file
// path, empty when the path names neither.
func TicketIDFromPath(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ReportSuffix):
		return strings.TrimSuffix(base, ReportSuffix)
	case strings.HasSuffix(base, ticketSuffix):
		return strings.TrimSuffix(base, ticketSuffix)
	}
	return ""
}
