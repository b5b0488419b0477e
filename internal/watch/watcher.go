package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crewline/foreman/internal/log"
	"github.com/crewline/foreman/internal/ticket"
)

// defaultSettleDelay is how long a report file must stay quiet before it
// is parsed. Workers are not required to write atomically, so the first
// event for a path often lands mid-write.
const defaultSettleDelay = 200 * time.Millisecond

// maxParseAttempts bounds how often an unreadable report is retried
// before it is abandoned with an error log.
const maxParseAttempts = 3

// ReportEvent is one worker report picked up from the run directory
type ReportEvent struct {
	TicketID string
	Path     string
	Report   *ticket.Report
}

// Watcher observes one run directory and emits parsed worker reports.
// Ticket files and unrelated paths are ignored; only *.report.yaml
// files produce events.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	events  chan ReportEvent
	stop    chan struct{}
	settle  time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	pending  map[string]*time.Timer
	attempts map[string]int
}

// New creates a watcher for the given run directory. The directory must
// already exist; Start begins delivery.
func New(dir string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat run directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("run directory %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("initialize filesystem watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		events:   make(chan ReportEvent, 16),
		stop:     make(chan struct{}),
		settle:   defaultSettleDelay,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		attempts: make(map[string]int),
	}, nil
}

// Start begins watching and then sweeps reports already on disk, in
// that order, so a report landing between the two is never missed.
// Events flow on the Events channel until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch run directory: %w", err)
	}

	go w.processEvents(ctx)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan run directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if ticket.IsReportPath(path) {
			w.schedule(path)
		}
	}
	return nil
}

// Stop halts delivery and releases the filesystem watcher. Safe to call
// more than once.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// Events returns the channel parsed reports are delivered on
func (w *Watcher) Events() <-chan ReportEvent {
	return w.events
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !ticket.IsReportPath(event.Name) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("run directory watcher error")
		}
	}
}

// schedule arms (or re-arms) the settle timer for a report path. Bursts
// of write events collapse into a single parse once the file goes quiet.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.deliver(path)
	})
}

func (w *Watcher) deliver(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	report, err := ticket.LoadReport(path)
	if err != nil {
		w.retryOrDrop(path, err)
		return
	}

	w.mu.Lock()
	delete(w.attempts, path)
	w.mu.Unlock()

	ev := ReportEvent{
		TicketID: ticket.TicketIDFromPath(path),
		Path:     path,
		Report:   report,
	}
	select {
	case w.events <- ev:
	case <-w.stop:
	}
}

// retryOrDrop re-arms the settle timer for a report that failed to
// parse, assuming a writer is still mid-flight. After maxParseAttempts
// the file is abandoned and logged; a later write event starts over.
func (w *Watcher) retryOrDrop(path string, cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.attempts[path]++
	if w.attempts[path] >= maxParseAttempts {
		delete(w.attempts, path)
		w.logger.WithError(cause).Error("report file unreadable, giving up",
			"path", path, "attempts", maxParseAttempts)
		return
	}

	select {
	case <-w.stop:
		return
	default:
	}
	if _, ok := w.pending[path]; !ok {
		w.pending[path] = time.AfterFunc(w.settle, func() {
			w.deliver(path)
		})
	}
}
