package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewline/foreman/internal/errors"
	"github.com/crewline/foreman/internal/log"
)

const (
	// LogFileName is the append-only decision log inside the state directory
	LogFileName = "decisions.jsonl"
	// SnapshotFileName is the atomically replaced status snapshot
	SnapshotFileName = "status.json"

	dirPerm  = 0750
	filePerm = 0600
)

// Store persists the decision log and status snapshot under one state
// directory. Appends are durable before they return; the snapshot is
// replaced atomically so a concurrent reader sees the old file or the new
// one, never a mix. A single controller process owns the store.
type Store struct {
	mu      sync.Mutex
	dir     string
	logFile *os.File
	nextSeq uint64
	logger  *log.Logger
}

// Open prepares the state directory and scans any existing decision log to
// recover the next sequence number. A torn final line from an interrupted
// append is truncated away so later appends start on a clean boundary.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("failed to create state directory: %s", dir), err)
	}

	s := &Store{
		dir:     dir,
		nextSeq: 1,
		logger:  logger,
	}

	entries, goodOffset, torn, err := readLog(s.LogPath())
	if err != nil {
		return nil, err
	}
	if torn {
		logger.Warn("decision log has a torn final line, truncating",
			"path", s.LogPath(), "offset", goodOffset)
		if terr := os.Truncate(s.LogPath(), goodOffset); terr != nil {
			return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to truncate torn decision log", terr)
		}
	}
	if n := len(entries); n > 0 {
		s.nextSeq = entries[n-1].Seq + 1
	}

	f, err := os.OpenFile(s.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to open decision log: %s", s.LogPath()), err)
	}
	s.logFile = f

	return s, nil
}

// Dir returns the state directory
func (s *Store) Dir() string {
	return s.dir
}

// LogPath returns the decision log path
func (s *Store) LogPath() string {
	return filepath.Join(s.dir, LogFileName)
}

// SnapshotPath returns the status snapshot path
func (s *Store) SnapshotPath() string {
	return filepath.Join(s.dir, SnapshotFileName)
}

// AppendDecision durably appends one entry to the decision log. The entry's
// ID, Seq, and Time are assigned here and written back to the caller's
// value. The write is fsynced before returning: once this returns nil the
// entry survives a crash. On error the log is unchanged apart from a
// possible torn tail, which the next Open repairs.
func (s *Store) AppendDecision(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := e.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreAppend, "invalid decision entry", err)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusAccepted
	}
	e.Seq = s.nextSeq

	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal decision entry", err)
	}

	if _, err := s.logFile.Write(append(data, '\n')); err != nil {
		return errors.NewStoreAppendError(s.LogPath(), err)
	}
	if err := s.logFile.Sync(); err != nil {
		return errors.NewStoreAppendError(s.LogPath(), err)
	}

	s.nextSeq++
	return nil
}

// LastSeq returns the sequence number of the most recently appended entry,
// 0 when the log is empty.
func (s *Store) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq - 1
}

// WriteStatusSnapshot atomically replaces the status snapshot. The new
// snapshot is written to a temp file in the same directory, fsynced, then
// renamed over the old one.
func (s *Store) WriteStatusSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Version = SnapshotVersion
	snap.WrittenAt = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal status snapshot", err)
	}
	data = append(data, '\n')

	if err := atomicWriteFile(s.SnapshotPath(), data, filePerm); err != nil {
		return errors.NewStoreSnapshotError(s.SnapshotPath(), err)
	}
	return nil
}

// ReadAll loads the decision log and the latest snapshot. A missing log or
// snapshot yields empty state, not an error; that is what a fresh project
// looks like. A torn final log line is dropped with a warning. Corruption
// anywhere earlier is an error: the log is the ground truth and silently
// skipping middle entries would forge history.
func (s *Store) ReadAll() (*DecisionLog, *Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, _, torn, err := readLog(s.LogPath())
	if err != nil {
		return nil, nil, err
	}
	if torn {
		s.logger.Warn("decision log has a torn final line, ignoring it", "path", s.LogPath())
	}

	snap, err := readSnapshot(s.SnapshotPath())
	if err != nil {
		return nil, nil, err
	}

	return NewDecisionLog(entries), snap, nil
}

// Close releases the append handle
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logFile == nil {
		return nil
	}
	err := s.logFile.Close()
	s.logFile = nil
	return err
}

// readLog parses the decision log, returning the entries, the byte offset
// just past the last fully valid line, and whether the final line was torn.
func readLog(path string) ([]Entry, int64, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, false, nil
		}
		return nil, 0, false, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read decision log: %s", path), err)
	}

	lines := strings.Split(string(data), "\n")
	lastContent := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lastContent = i
		}
	}

	var (
		entries []Entry
		offset  int64
		lastSeq uint64
	)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			if i < len(lines)-1 {
				offset += int64(len(line)) + 1
			}
			continue
		}

		var e Entry
		if uerr := json.Unmarshal([]byte(line), &e); uerr != nil {
			if i == lastContent {
				return entries, offset, true, nil
			}
			return nil, 0, false, errors.NewLogCorruptError(path, i+1, uerr)
		}
		if e.Seq <= lastSeq {
			return nil, 0, false, errors.NewLogCorruptError(path, i+1,
				fmt.Errorf("sequence %d not greater than previous %d", e.Seq, lastSeq))
		}
		lastSeq = e.Seq
		entries = append(entries, e)

		offset += int64(len(line))
		if i < len(lines)-1 {
			offset++
		}
	}

	return entries, offset, false, nil
}

// readSnapshot loads the snapshot, returning nil when none exists yet
func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read status snapshot: %s", path), err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "JSON", err)
	}
	return &snap, nil
}

// atomicWriteFile writes data to a temp file in the target's directory,
// fsyncs it, renames it over the target, then fsyncs the directory so the
// rename itself is durable.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
