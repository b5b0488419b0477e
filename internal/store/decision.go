package store

import (
	"fmt"
	"time"
)

// EntryStatus represents the lifecycle state of a decision entry
type EntryStatus string

const (
	// StatusProposed marks a decision awaiting approval
	StatusProposed EntryStatus = "proposed"
	// StatusAccepted marks an approved decision; accepted entries are immutable
	StatusAccepted EntryStatus = "accepted"
	// StatusRejected marks a decision that was declined
	StatusRejected EntryStatus = "rejected"
	// StatusSuperseded marks a decision replaced by a later entry
	StatusSuperseded EntryStatus = "superseded"
)

// Valid reports whether the status is one of the known entry states
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusProposed, StatusAccepted, StatusRejected, StatusSuperseded:
		return true
	}
	return false
}

// Transition records a control-state change carried by a decision entry.
// Replay after a crash uses these to re-apply transitions that were logged
// but not yet reflected in a snapshot.
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Event string `json:"event"`
	Phase string `json:"phase,omitempty"`
	Note  string `json:"note,omitempty"`
}

// Entry is one record in the append-only decision log. Entries are never
// modified in place; a correction appends a new entry whose Supersedes
// field names the entry it replaces.
type Entry struct {
	ID           string      `json:"id"`
	Seq          uint64      `json:"seq"`
	Time         time.Time   `json:"time"`
	Actor        string      `json:"actor,omitempty"`
	Title        string      `json:"title"`
	Context      string      `json:"context,omitempty"`
	Decision     string      `json:"decision"`
	Alternatives []string    `json:"alternatives,omitempty"`
	Consequences []string    `json:"consequences,omitempty"`
	Status       EntryStatus `json:"status"`
	Supersedes   string      `json:"supersedes,omitempty"`
	Transition   *Transition `json:"transition,omitempty"`
}

// Validate checks that an entry is complete enough to append
func (e *Entry) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("decision entry requires a title")
	}
	if e.Decision == "" {
		return fmt.Errorf("decision entry requires a decision")
	}
	if e.Status != "" && !e.Status.Valid() {
		return fmt.Errorf("unknown entry status %q", e.Status)
	}
	return nil
}

// DecisionLog is the ordered, replayable record of every decision the
// controller has made.
type DecisionLog struct {
	entries []Entry
}

// NewDecisionLog builds a log view over already-ordered entries
func NewDecisionLog(entries []Entry) *DecisionLog {
	return &DecisionLog{entries: entries}
}

// Entries returns all entries in append order
func (l *DecisionLog) Entries() []Entry {
	return l.entries
}

// Len returns the number of entries
func (l *DecisionLog) Len() int {
	return len(l.entries)
}

// Last returns the most recent entry, or nil for an empty log
func (l *DecisionLog) Last() *Entry {
	if len(l.entries) == 0 {
		return nil
	}
	return &l.entries[len(l.entries)-1]
}

// LastSeq returns the sequence number of the most recent entry, 0 if empty
func (l *DecisionLog) LastSeq() uint64 {
	if last := l.Last(); last != nil {
		return last.Seq
	}
	return 0
}

// After returns entries with sequence numbers strictly greater than seq,
// in append order. Resume replays exactly this slice.
func (l *DecisionLog) After(seq uint64) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// ByID returns the entry with the given id, or nil
func (l *DecisionLog) ByID(id string) *Entry {
	for i := range l.entries {
		if l.entries[i].ID == id {
			return &l.entries[i]
		}
	}
	return nil
}

// EffectiveStatus resolves an entry's status accounting for later
// superseding entries. The log itself is immutable; supersession is a
// property computed at read time.
func (l *DecisionLog) EffectiveStatus(id string) (EntryStatus, bool) {
	entry := l.ByID(id)
	if entry == nil {
		return "", false
	}
	for _, e := range l.entries {
		if e.Supersedes == id && e.Seq > entry.Seq {
			return StatusSuperseded, true
		}
	}
	status := entry.Status
	if status == "" {
		status = StatusAccepted
	}
	return status, true
}
