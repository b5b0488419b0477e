package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crewline/foreman/internal/ticket"
)

// startWatcher wires a watcher with a short settle delay so tests do not
// crawl. Parse retries keep the short delay too.
func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.settle = 25 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func completeReport(ticketID string) *ticket.Report {
	return &ticket.Report{
		TicketID: ticketID,
		Status:   ticket.ReportComplete,
		Summary:  "done",
	}
}

func waitEvent(t *testing.T, w *Watcher) ReportEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for report event")
		return ReportEvent{}
	}
}

func expectNoEvent(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(wait):
	}
}

func TestWatcherEmitsReport(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "tkt-aaaa0001"+ticket.ReportSuffix)
	if err := completeReport("tkt-aaaa0001").Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	ev := waitEvent(t, w)
	if ev.TicketID != "tkt-aaaa0001" {
		t.Errorf("TicketID = %q, want tkt-aaaa0001", ev.TicketID)
	}
	if ev.Report.Status != ticket.ReportComplete {
		t.Errorf("Status = %q, want complete", ev.Report.Status)
	}
	if ev.Path != path {
		t.Errorf("Path = %q, want %q", ev.Path, path)
	}
}

func TestWatcherSweepsReportsAlreadyOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tkt-aaaa0002"+ticket.ReportSuffix)
	if err := completeReport("tkt-aaaa0002").Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	w := startWatcher(t, dir)

	ev := waitEvent(t, w)
	if ev.TicketID != "tkt-aaaa0002" {
		t.Errorf("TicketID = %q, want tkt-aaaa0002", ev.TicketID)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "tkt-aaaa0003.ticket.yaml"),
		[]byte("id: tkt-aaaa0003\n"), 0644); err != nil {
		t.Fatalf("write ticket file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("scratch\n"), 0644); err != nil {
		t.Fatalf("write notes file: %v", err)
	}

	expectNoEvent(t, w, 200*time.Millisecond)
}

func TestWatcherSettlesPartialWrites(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "tkt-aaaa0004"+ticket.ReportSuffix)
	if err := os.WriteFile(path, []byte("status: [unclosed"), 0644); err != nil {
		t.Fatalf("write partial file: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	report := &ticket.Report{
		TicketID: "tkt-aaaa0004",
		Status:   ticket.ReportBlocked,
		Reason:   "migration conflicts with live schema",
	}
	if err := report.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	ev := waitEvent(t, w)
	if ev.Report.Status != ticket.ReportBlocked {
		t.Errorf("Status = %q, want blocked", ev.Report.Status)
	}
	if ev.Report.Reason != "migration conflicts with live schema" {
		t.Errorf("Reason = %q", ev.Report.Reason)
	}

	expectNoEvent(t, w, 150*time.Millisecond)
}

func TestWatcherEmitsAgainOnRewrite(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "tkt-aaaa0005"+ticket.ReportSuffix)
	blocked := &ticket.Report{
		TicketID: "tkt-aaaa0005",
		Status:   ticket.ReportBlocked,
		Reason:   "waiting on credentials",
	}
	if err := blocked.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	first := waitEvent(t, w)
	if first.Report.Status != ticket.ReportBlocked {
		t.Fatalf("first Status = %q, want blocked", first.Report.Status)
	}

	// After a resubmit the worker writes the same path again.
	if err := completeReport("tkt-aaaa0005").Write(path); err != nil {
		t.Fatalf("rewrite error = %v", err)
	}
	second := waitEvent(t, w)
	if second.Report.Status != ticket.ReportComplete {
		t.Errorf("second Status = %q, want complete", second.Report.Status)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.Stop()
	w.Stop()

	path := filepath.Join(dir, "tkt-aaaa0006"+ticket.ReportSuffix)
	if err := completeReport("tkt-aaaa0006").Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	expectNoEvent(t, w, 150*time.Millisecond)
}

func TestNewRequiresExistingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("New() on missing directory succeeded, want error")
	}
}
