package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewline/foreman/internal/log"
	"github.com/crewline/foreman/internal/plan"
	"github.com/crewline/foreman/internal/store"
)

// schemaVersion is bumped whenever the table shapes change. The index is
// derived, so a version or checksum mismatch drops everything and
// rebuilds instead of migrating.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	deliverable_id TEXT NOT NULL,
	phase_id TEXT NOT NULL,
	capability TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE TABLE IF NOT EXISTS decisions (
	seq INTEGER PRIMARY KEY,
	entry_id TEXT NOT NULL,
	time TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	event TEXT NOT NULL DEFAULT '',
	supersedes TEXT NOT NULL DEFAULT ''
);
`

const (
	metaSchemaVersion  = "schema_version"
	metaSchemaChecksum = "schema_checksum"
	metaBlueprintHash  = "blueprint_hash"
	metaReconciledAt   = "reconciled_at"
)

// Index is a derived SQLite view over the plan and the decision log for
// fast queries. plan.json and decisions.jsonl stay authoritative; the
// index may be deleted at any time and rebuilt with Rehydrate.
type Index struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open opens or creates the index database. A schema mismatch from an
// older or newer build wipes the tables; the next Reconcile refills
// them.
func Open(path string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	x := &Index{db: db, path: path, logger: logger}
	if err := x.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return x, nil
}

// Close closes the underlying database
func (x *Index) Close() error {
	return x.db.Close()
}

// Path returns the database file path
func (x *Index) Path() string {
	return x.path
}

func schemaChecksum() string {
	sum := sha256.Sum256([]byte(schemaDDL))
	return hex.EncodeToString(sum[:])
}

func (x *Index) init(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := x.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := x.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create cache schema: %w", err)
	}

	version, _ := x.metaGet(ctx, metaSchemaVersion)
	checksum, _ := x.metaGet(ctx, metaSchemaChecksum)
	want := fmt.Sprintf("%d", schemaVersion)
	if version != "" && (version != want || checksum != schemaChecksum()) {
		x.logger.Warn("cache schema changed, dropping derived index",
			"had_version", version, "want_version", want)
		if err := x.wipe(ctx); err != nil {
			return err
		}
	}
	if err := x.metaSet(ctx, metaSchemaVersion, want); err != nil {
		return err
	}
	return x.metaSet(ctx, metaSchemaChecksum, schemaChecksum())
}

// wipe clears every derived row, keeping the schema in place
func (x *Index) wipe(ctx context.Context) error {
	for _, table := range []string{"tasks", "decisions", "meta"} {
		if _, err := x.db.ExecContext(ctx, "DELETE FROM "+table+";"); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (x *Index) metaGet(ctx context.Context, key string) (string, error) {
	var v string
	err := x.db.QueryRowContext(ctx, "SELECT v FROM meta WHERE k = ?;", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return v, nil
}

func (x *Index) metaSet(ctx context.Context, key, value string) error {
	_, err := x.db.ExecContext(ctx,
		"INSERT INTO meta (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v;",
		key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

// Reconcile brings the index up to date. A changed canonical blueprint
// hash means the plan was recompiled, so everything is re-ingested;
// otherwise task rows are refreshed in place and new decision entries
// appended.
func (x *Index) Reconcile(ctx context.Context, p *plan.Plan, decisions *store.DecisionLog, canonicalHash string) error {
	stored, err := x.metaGet(ctx, metaBlueprintHash)
	if err != nil {
		return err
	}
	if stored != canonicalHash {
		if stored != "" {
			x.logger.Info("blueprint hash changed, re-ingesting derived index",
				"had", stored, "now", canonicalHash)
		}
		return x.Rehydrate(ctx, p, decisions, canonicalHash)
	}
	return x.ingest(ctx, p, decisions, canonicalHash, false)
}

// Rehydrate drops every derived row and re-ingests from scratch
func (x *Index) Rehydrate(ctx context.Context, p *plan.Plan, decisions *store.DecisionLog, canonicalHash string) error {
	return x.ingest(ctx, p, decisions, canonicalHash, true)
}

func (x *Index) ingest(ctx context.Context, p *plan.Plan, decisions *store.DecisionLog, canonicalHash string, wipeFirst bool) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if wipeFirst {
		for _, table := range []string{"tasks", "decisions"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+";"); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	if p != nil {
		for i := range p.Tasks {
			t := &p.Tasks[i]
			phaseID := ""
			if d := p.DeliverableByID(t.DeliverableID); d != nil {
				phaseID = d.PhaseID.String()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tasks (id, deliverable_id, phase_id, capability, status, reason)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET status = excluded.status, reason = excluded.reason;`,
				t.ID.String(), t.DeliverableID.String(), phaseID,
				t.Capability.String(), string(t.Status), t.Reason); err != nil {
				return fmt.Errorf("upsert task %s: %w", t.ID, err)
			}
		}
	}

	if decisions != nil {
		for _, e := range decisions.Entries() {
			event := ""
			if e.Transition != nil {
				event = e.Transition.Event
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO decisions (seq, entry_id, time, actor, title, status, event, supersedes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
				e.Seq, e.ID, e.Time.UTC().Format(time.RFC3339Nano),
				e.Actor, e.Title, string(e.Status), event, e.Supersedes); err != nil {
				return fmt.Errorf("insert decision %d: %w", e.Seq, err)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for k, v := range map[string]string{
		metaBlueprintHash: canonicalHash,
		metaReconciledAt:  now,
	} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO meta (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v;",
			k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest: %w", err)
	}
	return nil
}

// TaskCounts returns the number of tasks per status
func (x *Index) TaskCounts(ctx context.Context) (map[string]int, error) {
	rows, err := x.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status;")
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// TaskRow is one task as the index stores it
type TaskRow struct {
	ID            string `json:"id" yaml:"id"`
	DeliverableID string `json:"deliverable_id" yaml:"deliverable_id"`
	PhaseID       string `json:"phase_id" yaml:"phase_id"`
	Capability    string `json:"capability" yaml:"capability"`
	Status        string `json:"status" yaml:"status"`
	Reason        string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// TasksByStatus lists tasks in one status ordered by id
func (x *Index) TasksByStatus(ctx context.Context, status string) ([]TaskRow, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT id, deliverable_id, phase_id, capability, status, reason
		FROM tasks WHERE status = ? ORDER BY id;`, status)
	if err != nil {
		return nil, fmt.Errorf("query tasks by status: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(&r.ID, &r.DeliverableID, &r.PhaseID, &r.Capability, &r.Status, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DecisionRow is one decision entry as the index stores it
type DecisionRow struct {
	Seq    uint64    `json:"seq" yaml:"seq"`
	ID     string    `json:"id" yaml:"id"`
	Time   time.Time `json:"time" yaml:"time"`
	Actor  string    `json:"actor,omitempty" yaml:"actor,omitempty"`
	Title  string    `json:"title" yaml:"title"`
	Status string    `json:"status" yaml:"status"`
	Event  string    `json:"event,omitempty" yaml:"event,omitempty"`
}

// PendingDecisions lists proposed entries oldest first. An entry a
// later one supersedes is no longer pending, whatever its own status
// column says.
func (x *Index) PendingDecisions(ctx context.Context) ([]DecisionRow, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT seq, entry_id, time, actor, title, status, event
		FROM decisions
		WHERE status = ?
		  AND entry_id NOT IN (SELECT supersedes FROM decisions WHERE supersedes <> '')
		ORDER BY seq;`, string(store.StatusProposed))
	if err != nil {
		return nil, fmt.Errorf("query pending decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		r, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastDecisionSeq returns the highest ingested sequence number, 0 when
// no decisions are indexed.
func (x *Index) LastDecisionSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	err := x.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM decisions;").Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read max decision seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// BlueprintHash returns the canonical hash the index was last reconciled
// against, empty for a fresh index.
func (x *Index) BlueprintHash(ctx context.Context) (string, error) {
	return x.metaGet(ctx, metaBlueprintHash)
}

func scanDecision(rows *sql.Rows) (DecisionRow, error) {
	var r DecisionRow
	var stamp string
	if err := rows.Scan(&r.Seq, &r.ID, &stamp, &r.Actor, &r.Title, &r.Status, &r.Event); err != nil {
		return DecisionRow{}, fmt.Errorf("scan decision row: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return DecisionRow{}, fmt.Errorf("parse decision time %q: %w", stamp, err)
	}
	r.Time = parsed
	return r, nil
}
