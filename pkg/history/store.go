// Package history persists audit runs in sqlite: run summaries, the
// per-tool execution log, and triage decisions. Prior decisions feed
// the next run's triage pass so terminal verdicts survive re-audits.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/solaudit/solaudit/pkg/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	target       TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL,
	accepted     INTEGER NOT NULL DEFAULT 0,
	rejected     INTEGER NOT NULL DEFAULT 0,
	needs_review INTEGER NOT NULL DEFAULT 0,
	exit_code    INTEGER NOT NULL DEFAULT 0,
	report_path  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS executions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	tool        TEXT NOT NULL,
	command     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	exit_code   INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	truncated   INTEGER NOT NULL DEFAULT 0,
	note        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_executions_run ON executions(run_id);

CREATE TABLE IF NOT EXISTS decisions (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	finding_id    TEXT NOT NULL,
	state         TEXT NOT NULL,
	rationale     TEXT NOT NULL,
	impact        TEXT NOT NULL DEFAULT '',
	evidence_hash TEXT NOT NULL DEFAULT '',
	evidence_refs TEXT NOT NULL DEFAULT '[]',
	strategy      TEXT NOT NULL DEFAULT '',
	decided_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, finding_id)
);
CREATE INDEX IF NOT EXISTS idx_decisions_finding ON decisions(finding_id);
`

// RunRecord is everything one finished audit leaves behind.
type RunRecord struct {
	RunID      string
	Target     string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	ReportPath string
	Log        []engine.ToolRun
	Decisions  map[string]engine.Decision
}

// RunSummary is the run list view.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Target      string    `json:"target"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Accepted    int       `json:"accepted"`
	Rejected    int       `json:"rejected"`
	NeedsReview int       `json:"needs_review"`
	ExitCode    int       `json:"exit_code"`
	ReportPath  string    `json:"report_path"`
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the history database. WAL keeps concurrent
// readers off the writer's back during long audits.
func Open(path string, logger *slog.Logger) (*Store, error) {
	connstr := fmt.Sprintf("file:%s?_foreign_keys=1&mode=rwc&_journal_mode=WAL&_busy_timeout=3000", path)
	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun writes a finished run atomically.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, target, started_at, finished_at, accepted, rejected, needs_review, exit_code, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Target, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		countState(rec.Decisions, engine.StateAccepted),
		countState(rec.Decisions, engine.StateRejected),
		countState(rec.Decisions, engine.StateNeedsHuman),
		rec.ExitCode, rec.ReportPath)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, r := range rec.Log {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO executions (run_id, tool, command, status, exit_code, started_at, duration_ms, truncated, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, r.Tool, r.Command, r.Status, r.ExitCode, r.StartedAt.UTC(), r.DurationMS, r.Truncated, r.Note)
		if err != nil {
			return fmt.Errorf("inserting execution for %s: %w", r.Tool, err)
		}
	}

	for _, d := range rec.Decisions {
		refs, err := json.Marshal(d.EvidenceRefs)
		if err != nil {
			return fmt.Errorf("encoding evidence refs for %s: %w", d.FindingID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO decisions (run_id, finding_id, state, rationale, impact, evidence_hash, evidence_refs, strategy, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, d.FindingID, string(d.State), d.Rationale, d.Impact, d.EvidenceHash, string(refs), d.Strategy, d.DecidedAt.UTC())
		if err != nil {
			return fmt.Errorf("inserting decision for %s: %w", d.FindingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	s.logger.Info("run recorded",
		"run_id", rec.RunID,
		"target", rec.Target,
		"executions", len(rec.Log),
		"decisions", len(rec.Decisions))
	return nil
}

func countState(decisions map[string]engine.Decision, state engine.TriageState) int {
	n := 0
	for _, d := range decisions {
		if d.State == state {
			n++
		}
	}
	return n
}

// LatestDecisions returns the decision set of the most recent run for
// a target, keyed by finding id. No prior run yields an empty map.
func (s *Store) LatestDecisions(ctx context.Context, target string) (map[string]engine.Decision, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE target = ? ORDER BY started_at DESC, id DESC LIMIT 1`, target).Scan(&runID)
	if err == sql.ErrNoRows {
		return map[string]engine.Decision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, state, rationale, impact, evidence_hash, evidence_refs, strategy, decided_at
		FROM decisions WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading decisions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]engine.Decision)
	for rows.Next() {
		var d engine.Decision
		var state, refs string
		if err := rows.Scan(&d.FindingID, &state, &d.Rationale, &d.Impact, &d.EvidenceHash, &refs, &d.Strategy, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		d.State = engine.TriageState(state)
		if err := json.Unmarshal([]byte(refs), &d.EvidenceRefs); err != nil {
			return nil, fmt.Errorf("decoding evidence refs for %s: %w", d.FindingID, err)
		}
		out[d.FindingID] = d
	}
	return out, rows.Err()
}

// Runs lists recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, started_at, finished_at, accepted, rejected, needs_review, exit_code, report_path
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Target, &r.StartedAt, &r.FinishedAt,
			&r.Accepted, &r.Rejected, &r.NeedsReview, &r.ExitCode, &r.ReportPath); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run fetches one run summary by id.
func (s *Store) Run(ctx context.Context, runID string) (*RunSummary, error) {
	var r RunSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target, started_at, finished_at, accepted, rejected, needs_review, exit_code, report_path
		FROM runs WHERE id = ?`, runID).
		Scan(&r.RunID, &r.Target, &r.StartedAt, &r.FinishedAt,
			&r.Accepted, &r.Rejected, &r.NeedsReview, &r.ExitCode, &r.ReportPath)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	return &r, nil
}

// Executions returns a run's tool log in execution order.
func (s *Store) Executions(ctx context.Context, runID string) ([]engine.ToolRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool, command, status, exit_code, started_at, duration_ms, truncated, note
		FROM executions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading executions: %w", err)
	}
	defer rows.Close()

	var out []engine.ToolRun
	for rows.Next() {
		var r engine.ToolRun
		if err := rows.Scan(&r.Tool, &r.Command, &r.Status, &r.ExitCode,
			&r.StartedAt, &r.DurationMS, &r.Truncated, &r.Note); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
