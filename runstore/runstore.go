package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/randalmurphal/blueprint/notify"
)

// ErrRunNotFound indicates no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	// StatusDegraded marks a rendered run where at least one stage failed.
	StatusDegraded = "degraded"
	// StatusError marks a run that produced no document.
	StatusError = "error"
)

// Run is one blueprint run as recorded in history.
type Run struct {
	ID           string    `json:"run_id"`
	ProjectID    string    `json:"project_id"`
	Paradigm     string    `json:"paradigm,omitempty"`
	Status       string    `json:"status"`
	Principal    string    `json:"principal,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	FailedStages []string  `json:"failed_stages,omitempty"`
	MarkdownPath string    `json:"markdown_path,omitempty"`
	PDFPath      string    `json:"pdf_path,omitempty"`
	IssueURL     string    `json:"issue_url,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Filter narrows ListRuns.
type Filter struct {
	ProjectID string
	Status    string
	// Limit caps the result; zero means 50.
	Limit int
}

// SQLite records runs and their lifecycle events.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run store directory: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps WAL mode free of lock contention.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// =============================================================================
// Runs
// =============================================================================

// StartRun inserts a run in the running state.
func (s *SQLite) StartRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project_id, paradigm, status, principal, started_at) VALUES (?,?,?,?,?,?)`,
		run.ID, run.ProjectID, run.Paradigm, run.Status, run.Principal, formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run started with StartRun.
func (s *SQLite) FinishRun(ctx context.Context, run Run) error {
	failed, err := json.Marshal(nonNil(run.FailedStages))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET paradigm = ?, status = ?, ended_at = ?, duration_ms = ?,
		       input_tokens = ?, output_tokens = ?, failed_stages = ?,
		       markdown_path = ?, pdf_path = ?, issue_url = ?, error = ?
		WHERE id = ?`,
		run.Paradigm, run.Status, formatTime(run.EndedAt), run.DurationMS,
		run.InputTokens, run.OutputTokens, string(failed),
		run.MarkdownPath, run.PDFPath, run.IssueURL, run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, project_id, paradigm, status, principal, started_at, ended_at, duration_ms,
	input_tokens, output_tokens, failed_stages, markdown_path, pdf_path, issue_url, error`

// GetRun returns one run.
func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLite) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	var where []string
	var args []any
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its events.
func (s *SQLite) DeleteRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// PruneBefore deletes finished runs that ended before cutoff and returns how
// many were removed.
func (s *SQLite) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE ended_at != '' AND ended_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var started, ended, failed string
	if err := row.Scan(&run.ID, &run.ProjectID, &run.Paradigm, &run.Status, &run.Principal,
		&started, &ended, &run.DurationMS, &run.InputTokens, &run.OutputTokens, &failed,
		&run.MarkdownPath, &run.PDFPath, &run.IssueURL, &run.Error); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(started)
	run.EndedAt = parseTime(ended)
	_ = json.Unmarshal([]byte(failed), &run.FailedStages)
	return &run, nil
}

// =============================================================================
// Events
// =============================================================================

// AppendEvent stores an event under its run. Events without a run ID are
// ignored.
func (s *SQLite) AppendEvent(ctx context.Context, e notify.Event) error {
	if e.RunID == "" {
		return nil
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, run_id, type, node, status, timestamp, metadata) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.RunID, string(e.Type), e.Node, string(e.Status), formatTime(e.Timestamp), string(meta),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Events returns a run's events in the order they were recorded.
func (s *SQLite) Events(ctx context.Context, runID string) ([]notify.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.type, r.project_id, e.run_id, e.node, e.status, e.timestamp, e.metadata
		FROM events e JOIN runs r ON r.id = e.run_id
		WHERE e.run_id = ? ORDER BY e.seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]notify.Event, 0)
	for rows.Next() {
		var e notify.Event
		var typ, status, ts, meta string
		if err := rows.Scan(&e.ID, &typ, &e.ProjectID, &e.RunID, &e.Node, &status, &ts, &meta); err != nil {
			return nil, err
		}
		e.Type = notify.EventType(typ)
		e.Status = notify.Status(status)
		e.Timestamp = parseTime(ts)
		e.Metadata = map[string]any{}
		_ = json.Unmarshal([]byte(meta), &e.Metadata)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Notifier returns a notifier that appends every event to the log.
func (s *SQLite) Notifier() notify.Notifier {
	return notify.NotifierFunc(s.AppendEvent)
}

// =============================================================================
// Helpers
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
