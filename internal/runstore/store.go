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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cspanlens/internal/analytics"
	"cspanlens/internal/services"
	"cspanlens/internal/topics"
)

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one row of run history.
type Run struct {
	ID                 string
	InputPath          string
	SourceURL          string
	OutputPath         string
	Status             string
	StartedAt          time.Time
	FinishedAt         *time.Time
	FramesRead         int
	FramesProcessed    int
	PoseFrames         int
	SpeechSegments     int
	TranscriptDegraded bool
	AnalyticsJSON      string
	ErrorMessage       string
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Report decodes the stored analytics report.
func (r *Run) Report() (analytics.Report, bool) {
	if r == nil || strings.TrimSpace(r.AnalyticsJSON) == "" {
		return analytics.Report{}, false
	}
	var report analytics.Report
	if err := json.Unmarshal([]byte(r.AnalyticsJSON), &report); err != nil {
		return analytics.Report{}, false
	}
	return report, true
}

// Store persists run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin inserts a running row for a new analysis.
func (s *Store) Begin(ctx context.Context, inputPath, sourceURL, outputPath string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		InputPath:  inputPath,
		SourceURL:  sourceURL,
		OutputPath: outputPath,
		Status:     services.StatusRunning,
		StartedAt:  s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, source_url, output_path, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.InputPath),
		nullableString(run.SourceURL),
		run.OutputPath,
		run.Status,
		run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the final state of run together with its context records.
func (s *Store) Finish(ctx context.Context, run *Run, records []topics.Record) error {
	if run == nil {
		return errors.New("run is nil")
	}
	finished := s.now()
	run.FinishedAt = &finished

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs
         SET input_path = ?, status = ?, finished_at = ?, frames_read = ?, frames_processed = ?,
             pose_frames = ?, speech_segments = ?, transcript_degraded = ?, analytics_json = ?,
             error_message = ?
         WHERE id = ?`,
		nullableString(run.InputPath),
		run.Status,
		finished.Format(timeLayout),
		run.FramesRead,
		run.FramesProcessed,
		run.PoseFrames,
		run.SpeechSegments,
		boolToInt(run.TranscriptDegraded),
		nullableString(run.AnalyticsJSON),
		nullableString(run.ErrorMessage),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, sql.ErrNoRows)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO context_records (run_id, timestamp, text, labels_json, scores_json, summary)
         VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare context insert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range records {
		labels, err := json.Marshal(rec.Topics.Labels)
		if err != nil {
			return fmt.Errorf("marshal labels: %w", err)
		}
		scores, err := json.Marshal(rec.Topics.Scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, rec.Timestamp, rec.Text, string(labels), string(scores), nullableString(rec.Summary)); err != nil {
			return fmt.Errorf("insert context record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish: %w", err)
	}
	return nil
}

const runColumns = `id, input_path, source_url, output_path, status, started_at, finished_at,
    frames_read, frames_processed, pose_frames, speech_segments, transcript_degraded,
    analytics_json, error_message`

// Get fetches a run by ID or by a unique ID prefix of at least four
// characters. It returns nil when nothing matches.
func (s *Store) Get(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.ToLower(strings.TrimSpace(idOrPrefix))
	if len(idOrPrefix) < 4 {
		return nil, services.Wrap(services.ErrValidation, "runstore", "get", "run id must have at least 4 characters", nil)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == idOrPrefix {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, services.Wrap(services.ErrValidation, "runstore", "get", fmt.Sprintf("run id prefix %q is ambiguous", idOrPrefix), nil)
	}
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Contexts returns the stored context records of a run in time order.
func (s *Store) Contexts(ctx context.Context, runID string) ([]topics.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, text, labels_json, scores_json, summary
         FROM context_records WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query context records: %w", err)
	}
	defer rows.Close()

	var records []topics.Record
	for rows.Next() {
		var (
			rec            topics.Record
			labels, scores string
			summary        sql.NullString
		)
		if err := rows.Scan(&rec.Timestamp, &rec.Text, &labels, &scores, &summary); err != nil {
			return nil, fmt.Errorf("scan context record: %w", err)
		}
		if err := json.Unmarshal([]byte(labels), &rec.Topics.Labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &rec.Topics.Scores); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
		rec.Summary = summary.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AbortStale marks runs left in the running state as aborted. Callers hold
// the run lock, so no such run can still be alive.
func (s *Store) AbortStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = COALESCE(error_message, ?)
         WHERE status = ?`,
		services.StatusAborted,
		s.now().Format(timeLayout),
		"process exited before the run finished",
		services.StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("abort stale runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                                  Run
		input, url, finished, report, msg sql.NullString
		started                           string
		degraded                          int
	)
	if err := row.Scan(
		&run.ID, &input, &url, &run.OutputPath, &run.Status, &started, &finished,
		&run.FramesRead, &run.FramesProcessed, &run.PoseFrames, &run.SpeechSegments, &degraded,
		&report, &msg,
	); err != nil {
		return nil, err
	}
	run.InputPath = input.String
	run.SourceURL = url.String
	run.AnalyticsJSON = report.String
	run.ErrorMessage = msg.String
	run.TranscriptDegraded = degraded != 0
	ts, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = ts
	if finished.Valid && finished.String != "" {
		ft, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &ft
	}
	return &run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func escapeLike(value string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(value)
}
