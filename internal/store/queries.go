package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/botwatch/internal/extractor"
)

// Fixed-width UTC timestamps so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Run operations

// InsertRun starts a new run for logPath and returns it with a fresh ID.
func (s *Store) InsertRun(logPath, command string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		LogPath:   logPath,
		Command:   command,
		StartedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO runs (id, log_path, command, started_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, run.ID, run.LogPath, run.Command, formatTime(run.StartedAt)); err != nil {
		return nil, wrapErr("failed to insert run", err)
	}
	return run, nil
}

// FinishRun records the end time and exit code of a run.
func (s *Store) FinishRun(id string, exitCode int) error {
	query := `UPDATE runs SET finished_at = ?, exit_code = ? WHERE id = ?`

	result, err := s.db.Exec(query, formatTime(time.Now()), exitCode, id)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to finish run %s", id), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

const runColumns = `
	r.id, r.log_path, COALESCE(r.command, ''), r.started_at, r.finished_at, r.exit_code,
	(SELECT COUNT(*) FROM events e WHERE e.run_id = r.id)
`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r WHERE r.id = ?`

	run, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get run %s", id), err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	var exitCode sql.NullInt64

	if err := row.Scan(&run.ID, &run.LogPath, &run.Command, &startedAt, &finishedAt, &exitCode, &run.EventCount); err != nil {
		return nil, err
	}

	var err error
	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %s: %w", run.ID, err)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for run %s: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	return &run, nil
}

// Event operations

// InsertEvent records ev against runID and returns the new event ID.
func (s *Store) InsertEvent(runID string, ev extractor.Event, detectedAt time.Time) (int64, error) {
	query := `
		INSERT INTO events (run_id, kind, body, detected_at, coverage_pct, coverage_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var pct, at any
	if ev.Coverage != nil {
		pct = ev.Coverage.Percent
		if !ev.Coverage.Timestamp.IsZero() {
			at = formatTime(ev.Coverage.Timestamp)
		}
	}

	result, err := s.db.Exec(query, runID, ev.Kind.String(), ev.Body, formatTime(detectedAt), pct, at)
	if err != nil {
		return 0, wrapErr(fmt.Sprintf("failed to insert %s event", ev.Kind), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event ID: %w", err)
	}
	return id, nil
}

// ListEvents returns events in detection order. An empty runID or kind
// matches everything; a limit <= 0 returns all matches.
func (s *Store) ListEvents(runID, kind string, limit int) ([]*Event, error) {
	var where []string
	var args []any
	if runID != "" {
		where = append(where, "run_id = ?")
		args = append(args, runID)
	}
	if kind != "" {
		k, ok := extractor.ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q (want exception, statistics or coverage)", kind)
		}
		where = append(where, "kind = ?")
		args = append(args, k.String())
	}

	query := `SELECT id, run_id, kind, body, detected_at, coverage_pct, coverage_at FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list events", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		var kindStr, detectedAt string
		var pct sql.NullFloat64
		var at sql.NullString

		if err := rows.Scan(&ev.ID, &ev.RunID, &kindStr, &ev.Body, &detectedAt, &pct, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		k, ok := extractor.ParseKind(kindStr)
		if !ok {
			return nil, fmt.Errorf("event %d has unknown kind %q", ev.ID, kindStr)
		}
		ev.Kind = k

		ev.DetectedAt, err = parseTime(detectedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse detected_at for event %d: %w", ev.ID, err)
		}
		if pct.Valid {
			p := pct.Float64
			ev.CoveragePct = &p
		}
		if at.Valid {
			t, err := parseTime(at.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse coverage_at for event %d: %w", ev.ID, err)
			}
			ev.CoverageAt = &t
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// CoverageSeries returns the coverage percentages of a run in detection
// order. Samples without a log timestamp use the detection time.
func (s *Store) CoverageSeries(runID string) ([]CoveragePoint, error) {
	query := `
		SELECT COALESCE(coverage_at, detected_at), coverage_pct
		FROM events
		WHERE run_id = ? AND kind = ? AND coverage_pct IS NOT NULL
		ORDER BY id
	`

	rows, err := s.db.Query(query, runID, extractor.KindCoverage.String())
	if err != nil {
		return nil, wrapErr("failed to query coverage series", err)
	}
	defer rows.Close()

	var points []CoveragePoint
	for rows.Next() {
		var at string
		var p CoveragePoint
		if err := rows.Scan(&at, &p.Percent); err != nil {
			return nil, fmt.Errorf("failed to scan coverage point: %w", err)
		}
		p.At, err = parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse coverage time: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coverage series: %w", err)
	}
	return points, nil
}
