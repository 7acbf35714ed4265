package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"episodereel/internal/services"
)

// BeginRun inserts a running record for id.
func (s *Store) BeginRun(ctx context.Context, id, source, outDir string) (*Run, error) {
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "journal", "begin run", "run id is empty", nil)
	}
	now := time.Now().UTC()
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, source, out_dir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, source, outDir, string(StatusRunning), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{ID: id, Source: source, OutDir: outDir, Status: StatusRunning, StartedAt: now}, nil
}

// RecordEpisode stores a flushed episode for runID.
func (s *Store) RecordEpisode(ctx context.Context, runID string, ep Episode) error {
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT OR REPLACE INTO episodes (run_id, episode_id, first_frame, frame_count, file_path, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, ep.EpisodeID, ep.FirstFrame, ep.FrameCount, ep.FilePath, ep.Text, formatTime(ep.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert episode %d: %w", ep.EpisodeID, err)
	}
	return nil
}

// FinishRun stores the outcome of runID. The status is derived from the
// outcome error.
func (s *Store) FinishRun(ctx context.Context, runID string, outcome Outcome) error {
	message := ""
	if outcome.Err != nil {
		message = outcome.Err.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET range_start = ?, range_end = ?, frames_read = ?, status = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		outcome.RangeStart, outcome.RangeEnd, outcome.FramesRead,
		services.Classify(outcome.Err), message, formatTime(time.Now()), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if rows, rowsErr := res.RowsAffected(); rowsErr == nil && rows == 0 {
		return services.Wrap(services.ErrNotFound, "journal", "finish run", runID, nil)
	}
	return nil
}

const runColumns = `r.id, r.source, r.out_dir, r.range_start, r.range_end, r.frames_read, r.status,
	r.error_message, r.started_at, r.finished_at,
	(SELECT COUNT(1) FROM episodes e WHERE e.run_id = r.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		status   string
		started  string
		finished string
	)
	if err := row.Scan(&run.ID, &run.Source, &run.OutDir, &run.RangeStart, &run.RangeEnd, &run.FramesRead,
		&status, &run.Error, &started, &finished, &run.Episodes); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

// GetRun returns the run with id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "journal", "get run", id, nil)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Episodes returns the episodes recorded for runID in flush order.
func (s *Store) Episodes(ctx context.Context, runID string) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode_id, first_frame, frame_count, file_path, text, created_at
		 FROM episodes WHERE run_id = ? ORDER BY first_frame`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var (
			ep      Episode
			created string
		)
		if err := rows.Scan(&ep.EpisodeID, &ep.FirstFrame, &ep.FrameCount, &ep.FilePath, &ep.Text, &created); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.CreatedAt = parseTime(created)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}
