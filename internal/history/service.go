// Package history records completed runs and created playlists.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is one row in the run history.
type RunRecord struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Status          string     `json:"status"`
	CandidateCount  int        `json:"candidate_count"`
	ResolvedCount   int        `json:"resolved_count"`
	UnresolvedCount int        `json:"unresolved_count"`
	Summary         string     `json:"summary"`
}

// PlaylistRecord is one created playlist.
type PlaylistRecord struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Name       string    `json:"name"`
	TrackCount int       `json:"track_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Service persists run and playlist history.
type Service struct {
	db *sql.DB
}

// NewService creates a history service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// StartRun records a newly started run.
func (s *Service) StartRun(ctx context.Context, id string, candidateCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, candidate_count) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC(), StatusRunning, candidateCount)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal state and tallies.
func (s *Service) FinishRun(ctx context.Context, id, status string, resolved, unresolved int, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, resolved_count = ?, unresolved_count = ?, summary = ?
		 WHERE id = ?`,
		time.Now().UTC(), status, resolved, unresolved, summary, id)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	return nil
}

// RecordPlaylist records a created playlist, optionally linked to a run.
func (s *Service) RecordPlaylist(ctx context.Context, id, runID, name string, trackCount int) error {
	var run any
	if runID != "" {
		run = runID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, run_id, name, track_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, run, name, trackCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording playlist: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, candidate_count, resolved_count, unresolved_count, summary
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status,
			&r.CandidateCount, &r.ResolvedCount, &r.UnresolvedCount, &r.Summary); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListPlaylists returns the most recent playlists, newest first.
func (s *Service) ListPlaylists(ctx context.Context, limit int) ([]PlaylistRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(run_id, ''), name, track_count, created_at
		 FROM playlists ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var records []PlaylistRecord
	for rows.Next() {
		var p PlaylistRecord
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.TrackCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning playlist row: %w", err)
		}
		records = append(records, p)
	}
	return records, rows.Err()
}
