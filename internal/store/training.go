package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const trainingCols = `id, athlete_id, started_at, distance_km, duration_sec, avg_hr, stress, session_type, deleted_at`

func scanTraining(row interface{ Scan(...any) error }) (TrainingRecord, error) {
	var r TrainingRecord
	err := row.Scan(&r.ID, &r.AthleteID, &r.StartedAt, &r.DistanceKm, &r.DurationSec,
		&r.AvgHR, &r.Stress, &r.SessionType, &r.DeletedAt)
	return r, err
}

// InsertTrainingRecord appends one completed run.
func (s *Store) InsertTrainingRecord(ctx context.Context, r TrainingRecord) (TrainingRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO training_records (athlete_id, started_at, distance_km, duration_sec, avg_hr, stress, session_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+trainingCols,
		r.AthleteID, r.StartedAt, r.DistanceKm, r.DurationSec, r.AvgHR, r.Stress, r.SessionType)
	out, err := scanTraining(row)
	if err != nil {
		return TrainingRecord{}, fmt.Errorf("insert training record: %w", err)
	}
	return out, nil
}

// ListTrainingRange returns non-deleted runs started in [from, to),
// ordered oldest first.
func (s *Store) ListTrainingRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]TrainingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+trainingCols+` FROM training_records
		WHERE athlete_id = $1 AND started_at >= $2 AND started_at < $3 AND deleted_at IS NULL
		ORDER BY started_at`,
		athleteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list training range: %w", err)
	}
	defer rows.Close()

	var out []TrainingRecord
	for rows.Next() {
		r, err := scanTraining(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SoftDeleteTrainingRecord marks a run as deleted without removing it.
func (s *Store) SoftDeleteTrainingRecord(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training_records SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete training record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
