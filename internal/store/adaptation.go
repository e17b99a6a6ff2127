package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const bottleneckCols = `id, athlete_id, week_start, kind, confidence, evidence, created_at`

func scanBottleneck(row interface{ Scan(...any) error }) (BottleneckAssessment, error) {
	var b BottleneckAssessment
	err := row.Scan(&b.ID, &b.AthleteID, &b.WeekStart, &b.Kind, &b.Confidence, &b.Evidence, &b.CreatedAt)
	return b, err
}

// LatestBottleneck returns the most recent assessment, or nil when the
// athlete has never been assessed.
func (s *Store) LatestBottleneck(ctx context.Context, athleteID uuid.UUID) (*BottleneckAssessment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bottleneckCols+` FROM bottleneck_assessments
		WHERE athlete_id = $1 ORDER BY created_at DESC LIMIT 1`,
		athleteID)
	b, err := scanBottleneck(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest bottleneck: %w", err)
	}
	return &b, nil
}

// BottleneckForWeek returns the assessment for one week, or nil.
func (s *Store) BottleneckForWeek(ctx context.Context, athleteID uuid.UUID, weekStart time.Time) (*BottleneckAssessment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bottleneckCols+` FROM bottleneck_assessments WHERE athlete_id = $1 AND week_start = $2`,
		athleteID, weekStart)
	b, err := scanBottleneck(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bottleneck for week: %w", err)
	}
	return &b, nil
}

// InsertBottleneck appends a weekly bottleneck assessment.
func (s *Store) InsertBottleneck(ctx context.Context, b BottleneckAssessment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bottleneck_assessments (athlete_id, week_start, kind, confidence, evidence)
		VALUES ($1, $2, $3, $4, $5)`,
		b.AthleteID, b.WeekStart, b.Kind, b.Confidence, b.Evidence)
	if err != nil {
		return fmt.Errorf("insert bottleneck: %w", err)
	}
	return nil
}

// OpenPhilosophyPeriod returns the period currently in force, or nil.
func (s *Store) OpenPhilosophyPeriod(ctx context.Context, athleteID uuid.UUID) (*PhilosophyPeriod, error) {
	var p PhilosophyPeriod
	err := s.pool.QueryRow(ctx, `
		SELECT id, athlete_id, philosophy, reason, started_at, ended_at
		FROM philosophy_periods WHERE athlete_id = $1 AND ended_at IS NULL`,
		athleteID).Scan(&p.ID, &p.AthleteID, &p.Philosophy, &p.Reason, &p.StartedAt, &p.EndedAt)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open philosophy period: %w", err)
	}
	return &p, nil
}

// TransitionPhilosophy closes the open period (if any) and opens a new
// one in a single transaction. Either both writes land or neither does,
// so the one-open-period invariant holds even on failure.
func (s *Store) TransitionPhilosophy(ctx context.Context, athleteID uuid.UUID, philosophy string, reason *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin philosophy transition: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE philosophy_periods SET ended_at = now() WHERE athlete_id = $1 AND ended_at IS NULL`,
		athleteID); err != nil {
		return fmt.Errorf("close philosophy period: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO philosophy_periods (athlete_id, philosophy, reason) VALUES ($1, $2, $3)`,
		athleteID, philosophy, reason); err != nil {
		return fmt.Errorf("open philosophy period: %w", err)
	}
	return tx.Commit(ctx)
}

// GetAdaptationRecord returns the record for one week, or nil.
func (s *Store) GetAdaptationRecord(ctx context.Context, athleteID uuid.UUID, weekStart time.Time) (*AdaptationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+adaptationCols+` FROM adaptation_records WHERE athlete_id = $1 AND week_start = $2`,
		athleteID, weekStart)
	r, err := scanAdaptation(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get adaptation record: %w", err)
	}
	return &r, nil
}

// LatestAdaptationRecord returns the most recent record by week, or nil.
func (s *Store) LatestAdaptationRecord(ctx context.Context, athleteID uuid.UUID) (*AdaptationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+adaptationCols+` FROM adaptation_records
		WHERE athlete_id = $1 ORDER BY week_start DESC LIMIT 1`,
		athleteID)
	r, err := scanAdaptation(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest adaptation record: %w", err)
	}
	return &r, nil
}

// InsertAdaptationRecord writes one week's record. Closed weeks are
// immutable: a conflict on (athlete, week) is an error, not an update.
func (s *Store) InsertAdaptationRecord(ctx context.Context, r AdaptationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO adaptation_records (athlete_id, week_start, planned_km, actual_km, planned_sessions, completed_sessions, ratio, outcome, volume_adjust_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.AthleteID, r.WeekStart, r.PlannedKm, r.ActualKm, r.PlannedSessions,
		r.CompletedSessions, r.Ratio, r.Outcome, r.VolumeAdjustPct)
	if err != nil {
		return fmt.Errorf("insert adaptation record: %w", err)
	}
	return nil
}

const adaptationCols = `id, athlete_id, week_start, planned_km, actual_km, planned_sessions, completed_sessions, ratio, outcome, volume_adjust_pct, created_at`

func scanAdaptation(row interface{ Scan(...any) error }) (AdaptationRecord, error) {
	var r AdaptationRecord
	err := row.Scan(&r.ID, &r.AthleteID, &r.WeekStart, &r.PlannedKm, &r.ActualKm,
		&r.PlannedSessions, &r.CompletedSessions, &r.Ratio, &r.Outcome, &r.VolumeAdjustPct, &r.CreatedAt)
	return r, err
}
