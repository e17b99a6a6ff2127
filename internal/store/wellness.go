package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const wellnessCols = `id, athlete_id, day, hrv, resting_hr, sleep_score, deep_sleep_min, rem_sleep_min, light_sleep_min, self_reported, created_at`

func scanWellness(row interface{ Scan(...any) error }) (WellnessSample, error) {
	var w WellnessSample
	err := row.Scan(&w.ID, &w.AthleteID, &w.Day, &w.HRV, &w.RestingHR, &w.SleepScore,
		&w.DeepSleepMin, &w.RemSleepMin, &w.LightSleepMin, &w.SelfReported, &w.CreatedAt)
	return w, err
}

// UpsertWellnessSample writes one day of wellness data, replacing any
// existing row for that (athlete, day).
func (s *Store) UpsertWellnessSample(ctx context.Context, w WellnessSample) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wellness_samples (athlete_id, day, hrv, resting_hr, sleep_score, deep_sleep_min, rem_sleep_min, light_sleep_min, self_reported)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (athlete_id, day) DO UPDATE SET
			hrv = EXCLUDED.hrv,
			resting_hr = EXCLUDED.resting_hr,
			sleep_score = EXCLUDED.sleep_score,
			deep_sleep_min = EXCLUDED.deep_sleep_min,
			rem_sleep_min = EXCLUDED.rem_sleep_min,
			light_sleep_min = EXCLUDED.light_sleep_min,
			self_reported = EXCLUDED.self_reported`,
		w.AthleteID, w.Day, w.HRV, w.RestingHR, w.SleepScore,
		w.DeepSleepMin, w.RemSleepMin, w.LightSleepMin, w.SelfReported)
	if err != nil {
		return fmt.Errorf("upsert wellness sample: %w", err)
	}
	return nil
}

// GetWellnessSample returns the sample for one day, or nil when none
// was recorded.
func (s *Store) GetWellnessSample(ctx context.Context, athleteID uuid.UUID, day time.Time) (*WellnessSample, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+wellnessCols+` FROM wellness_samples WHERE athlete_id = $1 AND day = $2`,
		athleteID, day)
	w, err := scanWellness(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wellness sample: %w", err)
	}
	return &w, nil
}

// ListWellnessRange returns samples in [from, to] ordered oldest first.
func (s *Store) ListWellnessRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]WellnessSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+wellnessCols+` FROM wellness_samples
		 WHERE athlete_id = $1 AND day BETWEEN $2 AND $3 ORDER BY day`,
		athleteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list wellness range: %w", err)
	}
	defer rows.Close()

	var out []WellnessSample
	for rows.Next() {
		w, err := scanWellness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wellness sample: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetBaseline returns the athlete's rolling baseline, or nil when none
// has been computed yet.
func (s *Store) GetBaseline(ctx context.Context, athleteID uuid.UUID) (*Baseline, error) {
	var b Baseline
	err := s.pool.QueryRow(ctx,
		`SELECT athlete_id, hrv, resting_hr, sleep_score, computed_at FROM baselines WHERE athlete_id = $1`,
		athleteID).Scan(&b.AthleteID, &b.HRV, &b.RestingHR, &b.SleepScore, &b.ComputedAt)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	return &b, nil
}

// UpsertBaseline replaces the athlete's rolling baseline.
func (s *Store) UpsertBaseline(ctx context.Context, b Baseline) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO baselines (athlete_id, hrv, resting_hr, sleep_score, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (athlete_id) DO UPDATE SET
			hrv = EXCLUDED.hrv,
			resting_hr = EXCLUDED.resting_hr,
			sleep_score = EXCLUDED.sleep_score,
			computed_at = EXCLUDED.computed_at`,
		b.AthleteID, b.HRV, b.RestingHR, b.SleepScore, b.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}
