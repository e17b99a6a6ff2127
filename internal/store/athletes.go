package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const athleteCols = `id, name, email, goal, race_date, pace_zones, hr_max, hr_rest, tz, lat, lon, created_at`

func scanAthlete(row interface{ Scan(...any) error }) (Athlete, error) {
	var a Athlete
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Goal, &a.RaceDate, &a.PaceZones,
		&a.HRMax, &a.HRRest, &a.Tz, &a.Lat, &a.Lon, &a.CreatedAt)
	return a, err
}

// GetAthlete loads one athlete profile.
func (s *Store) GetAthlete(ctx context.Context, id uuid.UUID) (Athlete, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+athleteCols+` FROM athletes WHERE id = $1`, id)
	a, err := scanAthlete(row)
	if err != nil {
		return Athlete{}, fmt.Errorf("get athlete: %w", mapErr(err))
	}
	return a, nil
}

// CreateAthlete inserts a new athlete and returns the stored row.
func (s *Store) CreateAthlete(ctx context.Context, a Athlete) (Athlete, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO athletes (name, email, goal, race_date, pace_zones, hr_max, hr_rest, tz, lat, lon)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+athleteCols,
		a.Name, a.Email, a.Goal, a.RaceDate, a.PaceZones, a.HRMax, a.HRRest, a.Tz, a.Lat, a.Lon)
	out, err := scanAthlete(row)
	if err != nil {
		return Athlete{}, fmt.Errorf("create athlete: %w", err)
	}
	return out, nil
}

// ListAthletesWithActivePlan returns every athlete that currently has an
// active training plan. The weekly fan-out iterates this set.
func (s *Store) ListAthletesWithActivePlan(ctx context.Context) ([]Athlete, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+athleteCols+` FROM athletes a
		WHERE EXISTS (SELECT 1 FROM training_plans p WHERE p.athlete_id = a.id AND p.active)
		ORDER BY a.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list athletes with active plan: %w", err)
	}
	defer rows.Close()

	var out []Athlete
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, fmt.Errorf("scan athlete: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
