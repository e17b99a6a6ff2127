package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const plannedCols = `id, plan_id, day, session_type, distance_km, duration_min, target_pace, description`

func scanPlanned(row interface{ Scan(...any) error }) (PlannedSession, error) {
	var p PlannedSession
	err := row.Scan(&p.ID, &p.PlanID, &p.Day, &p.SessionType, &p.DistanceKm,
		&p.DurationMin, &p.TargetPace, &p.Description)
	return p, err
}

// GetActivePlan returns the athlete's active plan, or nil when none.
func (s *Store) GetActivePlan(ctx context.Context, athleteID uuid.UUID) (*TrainingPlan, error) {
	var p TrainingPlan
	err := s.pool.QueryRow(ctx, `
		SELECT id, athlete_id, name, phase, total_weeks, active, created_at
		FROM training_plans WHERE athlete_id = $1 AND active`,
		athleteID).Scan(&p.ID, &p.AthleteID, &p.Name, &p.Phase, &p.TotalWeeks, &p.Active, &p.CreatedAt)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active plan: %w", err)
	}
	return &p, nil
}

// GetPlannedSessionForDay returns the day's session from the active
// plan, or nil when nothing is scheduled.
func (s *Store) GetPlannedSessionForDay(ctx context.Context, athleteID uuid.UUID, day time.Time) (*PlannedSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+plannedCols+` FROM planned_sessions ps
		JOIN training_plans p ON p.id = ps.plan_id
		WHERE p.athlete_id = $1 AND p.active AND ps.day = $2`,
		athleteID, day)
	p, err := scanPlanned(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get planned session: %w", err)
	}
	return &p, nil
}

// ListUpcomingSessions returns up to limit sessions from the active plan
// scheduled strictly after day, ordered soonest first.
func (s *Store) ListUpcomingSessions(ctx context.Context, athleteID uuid.UUID, day time.Time, limit int32) ([]PlannedSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+plannedCols+` FROM planned_sessions ps
		JOIN training_plans p ON p.id = ps.plan_id
		WHERE p.athlete_id = $1 AND p.active AND ps.day > $2
		ORDER BY ps.day LIMIT $3`,
		athleteID, day, limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	defer rows.Close()

	var out []PlannedSession
	for rows.Next() {
		p, err := scanPlanned(rows)
		if err != nil {
			return nil, fmt.Errorf("scan planned session: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPlannedSessionsRange returns active-plan sessions with day in
// [from, to), ordered by day. The adaptation loop sums these for the
// planned weekly volume.
func (s *Store) ListPlannedSessionsRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]PlannedSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+plannedCols+` FROM planned_sessions ps
		JOIN training_plans p ON p.id = ps.plan_id
		WHERE p.athlete_id = $1 AND p.active AND ps.day >= $2 AND ps.day < $3
		ORDER BY ps.day`,
		athleteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list planned sessions range: %w", err)
	}
	defer rows.Close()

	var out []PlannedSession
	for rows.Next() {
		p, err := scanPlanned(rows)
		if err != nil {
			return nil, fmt.Errorf("scan planned session: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
