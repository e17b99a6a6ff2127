package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const decisionCols = `id, athlete_id, day, action, recovery_score, recovery_status, payload, created_at, updated_at`

func scanDecision(row interface{ Scan(...any) error }) (DailyDecision, error) {
	var d DailyDecision
	err := row.Scan(&d.ID, &d.AthleteID, &d.Day, &d.Action, &d.RecoveryScore,
		&d.RecoveryStatus, &d.Payload, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// GetDailyDecision returns the decision for (athlete, day), or nil when
// none has been computed yet.
func (s *Store) GetDailyDecision(ctx context.Context, athleteID uuid.UUID, day time.Time) (*DailyDecision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionCols+` FROM daily_decisions WHERE athlete_id = $1 AND day = $2`,
		athleteID, day)
	d, err := scanDecision(row)
	if errors.Is(mapErr(err), ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily decision: %w", err)
	}
	return &d, nil
}

// UpsertDailyDecision writes the decision for (athlete, day). Last write
// wins; the previous row is overwritten, not versioned.
func (s *Store) UpsertDailyDecision(ctx context.Context, d DailyDecision) (DailyDecision, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO daily_decisions (athlete_id, day, action, recovery_score, recovery_status, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (athlete_id, day) DO UPDATE SET
			action = EXCLUDED.action,
			recovery_score = EXCLUDED.recovery_score,
			recovery_status = EXCLUDED.recovery_status,
			payload = EXCLUDED.payload,
			updated_at = now()
		RETURNING `+decisionCols,
		d.AthleteID, d.Day, d.Action, d.RecoveryScore, d.RecoveryStatus, d.Payload)
	out, err := scanDecision(row)
	if err != nil {
		return DailyDecision{}, fmt.Errorf("upsert daily decision: %w", err)
	}
	return out, nil
}

// InsertSessionModification appends the athlete's response to a decision.
func (s *Store) InsertSessionModification(ctx context.Context, m SessionModification) (SessionModification, error) {
	var out SessionModification
	err := s.pool.QueryRow(ctx, `
		INSERT INTO session_modifications (athlete_id, decision_id, response, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, athlete_id, decision_id, response, note, created_at`,
		m.AthleteID, m.DecisionID, m.Response, m.Note).
		Scan(&out.ID, &out.AthleteID, &out.DecisionID, &out.Response, &out.Note, &out.CreatedAt)
	if err != nil {
		return SessionModification{}, fmt.Errorf("insert session modification: %w", err)
	}
	return out, nil
}
