// Package adaptation is the weekly cadence of the engine: it compares
// planned against completed training for the last closed week, names the
// athlete's current bottleneck and keeps the coaching philosophy in
// step. It shares nothing with the daily orchestrator except the store.
package adaptation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/metrics"
	"github.com/briangreenhill/runcoach/internal/store"
)

// Weekly outcome classifications.
const (
	OutcomeOverreached  = "overreached"
	OutcomeOnTarget     = "on_target"
	OutcomeUndertrained = "undertrained"
	OutcomeRecovering   = "recovering"
)

// Volume adjustment for the following week, percent, per outcome.
var volumeAdjustPct = map[string]float64{
	OutcomeOverreached:  -10,
	OutcomeOnTarget:     5,
	OutcomeUndertrained: 0,
	OutcomeRecovering:   -20,
}

// Store is the persistence surface the loop needs. *store.Store
// satisfies it.
type Store interface {
	ListPlannedSessionsRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]store.PlannedSession, error)
	ListTrainingRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]store.TrainingRecord, error)
	GetAdaptationRecord(ctx context.Context, athleteID uuid.UUID, weekStart time.Time) (*store.AdaptationRecord, error)
	LatestAdaptationRecord(ctx context.Context, athleteID uuid.UUID) (*store.AdaptationRecord, error)
	InsertAdaptationRecord(ctx context.Context, r store.AdaptationRecord) error
	BottleneckForWeek(ctx context.Context, athleteID uuid.UUID, weekStart time.Time) (*store.BottleneckAssessment, error)
	InsertBottleneck(ctx context.Context, b store.BottleneckAssessment) error
	OpenPhilosophyPeriod(ctx context.Context, athleteID uuid.UUID) (*store.PhilosophyPeriod, error)
	TransitionPhilosophy(ctx context.Context, athleteID uuid.UUID, philosophy string, reason *string) error
}

// Loop runs the weekly adaptation for one athlete at a time. The
// trigger cadence lives outside; this only defines what happens when
// invoked.
type Loop struct {
	store  Store
	policy config.Policy
	log    zerolog.Logger
}

func New(st Store, policy config.Policy, log zerolog.Logger) *Loop {
	return &Loop{store: st, policy: policy, log: log}
}

// RunWeekly processes the most recently completed ISO week as of now.
// The record write and the assessment are separate steps, each skipped
// when already done, so a retry after a partial failure finishes the
// week instead of dropping it. Re-running a fully processed week is a
// no-op returning the existing record: closed weeks are immutable.
func (l *Loop) RunWeekly(ctx context.Context, athleteID uuid.UUID, now time.Time) (store.AdaptationRecord, error) {
	weekStart := mondayOf(now).AddDate(0, 0, -7)
	weekEnd := weekStart.AddDate(0, 0, 7)

	existing, err := l.store.GetAdaptationRecord(ctx, athleteID, weekStart)
	if err != nil {
		return store.AdaptationRecord{}, err
	}
	if existing == nil {
		if latest, err := l.store.LatestAdaptationRecord(ctx, athleteID); err != nil {
			return store.AdaptationRecord{}, err
		} else if latest != nil && latest.WeekStart.After(weekStart) {
			return store.AdaptationRecord{}, fmt.Errorf("week starting %s is closed", weekStart.Format("2006-01-02"))
		}
	}

	actual, err := l.store.ListTrainingRange(ctx, athleteID, weekStart, weekEnd)
	if err != nil {
		return store.AdaptationRecord{}, fmt.Errorf("load actual week: %w", err)
	}

	var rec store.AdaptationRecord
	if existing != nil {
		rec = *existing
	} else {
		planned, err := l.store.ListPlannedSessionsRange(ctx, athleteID, weekStart, weekEnd)
		if err != nil {
			return store.AdaptationRecord{}, fmt.Errorf("load planned week: %w", err)
		}
		rec = l.buildRecord(athleteID, weekStart, planned, actual)
		if err := l.store.InsertAdaptationRecord(ctx, rec); err != nil {
			return store.AdaptationRecord{}, err
		}
	}

	if err := l.assess(ctx, athleteID, rec, actual); err != nil {
		return store.AdaptationRecord{}, err
	}
	return rec, nil
}

func (l *Loop) buildRecord(athleteID uuid.UUID, weekStart time.Time, planned []store.PlannedSession, actual []store.TrainingRecord) store.AdaptationRecord {
	rec := store.AdaptationRecord{
		AthleteID: athleteID,
		WeekStart: weekStart,
	}
	for _, p := range planned {
		if p.SessionType == "rest" {
			continue
		}
		rec.PlannedSessions++
		if p.DistanceKm != nil {
			rec.PlannedKm += *p.DistanceKm
		}
	}
	for _, a := range actual {
		rec.CompletedSessions++
		rec.ActualKm += a.DistanceKm
	}

	// guard the ratio: zero planned volume means no comparison, and the
	// outcome falls back to neutral
	if rec.PlannedKm > 0 {
		r := rec.ActualKm / rec.PlannedKm
		rec.Ratio = &r
	}
	rec.Outcome = l.classify(rec)
	if rec.Ratio != nil {
		adj := volumeAdjustPct[rec.Outcome]
		rec.VolumeAdjustPct = &adj
	}
	return rec
}

// classify turns the adaptation ratio and completion rate into an
// outcome. Thresholds are policy (config), the mapping is fixed:
// ratio >= overreached bound -> overreached; within the on-target band
// -> on_target unless fewer than half the planned sessions happened;
// above the undertrained bound -> undertrained; below it -> recovering.
func (l *Loop) classify(rec store.AdaptationRecord) string {
	if rec.Ratio == nil {
		return OutcomeOnTarget
	}
	completion := 1.0
	if rec.PlannedSessions > 0 {
		completion = float64(rec.CompletedSessions) / float64(rec.PlannedSessions)
	}
	switch {
	case *rec.Ratio >= l.policy.OverreachedRatio:
		return OutcomeOverreached
	case *rec.Ratio >= l.policy.OnTargetRatio:
		if completion < 0.5 {
			return OutcomeUndertrained
		}
		return OutcomeOnTarget
	case *rec.Ratio >= l.policy.UndertrainedRatio:
		return OutcomeUndertrained
	default:
		return OutcomeRecovering
	}
}

// assess writes the weekly bottleneck snapshot and, when the mapped
// philosophy differs from the one in force, transitions atomically.
// Both steps are idempotent: an existing snapshot for the week is
// reused, and an aligned philosophy is left alone, so a retry resumes
// wherever the previous run failed.
func (l *Loop) assess(ctx context.Context, athleteID uuid.UUID, rec store.AdaptationRecord, actual []store.TrainingRecord) error {
	b, err := l.store.BottleneckForWeek(ctx, athleteID, rec.WeekStart)
	if err != nil {
		return fmt.Errorf("load bottleneck: %w", err)
	}
	if b == nil {
		hard := 0
		for _, a := range actual {
			if metrics.IsHardSession(a.SessionType) {
				hard++
			}
		}
		fresh := classifyBottleneck(rec, hard, len(actual))
		fresh.AthleteID = athleteID
		fresh.WeekStart = rec.WeekStart
		if err := l.store.InsertBottleneck(ctx, fresh); err != nil {
			return fmt.Errorf("record bottleneck: %w", err)
		}
		b = &fresh
	}

	want := philosophyFor(b.Kind)
	open, err := l.store.OpenPhilosophyPeriod(ctx, athleteID)
	if err != nil {
		return err
	}
	if open != nil && open.Philosophy == want {
		return nil
	}
	reason := fmt.Sprintf("bottleneck %s (%s confidence)", b.Kind, b.Confidence)
	if err := l.store.TransitionPhilosophy(ctx, athleteID, want, &reason); err != nil {
		// abort rather than risk two open periods
		return fmt.Errorf("philosophy transition: %w", err)
	}
	l.log.Info().Str("athlete", athleteID.String()).Str("philosophy", want).Str("bottleneck", b.Kind).Msg("philosophy transition")
	return nil
}

func mondayOf(day time.Time) time.Time {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return day.AddDate(0, 0, -(wd - 1))
}
