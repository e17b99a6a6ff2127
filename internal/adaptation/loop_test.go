package adaptation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/metrics"
	"github.com/briangreenhill/runcoach/internal/store"
)

type fakeStore struct {
	planned []store.PlannedSession
	actual  []store.TrainingRecord

	records     map[string]store.AdaptationRecord
	latest      *store.AdaptationRecord
	bottlenecks []store.BottleneckAssessment
	periods     []store.PhilosophyPeriod
	transitions int

	bottleneckErr error
	transitionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]store.AdaptationRecord)}
}

func (f *fakeStore) ListPlannedSessionsRange(ctx context.Context, id uuid.UUID, from, to time.Time) ([]store.PlannedSession, error) {
	return f.planned, nil
}

func (f *fakeStore) ListTrainingRange(ctx context.Context, id uuid.UUID, from, to time.Time) ([]store.TrainingRecord, error) {
	return f.actual, nil
}

func (f *fakeStore) GetAdaptationRecord(ctx context.Context, id uuid.UUID, weekStart time.Time) (*store.AdaptationRecord, error) {
	if r, ok := f.records[weekStart.Format("2006-01-02")]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeStore) LatestAdaptationRecord(ctx context.Context, id uuid.UUID) (*store.AdaptationRecord, error) {
	return f.latest, nil
}

func (f *fakeStore) InsertAdaptationRecord(ctx context.Context, r store.AdaptationRecord) error {
	f.records[r.WeekStart.Format("2006-01-02")] = r
	f.latest = &r
	return nil
}

func (f *fakeStore) BottleneckForWeek(ctx context.Context, id uuid.UUID, weekStart time.Time) (*store.BottleneckAssessment, error) {
	for i := range f.bottlenecks {
		if f.bottlenecks[i].WeekStart.Equal(weekStart) {
			return &f.bottlenecks[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertBottleneck(ctx context.Context, b store.BottleneckAssessment) error {
	if f.bottleneckErr != nil {
		return f.bottleneckErr
	}
	f.bottlenecks = append(f.bottlenecks, b)
	return nil
}

func (f *fakeStore) OpenPhilosophyPeriod(ctx context.Context, id uuid.UUID) (*store.PhilosophyPeriod, error) {
	for i := range f.periods {
		if f.periods[i].EndedAt == nil {
			return &f.periods[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) TransitionPhilosophy(ctx context.Context, id uuid.UUID, philosophy string, reason *string) error {
	if f.transitionErr != nil {
		return f.transitionErr
	}
	now := time.Now()
	for i := range f.periods {
		if f.periods[i].EndedAt == nil {
			f.periods[i].EndedAt = &now
		}
	}
	f.periods = append(f.periods, store.PhilosophyPeriod{
		ID: uuid.New(), AthleteID: id, Philosophy: philosophy, Reason: reason, StartedAt: now,
	})
	f.transitions++
	return nil
}

func (f *fakeStore) openCount() int {
	n := 0
	for i := range f.periods {
		if f.periods[i].EndedAt == nil {
			n++
		}
	}
	return n
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func testPolicy() config.Policy {
	return config.Policy{OverreachedRatio: 1.15, OnTargetRatio: 0.85, UndertrainedRatio: 0.50}
}

func plannedWeek(km ...float64) []store.PlannedSession {
	var out []store.PlannedSession
	for i, k := range km {
		k := k
		out = append(out, store.PlannedSession{
			Day:         day("2026-05-04").AddDate(0, 0, i),
			SessionType: metrics.SessionEasy,
			DistanceKm:  &k,
		})
	}
	return out
}

func actualWeek(km ...float64) []store.TrainingRecord {
	var out []store.TrainingRecord
	for i, k := range km {
		out = append(out, store.TrainingRecord{
			StartedAt:   day("2026-05-04").AddDate(0, 0, i),
			DistanceKm:  k,
			SessionType: metrics.SessionEasy,
		})
	}
	return out
}

// now is a Wednesday; the most recently completed week starts Monday
// 2026-05-04.
var wednesday = day("2026-05-13")

func TestRunWeeklyOnTarget(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10, 10)
	fs.actual = actualWeek(10, 9, 10, 9)
	l := New(fs, testPolicy(), zerolog.Nop())

	rec, err := l.RunWeekly(context.Background(), uuid.New(), wednesday)
	require.NoError(t, err)
	require.Equal(t, day("2026-05-04"), rec.WeekStart)
	require.InDelta(t, 40, rec.PlannedKm, 0.001)
	require.InDelta(t, 38, rec.ActualKm, 0.001)
	require.NotNil(t, rec.Ratio)
	require.InDelta(t, 0.95, *rec.Ratio, 0.001)
	require.Equal(t, OutcomeOnTarget, rec.Outcome)
	require.NotNil(t, rec.VolumeAdjustPct)
	require.InDelta(t, 5, *rec.VolumeAdjustPct, 0.001)
}

func TestRunWeeklyOverreached(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10)
	fs.actual = actualWeek(12, 12, 12)
	l := New(fs, testPolicy(), zerolog.Nop())

	athlete := uuid.New()
	rec, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)
	require.Equal(t, OutcomeOverreached, rec.Outcome)
	require.InDelta(t, -10, *rec.VolumeAdjustPct, 0.001)

	require.Len(t, fs.bottlenecks, 1)
	require.Equal(t, BottleneckRecoveryCapacity, fs.bottlenecks[0].Kind)

	// a transition to recovery_first was opened
	open, _ := fs.OpenPhilosophyPeriod(context.Background(), athlete)
	require.NotNil(t, open)
	require.Equal(t, PhilosophyRecoveryFirst, open.Philosophy)
}

func TestRunWeeklyRecovering(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10, 10)
	fs.actual = actualWeek(8)
	l := New(fs, testPolicy(), zerolog.Nop())

	rec, err := l.RunWeekly(context.Background(), uuid.New(), wednesday)
	require.NoError(t, err)
	require.Equal(t, OutcomeRecovering, rec.Outcome)
	require.InDelta(t, -20, *rec.VolumeAdjustPct, 0.001)
	require.Equal(t, BottleneckDurability, fs.bottlenecks[0].Kind)
}

func TestRunWeeklyUndertrainedLowCompletion(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10, 10, 10)
	// one long run covers most of the volume but four sessions skipped
	fs.actual = actualWeek(36)
	l := New(fs, testPolicy(), zerolog.Nop())

	athlete := uuid.New()
	rec, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)
	// ratio 0.72 and 1/5 sessions completed
	require.Equal(t, OutcomeUndertrained, rec.Outcome)
	require.Equal(t, BottleneckConsistency, fs.bottlenecks[0].Kind)

	open, _ := fs.OpenPhilosophyPeriod(context.Background(), athlete)
	require.Equal(t, PhilosophyConsistencyFirst, open.Philosophy)
}

func TestRunWeeklyZeroPlannedVolume(t *testing.T) {
	fs := newFakeStore()
	fs.actual = actualWeek(10, 10)
	l := New(fs, testPolicy(), zerolog.Nop())

	rec, err := l.RunWeekly(context.Background(), uuid.New(), wednesday)
	require.NoError(t, err)
	require.Nil(t, rec.Ratio)
	require.Equal(t, OutcomeOnTarget, rec.Outcome)
	require.Nil(t, rec.VolumeAdjustPct)
}

func TestRunWeeklyRestDaysExcludedFromPlan(t *testing.T) {
	fs := newFakeStore()
	km := 10.0
	fs.planned = []store.PlannedSession{
		{Day: day("2026-05-04"), SessionType: metrics.SessionEasy, DistanceKm: &km},
		{Day: day("2026-05-05"), SessionType: "rest"},
	}
	fs.actual = actualWeek(10)
	l := New(fs, testPolicy(), zerolog.Nop())

	rec, err := l.RunWeekly(context.Background(), uuid.New(), wednesday)
	require.NoError(t, err)
	require.Equal(t, int32(1), rec.PlannedSessions)
	require.Equal(t, OutcomeOnTarget, rec.Outcome)
}

func TestRunWeeklyIdempotent(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10)
	fs.actual = actualWeek(10, 10)
	l := New(fs, testPolicy(), zerolog.Nop())

	athlete := uuid.New()
	first, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)

	// volume changes after the fact must not alter the closed week
	fs.actual = actualWeek(50, 50)
	second, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)
	require.Equal(t, first.Outcome, second.Outcome)
	require.InDelta(t, first.ActualKm, second.ActualKm, 0.001)
	require.Len(t, fs.bottlenecks, 1)
}

func TestRunWeeklyRetryAfterBottleneckFailure(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10)
	fs.actual = actualWeek(12, 12, 12)
	fs.bottleneckErr = errors.New("connection reset by peer")
	l := New(fs, testPolicy(), zerolog.Nop())

	athlete := uuid.New()
	_, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.Error(t, err)
	// the record landed before the failure
	require.Len(t, fs.records, 1)
	require.Empty(t, fs.bottlenecks)

	// the retry must finish the week, not skip it
	fs.bottleneckErr = nil
	rec, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)
	require.Equal(t, OutcomeOverreached, rec.Outcome)
	require.Len(t, fs.bottlenecks, 1)
	require.Equal(t, BottleneckRecoveryCapacity, fs.bottlenecks[0].Kind)
	require.Equal(t, day("2026-05-04"), fs.bottlenecks[0].WeekStart)

	open, _ := fs.OpenPhilosophyPeriod(context.Background(), athlete)
	require.NotNil(t, open)
	require.Equal(t, PhilosophyRecoveryFirst, open.Philosophy)
}

func TestRunWeeklyRetryAfterTransitionFailure(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10)
	fs.actual = actualWeek(12, 12, 12)
	fs.transitionErr = errors.New("deadlock detected")
	l := New(fs, testPolicy(), zerolog.Nop())

	athlete := uuid.New()
	_, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.Error(t, err)
	require.Len(t, fs.records, 1)
	require.Len(t, fs.bottlenecks, 1)
	require.Equal(t, 0, fs.transitions)

	fs.transitionErr = nil
	_, err = l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)
	// the snapshot is reused, the philosophy catches up
	require.Len(t, fs.bottlenecks, 1)
	require.Equal(t, 1, fs.transitions)
	require.Equal(t, 1, fs.openCount())
}

func TestRunWeeklyClosedWeekRejected(t *testing.T) {
	fs := newFakeStore()
	later := store.AdaptationRecord{WeekStart: day("2026-05-11")}
	fs.latest = &later
	l := New(fs, testPolicy(), zerolog.Nop())

	_, err := l.RunWeekly(context.Background(), uuid.New(), wednesday)
	require.Error(t, err)
	require.Empty(t, fs.records)
}

func TestPhilosophyTransitionOnlyOnChange(t *testing.T) {
	fs := newFakeStore()
	fs.planned = plannedWeek(10, 10, 10)
	fs.actual = actualWeek(12, 12, 12)
	fs.periods = []store.PhilosophyPeriod{
		{ID: uuid.New(), Philosophy: PhilosophyRecoveryFirst, StartedAt: day("2026-04-01")},
	}
	l := New(fs, testPolicy(), zerolog.Nop())

	_, err := l.RunWeekly(context.Background(), uuid.New(), wednesday)
	require.NoError(t, err)
	require.Equal(t, 0, fs.transitions)
	require.Equal(t, 1, fs.openCount())
}

func TestPhilosophyExclusivityAcrossTransitions(t *testing.T) {
	fs := newFakeStore()
	fs.periods = []store.PhilosophyPeriod{
		{ID: uuid.New(), Philosophy: PhilosophyBaseBuilding, StartedAt: day("2026-04-01")},
	}
	fs.planned = plannedWeek(10, 10, 10)
	fs.actual = actualWeek(12, 12, 12)
	l := New(fs, testPolicy(), zerolog.Nop())

	athlete := uuid.New()
	_, err := l.RunWeekly(context.Background(), athlete, wednesday)
	require.NoError(t, err)
	require.Equal(t, 1, fs.transitions)
	require.Equal(t, 1, fs.openCount())
	open, _ := fs.OpenPhilosophyPeriod(context.Background(), athlete)
	require.Equal(t, PhilosophyRecoveryFirst, open.Philosophy)
}

func TestClassifyBottleneckTable(t *testing.T) {
	r := func(v float64) *float64 { return &v }
	tests := []struct {
		name     string
		rec      store.AdaptationRecord
		hard     int
		total    int
		wantKind string
	}{
		{
			"overreached",
			store.AdaptationRecord{Outcome: OutcomeOverreached, Ratio: r(1.2), PlannedSessions: 4, CompletedSessions: 4},
			1, 4, BottleneckRecoveryCapacity,
		},
		{
			"too much intensity",
			store.AdaptationRecord{Outcome: OutcomeOnTarget, Ratio: r(1.0), PlannedSessions: 4, CompletedSessions: 4},
			2, 4, BottleneckRecoveryCapacity,
		},
		{
			"volume collapse",
			store.AdaptationRecord{Outcome: OutcomeRecovering, Ratio: r(0.2), PlannedSessions: 4, CompletedSessions: 1},
			0, 1, BottleneckDurability,
		},
		{
			"skipped sessions",
			store.AdaptationRecord{Outcome: OutcomeUndertrained, Ratio: r(0.7), PlannedSessions: 5, CompletedSessions: 2},
			0, 2, BottleneckConsistency,
		},
		{
			"short sessions",
			store.AdaptationRecord{Outcome: OutcomeUndertrained, Ratio: r(0.7), PlannedSessions: 4, CompletedSessions: 3},
			0, 3, BottleneckDurability,
		},
		{
			"no stimulus",
			store.AdaptationRecord{Outcome: OutcomeOnTarget, Ratio: r(1.0), PlannedSessions: 4, CompletedSessions: 4},
			0, 4, BottleneckPlateau,
		},
		{
			"default",
			store.AdaptationRecord{Outcome: OutcomeOnTarget, Ratio: r(1.0), PlannedSessions: 4, CompletedSessions: 4},
			1, 4, BottleneckAerobicBase,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyBottleneck(tt.rec, tt.hard, tt.total)
			require.Equal(t, tt.wantKind, got.Kind)
			require.NotEmpty(t, got.Evidence)
		})
	}
}

func TestPhilosophyForCoversAllKinds(t *testing.T) {
	require.Equal(t, PhilosophyRecoveryFirst, philosophyFor(BottleneckRecoveryCapacity))
	require.Equal(t, PhilosophyConsistencyFirst, philosophyFor(BottleneckConsistency))
	require.Equal(t, PhilosophyVariation, philosophyFor(BottleneckPlateau))
	require.Equal(t, PhilosophyBaseBuilding, philosophyFor(BottleneckDurability))
	require.Equal(t, PhilosophyBaseBuilding, philosophyFor(BottleneckAerobicBase))
}
