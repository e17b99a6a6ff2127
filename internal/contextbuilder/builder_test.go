package contextbuilder

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
	"github.com/briangreenhill/runcoach/internal/weather"
)

type fakeStore struct {
	athlete    store.Athlete
	wellness   []store.WellnessSample
	baseline   *store.Baseline
	training   []store.TrainingRecord
	plan       *store.TrainingPlan
	planned    *store.PlannedSession
	upcoming   []store.PlannedSession
	philosophy *store.PhilosophyPeriod
	bottleneck *store.BottleneckAssessment

	wellnessErr error
}

func (f *fakeStore) GetAthlete(ctx context.Context, id uuid.UUID) (store.Athlete, error) {
	return f.athlete, nil
}
func (f *fakeStore) ListWellnessRange(ctx context.Context, id uuid.UUID, from, to time.Time) ([]store.WellnessSample, error) {
	return f.wellness, f.wellnessErr
}
func (f *fakeStore) GetBaseline(ctx context.Context, id uuid.UUID) (*store.Baseline, error) {
	return f.baseline, nil
}
func (f *fakeStore) ListTrainingRange(ctx context.Context, id uuid.UUID, from, to time.Time) ([]store.TrainingRecord, error) {
	return f.training, nil
}
func (f *fakeStore) GetActivePlan(ctx context.Context, id uuid.UUID) (*store.TrainingPlan, error) {
	return f.plan, nil
}
func (f *fakeStore) GetPlannedSessionForDay(ctx context.Context, id uuid.UUID, day time.Time) (*store.PlannedSession, error) {
	return f.planned, nil
}
func (f *fakeStore) ListUpcomingSessions(ctx context.Context, id uuid.UUID, day time.Time, limit int32) ([]store.PlannedSession, error) {
	return f.upcoming, nil
}
func (f *fakeStore) OpenPhilosophyPeriod(ctx context.Context, id uuid.UUID) (*store.PhilosophyPeriod, error) {
	return f.philosophy, nil
}
func (f *fakeStore) LatestBottleneck(ctx context.Context, id uuid.UUID) (*store.BottleneckAssessment, error) {
	return f.bottleneck, nil
}

type fakeWeather struct {
	cond *weather.Conditions
	err  error
}

func (f *fakeWeather) Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error) {
	return f.cond, f.err
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func testAthlete() store.Athlete {
	lat, lon := 52.52, 13.405
	return store.Athlete{
		ID:     uuid.New(),
		Name:   "Testa Läufer",
		HRMax:  185,
		HRRest: 52,
		Tz:     "Europe/Berlin",
		Lat:    &lat,
		Lon:    &lon,
	}
}

func freshBaseline(today time.Time) *store.Baseline {
	return &store.Baseline{
		HRV:        metrics.F(45),
		RestingHR:  metrics.F(52),
		SleepScore: metrics.F(90),
		ComputedAt: today.AddDate(0, 0, -2),
	}
}

func TestBuildManualOverrideReplacesDeviceData(t *testing.T) {
	today := day("2026-05-10")
	athlete := testAthlete()
	deviceHRV := 61.0
	fs := &fakeStore{
		athlete:  athlete,
		baseline: freshBaseline(today),
		wellness: []store.WellnessSample{
			{AthleteID: athlete.ID, Day: today, HRV: &deviceHRV, RestingHR: metrics.F(48), SleepScore: metrics.F(99)},
		},
	}
	b := New(fs, nil, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	override := &ManualWellness{SleepQuality: 2, Energy: 1}
	dc, err := b.Build(context.Background(), athlete.ID, today, override)
	require.NoError(t, err)

	h := dc.Health
	require.True(t, h.ManualOverride)
	// fully replaced, never merged: synthetic values derived from
	// baseline and the ordinal scale, not from the device sample
	require.InDelta(t, 45*0.70, *h.HRV, 0.001)
	require.InDelta(t, 52*1.12, *h.RestingHR, 0.001)
	require.InDelta(t, 50, *h.SleepScore, 0.001)
	require.NotEqual(t, deviceHRV, *h.HRV)
}

func TestBuildDeviceWellness(t *testing.T) {
	today := day("2026-05-10")
	athlete := testAthlete()
	fs := &fakeStore{
		athlete:  athlete,
		baseline: freshBaseline(today),
		wellness: []store.WellnessSample{
			{Day: today.AddDate(0, 0, -2), HRV: metrics.F(46), SleepScore: metrics.F(88)},
			{Day: today.AddDate(0, 0, -1), HRV: metrics.F(44), SleepScore: metrics.F(70)},
			{Day: today, HRV: metrics.F(28), RestingHR: metrics.F(58), SleepScore: metrics.F(60)},
		},
	}
	b := New(fs, nil, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	dc, err := b.Build(context.Background(), athlete.ID, today, nil)
	require.NoError(t, err)

	h := dc.Health
	require.False(t, h.ManualOverride)
	require.InDelta(t, 28, *h.HRV, 0.001)
	require.InDelta(t, -37.78, *h.HRVDeviationPct, 0.01)
	// 60 and 70 are below 0.85*90=76.5; the 88 two days back stops it
	require.Equal(t, 2, h.ConsecutivePoorSleepDays)
	require.False(t, h.InsufficientBaselineData)
}

func TestBuildNoBaseline(t *testing.T) {
	today := day("2026-05-10")
	athlete := testAthlete()
	fs := &fakeStore{
		athlete:  athlete,
		wellness: []store.WellnessSample{{Day: today, HRV: metrics.F(40)}},
	}
	b := New(fs, nil, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	dc, err := b.Build(context.Background(), athlete.ID, today, nil)
	require.NoError(t, err)
	require.True(t, dc.Health.InsufficientBaselineData)
	require.Nil(t, dc.Health.HRVDeviationPct)
	require.Nil(t, dc.Health.HRVBaseline)
}

func TestBuildStaleBaseline(t *testing.T) {
	today := day("2026-05-10")
	athlete := testAthlete()
	fs := &fakeStore{
		athlete: athlete,
		baseline: &store.Baseline{
			HRV:        metrics.F(45),
			ComputedAt: today.AddDate(0, 0, -20),
		},
	}
	b := New(fs, nil, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	dc, err := b.Build(context.Background(), athlete.ID, today, nil)
	require.NoError(t, err)
	require.True(t, dc.Health.InsufficientBaselineData)
	require.Nil(t, dc.Health.HRVBaseline)
}

func TestBuildWeatherFailureIsNeutral(t *testing.T) {
	today := day("2026-05-10")
	athlete := testAthlete()
	fs := &fakeStore{athlete: athlete}
	wp := &fakeWeather{err: errors.New("provider down")}
	b := New(fs, wp, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	dc, err := b.Build(context.Background(), athlete.ID, today, nil)
	require.NoError(t, err)
	require.Nil(t, dc.Weather)
	require.Equal(t, ConditionsUnknown, dc.RunningConditions)
}

func TestBuildDegradesOnSourceFailure(t *testing.T) {
	today := day("2026-05-10")
	athlete := testAthlete()
	fs := &fakeStore{athlete: athlete, wellnessErr: errors.New("connection refused")}
	b := New(fs, nil, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	dc, err := b.Build(context.Background(), athlete.ID, today, nil)
	require.NoError(t, err)
	require.Nil(t, dc.Health.HRV)
}

func TestBuildTrainingSignals(t *testing.T) {
	today := day("2026-05-10") // a Sunday
	athlete := testAthlete()
	fs := &fakeStore{
		athlete: athlete,
		training: []store.TrainingRecord{
			// last week: Mon 2026-04-27 .. Sun 2026-05-03
			{StartedAt: day("2026-04-29"), DistanceKm: 10, SessionType: metrics.SessionEasy},
			{StartedAt: day("2026-05-02"), DistanceKm: 20, SessionType: metrics.SessionLong},
			// this week: Mon 2026-05-04 ..
			{StartedAt: day("2026-05-07"), DistanceKm: 8, SessionType: metrics.SessionTempo, Stress: metrics.F(70)},
			{StartedAt: day("2026-05-09"), DistanceKm: 12, SessionType: metrics.SessionEasy, Stress: metrics.F(40)},
			{StartedAt: day("2026-05-10"), DistanceKm: 6, SessionType: metrics.SessionEasy},
		},
	}
	b := New(fs, nil, config.Policy{TrendCutoffPct: 2, PoorSleepFactor: 0.85, BaselineStaleDays: 14}, zerolog.Nop())

	dc, err := b.Build(context.Background(), athlete.ID, today, nil)
	require.NoError(t, err)

	tr := dc.Training
	require.InDelta(t, 26, tr.ThisWeekKm, 0.001)
	require.InDelta(t, 30, tr.LastWeekKm, 0.001)
	require.NotNil(t, tr.WeekOverWeekChangePct)
	require.InDelta(t, -13.33, *tr.WeekOverWeekChangePct, 0.01)
	require.Equal(t, 2, tr.ConsecutiveRunDays)
	require.NotNil(t, tr.DaysSinceLastHardSession)
	require.Equal(t, 3, *tr.DaysSinceLastHardSession)
	require.Equal(t, 3, tr.SessionsLast7Days)
	require.Equal(t, 1, tr.HardSessionsLast7Days)
	require.NotNil(t, tr.AcuteLoad7Days)
	require.InDelta(t, 110, *tr.AcuteLoad7Days, 0.001)
}

func TestRunningConditionsTiers(t *testing.T) {
	p := config.Policy{
		TempPoorHighC: 30, TempPoorLowC: -8, TempFairHighC: 24, TempFairLowC: 0,
		WindPoorKph: 35, WindFairKph: 20, PrecipPoorPct: 70, PrecipFairPct: 40,
	}
	tests := []struct {
		name string
		cond *weather.Conditions
		want string
	}{
		{"nil weather", nil, ConditionsUnknown},
		{"mild day", &weather.Conditions{TempC: 15, WindKph: 8, PrecipProbPct: 10}, ConditionsGood},
		{"hot", &weather.Conditions{TempC: 32, WindKph: 5}, ConditionsPoor},
		{"windy", &weather.Conditions{TempC: 18, WindKph: 40}, ConditionsPoor},
		{"warm-ish", &weather.Conditions{TempC: 26, WindKph: 5}, ConditionsFair},
		{"likely rain", &weather.Conditions{TempC: 15, PrecipProbPct: 50}, ConditionsFair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RunningConditions(tt.cond, p))
		})
	}
}
