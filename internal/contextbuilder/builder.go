package contextbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/metrics"
	"github.com/briangreenhill/runcoach/internal/store"
	"github.com/briangreenhill/runcoach/internal/weather"
)

const (
	trendWindowDays    = 14
	loadWindowDays     = 28
	upcomingSessionCap = 7
)

// Store is the read surface the builder needs. *store.Store satisfies it.
type Store interface {
	GetAthlete(ctx context.Context, id uuid.UUID) (store.Athlete, error)
	ListWellnessRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]store.WellnessSample, error)
	GetBaseline(ctx context.Context, athleteID uuid.UUID) (*store.Baseline, error)
	ListTrainingRange(ctx context.Context, athleteID uuid.UUID, from, to time.Time) ([]store.TrainingRecord, error)
	GetActivePlan(ctx context.Context, athleteID uuid.UUID) (*store.TrainingPlan, error)
	GetPlannedSessionForDay(ctx context.Context, athleteID uuid.UUID, day time.Time) (*store.PlannedSession, error)
	ListUpcomingSessions(ctx context.Context, athleteID uuid.UUID, day time.Time, limit int32) ([]store.PlannedSession, error)
	OpenPhilosophyPeriod(ctx context.Context, athleteID uuid.UUID) (*store.PhilosophyPeriod, error)
	LatestBottleneck(ctx context.Context, athleteID uuid.UUID) (*store.BottleneckAssessment, error)
}

// WeatherProvider is satisfied by *weather.Client.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// Builder assembles daily context snapshots.
type Builder struct {
	store   Store
	weather WeatherProvider // nil means unconfigured
	policy  config.Policy
	log     zerolog.Logger
}

func New(st Store, wp WeatherProvider, policy config.Policy, log zerolog.Logger) *Builder {
	return &Builder{store: st, weather: wp, policy: policy, log: log}
}

// Build produces the snapshot for (athlete, day). The athlete profile
// read is the only fatal dependency; every other source degrades into
// nil fields with explicit insufficiency flags.
func (b *Builder) Build(ctx context.Context, athleteID uuid.UUID, day time.Time, override *ManualWellness) (DailyContext, error) {
	day = truncateDay(day)

	athlete, err := b.store.GetAthlete(ctx, athleteID)
	if err != nil {
		return DailyContext{}, fmt.Errorf("load athlete: %w", err)
	}

	var (
		wellness   []store.WellnessSample
		baseline   *store.Baseline
		training   []store.TrainingRecord
		plan       *store.TrainingPlan
		planned    *store.PlannedSession
		upcoming   []store.PlannedSession
		philosophy *store.PhilosophyPeriod
		bottleneck *store.BottleneckAssessment
		conditions *weather.Conditions
	)

	// independent reads fan out and join; each source degrades on its
	// own rather than failing the aggregation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wellness, err = b.store.ListWellnessRange(gctx, athleteID, day.AddDate(0, 0, -(trendWindowDays-1)), day)
		return b.degrade(err, "wellness")
	})
	g.Go(func() error {
		var err error
		baseline, err = b.store.GetBaseline(gctx, athleteID)
		return b.degrade(err, "baseline")
	})
	g.Go(func() error {
		var err error
		training, err = b.store.ListTrainingRange(gctx, athleteID, day.AddDate(0, 0, -(loadWindowDays-1)), day.AddDate(0, 0, 1))
		return b.degrade(err, "training")
	})
	g.Go(func() error {
		var err error
		plan, err = b.store.GetActivePlan(gctx, athleteID)
		return b.degrade(err, "plan")
	})
	g.Go(func() error {
		var err error
		planned, err = b.store.GetPlannedSessionForDay(gctx, athleteID, day)
		return b.degrade(err, "planned session")
	})
	g.Go(func() error {
		var err error
		upcoming, err = b.store.ListUpcomingSessions(gctx, athleteID, day, upcomingSessionCap)
		return b.degrade(err, "upcoming sessions")
	})
	g.Go(func() error {
		var err error
		philosophy, err = b.store.OpenPhilosophyPeriod(gctx, athleteID)
		return b.degrade(err, "philosophy")
	})
	g.Go(func() error {
		var err error
		bottleneck, err = b.store.LatestBottleneck(gctx, athleteID)
		return b.degrade(err, "bottleneck")
	})
	if b.weather != nil && athlete.Lat != nil && athlete.Lon != nil {
		g.Go(func() error {
			cond, err := b.weather.Current(gctx, *athlete.Lat, *athlete.Lon)
			if err != nil {
				// best-effort by contract: no data, not an error
				b.log.Warn().Err(err).Msg("weather lookup failed")
				return nil
			}
			conditions = cond
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DailyContext{}, err
	}

	dc := DailyContext{
		AthleteID:         athleteID.String(),
		Date:              day.Format("2006-01-02"),
		Health:            b.buildHealth(day, wellness, baseline, override),
		Training:          b.buildTraining(day, training),
		PlannedSession:    sessionInfo(planned),
		UpcomingSessions:  sessionInfos(upcoming),
		Profile:           profileFacts(athlete, plan),
		Weather:           conditions,
		RunningConditions: RunningConditions(conditions, b.policy),
		Coaching:          coachingState(philosophy, bottleneck),
	}
	return dc, nil
}

// degrade downgrades a partial-data failure to a logged warning so one
// unavailable source never fails the whole aggregation.
func (b *Builder) degrade(err error, source string) error {
	if err != nil {
		b.log.Warn().Err(err).Str("source", source).Msg("context source unavailable, degrading")
	}
	return nil
}

func (b *Builder) buildHealth(day time.Time, samples []store.WellnessSample, baseline *store.Baseline, override *ManualWellness) HealthSignals {
	h := HealthSignals{
		HRVTrend:       metrics.TrendStable,
		RestingHRTrend: metrics.TrendStable,
		SleepTrend:     metrics.TrendStable,
	}

	// a stale baseline is surfaced, never silently trusted
	if baseline == nil || int(day.Sub(truncateDay(baseline.ComputedAt)).Hours()/24) > b.policy.BaselineStaleDays {
		h.InsufficientBaselineData = true
	} else {
		h.HRVBaseline = baseline.HRV
		h.RestingHRBaseline = baseline.RestingHR
		h.SleepScoreBaseline = baseline.SleepScore
	}

	byDay := make(map[time.Time]store.WellnessSample, len(samples))
	for _, s := range samples {
		byDay[truncateDay(s.Day)] = s
	}

	if override != nil {
		// replacement, not blending: nothing device-sourced for today
		// survives a manual check-in
		h.ManualOverride = true
		h.HRV, h.RestingHR, h.SleepScore = override.syntheticValues(h.HRVBaseline, h.RestingHRBaseline)
		delete(byDay, day)
	} else if today, ok := byDay[day]; ok {
		h.HRV = today.HRV
		h.RestingHR = today.RestingHR
		h.SleepScore = today.SleepScore
	}

	h.HRVDeviationPct = metrics.DeviationPercent(h.HRV, h.HRVBaseline)
	h.RestingHRDeviationPct = metrics.DeviationPercent(h.RestingHR, h.RestingHRBaseline)

	// series over the trend window, oldest first, with today's effective
	// values in place of whatever the device reported
	var hrvSeries, rhrSeries, sleepSeries []*float64
	for i := trendWindowDays - 1; i >= 0; i-- {
		d := day.AddDate(0, 0, -i)
		if d.Equal(day) {
			hrvSeries = append(hrvSeries, h.HRV)
			rhrSeries = append(rhrSeries, h.RestingHR)
			sleepSeries = append(sleepSeries, h.SleepScore)
			continue
		}
		if s, ok := byDay[d]; ok {
			hrvSeries = append(hrvSeries, s.HRV)
			rhrSeries = append(rhrSeries, s.RestingHR)
			sleepSeries = append(sleepSeries, s.SleepScore)
		} else {
			hrvSeries = append(hrvSeries, nil)
			rhrSeries = append(rhrSeries, nil)
			sleepSeries = append(sleepSeries, nil)
		}
	}

	h.HRVTrend = metrics.TrendOf(hrvSeries, b.policy.TrendCutoffPct)
	h.RestingHRTrend = metrics.TrendOf(rhrSeries, b.policy.TrendCutoffPct)
	h.SleepTrend = metrics.TrendOf(sleepSeries, b.policy.TrendCutoffPct)

	last7 := hrvSeries[len(hrvSeries)-7:]
	h.DaysHRVBelowBaseline = metrics.DaysBelowBaseline(last7, h.HRVBaseline)
	h.DaysRHRAboveBaseline = metrics.DaysAboveBaseline(rhrSeries[len(rhrSeries)-7:], h.RestingHRBaseline)

	newestFirstSleep := make([]*float64, len(sleepSeries))
	for i, v := range sleepSeries {
		newestFirstSleep[len(sleepSeries)-1-i] = v
	}
	h.ConsecutivePoorSleepDays = metrics.ConsecutivePoorSleep(newestFirstSleep, h.SleepScoreBaseline, b.policy.PoorSleepFactor)

	return h
}

func (b *Builder) buildTraining(day time.Time, records []store.TrainingRecord) TrainingSignals {
	t := TrainingSignals{}

	weekStart := mondayOf(day)
	lastWeekStart := weekStart.AddDate(0, 0, -7)
	sevenDaysAgo := day.AddDate(0, 0, -6)

	var runDays, hardDays []time.Time
	var acute float64
	haveStress := false

	for _, r := range records {
		d := truncateDay(r.StartedAt)
		runDays = append(runDays, d)
		if metrics.IsHardSession(r.SessionType) {
			hardDays = append(hardDays, d)
		}
		if !d.Before(weekStart) && !d.After(day) {
			t.ThisWeekKm += r.DistanceKm
		}
		if !d.Before(lastWeekStart) && d.Before(weekStart) {
			t.LastWeekKm += r.DistanceKm
		}
		if !d.Before(sevenDaysAgo) && !d.After(day) {
			t.SessionsLast7Days++
			if metrics.IsHardSession(r.SessionType) {
				t.HardSessionsLast7Days++
			}
			if r.Stress != nil {
				acute += *r.Stress
				haveStress = true
			}
		}
	}

	t.WeekOverWeekChangePct = metrics.WeekOverWeekLoadChange(t.ThisWeekKm, t.LastWeekKm)
	t.ConsecutiveRunDays = metrics.ConsecutiveRunDays(runDays, day)
	t.DaysSinceLastHardSession = metrics.DaysSinceLast(hardDays, day)
	t.DaysSinceLastRest = metrics.DaysSinceLastRest(runDays, day)
	if haveStress {
		t.AcuteLoad7Days = &acute
	}
	return t
}

func sessionInfo(p *store.PlannedSession) *SessionInfo {
	if p == nil {
		return nil
	}
	return &SessionInfo{
		Day:         p.Day.Format("2006-01-02"),
		Type:        p.SessionType,
		DistanceKm:  p.DistanceKm,
		DurationMin: p.DurationMin,
		TargetPace:  p.TargetPace,
		Description: p.Description,
	}
}

func sessionInfos(ps []store.PlannedSession) []SessionInfo {
	out := make([]SessionInfo, 0, len(ps))
	for i := range ps {
		out = append(out, *sessionInfo(&ps[i]))
	}
	return out
}

func profileFacts(a store.Athlete, plan *store.TrainingPlan) ProfileFacts {
	p := ProfileFacts{
		Goal:      a.Goal,
		PaceZones: a.PaceZones,
		HRMax:     a.HRMax,
		HRRest:    a.HRRest,
	}
	if a.RaceDate != nil {
		rd := a.RaceDate.Format("2006-01-02")
		p.RaceDate = &rd
	}
	if plan != nil {
		p.PlanPhase = &plan.Phase
	}
	return p
}

func coachingState(period *store.PhilosophyPeriod, bottleneck *store.BottleneckAssessment) CoachingState {
	c := CoachingState{}
	if period != nil {
		c.Philosophy = &period.Philosophy
	}
	if bottleneck != nil {
		c.Bottleneck = &bottleneck.Kind
	}
	return c
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mondayOf(day time.Time) time.Time {
	day = truncateDay(day)
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return day.AddDate(0, 0, -(wd - 1))
}
