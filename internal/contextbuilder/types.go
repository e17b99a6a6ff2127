// Package contextbuilder assembles one immutable daily context snapshot
// per (athlete, day): health signals, training load, the planned
// session, profile facts and environmental conditions, all fanned in
// from independent store reads.
package contextbuilder

import (
	"encoding/json"

	"github.com/briangreenhill/runcoach/internal/metrics"
	"github.com/briangreenhill/runcoach/internal/weather"
)

// Running-conditions tiers derived from weather thresholds. Unknown is a
// neutral signal, never a blocking one.
const (
	ConditionsGood    = "good"
	ConditionsFair    = "fair"
	ConditionsPoor    = "poor"
	ConditionsUnknown = "unknown"
)

// DailyContext is the full snapshot handed to the decision capability.
// It is marshalled as-is, so field names here are the capability
// contract.
type DailyContext struct {
	AthleteID         string              `json:"athlete_id"`
	Date              string              `json:"date"`
	Health            HealthSignals       `json:"health"`
	Training          TrainingSignals     `json:"training"`
	PlannedSession    *SessionInfo        `json:"planned_session,omitempty"`
	UpcomingSessions  []SessionInfo       `json:"upcoming_sessions"`
	Profile           ProfileFacts        `json:"profile"`
	Weather           *weather.Conditions `json:"weather"`
	RunningConditions string              `json:"running_conditions"`
	Coaching          CoachingState       `json:"coaching"`
}

// HealthSignals carries today's values plus derived trends, deviations
// and streaks. Nil means no data, never zero.
type HealthSignals struct {
	HRV        *float64 `json:"hrv"`
	RestingHR  *float64 `json:"resting_hr"`
	SleepScore *float64 `json:"sleep_score"`

	HRVBaseline        *float64 `json:"hrv_baseline"`
	RestingHRBaseline  *float64 `json:"resting_hr_baseline"`
	SleepScoreBaseline *float64 `json:"sleep_score_baseline"`

	HRVDeviationPct       *float64 `json:"hrv_deviation_pct"`
	RestingHRDeviationPct *float64 `json:"resting_hr_deviation_pct"`

	HRVTrend       metrics.Trend `json:"hrv_trend"`
	RestingHRTrend metrics.Trend `json:"resting_hr_trend"`
	SleepTrend     metrics.Trend `json:"sleep_trend"`

	DaysHRVBelowBaseline     int `json:"days_hrv_below_baseline"`
	DaysRHRAboveBaseline     int `json:"days_rhr_above_baseline"`
	ConsecutivePoorSleepDays int `json:"consecutive_poor_sleep_days"`

	ManualOverride           bool `json:"manual_override"`
	InsufficientBaselineData bool `json:"insufficient_baseline_data"`
}

// TrainingSignals summarizes recent load.
type TrainingSignals struct {
	ThisWeekKm            float64  `json:"this_week_km"`
	LastWeekKm            float64  `json:"last_week_km"`
	WeekOverWeekChangePct *float64 `json:"week_over_week_change_pct"`

	ConsecutiveRunDays       int  `json:"consecutive_run_days"`
	DaysSinceLastHardSession *int `json:"days_since_last_hard_session"`
	DaysSinceLastRest        int  `json:"days_since_last_rest"`

	SessionsLast7Days     int      `json:"sessions_last_7_days"`
	HardSessionsLast7Days int      `json:"hard_sessions_last_7_days"`
	AcuteLoad7Days        *float64 `json:"acute_load_7_days"`
}

// SessionInfo describes one planned session.
type SessionInfo struct {
	Day         string   `json:"day"`
	Type        string   `json:"type"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
	DurationMin *int32   `json:"duration_min,omitempty"`
	TargetPace  *string  `json:"target_pace,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// ProfileFacts are the slow-moving athlete facts the capability needs.
type ProfileFacts struct {
	Goal      *string         `json:"goal,omitempty"`
	RaceDate  *string         `json:"race_date,omitempty"`
	PaceZones json.RawMessage `json:"pace_zones,omitempty"`
	HRMax     int32           `json:"hr_max"`
	HRRest    int32           `json:"hr_rest"`
	PlanPhase *string         `json:"plan_phase,omitempty"`
}

// CoachingState is what the weekly adaptation loop last concluded.
type CoachingState struct {
	Philosophy *string `json:"philosophy"`
	Bottleneck *string `json:"bottleneck"`
}
