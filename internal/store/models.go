package store

import (
	"time"

	"github.com/google/uuid"
)

// Athlete is the profile the coaching engine decides for.
type Athlete struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email,omitempty"`
	Goal      *string    `json:"goal,omitempty"`
	RaceDate  *time.Time `json:"race_date,omitempty"`
	PaceZones []byte     `json:"pace_zones,omitempty"` // jsonb, zone name -> pace range
	HRMax     int32      `json:"hr_max"`
	HRRest    int32      `json:"hr_rest"`
	Tz        string     `json:"tz"`
	Lat       *float64   `json:"lat,omitempty"`
	Lon       *float64   `json:"lon,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// WellnessSample is one calendar day of physiological data. Same-day
// upserts replace the row.
type WellnessSample struct {
	ID            uuid.UUID `json:"id"`
	AthleteID     uuid.UUID `json:"athlete_id"`
	Day           time.Time `json:"day"`
	HRV           *float64  `json:"hrv,omitempty"` // rMSSD ms
	RestingHR     *float64  `json:"resting_hr,omitempty"`
	SleepScore    *float64  `json:"sleep_score,omitempty"` // 0-100
	DeepSleepMin  *int32    `json:"deep_sleep_min,omitempty"`
	RemSleepMin   *int32    `json:"rem_sleep_min,omitempty"`
	LightSleepMin *int32    `json:"light_sleep_min,omitempty"`
	SelfReported  bool      `json:"self_reported"`
	CreatedAt     time.Time `json:"created_at"`
}

// Baseline holds per-athlete rolling reference values.
type Baseline struct {
	AthleteID  uuid.UUID `json:"athlete_id"`
	HRV        *float64  `json:"hrv,omitempty"`
	RestingHR  *float64  `json:"resting_hr,omitempty"`
	SleepScore *float64  `json:"sleep_score,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// TrainingRecord is a completed run. Rows are append-only and soft
// deleted so historical load calculations stay stable.
type TrainingRecord struct {
	ID          uuid.UUID  `json:"id"`
	AthleteID   uuid.UUID  `json:"athlete_id"`
	StartedAt   time.Time  `json:"started_at"`
	DistanceKm  float64    `json:"distance_km"`
	DurationSec int32      `json:"duration_sec"`
	AvgHR       *int32     `json:"avg_hr,omitempty"`
	Stress      *float64   `json:"stress,omitempty"`
	SessionType string     `json:"session_type"`
	DeletedAt   *time.Time `json:"-"`
}

// TrainingPlan is an ordered sequence of sessions across calendar weeks.
// Exactly one plan per athlete is active at a time.
type TrainingPlan struct {
	ID         uuid.UUID `json:"id"`
	AthleteID  uuid.UUID `json:"athlete_id"`
	Name       string    `json:"name"`
	Phase      string    `json:"phase"`
	TotalWeeks int32     `json:"total_weeks"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlannedSession is one scheduled session belonging to a plan.
type PlannedSession struct {
	ID          uuid.UUID `json:"id"`
	PlanID      uuid.UUID `json:"plan_id"`
	Day         time.Time `json:"day"`
	SessionType string    `json:"session_type"`
	DistanceKm  *float64  `json:"distance_km,omitempty"`
	DurationMin *int32    `json:"duration_min,omitempty"`
	TargetPace  *string   `json:"target_pace,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// DailyDecision is the engine's output, keyed by (athlete, day). The
// payload column stores the validated capability response verbatim so a
// cached read returns byte-identical content.
type DailyDecision struct {
	ID             uuid.UUID `json:"id"`
	AthleteID      uuid.UUID `json:"athlete_id"`
	Day            time.Time `json:"day"`
	Action         string    `json:"action"`
	RecoveryScore  int32     `json:"recovery_score"`
	RecoveryStatus string    `json:"recovery_status"`
	Payload        []byte    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionModification records what the athlete actually chose when
// offered a modified or replaced session. Append-only, never mutated.
type SessionModification struct {
	ID         uuid.UUID `json:"id"`
	AthleteID  uuid.UUID `json:"athlete_id"`
	DecisionID uuid.UUID `json:"decision_id"`
	Response   string    `json:"response"` // accepted | declined | modified
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BottleneckAssessment names the athlete's primary limiting factor for
// one week. Rows accumulate, at most one per week; the latest by
// created_at is current.
type BottleneckAssessment struct {
	ID         uuid.UUID `json:"id"`
	AthleteID  uuid.UUID `json:"athlete_id"`
	WeekStart  time.Time `json:"week_start"`
	Kind       string    `json:"kind"`
	Confidence string    `json:"confidence"` // low | medium | high
	Evidence   string    `json:"evidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// PhilosophyPeriod is an open-ended interval recording which coaching
// strategy is in force. At most one period per athlete is open.
type PhilosophyPeriod struct {
	ID         uuid.UUID  `json:"id"`
	AthleteID  uuid.UUID  `json:"athlete_id"`
	Philosophy string     `json:"philosophy"`
	Reason     *string    `json:"reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// AdaptationRecord compares planned vs actual volume for one ISO week.
type AdaptationRecord struct {
	ID                uuid.UUID `json:"id"`
	AthleteID         uuid.UUID `json:"athlete_id"`
	WeekStart         time.Time `json:"week_start"` // Monday of the ISO week
	PlannedKm         float64   `json:"planned_km"`
	ActualKm          float64   `json:"actual_km"`
	PlannedSessions   int32     `json:"planned_sessions"`
	CompletedSessions int32     `json:"completed_sessions"`
	Ratio             *float64  `json:"ratio,omitempty"`
	Outcome           string    `json:"outcome"`
	VolumeAdjustPct   *float64  `json:"volume_adjust_pct,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
