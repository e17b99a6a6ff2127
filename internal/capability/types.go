// Package capability talks to the external decision capability: one
// blocking request per daily context, a structured JSON document back.
// The engine owns the contract around the call, not its internals.
package capability

import (
	"errors"
	"fmt"
)

// Actions the capability may choose between.
const (
	ActionProceed = "proceed"
	ActionModify  = "modify"
	ActionReplace = "replace"
	ActionRest    = "rest"
)

// Recovery status tiers.
const (
	StatusOptimal    = "OPTIMAL"
	StatusSuboptimal = "SUBOPTIMAL"
	StatusPoor       = "POOR"
	StatusVeryPoor   = "VERY_POOR"
)

// ErrInvalidResponse marks a response that does not satisfy the required
// shape. Callers treat it as a capability failure, never coerce it.
var ErrInvalidResponse = errors.New("invalid capability response")

// Result is the required shape of a capability response.
type Result struct {
	RecoveryAssessment RecoveryAssessment `json:"recovery_assessment"`
	Decision           DecisionBlock      `json:"decision"`
	Reasoning          Reasoning          `json:"reasoning"`
	CoachMessage       CoachMessage       `json:"coach_message"`
	WarningUI          WarningUI          `json:"warning_ui"`
}

type RecoveryAssessment struct {
	OverallScore       int     `json:"overall_score"`
	Status             string  `json:"status"`
	PrimaryConcern     string  `json:"primary_concern"`
	PatternDetected    bool    `json:"pattern_detected"`
	PatternDescription *string `json:"pattern_description"`
}

type DecisionBlock struct {
	Action             string             `json:"action"`
	RecommendedSession RecommendedSession `json:"recommended_session"`
	VsOriginal         VsOriginal         `json:"vs_original"`
}

type RecommendedSession struct {
	Type          string  `json:"type"`
	DistanceKm    float64 `json:"distance_km"`
	PaceRange     string  `json:"pace_range"`
	HRTarget      string  `json:"hr_target"`
	EstimatedLoad float64 `json:"estimated_load"`
	DurationMin   int     `json:"duration_min"`
}

type VsOriginal struct {
	Changed     bool   `json:"changed"`
	ReasonShort string `json:"reason_short"`
}

type Reasoning struct {
	Summary    string   `json:"summary"`
	KeyFactors []string `json:"key_factors"`
}

type CoachMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tone  string `json:"tone"`
}

type WarningUI struct {
	ShowWarning bool   `json:"show_warning"`
	Severity    string `json:"severity"`
	Headline    string `json:"headline"`
	Subline     string `json:"subline"`
}

const maxKeyFactors = 8

// Validate checks the response against the required shape. Any violation
// is wrapped in ErrInvalidResponse.
func (r Result) Validate() error {
	switch r.Decision.Action {
	case ActionProceed, ActionModify, ActionReplace, ActionRest:
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidResponse, r.Decision.Action)
	}
	switch r.RecoveryAssessment.Status {
	case StatusOptimal, StatusSuboptimal, StatusPoor, StatusVeryPoor:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidResponse, r.RecoveryAssessment.Status)
	}
	if s := r.RecoveryAssessment.OverallScore; s < 0 || s > 100 {
		return fmt.Errorf("%w: overall_score %d", ErrInvalidResponse, s)
	}
	if r.Decision.Action != ActionRest && r.Decision.RecommendedSession.Type == "" {
		return fmt.Errorf("%w: missing recommended_session.type", ErrInvalidResponse)
	}
	if r.Reasoning.Summary == "" {
		return fmt.Errorf("%w: missing reasoning.summary", ErrInvalidResponse)
	}
	if len(r.Reasoning.KeyFactors) > maxKeyFactors {
		return fmt.Errorf("%w: %d key factors", ErrInvalidResponse, len(r.Reasoning.KeyFactors))
	}
	if r.CoachMessage.Body == "" {
		return fmt.Errorf("%w: missing coach_message.body", ErrInvalidResponse)
	}
	return nil
}
