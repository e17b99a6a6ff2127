package adaptation

import (
	"fmt"

	"github.com/briangreenhill/runcoach/internal/store"
)

// Bottleneck kinds, ordered roughly by how often they show up in
// practice.
const (
	BottleneckAerobicBase      = "aerobic_base"
	BottleneckRecoveryCapacity = "recovery_capacity"
	BottleneckDurability       = "durability"
	BottleneckConsistency      = "consistency"
	BottleneckPlateau          = "plateau"
)

// Coaching philosophies a period can carry.
const (
	PhilosophyBaseBuilding        = "base_building"
	PhilosophyRecoveryFirst       = "recovery_first"
	PhilosophyConsistencyFirst    = "consistency_first"
	PhilosophyProgressiveOverload = "progressive_overload"
	PhilosophyVariation           = "variation"
)

// classifyBottleneck derives the limiting factor from one closed week.
// The rules are deterministic so the same week always names the same
// bottleneck:
//
//   - overreached, or more than 40% of sessions hard -> recovery_capacity
//   - recovering (volume collapsed below half of plan) -> durability
//   - undertrained with under 60% session completion -> consistency
//   - undertrained otherwise -> durability
//   - on_target with zero hard sessions -> plateau (stimulus missing)
//   - on_target otherwise -> aerobic_base (the default growth lever)
func classifyBottleneck(rec store.AdaptationRecord, hardSessions, totalSessions int) store.BottleneckAssessment {
	completion := 1.0
	if rec.PlannedSessions > 0 {
		completion = float64(rec.CompletedSessions) / float64(rec.PlannedSessions)
	}
	hardShare := 0.0
	if totalSessions > 0 {
		hardShare = float64(hardSessions) / float64(totalSessions)
	}

	kind := BottleneckAerobicBase
	confidence := "medium"
	switch {
	case rec.Outcome == OutcomeOverreached:
		kind = BottleneckRecoveryCapacity
		if rec.Ratio != nil && *rec.Ratio >= 1.3 {
			confidence = "high"
		}
	case hardShare > 0.4 && totalSessions >= 3:
		kind = BottleneckRecoveryCapacity
	case rec.Outcome == OutcomeRecovering:
		kind = BottleneckDurability
		if rec.Ratio != nil && *rec.Ratio < 0.25 {
			confidence = "high"
		}
	case rec.Outcome == OutcomeUndertrained && completion < 0.6:
		kind = BottleneckConsistency
	case rec.Outcome == OutcomeUndertrained:
		kind = BottleneckDurability
	case hardSessions == 0 && totalSessions >= 3:
		kind = BottleneckPlateau
	default:
		confidence = "low"
	}

	ratio := "n/a"
	if rec.Ratio != nil {
		ratio = fmt.Sprintf("%.2f", *rec.Ratio)
	}
	evidence := fmt.Sprintf(
		"week %s: %.1fkm of %.1fkm planned (ratio %s), %d/%d sessions, %d hard, outcome %s",
		rec.WeekStart.Format("2006-01-02"), rec.ActualKm, rec.PlannedKm, ratio,
		rec.CompletedSessions, rec.PlannedSessions, hardSessions, rec.Outcome,
	)
	return store.BottleneckAssessment{Kind: kind, Confidence: confidence, Evidence: evidence}
}

// philosophyFor maps a bottleneck to the coaching philosophy that
// addresses it.
func philosophyFor(kind string) string {
	switch kind {
	case BottleneckRecoveryCapacity:
		return PhilosophyRecoveryFirst
	case BottleneckConsistency:
		return PhilosophyConsistencyFirst
	case BottleneckPlateau:
		return PhilosophyVariation
	case BottleneckDurability, BottleneckAerobicBase:
		return PhilosophyBaseBuilding
	default:
		return PhilosophyBaseBuilding
	}
}
