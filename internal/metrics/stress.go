package metrics

import "math"

// Session types stored on or inferred for a training record.
const (
	SessionEasy      = "easy"
	SessionTempo     = "tempo"
	SessionIntervals = "intervals"
	SessionLong      = "long"
	SessionRace      = "race"
)

// TrainingStress scores one run with a Banister TRIMP: duration in
// minutes weighted by the heart-rate reserve ratio. Returns nil when no
// usable heart rate is available or the reserve is degenerate.
func TrainingStress(durationSec int32, avgHR *int32, restingHR, maxHR int32) *float64 {
	if avgHR == nil || durationSec <= 0 {
		return nil
	}
	reserve := float64(maxHR - restingHR)
	if reserve <= 0 {
		return nil
	}
	ratio := (float64(*avgHR) - float64(restingHR)) / reserve
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	minutes := float64(durationSec) / 60.0
	stress := minutes * ratio * math.Exp(1.92*ratio)
	return &stress
}

// IsHardSession reports whether a record counts as a hard session for
// streak and load purposes.
func IsHardSession(sessionType string) bool {
	switch sessionType {
	case SessionTempo, SessionIntervals, SessionRace:
		return true
	}
	return false
}

// InferSessionType classifies a run from distance, duration and heart
// rate when no type was stored. The heuristic is deliberately coarse:
// long by distance, then intensity by heart-rate reserve ratio.
func InferSessionType(distanceKm float64, durationSec int32, avgHR *int32, restingHR, maxHR int32) string {
	if distanceKm >= 18 {
		return SessionLong
	}
	if avgHR != nil {
		reserve := float64(maxHR - restingHR)
		if reserve > 0 {
			ratio := (float64(*avgHR) - float64(restingHR)) / reserve
			switch {
			case ratio >= 0.92:
				return SessionIntervals
			case ratio >= 0.84:
				return SessionTempo
			}
		}
	}
	if durationSec >= 100*60 {
		return SessionLong
	}
	return SessionEasy
}
