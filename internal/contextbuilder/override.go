package contextbuilder

import (
	"fmt"
)

// ManualWellness is a self-reported check-in on a fixed ordinal scale.
// When supplied it replaces device wellness for the day entirely; the
// two sources are never blended.
type ManualWellness struct {
	SleepQuality int `json:"sleep_quality"` // 1 (terrible) .. 5 (excellent)
	Energy       int `json:"energy"`        // 1 (exhausted) .. 5 (fresh)
}

// Validate rejects payloads outside the ordinal scale.
func (m ManualWellness) Validate() error {
	if m.SleepQuality < 1 || m.SleepQuality > 5 {
		return fmt.Errorf("sleep_quality must be 1-5, got %d", m.SleepQuality)
	}
	if m.Energy < 1 || m.Energy > 5 {
		return fmt.Errorf("energy must be 1-5, got %d", m.Energy)
	}
	return nil
}

// Fixed mappings from the ordinal scale onto synthetic metric values.
// Sleep quality maps directly to a sleep score; energy scales the
// athlete's baselines into synthetic HRV and resting HR.
var (
	sleepQualityScore = map[int]float64{1: 30, 2: 50, 3: 70, 4: 85, 5: 95}
	energyHRVFactor   = map[int]float64{1: 0.70, 2: 0.85, 3: 1.00, 4: 1.08, 5: 1.15}
	energyRHRFactor   = map[int]float64{1: 1.12, 2: 1.06, 3: 1.00, 4: 0.97, 5: 0.94}
)

// syntheticValues maps a manual check-in onto HRV/RHR/sleep-score
// values. Without baselines the synthetic HRV and RHR stay nil; the
// sleep score needs no baseline.
func (m ManualWellness) syntheticValues(hrvBaseline, rhrBaseline *float64) (hrv, rhr, sleepScore *float64) {
	score := sleepQualityScore[m.SleepQuality]
	sleepScore = &score
	if hrvBaseline != nil {
		v := *hrvBaseline * energyHRVFactor[m.Energy]
		hrv = &v
	}
	if rhrBaseline != nil {
		v := *rhrBaseline * energyRHRFactor[m.Energy]
		rhr = &v
	}
	return hrv, rhr, sleepScore
}
