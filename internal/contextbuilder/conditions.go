package contextbuilder

import (
	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/weather"
)

// RunningConditions tiers raw weather into good/fair/poor using the
// policy thresholds. Nil weather is unknown, which downstream treats as
// a neutral signal.
func RunningConditions(cond *weather.Conditions, p config.Policy) string {
	if cond == nil {
		return ConditionsUnknown
	}
	switch {
	case cond.TempC >= p.TempPoorHighC, cond.TempC <= p.TempPoorLowC,
		cond.WindKph >= p.WindPoorKph, cond.PrecipProbPct >= p.PrecipPoorPct:
		return ConditionsPoor
	case cond.TempC >= p.TempFairHighC, cond.TempC <= p.TempFairLowC,
		cond.WindKph >= p.WindFairKph, cond.PrecipProbPct >= p.PrecipFairPct:
		return ConditionsFair
	default:
		return ConditionsGood
	}
}
