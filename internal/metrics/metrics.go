// Package metrics contains pure derivations over wellness and training
// time series. Nothing in this package performs I/O.
//
// Missing data is represented as nil and propagates as nil. Zero and
// "no data" are different things and are never conflated.
package metrics

import (
	"time"
)

// Trend describes the direction of a metric over a window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TrendOf compares the mean of the first half of the window (oldest
// values) against the mean of the second half. A relative change above
// cutoffPct is up, below -cutoffPct is down, otherwise stable. Windows
// with fewer than 2 non-nil points are stable.
func TrendOf(oldestFirst []*float64, cutoffPct float64) Trend {
	vals := compact(oldestFirst)
	if len(vals) < 2 {
		return TrendStable
	}
	mid := len(vals) / 2
	first := mean(vals[:mid])
	second := mean(vals[mid:])
	if first == 0 {
		return TrendStable
	}
	change := (second - first) / first * 100
	switch {
	case change > cutoffPct:
		return TrendUp
	case change < -cutoffPct:
		return TrendDown
	default:
		return TrendStable
	}
}

// DeviationPercent returns how far current sits from baseline as a signed
// percentage, or nil if either input is missing or baseline is zero.
func DeviationPercent(current, baseline *float64) *float64 {
	if current == nil || baseline == nil || *baseline == 0 {
		return nil
	}
	d := (*current - *baseline) / *baseline * 100
	return &d
}

// DaysBelowBaseline counts samples strictly below baseline. Nil samples
// are skipped; a nil baseline yields 0.
func DaysBelowBaseline(values []*float64, baseline *float64) int {
	if baseline == nil {
		return 0
	}
	n := 0
	for _, v := range values {
		if v != nil && *v < *baseline {
			n++
		}
	}
	return n
}

// DaysAboveBaseline counts samples strictly above baseline. Nil samples
// are skipped; a nil baseline yields 0.
func DaysAboveBaseline(values []*float64, baseline *float64) int {
	if baseline == nil {
		return 0
	}
	n := 0
	for _, v := range values {
		if v != nil && *v > *baseline {
			n++
		}
	}
	return n
}

// ConsecutivePoorSleep counts the leading scores strictly below
// poorFactor*baseline, stopping at the first score that clears the
// threshold or is missing. Scores must be ordered newest first.
func ConsecutivePoorSleep(scoresNewestFirst []*float64, baseline *float64, poorFactor float64) int {
	if baseline == nil || *baseline == 0 {
		return 0
	}
	threshold := *baseline * poorFactor
	n := 0
	for _, s := range scoresNewestFirst {
		if s == nil || *s >= threshold {
			break
		}
		n++
	}
	return n
}

// WeekOverWeekLoadChange returns the percent change between this week's
// and last week's volume, or nil when last week had no volume. A nil
// result means "no comparison possible", not an infinite increase.
func WeekOverWeekLoadChange(thisWeekKm, lastWeekKm float64) *float64 {
	if lastWeekKm == 0 {
		return nil
	}
	c := (thisWeekKm - lastWeekKm) / lastWeekKm * 100
	return &c
}

// ConsecutiveRunDays counts the unbroken streak of calendar days with at
// least one run, anchored at today. A streak that ended yesterday still
// counts; a gap before yesterday ends it.
func ConsecutiveRunDays(runDays []time.Time, today time.Time) int {
	set := daySet(runDays)
	anchor := truncateDay(today)
	if !set[anchor] {
		anchor = anchor.AddDate(0, 0, -1)
	}
	n := 0
	for set[anchor] {
		n++
		anchor = anchor.AddDate(0, 0, -1)
	}
	return n
}

// DaysSinceLast returns the number of days between today and the most
// recent day in days, or nil when days is empty.
func DaysSinceLast(days []time.Time, today time.Time) *int {
	var latest *time.Time
	for _, d := range days {
		d := truncateDay(d)
		if latest == nil || d.After(*latest) {
			latest = &d
		}
	}
	if latest == nil {
		return nil
	}
	n := int(truncateDay(today).Sub(*latest).Hours() / 24)
	return &n
}

// DaysSinceLastRest counts days back from today to the most recent
// calendar day without a run. Today itself counts as rest if no run has
// been logged for it.
func DaysSinceLastRest(runDays []time.Time, today time.Time) int {
	set := daySet(runDays)
	anchor := truncateDay(today)
	n := 0
	for set[anchor] {
		n++
		anchor = anchor.AddDate(0, 0, -1)
	}
	return n
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daySet(days []time.Time) map[time.Time]bool {
	set := make(map[time.Time]bool, len(days))
	for _, d := range days {
		set[truncateDay(d)] = true
	}
	return set
}

func compact(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// F is a convenience for building optional values in callers and tests.
func F(v float64) *float64 { return &v }
