package ingestion

import (
	"time"

	"github.com/pb-coding/voltvector-be/internal/models"
)

// DetectGaps walks history (ordered by end date ascending) and returns the
// start of every day in loc that contains at least one missing interval.
// Markers are deduplicated and ascending.
func DetectGaps(history []models.EnergyInterval, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}

	var days []time.Time
	seen := make(map[int64]struct{})
	for i := 1; i < len(history); i++ {
		prev, next := history[i-1].EndDate, history[i].EndDate
		if next.Sub(prev) <= models.IntervalLength {
			continue
		}
		for missing := prev.Add(models.IntervalLength); missing.Before(next); missing = missing.Add(models.IntervalLength) {
			day := startOfDay(missing.In(loc))
			if _, ok := seen[day.Unix()]; ok {
				continue
			}
			seen[day.Unix()] = struct{}{}
			days = append(days, day)
		}
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
