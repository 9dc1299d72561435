package scheduling

import (
	"sort"
	"time"

	"teleclinic/models"
)

// subtractInterval removes blocked from each interval in open, splitting
// intervals where necessary. Inputs need not be ordered; output is ordered by
// start and contains only valid (non-empty) intervals.
func subtractInterval(open []models.TimeInterval, blocked models.TimeInterval) []models.TimeInterval {
	var out []models.TimeInterval
	for _, iv := range open {
		if !iv.Overlaps(blocked) {
			out = append(out, iv)
			continue
		}
		if iv.Start.Before(blocked.Start) {
			out = append(out, models.TimeInterval{Start: iv.Start, End: blocked.Start})
		}
		if blocked.End.Before(iv.End) {
			out = append(out, models.TimeInterval{Start: blocked.End, End: iv.End})
		}
	}
	sortIntervals(out)
	return out
}

// subtractAll removes every blocked interval from open.
func subtractAll(open []models.TimeInterval, blocked []models.TimeInterval) []models.TimeInterval {
	for _, b := range blocked {
		open = subtractInterval(open, b)
	}
	return open
}

// clampInterval trims iv to the bounds [from, to). The second return is false
// when nothing remains.
func clampInterval(iv models.TimeInterval, from, to time.Time) (models.TimeInterval, bool) {
	if iv.Start.Before(from) {
		iv.Start = from
	}
	if iv.End.After(to) {
		iv.End = to
	}
	if !iv.Start.Before(iv.End) {
		return models.TimeInterval{}, false
	}
	return iv, true
}

func sortIntervals(ivs []models.TimeInterval) {
	sort.Slice(ivs, func(i, j int) bool {
		return ivs[i].Start.Before(ivs[j].Start)
	})
}

// alignUp rounds t up to the next multiple of granularity (wall-clock
// aligned, e.g. :00/:15/:30/:45 for 15 minutes).
func alignUp(t time.Time, granularity time.Duration) time.Time {
	aligned := t.Truncate(granularity)
	if aligned.Before(t) {
		aligned = aligned.Add(granularity)
	}
	return aligned
}
