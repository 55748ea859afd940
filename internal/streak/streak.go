// Package streak computes consecutive-day report streaks. Everything here is pure.
package streak

import (
	"sort"
	"time"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
)

type Result struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// Recompute walks the distinct report days backwards. Current counts the
// unbroken run ending today or yesterday and is 0 otherwise; Longest is the
// longest run anywhere in the history.
func Recompute(days []calendar.Day, today calendar.Day) Result {
	if len(days) == 0 {
		return Result{}
	}
	uniq := make(map[calendar.Day]struct{}, len(days))
	sorted := make([]calendar.Day, 0, len(days))
	for _, d := range days {
		if d.After(today) {
			continue
		}
		if _, ok := uniq[d]; ok {
			continue
		}
		uniq[d] = struct{}{}
		sorted = append(sorted, d)
	}
	if len(sorted) == 0 {
		return Result{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	var res Result
	if sorted[0] == today || sorted[0] == today.Prev() {
		res.Current = 1
		for i := 1; i < len(sorted); i++ {
			if sorted[i] != sorted[i-1].Prev() {
				break
			}
			res.Current++
		}
	}

	run := 1
	res.Longest = 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1].Prev() {
			run++
		} else {
			run = 1
		}
		if run > res.Longest {
			res.Longest = run
		}
	}
	return res
}

type Warning string

const (
	WarningNone     Warning = "none"
	WarningWarning  Warning = "warning"
	WarningCritical Warning = "critical"

	warnAfter     = 20 * time.Hour
	criticalAfter = 23 * time.Hour
)

// ContinuationWarning is advisory: how urgently the member should report to keep the streak.
func ContinuationWarning(lastReport, now time.Time) Warning {
	if lastReport.IsZero() {
		return WarningNone
	}
	elapsed := now.Sub(lastReport)
	switch {
	case elapsed >= criticalAfter:
		return WarningCritical
	case elapsed >= warnAfter:
		return WarningWarning
	default:
		return WarningNone
	}
}
