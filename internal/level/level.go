// Package level derives a member's level and title from cumulative earned energy.
package level

import "github.com/ovaphlow/pitchfork/service-guardian/internal/config"

type Level struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

type Progress struct {
	Percent   int   `json:"percent"`
	Remaining int64 `json:"remaining"`
	// Next is zero at the top level.
	Next int64 `json:"next,omitempty"`
}

// Of returns the highest level whose threshold totalEarned has reached.
// table must be sorted by threshold with the first threshold at 0.
func Of(table []config.LevelDef, totalEarned int64) Level {
	idx := indexOf(table, totalEarned)
	if idx < 0 {
		return Level{}
	}
	return Level{Level: table[idx].Level, Title: table[idx].Title}
}

// ProgressOf reports how far totalEarned is between the current and next threshold.
func ProgressOf(table []config.LevelDef, totalEarned int64) Progress {
	idx := indexOf(table, totalEarned)
	if idx < 0 || idx == len(table)-1 {
		return Progress{Percent: 100}
	}
	cur, next := table[idx].Threshold, table[idx+1].Threshold
	span := next - cur
	pct := int((totalEarned - cur) * 100 / span)
	return Progress{Percent: pct, Remaining: next - totalEarned, Next: next}
}

func indexOf(table []config.LevelDef, totalEarned int64) int {
	idx := -1
	for i, l := range table {
		if totalEarned < l.Threshold {
			break
		}
		idx = i
	}
	return idx
}
