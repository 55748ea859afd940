package guardian

import (
	"math"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
)

// Step is one stage transition produced by an investment. Presentation plays
// one evolution per step, in order.
type Step struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Evolve advances stage while invested covers the next threshold. It never
// lowers stage and never passes config.MaxStage.
func Evolve(stage int, invested int64, th config.Thresholds) (int, []Step) {
	steps := []Step{}
	for stage < config.MaxStage && invested >= th.For(stage+1) {
		steps = append(steps, Step{From: stage, To: stage + 1})
		stage++
	}
	return stage, steps
}

// Display is the derived aura shown for a guardian.
type Display struct {
	// Aura is overall intensity in [0,1] across all stages.
	Aura float64 `json:"aura"`
	// Percent is progress toward the next stage; 100 at the final stage.
	Percent       int   `json:"percent"`
	NextThreshold int64 `json:"next_threshold,omitempty"`
	Remaining     int64 `json:"remaining"`
}

func DisplayOf(invested int64, stage int, th config.Thresholds) Display {
	if stage >= config.MaxStage {
		return Display{Aura: 1, Percent: 100}
	}
	floor, next := th.For(stage), th.For(stage+1)
	frac := 0.0
	if span := next - floor; span > 0 {
		frac = float64(invested-floor) / float64(span)
	}
	frac = math.Max(0, math.Min(frac, 1))
	remaining := next - invested
	if remaining < 0 {
		remaining = 0
	}
	aura := (float64(stage) + frac) / config.MaxStage
	return Display{
		Aura:          math.Round(aura*100) / 100,
		Percent:       int(math.Floor(frac * 100)),
		NextThreshold: next,
		Remaining:     remaining,
	}
}
