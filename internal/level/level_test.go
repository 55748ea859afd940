package level

import (
	"testing"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
)

var table = []config.LevelDef{
	{Level: 1, Title: "Rookie", Threshold: 0},
	{Level: 2, Title: "Creator", Threshold: 200},
	{Level: 3, Title: "Star", Threshold: 600},
}

func TestOf(t *testing.T) {
	cases := []struct {
		total int64
		want  int
	}{
		{0, 1}, {199, 1}, {200, 2}, {599, 2}, {600, 3}, {100000, 3},
	}
	for _, tc := range cases {
		if got := Of(table, tc.total); got.Level != tc.want {
			t.Fatalf("Of(%d) = %d, want %d", tc.total, got.Level, tc.want)
		}
	}
	if got := Of(table, 250).Title; got != "Creator" {
		t.Fatalf("expected Creator, got %q", got)
	}
}

func TestProgressOf(t *testing.T) {
	p := ProgressOf(table, 300)
	if p.Percent != 25 || p.Remaining != 300 || p.Next != 600 {
		t.Fatalf("unexpected progress %+v", p)
	}
	p = ProgressOf(table, 0)
	if p.Percent != 0 || p.Remaining != 200 {
		t.Fatalf("unexpected progress at zero %+v", p)
	}
	p = ProgressOf(table, 900)
	if p.Percent != 100 || p.Remaining != 0 {
		t.Fatalf("expected capped progress at top level, got %+v", p)
	}
}

func TestMonotonic(t *testing.T) {
	prev := 0
	for total := int64(0); total <= 1000; total += 7 {
		lv := Of(table, total).Level
		if lv < prev {
			t.Fatalf("level decreased at %d: %d < %d", total, lv, prev)
		}
		prev = lv
	}
}
