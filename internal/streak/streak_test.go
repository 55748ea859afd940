package streak

import (
	"testing"
	"time"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
)

func days(ds ...string) []calendar.Day {
	out := make([]calendar.Day, len(ds))
	for i, d := range ds {
		out[i] = calendar.Day(d)
	}
	return out
}

func TestRecomputeContinuity(t *testing.T) {
	got := Recompute(days("2024-01-05", "2024-01-04", "2024-01-03"), "2024-01-05")
	if got.Current != 3 {
		t.Fatalf("expected current 3, got %d", got.Current)
	}
	got = Recompute(days("2024-01-05", "2024-01-03"), "2024-01-05")
	if got.Current != 1 {
		t.Fatalf("expected current 1 after gap, got %d", got.Current)
	}
}

func TestRecomputeRunEndingYesterdayStillCounts(t *testing.T) {
	got := Recompute(days("2024-01-04", "2024-01-03"), "2024-01-05")
	if got.Current != 2 {
		t.Fatalf("expected current 2, got %d", got.Current)
	}
	got = Recompute(days("2024-01-03", "2024-01-02"), "2024-01-05")
	if got.Current != 0 || got.Longest != 2 {
		t.Fatalf("expected broken streak with longest 2, got %+v", got)
	}
}

func TestRecomputeLongestAnywhere(t *testing.T) {
	got := Recompute(days(
		"2024-01-10",
		"2024-01-05", "2024-01-04", "2024-01-03", "2024-01-02",
		"2023-12-31",
	), "2024-01-10")
	if got.Current != 1 || got.Longest != 4 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestRecomputeIgnoresDuplicatesOrderAndFuture(t *testing.T) {
	got := Recompute(days("2024-01-03", "2024-01-05", "2024-01-04", "2024-01-05", "2024-01-09"), "2024-01-05")
	if got.Current != 3 || got.Longest != 3 {
		t.Fatalf("unexpected result %+v", got)
	}
	if got := Recompute(nil, "2024-01-05"); got != (Result{}) {
		t.Fatalf("expected zero result, got %+v", got)
	}
}

func TestContinuationWarning(t *testing.T) {
	last := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		after time.Duration
		want  Warning
	}{
		{time.Hour, WarningNone},
		{19*time.Hour + 59*time.Minute, WarningNone},
		{20 * time.Hour, WarningWarning},
		{22 * time.Hour, WarningWarning},
		{23 * time.Hour, WarningCritical},
		{48 * time.Hour, WarningCritical},
	}
	for _, tc := range cases {
		if got := ContinuationWarning(last, last.Add(tc.after)); got != tc.want {
			t.Fatalf("after %s: got %s, want %s", tc.after, got, tc.want)
		}
	}
	if got := ContinuationWarning(time.Time{}, last); got != WarningNone {
		t.Fatalf("expected none without a report, got %s", got)
	}
}
