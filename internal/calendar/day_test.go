package calendar

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestParse(t *testing.T) {
	d, err := Parse("2024-01-05")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != "2024-01-05" {
		t.Fatalf("expected 2024-01-05, got %s", d)
	}
	if _, err := Parse("2024-13-01"); err == nil {
		t.Fatal("expected error for invalid month")
	}
	if _, err := Parse("01/05/2024"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}

func TestArithmeticAcrossMonthAndYear(t *testing.T) {
	if got := Day("2024-03-01").Prev(); got != "2024-02-29" {
		t.Fatalf("expected leap day, got %s", got)
	}
	if got := Day("2023-12-31").AddDays(1); got != "2024-01-01" {
		t.Fatalf("expected new year, got %s", got)
	}
	if got := Day("2024-01-01").DaysUntil("2024-02-01"); got != 31 {
		t.Fatalf("expected 31 days, got %d", got)
	}
	if got := Day("2024-02-01").DaysUntil("2024-01-01"); got != -31 {
		t.Fatalf("expected -31 days, got %d", got)
	}
}

func TestTodayUsesLocation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC))
	tokyo := time.FixedZone("JST", 9*60*60)
	if got := Today(clock, time.UTC); got != "2024-01-05" {
		t.Fatalf("expected utc day 2024-01-05, got %s", got)
	}
	if got := Today(clock, tokyo); got != "2024-01-06" {
		t.Fatalf("expected tokyo day 2024-01-06, got %s", got)
	}
}
