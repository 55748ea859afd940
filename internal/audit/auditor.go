// Package audit inspects a member's persisted reports, ledger and guardian
// stage for anomalies. Audit is pure and never fails: missing data yields a
// clean report.
package audit

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type IssueType string

const (
	IssueDuplicateReport     IssueType = "duplicate_report"
	IssueFutureReport        IssueType = "future_report"
	IssueStaleReport         IssueType = "stale_report"
	IssueZeroActivity        IssueType = "zero_activity"
	IssueStageEnergyMismatch IssueType = "stage_energy_mismatch"
)

type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Dates    []string  `json:"dates,omitempty"`
}

// Flags are advisory signals over the recent window, not proof of wrongdoing.
type Flags struct {
	HighEnergyLowOutput  bool `json:"high_energy_low_output"`
	FrequentModification bool `json:"frequent_modification"`
	InconsistentGrowth   bool `json:"inconsistent_growth"`
	SuspiciousPattern    bool `json:"suspicious_pattern"`
}

// Report is derived on every call and never stored.
type Report struct {
	UserID           string  `json:"user_id,omitempty"`
	Flags            Flags   `json:"flags"`
	ConsistencyScore int     `json:"consistency_score"`
	Issues           []Issue `json:"issues"`
	Stage            int     `json:"stage"`
	ReportCount      int     `json:"report_count"`
	WindowStart      string  `json:"window_start"`
}

type Input struct {
	Reports []*entity.Report
	Ledger  profile.EnergyLedger
	// Stage is the stage of the member's active guardian.
	Stage int
	// WindowEnergy is the report energy the ledger booked inside the window.
	WindowEnergy int64
	Today        calendar.Day
}

// Audit evaluates in against rules. Equal inputs give equal reports.
func Audit(rules config.AuditRules, in Input) Report {
	reports := make([]*entity.Report, 0, len(in.Reports))
	for _, r := range in.Reports {
		if r != nil {
			reports = append(reports, r)
		}
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Date != reports[j].Date {
			return reports[i].Date < reports[j].Date
		}
		return reports[i].ID < reports[j].ID
	})

	windowDays := max(rules.WindowDays, 1)
	start := in.Today.AddDays(-(windowDays - 1))
	var window []*entity.Report
	for _, r := range reports {
		d := calendar.Day(r.Date)
		if !d.Before(start) && !d.After(in.Today) {
			window = append(window, r)
		}
	}

	out := Report{
		Stage:            in.Stage,
		ReportCount:      len(reports),
		WindowStart:      start.String(),
		ConsistencyScore: 100,
		Issues:           []Issue{},
	}
	if len(reports) == 0 {
		return out
	}
	out.Flags = flags(rules, window, in.WindowEnergy)
	out.ConsistencyScore = score(rules, in.Stage, in.Ledger, reports)
	out.Issues = integrity(rules, in, reports)
	return out
}

func flags(rules config.AuditRules, window []*entity.Report, energy int64) Flags {
	var f Flags
	if len(window) == 0 {
		return f
	}
	var views int64
	modifications := 0
	for _, r := range window {
		views += r.Metrics.TotalViews()
		modifications += r.ModifyCount
	}
	f.HighEnergyLowOutput = energy >= rules.HighEnergyMin && views < rules.LowOutputViews
	f.FrequentModification = rules.FrequentModifyTotal > 0 && modifications >= rules.FrequentModifyTotal
	f.InconsistentGrowth = growthSpike(rules, window)
	f.SuspiciousPattern = identicalRun(rules.IdenticalRunLength, window)
	return f
}

// growthSpike reports a window report whose growth dwarfs the mean of the others.
func growthSpike(rules config.AuditRules, window []*entity.Report) bool {
	var total int64
	for _, r := range window {
		total += r.Growth.Total()
	}
	for _, r := range window {
		g := r.Growth.Total()
		if g < rules.GrowthSpikeMin {
			continue
		}
		mean := 0.0
		if others := len(window) - 1; others > 0 {
			mean = float64(total-g) / float64(others)
		}
		if float64(g) >= rules.GrowthSpikeFactor*mean {
			return true
		}
	}
	return false
}

func identicalRun(length int, window []*entity.Report) bool {
	if length < 2 || len(window) < length {
		return false
	}
	run := 1
	for i := 1; i < len(window); i++ {
		if window[i].Metrics.Equal(window[i-1].Metrics) {
			run++
			if run >= length {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// score compares the ledger and reported views with what the stage implies.
func score(rules config.AuditRules, stage int, ledger profile.EnergyLedger, reports []*entity.Report) int {
	expectedEnergy := float64(stage) * rules.EnergyPerStage
	expectedViews := float64(stage) * rules.ViewsPerStage
	var views int64
	for _, r := range reports {
		views += r.Metrics.TotalViews()
	}
	energyGap := math.Abs(float64(ledger.TotalEarned)-expectedEnergy) / math.Max(expectedEnergy, 1)
	viewsGap := math.Abs(float64(views)-expectedViews) / math.Max(expectedViews, 1)
	s := 100 - math.Min((energyGap+viewsGap)*50, 100)
	return int(math.Round(math.Max(0, math.Min(s, 100))))
}

func integrity(rules config.AuditRules, in Input, reports []*entity.Report) []Issue {
	issues := []Issue{}

	byDate := map[string]int{}
	for _, r := range reports {
		byDate[r.Date]++
	}
	var dups []string
	for d, n := range byDate {
		if n > 1 {
			dups = append(dups, d)
		}
	}
	sort.Strings(dups)
	for _, d := range dups {
		issues = append(issues, Issue{Type: IssueDuplicateReport, Severity: SeverityHigh, Dates: []string{d},
			Message: fmt.Sprintf("%d reports share the date %s", byDate[d], d)})
	}

	staleBefore := in.Today.AddDays(-rules.StaleDays)
	var future, stale, zero []string
	for _, r := range reports {
		d := calendar.Day(r.Date)
		switch {
		case d.After(in.Today):
			future = appendOnce(future, r.Date)
		case d.Before(staleBefore):
			stale = appendOnce(stale, r.Date)
		}
		if r.IsZeroActivity() {
			zero = appendOnce(zero, r.Date)
		}
	}
	for _, d := range future {
		issues = append(issues, Issue{Type: IssueFutureReport, Severity: SeverityHigh, Dates: []string{d},
			Message: fmt.Sprintf("report dated %s is in the future", d)})
	}
	if len(stale) > 0 {
		issues = append(issues, Issue{Type: IssueStaleReport, Severity: SeverityLow, Dates: stale,
			Message: fmt.Sprintf("%d report(s) older than %d days", len(stale), rules.StaleDays)})
	}
	if len(zero) > 0 {
		issues = append(issues, Issue{Type: IssueZeroActivity, Severity: SeverityMedium, Dates: zero,
			Message: fmt.Sprintf("%d report(s) with no activity: %s", len(zero), strings.Join(zero, ", "))})
	}

	// a stage-0 guardian is held to one stage worth of energy
	expected := max(float64(in.Stage), 1) * rules.EnergyPerStage
	actual := float64(in.Ledger.TotalEarned)
	if expected > 0 && math.Abs(actual-expected) > 2*expected {
		issues = append(issues, Issue{Type: IssueStageEnergyMismatch, Severity: SeverityHigh,
			Message: fmt.Sprintf("stage %d implies about %.0f energy earned, ledger shows %.0f", in.Stage, expected, actual)})
	}
	return issues
}

// appendOnce relies on dates arriving sorted.
func appendOnce(s []string, d string) []string {
	if n := len(s); n > 0 && s[n-1] == d {
		return s
	}
	return append(s, d)
}
