package mission

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	energyentity "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	reportrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/streak"
)

// facts are the persisted observations mission predicates are judged on.
// Streak is recomputed for the day since the stored one is only refreshed on submission.
type facts struct {
	Reported    bool
	Investments int
	Streak      int
	Views       int64
}

func (s *Service) gather(ctx context.Context, q sqlx.ExtContext, p *profile.Profile, day calendar.Day) (facts, error) {
	var f facts
	raw, err := s.reports.ListDates(ctx, q, p.UserID)
	if err != nil {
		return facts{}, fmt.Errorf("list report dates: %w", err)
	}
	days := make([]calendar.Day, len(raw))
	for i, d := range raw {
		days[i] = calendar.Day(d)
	}
	f.Streak = streak.Recompute(days, day).Current

	rep, err := s.reports.GetByUserDate(ctx, q, p.UserID, day.String())
	switch {
	case err == nil:
		f.Reported = true
		f.Views = rep.Metrics.TotalViews()
	case !reportrepo.IsNotFound(err):
		return facts{}, fmt.Errorf("load today's report: %w", err)
	}
	n, err := s.entries.CountKindOnDate(ctx, q, p.UserID, energyentity.KindInvestment, day.String())
	if err != nil {
		return facts{}, fmt.Errorf("count investments: %w", err)
	}
	f.Investments = n
	return f, nil
}

// evaluate judges one mission. Progress is in the mission's own unit.
func evaluate(def config.MissionDef, f facts) (done bool, progress int64) {
	switch def.Kind {
	case config.MissionReportSubmitted:
		if f.Reported {
			return true, 1
		}
		return false, 0
	case config.MissionGuardianInvest:
		return f.Investments > 0, int64(f.Investments)
	case config.MissionStreakAtLeast:
		return int64(f.Streak) >= def.Target, int64(f.Streak)
	case config.MissionViewsAtLeast:
		return f.Views >= def.Target, f.Views
	}
	return false, 0
}
