// Package report accepts one activity report per member and day, prices the
// first submission and tracks the member's streak.
package report

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy"
	energyentity "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/streak"
	"github.com/ovaphlow/pitchfork/service-guardian/pkg/utilities"
)

// CreditKey is the ledger source key of the award for the member's report on date.
func CreditKey(date string) string { return "report-credit:" + date }

// Input is a member's submission for one day.
type Input struct {
	Date    string         `json:"date" validate:"required,datetime=2006-01-02"`
	TeamID  string         `json:"team_id" validate:"required"`
	Metrics entity.Metrics `json:"metrics"`
	Comment string         `json:"comment" validate:"max=1000"`
}

// Result is the outcome of SubmitOrUpdate.
type Result struct {
	Report  *entity.Report       `json:"report"`
	Created bool                 `json:"created"`
	Awarded int64                `json:"awarded"`
	Energy  profile.EnergyLedger `json:"energy"`
	Streak  profile.Streak       `json:"streak"`
}

type Service struct {
	runner   *store.Runner
	profiles *profilerepo.ProfileRepo
	reports  *repo.ReportRepo
	ledger   *energy.Ledger
	tables   config.Tables
	validate *validator.Validate
	clock    clockwork.Clock
	loc      *time.Location
	notifier event.Notifier
	logger   *zap.SugaredLogger
}

func NewService(runner *store.Runner, profiles *profilerepo.ProfileRepo, reports *repo.ReportRepo, ledger *energy.Ledger,
	tables config.Tables, clock clockwork.Clock, loc *time.Location, notifier event.Notifier, logger *zap.SugaredLogger) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{runner: runner, profiles: profiles, reports: reports, ledger: ledger, tables: tables,
		validate: v, clock: clock, loc: loc, notifier: notifier, logger: logger}
}

// SubmitOrUpdate creates the member's report for in.Date or edits it.
//
// The first submission stores follower growth against the previous report and
// credits the award once under CreditKey(date). It must be dated within
// BackfillDays of today and after the member's latest report. Edits reuse the
// stored growth, never credit, and are capped at MaxModify per report.
func (s *Service) SubmitOrUpdate(ctx context.Context, userID string, in Input) (Result, error) {
	if err := s.check(in); err != nil {
		return Result{}, err
	}
	var res Result
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		res = Result{}
		p, err := s.profiles.Get(ctx, tx, userID)
		if err != nil {
			if profilerepo.IsNotFound(err) {
				return apperr.NotFound("profile")
			}
			return fmt.Errorf("load profile: %w", err)
		}
		now := s.clock.Now().UTC()

		existing, err := s.reports.GetByUserDate(ctx, tx, userID, in.Date)
		switch {
		case err == nil:
			if err := s.edit(ctx, tx, existing, in, now); err != nil {
				return err
			}
			res.Report = existing
		case repo.IsNotFound(err):
			rep, awarded, err := s.create(ctx, tx, p, in, now)
			if err != nil {
				return err
			}
			res.Report, res.Created, res.Awarded = rep, true, awarded
		default:
			return fmt.Errorf("load report: %w", err)
		}

		if err := s.refreshStreak(ctx, tx, p); err != nil {
			return err
		}
		if err := s.profiles.Save(ctx, tx, p, now); err != nil {
			return err
		}
		res.Energy, res.Streak = p.Energy, p.Streak
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.publish(ctx, userID, res)
	return res, nil
}

func (s *Service) create(ctx context.Context, tx *sqlx.Tx, p *profile.Profile, in Input, now time.Time) (*entity.Report, int64, error) {
	today := calendar.Today(s.clock, s.loc)
	if calendar.Day(in.Date).Before(today.AddDays(-s.tables.BackfillDays)) {
		return nil, 0, apperr.Validation("date", fmt.Sprintf("new reports may be at most %d days old", s.tables.BackfillDays))
	}
	switch latest, err := s.reports.Latest(ctx, tx, p.UserID); {
	case err == nil:
		if latest.Date > in.Date {
			return nil, 0, apperr.Validation("date", "a later report already exists")
		}
	case !repo.IsNotFound(err):
		return nil, 0, fmt.Errorf("load latest report: %w", err)
	}

	var prev *entity.Report
	switch r, err := s.reports.PreviousBefore(ctx, tx, p.UserID, in.Date); {
	case err == nil:
		prev = r
	case !repo.IsNotFound(err):
		return nil, 0, fmt.Errorf("load previous report: %w", err)
	}
	rep := &entity.Report{
		ID:          utilities.NewSnowflakeID(),
		UserID:      p.UserID,
		Date:        in.Date,
		TeamID:      in.TeamID,
		Metrics:     in.Metrics,
		Baseline:    entity.FollowersOf(in.Metrics),
		Growth:      GrowthSince(in.Metrics, prev),
		Comment:     in.Comment,
		ModifyCount: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rep.Metrics == nil {
		rep.Metrics = entity.Metrics{}
	}
	rep.EnergyAwarded = Award(s.tables.Energy, rep.Metrics, rep.Growth)

	inserted, err := s.reports.Insert(ctx, tx, rep)
	if err != nil {
		return nil, 0, fmt.Errorf("insert report: %w", err)
	}
	if !inserted {
		// lost the race to a concurrent first submission; the retry takes the edit path
		return nil, 0, store.ErrConflict
	}
	applied, err := s.ledger.Credit(ctx, tx, p, rep.EnergyAwarded, energyentity.KindReport, CreditKey(in.Date), calendar.Day(in.Date))
	if err != nil {
		return nil, 0, err
	}
	if !applied {
		s.logger.Warnw("report credit already applied", "user_id", p.UserID, "date", in.Date)
		return rep, 0, nil
	}
	return rep, rep.EnergyAwarded, nil
}

func (s *Service) edit(ctx context.Context, tx *sqlx.Tx, rep *entity.Report, in Input, now time.Time) error {
	if rep.ModifyCount >= s.tables.MaxModify {
		return apperr.ErrModifyLimitExceeded
	}
	rep.TeamID = in.TeamID
	rep.Metrics = in.Metrics
	if rep.Metrics == nil {
		rep.Metrics = entity.Metrics{}
	}
	rep.Comment = in.Comment
	rep.ModifyCount++
	rep.UpdatedAt = now
	if err := s.reports.Update(ctx, tx, rep); err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("report")
		}
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

func (s *Service) refreshStreak(ctx context.Context, tx *sqlx.Tx, p *profile.Profile) error {
	raw, err := s.reports.ListDates(ctx, tx, p.UserID)
	if err != nil {
		return fmt.Errorf("list report dates: %w", err)
	}
	days := make([]calendar.Day, len(raw))
	for i, d := range raw {
		days[i] = calendar.Day(d)
	}
	r := streak.Recompute(days, calendar.Today(s.clock, s.loc))
	p.Streak.Current = r.Current
	p.Streak.Max = max(p.Streak.Max, r.Longest)
	return nil
}

func (s *Service) publish(ctx context.Context, userID string, res Result) {
	at := s.clock.Now().UTC()
	typ := event.ReportModified
	if res.Created {
		typ = event.ReportSubmitted
	}
	s.notifier.Notify(ctx, event.Event{Type: typ, UserID: userID, At: at,
		Data: map[string]any{"report_id": res.Report.ID, "date": res.Report.Date, "modify_count": res.Report.ModifyCount}})
	if res.Awarded > 0 {
		s.notifier.Notify(ctx, event.Event{Type: event.EnergyCredited, UserID: userID, At: at,
			Data: map[string]any{"amount": res.Awarded, "source_key": CreditKey(res.Report.Date), "balance": res.Energy}})
	}
}

// check validates in before any store access.
func (s *Service) check(in Input) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperr.Validation("body", err.Error())
		}
		fe := verrs[0]
		if fe.Field() == "team_id" {
			return apperr.ErrMissingTeam
		}
		return apperr.Validation(fe.Field(), fmt.Sprintf("failed %q check", fe.Tag()))
	}
	if day := calendar.Day(in.Date); day.After(calendar.Today(s.clock, s.loc)) {
		return apperr.Validation("date", "report date is in the future")
	}
	for p, m := range in.Metrics {
		if !p.Valid() {
			return apperr.Validation("metrics", fmt.Sprintf("unknown platform %q", p))
		}
		if err := s.validate.Struct(m); err != nil {
			return apperr.Validation("metrics."+string(p), "metrics must not be negative")
		}
	}
	return nil
}

// Get returns the member's report for date.
func (s *Service) Get(ctx context.Context, userID, date string) (*entity.Report, error) {
	if _, err := calendar.Parse(date); err != nil {
		return nil, apperr.Validation("date", "date must be YYYY-MM-DD")
	}
	rep, err := s.reports.GetByUserDate(ctx, s.runner.DB(), userID, date)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFound("report")
		}
		return nil, apperr.FromContext(fmt.Errorf("load report: %w", err))
	}
	return rep, nil
}

// Latest returns the member's most recent report by date.
func (s *Service) Latest(ctx context.Context, userID string) (*entity.Report, error) {
	rep, err := s.reports.Latest(ctx, s.runner.DB(), userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFound("report")
		}
		return nil, apperr.FromContext(fmt.Errorf("load latest report: %w", err))
	}
	return rep, nil
}

// List returns reports between from and to inclusive, oldest first.
func (s *Service) List(ctx context.Context, userID, from, to string) ([]*entity.Report, error) {
	for field, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			continue
		}
		if _, err := calendar.Parse(v); err != nil {
			return nil, apperr.Validation(field, "date must be YYYY-MM-DD")
		}
	}
	out, err := s.reports.ListRange(ctx, s.runner.DB(), userID, from, to)
	if err != nil {
		return nil, apperr.FromContext(fmt.Errorf("list reports: %w", err))
	}
	if out == nil {
		out = []*entity.Report{}
	}
	return out, nil
}

// StreakStatus is the streak plus the advisory continuation warning.
type StreakStatus struct {
	Current    int            `json:"current"`
	Max        int            `json:"max"`
	Longest    int            `json:"longest"`
	Warning    streak.Warning `json:"warning"`
	LastReport *time.Time     `json:"last_report_at,omitempty"`
}

// Streak recomputes the streak as of now without writing it.
func (s *Service) Streak(ctx context.Context, userID string) (StreakStatus, error) {
	db := s.runner.DB()
	p, err := s.profiles.Get(ctx, db, userID)
	if err != nil {
		if profilerepo.IsNotFound(err) {
			return StreakStatus{}, apperr.NotFound("profile")
		}
		return StreakStatus{}, apperr.FromContext(fmt.Errorf("load profile: %w", err))
	}
	raw, err := s.reports.ListDates(ctx, db, userID)
	if err != nil {
		return StreakStatus{}, apperr.FromContext(fmt.Errorf("list report dates: %w", err))
	}
	days := make([]calendar.Day, len(raw))
	for i, d := range raw {
		days[i] = calendar.Day(d)
	}
	r := streak.Recompute(days, calendar.Today(s.clock, s.loc))
	st := StreakStatus{Current: r.Current, Longest: r.Longest, Max: max(p.Streak.Max, r.Longest), Warning: streak.WarningNone}

	latest, err := s.reports.Latest(ctx, db, userID)
	switch {
	case err == nil:
		at := latest.CreatedAt
		st.LastReport = &at
		st.Warning = streak.ContinuationWarning(at, s.clock.Now())
	case !repo.IsNotFound(err):
		return StreakStatus{}, apperr.FromContext(fmt.Errorf("load latest report: %w", err))
	}
	return st, nil
}
