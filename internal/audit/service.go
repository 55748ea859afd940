package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	energyentity "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	energyrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	reportrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
)

// StageSource resolves the stage of a member's active guardian.
type StageSource interface {
	ActiveStage(ctx context.Context, q sqlx.ExtContext, p *profile.Profile) (int, error)
}

// Service loads persisted state and runs Audit over it. It only reads.
type Service struct {
	db          *sqlx.DB
	profiles    *profilerepo.ProfileRepo
	reports     *reportrepo.ReportRepo
	entries     *energyrepo.EntryRepo
	stages      StageSource
	rules       config.AuditRules
	clock       clockwork.Clock
	loc         *time.Location
	parallelism int
	logger      *zap.SugaredLogger
}

func NewService(db *sqlx.DB, profiles *profilerepo.ProfileRepo, reports *reportrepo.ReportRepo, entries *energyrepo.EntryRepo,
	stages StageSource, rules config.AuditRules, clock clockwork.Clock, loc *time.Location, parallelism int,
	logger *zap.SugaredLogger) *Service {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Service{db: db, profiles: profiles, reports: reports, entries: entries, stages: stages, rules: rules,
		clock: clock, loc: loc, parallelism: parallelism, logger: logger}
}

// AuditUser audits one member. A member without a profile is NotFound.
func (s *Service) AuditUser(ctx context.Context, userID string) (Report, error) {
	p, err := s.profiles.Get(ctx, s.db, userID)
	if err != nil {
		if profilerepo.IsNotFound(err) {
			return Report{}, apperr.NotFound("profile")
		}
		return Report{}, fmt.Errorf("load profile: %w", err)
	}
	reports, err := s.reports.ListRange(ctx, s.db, userID, "", "")
	if err != nil {
		return Report{}, fmt.Errorf("list reports: %w", err)
	}
	stage, err := s.stages.ActiveStage(ctx, s.db, p)
	if err != nil {
		return Report{}, err
	}
	today := calendar.Today(s.clock, s.loc)
	start := today.AddDays(-(max(s.rules.WindowDays, 1) - 1))
	windowEnergy, err := s.entries.SumKindSince(ctx, s.db, userID, energyentity.KindReport, start.String())
	if err != nil {
		return Report{}, fmt.Errorf("sum report energy: %w", err)
	}

	out := Audit(s.rules, Input{
		Reports:      reports,
		Ledger:       p.Energy,
		Stage:        stage,
		WindowEnergy: windowEnergy,
		Today:        today,
	})
	out.UserID = userID
	if len(out.Issues) > 0 || out.Flags != (Flags{}) {
		s.logger.Infow("audit found anomalies", "user_id", userID, "issues", len(out.Issues),
			"flags", out.Flags, "score", out.ConsistencyScore)
	}
	return out, nil
}

// AuditUsers audits ids concurrently. Results keep the order of ids; the first
// failure cancels the rest.
func (s *Service) AuditUsers(ctx context.Context, ids []string) ([]Report, error) {
	ctx, span := otel.Tracer("service-guardian/audit").Start(ctx, "audit.AuditUsers",
		trace.WithAttributes(attribute.Int("audit.users", len(ids))))
	defer span.End()

	out := make([]Report, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			r, err := s.AuditUser(ctx, id)
			if err != nil {
				return fmt.Errorf("audit %s: %w", id, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// AuditAll walks every profile in pages of pageSize and hands each page's
// reports to fn.
func (s *Service) AuditAll(ctx context.Context, pageSize int, fn func([]Report) error) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	after := ""
	for {
		ids, err := s.profiles.ListUserIDs(ctx, s.db, after, pageSize)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		page, err := s.AuditUsers(ctx, ids)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(ids) < pageSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}
