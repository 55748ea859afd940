package energy

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
)

// Service exposes the ledger as standalone operations, each in its own
// member transaction. Report, mission and guardian services use Ledger
// directly so their credit or debit commits with the rest of their change.
type Service struct {
	runner   *store.Runner
	profiles *profilerepo.ProfileRepo
	entries  *repo.EntryRepo
	ledger   *Ledger
	clock    clockwork.Clock
	loc      *time.Location
	notifier event.Notifier
	logger   *zap.SugaredLogger
}

func NewService(runner *store.Runner, profiles *profilerepo.ProfileRepo, entries *repo.EntryRepo, ledger *Ledger,
	clock clockwork.Clock, loc *time.Location, notifier event.Notifier, logger *zap.SugaredLogger) *Service {
	return &Service{runner: runner, profiles: profiles, entries: entries, ledger: ledger,
		clock: clock, loc: loc, notifier: notifier, logger: logger}
}

// Credit adds amount under sourceKey. Repeating a key returns the current
// balance without changing it.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, sourceKey string) (profile.EnergyLedger, error) {
	var (
		out     profile.EnergyLedger
		applied bool
	)
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		applied, err = s.ledger.Credit(ctx, tx, p, amount, entity.KindAdjustment, sourceKey, calendar.Today(s.clock, s.loc))
		if err != nil {
			return err
		}
		if applied {
			if err := s.profiles.Save(ctx, tx, p, s.clock.Now().UTC()); err != nil {
				return err
			}
		}
		out = p.Energy
		return nil
	})
	if err != nil {
		return profile.EnergyLedger{}, err
	}
	if applied {
		s.notifier.Notify(ctx, event.Event{Type: event.EnergyCredited, UserID: userID, At: s.clock.Now().UTC(),
			Data: map[string]any{"amount": amount, "source_key": sourceKey, "balance": out}})
	} else {
		s.logger.Debugw("duplicate credit ignored", "user_id", userID, "source_key", sourceKey)
	}
	return out, nil
}

// Debit removes amount from the spendable balance.
func (s *Service) Debit(ctx context.Context, userID string, amount int64) (profile.EnergyLedger, error) {
	var out profile.EnergyLedger
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.ledger.Debit(ctx, tx, p, amount, entity.KindAdjustment, calendar.Today(s.clock, s.loc)); err != nil {
			return err
		}
		if err := s.profiles.Save(ctx, tx, p, s.clock.Now().UTC()); err != nil {
			return err
		}
		out = p.Energy
		return nil
	})
	if err != nil {
		return profile.EnergyLedger{}, err
	}
	s.notifier.Notify(ctx, event.Event{Type: event.EnergyDebited, UserID: userID, At: s.clock.Now().UTC(),
		Data: map[string]any{"amount": amount, "balance": out}})
	return out, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (profile.EnergyLedger, error) {
	p, err := s.load(ctx, s.runner.DB(), userID)
	if err != nil {
		return profile.EnergyLedger{}, apperr.FromContext(err)
	}
	return p.Energy, nil
}

// History lists journal entries newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]*entity.Entry, error) {
	if _, err := s.load(ctx, s.runner.DB(), userID); err != nil {
		return nil, apperr.FromContext(err)
	}
	entries, err := s.entries.List(ctx, s.runner.DB(), userID, limit, offset)
	if err != nil {
		return nil, apperr.FromContext(fmt.Errorf("list energy entries: %w", err))
	}
	if entries == nil {
		entries = []*entity.Entry{}
	}
	return entries, nil
}

func (s *Service) load(ctx context.Context, q sqlx.ExtContext, userID string) (*profile.Profile, error) {
	p, err := s.profiles.Get(ctx, q, userID)
	if err != nil {
		if profilerepo.IsNotFound(err) {
			return nil, apperr.NotFound("profile")
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}
