// Package guardian unlocks, evolves and annotates a member's guardians.
package guardian

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy"
	energyentity "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/level"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
)

const maxMemoRunes = 200

type Service struct {
	runner    *store.Runner
	profiles  *profilerepo.ProfileRepo
	guardians *repo.GuardianRepo
	ledger    *energy.Ledger
	tables    config.Tables
	clock     clockwork.Clock
	loc       *time.Location
	notifier  event.Notifier
	logger    *zap.SugaredLogger
}

func NewService(runner *store.Runner, profiles *profilerepo.ProfileRepo, guardians *repo.GuardianRepo, ledger *energy.Ledger,
	tables config.Tables, clock clockwork.Clock, loc *time.Location, notifier event.Notifier, logger *zap.SugaredLogger) *Service {
	return &Service{runner: runner, profiles: profiles, guardians: guardians, ledger: ledger,
		tables: tables, clock: clock, loc: loc, notifier: notifier, logger: logger}
}

// InvestResult is returned by Invest. Steps is empty when no stage was reached.
type InvestResult struct {
	GuardianID          string               `json:"guardian_id"`
	Steps               []Step               `json:"steps"`
	FinalStage          int                  `json:"final_stage"`
	FinalInvestedEnergy int64                `json:"final_invested_energy"`
	Energy              profile.EnergyLedger `json:"energy"`
	Display             Display              `json:"display"`
}

// Invest debits amount from the member's ledger, adds it to the guardian and
// applies every stage the new total reaches. A guardian at the final stage
// yields ErrTerminalStage with nothing debited.
func (s *Service) Invest(ctx context.Context, userID, guardianID string, amount int64) (InvestResult, error) {
	var res InvestResult
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		g, err := s.loadUnlocked(ctx, tx, userID, guardianID)
		if err != nil {
			return err
		}
		if g.Stage >= config.MaxStage {
			return apperr.ErrTerminalStage
		}
		if amount <= 0 {
			return apperr.Validation("amount", "investment must be positive")
		}
		now := s.clock.Now().UTC()
		if err := s.ledger.Debit(ctx, tx, p, amount, energyentity.KindInvestment, calendar.Of(now, s.loc)); err != nil {
			return err
		}
		g.InvestedEnergy += amount
		stage, steps := Evolve(g.Stage, g.InvestedEnergy, s.tables.EvolutionThresholds)
		for _, st := range steps {
			g.Memories = append(g.Memories, entity.Memory{
				Kind: entity.MemoryEvolved, At: now, FromStage: st.From, ToStage: st.To, Invested: g.InvestedEnergy,
			})
		}
		g.Stage = stage
		g.UpdatedAt = now
		if err := s.guardians.Update(ctx, tx, g); err != nil {
			return fmt.Errorf("update guardian: %w", err)
		}
		if err := s.profiles.Save(ctx, tx, p, now); err != nil {
			return err
		}
		res = InvestResult{
			GuardianID:          guardianID,
			Steps:               steps,
			FinalStage:          g.Stage,
			FinalInvestedEnergy: g.InvestedEnergy,
			Energy:              p.Energy,
			Display:             DisplayOf(g.InvestedEnergy, g.Stage, s.tables.EvolutionThresholds),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrTerminalStage) {
			s.logger.Debugw("investment into final-stage guardian ignored", "user_id", userID, "guardian_id", guardianID)
		}
		return InvestResult{}, err
	}

	at := s.clock.Now().UTC()
	s.notifier.Notify(ctx, event.Event{Type: event.EnergyDebited, UserID: userID, At: at,
		Data: map[string]any{"amount": amount, "guardian_id": guardianID, "balance": res.Energy}})
	if len(res.Steps) > 0 {
		s.notifier.Notify(ctx, event.Event{Type: event.GuardianEvolved, UserID: userID, At: at,
			Data: map[string]any{"guardian_id": guardianID, "steps": res.Steps}})
	}
	return res, nil
}

// Approve creates the member's profile with the starter guardian unlocked and
// active. Approving an existing member returns the current profile.
func (s *Service) Approve(ctx context.Context, userID string) (ProfileView, error) {
	if userID == "" {
		return ProfileView{}, apperr.Validation("user_id", "user id is required")
	}
	created := false
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		now := s.clock.Now().UTC()
		p := &profile.Profile{UserID: userID, ActiveGuardianID: s.tables.StarterGuardian, CreatedAt: now, UpdatedAt: now}
		ok, err := s.profiles.Create(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		if !ok {
			created = false
			return nil
		}
		created = true
		_, err = s.guardians.Insert(ctx, tx, newUnlocked(userID, s.tables.StarterGuardian, now))
		if err != nil {
			return fmt.Errorf("insert starter guardian: %w", err)
		}
		return nil
	})
	if err != nil {
		return ProfileView{}, err
	}
	if created {
		s.logger.Infow("member approved", "user_id", userID)
		s.notifier.Notify(ctx, event.Event{Type: event.ProfileApproved, UserID: userID, At: s.clock.Now().UTC()})
	}
	return s.Profile(ctx, userID)
}

// Unlock adds a catalog guardian once the member's level allows it.
func (s *Service) Unlock(ctx context.Context, userID, guardianID string) (GuardianView, error) {
	def, ok := s.tables.Guardian(guardianID)
	if !ok {
		return GuardianView{}, apperr.NotFound("guardian")
	}
	var (
		g        *entity.Guardian
		unlocked bool
	)
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		unlocked = false
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		existing, err := s.guardians.Get(ctx, tx, userID, guardianID)
		switch {
		case err == nil && existing.Unlocked:
			g = existing
			return nil
		case err != nil && !repo.IsNotFound(err):
			return fmt.Errorf("load guardian: %w", err)
		}
		if lv := level.Of(s.tables.Levels, p.Energy.TotalEarned); lv.Level < def.UnlockLevel {
			return &apperr.Error{Code: apperr.CodeGuardianLocked, Field: "guardian_id",
				Message: fmt.Sprintf("%s unlocks at level %d", def.Name, def.UnlockLevel)}
		}
		now := s.clock.Now().UTC()
		g = newUnlocked(userID, guardianID, now)
		if existing != nil {
			// a locked row left by an import
			g.InvestedEnergy, g.Stage, g.Memo = existing.InvestedEnergy, existing.Stage, existing.Memo
			g.Memories = append(existing.Memories, g.Memories...)
			if err := s.guardians.Update(ctx, tx, g); err != nil {
				return fmt.Errorf("update guardian: %w", err)
			}
		} else if _, err := s.guardians.Insert(ctx, tx, g); err != nil {
			return fmt.Errorf("insert guardian: %w", err)
		}
		unlocked = true
		return s.profiles.Save(ctx, tx, p, now)
	})
	if err != nil {
		return GuardianView{}, err
	}
	if unlocked {
		s.notifier.Notify(ctx, event.Event{Type: event.GuardianUnlocked, UserID: userID, At: s.clock.Now().UTC(),
			Data: map[string]any{"guardian_id": guardianID}})
	}
	return s.view(g), nil
}

// SetActive selects the guardian shown as the member's companion.
func (s *Service) SetActive(ctx context.Context, userID, guardianID string) error {
	return s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := s.loadUnlocked(ctx, tx, userID, guardianID); err != nil {
			return err
		}
		if p.ActiveGuardianID == guardianID {
			return nil
		}
		p.ActiveGuardianID = guardianID
		return s.profiles.Save(ctx, tx, p, s.clock.Now().UTC())
	})
}

// SetMemo replaces the member's free-text note on a guardian.
func (s *Service) SetMemo(ctx context.Context, userID, guardianID, memo string) (GuardianView, error) {
	if utf8.RuneCountInString(memo) > maxMemoRunes {
		return GuardianView{}, apperr.Validation("memo", fmt.Sprintf("memo must be at most %d characters", maxMemoRunes))
	}
	var g *entity.Guardian
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		g, err = s.loadUnlocked(ctx, tx, userID, guardianID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		g.Memo = memo
		g.UpdatedAt = now
		if err := s.guardians.Update(ctx, tx, g); err != nil {
			return fmt.Errorf("update guardian: %w", err)
		}
		return s.profiles.Save(ctx, tx, p, now)
	})
	if err != nil {
		return GuardianView{}, err
	}
	return s.view(g), nil
}

// ActiveStage returns the stage of the member's active guardian, 0 if none.
func (s *Service) ActiveStage(ctx context.Context, q sqlx.ExtContext, p *profile.Profile) (int, error) {
	if p.ActiveGuardianID == "" {
		return 0, nil
	}
	g, err := s.guardians.Get(ctx, q, p.UserID, p.ActiveGuardianID)
	if err != nil {
		if repo.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("load active guardian: %w", err)
	}
	return g.Stage, nil
}

func (s *Service) loadProfile(ctx context.Context, q sqlx.ExtContext, userID string) (*profile.Profile, error) {
	p, err := s.profiles.Get(ctx, q, userID)
	if err != nil {
		if profilerepo.IsNotFound(err) {
			return nil, apperr.NotFound("profile")
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// loadUnlocked returns NotFound for ids outside the catalog and
// ErrGuardianLocked for catalog guardians the member has not unlocked.
func (s *Service) loadUnlocked(ctx context.Context, q sqlx.ExtContext, userID, guardianID string) (*entity.Guardian, error) {
	if _, ok := s.tables.Guardian(guardianID); !ok {
		return nil, apperr.NotFound("guardian")
	}
	g, err := s.guardians.Get(ctx, q, userID, guardianID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.ErrGuardianLocked
		}
		return nil, fmt.Errorf("load guardian: %w", err)
	}
	if !g.Unlocked {
		return nil, apperr.ErrGuardianLocked
	}
	return g, nil
}

func newUnlocked(userID, guardianID string, now time.Time) *entity.Guardian {
	return &entity.Guardian{
		UserID:     userID,
		GuardianID: guardianID,
		Unlocked:   true,
		Memories:   entity.Memories{{Kind: entity.MemoryUnlocked, At: now}},
		UnlockedAt: now,
		UpdatedAt:  now,
	}
}
