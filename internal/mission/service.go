// Package mission tracks the daily mission board and pays out its rewards.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy"
	energyentity "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	energyrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission/repo"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	reportrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
)

func RewardKey(date, missionID string) string { return "mission:" + date + ":" + missionID }

func BonusKey(date string) string { return "mission-bonus:" + date }

type Service struct {
	runner   *store.Runner
	profiles *profilerepo.ProfileRepo
	missions *repo.MissionRepo
	reports  *reportrepo.ReportRepo
	entries  *energyrepo.EntryRepo
	ledger   *energy.Ledger
	tables   config.Tables
	clock    clockwork.Clock
	loc      *time.Location
	notifier event.Notifier
	logger   *zap.SugaredLogger
}

func NewService(runner *store.Runner, profiles *profilerepo.ProfileRepo, missions *repo.MissionRepo, reports *reportrepo.ReportRepo,
	entries *energyrepo.EntryRepo, ledger *energy.Ledger, tables config.Tables, clock clockwork.Clock, loc *time.Location,
	notifier event.Notifier, logger *zap.SugaredLogger) *Service {
	return &Service{runner: runner, profiles: profiles, missions: missions, reports: reports, entries: entries,
		ledger: ledger, tables: tables, clock: clock, loc: loc, notifier: notifier, logger: logger}
}

// MissionView joins a catalog entry with the member's status for the day.
type MissionView struct {
	config.MissionDef
	Progress  int64 `json:"progress"`
	Completed bool  `json:"completed"`
	Claimed   bool  `json:"claimed"`
}

type Board struct {
	Date         string        `json:"date"`
	Missions     []MissionView `json:"missions"`
	AllCompleted bool          `json:"all_completed"`
	BonusClaimed bool          `json:"bonus_claimed"`
	Bonus        int64         `json:"bonus"`
}

type ClaimResult struct {
	MissionID string               `json:"mission_id,omitempty"`
	Reward    int64                `json:"reward"`
	Energy    profile.EnergyLedger `json:"energy"`
}

// Today returns the member's board, creating it on first access and latching
// any mission whose facts now hold.
func (s *Service) Today(ctx context.Context, userID string) (Board, error) {
	var board Board
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		sess, err := s.open(ctx, tx, p)
		if err != nil {
			return err
		}
		if err := sess.commit(ctx, tx); err != nil {
			return err
		}
		board = sess.board()
		return nil
	})
	return board, err
}

// Claim pays a completed mission's reward once per day.
func (s *Service) Claim(ctx context.Context, userID, missionID string) (ClaimResult, error) {
	def, ok := s.tables.Mission(missionID)
	if !ok {
		return ClaimResult{}, apperr.NotFound("mission")
	}
	var res ClaimResult
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		sess, err := s.open(ctx, tx, p)
		if err != nil {
			return err
		}
		st := sess.state.Missions.Find(missionID)
		switch {
		case st.Claimed:
			return apperr.ErrAlreadyClaimed
		case !st.Completed:
			return apperr.ErrNotCompleted
		}
		st.Claimed = true
		sess.dirty = true
		key := RewardKey(sess.state.Date, missionID)
		applied, err := s.ledger.Credit(ctx, tx, p, def.Reward, energyentity.KindMission, key, sess.day)
		if err != nil {
			return err
		}
		reward := def.Reward
		if !applied {
			s.logger.Warnw("mission reward already applied", "user_id", userID, "source_key", key)
			reward = 0
		}
		if err := sess.commit(ctx, tx); err != nil {
			return err
		}
		res = ClaimResult{MissionID: missionID, Reward: reward, Energy: p.Energy}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	s.notifier.Notify(ctx, event.Event{Type: event.MissionClaimed, UserID: userID, At: s.clock.Now().UTC(),
		Data: map[string]any{"mission_id": missionID, "reward": res.Reward, "balance": res.Energy}})
	return res, nil
}

// ClaimAllBonus pays the all-complete bonus once per day.
func (s *Service) ClaimAllBonus(ctx context.Context, userID string) (ClaimResult, error) {
	var res ClaimResult
	err := s.runner.InUserTx(ctx, userID, func(ctx context.Context, tx *sqlx.Tx) error {
		p, err := s.loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		sess, err := s.open(ctx, tx, p)
		if err != nil {
			return err
		}
		switch {
		case sess.state.BonusClaimed:
			return apperr.ErrAlreadyClaimed
		case !sess.state.AllCompleted:
			return apperr.ErrNotCompleted
		}
		sess.state.BonusClaimed = true
		sess.dirty = true
		key := BonusKey(sess.state.Date)
		applied, err := s.ledger.Credit(ctx, tx, p, s.tables.AllCompleteBonus, energyentity.KindMissionBonus, key, sess.day)
		if err != nil {
			return err
		}
		reward := s.tables.AllCompleteBonus
		if !applied {
			s.logger.Warnw("mission bonus already applied", "user_id", userID, "source_key", key)
			reward = 0
		}
		if err := sess.commit(ctx, tx); err != nil {
			return err
		}
		res = ClaimResult{Reward: reward, Energy: p.Energy}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	s.notifier.Notify(ctx, event.Event{Type: event.MissionClaimed, UserID: userID, At: s.clock.Now().UTC(),
		Data: map[string]any{"bonus": true, "reward": res.Reward, "balance": res.Energy}})
	return res, nil
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

// session is the day's board loaded inside one transaction.
type session struct {
	s        *Service
	p        *profile.Profile
	day      calendar.Day
	state    *entity.DailyState
	progress map[string]int64
	isNew    bool
	dirty    bool
}

func (s *Service) open(ctx context.Context, tx *sqlx.Tx, p *profile.Profile) (*session, error) {
	now := s.clock.Now().UTC()
	day := calendar.Of(now, s.loc)
	sess := &session{s: s, p: p, day: day}

	st, err := s.missions.Get(ctx, tx, p.UserID, day.String())
	switch {
	case err == nil:
		sess.state = st
	case repo.IsNotFound(err):
		sess.state = &entity.DailyState{UserID: p.UserID, Date: day.String(), CreatedAt: now, UpdatedAt: now}
		sess.isNew, sess.dirty = true, true
	default:
		return nil, fmt.Errorf("load missions: %w", err)
	}

	// the catalog may have grown since the board was created
	for _, def := range s.tables.Missions {
		if sess.state.Missions.Find(def.ID) == nil {
			sess.state.Missions = append(sess.state.Missions, entity.Status{MissionID: def.ID})
			sess.dirty = true
		}
	}

	f, err := s.gather(ctx, tx, p, day)
	if err != nil {
		return nil, err
	}
	sess.progress = make(map[string]int64, len(s.tables.Missions))
	for _, def := range s.tables.Missions {
		done, progress := evaluate(def, f)
		sess.progress[def.ID] = progress
		st := sess.state.Missions.Find(def.ID)
		if done && !st.Completed {
			st.Completed = true
			sess.dirty = true
		}
	}
	all := len(s.tables.Missions) > 0
	for _, def := range s.tables.Missions {
		if !sess.state.Missions.Find(def.ID).Completed {
			all = false
			break
		}
	}
	if all && !sess.state.AllCompleted {
		sess.state.AllCompleted = true
		sess.dirty = true
	}
	return sess, nil
}

// commit writes the board when it changed. The profile is saved as well so
// its version serializes board writers.
func (sess *session) commit(ctx context.Context, tx *sqlx.Tx) error {
	if !sess.dirty {
		return nil
	}
	now := sess.s.clock.Now().UTC()
	sess.state.UpdatedAt = now
	if sess.isNew {
		ok, err := sess.s.missions.Insert(ctx, tx, sess.state)
		if err != nil {
			return fmt.Errorf("insert missions: %w", err)
		}
		if !ok {
			return store.ErrConflict
		}
	} else if err := sess.s.missions.Update(ctx, tx, sess.state); err != nil {
		return fmt.Errorf("update missions: %w", err)
	}
	return sess.s.profiles.Save(ctx, tx, sess.p, now)
}

func (sess *session) board() Board {
	b := Board{
		Date:         sess.state.Date,
		AllCompleted: sess.state.AllCompleted,
		BonusClaimed: sess.state.BonusClaimed,
		Bonus:        sess.s.tables.AllCompleteBonus,
		Missions:     make([]MissionView, 0, len(sess.s.tables.Missions)),
	}
	for _, def := range sess.s.tables.Missions {
		st := sess.state.Missions.Find(def.ID)
		b.Missions = append(b.Missions, MissionView{
			MissionDef: def,
			Progress:   sess.progress[def.ID],
			Completed:  st.Completed,
			Claimed:    st.Claimed,
		})
	}
	return b
}
