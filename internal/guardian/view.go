package guardian

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/level"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
)

type GuardianView struct {
	*entity.Guardian
	Name      string  `json:"name"`
	Attribute string  `json:"attribute"`
	Display   Display `json:"display"`
}

// ProfileView is the read model served to the member's home screen.
type ProfileView struct {
	UserID           string               `json:"user_id"`
	Energy           profile.EnergyLedger `json:"energy"`
	ActiveGuardianID string               `json:"active_guardian_id"`
	Guardians        []GuardianView       `json:"guardians"`
	Streak           profile.Streak       `json:"streak"`
	Level            level.Level          `json:"level"`
	Progress         level.Progress       `json:"progress"`
	Version          int64                `json:"version"`
}

func (s *Service) Profile(ctx context.Context, userID string) (ProfileView, error) {
	db := s.runner.DB()
	p, err := s.loadProfile(ctx, db, userID)
	if err != nil {
		return ProfileView{}, err
	}
	gs, err := s.guardians.ListByUser(ctx, db, userID)
	if err != nil {
		return ProfileView{}, fmt.Errorf("list guardians: %w", err)
	}
	views := make([]GuardianView, 0, len(gs))
	for _, g := range gs {
		views = append(views, s.view(g))
	}
	return ProfileView{
		UserID:           p.UserID,
		Energy:           p.Energy,
		ActiveGuardianID: p.ActiveGuardianID,
		Guardians:        views,
		Streak:           p.Streak,
		Level:            level.Of(s.tables.Levels, p.Energy.TotalEarned),
		Progress:         level.ProgressOf(s.tables.Levels, p.Energy.TotalEarned),
		Version:          p.Version,
	}, nil
}

func (s *Service) view(g *entity.Guardian) GuardianView {
	def, _ := s.tables.Guardian(g.GuardianID)
	return GuardianView{
		Guardian:  g,
		Name:      def.Name,
		Attribute: def.Attribute,
		Display:   DisplayOf(g.InvestedEnergy, g.Stage, s.tables.EvolutionThresholds),
	}
}
