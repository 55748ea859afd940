package mission_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy"
	energyrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian"
	guardianrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/guardian/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission/repo"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
	reportrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/testutil"
)

type fixture struct {
	missions  *mission.Service
	reports   *report.Service
	guardians *guardian.Service
	energy    *energy.Service
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := clockwork.NewFakeClockAt(testutil.Epoch)
	runner := testutil.NewRunner(t, db)
	profiles := profilerepo.NewProfileRepo()
	entries := energyrepo.NewEntryRepo()
	reports := reportrepo.NewReportRepo()
	ledger := energy.NewLedger(entries, clock)
	tables := config.DefaultTables()
	logger := zap.NewNop().Sugar()

	f := &fixture{
		missions: mission.NewService(runner, profiles, repo.NewMissionRepo(), reports, entries, ledger, tables,
			clock, time.UTC, event.Nop{}, logger),
		reports:   report.NewService(runner, profiles, reports, ledger, tables, clock, time.UTC, event.Nop{}, logger),
		guardians: guardian.NewService(runner, profiles, guardianrepo.NewGuardianRepo(), ledger, tables, clock, time.UTC, event.Nop{}, logger),
		energy:    energy.NewService(runner, profiles, entries, ledger, clock, time.UTC, event.Nop{}, logger),
		clock:     clock,
	}
	_, err := f.guardians.Approve(context.Background(), "u1")
	require.NoError(t, err)
	return f
}

func (f *fixture) submit(t *testing.T, date string, views int64) {
	t.Helper()
	_, err := f.reports.SubmitOrUpdate(context.Background(), "u1", report.Input{
		Date: date, TeamID: "team-a",
		Metrics: entity.Metrics{entity.YouTube: {Followers: 10, Views: views}},
	})
	require.NoError(t, err)
}

func find(b mission.Board, id string) mission.MissionView {
	for _, m := range b.Missions {
		if m.ID == id {
			return m
		}
	}
	return mission.MissionView{}
}

func TestTodayStartsEmpty(t *testing.T) {
	f := newFixture(t)
	b, err := f.missions.Today(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-05", b.Date)
	assert.Len(t, b.Missions, 4)
	assert.False(t, b.AllCompleted)
	for _, m := range b.Missions {
		assert.False(t, m.Completed, m.ID)
	}
}

func TestClaimOnlyOnceAndOnlyWhenCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.missions.Claim(ctx, "u1", "daily_report")
	require.ErrorIs(t, err, apperr.ErrNotCompleted)

	f.submit(t, "2024-01-05", 10)
	res, err := f.missions.Claim(ctx, "u1", "daily_report")
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Reward)

	before, err := f.energy.Balance(ctx, "u1")
	require.NoError(t, err)
	_, err = f.missions.Claim(ctx, "u1", "daily_report")
	require.ErrorIs(t, err, apperr.ErrAlreadyClaimed)
	after, err := f.energy.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.missions.Claim(ctx, "u1", "moonwalk")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClaimReportsZeroWhenRewardWasAlreadyCredited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.energy.Credit(ctx, "u1", 20, mission.RewardKey("2024-01-05", "daily_report"))
	require.NoError(t, err)
	f.submit(t, "2024-01-05", 10)
	before, err := f.energy.Balance(ctx, "u1")
	require.NoError(t, err)

	res, err := f.missions.Claim(ctx, "u1", "daily_report")
	require.NoError(t, err)
	assert.Zero(t, res.Reward)
	assert.Equal(t, before, res.Energy)

	b, err := f.missions.Today(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, find(b, "daily_report").Claimed)
}

func TestAllCompletedBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "2024-01-03", 0)
	f.submit(t, "2024-01-04", 0)
	f.submit(t, "2024-01-05", 1500)

	_, err := f.missions.ClaimAllBonus(ctx, "u1")
	require.ErrorIs(t, err, apperr.ErrNotCompleted)

	_, err = f.guardians.Invest(ctx, "u1", "ember", 5)
	require.NoError(t, err)

	b, err := f.missions.Today(ctx, "u1")
	require.NoError(t, err)
	require.True(t, b.AllCompleted)
	assert.Equal(t, int64(3), find(b, "streak_3").Progress)
	assert.Equal(t, int64(1500), find(b, "views_1000").Progress)

	res, err := f.missions.ClaimAllBonus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Reward)
	_, err = f.missions.ClaimAllBonus(ctx, "u1")
	require.ErrorIs(t, err, apperr.ErrAlreadyClaimed)
}

func TestCompletionIsLatchedForTheDayAndResetsTomorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "2024-01-05", 10)
	b, err := f.missions.Today(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, find(b, "daily_report").Completed)

	f.clock.Advance(24 * time.Hour)
	b, err = f.missions.Today(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", b.Date)
	assert.False(t, find(b, "daily_report").Completed)
	assert.False(t, find(b, "daily_report").Claimed)
}
