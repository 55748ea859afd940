package report_test

import (
	"context"
	"sync"
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
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/streak"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/testutil"
)

type fixture struct {
	svc    *report.Service
	energy *energy.Service
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedProfile(t, db, "u1")
	clock := clockwork.NewFakeClockAt(testutil.Epoch)
	runner := testutil.NewRunner(t, db)
	profiles := profilerepo.NewProfileRepo()
	entries := energyrepo.NewEntryRepo()
	ledger := energy.NewLedger(entries, clock)
	logger := zap.NewNop().Sugar()
	return &fixture{
		svc: report.NewService(runner, profiles, repo.NewReportRepo(), ledger, config.DefaultTables(),
			clock, time.UTC, event.Nop{}, logger),
		energy: energy.NewService(runner, profiles, entries, ledger, clock, time.UTC, event.Nop{}, logger),
		clock:  clock,
	}
}

func input(date string, followers int64) report.Input {
	return report.Input{
		Date:    date,
		TeamID:  "team-a",
		Metrics: entity.Metrics{entity.Instagram: {Followers: followers, Posts: 1, Views: 100}},
	}
}

func TestFirstSubmissionCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-05", 1000))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(16), res.Awarded)
	assert.Equal(t, int64(16), res.Energy.TotalEarned)
	assert.Equal(t, 0, res.Report.ModifyCount)

	edited, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-05", 5000))
	require.NoError(t, err)
	assert.False(t, edited.Created)
	assert.Zero(t, edited.Awarded)
	assert.Equal(t, 1, edited.Report.ModifyCount)
	assert.Equal(t, int64(16), edited.Energy.TotalEarned)
}

func TestModifyCapAndNewDayReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 10))
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		res, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 10))
		require.NoError(t, err)
		assert.Equal(t, i, res.Report.ModifyCount)
	}
	_, err = f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 10))
	require.ErrorIs(t, err, apperr.ErrModifyLimitExceeded)

	stored, err := f.svc.Get(ctx, "u1", "2024-01-04")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ModifyCount)

	next, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-05", 10))
	require.NoError(t, err)
	assert.Equal(t, 0, next.Report.ModifyCount)
}

func TestFollowerGrowthIsClampedAndKeptOnEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-02", 1000))
	require.NoError(t, err)
	assert.Equal(t, entity.Growth{}, first.Report.Growth)

	drop, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-03", 900))
	require.NoError(t, err)
	assert.Equal(t, int64(0), drop.Report.IG)

	rise, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(100), rise.Report.IG)

	edited, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 9000))
	require.NoError(t, err)
	assert.Equal(t, int64(100), edited.Report.IG)
	assert.Equal(t, rise.Energy.TotalEarned, edited.Energy.TotalEarned)
}

func TestEditedFollowersKeepTheNextBaseline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 1000))
	require.NoError(t, err)
	_, err = f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 0))
	require.NoError(t, err)
	stored, err := f.svc.Get(ctx, "u1", "2024-01-04")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Metrics[entity.Instagram].Followers)

	next, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-05", 1000))
	require.NoError(t, err)
	assert.Equal(t, entity.Growth{}, next.Report.Growth)
	assert.Equal(t, int64(16), next.Awarded)
}

func TestBackfillCannotRecountGrowth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-03", 1000))
	require.NoError(t, err)
	today, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-05", 1400))
	require.NoError(t, err)
	assert.Equal(t, int64(400), today.Report.IG)

	_, err = f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-04", 1400))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Get(ctx, "u1", "2024-01-04")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	bal, err := f.energy.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(16+416), bal.TotalEarned)
}

func TestNewReportMustBeRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []string{"1990-01-01", "2000-06-01", "2023-12-28"} {
		_, err := f.svc.SubmitOrUpdate(ctx, "u1", input(d, 1))
		assert.ErrorIs(t, err, apperr.ErrValidation, d)
	}
	res, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2023-12-29", 1))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(16), res.Energy.TotalEarned)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input("2024-01-05", 1)
	in.TeamID = ""
	_, err := f.svc.SubmitOrUpdate(ctx, "u1", in)
	require.ErrorIs(t, err, apperr.ErrMissingTeam)

	cases := map[string]report.Input{
		"bad date":         input("05/01/2024", 1),
		"future date":      input("2024-01-06", 1),
		"negative metric":  input("2024-01-05", -1),
		"unknown platform": {Date: "2024-01-05", TeamID: "t", Metrics: entity.Metrics{"myspace": {}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SubmitOrUpdate(ctx, "u1", in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.NotErrorIs(t, err, apperr.ErrMissingTeam)
		})
	}

	_, err = f.svc.SubmitOrUpdate(ctx, "stranger", input("2024-01-05", 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentFirstSubmissionsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.SubmitOrUpdate(ctx, "u1", input("2024-01-05", 1000))
			if !assert.NoError(t, err) {
				return
			}
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	bal, err := f.energy.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(16), bal.TotalEarned)
	stored, err := f.svc.Get(ctx, "u1", "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ModifyCount)
}

func TestStreakFollowsReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []string{"2024-01-03", "2024-01-04", "2024-01-05"} {
		_, err := f.svc.SubmitOrUpdate(ctx, "u1", input(d, 1))
		require.NoError(t, err)
	}
	st, err := f.svc.Streak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Current)
	assert.Equal(t, 3, st.Max)
	assert.Equal(t, streak.WarningNone, st.Warning)

	f.clock.Advance(21 * time.Hour)
	st, err = f.svc.Streak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.WarningWarning, st.Warning)

	// two days without a report breaks the run
	f.clock.Advance(48 * time.Hour)
	st, err = f.svc.Streak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, 3, st.Max)
}

func TestListRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []string{"2024-01-01", "2024-01-03", "2024-01-05"} {
		_, err := f.svc.SubmitOrUpdate(ctx, "u1", input(d, 1))
		require.NoError(t, err)
	}

	out, err := f.svc.List(ctx, "u1", "2024-01-02", "")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2024-01-03", out[0].Date)

	_, err = f.svc.List(ctx, "u1", "yesterday", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	latest, err := f.svc.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", latest.Date)
}

func TestLatestWithoutReports(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Latest(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
