package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/audit"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	energyrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
	reportrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/testutil"
)

type fixedStage int

func (s fixedStage) ActiveStage(context.Context, sqlx.ExtContext, *profile.Profile) (int, error) {
	return int(s), nil
}

func newService(t *testing.T, db *sqlx.DB) *audit.Service {
	t.Helper()
	return audit.NewService(db, profilerepo.NewProfileRepo(), reportrepo.NewReportRepo(), energyrepo.NewEntryRepo(),
		fixedStage(0), config.DefaultTables().Audit, clockwork.NewFakeClockAt(testutil.Epoch), time.UTC, 2,
		zap.NewNop().Sugar())
}

func insertReport(t *testing.T, db *sqlx.DB, userID, date string) {
	t.Helper()
	ok, err := reportrepo.NewReportRepo().Insert(context.Background(), db, &entity.Report{
		ID: userID + "-" + date, UserID: userID, Date: date, TeamID: "team-a",
		CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuditUserReadsPersistedReports(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedProfile(t, db, "u1")
	insertReport(t, db, "u1", "2024-01-04")
	insertReport(t, db, "u1", "2024-01-05")

	r, err := newService(t, db).AuditUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, 2, r.ReportCount)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, audit.IssueZeroActivity, r.Issues[0].Type)
	assert.Equal(t, []string{"2024-01-04", "2024-01-05"}, r.Issues[0].Dates)
}

func TestAuditUserWithoutProfile(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := newService(t, db).AuditUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAuditUsersKeepsOrder(t *testing.T) {
	db := testutil.NewDB(t)
	ids := []string{"u3", "u1", "u2"}
	for _, id := range ids {
		testutil.SeedProfile(t, db, id)
	}
	insertReport(t, db, "u2", "2024-01-05")

	out, err := newService(t, db).AuditUsers(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, id := range ids {
		assert.Equal(t, id, out[i].UserID)
	}
	assert.Equal(t, 1, out[2].ReportCount)

	_, err = newService(t, db).AuditUsers(context.Background(), []string{"u1", "ghost"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAuditAllPages(t *testing.T) {
	db := testutil.NewDB(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		testutil.SeedProfile(t, db, id)
	}
	var seen []string
	pages := 0
	err := newService(t, db).AuditAll(context.Background(), 2, func(page []audit.Report) error {
		pages++
		for _, r := range page {
			seen = append(seen, r.UserID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
	assert.Equal(t, 3, pages)
}
