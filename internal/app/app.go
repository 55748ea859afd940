// Package app assembles repositories and services over one database handle.
package app

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/audit"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy"
	energyrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian"
	guardianrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/guardian/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission"
	missionrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/mission/repo"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report"
	reportrepo "github.com/ovaphlow/pitchfork/service-guardian/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/router"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
)

type Options struct {
	Tables   config.Tables
	Clock    clockwork.Clock
	Location *time.Location
	Store    store.Options
	// Locker defaults to store.NopLocker.
	Locker store.Locker
	// Notifier defaults to event.Nop.
	Notifier         event.Notifier
	AuditParallelism int
}

type App struct {
	DB        *sqlx.DB
	Runner    *store.Runner
	Reports   *report.Service
	Guardians *guardian.Service
	Missions  *mission.Service
	Energy    *energy.Service
	Audit     *audit.Service
}

func New(db *sqlx.DB, opts Options, logger *zap.SugaredLogger) *App {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Notifier == nil {
		opts.Notifier = event.Nop{}
	}

	runner := store.NewRunner(db, opts.Locker, opts.Store, logger)
	profiles := profilerepo.NewProfileRepo()
	entries := energyrepo.NewEntryRepo()
	reports := reportrepo.NewReportRepo()
	ledger := energy.NewLedger(entries, opts.Clock)

	a := &App{DB: db, Runner: runner}
	a.Energy = energy.NewService(runner, profiles, entries, ledger, opts.Clock, opts.Location, opts.Notifier, logger)
	a.Reports = report.NewService(runner, profiles, reports, ledger, opts.Tables, opts.Clock, opts.Location,
		opts.Notifier, logger)
	a.Guardians = guardian.NewService(runner, profiles, guardianrepo.NewGuardianRepo(), ledger, opts.Tables,
		opts.Clock, opts.Location, opts.Notifier, logger)
	a.Missions = mission.NewService(runner, profiles, missionrepo.NewMissionRepo(), reports, entries, ledger,
		opts.Tables, opts.Clock, opts.Location, opts.Notifier, logger)
	a.Audit = audit.NewService(db, profiles, reports, entries, a.Guardians, opts.Tables.Audit, opts.Clock,
		opts.Location, opts.AuditParallelism, logger)
	return a
}

// Handler returns the HTTP API over the app's services.
func (a *App) Handler(tokens *auth.Tokens, logger *zap.SugaredLogger) http.Handler {
	return router.RegisterRoutes(logger, router.Deps{
		Tokens:    tokens,
		DB:        a.DB,
		Reports:   report.NewHandler(a.Reports, logger),
		Guardians: guardian.NewHandler(a.Guardians, logger),
		Missions:  mission.NewHandler(a.Missions, logger),
		Energy:    energy.NewHandler(a.Energy, logger),
		Audit:     audit.NewHandler(a.Audit, logger),
	})
}
