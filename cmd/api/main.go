package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/app"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/event"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
	"github.com/ovaphlow/pitchfork/service-guardian/pkg/database"
	"github.com/ovaphlow/pitchfork/service-guardian/pkg/utilities"
)

func main() {
	// config.Load reads .env best-effort before parsing the environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()
	sugar.Info("starting service-guardian")

	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("service stopped with error", "err", err)
		_ = lg.Sync()
		os.Exit(1)
	}
	sugar.Info("goodbye")
}

func run(cfg config.App, sugar *zap.SugaredLogger) error {
	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := clockwork.NewRealClock()
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, clock)
	if err != nil {
		return fmt.Errorf("GUARDIAN_JWT_SECRET: %w", err)
	}

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}

	bus := event.NewBus(sugar)
	bus.Subscribe(func(_ context.Context, e event.Event) {
		sugar.Debugw("event", "type", e.Type, "user_id", e.UserID)
	})
	opts := app.Options{
		Tables:   tables,
		Clock:    clock,
		Location: loc,
		Store: store.Options{
			Timeout:     cfg.StoreTimeout,
			MaxAttempts: cfg.MaxTxAttempts,
		},
		Notifier:         bus,
		AuditParallelism: cfg.AuditParallelism,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// the database alone is enough to stay correct
			sugar.Warnw("redis unreachable; running without lock and event push", "addr", cfg.RedisAddr, "err", err)
		} else {
			queue := event.NewQueue(event.NewRedisPublisher(rdb, cfg.EventsChannel, sugar), 256, sugar)
			defer queue.Close()
			opts.Locker = store.NewRedisLocker(rdb, cfg.StoreTimeout+time.Second)
			opts.Notifier = event.Multi{bus, queue}
			sugar.Infow("redis enabled", "addr", cfg.RedisAddr, "channel", cfg.EventsChannel)
		}
	}

	a := app.New(db, opts, sugar)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Handler(tokens, sugar),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	return nil
}
