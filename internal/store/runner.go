// Package store runs per-member read-modify-write transactions and owns the schema.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
)

// ErrConflict marks an attempt that lost a race; the runner retries it.
// Repositories may wrap it (the profile version check does via IsConflict).
var ErrConflict = errors.New("transaction conflict")

// IsConflict reports whether err is retryable.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, profilerepo.ErrVersionConflict)
}

// TxFunc is one attempt of a transactional operation. It may run more than once
// and must not have effects outside tx.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

type Options struct {
	// Timeout bounds each call, retries included.
	Timeout     time.Duration
	MaxAttempts uint
	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration
}

// Runner executes TxFuncs for one member at a time.
type Runner struct {
	db     *sqlx.DB
	locker Locker
	opts   Options
	logger *zap.SugaredLogger
}

func NewRunner(db *sqlx.DB, locker Locker, opts Options, logger *zap.SugaredLogger) *Runner {
	if locker == nil {
		locker = NopLocker{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 10 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{db: db, locker: locker, opts: opts, logger: logger}
}

// DB exposes the handle for read-only queries outside a transaction.
func (r *Runner) DB() *sqlx.DB { return r.db }

// InUserTx runs fn in a transaction on behalf of userID. Conflicts are retried
// with exponential backoff; running out of attempts yields ErrConcurrencyConflict
// and running out of time yields ErrTimeout. Either way nothing is committed.
func (r *Runner) InUserTx(ctx context.Context, userID string, fn TxFunc) error {
	ctx, span := otel.Tracer("service-guardian/store").Start(ctx, "store.InUserTx")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	unlock, err := r.locker.Lock(ctx, userID)
	if err != nil {
		// the version check still protects the row; the lock only reduces contention
		r.logger.Warnw("user lock not obtained; proceeding without lock", "user_id", userID, "err", err)
		unlock = func() {}
	}
	defer unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = 20 * r.opts.InitialBackoff

	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := r.attempt(ctx, fn)
		if err == nil || IsConflict(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.opts.MaxAttempts))
	span.SetAttributes(attribute.Int("tx.attempts", attempts))

	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case IsConflict(err):
		r.logger.Warnw("transaction retries exhausted", "user_id", userID, "attempts", attempts)
		return apperr.ErrConcurrencyConflict
	case errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)):
		r.logger.Warnw("transaction timed out", "user_id", userID, "attempts", attempts)
		return apperr.ErrTimeout
	}
	return err
}

func (r *Runner) attempt(ctx context.Context, fn TxFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
