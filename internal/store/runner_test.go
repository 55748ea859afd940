package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/testutil"
)

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, store.EnsureSchema(context.Background(), db))
}

func TestInUserTxCommits(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	profiles := profilerepo.NewProfileRepo()
	ctx := context.Background()

	err := runner.InUserTx(ctx, "u1", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := profiles.Create(ctx, tx, &entity.Profile{UserID: "u1", CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch})
		return err
	})
	require.NoError(t, err)

	p, err := profiles.Get(ctx, db, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)
}

func TestInUserTxRollsBackOnError(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	profiles := profilerepo.NewProfileRepo()
	ctx := context.Background()
	boom := errors.New("boom")

	err := runner.InUserTx(ctx, "u1", func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := profiles.Create(ctx, tx, &entity.Profile{UserID: "u1", CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = profiles.Get(ctx, db, "u1")
	assert.True(t, profilerepo.IsNotFound(err), "expected no row after rollback, got %v", err)
}

func TestInUserTxRetriesConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	var calls int32

	err := runner.InUserTx(context.Background(), "u1", func(ctx context.Context, tx *sqlx.Tx) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return fmt.Errorf("save: %w", profilerepo.ErrVersionConflict)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestInUserTxSurfacesExhaustedConflict(t *testing.T) {
	db := testutil.NewDB(t)
	runner := store.NewRunner(db, nil, store.Options{MaxAttempts: 3, InitialBackoff: time.Millisecond}, zap.NewNop().Sugar())
	var calls int32

	err := runner.InUserTx(context.Background(), "u1", func(ctx context.Context, tx *sqlx.Tx) error {
		atomic.AddInt32(&calls, 1)
		return store.ErrConflict
	})
	require.ErrorIs(t, err, apperr.ErrConcurrencyConflict)
	assert.Equal(t, int32(3), calls)
}

func TestInUserTxDoesNotRetryBusinessErrors(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	var calls int32

	err := runner.InUserTx(context.Background(), "u1", func(ctx context.Context, tx *sqlx.Tx) error {
		atomic.AddInt32(&calls, 1)
		return apperr.ErrInsufficientEnergy
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientEnergy)
	assert.Equal(t, int32(1), calls)
}

func TestInUserTxTimeoutLeavesNoPartialState(t *testing.T) {
	db := testutil.NewDB(t)
	runner := store.NewRunner(db, nil, store.Options{Timeout: 50 * time.Millisecond}, zap.NewNop().Sugar())
	profiles := profilerepo.NewProfileRepo()

	err := runner.InUserTx(context.Background(), "u1", func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := profiles.Create(ctx, tx, &entity.Profile{UserID: "u1", CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, apperr.ErrTimeout)

	_, err = profiles.Get(context.Background(), db, "u1")
	assert.True(t, profilerepo.IsNotFound(err), "expected rollback on timeout, got %v", err)
}
