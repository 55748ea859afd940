// Package testutil provides in-memory databases and runners for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
)

// NewDB opens a private in-memory sqlite database with the schema applied.
// The pool is pinned to one connection so the memory database survives and
// transactions serialize the way a single sqlite writer would.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := store.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

// NewRunner wraps db in a runner with short timeouts suitable for tests.
func NewRunner(t testing.TB, db *sqlx.DB) *store.Runner {
	t.Helper()
	return store.NewRunner(db, nil, store.Options{
		Timeout:        5 * time.Second,
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	}, zap.NewNop().Sugar())
}

// Epoch is the default fake-clock start used across package tests.
var Epoch = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

// SeedProfile inserts an empty profile for userID, as approval would.
func SeedProfile(t testing.TB, db *sqlx.DB, userID string) {
	t.Helper()
	p := &entity.Profile{UserID: userID, CreatedAt: Epoch, UpdatedAt: Epoch}
	if _, err := profilerepo.NewProfileRepo().Create(context.Background(), db, p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}
