package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
)

// ErrVersionConflict means the row changed since it was read.
var ErrVersionConflict = errors.New("profile version conflict")

// ProfileRepo provides data access for the guardian_profiles table.
// Methods take the executor so they run inside the caller's transaction.
type ProfileRepo struct{}

func NewProfileRepo() *ProfileRepo { return &ProfileRepo{} }

type profileRow struct {
	UserID            string    `db:"user_id"`
	EnergyCurrent     int64     `db:"energy_current"`
	EnergyTotalEarned int64     `db:"energy_total_earned"`
	ActiveGuardianID  string    `db:"active_guardian_id"`
	StreakCurrent     int       `db:"streak_current"`
	StreakMax         int       `db:"streak_max"`
	Version           int64     `db:"version"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r profileRow) toEntity() *entity.Profile {
	return &entity.Profile{
		UserID:           r.UserID,
		Energy:           entity.EnergyLedger{Current: r.EnergyCurrent, TotalEarned: r.EnergyTotalEarned},
		ActiveGuardianID: r.ActiveGuardianID,
		Streak:           entity.Streak{Current: r.StreakCurrent, Max: r.StreakMax},
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromEntity(p *entity.Profile) profileRow {
	return profileRow{
		UserID:            p.UserID,
		EnergyCurrent:     p.Energy.Current,
		EnergyTotalEarned: p.Energy.TotalEarned,
		ActiveGuardianID:  p.ActiveGuardianID,
		StreakCurrent:     p.Streak.Current,
		StreakMax:         p.Streak.Max,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// Get returns the profile or sql.ErrNoRows.
func (r *ProfileRepo) Get(ctx context.Context, q sqlx.ExtContext, userID string) (*entity.Profile, error) {
	const query = `SELECT user_id, energy_current, energy_total_earned, active_guardian_id,
		streak_current, streak_max, version, created_at, updated_at
		FROM guardian_profiles WHERE user_id = ?`
	var row profileRow
	if err := sqlx.GetContext(ctx, q, &row, q.Rebind(query), userID); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// Create inserts a new profile at version 1. It reports false when the profile already exists.
func (r *ProfileRepo) Create(ctx context.Context, q sqlx.ExtContext, p *entity.Profile) (bool, error) {
	p.Version = 1
	const query = `INSERT INTO guardian_profiles (user_id, energy_current, energy_total_earned, active_guardian_id,
		streak_current, streak_max, version, created_at, updated_at)
		VALUES (:user_id, :energy_current, :energy_total_earned, :active_guardian_id,
		:streak_current, :streak_max, :version, :created_at, :updated_at)
		ON CONFLICT (user_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, fromEntity(p))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Save writes p if the stored version still equals p.Version, then bumps p.Version.
// A stale version yields ErrVersionConflict.
func (r *ProfileRepo) Save(ctx context.Context, q sqlx.ExtContext, p *entity.Profile, now time.Time) error {
	const query = `UPDATE guardian_profiles SET energy_current = ?, energy_total_earned = ?,
		active_guardian_id = ?, streak_current = ?, streak_max = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`
	res, err := q.ExecContext(ctx, q.Rebind(query),
		p.Energy.Current, p.Energy.TotalEarned, p.ActiveGuardianID,
		p.Streak.Current, p.Streak.Max, now, p.UserID, p.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// ListUserIDs pages through profile owners in id order, for batch tooling.
func (r *ProfileRepo) ListUserIDs(ctx context.Context, q sqlx.ExtContext, after string, limit int) ([]string, error) {
	const query = `SELECT user_id FROM guardian_profiles WHERE user_id > ? ORDER BY user_id LIMIT ?`
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(query), after, limit); err != nil {
		return nil, err
	}
	return ids, nil
}

// IsNotFound reports whether err means the row is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
