package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission/entity"
)

// MissionRepo provides data access for the daily_missions table.
type MissionRepo struct{}

func NewMissionRepo() *MissionRepo { return &MissionRepo{} }

// Get returns the member's board for date or sql.ErrNoRows.
func (r *MissionRepo) Get(ctx context.Context, q sqlx.ExtContext, userID, date string) (*entity.DailyState, error) {
	const query = `SELECT user_id, mission_date, missions, all_completed, bonus_claimed, created_at, updated_at
		FROM daily_missions WHERE user_id = ? AND mission_date = ?`
	var st entity.DailyState
	if err := sqlx.GetContext(ctx, q, &st, q.Rebind(query), userID, date); err != nil {
		return nil, err
	}
	return &st, nil
}

// Insert adds st; it reports false when the board already exists.
func (r *MissionRepo) Insert(ctx context.Context, q sqlx.ExtContext, st *entity.DailyState) (bool, error) {
	const query = `INSERT INTO daily_missions (user_id, mission_date, missions, all_completed, bonus_claimed, created_at, updated_at)
		VALUES (:user_id, :mission_date, :missions, :all_completed, :bonus_claimed, :created_at, :updated_at)
		ON CONFLICT (user_id, mission_date) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, st)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *MissionRepo) Update(ctx context.Context, q sqlx.ExtContext, st *entity.DailyState) error {
	const query = `UPDATE daily_missions SET missions = :missions, all_completed = :all_completed,
		bonus_claimed = :bonus_claimed, updated_at = :updated_at
		WHERE user_id = :user_id AND mission_date = :mission_date`
	_, err := sqlx.NamedExecContext(ctx, q, query, st)
	return err
}

// IsNotFound reports whether err means the row is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
