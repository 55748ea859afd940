package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
)

// EntryRepo provides data access for the energy_entries journal.
type EntryRepo struct{}

func NewEntryRepo() *EntryRepo { return &EntryRepo{} }

// Insert appends e unless (user_id, source_key) is already present.
// It reports whether a row was written.
func (r *EntryRepo) Insert(ctx context.Context, q sqlx.ExtContext, e *entity.Entry) (bool, error) {
	const query = `INSERT INTO energy_entries (id, user_id, kind, amount, source_key, entry_date, balance_after, created_at)
		VALUES (:id, :user_id, :kind, :amount, :source_key, :entry_date, :balance_after, :created_at)
		ON CONFLICT (user_id, source_key) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, e)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Exists reports whether sourceKey was already applied for userID.
func (r *EntryRepo) Exists(ctx context.Context, q sqlx.ExtContext, userID, sourceKey string) (bool, error) {
	const query = `SELECT COUNT(1) FROM energy_entries WHERE user_id = ? AND source_key = ?`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), userID, sourceKey); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountKindOnDate counts entries of kind booked on day.
func (r *EntryRepo) CountKindOnDate(ctx context.Context, q sqlx.ExtContext, userID string, kind entity.Kind, day string) (int, error) {
	const query = `SELECT COUNT(1) FROM energy_entries WHERE user_id = ? AND kind = ? AND entry_date = ?`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), userID, kind, day); err != nil {
		return 0, err
	}
	return n, nil
}

// SumKindSince totals amounts of kind booked on or after day.
func (r *EntryRepo) SumKindSince(ctx context.Context, q sqlx.ExtContext, userID string, kind entity.Kind, day string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM energy_entries WHERE user_id = ? AND kind = ? AND entry_date >= ?`
	var n int64
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), userID, kind, day); err != nil {
		return 0, err
	}
	return n, nil
}

// List returns the newest entries first.
func (r *EntryRepo) List(ctx context.Context, q sqlx.ExtContext, userID string, limit, offset int) ([]*entity.Entry, error) {
	const query = `SELECT id, user_id, kind, amount, source_key, entry_date, balance_after, created_at
		FROM energy_entries WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	var out []*entity.Entry
	if err := sqlx.SelectContext(ctx, q, &out, q.Rebind(query), userID, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}
