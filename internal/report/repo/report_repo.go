package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
)

// ReportRepo provides data access for the reports table.
type ReportRepo struct{}

func NewReportRepo() *ReportRepo { return &ReportRepo{} }

const columns = `id, user_id, report_date, team_id, metrics, baseline_followers, growth_ig, growth_yt, growth_tiktok, growth_x,
	comment, energy_awarded, modify_count, created_at, updated_at`

// GetByUserDate returns the member's report for date or sql.ErrNoRows.
func (r *ReportRepo) GetByUserDate(ctx context.Context, q sqlx.ExtContext, userID, date string) (*entity.Report, error) {
	query := `SELECT ` + columns + ` FROM reports WHERE user_id = ? AND report_date = ?`
	var rep entity.Report
	if err := sqlx.GetContext(ctx, q, &rep, q.Rebind(query), userID, date); err != nil {
		return nil, err
	}
	return &rep, nil
}

// PreviousBefore returns the latest report strictly before date or sql.ErrNoRows.
func (r *ReportRepo) PreviousBefore(ctx context.Context, q sqlx.ExtContext, userID, date string) (*entity.Report, error) {
	query := `SELECT ` + columns + ` FROM reports WHERE user_id = ? AND report_date < ?
		ORDER BY report_date DESC LIMIT 1`
	var rep entity.Report
	if err := sqlx.GetContext(ctx, q, &rep, q.Rebind(query), userID, date); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Latest returns the most recent report by date or sql.ErrNoRows.
func (r *ReportRepo) Latest(ctx context.Context, q sqlx.ExtContext, userID string) (*entity.Report, error) {
	query := `SELECT ` + columns + ` FROM reports WHERE user_id = ? ORDER BY report_date DESC LIMIT 1`
	var rep entity.Report
	if err := sqlx.GetContext(ctx, q, &rep, q.Rebind(query), userID); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Insert adds rep; it reports false when the member already reported that day.
func (r *ReportRepo) Insert(ctx context.Context, q sqlx.ExtContext, rep *entity.Report) (bool, error) {
	const query = `INSERT INTO reports (id, user_id, report_date, team_id, metrics, baseline_followers,
		growth_ig, growth_yt, growth_tiktok, growth_x, comment, energy_awarded, modify_count, created_at, updated_at)
		VALUES (:id, :user_id, :report_date, :team_id, :metrics, :baseline_followers, :growth_ig, :growth_yt, :growth_tiktok, :growth_x,
		:comment, :energy_awarded, :modify_count, :created_at, :updated_at)
		ON CONFLICT (user_id, report_date) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, rep)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update writes the editable fields. Baseline, growth and energy_awarded are never rewritten.
// A missing row yields sql.ErrNoRows.
func (r *ReportRepo) Update(ctx context.Context, q sqlx.ExtContext, rep *entity.Report) error {
	const query = `UPDATE reports SET team_id = :team_id, metrics = :metrics, comment = :comment,
		modify_count = :modify_count, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, q, query, rep)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDates returns every report date of the member, newest first.
func (r *ReportRepo) ListDates(ctx context.Context, q sqlx.ExtContext, userID string) ([]string, error) {
	const query = `SELECT report_date FROM reports WHERE user_id = ? ORDER BY report_date DESC`
	var out []string
	if err := sqlx.SelectContext(ctx, q, &out, q.Rebind(query), userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRange returns reports with from <= date <= to, oldest first. Empty bounds are open.
func (r *ReportRepo) ListRange(ctx context.Context, q sqlx.ExtContext, userID, from, to string) ([]*entity.Report, error) {
	query := `SELECT ` + columns + ` FROM reports WHERE user_id = ?`
	args := []any{userID}
	if from != "" {
		query += ` AND report_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND report_date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY report_date, created_at`
	var out []*entity.Report
	if err := sqlx.SelectContext(ctx, q, &out, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// IsNotFound reports whether err means the row is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
