package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian/entity"
)

// GuardianRepo provides data access for the guardians table. Writers must
// also save the owning profile so the profile version guards the change.
type GuardianRepo struct{}

func NewGuardianRepo() *GuardianRepo { return &GuardianRepo{} }

const columns = `user_id, guardian_id, unlocked, stage, invested_energy, memories, memo, unlocked_at, updated_at`

// Get returns the guardian or sql.ErrNoRows.
func (r *GuardianRepo) Get(ctx context.Context, q sqlx.ExtContext, userID, guardianID string) (*entity.Guardian, error) {
	query := `SELECT ` + columns + ` FROM guardians WHERE user_id = ? AND guardian_id = ?`
	var g entity.Guardian
	if err := sqlx.GetContext(ctx, q, &g, q.Rebind(query), userID, guardianID); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuardianRepo) ListByUser(ctx context.Context, q sqlx.ExtContext, userID string) ([]*entity.Guardian, error) {
	query := `SELECT ` + columns + ` FROM guardians WHERE user_id = ? ORDER BY unlocked_at, guardian_id`
	var out []*entity.Guardian
	if err := sqlx.SelectContext(ctx, q, &out, q.Rebind(query), userID); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert adds g; it reports false when the member already has that guardian.
func (r *GuardianRepo) Insert(ctx context.Context, q sqlx.ExtContext, g *entity.Guardian) (bool, error) {
	const query = `INSERT INTO guardians (user_id, guardian_id, unlocked, stage, invested_energy, memories, memo, unlocked_at, updated_at)
		VALUES (:user_id, :guardian_id, :unlocked, :stage, :invested_energy, :memories, :memo, :unlocked_at, :updated_at)
		ON CONFLICT (user_id, guardian_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, g)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update writes the mutable fields of g.
func (r *GuardianRepo) Update(ctx context.Context, q sqlx.ExtContext, g *entity.Guardian) error {
	const query = `UPDATE guardians SET unlocked = :unlocked, stage = :stage, invested_energy = :invested_energy,
		memories = :memories, memo = :memo, updated_at = :updated_at
		WHERE user_id = :user_id AND guardian_id = :guardian_id`
	_, err := sqlx.NamedExecContext(ctx, q, query, g)
	return err
}

// IsNotFound reports whether err means the row is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
