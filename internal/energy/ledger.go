// Package energy keeps each member's spendable and cumulative energy.
package energy

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/calendar"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy/repo"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/pkg/utilities"
)

// Ledger applies credits and debits to a loaded profile inside the caller's
// transaction. The caller saves the profile; the journal row and the profile
// update commit or roll back together.
type Ledger struct {
	entries *repo.EntryRepo
	clock   clockwork.Clock
}

func NewLedger(entries *repo.EntryRepo, clock clockwork.Clock) *Ledger {
	return &Ledger{entries: entries, clock: clock}
}

// Credit adds amount to p unless sourceKey was already applied, in which case
// p is left untouched and applied is false.
func (l *Ledger) Credit(ctx context.Context, tx sqlx.ExtContext, p *profile.Profile, amount int64, kind entity.Kind, sourceKey string, day calendar.Day) (applied bool, err error) {
	if amount < 0 {
		return false, apperr.Validation("amount", "credit amount must not be negative")
	}
	if sourceKey == "" {
		return false, apperr.Validation("source_key", "credit source key is required")
	}
	e := &entity.Entry{
		ID:           utilities.NewKSUID(),
		UserID:       p.UserID,
		Kind:         kind,
		Amount:       amount,
		SourceKey:    sourceKey,
		EntryDate:    day.String(),
		BalanceAfter: p.Energy.Current + amount,
		CreatedAt:    l.clock.Now().UTC(),
	}
	inserted, err := l.entries.Insert(ctx, tx, e)
	if err != nil {
		return false, fmt.Errorf("insert credit entry: %w", err)
	}
	if !inserted {
		return false, nil
	}
	p.Energy.Current += amount
	p.Energy.TotalEarned += amount
	return true, nil
}

// Debit removes amount from the spendable balance; TotalEarned is untouched.
func (l *Ledger) Debit(ctx context.Context, tx sqlx.ExtContext, p *profile.Profile, amount int64, kind entity.Kind, day calendar.Day) error {
	if amount <= 0 {
		return apperr.Validation("amount", "debit amount must be positive")
	}
	if amount > p.Energy.Current {
		return apperr.ErrInsufficientEnergy
	}
	id := utilities.NewKSUID()
	e := &entity.Entry{
		ID:           id,
		UserID:       p.UserID,
		Kind:         kind,
		Amount:       -amount,
		SourceKey:    "debit:" + id,
		EntryDate:    day.String(),
		BalanceAfter: p.Energy.Current - amount,
		CreatedAt:    l.clock.Now().UTC(),
	}
	if _, err := l.entries.Insert(ctx, tx, e); err != nil {
		return fmt.Errorf("insert debit entry: %w", err)
	}
	p.Energy.Current -= amount
	return nil
}
