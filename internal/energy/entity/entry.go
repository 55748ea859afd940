package entity

import "time"

// Kind is the business reason for a ledger movement.
type Kind string

const (
	KindReport       Kind = "report"
	KindMission      Kind = "mission"
	KindMissionBonus Kind = "mission_bonus"
	KindInvestment   Kind = "investment"
	KindAdjustment   Kind = "adjustment"
)

// Entry is one journaled credit (positive amount) or debit (negative amount).
// (UserID, SourceKey) is unique, which makes credits idempotent.
type Entry struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Kind         Kind      `db:"kind" json:"kind"`
	Amount       int64     `db:"amount" json:"amount"`
	SourceKey    string    `db:"source_key" json:"source_key"`
	EntryDate    string    `db:"entry_date" json:"entry_date"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
