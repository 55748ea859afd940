package entity

import "time"

// EnergyLedger is the spendable and cumulative energy of one member.
// Current never goes below zero; TotalEarned never decreases.
type EnergyLedger struct {
	Current     int64 `json:"current"`
	TotalEarned int64 `json:"total_earned"`
}

type Streak struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Profile is the per-member row every ledger and evolution mutation goes through.
// Version is bumped on each save and guards concurrent read-modify-write.
type Profile struct {
	UserID           string       `json:"user_id"`
	Energy           EnergyLedger `json:"energy"`
	ActiveGuardianID string       `json:"active_guardian_id"`
	Streak           Streak       `json:"streak"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
