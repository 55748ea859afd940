package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MemoryKind string

const (
	MemoryUnlocked MemoryKind = "unlocked"
	MemoryEvolved  MemoryKind = "evolved"
)

// Memory is one entry of a guardian's append-only history.
type Memory struct {
	Kind      MemoryKind `json:"kind"`
	At        time.Time  `json:"at"`
	FromStage int        `json:"from_stage"`
	ToStage   int        `json:"to_stage,omitempty"`
	Invested  int64      `json:"invested,omitempty"`
}

// Memories is stored as a JSON array column.
type Memories []Memory

func (m Memories) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Memories) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Memories{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("memories: unsupported type %T", src)
	}
	var out Memories
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("memories: %w", err)
	}
	*m = out
	return nil
}

// Guardian is a member's instance of a catalog guardian.
type Guardian struct {
	UserID         string    `db:"user_id" json:"-"`
	GuardianID     string    `db:"guardian_id" json:"guardian_id"`
	Unlocked       bool      `db:"unlocked" json:"unlocked"`
	Stage          int       `db:"stage" json:"stage"`
	InvestedEnergy int64     `db:"invested_energy" json:"invested_energy"`
	Memories       Memories  `db:"memories" json:"memories"`
	Memo           string    `db:"memo" json:"memo,omitempty"`
	UnlockedAt     time.Time `db:"unlocked_at" json:"unlocked_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
