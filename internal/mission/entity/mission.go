package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is one mission's progress for the day.
type Status struct {
	MissionID string `json:"mission_id"`
	Completed bool   `json:"completed"`
	Claimed   bool   `json:"claimed"`
}

// Statuses is stored as a JSON array column.
type Statuses []Status

func (s Statuses) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Statuses) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*s = Statuses{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("mission statuses: unsupported type %T", src)
	}
	var out Statuses
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("mission statuses: %w", err)
	}
	*s = out
	return nil
}

// Find returns the status for missionID or nil.
func (s Statuses) Find(missionID string) *Status {
	for i := range s {
		if s[i].MissionID == missionID {
			return &s[i]
		}
	}
	return nil
}

// DailyState is a member's mission board for one day.
type DailyState struct {
	UserID       string    `db:"user_id" json:"-"`
	Date         string    `db:"mission_date" json:"date"`
	Missions     Statuses  `db:"missions" json:"missions"`
	AllCompleted bool      `db:"all_completed" json:"all_completed"`
	BonusClaimed bool      `db:"bonus_claimed" json:"bonus_claimed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
