package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Platform string

const (
	Instagram Platform = "ig"
	YouTube   Platform = "yt"
	TikTok    Platform = "tiktok"
	X         Platform = "x"
)

// Platforms lists the supported platforms in display order.
var Platforms = []Platform{Instagram, YouTube, TikTok, X}

func (p Platform) Valid() bool {
	switch p {
	case Instagram, YouTube, TikTok, X:
		return true
	}
	return false
}

// PlatformMetrics are the raw numbers a member reads off one platform.
type PlatformMetrics struct {
	Followers int64 `json:"followers" validate:"gte=0"`
	Posts     int64 `json:"posts" validate:"gte=0"`
	Views     int64 `json:"views" validate:"gte=0"`
	Likes     int64 `json:"likes" validate:"gte=0"`
}

func (m PlatformMetrics) IsZero() bool { return m == PlatformMetrics{} }

// Metrics is stored as a JSON object column keyed by platform.
type Metrics map[Platform]PlatformMetrics

func (m Metrics) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metrics) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Metrics{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("metrics: unsupported type %T", src)
	}
	out := Metrics{}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	*m = out
	return nil
}

func (m Metrics) TotalViews() int64 {
	var n int64
	for _, pm := range m {
		n += pm.Views
	}
	return n
}

func (m Metrics) TotalPosts() int64 {
	var n int64
	for _, pm := range m {
		n += pm.Posts
	}
	return n
}

// Equal reports whether both sets carry the same numbers, treating a missing
// platform like an all-zero one.
func (m Metrics) Equal(o Metrics) bool {
	for _, p := range Platforms {
		if m[p] != o[p] {
			return false
		}
	}
	return true
}

// Followers holds follower counts per platform, stored as a JSON object column.
type Followers map[Platform]int64

// FollowersOf copies the follower counts out of m.
func FollowersOf(m Metrics) Followers {
	out := Followers{}
	for p, pm := range m {
		out[p] = pm.Followers
	}
	return out
}

func (f Followers) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *Followers) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*f = Followers{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("followers: unsupported type %T", src)
	}
	out := Followers{}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("followers: %w", err)
	}
	*f = out
	return nil
}

// Growth holds follower deltas per platform. Values are never negative.
type Growth struct {
	IG     int64 `db:"growth_ig" json:"ig"`
	YT     int64 `db:"growth_yt" json:"yt"`
	TikTok int64 `db:"growth_tiktok" json:"tiktok"`
	X      int64 `db:"growth_x" json:"x"`
}

func (g Growth) Total() int64 { return g.IG + g.YT + g.TikTok + g.X }

func (g *Growth) Set(p Platform, v int64) {
	switch p {
	case Instagram:
		g.IG = v
	case YouTube:
		g.YT = v
	case TikTok:
		g.TikTok = v
	case X:
		g.X = v
	}
}

// Report is one member's submission for one calendar day. Baseline keeps the
// follower counts of the first submission; edits never change it.
type Report struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Date          string    `db:"report_date" json:"date"`
	TeamID        string    `db:"team_id" json:"team_id"`
	Metrics       Metrics   `db:"metrics" json:"metrics"`
	Baseline      Followers `db:"baseline_followers" json:"-"`
	Growth        `json:"follower_growth"`
	Comment       string    `db:"comment" json:"comment,omitempty"`
	EnergyAwarded int64     `db:"energy_awarded" json:"energy_awarded"`
	ModifyCount   int       `db:"modify_count" json:"modify_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// IsZeroActivity reports whether every metric on every platform is zero.
func (r *Report) IsZeroActivity() bool {
	for _, pm := range r.Metrics {
		if !pm.IsZero() {
			return false
		}
	}
	return true
}
