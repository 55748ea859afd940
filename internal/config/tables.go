package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxStage is the terminal evolution stage.
const MaxStage = 4

//go:embed defaults.yaml
var defaultTables []byte

// Thresholds holds the cumulative invested energy required to reach stages 1..4.
type Thresholds []int64

// For returns the energy needed to reach stage; stage 0 needs nothing.
func (t Thresholds) For(stage int) int64 {
	if stage <= 0 {
		return 0
	}
	if stage > len(t) {
		return t[len(t)-1]
	}
	return t[stage-1]
}

type LevelDef struct {
	Level     int    `yaml:"level" json:"level"`
	Title     string `yaml:"title" json:"title"`
	Threshold int64  `yaml:"threshold" json:"threshold"`
}

type MissionKind string

const (
	MissionReportSubmitted MissionKind = "report_submitted"
	MissionGuardianInvest  MissionKind = "guardian_invested"
	MissionStreakAtLeast   MissionKind = "streak_at_least"
	MissionViewsAtLeast    MissionKind = "views_at_least"
)

type MissionDef struct {
	ID     string      `yaml:"id" json:"id"`
	Title  string      `yaml:"title" json:"title"`
	Kind   MissionKind `yaml:"kind" json:"kind"`
	Target int64       `yaml:"target" json:"target,omitempty"`
	Reward int64       `yaml:"reward" json:"reward"`
}

type GuardianDef struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Attribute   string `yaml:"attribute" json:"attribute"`
	UnlockLevel int    `yaml:"unlock_level" json:"unlock_level"`
}

// EnergyRules prices a day's report.
type EnergyRules struct {
	Base           int64 `yaml:"base"`
	PerFollower    int64 `yaml:"per_follower"`
	PerPost        int64 `yaml:"per_post"`
	ViewsPerEnergy int64 `yaml:"views_per_energy"`
	MaxPerReport   int64 `yaml:"max_per_report"`
}

// AuditRules parameterizes the anomaly heuristics and the consistency score.
type AuditRules struct {
	WindowDays          int     `yaml:"window_days"`
	StaleDays           int     `yaml:"stale_days"`
	HighEnergyMin       int64   `yaml:"high_energy_min"`
	LowOutputViews      int64   `yaml:"low_output_views"`
	FrequentModifyTotal int     `yaml:"frequent_modify_total"`
	GrowthSpikeMin      int64   `yaml:"growth_spike_min"`
	GrowthSpikeFactor   float64 `yaml:"growth_spike_factor"`
	IdenticalRunLength  int     `yaml:"identical_run_length"`
	EnergyPerStage      float64 `yaml:"energy_per_stage"`
	ViewsPerStage       float64 `yaml:"views_per_stage"`
}

// Tables is the immutable per-deployment gameplay configuration.
type Tables struct {
	MaxModify           int           `yaml:"max_modify"`
	BackfillDays        int           `yaml:"backfill_days"`
	EvolutionThresholds Thresholds    `yaml:"evolution_thresholds"`
	Levels              []LevelDef    `yaml:"levels"`
	Missions            []MissionDef  `yaml:"missions"`
	AllCompleteBonus    int64         `yaml:"all_complete_bonus"`
	Guardians           []GuardianDef `yaml:"guardians"`
	StarterGuardian     string        `yaml:"starter_guardian"`
	Energy              EnergyRules   `yaml:"energy"`
	Audit               AuditRules    `yaml:"audit"`
}

// DefaultTables returns the tables shipped with the binary.
func DefaultTables() Tables {
	t, err := ParseTables(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("embedded tables: %v", err))
	}
	return t
}

// LoadTables reads tables from path, or the embedded defaults when path is empty.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return ParseTables(defaultTables)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read tables: %w", err)
	}
	return ParseTables(b)
}

// ParseTables decodes and validates YAML tables.
func ParseTables(b []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Tables{}, fmt.Errorf("decode tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks the invariants the engine relies on.
func (t Tables) Validate() error {
	var errs []error
	if t.MaxModify < 0 {
		errs = append(errs, errors.New("max_modify must not be negative"))
	}
	if t.BackfillDays < 0 || (t.Audit.StaleDays > 0 && t.BackfillDays >= t.Audit.StaleDays) {
		errs = append(errs, errors.New("backfill_days must be between 0 and audit.stale_days"))
	}
	if len(t.EvolutionThresholds) != MaxStage {
		errs = append(errs, fmt.Errorf("evolution_thresholds needs %d entries, got %d", MaxStage, len(t.EvolutionThresholds)))
	}
	for i, v := range t.EvolutionThresholds {
		if v <= 0 || (i > 0 && v <= t.EvolutionThresholds[i-1]) {
			errs = append(errs, errors.New("evolution_thresholds must be positive and strictly increasing"))
			break
		}
	}
	if len(t.Levels) == 0 {
		errs = append(errs, errors.New("levels must not be empty"))
	}
	for i, l := range t.Levels {
		if i == 0 && l.Threshold != 0 {
			errs = append(errs, errors.New("first level threshold must be 0"))
		}
		if i > 0 && (l.Threshold <= t.Levels[i-1].Threshold || l.Level <= t.Levels[i-1].Level) {
			errs = append(errs, errors.New("levels must be strictly increasing"))
			break
		}
	}
	seen := map[string]bool{}
	for _, m := range t.Missions {
		if m.ID == "" || seen[m.ID] {
			errs = append(errs, fmt.Errorf("mission id %q is empty or duplicated", m.ID))
		}
		seen[m.ID] = true
		switch m.Kind {
		case MissionReportSubmitted, MissionGuardianInvest, MissionStreakAtLeast, MissionViewsAtLeast:
		default:
			errs = append(errs, fmt.Errorf("mission %q has unknown kind %q", m.ID, m.Kind))
		}
		if m.Reward < 0 {
			errs = append(errs, fmt.Errorf("mission %q reward must not be negative", m.ID))
		}
	}
	if t.AllCompleteBonus < 0 {
		errs = append(errs, errors.New("all_complete_bonus must not be negative"))
	}
	if _, ok := t.Guardian(t.StarterGuardian); !ok {
		errs = append(errs, fmt.Errorf("starter_guardian %q is not in the guardian catalog", t.StarterGuardian))
	}
	if t.Energy.ViewsPerEnergy <= 0 {
		errs = append(errs, errors.New("energy.views_per_energy must be positive"))
	}
	if t.Audit.WindowDays <= 0 || t.Audit.StaleDays <= 0 {
		errs = append(errs, errors.New("audit window_days and stale_days must be positive"))
	}
	return errors.Join(errs...)
}

// Guardian looks up a catalog entry.
func (t Tables) Guardian(id string) (GuardianDef, bool) {
	for _, g := range t.Guardians {
		if g.ID == id {
			return g, true
		}
	}
	return GuardianDef{}, false
}

// Mission looks up a catalog entry.
func (t Tables) Mission(id string) (MissionDef, bool) {
	for _, m := range t.Missions {
		if m.ID == id {
			return m, true
		}
	}
	return MissionDef{}, false
}
