package config

import (
	"fmt"
	"time"

	"github.com/cytoreason/stampede/internal/load/shape"
)

// StageSpec is one row of a profile's stage table. Users is the concurrency
// to reach by the end of the window, mirroring how the original ramp
// schedules were written; the shape controller interpolates toward it.
type StageSpec struct {
	Name      string        `yaml:"name" json:"name"`
	Duration  time.Duration `yaml:"duration" json:"duration"`
	Users     int           `yaml:"users" json:"users"`
	SpawnRate float64       `yaml:"spawnRate" json:"spawnRate"`
}

// Thresholds carry the two pass/fail criteria the suite has always used.
type Thresholds struct {
	MaxResponseTimeMS   int     `yaml:"maxResponseTimeMs" json:"maxResponseTimeMs"`
	MaxErrorRatePercent float64 `yaml:"maxErrorRatePercent" json:"maxErrorRatePercent"`
}

// Profile is a named, fully resolved run configuration.
type Profile struct {
	Name        string `yaml:"-" json:"-"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	TaskSet  string `yaml:"taskSet" json:"taskSet"`
	Executor string `yaml:"executor" json:"executor"`

	// Constant-executor settings.
	Users     int           `yaml:"users,omitempty" json:"users,omitempty"`
	SpawnRate float64       `yaml:"spawnRate,omitempty" json:"spawnRate,omitempty"`
	RunTime   time.Duration `yaml:"runTime,omitempty" json:"runTime,omitempty"`

	// Shaped-executor stage table.
	Stages []StageSpec `yaml:"stages,omitempty" json:"stages,omitempty"`

	GracefulStop time.Duration `yaml:"gracefulStop,omitempty" json:"gracefulStop,omitempty"`
	Thresholds   Thresholds    `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// BuildStages converts the profile's stage table to the controller's form:
// each stage carries the concurrency at its start and ramps toward its
// successor, so a terminal zero-duration stage anchors the final ramp.
func (p *Profile) BuildStages() []shape.Stage {
	if len(p.Stages) == 0 {
		return nil
	}

	stages := make([]shape.Stage, 0, len(p.Stages)+1)
	offset := time.Duration(0)
	startUsers := 0
	for _, spec := range p.Stages {
		stages = append(stages, shape.Stage{
			Name:        spec.Name,
			StartOffset: offset,
			EndOffset:   offset + spec.Duration,
			Target:      startUsers,
			SpawnRate:   spec.SpawnRate,
		})
		offset += spec.Duration
		startUsers = spec.Users
	}

	last := p.Stages[len(p.Stages)-1]
	stages = append(stages, shape.Stage{
		Name:        "end",
		StartOffset: offset,
		EndOffset:   offset,
		Target:      last.Users,
		SpawnRate:   last.SpawnRate,
	})
	return stages
}

// TotalDuration returns the planned run length.
func (p *Profile) TotalDuration() time.Duration {
	if len(p.Stages) == 0 {
		return p.RunTime
	}
	total := time.Duration(0)
	for _, s := range p.Stages {
		total += s.Duration
	}
	return total
}

// Validate checks the profile for configuration errors.
func (p *Profile) Validate() error {
	if p.TaskSet == "" {
		return fmt.Errorf("profile %s: task set is required", p.Name)
	}
	switch p.Executor {
	case "shaped-users":
		if len(p.Stages) == 0 {
			return fmt.Errorf("profile %s: shaped executor needs a stage table", p.Name)
		}
		for i, s := range p.Stages {
			if s.Duration <= 0 {
				return fmt.Errorf("profile %s: stage %d has non-positive duration", p.Name, i)
			}
			if s.Users < 0 {
				return fmt.Errorf("profile %s: stage %d has negative users", p.Name, i)
			}
			if s.SpawnRate <= 0 {
				return fmt.Errorf("profile %s: stage %d has non-positive spawn rate", p.Name, i)
			}
		}
	case "constant-users":
		if p.Users <= 0 {
			return fmt.Errorf("profile %s: constant executor needs users > 0", p.Name)
		}
		if p.RunTime <= 0 {
			return fmt.Errorf("profile %s: constant executor needs a run time", p.Name)
		}
	default:
		return fmt.Errorf("profile %s: unknown executor %q", p.Name, p.Executor)
	}
	if p.Thresholds.MaxErrorRatePercent < 0 || p.Thresholds.MaxErrorRatePercent > 100 {
		return fmt.Errorf("profile %s: error rate threshold out of range", p.Name)
	}
	return nil
}

// defaultThresholds mirror the limits the suite has always enforced.
var defaultThresholds = Thresholds{
	MaxResponseTimeMS:   5000,
	MaxErrorRatePercent: 5,
}

// BuiltinProfiles returns the profiles shipped with the tool, keyed by name.
func BuiltinProfiles() map[string]*Profile {
	return map[string]*Profile{
		"staged": {
			Name:        "staged",
			Description: "56-minute staged ramp 0-10-50-100-0 against the web task mix",
			TaskSet:     "mixed",
			Executor:    "shaped-users",
			Stages: []StageSpec{
				{Name: "warm-up", Duration: 5 * time.Minute, Users: 10, SpawnRate: 1},
				{Name: "hold-10", Duration: 1 * time.Minute, Users: 10, SpawnRate: 1},
				{Name: "ramp-to-50", Duration: 10 * time.Minute, Users: 50, SpawnRate: 1},
				{Name: "hold-50", Duration: 10 * time.Minute, Users: 50, SpawnRate: 1},
				{Name: "ramp-to-100", Duration: 15 * time.Minute, Users: 100, SpawnRate: 1},
				{Name: "hold-100", Duration: 10 * time.Minute, Users: 100, SpawnRate: 1},
				{Name: "ramp-down", Duration: 5 * time.Minute, Users: 0, SpawnRate: 1},
			},
			Thresholds: defaultThresholds,
		},
		"load": {
			Name:        "load",
			Description: "20-minute high-load ramp peaking at 100 users",
			TaskSet:     "mixed",
			Executor:    "shaped-users",
			Stages: []StageSpec{
				{Name: "warm-up", Duration: 2 * time.Minute, Users: 20, SpawnRate: 2},
				{Name: "ramp-to-50", Duration: 3 * time.Minute, Users: 50, SpawnRate: 2},
				{Name: "ramp-to-100", Duration: 3 * time.Minute, Users: 100, SpawnRate: 3},
				{Name: "hold-100", Duration: 7 * time.Minute, Users: 100, SpawnRate: 3},
				{Name: "ramp-down-50", Duration: 3 * time.Minute, Users: 50, SpawnRate: 2},
				{Name: "cooldown", Duration: 2 * time.Minute, Users: 0, SpawnRate: 2},
			},
			Thresholds: defaultThresholds,
		},
		"stress": {
			Name:        "stress",
			Description: "30-minute stress ramp pushing past the load peak",
			TaskSet:     "api",
			Executor:    "shaped-users",
			Stages: []StageSpec{
				{Name: "warm-up", Duration: 2 * time.Minute, Users: 25, SpawnRate: 3},
				{Name: "ramp-to-75", Duration: 4 * time.Minute, Users: 75, SpawnRate: 3},
				{Name: "ramp-to-150", Duration: 6 * time.Minute, Users: 150, SpawnRate: 4},
				{Name: "hold-150", Duration: 12 * time.Minute, Users: 150, SpawnRate: 4},
				{Name: "ramp-down-50", Duration: 3 * time.Minute, Users: 50, SpawnRate: 3},
				{Name: "cooldown", Duration: 3 * time.Minute, Users: 0, SpawnRate: 3},
			},
			Thresholds: Thresholds{MaxResponseTimeMS: 8000, MaxErrorRatePercent: 10},
		},
		"spike": {
			Name:        "spike",
			Description: "7-minute spike pattern: baseline 5 with bursts to 50, 75 and 100",
			TaskSet:     "spike",
			Executor:    "shaped-users",
			Stages: []StageSpec{
				{Name: "baseline", Duration: 55 * time.Second, Users: 5, SpawnRate: 5},
				{Name: "spike-1", Duration: 5 * time.Second, Users: 50, SpawnRate: 50},
				{Name: "spike-1-hold", Duration: 55 * time.Second, Users: 50, SpawnRate: 50},
				{Name: "recovery-1", Duration: 65 * time.Second, Users: 5, SpawnRate: 10},
				{Name: "spike-2", Duration: 5 * time.Second, Users: 75, SpawnRate: 75},
				{Name: "spike-2-hold", Duration: 55 * time.Second, Users: 75, SpawnRate: 75},
				{Name: "recovery-2", Duration: 65 * time.Second, Users: 5, SpawnRate: 10},
				{Name: "max-spike", Duration: 5 * time.Second, Users: 100, SpawnRate: 100},
				{Name: "max-hold", Duration: 55 * time.Second, Users: 100, SpawnRate: 100},
				{Name: "cooldown", Duration: 55 * time.Second, Users: 5, SpawnRate: 10},
			},
			Thresholds: Thresholds{MaxResponseTimeMS: 8000, MaxErrorRatePercent: 10},
		},
		"journey": {
			Name:        "journey",
			Description: "50-minute scripted user journey ramp 0-5-20-50-0",
			TaskSet:     "journey",
			Executor:    "shaped-users",
			Stages: []StageSpec{
				{Name: "warm-up", Duration: 2 * time.Minute, Users: 5, SpawnRate: 1},
				{Name: "hold-5", Duration: 5 * time.Minute, Users: 5, SpawnRate: 1},
				{Name: "ramp-to-20", Duration: 5 * time.Minute, Users: 20, SpawnRate: 1},
				{Name: "hold-20", Duration: 10 * time.Minute, Users: 20, SpawnRate: 1},
				{Name: "ramp-to-50", Duration: 10 * time.Minute, Users: 50, SpawnRate: 1},
				{Name: "hold-50", Duration: 15 * time.Minute, Users: 50, SpawnRate: 1},
				{Name: "ramp-down", Duration: 3 * time.Minute, Users: 0, SpawnRate: 2},
			},
			Thresholds: defaultThresholds,
		},
		"smoke": {
			Name:        "smoke",
			Description: "1-minute smoke check with 2 constant users",
			TaskSet:     "mixed",
			Executor:    "constant-users",
			Users:       2,
			SpawnRate:   2,
			RunTime:     time.Minute,
			Thresholds:  defaultThresholds,
		},
		"api": {
			Name:        "api",
			Description: "10-minute constant API pressure with 30 users",
			TaskSet:     "api",
			Executor:    "constant-users",
			Users:       30,
			SpawnRate:   5,
			RunTime:     10 * time.Minute,
			Thresholds:  defaultThresholds,
		},
		"data-query": {
			Name:        "data-query",
			Description: "15-minute heavy data-query workload with 20 users",
			TaskSet:     "data-query",
			Executor:    "constant-users",
			Users:       20,
			SpawnRate:   2,
			RunTime:     15 * time.Minute,
			Thresholds:  Thresholds{MaxResponseTimeMS: 8000, MaxErrorRatePercent: 10},
		},
	}
}
