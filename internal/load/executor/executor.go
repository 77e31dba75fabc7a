// Package executor provides the strategies that drive the user pool: a
// constant pool held for a duration, and a shaped pool that follows a
// staged concurrency profile.
package executor

import (
	"context"
	"time"

	"github.com/cytoreason/stampede/internal/load"
	"github.com/cytoreason/stampede/internal/load/metrics"
	"github.com/cytoreason/stampede/internal/load/shape"
)

// Type identifies the executor strategy.
type Type string

const (
	// TypeConstantUsers holds a fixed user count for a duration.
	TypeConstantUsers Type = "constant-users"

	// TypeShapedUsers follows a staged concurrency profile.
	TypeShapedUsers Type = "shaped-users"
)

// Executor drives the user pool for one run.
type Executor interface {
	// Type returns the executor strategy.
	Type() Type

	// Init validates and stores configuration. Called once before Run.
	Init(ctx context.Context, config *Config) error

	// Run blocks until the run completes or the context is cancelled.
	Run(ctx context.Context, scheduler *load.Scheduler, engine *metrics.Engine) error

	// Progress returns run progress from 0.0 to 1.0.
	Progress() float64

	// ActiveUsers returns the current pool size.
	ActiveUsers() int

	// Stats returns a point-in-time view of executor state.
	Stats() *Stats

	// Stop ends the run early, allowing in-flight operations to finish.
	Stop(ctx context.Context) error
}

// Config configures an executor.
type Config struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`

	// Constant-users settings.
	Users    int           `json:"users,omitempty" yaml:"users,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// SpawnRate caps how many users may be started per second. Zero means
	// spawn immediately (constant) or defer to the stage rate (shaped).
	SpawnRate float64 `json:"spawnRate,omitempty" yaml:"spawnRate,omitempty"`

	// Shaped-users settings.
	Stages []shape.Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	// GracefulStop bounds the wait for users to finish their current
	// operation at the end of the run. Defaults to 30s.
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// Validate checks the configuration for the selected type.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeConstantUsers:
		if c.Users <= 0 {
			return &shape.ValidationError{Field: "users", Message: "must be > 0"}
		}
		if c.Duration <= 0 {
			return &shape.ValidationError{Field: "duration", Message: "must be > 0"}
		}

	case TypeShapedUsers:
		if len(c.Stages) == 0 {
			return &shape.ValidationError{Field: "stages", Message: "at least one stage is required"}
		}

	case "":
		return &shape.ValidationError{Field: "type", Message: "executor type is required"}

	default:
		return &shape.ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}
	return nil
}

// TotalDuration returns the planned wall-clock length of the run.
func (c *Config) TotalDuration() time.Duration {
	switch c.Type {
	case TypeConstantUsers:
		return c.Duration
	case TypeShapedUsers:
		var end time.Duration
		for _, st := range c.Stages {
			if st.EndOffset > end {
				end = st.EndOffset
			}
		}
		return end
	default:
		return 0
	}
}

// gracefulStop returns the configured grace period or the default.
func (c *Config) gracefulStop() time.Duration {
	if c.GracefulStop > 0 {
		return c.GracefulStop
	}
	return 30 * time.Second
}

// Stats is a point-in-time view of executor state.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveUsers int `json:"activeUsers"`
	TargetUsers int `json:"targetUsers"`

	Iterations int64 `json:"iterations"`

	CurrentStage     int    `json:"currentStage"`
	CurrentStageName string `json:"currentStageName"`
	TotalStages      int    `json:"totalStages"`
}

// New constructs the executor for a config type.
func New(t Type) Executor {
	switch t {
	case TypeConstantUsers:
		return NewConstantUsers()
	case TypeShapedUsers:
		return NewShapedUsers()
	default:
		return nil
	}
}
