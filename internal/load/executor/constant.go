package executor

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cytoreason/stampede/internal/load"
	"github.com/cytoreason/stampede/internal/load/metrics"
)

// ConstantUsers spins up a fixed pool and holds it for the configured
// duration. With a spawn rate set, the pool climbs at that rate instead
// of starting all users at once.
type ConstantUsers struct {
	config    *Config
	scheduler *load.Scheduler
	metrics   *metrics.Engine

	startTime time.Time
	running   atomic.Bool

	cancel context.CancelFunc
}

// NewConstantUsers creates an uninitialized constant executor.
func NewConstantUsers() *ConstantUsers {
	return &ConstantUsers{}
}

// Type returns the executor strategy.
func (e *ConstantUsers) Type() Type {
	return TypeConstantUsers
}

// Init validates and stores the configuration.
func (e *ConstantUsers) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantUsers {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantUsers, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	e.config = config
	return nil
}

// Run holds the pool at the configured size until the duration elapses.
func (e *ConstantUsers) Run(ctx context.Context, scheduler *load.Scheduler, engine *metrics.Engine) error {
	e.scheduler = scheduler
	e.metrics = engine
	e.running.Store(true)
	e.startTime = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	spawn := func(u *load.User) {
		scheduler.StartUser(runCtx, u)
	}

	perTick := e.config.Users
	if e.config.SpawnRate > 0 {
		perTick = int(math.Ceil(e.config.SpawnRate))
	}

	engine.SetPhase(metrics.PhaseRampUp)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	timer := time.NewTimer(e.config.Duration)
	defer timer.Stop()

	// Climb to the target, then hold. Completed journey sessions are
	// replaced on subsequent ticks to keep the pool full.
	scheduler.ScaleUsers(runCtx, min(perTick, e.config.Users), spawn)

loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case <-timer.C:
			break loop
		case <-ticker.C:
			current := scheduler.ActiveCount()
			target := min(current+perTick, e.config.Users)
			scheduler.ScaleUsers(runCtx, target, spawn)
			if target >= e.config.Users {
				engine.SetPhase(metrics.PhaseSteady)
			}
		}
	}

	// Drain users before the context is torn down so in-flight operations
	// finish and report; only stragglers past the grace period get cut.
	scheduler.Shutdown(e.config.gracefulStop())
	cancel()
	engine.SetPhase(metrics.PhaseDone)
	engine.SetActiveUsers(0)
	e.running.Store(false)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Progress returns elapsed time over the configured duration.
func (e *ConstantUsers) Progress() float64 {
	if e.startTime.IsZero() {
		return 0.0
	}
	if !e.running.Load() {
		return 1.0
	}
	progress := float64(time.Since(e.startTime)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// ActiveUsers returns the current pool size.
func (e *ConstantUsers) ActiveUsers() int {
	if e.scheduler == nil {
		return 0
	}
	return e.scheduler.ActiveCount()
}

// Stats returns a point-in-time view of the run.
func (e *ConstantUsers) Stats() *Stats {
	var elapsed time.Duration
	if !e.startTime.IsZero() {
		elapsed = time.Since(e.startTime)
	}
	return &Stats{
		StartTime:     e.startTime,
		CurrentTime:   time.Now(),
		Elapsed:       elapsed,
		TotalDuration: e.config.Duration,
		ActiveUsers:   e.ActiveUsers(),
		TargetUsers:   e.config.Users,
	}
}

// Stop ends the run early.
func (e *ConstantUsers) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

var _ Executor = (*ConstantUsers)(nil)
