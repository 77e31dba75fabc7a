package executor

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cytoreason/stampede/internal/load"
	"github.com/cytoreason/stampede/internal/load/metrics"
	"github.com/cytoreason/stampede/internal/load/shape"
)

// ShapedUsers drives the pool along a staged concurrency profile.
//
// Once per second it asks the shape controller for the target user count
// and spawn rate at the current elapsed time, then adjusts the pool. The
// spawn rate caps how many users may be added or removed in one tick, so
// a steep stage cannot flood the target with connection setup. When the
// controller signals the profile is exhausted the run stops.
type ShapedUsers struct {
	config     *Config
	controller *shape.Controller
	scheduler  *load.Scheduler
	metrics    *metrics.Engine

	startTime   time.Time
	targetUsers atomic.Int32
	lastTarget  atomic.Int32
	running     atomic.Bool

	cancel context.CancelFunc
}

// NewShapedUsers creates an uninitialized shaped executor.
func NewShapedUsers() *ShapedUsers {
	return &ShapedUsers{}
}

// Type returns the executor strategy.
func (e *ShapedUsers) Type() Type {
	return TypeShapedUsers
}

// Init builds the shape controller from the configured stages.
func (e *ShapedUsers) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeShapedUsers {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeShapedUsers, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	controller, err := shape.NewController(config.Stages)
	if err != nil {
		return err
	}

	e.config = config
	e.controller = controller
	return nil
}

// Run executes the profile and blocks until it ends.
func (e *ShapedUsers) Run(ctx context.Context, scheduler *load.Scheduler, engine *metrics.Engine) error {
	e.scheduler = scheduler
	e.metrics = engine
	e.running.Store(true)
	e.startTime = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Apply the initial target before the first tick elapses.
	e.step(runCtx, 0)

loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case <-ticker.C:
			if done := e.step(runCtx, time.Since(e.startTime)); done {
				break loop
			}
		}
	}

	scheduler.Shutdown(e.config.gracefulStop())
	engine.SetPhase(metrics.PhaseDone)
	engine.SetActiveUsers(0)
	e.running.Store(false)
	return runCtx.Err()
}

// step applies one controller tick. Reports true when the profile is done.
func (e *ShapedUsers) step(ctx context.Context, elapsed time.Duration) bool {
	users, spawnRate, ok := e.controller.Tick(elapsed)
	if !ok {
		return true
	}

	target := int(math.Round(users))
	current := e.scheduler.ActiveCount()

	// The spawn rate bounds pool movement per one-second tick.
	maxDelta := int(math.Ceil(spawnRate))
	if maxDelta < 1 {
		maxDelta = 1
	}
	if target > current+maxDelta {
		target = current + maxDelta
	} else if target < current-maxDelta {
		target = current - maxDelta
	}

	e.lastTarget.Store(e.targetUsers.Load())
	e.targetUsers.Store(int32(target))

	e.scheduler.ScaleUsers(ctx, target, func(u *load.User) {
		e.scheduler.StartUser(ctx, u)
	})

	e.updatePhase()
	return false
}

// updatePhase derives the run phase from the direction of the last target
// change.
func (e *ShapedUsers) updatePhase() {
	prev := int(e.lastTarget.Load())
	target := int(e.targetUsers.Load())

	switch {
	case target > prev:
		e.metrics.SetPhase(metrics.PhaseRampUp)
	case target < prev:
		e.metrics.SetPhase(metrics.PhaseRampDown)
	default:
		e.metrics.SetPhase(metrics.PhaseSteady)
	}
}

// Progress returns elapsed time over the profile's total duration.
func (e *ShapedUsers) Progress() float64 {
	if e.startTime.IsZero() {
		return 0.0
	}
	if !e.running.Load() {
		return 1.0
	}
	total := e.controller.TotalDuration()
	if total == 0 {
		return 1.0
	}
	progress := float64(time.Since(e.startTime)) / float64(total)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// ActiveUsers returns the current pool size.
func (e *ShapedUsers) ActiveUsers() int {
	if e.scheduler == nil {
		return 0
	}
	return e.scheduler.ActiveCount()
}

// Stats returns a point-in-time view of the run.
func (e *ShapedUsers) Stats() *Stats {
	var elapsed time.Duration
	if !e.startTime.IsZero() {
		elapsed = time.Since(e.startTime)
	}

	stageIdx := e.controller.StageAt(elapsed)
	stageName := ""
	stages := e.controller.Stages()
	if stageIdx >= 0 && stageIdx < len(stages) {
		stageName = stages[stageIdx].Name
	}

	return &Stats{
		StartTime:        e.startTime,
		CurrentTime:      time.Now(),
		Elapsed:          elapsed,
		TotalDuration:    e.controller.TotalDuration(),
		ActiveUsers:      e.ActiveUsers(),
		TargetUsers:      int(e.targetUsers.Load()),
		CurrentStage:     stageIdx,
		CurrentStageName: stageName,
		TotalStages:      len(stages),
	}
}

// Stop ends the run early.
func (e *ShapedUsers) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

var _ Executor = (*ShapedUsers)(nil)
