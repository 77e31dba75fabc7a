// Package engine orchestrates a load test run: it wires the task set,
// scheduler, executor, and metrics together, runs the profile, and
// evaluates pass/fail thresholds over the final snapshot.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cytoreason/stampede/internal/load"
	"github.com/cytoreason/stampede/internal/load/executor"
	"github.com/cytoreason/stampede/internal/load/metrics"
	"github.com/cytoreason/stampede/internal/scenario"
)

// Thresholds are the pass/fail criteria evaluated after a run.
// Zero values disable the corresponding check.
type Thresholds struct {
	// MaxP95 bounds the overall p95 latency.
	MaxP95 time.Duration `yaml:"maxP95"`

	// MaxErrorRate bounds the failed-operation fraction (0.05 = 5%).
	MaxErrorRate float64 `yaml:"maxErrorRate"`
}

// ThresholdResult is one evaluated criterion.
type ThresholdResult struct {
	Metric  string `json:"metric"`
	Limit   string `json:"limit"`
	Value   string `json:"value"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Options configures a run.
type Options struct {
	// Name labels the run in reports and logs.
	Name string

	// TaskSet is the workload every user executes.
	TaskSet *scenario.TaskSet

	// Executor selects and configures the load strategy.
	Executor *executor.Config

	// Target, Project and Tokens are handed to each user session.
	Target  scenario.Target
	Project scenario.Project
	Tokens  scenario.TokenSource

	// HTTPConfig tunes the shared transport. Zero value uses defaults.
	HTTPConfig load.HTTPClientConfig

	// Thresholds to evaluate at the end. Nil skips evaluation.
	Thresholds *Thresholds

	Log *zap.Logger
}

// Result is the complete outcome of one run.
type Result struct {
	RunID     string        `json:"runId"`
	Name      string        `json:"name"`
	TaskSet   string        `json:"taskSet"`
	Executor  string        `json:"executor"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Metrics        *metrics.Snapshot               `json:"metrics"`
	TimeSeries     []*metrics.TimeBucket           `json:"timeSeries,omitempty"`
	OperationStats map[string]metrics.LatencyStats `json:"operationStats,omitempty"`
	Failures       []metrics.OperationFailure      `json:"failures,omitempty"`

	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
	Passed     bool              `json:"passed"`
}

// Engine runs one load test.
type Engine struct {
	opts Options

	metricsEngine *metrics.Engine
	exec          executor.Executor
	scheduler     *load.Scheduler

	mu      sync.RWMutex
	running bool
}

// New validates the options and builds an engine.
func New(opts Options) (*Engine, error) {
	if opts.TaskSet == nil {
		return nil, fmt.Errorf("task set is required")
	}
	if err := opts.TaskSet.Validate(); err != nil {
		return nil, err
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor config is required")
	}
	if err := opts.Executor.Validate(); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.HTTPConfig == (load.HTTPClientConfig{}) {
		opts.HTTPConfig = load.DefaultHTTPClientConfig()
	}

	exec := executor.New(opts.Executor.Type)
	if exec == nil {
		return nil, fmt.Errorf("unknown executor type %q", opts.Executor.Type)
	}

	return &Engine{opts: opts, exec: exec}, nil
}

// Run executes the load test and blocks until it finishes.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := uuid.NewString()
	log := e.opts.Log.With(
		zap.String("run", runID),
		zap.String("taskSet", e.opts.TaskSet.Name),
	)

	if err := e.exec.Init(ctx, e.opts.Executor); err != nil {
		return nil, fmt.Errorf("init executor: %w", err)
	}

	engine := metrics.NewEngine()
	defer engine.Stop()
	e.mu.Lock()
	e.metricsEngine = engine
	e.mu.Unlock()

	factory := func(id int, client *http.Client) *scenario.Session {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
		return &scenario.Session{
			Target:   e.opts.Target,
			Project:  e.opts.Project,
			Disease:  scenario.PickDisease(rng),
			Client:   client,
			Tokens:   e.opts.Tokens,
			Rand:     rng,
			Recorder: engine,
			Log:      log,
		}
	}

	scheduler := load.NewScheduler(e.opts.TaskSet, factory, engine, e.opts.HTTPConfig, log)
	e.mu.Lock()
	e.scheduler = scheduler
	e.mu.Unlock()

	log.Info("run starting",
		zap.String("executor", string(e.opts.Executor.Type)),
		zap.Duration("plannedDuration", e.opts.Executor.TotalDuration()))

	startTime := time.Now()
	engine.SetPhase(metrics.PhaseInit)

	runErr := e.exec.Run(ctx, scheduler, engine)

	endTime := time.Now()
	snapshot := engine.GetSnapshot()

	thresholds := e.evaluateThresholds(snapshot)
	passed := runErr == nil
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
		}
	}

	result := &Result{
		RunID:          runID,
		Name:           e.opts.Name,
		TaskSet:        e.opts.TaskSet.Name,
		Executor:       string(e.opts.Executor.Type),
		StartTime:      startTime,
		EndTime:        endTime,
		Duration:       endTime.Sub(startTime),
		Metrics:        snapshot,
		TimeSeries:     engine.GetTimeSeries(),
		OperationStats: engine.GetOperationStats(),
		Failures:       engine.GetFailures(),
		Thresholds:     thresholds,
		Passed:         passed,
	}

	log.Info("run finished",
		zap.Duration("duration", result.Duration),
		zap.Int64("operations", snapshot.TotalOperations),
		zap.Float64("errorRate", snapshot.ErrorRate),
		zap.Bool("passed", passed))

	return result, runErr
}

func (e *Engine) evaluateThresholds(snapshot *metrics.Snapshot) []ThresholdResult {
	t := e.opts.Thresholds
	if t == nil {
		return nil
	}

	var results []ThresholdResult

	if t.MaxP95 > 0 {
		r := ThresholdResult{
			Metric: "latency_p95",
			Limit:  t.MaxP95.String(),
			Value:  snapshot.Latency.P95.String(),
			Passed: snapshot.Latency.P95 <= t.MaxP95,
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("p95 latency %s exceeds limit %s", r.Value, r.Limit)
		}
		results = append(results, r)
	}

	if t.MaxErrorRate > 0 {
		r := ThresholdResult{
			Metric: "error_rate",
			Limit:  fmt.Sprintf("%.4f", t.MaxErrorRate),
			Value:  fmt.Sprintf("%.4f", snapshot.ErrorRate),
			Passed: snapshot.ErrorRate <= t.MaxErrorRate,
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("error rate %s exceeds limit %s", r.Value, r.Limit)
		}
		results = append(results, r)
	}

	return results
}

// IsRunning reports whether a run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Progress returns run progress from 0.0 to 1.0.
func (e *Engine) Progress() float64 {
	return e.exec.Progress()
}

// Snapshot returns the live metrics snapshot, or nil before Run.
func (e *Engine) Snapshot() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metricsEngine == nil {
		return nil
	}
	return e.metricsEngine.GetSnapshot()
}

// Stats returns the live executor stats.
func (e *Engine) Stats() *executor.Stats {
	return e.exec.Stats()
}

// Stop ends the run early, letting users finish their current operation.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return nil
	}
	return e.exec.Stop(ctx)
}
