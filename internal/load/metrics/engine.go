package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates operation results for a run.
//
// Latencies go into HDR histograms (overall plus per-operation) so
// percentiles are cheap to read at any point. Counters are atomic and a
// background emitter closes a time-series bucket once per interval, so the
// time series stays continuous even when no operations complete.
//
// Engine is safe for concurrent use.
type Engine struct {
	// Overall latency histogram, 1us to 1h at 3 significant figures.
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Per-operation histograms keyed by operation name.
	opHists   map[string]*hdrhistogram.Histogram
	opHistsMu sync.RWMutex

	// Failure reasons, keyed by operation then reason.
	failures   map[string]map[string]*OperationFailure
	failuresMu sync.Mutex

	totalOps   atomic.Int64
	successOps atomic.Int64
	failedOps  atomic.Int64
	totalBytes atomic.Int64

	activeUsers atomic.Int32

	buckets *bucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup

	config EngineConfig
}

// PhaseChange records one phase transition.
type PhaseChange struct {
	Phase      Phase
	Timestamp  time.Time
	Operations int64
}

// NewEngine creates an engine with default configuration and starts its
// background bucket emitter. Call Stop to release it.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		opHists:       make(map[string]*hdrhistogram.Histogram),
		failures:      make(map[string]map[string]*OperationFailure),
		buckets:       newBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		phaseHistory:  make([]PhaseChange, 0),
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	e.emitterWg.Add(1)
	go e.runEmitter()

	return e
}

// RecordOperation records one completed operation.
//
// name feeds the per-operation breakdown and may be empty to skip it.
func (e *Engine) RecordOperation(name string, duration time.Duration, success bool, bytes int64) {
	micros := duration.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(micros)
	e.latencyHistMu.Unlock()

	if name != "" {
		e.recordOpHistogram(name, micros)
	}

	e.totalOps.Add(1)
	e.totalBytes.Add(bytes)
	if success {
		e.successOps.Add(1)
	} else {
		e.failedOps.Add(1)
	}

	e.buckets.record(success, bytes)
}

// RecordFailure records the reason an operation failed, for the failures
// breakdown in reports. Callers should also record the operation itself
// via RecordOperation with success=false.
func (e *Engine) RecordFailure(name, reason string) {
	e.failuresMu.Lock()
	defer e.failuresMu.Unlock()

	byReason, ok := e.failures[name]
	if !ok {
		byReason = make(map[string]*OperationFailure)
		e.failures[name] = byReason
	}
	f, ok := byReason[reason]
	if !ok {
		f = &OperationFailure{Operation: name, Reason: reason}
		byReason[reason] = f
	}
	f.Count++
	f.LastSeen = time.Now()
}

// hdrhistogram RecordValue is not safe for concurrent writers.
func (e *Engine) recordOpHistogram(name string, micros int64) {
	e.opHistsMu.Lock()
	defer e.opHistsMu.Unlock()

	hist, ok := e.opHists[name]
	if !ok {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.opHists[name] = hist
	}
	hist.RecordValue(micros)
}

// SetPhase marks a phase transition. No-op if the phase is unchanged.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}
	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:      phase,
		Timestamp:  time.Now(),
		Operations: e.totalOps.Load(),
	})
}

// GetPhase returns the current phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveUsers updates the concurrent user count stamped onto buckets.
func (e *Engine) SetActiveUsers(count int) {
	e.activeUsers.Store(int32(count))
}

// GetActiveUsers returns the current concurrent user count.
func (e *Engine) GetActiveUsers() int {
	return int(e.activeUsers.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.buckets.flush(
		e.totalOps.Load(),
		e.successOps.Load(),
		e.failedOps.Load(),
		e.totalBytes.Load(),
		e.GetLatencyPercentiles(),
		e.GetActiveUsers(),
		e.GetPhase(),
	)
}

// GetLatencyPercentiles returns the current overall percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: time.Duration(e.latencyHist.Min()) * time.Microsecond,
		Max: time.Duration(e.latencyHist.Max()) * time.Microsecond,
		P50: time.Duration(e.latencyHist.ValueAtQuantile(50)) * time.Microsecond,
		P90: time.Duration(e.latencyHist.ValueAtQuantile(90)) * time.Microsecond,
		P95: time.Duration(e.latencyHist.ValueAtQuantile(95)) * time.Microsecond,
		P99: time.Duration(e.latencyHist.ValueAtQuantile(99)) * time.Microsecond,
	}
}

// GetSnapshot returns a point-in-time view of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := statsFromHistogram(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalOps.Load()
	failed := e.failedOps.Load()

	overallRPS := 0.0
	if elapsed.Seconds() > 0 {
		overallRPS = float64(total) / elapsed.Seconds()
	}

	// Prefer steady-state throughput when any steady buckets exist, since
	// the overall average is dragged down by ramps.
	steadyRPS, steadyBuckets := e.buckets.steadyStateRPS()
	rps := overallRPS
	if steadyBuckets > 0 {
		rps = steadyRPS
	}

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalOperations:   total,
		SuccessOperations: e.successOps.Load(),
		FailedOperations:  failed,
		TotalBytes:        e.totalBytes.Load(),
		Latency:           latency,
		RPS:               rps,
		SteadyStateRPS:    steadyRPS,
		ErrorRate:         errorRate,
		ActiveUsers:       e.GetActiveUsers(),
		CurrentPhase:      e.GetPhase(),
		Elapsed:           elapsed,
		StartTime:         e.startTime,
		Timestamp:         time.Now(),
	}
}

// GetTimeSeries returns all emitted buckets in chronological order.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.buckets.all()
}

// GetPhaseHistory returns a copy of the phase transition log.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// GetOperationStats returns per-operation latency statistics.
func (e *Engine) GetOperationStats() map[string]LatencyStats {
	e.opHistsMu.RLock()
	defer e.opHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.opHists))
	for name, hist := range e.opHists {
		result[name] = statsFromHistogram(hist)
	}
	return result
}

// GetFailures returns all recorded failure reasons, most frequent first
// within each operation's entries.
func (e *Engine) GetFailures() []OperationFailure {
	e.failuresMu.Lock()
	defer e.failuresMu.Unlock()

	var result []OperationFailure
	for _, byReason := range e.failures {
		for _, f := range byReason {
			result = append(result, *f)
		}
	}
	return result
}

// Stop halts the background emitter and flushes a final bucket.
func (e *Engine) Stop() {
	e.emitterCancel()
	e.emitterWg.Wait()
	e.emitBucket()
}

// Reset clears all metrics back to the initial state.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.opHistsMu.Lock()
	e.opHists = make(map[string]*hdrhistogram.Histogram)
	e.opHistsMu.Unlock()

	e.failuresMu.Lock()
	e.failures = make(map[string]map[string]*OperationFailure)
	e.failuresMu.Unlock()

	e.totalOps.Store(0)
	e.successOps.Store(0)
	e.failedOps.Store(0)
	e.totalBytes.Store(0)
	e.activeUsers.Store(0)

	e.phaseMu.Lock()
	e.currentPhase = PhaseInit
	e.phaseHistory = make([]PhaseChange, 0)
	e.phaseMu.Unlock()

	e.buckets = newBucketStore(e.config.MaxBuckets)
	e.startTime = time.Now()
}

func statsFromHistogram(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(hist.Min()) * time.Microsecond,
		Max:    time.Duration(hist.Max()) * time.Microsecond,
		Mean:   time.Duration(hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(hist.StdDev()) * time.Microsecond,
		P50:    time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count:  hist.TotalCount(),
	}
}
