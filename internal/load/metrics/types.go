package metrics

import "time"

// Phase labels what part of the load shape the run is in. Phases are stamped
// onto time buckets so steady-state throughput can be separated from ramps.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseRampUp   Phase = "ramp-up"
	PhaseSteady   Phase = "steady"
	PhaseRampDown Phase = "ramp-down"
	PhaseDone     Phase = "done"
)

// Snapshot is a point-in-time view of all counters and percentiles.
type Snapshot struct {
	TotalOperations  int64         `json:"totalOperations"`
	SuccessOperations int64        `json:"successOperations"`
	FailedOperations int64         `json:"failedOperations"`
	TotalBytes       int64         `json:"totalBytes"`
	Latency          LatencyStats  `json:"latency"`
	RPS              float64       `json:"rps"`
	SteadyStateRPS   float64       `json:"steadyStateRps"`
	ErrorRate        float64       `json:"errorRate"`
	ActiveUsers      int           `json:"activeUsers"`
	CurrentPhase     Phase         `json:"currentPhase"`
	Elapsed          time.Duration `json:"elapsed"`
	StartTime        time.Time     `json:"startTime"`
	Timestamp        time.Time     `json:"timestamp"`
}

// LatencyStats summarises one histogram.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// LatencyPercentiles holds the percentile set stamped onto buckets.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// TimeBucket captures one emitter interval: cumulative totals plus the
// deltas and percentiles for that interval.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	TotalOperations int64 `json:"totalOperations"`
	TotalSuccesses  int64 `json:"totalSuccesses"`
	TotalFailures   int64 `json:"totalFailures"`
	TotalBytes      int64 `json:"totalBytes"`

	IntervalOperations int64   `json:"intervalOperations"`
	IntervalRPS        float64 `json:"intervalRPS"`
	IntervalErrorRate  float64 `json:"intervalErrorRate"`

	LatencyMin time.Duration `json:"latencyMin"`
	LatencyMax time.Duration `json:"latencyMax"`
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP90 time.Duration `json:"latencyP90"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveUsers int   `json:"activeUsers"`
	Phase       Phase `json:"phase"`
}

// OperationFailure records one failed operation for the failures report.
type OperationFailure struct {
	Operation string    `json:"operation"`
	Reason    string    `json:"reason"`
	Count     int64     `json:"count"`
	LastSeen  time.Time `json:"lastSeen"`
}

// EngineConfig tunes the metrics engine.
type EngineConfig struct {
	// BucketInterval is the time-series bucket width (default 1s).
	BucketInterval time.Duration

	// MaxBuckets bounds the ring buffer (default 3600, one hour at 1s).
	MaxBuckets int

	// Histogram range in microseconds and significant figures.
	HistogramMin     int64
	HistogramMax     int64
	HistogramSigFigs int
}

// DefaultEngineConfig returns the defaults used by the run commands.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000, // one hour in microseconds
		HistogramSigFigs: 3,
	}
}
