package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// bucketStore keeps time-bucketed samples in a fixed-size ring buffer so a
// long run cannot grow memory without bound. Records go through lock-free
// interval accumulators; the emitter drains them once per interval.
type bucketStore struct {
	buckets    []*TimeBucket
	head       int
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	intervalOps       atomic.Int64
	intervalSuccesses atomic.Int64
	intervalFailures  atomic.Int64
	intervalBytes     atomic.Int64
}

func newBucketStore(maxBuckets int) *bucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}
	return &bucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// record adds one operation result to the current interval accumulator.
func (bs *bucketStore) record(success bool, bytes int64) {
	bs.intervalOps.Add(1)
	bs.intervalBytes.Add(bytes)
	if success {
		bs.intervalSuccesses.Add(1)
	} else {
		bs.intervalFailures.Add(1)
	}
}

// flush closes the current interval into a new bucket and resets the
// accumulators. Called by the engine's emitter, typically once per second.
func (bs *bucketStore) flush(
	totalOps, totalSuccesses, totalFailures, totalBytes int64,
	latencies LatencyPercentiles,
	activeUsers int,
	phase Phase,
) *TimeBucket {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	now := time.Now()

	ops := bs.intervalOps.Swap(0)
	bs.intervalSuccesses.Swap(0)
	failures := bs.intervalFailures.Swap(0)
	bs.intervalBytes.Swap(0)

	intervalSecs := now.Sub(bs.lastBucketTime).Seconds()
	if intervalSecs <= 0 {
		intervalSecs = 1.0
	}

	errorRate := 0.0
	if ops > 0 {
		errorRate = float64(failures) / float64(ops)
	}

	bucket := &TimeBucket{
		Timestamp:          now,
		TotalOperations:    totalOps,
		TotalSuccesses:     totalSuccesses,
		TotalFailures:      totalFailures,
		TotalBytes:         totalBytes,
		IntervalOperations: ops,
		IntervalRPS:        float64(ops) / intervalSecs,
		IntervalErrorRate:  errorRate,
		LatencyMin:         latencies.Min,
		LatencyMax:         latencies.Max,
		LatencyP50:         latencies.P50,
		LatencyP90:         latencies.P90,
		LatencyP95:         latencies.P95,
		LatencyP99:         latencies.P99,
		ActiveUsers:        activeUsers,
		Phase:              phase,
	}

	bs.buckets[bs.head] = bucket
	bs.head = (bs.head + 1) % bs.maxBuckets
	if bs.count < bs.maxBuckets {
		bs.count++
	}
	bs.lastBucketTime = now

	return bucket
}

// all returns every stored bucket in chronological order.
func (bs *bucketStore) all() []*TimeBucket {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	if bs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, bs.count)
	if bs.count < bs.maxBuckets {
		copy(result, bs.buckets[:bs.count])
	} else {
		for i := 0; i < bs.count; i++ {
			result[i] = bs.buckets[(bs.head+i)%bs.maxBuckets]
		}
	}
	return result
}

func (bs *bucketStore) forPhase(phase Phase) []*TimeBucket {
	var result []*TimeBucket
	for _, b := range bs.all() {
		if b.Phase == phase {
			result = append(result, b)
		}
	}
	return result
}

func (bs *bucketStore) latest() *TimeBucket {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	if bs.count == 0 {
		return nil
	}
	idx := (bs.head - 1 + bs.maxBuckets) % bs.maxBuckets
	return bs.buckets[idx]
}

// steadyStateRPS averages interval throughput over steady-phase buckets,
// excluding ramps from the headline number.
func (bs *bucketStore) steadyStateRPS() (float64, int) {
	steady := bs.forPhase(PhaseSteady)
	if len(steady) == 0 {
		return 0, 0
	}
	var ops int64
	for _, b := range steady {
		ops += b.IntervalOperations
	}
	return float64(ops) / float64(len(steady)), len(steady)
}
