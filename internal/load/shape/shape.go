// Package shape implements the staged load-shape controller.
//
// A shape is an ordered table of stages, each covering a half-open window
// of elapsed run time and naming the concurrency the run should have when
// the window opens. The controller is a pure function of elapsed time: the
// executor polls it every tick and scales the virtual-user pool toward
// whatever it returns.
package shape

import (
	"fmt"
	"time"
)

// Stage is one window of the load shape.
//
// Target is the concurrency at StartOffset. If the following stage has a
// different target, concurrency ramps linearly across the window and reaches
// the successor's target exactly at EndOffset; otherwise the stage is a
// plateau. SpawnRate caps how many users per second the executor may start
// while this stage is active.
type Stage struct {
	Name        string
	StartOffset time.Duration
	EndOffset   time.Duration
	Target      int
	SpawnRate   float64
}

// Duration returns the length of the stage window.
func (s Stage) Duration() time.Duration {
	return s.EndOffset - s.StartOffset
}

// ValidationError reports a malformed stage table.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid load shape: '" + e.Field + "': " + e.Message
}

// Controller maps elapsed run time to a concurrency target.
//
// The stage table is validated once at construction and never mutated, so a
// Controller is safe for concurrent use from any number of scheduler ticks.
type Controller struct {
	stages []Stage
}

// NewController validates the stage table and builds a controller.
//
// The table must be non-empty, sorted by StartOffset, and contiguous: each
// stage's EndOffset is the next stage's StartOffset. Targets must be
// non-negative and spawn rates positive. Any violation is a configuration
// error surfaced here, at load time.
func NewController(stages []Stage) (*Controller, error) {
	if len(stages) == 0 {
		return nil, &ValidationError{Field: "stages", Message: "at least one stage is required"}
	}

	for i, st := range stages {
		field := fmt.Sprintf("stages[%d]", i)

		if st.EndOffset < st.StartOffset {
			return nil, &ValidationError{Field: field, Message: "end offset precedes start offset"}
		}
		if st.Target < 0 {
			return nil, &ValidationError{Field: field, Message: "target users must be >= 0"}
		}
		if st.SpawnRate <= 0 {
			return nil, &ValidationError{Field: field, Message: "spawn rate must be > 0"}
		}
		if i > 0 {
			prev := stages[i-1]
			if st.StartOffset < prev.StartOffset {
				return nil, &ValidationError{Field: field, Message: "stages must be sorted by start offset"}
			}
			if st.StartOffset != prev.EndOffset {
				return nil, &ValidationError{Field: field, Message: "stages must be contiguous"}
			}
		}
	}

	c := &Controller{stages: make([]Stage, len(stages))}
	copy(c.stages, stages)
	return c, nil
}

// Tick returns the concurrency target and spawn rate for the given elapsed
// time. ok is false once elapsed has passed the final stage's end offset;
// the caller should then end the run. Repeated calls past the end keep
// returning ok=false.
//
// Within a ramp stage the returned target moves linearly, so it may be
// fractional; the caller rounds when it scales the pool. Zero-duration
// stages cover no instant themselves, but their target still anchors the
// ramp of the stage before them.
func (c *Controller) Tick(elapsed time.Duration) (users float64, spawnRate float64, ok bool) {
	if elapsed < 0 {
		elapsed = 0
	}

	for i, st := range c.stages {
		if st.Duration() == 0 {
			// Instantaneous jump: the window is empty.
			continue
		}
		if elapsed < st.StartOffset || elapsed >= st.EndOffset {
			continue
		}

		next, hasNext := c.nextTarget(i)
		if !hasNext || next == st.Target {
			return float64(st.Target), st.SpawnRate, true
		}

		progress := float64(elapsed-st.StartOffset) / float64(st.Duration())
		users = float64(st.Target) + (float64(next)-float64(st.Target))*progress
		return users, st.SpawnRate, true
	}

	return 0, 0, false
}

// StageAt returns the index of the stage containing elapsed, or -1 when
// elapsed is past the end of the shape. Used for progress reporting.
func (c *Controller) StageAt(elapsed time.Duration) int {
	for i, st := range c.stages {
		if st.Duration() == 0 {
			continue
		}
		if elapsed >= st.StartOffset && elapsed < st.EndOffset {
			return i
		}
	}
	return -1
}

// Stages returns a copy of the stage table.
func (c *Controller) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// TotalDuration returns the end offset of the final stage.
func (c *Controller) TotalDuration() time.Duration {
	return c.stages[len(c.stages)-1].EndOffset
}

// PeakTarget returns the largest target in the table.
func (c *Controller) PeakTarget() int {
	peak := 0
	for _, st := range c.stages {
		if st.Target > peak {
			peak = st.Target
		}
	}
	return peak
}

// nextTarget returns the target of the stage after index i.
func (c *Controller) nextTarget(i int) (int, bool) {
	if i+1 < len(c.stages) {
		return c.stages[i+1].Target, true
	}
	return 0, false
}
