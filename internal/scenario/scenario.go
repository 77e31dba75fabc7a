// Package scenario defines the workloads a simulated user can run against
// the platform: weighted mixes that pick operations at random and sequential
// journeys that walk a fixed list of steps.
package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Mode selects how a task set schedules its operations.
type Mode int

const (
	// ModeWeighted picks operations at random, proportional to weight.
	ModeWeighted Mode = iota
	// ModeSequential runs operations in declaration order.
	ModeSequential
)

func (m Mode) String() string {
	switch m {
	case ModeWeighted:
		return "weighted"
	case ModeSequential:
		return "sequential"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Handler executes one operation against the target using the session's
// client and credentials.
type Handler func(ctx context.Context, s *Session) error

// Pause is a uniform random delay band applied after an operation, standing
// in for a real user reading the page.
type Pause struct {
	Min time.Duration
	Max time.Duration
}

// Pause bands observed in real sessions: quick clicks, ordinary navigation,
// and reading a heavy result page.
var (
	NoPause     = Pause{}
	ShortPause  = Pause{Min: 500 * time.Millisecond, Max: time.Second}
	MediumPause = Pause{Min: time.Second, Max: 2 * time.Second}
	LongPause   = Pause{Min: 2 * time.Second, Max: 4 * time.Second}
)

// Duration draws a delay from the band.
func (p Pause) Duration(rng *rand.Rand) time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rng.Int63n(int64(p.Max-p.Min)))
}

// Operation is one named step of a task set. Weight only matters in
// weighted mode and must be positive there.
type Operation struct {
	Name   string
	Weight int
	Think  Pause
	Run    Handler
}

// TaskSet is a named workload. In sequential mode, Loop controls whether
// the set restarts from the first operation after the last one or ends
// the user's session.
type TaskSet struct {
	Name       string
	Mode       Mode
	Loop       bool
	Operations []Operation
}

// ValidationError describes an invalid task set definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task set: %s: %s", e.Field, e.Message)
}

// Validate checks the task set definition.
func (ts *TaskSet) Validate() error {
	if ts.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if len(ts.Operations) == 0 {
		return &ValidationError{Field: "operations", Message: "must not be empty"}
	}
	for i, op := range ts.Operations {
		if op.Name == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("operations[%d].name", i),
				Message: "must not be empty",
			}
		}
		if op.Run == nil {
			return &ValidationError{
				Field:   fmt.Sprintf("operations[%d].run", i),
				Message: "must not be nil",
			}
		}
		if ts.Mode == ModeWeighted && op.Weight <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("operations[%d].weight", i),
				Message: "must be positive in weighted mode",
			}
		}
	}
	return nil
}

// totalWeight sums operation weights. Only meaningful in weighted mode.
func (ts *TaskSet) totalWeight() int {
	total := 0
	for _, op := range ts.Operations {
		total += op.Weight
	}
	return total
}

// Pick returns a random operation, proportional to weight.
func (ts *TaskSet) Pick(rng *rand.Rand) Operation {
	n := rng.Intn(ts.totalWeight())
	for _, op := range ts.Operations {
		n -= op.Weight
		if n < 0 {
			return op
		}
	}
	// Unreachable for a validated set.
	return ts.Operations[len(ts.Operations)-1]
}

// Iterator yields the operations of a task set according to its mode.
// Not safe for concurrent use; each user holds its own iterator.
type Iterator struct {
	ts  *TaskSet
	rng *rand.Rand
	idx int
}

// Iter returns a fresh iterator over the set.
func (ts *TaskSet) Iter(rng *rand.Rand) *Iterator {
	return &Iterator{ts: ts, rng: rng}
}

// Next returns the next operation. ok is false once a non-looping
// sequential set has been walked to the end; weighted and looping sets
// never finish.
func (it *Iterator) Next() (op Operation, ok bool) {
	ts := it.ts
	if ts.Mode == ModeWeighted {
		return ts.Pick(it.rng), true
	}
	if it.idx >= len(ts.Operations) {
		if !ts.Loop {
			return Operation{}, false
		}
		it.idx = 0
	}
	op = ts.Operations[it.idx]
	it.idx++
	return op, true
}
