// Package load runs simulated users against the platform: a scheduler owns
// the user pool and shared HTTP client, executors drive the pool along a
// concurrency shape, and each user executes a scenario task set.
package load

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cytoreason/stampede/internal/scenario"
)

// ErrSessionComplete is returned by RunIteration when a non-looping
// sequential task set has walked all of its steps. The user is done and
// should be retired.
var ErrSessionComplete = errors.New("session complete")

// UserState is the lifecycle state of a simulated user.
type UserState int32

const (
	UserIdle UserState = iota
	UserRunning
	UserStopping
	UserStopped
)

func (s UserState) String() string {
	switch s {
	case UserIdle:
		return "idle"
	case UserRunning:
		return "running"
	case UserStopping:
		return "stopping"
	case UserStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// User is one simulated platform user. It owns a session (credentials,
// disease context, random source) and steps through its task set until
// stopped or, for journeys, until the walk completes.
type User struct {
	ID int

	tasks   *scenario.TaskSet
	session *scenario.Session
	iter    *scenario.Iterator
	log     *zap.Logger

	state      atomic.Int32
	iterations atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewUser creates a user over the given session. The session's random
// source also drives operation selection.
func NewUser(id int, tasks *scenario.TaskSet, session *scenario.Session, log *zap.Logger) *User {
	return &User{
		ID:      id,
		tasks:   tasks,
		session: session,
		iter:    tasks.Iter(session.Rand),
		log:     log.With(zap.Int("user", id)),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (u *User) State() UserState {
	return UserState(u.state.Load())
}

// Iterations returns the number of operations this user has started.
func (u *User) Iterations() int64 {
	return u.iterations.Load()
}

// Session exposes the user's session, mainly for tests.
func (u *User) Session() *scenario.Session {
	return u.session
}

// RunIteration executes the next operation of the task set, including its
// think time. Operation failures are already recorded by the session, so
// they do not abort the user; only cancellation, a stop request, or
// session completion ends the loop.
func (u *User) RunIteration(ctx context.Context) error {
	state := u.State()
	if state == UserStopping || state == UserStopped {
		return context.Canceled
	}
	u.state.Store(int32(UserRunning))

	op, ok := u.iter.Next()
	if !ok {
		return ErrSessionComplete
	}
	u.iterations.Add(1)

	if err := op.Run(ctx, u.session); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u.log.Debug("operation failed", zap.String("operation", op.Name), zap.Error(err))
	}

	u.pause(ctx, op.Think)

	if u.State() == UserRunning {
		u.state.Store(int32(UserIdle))
	}
	return ctx.Err()
}

func (u *User) pause(ctx context.Context, p scenario.Pause) {
	d := p.Duration(u.session.Rand)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-u.stopCh:
	case <-timer.C:
	}
}

// RequestStop asks the user to stop after the current operation.
func (u *User) RequestStop() {
	if u.State() == UserStopped {
		return
	}
	if u.state.CompareAndSwap(int32(UserRunning), int32(UserStopping)) ||
		u.state.CompareAndSwap(int32(UserIdle), int32(UserStopping)) {
		close(u.stopCh)
	}
}

// WaitForStop blocks until the user has fully stopped or the timeout
// expires. Reports whether the user stopped in time.
func (u *User) WaitForStop(timeout time.Duration) bool {
	select {
	case <-u.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped records that the user's goroutine has exited.
func (u *User) MarkStopped() {
	u.state.Store(int32(UserStopped))
	select {
	case <-u.doneCh:
	default:
		close(u.doneCh)
	}
}
