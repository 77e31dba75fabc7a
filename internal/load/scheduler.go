package load

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cytoreason/stampede/internal/load/metrics"
	"github.com/cytoreason/stampede/internal/scenario"
)

// SessionFactory builds a fresh session for a newly spawned user. The
// scheduler passes in the HTTP client so sessions share its connection
// pool.
type SessionFactory func(id int, client *http.Client) *scenario.Session

// HTTPClientConfig tunes the shared HTTP transport.
type HTTPClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
	DisableCompression  bool
	InsecureSkipVerify  bool
}

// DefaultHTTPClientConfig returns pooling defaults sized for hundreds of
// concurrent users against a single host.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Scheduler owns the pool of simulated users. Executors call ScaleUsers
// to grow or shrink the pool; the scheduler handles session creation, the
// shared HTTP client, and graceful shutdown.
type Scheduler struct {
	tasks   *scenario.TaskSet
	factory SessionFactory
	metrics *metrics.Engine
	log     *zap.Logger

	client *http.Client

	users   map[int]*User
	usersMu sync.RWMutex

	nextID atomic.Int32

	shutdownCh chan struct{}
	shutdownWg sync.WaitGroup
}

// NewScheduler creates a scheduler with a shared pooled HTTP client.
func NewScheduler(tasks *scenario.TaskSet, factory SessionFactory, engine *metrics.Engine, httpConfig HTTPClientConfig, log *zap.Logger) *Scheduler {
	return &Scheduler{
		tasks:      tasks,
		factory:    factory,
		metrics:    engine,
		log:        log,
		client:     newHTTPClient(httpConfig),
		users:      make(map[int]*User),
		shutdownCh: make(chan struct{}),
	}
}

func newHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		DisableCompression:  cfg.DisableCompression,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// SpawnUser creates and registers a new user. The caller starts it with
// StartUser.
func (s *Scheduler) SpawnUser() *User {
	id := int(s.nextID.Add(1))
	session := s.factory(id, s.client)
	user := NewUser(id, s.tasks, session, s.log)

	s.usersMu.Lock()
	s.users[id] = user
	s.usersMu.Unlock()

	return user
}

// ActiveCount returns the number of users that have not stopped.
func (s *Scheduler) ActiveCount() int {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	count := 0
	for _, u := range s.users {
		if u.State() != UserStopped {
			count++
		}
	}
	return count
}

// ActiveUsers returns all non-stopped users.
func (s *Scheduler) ActiveUsers() []*User {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	result := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		if u.State() != UserStopped {
			result = append(result, u)
		}
	}
	return result
}

// StopAll requests every user to stop.
func (s *Scheduler) StopAll() {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	for _, u := range s.users {
		u.RequestStop()
	}
}

// remove drops a stopped user from the pool.
func (s *Scheduler) remove(id int) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if u, ok := s.users[id]; ok {
		u.MarkStopped()
		delete(s.users, id)
	}
}

// StartUser registers the user with the graceful-stop wait group and runs
// it in its own goroutine. Registration happens here, before the goroutine
// is scheduled, so Shutdown's wait covers users spawned moments earlier.
func (s *Scheduler) StartUser(ctx context.Context, u *User) {
	s.shutdownWg.Add(1)
	go func() {
		defer s.shutdownWg.Done()
		s.RunUser(ctx, u)
	}()
}

// RunUser drives a user until it stops, the context ends, or its session
// completes. Most callers want StartUser instead.
func (s *Scheduler) RunUser(ctx context.Context, u *User) {
	defer s.remove(u.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if state := u.State(); state == UserStopping || state == UserStopped {
			return
		}

		err := u.RunIteration(ctx)
		switch {
		case err == nil:
		case err == ErrSessionComplete:
			s.log.Debug("user session complete", zap.Int("user", u.ID))
			return
		default:
			// Cancelled or stopping.
			return
		}
	}
}

// ScaleUsers adjusts the pool to the target size, spawning or stopping
// users as needed. onSpawn receives each new user so the caller can start
// its goroutine. Returns the pool size after the adjustment.
func (s *Scheduler) ScaleUsers(ctx context.Context, target int, onSpawn func(*User)) int {
	current := s.ActiveCount()

	if target > current {
		for i := current; i < target; i++ {
			u := s.SpawnUser()
			if onSpawn != nil {
				onSpawn(u)
			}
		}
	} else if target < current {
		excess := current - target
		stopped := 0

		s.usersMu.RLock()
		for _, u := range s.users {
			if stopped >= excess {
				break
			}
			if state := u.State(); state != UserStopped && state != UserStopping {
				u.RequestStop()
				stopped++
			}
		}
		s.usersMu.RUnlock()
	}

	count := s.ActiveCount()
	s.metrics.SetActiveUsers(count)
	return count
}

// UpdateMetrics pushes the current pool size to the metrics engine.
func (s *Scheduler) UpdateMetrics() {
	s.metrics.SetActiveUsers(s.ActiveCount())
}

// Shutdown stops all users and waits up to the timeout for their
// goroutines to exit, then releases idle connections.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	close(s.shutdownCh)
	s.StopAll()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn("shutdown timeout, some users still running",
			zap.Duration("timeout", timeout))
	}

	s.client.CloseIdleConnections()
}
