package load

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cytoreason/stampede/internal/load/metrics"
	"github.com/cytoreason/stampede/internal/scenario"
)

func testFactory(srv *httptest.Server) SessionFactory {
	return func(id int, client *http.Client) *scenario.Session {
		engine := metrics.NewEngine()
		// Leaked engines in tests stop with the process; sessions in real
		// runs share the engine owned by the executor.
		return &scenario.Session{
			Target:   scenario.Target{BaseURL: srv.URL, APIURL: srv.URL},
			Project:  scenario.Project{ID: "main", Version: "0.0.2"},
			Disease:  scenario.Diseases()[0],
			Client:   client,
			Rand:     rand.New(rand.NewSource(int64(id))),
			Recorder: engine,
			Log:      zap.NewNop(),
		}
	}
}

func quickTaskSet(counter *atomic.Int64) *scenario.TaskSet {
	return &scenario.TaskSet{
		Name: "quick",
		Mode: scenario.ModeWeighted,
		Operations: []scenario.Operation{
			{Name: "ping", Weight: 1, Run: func(ctx context.Context, s *scenario.Session) error {
				counter.Add(1)
				_, err := s.GetAPI(ctx, "ping", "/")
				return err
			}},
		},
	}
}

func TestUser_StateTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var counter atomic.Int64
	engine := metrics.NewEngine()
	defer engine.Stop()

	sched := NewScheduler(quickTaskSet(&counter), testFactory(srv), engine, DefaultHTTPClientConfig(), zap.NewNop())
	u := sched.SpawnUser()

	if u.State() != UserIdle {
		t.Errorf("initial state = %v, want idle", u.State())
	}

	if err := u.RunIteration(context.Background()); err != nil {
		t.Fatalf("RunIteration() error = %v", err)
	}
	if u.Iterations() != 1 {
		t.Errorf("Iterations() = %d, want 1", u.Iterations())
	}
	if u.State() != UserIdle {
		t.Errorf("state after iteration = %v, want idle", u.State())
	}

	u.RequestStop()
	if u.State() != UserStopping {
		t.Errorf("state after RequestStop = %v, want stopping", u.State())
	}

	// A stopping user refuses further iterations.
	if err := u.RunIteration(context.Background()); err == nil {
		t.Error("RunIteration() on stopping user = nil, want error")
	}

	u.MarkStopped()
	if !u.WaitForStop(time.Second) {
		t.Error("WaitForStop() = false after MarkStopped")
	}
}

func TestUser_SequentialSessionCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tasks := &scenario.TaskSet{
		Name: "two-step",
		Mode: scenario.ModeSequential,
		Operations: []scenario.Operation{
			{Name: "a", Run: func(ctx context.Context, s *scenario.Session) error {
				_, err := s.GetAPI(ctx, "a", "/")
				return err
			}},
			{Name: "b", Run: func(ctx context.Context, s *scenario.Session) error {
				_, err := s.GetAPI(ctx, "b", "/")
				return err
			}},
		},
	}

	engine := metrics.NewEngine()
	defer engine.Stop()
	sched := NewScheduler(tasks, testFactory(srv), engine, DefaultHTTPClientConfig(), zap.NewNop())
	u := sched.SpawnUser()

	ctx := context.Background()
	if err := u.RunIteration(ctx); err != nil {
		t.Fatalf("step 1 error = %v", err)
	}
	if err := u.RunIteration(ctx); err != nil {
		t.Fatalf("step 2 error = %v", err)
	}
	if err := u.RunIteration(ctx); err != ErrSessionComplete {
		t.Errorf("step 3 error = %v, want ErrSessionComplete", err)
	}
}

func TestScheduler_ScaleUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var counter atomic.Int64
	engine := metrics.NewEngine()
	defer engine.Stop()

	sched := NewScheduler(quickTaskSet(&counter), testFactory(srv), engine, DefaultHTTPClientConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := sched.ScaleUsers(ctx, 5, func(u *User) {
		sched.StartUser(ctx, u)
	})
	if got != 5 {
		t.Errorf("ScaleUsers(5) = %d, want 5", got)
	}
	if engine.GetActiveUsers() != 5 {
		t.Errorf("engine active users = %d, want 5", engine.GetActiveUsers())
	}

	// Scale down and wait for the pool to drain.
	sched.ScaleUsers(ctx, 2, nil)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sched.ActiveCount() <= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if count := sched.ActiveCount(); count > 2 {
		t.Errorf("ActiveCount() after scale down = %d, want <= 2", count)
	}

	sched.Shutdown(5 * time.Second)
	if count := sched.ActiveCount(); count != 0 {
		t.Errorf("ActiveCount() after Shutdown = %d, want 0", count)
	}
	if counter.Load() == 0 {
		t.Error("no operations executed by pool")
	}
}

func TestScheduler_RunUserRetiresCompletedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tasks := &scenario.TaskSet{
		Name: "one-shot",
		Mode: scenario.ModeSequential,
		Operations: []scenario.Operation{
			{Name: "only", Run: func(ctx context.Context, s *scenario.Session) error {
				_, err := s.GetAPI(ctx, "only", "/")
				return err
			}},
		},
	}

	engine := metrics.NewEngine()
	defer engine.Stop()
	sched := NewScheduler(tasks, testFactory(srv), engine, DefaultHTTPClientConfig(), zap.NewNop())

	u := sched.SpawnUser()
	done := make(chan struct{})
	go func() {
		sched.RunUser(context.Background(), u)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunUser did not return after session completed")
	}
	if sched.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after retirement", sched.ActiveCount())
	}
}

func TestScheduler_ShutdownWaitsForJustSpawnedUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var counter atomic.Int64
	engine := metrics.NewEngine()
	defer engine.Stop()

	sched := NewScheduler(quickTaskSet(&counter), testFactory(srv), engine, DefaultHTTPClientConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.ScaleUsers(ctx, 5, func(u *User) {
		sched.StartUser(ctx, u)
	})

	// Shutdown immediately: users registered at the spawn site must all be
	// covered by the wait, even before their goroutines first run.
	sched.Shutdown(5 * time.Second)
	if count := sched.ActiveCount(); count != 0 {
		t.Errorf("ActiveCount() after Shutdown = %d, want 0", count)
	}
}
