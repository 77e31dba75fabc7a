package shape

import (
	"testing"
	"time"
)

func TestNewController_EmptyStages(t *testing.T) {
	if _, err := NewController(nil); err == nil {
		t.Fatal("NewController() expected error for empty stage table, got nil")
	}
}

func TestNewController_Gap(t *testing.T) {
	_, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 60 * time.Second, Target: 5, SpawnRate: 1},
		{StartOffset: 90 * time.Second, EndOffset: 120 * time.Second, Target: 5, SpawnRate: 1},
	})
	if err == nil {
		t.Fatal("NewController() expected error for non-contiguous stages, got nil")
	}
}

func TestNewController_Unsorted(t *testing.T) {
	_, err := NewController([]Stage{
		{StartOffset: 60 * time.Second, EndOffset: 120 * time.Second, Target: 5, SpawnRate: 1},
		{StartOffset: 0, EndOffset: 60 * time.Second, Target: 5, SpawnRate: 1},
	})
	if err == nil {
		t.Fatal("NewController() expected error for unsorted stages, got nil")
	}
}

func TestNewController_BadSpawnRate(t *testing.T) {
	_, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 60 * time.Second, Target: 5, SpawnRate: 0},
	})
	if err == nil {
		t.Fatal("NewController() expected error for zero spawn rate, got nil")
	}
}

func TestNewController_NegativeTarget(t *testing.T) {
	_, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 60 * time.Second, Target: -1, SpawnRate: 1},
	})
	if err == nil {
		t.Fatal("NewController() expected error for negative target, got nil")
	}
}

// Ramp into a plateau: the reference table from the design discussion.
// Stage one ramps 0 to 5 over two minutes, stage two holds 5.
func TestTick_RampInterpolation(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 120 * time.Second, Target: 0, SpawnRate: 5},
		{StartOffset: 120 * time.Second, EndOffset: 240 * time.Second, Target: 5, SpawnRate: 5},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	users, rate, ok := c.Tick(60 * time.Second)
	if !ok {
		t.Fatal("Tick(60s) ok = false, want true")
	}
	if users != 2.5 {
		t.Errorf("Tick(60s) users = %v, want 2.5", users)
	}
	if rate != 5 {
		t.Errorf("Tick(60s) spawnRate = %v, want 5", rate)
	}

	users, _, ok = c.Tick(150 * time.Second)
	if !ok {
		t.Fatal("Tick(150s) ok = false, want true")
	}
	if users != 5 {
		t.Errorf("Tick(150s) users = %v, want exactly 5", users)
	}
}

func TestTick_BoundaryValuesExact(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 100 * time.Second, Target: 10, SpawnRate: 1},
		{StartOffset: 100 * time.Second, EndOffset: 200 * time.Second, Target: 50, SpawnRate: 1},
		{StartOffset: 200 * time.Second, EndOffset: 200 * time.Second, Target: 50, SpawnRate: 1},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if users, _, _ := c.Tick(0); users != 10 {
		t.Errorf("Tick(0) users = %v, want 10 at stage start", users)
	}
	if users, _, _ := c.Tick(100 * time.Second); users != 50 {
		t.Errorf("Tick(100s) users = %v, want 50 at stage boundary", users)
	}
}

func TestTick_PlateauConstant(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 10 * time.Minute, Target: 25, SpawnRate: 2},
		{StartOffset: 10 * time.Minute, EndOffset: 20 * time.Minute, Target: 25, SpawnRate: 2},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	var last float64 = -1
	for _, elapsed := range []time.Duration{0, 30 * time.Second, 5 * time.Minute, 9 * time.Minute} {
		users, _, ok := c.Tick(elapsed)
		if !ok {
			t.Fatalf("Tick(%v) ok = false, want true", elapsed)
		}
		if last >= 0 && users != last {
			t.Errorf("Tick(%v) users = %v, want constant %v within plateau", elapsed, users, last)
		}
		last = users
	}
	if last != 25 {
		t.Errorf("plateau users = %v, want 25", last)
	}
}

func TestTick_RampMonotonic(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 5 * time.Minute, Target: 0, SpawnRate: 1},
		{StartOffset: 5 * time.Minute, EndOffset: 5 * time.Minute, Target: 100, SpawnRate: 1},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	prev := -1.0
	for elapsed := time.Duration(0); elapsed < 5*time.Minute; elapsed += 10 * time.Second {
		users, _, ok := c.Tick(elapsed)
		if !ok {
			t.Fatalf("Tick(%v) ok = false, want true", elapsed)
		}
		if users < prev {
			t.Fatalf("Tick(%v) users = %v, decreased from %v during ramp-up", elapsed, users, prev)
		}
		prev = users
	}
}

func TestTick_RampDownMonotonic(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 2 * time.Minute, Target: 100, SpawnRate: 1},
		{StartOffset: 2 * time.Minute, EndOffset: 2 * time.Minute, Target: 0, SpawnRate: 1},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	prev := 101.0
	for elapsed := time.Duration(0); elapsed < 2*time.Minute; elapsed += 5 * time.Second {
		users, _, _ := c.Tick(elapsed)
		if users > prev {
			t.Fatalf("Tick(%v) users = %v, increased from %v during ramp-down", elapsed, users, prev)
		}
		prev = users
	}
}

func TestTick_StopSentinelIdempotent(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: time.Minute, Target: 5, SpawnRate: 1},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, _, ok := c.Tick(time.Minute + time.Duration(i)*time.Second); ok {
			t.Fatalf("Tick beyond final stage returned ok = true on call %d", i+1)
		}
	}
}

// A zero-duration stage covers no instant but anchors the preceding ramp.
func TestTick_ZeroDurationJump(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 60 * time.Second, Target: 0, SpawnRate: 10},
		{StartOffset: 60 * time.Second, EndOffset: 60 * time.Second, Target: 50, SpawnRate: 10},
		{StartOffset: 60 * time.Second, EndOffset: 120 * time.Second, Target: 50, SpawnRate: 10},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	// Midway through the ramp toward the jump target.
	if users, _, _ := c.Tick(30 * time.Second); users != 25 {
		t.Errorf("Tick(30s) users = %v, want 25", users)
	}
	// The jump's target is honored at its boundary instant.
	if users, _, _ := c.Tick(60 * time.Second); users != 50 {
		t.Errorf("Tick(60s) users = %v, want 50", users)
	}
}

func TestController_TotalDurationAndPeak(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: 2 * time.Minute, Target: 20, SpawnRate: 2},
		{StartOffset: 2 * time.Minute, EndOffset: 8 * time.Minute, Target: 100, SpawnRate: 3},
		{StartOffset: 8 * time.Minute, EndOffset: 10 * time.Minute, Target: 0, SpawnRate: 2},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if got := c.TotalDuration(); got != 10*time.Minute {
		t.Errorf("TotalDuration() = %v, want 10m", got)
	}
	if got := c.PeakTarget(); got != 100 {
		t.Errorf("PeakTarget() = %v, want 100", got)
	}
}

func TestStageAt(t *testing.T) {
	c, err := NewController([]Stage{
		{StartOffset: 0, EndOffset: time.Minute, Target: 5, SpawnRate: 1},
		{StartOffset: time.Minute, EndOffset: 2 * time.Minute, Target: 5, SpawnRate: 1},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	if got := c.StageAt(30 * time.Second); got != 0 {
		t.Errorf("StageAt(30s) = %d, want 0", got)
	}
	if got := c.StageAt(90 * time.Second); got != 1 {
		t.Errorf("StageAt(90s) = %d, want 1", got)
	}
	if got := c.StageAt(3 * time.Minute); got != -1 {
		t.Errorf("StageAt(3m) = %d, want -1", got)
	}
}
