package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cytoreason/stampede/internal/load/engine"
	"github.com/cytoreason/stampede/internal/load/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDurationShort(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatNumber(tt.number)
			if result != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, result, tt.expected)
			}
		})
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := renderProgressBar(0.5, 10)
	if !strings.HasPrefix(bar, "[") || !strings.HasSuffix(bar, "]") {
		t.Errorf("Expected bracketed bar, got %q", bar)
	}
	if strings.Count(bar, progressFilled) != 5 {
		t.Errorf("Expected 5 filled cells, got %q", bar)
	}

	if got := renderProgressBar(-1, 10); strings.Contains(got, progressFilled) {
		t.Errorf("Expected empty bar for negative progress, got %q", got)
	}
	if got := renderProgressBar(2, 10); strings.Contains(got, progressEmpty) {
		t.Errorf("Expected full bar for progress > 1, got %q", got)
	}
}

func TestConsole_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(Config{
		RunName:      "smoke",
		ExecutorType: "constant-users",
		Writer:       &buf,
	})

	c.PrintHeader()

	out := buf.String()
	if !strings.Contains(out, "smoke") {
		t.Error("Header does not contain run name")
	}
	if !strings.Contains(out, "constant-users") {
		t.Error("Header does not contain executor type")
	}
}

func TestConsole_QuietSuppressesHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(Config{RunName: "smoke", Writer: &buf, Quiet: true})

	c.PrintHeader()
	c.PrintPlainUpdate(&LiveStats{})

	if buf.Len() != 0 {
		t.Errorf("Expected no output in quiet mode, got %q", buf.String())
	}
}

func TestConsole_UpdateRequiresTTY(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(Config{RunName: "smoke", Writer: &buf})

	c.Update(&LiveStats{Progress: 0.5})
	if buf.Len() != 0 {
		t.Errorf("Expected no live output without a TTY, got %q", buf.String())
	}

	forced := NewConsole(Config{RunName: "smoke", Writer: &buf, ForceTTY: true})
	forced.Update(&LiveStats{Progress: 0.5, ActiveUsers: 3, TargetUsers: 5})
	if !strings.Contains(buf.String(), "Progress:") {
		t.Error("Expected live output with ForceTTY")
	}
}

func TestConsole_PrintPlainUpdate(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(Config{RunName: "smoke", Writer: &buf})

	c.PrintPlainUpdate(&LiveStats{
		Progress:        0.25,
		Elapsed:         30 * time.Second,
		ActiveUsers:     5,
		TotalOperations: 1200,
		CurrentRPS:      40,
		Errors:          3,
		ErrorRate:       0.0025,
		LatencyP95:      120 * time.Millisecond,
	})

	out := buf.String()
	for _, want := range []string{"progress=25%", "users=5", "ops=1200", "p95=120ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("Plain update missing %q in %q", want, out)
		}
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(Config{RunName: "smoke", Writer: &buf})

	result := &engine.Result{
		Name:     "smoke",
		Duration: time.Minute,
		Passed:   true,
		Metrics: &metrics.Snapshot{
			TotalOperations:   1000,
			SuccessOperations: 995,
			FailedOperations:  5,
			RPS:               16.6,
			SteadyStateRPS:    17.2,
			ErrorRate:         0.005,
			Latency: metrics.LatencyStats{
				Min: 10 * time.Millisecond,
				P50: 40 * time.Millisecond,
				P95: 150 * time.Millisecond,
				Max: 400 * time.Millisecond,
			},
		},
		Failures: []metrics.OperationFailure{
			{Operation: "tenant", Reason: "rate limited", Count: 5},
		},
		Thresholds: []engine.ThresholdResult{
			{Metric: "p95", Limit: "500ms", Value: "150ms", Passed: true},
		},
	}

	c.PrintSummary(result)

	out := buf.String()
	for _, want := range []string{"Completed", "Operations:", "1,000", "Steady RPS:", "rate limited", "p95"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q", want)
		}
	}
}

func TestConsole_PrintSummaryQuiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(Config{RunName: "smoke", Writer: &buf, Quiet: true})

	c.PrintSummary(&engine.Result{Passed: false})

	if strings.TrimSpace(buf.String()) != "FAILED" {
		t.Errorf("Expected bare FAILED, got %q", buf.String())
	}
}

func TestStatsFromSnapshot(t *testing.T) {
	stats := StatsFromSnapshot(nil, 0.1, time.Minute, 10, 1, 3)
	if stats.CurrentPhase != "initializing" {
		t.Errorf("Expected initializing phase for nil snapshot, got %s", stats.CurrentPhase)
	}

	snap := &metrics.Snapshot{
		TotalOperations:  500,
		FailedOperations: 2,
		RPS:              25,
		ActiveUsers:      8,
		CurrentPhase:     metrics.PhaseSteady,
		Elapsed:          20 * time.Second,
	}
	stats = StatsFromSnapshot(snap, 0.33, time.Minute, 10, 2, 3)
	if stats.ActiveUsers != 8 || stats.TargetUsers != 10 {
		t.Errorf("Unexpected user counts: %+v", stats)
	}
	if stats.Remaining != 40*time.Second {
		t.Errorf("Expected 40s remaining, got %v", stats.Remaining)
	}
	if stats.CurrentPhase != "steady" {
		t.Errorf("Expected steady phase, got %s", stats.CurrentPhase)
	}
}
