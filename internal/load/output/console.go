// Package output renders live progress and the final run summary on the console.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/cytoreason/stampede/internal/load/engine"
	"github.com/cytoreason/stampede/internal/load/metrics"
)

// Cursor control for the in-place live display.
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	progressFilled = "█"
	progressEmpty  = "░"
	rule           = "━"
)

// scheme groups the colors used by the console renderer.
type scheme struct {
	Title   *color.Color
	Rule    *color.Color
	Accent  *color.Color
	Good    *color.Color
	Warn    *color.Color
	Bad     *color.Color
	Dim     *color.Color
	Latency *color.Color
	Phase   *color.Color
}

func newScheme(enabled bool) *scheme {
	s := &scheme{
		Title:   color.New(color.Bold),
		Rule:    color.New(color.FgCyan),
		Accent:  color.New(color.FgCyan),
		Good:    color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Bad:     color.New(color.FgRed),
		Dim:     color.New(color.Faint),
		Latency: color.New(color.FgBlue),
		Phase:   color.New(color.FgMagenta),
	}
	if !enabled {
		for _, c := range []*color.Color{s.Title, s.Rule, s.Accent, s.Good, s.Warn, s.Bad, s.Dim, s.Latency, s.Phase} {
			c.DisableColor()
		}
	}
	return s
}

// LiveStats is the snapshot rendered on each live-display refresh.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveUsers int
	TargetUsers int

	CurrentRPS      float64
	TotalOperations int64
	Errors          int64
	ErrorRate       float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration

	CurrentPhase string
	CurrentStage int
	TotalStages  int
}

// Console manages live console output during a run.
type Console struct {
	runName      string
	executorType string
	writer       io.Writer
	isTTY        bool
	quiet        bool
	colors       *scheme

	mu          sync.Mutex
	linesOutput int
}

// Config configures a Console.
type Config struct {
	RunName      string
	ExecutorType string
	Writer       io.Writer
	Quiet        bool
	ForceColors  bool
	ForceTTY     bool
}

// NewConsole creates a console renderer. Colors and the in-place live display
// are enabled only when the writer is a terminal.
func NewConsole(cfg Config) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	useColors := cfg.ForceColors || (isTTY && os.Getenv("NO_COLOR") == "")

	return &Console{
		runName:      cfg.RunName,
		executorType: cfg.ExecutorType,
		writer:       cfg.Writer,
		isTTY:        isTTY,
		quiet:        cfg.Quiet,
		colors:       newScheme(useColors),
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return checkIsTerminal(f)
	}
	return false
}

// PrintHeader prints the run banner.
func (c *Console) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(rule, 56)
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(c.colors.Title.Sprintf("%s [%s]", c.runName, c.executorType))
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln("")
}

// Update refreshes the live display. Outside a terminal it is a no-op; use
// PrintPlainUpdate for CI logs.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.linesOutput > 0 {
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
		for i := 0; i < c.linesOutput; i++ {
			c.write(clearLine)
			if i < c.linesOutput-1 {
				c.write("\n")
			}
		}
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	}

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)

	for _, line := range lines {
		c.writeln(line)
	}
}

func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	bar := renderProgressBar(stats.Progress, 40)
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s  %s",
		c.colors.Good.Sprint(bar),
		c.colors.Title.Sprintf("%.0f%%", stats.Progress*100),
		c.colors.Dim.Sprint(timeInfo)))

	phaseInfo := stats.CurrentPhase
	if stats.TotalStages > 0 {
		phaseInfo = fmt.Sprintf("%s (stage %d/%d)", stats.CurrentPhase, stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, fmt.Sprintf("Phase:    %s", c.colors.Phase.Sprint(phaseInfo)))

	errColor := c.colors.Good
	if stats.ErrorRate > 0.01 {
		errColor = c.colors.Warn
	}
	if stats.ErrorRate > 0.05 {
		errColor = c.colors.Bad
	}

	lines = append(lines, fmt.Sprintf("Users:    %s / %d    Ops: %s    RPS: %s",
		c.colors.Accent.Sprintf("%d", stats.ActiveUsers),
		stats.TargetUsers,
		c.colors.Accent.Sprint(formatNumber(stats.TotalOperations)),
		c.colors.Good.Sprintf("%.1f", stats.CurrentRPS)))
	lines = append(lines, fmt.Sprintf("Errors:   %s (%s)    P95: %s    Avg: %s",
		errColor.Sprintf("%d", stats.Errors),
		errColor.Sprintf("%.1f%%", stats.ErrorRate*100),
		c.colors.Latency.Sprint(formatDurationShort(stats.LatencyP95)),
		c.colors.Latency.Sprint(formatDurationShort(stats.LatencyAvg))))

	return lines
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// PrintPlainUpdate prints a one-line status for non-terminal output.
func (c *Console) PrintPlainUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] progress=%.0f%% users=%d ops=%d rps=%.1f errors=%d (%.1f%%) p95=%s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveUsers,
		stats.TotalOperations,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95)))
}

// PrintSummary prints the final run summary.
func (c *Console) PrintSummary(result *engine.Result) {
	if c.quiet {
		if result.Passed {
			c.writeln(c.colors.Good.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY && c.linesOutput > 0 {
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
		for i := 0; i < c.linesOutput; i++ {
			c.write(clearLine + "\n")
		}
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
		c.linesOutput = 0
	}

	line := strings.Repeat(rule, 56)
	status := c.colors.Good.Sprint("Completed ✓")
	if !result.Passed {
		status = c.colors.Bad.Sprint("Failed ✗")
	}

	c.writeln("")
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Accent.Sprint(formatDuration(result.Duration))))
	if result.Metrics != nil {
		c.writeln(fmt.Sprintf("Operations:    %s", c.colors.Accent.Sprint(formatNumber(result.Metrics.TotalOperations))))
		c.writeln(fmt.Sprintf("Throughput:    %s op/s", c.colors.Accent.Sprintf("%.1f", result.Metrics.RPS)))
		if result.Metrics.SteadyStateRPS > 0 {
			c.writeln(fmt.Sprintf("Steady RPS:    %s op/s", c.colors.Accent.Sprintf("%.1f", result.Metrics.SteadyStateRPS)))
		}

		successRate := 1.0 - result.Metrics.ErrorRate
		rateColor := c.colors.Good
		if successRate < 0.99 {
			rateColor = c.colors.Warn
		}
		if successRate < 0.95 {
			rateColor = c.colors.Bad
		}
		c.writeln(fmt.Sprintf("Success Rate:  %s", rateColor.Sprintf("%.1f%%", successRate*100)))
	}
	c.writeln("")

	if result.Metrics != nil {
		c.writeln(c.colors.Title.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:  %s", formatDurationShort(result.Metrics.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:  %s", formatDurationShort(result.Metrics.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:  %s", formatDurationShort(result.Metrics.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:  %s", formatDurationShort(result.Metrics.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:  %s", formatDurationShort(result.Metrics.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:  %s", formatDurationShort(result.Metrics.Latency.Max)))
		c.writeln("")
	}

	if len(result.Failures) > 0 {
		c.writeln(c.colors.Title.Sprint("Failures:"))
		for _, f := range result.Failures {
			c.writeln(fmt.Sprintf("  %s %s: %s (%s)",
				c.colors.Bad.Sprint("✗"),
				f.Operation, f.Reason,
				formatNumber(f.Count)))
		}
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := c.colors.Good.Sprint("✓")
			if !t.Passed {
				mark = c.colors.Bad.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s <= %s (actual: %s)", mark, t.Metric, t.Limit, t.Value))
		}
		c.writeln("")
	}
}

// IsTTY reports whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromSnapshot builds LiveStats from a metrics snapshot.
func StatsFromSnapshot(
	snapshot *metrics.Snapshot,
	progress float64,
	totalDuration time.Duration,
	targetUsers int,
	currentStage, totalStages int,
) *LiveStats {
	if snapshot == nil {
		return &LiveStats{
			Progress:     progress,
			TargetUsers:  targetUsers,
			CurrentStage: currentStage,
			TotalStages:  totalStages,
			CurrentPhase: "initializing",
		}
	}

	elapsed := snapshot.Elapsed
	remaining := time.Duration(0)
	if totalDuration > 0 {
		remaining = totalDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	return &LiveStats{
		Progress:        progress,
		Elapsed:         elapsed,
		Remaining:       remaining,
		ActiveUsers:     snapshot.ActiveUsers,
		TargetUsers:     targetUsers,
		CurrentRPS:      snapshot.RPS,
		TotalOperations: snapshot.TotalOperations,
		Errors:          snapshot.FailedOperations,
		ErrorRate:       snapshot.ErrorRate,
		LatencyP95:      snapshot.Latency.P95,
		LatencyAvg:      snapshot.Latency.Mean,
		CurrentPhase:    string(snapshot.CurrentPhase),
		CurrentStage:    currentStage,
		TotalStages:     totalStages,
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
