package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/cytoreason/stampede/internal/load/engine"
)

// WriteOperationStatsCSV writes per-operation latency statistics to a CSV file.
func WriteOperationStatsCSV(result *engine.Result, outputPath string) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"operation", "count", "min_ms", "mean_ms", "p50_ms", "p90_ms", "p95_ms", "p99_ms", "max_ms"}
	if err := w.Write(header); err != nil {
		return err
	}

	names := make([]string, 0, len(result.OperationStats))
	for name := range result.OperationStats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := result.OperationStats[name]
		row := []string{
			name,
			strconv.FormatInt(stats.Count, 10),
			ms(stats.Min),
			ms(stats.Mean),
			ms(stats.P50),
			ms(stats.P90),
			ms(stats.P95),
			ms(stats.P99),
			ms(stats.Max),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteFailuresCSV writes the grouped failure table to a CSV file.
func WriteFailuresCSV(result *engine.Result, outputPath string) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"operation", "reason", "count", "last_seen"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, fail := range result.Failures {
		row := []string{
			fail.Operation,
			fail.Reason,
			strconv.FormatInt(fail.Count, 10),
			fail.LastSeen.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteTimeSeriesCSV writes the per-second time series to a CSV file.
func WriteTimeSeriesCSV(result *engine.Result, outputPath string) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"timestamp", "phase", "active_users",
		"total_operations", "interval_operations", "interval_rps", "interval_error_rate",
		"p50_ms", "p95_ms", "p99_ms",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, bucket := range result.TimeSeries {
		row := []string{
			bucket.Timestamp.Format(time.RFC3339),
			string(bucket.Phase),
			strconv.Itoa(bucket.ActiveUsers),
			strconv.FormatInt(bucket.TotalOperations, 10),
			strconv.FormatInt(bucket.IntervalOperations, 10),
			strconv.FormatFloat(bucket.IntervalRPS, 'f', 2, 64),
			strconv.FormatFloat(bucket.IntervalErrorRate, 'f', 4, 64),
			ms(bucket.LatencyP50),
			ms(bucket.LatencyP95),
			ms(bucket.LatencyP99),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000.0, 'f', 2, 64)
}
