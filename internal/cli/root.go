// Package cli implements the stampede command tree.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.2.0"

var rootCmd = &cobra.Command{
	Use:     "stampede",
	Short:   "Load-testing harness for the CytoReason platform",
	Version: version,
	Long: `Stampede drives staged concurrency load tests against the CytoReason
platform. Each subcommand runs a named profile: a task set describing user
behavior plus a load shape describing how concurrency evolves over time.

Credentials come from an environment file (see "stampede provision") and
results land in the report directory as HTML, JSON and CSV.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// exitError carries a specific process exit code up through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger builds the run logger. Verbose switches to the development
// config so debug-level events from the scheduler and auth layers show up.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env-file", ".env", "environment file with the credential bundle")
	pf.String("profiles", "", "YAML file with profile overrides")
	pf.String("report-dir", "", "directory for run reports (default from bundle)")
	pf.BoolP("quiet", "q", false, "suppress live progress, print only the verdict")
	pf.BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(selftestCmd)
	for _, sc := range profileCommands() {
		rootCmd.AddCommand(sc)
	}
}
