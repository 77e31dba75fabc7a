package cli

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest [test-args...]",
	Short: "Run the harness's own test suite",
	Long: `Selftest runs "go test ./..." in the current directory and exits with the
test runner's exit code unchanged. Extra arguments pass through:

  stampede selftest -run TestShape -v`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		goArgs := append([]string{"test", "./..."}, args...)
		tests := exec.CommandContext(cmd.Context(), "go", goArgs...)
		tests.Stdout = os.Stdout
		tests.Stderr = os.Stderr
		tests.Stdin = os.Stdin

		err := tests.Run()
		if err == nil {
			return nil
		}
		if ee, ok := err.(*exec.ExitError); ok {
			return &exitError{code: ee.ExitCode()}
		}
		return err
	},
}
