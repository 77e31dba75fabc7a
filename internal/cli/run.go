package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cytoreason/stampede/internal/auth"
	"github.com/cytoreason/stampede/internal/config"
	"github.com/cytoreason/stampede/internal/load/engine"
	"github.com/cytoreason/stampede/internal/load/executor"
	"github.com/cytoreason/stampede/internal/load/output"
	"github.com/cytoreason/stampede/internal/load/report"
	"github.com/cytoreason/stampede/internal/scenario"
)

// Each run subcommand binds one built-in profile. "web" keeps the name the
// suite has always used for the staged browser-mix ramp.
var profileBindings = []struct {
	use     string
	profile string
	short   string
}{
	{"web", "staged", "Run the 56-minute staged ramp against the web task mix"},
	{"smoke", "smoke", "Run a 1-minute 2-user smoke test"},
	{"load", "load", "Run the 20-minute high-load ramp"},
	{"stress", "stress", "Run the 30-minute stress ramp against the API task set"},
	{"spike", "spike", "Run the spike pattern with bursts to 100 users"},
	{"api", "api", "Run the constant-rate API workload"},
	{"data-query", "data-query", "Run the heavy data-query workload"},
	{"journey", "journey", "Run the 50-minute scripted user journey"},
}

func profileCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(profileBindings)+1)
	for _, b := range profileBindings {
		cmds = append(cmds, newProfileCommand(b.use, b.profile, b.short))
	}

	runCmd := &cobra.Command{
		Use:   "run <profile>",
		Short: "Run a named profile, built-in or from the profiles file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, args[0])
		},
	}
	addRunFlags(runCmd)
	cmds = append(cmds, runCmd)
	return cmds
}

func newProfileCommand(use, profile, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, profile)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("users", "u", 0, "override user count (constant executor)")
	cmd.Flags().Float64P("spawn-rate", "r", 0, "override spawn rate in users/s")
	cmd.Flags().DurationP("run-time", "t", 0, "override run time (constant executor)")
	cmd.Flags().String("host", "", "override the target base URL")
	cmd.Flags().String("api-url", "", "override the target API URL")
}

func runProfile(cmd *cobra.Command, name string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	profilesPath, _ := cmd.Flags().GetString("profiles")
	reportDir, _ := cmd.Flags().GetString("report-dir")
	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")

	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	creds, err := loadCredentials(envFile, cmd.Flags().Changed("env-file"))
	if err != nil {
		return err
	}

	profiles, err := config.LoadProfiles(profilesPath)
	if err != nil {
		return err
	}
	profile, ok := profiles[name]
	if !ok {
		return fmt.Errorf("unknown profile %q (known: %s)", name, profileNames(profiles))
	}

	if err := applyOverrides(cmd, profile, creds); err != nil {
		return err
	}

	taskSet := scenario.ByName(profile.TaskSet)
	if taskSet == nil {
		return fmt.Errorf("profile %s: unknown task set %q", profile.Name, profile.TaskSet)
	}

	execCfg, err := executorConfig(profile)
	if err != nil {
		return err
	}

	tokens, err := tokenSource(creds, log)
	if err != nil {
		return err
	}

	thresholds := &engine.Thresholds{
		MaxP95:       time.Duration(profile.Thresholds.MaxResponseTimeMS) * time.Millisecond,
		MaxErrorRate: profile.Thresholds.MaxErrorRatePercent / 100,
	}

	eng, err := engine.New(engine.Options{
		Name:     profile.Name,
		TaskSet:  taskSet,
		Executor: execCfg,
		Target: scenario.Target{
			BaseURL: creds.TargetBaseURL,
			APIURL:  creds.TargetAPIURL,
		},
		Project:    scenario.Project{ID: "main", Version: "0.0.2"},
		Tokens:     tokens,
		Thresholds: thresholds,
		Log:        log,
	})
	if err != nil {
		return err
	}

	console := output.NewConsole(output.Config{
		RunName:      profile.Name,
		ExecutorType: profile.Executor,
		Quiet:        quiet,
	})
	console.PrintHeader()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg     sync.WaitGroup
		result *engine.Result
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, runErr = eng.Run(ctx)
	}()

	trackProgress(ctx, eng, console, profile, quiet)
	wg.Wait()

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
	}
	console.PrintSummary(result)

	if result != nil {
		if reportDir == "" {
			reportDir = creds.ReportDir
		}
		if err := writeReports(result, reportDir, quiet); err != nil {
			log.Error("writing reports failed", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if result != nil && !result.Passed {
		return &exitError{code: 1}
	}
	return nil
}

// trackProgress drives the live console display while the engine runs.
func trackProgress(ctx context.Context, eng *engine.Engine, console *output.Console, profile *config.Profile, quiet bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Give the engine a moment to flip to running.
	time.Sleep(100 * time.Millisecond)

	targetUsers := peakUsers(profile)
	plainEvery := 0
	for eng.IsRunning() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		currentStage, totalStages := 0, 0
		if stats := eng.Stats(); stats != nil {
			currentStage, totalStages = stats.CurrentStage, stats.TotalStages
		}
		live := output.StatsFromSnapshot(
			eng.Snapshot(),
			eng.Progress(),
			profile.TotalDuration(),
			targetUsers,
			currentStage,
			totalStages,
		)

		if console.IsTTY() {
			console.Update(live)
		} else if !quiet {
			// Non-interactive logs get one line every 10s, not every second.
			if plainEvery%10 == 0 {
				console.PrintPlainUpdate(live)
			}
			plainEvery++
		}
	}
}

func peakUsers(p *config.Profile) int {
	peak := p.Users
	for _, s := range p.Stages {
		if s.Users > peak {
			peak = s.Users
		}
	}
	return peak
}

// loadCredentials resolves the bundle. A missing default env file falls back
// to the process environment; an explicitly named file must exist.
func loadCredentials(path string, explicit bool) (*config.Credentials, error) {
	if !explicit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	return config.LoadCredentials(path)
}

func applyOverrides(cmd *cobra.Command, p *config.Profile, creds *config.Credentials) error {
	if cmd.Flags().Changed("users") {
		users, _ := cmd.Flags().GetInt("users")
		p.Users = users
	}
	if cmd.Flags().Changed("spawn-rate") {
		rate, _ := cmd.Flags().GetFloat64("spawn-rate")
		p.SpawnRate = rate
	}
	if cmd.Flags().Changed("run-time") {
		rt, _ := cmd.Flags().GetDuration("run-time")
		p.RunTime = rt
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		creds.TargetBaseURL = host
	}
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		creds.TargetAPIURL = apiURL
	}
	return p.Validate()
}

func executorConfig(p *config.Profile) (*executor.Config, error) {
	switch p.Executor {
	case string(executor.TypeShapedUsers):
		return &executor.Config{
			Name:         p.Name,
			Type:         executor.TypeShapedUsers,
			Stages:       p.BuildStages(),
			GracefulStop: p.GracefulStop,
		}, nil
	case string(executor.TypeConstantUsers):
		return &executor.Config{
			Name:         p.Name,
			Type:         executor.TypeConstantUsers,
			Users:        p.Users,
			Duration:     p.RunTime,
			SpawnRate:    p.SpawnRate,
			GracefulStop: p.GracefulStop,
		}, nil
	default:
		return nil, fmt.Errorf("profile %s: unknown executor %q", p.Name, p.Executor)
	}
}

// tokenSource prefers a pre-provisioned bearer token; otherwise it runs the
// machine-to-machine client-credentials flow against the Auth0 tenant.
func tokenSource(creds *config.Credentials, log *zap.Logger) (scenario.TokenSource, error) {
	if creds.AuthToken != "" {
		return auth.NewStaticSource(creds.AuthToken), nil
	}
	return auth.NewClientCredentialsSource(auth.ClientCredentialsConfig{
		Domain:       creds.Auth0Domain,
		TokenURL:     creds.Auth0TokenURL,
		ClientID:     creds.M2MClientID,
		ClientSecret: creds.M2MClientSecret,
		Log:          log,
	})
}

// writeReports drops the full artifact set for one run into dir.
func writeReports(result *engine.Result, dir string, quiet bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	base := fmt.Sprintf("%s-%s", result.Name, result.StartTime.Format("20060102-150405"))
	prefix := filepath.Join(dir, base)

	if err := report.GenerateHTML(result, prefix+".html"); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(prefix+".json", data, 0o644); err != nil {
		return err
	}

	if err := report.WriteOperationStatsCSV(result, prefix+"-operations.csv"); err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		if err := report.WriteFailuresCSV(result, prefix+"-failures.csv"); err != nil {
			return err
		}
	}
	if err := report.WriteTimeSeriesCSV(result, prefix+"-timeseries.csv"); err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("\nReports written to %s.{html,json,csv}\n", prefix)
	}
	return nil
}

func profileNames(profiles map[string]*config.Profile) string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
