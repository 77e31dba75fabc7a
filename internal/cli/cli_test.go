package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytoreason/stampede/internal/config"
	"github.com/cytoreason/stampede/internal/load/executor"
)

func TestProfileCommandsRegistered(t *testing.T) {
	wanted := map[string]bool{
		"web": false, "smoke": false, "load": false, "stress": false,
		"spike": false, "api": false, "journey": false, "data-query": false,
		"run": false, "provision": false, "selftest": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := wanted[cmd.Name()]; ok {
			wanted[cmd.Name()] = true
		}
	}
	for name, found := range wanted {
		assert.True(t, found, "missing subcommand %s", name)
	}
}

func TestProfileBindingsResolve(t *testing.T) {
	profiles := config.BuiltinProfiles()
	for _, b := range profileBindings {
		assert.Contains(t, profiles, b.profile, "binding %s", b.use)
	}
}

func TestExecutorConfig(t *testing.T) {
	profiles := config.BuiltinProfiles()

	shaped, err := executorConfig(profiles["staged"])
	require.NoError(t, err)
	assert.Equal(t, executor.TypeShapedUsers, shaped.Type)
	assert.NotEmpty(t, shaped.Stages)
	require.NoError(t, shaped.Validate())

	constant, err := executorConfig(profiles["smoke"])
	require.NoError(t, err)
	assert.Equal(t, executor.TypeConstantUsers, constant.Type)
	assert.Equal(t, 2, constant.Users)
	require.NoError(t, constant.Validate())

	_, err = executorConfig(&config.Profile{Name: "x", Executor: "warp"})
	assert.Error(t, err)
}

func TestPeakUsers(t *testing.T) {
	p := &config.Profile{
		Stages: []config.StageSpec{
			{Duration: time.Minute, Users: 10},
			{Duration: time.Minute, Users: 100},
			{Duration: time.Minute, Users: 0},
		},
	}
	assert.Equal(t, 100, peakUsers(p))

	assert.Equal(t, 30, peakUsers(&config.Profile{Users: 30}))
}

func TestParseRefSpec(t *testing.T) {
	ref, err := parseRefSpec("AUTH0_CLIENT_SECRET=auth/auth0-m2m/client-secret")
	require.NoError(t, err)
	assert.Equal(t, "AUTH0_CLIENT_SECRET", ref.Key)
	assert.Equal(t, "auth", ref.Namespace)
	assert.Equal(t, "auth0-m2m", ref.Name)
	assert.Equal(t, "client-secret", ref.Field)

	for _, bad := range []string{"", "KEY", "KEY=ns/name", "=ns/name/field", "KEY=//"} {
		_, err := parseRefSpec(bad)
		assert.Error(t, err, "spec %q", bad)
	}
}

func TestExitError(t *testing.T) {
	err := &exitError{code: 3}
	assert.Equal(t, "exit code 3", err.Error())
}
