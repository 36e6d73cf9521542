package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScenario(t *testing.T) {
	path := filepath.Join(testScenariosDir, "echo_roundtrip.yaml")

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: echo_roundtrip")
	assert.Contains(t, out, "] e:running")
	assert.Contains(t, out, "] e->root:taken")
	assert.Contains(t, out, "  e: running")
	assert.Contains(t, out, "✓ Scenario passed")
}

func TestRunScenarioJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "echo.yaml", echoScenario)

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "inline_echo", resp.Data.Scenario)
	assert.True(t, resp.Data.Pass)
	assert.NotEmpty(t, resp.Data.Trace)
	assert.Equal(t, "running", resp.Data.Threads["e"])
}

func TestRunFailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Scenario failed")
	assert.Contains(t, out, "expected error DIED, got success")
}

func TestRunFailingScenarioJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
}

func TestRunMissingScenario(t *testing.T) {
	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunWithExtraSpecs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "uses_specs.yaml", `
name: uses_specs
description: "manifests come from --specs"
steps:
  - spawn: i
    impl: Idle
  - find: demo/idle
    expect:
      count: 1
`)

	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err, "Idle is unknown without --specs")

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), path, "--specs", testSpecsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Scenario passed")
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "engine.yaml", "max_threads_per_owner: 1\n")
	path := writeFile(t, dir, "quota.yaml", `
name: quota
description: "the config file caps the root's threads"
interfaces:
  - name: Sink
    interface: svc/sink@1.0.0
steps:
  - spawn: a
    impl: Sink
  - spawn: b
    impl: Sink
    expect:
      error: THREAD_CREATION_NOT_PERMITTED
`)

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Config: cfg}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Scenario passed")
}

func TestRunBadConfigFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "echo.yaml", echoScenario)
	opts := &RootOptions{Format: "text", Config: filepath.Join(t.TempDir(), "missing.yaml")}

	_, _, err := execute(t, NewRunCommand(opts), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{})
	assert.Equal(t, "run <scenario.yaml>", cmd.Use)
	assert.Contains(t, cmd.Long, "Exit codes:")
	require.NotNil(t, cmd.Flags().Lookup("db"))
	require.NotNil(t, cmd.Flags().Lookup("specs"))
}
