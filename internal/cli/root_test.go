package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "kobzar", cmd.Use)
	assert.Contains(t, cmd.Short, "capability runtime")
	assert.Contains(t, cmd.Long, "SQLite ledger")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "run", "test", "replay", "ledger"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestSubcommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		command string
		flags   []string
	}{
		{"run", []string{"db", "specs"}},
		{"test", []string{"specs", "update", "filter"}},
		{"replay", []string{"specs", "runs"}},
		{"ledger", []string{"db", "thread"}},
	}

	for _, tt := range tests {
		sub, _, err := cmd.Find([]string{tt.command})
		require.NoError(t, err)
		for _, name := range tt.flags {
			assert.NotNil(t, sub.Flags().Lookup(name), "%s --%s", tt.command, name)
		}
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, NewRootCommand(), "--format", "invalid", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommand(t *testing.T) {
	out, _, err := execute(t, NewRootCommand(), "--format", "json", "validate", testSpecsDir)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
}

func TestConfigureLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	configureLogging(buf, false)
	slog.Info("hidden")
	slog.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	configureLogging(buf, true)
	slog.Debug("detail")
	assert.Contains(t, buf.String(), "detail")
}

func TestEngineConfig(t *testing.T) {
	cfg, err := (&RootOptions{}).engineConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	path := writeFile(t, t.TempDir(), "engine.yaml", "deny_create: [demo/locked]\n")
	cfg, err = (&RootOptions{Config: path}).engineConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"demo/locked"}, cfg.DenyCreate)
	assert.Equal(t, "root", cfg.RootPath)

	bad := writeFile(t, t.TempDir(), "bad.yaml", "no_such_key: 1\n")
	_, err = (&RootOptions{Config: bad}).engineConfig()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
