package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// Manifests and scenarios shared with the harness tests.
var (
	testSpecsDir     = filepath.Join("..", "harness", "testdata", "specs")
	testScenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
)

const echoScenario = `
name: inline_echo
description: "an echo thread answers the root"
interfaces:
  - name: Echo
    interface: svc/echo@1.0.0
    behavior: echo
steps:
  - spawn: e
    impl: Echo
  - allow_run: e
  - send: e
    payload: hi
  - recv: e
    expect:
      payload: hi
`

const failingScenario = `
name: inline_failing
description: "a sink never dies on its own"
interfaces:
  - name: Sink
    interface: svc/sink@1.0.0
steps:
  - spawn: s
    impl: Sink
  - send: s
    payload: x
    expect:
      error: DIED
`

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
