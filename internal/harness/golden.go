package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"gopkg.in/yaml.v3"
)

// TraceSnapshot is the golden-file form of a scenario run.
//
// Seq numbers are left out: the logical clock also stamps ledger entries,
// so their gaps say nothing about the trace itself.
type TraceSnapshot struct {
	Scenario string            `yaml:"scenario"`
	Pass     bool              `yaml:"pass"`
	Events   []string          `yaml:"events"`
	Threads  map[string]string `yaml:"threads,omitempty"`
}

// NewTraceSnapshot builds the snapshot of result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	events := make([]string, len(result.Trace))
	for i, e := range result.Trace {
		events[i] = snapshotLine(e)
	}
	return TraceSnapshot{
		Scenario: name,
		Pass:     result.Pass,
		Events:   events,
		Threads:  result.Threads,
	}
}

// snapshotLine renders one event:
//
//	box allow_run paused=>paused_run_requested
//	root=>box send queued
func snapshotLine(e TraceEvent) string {
	if e.Type == TraceDelivery {
		return fmt.Sprintf("%s=>%s %s %s", e.From, e.To, e.Mode, e.Outcome)
	}
	return fmt.Sprintf("%s %s %s=>%s", e.Thread, e.Event, e.From, e.To)
}

// Marshal renders the snapshot as YAML with two-space indentation.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
