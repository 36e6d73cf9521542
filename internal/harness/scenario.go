package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kobzar/internal/engine"
)

// Scenario defines a conformance test scenario: a set of implementations,
// a sequence of steps the root thread performs against them, and
// assertions on the resulting trace and ledger.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists directories of CUE interface manifests.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs,omitempty"`

	// Interfaces declares implementations inline.
	Interfaces []InterfaceDecl `yaml:"interfaces,omitempty"`

	// Config overrides the engine's default permission policy.
	Config *engine.Config `yaml:"config,omitempty"`

	// Steps are executed in order by the root thread.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and ledger.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Seed prefixes the deterministic uid generator. Defaults to Name.
	Seed string `yaml:"seed,omitempty"`
}

// InterfaceDecl is an inline implementation.
type InterfaceDecl struct {
	Name      string   `yaml:"name"`
	Interface string   `yaml:"interface"`
	Behavior  string   `yaml:"behavior"`
	Publicity string   `yaml:"publicity,omitempty"`
	Accepts   []string `yaml:"accepts,omitempty"`
}

// Step is one operation. Exactly one operation field is set; its value
// names the target thread by alias ("root" is the boot thread), except
// find, whose value is the path searched for.
type Step struct {
	Spawn         string `yaml:"spawn,omitempty"`
	AllowRun      string `yaml:"allow_run,omitempty"`
	RequestPause  string `yaml:"request_pause,omitempty"`
	RequestCease  string `yaml:"request_cease,omitempty"`
	Kill          string `yaml:"kill,omitempty"`
	WaitState     string `yaml:"wait_state,omitempty"`
	Send          string `yaml:"send,omitempty"`
	Rendezvous    string `yaml:"rendezvous,omitempty"`
	RendezvousFor string `yaml:"rendezvous_for,omitempty"`
	Recv          string `yaml:"recv,omitempty"`
	Find          string `yaml:"find,omitempty"`

	// Impl names the implementation to spawn.
	Impl string `yaml:"impl,omitempty"`
	// Path is where a spawned thread lives. Defaults to the implementation
	// path followed by the alias.
	Path        string `yaml:"path,omitempty"`
	Publicity   string `yaml:"publicity,omitempty"`
	Performance string `yaml:"performance,omitempty"`

	// Interface overrides the target's implemented interface for messaging.
	Interface string `yaml:"interface,omitempty"`
	Payload   string `yaml:"payload,omitempty"`

	// State is the state wait_state waits for.
	State string `yaml:"state,omitempty"`

	// Version is the version range find searches for.
	Version string `yaml:"version,omitempty"`

	// TimeoutMs bounds recv, wait_state and rendezvous_for.
	TimeoutMs *int `yaml:"timeout_ms,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operation names.
const (
	OpSpawn         = "spawn"
	OpAllowRun      = "allow_run"
	OpRequestPause  = "request_pause"
	OpRequestCease  = "request_cease"
	OpKill          = "kill"
	OpWaitState     = "wait_state"
	OpSend          = "send"
	OpRendezvous    = "rendezvous"
	OpRendezvousFor = "rendezvous_for"
	OpRecv          = "recv"
	OpFind          = "find"
)

// AnyPeer as the recv target receives from any sender.
const AnyPeer = "any"

// Op returns the step's operation and its target.
func (s *Step) Op() (op, target string, err error) {
	ops := []struct {
		name, value string
	}{
		{OpSpawn, s.Spawn},
		{OpAllowRun, s.AllowRun},
		{OpRequestPause, s.RequestPause},
		{OpRequestCease, s.RequestCease},
		{OpKill, s.Kill},
		{OpWaitState, s.WaitState},
		{OpSend, s.Send},
		{OpRendezvous, s.Rendezvous},
		{OpRendezvousFor, s.RendezvousFor},
		{OpRecv, s.Recv},
		{OpFind, s.Find},
	}
	for _, o := range ops {
		if o.value == "" {
			continue
		}
		if op != "" {
			return "", "", fmt.Errorf("step has both %s and %s", op, o.name)
		}
		op, target = o.name, o.value
	}
	if op == "" {
		return "", "", fmt.Errorf("step has no operation")
	}
	return op, target, nil
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked. A step without Expect.Error must succeed.
type Expect struct {
	// Error is the expected error code, e.g. PENDING or NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Payload is the expected received payload.
	Payload *string `yaml:"payload,omitempty"`

	// Count is the expected number of instances found.
	Count *int `yaml:"count,omitempty"`

	// State is the expected state of the target after the step.
	State string `yaml:"state,omitempty"`

	// Delivered is the expected outcome of rendezvous_for.
	Delivered *bool `yaml:"delivered,omitempty"`
}

// Assertion validates trace or final ledger state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event label appears in the trace
	// - "trace_order": Check event labels appear in order
	// - "trace_count": Check an event label appears exactly N times
	// - "final_state": Query a ledger table and verify expected values
	Type string `yaml:"type"`

	// Event is a trace event label (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected label order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the ledger table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state). A string value
	// "@alias" stands for the uid of that thread.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating spec paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec directory not found: %s", specPath)
		}
	}

	for i, d := range s.Interfaces {
		if d.Name == "" {
			return fmt.Errorf("interfaces[%d]: name is required", i)
		}
		if d.Interface == "" {
			return fmt.Errorf("interfaces[%d]: interface is required", i)
		}
	}

	aliases := map[string]bool{RootAlias: true}
	for i := range s.Steps {
		step := &s.Steps[i]
		op, target, err := step.Op()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		switch op {
		case OpSpawn:
			if step.Impl == "" {
				return fmt.Errorf("steps[%d]: impl is required for spawn", i)
			}
			if aliases[target] {
				return fmt.Errorf("steps[%d]: alias %q already in use", i, target)
			}
			aliases[target] = true
		case OpWaitState:
			if step.State == "" {
				return fmt.Errorf("steps[%d]: state is required for wait_state", i)
			}
		case OpFind:
		case OpRecv:
			if target != AnyPeer && !aliases[target] {
				return fmt.Errorf("steps[%d]: unknown alias %q", i, target)
			}
		default:
			if !aliases[target] {
				return fmt.Errorf("steps[%d]: unknown alias %q", i, target)
			}
		}
		if step.TimeoutMs != nil && *step.TimeoutMs < 0 {
			return fmt.Errorf("steps[%d]: timeout_ms must be non-negative", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		if err := checkLedgerColumns(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
