// Package harness provides conformance testing for kobzar interfaces.
//
// The harness loads interface manifests, starts a fresh engine, performs a
// scenario's steps as the root thread and checks the resulting trace and
// ledger.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: echo_roundtrip
//	description: "An echo thread answers the root"
//	specs:
//	  - specs
//	interfaces:
//	  - name: box
//	    interface: demo/box@1.0.0
//	    behavior: sink
//	steps:
//	  - spawn: e
//	    impl: Echo
//	  - allow_run: e
//	  - send: e
//	    payload: hello
//	  - recv: e
//	    expect: { payload: hello }
//	assertions:
//	  - type: trace_order
//	    events: ["e:running", "root->e:queued", "e->root:taken"]
//	  - type: final_state
//	    table: resources
//	    where: { uid: "@e" }
//	    expect: { kind: thread }
//
// Every step names one operation and its target alias; "root" is the boot
// thread. A step without expect must succeed; expect.error names the code
// the step must fail with.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an event label appears in the trace
//   - trace_order: Verifies labels appear in specified order
//   - trace_count: Verifies a label appears exactly N times
//   - final_state: Queries a ledger table and verifies expected values
//
// A transition is labelled "alias:state" and a delivery
// "from->to:outcome".
//
// # Deterministic Testing
//
// Uids come from a SeqGenerator seeded with the scenario name, control
// steps wait until the engine has confirmed them, and the trace is sorted
// by the engine's logical clock. The same scenario produces the same trace
// on every run, which golden files rely on.
package harness
