// Package harness replays scripted play sessions against an in-memory
// fablekeep app and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: flood_timeline
//	description: "What this scenario validates"
//	role: student
//	seed: 7
//	scenes:
//	  - id: "1-1"
//	    events:
//	      - { type: blank, text: the flood }
//	    distractors: [a parade]
//	setup:
//	  - action: open_scene
//	    args: { scene: "1-1" }
//	flow:
//	  - invoke: select
//	    args: { index: 0, text: the flood }
//	    expect:
//	      case: ok
//	      result: { conflicts: [] }
//	assertions:
//	  - type: trace_count
//	    action: select
//	    count: 1
//	  - type: final_state
//	    table: timeline
//	    expect: { selections.0: the flood }
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: a state table (gameplay, timeline, sessions,
//     active_session) holds the expected values at dotted paths
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store and backup remote, a fake wall
// clock starting at testutil.Epoch that also times autosave, sequential
// session ids and a seeded shuffle, so traces are identical across runs
// and can be compared with golden files.
package harness
