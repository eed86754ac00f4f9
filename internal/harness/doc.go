// Package harness runs display reconciliation scenarios end to end.
//
// A scenario seeds a roster (through the real SQLite store, in memory) and a
// display surface (testutil.MemSurface), runs a flow of roster edits, surface
// faults and reconcile passes through the real engine, and asserts on the
// writes issued and the final surface.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	group_order: definition        # or priority
//	log_surface: ops               # optional; enables diagnostics
//	setup:
//	  - action: create_group
//	    args: { name: Alpha, priority: 1 }
//	  - action: add_member
//	    args: { group: Alpha, person_id: 100, profile_name: Kell, profile_reference: "https://example.com/kell" }
//	surface:
//	  - { author: system, content: "pinned a message" }
//	  - { author: self, planned: 0 }   # copy of planned block 0
//	  - { author: user-9, content: "hello" }
//	flow:
//	  - invoke: fail
//	    args: { op: delete }
//	  - invoke: reconcile
//	    args: {}
//	    expect: { outcome: failed, error: WRITE_REJECTED }
//	  - invoke: recover
//	    args: { op: delete }
//	  - invoke: reconcile
//	    args: {}
//	    expect: { outcome: converged }
//	assertions:
//	  - type: converged
//	  - type: system_preserved
//
// # Assertion Types
//
//   - converged: the surface's standard messages are exactly the current plan, all owned
//   - write_count: number of writes, optionally filtered by op
//   - write_order: exact op sequence of all writes
//   - system_preserved: seeded system notices remain, in order
//   - surface_contains: some message has exactly the given content
//   - notified: number of diagnostics posted to the log surface
//
// # Deterministic Testing
//
// Message ids come from a per-run sequence and pass ids are fixed, so the
// same scenario always produces the same transcript. Transcripts are compared
// against golden files under testdata/golden with goldie.
package harness
