// Package harness runs ledger scenarios written in YAML and compares their
// traces against golden files.
//
// # Scenario Format
//
//	name: civ_decryption_round_trip
//	description: "Owner decrypts a civilization; forged callbacks are rejected"
//	policy: consume            # optional, consume (default) or retain
//	setup:
//	  - op: bootstrap
//	    caller: "0xdeployer"
//	flow:
//	  - op: submit_civ
//	    caller: "0xalice"
//	    args: { resource: 10, tech: 2, military: 5, population: 100 }
//	    as: civ
//	  - op: request_civ_decryption
//	    caller: "0xbob"
//	    args: { civ: $civ }
//	    expect: { error: UNAUTHORIZED }
//	assertions:
//	  - type: event_count
//	    kind: DecryptionCompleted
//	    count: 1
//	  - type: final_state
//	    target: request
//	    id: $req
//	    expect: { status: fulfilled }
//
// Plain numbers in args are encrypted with the devnet engine before they
// reach the ledger. "as" binds a step's result (a civilization, action or
// request id) to a name that later steps reference as "$name".
//
// # Operations
//
//   - bootstrap, add_admin, remove_admin
//   - submit_civ, submit_action
//   - update_aggregate, remove_aggregate
//   - request_civ_decryption, request_action_decryption,
//     request_aggregate_decryption
//   - fulfill: play the oracle for one request; "tamper: true" flips a
//     cleartext bit, "cleartexts: [...]" forges values with a valid proof,
//     "kind: ..." delivers to another target kind's entry point
//   - relay: drain the relay queue through the oracle
//
// # Assertion Types
//
//   - event_contains: an event of kind whose payload matches (subset)
//   - event_order: kinds appear in this order
//   - event_count: kind appears exactly count times
//   - final_state: target is civilization, aggregate, aggregate_index,
//     request or admins; expect is a subset match
//
// # Determinism
//
// Every run uses a fresh in-memory store, a step clock, sequential
// transaction tokens and a devnet engine seeded from the scenario name.
// Request ids appear in traces under their "as" names, so golden files do
// not depend on engine internals.
package harness
