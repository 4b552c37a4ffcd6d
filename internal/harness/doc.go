// Package harness runs scripted scenarios against the sqlitell API.
//
// A scenario opens a fresh in-memory connection, runs its setup SQL and
// then drives statements one operation at a time, recording every call
// and its outcome in a trace. Expectations on individual steps and final
// assertions on the database decide whether the scenario passes.
//
// # Scenario Format
//
//	name: constraint_recovery
//	description: "A failed step must be reset before the statement is reused"
//	setup: |
//	  CREATE TABLE t (id INTEGER PRIMARY KEY);
//	  INSERT INTO t VALUES (1);
//	steps:
//	  - prepare: "INSERT INTO t VALUES (?)"
//	  - bind: [1]
//	  - step: done
//	    expect_error: { op: step, kind: constraint }
//	  - reset: true
//	  - bind: [2]
//	  - step: done
//	  - finalize: true
//	assertions:
//	  - type: query
//	    sql: "SELECT id FROM t ORDER BY id"
//	    rows: [[1], [2]]
//
// Each step names exactly one action. Statement actions (bind, step,
// expect_rows, reset, finalize) apply to the statement most recently
// prepared. Values are YAML scalars, with null for NULL and {blob: "hex"}
// for blobs.
//
// # Assertion Types
//
//   - query: runs sql after the steps and compares every row
//   - total_changes: compares the connection's total change count
//   - autocommit: compares the connection's autocommit flag
//
// # Traces
//
// Trace text is deterministic, so tests compare it with golden files
// under testdata/golden. Regenerate them with:
//
//	go test ./internal/harness -update
package harness
