// Package harness runs ledger conformance scenarios.
//
// A scenario is a YAML file listing positional calls, each made on behalf of
// a caller, followed by assertions on the resulting trace, counters and
// records. Every scenario runs against a fresh in-memory store through the
// same dispatcher the CLI and HTTP surfaces use.
//
// # Scenario Format
//
//	name: attendance_lifecycle
//	description: "Check-ins stop once a session ends"
//	config:
//	  duplicates:
//	    attendance: reject
//	steps:
//	  - caller: ADMIN
//	    call: [init]
//	  - caller: ADMIN
//	    call: [start_session, S1, CS101, R-12]
//	    expect:
//	      record: { status: active }
//	  - caller: MALLORY
//	    call: [end_session, S1]
//	    expect:
//	      error: UNAUTHORIZED
//	assertions:
//	  - type: counter
//	    counter: total_sessions
//	    value: 1
//	  - type: record
//	    call: [get_session, S1]
//	    expect: { course_code: CS101 }
//
// # Assertion Types
//
//   - trace_contains: a step ran op, optionally with the given outcome
//   - trace_order: ops first ran in the given order
//   - trace_count: op ran exactly count times, optionally with an outcome
//   - counter: a named counter holds value
//   - record: a read call succeeds and its record contains expect
//   - absent: a read call fails with NOT_FOUND
//   - journal_count: the journal holds exactly count entries
//
// # Deterministic Testing
//
// The harness stamps records with testutil.DeterministicClock starting at
// BaseTime and names journal entries with testutil.SequenceIDGenerator, so
// the same scenario always produces byte-identical records and traces.
// Traces can be compared against golden files with RunWithGolden.
package harness
