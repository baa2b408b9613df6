// Package ledger implements the campus record state machine.
//
// The engine owns seven record kinds (sessions, attendance, certificates,
// elections, votes, health credentials and their usages), the admin address
// and six monotonic counters. Every operation runs as one store transaction:
//
//  1. The admin is read; absent means the store was never initialized.
//  2. The authorization gate checks the caller against the admin.
//  3. Preconditions are read (parent lifecycle, current status, key presence).
//  4. The record is encoded and written, its counter incremented and a
//     journal entry appended.
//
// A rejection at any step rolls the transaction back, so rejected operations
// leave records, counters and journal untouched.
//
// Status lives in exactly one place: the primary record. end_session,
// revoke_credential and end_election rewrite that record in place.
package ledger
