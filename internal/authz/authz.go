// Package authz is the single authorization predicate guarding ledger mutations.
//
// Every mutating operation carries a Policy. PolicyAdmin operations require
// caller == admin; PolicyOpen operations accept any caller. Operations whose
// policy is fixed (end_session, store_credential, ...) cannot be opened by
// configuration. The check runs before any state is read or written.
package authz

import (
	"crypto/subtle"
	"fmt"
	"sort"

	"github.com/roach88/campusledger/internal/failure"
)

// Op names a ledger operation as it appears on the positional call surface.
type Op string

const (
	OpInit             Op = "init"
	OpStartSession     Op = "start_session"
	OpEndSession       Op = "end_session"
	OpRecordAttendance Op = "record_attendance"
	OpStoreCredential  Op = "store_credential"
	OpRecordUsage      Op = "record_usage"
	OpRevokeCredential Op = "revoke_credential"
	OpMintCert         Op = "mint_cert"
	OpCreateElection   Op = "create_election"
	OpCastVote         Op = "cast_vote"
	OpEndElection      Op = "end_election"
)

// Read operations. They are never gated.
const (
	OpGetSession     Op = "get_session"
	OpGetRecord      Op = "get_record"
	OpListAttendance Op = "list_attendance"
	OpGetCredential  Op = "get_credential"
	OpCheckUsage     Op = "check_usage"
	OpVerifyCert     Op = "verify_cert"
	OpGetElection    Op = "get_election"
	OpGetVote        Op = "get_vote"
	OpTally          Op = "tally"
	OpCounters       Op = "counters"
	OpAdmin          Op = "admin"
)

// Policy is the authorization rule attached to an operation.
type Policy string

const (
	PolicyAdmin Policy = "admin"
	PolicyOpen  Policy = "open"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyAdmin || p == PolicyOpen
}

// fixed holds operations whose policy cannot be changed.
var fixed = map[Op]Policy{
	OpEndSession:       PolicyAdmin,
	OpStoreCredential:  PolicyAdmin,
	OpRevokeCredential: PolicyAdmin,
	OpMintCert:         PolicyAdmin,
	OpCreateElection:   PolicyAdmin,
	OpEndElection:      PolicyAdmin,
}

// Defaults returns the default policy for every configurable operation.
//
// start_session is admin-only. The three append operations are open: any
// caller may record attendance, record a usage or cast a vote.
func Defaults() map[Op]Policy {
	return map[Op]Policy{
		OpStartSession:     PolicyAdmin,
		OpRecordAttendance: PolicyOpen,
		OpRecordUsage:      PolicyOpen,
		OpCastVote:         PolicyOpen,
	}
}

// Configurable lists operations whose policy may be overridden, sorted.
func Configurable() []Op {
	ops := make([]Op, 0, len(Defaults()))
	for op := range Defaults() {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Gate evaluates the admin predicate for operations.
type Gate struct {
	policies map[Op]Policy
}

// NewGate builds a gate from policy overrides layered over Defaults.
// Returns an error if an override names a fixed or unknown operation or an
// unknown policy.
func NewGate(overrides map[Op]Policy) (*Gate, error) {
	policies := Defaults()
	for op, p := range overrides {
		if !p.Valid() {
			return nil, fmt.Errorf("policy for %s: unknown policy %q", op, p)
		}
		if _, ok := fixed[op]; ok {
			return nil, fmt.Errorf("policy for %s is fixed to %s", op, fixed[op])
		}
		if _, ok := policies[op]; !ok {
			return nil, fmt.Errorf("policy for %s: unknown operation", op)
		}
		policies[op] = p
	}
	for op, p := range fixed {
		policies[op] = p
	}
	return &Gate{policies: policies}, nil
}

// Policy returns the policy attached to op. Unknown operations are admin-only.
func (g *Gate) Policy(op Op) Policy {
	if p, ok := g.policies[op]; ok {
		return p
	}
	return PolicyAdmin
}

// IsAdmin reports whether caller equals admin. An empty admin never matches.
func IsAdmin(admin, caller string) bool {
	if admin == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(admin), []byte(caller)) == 1
}

// Check fails with Unauthorized if op is admin-only and caller is not admin.
func (g *Gate) Check(op Op, admin, caller string) error {
	if g.Policy(op) == PolicyOpen {
		return nil
	}
	if !IsAdmin(admin, caller) {
		return failure.Unauthorized(string(op), caller)
	}
	return nil
}
