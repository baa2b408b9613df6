// Package dispatch maps the positional call surface onto the ledger.
//
// A call is an operation name followed by positional string arguments:
//
//	start_session S-1 CS101 R-12
//	cast_vote E-3 3f9a... candidate-2
//
// The dispatcher checks the operation name and argument count, converts the
// decimal voter_count of create_election, and returns the written or read
// record. Every rejection is a *failure.Error.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/ledger"
)

// Result is the outcome of an accepted call.
type Result struct {
	Op     string `json:"op"`
	Record any    `json:"record"`
}

type handler func(ctx context.Context, e *ledger.Engine, caller string, args []string) (any, error)

type command struct {
	params []string
	run    handler
}

var commands = map[authz.Op]command{
	authz.OpInit: {nil, func(ctx context.Context, e *ledger.Engine, caller string, _ []string) (any, error) {
		if err := e.Init(ctx, caller); err != nil {
			return nil, err
		}
		return map[string]string{"admin": caller}, nil
	}},

	authz.OpStartSession: {[]string{"session_id", "course_code", "room"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.StartSession(ctx, caller, a[0], a[1], a[2])
	}},
	authz.OpEndSession: {[]string{"session_id"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.EndSession(ctx, caller, a[0])
	}},
	authz.OpRecordAttendance: {[]string{"session_id", "student_id", "verification_hash", "status"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.RecordAttendance(ctx, caller, a[0], a[1], a[2], a[3])
	}},

	authz.OpStoreCredential: {[]string{"credential_id", "commitment_hash", "issuer_hash"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.StoreCredential(ctx, caller, a[0], a[1], a[2])
	}},
	authz.OpRecordUsage: {[]string{"credential_id", "usage_hash", "purpose"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.RecordUsage(ctx, caller, a[0], a[1], a[2])
	}},
	authz.OpRevokeCredential: {[]string{"credential_id"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.RevokeCredential(ctx, caller, a[0])
	}},

	authz.OpMintCert: {[]string{"nft_id", "recipient_addr", "title_hash", "metadata_hash"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.MintCert(ctx, caller, a[0], a[1], a[2], a[3])
	}},
	authz.OpCreateElection: {[]string{"election_id", "title_hash", "voter_count"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		n, err := ParseVoterCount(a[2])
		if err != nil {
			return nil, err
		}
		return e.CreateElection(ctx, caller, a[0], a[1], n)
	}},
	authz.OpCastVote: {[]string{"election_id", "voter_hash", "candidate_id"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.CastVote(ctx, caller, a[0], a[1], a[2])
	}},
	authz.OpEndElection: {[]string{"election_id"}, func(ctx context.Context, e *ledger.Engine, caller string, a []string) (any, error) {
		return e.EndElection(ctx, caller, a[0])
	}},

	// Reads ignore the caller.
	authz.OpGetSession: {[]string{"session_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.Session(ctx, a[0])
	}},
	authz.OpGetRecord: {[]string{"session_id", "student_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.Attendance(ctx, a[0], a[1])
	}},
	authz.OpListAttendance: {[]string{"session_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.SessionAttendance(ctx, a[0])
	}},
	authz.OpGetCredential: {[]string{"credential_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.Credential(ctx, a[0])
	}},
	authz.OpCheckUsage: {[]string{"credential_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.CheckUsage(ctx, a[0])
	}},
	authz.OpVerifyCert: {[]string{"nft_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.VerifyCertificate(ctx, a[0])
	}},
	authz.OpGetElection: {[]string{"election_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.Election(ctx, a[0])
	}},
	authz.OpGetVote: {[]string{"election_id", "voter_hash"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.Vote(ctx, a[0], a[1])
	}},
	authz.OpTally: {[]string{"election_id"}, func(ctx context.Context, e *ledger.Engine, _ string, a []string) (any, error) {
		return e.Tally(ctx, a[0])
	}},
	authz.OpCounters: {nil, func(ctx context.Context, e *ledger.Engine, _ string, _ []string) (any, error) {
		return e.Counters(ctx)
	}},
	authz.OpAdmin: {nil, func(ctx context.Context, e *ledger.Engine, _ string, _ []string) (any, error) {
		addr, err := e.Admin(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"admin": addr}, nil
	}},
}

// Dispatcher routes positional calls to a ledger engine.
type Dispatcher struct {
	engine *ledger.Engine
}

// New creates a Dispatcher over e.
func New(e *ledger.Engine) *Dispatcher {
	return &Dispatcher{engine: e}
}

// Call runs one positional call on behalf of caller.
//
// call[0] is the operation name; the rest are its arguments. Returns FORMAT
// if the call is empty, the operation unknown or the argument count wrong.
func (d *Dispatcher) Call(ctx context.Context, caller string, call []string) (Result, error) {
	if len(call) == 0 {
		return Result{}, failure.Format("empty call")
	}

	op := authz.Op(call[0])
	cmd, ok := commands[op]
	if !ok {
		return Result{}, failure.Format("unknown operation %q", call[0])
	}

	args := call[1:]
	if len(args) != len(cmd.params) {
		return Result{}, failure.Format("%s takes %d arguments (%s), got %d",
			op, len(cmd.params), strings.Join(cmd.params, ", "), len(args)).WithOp(string(op))
	}

	record, err := cmd.run(ctx, d.engine, caller, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Op: string(op), Record: record}, nil
}

// Ops lists every operation name, sorted.
func Ops() []string {
	ops := make([]string, 0, len(commands))
	for op := range commands {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	return ops
}

// Usage returns the positional signature of op, e.g.
// "end_session <session_id>".
func Usage(op string) (string, bool) {
	cmd, ok := commands[authz.Op(op)]
	if !ok {
		return "", false
	}
	var b strings.Builder
	b.WriteString(op)
	for _, p := range cmd.params {
		fmt.Fprintf(&b, " <%s>", p)
	}
	return b.String(), true
}

// ParseVoterCount parses the decimal voter_count argument.
func ParseVoterCount(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, failure.Format("voter_count %q is not a decimal uint64", s)
	}
	return n, nil
}
