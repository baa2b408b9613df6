package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/dispatch"
	"github.com/roach88/campusledger/internal/keyspace"
)

// getOps maps a record kind to the read operation that fetches it.
var getOps = map[keyspace.Kind]authz.Op{
	keyspace.KindSession:     authz.OpGetSession,
	keyspace.KindAttendance:  authz.OpGetRecord,
	keyspace.KindCertificate: authz.OpVerifyCert,
	keyspace.KindElection:    authz.OpGetElection,
	keyspace.KindVote:        authz.OpGetVote,
	keyspace.KindCredential:  authz.OpGetCredential,
	keyspace.KindUsage:       authz.OpCheckUsage,
}

// runCall dispatches one positional call and prints its record.
func runCall(cmd *cobra.Command, opts *RootOptions, call []string) error {
	env, err := openLedger(cmd, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	out := opts.formatter(cmd)
	res, err := dispatch.New(env.engine).Call(cmd.Context(), opts.Caller, call)
	if err != nil {
		return out.Reject(err)
	}
	return out.Success(res.Record)
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Set the caller as admin and zero every counter",
		Long: `Initialize a new store. The --caller address becomes the admin; it is
never rotated. Running init on an initialized store fails with
ALREADY_INITIALIZED.

Example:
  campusledger --db campus.db --caller ADMIN init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, []string{string(authz.OpInit)})
		},
	}
}

// NewCallCommand creates the call command.
func NewCallCommand(opts *RootOptions) *cobra.Command {
	var usage strings.Builder
	for _, op := range dispatch.Ops() {
		u, _ := dispatch.Usage(op)
		fmt.Fprintf(&usage, "  %s\n", u)
	}

	return &cobra.Command{
		Use:   "call <op> [args...]",
		Short: "Run one positional operation",
		Long: `Run one operation on behalf of --caller. Arguments are positional.

Operations:
` + usage.String() + `
Examples:
  campusledger --caller ADMIN call start_session S1 CS101 R-12
  campusledger --caller st-9 call record_attendance S1 st-9 3f9a present`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, args)
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id...>",
		Short: "Read one record",
		Long: `Read one record by kind and identifier parts.

Kinds: session, attendance <session_id> <student_id>, certificate,
election, vote <election_id> <voter_hash>, credential, usage.

Example:
  campusledger get attendance S1 st-9`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := keyspace.ParseKind(args[0])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", args[0]))
			}
			call := append([]string{string(getOps[kind])}, args[1:]...)
			return runCall(cmd, opts, call)
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "attendance <session_id>",
		Short: "List every attendance record of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, []string{string(authz.OpListAttendance), args[0]})
		},
	})
	return cmd
}

// NewTallyCommand creates the tally command.
func NewTallyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tally <election_id>",
		Short: "Count the votes of an election per candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, []string{string(authz.OpTally), args[0]})
		},
	}
}

// NewCountersCommand creates the counters command.
func NewCountersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counters",
		Short: "Show every counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, []string{string(authz.OpCounters)})
		},
	}
}
