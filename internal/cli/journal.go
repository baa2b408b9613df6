package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	After int64
	Limit int
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal [<kind> <id...>]",
		Short: "List committed mutations",
		Long: `List the append-only journal of committed mutations, oldest first.

Each entry names the operation, caller and key, and carries the SHA-256
digest of the value written. Rejected operations leave no entry. Given a
record kind and identifier parts, only that record's entries are listed.

Examples:
  campusledger journal
  campusledger journal session S1
  campusledger journal --after 10 --limit 5 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd, opts, args)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries with a greater sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 for all)")

	return cmd
}

func runJournal(cmd *cobra.Command, opts *JournalOptions, args []string) error {
	if opts.Limit < 0 || opts.After < 0 {
		return NewExitError(ExitCommandError, "--after and --limit must be non-negative")
	}

	env, err := openLedger(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	out := opts.formatter(cmd)
	var entries []store.JournalEntry
	if len(args) > 0 {
		kind, ok := keyspace.ParseKind(args[0])
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", args[0]))
		}
		entries, err = env.engine.History(cmd.Context(), kind, args[1:]...)
		entries = window(entries, opts.After, opts.Limit)
	} else {
		entries, err = env.engine.Journal(cmd.Context(), opts.After, opts.Limit)
	}
	if err != nil {
		return out.Reject(err)
	}

	if opts.Format == "json" {
		if entries == nil {
			entries = []store.JournalEntry{}
		}
		return out.Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return nil
	}

	fmt.Fprintln(w, "=== Journal ===")
	for _, e := range entries {
		fmt.Fprintf(w, "  [%d] %s %s by %s at %d\n", e.Seq, e.Op, e.Key, e.Caller, e.At)
		if opts.Verbose {
			fmt.Fprintf(w, "       ID: %s\n", e.ID)
			fmt.Fprintf(w, "       Digest: %s\n", e.Digest)
		} else {
			fmt.Fprintf(w, "       Digest: %s\n", shortDigest(e.Digest))
		}
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// window keeps entries past seq after, at most limit of them when limit > 0.
func window(entries []store.JournalEntry, after int64, limit int) []store.JournalEntry {
	var out []store.JournalEntry
	for _, e := range entries {
		if e.Seq <= after {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}
