package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
)

// Counter names.
const (
	CounterSessions    = "total_sessions"
	CounterRecords     = "total_records"
	CounterCerts       = "total_certs"
	CounterElections   = "total_elections"
	CounterCredentials = "total_creds"
	CounterUsages      = "total_usages"
)

// CounterNames lists every counter init zeroes.
var CounterNames = []string{
	CounterSessions, CounterRecords, CounterCerts,
	CounterElections, CounterCredentials, CounterUsages,
}

// globalAdmin is the globals row holding the admin address.
const globalAdmin = "admin"

// Engine is the ledger state machine over a box store.
//
// Thread-safety: Engine is safe for concurrent use. Writes serialize on the
// store's single connection; each operation is one transaction.
type Engine struct {
	store      *store.Store
	gate       *authz.Gate
	duplicates map[keyspace.Kind]DuplicatePolicy
	lifecycle  bool
	clock      Clock
	ids        IDGenerator
	logger     *slog.Logger
	observer   Observer
}

// New creates an Engine over st.
//
// Returns an error if an option carries an invalid policy.
func New(st *store.Store, opts ...Option) (*Engine, error) {
	gate, err := authz.NewGate(nil)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:      st,
		gate:       gate,
		duplicates: DefaultDuplicates(),
		lifecycle:  true,
		clock:      SystemClock{},
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
		observer:   nopObserver{},
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Duplicates returns the effective duplicate policy of kind.
func (e *Engine) Duplicates(kind keyspace.Kind) DuplicatePolicy {
	return e.duplicates[kind]
}

// Policy returns the effective authorization policy of op.
func (e *Engine) Policy(op authz.Op) authz.Policy {
	return e.gate.Policy(op)
}

// Init sets caller as admin and zeroes every counter.
//
// Returns ALREADY_INITIALIZED if an admin is already set.
func (e *Engine) Init(ctx context.Context, caller string) error {
	start := time.Now()
	var seq int64

	err := checkCaller(caller)
	if err == nil {
		err = e.store.Update(ctx, func(tx *store.Tx) error {
			if _, ok, err := tx.Global(globalAdmin); err != nil {
				return err
			} else if ok {
				return failure.AlreadyInitialized()
			}

			if err := tx.SetGlobal(globalAdmin, []byte(caller)); err != nil {
				return err
			}
			for _, name := range CounterNames {
				if err := tx.SetCounter(name, 0); err != nil {
					return err
				}
			}

			var err error
			seq, err = tx.NextSeq()
			if err != nil {
				return err
			}
			return tx.Append(store.JournalEntry{
				Seq:    seq,
				ID:     e.ids.Generate(),
				Op:     string(authz.OpInit),
				Caller: caller,
				Key:    globalAdmin,
				Digest: store.Digest([]byte(caller)),
				At:     e.clock.Now(),
			})
		})
	}

	return e.finish(authz.OpInit, caller, []byte(globalAdmin), seq, err, start)
}

// Admin returns the admin address.
func (e *Engine) Admin(ctx context.Context) (string, error) {
	var admin string
	err := e.read(ctx, authz.OpAdmin, func(tx *store.Tx) error {
		var err error
		admin, err = loadAdmin(tx)
		return err
	})
	return admin, err
}

// Counters returns every counter by name.
func (e *Engine) Counters(ctx context.Context) (map[string]uint64, error) {
	var counters map[string]uint64
	err := e.read(ctx, authz.OpCounters, func(tx *store.Tx) error {
		var err error
		counters, err = tx.Counters()
		return err
	})
	return counters, err
}

// Journal returns up to limit committed mutations after seq, oldest first.
func (e *Engine) Journal(ctx context.Context, after int64, limit int) ([]store.JournalEntry, error) {
	return e.store.ReadJournal(ctx, after, limit)
}

// History returns every committed mutation of one record, oldest first.
func (e *Engine) History(ctx context.Context, kind keyspace.Kind, parts ...string) ([]store.JournalEntry, error) {
	key, err := keyspace.Build(kind, parts...)
	if err != nil {
		return nil, err
	}
	return e.store.History(ctx, key)
}

// mutation is the single record write an operation commits.
type mutation struct {
	kind keyspace.Kind
	key  []byte

	// create marks a write subject to the kind's duplicate policy.
	create bool

	// counter is incremented on commit. Empty for none.
	counter string

	// encode renders the record stamped with the commit timestamp.
	encode func(now uint64) ([]byte, error)
}

// apply runs a mutating operation in one transaction.
//
// prepare validates arguments and reads preconditions; it runs after the
// authorization gate. The clock advances only once the write is certain to
// be attempted, so rejected operations consume no timestamp.
func (e *Engine) apply(ctx context.Context, op authz.Op, caller string, prepare func(*store.Tx) (*mutation, error)) error {
	start := time.Now()
	var key []byte
	var seq int64

	err := checkCaller(caller)
	if err == nil {
		err = e.store.Update(ctx, func(tx *store.Tx) error {
			admin, err := loadAdmin(tx)
			if err != nil {
				return err
			}
			if err := e.gate.Check(op, admin, caller); err != nil {
				return err
			}

			m, err := prepare(tx)
			if err != nil {
				return err
			}
			key = m.key

			seq, err = e.commit(tx, op, caller, m)
			return err
		})
	}

	return e.finish(op, caller, key, seq, err, start)
}

// commit writes m, bumps its counter and journals the write. Under the reject
// policy a create uses a conditional insert, so a key that appears between the
// presence check and the write still yields DUPLICATE.
func (e *Engine) commit(tx *store.Tx, op authz.Op, caller string, m *mutation) (int64, error) {
	reject := m.create && e.duplicates[m.kind] == Reject
	if reject {
		exists, err := tx.Has(m.key)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, failure.Duplicate(string(m.key))
		}
	}

	now := e.clock.Now()
	value, err := m.encode(now)
	if err != nil {
		return 0, err
	}

	seq, err := tx.NextSeq()
	if err != nil {
		return 0, err
	}

	if reject {
		inserted, err := tx.Insert(m.key, value, seq)
		if err != nil {
			return 0, err
		}
		if !inserted {
			return 0, failure.Duplicate(string(m.key))
		}
	} else if err := tx.Put(m.key, value, seq); err != nil {
		return 0, err
	}

	if m.counter != "" {
		if _, err := tx.Increment(m.counter); err != nil {
			return 0, err
		}
	}

	err = tx.Append(store.JournalEntry{
		Seq:    seq,
		ID:     e.ids.Generate(),
		Op:     string(op),
		Caller: caller,
		Key:    string(m.key),
		Digest: store.Digest(value),
		At:     now,
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// read runs a query in a read-only transaction.
func (e *Engine) read(ctx context.Context, op authz.Op, fn func(*store.Tx) error) error {
	start := time.Now()
	err := e.store.View(ctx, func(tx *store.Tx) error {
		if _, err := loadAdmin(tx); err != nil {
			return err
		}
		return fn(tx)
	})
	err = tagOp(err, op)
	e.observer.ObserveOperation(op, err, time.Since(start))
	return err
}

// finish logs and observes a mutation's outcome.
func (e *Engine) finish(op authz.Op, caller string, key []byte, seq int64, err error, start time.Time) error {
	err = tagOp(err, op)
	e.observer.ObserveOperation(op, err, time.Since(start))

	switch code := failure.CodeOf(err); {
	case err == nil:
		e.logger.Debug("committed", "op", op, "caller", caller, "key", string(key), "seq", seq)
	case code != "":
		e.logger.Info("rejected", "op", op, "code", code, "error", err)
	default:
		e.logger.Error("operation failed", "op", op, "error", err)
	}
	return err
}

// loadAdmin returns the admin address, or NOT_INITIALIZED before init.
func loadAdmin(tx *store.Tx) (string, error) {
	admin, ok, err := tx.Global(globalAdmin)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", failure.NotInitialized()
	}
	return string(admin), nil
}

// checkCaller rejects an empty caller with FORMAT.
func checkCaller(caller string) error {
	if caller == "" {
		return failure.Format("caller is empty")
	}
	return nil
}

// tagOp stamps a rejection with the operation name.
func tagOp(err error, op authz.Op) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return fe.WithOp(string(op))
	}
	return err
}

// load reads and decodes the record under key.
func load[T any](tx *store.Tx, key []byte, decode func([]byte) (T, error)) (T, error) {
	var zero T
	buf, err := tx.Get(key)
	if err != nil {
		return zero, err
	}
	rec, err := decode(buf)
	if err != nil {
		return zero, decodeError(key, err)
	}
	return rec, nil
}
