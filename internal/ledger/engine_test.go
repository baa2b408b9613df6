package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
	"github.com/roach88/campusledger/internal/testutil"
)

const (
	admin = "ADMIN"
	other = "MALLORY"
	base  = 1700000000
)

type fixture struct {
	engine *Engine
	store  *store.Store
	clock  *testutil.DeterministicClock
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st := setupTestStore(t)
	clock := testutil.NewDeterministicClock(base)
	all := append([]Option{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	e, err := New(st, all...)
	require.NoError(t, err)
	return &fixture{engine: e, store: st, clock: clock}
}

// newInitialized returns a fixture whose admin is set.
func newInitialized(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	require.NoError(t, f.engine.Init(context.Background(), admin))
	return f
}

func counter(t *testing.T, e *Engine, name string) uint64 {
	t.Helper()
	c, err := e.Counters(context.Background())
	require.NoError(t, err)
	return c[name]
}

func journalLen(t *testing.T, e *Engine) int {
	t.Helper()
	entries, err := e.Journal(context.Background(), 0, 0)
	require.NoError(t, err)
	return len(entries)
}

func assertCode(t *testing.T, err error, code failure.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, failure.CodeOf(err), "error: %v", err)
}

func TestNew_InvalidOptions(t *testing.T) {
	st := setupTestStore(t)

	_, err := New(st, WithPolicies(map[authz.Op]authz.Policy{authz.OpMintCert: authz.PolicyOpen}))
	assert.Error(t, err)

	_, err = New(st, WithDuplicates(map[keyspace.Kind]DuplicatePolicy{keyspace.KindVote: "ignore"}))
	assert.Error(t, err)

	_, err = New(st, WithDuplicates(map[keyspace.Kind]DuplicatePolicy{keyspace.Kind(99): Reject}))
	assert.Error(t, err)
}

func TestDefaultDuplicates(t *testing.T) {
	e := newFixture(t).engine
	for _, k := range keyspace.All {
		want := Reject
		if k == keyspace.KindAttendance {
			want = Overwrite
		}
		assert.Equal(t, want, e.Duplicates(k), k.String())
	}
}

func TestInit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.Init(ctx, admin))

	got, err := f.engine.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, got)

	counters, err := f.engine.Counters(ctx)
	require.NoError(t, err)
	assert.Len(t, counters, len(CounterNames))
	for _, name := range CounterNames {
		assert.Equal(t, uint64(0), counters[name], name)
	}

	entries, err := f.engine.Journal(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "init", entries[0].Op)
	assert.Equal(t, admin, entries[0].Caller)
	assert.Equal(t, store.Digest([]byte(admin)), entries[0].Digest)
}

func TestInit_Twice(t *testing.T) {
	ctx := context.Background()
	f := newInitialized(t)

	err := f.engine.Init(ctx, other)
	assertCode(t, err, failure.CodeAlreadyInitialized)

	got, err := f.engine.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, got, "admin is never rotated")
	assert.Equal(t, 1, journalLen(t, f.engine))
}

func TestInit_EmptyCaller(t *testing.T) {
	f := newFixture(t)
	assertCode(t, f.engine.Init(context.Background(), ""), failure.CodeFormat)
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	e := newFixture(t).engine

	_, err := e.StartSession(ctx, admin, "S1", "CS101", "R1")
	assertCode(t, err, failure.CodeNotInitialized)

	_, err = e.CastVote(ctx, admin, "E1", "V1", "C1")
	assertCode(t, err, failure.CodeNotInitialized)

	_, err = e.Counters(ctx)
	assertCode(t, err, failure.CodeNotInitialized)

	_, err = e.Session(ctx, "S1")
	assertCode(t, err, failure.CodeNotInitialized)
}

func TestRejectionTaggedWithOp(t *testing.T) {
	f := newInitialized(t)

	_, err := f.engine.EndSession(context.Background(), admin, "missing")
	require.Error(t, err)

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "end_session", fe.Op)
	assert.Equal(t, "session:missing", fe.Key)
}

func TestEmptyCaller(t *testing.T) {
	f := newInitialized(t)
	_, err := f.engine.CastVote(context.Background(), "", "E1", "V1", "C1")
	assertCode(t, err, failure.CodeFormat)
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	f := newInitialized(t)

	_, err := f.engine.StartSession(ctx, admin, "S1", "CS101", "R1")
	require.NoError(t, err)

	// Rejected: leaves no entry.
	_, err = f.engine.StartSession(ctx, other, "S2", "CS101", "R1")
	require.Error(t, err)

	_, err = f.engine.EndSession(ctx, admin, "S1")
	require.NoError(t, err)

	entries, err := f.engine.Journal(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, []string{"init", "start_session", "end_session"},
		[]string{entries[0].Op, entries[1].Op, entries[2].Op})
	assert.Equal(t, []string{"entry-1", "entry-2", "entry-3"},
		[]string{entries[0].ID, entries[1].ID, entries[2].ID})
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, uint64(base+i+1), e.At)
	}

	var value []byte
	require.NoError(t, f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		value, err = tx.Get([]byte("session:S1"))
		return err
	}))
	assert.Equal(t, store.Digest(value), entries[2].Digest)

	history, err := f.engine.History(ctx, keyspace.KindSession, "S1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[0].Seq)
	assert.Equal(t, int64(3), history[1].Seq)

	tail, err := f.engine.Journal(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "start_session", tail[0].Op)
}

func TestRejectionConsumesNoTimestamp(t *testing.T) {
	ctx := context.Background()
	f := newInitialized(t)
	before := f.clock.Current()

	_, err := f.engine.MintCert(ctx, other, "N1", "R1", "T", "M")
	require.Error(t, err)
	_, err = f.engine.EndElection(ctx, admin, "missing")
	require.Error(t, err)

	assert.Equal(t, before, f.clock.Current())
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []authz.Op
	bad []authz.Op
}

func (o *recordingObserver) ObserveOperation(op authz.Op, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	if err != nil {
		o.bad = append(o.bad, op)
	}
}

func TestObserver(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	f := newInitialized(t, WithObserver(obs))

	_, err := f.engine.MintCert(ctx, admin, "N1", "R1", "T", "M")
	require.NoError(t, err)
	_, err = f.engine.MintCert(ctx, other, "N2", "R1", "T", "M")
	require.Error(t, err)
	_, err = f.engine.VerifyCertificate(ctx, "N1")
	require.NoError(t, err)

	assert.Equal(t, []authz.Op{authz.OpInit, authz.OpMintCert, authz.OpMintCert, authz.OpVerifyCert}, obs.ops)
	assert.Equal(t, []authz.Op{authz.OpMintCert}, obs.bad)
}

func TestConcurrentVotes_OneWins(t *testing.T) {
	ctx := context.Background()
	f := newInitialized(t)

	_, err := f.engine.CreateElection(ctx, admin, "E1", "T", 10)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.CastVote(ctx, "voter", "E1", "V1", "C1")
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case failure.HasCode(err, failure.CodeDuplicate):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}
