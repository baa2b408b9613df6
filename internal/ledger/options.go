package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/keyspace"
)

// DuplicatePolicy decides what a create does when its key already exists.
type DuplicatePolicy string

const (
	// Reject fails the create with a DUPLICATE error and changes nothing.
	Reject DuplicatePolicy = "reject"
	// Overwrite replaces the record and still increments the counter.
	Overwrite DuplicatePolicy = "overwrite"
)

// Valid reports whether p is a known duplicate policy.
func (p DuplicatePolicy) Valid() bool {
	return p == Reject || p == Overwrite
}

// DefaultDuplicates returns the duplicate policy of every kind.
// Attendance overwrites; every other kind rejects.
func DefaultDuplicates() map[keyspace.Kind]DuplicatePolicy {
	d := make(map[keyspace.Kind]DuplicatePolicy, len(keyspace.All))
	for _, k := range keyspace.All {
		d[k] = Reject
	}
	d[keyspace.KindAttendance] = Overwrite
	return d
}

// Observer receives the outcome of every operation.
// Implemented by metrics.Collector.
type Observer interface {
	ObserveOperation(op authz.Op, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(authz.Op, error, time.Duration) {}

// Option configures an Engine.
type Option func(*Engine) error

// WithClock sets the timestamp source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) error {
		e.clock = c
		return nil
	}
}

// WithIDGenerator sets the journal id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) error {
		e.ids = g
		return nil
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithObserver registers an operation observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) error {
		e.observer = o
		return nil
	}
}

// WithPolicies overrides authorization policies of configurable operations.
func WithPolicies(p map[authz.Op]authz.Policy) Option {
	return func(e *Engine) error {
		gate, err := authz.NewGate(p)
		if err != nil {
			return err
		}
		e.gate = gate
		return nil
	}
}

// WithDuplicates overrides the duplicate policy of individual kinds.
func WithDuplicates(d map[keyspace.Kind]DuplicatePolicy) Option {
	return func(e *Engine) error {
		for kind, p := range d {
			if !kind.Valid() {
				return fmt.Errorf("duplicate policy: unknown kind %d", kind)
			}
			if !p.Valid() {
				return fmt.Errorf("duplicate policy for %s: unknown policy %q", kind, p)
			}
			e.duplicates[kind] = p
		}
		return nil
	}
}

// WithLifecycle toggles parent checks on appends. Default: enabled.
//
// When enabled, record_attendance needs an active session, cast_vote an active
// election and record_usage a valid credential.
func WithLifecycle(enforce bool) Option {
	return func(e *Engine) error {
		e.lifecycle = enforce
		return nil
	}
}
