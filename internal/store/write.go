package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a single store transaction handed to Update and View callbacks.
// A Tx must not be used after its callback returns.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Put writes value under key, replacing any existing value.
// created_seq is kept from the first write; updated_seq moves to seq.
func (t *Tx) Put(key, value []byte, seq int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO boxes (key, value, created_seq, updated_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_seq = excluded.updated_seq
	`, key, value, seq, seq)
	if err != nil {
		return fmt.Errorf("put box: %w", err)
	}
	return nil
}

// Insert writes value under key only if key is absent.
// Returns inserted=false, with no change made, if key already exists.
func (t *Tx) Insert(key, value []byte, seq int64) (inserted bool, err error) {
	result, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO boxes (key, value, created_seq, updated_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, value, seq, seq)
	if err != nil {
		return false, fmt.Errorf("insert box: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert box: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// SetGlobal writes a store-level scalar.
func (t *Tx) SetGlobal(name string, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO globals (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return fmt.Errorf("set global %s: %w", name, err)
	}
	return nil
}

// SetCounter sets a counter to v, creating it if needed.
func (t *Tx) SetCounter(name string, v uint64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, int64(v))
	if err != nil {
		return fmt.Errorf("set counter %s: %w", name, err)
	}
	return nil
}

// Increment adds 1 to a counter, creating it at 1 if absent, and returns the
// new value.
func (t *Tx) Increment(name string) (uint64, error) {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`, name)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return t.Counter(name)
}

// NextSeq returns the seq the next journal entry will carry.
func (t *Tx) NextSeq() (int64, error) {
	var seq int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM journal`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

// Append adds an entry to the journal. The entry's Seq must come from NextSeq
// in the same transaction.
func (t *Tx) Append(e JournalEntry) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO journal (seq, id, op, caller, key, digest, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.ID,
		e.Op,
		e.Caller,
		[]byte(e.Key),
		e.Digest,
		int64(e.At),
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
