package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/campusledger/internal/failure"
)

// Box is a stored record with its write positions.
type Box struct {
	Key        []byte
	Value      []byte
	CreatedSeq int64
	UpdatedSeq int64
}

// JournalEntry is one committed mutation.
type JournalEntry struct {
	Seq    int64  `json:"seq"`
	ID     string `json:"id"`
	Op     string `json:"op"`
	Caller string `json:"caller"`
	Key    string `json:"key"`
	Digest string `json:"digest"`
	At     uint64 `json:"at"`
}

// Get returns the value stored under key.
// Returns a failure.NotFound error if key is absent.
func (t *Tx) Get(key []byte) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM boxes WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, failure.NotFound(string(key))
	}
	if err != nil {
		return nil, fmt.Errorf("get box: %w", err)
	}
	return value, nil
}

// Has reports whether key is present.
func (t *Tx) Has(key []byte) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM boxes WHERE key = ?`, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check box: %w", err)
	}
	return count > 0, nil
}

// Scan returns every box whose key starts with prefix, ordered by key bytes.
// Returns an empty slice (not nil) if nothing matches.
func (t *Tx) Scan(prefix []byte) ([]Box, error) {
	var rows *sql.Rows
	var err error

	if end := prefixEnd(prefix); end != nil {
		rows, err = t.tx.QueryContext(t.ctx, `
			SELECT key, value, created_seq, updated_seq
			FROM boxes
			WHERE key >= ? AND key < ?
			ORDER BY key ASC
		`, prefix, end)
	} else {
		rows, err = t.tx.QueryContext(t.ctx, `
			SELECT key, value, created_seq, updated_seq
			FROM boxes
			WHERE key >= ?
			ORDER BY key ASC
		`, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("scan boxes: %w", err)
	}
	defer rows.Close()

	boxes := []Box{}
	for rows.Next() {
		var b Box
		if err := rows.Scan(&b.Key, &b.Value, &b.CreatedSeq, &b.UpdatedSeq); err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		boxes = append(boxes, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boxes: %w", err)
	}
	return boxes, nil
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if no such key exists (prefix is empty or all 0xff).
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Global returns a store-level scalar and whether it is set.
func (t *Tx) Global(name string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM globals WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get global %s: %w", name, err)
	}
	return value, true, nil
}

// Counter returns a counter's value. Absent counters read as 0.
func (t *Tx) Counter(name string) (uint64, error) {
	var v int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	return uint64(v), nil
}

// Counters returns every counter by name.
func (t *Tx) Counters() (map[string]uint64, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT name, value FROM counters ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	counters := map[string]uint64{}
	for rows.Next() {
		var name string
		var v int64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		counters[name] = uint64(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return counters, nil
}

// ReadJournal returns up to limit journal entries with seq > after, ordered by
// seq ascending. A limit <= 0 returns every remaining entry.
func (s *Store) ReadJournal(ctx context.Context, after int64, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, op, caller, key, digest, at
		FROM journal
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	return scanJournal(rows)
}

// History returns every journal entry for key, ordered by seq ascending.
func (s *Store) History(ctx context.Context, key []byte) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, op, caller, key, digest, at
		FROM journal
		WHERE key = ?
		ORDER BY seq ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanJournal(rows)
}

// scanJournal reads every remaining journal row. The caller closes rows.
func scanJournal(rows *sql.Rows) ([]JournalEntry, error) {
	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var key []byte
		var at int64
		if err := rows.Scan(&e.Seq, &e.ID, &e.Op, &e.Caller, &key, &e.Digest, &at); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Key = string(key)
		e.At = uint64(at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
