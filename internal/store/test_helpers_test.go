package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// putBox writes a box in its own transaction.
func putBox(t *testing.T, s *Store, key, value string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.Put([]byte(key), []byte(value), 1)
	})
	if err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

// appendEntry appends a journal entry for key at the next seq.
func appendEntry(t *testing.T, s *Store, key, op string) JournalEntry {
	t.Helper()
	var entry JournalEntry
	err := s.Update(context.Background(), func(tx *Tx) error {
		seq, err := tx.NextSeq()
		if err != nil {
			return err
		}
		entry = JournalEntry{
			Seq:    seq,
			ID:     fmt.Sprintf("entry-%d", seq),
			Op:     op,
			Caller: "A",
			Key:    key,
			Digest: Digest([]byte(key)),
			At:     uint64(1700000000 + seq),
		}
		return tx.Append(entry)
	})
	if err != nil {
		t.Fatalf("Append(%q) failed: %v", key, err)
	}
	return entry
}
