package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_ReopenKeepsBoxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.db")

	s, err := Open(path)
	require.NoError(t, err)
	putBox(t, s, "session:S1", "v1")
	require.NoError(t, s.Close())

	for i := 0; i < 3; i++ {
		s, err = Open(path)
		require.NoError(t, err, "reopen %d", i)
		require.NoError(t, s.Close())
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM boxes").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/campus.db")
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	putBox(t, s, "cert:N1", "v")
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM boxes").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_txlock=immediate", dsn(":memory:"))
	assert.Equal(t, "file:campus.db?cache=shared&_txlock=immediate", dsn("file:campus.db?cache=shared"))
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())

	s := createTestStore(t)
	assert.NoError(t, s.Close())
	assert.NotPanics(t, func() { _ = s.Close() })
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, value := range want {
		got, err := s.pragma(name)
		require.NoError(t, err, name)
		assert.Equal(t, value, got, name)
	}
}

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"boxes", []string{"key", "value", "created_seq", "updated_seq"}},
		{"globals", []string{"name", "value"}},
		{"counters", []string{"name", "value"}},
		{"journal", []string{"seq", "id", "op", "caller", "key", "digest", "at"}},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Subset(t, columnsOf(t, s, tt.table), tt.columns)
		})
	}
}

func TestSchema_Migrated(t *testing.T) {
	s := createTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'journal' AND name = 'idx_journal_key'",
	).Scan(&name)
	assert.NoError(t, err)
}

func TestSchema_MigratesOldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_journal_key")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestTrigger_BoxesNeverDeleted(t *testing.T) {
	s := createTestStore(t)
	putBox(t, s, "session:S1", "v1")

	_, err := s.db.Exec("DELETE FROM boxes WHERE key = ?", []byte("session:S1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never deleted")
}

func TestTrigger_JournalAppendOnly(t *testing.T) {
	s := createTestStore(t)
	appendEntry(t, s, "session:S1", "start_session")

	_, err := s.db.Exec("UPDATE journal SET op = 'forged'")
	assert.Error(t, err)
	_, err = s.db.Exec("DELETE FROM journal")
	assert.Error(t, err)
}

func columnsOf(t *testing.T, s *Store, table string) []string {
	t.Helper()

	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	return columns
}
