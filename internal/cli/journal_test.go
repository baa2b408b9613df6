package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/campusledger/internal/store"
)

func TestJournal(t *testing.T) {
	db := initDB(t)
	_, err := execute(t, "--db", db, "--caller", "ADMIN", "call", "start_session", "S1", "CS101", "R1")
	require.NoError(t, err)
	_, err = execute(t, "--db", db, "--caller", "MALLORY", "call", "end_session", "S1")
	require.Error(t, err)
	_, err = execute(t, "--db", db, "--caller", "ADMIN", "call", "end_session", "S1")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Journal ===")
	assert.Contains(t, out, "[1] init")
	assert.Contains(t, out, "start_session")
	assert.Contains(t, out, "session:S1")

	out, err = execute(t, "--db", db, "--format", "json", "journal", "--after", "1", "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Status string               `json:"status"`
		Data   []store.JournalEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(2), resp.Data[0].Seq)
	assert.Equal(t, "start_session", resp.Data[0].Op)
	assert.Equal(t, "ADMIN", resp.Data[0].Caller)
	assert.Len(t, resp.Data[0].Digest, 64)
}

func TestJournal_Empty(t *testing.T) {
	out, err := execute(t, "--db", newDB(t), "journal")
	require.NoError(t, err)
	assert.Equal(t, "No journal entries.\n", out)
}

func TestJournal_NegativeLimit(t *testing.T) {
	_, err := execute(t, "--db", newDB(t), "journal", "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJournal_RecordHistory(t *testing.T) {
	db := initDB(t)
	_, err := execute(t, "--db", db, "--caller", "ADMIN", "call", "start_session", "S1", "CS101", "R1")
	require.NoError(t, err)
	_, err = execute(t, "--db", db, "--caller", "ADMIN", "call", "start_session", "S2", "CS102", "R2")
	require.NoError(t, err)
	_, err = execute(t, "--db", db, "--caller", "ADMIN", "call", "end_session", "S1")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "--format", "json", "journal", "session", "S1")
	require.NoError(t, err)

	var resp struct {
		Data []store.JournalEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "start_session", resp.Data[0].Op)
	assert.Equal(t, "end_session", resp.Data[1].Op)
	assert.Equal(t, "session:S1", resp.Data[1].Key)

	out, err = execute(t, "--db", db, "--format", "json", "journal", "--after", "2", "session", "S1")
	require.NoError(t, err)
	resp.Data = nil
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "end_session", resp.Data[0].Op)

	out, err = execute(t, "--db", db, "--format", "json", "journal", "--limit", "1", "session", "S1")
	require.NoError(t, err)
	resp.Data = nil
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "start_session", resp.Data[0].Op)

	_, err = execute(t, "--db", db, "journal", "diploma", "D1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
