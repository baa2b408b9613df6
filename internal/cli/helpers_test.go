package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// newDB returns a database path inside a temp dir.
func newDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "campus.db")
}

// initDB creates an initialized database whose admin is ADMIN.
func initDB(t *testing.T) string {
	t.Helper()
	db := newDB(t)
	_, err := execute(t, "--db", db, "--caller", "ADMIN", "init")
	require.NoError(t, err)
	return db
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}
