package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"attendance_lifecycle", "mint_cert_authorization"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "tiny",
		Trace: []TraceEvent{
			{Step: 1, Caller: "A", Call: []string{"counters"}, Outcome: "NOT_INITIALIZED"},
		},
	}

	data, err := snapshot.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"scenario_name": "tiny",
		"trace": [{"step": 1, "caller": "A", "call": ["counters"], "outcome": "NOT_INITIALIZED"}]
	}`, string(data))
	assert.NotContains(t, string(data), "record")
	assert.NotContains(t, string(data), "counters\":")
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "mint_cert_authorization.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "mint_cert_authorization", result))
}
