package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/campusledger/internal/config"
)

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name: "minimal",
		Steps: []Step{
			{Caller: "ADMIN", Call: []string{"init"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Op: "init", Outcome: OutcomeOK},
			{Type: AssertJournalCount, Count: 1},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, 1, result.Trace[0].Step)
	assert.Equal(t, OutcomeOK, result.Trace[0].Outcome)
	assert.Equal(t, map[string]string{"admin": "ADMIN"}, result.Trace[0].Record)
	assert.Len(t, result.Counters, 6)
}

func TestRun_RejectedStepRecorded(t *testing.T) {
	scenario := &Scenario{
		Name: "rejected",
		Steps: []Step{
			{Caller: "ADMIN", Call: []string{"init"}},
			{Caller: "MALLORY", Call: []string{"end_session", "S1"}, Expect: &Expect{Error: "UNAUTHORIZED"}},
			{Caller: "ADMIN", Call: []string{"end_session", "S1"}, Expect: &Expect{Error: "NOT_FOUND"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "UNAUTHORIZED", result.Trace[1].Outcome)
	assert.Nil(t, result.Trace[1].Record)
	assert.Equal(t, "NOT_FOUND", result.Trace[2].Outcome)
}

func TestRun_BeforeInit(t *testing.T) {
	scenario := &Scenario{
		Name: "uninitialized",
		Steps: []Step{
			{Caller: "ADMIN", Call: []string{"counters"}, Expect: &Expect{Error: "NOT_INITIALIZED"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Counters)
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := &Scenario{
		Name: "mismatch",
		Steps: []Step{
			{Caller: "ADMIN", Call: []string{"init"}},
			{Caller: "ADMIN", Call: []string{"start_session", "S1", "CS101", "R1"}, Expect: &Expect{Error: "DUPLICATE"}},
			{Caller: "ADMIN", Call: []string{"get_session", "S1"}, Expect: &Expect{Record: map[string]any{"room": "R9"}}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected outcome DUPLICATE, got ok")
	assert.Contains(t, result.Errors[1], "does not contain")
}

func TestRun_Config(t *testing.T) {
	lenient := false
	scenario := &Scenario{
		Name:   "config",
		Config: &config.Config{EnforceLifecycle: &lenient},
		Steps: []Step{
			{Caller: "ADMIN", Call: []string{"init"}},
			{Caller: "st-1", Call: []string{"record_attendance", "S9", "st-1", "h", "present"}, Expect: &Expect{}},
		},
		Assertions: []Assertion{
			{Type: AssertCounter, Counter: "total_records", Value: 1},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidConfig(t *testing.T) {
	scenario := &Scenario{
		Name:   "bad_config",
		Config: &config.Config{Policies: map[string]string{"mint_cert": "open"}},
		Steps:  []Step{{Caller: "ADMIN", Call: []string{"init"}}},
	}

	_, err := Run(context.Background(), scenario)
	assert.Error(t, err)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "election_tally.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
