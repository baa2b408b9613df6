package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/campusledger/internal/dispatch"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/ledger"
	"github.com/roach88/campusledger/internal/store"
	"github.com/roach88/campusledger/internal/testutil"
)

// BaseTime is the clock base of every scenario. The first committed write is
// stamped BaseTime+1.
const BaseTime = 1700000000

// readCaller is the caller used for assertion reads. Reads ignore it.
const readCaller = "harness"

// Harness is the test execution engine for one scenario.
type Harness struct {
	engine     *ledger.Engine
	dispatcher *dispatch.Dispatcher
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// A rejected step is recorded in the trace, not returned; only storage
// failures and invalid scenario configuration are returned as errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock(BaseTime)
	opts := []ledger.Option{
		ledger.WithClock(clock),
		ledger.WithIDGenerator(testutil.NewSequenceIDGenerator("entry")),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.Config != nil {
		extra, err := scenario.Config.LedgerOptions()
		if err != nil {
			return nil, fmt.Errorf("scenario config: %w", err)
		}
		opts = append(opts, extra...)
	}

	eng, err := ledger.New(st, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	h := &Harness{
		engine:     eng,
		dispatcher: dispatch.New(eng),
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	counters, err := eng.Counters(ctx)
	switch {
	case err == nil:
		result.Counters = counters
	case !failure.HasCode(err, failure.CodeNotInitialized):
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Engine: eng, Dispatcher: h.dispatcher}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps runs every step and checks its expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		event := TraceEvent{
			Step:   i + 1,
			Caller: step.Caller,
			Call:   step.Call,
		}

		res, err := h.dispatcher.Call(ctx, step.Caller, step.Call)
		switch code := failure.CodeOf(err); {
		case err == nil:
			event.Outcome = OutcomeOK
			event.Record = res.Record
		case code != "":
			event.Outcome = string(code)
		default:
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		result.AddTrace(event)

		if step.Expect != nil {
			if msg := checkExpect(event, step.Expect); msg != "" {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, event.Op(), msg))
			}
		}
	}
	return nil
}

// checkExpect returns a description of the mismatch, or "" if event
// satisfies expect.
func checkExpect(event TraceEvent, expect *Expect) string {
	want := OutcomeOK
	if expect.Error != "" {
		want = expect.Error
	}
	if event.Outcome != want {
		return fmt.Sprintf("expected outcome %s, got %s", want, event.Outcome)
	}

	if want == OutcomeOK && len(expect.Record) > 0 {
		ok, err := matchRecord(event.Record, expect.Record)
		if err != nil {
			return err.Error()
		}
		if !ok {
			return fmt.Sprintf("record %s does not contain %v", describe(event.Record), expect.Record)
		}
	}
	return ""
}
