package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/campusledger/internal/dispatch"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n",
				event.Step, event.Caller, strings.Join(event.Call, " "), event.Outcome)
		}
	}
	return buf.String()
}

// matches reports whether event ran op with the wanted outcome.
// An empty outcome matches any.
func matches(event TraceEvent, op, outcome string) bool {
	return event.Op() == op && (outcome == "" || event.Outcome == outcome)
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a.Op, a.Outcome) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with outcome %q", a.Op, a.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the given order.
// Intervening steps are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for _, event := range trace {
		if _, seen := positions[event.Op()]; !seen {
			positions[event.Op()] = event.Step
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a.Op, a.Outcome) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("op %s (outcome %q) %d times", a.Op, a.Outcome, a.Count),
			Actual:   fmt.Sprintf("found %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertCounter(result *Result, a Assertion) error {
	got, ok := result.Counters[a.Counter]
	if !ok || got != a.Value {
		actual := "counter not set"
		if ok {
			actual = fmt.Sprintf("%d", got)
		}
		return &AssertionError{
			Type:     AssertCounter,
			Expected: fmt.Sprintf("%s = %d", a.Counter, a.Value),
			Actual:   actual,
		}
	}
	return nil
}

func assertRecord(actx *AssertionContext, a Assertion) error {
	res, err := actx.Dispatcher.Call(actx.Ctx, readCaller, a.Call)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s succeeds", strings.Join(a.Call, " ")),
			Actual:   err.Error(),
		}
	}

	ok, err := matchRecord(res.Record, a.Expect)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record containing %v", a.Expect),
			Actual:   describe(res.Record),
		}
	}
	return nil
}

func assertAbsent(actx *AssertionContext, a Assertion) error {
	res, err := actx.Dispatcher.Call(actx.Ctx, readCaller, a.Call)
	if failure.HasCode(err, failure.CodeNotFound) {
		return nil
	}

	actual := describe(res.Record)
	if err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Expected: fmt.Sprintf("%s fails with %s", strings.Join(a.Call, " "), failure.CodeNotFound),
		Actual:   actual,
	}
}

func assertJournalCount(actx *AssertionContext, a Assertion) error {
	entries, err := actx.Engine.Journal(actx.Ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(entries) != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journal entries", a.Count),
			Actual:   fmt.Sprintf("%d journal entries", len(entries)),
		}
	}
	return nil
}

// matchRecord reports whether record contains every expected field (subset
// match). Both sides are compared in their JSON form, so YAML integers match
// uint64 record fields.
func matchRecord(record any, expected map[string]any) (bool, error) {
	if len(expected) == 0 {
		return true, nil
	}

	var actual map[string]any
	if err := normalize(record, &actual); err != nil {
		return false, fmt.Errorf("record is not an object: %w", err)
	}
	var want map[string]any
	if err := normalize(expected, &want); err != nil {
		return false, fmt.Errorf("normalize expected record: %w", err)
	}

	for key, wantVal := range want {
		actualVal, exists := actual[key]
		if !exists || !reflect.DeepEqual(actualVal, wantVal) {
			return false, nil
		}
	}
	return true, nil
}

func normalize(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func describe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides state access for evaluating assertions.
type AssertionContext struct {
	Ctx        context.Context
	Engine     *ledger.Engine
	Dispatcher *dispatch.Dispatcher
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions (record, absent, journal_count) require actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertCounter:
			err = assertCounter(result, a)
		case AssertRecord, AssertAbsent, AssertJournalCount:
			if actx == nil || actx.Engine == nil || actx.Dispatcher == nil {
				err = fmt.Errorf("assertion[%d]: %s requires ledger context", i, a.Type)
				break
			}
			switch a.Type {
			case AssertRecord:
				err = assertRecord(actx, a)
			case AssertAbsent:
				err = assertAbsent(actx, a)
			default:
				err = assertJournalCount(actx, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
