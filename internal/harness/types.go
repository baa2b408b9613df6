package harness

// Outcome of an accepted step.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step   int      `json:"step"`
	Caller string   `json:"caller"`
	Call   []string `json:"call"`

	// Outcome is OutcomeOK or the rejection code.
	Outcome string `json:"outcome"`

	// Record is the written or read record of an accepted step.
	Record any `json:"record,omitempty"`
}

// Op returns the operation name of the step.
func (e TraceEvent) Op() string {
	if len(e.Call) == 0 {
		return ""
	}
	return e.Call[0]
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Counters is the final counter state. Nil if init never succeeded.
	Counters map[string]uint64 `json:"counters,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
