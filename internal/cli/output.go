package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/roach88/campusledger/internal/failure"
)

// CLIResponse is the envelope of every --format json result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a rejected call in a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// Success writes data.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	return writeText(f.Writer, data)
}

// Reject writes err and returns the reported ExitError to end the command with.
// Coded ledger rejections exit with ExitFailure. Anything else is reported
// as INTERNAL and exits with ExitCommandError.
func (f *OutputFormatter) Reject(err error) error {
	code, exit := string(failure.CodeOf(err)), ExitFailure
	if code == "" {
		code, exit = "INTERNAL", ExitCommandError
	}

	var details any
	var fe *failure.Error
	if errors.As(err, &fe) && (fe.Op != "" || fe.Key != "") {
		details = map[string]string{"op": fe.Op, "key": fe.Key}
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: err.Error(), Details: details}}
		if werr := json.NewEncoder(f.Writer).Encode(resp); werr != nil {
			return werr
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, err.Error())
		if f.Verbose && details != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", details)
		}
	}
	return &ExitError{Code: exit, Message: code, Err: err, Reported: true}
}

// VerboseLog writes a diagnostic line when Verbose is set. It never goes to
// Writer when ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// writeText renders a record as "field: value" lines in field-name order.
// Lists are rendered item by item, separated by a blank line.
func writeText(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch val := v.(type) {
	case map[string]any:
		writeFields(w, val)
	case []any:
		if len(val) == 0 {
			fmt.Fprintln(w, "(none)")
		}
		for i, item := range val {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if m, ok := item.(map[string]any); ok {
				writeFields(w, m)
			} else {
				fmt.Fprintln(w, scalar(item))
			}
		}
	default:
		fmt.Fprintln(w, scalar(val))
	}
	return nil
}

func writeFields(w io.Writer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, scalar(m[k]))
	}
}

// scalar formats one value. Nested objects print as compact JSON.
func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case map[string]any, []any:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
