// Package failure defines the coded error type shared by every ledger layer.
//
// A rejected operation always surfaces as a *Error. The Code is stable and
// transport-agnostic; the CLI and HTTP layers map it to exit codes and
// status codes without inspecting messages.
package failure

import (
	"errors"
	"fmt"
)

// Code categorizes a rejection.
type Code string

const (
	// CodeUnauthorized indicates caller != admin on a gated operation.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeNotFound indicates a query or transition on an absent key.
	CodeNotFound Code = "NOT_FOUND"

	// CodeFormat indicates a malformed argument list, identifier or field.
	CodeFormat Code = "FORMAT"

	// CodeShapeMismatch indicates a record decoded with the wrong field count.
	CodeShapeMismatch Code = "SHAPE_MISMATCH"

	// CodeDuplicate indicates a create-if-absent write hit an existing key.
	CodeDuplicate Code = "DUPLICATE"

	// CodeInvalidTransition indicates a status change out of a terminal state,
	// or an append against a parent record that is no longer open.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeNotInitialized indicates an operation ran before init.
	CodeNotInitialized Code = "NOT_INITIALIZED"

	// CodeAlreadyInitialized indicates init ran on a live store.
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
)

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrUnauthorized       = &Error{Code: CodeUnauthorized}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrFormat             = &Error{Code: CodeFormat}
	ErrShapeMismatch      = &Error{Code: CodeShapeMismatch}
	ErrDuplicate          = &Error{Code: CodeDuplicate}
	ErrInvalidTransition  = &Error{Code: CodeInvalidTransition}
	ErrNotInitialized     = &Error{Code: CodeNotInitialized}
	ErrAlreadyInitialized = &Error{Code: CodeAlreadyInitialized}
)

// Error is a rejected operation.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Op is the operation name, when known.
	Op string

	// Key is the storage key involved, when known.
	Key string

	// Err is an underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Op != "" && e.Key != "" {
		msg = fmt.Sprintf("%s (op=%s, key=%s)", msg, e.Op, e.Key)
	} else if e.Op != "" {
		msg = fmt.Sprintf("%s (op=%s)", msg, e.Op)
	} else if e.Key != "" {
		msg = fmt.Sprintf("%s (key=%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithOp returns a copy of e tagged with the operation name.
// An existing Op is preserved.
func (e *Error) WithOp(op string) *Error {
	cp := *e
	if cp.Op == "" {
		cp.Op = op
	}
	return &cp
}

// CodeOf extracts the Code from err. Returns "" if err is not a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err is a *Error with the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Unauthorized creates an authorization rejection for op.
func Unauthorized(op, caller string) *Error {
	return &Error{
		Code:    CodeUnauthorized,
		Message: fmt.Sprintf("caller %q is not the admin", caller),
		Op:      op,
	}
}

// NotFound creates a rejection for an absent key.
func NotFound(key string) *Error {
	return &Error{Code: CodeNotFound, Message: "no record", Key: key}
}

// Format creates a malformed-input rejection.
func Format(format string, args ...any) *Error {
	return &Error{Code: CodeFormat, Message: fmt.Sprintf(format, args...)}
}

// ShapeMismatch creates a field-count rejection.
func ShapeMismatch(want, got int) *Error {
	return &Error{
		Code:    CodeShapeMismatch,
		Message: fmt.Sprintf("expected %d fields, got %d", want, got),
	}
}

// Duplicate creates a rejection for a create-if-absent write on an existing key.
func Duplicate(key string) *Error {
	return &Error{Code: CodeDuplicate, Message: "record already exists", Key: key}
}

// InvalidTransition creates a rejection for a status change that is not allowed.
func InvalidTransition(key, from, to string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot move from %q to %q", from, to),
		Key:     key,
	}
}

// NotInitialized creates the rejection returned before init has run.
func NotInitialized() *Error {
	return &Error{Code: CodeNotInitialized, Message: "store has no admin; run init first"}
}

// AlreadyInitialized creates the rejection returned when init runs twice.
func AlreadyInitialized() *Error {
	return &Error{Code: CodeAlreadyInitialized, Message: "admin is already set"}
}

// Closed creates the rejection for an append against a parent record that has
// left its open state (an ended session or election, a revoked credential).
func Closed(key, status string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("parent record is %s", status),
		Key:     key,
	}
}
