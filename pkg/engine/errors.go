// Package engine provides the core types and contracts for the hostsync reconciliation engine.
// It defines the diff -> plan -> execute pipeline shared by every subsystem.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for propagation policy.
type ErrorClass string

const (
	// ErrorClassScan indicates a live-state query failed.
	// It isolates to one subsystem and never aborts a composite operation.
	ErrorClassScan ErrorClass = "scan"

	// ErrorClassManifest indicates a manifest could not be read, parsed or validated.
	// It aborts the affected subsystem's plan.
	ErrorClassManifest ErrorClass = "manifest"

	// ErrorClassExecution indicates a single operation failed during execute.
	// It is recorded in the report and does not stop the remaining operations.
	ErrorClassExecution ErrorClass = "execution"

	// ErrorClassFatal indicates a state-corrupting failure during execute,
	// such as the manifest write-back failing. Remaining operations are skipped.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassPermanent indicates a non-recoverable programming or input error.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Subsystem is the subsystem the error belongs to, if applicable.
	Subsystem string `json:"subsystem,omitempty"`

	// Target is the resource identity that caused the error, if applicable.
	Target string `json:"target,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Subsystem != "" && e.Target != "":
		msg = fmt.Sprintf("%s (subsystem=%s, target=%s)", msg, e.Subsystem, e.Target)
	case e.Subsystem != "":
		msg = fmt.Sprintf("%s (subsystem=%s)", msg, e.Subsystem)
	case e.Target != "":
		msg = fmt.Sprintf("%s (target=%s)", msg, e.Target)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewScanError creates a new scan error.
func NewScanError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassScan,
		Message: message,
		Code:    ErrCodeScanFailed,
		Err:     err,
	}
}

// NewManifestError creates a new manifest error.
func NewManifestError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassManifest,
		Message: message,
		Code:    ErrCodeManifestInvalid,
		Err:     err,
	}
}

// NewExecutionFailure creates a new per-operation execution failure.
func NewExecutionFailure(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassExecution,
		Message: message,
		Code:    ErrCodeOperationFailed,
		Err:     err,
	}
}

// NewFatalExecutionError creates a new fatal execution error.
func NewFatalExecutionError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassFatal,
		Message: message,
		Code:    ErrCodeFatal,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithSubsystem adds subsystem context to an error.
func (e *EngineError) WithSubsystem(subsystem string) *EngineError {
	e.Subsystem = subsystem
	return e
}

// WithTarget adds target identity context to an error.
func (e *EngineError) WithTarget(target string) *EngineError {
	e.Target = target
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of the first EngineError in the chain, or "" if there is none.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsScanError returns true if the error is classified as a scan failure.
func IsScanError(err error) bool {
	return ClassOf(err) == ErrorClassScan
}

// IsManifestError returns true if the error is classified as a manifest failure.
func IsManifestError(err error) bool {
	return ClassOf(err) == ErrorClassManifest
}

// IsExecutionFailure returns true if the error is a non-fatal per-operation failure.
func IsExecutionFailure(err error) bool {
	return ClassOf(err) == ErrorClassExecution
}

// IsFatal returns true if the error must abort the remaining operations of a plan.
func IsFatal(err error) bool {
	return ClassOf(err) == ErrorClassFatal
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	return ClassOf(err) == ErrorClassPermanent
}

// AsEngineError converts any error into an EngineError. Errors that are already
// classified are returned as-is; anything else becomes an execution failure.
func AsEngineError(err error) *EngineError {
	if err == nil {
		return nil
	}
	var e *EngineError
	if errors.As(err, &e) {
		return e
	}
	return NewExecutionFailure("operation failed", err)
}

// ErrUnknownSubsystem is returned by dispatch sites that receive a subsystem outside the roster.
var ErrUnknownSubsystem = NewPermanentError("unknown subsystem", nil).WithCode(ErrCodeUnknownSubsystem)

// ErrPlanConsumed is returned when a plan is executed a second time.
var ErrPlanConsumed = NewPermanentError("plan already executed; re-plan before executing again", nil).
	WithCode(ErrCodePlanConsumed)

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeScanFailed       = "SCAN_FAILED"
	ErrCodeManifestInvalid  = "MANIFEST_INVALID"
	ErrCodeManifestWrite    = "MANIFEST_WRITE_FAILED"
	ErrCodeOperationFailed  = "OPERATION_FAILED"
	ErrCodePrecondition     = "PRECONDITION_FAILED"
	ErrCodeFatal            = "FATAL"
	ErrCodePolicyDenied     = "POLICY_DENIED"
	ErrCodePlanConsumed     = "PLAN_CONSUMED"
	ErrCodeUnknownSubsystem = "UNKNOWN_SUBSYSTEM"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
