package manifest

import (
	"fmt"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// Error reports a manifest file that could not be read, parsed or validated.
// It unwraps to a manifest-class *engine.EngineError.
type Error struct {
	// File is the path of the offending manifest file.
	File string

	// Reason describes what is wrong with it.
	Reason string

	cause error
}

// NewError creates a manifest error for file.
func NewError(file, reason string, cause error) *Error {
	return &Error{File: file, Reason: reason, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.File, e.Reason)
}

// Unwrap exposes the classified engine error.
func (e *Error) Unwrap() error {
	return engine.NewManifestError(e.Reason, e.cause).WithDetail("file", e.File)
}
