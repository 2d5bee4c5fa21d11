package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a plan execution.
type RunStatus string

const (
	// RunStatusSucceeded indicates every operation succeeded.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates no operation succeeded, or a fatal error stopped the run.
	RunStatusFailed RunStatus = "failed"

	// RunStatusPartial indicates some operations succeeded and some failed or were skipped.
	RunStatusPartial RunStatus = "partial"

	// RunStatusEmpty indicates there was nothing to execute.
	RunStatusEmpty RunStatus = "empty"
)

// IsSuccess returns true if the run finished without failures.
func (s RunStatus) IsSuccess() bool {
	return s == RunStatusSucceeded || s == RunStatusEmpty
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusPartial, RunStatusEmpty:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// Verb is the kind of change an operation performs.
type Verb string

const (
	// VerbInstall installs an item declared in the manifest but absent from the system.
	VerbInstall Verb = "install"

	// VerbRemove removes an untracked item from the system.
	VerbRemove Verb = "remove"

	// VerbEnable enables an item that exists but is disabled.
	VerbEnable Verb = "enable"

	// VerbDisable disables an item that exists but is enabled.
	VerbDisable Verb = "disable"

	// VerbSet writes a scalar value.
	VerbSet Verb = "set"

	// VerbReset restores a scalar value to its default.
	VerbReset Verb = "reset"

	// VerbAddRepo registers a third-party repository, remote or tap.
	VerbAddRepo Verb = "add-repo"

	// VerbRegenerate rebuilds derived state from the manifest in full.
	VerbRegenerate Verb = "regenerate"

	// VerbTrack records a live item in the user manifest.
	VerbTrack Verb = "track"

	// VerbWriteManifest writes the user manifest layer back to disk.
	VerbWriteManifest Verb = "write-manifest"
)

// IsDestructive returns true if the verb removes or resets live state.
func (v Verb) IsDestructive() bool {
	return v == VerbRemove || v == VerbReset || v == VerbDisable
}

// IsManifestMutation returns true if the verb changes the user manifest rather than the system.
func (v Verb) IsManifestMutation() bool {
	return v == VerbTrack || v == VerbWriteManifest
}

// Validate checks if the verb is valid.
func (v Verb) Validate() error {
	switch v {
	case VerbInstall, VerbRemove, VerbEnable, VerbDisable, VerbSet, VerbReset,
		VerbAddRepo, VerbRegenerate, VerbTrack, VerbWriteManifest:
		return nil
	default:
		return fmt.Errorf("invalid verb: %s", v)
	}
}

// OperationStatus represents the lifecycle state of one operation.
//
// An operation moves Planned -> Describing -> Executing -> {Succeeded, Failed, Skipped}.
// Nothing is terminal until execution completes or is declined.
type OperationStatus string

const (
	// OperationStatusPlanned indicates the operation has been produced by planning.
	OperationStatusPlanned OperationStatus = "planned"

	// OperationStatusDescribing indicates the operation is being shown for review.
	OperationStatusDescribing OperationStatus = "describing"

	// OperationStatusExecuting indicates the operation is running.
	OperationStatusExecuting OperationStatus = "executing"

	// OperationStatusSucceeded indicates the operation completed successfully.
	OperationStatusSucceeded OperationStatus = "succeeded"

	// OperationStatusFailed indicates the operation failed.
	OperationStatusFailed OperationStatus = "failed"

	// OperationStatusSkipped indicates the operation never ran, because a fatal
	// error stopped the plan or its precondition no longer held.
	OperationStatusSkipped OperationStatus = "skipped"
)

// IsTerminal returns true if the status represents a final state.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusSucceeded || s == OperationStatusFailed ||
		s == OperationStatusSkipped
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case OperationStatusPlanned, OperationStatusDescribing, OperationStatusExecuting,
		OperationStatusSucceeded, OperationStatusFailed, OperationStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *OperationStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = OperationStatus(str)
	return s.Validate()
}
