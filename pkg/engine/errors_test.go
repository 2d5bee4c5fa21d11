package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_Classification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
		check func(error) bool
	}{
		{"scan", NewScanError("flatpak list failed", nil), ErrorClassScan, IsScanError},
		{"manifest", NewManifestError("bad json", nil), ErrorClassManifest, IsManifestError},
		{"execution", NewExecutionFailure("install failed", nil), ErrorClassExecution, IsExecutionFailure},
		{"fatal", NewFatalExecutionError("locked", nil), ErrorClassFatal, IsFatal},
		{"permanent", NewPermanentError("misuse", nil), ErrorClassPermanent, IsPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			assert.Equal(t, tt.class, ClassOf(wrapped))
			assert.True(t, tt.check(wrapped))
		})
	}
}

func TestEngineError_Message(t *testing.T) {
	err := NewExecutionFailure("install failed", errors.New("exit status 1")).
		WithSubsystem("system").
		WithTarget("package:htop")

	assert.Equal(t, "[execution] install failed (subsystem=system, target=package:htop): exit status 1", err.Error())
	assert.Equal(t, "exit status 1", errors.Unwrap(err).Error())
}

func TestEngineError_IsMatchesClassAndCode(t *testing.T) {
	err := fmt.Errorf("dispatch %q: %w", "snap", ErrUnknownSubsystem)

	assert.ErrorIs(t, err, ErrUnknownSubsystem)
	assert.NotErrorIs(t, err, ErrPlanConsumed)
	assert.Empty(t, ErrUnknownSubsystem.Subsystem)
}

func TestAsEngineError(t *testing.T) {
	assert.Nil(t, AsEngineError(nil))

	plain := AsEngineError(errors.New("boom"))
	assert.Equal(t, ErrorClassExecution, plain.Class)

	fatal := NewFatalExecutionError("disk full", nil)
	assert.Same(t, fatal, AsEngineError(fmt.Errorf("wrapped: %w", fatal)))
}

func TestVerb(t *testing.T) {
	assert.True(t, VerbRemove.IsDestructive())
	assert.True(t, VerbReset.IsDestructive())
	assert.False(t, VerbInstall.IsDestructive())
	assert.True(t, VerbTrack.IsManifestMutation())
	assert.NoError(t, VerbRegenerate.Validate())
	assert.Error(t, Verb("purge").Validate())
}
