package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CommandRunner runs a command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError describes a command that exited unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code carried by err, or -1 if err is not a CommandError.
func ExitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	// Timeout bounds each command. Zero means no limit beyond ctx.
	Timeout time.Duration

	// Env is appended to the inherited environment.
	Env []string

	Logger zerolog.Logger
}

// Run executes name with args.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.Logger.Debug().
		Str("command", name).
		Strs("args", args).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("Command finished")

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.String(), &CommandError{
			Command:  strings.TrimSpace(name + " " + strings.Join(args, " ")),
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// sudoRunner prefixes every command with sudo.
type sudoRunner struct {
	next CommandRunner
}

// WithSudo wraps r so every command runs through sudo.
func WithSudo(r CommandRunner) CommandRunner {
	return &sudoRunner{next: r}
}

func (s *sudoRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return s.next.Run(ctx, "sudo", append([]string{name}, args...)...)
}

// lines splits output into trimmed, non-empty lines.
func lines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
