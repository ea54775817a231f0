package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// CommandResult is what an external process left behind
type CommandResult struct {
	ExitCode int
	Output   string
}

// Success reports a zero exit code
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner runs an external program. An error means the program could
// not be run at all; a non-zero exit is reported through ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec, combining stdout and stderr
type ExecRunner struct{}

// Run implements CommandRunner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return CommandResult{Output: out.String()}, nil
	case errors.As(err, &exitErr):
		return CommandResult{ExitCode: exitErr.ExitCode(), Output: out.String()}, nil
	default:
		return CommandResult{ExitCode: -1, Output: out.String()}, fmt.Errorf("run %s: %w", name, err)
	}
}
