// Package command abstracts external process execution for testability.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

//go:generate mockgen -source=runner.go -destination=mock_runner.go -package=command

// Result holds the outcome of one process run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command, feeding it input on stdin.
type Runner interface {
	// RunWithInput executes a command with the given stdin content and
	// returns its output and exit code. A non-zero exit code is not an
	// error; err is non-nil only when the process could not be run to
	// completion (launch failure, context cancellation, timeout).
	RunWithInput(ctx context.Context, stdin string, name string, args ...string) (*Result, error)
}

// processRunner implements Runner over os/exec.
type processRunner struct{}

// NewRunner creates a new process runner.
func NewRunner() Runner {
	return &processRunner{}
}

// RunWithInput executes a command with stdin content.
func (r *processRunner) RunWithInput(ctx context.Context, stdin string, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}

	if err != nil {
		// The context expiring takes precedence: the exit status of a
		// killed process is meaningless.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, err
	}

	return result, nil
}
