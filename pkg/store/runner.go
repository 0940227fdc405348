package store

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CodeNotFound is the exit code reported when the executable could not be
// started, following the shell convention.
const CodeNotFound = 127

// Result is the outcome of one external process invocation.
type Result struct {
	Code   int
	Stdout string
	Stderr string
	// NotFound is set when the process could not be started at all.
	NotFound bool
}

// Runner invokes external executables. Backends depend on this interface so
// tests can substitute canned results.
type Runner interface {
	// Run executes argv[0] with the remaining arguments. A nil stdin leaves
	// the child's standard input closed.
	Run(ctx context.Context, stdin []byte, argv ...string) Result
}

// ExecRunner runs real processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, stdin []byte, argv ...string) Result {
	if len(argv) == 0 {
		return Result{Code: CodeNotFound, Stderr: "empty command", NotFound: true}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.Code = exitErr.ExitCode()
		if res.Code < 0 {
			// killed by a signal or the context
			res.Code = 1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
		return res
	}

	// Start failed: missing binary, permission denied and the like.
	return Result{Code: CodeNotFound, Stderr: err.Error(), NotFound: true}
}
