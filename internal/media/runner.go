package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandResult is one external process execution response.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
	// RunStream invokes onLine for every stdout line as it arrives. Used for
	// progress reporting during long downloads.
	RunStream(ctx context.Context, onLine func(string), name string, args ...string) (CommandResult, error)
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner { return &execRunner{} }

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return finish(stdout.String(), stderr.String(), err)
}

func (r *execRunner) RunStream(ctx context.Context, onLine func(string), name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return CommandResult{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1}, err
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stdout.WriteString(line)
		stdout.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}

	err = cmd.Wait()
	return finish(stdout.String(), stderr.String(), err)
}

func finish(stdout, stderr string, err error) (CommandResult, error) {
	result := CommandResult{Stdout: stdout, Stderr: stderr, ExitCode: 0}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}
