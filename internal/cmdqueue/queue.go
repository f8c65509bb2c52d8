// Package cmdqueue batches shell commands and runs them in order.
package cmdqueue

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes one shell command in dir and returns its combined output.
type Runner func(ctx context.Context, dir, command string) ([]byte, error)

// ShellRunner runs command through /bin/sh -c.
func ShellRunner(ctx context.Context, dir, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// CommandError reports the first command that failed.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to execute command: %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Queue is an ordered batch of commands. The zero value is ready to use with ShellRunner.
type Queue struct {
	Dir    string
	Runner Runner

	commands []string
}

// Add appends a command.
func (q *Queue) Add(command string) {
	q.commands = append(q.commands, command)
}

// Len returns the number of pending commands.
func (q *Queue) Len() int { return len(q.commands) }

// Commands returns a copy of the pending commands.
func (q *Queue) Commands() []string {
	return append([]string(nil), q.commands...)
}

// Flush drops all pending commands.
func (q *Queue) Flush() { q.commands = nil }

// ExecuteAll runs every command in order and stops at the first failure, which is returned as a
// *CommandError. The queue is flushed only after all commands succeeded.
func (q *Queue) ExecuteAll(ctx context.Context) error {
	run := q.Runner
	if run == nil {
		run = ShellRunner
	}
	for _, c := range q.commands {
		out, err := run(ctx, q.Dir, c)
		if err != nil {
			return &CommandError{Command: c, Output: string(out), Err: err}
		}
	}
	q.Flush()
	return nil
}
