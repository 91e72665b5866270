// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package uml runs User-Mode Linux kernels, which are host executables
// instead of machine images and need no emulator.
package uml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/kballard/go-shellquote"
)

// CommandSpec defines the parameters for a UML [Command].
type CommandSpec struct {
	// Path to the UML "linux" executable.
	Kernel string

	// Path to the decompressed ext4 root filesystem image, attached as
	// the first UML block device.
	Rootfs string

	// Boot into a shell instead of the regular init.
	Interactive bool
}

func (s *CommandSpec) arguments() []string {
	args := []string{"ubd0=" + s.Rootfs}

	if s.Interactive {
		args = append(args, "init=/bin/sh")
	}

	return args
}

// Command is a ready-to-run UML invocation.
type Command struct {
	path string
	args []string
}

// NewCommand compiles the UML command line.
func NewCommand(spec CommandSpec) *Command {
	return &Command{
		path: spec.Kernel,
		args: spec.arguments(),
	}
}

// String returns the command as a copy-pastable shell line.
func (c *Command) String() string {
	return shellquote.Join(append([]string{c.path}, c.args...)...)
}

// Run executes the UML kernel connected to the given stdio and blocks
// until it terminates. A non-zero exit code is reported as a
// [CommandError] carrying that code.
func (c *Command) Run(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) error {
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{Err: err, ExitCode: exitErr.ExitCode()}
		}

		return fmt.Errorf("run UML kernel: %w", err)
	}

	return nil
}

// CommandError wraps a failed UML process execution and carries the exit
// code of the child process.
type CommandError struct {
	Err      error
	ExitCode int
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	return "exit code " + strconv.Itoa(e.ExitCode) + ": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
