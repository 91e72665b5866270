// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"errors"
	"strconv"
)

var (
	// ErrArgumentCollision is returned when two [Argument]s cannot be part
	// of the same command line.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrVersionUnknown is returned when the QEMU version output cannot be
	// parsed.
	ErrVersionUnknown = errors.New("QEMU version could not be parsed")

	// ErrGDBPortInUse is returned when the gdbserver port is already
	// bound, most likely by another QEMU instance.
	ErrGDBPortInUse = errors.New("GDB port is already in use, is QEMU running?")
)

// CommandError wraps a failed QEMU (or GDB) process execution and carries
// the exit code of the child process.
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
