// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package qemu assembles and runs QEMU command lines for booting Linux
// kernels against prepared root filesystem images.
package qemu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// CommandSpec defines the parameters for a [Command]. The static
// per-architecture parts come from [PlatformFor], the rest from user input
// and host probing.
type CommandSpec struct {
	// Name of or path to the qemu-system binary.
	Executable string

	// Path to the kernel image to boot.
	Kernel string

	// Path to the decompressed root filesystem archive.
	Initrd string

	// Values for -machine.
	Machine []string

	// CPU type. Empty means QEMU's default for the machine type.
	CPU string

	// Memory for the guest, in QEMU notation ("512m", "2G").
	Memory string

	// Path to the device tree blob, if the machine needs one.
	DTB string

	// Kernel command line.
	Append []string

	// Enable KVM acceleration.
	UseKVM bool

	// Number of guest CPUs. Zero means leave it to QEMU.
	SMP int

	// Additional arguments, both from the architecture table and from the
	// user. They are checked against the essential arguments for
	// collisions.
	ExtraArgs []Argument

	// Start the guest with QEMU's gdbserver stub listening and the CPU
	// halted instead of attaching the console to stdio.
	GDB bool
}

// arguments compiles the argument list for the QEMU command.
func (s *CommandSpec) arguments() []Argument {
	var args []Argument

	for _, machine := range s.Machine {
		args = append(args, RepeatableArg("machine", machine))
	}

	if s.CPU != "" {
		args = append(args, UniqueArg("cpu", s.CPU))
	}

	args = append(args, s.ExtraArgs...)

	args = append(args, UniqueArg("kernel", s.Kernel))

	if s.DTB != "" {
		args = append(args, UniqueArg("dtb", s.DTB))
	}

	if len(s.Append) > 0 {
		args = append(args, UniqueArg("append", strings.Join(s.Append, " ")))
	}

	if s.UseKVM {
		args = append(args, UniqueArg("enable-kvm"))
	}

	if s.SMP > 0 {
		args = append(args, UniqueArg("smp", strconv.Itoa(s.SMP)))
	}

	args = append(args,
		UniqueArg("display", "none"),
		UniqueArg("initrd", s.Initrd),
		UniqueArg("m", s.Memory),
		UniqueArg("nodefaults"),
		UniqueArg("no-reboot"),
	)

	if s.GDB {
		args = append(args, UniqueArg("s"), UniqueArg("S"))
	} else {
		// Multiplex the QEMU monitor onto the serial console.
		args = append(args, RepeatableArg("serial", "mon:stdio"))
	}

	return args
}

// Command is a ready-to-run QEMU invocation.
type Command struct {
	path string
	args []string
}

// NewCommand resolves the executable in PATH and compiles the argument
// list. It returns an error if the executable cannot be found or the
// argument list violates uniqueness constraints.
func NewCommand(spec CommandSpec) (*Command, error) {
	path, err := exec.LookPath(spec.Executable)
	if err != nil {
		return nil, fmt.Errorf("find QEMU executable: %w", err)
	}

	args, err := BuildArgumentStrings(spec.arguments())
	if err != nil {
		return nil, err
	}

	return &Command{
		path: path,
		args: args,
	}, nil
}

// Path returns the resolved path of the QEMU executable.
func (c *Command) Path() string {
	return c.path
}

// Args returns a copy of the compiled argument strings.
func (c *Command) Args() []string {
	return slices.Clone(c.args)
}

// String returns the command as a copy-pastable shell line. The executable
// is printed as its base name, the way it would be typed with PATH lookup.
func (c *Command) String() string {
	return shellquote.Join(
		append([]string{filepath.Base(c.path)}, c.args...)...,
	)
}

func (c *Command) execCmd(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	return cmd
}

// Run executes the command connected to the given stdio and blocks until
// it terminates. A non-zero QEMU exit code is reported as a
// [CommandError] carrying that code.
func (c *Command) Run(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) error {
	err := c.execCmd(ctx, stdin, stdout, stderr).Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{Err: err, ExitCode: exitErr.ExitCode()}
		}

		return fmt.Errorf("run %s: %w", filepath.Base(c.path), err)
	}

	return nil
}
