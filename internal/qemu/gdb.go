// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"time"

	"github.com/fatih/color"
)

// Fixed port of QEMU's gdbserver stub ("-s").
const gdbPort = "1234"

const gdbPortProbeTimeout = 100 * time.Millisecond

// RunGDB repeatedly boots the QEMU command with the gdbserver stub
// listening on port 1234 and attaches GDB against the vmlinux symbols,
// until the user declines another round.
//
// The QEMU command must have been built with [CommandSpec.GDB] set.
func RunGDB(
	ctx context.Context,
	cmd *Command,
	gdbBin string,
	vmlinux string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) error {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	gdbPath, err := exec.LookPath(gdbBin)
	if err != nil {
		return fmt.Errorf("find GDB executable: %w", err)
	}

	prompt := bufio.NewScanner(stdin)

	for {
		if gdbPortInUse() {
			return ErrGDBPortInUse
		}

		green.Fprintf(stdout,
			"\nStarting QEMU with GDB connection on port %s...\n", gdbPort)

		qemu := cmd.execCmd(ctx, nil, stdout, stderr)

		err := qemu.Start()
		if err != nil {
			return fmt.Errorf("start QEMU: %w", err)
		}

		green.Fprintln(stdout, "\nStarting GDB...")

		gdb := exec.CommandContext(
			ctx, gdbPath, vmlinux, "-ex", "target remote :"+gdbPort,
		)
		gdb.Stdin = stdin
		gdb.Stdout = stdout
		gdb.Stderr = stderr

		// GDB failing or detaching both lead back to the rerun prompt, so
		// its exit code is not interesting.
		_ = gdb.Run()

		red.Fprintln(stdout, "\nKilling QEMU...")

		_ = qemu.Process.Kill()
		_ = qemu.Wait()

		fmt.Fprint(stdout, "Re-run QEMU + gdb? [y/n] ")

		if !prompt.Scan() || prompt.Text() == "n" || prompt.Text() == "N" {
			return nil
		}
	}
}

func gdbPortInUse() bool {
	conn, err := net.DialTimeout(
		"tcp", net.JoinHostPort("localhost", gdbPort), gdbPortProbeTimeout,
	)
	if err != nil {
		return false
	}

	_ = conn.Close()

	return true
}
