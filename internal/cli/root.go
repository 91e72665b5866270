// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package cli implements the boot command line interface.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ClangBuiltLinux/boot-utils/internal/qemu"
	"github.com/ClangBuiltLinux/boot-utils/internal/uml"
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func setupLogging(writer io.Writer, debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		writer,
		&slog.HandlerOptions{
			Level: level,
		},
	)))
}

func newRootCommand(cfg IO) *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "boot",
		Short: "Boot Linux kernels in QEMU or UML against Buildroot images",

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(cfg.Stderr, debug)
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false,
		"print debug information")

	root.AddCommand(
		newQemuCommand(cfg),
		newUMLCommand(cfg),
		newFetchCommand(cfg),
		newRebuildCommand(cfg),
	)

	return root
}

func handleRunError(err error, cfg IO) int {
	// Guest failures are already reported with a colored message, just
	// relay the exit code.
	var qemuErr *qemu.CommandError
	if errors.As(err, &qemuErr) {
		return qemuErr.ExitCode
	}

	var umlErr *uml.CommandError
	if errors.As(err, &umlErr) {
		return umlErr.ExitCode
	}

	printRed(cfg.Stdout, "ERROR: %v", err)

	return 1
}

// Run is the main entry point for the boot command.
func Run(ctx context.Context, args []string, cfg IO) int {
	root := newRootCommand(cfg)
	root.SetArgs(args)
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		return handleRunError(err, cfg)
	}

	return 0
}
