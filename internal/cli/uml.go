// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ClangBuiltLinux/boot-utils/internal/kernel"
	"github.com/ClangBuiltLinux/boot-utils/internal/rootfs"
	"github.com/ClangBuiltLinux/boot-utils/internal/sys"
	"github.com/ClangBuiltLinux/boot-utils/internal/uml"
)

type umlFlags struct {
	interactive    bool
	kernelLocation string
	imagesDir      string
}

func newUMLCommand(cfg IO) *cobra.Command {
	var flags umlFlags

	cmd := &cobra.Command{
		Use:   "uml",
		Short: "Boot a User-Mode Linux kernel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUML(cmd.Context(), &flags, cfg)
		},
	}

	fs := cmd.Flags()
	fs.BoolVarP(&flags.interactive, "interactive", "i", false,
		"boot into a shell ('init=/bin/sh') instead of shutting down")
	fs.BoolVar(&flags.interactive, "shell", false,
		"alias for --interactive")
	fs.StringVarP(&flags.kernelLocation, "kernel-location", "k", "",
		"path to the UML 'linux' executable or its build directory")
	fs.StringVar(&flags.imagesDir, "images", "images",
		"directory with the root filesystem images")

	_ = fs.MarkHidden("shell")
	_ = cmd.MarkFlagRequired("kernel-location")

	return cmd
}

func runUML(ctx context.Context, flags *umlFlags, cfg IO) error {
	kernelPath, err := kernel.ImagePath(flags.kernelLocation, "linux", "")
	if err != nil {
		return err
	}

	// UML only has images for the host architecture.
	rootfsPath := rootfs.Path(flags.imagesDir, sys.X8664, rootfs.Ext4Name)

	err = rootfs.Decompress(rootfsPath)
	if err != nil {
		return err
	}

	cmd := uml.NewCommand(uml.CommandSpec{
		Kernel:      kernelPath,
		Rootfs:      rootfsPath,
		Interactive: flags.interactive,
	})

	printCommand(cfg.Stdout, cmd)

	err = cmd.Run(ctx, cfg.Stdin, cfg.Stdout, cfg.Stderr)
	if err != nil {
		if errors.Is(err, &uml.CommandError{}) {
			printRed(cfg.Stdout, "ERROR: UML did not exit cleanly!")
		}

		return err
	}

	return nil
}
