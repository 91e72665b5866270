// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ClangBuiltLinux/boot-utils/internal/buildroot"
)

// GitHub repository the image releases are published to.
const imagesRepo = "ClangBuiltLinux/boot-utils"

type rebuildFlags struct {
	arches     []string
	rootDir    string
	editConfig bool
	release    bool
}

func newRebuildCommand(cfg IO) *cobra.Command {
	var flags rebuildFlags

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the root filesystem images with Buildroot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRebuild(cmd.Context(), &flags, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringSliceVarP(&flags.arches, "architectures", "a",
		buildroot.SupportedArches,
		"architectures to build images for")
	fs.StringVar(&flags.rootDir, "buildroot-folder", "buildroot",
		"directory with the Buildroot defconfigs and patches")
	fs.BoolVarP(&flags.editConfig, "edit-config", "e", false,
		"edit the configuration and run savedefconfig on the result")
	fs.BoolVarP(&flags.release, "release", "r", false,
		"create a GitHub release with the built images")

	return cmd
}

func runRebuild(ctx context.Context, flags *rebuildFlags, cfg IO) error {
	arches := flags.arches
	if slices.Contains(arches, "all") {
		arches = buildroot.SupportedArches
	}

	builder := &buildroot.Builder{
		RootDir: flags.rootDir,
		SrcDir:  filepath.Join(flags.rootDir, "src"),
		OutDir:  filepath.Join(flags.rootDir, "out"),
		Stdout:  cfg.Stdout,
		Stderr:  cfg.Stderr,
	}

	printGreen(cfg.Stdout, "Preparing Buildroot %s...", buildroot.Version)

	err := builder.DownloadSource(ctx)
	if err != nil {
		return err
	}

	for _, arch := range arches {
		printGreen(cfg.Stdout, "Building %s images...", arch)

		err := builder.Build(ctx, arch, flags.editConfig)
		if err != nil {
			return err
		}
	}

	if flags.release {
		tag := buildroot.ReleaseTag()

		printGreen(cfg.Stdout, "Creating release %s...", tag)

		err := builder.Release(ctx, imagesRepo, tag)
		if err != nil {
			return err
		}
	}

	return nil
}
