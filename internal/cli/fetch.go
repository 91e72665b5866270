// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ClangBuiltLinux/boot-utils/internal/rootfs"
)

type fetchFlags struct {
	tag       string
	imagesDir string
}

func newFetchCommand(cfg IO) *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download published root filesystem images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd.Context(), &flags, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.tag, "tag", "",
		"release tag to download (default: the latest release)")
	fs.StringVar(&flags.imagesDir, "images", "images",
		"directory to download the root filesystem images into")

	return cmd
}

func runFetch(ctx context.Context, flags *fetchFlags, cfg IO) error {
	var client rootfs.Client

	var (
		release *rootfs.Release
		err     error
	)

	if flags.tag == "" {
		release, err = client.LatestRelease(ctx)
	} else {
		release, err = client.ReleaseByTag(ctx, flags.tag)
	}

	if err != nil {
		return err
	}

	printGreen(cfg.Stdout, "Downloading images from release %s...", release.Tag)

	err = client.Fetch(ctx, release, flags.imagesDir)
	if err != nil {
		return err
	}

	printGreen(cfg.Stdout, "Images downloaded to %s", flags.imagesDir)

	return nil
}
