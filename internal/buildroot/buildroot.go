// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package buildroot rebuilds the root filesystem images from Buildroot
// and packages them for release.
package buildroot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Version is the Buildroot release the images are built from.
const Version = "2023.02.2"

// SupportedArches lists the architectures with a defconfig. loongarch
// has a rootfs image although the boot commands do not support it yet.
var SupportedArches = []string{
	"arm64",
	"arm64be",
	"arm",
	"loongarch",
	"m68k",
	"mips",
	"mipsel",
	"ppc32",
	"ppc64",
	"ppc64le",
	"riscv",
	"s390",
	"x86",
	"x86_64",
}

// ReleaseTag returns the tag used for a new images release.
func ReleaseTag() string {
	return time.Now().UTC().Format("20060102-150405")
}

// Builder drives Buildroot in SrcDir using the defconfigs and patches
// from RootDir and collects compressed images in OutDir.
type Builder struct {
	// Directory holding the per-arch defconfigs, local patches, the
	// tarball and its sha256 file.
	RootDir string

	// Extracted Buildroot source tree.
	SrcDir string

	// Destination for the packaged .zst images.
	OutDir string

	// Parallel make jobs. Defaults to the number of host CPUs.
	Jobs int

	Stdout io.Writer
	Stderr io.Writer
}

func (b *Builder) jobs() int {
	if b.Jobs > 0 {
		return b.Jobs
	}

	return runtime.NumCPU()
}

func (b *Builder) configPath(arch string) (string, error) {
	if !slices.Contains(SupportedArches, arch) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArch, arch)
	}

	return filepath.Join(b.RootDir, arch+".config"), nil
}

func (b *Builder) make(ctx context.Context, target string, env ...string) error {
	args := []string{fmt.Sprintf("-j%d", b.jobs())}
	if target != "" {
		args = append(args, target)
	}

	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = b.SrcDir
	// Extend the environment instead of replacing it so make still
	// finds the toolchain via PATH.
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	err := cmd.Run()
	if err != nil {
		if target == "" {
			target = "all"
		}

		return fmt.Errorf("make %s: %w", target, err)
	}

	return nil
}

// Build runs a full Buildroot build for arch and packages the resulting
// images into OutDir. With editConfig the Buildroot menuconfig is opened
// after defconfig and the result written back via savedefconfig.
func (b *Builder) Build(ctx context.Context, arch string, editConfig bool) error {
	config, err := b.configPath(arch)
	if err != nil {
		return err
	}

	err = b.make(ctx, "clean")
	if err != nil {
		return err
	}

	err = b.make(ctx, "defconfig", "BR2_DEFCONFIG="+config)
	if err != nil {
		return err
	}

	if editConfig {
		err = b.make(ctx, "menuconfig")
		if err != nil {
			return err
		}

		err = b.make(ctx, "savedefconfig", "BR2_DEFCONFIG="+config)
		if err != nil {
			return err
		}
	}

	err = b.make(ctx, "")
	if err != nil {
		return err
	}

	return b.packageImages(arch)
}

func (b *Builder) packageImages(arch string) error {
	images := []string{filepath.Join(b.SrcDir, "output", "images", "rootfs.cpio")}
	// x86_64 additionally gets an ext4 image for UML.
	if arch == "x86_64" {
		images = append(images, filepath.Join(b.SrcDir, "output", "images", "rootfs.ext4"))
	}

	err := os.MkdirAll(b.OutDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, image := range images {
		target := filepath.Join(b.OutDir,
			arch+"-"+filepath.Base(image)+".zst")

		err := compressImage(image, target)
		if err != nil {
			return err
		}

		slog.Debug("Packaged image", slog.String("path", target))
	}

	return nil
}

func compressImage(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrImageMissing, source)
		}

		return fmt.Errorf("open image: %w", err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create compressed image: %w", err)
	}

	enc, err := zstd.NewWriter(out,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("initialize zstd writer: %w", err)
	}

	_, err = io.Copy(enc, in)
	if err != nil {
		_ = enc.Close()
		_ = out.Close()
		_ = os.Remove(target)

		return fmt.Errorf("compress image: %w", err)
	}

	err = enc.Close()
	if err != nil {
		_ = out.Close()
		_ = os.Remove(target)

		return fmt.Errorf("finalize compressed image: %w", err)
	}

	return out.Close()
}

// Release uploads everything in OutDir as a new GitHub release using the
// gh CLI.
func (b *Builder) Release(ctx context.Context, repo, tag string) error {
	gh, err := exec.LookPath("gh")
	if err != nil {
		return fmt.Errorf("find GitHub CLI: %w", err)
	}

	entries, err := os.ReadDir(b.OutDir)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}

	args := []string{"-R", repo, "release", "create", "--generate-notes", tag}
	for _, entry := range entries {
		args = append(args, filepath.Join(b.OutDir, entry.Name()))
	}

	cmd := exec.CommandContext(ctx, gh, args...)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("create release: %w", err)
	}

	return nil
}
