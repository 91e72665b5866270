// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package rootfs manages the cached Buildroot root filesystem images that
// are handed to the guest as its initial ramdisk or block device.
package rootfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/zstd"

	"github.com/ClangBuiltLinux/boot-utils/internal/sys"
)

// CPIOName is the file name of the initial ramdisk image.
const CPIOName = "rootfs.cpio"

// Ext4Name is the file name of the UML block device image.
const Ext4Name = "rootfs.ext4"

// Alias returns the images directory name for the guest architecture.
// The arm32 flavors share the arm image and the ppc32 flavors the ppc32
// image.
func Alias(arch sys.Arch) string {
	switch {
	case arch.Is32BitARM():
		return "arm"
	case arch == sys.PPC32 || arch == sys.PPC32Mac:
		return "ppc32"
	default:
		return string(arch)
	}
}

// Path returns the path of the decompressed image with the given name for
// the guest architecture.
func Path(imagesDir string, arch sys.Arch, name string) string {
	return filepath.Join(imagesDir, Alias(arch), name)
}

// Decompress recreates the decompressed image from the zstd compressed
// file next to it. A stale decompressed file is always replaced, so guest
// modifications from a previous boot cannot leak into the next one.
func Decompress(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale image: %w", err)
	}

	src, err := os.Open(path + ".zst")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s.zst", ErrImageMissing, path)
		}

		return fmt.Errorf("open compressed image: %w", err)
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("read compressed image: %w", err)
	}
	defer dec.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}

	_, err = io.Copy(dst, dec)
	if err != nil {
		_ = dst.Close()
		_ = os.Remove(path)

		return fmt.Errorf("decompress image: %w", err)
	}

	err = dst.Close()
	if err != nil {
		return fmt.Errorf("close image: %w", err)
	}

	return nil
}

// VerifyCPIO checks that the file at path reads as a cpio archive, which
// guards against serving a truncated or mislabeled download to the guest.
func VerifyCPIO(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	_, err = cpio.NewReader(f).Next()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotCPIO, path, err)
	}

	return nil
}
