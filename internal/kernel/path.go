// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package kernel locates kernel build artifacts by the conventions of
// Kbuild and TuxMake build trees: the kernel image itself, the build
// configuration and device tree blobs.
package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImagePath resolves the full path to a kernel image.
//
// If location is a file, it is used directly. Uncompressed vmlinux and UML
// "linux" executables live in the root of the build directory. All other
// image names are expected in the architecture's boot directory
// (arch/<karch>/boot).
func ImagePath(location, image, karch string) (string, error) {
	info, err := os.Stat(location)
	if err == nil && !info.IsDir() {
		return filepath.Abs(location)
	}

	var path string

	switch image {
	case "vmlinux", "linux":
		path = filepath.Join(location, image)
	default:
		if karch == "" {
			return "", fmt.Errorf("%w: %s", ErrKernelArchRequired, image)
		}

		path = filepath.Join(location, "arch", karch, "boot", image)
	}

	_, err = os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrImageNotFound, path)
	}

	return filepath.Abs(path)
}

// DTBPath locates the device tree blob with the given name next to the
// kernel image. Kernel build trees keep blobs in a dts directory below the
// boot directory, TuxMake trees in a dtbs directory next to the image.
func DTBPath(kernelPath, name string) (string, error) {
	dtbDir := "dtbs"
	if strings.Contains(kernelPath, "boot") {
		dtbDir = "dts"
	}

	path := filepath.Join(filepath.Dir(kernelPath), dtbDir, name)

	_, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDTBNotFound, path)
	}

	return path, nil
}
