// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package kernel

import "errors"

var (
	// ErrImageNotFound is returned when no kernel image exists at any of
	// the conventional locations.
	ErrImageNotFound = errors.New("kernel image not found")

	// ErrKernelArchRequired is returned when an image is expected in the
	// arch/ directory but no Kbuild architecture was given.
	ErrKernelArchRequired = errors.New("kernel architecture required for image in arch/ directory")

	// ErrDTBNotFound is returned when a required device tree blob is
	// missing.
	ErrDTBNotFound = errors.New("device tree blob not found")

	// ErrVersionNotFound is returned when the kernel image does not
	// contain a recognizable "Linux version" banner.
	ErrVersionNotFound = errors.New("Linux version string not found in kernel image")
)
