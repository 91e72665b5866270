// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package rootfs

import "errors"

var (
	// ErrImageMissing is returned when the compressed rootfs image does
	// not exist in the images directory.
	ErrImageMissing = errors.New("compressed rootfs image missing, fetch or build images first")

	// ErrNotCPIO is returned when a rootfs image does not read as a cpio
	// archive.
	ErrNotCPIO = errors.New("rootfs image is not a cpio archive")

	// ErrNoAssets is returned when a release does not carry any rootfs
	// image assets.
	ErrNoAssets = errors.New("release has no rootfs image assets")

	// ErrUnexpectedStatus is returned on non-200 HTTP responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)
