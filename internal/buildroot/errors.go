// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package buildroot

import "errors"

var (
	// ErrUnsupportedArch is returned for architectures without a
	// Buildroot defconfig in the root directory.
	ErrUnsupportedArch = errors.New("no Buildroot configuration for architecture")

	// ErrChecksumMismatch is returned when the downloaded tarball does
	// not match its recorded sha256 sum.
	ErrChecksumMismatch = errors.New("tarball checksum mismatch")

	// ErrImageMissing is returned when a build finishes without
	// producing the expected rootfs image.
	ErrImageMissing = errors.New("rootfs image not found, did the build error?")

	// ErrPatchFailed is returned when a local patch does not apply to
	// the Buildroot source tree.
	ErrPatchFailed = errors.New("patch did not apply, does it need to be updated?")

	// ErrUnsafePath is returned for tarball entries that would escape
	// the extraction directory.
	ErrUnsafePath = errors.New("tarball entry escapes extraction directory")
)
