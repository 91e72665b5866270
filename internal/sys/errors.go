// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package sys

import "errors"

var (
	// ErrArchNotSupported is returned for architectures outside of [All].
	ErrArchNotSupported = errors.New("architecture not supported")

	// ErrKVMUnavailable is returned when /dev/kvm cannot be opened.
	ErrKVMUnavailable = errors.New("KVM not available")
)
