// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import "errors"

var (
	// ErrNotADirectory is returned when the shared folder does not exist
	// or is not a directory.
	ErrNotADirectory = errors.New("shared folder is not a directory")

	// ErrDanglingValue is returned when extra QEMU arguments start with a
	// value instead of a flag.
	ErrDanglingValue = errors.New("extra QEMU argument value without a flag")
)
