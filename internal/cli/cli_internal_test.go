// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClangBuiltLinux/boot-utils/internal/qemu"
	"github.com/ClangBuiltLinux/boot-utils/internal/uml"
)

func TestParseQemuArgs(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    []string
		expectedErr error
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name:     "single flag",
			input:    "-snapshot",
			expected: []string{"-snapshot"},
		},
		{
			name:     "flags with values",
			input:    "-machine virt -device nvme,drive=d0",
			expected: []string{"-machine", "virt", "-device", "nvme,drive=d0"},
		},
		{
			name:     "quoted value with spaces",
			input:    `-append "console=ttyS0 debug"`,
			expected: []string{"-append", "console=ttyS0 debug"},
		},
		{
			name:        "value without flag",
			input:       "virt -machine",
			expectedErr: ErrDanglingValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := parseQemuArgs(tt.input)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)

			argv, err := qemu.BuildArgumentStrings(args)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, argv)
		})
	}
}

func TestHandleRunError(t *testing.T) {
	var stdout bytes.Buffer

	cfg := IO{Stdout: &stdout}

	t.Run("qemu exit code relayed", func(t *testing.T) {
		err := &qemu.CommandError{Err: errors.New("boom"), ExitCode: 2}
		assert.Equal(t, 2, handleRunError(err, cfg))
	})

	t.Run("uml exit code relayed", func(t *testing.T) {
		err := &uml.CommandError{Err: errors.New("boom"), ExitCode: 3}
		assert.Equal(t, 3, handleRunError(err, cfg))
	})

	t.Run("other errors print and fail", func(t *testing.T) {
		stdout.Reset()

		exitCode := handleRunError(errors.New("no such file"), cfg)

		assert.Equal(t, 1, exitCode)
		assert.Contains(t, stdout.String(), "no such file")
	})
}

func TestRunRequiredFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "qemu without flags", args: []string{"qemu"}},
		{name: "qemu without kernel", args: []string{"qemu", "-a", "arm64"}},
		{name: "uml without kernel", args: []string{"uml"}},
		{name: "unknown architecture", args: []string{
			"qemu", "-a", "sparc", "-k", "."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			cfg := IO{Stdout: &stdout, Stderr: &stderr}

			exitCode := Run(context.Background(), tt.args, cfg)
			assert.Equal(t, 1, exitCode)
		})
	}
}
