// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package qemu_test

import (
	"testing"

	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClangBuiltLinux/boot-utils/internal/qemu"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{
			name:     "upstream",
			line:     "QEMU emulator version 8.0.2",
			expected: "8.0.2",
		},
		{
			name:     "debian",
			line:     "QEMU emulator version 7.2.11 (Debian 1:7.2+dfsg-7+deb12u5)",
			expected: "7.2.11",
		},
		{
			name:     "development build",
			line:     "QEMU emulator version 8.2.50 (v8.2.0-1088-g0436c55)",
			expected: "8.2.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ver, err := qemu.ParseVersion(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ver.String())
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := qemu.ParseVersion("not a version line")
		require.ErrorIs(t, err, qemu.ErrVersionUnknown)
	})
}

func TestNeedsLinuxVersion(t *testing.T) {
	mustVersion := func(s string) *version.Version {
		return version.Must(version.NewVersion(s))
	}

	assert.False(t, qemu.NeedsLinuxVersion(mustVersion("6.2.0")))
	assert.True(t, qemu.NeedsLinuxVersion(mustVersion("6.2.50")))
	assert.True(t, qemu.NeedsLinuxVersion(mustVersion("8.0.2")))
}

func TestTuneARM64CPU(t *testing.T) {
	mustVersion := func(s string) *version.Version {
		return version.Must(version.NewVersion(s))
	}

	tests := []struct {
		name     string
		qemuVer  string
		linuxVer string
		expected string
	}{
		{
			name:     "recent qemu and kernel",
			qemuVer:  "8.0.2",
			linuxVer: "6.4.0",
			expected: "max,pauth-impdef=true",
		},
		{
			name:     "kernel without vhe",
			qemuVer:  "8.0.2",
			linuxVer: "4.14.320",
			expected: "cortex-a72",
		},
		{
			name:     "kernel without lpa2",
			qemuVer:  "8.0.2",
			linuxVer: "5.4.250",
			expected: "max,lpa2=off,pauth-impdef=true",
		},
		{
			name:     "qemu not tied to kernel version",
			qemuVer:  "6.2.0",
			linuxVer: "",
			expected: "max,pauth-impdef=true",
		},
		{
			name:     "old qemu",
			qemuVer:  "5.2.0",
			linuxVer: "",
			expected: "max",
		},
		{
			name:     "threshold qemu with old kernel",
			qemuVer:  "6.2.50",
			linuxVer: "5.10.180",
			expected: "max,lpa2=off,pauth-impdef=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var linuxVer *version.Version
			if tt.linuxVer != "" {
				linuxVer = mustVersion(tt.linuxVer)
			}

			actual := qemu.TuneARM64CPU(mustVersion(tt.qemuVer), linuxVer)
			assert.Equal(t, tt.expected, actual)
		})
	}
}
