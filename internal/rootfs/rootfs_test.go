// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package rootfs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClangBuiltLinux/boot-utils/internal/rootfs"
	"github.com/ClangBuiltLinux/boot-utils/internal/sys"
)

func TestAlias(t *testing.T) {
	tests := []struct {
		arch     sys.Arch
		expected string
	}{
		{sys.ARM, "arm"},
		{sys.ARM32V5, "arm"},
		{sys.ARM32V6, "arm"},
		{sys.ARM32V7, "arm"},
		{sys.ARM64, "arm64"},
		{sys.ARM64BE, "arm64be"},
		{sys.PPC32, "ppc32"},
		{sys.PPC32Mac, "ppc32"},
		{sys.PPC64LE, "ppc64le"},
		{sys.X8664, "x86_64"},
	}

	for _, tt := range tests {
		t.Run(string(tt.arch), func(t *testing.T) {
			assert.Equal(t, tt.expected, rootfs.Alias(tt.arch))
		})
	}
}

func TestPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("images", "arm", "rootfs.cpio"),
		rootfs.Path("images", sys.ARM32V7, rootfs.CPIOName))
	assert.Equal(t,
		filepath.Join("images", "x86_64", "rootfs.ext4"),
		rootfs.Path("images", sys.X8664, rootfs.Ext4Name))
}

func cpioArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := cpio.NewWriter(&buf)

	content := []byte("#!/bin/sh\n")
	err := w.WriteHeader(&cpio.Header{
		Name: "init",
		Mode: 0o755,
		Size: int64(len(content)),
	})
	require.NoError(t, err)

	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func compress(t *testing.T, path string, content []byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)

	_, err = enc.Write(content)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestDecompress(t *testing.T) {
	t.Run("decompresses", func(t *testing.T) {
		content := cpioArchive(t)
		path := filepath.Join(t.TempDir(), rootfs.CPIOName)
		compress(t, path+".zst", content)

		err := rootfs.Decompress(path)
		require.NoError(t, err)

		actual, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, actual)
	})

	t.Run("replaces stale image", func(t *testing.T) {
		content := cpioArchive(t)
		path := filepath.Join(t.TempDir(), rootfs.CPIOName)
		compress(t, path+".zst", content)

		err := os.WriteFile(path, []byte("modified by previous boot"), 0o644)
		require.NoError(t, err)

		err = rootfs.Decompress(path)
		require.NoError(t, err)

		actual, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, actual)
	})

	t.Run("missing compressed image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rootfs.CPIOName)

		err := rootfs.Decompress(path)
		require.ErrorIs(t, err, rootfs.ErrImageMissing)
	})

	t.Run("corrupt compressed image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rootfs.CPIOName)
		err := os.WriteFile(path+".zst", []byte("not zstd"), 0o644)
		require.NoError(t, err)

		err = rootfs.Decompress(path)
		require.Error(t, err)
		assert.NoFileExists(t, path)
	})
}

func TestVerifyCPIO(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rootfs.CPIOName)
		err := os.WriteFile(path, cpioArchive(t), 0o644)
		require.NoError(t, err)

		require.NoError(t, rootfs.VerifyCPIO(path))
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), rootfs.CPIOName)
		err := os.WriteFile(path, []byte("definitely not cpio"), 0o644)
		require.NoError(t, err)

		err = rootfs.VerifyCPIO(path)
		require.ErrorIs(t, err, rootfs.ErrNotCPIO)
	})

	t.Run("missing", func(t *testing.T) {
		err := rootfs.VerifyCPIO(filepath.Join(t.TempDir(), rootfs.CPIOName))
		require.Error(t, err)
	})
}
