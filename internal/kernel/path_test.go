// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package kernel_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClangBuiltLinux/boot-utils/internal/kernel"
)

func writeFile(t *testing.T, path string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(t, err)

	err = os.WriteFile(path, []byte("kernel"), 0o600)
	require.NoError(t, err)
}

func TestImagePath(t *testing.T) {
	t.Run("direct file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bzImage")
		writeFile(t, path)

		actual, err := kernel.ImagePath(path, "bzImage", "x86")
		require.NoError(t, err)
		assert.Equal(t, path, actual)
	})

	t.Run("vmlinux in build root", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "vmlinux"))

		actual, err := kernel.ImagePath(dir, "vmlinux", "powerpc")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "vmlinux"), actual)
	})

	t.Run("uml linux in build root", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "linux"))

		actual, err := kernel.ImagePath(dir, "linux", "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "linux"), actual)
	})

	t.Run("image in arch boot dir", func(t *testing.T) {
		dir := t.TempDir()
		expected := filepath.Join(dir, "arch", "arm64", "boot", "Image.gz")
		writeFile(t, expected)

		actual, err := kernel.ImagePath(dir, "Image.gz", "arm64")
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})

	t.Run("arch required", func(t *testing.T) {
		_, err := kernel.ImagePath(t.TempDir(), "zImage", "")
		require.ErrorIs(t, err, kernel.ErrKernelArchRequired)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := kernel.ImagePath(t.TempDir(), "bzImage", "x86")
		require.ErrorIs(t, err, kernel.ErrImageNotFound)
	})
}

func TestDTBPath(t *testing.T) {
	t.Run("kernel build tree", func(t *testing.T) {
		dir := t.TempDir()
		kernelPath := filepath.Join(dir, "arch", "arm", "boot", "zImage")
		writeFile(t, kernelPath)

		expected := filepath.Join(
			dir, "arch", "arm", "boot", "dts", "aspeed-bmc-opp-palmetto.dtb",
		)
		writeFile(t, expected)

		actual, err := kernel.DTBPath(kernelPath, "aspeed-bmc-opp-palmetto.dtb")
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})

	t.Run("tuxmake tree", func(t *testing.T) {
		dir := t.TempDir()
		kernelPath := filepath.Join(dir, "zImage")
		writeFile(t, kernelPath)

		expected := filepath.Join(dir, "dtbs", "aspeed-bmc-opp-romulus.dtb")
		writeFile(t, expected)

		actual, err := kernel.DTBPath(kernelPath, "aspeed-bmc-opp-romulus.dtb")
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})

	t.Run("missing", func(t *testing.T) {
		dir := t.TempDir()
		kernelPath := filepath.Join(dir, "zImage")
		writeFile(t, kernelPath)

		_, err := kernel.DTBPath(kernelPath, "missing.dtb")
		require.ErrorIs(t, err, kernel.ErrDTBNotFound)
	})
}

func TestNRCPUs(t *testing.T) {
	writeConfig := func(t *testing.T, path, content string) {
		t.Helper()

		err := os.MkdirAll(filepath.Dir(path), 0o755)
		require.NoError(t, err)

		err = os.WriteFile(path, []byte(content), 0o600)
		require.NoError(t, err)
	}

	t.Run("config next to vmlinux", func(t *testing.T) {
		dir := t.TempDir()
		kernelPath := filepath.Join(dir, "vmlinux")
		writeFile(t, kernelPath)
		writeConfig(t, filepath.Join(dir, ".config"),
			"CONFIG_SMP=y\nCONFIG_NR_CPUS=4\n")

		assert.Equal(t, 4, kernel.NRCPUs(kernelPath))
	})

	t.Run("config above arch boot dir", func(t *testing.T) {
		dir := t.TempDir()
		kernelPath := filepath.Join(dir, "arch", "arm64", "boot", "Image.gz")
		writeFile(t, kernelPath)
		writeConfig(t, filepath.Join(dir, ".config"), "CONFIG_NR_CPUS=256\n")

		assert.Equal(t, 256, kernel.NRCPUs(kernelPath))
	})

	t.Run("tuxmake config", func(t *testing.T) {
		dir := t.TempDir()
		kernelPath := filepath.Join(dir, "bzImage")
		writeFile(t, kernelPath)
		writeConfig(t, filepath.Join(dir, "config"), "CONFIG_NR_CPUS=2\n")

		assert.Equal(t, 2, kernel.NRCPUs(kernelPath))
	})

	t.Run("build dir given", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, filepath.Join(dir, ".config"), "CONFIG_NR_CPUS=16\n")

		assert.Equal(t, 16, kernel.NRCPUs(dir))
	})

	t.Run("no config found", func(t *testing.T) {
		assert.Equal(t, kernel.DefaultNRCPUs, kernel.NRCPUs(t.TempDir()))
	})

	t.Run("config without option", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, filepath.Join(dir, ".config"), "CONFIG_SMP=y\n")

		assert.Equal(t, kernel.DefaultNRCPUs, kernel.NRCPUs(dir))
	})
}
