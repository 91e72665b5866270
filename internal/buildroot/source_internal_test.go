// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package buildroot

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceTarball(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		})
		require.NoError(t, err)

		_, err = tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func TestExtractTarball(t *testing.T) {
	t.Run("strips leading component", func(t *testing.T) {
		tarball := filepath.Join(t.TempDir(), TarballName())
		content := sourceTarball(t, map[string]string{
			"buildroot-" + Version + "/Makefile":       "all:\n",
			"buildroot-" + Version + "/package/Config": "menu\n",
		})
		require.NoError(t, os.WriteFile(tarball, content, 0o644))

		dir := t.TempDir()
		require.NoError(t, extractTarball(tarball, dir))

		assert.FileExists(t, filepath.Join(dir, "Makefile"))
		assert.FileExists(t, filepath.Join(dir, "package", "Config"))
		assert.NoFileExists(t, filepath.Join(dir, "buildroot-"+Version))
	})

	t.Run("rejects escaping entries", func(t *testing.T) {
		tarball := filepath.Join(t.TempDir(), TarballName())
		content := sourceTarball(t, map[string]string{
			"../outside": "nope\n",
		})
		require.NoError(t, os.WriteFile(tarball, content, 0o644))

		err := extractTarball(tarball, t.TempDir())
		require.ErrorIs(t, err, ErrUnsafePath)
	})
}

func TestVerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, TarballName())
	content := []byte("tarball content")
	require.NoError(t, os.WriteFile(tarball, content, 0o644))

	sum := sha256.Sum256(content)
	sumLine := hex.EncodeToString(sum[:]) + "  " + TarballName() + "\n"

	t.Run("matches", func(t *testing.T) {
		sumFile := filepath.Join(dir, TarballName()+".sha256")
		require.NoError(t, os.WriteFile(sumFile, []byte(sumLine), 0o644))

		require.NoError(t, verifyChecksum(tarball, sumFile))
	})

	t.Run("mismatch", func(t *testing.T) {
		sumFile := filepath.Join(t.TempDir(), TarballName()+".sha256")
		badLine := hex.EncodeToString(bytes.Repeat([]byte{0xab}, 32)) +
			"  " + TarballName() + "\n"
		require.NoError(t, os.WriteFile(sumFile, []byte(badLine), 0o644))

		err := verifyChecksum(tarball, sumFile)
		require.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("missing checksum file", func(t *testing.T) {
		err := verifyChecksum(tarball, filepath.Join(dir, "missing.sha256"))
		require.Error(t, err)
	})
}
