// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package buildroot

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DownloadURL is the Buildroot release download location.
const DownloadURL = "https://buildroot.org/downloads"

// TarballName returns the file name of the Buildroot source tarball.
func TarballName() string {
	return "buildroot-" + Version + ".tar.gz"
}

// DownloadSource prepares a pristine Buildroot tree in SrcDir: download
// the tarball unless it is already present, verify it against the
// recorded sha256 sum, extract it and apply the local patches.
func (b *Builder) DownloadSource(ctx context.Context) error {
	err := os.RemoveAll(b.SrcDir)
	if err != nil {
		return fmt.Errorf("remove stale source tree: %w", err)
	}

	err = os.MkdirAll(b.SrcDir, 0o755)
	if err != nil {
		return fmt.Errorf("create source directory: %w", err)
	}

	tarball := filepath.Join(b.RootDir, TarballName())

	_, err = os.Stat(tarball)
	if err != nil {
		err = downloadTarball(ctx, DownloadURL+"/"+TarballName(), tarball)
		if err != nil {
			return err
		}
	}

	err = verifyChecksum(tarball, tarball+".sha256")
	if err != nil {
		return err
	}

	err = extractTarball(tarball, b.SrcDir)
	if err != nil {
		return err
	}

	return b.applyPatches(ctx)
}

func downloadTarball(ctx context.Context, url, target string) error {
	slog.Debug("Downloading Buildroot", slog.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build tarball request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download tarball: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download tarball: unexpected status %s", resp.Status)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create tarball: %w", err)
	}

	_, err = io.Copy(f, resp.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(target)

		return fmt.Errorf("write tarball: %w", err)
	}

	return f.Close()
}

func verifyChecksum(tarball, sumFile string) error {
	sum, err := os.ReadFile(sumFile)
	if err != nil {
		return fmt.Errorf("read checksum file: %w", err)
	}

	// sha256sum format, the hash is the first field.
	expected, _, _ := strings.Cut(strings.TrimSpace(string(sum)), " ")

	f, err := os.Open(tarball)
	if err != nil {
		return fmt.Errorf("open tarball: %w", err)
	}
	defer f.Close()

	hash := sha256.New()

	_, err = io.Copy(hash, f)
	if err != nil {
		return fmt.Errorf("hash tarball: %w", err)
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if actual != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch,
			actual, expected)
	}

	return nil
}

// extractTarball unpacks a gzipped tar into dir, dropping the leading
// "buildroot-<ver>/" path component.
func extractTarball(tarball, dir string) error {
	f, err := os.Open(tarball)
	if err != nil {
		return fmt.Errorf("open tarball: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("initialize gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tarball: %w", err)
		}

		name, err := stripComponent(hdr.Name)
		if err != nil {
			return err
		}

		if name == "" {
			continue
		}

		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, hdr.FileInfo().Mode())
		case tar.TypeSymlink:
			err = os.Symlink(hdr.Linkname, target)
		case tar.TypeReg:
			err = writeFile(target, hdr.FileInfo().Mode(), tr)
		default:
			continue
		}

		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
	}
}

func stripComponent(name string) (string, error) {
	name = filepath.Clean(name)
	if name == ".." || strings.HasPrefix(name, "../") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	_, rest, found := strings.Cut(name, "/")
	if !found {
		return "", nil
	}

	return rest, nil
}

func writeFile(target string, mode os.FileMode, r io.Reader) error {
	err := os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

func (b *Builder) applyPatches(ctx context.Context) error {
	patches, err := filepath.Glob(filepath.Join(b.RootDir, "*.patch"))
	if err != nil {
		return fmt.Errorf("glob patches: %w", err)
	}

	for _, patch := range patches {
		slog.Debug("Applying patch", slog.String("patch", patch))

		cmd := exec.CommandContext(ctx, "patch",
			"--directory", b.SrcDir,
			"--input", patch,
			"--strip", "1",
		)
		cmd.Stdout = b.Stdout
		cmd.Stderr = b.Stderr

		err := cmd.Run()
		if err != nil {
			return fmt.Errorf("%w: %s (Buildroot %s)", ErrPatchFailed,
				filepath.Base(patch), Version)
		}
	}

	return nil
}
