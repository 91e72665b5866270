// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package kernel

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/hashicorp/go-version"
	"github.com/klauspost/compress/gzip"
)

var versionBanner = regexp.MustCompile(`Linux version (\d+\.\d+\.\d+)`)

// VersionFromImage scans an uncompressed kernel image stream for the
// embedded "Linux version x.y.z" banner and returns the parsed version.
func VersionFromImage(r io.Reader) (*version.Version, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read kernel image: %w", err)
	}

	match := versionBanner.FindSubmatch(data)
	if match == nil {
		return nil, ErrVersionNotFound
	}

	ver, err := version.NewVersion(string(match[1]))
	if err != nil {
		return nil, fmt.Errorf("parse kernel version: %w", err)
	}

	return ver, nil
}

// VersionFromGzipImage is like [VersionFromImage] for gzip compressed
// kernel images like arm64's Image.gz.
func VersionFromGzipImage(path string) (*version.Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open kernel image: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress kernel image: %w", err)
	}
	defer gz.Close()

	// Image.gz may carry padding after the gzip stream.
	gz.Multistream(false)

	return VersionFromImage(gz)
}
