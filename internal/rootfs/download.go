// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package rootfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// DefaultReleasesURL points at the GitHub releases of this repository,
// where the Buildroot images are published.
const DefaultReleasesURL = "https://api.github.com/repos/ClangBuiltLinux/boot-utils/releases"

const maxConcurrentDownloads = 4

// Asset is one downloadable rootfs image of a [Release]. Assets are named
// <arch>-rootfs.cpio.zst (plus x86_64-rootfs.ext4.zst for UML).
type Asset struct {
	Name string
	URL  string
}

// Release is one published set of rootfs images.
type Release struct {
	Tag    string
	Assets []Asset
}

// Client downloads published rootfs images.
type Client struct {
	// HTTP client to use. Defaults to [http.DefaultClient].
	HTTP *http.Client

	// Base URL of the GitHub releases API endpoint. Defaults to
	// [DefaultReleasesURL].
	ReleasesURL string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}

	return c.HTTP
}

func (c *Client) releasesURL() string {
	if c.ReleasesURL == "" {
		return DefaultReleasesURL
	}

	return c.ReleasesURL
}

// LatestRelease queries the most recent image release.
func (c *Client) LatestRelease(ctx context.Context) (*Release, error) {
	return c.release(ctx, c.releasesURL()+"/latest")
}

// ReleaseByTag queries the image release with the given tag.
func (c *Client) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	return c.release(ctx, c.releasesURL()+"/tags/"+tag)
}

func (c *Client) release(ctx context.Context, url string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("query release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read release: %w", err)
	}

	release := &Release{
		Tag: gjson.GetBytes(body, "tag_name").String(),
	}

	for _, asset := range gjson.GetBytes(body, "assets").Array() {
		name := asset.Get("name").String()
		if !strings.HasSuffix(name, ".zst") {
			continue
		}

		release.Assets = append(release.Assets, Asset{
			Name: name,
			URL:  asset.Get("browser_download_url").String(),
		})
	}

	if len(release.Assets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAssets, release.Tag)
	}

	return release, nil
}

// Fetch downloads all assets of the release into the images directory,
// translating the flat asset names into the per-architecture layout the
// boot commands expect (<arch>-rootfs.cpio.zst becomes
// <imagesDir>/<arch>/rootfs.cpio.zst).
func (c *Client) Fetch(ctx context.Context, release *Release, imagesDir string) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentDownloads)

	for _, asset := range release.Assets {
		asset := asset

		target, ok := assetTarget(imagesDir, asset.Name)
		if !ok {
			slog.Warn("Skipping unrecognized release asset",
				slog.String("asset", asset.Name))

			continue
		}

		eg.Go(func() error {
			slog.Debug("Downloading image",
				slog.String("asset", asset.Name),
				slog.String("target", target))

			return c.download(ctx, asset.URL, target)
		})
	}

	return eg.Wait()
}

func assetTarget(imagesDir, name string) (string, bool) {
	arch, file, found := strings.Cut(name, "-")
	if !found || arch == "" || file == "" {
		return "", false
	}

	return filepath.Join(imagesDir, arch, file), true
}

func (c *Client) download(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, url, resp.Status)
	}

	err = os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return fmt.Errorf("create images directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}

	_, err = io.Copy(f, resp.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(target)

		return fmt.Errorf("write image file: %w", err)
	}

	return f.Close()
}
