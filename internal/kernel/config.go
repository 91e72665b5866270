// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package kernel

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultNRCPUs is a sensible treewide default for CONFIG_NR_CPUS, used
// when no build configuration can be located.
const DefaultNRCPUs = 8

// Relative to the kernel image directory, the configuration may be at:
//
//   - .config (location is the kernel source directory or vmlinux)
//   - ../../../.config (image is in arch/*/boot/)
//   - config (image is in a TuxMake output directory)
var configSearchNames = []string{".config", "../../../.config", "config"}

// NRCPUs returns the CONFIG_NR_CPUS value from the kernel build
// configuration found near the given kernel location, or [DefaultNRCPUs]
// if no configuration or no such option can be found.
func NRCPUs(location string) int {
	dir := location

	info, err := os.Stat(location)
	if err == nil && !info.IsDir() {
		dir = filepath.Dir(location)
	}

	for _, name := range configSearchNames {
		path := filepath.Join(dir, name)

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		return nrCPUsFromConfig(path)
	}

	return DefaultNRCPUs
}

func nrCPUsFromConfig(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return DefaultNRCPUs
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		value, found := strings.CutPrefix(scanner.Text(), "CONFIG_NR_CPUS=")
		if !found {
			continue
		}

		nrCPUs, err := strconv.Atoi(value)
		if err != nil {
			break
		}

		return nrCPUs
	}

	return DefaultNRCPUs
}
