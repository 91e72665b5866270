// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

var versionLine = regexp.MustCompile(`version (\d+\.\d+\.\d+)`)

// VersionString returns the first line of the executable's --version
// output, e.g. "QEMU emulator version 8.2.1 (Debian 1:8.2.1+ds-1)".
func VersionString(ctx context.Context, executable string) (string, error) {
	out, err := exec.CommandContext(ctx, executable, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("query %s version: %w", executable, err)
	}

	line, _, _ := strings.Cut(string(out), "\n")

	return line, nil
}

// Version returns the version of the given QEMU executable.
func Version(ctx context.Context, executable string) (*version.Version, error) {
	line, err := VersionString(ctx, executable)
	if err != nil {
		return nil, err
	}

	return ParseVersion(line)
}

// ParseVersion extracts the version number from a QEMU version line.
func ParseVersion(line string) (*version.Version, error) {
	match := versionLine.FindStringSubmatch(line)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionUnknown, line)
	}

	ver, err := version.NewVersion(match[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionUnknown, line)
	}

	return ver, nil
}

// Version thresholds for arm64 CPU selection under TCG.
var (
	qemuVerCPUMaxTied  = version.Must(version.NewVersion("6.2.50"))
	qemuVerPAuthImpdef = version.Must(version.NewVersion("6.0.0"))
	linuxVerVHE        = version.Must(version.NewVersion("4.16.0"))
	linuxVerLPA2       = version.Must(version.NewVersion("5.12.0"))
)

// NeedsLinuxVersion reports whether [TuneARM64CPU] needs the guest kernel
// version for the given QEMU version. Reading it out of the image is not
// free, so callers skip it when the CPU choice cannot depend on it.
func NeedsLinuxVersion(qemuVer *version.Version) bool {
	return qemuVer.GreaterThanOrEqual(qemuVerCPUMaxTied)
}

// TuneARM64CPU picks the -cpu value for arm64 guests running under TCG,
// where newer QEMU emulates CPU features that older kernels cannot boot
// with. linuxVer may be nil when the kernel version is not needed, which
// is the case for QEMU before 6.2.50.
//
//   - Kernels before 4.16 hang with -cpu max, use a fixed cortex-a72:
//     https://gitlab.com/qemu-project/qemu/-/issues/964
//   - Kernels before 5.12 cannot handle LPA2, switch it off:
//     qemu commit 69b2265d5fe8 ("hw/arm/virt: Disable LPA2 for -machine
//     virt-6.2")
//   - Emulating the architected pointer authentication algorithm is slow,
//     use the impdef algorithm when QEMU supports selecting it:
//     https://lore.kernel.org/YlgVa+AP0g4IYvzN@lakrids/
func TuneARM64CPU(qemuVer, linuxVer *version.Version) string {
	cpu := "max"

	if linuxVer != nil && qemuVer.GreaterThanOrEqual(qemuVerCPUMaxTied) {
		switch {
		case linuxVer.LessThan(linuxVerVHE):
			cpu = "cortex-a72"
		case linuxVer.LessThan(linuxVerLPA2):
			cpu = "max,lpa2=off"
		}
	}

	if strings.Contains(cpu, "max") &&
		qemuVer.GreaterThanOrEqual(qemuVerPAuthImpdef) {
		cpu += ",pauth-impdef=true"
	}

	return cpu
}
