// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package sys

import (
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// Arch is a guest architecture known to the boot scripts. The names follow
// the Buildroot configuration names, not GOARCH.
type Arch string

// Supported guest architectures.
const (
	ARM      Arch = "arm"
	ARM32V5  Arch = "arm32_v5"
	ARM32V6  Arch = "arm32_v6"
	ARM32V7  Arch = "arm32_v7"
	ARM64    Arch = "arm64"
	ARM64BE  Arch = "arm64be"
	M68K     Arch = "m68k"
	MIPS     Arch = "mips"
	MIPSEL   Arch = "mipsel"
	PPC32    Arch = "ppc32"
	PPC32Mac Arch = "ppc32_mac"
	PPC64    Arch = "ppc64"
	PPC64LE  Arch = "ppc64le"
	RISCV    Arch = "riscv"
	S390     Arch = "s390"
	X86      Arch = "x86"
	X8664    Arch = "x86_64"
)

// All lists the supported guest architectures in the order they are
// presented in help output.
func All() []Arch {
	return []Arch{
		ARM, ARM32V5, ARM32V6, ARM32V7, ARM64, ARM64BE, M68K,
		MIPS, MIPSEL, PPC32, PPC32Mac, PPC64, PPC64LE, RISCV,
		S390, X86, X8664,
	}
}

var _ pflag.Value = (*Arch)(nil)

// String implements [fmt.Stringer].
func (a *Arch) String() string {
	return string(*a)
}

// Set implements [pflag.Value].
func (a *Arch) Set(s string) error {
	arch := Arch(s)
	if !slices.Contains(All(), arch) {
		return ErrArchNotSupported
	}

	*a = arch

	return nil
}

// Type implements [pflag.Value].
func (a *Arch) Type() string {
	return "ARCH"
}

// KernelArch returns the Kbuild architecture name, which is the parent of
// the "boot" directory that holds the kernel image.
func (a Arch) KernelArch() string {
	switch {
	case a.Is32BitARM():
		return "arm"
	case a == ARM64 || a == ARM64BE:
		return "arm64"
	case a == MIPS || a == MIPSEL:
		return "mips"
	case strings.HasPrefix(string(a), "ppc"):
		return "powerpc"
	default:
		return string(a)
	}
}

// Is32BitARM reports whether the guest is one of the 32-bit ARM flavors.
func (a Arch) Is32BitARM() bool {
	return a == ARM || strings.HasPrefix(string(a), "arm32")
}

// Is64BitARM reports whether the guest is arm64 or arm64be.
func (a Arch) Is64BitARM() bool {
	return a == ARM64 || a == ARM64BE
}

// IsX86 reports whether the guest is x86 or x86_64.
func (a Arch) IsX86() bool {
	return a == X86 || a == X8664
}

// hostArch is the machine name of the host kernel, matching what
// "uname -m" reports.
func hostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}
