// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package sys

import (
	"os"
	"slices"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

const devKVM = "/dev/kvm"

// KVM ioctl values from the kernel's KVM API. KVM_CHECK_EXTENSION is
// _IO(KVMIO, 0x03) and returns a positive value if the queried capability
// is supported.
const (
	kvmCheckExtension = 0xae03
	kvmCapARMEL132Bit = 93
)

// KVMAvailable reports whether KVM acceleration can be used for the given
// guest architecture. Only ARM and x86 guests can run accelerated, and
// only on a matching host:
//
//   - aarch64 hosts accelerate arm64 and arm64be guests unconditionally,
//     and 32-bit ARM guests only if the CPU supports 32-bit EL1.
//   - x86_64 hosts accelerate x86 and x86_64 guests if the virtualization
//     extensions (AMD svm or Intel vmx) are present in /proc/cpuinfo.
func KVMAvailable(guest Arch) bool {
	kvm, err := os.OpenFile(devKVM, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	defer kvm.Close()

	switch hostArch() {
	case "aarch64":
		if guest.Is64BitARM() {
			return true
		}
		// 32-bit EL1 is not always supported, test for it first.
		if guest == ARM || guest == ARM32V7 {
			return el132BitSupported(kvm.Fd())
		}
	case "x86_64":
		if guest.IsX86() {
			return hostHasVirtFlags(procfs.DefaultMountPoint)
		}
	}

	return false
}

func el132BitSupported(fd uintptr) bool {
	ret, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		fd,
		uintptr(kvmCheckExtension),
		uintptr(kvmCapARMEL132Bit),
	)

	return errno == 0 && int(ret) > 0
}

func hostHasVirtFlags(mountPoint string) bool {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return false
	}

	cpus, err := fs.CPUInfo()
	if err != nil {
		return false
	}

	for _, cpu := range cpus {
		if slices.Contains(cpu.Flags, "svm") ||
			slices.Contains(cpu.Flags, "vmx") {
			return true
		}
	}

	return false
}
