// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"os"

	"github.com/ClangBuiltLinux/boot-utils/internal/sys"
)

const (
	defaultMemory = "512m"
	defaultKVMCPU = "host"
)

// Debian and Ubuntu ship OpenSBI at a fixed path that is preferable over
// the firmware bundled with QEMU.
const debianRISCVFirmware = "/usr/lib/riscv64-linux-gnu/opensbi/qemu/virt/fw_jump.elf"

// Platform is the static QEMU configuration for one guest architecture.
type Platform struct {
	// Name of the qemu-system binary.
	Executable string

	// Default kernel image file name for the architecture.
	Image string

	// Values for -machine. QEMU merges repeated -machine arguments, which
	// arm64 uses to toggle the virtualization property separately.
	Machine []string

	// Value for -cpu. Empty means QEMU's default for the machine type.
	CPU string

	// Value for -m.
	Memory string

	// Kernel command line additions.
	Cmdline []string

	// File name of a required device tree blob, if any.
	DTB string

	// Additional fixed arguments.
	ExtraArgs []Argument
}

// PlatformFor returns the QEMU configuration for the given guest
// architecture, resolved for whether KVM will be used. KVM changes the
// executable and CPU type for 32-bit ARM guests and the CPU type for all
// accelerated guests.
func PlatformFor(arch sys.Arch, useKVM bool) (Platform, error) {
	p := Platform{
		Image:  "zImage",
		Memory: defaultMemory,
	}

	switch arch {
	case sys.ARM32V5:
		p.Executable = "qemu-system-arm"
		p.Machine = []string{"palmetto-bmc"}
		p.DTB = "aspeed-bmc-opp-palmetto.dtb"
		p.Cmdline = []string{"earlycon"}

	case sys.ARM32V6:
		p.Executable = "qemu-system-arm"
		p.Machine = []string{"romulus-bmc"}
		p.DTB = "aspeed-bmc-opp-romulus.dtb"

	case sys.ARM, sys.ARM32V7:
		p.Machine = []string{"virt"}
		p.Cmdline = []string{"console=ttyAMA0", "earlycon"}

		// With KVM, the 32-bit guest runs on the 64-bit QEMU binary with
		// the host CPU switched to its 32-bit execution state.
		if useKVM {
			p.Executable = "qemu-system-aarch64"
			p.CPU = "host,aarch64=off"
		} else {
			p.Executable = "qemu-system-arm"
		}

	case sys.ARM64, sys.ARM64BE:
		p.Executable = "qemu-system-aarch64"
		p.Image = "Image.gz"
		p.Machine = []string{"virt,gic-version=max"}
		p.Cmdline = []string{"console=ttyAMA0", "earlycon"}

		// Without KVM, the CPU type depends on the QEMU and kernel
		// versions. See [TuneARM64CPU].
		if !useKVM {
			p.Machine = append(p.Machine, "virtualization=true")
		}

	case sys.M68K:
		p.Executable = "qemu-system-m68k"
		p.Image = "vmlinux"
		p.Machine = []string{"q800"}
		p.CPU = "m68040"
		p.Cmdline = []string{"console=ttyS0,115200"}

	case sys.MIPS, sys.MIPSEL:
		p.Executable = "qemu-system-" + string(arch)
		p.Image = "vmlinux"
		p.Machine = []string{"malta"}
		p.CPU = "24Kf"

	case sys.PPC32, sys.PPC32Mac:
		p.Executable = "qemu-system-ppc"
		p.Memory = "128m"
		p.Cmdline = []string{"console=ttyS0"}

		if arch == sys.PPC32 {
			p.Image = "uImage"
			p.Machine = []string{"bamboo"}
		} else {
			p.Image = "vmlinux"
			p.Machine = []string{"mac99"}
		}

	case sys.PPC64:
		p.Executable = "qemu-system-ppc64"
		p.Image = "vmlinux"
		p.Machine = []string{"pseries"}
		p.CPU = "power8"
		p.Memory = "1G"
		p.ExtraArgs = []Argument{UniqueArg("vga", "none")}

	case sys.PPC64LE:
		p.Executable = "qemu-system-ppc64"
		p.Image = "zImage.epapr"
		p.Machine = []string{"powernv"}
		p.Memory = "2G"
		p.ExtraArgs = []Argument{
			RepeatableArg("device", "ipmi-bmc-sim,id=bmc0"),
			RepeatableArg("device", "isa-ipmi-bt,bmc=bmc0,irq=10"),
		}

	case sys.RISCV:
		p.Executable = "qemu-system-riscv64"
		p.Image = "Image"
		p.Machine = []string{"virt"}
		p.Cmdline = []string{"earlycon"}
		p.ExtraArgs = []Argument{UniqueArg("bios", riscvFirmware())}

	case sys.S390:
		p.Executable = "qemu-system-s390x"
		p.Image = "bzImage"
		p.Machine = []string{"s390-ccw-virtio"}

	case sys.X86, sys.X8664:
		p.Image = "bzImage"
		p.Cmdline = []string{"console=ttyS0", "earlycon=uart8250,io,0x3f8"}

		if arch == sys.X86 {
			p.Executable = "qemu-system-i386"
		} else {
			p.Executable = "qemu-system-x86_64"
		}

		switch {
		case useKVM:
			p.ExtraArgs = []Argument{UniqueArg("d", "unimp", "guest_errors")}
		case arch == sys.X8664:
			p.CPU = "Nehalem"
		}

	default:
		return Platform{}, sys.ErrArchNotSupported
	}

	if useKVM && p.CPU == "" {
		p.CPU = defaultKVMCPU
	}

	return p, nil
}

func riscvFirmware() string {
	if bios := os.Getenv("BIOS"); bios != "" {
		return bios
	}

	_, err := os.Stat(debianRISCVFirmware)
	if err == nil {
		return debianRISCVFirmware
	}

	return "default"
}
