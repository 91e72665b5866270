// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/ClangBuiltLinux/boot-utils/internal/kernel"
	"github.com/ClangBuiltLinux/boot-utils/internal/qemu"
	"github.com/ClangBuiltLinux/boot-utils/internal/rootfs"
	"github.com/ClangBuiltLinux/boot-utils/internal/sys"
	"github.com/ClangBuiltLinux/boot-utils/internal/virtiofs"
)

// Exit code of coreutils timeout, relayed for scripts that test for it.
const exitCodeTimeout = 124

type qemuFlags struct {
	arch           sys.Arch
	appendCmdline  string
	gdb            bool
	gdbBin         string
	interactive    bool
	kernelLocation string
	noKVM          bool
	smp            int
	timeout        time.Duration
	imagesDir      string
	qemuArgs       string
	shareFolder    string
}

func newQemuCommand(cfg IO) *cobra.Command {
	var flags qemuFlags

	cmd := &cobra.Command{
		Use:   "qemu",
		Short: "Boot a kernel in QEMU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQemu(cmd.Context(), &flags, cfg)
		},
	}

	archNames := make([]string, 0, len(sys.All()))
	for _, arch := range sys.All() {
		archNames = append(archNames, string(arch))
	}

	fs := cmd.Flags()
	fs.VarP(&flags.arch, "architecture", "a",
		"architecture to boot, one of: "+strings.Join(archNames, ", "))
	fs.StringVar(&flags.appendCmdline, "append", "",
		"values to add to the kernel command line")
	fs.BoolVarP(&flags.gdb, "gdb", "g", false,
		"start QEMU with '-s -S', then launch GDB on 'vmlinux'")
	fs.StringVar(&flags.gdbBin, "gdb-bin", "gdb-multiarch",
		"GDB binary to use for debugging")
	fs.BoolVarP(&flags.interactive, "interactive", "i", false,
		"boot into a shell ('rdinit=/bin/sh') instead of shutting down")
	fs.BoolVar(&flags.interactive, "shell", false,
		"alias for --interactive")
	fs.StringVarP(&flags.kernelLocation, "kernel-location", "k", "",
		"path to a kernel image or a kernel build directory")
	fs.BoolVar(&flags.noKVM, "no-kvm", false,
		"do not use KVM for acceleration even when supported")
	fs.IntVarP(&flags.smp, "smp", "s", 0,
		"number of guest processors (default: only KVM guests get several)")
	fs.DurationVarP(&flags.timeout, "timeout", "t", 3*time.Minute,
		"maximum non-interactive boot time")
	fs.StringVar(&flags.imagesDir, "images", "images",
		"directory with the root filesystem images")
	fs.StringVar(&flags.qemuArgs, "qemu-args", "",
		"additional arguments passed through to QEMU")
	fs.StringVar(&flags.shareFolder, "share-folder", "",
		"host directory shared into the guest via virtio-fs")

	_ = fs.MarkHidden("shell")
	_ = cmd.MarkFlagRequired("architecture")
	_ = cmd.MarkFlagRequired("kernel-location")

	return cmd
}

func runQemu(ctx context.Context, flags *qemuFlags, cfg IO) error {
	// GDB needs a machine that stays up, like an interactive boot.
	interactive := flags.interactive || flags.gdb

	useKVM := !flags.noKVM && sys.KVMAvailable(flags.arch)

	platform, err := qemu.PlatformFor(flags.arch, useKVM)
	if err != nil {
		return err
	}

	kernelPath, err := kernel.ImagePath(
		flags.kernelLocation, platform.Image, flags.arch.KernelArch(),
	)
	if err != nil {
		return err
	}

	var dtbPath string
	if platform.DTB != "" {
		dtbPath, err = kernel.DTBPath(kernelPath, platform.DTB)
		if err != nil {
			return err
		}
	}

	if flags.arch.Is64BitARM() && !useKVM {
		platform.CPU, err = tunedARM64CPU(ctx, platform.Executable, kernelPath)
		if err != nil {
			return err
		}
	}

	smp := flags.smp
	if smp == 0 && useKVM {
		smp = min(sys.UsableCPUs(), kernel.NRCPUs(flags.kernelLocation))
	}

	initrd := rootfs.Path(flags.imagesDir, flags.arch, rootfs.CPIOName)

	err = rootfs.Decompress(initrd)
	if err != nil {
		return err
	}

	err = rootfs.VerifyCPIO(initrd)
	if err != nil {
		return err
	}

	cmdline := slices.Clone(platform.Cmdline)
	if flags.gdb {
		cmdline = append(cmdline, "nokaslr")
	}

	if interactive {
		cmdline = append(cmdline, "rdinit=/bin/sh")
	}

	cmdline = append(cmdline, strings.Fields(flags.appendCmdline)...)

	extraArgs := slices.Clone(platform.ExtraArgs)

	if flags.shareFolder != "" {
		share, cleanup, err := startShare(ctx, flags.shareFolder)
		if err != nil {
			return err
		}
		defer cleanup()

		extraArgs = append(extraArgs, share.QemuArgs(platform.Memory)...)

		printYellow(cfg.Stdout,
			"Mount the shared folder in the guest with: mount -t virtiofs %s <mount point>",
			share.Tag)
	}

	userArgs, err := parseQemuArgs(flags.qemuArgs)
	if err != nil {
		return err
	}

	extraArgs = append(extraArgs, userArgs...)

	cmd, err := qemu.NewCommand(qemu.CommandSpec{
		Executable: platform.Executable,
		Kernel:     kernelPath,
		Initrd:     initrd,
		Machine:    platform.Machine,
		CPU:        platform.CPU,
		Memory:     platform.Memory,
		DTB:        dtbPath,
		Append:     cmdline,
		UseKVM:     useKVM,
		SMP:        smp,
		ExtraArgs:  extraArgs,
		GDB:        flags.gdb,
	})
	if err != nil {
		return err
	}

	err = printQemuInfo(ctx, cfg, cmd.Path())
	if err != nil {
		return err
	}

	if flags.gdb {
		vmlinux := filepath.Join(flags.kernelLocation, "vmlinux")

		return qemu.RunGDB(ctx, cmd, flags.gdbBin, vmlinux,
			cfg.Stdin, cfg.Stdout, cfg.Stderr)
	}

	printCommand(cfg.Stdout, cmd)

	bootCtx := ctx

	if !interactive {
		var cancel context.CancelFunc

		bootCtx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	err = cmd.Run(bootCtx, cfg.Stdin, cfg.Stdout, cfg.Stderr)
	if err != nil {
		if errors.Is(bootCtx.Err(), context.DeadlineExceeded) {
			printRed(cfg.Stdout, "ERROR: QEMU timed out!")

			return &qemu.CommandError{Err: err, ExitCode: exitCodeTimeout}
		}

		if errors.Is(err, &qemu.CommandError{}) {
			printRed(cfg.Stdout, "ERROR: QEMU did not exit cleanly!")
		}

		return err
	}

	return nil
}

// tunedARM64CPU resolves the -cpu value for arm64 guests under TCG, which
// depends on the QEMU version and possibly the version of the booted
// kernel.
func tunedARM64CPU(
	ctx context.Context,
	executable string,
	kernelPath string,
) (string, error) {
	qemuVer, err := qemu.Version(ctx, executable)
	if err != nil {
		return "", err
	}

	var linuxVer *version.Version
	if qemu.NeedsLinuxVersion(qemuVer) {
		linuxVer, err = kernel.VersionFromGzipImage(kernelPath)
		if err != nil {
			return "", err
		}
	}

	return qemu.TuneARM64CPU(qemuVer, linuxVer), nil
}

func startShare(
	ctx context.Context,
	folder string,
) (*virtiofs.Daemon, func(), error) {
	shareDir, err := filepath.Abs(folder)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve shared folder: %w", err)
	}

	info, err := os.Stat(shareDir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotADirectory, shareDir)
	}

	tmpDir, err := os.MkdirTemp("", "boot-utils-")
	if err != nil {
		return nil, nil, fmt.Errorf("create socket directory: %w", err)
	}

	share := &virtiofs.Daemon{
		SharedDir:  shareDir,
		SocketPath: filepath.Join(tmpDir, "virtiofsd.sock"),
		Tag:        virtiofs.DefaultTag,
	}

	err = share.Start(ctx)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, nil, err
	}

	cleanup := func() {
		_ = share.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return share, cleanup, nil
}

// parseQemuArgs splits a raw argument string like
// "-machine virt -device nvme,drive=d0" into [qemu.Argument]s so they take
// part in the collision checks.
func parseQemuArgs(raw string) ([]qemu.Argument, error) {
	if raw == "" {
		return nil, nil
	}

	tokens, err := shellwords.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("split extra QEMU arguments: %w", err)
	}

	var args []qemu.Argument

	for _, token := range tokens {
		if name, found := strings.CutPrefix(token, "-"); found {
			args = append(args, qemu.RepeatableArg(name))
			continue
		}

		if len(args) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrDanglingValue, token)
		}

		last := args[len(args)-1]
		value := token

		if last.Value() != "" {
			value = last.Value() + " " + token
		}

		args[len(args)-1] = qemu.RepeatableArg(last.Name(), value)
	}

	return args, nil
}

func printQemuInfo(ctx context.Context, cfg IO, qemuPath string) error {
	verLine, err := qemu.VersionString(ctx, qemuPath)
	if err != nil {
		return err
	}

	printLabel(cfg.Stdout, "QEMU location", filepath.Dir(qemuPath))
	printLabel(cfg.Stdout, "QEMU version", verLine)

	return nil
}
