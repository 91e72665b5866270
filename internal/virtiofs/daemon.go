// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

// Package virtiofs manages the virtiofsd helper process that exports a
// host directory to the guest as a virtio-fs filesystem.
package virtiofs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ClangBuiltLinux/boot-utils/internal/qemu"
)

// DefaultTag is the mount tag the guest uses:
//
//	mount -t virtiofs boot-utils /mnt
const DefaultTag = "boot-utils"

const socketWaitTimeout = 5 * time.Second

// ErrSocketTimeout is returned when virtiofsd does not create its vhost
// socket in time.
var ErrSocketTimeout = errors.New("virtiofsd did not create its socket in time")

// Daemon is a virtiofsd helper process exporting one shared directory.
type Daemon struct {
	// Name of or path to the virtiofsd binary. Defaults to "virtiofsd".
	Executable string

	// Host directory exported to the guest.
	SharedDir string

	// Path of the vhost-user socket QEMU connects to.
	SocketPath string

	// Mount tag presented to the guest. Defaults to [DefaultTag].
	Tag string

	cmd  *exec.Cmd
	wait errgroup.Group
}

func (d *Daemon) executable() string {
	if d.Executable == "" {
		return "virtiofsd"
	}

	return d.Executable
}

func (d *Daemon) tag() string {
	if d.Tag == "" {
		return DefaultTag
	}

	return d.Tag
}

// QemuArgs returns the QEMU arguments that attach the shared directory:
// the vhost-user socket chardev, the vhost-user-fs device and the shared
// memory backend the vhost protocol requires. The memory size must match
// the guest memory.
func (d *Daemon) QemuArgs(memory string) []qemu.Argument {
	return []qemu.Argument{
		qemu.RepeatableArg("chardev", "socket,id=vfsd,path="+d.SocketPath),
		qemu.RepeatableArg("device",
			"vhost-user-fs-pci,chardev=vfsd,tag="+d.tag()),
		qemu.RepeatableArg("object",
			"memory-backend-file,id=mem,size="+memory+
				",mem-path=/dev/shm,share=on"),
		qemu.UniqueArg("numa", "node,memdev=mem"),
	}
}

// Start launches virtiofsd and waits until its socket exists, so QEMU
// does not race with the daemon startup.
func (d *Daemon) Start(ctx context.Context) error {
	path, err := exec.LookPath(d.executable())
	if err != nil {
		return fmt.Errorf("find virtiofsd executable: %w", err)
	}

	d.cmd = exec.CommandContext(ctx, path,
		"--socket-path="+d.SocketPath,
		"--shared-dir="+d.SharedDir,
		"--cache=always",
	)

	err = d.cmd.Start()
	if err != nil {
		return fmt.Errorf("start virtiofsd: %w", err)
	}

	d.wait.Go(d.cmd.Wait)

	slog.Debug("Started virtiofsd",
		slog.String("shared_dir", d.SharedDir),
		slog.String("socket", d.SocketPath))

	err = d.waitForSocket(ctx)
	if err != nil {
		_ = d.Close()
		return err
	}

	return nil
}

func (d *Daemon) waitForSocket(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.Now().Add(socketWaitTimeout)

	for {
		_, err := os.Stat(d.SocketPath)
		if err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrSocketTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close terminates the daemon and waits for it to exit. virtiofsd exits
// on its own once QEMU disconnects, so a kill error is not interesting.
func (d *Daemon) Close() error {
	if d.cmd == nil {
		return nil
	}

	_ = d.cmd.Process.Kill()
	_ = d.wait.Wait()

	d.cmd = nil

	return os.Remove(d.SocketPath)
}
