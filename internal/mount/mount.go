// Package mount owns the FUSE mount lifecycle: mounting the Virtual Tree at
// the configured mountpoint, serving it, and unmounting (which in turn
// triggers the Commit Engine via fs.FS's Destroy, per §4.8) on shutdown.
package mount

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"golang.org/x/sys/unix"
)

// Options configures how the Virtual Tree is exposed to the kernel.
type Options struct {
	Mountpoint string
	NonEmpty   bool
}

// Mount wraps the live fuse.Conn and the goroutine serving it.
type Mount struct {
	conn *fuse.Conn
	mp   string
	done chan struct{}
	serr error
}

// Start mounts filesystem at opts.Mountpoint and begins serving it in a
// background goroutine. The returned Mount's Wait method blocks until the
// kernel connection is torn down, e.g. by Stop or by an external `umount`.
func Start(opts Options, filesystem fs.FS) (*Mount, error) {
	if strings.TrimSpace(opts.Mountpoint) == "" {
		return nil, fmt.Errorf("mountpoint required")
	}

	detachStaleMount(opts.Mountpoint)

	if err := os.MkdirAll(opts.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("create mountpoint: %w", err)
	}
	if !opts.NonEmpty {
		if err := requireEmpty(opts.Mountpoint); err != nil {
			return nil, err
		}
	}

	mountOpts := []fuse.MountOption{
		fuse.FSName("fusta"),
		fuse.Subtype("fusta"),
	}

	c, err := fuse.Mount(opts.Mountpoint, mountOpts...)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", opts.Mountpoint, err)
	}

	m := &Mount{conn: c, mp: opts.Mountpoint, done: make(chan struct{})}
	go func() {
		m.serr = fs.Serve(c, filesystem)
		close(m.done)
	}()

	select {
	case <-c.Ready:
	case <-m.done:
	}
	if err := c.MountError; err != nil {
		return nil, fmt.Errorf("mount %s: %w", opts.Mountpoint, err)
	}
	return m, nil
}

// Wait blocks until the mount is torn down, returning whatever error
// fs.Serve exited with.
func (m *Mount) Wait() error {
	<-m.done
	return m.serr
}

// Stop unmounts the filesystem, which causes the kernel to send FUSE_DESTROY
// and the Serve loop in Start's goroutine to return (running fs.FS's
// Destroy along the way).
func (m *Mount) Stop(ctx context.Context) error {
	if err := fuse.Unmount(m.mp); err != nil {
		_ = unix.Unmount(m.mp, unix.MNT_DETACH)
	}
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.conn.Close()
}

// requireEmpty rejects mounting over a mountpoint that already contains
// entries, unless overridden by -E/--non-empty (§6).
func requireEmpty(mp string) error {
	entries, err := os.ReadDir(mp)
	if err != nil {
		return fmt.Errorf("read mountpoint: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("mountpoint %s is not empty (use -E/--non-empty to override)", mp)
	}
	return nil
}

// detachStaleMount best-effort clears a mountpoint left behind disconnected
// by a prior crashed run, so a fresh Start doesn't fail with "transport
// endpoint is not connected".
func detachStaleMount(mp string) {
	if strings.TrimSpace(mp) == "" {
		return
	}
	for i := 0; i < 3; i++ {
		_ = unix.Unmount(mp, unix.MNT_DETACH)
		_, _ = exec.Command("fusermount3", "-uz", mp).CombinedOutput()
		_, _ = exec.Command("umount", "-l", mp).CombinedOutput()
		time.Sleep(150 * time.Millisecond)
	}
}
