package replication

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dreamware/shardctl/internal/ring"
)

// Pusher pushes a container database file to a device, making it
// durable somewhere other than the device that produced it. Every
// replication call in this module goes through this interface so the
// sharder pass never depends on how the transfer actually happens.
type Pusher interface {
	// Push copies the database file at srcPath to relPath on dest. relPath
	// is relative to dest.Path (the device's mount point), matching the
	// storage_directory(part, hash)/hash.db layout the broker computes.
	Push(ctx context.Context, srcPath string, dest ring.Device, relPath string) error
}

// LocalCopyPusher implements Pusher as a plain file copy, for
// single-machine deployments where every ring device is a directory on
// the same filesystem rather than a remote node reached over the
// network.
type LocalCopyPusher struct{}

// Push implements Pusher.
func (LocalCopyPusher) Push(ctx context.Context, srcPath string, dest ring.Device, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath := filepath.Join(dest.Path, relPath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return fmt.Errorf("replication: create dir for %s: %w", destPath, err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("replication: open source %s: %w", srcPath, err)
	}
	defer src.Close()

	tmp := destPath + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("replication: create %s: %w", tmp, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("replication: copy to %s: %w", tmp, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replication: close %s: %w", tmp, err)
	}

	// Rename into place so a reader never observes a partially written db.
	if err := os.Rename(tmp, destPath); err != nil {
		return fmt.Errorf("replication: finalize %s: %w", destPath, err)
	}
	return nil
}
