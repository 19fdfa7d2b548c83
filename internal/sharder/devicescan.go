package sharder

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamware/shardctl/internal/broker"
	"github.com/dreamware/shardctl/internal/containerdb"
)

// DeviceSource implements ContainerSource by walking every
// "<device>/containers/**/*.db" file under Root, the on-disk layout
// internal/broker's storageDirectory produces.
type DeviceSource struct {
	Root       string
	MountCheck bool
	Logger     *zap.Logger
}

func (d *DeviceSource) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

// LocalContainers implements ContainerSource.
func (d *DeviceSource) LocalContainers(ctx context.Context) ([]LocalContainer, error) {
	entries, err := filepathReadDir(d.Root)
	if err != nil {
		return nil, err
	}

	var out []LocalContainer
	for _, dev := range entries {
		if !dev.IsDir() {
			continue
		}
		devPath := filepath.Join(d.Root, dev.Name())
		if d.MountCheck && !isMountPoint(devPath) {
			d.logger().Warn("sharder: device not mounted, skipping", zap.String("device", devPath))
			continue
		}

		containersDir := filepath.Join(devPath, "containers")
		err := walkDir(containersDir, func(path string) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !strings.HasSuffix(path, ".db") {
				return nil
			}

			lc, ok, err := d.openOne(ctx, path)
			if err != nil {
				d.logger().Warn("sharder: open container db failed, skipping", zap.String("path", path), zap.Error(err))
				return nil
			}
			if ok {
				out = append(out, lc)
			}
			return nil
		})
		if err != nil && err != fs.ErrNotExist {
			return nil, err
		}
	}
	return out, nil
}

func (d *DeviceSource) openOne(ctx context.Context, path string) (LocalContainer, bool, error) {
	b, err := containerdb.OpenBoltBroker(path)
	if err != nil {
		return LocalContainer{}, false, err
	}

	meta, err := b.Metadata(ctx)
	if err != nil {
		b.Close()
		return LocalContainer{}, false, err
	}

	account, container := meta[broker.MetaAccount], meta[broker.MetaContainer]
	if account == "" || container == "" {
		// Not yet provisioned with an identity stamp by the client-facing
		// container-creation path; nothing for a pass to do with it yet.
		b.Close()
		return LocalContainer{}, false, nil
	}

	return LocalContainer{Account: account, Container: container, Path: path, Broker: b}, true, nil
}
