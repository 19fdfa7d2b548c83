package sharder

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardctl/internal/telemetry"
)

// ContainerSource enumerates the local container databases a Daemon
// should audit on each pass. cmd/sharder implements this by walking the
// configured device directories for bbolt files; tests can supply a
// fixed slice.
type ContainerSource interface {
	LocalContainers(ctx context.Context) ([]LocalContainer, error)
}

// Daemon is the periodic scheduler around Pass: startup jitter to
// desynchronize nodes sharing a cluster, then a loop that runs one
// pass, logs and counts any error, sleeps out the remainder of
// Interval, and dumps the pass duration into the recon cache.
type Daemon struct {
	Pass           *Pass
	Source         ContainerSource
	Interval       time.Duration
	ReconCachePath string
	Logger         *zap.Logger
	Metrics        *telemetry.Metrics

	lastElapsed time.Duration
}

func (d *Daemon) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

// Run starts the daemon loop and blocks until ctx is canceled. It
// sleeps a uniformly-random fraction of Interval before its first pass.
func (d *Daemon) Run(ctx context.Context) error {
	jitter := time.Duration(rand.Int63n(int64(d.Interval) + 1))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		if err := d.runOnePass(ctx); err != nil {
			d.logger().Error("sharder daemon pass failed", zap.Error(err))
			if d.Metrics != nil {
				d.Metrics.PassErrors.Inc()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		elapsed := d.lastElapsed
		sleep := d.Interval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce runs exactly one pass and returns, for the daemon's "once"
// mode.
func (d *Daemon) RunOnce(ctx context.Context) error {
	return d.runOnePass(ctx)
}

func (d *Daemon) runOnePass(ctx context.Context) error {
	containers, err := d.Source.LocalContainers(ctx)
	if err != nil {
		return fmt.Errorf("sharder: enumerate local containers: %w", err)
	}

	begin := time.Now()
	_, runErr := d.Pass.Run(ctx, containers)
	d.lastElapsed = time.Since(begin)

	if d.Metrics != nil {
		d.Metrics.PassDuration.Observe(d.lastElapsed.Seconds())
	}
	if d.ReconCachePath != "" {
		if err := telemetry.DumpReconCache(d.ReconCachePath, d.lastElapsed); err != nil {
			d.logger().Warn("sharder: dump recon cache failed", zap.Error(err))
		}
	}

	return runErr
}
