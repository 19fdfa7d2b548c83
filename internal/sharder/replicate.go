package sharder

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/shardctl/internal/broker"
)

// replicate pushes a's database to every primary device of its
// partition, concurrently, bounded by Pass.Concurrency.
func (p *Pass) replicate(ctx context.Context, a *broker.Assignment) error {
	primaries := p.Ring.PrimaryDevices(a.Partition)
	if len(primaries) == 0 {
		return nil
	}

	rel := a.RelPath()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	for _, dev := range primaries {
		dev := dev
		g.Go(func() error {
			if err := p.Pusher.Push(gctx, a.Path, dev, rel); err != nil {
				return fmt.Errorf("push %s/%s to device %s: %w", a.Account, a.Container, dev.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// drainCleanups runs after the full local-DBs loop: replicate-then-
// delete every broker the pass opened and registered for cleanup, then
// reset the factory for the next pass.
func (p *Pass) drainCleanups(ctx context.Context) error {
	cleanups := p.Factory.Cleanups()
	if len(cleanups) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	for _, a := range cleanups {
		a := a
		g.Go(func() error {
			replicated := true
			if err := p.replicate(gctx, a); err != nil {
				replicated = false
				p.logger().Warn("sharder: replicate cleanup broker failed, leaving its file on disk",
					zap.String("account", a.Account), zap.String("container", a.Container), zap.Error(err))
			}

			if err := a.Broker.Close(); err != nil {
				return fmt.Errorf("close cleanup broker %s/%s: %w", a.Account, a.Container, err)
			}
			if !replicated {
				return nil
			}
			if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove cleanup db %s: %w", a.Path, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	p.Factory.ResetPhase()
	return nil
}
