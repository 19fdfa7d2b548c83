package sharder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/shardctl/internal/containerdb"
	"github.com/dreamware/shardctl/internal/resolver"
	"github.com/dreamware/shardctl/internal/ring"
	"github.com/dreamware/shardctl/internal/trie"
)

// relocateMisplaced routes every misplaced record to its authoritative
// shard, fills and replicates a handoff broker per destination prefix,
// then merges a single tombstone batch back into lc covering everything
// successfully relocated.
//
// Each destination's new data is replicated before lc's tombstone merge
// is issued; that merge itself only ever sees records whose destination
// already replicated successfully, so a destination this node can't yet
// reach (no local handoff device) simply keeps its rows in lc for a
// future pass to retry, rather than tombstoning data nobody else has a
// copy of.
func (p *Pass) relocateMisplaced(
	ctx context.Context,
	lc LocalContainer,
	rootAccount, rootContainer string,
	policyIndex int,
	rootTrie *trie.ShardTrie,
	cache map[string]*trie.ShardTrie,
	misplaced []trie.MisplacedRecord,
) error {
	buckets := make(map[string][]containerdb.ObjectRecord)
	for _, m := range misplaced {
		rec, ok := m.Data.(containerdb.ObjectRecord)
		if !ok {
			continue
		}

		dest, err := resolver.Resolve(ctx, p.Client, cache, rootTrie, rootAccount, rootContainer, m.Key)
		if err != nil {
			return fmt.Errorf("resolve misplaced key %q: %w", m.Key, err)
		}
		buckets[dest] = append(buckets[dest], rec)
	}
	if len(buckets) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	var mu sync.Mutex
	var tombstones []containerdb.ObjectRecord
	ts := p.now()

	for dest, recs := range buckets {
		dest, recs := dest, recs
		g.Go(func() error {
			a, err := p.Factory.GetAndFillObjects(gctx, dest, recs, rootAccount, rootContainer, policyIndex, false, time.Time{})
			if errors.Is(err, ring.ErrDeviceUnavailable) {
				p.logger().Warn("sharder: no local handoff device for misplaced prefix, retrying next pass",
					zap.String("prefix", dest))
				return nil
			}
			if err != nil {
				return fmt.Errorf("fill handoff broker for prefix %q: %w", dest, err)
			}

			if err := p.replicate(gctx, a); err != nil {
				return fmt.Errorf("replicate handoff broker for prefix %q: %w", dest, err)
			}

			mu.Lock()
			for _, r := range recs {
				r.Deleted = true
				r.CreatedAt = ts
				tombstones = append(tombstones, r)
			}
			mu.Unlock()

			if p.Metrics != nil {
				p.Metrics.Misplaced.Add(float64(len(recs)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(tombstones) == 0 {
		return nil
	}
	if err := lc.Broker.MergeItems(ctx, tombstones, nil); err != nil {
		return fmt.Errorf("tombstone relocated objects in %s/%s: %w", lc.Account, lc.Container, err)
	}
	return nil
}
