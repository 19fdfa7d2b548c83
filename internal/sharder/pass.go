package sharder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/shardctl/internal/broker"
	"github.com/dreamware/shardctl/internal/containerdb"
	"github.com/dreamware/shardctl/internal/internalclient"
	"github.com/dreamware/shardctl/internal/replication"
	"github.com/dreamware/shardctl/internal/resolver"
	"github.com/dreamware/shardctl/internal/ring"
	"github.com/dreamware/shardctl/internal/telemetry"
	"github.com/dreamware/shardctl/internal/trie"
)

// metaSharding is the opt-in header a root container carries to signal
// it participates in sharding even before any shard-root sysmeta has
// been stamped on it by a prior split.
const metaSharding = "X-Container-Sysmeta-Sharding"

// Pass is the per-pass orchestrator: one call to Run audits every
// LocalContainer handed to it and performs at most one split per
// container.
type Pass struct {
	LocalNodeID   string
	Ring          ring.Ring
	Factory       *broker.Factory
	Pusher        replication.Pusher
	Client        *internalclient.Client
	GroupCount    int
	ListingLimit  int
	Concurrency   int
	StoragePolicy string
	Logger        *zap.Logger
	Metrics       *telemetry.Metrics
}

// PassStats are the per-pass counters reset on every call to Run; only
// the elapsed duration reaches recon, but the rest are logged at pass
// end. The prometheus counters in internal/telemetry are incremented
// alongside them, not computed from them.
type PassStats struct {
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	Empty     int
}

type runResult int

const (
	resultSkipped runResult = iota
	resultEmpty
	resultSplit
)

var errMalformedCandidate = errors.New("sharder: split candidate is already a distributed branch")

func (p *Pass) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

func (p *Pass) concurrency() int {
	if p.Concurrency < 1 {
		return 1
	}
	return p.Concurrency
}

// defaultListingLimit mirrors containerdb's own CONTAINER_LISTING_LIMIT
// default, used when a Pass is constructed without an explicit one.
const defaultListingLimit = 10000

func (p *Pass) listingLimit() int {
	if p.ListingLimit < 1 {
		return defaultListingLimit
	}
	return p.ListingLimit
}

// Run audits every container in containers, in order, performing at
// most one split per container. Arithmetic (trie mutation, counting
// trie ingestion) runs sequentially on the calling goroutine; network
// fan-out within each container's misplaced-object relocation and the
// final cleanup drain use a bounded worker pool.
func (p *Pass) Run(ctx context.Context, containers []LocalContainer) (PassStats, error) {
	var stats PassStats

	// passID has no meaning beyond this call; it only lets every log line
	// emitted during one pass be grepped out of a multi-pass log stream.
	passID := uuid.New().String()
	logger := p.logger().With(zap.String("pass_id", passID))

	if p.Metrics != nil {
		p.Metrics.PassAttempted.Inc()
	}

	for _, lc := range containers {
		stats.Attempted++

		result, err := p.runOne(ctx, lc)
		if err != nil {
			stats.Failed++
			if p.Metrics != nil {
				p.Metrics.PassErrors.Inc()
			}
			logger.Error("sharder pass failed for container",
				zap.String("account", lc.Account), zap.String("container", lc.Container), zap.Error(err))
			continue
		}

		switch result {
		case resultSkipped:
			stats.Skipped++
		case resultEmpty:
			stats.Empty++
		case resultSplit:
			stats.Succeeded++
		}
	}

	if err := p.drainCleanups(ctx); err != nil {
		return stats, fmt.Errorf("sharder: drain cleanups: %w", err)
	}

	logger.Info("sharder pass complete",
		zap.String("node", p.LocalNodeID),
		zap.Int("attempted", stats.Attempted), zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed), zap.Int("skipped", stats.Skipped), zap.Int("empty", stats.Empty))

	return stats, nil
}

// runOne audits one container: it decides whether it participates in
// sharding, ingests its listing into a counting trie, relocates any
// misplaced objects, and performs the split for the best candidate the
// counting trie found, if any.
func (p *Pass) runOne(ctx context.Context, lc LocalContainer) (runResult, error) {
	meta, err := lc.Broker.Metadata(ctx)
	if err != nil {
		return resultSkipped, fmt.Errorf("read metadata for %s/%s: %w", lc.Account, lc.Container, err)
	}

	if meta[metaSharding] != "On" && meta[broker.MetaShardAccount] == "" {
		return resultSkipped, nil
	}

	rootAccount := meta[broker.MetaShardAccount]
	rootContainer := meta[broker.MetaShardContainer]
	if rootAccount == "" {
		rootAccount, rootContainer = lc.Account, lc.Container
	}
	prefix := meta[broker.MetaShardPrefix]
	isRoot := rootAccount == lc.Account && rootContainer == lc.Container

	policyIndex, err := lc.Broker.StoragePolicyIndex(ctx)
	if err != nil {
		return resultSkipped, fmt.Errorf("read storage policy for %s/%s: %w", lc.Account, lc.Container, err)
	}

	var shardNodes []containerdb.TrieNodeRecord
	if !isRoot {
		shardNodes, err = lc.Broker.ShardNodes(ctx)
		if err != nil {
			return resultSkipped, fmt.Errorf("read shard nodes for %s/%s: %w", lc.Account, lc.Container, err)
		}
	}

	ct := trie.NewCountingTrie(prefix, p.GroupCount)
	for _, n := range shardNodes {
		ct.Add(n.Prefix, true, nil)
	}
	if err := ingestListing(ctx, lc.Broker, ct, p.listingLimit()); err != nil {
		return resultSkipped, fmt.Errorf("ingest listing for %s/%s: %w", lc.Account, lc.Container, err)
	}

	if misplaced := ct.Misplaced(); len(misplaced) > 0 {
		// Resolution must start from the root container's own globally-known
		// distributed-branch trie, fetched fresh over the internal client,
		// not from this container's local shard-nodes snapshot: a non-root
		// shard (or even the root, for branches discovered elsewhere in the
		// tree) has no local knowledge of sibling/ancestor branches.
		rootTrie, err := resolver.FetchRootTrie(ctx, p.Client, rootAccount, rootContainer)
		if err != nil {
			return resultSkipped, fmt.Errorf("fetch root trie for %s/%s: %w", lc.Account, lc.Container, err)
		}
		cache := map[string]*trie.ShardTrie{"": rootTrie}
		if err := p.relocateMisplaced(ctx, lc, rootAccount, rootContainer, policyIndex, rootTrie, cache, misplaced); err != nil {
			return resultSkipped, fmt.Errorf("relocate misplaced objects for %s/%s: %w", lc.Account, lc.Container, err)
		}
		p.Factory.ResetMemo()
	}

	candidates := ct.Candidates()
	if len(candidates) == 0 {
		return resultEmpty, nil
	}

	err = p.splitCandidate(ctx, lc, rootAccount, rootContainer, isRoot, policyIndex, candidates[0])
	if err != nil {
		if errors.Is(err, errMalformedCandidate) {
			p.logger().Warn("sharder candidate already distributed, skipping",
				zap.String("account", lc.Account), zap.String("container", lc.Container), zap.String("candidate", candidates[0]))
			return resultSkipped, nil
		}
		if errors.Is(err, ring.ErrDeviceUnavailable) {
			p.logger().Warn("sharder no local handoff device for split candidate, retrying next pass",
				zap.String("account", lc.Account), zap.String("container", lc.Container), zap.String("candidate", candidates[0]))
			return resultSkipped, nil
		}
		return resultSkipped, err
	}

	if p.Metrics != nil {
		p.Metrics.Candidates.Inc()
	}
	return resultSplit, nil
}

func (p *Pass) now() time.Time { return time.Now().UTC() }
