package sharder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardctl/internal/containerdb"
	"github.com/dreamware/shardctl/internal/trie"
)

// splitCandidate carries out the one split chosen for this pass: split
// the candidate prefix out of lc's trie, materialize and replicate the
// new shard broker, merge the tombstones and the new distributed-branch
// pointer back into lc, and, if lc is not itself the root container,
// propagate the new pointer up to the root.
//
// containerdb.BuildShardTrie pages through the whole container until
// exhausted rather than stopping at one listing-limit chunk, so the
// full candidate subtree is already in memory by the time SplitTrie
// runs; there is no separate paged "fetch more of the candidate's
// subtree" step to run afterward.
func (p *Pass) splitCandidate(
	ctx context.Context,
	lc LocalContainer,
	rootAccount, rootContainer string,
	isRoot bool,
	policyIndex int,
	candidate string,
) error {
	full, err := containerdb.BuildShardTrie(ctx, lc.Broker, "")
	if err != nil {
		return fmt.Errorf("build trie for %s/%s: %w", lc.Account, lc.Container, err)
	}

	ts := p.now()
	split, err := full.SplitTrie(candidate, ts)
	if err != nil {
		if errors.Is(err, trie.ErrAlreadyDistributed) {
			return errMalformedCandidate
		}
		return fmt.Errorf("split %q in %s/%s: %w", candidate, lc.Account, lc.Container, err)
	}

	newShard, err := p.Factory.GetAndFillTrie(ctx, candidate, split, rootAccount, rootContainer, policyIndex, false, false, time.Time{})
	if err != nil {
		return fmt.Errorf("fill new shard broker for %q: %w", candidate, err)
	}

	if err := p.Client.CreateContainer(ctx, newShard.Account, newShard.Container, p.StoragePolicy); err != nil {
		// A failure here is logged and tolerated: the replication engine
		// will still land the new shard's database, and a future pass's
		// merge_items calls are idempotent either way.
		p.logger().Warn("sharder: create_container for new shard failed, continuing",
			zap.String("account", newShard.Account), zap.String("container", newShard.Container), zap.Error(err))
	}

	if err := p.replicate(ctx, newShard); err != nil {
		return fmt.Errorf("replicate new shard %q: %w", candidate, err)
	}

	if err := p.mergeTombstonesAndPointer(ctx, lc, split, candidate, isRoot, ts); err != nil {
		return err
	}

	if !isRoot {
		if err := p.propagateToRoot(ctx, rootAccount, rootContainer, policyIndex, candidate, ts); err != nil {
			p.logger().Warn("sharder: propagate new branch to root failed, next pass will retry",
				zap.String("candidate", candidate), zap.Error(err))
		}
	}

	return nil
}

// mergeTombstonesAndPointer issues a single merge_items call into lc
// carrying both the tombstones for every object
// that moved into split and the one new TRIE_NODE record for candidate,
// so readers never observe one change without the other. Whether a
// nested DISTRIBUTED_BRANCH row inside split is also tombstoned here
// depends on isRoot: a root container keeps such rows around (it is the
// tree's single point of global branch knowledge), so they are left
// alone; any other container drops them, since once candidate becomes a
// branch its whole subtree — including any branch rows nested under
// it — is exclusively the new shard's concern (already carried over by
// GetAndFillTrie above), and leaving a stale nested row behind would
// make this container's own next BuildShardTrie rebuild see two branches
// in a prefix relation.
func (p *Pass) mergeTombstonesAndPointer(ctx context.Context, lc LocalContainer, split *trie.ShardTrie, candidate string, isRoot bool, ts time.Time) error {
	var tombstoneObjs []containerdb.ObjectRecord
	var tombstoneNodes []containerdb.TrieNodeRecord
	for n := range split.ImportantNodes() {
		switch n.Flag {
		case trie.FlagData:
			tombstoneObjs = append(tombstoneObjs, containerdb.ObjectRecord{Name: n.FullKey, Deleted: true, CreatedAt: ts})
		case trie.FlagDistributedBranch:
			if !isRoot {
				tombstoneNodes = append(tombstoneNodes, containerdb.TrieNodeRecord{Prefix: n.FullKey, Timestamp: ts, Deleted: true})
			}
		}
	}

	tombstoneNodes = append(tombstoneNodes, containerdb.TrieNodeRecord{Prefix: candidate, Timestamp: ts})
	if err := lc.Broker.MergeItems(ctx, tombstoneObjs, tombstoneNodes); err != nil {
		return fmt.Errorf("merge tombstones and new branch pointer into %s/%s: %w", lc.Account, lc.Container, err)
	}
	return nil
}

// propagateToRoot pushes the new distributed-branch pointer up to the
// root container so future client requests are routed correctly without
// waiting for the root's own next pass to discover it. It fills a local
// handoff broker for (rootAccount, rootContainer, "") directly rather
// than through broker.ShardIdentity (which would derive a synthetic
// shard identity for prefix "" instead of addressing the root container
// itself).
func (p *Pass) propagateToRoot(ctx context.Context, rootAccount, rootContainer string, policyIndex int, candidate string, ts time.Time) error {
	a, err := p.Factory.GetShardBroker(ctx, rootAccount, rootContainer, policyIndex)
	if err != nil {
		return fmt.Errorf("open root broker %s/%s: %w", rootAccount, rootContainer, err)
	}

	pointer := []containerdb.TrieNodeRecord{{Prefix: candidate, Timestamp: ts}}
	if err := a.Broker.MergeItems(ctx, nil, pointer); err != nil {
		return fmt.Errorf("merge new branch pointer into root %s/%s: %w", rootAccount, rootContainer, err)
	}
	return p.replicate(ctx, a)
}
