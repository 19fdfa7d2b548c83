package broker

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dreamware/shardctl/internal/containerdb"
	"github.com/dreamware/shardctl/internal/ring"
	"github.com/dreamware/shardctl/internal/trie"
)

// shard sysmeta keys stamped on every handoff database once it is first
// associated with a non-root prefix.
const (
	MetaShardAccount   = "X-Container-Sysmeta-Shard-Account"
	MetaShardContainer = "X-Container-Sysmeta-Shard-Container"
	MetaShardPrefix    = "X-Container-Sysmeta-Shard-Prefix"
	metaPolicyIndex    = "storage_policy_index"

	// MetaAccount and MetaContainer record a database's own identity. A
	// device scan has no other way to recover which (account, container)
	// an on-disk file belongs to, since its path only encodes an
	// irreversible hash of the two.
	MetaAccount   = "X-Container-Account"
	MetaContainer = "X-Container-Container"
)

// Assignment is a memoized handoff broker: the partition and device it
// landed on, its derived identity, and the open database handle.
type Assignment struct {
	Partition uint64
	DeviceID  string
	Account   string
	Container string
	Path      string
	Broker    *containerdb.BoltBroker
}

// Factory opens and fills handoff shard brokers for a single sharder
// node, memoizing them within a pass so repeated fills of the same
// destination reuse one open broker instead of reopening it.
type Factory struct {
	localNodeID string
	ring        ring.Ring

	mu            sync.Mutex
	shardBrokers  map[string]*Assignment
	shardCleanups map[string]*Assignment
}

// NewFactory returns a Factory that places new shard databases on
// devices local to localNodeID, using r to resolve partitions and
// handoff devices.
func NewFactory(localNodeID string, r ring.Ring) *Factory {
	return &Factory{
		localNodeID:   localNodeID,
		ring:          r,
		shardBrokers:  make(map[string]*Assignment),
		shardCleanups: make(map[string]*Assignment),
	}
}

// GetShardBroker opens or creates the local handoff database for
// (account, container), memoizing it so repeated calls within the same
// phase reuse one handle. It returns ring.ErrDeviceUnavailable if this
// node has no local handoff device for the partition.
func (f *Factory) GetShardBroker(ctx context.Context, account, container string, policyIndex int) (*Assignment, error) {
	f.mu.Lock()
	if a, ok := f.shardBrokers[container]; ok {
		f.mu.Unlock()
		return a, nil
	}
	f.mu.Unlock()

	dev, part, err := ring.LocalHandoffDevice(f.ring, f.localNodeID, account, container)
	if err != nil {
		return nil, err
	}

	hsh := hashPath(account, container)
	dbPath := filepath.Join(dev.Path, storageDirectory(part, hsh), hsh+".db")

	_, statErr := os.Stat(dbPath)
	isNew := os.IsNotExist(statErr)

	b, err := containerdb.OpenBoltBroker(dbPath)
	if err != nil {
		return nil, fmt.Errorf("broker: open shard db for %s/%s: %w", account, container, err)
	}

	if isNew {
		meta := map[string]string{
			metaPolicyIndex: strconv.Itoa(policyIndex),
			MetaAccount:     account,
			MetaContainer:   container,
		}
		if err := b.SetMetadata(ctx, meta); err != nil {
			b.Close()
			return nil, fmt.Errorf("broker: initialize %s/%s: %w", account, container, err)
		}
	}

	a := &Assignment{Partition: part, DeviceID: dev.ID, Account: account, Container: container, Path: dbPath, Broker: b}

	f.mu.Lock()
	f.shardBrokers[container] = a
	f.shardCleanups[container] = a
	f.mu.Unlock()

	return a, nil
}

// GetAndFillObjects derives the shard identity for prefix, opens its
// broker, stamps shard-root metadata if this is the first fill, and
// merges objs in.
func (f *Factory) GetAndFillObjects(ctx context.Context, prefix string, objs []containerdb.ObjectRecord, rootAccount, rootContainer string, policyIndex int, delete bool, ts time.Time) (*Assignment, error) {
	acct, cont := ShardIdentity(rootAccount, rootContainer, prefix)
	a, err := f.GetShardBroker(ctx, acct, cont, policyIndex)
	if err != nil {
		return nil, err
	}
	if err := f.stampShardRoot(ctx, a, rootAccount, rootContainer, prefix); err != nil {
		return nil, err
	}

	records := make([]containerdb.ObjectRecord, len(objs))
	for i, o := range objs {
		o.StoragePolicyIndex = policyIndex
		if delete {
			o.Deleted = true
		}
		if !ts.IsZero() {
			o.CreatedAt = ts
		}
		records[i] = o
	}
	if err := a.Broker.MergeItems(ctx, records, nil); err != nil {
		return nil, fmt.Errorf("broker: merge objects into %s/%s: %w", acct, cont, err)
	}
	return a, nil
}

// GetAndFillTrie is the *trie.ShardTrie counterpart of GetAndFillObjects:
// it walks t's important nodes (or, with filterDist, only its data
// nodes) and merges each as an object or trie-node record.
func (f *Factory) GetAndFillTrie(ctx context.Context, prefix string, t *trie.ShardTrie, rootAccount, rootContainer string, policyIndex int, delete, filterDist bool, ts time.Time) (*Assignment, error) {
	acct, cont := ShardIdentity(rootAccount, rootContainer, prefix)
	a, err := f.GetShardBroker(ctx, acct, cont, policyIndex)
	if err != nil {
		return nil, err
	}
	if err := f.stampShardRoot(ctx, a, rootAccount, rootContainer, prefix); err != nil {
		return nil, err
	}

	var nodes iter.Seq[*trie.Node]
	if filterDist {
		nodes = t.DataNodes()
	} else {
		nodes = t.ImportantNodes()
	}

	var objs []containerdb.ObjectRecord
	var trieNodes []containerdb.TrieNodeRecord
	for n := range nodes {
		stamp := n.Timestamp
		if !ts.IsZero() {
			stamp = ts
		}
		if n.Flag == trie.FlagDistributedBranch {
			trieNodes = append(trieNodes, containerdb.TrieNodeRecord{Prefix: n.FullKey, Timestamp: stamp})
			continue
		}
		rec := containerdb.ObjectRecord{
			Name:               n.FullKey,
			CreatedAt:          stamp,
			StoragePolicyIndex: policyIndex,
			Deleted:            delete,
		}
		if n.Data != nil {
			rec.Size = n.Data.Size
			rec.ContentType = n.Data.ContentType
			rec.ETag = n.Data.ETag
		}
		objs = append(objs, rec)
	}

	if err := a.Broker.MergeItems(ctx, objs, trieNodes); err != nil {
		return nil, fmt.Errorf("broker: merge trie into %s/%s: %w", acct, cont, err)
	}
	return a, nil
}

func (f *Factory) stampShardRoot(ctx context.Context, a *Assignment, rootAccount, rootContainer, prefix string) error {
	if prefix == "" {
		return nil
	}
	meta, err := a.Broker.Metadata(ctx)
	if err != nil {
		return err
	}
	if _, ok := meta[MetaShardAccount]; ok {
		return nil
	}
	return a.Broker.SetMetadata(ctx, map[string]string{
		MetaShardAccount:   rootAccount,
		MetaShardContainer: rootContainer,
		MetaShardPrefix:    prefix,
	})
}

// Cleanups returns a snapshot of every broker assignment opened since
// the last ResetPhase, for the caller to replicate and then delete. It
// accumulates across an entire pass (every DB's misplaced-objects phase
// and candidate-split phase), not just the most recent one, since final
// cleanup only happens once at pass end.
func (f *Factory) Cleanups() []*Assignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Assignment, 0, len(f.shardCleanups))
	for _, a := range f.shardCleanups {
		out = append(out, a)
	}
	return out
}

// ResetMemo clears only the memoization map. The sharder pass calls this
// once a DB's misplaced-objects phase has fully replicated and accounted
// for its own brokers, so the candidate-split phase that follows never
// reuses a handle opened for a different prefix. Entries already
// registered in shardCleanups survive this call; they are only cleared
// by ResetPhase at the very end of the pass.
func (f *Factory) ResetMemo() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shardBrokers = make(map[string]*Assignment)
}

// ResetPhase clears both the memoization and cleanup maps. The sharder
// pass calls this exactly once, after draining and cleaning up every
// broker returned by Cleanups at the end of the local-DBs loop.
func (f *Factory) ResetPhase() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shardBrokers = make(map[string]*Assignment)
	f.shardCleanups = make(map[string]*Assignment)
}
