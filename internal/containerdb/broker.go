package containerdb

import (
	"context"
	"time"

	"github.com/dreamware/shardctl/internal/trie"
)

// ObjectRecord is one row of a container's object table.
type ObjectRecord struct {
	Name               string
	Size               int64
	ContentType        string
	ETag               string
	Deleted            bool
	StoragePolicyIndex int
	CreatedAt          time.Time
}

// TrieNodeRecord marks a prefix this container has handed off to a child
// shard container. It is the persisted form of a trie.Node with
// trie.FlagDistributedBranch. Deleted tombstones a row that no longer
// belongs here (its subtree moved again under a later split), the same
// way ObjectRecord.Deleted tombstones an object row.
type TrieNodeRecord struct {
	Prefix    string
	Timestamp time.Time
	Deleted   bool
}

// Page is one page of a listing: the object and trie-node rows in the
// range, in sorted key order, plus the marker to pass to the next call
// (the last key seen). More reports whether rows remain past that
// marker.
type Page struct {
	Objects    []ObjectRecord
	TrieNodes  []TrieNodeRecord
	NextMarker string
	More       bool
}

// Broker is the set of operations the sharder needs from a container
// database. It deliberately does not expose anything about how rows are
// stored; BoltBroker is one implementation, but the sharder and resolver
// packages only ever see this interface.
type Broker interface {
	// ListObjectsIter returns up to limit combined object and trie-node
	// rows whose key is strictly greater than marker, in sorted order.
	ListObjectsIter(ctx context.Context, marker string, limit int) (Page, error)

	// ShardNodes returns every live TrieNodeRecord currently stored,
	// without walking the full object listing. Tombstoned rows are
	// omitted, the same way a deleted object never resurfaces once its
	// tombstone has been merged.
	ShardNodes(ctx context.Context) ([]TrieNodeRecord, error)

	// Metadata returns the container's sysmeta key/value pairs (shard
	// root path, quoted root/parent references, and so on).
	Metadata(ctx context.Context) (map[string]string, error)

	// SetMetadata merges kv into the container's sysmeta.
	SetMetadata(ctx context.Context, kv map[string]string) error

	// StoragePolicyIndex returns the storage policy this container's
	// objects are placed under.
	StoragePolicyIndex(ctx context.Context) (int, error)

	// MergeItems upserts objects and trieNodes into the container, a row
	// only overwriting an existing one if its timestamp is newer, the
	// replicated merge semantics every broker implementation must give
	// callers so retries and concurrent pushes are safe to repeat.
	MergeItems(ctx context.Context, objects []ObjectRecord, trieNodes []TrieNodeRecord) error

	// DeleteObjects removes the named object rows outright, with no
	// tombstone left behind. The sharder pass does not call it: it
	// retires relocated rows by merging tombstones through MergeItems.
	DeleteObjects(ctx context.Context, names []string) error

	// Close releases the underlying database handle.
	Close() error
}

// BuildShardTrie replays every live row a Broker holds into a fresh
// trie.ShardTrie rooted at rootKey. Tombstoned object rows are skipped;
// the remaining object rows become FlagData nodes;
// trie-node rows become FlagDistributedBranch nodes placed directly,
// since the broker already knows these prefixes were split out and holds
// no local data beneath them.
func BuildShardTrie(ctx context.Context, b Broker, rootKey string) (*trie.ShardTrie, error) {
	t := trie.New(rootKey)

	nodes, err := b.ShardNodes(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if err := t.InsertDistributedBranch(n.Prefix, n.Timestamp); err != nil {
			return nil, err
		}
	}

	marker := ""
	for {
		page, err := b.ListObjectsIter(ctx, marker, listingLimit)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Objects {
			if o.Deleted {
				continue
			}
			data := &trie.ObjectData{
				Size:               o.Size,
				ContentType:        o.ContentType,
				ETag:               o.ETag,
				Deleted:            o.Deleted,
				StoragePolicyIndex: o.StoragePolicyIndex,
			}
			if err := t.Insert(o.Name, data, o.CreatedAt); err != nil {
				return nil, err
			}
		}
		if !page.More {
			break
		}
		marker = page.NextMarker
	}

	return t, nil
}

// listingLimit bounds how many rows ListObjectsIter returns per call.
const listingLimit = 10000
