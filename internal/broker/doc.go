// Package broker is the shard broker factory: it opens or creates the
// local handoff database for a new shard, stamps it with shard-root
// metadata, and memoizes the open broker for the rest of a pass so
// repeated fills of the same shard reuse one database handle instead of
// reopening it.
//
// Factory.GetShardBroker computes the ring partition, picks a local
// handoff device, derives the deterministic on-disk path, and opens (or
// initializes) the bbolt file there. Factory.GetAndFillObjects and
// GetAndFillTrie translate either a raw row list or a *trie.ShardTrie
// into ObjectRecords and TrieNodeRecords and merge them in.
//
// ShardIdentity derives a synthetic account and container name for the
// shard database from the (root_account, root_container, prefix)
// triple, hashing the prefix into the container name, since this module has no real account/container namespace
// of its own to allocate names from.
package broker
