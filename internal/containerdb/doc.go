// Package containerdb defines the narrow view a container database needs
// to expose to the sharder: a paged object listing, the set of prefixes
// already handed off to a shard, per-container metadata, and a way to
// merge freshly split records into a brand-new handoff container.
//
// Broker is the interface the rest of this module programs against.
// BoltBroker is the concrete implementation, backed by go.etcd.io/bbolt,
// with one database file per container and a small, fixed bucket layout:
// objects, trie nodes, and metadata.
package containerdb
