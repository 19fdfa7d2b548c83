// Package trie implements the shard trie: a radix-compressed prefix tree
// over object-name keys that records, for a single container, which keys
// live locally (DATA nodes) and which prefixes have been handed off to a
// child shard container (DISTRIBUTED_BRANCH nodes).
//
// A ShardTrie is built by replaying a container's object listing through
// Insert. Once built, Lookup walks the compressed edges to find the node
// owning a key; if the walk crosses a DISTRIBUTED_BRANCH node it returns a
// *DistributedBranchError naming the branch prefix, so the caller can
// re-resolve the key against the shard that now owns it instead of
// reporting it missing.
//
// SplitTrie detaches a subtree at an exact prefix boundary, returning it as
// a standalone trie and leaving a DISTRIBUTED_BRANCH marker in its place.
// TrimTrunk collapses a run of single-child interior nodes at the top of a
// trie into the trie's root prefix, which keeps a trie fetched for a
// narrow branch from carrying dead structure above its real content.
//
// CountingTrie is a separate, pass-scoped structure used while ingesting an
// object listing: it tracks subtree sizes to find split candidates and
// cross-references already-seen DISTRIBUTED_BRANCH prefixes to find
// objects that a prior split left behind in the wrong container.
package trie
