// Package resolver resolves a key against a root container's trie:
// given the root's own trie and a key, it walks across
// distributed-branch nodes — fetching each remote fragment through
// internalclient, memoized in a per-pass cache — until the key resolves
// to the prefix of the shard that actually owns it.
//
// Resolve's recursion always consumes exactly one DISTRIBUTED_BRANCH
// level per call, so it terminates in O(depth) since the trie forest is
// acyclic by construction.
package resolver
