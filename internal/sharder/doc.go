// Package sharder is the per-pass orchestrator and the daemon loop
// around it. Pass.Run audits a local container database's sysmeta to
// decide whether it participates in sharding, builds a
// trie.CountingTrie from its listing, relocates misplaced objects
// through resolver.Resolve and broker.Factory, then performs at most
// one split per database per pass.
//
// Replication pushes, misplaced-object fills and cleanup deletes fan out
// through a bounded golang.org/x/sync/errgroup pool sized by
// Pass.Concurrency. Internal-client calls (trie fetches and container
// PUTs) are made one at a time on the calling goroutine, as is all trie
// and counting-trie mutation.
package sharder
