package sharder

import (
	"context"
	"sort"
	"strings"

	"github.com/dreamware/shardctl/internal/containerdb"
	"github.com/dreamware/shardctl/internal/trie"
)

// ingestListing feeds ct with every object record found while paging
// through src's listing, merge-joining each page's own trie-node rows
// against the object keys in sorted order: the distributed cursor only
// advances past a branch once the current object key has passed it
// (startswith or strictly greater). A distributed node is only
// registered with ct when an object key observed in the same page
// actually falls under it; a branch with no remaining local descendants
// in this page is silently skipped. This under-reports branches that
// have gone fully quiet, a deliberate tradeoff since it only ever
// suppresses a misplaced/candidate signal that would have been empty
// anyway.
func ingestListing(ctx context.Context, src containerdb.Broker, ct *trie.CountingTrie, limit int) error {
	marker := ""
	for {
		page, err := src.ListObjectsIter(ctx, marker, limit)
		if err != nil {
			return err
		}

		dist := make([]containerdb.TrieNodeRecord, len(page.TrieNodes))
		copy(dist, page.TrieNodes)
		sort.Slice(dist, func(i, j int) bool { return dist[i].Prefix < dist[j].Prefix })

		di := 0
		for _, o := range page.Objects {
			for di < len(dist) && (strings.HasPrefix(o.Name, dist[di].Prefix) || o.Name > dist[di].Prefix) {
				if strings.HasPrefix(o.Name, dist[di].Prefix) {
					ct.Add(dist[di].Prefix, true, nil)
				}
				di++
			}
			rec := o
			ct.Add(o.Name, false, rec)
		}

		if !page.More {
			return nil
		}
		marker = page.NextMarker
	}
}
