package trie

import (
	"strings"

	"golang.org/x/exp/slices"
)

// MisplacedRecord describes an object that a CountingTrie found living
// under a prefix that a prior split already handed off to a shard.
type MisplacedRecord struct {
	Key                 string
	DistributedAncestor string
	Data                any
}

type cnode struct {
	fullKey     string
	count       int
	isCandidate bool
	blocked     bool
	parent      *cnode
	children    map[byte]*cnode
}

type nonDistEntry struct {
	key  string
	data any
}

// CountingTrie is a pass-scoped bookkeeping structure used while ingesting
// a container's object listing. It tracks, per prefix strictly below its
// configured root, how many objects have been seen under that prefix, and
// emits the prefix as a split candidate the first time that count reaches
// groupCount. It separately tracks DISTRIBUTED_BRANCH prefixes registered
// during the same ingestion so objects that already belong to a shard
// (but weren't yet physically removed from this container) can be
// reported as misplaced.
//
// Candidate discovery is order-dependent by design (first prefix to
// saturate wins, in FIFO order) and mirrors how a single sequential pass
// over a sorted listing finds its first split point. Misplaced discovery
// is not order-dependent: it is computed from the final set of
// distributed markers and non-distributed adds, so interleaving order
// during ingestion never changes the result.
type CountingTrie struct {
	prefix     string
	groupCount int
	root       *cnode

	candidates []string

	distributed    map[string]struct{}
	nonDistributed []nonDistEntry
}

// NewCountingTrie returns a CountingTrie rooted at prefix (the container's
// own trie root, normally "" or a branch prefix) that emits a candidate
// once a descendant prefix's object count reaches groupCount.
func NewCountingTrie(prefix string, groupCount int) *CountingTrie {
	return &CountingTrie{
		prefix:      prefix,
		groupCount:  groupCount,
		root:        &cnode{fullKey: prefix, children: make(map[byte]*cnode)},
		distributed: make(map[string]struct{}),
	}
}

// Add registers one key seen during ingestion. When distributed is true,
// key is a DISTRIBUTED_BRANCH prefix encountered in the listing (a
// TRIE_NODE record); otherwise it is a live object key and data is
// retained for Misplaced.
func (c *CountingTrie) Add(key string, distributed bool, data any) {
	if distributed {
		c.distributed[key] = struct{}{}
		c.touch(key, false)
		return
	}

	c.nonDistributed = append(c.nonDistributed, nonDistEntry{key: key, data: data})
	c.touch(key, true)
}

// touch walks the path for key below c.prefix, creating nodes as needed.
// When count is true it increments subtree sizes and checks for new
// candidates; distributed markers call it with count=false purely to
// materialize the node the flag will be checked against later.
func (c *CountingTrie) touch(key string, count bool) {
	if !strings.HasPrefix(key, c.prefix) {
		return
	}
	suffix := key[len(c.prefix):]
	cur := c.root
	path := make([]*cnode, 0, len(suffix))

	for i := 0; i < len(suffix); i++ {
		b := suffix[i]
		child, ok := cur.children[b]
		if !ok {
			child = &cnode{
				fullKey:  cur.fullKey + string(b),
				parent:   cur,
				children: make(map[byte]*cnode),
			}
			cur.children[b] = child
		}
		cur = child
		if count {
			cur.count++
		}
		path = append(path, cur)
	}

	if !count {
		return
	}

	// Check the path deepest node first: subtree size only grows moving
	// toward the root, so the shallowest qualifying prefix is never the
	// most specific one. Picking the deepest eligible node first keeps
	// candidates as small as the data allows instead of always widening
	// to the outermost level.
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		if n.isCandidate || n.blocked || c.ancestorIsCandidate(n) {
			continue
		}
		if n.count >= c.groupCount {
			n.isCandidate = true
			c.candidates = append(c.candidates, n.fullKey)
			for p := n.parent; p != nil; p = p.parent {
				p.blocked = true
			}
		}
	}
}

func (c *CountingTrie) ancestorIsCandidate(n *cnode) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p.isCandidate {
			return true
		}
	}
	return false
}

// Candidates returns the prefixes found to have saturated groupCount, in
// the order they were discovered.
func (c *CountingTrie) Candidates() []string {
	out := make([]string, len(c.candidates))
	copy(out, c.candidates)
	return out
}

// Misplaced returns every non-distributed add whose key falls strictly
// under a registered distributed prefix, paired with the nearest such
// ancestor. The result is sorted by key for determinism; it depends only
// on the final set of adds, not on the order Add was called in.
func (c *CountingTrie) Misplaced() []MisplacedRecord {
	var out []MisplacedRecord
	for _, e := range c.nonDistributed {
		best := ""
		for d := range c.distributed {
			if d == e.key {
				continue
			}
			if strings.HasPrefix(e.key, d) && len(d) > len(best) {
				best = d
			}
		}
		if best != "" {
			out = append(out, MisplacedRecord{Key: e.key, DistributedAncestor: best, Data: e.data})
		}
	}
	slices.SortFunc(out, func(a, b MisplacedRecord) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		default:
			return 0
		}
	})
	return out
}
