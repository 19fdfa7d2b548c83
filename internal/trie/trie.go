package trie

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

// ShardTrie is a radix-compressed prefix trie over object-name keys for a
// single container. The zero value is not usable; construct one with New.
type ShardTrie struct {
	rootKey   string
	root      *Node
	dataCount int
}

// New returns an empty trie whose logical root represents rootKey. rootKey
// is "" for the root container's own trie and the branch prefix for a
// trie fetched from a child shard.
func New(rootKey string) *ShardTrie {
	return &ShardTrie{
		rootKey: rootKey,
		root:    newNode("", rootKey, FlagInterior),
	}
}

// RootKey returns the prefix this trie's logical root represents.
func (t *ShardTrie) RootKey() string { return t.rootKey }

// IsEmpty reports whether the trie holds no data and no branches.
func (t *ShardTrie) IsEmpty() bool {
	return len(t.root.children) == 0 && t.root.Flag == FlagInterior
}

// DataNodeCount returns the number of FlagData nodes currently in the
// trie. It is maintained incrementally so callers can read it in O(1).
func (t *ShardTrie) DataNodeCount() int { return t.dataCount }

// Metadata returns a small snapshot of trie-level counters, mirroring the
// metadata a container stores alongside a fetched trie fragment.
func (t *ShardTrie) Metadata() map[string]int {
	return map[string]int{"data_node_count": t.dataCount}
}

// Insert adds or overwrites the object record for key. It returns a
// *DistributedBranchError if key's path would cross or land on an
// existing DISTRIBUTED_BRANCH node, since such a key belongs to a child
// shard and must not be reintroduced locally. A key that does not start
// with the trie's root prefix is rejected with an error.
func (t *ShardTrie) Insert(key string, data *ObjectData, ts time.Time) error {
	cur := t.root
	remaining, ok := strings.CutPrefix(key, t.rootKey)
	if !ok {
		return fmt.Errorf("trie: key %q is outside root %q", key, t.rootKey)
	}

	for {
		if remaining == "" {
			if cur.Flag != FlagData {
				t.dataCount++
			}
			cur.Flag = FlagData
			cur.Data = data
			cur.Timestamp = ts
			return nil
		}

		b := remaining[0]
		child, ok := cur.children[b]
		if !ok {
			leaf := newNode(remaining, cur.FullKey+remaining, FlagData)
			leaf.Data = data
			leaf.Timestamp = ts
			cur.children[b] = leaf
			t.dataCount++
			return nil
		}

		cpl := commonPrefixLen(child.Key, remaining)

		if cpl == len(child.Key) {
			if child.Flag == FlagDistributedBranch {
				return &DistributedBranchError{Key: child.FullKey}
			}
			cur = child
			remaining = remaining[cpl:]
			continue
		}

		// The edge only partially matches: split it at cpl.
		splitNode := newNode(child.Key[:cpl], cur.FullKey+child.Key[:cpl], FlagInterior)
		child.Key = child.Key[cpl:]
		splitNode.children[child.Key[0]] = child
		cur.children[b] = splitNode

		if cpl == len(remaining) {
			splitNode.Flag = FlagData
			splitNode.Data = data
			splitNode.Timestamp = ts
			t.dataCount++
			return nil
		}

		leaf := newNode(remaining[cpl:], splitNode.FullKey+remaining[cpl:], FlagData)
		leaf.Data = data
		leaf.Timestamp = ts
		splitNode.children[remaining[cpl]] = leaf
		t.dataCount++
		return nil
	}
}

// Lookup walks the trie for key, returning its FlagData node. It returns
// ErrNotFound if no node owns key, or a *DistributedBranchError if the
// walk crosses or lands on a DISTRIBUTED_BRANCH node.
func (t *ShardTrie) Lookup(key string) (*Node, error) {
	cur := t.root
	remaining, ok := strings.CutPrefix(key, t.rootKey)
	if !ok {
		return nil, ErrNotFound
	}

	for {
		if remaining == "" {
			switch cur.Flag {
			case FlagData:
				return cur, nil
			case FlagDistributedBranch:
				return nil, &DistributedBranchError{Key: cur.FullKey}
			default:
				return nil, ErrNotFound
			}
		}

		child, ok := cur.children[remaining[0]]
		if !ok {
			return nil, ErrNotFound
		}

		if child.Flag == FlagDistributedBranch {
			if strings.HasPrefix(remaining, child.Key) {
				return nil, &DistributedBranchError{Key: child.FullKey}
			}
			return nil, ErrNotFound
		}

		if !strings.HasPrefix(remaining, child.Key) {
			return nil, ErrNotFound
		}

		cur = child
		remaining = remaining[len(child.Key):]
	}
}

// locate walks to the node that represents prefix exactly, splitting an
// edge if prefix lands mid-edge so a boundary node exists there. It
// returns the node's parent (nil if prefix is the trie's own root), the
// byte the parent keys it under, and the node itself.
func (t *ShardTrie) locate(prefix string) (parent *Node, edge byte, node *Node, err error) {
	remaining, ok := strings.CutPrefix(prefix, t.rootKey)
	if !ok {
		return nil, 0, nil, ErrNotFound
	}
	if remaining == "" {
		return nil, 0, t.root, nil
	}

	cur := t.root

	for {
		b := remaining[0]
		child, ok := cur.children[b]
		if !ok {
			return nil, 0, nil, ErrNotFound
		}

		if child.Flag == FlagDistributedBranch {
			if child.Key == remaining {
				return cur, b, child, nil
			}
			if strings.HasPrefix(remaining, child.Key) {
				return nil, 0, nil, &DistributedBranchError{Key: child.FullKey}
			}
			return nil, 0, nil, ErrNotFound
		}

		switch {
		case child.Key == remaining:
			return cur, b, child, nil
		case len(remaining) > len(child.Key) && strings.HasPrefix(remaining, child.Key):
			cur = child
			remaining = remaining[len(child.Key):]
		case len(child.Key) > len(remaining) && strings.HasPrefix(child.Key, remaining):
			split := newNode(child.Key[:len(remaining)], cur.FullKey+child.Key[:len(remaining)], FlagInterior)
			child.Key = child.Key[len(remaining):]
			split.children[child.Key[0]] = child
			cur.children[b] = split
			return cur, b, split, nil
		default:
			return nil, 0, nil, ErrNotFound
		}
	}
}

// SplitTrie detaches the subtree rooted at prefix into a new, standalone
// ShardTrie and installs a DISTRIBUTED_BRANCH node in its place, stamped
// with ts. prefix need not land on an existing edge boundary; SplitTrie
// will split the enclosing edge to create one.
func (t *ShardTrie) SplitTrie(prefix string, ts time.Time) (*ShardTrie, error) {
	parent, edge, node, err := t.locate(prefix)
	if err != nil {
		return nil, err
	}
	if node.Flag == FlagDistributedBranch {
		return nil, ErrAlreadyDistributed
	}

	detached := countData(node)
	newTrie := &ShardTrie{rootKey: prefix, root: node, dataCount: detached}
	t.dataCount -= detached

	branch := newNode(node.Key, prefix, FlagDistributedBranch)
	branch.Timestamp = ts

	if parent == nil {
		t.root = branch
	} else {
		parent.children[edge] = branch
	}

	return newTrie, nil
}

// InsertDistributedBranch places a DISTRIBUTED_BRANCH node at prefix,
// creating whatever edges are needed to reach it. It is used to rebuild a
// trie from persisted records, where the branch is already known rather
// than freshly split out of local data, so unlike SplitTrie it never
// needs an existing node to detach. A prefix that is itself a descendant
// of an already-known branch is a no-op (the ancestor already covers
// it); a prefix that is an ancestor of an already-known branch replaces
// it, since the wider branch now subsumes the narrower one. A root
// container deliberately keeps nested branch rows a deeper split has
// since subsumed under a single top-level branch, so rebuilding its
// trie must tolerate both shapes rather than rejecting them. It still
// refuses to overwrite a node that already holds data or has children.
func (t *ShardTrie) InsertDistributedBranch(prefix string, ts time.Time) error {
	remaining, ok := strings.CutPrefix(prefix, t.rootKey)
	if !ok {
		return fmt.Errorf("trie: %q is outside root %q", prefix, t.rootKey)
	}
	if remaining == "" {
		if len(t.root.children) > 0 || t.root.Flag == FlagData {
			return fmt.Errorf("trie: root already has local content, cannot mark it distributed")
		}
		t.root = newNode("", t.rootKey, FlagDistributedBranch)
		t.root.Timestamp = ts
		return nil
	}

	cur := t.root

	for {
		b := remaining[0]
		child, ok := cur.children[b]
		if !ok {
			leaf := newNode(remaining, cur.FullKey+remaining, FlagDistributedBranch)
			leaf.Timestamp = ts
			cur.children[b] = leaf
			return nil
		}

		if child.Flag == FlagDistributedBranch {
			switch {
			case child.Key == remaining:
				return nil
			case strings.HasPrefix(remaining, child.Key):
				// remaining descends from an already-known branch; that
				// branch already covers it, so there is nothing to add.
				return nil
			case strings.HasPrefix(child.Key, remaining):
				// remaining is an ancestor of the known branch; the wider
				// branch subsumes it.
				leaf := newNode(remaining, cur.FullKey+remaining, FlagDistributedBranch)
				leaf.Timestamp = ts
				cur.children[b] = leaf
				return nil
			}
		}

		cpl := commonPrefixLen(child.Key, remaining)

		if cpl == len(child.Key) {
			cur = child
			remaining = remaining[cpl:]
			continue
		}

		if cpl == len(remaining) {
			// prefix ends partway along this edge; child (Data, or
			// Interior guarding further children) always represents real
			// content strictly below prefix, so prefix cannot become a
			// branch without first detaching that content via SplitTrie.
			return fmt.Errorf("trie: %q already has local content, cannot mark it distributed", prefix)
		}

		splitNode := newNode(child.Key[:cpl], cur.FullKey+child.Key[:cpl], FlagInterior)
		child.Key = child.Key[cpl:]
		splitNode.children[child.Key[0]] = child
		cur.children[b] = splitNode

		leaf := newNode(remaining[cpl:], splitNode.FullKey+remaining[cpl:], FlagDistributedBranch)
		leaf.Timestamp = ts
		splitNode.children[remaining[cpl]] = leaf
		return nil
	}
}

// TrimTrunk collapses a chain of single-child interior nodes at the top
// of the trie into the trie's own root prefix. It is a no-op on an empty
// trie or one whose root already branches or holds data.
func (t *ShardTrie) TrimTrunk() {
	cur := t.root
	consumed := ""

	for cur.Flag == FlagInterior && len(cur.children) == 1 {
		var only *Node
		for _, c := range cur.children {
			only = c
		}
		consumed += only.Key
		cur = only
	}

	if consumed == "" {
		return
	}

	t.rootKey += consumed
	t.root = cur
}

// DataNodes returns a lazy in-order (lexicographic) traversal over the
// trie's FlagData nodes.
func (t *ShardTrie) DataNodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walkInOrder(t.root, func(n *Node) bool {
			if n.Flag != FlagData {
				return true
			}
			return yield(n)
		})
	}
}

// ImportantNodes returns a lazy in-order traversal over nodes that matter
// to a caller reconstructing a listing: FlagData and
// FlagDistributedBranch nodes, skipping pure structural FlagInterior
// nodes.
func (t *ShardTrie) ImportantNodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walkInOrder(t.root, func(n *Node) bool {
			if n.Flag == FlagInterior {
				return true
			}
			return yield(n)
		})
	}
}

func walkInOrder(n *Node, visit func(*Node) bool) bool {
	if !visit(n) {
		return false
	}
	for _, b := range n.sortedChildKeys() {
		if !walkInOrder(n.children[b], visit) {
			return false
		}
	}
	return true
}

// LastNode returns the full key of the lexicographically greatest
// FlagData node in the trie, or "" if the trie holds no data.
func (t *ShardTrie) LastNode() string {
	last := ""
	for n := range t.DataNodes() {
		last = n.FullKey
	}
	return last
}
