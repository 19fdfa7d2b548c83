package trie

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup when no node, data or branch, owns the
// requested key.
var ErrNotFound = errors.New("trie: key not found")

// ErrAlreadyDistributed is returned by SplitTrie when the prefix names a
// node that is already a DISTRIBUTED_BRANCH.
var ErrAlreadyDistributed = errors.New("trie: prefix already distributed")

// DistributedBranchError signals that resolving a key requires crossing
// into a child shard container. Key is the full prefix of the
// DISTRIBUTED_BRANCH node the walk landed on or passed through.
type DistributedBranchError struct {
	Key string
}

func (e *DistributedBranchError) Error() string {
	return fmt.Sprintf("trie: %q is owned by a distributed branch", e.Key)
}

// AsDistributedBranch reports whether err is (or wraps) a
// *DistributedBranchError, returning it on success.
func AsDistributedBranch(err error) (*DistributedBranchError, bool) {
	var dbe *DistributedBranchError
	if errors.As(err, &dbe) {
		return dbe, true
	}
	return nil, false
}
