package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreamware/shardctl/internal/broker"
	"github.com/dreamware/shardctl/internal/internalclient"
	"github.com/dreamware/shardctl/internal/trie"
)

// Resolve returns the prefix of the shard that owns key, starting the
// walk at cur (typically the root container's own trie) and recursing
// across distributed-branch nodes as needed. cache is shared across an
// entire pass so a branch fetched once is reused for every subsequent
// key that crosses it.
func Resolve(ctx context.Context, client *internalclient.Client, cache map[string]*trie.ShardTrie, cur *trie.ShardTrie, rootAccount, rootContainer, key string) (string, error) {
	_, err := cur.Lookup(key)
	if err == nil {
		return cur.RootKey(), nil
	}
	if errors.Is(err, trie.ErrNotFound) {
		return cur.RootKey(), nil
	}

	dbe, ok := trie.AsDistributedBranch(err)
	if !ok {
		return "", fmt.Errorf("resolver: lookup %q: %w", key, err)
	}

	next, ok := cache[dbe.Key]
	if !ok {
		fetched, err := fetchFragment(ctx, client, rootAccount, rootContainer, dbe.Key)
		if err != nil {
			return "", err
		}
		cache[dbe.Key] = fetched
		next = fetched
	}

	return Resolve(ctx, client, cache, next, rootAccount, rootContainer, key)
}

func fetchFragment(ctx context.Context, client *internalclient.Client, rootAccount, rootContainer, branch string) (*trie.ShardTrie, error) {
	acct, cont := broker.ShardIdentity(rootAccount, rootContainer, branch)

	t, err := fetchAndDecode(ctx, client, acct, cont, branch)
	if err != nil {
		return nil, fmt.Errorf("resolver: fetch fragment %q: %w", branch, err)
	}
	return t, nil
}

// FetchRootTrie fetches the root container's own distributed-branch trie
// directly: account/container are the root identity itself, never a
// derived shard identity, mirroring `_get_shard_trie(account, container)`
// called straight against the root in the source's
// `_deal_with_misplaced_objects`. Every misplaced-object relocation must
// start its resolution here, not from a container's own local
// shard-nodes snapshot, since a non-root shard (or even the root, for
// branches discovered elsewhere in the tree) has no local knowledge of
// sibling or ancestor branches.
func FetchRootTrie(ctx context.Context, client *internalclient.Client, rootAccount, rootContainer string) (*trie.ShardTrie, error) {
	t, err := fetchAndDecode(ctx, client, rootAccount, rootContainer, "")
	if err != nil {
		return nil, fmt.Errorf("resolver: fetch root trie %s/%s: %w", rootAccount, rootContainer, err)
	}
	return t, nil
}

func fetchAndDecode(ctx context.Context, client *internalclient.Client, account, container, rootKeyIfEmpty string) (*trie.ShardTrie, error) {
	body, err := client.FetchTrieFragment(ctx, account, container)
	if err != nil {
		return nil, err
	}

	t, err := trie.Deserialize(body)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if t.IsEmpty() {
		t = trie.New(rootKeyIfEmpty)
	}
	t.TrimTrunk()
	return t, nil
}
