package broker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// ShardIdentity derives the (account, container) a shard database for
// (rootAccount, rootContainer, prefix) is addressed under. This module
// has no account namespace of its own to allocate shard names from, so
// the pair is derived deterministically: the account is rootAccount
// with a ".shards_" prefix, and the container is rootContainer followed
// by a short hash of prefix. Same inputs always produce the same shard
// identity, which is all the rest of this package depends on.
func ShardIdentity(rootAccount, rootContainer, prefix string) (account, container string) {
	account = ".shards_" + rootAccount
	container = fmt.Sprintf("%s-%s", rootContainer, shortHash(prefix))
	return account, container
}

// hashPath derives the synthetic path hash used to place a container's
// database file under the device's storage-directory layout.
func hashPath(account, container string) string {
	h := sha1.Sum([]byte(account + "/" + container))
	return hex.EncodeToString(h[:])
}

func shortHash(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}

// RelPath returns a's database path relative to whatever device mount
// point it lands on, the same relative layout every replica device for
// a's partition uses. Callers hand this straight to a replication.Pusher
// alongside the device returned by ring.PrimaryDevices.
func (a *Assignment) RelPath() string {
	hsh := hashPath(a.Account, a.Container)
	return filepath.Join(storageDirectory(a.Partition, hsh), hsh+".db")
}

// storageDirectory builds a path keyed by partition and the last three
// hex characters of the hash, which spreads a partition's many
// containers across subdirectories instead of one flat directory.
func storageDirectory(partition uint64, hsh string) string {
	suffix := hsh
	if len(suffix) > 3 {
		suffix = suffix[len(suffix)-3:]
	}
	return fmt.Sprintf("containers/%d/%s/%s", partition, suffix, hsh)
}
