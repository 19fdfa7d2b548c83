package containerdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	objectsBucket   = []byte("objects")
	trieNodesBucket = []byte("trie_nodes")
	metaBucket      = []byte("meta")
)

// BoltBroker is a Broker backed by a single go.etcd.io/bbolt database
// file, one per container, with a fixed bucket schema for objects,
// trie nodes, and sysmeta.
type BoltBroker struct {
	db   *bolt.DB
	path string
}

// OpenBoltBroker opens (creating if necessary) the container database at
// path, ensuring its buckets exist.
func OpenBoltBroker(path string) (*BoltBroker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("containerdb: create dir for %s: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("containerdb: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{objectsBucket, trieNodesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("containerdb: init buckets in %s: %w", path, err)
	}

	return &BoltBroker{db: db, path: path}, nil
}

// Path returns the filesystem path of the underlying database file.
func (b *BoltBroker) Path() string { return b.path }

// Close implements Broker.
func (b *BoltBroker) Close() error { return b.db.Close() }

// ListObjectsIter implements Broker. It merges the objects and trie_nodes
// buckets in sorted-key order using two cursors, rather than loading
// every remaining row, so a page costs O(limit) regardless of how large
// the container is.
func (b *BoltBroker) ListObjectsIter(_ context.Context, marker string, limit int) (Page, error) {
	var page Page

	err := b.db.View(func(tx *bolt.Tx) error {
		objC := tx.Bucket(objectsBucket).Cursor()
		tnC := tx.Bucket(trieNodesBucket).Cursor()

		objK, objV := seekPast(objC, marker)
		tnK, tnV := seekPast(tnC, marker)

		count := 0
		for count < limit && (objK != nil || tnK != nil) {
			takeObj := objK != nil && (tnK == nil || string(objK) <= string(tnK))

			if takeObj {
				var rec ObjectRecord
				if err := json.Unmarshal(objV, &rec); err != nil {
					return fmt.Errorf("containerdb: decode object %q: %w", objK, err)
				}
				page.Objects = append(page.Objects, rec)
				page.NextMarker = string(objK)
				objK, objV = objC.Next()
			} else {
				var rec TrieNodeRecord
				if err := json.Unmarshal(tnV, &rec); err != nil {
					return fmt.Errorf("containerdb: decode trie node %q: %w", tnK, err)
				}
				if !rec.Deleted {
					page.TrieNodes = append(page.TrieNodes, rec)
				}
				page.NextMarker = string(tnK)
				tnK, tnV = tnC.Next()
			}
			count++
		}

		page.More = objK != nil || tnK != nil
		return nil
	})

	return page, err
}

func seekPast(c *bolt.Cursor, marker string) ([]byte, []byte) {
	k, v := c.Seek([]byte(marker))
	if k != nil && marker != "" && string(k) == marker {
		k, v = c.Next()
	}
	return k, v
}

// ShardNodes implements Broker.
func (b *BoltBroker) ShardNodes(_ context.Context) ([]TrieNodeRecord, error) {
	var out []TrieNodeRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(trieNodesBucket).ForEach(func(k, v []byte) error {
			var rec TrieNodeRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("containerdb: decode trie node %q: %w", k, err)
			}
			if !rec.Deleted {
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

// Metadata implements Broker.
func (b *BoltBroker) Metadata(_ context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// SetMetadata implements Broker.
func (b *BoltBroker) SetMetadata(_ context.Context, kv map[string]string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(metaBucket)
		for k, v := range kv {
			if err := bucket.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// storagePolicyIndexKey is the metadata key a container's storage policy
// assignment is stamped under.
const storagePolicyIndexKey = "storage_policy_index"

// StoragePolicyIndex implements Broker.
func (b *BoltBroker) StoragePolicyIndex(ctx context.Context) (int, error) {
	meta, err := b.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := meta[storagePolicyIndexKey]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("containerdb: parse %s %q: %w", storagePolicyIndexKey, v, err)
	}
	return n, nil
}

// MergeItems implements Broker. A row only overwrites an existing one of
// the same name if it carries a newer CreatedAt (objects) or Timestamp
// (trie nodes), the last-write-wins rule that makes replaying the same
// batch twice, or racing two replicas pushing concurrently, safe.
func (b *BoltBroker) MergeItems(_ context.Context, objects []ObjectRecord, trieNodes []TrieNodeRecord) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		objB := tx.Bucket(objectsBucket)
		for _, o := range objects {
			if existing, ok := getObject(objB, o.Name); ok && !o.CreatedAt.After(existing.CreatedAt) {
				continue
			}
			data, err := json.Marshal(o)
			if err != nil {
				return err
			}
			if err := objB.Put([]byte(o.Name), data); err != nil {
				return err
			}
		}

		tnB := tx.Bucket(trieNodesBucket)
		for _, n := range trieNodes {
			if existing, ok := getTrieNode(tnB, n.Prefix); ok && !n.Timestamp.After(existing.Timestamp) {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := tnB.Put([]byte(n.Prefix), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func getObject(bucket *bolt.Bucket, name string) (ObjectRecord, bool) {
	v := bucket.Get([]byte(name))
	if v == nil {
		return ObjectRecord{}, false
	}
	var rec ObjectRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return ObjectRecord{}, false
	}
	return rec, true
}

func getTrieNode(bucket *bolt.Bucket, prefix string) (TrieNodeRecord, bool) {
	v := bucket.Get([]byte(prefix))
	if v == nil {
		return TrieNodeRecord{}, false
	}
	var rec TrieNodeRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return TrieNodeRecord{}, false
	}
	return rec, true
}

// DeleteObjects implements Broker.
func (b *BoltBroker) DeleteObjects(_ context.Context, names []string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(objectsBucket)
		for _, name := range names {
			if err := bucket.Delete([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}
