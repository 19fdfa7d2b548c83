package containerdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestBroker(t *testing.T) *BoltBroker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "container.db")
	b, err := OpenBoltBroker(path)
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestMergeAndListObjects(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()
	now := time.Now()

	objs := []ObjectRecord{
		{Name: "b", Size: 2, CreatedAt: now},
		{Name: "a", Size: 1, CreatedAt: now},
		{Name: "c", Size: 3, CreatedAt: now},
	}
	if err := b.MergeItems(ctx, objs, nil); err != nil {
		t.Fatalf("merge: %v", err)
	}

	page, err := b.ListObjectsIter(ctx, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.More {
		t.Fatal("expected no more pages")
	}
	if len(page.Objects) != 3 {
		t.Fatalf("got %d objects, want 3", len(page.Objects))
	}
	want := []string{"a", "b", "c"}
	for i, o := range page.Objects {
		if o.Name != want[i] {
			t.Fatalf("objects[%d] = %q, want %q (listing must be sorted)", i, o.Name, want[i])
		}
	}
}

func TestListObjectsPaging(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()
	now := time.Now()

	var objs []ObjectRecord
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		objs = append(objs, ObjectRecord{Name: name, CreatedAt: now})
	}
	if err := b.MergeItems(ctx, objs, nil); err != nil {
		t.Fatal(err)
	}

	var seen []string
	marker := ""
	for {
		page, err := b.ListObjectsIter(ctx, marker, 2)
		if err != nil {
			t.Fatal(err)
		}
		for _, o := range page.Objects {
			seen = append(seen, o.Name)
		}
		if !page.More {
			break
		}
		marker = page.NextMarker
	}

	if len(seen) != 5 {
		t.Fatalf("paged listing returned %d names, want 5: %v", len(seen), seen)
	}
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		if seen[i] != name {
			t.Fatalf("seen[%d] = %q, want %q", i, seen[i], name)
		}
	}
}

func TestListObjectsInterleavesTrieNodes(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()
	now := time.Now()

	if err := b.MergeItems(ctx,
		[]ObjectRecord{{Name: "a1", CreatedAt: now}, {Name: "c1", CreatedAt: now}},
		[]TrieNodeRecord{{Prefix: "b", Timestamp: now}},
	); err != nil {
		t.Fatal(err)
	}

	page, err := b.ListObjectsIter(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Objects) != 2 || len(page.TrieNodes) != 1 {
		t.Fatalf("page = %+v, want 2 objects and 1 trie node", page)
	}
	if page.TrieNodes[0].Prefix != "b" {
		t.Fatalf("trie node prefix = %q, want b", page.TrieNodes[0].Prefix)
	}
}

func TestMergeKeepsNewestWrite(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()
	older := time.Now()
	newer := older.Add(time.Minute)

	if err := b.MergeItems(ctx, []ObjectRecord{{Name: "k", Size: 1, CreatedAt: older}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.MergeItems(ctx, []ObjectRecord{{Name: "k", Size: 2, CreatedAt: older.Add(-time.Hour)}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.MergeItems(ctx, []ObjectRecord{{Name: "k", Size: 3, CreatedAt: newer}}, nil); err != nil {
		t.Fatal(err)
	}

	page, err := b.ListObjectsIter(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Objects) != 1 || page.Objects[0].Size != 3 {
		t.Fatalf("objects = %+v, want one row with size 3 (newest write wins)", page.Objects)
	}
}

func TestMetadataAndStoragePolicy(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()

	if spi, err := b.StoragePolicyIndex(ctx); err != nil || spi != 0 {
		t.Fatalf("default storage policy index = %d, err=%v, want 0", spi, err)
	}

	if err := b.SetMetadata(ctx, map[string]string{storagePolicyIndexKey: "2", "shard_root_path": "acc/root"}); err != nil {
		t.Fatal(err)
	}

	spi, err := b.StoragePolicyIndex(ctx)
	if err != nil || spi != 2 {
		t.Fatalf("storage policy index = %d, err=%v, want 2", spi, err)
	}

	meta, err := b.Metadata(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if meta["shard_root_path"] != "acc/root" {
		t.Fatalf("metadata = %v, missing shard_root_path", meta)
	}
}

func TestDeleteObjects(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()
	now := time.Now()

	if err := b.MergeItems(ctx, []ObjectRecord{{Name: "a", CreatedAt: now}, {Name: "b", CreatedAt: now}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.DeleteObjects(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}

	page, err := b.ListObjectsIter(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Objects) != 1 || page.Objects[0].Name != "b" {
		t.Fatalf("objects after delete = %+v, want only %q", page.Objects, "b")
	}
}

func TestBuildShardTrie(t *testing.T) {
	b := openTestBroker(t)
	ctx := context.Background()
	now := time.Now()

	if err := b.MergeItems(ctx,
		[]ObjectRecord{{Name: "a1", Size: 5, CreatedAt: now}, {Name: "c1", Size: 6, CreatedAt: now}},
		[]TrieNodeRecord{{Prefix: "b", Timestamp: now}},
	); err != nil {
		t.Fatal(err)
	}

	tr, err := BuildShardTrie(ctx, b, "")
	if err != nil {
		t.Fatalf("build shard trie: %v", err)
	}
	if tr.DataNodeCount() != 2 {
		t.Fatalf("trie data node count = %d, want 2", tr.DataNodeCount())
	}
	if _, err := tr.Lookup("bx"); err == nil {
		t.Fatal("expected bx to resolve to a distributed branch")
	}
}
