package trie

import (
	"testing"
	"time"
)

func obj(size int64) *ObjectData {
	return &ObjectData{Size: size, ContentType: "application/octet-stream", ETag: "abc"}
}

func TestInsertAndLookup(t *testing.T) {
	tr := New("")
	now := time.Now()

	for _, key := range []string{"alpha", "alphabet", "alpine", "beta"} {
		if err := tr.Insert(key, obj(10), now); err != nil {
			t.Fatalf("insert %q: %v", key, err)
		}
	}

	if got := tr.DataNodeCount(); got != 4 {
		t.Fatalf("data node count = %d, want 4", got)
	}

	for _, key := range []string{"alpha", "alphabet", "alpine", "beta"} {
		n, err := tr.Lookup(key)
		if err != nil {
			t.Fatalf("lookup %q: %v", key, err)
		}
		if n.FullKey != key {
			t.Fatalf("lookup %q returned node %q", key, n.FullKey)
		}
	}

	if _, err := tr.Lookup("gamma"); err != ErrNotFound {
		t.Fatalf("lookup missing key: err = %v, want ErrNotFound", err)
	}
}

func TestInsertOverwrite(t *testing.T) {
	tr := New("")
	now := time.Now()
	if err := tr.Insert("k", obj(1), now); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert("k", obj(2), now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if tr.DataNodeCount() != 1 {
		t.Fatalf("overwrite should not grow data node count, got %d", tr.DataNodeCount())
	}
	n, err := tr.Lookup("k")
	if err != nil {
		t.Fatal(err)
	}
	if n.Data.Size != 2 {
		t.Fatalf("data not overwritten: size = %d", n.Data.Size)
	}
}

func TestSplitTrieAndDistributedBranch(t *testing.T) {
	tr := New("")
	now := time.Now()
	for _, key := range []string{"a1", "a2", "b1", "b2", "c1"} {
		if err := tr.Insert(key, obj(1), now); err != nil {
			t.Fatal(err)
		}
	}

	shard, err := tr.SplitTrie("a", now)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if shard.DataNodeCount() != 2 {
		t.Fatalf("detached shard trie holds %d data nodes, want 2", shard.DataNodeCount())
	}
	if tr.DataNodeCount() != 3 {
		t.Fatalf("parent trie holds %d data nodes after split, want 3", tr.DataNodeCount())
	}

	_, err = tr.Lookup("a1")
	dbe, ok := AsDistributedBranch(err)
	if !ok {
		t.Fatalf("lookup a1 on parent: err = %v, want DistributedBranchError", err)
	}
	if dbe.Key != "a" {
		t.Fatalf("distributed branch key = %q, want %q", dbe.Key, "a")
	}

	for _, key := range []string{"b1", "b2", "c1"} {
		n, err := tr.Lookup(key)
		if err != nil {
			t.Fatalf("lookup %q on parent after split: %v", key, err)
		}
		if n.FullKey != key {
			t.Fatalf("lookup %q returned %q", key, n.FullKey)
		}
	}

	for _, key := range []string{"a1", "a2"} {
		n, err := shard.Lookup(key)
		if err != nil {
			t.Fatalf("lookup %q on detached shard: %v", key, err)
		}
		if n.FullKey != key {
			t.Fatalf("lookup %q on shard returned %q", key, n.FullKey)
		}
	}
}

func TestSplitAtMidEdge(t *testing.T) {
	tr := New("")
	now := time.Now()
	for _, key := range []string{"apple", "apricot", "banana"} {
		if err := tr.Insert(key, obj(1), now); err != nil {
			t.Fatal(err)
		}
	}

	// "appl" does not land on an existing node boundary ("apple" and
	// "apricot" share the compressed edge "ap", then diverge on "pl"/"r");
	// SplitTrie must split the "pl{e}" edge mid-way to create one.
	shard, err := tr.SplitTrie("appl", now)
	if err != nil {
		t.Fatalf("split mid-edge: %v", err)
	}
	if shard.DataNodeCount() != 1 {
		t.Fatalf("shard holds %d data nodes, want 1", shard.DataNodeCount())
	}
	if _, err := shard.Lookup("apple"); err != nil {
		t.Fatalf("lookup apple on shard: %v", err)
	}
	if n, err := tr.Lookup("apricot"); err != nil || n.FullKey != "apricot" {
		t.Fatalf("lookup apricot on parent after split: node=%v err=%v", n, err)
	}
	if n, err := tr.Lookup("banana"); err != nil || n.FullKey != "banana" {
		t.Fatalf("lookup banana on parent: node=%v err=%v", n, err)
	}
}

func TestTrimTrunk(t *testing.T) {
	tr := New("")
	now := time.Now()
	// Every key shares the prefix "com.example." with only one branch
	// below it, so TrimTrunk should fold that whole run into the root.
	if err := tr.Insert("com.example.alpha", obj(1), now); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert("com.example.beta", obj(1), now); err != nil {
		t.Fatal(err)
	}

	tr.TrimTrunk()

	if tr.RootKey() != "com.example." {
		t.Fatalf("root key after trim = %q, want %q", tr.RootKey(), "com.example.")
	}
	if n, err := tr.Lookup("com.example.alpha"); err != nil || n.FullKey != "com.example.alpha" {
		t.Fatalf("lookup survives trim: node=%v err=%v", n, err)
	}
}

func TestTrimTrunkNoOpOnBranchingRoot(t *testing.T) {
	tr := New("")
	now := time.Now()
	if err := tr.Insert("a1", obj(1), now); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert("b1", obj(1), now); err != nil {
		t.Fatal(err)
	}
	tr.TrimTrunk()
	if tr.RootKey() != "" {
		t.Fatalf("trim should be a no-op when the root already branches, got root key %q", tr.RootKey())
	}
}

func TestDataNodesInOrder(t *testing.T) {
	tr := New("")
	now := time.Now()
	keys := []string{"c1", "a2", "b1", "a1", "b2"}
	for _, key := range keys {
		if err := tr.Insert(key, obj(1), now); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	for n := range tr.DataNodes() {
		got = append(got, n.FullKey)
	}
	want := []string{"a1", "a2", "b1", "b2", "c1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if last := tr.LastNode(); last != "c1" {
		t.Fatalf("LastNode() = %q, want c1", last)
	}
}

func TestImportantNodesSkipsInterior(t *testing.T) {
	tr := New("")
	now := time.Now()
	for _, key := range []string{"apple", "apricot"} {
		if err := tr.Insert(key, obj(1), now); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.SplitTrie("apricot", now); err != nil {
		t.Fatal(err)
	}

	var flags []Flag
	for n := range tr.ImportantNodes() {
		flags = append(flags, n.Flag)
	}
	for _, f := range flags {
		if f == FlagInterior {
			t.Fatalf("ImportantNodes yielded an interior node, flags = %v", flags)
		}
	}
	if len(flags) != 2 {
		t.Fatalf("ImportantNodes yielded %d nodes, want 2 (one data, one branch)", len(flags))
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tr := New("")
	now := time.Now().Truncate(time.Second)
	for _, key := range []string{"apple", "apricot", "banana"} {
		d := &ObjectData{Size: 42, ContentType: "text/plain", ETag: "e-" + key, StoragePolicyIndex: 1}
		if err := tr.Insert(key, d, now); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.SplitTrie("banana", now); err != nil {
		t.Fatal(err)
	}

	raw, err := tr.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	back, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if back.DataNodeCount() != tr.DataNodeCount() {
		t.Fatalf("data node count mismatch after round trip: got %d want %d", back.DataNodeCount(), tr.DataNodeCount())
	}

	for _, key := range []string{"apple", "apricot"} {
		n, err := back.Lookup(key)
		if err != nil {
			t.Fatalf("lookup %q after round trip: %v", key, err)
		}
		if n.Data.ContentType != "text/plain" || n.Data.Size != 42 {
			t.Fatalf("data mismatch for %q after round trip: %+v", key, n.Data)
		}
	}

	if _, err := back.Lookup("banana"); err == nil {
		t.Fatalf("expected distributed branch error for banana after round trip")
	} else if _, ok := AsDistributedBranch(err); !ok {
		t.Fatalf("expected distributed branch error, got %v", err)
	}
}

func TestInsertDistributedBranchRebuildsFromRecords(t *testing.T) {
	tr := New("")
	now := time.Now()
	if err := tr.InsertDistributedBranch("shard1", now); err != nil {
		t.Fatalf("insert distributed branch: %v", err)
	}
	if err := tr.Insert("other", obj(1), now); err != nil {
		t.Fatal(err)
	}

	if _, err := tr.Lookup("shard1obj"); err == nil {
		t.Fatal("expected lookup under shard1 to report a distributed branch")
	} else if _, ok := AsDistributedBranch(err); !ok {
		t.Fatalf("expected DistributedBranchError, got %v", err)
	}
	if n, err := tr.Lookup("other"); err != nil || n.FullKey != "other" {
		t.Fatalf("lookup other: node=%v err=%v", n, err)
	}
	if tr.DataNodeCount() != 1 {
		t.Fatalf("data node count = %d, want 1 (branch markers don't count as data)", tr.DataNodeCount())
	}
}

func TestInsertIntoDistributedBranchFails(t *testing.T) {
	tr := New("")
	now := time.Now()
	if err := tr.Insert("a1", obj(1), now); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SplitTrie("a", now); err != nil {
		t.Fatal(err)
	}
	err := tr.Insert("a2", obj(1), now)
	if _, ok := AsDistributedBranch(err); !ok {
		t.Fatalf("insert under distributed branch: err = %v, want DistributedBranchError", err)
	}
}
