package replication

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dreamware/shardctl/internal/ring"
)

func TestLocalCopyPusherCopiesContent(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	src := filepath.Join(srcDir, "container.db")
	want := []byte("fake db bytes")
	if err := os.WriteFile(src, want, 0o600); err != nil {
		t.Fatal(err)
	}

	p := LocalCopyPusher{}
	dest := ring.Device{ID: "d1", NodeID: "node-b", Path: dstDir}

	if err := p.Push(context.Background(), src, dest, "objects/12/ab/container.db"); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dstDir, "objects/12/ab/container.db"))
	if err != nil {
		t.Fatalf("read pushed file: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("pushed content = %q, want %q", got, want)
	}
}

func TestLocalCopyPusherRespectsCancellation(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "container.db")
	if err := os.WriteFile(src, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := LocalCopyPusher{}
	err := p.Push(ctx, src, ring.Device{Path: t.TempDir()}, "container.db")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
