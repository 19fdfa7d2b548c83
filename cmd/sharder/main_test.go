package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverDevices(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"d1", "d2"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "notadevice.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	devices, err := discoverDevices(root, "node-1")
	if err != nil {
		t.Fatalf("discoverDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d: %+v", len(devices), devices)
	}
	for _, d := range devices {
		if d.NodeID != "node-1" {
			t.Errorf("device %s: expected node-1, got %s", d.ID, d.NodeID)
		}
		if d.Path != filepath.Join(root, d.ID) {
			t.Errorf("device %s: unexpected path %s", d.ID, d.Path)
		}
	}
}

func TestDiscoverDevicesMissingRoot(t *testing.T) {
	devices, err := discoverDevices(filepath.Join(t.TempDir(), "missing"), "node-1")
	if err != nil {
		t.Fatalf("discoverDevices on missing root: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("expected no devices, got %+v", devices)
	}
}
