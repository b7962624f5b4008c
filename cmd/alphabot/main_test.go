package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data", "state", "alphabot.db")
	if err := ensureParentDir(path); err != nil {
		t.Fatalf("ensureParentDir: %v", err)
	}
	if fi, err := os.Stat(filepath.Dir(path)); err != nil || !fi.IsDir() {
		t.Fatalf("expected directory, stat err=%v", err)
	}

	// a regular file in the way cannot become a directory
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureParentDir(filepath.Join(blocker, "sub", "journal.jsonl")); err == nil {
		t.Error("expected error when a file blocks the directory path")
	}
}
