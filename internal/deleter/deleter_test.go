package deleter

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRemove_DryRunDoesNotDelete(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "build")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := Remove(context.Background(), dir, true); err != nil {
		t.Fatalf("dry-run remove: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("dir should still exist in dry-run: %v", err)
	}
}

func TestRemove_DeletesTree(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "build", "obj")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := Remove(context.Background(), filepath.Join(root, "build"), false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "build")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("dir should be gone: %v", err)
	}
}

func TestRemove_MissingTarget(t *testing.T) {
	err := Remove(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestMoveToTrash(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "Trash")
	src := filepath.Join(root, "old report.txt")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dest, err := MoveToTrash(context.Background(), src, trash, false)
	if err != nil {
		t.Fatalf("trash: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("source should be gone")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("trashed file missing: %v", err)
	}
	info, err := os.ReadFile(filepath.Join(trash, "info", filepath.Base(dest)+".trashinfo"))
	if err != nil {
		t.Fatalf("trashinfo: %v", err)
	}
	if !strings.Contains(string(info), "old%20report.txt") {
		t.Fatalf("trashinfo path not escaped: %s", info)
	}

	// A second entry with the same name must not overwrite the first.
	if err := os.WriteFile(src, []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dest2, err := MoveToTrash(context.Background(), src, trash, false)
	if err != nil {
		t.Fatalf("trash again: %v", err)
	}
	if dest2 == dest {
		t.Fatalf("second trash entry overwrote the first")
	}
}
