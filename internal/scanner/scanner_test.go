package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFileOfSize(t *testing.T, path string, size int64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate %s: %v", path, err)
	}
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
}

func noMounts(t *testing.T) {
	t.Helper()
	prev := MountPoints
	MountPoints = func() map[string]bool { return map[string]bool{} }
	t.Cleanup(func() { MountPoints = prev })
}

func collect(t *testing.T, root string, opts Options) (map[string]Dir, []string, error) {
	t.Helper()
	out, errCh := Scan(context.Background(), root, opts)
	dirs := make(map[string]Dir)
	var order []string
	for d := range out {
		dirs[d.Path] = d
		order = append(order, d.Path)
	}
	return dirs, order, <-errCh
}

func sumFiles(dirs map[string]Dir) int64 {
	var total int64
	for _, d := range dirs {
		for _, e := range d.Entries {
			if !e.IsDir() {
				total += e.Size
			}
		}
	}
	return total
}

func TestScan_FindsAndSizes(t *testing.T) {
	noMounts(t)
	root := t.TempDir()

	mkdirAll(t, filepath.Join(root, "a", "deep"))
	writeFileOfSize(t, filepath.Join(root, "a", "x.bin"), 1024)
	writeFileOfSize(t, filepath.Join(root, "a", "deep", "y.bin"), 2048)
	mkdirAll(t, filepath.Join(root, "b"))
	writeFileOfSize(t, filepath.Join(root, "b", "z.bin"), 3072)

	dirs, _, err := collect(t, root, Options{Concurrency: 2, MaxDepth: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dirs) != 4 {
		t.Fatalf("expected 4 directories, got %d", len(dirs))
	}
	if got, want := sumFiles(dirs), int64(1024+2048+3072); got != want {
		t.Fatalf("total size mismatch: got %d want %d", got, want)
	}
}

func TestScan_ParentBeforeChild(t *testing.T) {
	noMounts(t)
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, "l1", "l2", "l3"))
	mkdirAll(t, filepath.Join(root, "m1", "m2"))

	_, order, err := collect(t, root, Options{Concurrency: 4, MaxDepth: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[string]int)
	for i, p := range order {
		pos[p] = i
	}
	for _, p := range order {
		if p == root {
			continue
		}
		parent := filepath.Dir(p)
		if pos[parent] > pos[p] {
			t.Fatalf("%s delivered before its parent %s", p, parent)
		}
	}
}

func TestScan_MaxDepth(t *testing.T) {
	noMounts(t)
	root := t.TempDir()
	deep := filepath.Join(root, "level1", "level2")
	mkdirAll(t, deep)
	writeFileOfSize(t, filepath.Join(deep, "a.bin"), 10)

	dirs, _, err := collect(t, root, Options{MaxDepth: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := dirs[deep]; ok {
		t.Fatalf("level2 should not be read with MaxDepth=1")
	}
	l1 := dirs[filepath.Join(root, "level1")]
	if len(l1.Entries) != 1 || !l1.Entries[0].Unread {
		t.Fatalf("level2 should be reported as unread: %+v", l1.Entries)
	}

	dirs, _, err = collect(t, root, Options{MaxDepth: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := dirs[deep]; !ok {
		t.Fatalf("level2 should be read with MaxDepth=2")
	}
}

func TestScan_Exclude(t *testing.T) {
	noMounts(t)
	root := t.TempDir()
	a := filepath.Join(root, "a", "node_modules")
	b := filepath.Join(root, "b", "keep")
	mkdirAll(t, a)
	mkdirAll(t, b)
	writeFileOfSize(t, filepath.Join(a, "x"), 10)
	writeFileOfSize(t, filepath.Join(b, "y"), 10)

	dirs, _, err := collect(t, root, Options{MaxDepth: -1, Excludes: []string{"node_modules"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := dirs[a]; ok {
		t.Fatalf("excluded dir should not be read")
	}
	parent := dirs[filepath.Join(root, "a")]
	if len(parent.Entries) != 1 || !parent.Entries[0].Excluded {
		t.Fatalf("excluded dir should be flagged: %+v", parent.Entries)
	}
	if sumFiles(dirs) != 10 {
		t.Fatalf("unexpected total: %d", sumFiles(dirs))
	}
}

func TestScan_MountPointNotCrossed(t *testing.T) {
	root := t.TempDir()
	mnt := filepath.Join(root, "mnt")
	mkdirAll(t, mnt)
	writeFileOfSize(t, filepath.Join(mnt, "big"), 100)

	prev := MountPoints
	MountPoints = func() map[string]bool { return map[string]bool{mnt: true, root: true} }
	t.Cleanup(func() { MountPoints = prev })

	dirs, _, err := collect(t, root, Options{MaxDepth: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := dirs[mnt]; ok {
		t.Fatalf("mount point should not be read")
	}
	if !dirs[root].Entries[0].MountPoint {
		t.Fatalf("mount point should be flagged")
	}

	dirs, _, err = collect(t, root, Options{MaxDepth: -1, CrossFilesystems: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := dirs[mnt]; !ok {
		t.Fatalf("mount point should be read when crossing filesystems")
	}
}

func TestScan_Cancelled(t *testing.T) {
	noMounts(t)
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, errCh := Scan(ctx, root, Options{})
	for range out {
	}
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScan_RootNotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	writeFileOfSize(t, f, 1)
	out, errCh := Scan(context.Background(), f, Options{})
	for range out {
	}
	if err := <-errCh; err == nil {
		t.Fatalf("expected an error for a non-directory root")
	}
}
