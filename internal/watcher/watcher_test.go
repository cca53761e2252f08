package watcher

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCoalesce(t *testing.T) {
	got := Coalesce([]string{"/a/b/c", "/a/b", "/x", "/a/bc", "/a/b/", "/"})
	if want := []string{"/"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	got = Coalesce([]string{"/a/b/c", "/a/b", "/x", "/a/bc"})
	if want := []string{"/a/b", "/a/bc", "/x"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	got = Coalesce([]string{"/a/b", "/a-b", "/a", "/a.c/d", "/a.c"})
	if want := []string{"/a", "/a-b", "/a.c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWatcher_BatchesChanges(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	w, err := New(50 * time.Millisecond)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer w.Close()
	if n := w.Add(root, sub); n != 2 {
		t.Fatalf("added %d dirs", n)
	}

	for i := 0; i < 5; i++ {
		p := filepath.Join(sub, "f"+string(rune('0'+i)))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case batch := <-w.Batches():
		if len(batch) != 1 || batch[0] != sub {
			t.Fatalf("unexpected batch %v", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no batch delivered")
	}
}
