package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sync/errgroup"
)

// Entry is one child found while reading a directory.
type Entry struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time

	// Directories that were found but deliberately not read.
	Excluded   bool
	MountPoint bool
	Unread     bool // beyond MaxDepth
}

// IsDir reports whether the entry will be treated as a directory. Symlinks
// that were followed carry ModeDir.
func (e Entry) IsDir() bool { return e.Mode.IsDir() }

// Dir is the result of reading one directory. A directory is always
// delivered before any of its subdirectories.
type Dir struct {
	Path    string
	Entries []Entry
	Err     error
}

// Options defines scanning behavior.
type Options struct {
	Concurrency      int      // parallel directory reads
	MaxDepth         int      // -1 unlimited; 0 means only root
	FollowSymlink    bool     // whether to follow symlinked directories
	CrossFilesystems bool     // descend into other mounted filesystems
	Excludes         []string // glob patterns matched against full path and base name
}

// MountPoints returns the set of mount points on this machine. It is a
// variable so tests can pin the set.
var MountPoints = func() map[string]bool {
	set := make(map[string]bool)
	parts, err := disk.Partitions(true)
	if err != nil {
		return set
	}
	for _, p := range parts {
		set[filepath.Clean(p.Mountpoint)] = true
	}
	return set
}

// Scan reads the tree below root and streams one Dir per directory on the
// returned channel. When done the channel is closed, a single error (nil,
// the joined read errors, or the context error if the scan was cancelled) is
// sent on errCh, and errCh is closed.
func Scan(ctx context.Context, root string, opts Options) (<-chan Dir, <-chan error) {
	out := make(chan Dir, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		err := run(ctx, root, opts, out)
		close(out)
		errCh <- err
	}()
	return out, errCh
}

type walker struct {
	opts   Options
	root   string
	mounts map[string]bool
	out    chan<- Dir
	g      errgroup.Group

	mu   sync.Mutex
	errs []error
	seen map[string]struct{}
}

func run(ctx context.Context, root string, opts Options, out chan<- Dir) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
		if opts.Concurrency < 1 {
			opts.Concurrency = 1
		}
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	w := &walker{
		opts: opts,
		root: root,
		out:  out,
		seen: make(map[string]struct{}),
	}
	if !opts.CrossFilesystems {
		w.mounts = MountPoints()
	}
	w.g.SetLimit(opts.Concurrency)
	w.visit(ctx, root, 0)
	_ = w.g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(w.errs...)
}

func (w *walker) visit(ctx context.Context, path string, depth int) {
	if ctx.Err() != nil {
		return
	}
	des, err := os.ReadDir(path)
	dir := Dir{Path: path}
	if err != nil {
		err = fmt.Errorf("read %s: %w", path, err)
		dir.Err = err
		w.addErr(err)
	}

	var subdirs []string
	for _, de := range des {
		full := filepath.Join(path, de.Name())
		e, descend, err := w.entry(full, de, depth+1)
		if err != nil {
			w.addErr(err)
			continue
		}
		dir.Entries = append(dir.Entries, e)
		if descend {
			subdirs = append(subdirs, full)
		}
	}

	select {
	case <-ctx.Done():
		return
	case w.out <- dir:
	}

	for _, sub := range subdirs {
		sub := sub
		task := func() error {
			w.visit(ctx, sub, depth+1)
			return nil
		}
		// Running inline when the pool is full keeps workers from blocking
		// on each other.
		if !w.g.TryGo(task) {
			_ = task()
		}
	}
}

// entry builds the Entry for one directory child and decides whether it
// will be read.
func (w *walker) entry(full string, de fs.DirEntry, depth int) (Entry, bool, error) {
	info, err := de.Info()
	if err != nil {
		return Entry{}, false, fmt.Errorf("stat %s: %w", full, err)
	}
	e := Entry{
		Name:    de.Name(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}

	if info.Mode()&os.ModeSymlink != 0 {
		e.Size = info.Size()
		if !w.opts.FollowSymlink {
			return e, false, nil
		}
		target, err := os.Stat(full)
		if err != nil || !target.IsDir() {
			return e, false, nil
		}
		real, err := filepath.EvalSymlinks(full)
		if err != nil {
			return e, false, nil
		}
		w.mu.Lock()
		_, dup := w.seen[real]
		w.seen[real] = struct{}{}
		w.mu.Unlock()
		e.Mode = target.Mode() | fs.ModeDir
		e.Size = 0
		return e, !dup, nil
	}

	if !info.IsDir() {
		e.Size = info.Size()
		return e, false, nil
	}

	switch {
	case excluded(full, w.opts.Excludes):
		e.Excluded = true
	case w.mounts[full] && full != w.root:
		e.MountPoint = true
	case w.opts.MaxDepth >= 0 && depth > w.opts.MaxDepth:
		e.Unread = true
	default:
		return e, true, nil
	}
	return e, false, nil
}

func (w *walker) addErr(err error) {
	w.mu.Lock()
	w.errs = append(w.errs, err)
	w.mu.Unlock()
}

func excluded(p string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	base := filepath.Base(p)
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		// try full path
		if ok, _ := filepath.Match(pat, p); ok {
			return true
		}
		// try base name
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}
