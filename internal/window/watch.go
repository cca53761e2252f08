package window

import (
	"go.uber.org/zap"

	"dirstat/internal/dirtree"
	"dirstat/internal/watcher"
)

// maxWatches bounds the number of directories handed to the watcher.
const maxWatches = 8192

type watchState struct {
	w       *watcher.Watcher
	watched map[string]bool
}

// WatchBatches delivers directories changed on disk, or nil when nothing
// is watched.
func (c *Coordinator) WatchBatches() <-chan []string {
	if c.watch == nil {
		return nil
	}
	return c.watch.w.Batches()
}

// WatchCount is the number of directories currently watched.
func (c *Coordinator) WatchCount() int {
	if c.watch == nil {
		return 0
	}
	return len(c.watch.watched)
}

// startWatching brings the watch list in line with the readable directories
// of the tree. It runs after every finished read, so only the difference is
// handed to the watcher.
func (c *Coordinator) startWatching() {
	if !c.cfg.Watch || !c.tree.Finished() {
		return
	}
	if c.watch == nil {
		w, err := watcher.New(watcher.DefaultDelay)
		if err != nil {
			c.log.Warn("filesystem watching disabled", zap.Error(err))
			return
		}
		c.watch = &watchState{w: w, watched: make(map[string]bool)}
	}
	want := make(map[string]bool)
	c.tree.Walk(c.tree.Root(), func(h dirtree.Handle, _ int) bool {
		n, ok := c.tree.Get(h)
		if !ok || !n.IsDir() || n.Flags&(dirtree.FlagExcluded|dirtree.FlagMountPoint|dirtree.FlagUnread) != 0 {
			return false
		}
		if len(want) >= maxWatches {
			return false
		}
		want[c.tree.Path(h)] = true
		return true
	})

	var gone []string
	for d := range c.watch.watched {
		if !want[d] {
			gone = append(gone, d)
			delete(c.watch.watched, d)
		}
	}
	c.watch.w.Remove(gone...)
	for d := range want {
		if !c.watch.watched[d] && c.watch.w.Add(d) == 1 {
			c.watch.watched[d] = true
		}
	}
	c.log.Debug("watching", zap.Int("dirs", len(c.watch.watched)), zap.Int("dropped", len(gone)))
}

func (c *Coordinator) stopWatching() {
	if c.watch == nil {
		return
	}
	if err := c.watch.w.Close(); err != nil {
		c.log.Debug("closing watcher", zap.Error(err))
	}
	c.watch = nil
}

// FilesChanged refreshes the smallest subtree containing all changed
// directories. Changes outside the tree are ignored.
func (c *Coordinator) FilesChanged(dirs []string) (*Scan, error) {
	if c.tree.Reading() {
		return nil, ErrBusy
	}
	var common dirtree.Handle
	for _, d := range dirs {
		h, ok := c.tree.Lookup(d)
		if !ok || !c.tree.IsDir(h) {
			continue
		}
		if common.IsZero() {
			common = h
			continue
		}
		for !common.IsZero() && !c.tree.IsAncestor(common, h) {
			common = c.tree.Parent(common)
		}
	}
	if common.IsZero() {
		return nil, nil
	}
	c.log.Debug("refresh after change", zap.String("path", c.tree.Path(common)))
	return c.refreshAt(common)
}
