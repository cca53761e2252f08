// Package watcher reports directories whose contents changed on disk,
// batched after a quiet period.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"dirstat/internal/logging"
	"dirstat/internal/metrics"
)

const DefaultDelay = time.Second

// Watcher wraps an fsnotify watcher. Changes are collected until no event
// arrived for Delay and then delivered as one batch of directories.
type Watcher struct {
	w       *fsnotify.Watcher
	delay   time.Duration
	batches chan []string
	cancel  context.CancelFunc
	done    chan struct{}
	log     *zap.Logger
}

func New(delay time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		w:       fw,
		delay:   delay,
		batches: make(chan []string, 4),
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logging.Named("watcher"),
	}
	go w.loop(ctx)
	return w, nil
}

// Add watches the given directories. It returns the number actually added;
// directories that cannot be watched are logged and skipped.
func (w *Watcher) Add(dirs ...string) int {
	n := 0
	for _, d := range dirs {
		if err := w.w.Add(d); err != nil {
			w.log.Debug("cannot watch", zap.String("dir", d), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Remove stops watching the given directories. Directories that are gone
// from disk have already been dropped by the kernel, so errors are only
// logged.
func (w *Watcher) Remove(dirs ...string) {
	for _, d := range dirs {
		if err := w.w.Remove(d); err != nil {
			w.log.Debug("cannot unwatch", zap.String("dir", d), zap.Error(err))
		}
	}
}

// Batches delivers coalesced sets of changed directories. It is closed by
// Close.
func (w *Watcher) Batches() <-chan []string { return w.batches }

func (w *Watcher) Close() error {
	w.cancel()
	err := w.w.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.batches)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			metrics.RecordWatchEvent()
			pending[filepath.Dir(ev.Name)] = struct{}{}
			timer.Reset(w.delay)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			dirs := make([]string, 0, len(pending))
			for d := range pending {
				dirs = append(dirs, d)
			}
			pending = make(map[string]struct{})
			select {
			case w.batches <- Coalesce(dirs):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Coalesce sorts dirs and drops every directory that lies below another one
// in the list.
func Coalesce(dirs []string) []string {
	clean := make([]string, 0, len(dirs))
	for _, d := range dirs {
		clean = append(clean, filepath.Clean(d))
	}
	// with the separator ordered first, a directory's descendants directly
	// follow it: "a", "a/b", "a-b"
	sort.Slice(clean, func(i, j int) bool { return pathLess(clean[i], clean[j]) })
	var out []string
	for _, d := range clean {
		if n := len(out); n > 0 {
			last := out[n-1]
			if d == last || strings.HasPrefix(d, strings.TrimSuffix(last, "/")+"/") {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func pathLess(a, b string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		ca, cb := a[i], b[i]
		if ca == cb {
			continue
		}
		switch {
		case ca == '/':
			return true
		case cb == '/':
			return false
		}
		return ca < cb
	}
	return len(a) < len(b)
}
