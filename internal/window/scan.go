package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dirstat/internal/metrics"
	"dirstat/internal/scanner"
	"dirstat/pkg/utils"
)

// Scan is a running directory read. The host drains Dirs into HandleDir,
// then passes the single value from Errs to FinishScan. Results of a scan
// that was superseded are ignored.
type Scan struct {
	ID   int
	Path string
	Dirs <-chan scanner.Dir
	Errs <-chan error

	cancel  context.CancelFunc
	started time.Time
}

func (c *Coordinator) scanOptions() scanner.Options {
	sc := c.cfg.Scan
	return scanner.Options{
		Concurrency:      sc.Concurrency,
		MaxDepth:         sc.MaxDepth,
		FollowSymlink:    sc.FollowSymlinks,
		CrossFilesystems: sc.CrossFilesystems,
		Excludes:         sc.Excludes,
	}
}

func (c *Coordinator) startScan(path string) *Scan {
	ctx, cancel := context.WithCancel(context.Background())
	dirs, errs := scanner.Scan(ctx, path, c.scanOptions())
	c.nextScanID++
	c.scan = &Scan{
		ID:      c.nextScanID,
		Path:    path,
		Dirs:    dirs,
		Errs:    errs,
		cancel:  cancel,
		started: time.Now(),
	}
	c.UpdateActions()
	return c.scan
}

// cancelScan abandons the running scan. Its remaining results will be
// ignored, so the read is finished here as aborted.
func (c *Coordinator) cancelScan() {
	if c.scan == nil {
		return
	}
	c.scan.cancel()
	c.scan = nil
	if c.tree.Reading() {
		c.tree.FinishRead(true)
	}
}

// Scanning reports whether s is the scan currently feeding the tree.
func (c *Coordinator) Scanning(s *Scan) bool {
	return s != nil && c.scan != nil && c.scan.ID == s.ID
}

// HandleDir applies one directory batch of scan id.
func (c *Coordinator) HandleDir(id int, d scanner.Dir) bool {
	if c.scan == nil || c.scan.ID != id {
		return false
	}
	_, ok := c.tree.Apply(d)
	return ok
}

// FinishScan ends scan id with the error it reported.
func (c *Coordinator) FinishScan(id int, err error) {
	if c.scan == nil || c.scan.ID != id {
		return
	}
	s := c.scan
	c.scan = nil
	s.cancel()

	aborted := errors.Is(err, context.Canceled)
	elapsed := time.Since(s.started)
	metrics.RecordScan(elapsed, aborted)
	c.tree.FinishRead(aborted)

	switch {
	case aborted:
		c.pres.Status("Reading aborted")
	case err != nil:
		c.log.Warn("read errors", zap.String("path", s.Path), zap.Error(err))
		c.pres.Status(fmt.Sprintf("Finished with errors after %s", elapsed.Round(time.Millisecond)))
	default:
		c.pres.Status(fmt.Sprintf("Finished in %s, %s",
			elapsed.Round(time.Millisecond), utils.HumanizeBytes(c.tree.TotalSize(c.tree.Root()))))
	}
	c.log.Info("scan finished",
		zap.String("path", s.Path),
		zap.Duration("elapsed", elapsed),
		zap.Bool("aborted", aborted),
		zap.Int("nodes", c.tree.Count()))

	if !aborted {
		c.startWatching()
	}
}

// Wait drains s synchronously, for callers without an event loop.
func (c *Coordinator) Wait(s *Scan) error {
	for d := range s.Dirs {
		c.HandleDir(s.ID, d)
	}
	err := <-s.Errs
	c.FinishScan(s.ID, err)
	c.Settle()
	return err
}
