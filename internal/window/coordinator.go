// Package window holds the coordinator of one dirstat window. It takes user
// commands, drives the directory tree and relays tree and selection
// notifications to the treemap, the cleanup registry and the activity
// tracker. Everything here runs on the host's event loop goroutine.
package window

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"dirstat/internal/activity"
	"dirstat/internal/cleanup"
	"dirstat/internal/config"
	"dirstat/internal/dirtree"
	"dirstat/internal/feedback"
	"dirstat/internal/logging"
	"dirstat/internal/metrics"
	"dirstat/internal/treemap"
)

// Origin tells which view a selection change came from.
type Origin int

const (
	FromTree Origin = iota
	FromTreemap
)

// Presenter is the UI side of the window.
type Presenter interface {
	Status(msg string)
	SelectInTree(h dirtree.Handle)
	ShowContextMenu(h dirtree.Handle, actions []cleanup.Action)
	ShowSettings(reg *cleanup.Registry)
	ShowFeedback(features []feedback.Feature)
	ReportError(err error)
}

var (
	ErrBusy      = errors.New("a directory is being read")
	ErrNoEntry   = errors.New("no entry selected")
	ErrNotFolder = errors.New("not a directory")
)

const groupWindow = "Window"

type Options struct {
	Config    config.Config
	Store     *config.Store // nil for an in-memory store
	Presenter Presenter
	Executor  cleanup.Executor
	Sender    feedback.Sender
	Clock     func() time.Time
	Clipboard func(string) error
	Version   string
	// Tracker holds the activity counters; a fresh one is made when nil.
	// Persisted counters are loaded into it either way.
	Tracker *activity.Tracker
}

// Coordinator owns the state of one window: its tree, cleanup registry,
// treemap navigator and activity counters.
type Coordinator struct {
	cfg     config.Config
	store   *config.Store
	tree    *dirtree.Tree
	reg     *cleanup.Registry
	nav     *treemap.Navigator
	tracker *activity.Tracker
	pres    Presenter

	sel         []dirtree.Handle
	scan        *Scan
	nextScanID  int
	showTreemap bool
	actions     Actions

	watch     *watchState
	clipboard func(string) error
	sender    feedback.Sender
	version   string
	log       *zap.Logger
}

// New builds a coordinator and restores the persisted window state.
func New(opts Options) *Coordinator {
	store := opts.Store
	if store == nil {
		store = config.NewMemory()
	}
	pres := opts.Presenter
	if pres == nil {
		pres = nopPresenter{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	sender := opts.Sender
	if sender == nil {
		sender = feedback.FileSender{Dir: filepath.Join(config.Dir(), "feedback")}
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker = activity.NewTracker(activity.ThresholdsFrom(opts.Config.Feedback), activity.WithClock(clock))
	}

	regOpts := []cleanup.Option{cleanup.WithDryRun(opts.Config.DryRun)}
	if opts.Executor != nil {
		regOpts = append(regOpts, cleanup.WithExecutor(opts.Executor))
	}

	c := &Coordinator{
		cfg:       opts.Config,
		store:     store,
		tree:      dirtree.New(),
		reg:       cleanup.NewRegistry(regOpts...),
		tracker:   tracker,
		pres:      pres,
		clipboard: copyFn,
		sender:    sender,
		version:   opts.Version,
		log:       logging.Named("window"),
	}
	c.restore()
	c.nav = treemap.NewNavigator(c.tree, treemap.Options{
		MaxDepth:    c.cfg.Treemap.MaxDepth,
		MinTileSize: c.cfg.Treemap.MinTileSize,
	})
	c.nav.OnSelect(c.treemapSelected)
	c.tree.Subscribe(c)

	c.tracker.RecordActivity(activity.SessionStart)
	c.UpdateActions()
	return c
}

func (c *Coordinator) restore() {
	c.reg.Load(c.store)
	c.tracker.Load(c.store)
	c.showTreemap = c.store.GetBool(groupWindow, "show_treemap", c.cfg.Treemap.ShowOnOpen)
	c.cfg.Treemap.MaxDepth = c.store.GetInt(groupWindow, "treemap_depth", c.cfg.Treemap.MaxDepth)
}

func (c *Coordinator) persist() error {
	c.reg.Save(c.store)
	c.tracker.Save(c.store)
	c.store.SetBool(groupWindow, "show_treemap", c.showTreemap)
	c.store.SetInt(groupWindow, "treemap_depth", c.cfg.Treemap.MaxDepth)
	return c.store.Save()
}

func (c *Coordinator) Tree() *dirtree.Tree { return c.tree }

func (c *Coordinator) Registry() *cleanup.Registry { return c.reg }

func (c *Coordinator) Navigator() *treemap.Navigator { return c.nav }

func (c *Coordinator) Tracker() *activity.Tracker { return c.tracker }

func (c *Coordinator) Config() config.Config { return c.cfg }

// TreemapWanted reports whether the user asked for the treemap panel.
func (c *Coordinator) TreemapWanted() bool { return c.showTreemap }

// Selection returns the selected entries in selection order.
func (c *Coordinator) Selection() []dirtree.Handle {
	return append([]dirtree.Handle(nil), c.sel...)
}

// Current returns the first selected entry.
func (c *Coordinator) Current() (dirtree.Handle, bool) {
	for _, h := range c.sel {
		if c.tree.Valid(h) {
			return h, true
		}
	}
	return dirtree.Handle{}, false
}

// Open starts reading path as a new tree.
func (c *Coordinator) Open(path string) (*Scan, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotFolder)
	}
	c.cancelScan()
	c.stopWatching()
	c.sel = nil
	c.tree.Reset(abs)
	c.tree.BeginRead()
	if c.showTreemap {
		c.nav.CreateDeferred()
	}
	s := c.startScan(abs)
	c.pres.Status("Reading " + abs)
	c.log.Info("open", zap.String("path", abs))
	return s, nil
}

// RefreshAll reads the whole tree again.
func (c *Coordinator) RefreshAll() (*Scan, error) {
	if c.tree.Root().IsZero() {
		return nil, dirtree.ErrNoTree
	}
	return c.Open(c.tree.RootPath())
}

// RefreshSelected reads the selected directory again, or the directory
// containing the selected file.
func (c *Coordinator) RefreshSelected() (*Scan, error) {
	h, ok := c.Current()
	if !ok {
		return nil, ErrNoEntry
	}
	if !c.tree.IsDir(h) {
		h = c.tree.Parent(h)
	}
	return c.refreshAt(h)
}

// ContinueReadingAt reads a directory that was skipped: excluded, on
// another filesystem or beyond the depth limit.
func (c *Coordinator) ContinueReadingAt(h dirtree.Handle) (*Scan, error) {
	if !c.tree.IsDir(h) {
		return nil, ErrNotFolder
	}
	return c.refreshAt(h)
}

func (c *Coordinator) refreshAt(h dirtree.Handle) (*Scan, error) {
	if c.tree.Reading() {
		return nil, ErrBusy
	}
	if !c.tree.Valid(h) {
		return nil, dirtree.ErrStale
	}
	if h == c.tree.Root() {
		return c.RefreshAll()
	}
	path := c.tree.Path(h)
	if err := c.tree.ClearChildren(h); err != nil {
		return nil, err
	}
	c.tree.BeginRead()
	s := c.startScan(path)
	c.pres.Status("Reading " + path)
	return s, nil
}

// StopReading cancels the running scan. What was read so far stays.
func (c *Coordinator) StopReading() {
	if c.scan == nil {
		return
	}
	c.scan.cancel()
	c.pres.Status("Stopping...")
}

// CloseDir drops the tree and everything referring to it.
func (c *Coordinator) CloseDir() {
	c.cancelScan()
	c.stopWatching()
	c.nav.Destroy()
	c.tree.Clear()
	c.sel = nil
	c.UpdateActions()
}

// Close ends the window and persists its state.
func (c *Coordinator) Close() error {
	c.cancelScan()
	c.stopWatching()
	err := c.persist()
	if err != nil {
		c.log.Error("saving settings", zap.Error(err))
	}
	return err
}

// CopyPath puts the path of the current entry on the clipboard.
func (c *Coordinator) CopyPath() error {
	h, ok := c.Current()
	if !ok {
		return ErrNoEntry
	}
	p := c.tree.Path(h)
	if err := c.clipboard(p); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	c.pres.Status("Copied " + p)
	return nil
}

// WriteCache saves the tree below the current directory, or the whole tree,
// to a cache file.
func (c *Coordinator) WriteCache(path string) error {
	if !c.tree.Finished() {
		return dirtree.ErrNoTree
	}
	h := c.tree.Root()
	if cur, ok := c.Current(); ok && c.tree.IsDir(cur) {
		h = cur
	}
	if err := c.tree.WriteCacheFile(path, h); err != nil {
		return err
	}
	c.pres.Status("Wrote cache file " + path)
	return nil
}

// ReadCache replaces the tree with the contents of a cache file.
func (c *Coordinator) ReadCache(path string) error {
	c.cancelScan()
	c.stopWatching()
	c.sel = nil
	if c.showTreemap {
		c.nav.CreateDeferred()
	}
	if err := c.tree.ReadCacheFile(path); err != nil {
		c.UpdateActions()
		return err
	}
	c.pres.Status("Read cache file " + path)
	c.Settle()
	return nil
}

// ToggleTreemap shows or hides the treemap panel.
func (c *Coordinator) ToggleTreemap() {
	if c.showTreemap {
		c.nav.Destroy()
		c.showTreemap = false
		c.UpdateActions()
		return
	}
	c.showTreemap = true
	c.tracker.RecordActivity(activity.TreemapUsed)
	if c.tree.Reading() {
		c.nav.CreateDeferred()
	} else if c.nav.Create() {
		if h, ok := c.Current(); ok {
			c.nav.Select(h)
		}
	}
	c.UpdateActions()
}

func (c *Coordinator) TreemapZoomIn() error {
	return c.navErr(c.nav.ZoomToSelection())
}

func (c *Coordinator) TreemapZoomOut() error {
	return c.navErr(c.nav.ZoomOut())
}

func (c *Coordinator) TreemapZoomReset() {
	c.nav.ZoomReset()
	c.UpdateActions()
}

func (c *Coordinator) TreemapSelectParent() error {
	return c.navErr(c.nav.SelectParent())
}

func (c *Coordinator) TreemapRebuild() error {
	return c.navErr(c.nav.Rebuild())
}

// navErr swallows the navigation errors that only mean "nothing to do";
// the matching actions are disabled anyway.
func (c *Coordinator) navErr(err error) error {
	c.UpdateActions()
	switch {
	case err == nil:
		c.tracker.RecordActivity(activity.TreemapUsed)
		return nil
	case errors.Is(err, treemap.ErrAtRoot), errors.Is(err, treemap.ErrNoSelection):
		c.log.Debug("navigation ignored", zap.Error(err))
		return nil
	default:
		return err
	}
}

// SelectionChanged records a new selection made in one of the views and
// mirrors it into the other one.
func (c *Coordinator) SelectionChanged(entries []dirtree.Handle, from Origin) {
	c.sel = make([]dirtree.Handle, 0, len(entries))
	for _, h := range entries {
		if c.tree.Valid(h) {
			c.sel = append(c.sel, h)
		}
	}
	var first dirtree.Handle
	if len(c.sel) > 0 {
		first = c.sel[0]
	}
	switch from {
	case FromTreemap:
		if err := c.nav.SelectTile(first); err != nil {
			c.log.Debug("treemap selection dropped", zap.Error(err))
		}
	default:
		c.nav.Select(first)
	}
	c.UpdateActions()
}

func (c *Coordinator) treemapSelected(h dirtree.Handle) {
	c.sel = []dirtree.Handle{h}
	c.pres.SelectInTree(h)
	c.UpdateActions()
}

// targets turns the selection into cleanup targets, keeping the handles in
// the same order.
func (c *Coordinator) targets() ([]cleanup.Target, []dirtree.Handle) {
	var ts []cleanup.Target
	var hs []dirtree.Handle
	for _, h := range c.sel {
		if !c.tree.Valid(h) {
			continue
		}
		t := cleanup.TargetFor(c.tree.Path(h), c.tree.IsDir(h))
		t.Root = h == c.tree.Root()
		ts = append(ts, t)
		hs = append(hs, h)
	}
	return ts, hs
}

// NeedsConfirm reports whether the cleanup id asks before running.
func (c *Coordinator) NeedsConfirm(id string) bool {
	a, ok := c.reg.Lookup(id)
	return ok && a.Confirm
}

// CleanupJob is a cleanup bound to the selection it was started on. Run
// touches no window state, so it may be called off the event loop; its
// outcome goes back through FinishCleanup.
type CleanupJob struct {
	Action  cleanup.Action
	reg     *cleanup.Registry
	targets []cleanup.Target
	handles []dirtree.Handle
}

// Targets returns the entries the job runs on, in selection order.
func (j *CleanupJob) Targets() []cleanup.Target {
	return append([]cleanup.Target(nil), j.targets...)
}

func (j *CleanupJob) Run(ctx context.Context) (cleanup.Result, error) {
	return j.reg.InvokeAction(ctx, j.Action, j.targets)
}

// PrepareCleanup binds cleanup id to the current selection.
func (c *Coordinator) PrepareCleanup(id string) (*CleanupJob, error) {
	a, ok := c.reg.Lookup(id)
	if !ok {
		return nil, cleanup.ErrUnknownAction
	}
	return c.prepare(a), nil
}

// PrepareOpenWith binds an ad-hoc command to the current entry.
func (c *Coordinator) PrepareOpenWith(command string) *CleanupJob {
	return c.prepare(cleanup.OpenWith(command))
}

func (c *Coordinator) prepare(a cleanup.Action) *CleanupJob {
	ts, hs := c.targets()
	return &CleanupJob{Action: a, reg: c.reg, targets: ts, handles: hs}
}

// InvokeCleanup runs cleanup id on the selection and waits for it. See
// FinishCleanup for what happens to the tree afterwards.
func (c *Coordinator) InvokeCleanup(ctx context.Context, id string) (*Scan, error) {
	j, err := c.PrepareCleanup(id)
	if err != nil {
		return nil, err
	}
	res, err := j.Run(ctx)
	return c.FinishCleanup(j, res, err)
}

// OpenWith runs an ad-hoc command on the current entry.
func (c *Coordinator) OpenWith(ctx context.Context, command string) error {
	j := c.PrepareOpenWith(command)
	res, err := j.Run(ctx)
	_, err = c.FinishCleanup(j, res, err)
	return err
}

// FinishCleanup applies the outcome of a job. Entries removed by a
// destructive cleanup are taken out of the tree before the selection is
// cleared; a cleanup that changes its entries starts a refresh, which is
// returned. Entries that went stale while the job ran are skipped.
func (c *Coordinator) FinishCleanup(j *CleanupJob, res cleanup.Result, err error) (*Scan, error) {
	a := j.Action
	if len(res.Done) > 0 {
		c.tracker.RecordActivity(activity.CleanupInvoked)
	}
	if err != nil && !errors.Is(err, cleanup.ErrInvalidSelection) {
		c.pres.ReportError(err)
	}

	var refresh *Scan
	switch {
	case a.Destructive && !c.reg.DryRun():
		for i := range res.Done {
			if rmErr := c.tree.Remove(j.handles[i]); rmErr != nil {
				c.log.Warn("removing cleaned entry", zap.String("path", res.Done[i].Path), zap.Error(rmErr))
			}
		}
		if len(res.Done) > 0 {
			c.SelectionChanged(nil, FromTree)
		}
	case a.Refresh && len(res.Done) > 0 && !c.reg.DryRun():
		h := j.handles[0]
		if !c.tree.IsDir(h) || len(res.Done) > 1 {
			h = c.tree.Parent(h)
		}
		if s, rerr := c.refreshAt(h); rerr == nil {
			refresh = s
		} else {
			c.log.Debug("refresh after cleanup skipped", zap.Error(rerr))
		}
	}
	if err == nil {
		c.pres.Status(fmt.Sprintf("%s: done for %d entries", a.Label, len(res.Done)))
	}
	c.UpdateActions()
	return refresh, err
}

// RevertCleanupsToDefaults discards the user's cleanup customizations.
func (c *Coordinator) RevertCleanupsToDefaults() {
	c.reg.ResetToDefaults()
	c.UpdateActions()
}

// Preferences opens the settings with the live cleanup registry.
func (c *Coordinator) Preferences() {
	c.pres.ShowSettings(c.reg)
}

// ContextMenu offers the cleanups applicable to the selection. An entry
// outside the selection replaces it first.
func (c *Coordinator) ContextMenu(h dirtree.Handle) {
	if !c.tree.Valid(h) {
		return
	}
	if !slices.Contains(c.sel, h) {
		c.SelectionChanged([]dirtree.Handle{h}, FromTree)
	}
	ts, _ := c.targets()
	c.pres.ShowContextMenu(h, c.reg.ApplicableActions(ts))
}

func (c *Coordinator) AskForFeedback() {
	c.pres.ShowFeedback(feedback.Features())
}

// SendFeedback delivers r and stops further reminders.
func (c *Coordinator) SendFeedback(ctx context.Context, r feedback.Report) error {
	r.Version = c.version
	r.Counters = c.tracker.Counters()
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	if err := c.sender.Send(ctx, r); err != nil {
		return err
	}
	c.FeedbackSent()
	c.pres.Status("Thank you for your feedback!")
	return nil
}

func (c *Coordinator) FeedbackSent() {
	c.tracker.MarkFeedbackSent()
}

// MaybeRemind asks for feedback if the usage counters say it is time.
func (c *Coordinator) MaybeRemind() bool {
	if !c.tracker.ShouldRemind() {
		return false
	}
	c.tracker.MarkReminded()
	c.AskForFeedback()
	return true
}

// ScanStarted implements dirtree.Listener.
func (c *Coordinator) ScanStarted() {
	c.UpdateActions()
}

// ScanFinished implements dirtree.Listener.
func (c *Coordinator) ScanFinished(aborted bool) {
	metrics.SetTreeNodes(c.tree.Count())
	if !aborted {
		c.tracker.RecordActivity(activity.ScanCompleted)
	}
	c.UpdateActions()
}

// StructureChanged implements dirtree.Listener.
func (c *Coordinator) StructureChanged(subtree dirtree.Handle) {
	c.nav.StructureChanged(subtree)
	kept := c.sel[:0]
	for _, h := range c.sel {
		if c.tree.Valid(h) {
			kept = append(kept, h)
		}
	}
	c.sel = kept
}

// Settle is called once no tree notifications are pending. It runs the
// treemap work that was held back during the burst.
func (c *Coordinator) Settle() {
	if c.nav.Settle() && c.nav.IsOpen() {
		if h, ok := c.Current(); ok {
			c.nav.Select(h)
		}
	}
	c.UpdateActions()
}

type nopPresenter struct{}

func (nopPresenter) Status(string)                                    {}
func (nopPresenter) SelectInTree(dirtree.Handle)                      {}
func (nopPresenter) ShowContextMenu(dirtree.Handle, []cleanup.Action) {}
func (nopPresenter) ShowSettings(*cleanup.Registry)                   {}
func (nopPresenter) ShowFeedback([]feedback.Feature)                  {}
func (nopPresenter) ReportError(error)                                {}

var _ dirtree.Listener = (*Coordinator)(nil)
