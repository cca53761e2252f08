package treemap

import (
	"errors"

	"go.uber.org/zap"

	"dirstat/internal/dirtree"
	"dirstat/internal/logging"
	"dirstat/internal/metrics"
)

var (
	ErrClosed      = errors.New("treemap is not open")
	ErrNotZoomable = errors.New("entry has no children to zoom into")
	ErrAtRoot      = errors.New("already at the top level")
	ErrNoSelection = errors.New("nothing selected")
	ErrEntryGone   = errors.New("entry no longer exists")
)

type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Frame is one level of the zoom stack. Its tiles are kept until the
// subtree below Anchor changes or the viewport is resized.
type Frame struct {
	Anchor   dirtree.Handle
	Viewport Rect

	tiles []Tile
	valid bool
}

// Navigator owns the treemap panel: whether it exists, the zoom stack and
// the treemap side of the selection. It borrows handles from the tree and
// re-validates them after every structural change.
type Navigator struct {
	src      Source
	opts     Options
	viewport Rect
	stack    []Frame
	selected dirtree.Handle
	onSelect func(dirtree.Handle)

	pendingCreate bool
	dirty         bool

	log *zap.Logger
}

func NewNavigator(src Source, opts Options) *Navigator {
	return &Navigator{
		src:      src,
		opts:     opts,
		viewport: Rect{W: 80, H: 24},
		log:      logging.Named("treemap"),
	}
}

// OnSelect sets the callback that mirrors treemap-originated selection
// changes into the tree view.
func (n *Navigator) OnSelect(fn func(dirtree.Handle)) { n.onSelect = fn }

func (n *Navigator) State() State {
	if len(n.stack) > 0 {
		return Open
	}
	return Closed
}

func (n *Navigator) IsOpen() bool { return len(n.stack) > 0 }

// Depth is the number of frames on the zoom stack, 0 while closed.
func (n *Navigator) Depth() int { return len(n.stack) }

// Anchor returns the entry laid out by the top frame.
func (n *Navigator) Anchor() dirtree.Handle {
	if len(n.stack) == 0 {
		return dirtree.Handle{}
	}
	return n.stack[len(n.stack)-1].Anchor
}

// Anchors returns the zoom stack bottom to top.
func (n *Navigator) Anchors() []dirtree.Handle {
	out := make([]dirtree.Handle, len(n.stack))
	for i, f := range n.stack {
		out[i] = f.Anchor
	}
	return out
}

func (n *Navigator) Selected() dirtree.Handle { return n.selected }

func (n *Navigator) Viewport() Rect { return n.viewport }

// Pending reports whether a deferred creation is waiting for Settle.
func (n *Navigator) Pending() bool { return n.pendingCreate }

// Create opens the panel anchored at the tree root. It does nothing while
// the tree is empty or still being read, and reports whether the panel is
// open afterwards.
func (n *Navigator) Create() bool {
	if n.IsOpen() {
		return true
	}
	if !n.src.Finished() {
		n.log.Debug("treemap creation skipped, tree not fully read")
		return false
	}
	n.pendingCreate = false
	n.stack = []Frame{{Anchor: n.src.Root()}}
	n.rebuild()
	n.log.Debug("treemap created")
	return true
}

// CreateDeferred asks for the panel to be created at the next Settle, after
// the pending structural changes have been processed.
func (n *Navigator) CreateDeferred() {
	if n.IsOpen() {
		return
	}
	n.pendingCreate = true
}

// Destroy closes the panel and drops the zoom stack. Calling it on a closed
// panel is a no-op.
func (n *Navigator) Destroy() {
	n.pendingCreate = false
	n.dirty = false
	if n.stack == nil {
		return
	}
	n.stack = nil
	n.log.Debug("treemap destroyed")
}

// Rebuild recomputes the tiles of the top frame without touching the stack.
func (n *Navigator) Rebuild() error {
	if !n.IsOpen() {
		return ErrClosed
	}
	n.rebuild()
	return nil
}

func (n *Navigator) rebuild() {
	top := &n.stack[len(n.stack)-1]
	top.Viewport = n.viewport
	top.tiles = Layout(n.src, top.Anchor, n.viewport, n.opts)
	top.valid = true
	n.dirty = false
	metrics.RecordTreemapRebuild()
	n.log.Debug("treemap layout",
		zap.Int("depth", len(n.stack)),
		zap.Int("tiles", len(top.tiles)))
}

// ZoomIn pushes a frame anchored at h, which must lie below the current
// anchor and have children.
func (n *Navigator) ZoomIn(h dirtree.Handle) error {
	if !n.IsOpen() {
		return ErrClosed
	}
	if !n.src.Valid(h) {
		return ErrEntryGone
	}
	anchor := n.Anchor()
	if h == anchor || !n.src.IsAncestor(anchor, h) || !n.src.HasChildren(h) {
		return ErrNotZoomable
	}
	n.stack = append(n.stack, Frame{Anchor: h})
	n.rebuild()
	n.log.Debug("zoom in", zap.Int("depth", len(n.stack)))
	return nil
}

// ZoomOut pops the top frame. The frame below keeps its cached tiles unless
// they were invalidated meanwhile.
func (n *Navigator) ZoomOut() error {
	if !n.IsOpen() {
		return ErrClosed
	}
	if len(n.stack) == 1 {
		return ErrAtRoot
	}
	n.stack = n.stack[:len(n.stack)-1]
	n.log.Debug("zoom out", zap.Int("depth", len(n.stack)))
	return nil
}

// ZoomReset pops every frame above the bottom one.
func (n *Navigator) ZoomReset() {
	if len(n.stack) > 1 {
		n.stack = n.stack[:1]
	}
}

func (n *Navigator) CanZoomIn() bool {
	if !n.IsOpen() || !n.src.Valid(n.selected) {
		return false
	}
	target := n.zoomTarget(n.selected)
	return !target.IsZero() && n.src.HasChildren(target)
}

func (n *Navigator) CanZoomOut() bool { return len(n.stack) > 1 }

func (n *Navigator) CanSelectParent() bool {
	return n.src.Valid(n.selected) && !n.src.Parent(n.selected).IsZero()
}

// ZoomToSelection zooms into the directory holding the selection one level
// below the current anchor.
func (n *Navigator) ZoomToSelection() error {
	if !n.src.Valid(n.selected) {
		return ErrNoSelection
	}
	target := n.zoomTarget(n.selected)
	if target.IsZero() {
		return ErrNotZoomable
	}
	return n.ZoomIn(target)
}

// zoomTarget returns the ancestor of h (or h itself) that is a direct child
// of the current anchor.
func (n *Navigator) zoomTarget(h dirtree.Handle) dirtree.Handle {
	anchor := n.Anchor()
	for cur := h; n.src.Valid(cur); cur = n.src.Parent(cur) {
		if n.src.Parent(cur) == anchor {
			return cur
		}
	}
	return dirtree.Handle{}
}

// SelectParent moves the selection to the parent of the selected entry and
// mirrors it to the tree view. Frames that no longer contain the new
// selection are popped.
func (n *Navigator) SelectParent() error {
	if !n.src.Valid(n.selected) {
		n.selected = dirtree.Handle{}
		return ErrNoSelection
	}
	parent := n.src.Parent(n.selected)
	if parent.IsZero() {
		return ErrAtRoot
	}
	n.selected = parent
	n.reveal(parent)
	n.notifySelect()
	return nil
}

// Select records a selection made in the tree view. It does not call the
// OnSelect callback.
func (n *Navigator) Select(h dirtree.Handle) {
	if !n.src.Valid(h) {
		h = dirtree.Handle{}
	}
	n.selected = h
	if !h.IsZero() {
		n.reveal(h)
	}
}

// SelectTile records a selection made in the treemap and mirrors it to the
// tree view.
func (n *Navigator) SelectTile(h dirtree.Handle) error {
	if !n.src.Valid(h) {
		return ErrEntryGone
	}
	n.selected = h
	n.notifySelect()
	return nil
}

func (n *Navigator) notifySelect() {
	if n.onSelect != nil {
		n.onSelect(n.selected)
	}
}

// reveal pops frames whose anchor does not contain h.
func (n *Navigator) reveal(h dirtree.Handle) {
	for len(n.stack) > 1 && !n.src.IsAncestor(n.Anchor(), h) {
		n.stack = n.stack[:len(n.stack)-1]
	}
}

// StructureChanged handles a change below subtree; the zero Handle stands
// for the whole tree. Frames anchored at vanished entries are popped, and
// the panel closes if the bottom frame is gone. Surviving caches that cover
// the change are invalidated and a rebuild is scheduled for Settle.
func (n *Navigator) StructureChanged(subtree dirtree.Handle) {
	if !n.src.Valid(n.selected) {
		n.selected = dirtree.Handle{}
	}
	if !n.IsOpen() {
		return
	}
	if !n.src.Valid(n.stack[0].Anchor) || n.stack[0].Anchor != n.src.Root() {
		n.log.Debug("treemap root vanished, closing")
		n.stack = nil
		n.dirty = false
		return
	}
	for len(n.stack) > 1 && !n.src.Valid(n.Anchor()) {
		n.stack = n.stack[:len(n.stack)-1]
	}
	for i := range n.stack {
		f := &n.stack[i]
		if subtree.IsZero() || !n.src.Valid(subtree) ||
			n.src.IsAncestor(f.Anchor, subtree) || n.src.IsAncestor(subtree, f.Anchor) {
			f.valid = false
		}
	}
	if !n.stack[len(n.stack)-1].valid {
		n.dirty = true
	}
}

// Settle runs the work buffered while notifications were arriving: a
// deferred creation and at most one rebuild. It reports whether the layout
// was recomputed.
func (n *Navigator) Settle() bool {
	if n.pendingCreate && !n.IsOpen() {
		return n.Create()
	}
	if n.dirty && n.IsOpen() {
		n.rebuild()
		return true
	}
	return false
}

// Resize sets the viewport for subsequent layouts and invalidates every
// cached frame.
func (n *Navigator) Resize(viewport Rect) {
	if viewport == n.viewport {
		return
	}
	n.viewport = viewport
	for i := range n.stack {
		n.stack[i].valid = false
	}
}

// Tiles returns the tiles of the top frame, computing them if the cache is
// stale. Tiles whose entry vanished are dropped and the frame is rebuilt.
func (n *Navigator) Tiles() []Tile {
	if !n.IsOpen() {
		return nil
	}
	top := &n.stack[len(n.stack)-1]
	if !top.valid || top.Viewport != n.viewport {
		n.rebuild()
		top = &n.stack[len(n.stack)-1]
	}
	gone := 0
	for _, t := range top.tiles {
		if !n.src.Valid(t.Entry) {
			gone++
		}
	}
	if gone > 0 {
		n.log.Debug("dropping stale tiles", zap.Int("count", gone))
		n.rebuild()
		top = &n.stack[len(n.stack)-1]
	}
	return append([]Tile(nil), top.tiles...)
}

// TileAt returns the innermost tile containing the point.
func (n *Navigator) TileAt(x, y float64) (Tile, bool) {
	var found Tile
	ok := false
	for _, t := range n.Tiles() {
		if t.Rect.Contains(x, y) && (!ok || t.Depth >= found.Depth) {
			found, ok = t, true
		}
	}
	return found, ok
}
