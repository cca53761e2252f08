// Package dirtree holds the in-memory directory tree of a scan.
//
// Nodes live in an arena and are referenced by generation-counted handles:
// removing or re-reading a subtree frees its slots and bumps their
// generation, so any handle kept elsewhere can be checked for staleness in
// constant time.
package dirtree

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"dirstat/internal/scanner"
)

type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindSpecial
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindSpecial:
		return "special"
	default:
		return "file"
	}
}

// Flags mark directories that were found but not read, or read with errors.
type Flags uint8

const (
	FlagExcluded Flags = 1 << iota
	FlagMountPoint
	FlagUnread
	FlagReadError
)

// Handle references a node. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) IsZero() bool { return h.gen == 0 }

// Node is one filesystem entry.
type Node struct {
	Name    string
	Kind    Kind
	Mode    fs.FileMode
	Size    int64 // own size
	ModTime time.Time
	Flags   Flags

	TotalSize int64 // own size plus all descendants
	Items     int64 // number of descendants

	parent   Handle
	children []Handle
}

func (n *Node) IsDir() bool { return n.Kind == KindDir }

type ReadState int

const (
	StateEmpty ReadState = iota
	StateReading
	StateFinished
	StateAborted
)

func (s ReadState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "empty"
	}
}

// Listener receives tree notifications. They are delivered synchronously
// on the goroutine that mutated the tree.
type Listener interface {
	ScanStarted()
	ScanFinished(aborted bool)
	StructureChanged(subtree Handle)
}

var (
	ErrStale     = errors.New("entry no longer exists")
	ErrNotDir    = errors.New("entry is not a directory")
	ErrIsRoot    = errors.New("cannot remove the tree root")
	ErrNoTree    = errors.New("no directory tree open")
	ErrNotInTree = errors.New("path is outside the open tree")
)

type slot struct {
	gen  uint32
	live bool
	node Node
}

// Tree is not safe for concurrent use; all mutation happens on one
// goroutine.
type Tree struct {
	slots []slot
	free  []uint32
	dirs  map[string]Handle

	root      Handle
	rootPath  string
	state     ReadState
	count     int
	listeners []Listener
}

func New() *Tree {
	return &Tree{dirs: make(map[string]Handle)}
}

// Subscribe registers l for notifications.
func (t *Tree) Subscribe(l Listener) {
	t.listeners = append(t.listeners, l)
}

func (t *Tree) Root() Handle     { return t.root }
func (t *Tree) RootPath() string { return t.rootPath }
func (t *Tree) State() ReadState { return t.state }
func (t *Tree) Finished() bool   { return t.state == StateFinished && !t.root.IsZero() }
func (t *Tree) Reading() bool    { return t.state == StateReading }
func (t *Tree) Count() int       { return t.count }

// Valid reports whether h still refers to a live node.
func (t *Tree) Valid(h Handle) bool {
	if h.IsZero() || int(h.index) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.index]
	return s.live && s.gen == h.gen
}

func (t *Tree) node(h Handle) *Node {
	if !t.Valid(h) {
		return nil
	}
	return &t.slots[h.index].node
}

// Get returns a copy of the node behind h.
func (t *Tree) Get(h Handle) (Node, bool) {
	n := t.node(h)
	if n == nil {
		return Node{}, false
	}
	return *n, true
}

func (t *Tree) Name(h Handle) string {
	if n := t.node(h); n != nil {
		return n.Name
	}
	return ""
}

func (t *Tree) IsDir(h Handle) bool {
	n := t.node(h)
	return n != nil && n.IsDir()
}

func (t *Tree) TotalSize(h Handle) int64 {
	if n := t.node(h); n != nil {
		return n.TotalSize
	}
	return 0
}

// Parent returns the parent of h, or the zero Handle for the root.
func (t *Tree) Parent(h Handle) Handle {
	if n := t.node(h); n != nil {
		return n.parent
	}
	return Handle{}
}

// Children returns a copy of h's child handles in insertion order.
func (t *Tree) Children(h Handle) []Handle {
	n := t.node(h)
	if n == nil {
		return nil
	}
	return append([]Handle(nil), n.children...)
}

// HasChildren reports whether h has at least one child.
func (t *Tree) HasChildren(h Handle) bool {
	n := t.node(h)
	return n != nil && len(n.children) > 0
}

// SortedChildren returns h's children by descending total size, ties broken
// by name.
func (t *Tree) SortedChildren(h Handle) []Handle {
	kids := t.Children(h)
	sort.SliceStable(kids, func(i, j int) bool {
		a, b := &t.slots[kids[i].index].node, &t.slots[kids[j].index].node
		if a.TotalSize != b.TotalSize {
			return a.TotalSize > b.TotalSize
		}
		return a.Name < b.Name
	})
	return kids
}

// Path returns the absolute path of h.
func (t *Tree) Path(h Handle) string {
	n := t.node(h)
	if n == nil {
		return ""
	}
	if n.parent.IsZero() {
		return n.Name
	}
	return filepath.Join(t.Path(n.parent), n.Name)
}

// Depth returns the number of ancestors of h.
func (t *Tree) Depth(h Handle) int {
	d := 0
	for p := t.Parent(h); !p.IsZero(); p = t.Parent(p) {
		d++
	}
	return d
}

// IsAncestor reports whether a is h or one of its ancestors.
func (t *Tree) IsAncestor(a, h Handle) bool {
	for cur := h; t.Valid(cur); cur = t.Parent(cur) {
		if cur == a {
			return true
		}
	}
	return false
}

// Lookup finds the node for an absolute path.
func (t *Tree) Lookup(path string) (Handle, bool) {
	path = filepath.Clean(path)
	if h, ok := t.dirs[path]; ok && t.Valid(h) {
		return h, true
	}
	parent, ok := t.dirs[filepath.Dir(path)]
	if !ok {
		return Handle{}, false
	}
	name := filepath.Base(path)
	for _, c := range t.slots[parent.index].node.children {
		if t.slots[c.index].node.Name == name {
			return c, true
		}
	}
	return Handle{}, false
}

// Walk visits h and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func (t *Tree) Walk(h Handle, fn func(h Handle, depth int) bool) {
	t.walk(h, 0, fn)
}

func (t *Tree) walk(h Handle, depth int, fn func(Handle, int) bool) {
	n := t.node(h)
	if n == nil || !fn(h, depth) {
		return
	}
	for _, c := range n.children {
		t.walk(c, depth+1, fn)
	}
}

// Reset discards the whole tree and creates an empty root for rootPath.
func (t *Tree) Reset(rootPath string) Handle {
	t.Clear()
	rootPath = filepath.Clean(rootPath)
	t.rootPath = rootPath
	t.root = t.alloc(Node{Name: rootPath, Kind: KindDir, Mode: fs.ModeDir})
	t.dirs[rootPath] = t.root
	return t.root
}

// Clear drops every node; all outstanding handles become stale.
func (t *Tree) Clear() {
	had := !t.root.IsZero()
	for i := range t.slots {
		if t.slots[i].live {
			t.release(uint32(i))
		}
	}
	t.dirs = make(map[string]Handle)
	t.root = Handle{}
	t.rootPath = ""
	t.state = StateEmpty
	t.count = 0
	if had {
		t.notifyChanged(Handle{})
	}
}

// BeginRead marks the tree as being read and notifies listeners.
func (t *Tree) BeginRead() {
	t.state = StateReading
	for _, l := range t.listeners {
		l.ScanStarted()
	}
}

// FinishRead ends a read started with BeginRead.
func (t *Tree) FinishRead(aborted bool) {
	if aborted {
		t.state = StateAborted
	} else {
		t.state = StateFinished
	}
	for _, l := range t.listeners {
		l.ScanFinished(aborted)
	}
}

// Apply inserts the children found while reading one directory. Batches for
// directories that are not (or no longer) part of the tree are ignored.
func (t *Tree) Apply(d scanner.Dir) (Handle, bool) {
	h, ok := t.dirs[filepath.Clean(d.Path)]
	if !ok || !t.Valid(h) {
		return Handle{}, false
	}
	if len(t.slots[h.index].node.children) > 0 {
		t.dropChildren(h)
	}
	n := &t.slots[h.index].node
	n.Flags &^= FlagUnread | FlagExcluded | FlagMountPoint | FlagReadError
	if d.Err != nil {
		n.Flags |= FlagReadError
	}
	for _, e := range d.Entries {
		t.AddChild(h, nodeFromEntry(e))
	}
	t.notifyChanged(h)
	return h, true
}

func nodeFromEntry(e scanner.Entry) Node {
	n := Node{
		Name:    e.Name,
		Mode:    e.Mode,
		Size:    e.Size,
		ModTime: e.ModTime,
	}
	switch {
	case e.Mode.IsDir():
		n.Kind = KindDir
	case e.Mode&fs.ModeSymlink != 0:
		n.Kind = KindSymlink
	case e.Mode.IsRegular():
		n.Kind = KindFile
	default:
		n.Kind = KindSpecial
	}
	if e.Excluded {
		n.Flags |= FlagExcluded
	}
	if e.MountPoint {
		n.Flags |= FlagMountPoint
	}
	if e.Unread {
		n.Flags |= FlagUnread
	}
	return n
}

// AddChild appends n below parent and propagates its size upwards. It does
// not notify listeners; callers batch notifications.
func (t *Tree) AddChild(parent Handle, n Node) Handle {
	if !t.Valid(parent) {
		return Handle{}
	}
	n.parent = parent
	n.children = nil
	n.TotalSize = n.Size
	n.Items = 0
	h := t.alloc(n)
	p := &t.slots[parent.index].node
	p.children = append(p.children, h)
	if n.Kind == KindDir {
		t.dirs[filepath.Join(t.Path(parent), n.Name)] = h
	}
	t.propagate(parent, n.Size, 1)
	return h
}

// Remove deletes h and its subtree.
func (t *Tree) Remove(h Handle) error {
	n := t.node(h)
	if n == nil {
		return ErrStale
	}
	if n.parent.IsZero() {
		return ErrIsRoot
	}
	parent := n.parent
	t.propagate(parent, -n.TotalSize, -(n.Items + 1))
	p := &t.slots[parent.index].node
	for i, c := range p.children {
		if c == h {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	t.freeSubtree(h)
	t.notifyChanged(parent)
	return nil
}

// ClearChildren drops the subtree below h, keeping h itself, so it can be
// read again.
func (t *Tree) ClearChildren(h Handle) error {
	n := t.node(h)
	if n == nil {
		return ErrStale
	}
	if !n.IsDir() {
		return ErrNotDir
	}
	t.dropChildren(h)
	t.notifyChanged(h)
	return nil
}

func (t *Tree) dropChildren(h Handle) {
	n := &t.slots[h.index].node
	removed, items := n.TotalSize-n.Size, n.Items
	kids := n.children
	n.children = nil
	for _, c := range kids {
		t.freeSubtree(c)
	}
	t.propagate(h, -removed, -items)
}

func (t *Tree) propagate(from Handle, size, items int64) {
	for cur := from; !cur.IsZero(); {
		n := &t.slots[cur.index].node
		n.TotalSize += size
		n.Items += items
		cur = n.parent
	}
}

func (t *Tree) freeSubtree(h Handle) {
	n := &t.slots[h.index].node
	if n.Kind == KindDir {
		path := t.Path(h)
		if t.dirs[path] == h {
			delete(t.dirs, path)
		}
	}
	for _, c := range n.children {
		t.freeSubtree(c)
	}
	t.release(h.index)
}

func (t *Tree) alloc(n Node) Handle {
	var idx uint32
	if k := len(t.free); k > 0 {
		idx = t.free[k-1]
		t.free = t.free[:k-1]
	} else {
		t.slots = append(t.slots, slot{})
		idx = uint32(len(t.slots) - 1)
	}
	s := &t.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.live = true
	s.node = n
	t.count++
	return Handle{index: idx, gen: s.gen}
}

func (t *Tree) release(idx uint32) {
	s := &t.slots[idx]
	s.live = false
	s.node = Node{}
	t.free = append(t.free, idx)
	t.count--
}

func (t *Tree) notifyChanged(h Handle) {
	for _, l := range t.listeners {
		l.StructureChanged(h)
	}
}
