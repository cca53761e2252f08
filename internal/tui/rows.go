package tui

import (
	"dirstat/internal/dirtree"
	"dirstat/internal/window"
)

// flattenRows lists the visible entries of t: the root and the children of
// every expanded directory, largest first.
func flattenRows(t *dirtree.Tree, expanded map[dirtree.Handle]bool) []row {
	root := t.Root()
	if !t.Valid(root) {
		return nil
	}
	var rows []row
	var add func(h dirtree.Handle, depth int)
	add = func(h dirtree.Handle, depth int) {
		rows = append(rows, row{h: h, depth: depth})
		if !expanded[h] {
			return
		}
		for _, c := range t.SortedChildren(h) {
			add(c, depth+1)
		}
	}
	add(root, 0)
	return rows
}

// refreshRows rebuilds the visible rows after the tree changed, keeping the
// cursor on the same entry when it still exists.
func (m *model) refreshRows() {
	t := m.win.Tree()
	if root := t.Root(); root != m.rowsRoot {
		m.resetView()
		m.rowsRoot = root
		if t.Valid(root) {
			m.expanded[root] = true
		}
	}
	cur, hadCur := m.cursorHandle()

	for h := range m.expanded {
		if !t.Valid(h) {
			delete(m.expanded, h)
		}
	}
	for h := range m.marked {
		if !t.Valid(h) {
			delete(m.marked, h)
		}
	}

	m.rows = flattenRows(t, m.expanded)
	if hadCur && t.Valid(cur) {
		for i, r := range m.rows {
			if r.h == cur {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.adjustScroll()
}

func (m *model) resetView() {
	m.expanded = make(map[dirtree.Handle]bool)
	m.marked = make(map[dirtree.Handle]bool)
	m.rows = nil
	m.rowsRoot = dirtree.Handle{}
	m.cursor = 0
	m.scrollOffset = 0
}

func (m *model) cursorHandle() (dirtree.Handle, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return dirtree.Handle{}, false
	}
	h := m.rows[m.cursor].h
	return h, m.win.Tree().Valid(h)
}

func (m *model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	m.adjustScroll()
	m.syncSelection()
}

func (m *model) collapseOrParent() {
	h, ok := m.cursorHandle()
	if !ok {
		return
	}
	if m.expanded[h] && h != m.win.Tree().Root() {
		delete(m.expanded, h)
		m.refreshRows()
		return
	}
	p := m.win.Tree().Parent(h)
	for i, r := range m.rows {
		if r.h == p {
			m.cursor = i
			m.adjustScroll()
			m.syncSelection()
			return
		}
	}
}

// selection is the marked entries in display order, or the entry under the
// cursor when nothing is marked.
func (m *model) selection() []dirtree.Handle {
	var sel []dirtree.Handle
	for _, r := range m.rows {
		if m.marked[r.h] {
			sel = append(sel, r.h)
		}
	}
	if len(sel) > 0 {
		return sel
	}
	if h, ok := m.cursorHandle(); ok {
		return []dirtree.Handle{h}
	}
	return nil
}

func (m *model) syncSelection() {
	m.win.SelectionChanged(m.selection(), window.FromTree)
}

func (m *model) listHeight() int {
	h := m.termH - headerLines - footerLines - m.treemapHeight()
	if m.showHelp {
		h -= len(m.keys.FullHelp()[0])
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m *model) adjustScroll() {
	visibleHeight := m.listHeight()

	if m.cursor >= m.scrollOffset+visibleHeight {
		m.scrollOffset = m.cursor - visibleHeight + 1
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
}
