package window

import "dirstat/internal/dirtree"

// Actions says which commands are currently available. Commands whose
// precondition fails are disabled here instead of failing when triggered.
type Actions struct {
	Open            bool
	RefreshAll      bool
	RefreshSelected bool
	StopReading     bool
	CloseDir        bool
	ContinueReading bool
	CopyPath        bool
	ReadCache       bool
	WriteCache      bool

	ToggleTreemap       bool
	TreemapZoomIn       bool
	TreemapZoomOut      bool
	TreemapSelectParent bool
	TreemapRebuild      bool

	// Cleanups maps action IDs to whether they apply to the selection.
	Cleanups map[string]bool
}

// Actions returns the table computed by the last UpdateActions.
func (c *Coordinator) Actions() Actions { return c.actions }

// UpdateActions recomputes the enablement table from the selection and the
// tree state.
func (c *Coordinator) UpdateActions() Actions {
	reading := c.tree.Reading()
	hasTree := !c.tree.Root().IsZero()
	cur, hasSel := c.Current()

	a := Actions{
		Open:            true,
		ReadCache:       !reading,
		RefreshAll:      hasTree && !reading,
		RefreshSelected: hasSel && !reading,
		StopReading:     reading,
		CloseDir:        hasTree,
		CopyPath:        hasSel,
		WriteCache:      c.tree.Finished(),
		ToggleTreemap:   hasTree,
		TreemapRebuild:  c.nav.IsOpen(),
		TreemapZoomIn:   c.nav.CanZoomIn(),
		TreemapZoomOut:  c.nav.CanZoomOut(),
		Cleanups:        make(map[string]bool),
	}
	a.TreemapSelectParent = c.nav.IsOpen() && c.nav.CanSelectParent()
	if hasSel && !reading {
		if n, ok := c.tree.Get(cur); ok && n.IsDir() {
			a.ContinueReading = n.Flags&(dirtree.FlagExcluded|dirtree.FlagMountPoint|dirtree.FlagUnread) != 0
		}
	}

	ts, _ := c.targets()
	for _, act := range c.reg.Actions() {
		a.Cleanups[act.ID] = !reading && c.reg.Applicable(act, ts)
	}
	c.actions = a
	return a
}
