package tui

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shirou/gopsutil/v3/disk"

	"dirstat/internal/cleanup"
	"dirstat/internal/config"
	"dirstat/internal/dirtree"
	"dirstat/internal/feedback"
	"dirstat/internal/treemap"
	"dirstat/internal/window"
	"dirstat/pkg/utils"
)

type mode int

const (
	modeBrowse mode = iota
	modeConfirm
	modePrompt
	modeMenu
	modeSettings
	modeFeedback
)

type promptKind int

const (
	promptOpenWith promptKind = iota
	promptWriteCache
	promptReadCache
)

type row struct {
	h     dirtree.Handle
	depth int
}

// model is the bubbletea side of a window. It is also the coordinator's
// Presenter, so it must stay a pointer.
type model struct {
	win  *window.Coordinator
	path string

	// cache file to load instead of reading path
	cachePath string

	keys  keyMap
	help  help.Model
	sp    spinner.Model
	input textinput.Model

	mode     mode
	prompt   promptKind
	scan     *window.Scan
	watching <-chan []string
	cleaning *window.CleanupJob
	reminded bool

	rows         []row
	rowsRoot     dirtree.Handle
	expanded     map[dirtree.Handle]bool
	marked       map[dirtree.Handle]bool
	cursor       int
	scrollOffset int

	// cleanup waiting for confirmation
	pending string

	menu       []cleanup.Action
	menuCursor int

	settings       *cleanup.Registry
	settingsCursor int

	features []feedback.Feature
	fbCursor int
	fbUsed   map[string]bool
	fbRating int

	status    string
	err       error
	freeSpace string

	termW int
	termH int

	showHelp bool
}

// Options configures Run.
type Options struct {
	Config    config.Config
	Store     *config.Store
	Version   string
	CachePath string
}

func newModel(path string) *model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	ti := textinput.New()
	ti.CharLimit = 4096
	return &model{
		path:     path,
		keys:     defaultKeys(),
		help:     help.New(),
		sp:       sp,
		input:    ti,
		expanded: make(map[dirtree.Handle]bool),
		marked:   make(map[dirtree.Handle]bool),
		fbUsed:   make(map[string]bool),
		termW:    80,
		termH:    24,
	}
}

// Run opens path (or the cache file in opts) and runs the interactive UI
// until the user quits. Window state is persisted on the way out.
func Run(path string, opts Options) error {
	m := newModel(path)
	m.cachePath = opts.CachePath
	m.win = window.New(window.Options{
		Config:    opts.Config,
		Store:     opts.Store,
		Presenter: m,
		Version:   opts.Version,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	if cerr := m.win.Close(); err == nil {
		err = cerr
	}
	return err
}

func (m *model) Init() tea.Cmd {
	if m.cachePath != "" {
		if err := m.win.ReadCache(m.cachePath); err != nil {
			m.err = err
		}
		m.updateFreeSpace()
		m.refreshRows()
		return m.watchCmd()
	}
	s, err := m.win.Open(m.path)
	if err != nil {
		m.err = err
		return nil
	}
	m.updateFreeSpace()
	return m.pump(s)
}

// pump starts draining s on the host loop.
func (m *model) pump(s *window.Scan) tea.Cmd {
	if s == nil {
		return nil
	}
	m.scan = s
	m.refreshRows()
	return tea.Batch(m.sp.Tick, waitScan(s))
}

// watchCmd starts pumping change batches when the coordinator has a new
// watcher. An older pump ends by itself once its channel closes.
func (m *model) watchCmd() tea.Cmd {
	ch := m.win.WatchBatches()
	if ch == nil || ch == m.watching {
		return nil
	}
	m.watching = ch
	return waitWatch(ch)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termW, m.termH = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resizeTreemap()
		m.adjustScroll()
		return m, nil

	case spinner.TickMsg:
		if !m.win.Tree().Reading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case scanBatchMsg:
		if m.scan == nil || msg.id != m.scan.ID {
			return m, nil
		}
		for _, d := range msg.dirs {
			m.win.HandleDir(msg.id, d)
		}
		if msg.idle {
			m.win.Settle()
		}
		m.refreshRows()
		return m, waitScan(m.scan)

	case scanDoneMsg:
		m.win.FinishScan(msg.id, msg.err)
		if m.scan != nil && m.scan.ID == msg.id {
			m.scan = nil
		}
		m.updateFreeSpace()
		m.refreshRows()
		if !m.reminded && m.win.Tree().Finished() {
			m.reminded = true
			m.win.MaybeRemind()
		}
		return m, m.watchCmd()

	case watchMsg:
		cmds := []tea.Cmd{waitWatch(m.watching)}
		s, err := m.win.FilesChanged(msg.dirs)
		if err != nil && !errors.Is(err, window.ErrBusy) {
			m.err = err
		}
		cmds = append(cmds, m.pump(s))
		return m, tea.Batch(cmds...)

	case cleanupDoneMsg:
		if msg.job == m.cleaning {
			m.cleaning = nil
		}
		s, err := m.win.FinishCleanup(msg.job, msg.res, msg.err)
		if err != nil && m.err == nil {
			m.err = err
		}
		m.marked = make(map[dirtree.Handle]bool)
		m.refreshRows()
		return m, m.pump(s)

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		m.err = nil
		switch m.mode {
		case modeConfirm:
			return m, m.updateConfirm(msg)
		case modePrompt:
			return m, m.updatePrompt(msg)
		case modeMenu:
			return m, m.updateMenu(msg)
		case modeSettings:
			return m, m.updateSettings(msg)
		case modeFeedback:
			return m, m.updateFeedback(msg)
		}
		return m.updateBrowse(msg)
	}

	if m.mode == modePrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	acts := m.win.Actions()
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, k.Up):
		m.moveCursor(-1)
	case key.Matches(msg, k.Down):
		m.moveCursor(1)
	case key.Matches(msg, k.Top):
		m.moveCursor(-len(m.rows))
	case key.Matches(msg, k.Bottom):
		m.moveCursor(len(m.rows))
	case key.Matches(msg, k.Right):
		if h, ok := m.cursorHandle(); ok && m.win.Tree().HasChildren(h) {
			m.expanded[h] = true
			m.refreshRows()
		}
	case key.Matches(msg, k.Left):
		m.collapseOrParent()
	case key.Matches(msg, k.Mark):
		if h, ok := m.cursorHandle(); ok {
			if m.marked[h] {
				delete(m.marked, h)
			} else {
				m.marked[h] = true
			}
			m.syncSelection()
		}

	case key.Matches(msg, k.Treemap) && acts.ToggleTreemap:
		m.win.ToggleTreemap()
		m.resizeTreemap()
	case key.Matches(msg, k.ZoomIn) && acts.TreemapZoomIn:
		m.err = m.win.TreemapZoomIn()
	case key.Matches(msg, k.ZoomOut) && acts.TreemapZoomOut:
		m.err = m.win.TreemapZoomOut()
	case key.Matches(msg, k.ZoomReset) && acts.TreemapZoomOut:
		m.win.TreemapZoomReset()
	case key.Matches(msg, k.Parent) && acts.TreemapSelectParent:
		m.err = m.win.TreemapSelectParent()
	case key.Matches(msg, k.Rebuild) && acts.TreemapRebuild:
		m.err = m.win.TreemapRebuild()

	case key.Matches(msg, k.Refresh) && acts.RefreshSelected:
		s, err := m.win.RefreshSelected()
		m.err = err
		return m, m.pump(s)
	case key.Matches(msg, k.RefreshAll) && acts.RefreshAll:
		s, err := m.win.RefreshAll()
		m.err = err
		return m, m.pump(s)
	case key.Matches(msg, k.Stop) && acts.StopReading:
		// the pump keeps draining until the scan reports its end
		m.win.StopReading()
	case key.Matches(msg, k.Continue) && acts.ContinueReading:
		if h, ok := m.cursorHandle(); ok {
			s, err := m.win.ContinueReadingAt(h)
			m.err = err
			return m, m.pump(s)
		}

	case key.Matches(msg, k.Cleanup):
		if m.cleaning != nil {
			m.status = m.cleaning.Action.Label + " is still running"
			break
		}
		if sel := m.selection(); len(sel) > 0 {
			m.win.ContextMenu(sel[0])
		}
	case key.Matches(msg, k.OpenWith) && acts.CopyPath && m.cleaning == nil:
		return m, m.openPrompt(promptOpenWith, "Open with: ", "")
	case key.Matches(msg, k.Copy) && acts.CopyPath:
		m.err = m.win.CopyPath()
	case key.Matches(msg, k.WriteCache) && acts.WriteCache:
		return m, m.openPrompt(promptWriteCache, "Write cache to: ", m.defaultCachePath())
	case key.Matches(msg, k.ReadCache) && acts.ReadCache:
		return m, m.openPrompt(promptReadCache, "Read cache from: ", m.defaultCachePath())
	case key.Matches(msg, k.Settings):
		m.win.Preferences()
	case key.Matches(msg, k.Feedback):
		m.win.AskForFeedback()
	}
	return m, nil
}

func (m *model) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		id := m.pending
		m.pending = ""
		m.mode = modeBrowse
		return m.runCleanup(id)
	case "n", "N", "esc", "q":
		m.pending = ""
		m.mode = modeBrowse
		m.status = "Cancelled"
	}
	return nil
}

func (m *model) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return nil
	case tea.KeyEnter:
		m.mode = modeBrowse
		m.input.Blur()
		val := m.input.Value()
		if val == "" {
			return nil
		}
		switch m.prompt {
		case promptOpenWith:
			return m.startJob(m.win.PrepareOpenWith(val))
		case promptWriteCache:
			m.err = m.win.WriteCache(val)
		case promptReadCache:
			m.err = m.win.ReadCache(val)
			m.resetView()
			m.refreshRows()
			m.updateFreeSpace()
			return m.watchCmd()
		}
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) updateMenu(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.menuCursor < len(m.menu)-1 {
			m.menuCursor++
		}
	case msg.Type == tea.KeyEnter:
		m.mode = modeBrowse
		if m.menuCursor < len(m.menu) {
			return m.requestCleanup(m.menu[m.menuCursor].ID)
		}
	case msg.Type == tea.KeyEsc, msg.String() == "q":
		m.mode = modeBrowse
	}
	return nil
}

func (m *model) updateSettings(msg tea.KeyMsg) tea.Cmd {
	acts := m.settings.Actions()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.settingsCursor > 0 {
			m.settingsCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.settingsCursor < len(acts)-1 {
			m.settingsCursor++
		}
	case key.Matches(msg, m.keys.Mark):
		if m.settingsCursor < len(acts) {
			a := acts[m.settingsCursor]
			m.settings.SetEnabled(a.ID, !a.Enabled)
			m.win.UpdateActions()
		}
	case msg.String() == "d":
		m.win.RevertCleanupsToDefaults()
		m.settingsCursor = 0
		m.status = "Cleanups reverted to defaults"
	case msg.Type == tea.KeyEsc, msg.String() == "q":
		m.mode = modeBrowse
	}
	return nil
}

func (m *model) updateFeedback(msg tea.KeyMsg) tea.Cmd {
	switch s := msg.String(); {
	case len(s) == 1 && s[0] >= '1' && s[0] <= '5':
		m.fbRating = int(s[0] - '0')
	case key.Matches(msg, m.keys.Up):
		if m.fbCursor > 0 {
			m.fbCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.fbCursor < len(m.features)-1 {
			m.fbCursor++
		}
	case key.Matches(msg, m.keys.Mark):
		if m.fbCursor < len(m.features) {
			id := m.features[m.fbCursor].ID
			m.fbUsed[id] = !m.fbUsed[id]
		}
	case msg.Type == tea.KeyEnter:
		r := feedback.Report{Rating: m.fbRating}
		for _, f := range m.features {
			if m.fbUsed[f.ID] {
				r.Used = append(r.Used, f.ID)
			}
		}
		if err := m.win.SendFeedback(context.Background(), r); err != nil {
			m.err = err
			return nil
		}
		m.mode = modeBrowse
	case msg.Type == tea.KeyEsc:
		m.mode = modeBrowse
	}
	return nil
}

func (m *model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.mode != modeBrowse || msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	nav := m.win.Navigator()
	if !nav.IsOpen() {
		return nil
	}
	y := msg.Y - headerLines
	if y < 0 || y >= m.treemapHeight() {
		return nil
	}
	tile, ok := nav.TileAt(float64(msg.X)+0.5, float64(y)+0.5)
	if !ok {
		return nil
	}
	m.win.SelectionChanged([]dirtree.Handle{tile.Entry}, window.FromTreemap)
	return nil
}

// requestCleanup runs id, asking first when the action wants confirmation.
func (m *model) requestCleanup(id string) tea.Cmd {
	if m.win.NeedsConfirm(id) {
		m.pending = id
		m.mode = modeConfirm
		return nil
	}
	return m.runCleanup(id)
}

func (m *model) runCleanup(id string) tea.Cmd {
	j, err := m.win.PrepareCleanup(id)
	if err != nil {
		m.err = err
		return nil
	}
	return m.startJob(j)
}

// startJob runs j in the background; its result arrives as cleanupDoneMsg.
func (m *model) startJob(j *window.CleanupJob) tea.Cmd {
	m.cleaning = j
	m.status = "Running " + j.Action.Label + "..."
	return runJob(j)
}

func (m *model) openPrompt(kind promptKind, prompt, value string) tea.Cmd {
	m.mode = modePrompt
	m.prompt = kind
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *model) defaultCachePath() string {
	root := m.win.Tree().RootPath()
	if root == "" {
		root = m.path
	}
	return filepath.Join(root, ".dirstat.cache.gz")
}

func (m *model) updateFreeSpace() {
	root := m.win.Tree().RootPath()
	if root == "" {
		root = m.path
	}
	u, err := disk.Usage(root)
	if err != nil {
		m.freeSpace = ""
		return
	}
	m.freeSpace = utils.HumanizeBytes(int64(u.Free)) + " free"
}

// panelHeight is the share of the body given to the treemap.
func (m *model) panelHeight() int {
	body := m.termH - headerLines - footerLines
	h := body * m.win.Config().Treemap.Height / 100
	if h < 3 {
		h = 3
	}
	return h
}

func (m *model) treemapHeight() int {
	if !m.win.Navigator().IsOpen() {
		return 0
	}
	return m.panelHeight()
}

func (m *model) resizeTreemap() {
	m.win.Navigator().Resize(treemap.Rect{W: float64(m.termW), H: float64(m.panelHeight())})
}

// Presenter

func (m *model) Status(msg string) { m.status = msg }

func (m *model) SelectInTree(h dirtree.Handle) {
	t := m.win.Tree()
	if !t.Valid(h) {
		return
	}
	for p := t.Parent(h); t.Valid(p); p = t.Parent(p) {
		m.expanded[p] = true
	}
	m.marked = make(map[dirtree.Handle]bool)
	m.refreshRows()
	for i, r := range m.rows {
		if r.h == h {
			m.cursor = i
			break
		}
	}
	m.adjustScroll()
}

func (m *model) ShowContextMenu(h dirtree.Handle, actions []cleanup.Action) {
	if len(actions) == 0 {
		m.status = "No cleanup applies to " + m.win.Tree().Name(h)
		return
	}
	m.menu = actions
	m.menuCursor = 0
	m.mode = modeMenu
}

func (m *model) ShowSettings(reg *cleanup.Registry) {
	m.settings = reg
	m.settingsCursor = 0
	m.mode = modeSettings
}

func (m *model) ShowFeedback(features []feedback.Feature) {
	m.features = features
	m.fbCursor = 0
	m.fbRating = 0
	m.fbUsed = make(map[string]bool)
	m.mode = modeFeedback
}

func (m *model) ReportError(err error) { m.err = err }
