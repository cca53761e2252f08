package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dirstat/internal/dirtree"
	"dirstat/pkg/utils"
)

const (
	headerLines = 2
	footerLines = 2
)

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(m.headerText())
	b.WriteString("\n")

	switch m.mode {
	case modeConfirm:
		b.WriteString(m.confirmView())
	case modePrompt:
		b.WriteString(panelStyle.Render(m.input.View() + "\n\n" + dimStyle.Render("enter: ok   esc: cancel")) + "\n")
	case modeMenu:
		b.WriteString(m.menuView())
	case modeSettings:
		b.WriteString(m.settingsView())
	case modeFeedback:
		b.WriteString(m.feedbackView())
	default:
		if th := m.treemapHeight(); th > 0 {
			nav := m.win.Navigator()
			b.WriteString(renderTreemap(m.win.Tree(), nav.Tiles(), nav.Selected(), m.termW, th))
			b.WriteString("\n")
		}
		b.WriteString(m.renderList())
	}

	b.WriteString(m.footerText())
	return b.String()
}

func (m *model) headerText() string {
	t := m.win.Tree()
	root := t.RootPath()
	if root == "" {
		root = m.path
	}
	line := headerStyle.Render("dirstat") + "  " + root
	if t.Valid(t.Root()) {
		line += "  " + sizeStyle.Render(utils.HumanizeBytes(t.TotalSize(t.Root())))
	}
	if m.freeSpace != "" {
		line += dimStyle.Render("  (" + m.freeSpace + ")")
	}

	var second string
	switch {
	case t.Reading():
		second = fmt.Sprintf("%s Reading... %d items", m.sp.View(), t.Count())
	case m.win.Navigator().IsOpen():
		nav := m.win.Navigator()
		second = fmt.Sprintf("Treemap: %s (zoom %d)", t.Path(nav.Anchor()), nav.Depth())
	default:
		second = t.State().String()
	}
	if m.win.Config().DryRun {
		second += highlightStyle.Render("  [dry-run]")
	}
	return line + "\n" + dimStyle.Render(second)
}

func (m *model) footerText() string {
	var status string
	switch {
	case m.err != nil:
		status = errorStyle.Render("Error: " + m.err.Error())
	case m.status != "":
		status = m.status
	}
	if n := len(m.marked); n > 0 {
		var size int64
		for h := range m.marked {
			size += m.win.Tree().TotalSize(h)
		}
		status += markSelectedStyle.Render(fmt.Sprintf("  %d marked, %s", n, utils.HumanizeBytes(size)))
	}
	return status + "\n" + m.help.View(m.keys)
}

func (m *model) renderList() string {
	if len(m.rows) == 0 {
		return "No directory open.\n"
	}
	t := m.win.Tree()

	var b strings.Builder
	start := m.scrollOffset
	end := start + m.listHeight()
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := start; i < end; i++ {
		r := m.rows[i]
		n, ok := t.Get(r.h)
		if !ok {
			b.WriteString("\n")
			continue
		}

		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render(">") + " "
		}
		mark := markStyle.Render("[ ]")
		if m.marked[r.h] {
			mark = markSelectedStyle.Render("[x]")
		}

		expander := " "
		if n.IsDir() && t.HasChildren(r.h) {
			expander = "▸"
			if m.expanded[r.h] {
				expander = "▾"
			}
		}

		pct := ""
		if p := t.Parent(r.h); t.Valid(p) {
			pct = utils.Percent(n.TotalSize, t.TotalSize(p))
		}

		name := n.Name
		if r.h == t.Root() {
			name = t.RootPath()
		}
		if n.IsDir() {
			name += "/"
		}
		if m.marked[r.h] {
			name = pathStyleSelected.Render(name)
		}

		line := fmt.Sprintf("%s%s %s %6s %s%s %s%s",
			prefix, mark,
			sizeColorStyle(n.TotalSize).Render(fmt.Sprintf("%7s", utils.HumanizeBytesCompact(n.TotalSize))),
			pct,
			strings.Repeat("  ", r.depth), expander, name, flagText(n.Flags))
		b.WriteString(line + "\n")
	}
	return b.String()
}

func flagText(f dirtree.Flags) string {
	var parts []string
	if f&dirtree.FlagExcluded != 0 {
		parts = append(parts, "excluded")
	}
	if f&dirtree.FlagMountPoint != 0 {
		parts = append(parts, "mount point")
	}
	if f&dirtree.FlagUnread != 0 {
		parts = append(parts, "not read")
	}
	if f&dirtree.FlagReadError != 0 {
		parts = append(parts, "read error")
	}
	if len(parts) == 0 {
		return ""
	}
	return dimStyle.Render("  [" + strings.Join(parts, ", ") + "]")
}

func (m *model) confirmView() string {
	a, _ := m.win.Registry().Lookup(m.pending)
	sel := m.win.Selection()
	lines := []string{
		highlightStyle.Render(a.Label),
		fmt.Sprintf("on %d item(s):", len(sel)),
	}
	for i, h := range sel {
		if i == 10 {
			lines = append(lines, fmt.Sprintf("... and %d more", len(sel)-i))
			break
		}
		lines = append(lines, "  "+m.win.Tree().Path(h))
	}
	lines = append(lines, "", "Proceed? (y/n)")
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *model) menuView() string {
	lines := []string{headerStyle.Render("Cleanups")}
	for i, a := range m.menu {
		prefix := "  "
		if i == m.menuCursor {
			prefix = cursorStyle.Render(">") + " "
		}
		label := a.Label
		if a.Destructive {
			label = errorStyle.Render(label)
		}
		lines = append(lines, prefix+label)
	}
	lines = append(lines, "", dimStyle.Render("enter: run   esc: close"))
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *model) settingsView() string {
	lines := []string{headerStyle.Render("Cleanup settings")}
	for i, a := range m.settings.Actions() {
		prefix := "  "
		if i == m.settingsCursor {
			prefix = cursorStyle.Render(">") + " "
		}
		mark := markStyle.Render("[ ]")
		if a.Enabled {
			mark = markSelectedStyle.Render("[x]")
		}
		detail := a.Command
		if detail == "" {
			detail = "built-in"
		}
		lines = append(lines, fmt.Sprintf("%s%s %-28s %s", prefix, mark, a.Label, dimStyle.Render(detail+"  "+a.Caps.String())))
	}
	lines = append(lines, "", dimStyle.Render("space: enable/disable   d: revert to defaults   esc: close"))
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *model) feedbackView() string {
	rating := "not rated"
	if m.fbRating > 0 {
		rating = strings.Repeat("*", m.fbRating) + strings.Repeat(".", 5-m.fbRating)
	}
	lines := []string{
		headerStyle.Render("Send feedback"),
		"Rating (1-5): " + highlightStyle.Render(rating),
		"",
		"Features you used:",
	}
	for i, f := range m.features {
		prefix := "  "
		if i == m.fbCursor {
			prefix = cursorStyle.Render(">") + " "
		}
		mark := markStyle.Render("[ ]")
		if m.fbUsed[f.ID] {
			mark = markSelectedStyle.Render("[x]")
		}
		lines = append(lines, prefix+mark+" "+f.Label)
	}
	lines = append(lines, "", dimStyle.Render("1-5: rate   space: toggle   enter: send   esc: not now"))
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

var (
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	markStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	markSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	sizeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	pathStyleSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	highlightStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("227")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	headerStyle       = lipgloss.NewStyle().Bold(true)
	panelStyle        = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())
)

// sizeColorStyle colours a size from green to red as it grows.
func sizeColorStyle(b int64) lipgloss.Style {
	const (
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case b >= 10*gb:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	case b >= gb:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	case b >= 500*mb:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	case b >= 100*mb:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	case b >= 10*mb:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	case b >= mb:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}
}
