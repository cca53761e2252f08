package tui

import (
	"hash/fnv"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dirstat/internal/dirtree"
	"dirstat/internal/treemap"
)

var (
	dirPalette  = []string{"24", "30", "60", "66", "96", "102"}
	filePalette = []string{"31", "37", "67", "73", "103", "109", "139", "145", "173", "179"}
)

// cellGrid maps every terminal cell of the treemap panel to the innermost
// tile covering it (index+1, 0 for none).
type cellGrid struct {
	w, h  int
	owner []int
	text  []rune
}

func newCellGrid(tiles []treemap.Tile, names func(dirtree.Handle) string, w, h int) *cellGrid {
	g := &cellGrid{w: w, h: h, owner: make([]int, w*h), text: make([]rune, w*h)}
	for i := range g.text {
		g.text[i] = ' '
	}
	// tiles come parents first, so children paint over them
	for i, t := range tiles {
		x0, y0, x1, y1 := g.cells(t.Rect)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				g.owner[y*w+x] = i + 1
			}
		}
	}
	for i, t := range tiles {
		x0, y0, x1, y1 := g.cells(t.Rect)
		if x1-x0 < 4 || y1 <= y0 {
			continue
		}
		x := x0
		for _, r := range names(t.Entry) {
			if x >= x1 || g.owner[y0*w+x] != i+1 {
				break
			}
			g.text[y0*w+x] = r
			x++
		}
	}
	return g
}

func (g *cellGrid) cells(r treemap.Rect) (x0, y0, x1, y1 int) {
	clamp := func(v float64, hi int) int {
		n := int(math.Round(v))
		if n < 0 {
			return 0
		}
		if n > hi {
			return hi
		}
		return n
	}
	return clamp(r.X, g.w), clamp(r.Y, g.h), clamp(r.X+r.W, g.w), clamp(r.Y+r.H, g.h)
}

// renderTreemap draws tiles as coloured cell runs, one line per row.
func renderTreemap(t *dirtree.Tree, tiles []treemap.Tile, selected dirtree.Handle, w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	g := newCellGrid(tiles, t.Name, w, h)
	styles := make(map[int]lipgloss.Style)
	style := func(owner int) lipgloss.Style {
		if s, ok := styles[owner]; ok {
			return s
		}
		var s lipgloss.Style
		if owner == 0 {
			s = lipgloss.NewStyle()
		} else {
			s = tileStyle(t, tiles[owner-1], selected)
		}
		styles[owner] = s
		return s
	}

	var b strings.Builder
	for y := 0; y < h; y++ {
		x := 0
		for x < w {
			owner := g.owner[y*w+x]
			end := x
			for end < w && g.owner[y*w+end] == owner {
				end++
			}
			b.WriteString(style(owner).Render(string(g.text[y*w+x : y*w+end])))
			x = end
		}
		if y < h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func tileStyle(t *dirtree.Tree, tile treemap.Tile, selected dirtree.Handle) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	if tile.Entry == selected {
		return s.Background(lipgloss.Color("227")).Foreground(lipgloss.Color("16")).Bold(true)
	}
	if t.IsDir(tile.Entry) {
		return s.Background(lipgloss.Color(dirPalette[tile.Depth%len(dirPalette)]))
	}
	return s.Background(lipgloss.Color(filePalette[extColor(t.Name(tile.Entry))]))
}

// extColor picks a stable palette slot per file extension.
func extColor(name string) int {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(filepath.Ext(name))))
	return int(h.Sum32() % uint32(len(filePalette)))
}
