// Package treemap lays out a directory subtree as nested rectangles and
// manages the zoomable treemap panel on top of it.
package treemap

import (
	"math"

	"dirstat/internal/dirtree"
)

// Source is the part of the directory tree the treemap reads.
// *dirtree.Tree implements it.
type Source interface {
	Finished() bool
	Root() dirtree.Handle
	Valid(h dirtree.Handle) bool
	Parent(h dirtree.Handle) dirtree.Handle
	HasChildren(h dirtree.Handle) bool
	SortedChildren(h dirtree.Handle) []dirtree.Handle
	TotalSize(h dirtree.Handle) int64
	IsAncestor(a, h dirtree.Handle) bool
}

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// Contains reports whether the point lies inside r. The right and bottom
// edges are exclusive.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Tile maps one entry to its rectangle. Depth is 1 for children of the
// layout anchor. Leaf tiles have no tiles nested inside them.
type Tile struct {
	Entry dirtree.Handle
	Rect  Rect
	Depth int
	Leaf  bool
}

type Options struct {
	MaxDepth    int     // 0 means unlimited
	MinTileSize float64 // tiles narrower or lower than this are dropped
}

// Layout computes a squarified treemap of anchor's subtree inside bounds.
// Parents come before their nested tiles.
func Layout(src Source, anchor dirtree.Handle, bounds Rect, opts Options) []Tile {
	if !src.Valid(anchor) || bounds.Empty() {
		return nil
	}
	var tiles []Tile
	layoutChildren(src, anchor, bounds, 1, opts, &tiles)
	return tiles
}

func layoutChildren(src Source, parent dirtree.Handle, bounds Rect, depth int, opts Options, out *[]Tile) {
	var kids []dirtree.Handle
	var total float64
	for _, c := range src.SortedChildren(parent) {
		size := src.TotalSize(c)
		if size <= 0 {
			// sorted by size, nothing larger follows
			break
		}
		kids = append(kids, c)
		total += float64(size)
	}
	if len(kids) == 0 {
		return
	}

	areas := make([]float64, len(kids))
	scale := bounds.Area() / total
	for i, c := range kids {
		areas[i] = float64(src.TotalSize(c)) * scale
	}

	for i, r := range squarify(areas, bounds) {
		if r.W < opts.MinTileSize || r.H < opts.MinTileSize || r.Empty() {
			continue
		}
		c := kids[i]
		nest := src.HasChildren(c) &&
			(opts.MaxDepth <= 0 || depth < opts.MaxDepth) &&
			r.W >= 2*opts.MinTileSize && r.H >= 2*opts.MinTileSize
		*out = append(*out, Tile{Entry: c, Rect: r, Depth: depth, Leaf: !nest})
		if nest {
			layoutChildren(src, c, r, depth+1, opts, out)
		}
	}
}

// squarify splits r into rectangles of the given areas, which must be sorted
// in descending order and sum to r's area.
func squarify(areas []float64, r Rect) []Rect {
	out := make([]Rect, 0, len(areas))
	for i := 0; i < len(areas); {
		short := math.Min(r.W, r.H)
		j := i + 1
		for j < len(areas) && worst(areas[i:j+1], short) <= worst(areas[i:j], short) {
			j++
		}
		var row []Rect
		row, r = layoutRow(areas[i:j], r)
		out = append(out, row...)
		i = j
	}
	return out
}

// worst returns the highest aspect ratio in a row laid along a side of
// length w.
func worst(row []float64, w float64) float64 {
	var sum, hi float64
	lo := math.Inf(1)
	for _, a := range row {
		sum += a
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if sum == 0 || w == 0 || lo == 0 {
		return math.Inf(1)
	}
	s2, w2 := sum*sum, w*w
	return math.Max(w2*hi/s2, s2/(w2*lo))
}

func layoutRow(row []float64, r Rect) ([]Rect, Rect) {
	var sum float64
	for _, a := range row {
		sum += a
	}
	rects := make([]Rect, len(row))
	if r.Empty() {
		return rects, r
	}
	if r.W >= r.H {
		w := math.Min(sum/r.H, r.W)
		y := r.Y
		for i, a := range row {
			h := a / w
			rects[i] = Rect{X: r.X, Y: y, W: w, H: h}
			y += h
		}
		return rects, Rect{X: r.X + w, Y: r.Y, W: r.W - w, H: r.H}
	}
	h := math.Min(sum/r.W, r.H)
	x := r.X
	for i, a := range row {
		w := a / h
		rects[i] = Rect{X: x, Y: r.Y, W: w, H: h}
		x += w
	}
	return rects, Rect{X: r.X, Y: r.Y + h, W: r.W, H: r.H - h}
}
