package treemap

import (
	"io/fs"
	"math"
	"testing"

	"dirstat/internal/dirtree"
	"dirstat/internal/scanner"
)

func file(name string, size int64) scanner.Entry {
	return scanner.Entry{Name: name, Size: size}
}

func dir(name string) scanner.Entry {
	return scanner.Entry{Name: name, Mode: fs.ModeDir | 0o755}
}

// build reads the batches into a finished tree rooted at the first batch.
func build(t *testing.T, batches ...scanner.Dir) *dirtree.Tree {
	t.Helper()
	tr := dirtree.New()
	tr.Reset(batches[0].Path)
	tr.BeginRead()
	for _, b := range batches {
		if _, ok := tr.Apply(b); !ok {
			t.Fatalf("apply %s failed", b.Path)
		}
	}
	tr.FinishRead(false)
	return tr
}

func lookup(t *testing.T, tr *dirtree.Tree, p string) dirtree.Handle {
	t.Helper()
	h, ok := tr.Lookup(p)
	if !ok {
		t.Fatalf("lookup %s failed", p)
	}
	return h
}

func TestSquarify_CoversArea(t *testing.T) {
	bounds := Rect{W: 60, H: 40}
	areas := []float64{1200, 600, 300, 200, 100}
	rects := squarify(areas, bounds)
	if len(rects) != len(areas) {
		t.Fatalf("got %d rects", len(rects))
	}
	var sum float64
	for i, r := range rects {
		if math.Abs(r.Area()-areas[i]) > 1e-6 {
			t.Errorf("rect %d area %.3f want %.3f", i, r.Area(), areas[i])
		}
		if r.X < -1e-9 || r.Y < -1e-9 || r.X+r.W > bounds.W+1e-6 || r.Y+r.H > bounds.H+1e-6 {
			t.Errorf("rect %d outside bounds: %+v", i, r)
		}
		sum += r.Area()
	}
	if math.Abs(sum-bounds.Area()) > 1e-6 {
		t.Fatalf("covered %.3f of %.3f", sum, bounds.Area())
	}
}

func TestLayout_NestsAndSkipsEmpty(t *testing.T) {
	tr := build(t,
		scanner.Dir{Path: "/r", Entries: []scanner.Entry{file("big", 60), dir("d"), file("zero", 0)}},
		scanner.Dir{Path: "/r/d", Entries: []scanner.Entry{file("x", 30), file("y", 10)}},
	)
	tiles := Layout(tr, tr.Root(), Rect{W: 100, H: 50}, Options{})
	if len(tiles) != 4 {
		t.Fatalf("expected 4 tiles, got %d", len(tiles))
	}
	d := lookup(t, tr, "/r/d")
	for _, tl := range tiles {
		if tr.Name(tl.Entry) == "zero" {
			t.Fatalf("zero sized entry laid out")
		}
		if tl.Entry == d && tl.Leaf {
			t.Fatalf("directory with children should not be a leaf")
		}
		if tr.Parent(tl.Entry) == d && tl.Depth != 2 {
			t.Fatalf("nested tile depth %d", tl.Depth)
		}
	}

	flat := Layout(tr, tr.Root(), Rect{W: 100, H: 50}, Options{MaxDepth: 1})
	if len(flat) != 2 {
		t.Fatalf("max depth 1: expected 2 tiles, got %d", len(flat))
	}
	for _, tl := range flat {
		if !tl.Leaf {
			t.Fatalf("all tiles should be leaves at max depth 1")
		}
	}
}

func TestLayout_DropsTinyTiles(t *testing.T) {
	tr := build(t,
		scanner.Dir{Path: "/r", Entries: []scanner.Entry{file("huge", 100000), file("tiny", 1)}},
	)
	tiles := Layout(tr, tr.Root(), Rect{W: 20, H: 10}, Options{MinTileSize: 1})
	if len(tiles) != 1 || tr.Name(tiles[0].Entry) != "huge" {
		t.Fatalf("expected only the huge tile, got %+v", tiles)
	}
}
