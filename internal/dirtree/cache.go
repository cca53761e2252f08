package dirtree

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const cacheHeader = "[dirstat 1.0 cache file]"

// WriteCacheFile writes the subtree below h to path as a gzip-compressed
// cache file.
func (t *Tree) WriteCacheFile(path string, h Handle) error {
	if !t.Valid(h) {
		return ErrNoTree
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if err := t.WriteCache(zw, h); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCache writes the subtree below h in cache format. Each directory is a
// "D" line carrying its full path, followed by "F" lines for its
// non-directory children; subdirectories follow recursively.
func (t *Tree) WriteCache(w io.Writer, h Handle) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, cacheHeader)
	fmt.Fprintf(bw, "# written %s\n", time.Now().UTC().Format(time.RFC3339))
	t.writeDir(bw, h)
	return bw.Flush()
}

func (t *Tree) writeDir(w *bufio.Writer, h Handle) {
	n := t.node(h)
	writeLine(w, "D", url.PathEscape(t.Path(h)), n)
	var subdirs []Handle
	for _, c := range n.children {
		cn := t.node(c)
		if cn.IsDir() {
			subdirs = append(subdirs, c)
			continue
		}
		writeLine(w, kindTag(cn.Kind), url.PathEscape(cn.Name), cn)
	}
	for _, c := range subdirs {
		t.writeDir(w, c)
	}
}

func writeLine(w *bufio.Writer, tag, name string, n *Node) {
	fmt.Fprintf(w, "%s %s %d %d", tag, name, n.Size, n.ModTime.Unix())
	if f := n.Flags &^ FlagReadError; f != 0 {
		fmt.Fprintf(w, " %d", f)
	}
	w.WriteByte('\n')
}

func kindTag(k Kind) string {
	switch k {
	case KindSymlink:
		return "L"
	case KindSpecial:
		return "S"
	default:
		return "F"
	}
}

// ReadCacheFile replaces the tree with the contents of a cache file written
// by WriteCacheFile.
func (t *Tree) ReadCacheFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer zr.Close()
	return t.ReadCache(zr)
}

// ReadCache replaces the tree with the cache read from r and marks it
// finished.
func (t *Tree) ReadCache(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != cacheHeader {
		return fmt.Errorf("not a dirstat cache file")
	}

	t.Clear()
	t.BeginRead()
	var cur Handle
	line := 1
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			t.FinishRead(true)
			return fmt.Errorf("cache line %d: malformed", line)
		}
		name, err := url.PathUnescape(fields[1])
		if err != nil {
			t.FinishRead(true)
			return fmt.Errorf("cache line %d: %w", line, err)
		}
		n, err := parseNode(fields)
		if err != nil {
			t.FinishRead(true)
			return fmt.Errorf("cache line %d: %w", line, err)
		}

		if fields[0] == "D" {
			n.Kind = KindDir
			n.Mode |= fs.ModeDir
			if t.root.IsZero() {
				root := t.Reset(name)
				rn := t.node(root)
				rn.Size, rn.TotalSize, rn.ModTime, rn.Flags = n.Size, n.Size, n.ModTime, n.Flags
				t.state = StateReading
				cur = root
				continue
			}
			parent, ok := t.dirs[filepath.Dir(name)]
			if !ok {
				t.FinishRead(true)
				return fmt.Errorf("cache line %d: %w: %s", line, ErrNotInTree, name)
			}
			n.Name = filepath.Base(name)
			cur = t.AddChild(parent, n)
			continue
		}
		if cur.IsZero() {
			t.FinishRead(true)
			return fmt.Errorf("cache line %d: entry before first directory", line)
		}
		n.Name = name
		t.AddChild(cur, n)
	}
	if err := sc.Err(); err != nil {
		t.FinishRead(true)
		return err
	}
	if t.root.IsZero() {
		t.FinishRead(true)
		return fmt.Errorf("cache file contains no directories")
	}
	t.notifyChanged(t.root)
	t.FinishRead(false)
	return nil
}

func parseNode(fields []string) (Node, error) {
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Node{}, fmt.Errorf("size: %w", err)
	}
	mtime, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Node{}, fmt.Errorf("mtime: %w", err)
	}
	n := Node{Size: size, ModTime: time.Unix(mtime, 0)}
	switch fields[0] {
	case "D", "F":
	case "L":
		n.Kind = KindSymlink
		n.Mode = fs.ModeSymlink
	case "S":
		n.Kind = KindSpecial
		n.Mode = fs.ModeDevice
	default:
		return Node{}, fmt.Errorf("unknown entry type %q", fields[0])
	}
	if len(fields) > 4 {
		f, err := strconv.ParseUint(fields[4], 10, 8)
		if err != nil {
			return Node{}, fmt.Errorf("flags: %w", err)
		}
		n.Flags = Flags(f)
	}
	return n, nil
}
