// Package compressor archives directories for the compress cleanup.
package compressor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

type Options struct {
	OutDir string // defaults to the parent of the source
	Level  int    // flate level; 0 means flate.DefaultCompression
	DryRun bool
}

// Result describes one archive.
type Result struct {
	Archive string
	Files   int
	Input   int64 // bytes read from regular files
	Size    int64 // archive size
}

// Compress writes a .zip archive of the directory src next to it (or in
// opts.OutDir). Entries are stored below a top-level folder named after src.
// An existing file is never overwritten; a numbered name is picked instead.
func Compress(ctx context.Context, src string, opts Options) (Result, error) {
	inf, err := os.Stat(src)
	if err != nil {
		return Result{}, err
	}
	if !inf.IsDir() {
		return Result{}, fmt.Errorf("compress %s: not a directory", src)
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = filepath.Dir(src)
	}
	res := Result{Archive: uniqueName(filepath.Join(outDir, filepath.Base(src)+".zip"))}
	if opts.DryRun {
		return res, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, err
	}

	// the archive only appears under its final name once complete
	tmp, err := os.CreateTemp(outDir, ".dirstat-*.zip.part")
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(tmp.Name())

	level := opts.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	a := &archiver{zw: zip.NewWriter(tmp), prefix: filepath.Base(src)}
	a.zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	werr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return a.add(src, path, d)
	})
	cerr := a.zw.Close()
	if werr == nil {
		werr = cerr
	}
	if err := tmp.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		return Result{}, fmt.Errorf("compress %s: %w", src, werr)
	}

	if err := os.Rename(tmp.Name(), res.Archive); err != nil {
		return Result{}, err
	}
	st, err := os.Stat(res.Archive)
	if err != nil {
		return Result{}, err
	}
	res.Files, res.Input, res.Size = a.files, a.input, st.Size()
	return res, nil
}

type archiver struct {
	zw     *zip.Writer
	prefix string
	files  int
	input  int64
}

func (a *archiver) add(root, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return err
	}
	// symlinks and devices are left out; only their targets' owners know them
	if !d.IsDir() && !d.Type().IsRegular() {
		return nil
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(filepath.Join(a.prefix, rel))
	if d.IsDir() {
		hdr.Name += "/"
		_, err = a.zw.CreateHeader(hdr)
		return err
	}
	hdr.Method = zip.Deflate

	w, err := a.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	a.files++
	a.input += n
	return err
}

// uniqueName returns p, or p with a numeric suffix before the extension if p
// already exists.
func uniqueName(p string) string {
	if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
		return p
	}
	ext := filepath.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Lstat(cand); errors.Is(err, fs.ErrNotExist) {
			return cand
		}
	}
}
