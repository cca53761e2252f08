// Package deleter removes filesystem entries for the destructive cleanups.
package deleter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Remove deletes path and everything below it. In dry-run mode nothing is
// touched.
func Remove(ctx context.Context, path string, dryRun bool) error {
	if err := checkTarget(ctx, path); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return os.RemoveAll(path)
}

// TrashDir returns the freedesktop.org trash directory of the current user.
func TrashDir() string {
	if x := os.Getenv("XDG_DATA_HOME"); x != "" {
		return filepath.Join(x, "Trash")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "Trash")
	}
	return ""
}

// MoveToTrash moves path into the trash directory trash (see TrashDir),
// writing the matching .trashinfo record so desktop tools can restore it.
// It returns the path the entry was moved to. Entries on another filesystem
// than the trash cannot be renamed there and fail.
func MoveToTrash(ctx context.Context, path, trash string, dryRun bool) (string, error) {
	if err := checkTarget(ctx, path); err != nil {
		return "", err
	}
	if trash == "" {
		return "", errors.New("no trash directory")
	}
	files := filepath.Join(trash, "files")
	info := filepath.Join(trash, "info")
	dest := nextAvailable(filepath.Join(files, filepath.Base(path)))
	if dryRun {
		return dest, nil
	}
	if err := os.MkdirAll(files, 0o700); err != nil {
		return "", err
	}
	if err := os.MkdirAll(info, 0o700); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	record := filepath.Join(info, filepath.Base(dest)+".trashinfo")
	body := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		escapeTrashPath(abs), time.Now().Format("2006-01-02T15:04:05"))
	if err := os.WriteFile(record, []byte(body), 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(abs, dest); err != nil {
		_ = os.Remove(record)
		return "", fmt.Errorf("failed to move to trash: %w", err)
	}
	return dest, nil
}

func escapeTrashPath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func checkTarget(ctx context.Context, path string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	// Lstat so broken symlinks can still be removed.
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	return nil
}

func nextAvailable(p string) string {
	if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
		return p
	}
	dir := filepath.Dir(p)
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	for i := 1; i < 10000; i++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s-%d%s", name, i, ext))
		if _, err := os.Lstat(cand); errors.Is(err, fs.ErrNotExist) {
			return cand
		}
	}
	return p
}
