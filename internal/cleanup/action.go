// Package cleanup holds the user-configurable cleanup actions that can be
// run on selected filesystem entries.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Capability is the set of preconditions an action places on a selection.
type Capability uint8

const (
	RequiresSingle Capability = 1 << iota
	RequiresDir
	RequiresFile
	RequiresWritable
)

var capNames = []struct {
	c    Capability
	name string
}{
	{RequiresSingle, "single"},
	{RequiresDir, "dir"},
	{RequiresFile, "file"},
	{RequiresWritable, "writable"},
}

func (c Capability) Has(x Capability) bool { return c&x == x }

func (c Capability) String() string {
	var parts []string
	for _, cn := range capNames {
		if c.Has(cn.c) {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseCapabilities parses the comma separated form produced by String.
func ParseCapabilities(s string) (Capability, error) {
	var c Capability
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		found := false
		for _, cn := range capNames {
			if cn.name == p {
				c |= cn.c
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown capability %q", p)
		}
	}
	return c, nil
}

// Target is one selected filesystem entry as seen by a cleanup.
type Target struct {
	Path     string
	Name     string
	IsDir    bool
	Writable bool // the entry can be removed or modified
	Root     bool // the top of the tree being shown
}

// TargetFor builds a Target for path. Writable is true when the current
// user may write to the entry's parent directory.
func TargetFor(path string, isDir bool) Target {
	return Target{
		Path:     path,
		Name:     filepath.Base(path),
		IsDir:    isDir,
		Writable: dirWritable(filepath.Dir(path)),
	}
}

// WorkDir is the directory commands run in: the entry itself for
// directories, its parent otherwise.
func (t Target) WorkDir() string {
	if t.IsDir {
		return t.Path
	}
	return filepath.Dir(t.Path)
}

// Env is passed to built-in actions.
type Env struct {
	DryRun   bool
	TrashDir string
}

// RunFunc implements a built-in action.
type RunFunc func(ctx context.Context, t Target, env Env) error

// Action is one cleanup. Actions with a Run function are built-ins; the
// others execute Command through the registry's Executor.
type Action struct {
	ID          string
	Label       string
	Caps        Capability
	Command     string
	Destructive bool // the entries no longer exist afterwards
	Refresh     bool // the entries changed and must be read again
	Confirm     bool
	Enabled     bool
	Run         RunFunc
}

func (a Action) Builtin() bool { return a.Run != nil }

var (
	ErrInvalidSelection = errors.New("cleanup not applicable to the selection")
	ErrUnknownAction    = errors.New("unknown cleanup action")
)

// ExecutionError reports the entry a cleanup failed on.
type ExecutionError struct {
	Action string
	Target Target
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("cleanup %s failed on %s: %v", e.Action, e.Target.Path, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Expand substitutes %p (full path), %n (name) and %d (containing
// directory) in a command template. Substituted values are shell quoted.
func Expand(template string, t Target) string {
	r := strings.NewReplacer(
		"%p", shellQuote(t.Path),
		"%n", shellQuote(t.Name),
		"%d", shellQuote(filepath.Dir(t.Path)),
		"%%", "%",
	)
	return r.Replace(template)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
