package cleanup

import (
	"context"

	"dirstat/internal/compressor"
	"dirstat/internal/deleter"
)

// Defaults returns the built-in action set in menu order.
func Defaults() []Action {
	return []Action{
		{
			ID:      "open-file-manager",
			Label:   "Open in File Manager",
			Caps:    RequiresSingle,
			Command: "xdg-open %p",
			Enabled: true,
		},
		{
			ID:      "open-terminal",
			Label:   "Open in Terminal",
			Caps:    RequiresSingle | RequiresDir,
			Command: "x-terminal-emulator",
			Enabled: true,
		},
		{
			ID:      "make-clean",
			Label:   "make clean",
			Caps:    RequiresDir | RequiresWritable,
			Command: "make clean",
			Refresh: true,
			Enabled: true,
		},
		{
			ID:      "compress",
			Label:   "Compress",
			Caps:    RequiresDir | RequiresWritable,
			Refresh: true,
			Enabled: true,
			Run:     runCompress,
		},
		{
			ID:          "trash",
			Label:       "Move to Trash",
			Caps:        RequiresWritable,
			Destructive: true,
			Enabled:     true,
			Run:         runTrash,
		},
		{
			ID:          "delete",
			Label:       "Delete (no way to undo!)",
			Caps:        RequiresWritable,
			Destructive: true,
			Confirm:     true,
			Enabled:     true,
			Run:         runDelete,
		},
	}
}

func runCompress(ctx context.Context, t Target, env Env) error {
	_, err := compressor.Compress(ctx, t.Path, compressor.Options{DryRun: env.DryRun})
	return err
}

func runTrash(ctx context.Context, t Target, env Env) error {
	trash := env.TrashDir
	if trash == "" {
		trash = deleter.TrashDir()
	}
	_, err := deleter.MoveToTrash(ctx, t.Path, trash, env.DryRun)
	return err
}

func runDelete(ctx context.Context, t Target, env Env) error {
	return deleter.Remove(ctx, t.Path, env.DryRun)
}
