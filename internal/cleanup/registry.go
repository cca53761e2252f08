package cleanup

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"dirstat/internal/config"
	"dirstat/internal/logging"
	"dirstat/internal/metrics"
)

// Registry is the ordered set of cleanup actions of one window.
type Registry struct {
	actions []Action
	exec    Executor
	env     Env
	log     *zap.Logger
}

type Option func(*Registry)

func WithExecutor(e Executor) Option { return func(r *Registry) { r.exec = e } }
func WithDryRun(dry bool) Option     { return func(r *Registry) { r.env.DryRun = dry } }
func WithTrashDir(dir string) Option { return func(r *Registry) { r.env.TrashDir = dir } }

// NewRegistry returns a registry holding the built-in actions.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		exec: ShellExecutor{},
		log:  logging.Named("cleanup"),
	}
	for _, o := range opts {
		o(r)
	}
	r.ResetToDefaults()
	return r
}

// Register appends a. An action with the same ID is replaced in place so the
// menu order stays stable.
func (r *Registry) Register(a Action) error {
	if a.ID == "" {
		return errors.New("cleanup action needs an id")
	}
	for i := range r.actions {
		if r.actions[i].ID == a.ID {
			r.actions[i] = a
			return nil
		}
	}
	r.actions = append(r.actions, a)
	return nil
}

// ResetToDefaults discards every customization.
func (r *Registry) ResetToDefaults() {
	r.actions = Defaults()
}

// Actions returns a copy of the actions in menu order.
func (r *Registry) Actions() []Action {
	return append([]Action(nil), r.actions...)
}

func (r *Registry) Lookup(id string) (Action, bool) {
	for _, a := range r.actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// SetEnabled toggles an action; it reports false for unknown IDs.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	for i := range r.actions {
		if r.actions[i].ID == id {
			r.actions[i].Enabled = enabled
			return true
		}
	}
	return false
}

// DryRun reports whether actions are simulated.
func (r *Registry) DryRun() bool { return r.env.DryRun }

// Applicable reports whether a can run on sel. An empty selection never
// qualifies, and destructive actions never apply to the root of the tree.
func (r *Registry) Applicable(a Action, sel []Target) bool {
	if len(sel) == 0 || !a.Enabled {
		return false
	}
	if a.Caps.Has(RequiresSingle) && len(sel) > 1 {
		return false
	}
	for _, t := range sel {
		if a.Caps.Has(RequiresDir) && !t.IsDir {
			return false
		}
		if a.Caps.Has(RequiresFile) && t.IsDir {
			return false
		}
		if a.Caps.Has(RequiresWritable) && !t.Writable {
			return false
		}
		if a.Destructive && t.Root {
			return false
		}
	}
	return true
}

// ApplicableActions returns the actions that can run on sel, in menu order.
func (r *Registry) ApplicableActions(sel []Target) []Action {
	var out []Action
	for _, a := range r.actions {
		if r.Applicable(a, sel) {
			out = append(out, a)
		}
	}
	return out
}

// Result lists the targets an invocation completed.
type Result struct {
	Action Action
	Done   []Target
}

// Invoke runs the action id on each target in order. It stops at the first
// failure and returns an *ExecutionError naming that target; targets before
// it stay done and are listed in the result.
func (r *Registry) Invoke(ctx context.Context, id string, sel []Target) (Result, error) {
	a, ok := r.Lookup(id)
	if !ok {
		return Result{}, ErrUnknownAction
	}
	return r.InvokeAction(ctx, a, sel)
}

// InvokeAction is Invoke for an action that need not be registered, such as
// an ad-hoc "open with" command.
func (r *Registry) InvokeAction(ctx context.Context, a Action, sel []Target) (Result, error) {
	res := Result{Action: a}
	if !r.Applicable(a, sel) {
		return res, ErrInvalidSelection
	}
	for _, t := range sel {
		err := r.run(ctx, a, t)
		metrics.RecordCleanup(a.ID, err)
		if err != nil {
			r.log.Warn("cleanup failed",
				zap.String("action", a.ID),
				zap.String("path", t.Path),
				zap.Error(err))
			return res, &ExecutionError{Action: a.ID, Target: t, Cause: err}
		}
		r.log.Info("cleanup done",
			zap.String("action", a.ID),
			zap.String("path", t.Path),
			zap.Bool("dry_run", r.env.DryRun))
		res.Done = append(res.Done, t)
	}
	return res, nil
}

func (r *Registry) run(ctx context.Context, a Action, t Target) error {
	if a.Run != nil {
		return a.Run(ctx, t, r.env)
	}
	if r.env.DryRun {
		return nil
	}
	return r.exec.Execute(ctx, a, t)
}

// OpenWith builds an ad-hoc action running command with the selected path
// appended.
func OpenWith(command string) Action {
	return Action{
		ID:      "open-with",
		Label:   "Open with " + command,
		Caps:    RequiresSingle,
		Command: command + " %p",
		Enabled: true,
	}
}

const (
	groupCleanups = "Cleanups"
	groupPrefix   = "Cleanup/"
)

// Save writes the current action set to s, replacing what was there.
func (r *Registry) Save(s *config.Store) {
	for _, g := range s.Groups(groupPrefix) {
		s.DeleteGroup(g)
	}
	ids := make([]string, 0, len(r.actions))
	for _, a := range r.actions {
		ids = append(ids, a.ID)
		g := groupPrefix + a.ID
		s.Set(g, "label", a.Label)
		s.Set(g, "command", a.Command)
		s.Set(g, "caps", a.Caps.String())
		s.SetBool(g, "destructive", a.Destructive)
		s.SetBool(g, "refresh", a.Refresh)
		s.SetBool(g, "confirm", a.Confirm)
		s.SetBool(g, "enabled", a.Enabled)
	}
	s.SetList(groupCleanups, "order", ids)
}

// Load replaces the action set with the one saved in s. Stores without saved
// cleanups leave the registry untouched. Saved entries matching a built-in ID
// keep the built-in implementation.
func (r *Registry) Load(s *config.Store) {
	if !s.Has(groupCleanups, "order") {
		return
	}
	builtins := make(map[string]Action)
	for _, a := range Defaults() {
		builtins[a.ID] = a
	}
	var actions []Action
	for _, id := range s.GetList(groupCleanups, "order") {
		g := groupPrefix + id
		a, isBuiltin := builtins[id]
		a.ID = id
		a.Label = s.Get(g, "label", a.Label)
		a.Command = s.Get(g, "command", a.Command)
		if caps, err := ParseCapabilities(s.Get(g, "caps", a.Caps.String())); err == nil {
			a.Caps = caps
		} else {
			r.log.Warn("ignoring cleanup capabilities", zap.String("action", id), zap.Error(err))
		}
		a.Destructive = s.GetBool(g, "destructive", a.Destructive)
		a.Refresh = s.GetBool(g, "refresh", a.Refresh)
		a.Confirm = s.GetBool(g, "confirm", a.Confirm)
		a.Enabled = s.GetBool(g, "enabled", true)
		if !isBuiltin && a.Command == "" {
			r.log.Warn("skipping cleanup without command", zap.String("action", id))
			continue
		}
		actions = append(actions, a)
	}
	r.actions = actions
}
