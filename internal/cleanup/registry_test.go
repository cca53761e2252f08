package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dirstat/internal/config"
)

// fakeExecutor records every target it is asked to run on and fails on the
// paths listed in fail.
type fakeExecutor struct {
	ran  []string
	fail map[string]error
}

func (f *fakeExecutor) Execute(_ context.Context, _ Action, t Target) error {
	f.ran = append(f.ran, t.Path)
	return f.fail[t.Path]
}

func dirTarget(p string) Target {
	return Target{Path: p, Name: filepath.Base(p), IsDir: true, Writable: true}
}

func fileTarget(p string) Target {
	return Target{Path: p, Name: filepath.Base(p), Writable: true}
}

func TestApplicable_EmptySelectionNeverApplies(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Action{ID: "custom", Label: "Custom", Command: "true", Enabled: true})
	for _, a := range r.Actions() {
		if r.Applicable(a, nil) {
			t.Fatalf("action %s applicable to empty selection", a.ID)
		}
		if r.Applicable(a, []Target{}) {
			t.Fatalf("action %s applicable to empty slice", a.ID)
		}
	}
}

func TestApplicable_Capabilities(t *testing.T) {
	r := NewRegistry()
	dir := dirTarget("/x/d")
	file := fileTarget("/x/f")
	readonly := Target{Path: "/ro/f", Name: "f"}

	cases := []struct {
		name string
		caps Capability
		sel  []Target
		want bool
	}{
		{"none single", 0, []Target{file}, true},
		{"single two", RequiresSingle, []Target{file, dir}, false},
		{"dir on file", RequiresDir, []Target{file}, false},
		{"dir on dirs", RequiresDir, []Target{dir, dir}, true},
		{"file on dir", RequiresFile, []Target{dir}, false},
		{"writable mixed", RequiresWritable, []Target{file, readonly}, false},
		{"writable ok", RequiresWritable, []Target{file, dir}, true},
	}
	for _, tc := range cases {
		a := Action{ID: "a", Caps: tc.caps, Command: "true", Enabled: true}
		if got := r.Applicable(a, tc.sel); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}

	disabled := Action{ID: "off", Command: "true"}
	if r.Applicable(disabled, []Target{file}) {
		t.Fatalf("disabled action should not apply")
	}
}

func TestApplicable_DeleteVersusOpenWithOnDirectory(t *testing.T) {
	r := NewRegistry()
	r.actions = nil
	_ = r.Register(Action{ID: "delete", Caps: RequiresSingle, Enabled: true, Run: runDelete})
	_ = r.Register(Action{ID: "open-with", Caps: RequiresSingle | RequiresFile, Command: "cat %p", Enabled: true})

	sel := []Target{dirTarget("/tmp/some-dir")}
	del, _ := r.Lookup("delete")
	ow, _ := r.Lookup("open-with")
	if !r.Applicable(del, sel) {
		t.Fatalf("delete should apply to one directory")
	}
	if r.Applicable(ow, sel) {
		t.Fatalf("open-with should not apply to a directory")
	}
}

func TestRegister_DuplicateReplacesInPlace(t *testing.T) {
	r := NewRegistry()
	before := r.Actions()
	if err := r.Register(Action{ID: "make-clean", Label: "Distclean", Command: "make distclean", Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	after := r.Actions()
	if len(after) != len(before) {
		t.Fatalf("length changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Fatalf("order changed at %d: %s vs %s", i, before[i].ID, after[i].ID)
		}
	}
	a, _ := r.Lookup("make-clean")
	if a.Label != "Distclean" {
		t.Fatalf("replacement not stored: %+v", a)
	}
	if err := r.Register(Action{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestInvoke_FailFast(t *testing.T) {
	fx := &fakeExecutor{fail: map[string]error{"/w/two": errors.New("boom")}}
	r := NewRegistry(WithExecutor(fx))
	_ = r.Register(Action{ID: "touch", Command: "touch %p", Enabled: true})

	sel := []Target{fileTarget("/w/one"), fileTarget("/w/two"), fileTarget("/w/three")}
	res, err := r.Invoke(context.Background(), "touch", sel)

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if ee.Target.Path != "/w/two" {
		t.Fatalf("error names %s, want /w/two", ee.Target.Path)
	}
	if got := strings.Join(fx.ran, " "); got != "/w/one /w/two" {
		t.Fatalf("attempted %q", got)
	}
	if len(res.Done) != 1 || res.Done[0].Path != "/w/one" {
		t.Fatalf("done = %+v", res.Done)
	}
	if !strings.Contains(err.Error(), "/w/two") {
		t.Fatalf("message does not name the entry: %v", err)
	}
}

func TestInvoke_InvalidSelectionAndUnknown(t *testing.T) {
	fx := &fakeExecutor{}
	r := NewRegistry(WithExecutor(fx))
	if _, err := r.Invoke(context.Background(), "open-file-manager", nil); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	sel := []Target{fileTarget("/a"), fileTarget("/b")}
	if _, err := r.Invoke(context.Background(), "open-file-manager", sel); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection for two entries, got %v", err)
	}
	if _, err := r.Invoke(context.Background(), "nope", sel); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if len(fx.ran) != 0 {
		t.Fatalf("nothing should run, ran %v", fx.ran)
	}
}

func TestInvoke_DryRunSkipsCommands(t *testing.T) {
	fx := &fakeExecutor{fail: map[string]error{"/a": errors.New("should not run")}}
	r := NewRegistry(WithExecutor(fx), WithDryRun(true))
	res, err := r.Invoke(context.Background(), "open-file-manager", []Target{fileTarget("/a")})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(fx.ran) != 0 || len(res.Done) != 1 {
		t.Fatalf("ran=%v done=%v", fx.ran, res.Done)
	}
}

func TestInvoke_BuiltinDelete(t *testing.T) {
	root := t.TempDir()
	victim := filepath.Join(root, "victim")
	if err := os.MkdirAll(filepath.Join(victim, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r := NewRegistry()
	res, err := r.Invoke(context.Background(), "delete", []Target{TargetFor(victim, true)})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.Action.Destructive || len(res.Done) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := os.Stat(victim); !os.IsNotExist(err) {
		t.Fatalf("victim still exists: %v", err)
	}
}

func TestShellExecutor_RunsInWorkDir(t *testing.T) {
	root := t.TempDir()
	target := Target{Path: filepath.Join(root, "it's here"), Name: "it's here"}
	a := Action{ID: "touch", Command: "touch %n.done", Enabled: true}
	if err := (ShellExecutor{}).Execute(context.Background(), a, target); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "it's here.done")); err != nil {
		t.Fatalf("expected file created in parent dir: %v", err)
	}

	fail := Action{ID: "fail", Command: "echo nope >&2; exit 3", Enabled: true}
	err := (ShellExecutor{}).Execute(context.Background(), fail, target)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected error with output, got %v", err)
	}
}

func TestExpand(t *testing.T) {
	tg := Target{Path: "/a b/c'd", Name: "c'd"}
	got := Expand("ls %p %n %d 100%%", tg)
	want := `ls '/a b/c'\''d' 'c'\''d' '/a b' 100%`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCapabilities_ParseString(t *testing.T) {
	c := RequiresSingle | RequiresWritable
	got, err := ParseCapabilities(c.String())
	if err != nil || got != c {
		t.Fatalf("parse %q: %v %v", c.String(), got, err)
	}
	if _, err := ParseCapabilities("single,bogus"); err == nil {
		t.Fatalf("expected error for unknown capability")
	}
}

// snapshot evaluates every action against a fixed set of selections.
func snapshot(r *Registry) map[string][]bool {
	sels := [][]Target{
		{dirTarget("/p/d")},
		{fileTarget("/p/f")},
		{fileTarget("/p/f"), dirTarget("/p/d")},
		{{Path: "/ro/x", Name: "x"}},
	}
	out := make(map[string][]bool)
	for _, a := range r.Actions() {
		for _, s := range sels {
			out[a.ID] = append(out[a.ID], r.Applicable(a, s))
		}
	}
	return out
}

func TestResetThenReregister_Equivalent(t *testing.T) {
	custom := []Action{
		{ID: "du", Label: "Disk usage", Caps: RequiresDir, Command: "du -sh %p", Enabled: true},
		{ID: "trash", Label: "Trash it", Caps: RequiresWritable | RequiresSingle, Enabled: true, Run: runTrash},
		{ID: "view", Label: "View", Caps: RequiresFile | RequiresSingle, Command: "less %p", Enabled: true},
	}
	r := NewRegistry()
	for _, a := range custom {
		_ = r.Register(a)
	}
	before := snapshot(r)

	r.ResetToDefaults()
	if _, ok := r.Lookup("du"); ok {
		t.Fatalf("custom action survived reset")
	}
	for _, a := range custom {
		_ = r.Register(a)
	}
	after := snapshot(r)

	if len(before) != len(after) {
		t.Fatalf("action count differs: %d vs %d", len(before), len(after))
	}
	for id, b := range before {
		a := after[id]
		for i := range b {
			if a[i] != b[i] {
				t.Fatalf("%s selection %d: %v before, %v after", id, i, b[i], a[i])
			}
		}
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := config.NewMemory()
	r := NewRegistry()
	_ = r.Register(Action{ID: "du", Label: "Disk usage", Caps: RequiresDir, Command: "du -sh %p", Enabled: true})
	r.SetEnabled("make-clean", false)
	r.Save(s)

	loaded := NewRegistry()
	loaded.Load(s)
	if len(loaded.Actions()) != len(r.Actions()) {
		t.Fatalf("got %d actions want %d", len(loaded.Actions()), len(r.Actions()))
	}
	du, ok := loaded.Lookup("du")
	if !ok || du.Command != "du -sh %p" || du.Caps != RequiresDir {
		t.Fatalf("custom action not restored: %+v", du)
	}
	mc, _ := loaded.Lookup("make-clean")
	if mc.Enabled {
		t.Fatalf("disabled state lost")
	}
	del, _ := loaded.Lookup("delete")
	if !del.Builtin() || !del.Confirm {
		t.Fatalf("builtin delete lost its implementation: %+v", del)
	}
}

func TestOpenWith(t *testing.T) {
	a := OpenWith("gimp")
	if a.Command != "gimp %p" || !a.Caps.Has(RequiresSingle) {
		t.Fatalf("unexpected action %+v", a)
	}
	fx := &fakeExecutor{}
	r := NewRegistry(WithExecutor(fx))
	if _, err := r.InvokeAction(context.Background(), a, []Target{fileTarget("/img.png")}); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(fx.ran) != 1 {
		t.Fatalf("ran %v", fx.ran)
	}
}

func TestTargetFor_ReadOnlyParent(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root may write anywhere")
	}
	parent := filepath.Join(t.TempDir(), "locked")
	if err := os.Mkdir(parent, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f := filepath.Join(parent, "f")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !TargetFor(f, false).Writable {
		t.Fatalf("entry in own directory not writable")
	}

	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(parent, 0o755) })

	tg := TargetFor(f, false)
	if tg.Writable {
		t.Fatalf("entry in read-only directory reported writable")
	}
	r := NewRegistry()
	for _, id := range []string{"trash", "delete"} {
		a, _ := r.Lookup(id)
		if r.Applicable(a, []Target{tg}) {
			t.Fatalf("%s applicable below a read-only directory", id)
		}
	}
}

func TestApplicable_DestructiveNeverOnRoot(t *testing.T) {
	r := NewRegistry()
	root := dirTarget("/x")
	root.Root = true

	for _, a := range r.Actions() {
		ok := r.Applicable(a, []Target{root})
		if a.Destructive && ok {
			t.Fatalf("%s applicable to the tree root", a.ID)
		}
		if a.ID == "compress" && !ok {
			t.Fatalf("compress should still apply to the root")
		}
	}
	if _, err := r.Invoke(context.Background(), "delete", []Target{root}); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("delete on root: %v", err)
	}
}
