package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStore_SaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dirstat.toml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open missing: %v", err)
	}
	s.Set("Cleanup/delete", "label", "Delete")
	s.SetBool("Cleanup/delete", "enabled", false)
	s.SetInt64("Feedback", "scans", 42)
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetTime("Feedback", "last_reminder", when)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := r.Get("Cleanup/delete", "label", ""); got != "Delete" {
		t.Fatalf("label = %q", got)
	}
	if r.GetBool("Cleanup/delete", "enabled", true) {
		t.Fatalf("enabled should be false")
	}
	if got := r.GetInt64("Feedback", "scans", 0); got != 42 {
		t.Fatalf("scans = %d", got)
	}
	if got := r.GetTime("Feedback", "last_reminder"); !got.Equal(when) {
		t.Fatalf("last_reminder = %v", got)
	}
	if groups := r.Groups("Cleanup/"); len(groups) != 1 || groups[0] != "Cleanup/delete" {
		t.Fatalf("groups = %v", groups)
	}
}

func TestStore_Defaults(t *testing.T) {
	s := NewMemory()
	if s.GetInt("x", "y", 7) != 7 {
		t.Fatalf("int default not used")
	}
	s.Set("x", "y", "not-a-number")
	if s.GetInt("x", "y", 7) != 7 {
		t.Fatalf("invalid int should fall back to default")
	}
	if s.GetList("x", "missing") != nil {
		t.Fatalf("missing list should be nil")
	}
	s.Set("x", "list", "a, ,b")
	if got := s.GetList("x", "list"); len(got) != 2 || got[1] != "b" {
		t.Fatalf("list = %v", got)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("memory save: %v", err)
	}
}

func TestConfig_RoundTripThroughStore(t *testing.T) {
	c := Default()
	c.Scan.Excludes = []string{"*.git", "node_modules"}
	c.Treemap.Height = 60
	c.Feedback.Cooldown = 48 * time.Hour
	c.DryRun = true

	s := NewMemory()
	c.Save(s)
	got := FromStore(s)
	if len(got.Scan.Excludes) != 2 || got.Scan.Excludes[0] != "*.git" {
		t.Fatalf("excludes = %v", got.Scan.Excludes)
	}
	if got.Treemap.Height != 60 {
		t.Fatalf("height = %d", got.Treemap.Height)
	}
	if got.Feedback.Cooldown != 48*time.Hour {
		t.Fatalf("cooldown = %v", got.Feedback.Cooldown)
	}
	if got.DryRun {
		t.Fatalf("dry-run must not be persisted")
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("DIRSTAT_LOG_LEVEL", "debug")
	t.Setenv("DIRSTAT_DRY_RUN", "true")
	c := Default()
	c.ApplyEnv()
	if c.Log.Level != "debug" || !c.DryRun {
		t.Fatalf("env not applied: %+v", c.Log)
	}
}
