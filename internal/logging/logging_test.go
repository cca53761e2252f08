package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirstat.log")
	if err := Init(Config{Level: "debug", Format: "json", OutputPath: path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	Named("test").Debug("treemap created", String("anchor", "/tmp"), Int("depth", 1))
	_ = Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "treemap created") {
		t.Fatalf("log entry missing: %s", data)
	}
}

func TestInit_NoOutputIsNop(t *testing.T) {
	if err := Init(Config{}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if L().Core().Enabled(-1) {
		t.Fatalf("nop logger should not enable any level")
	}
}
