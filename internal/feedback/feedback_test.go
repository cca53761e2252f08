package feedback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dirstat/internal/activity"
)

func TestFeatures_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range Features() {
		if f.ID == "" || f.Label == "" {
			t.Fatalf("incomplete feature %+v", f)
		}
		if seen[f.ID] {
			t.Fatalf("duplicate feature %s", f.ID)
		}
		seen[f.ID] = true
	}
}

func TestValidate(t *testing.T) {
	if err := (Report{}).Validate(); !errors.Is(err, ErrNoRating) {
		t.Fatalf("expected ErrNoRating, got %v", err)
	}
	if err := (Report{Rating: 3, Used: []string{"bogus"}}).Validate(); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
	if err := (Report{Rating: 5, Used: []string{"treemap"}}).Validate(); err != nil {
		t.Fatalf("valid report rejected: %v", err)
	}
}

func TestFileSender_WritesReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := Report{
		Version: "1.0.0",
		Rating:  4,
		Used:    []string{"treemap", "cleanups"},
		Comment: "nice",
		Counters: activity.Counters{
			Counts: map[activity.Kind]int64{activity.ScanCompleted: 7},
		},
		Created: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
	if err := (FileSender{Dir: dir}).Send(context.Background(), r); err != nil {
		t.Fatalf("send: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "feedback-20240506-070809.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{"rating: 4/5", "Treemap", "Cleanup actions", "scan-completed: 7", "nice"} {
		if !strings.Contains(text, want) {
			t.Errorf("report lacks %q:\n%s", want, text)
		}
	}
}
