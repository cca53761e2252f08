// Package feedback composes the user feedback report offered by the
// reminder.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dirstat/internal/activity"
)

// Feature is one program feature the user can say they use.
type Feature struct {
	ID    string
	Label string
}

// Features returns the list shown in the feedback form.
func Features() []Feature {
	return []Feature{
		{"tree", "Directory tree with sizes and percentages"},
		{"treemap", "Treemap"},
		{"treemap-zoom", "Zooming in and out of the treemap"},
		{"cleanups", "Cleanup actions"},
		{"custom-cleanups", "User-defined cleanup actions"},
		{"trash", "Move to trash"},
		{"cache", "Reading and writing cache files"},
		{"excludes", "Exclude patterns"},
		{"mount-points", "Not crossing filesystem boundaries"},
		{"watch", "Automatic refresh on filesystem changes"},
		{"copy-path", "Copying paths to the clipboard"},
	}
}

var (
	ErrNoRating       = errors.New("please rate the program")
	ErrUnknownFeature = errors.New("unknown feature")
)

// Report is a completed feedback form.
type Report struct {
	Version  string
	Rating   int      // 1 (bad) to 5 (great)
	Used     []string // feature IDs
	Wished   string
	Comment  string
	Counters activity.Counters
	Created  time.Time
}

// Validate checks that the report can be sent.
func (r Report) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrNoRating
	}
	known := make(map[string]bool)
	for _, f := range Features() {
		known[f.ID] = true
	}
	for _, id := range r.Used {
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrUnknownFeature, id)
		}
	}
	return nil
}

// Text renders the report as plain text.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dirstat %s feedback\n", r.Version)
	fmt.Fprintf(&b, "date: %s\n", r.Created.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "rating: %d/5\n", r.Rating)

	labels := make(map[string]string)
	for _, f := range Features() {
		labels[f.ID] = f.Label
	}
	b.WriteString("\nused features:\n")
	for _, id := range r.Used {
		fmt.Fprintf(&b, "  - %s\n", labels[id])
	}
	if r.Wished != "" {
		fmt.Fprintf(&b, "\nmissing:\n  %s\n", r.Wished)
	}
	if r.Comment != "" {
		fmt.Fprintf(&b, "\ncomment:\n  %s\n", r.Comment)
	}

	b.WriteString("\nusage:\n")
	kinds := make([]string, 0, len(r.Counters.Counts))
	for k := range r.Counters.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %s: %d\n", k, r.Counters.Counts[activity.Kind(k)])
	}
	return b.String()
}

// Sender delivers a report.
type Sender interface {
	Send(ctx context.Context, r Report) error
}

// FileSender stores reports as text files in Dir for the user to pass on.
type FileSender struct {
	Dir string
}

func (s FileSender) Send(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	created := r.Created
	if created.IsZero() {
		created = time.Now()
	}
	name := fmt.Sprintf("feedback-%s.txt", created.UTC().Format("20060102-150405"))
	return os.WriteFile(filepath.Join(s.Dir, name), []byte(r.Text()), 0o644)
}
