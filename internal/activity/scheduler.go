// Package activity counts what the user does across sessions and decides
// when to ask for feedback.
package activity

import (
	"time"

	"dirstat/internal/config"
)

type Kind string

const (
	SessionStart   Kind = "session-start"
	ScanCompleted  Kind = "scan-completed"
	CleanupInvoked Kind = "cleanup-invoked"
	TreemapUsed    Kind = "treemap-used"
)

// Kinds lists the known activity kinds in display order.
var Kinds = []Kind{SessionStart, ScanCompleted, CleanupInvoked, TreemapUsed}

// Counters is the persisted usage record. Counts only grow; Baseline holds
// the counts at the time of the last reminder.
type Counters struct {
	Counts       map[Kind]int64
	Baseline     map[Kind]int64
	LastReminder time.Time
	FeedbackSent bool
}

func (c Counters) clone() Counters {
	out := c
	out.Counts = make(map[Kind]int64, len(c.Counts))
	for k, v := range c.Counts {
		out.Counts[k] = v
	}
	out.Baseline = make(map[Kind]int64, len(c.Baseline))
	for k, v := range c.Baseline {
		out.Baseline[k] = v
	}
	return out
}

// Since returns how much kind grew since the last reminder.
func (c Counters) Since(kind Kind) int64 {
	return c.Counts[kind] - c.Baseline[kind]
}

// Thresholds configure ShouldRemind. A kind with no or a non-positive
// minimum never triggers a reminder.
type Thresholds struct {
	Cooldown time.Duration
	Min      map[Kind]int64
}

func ThresholdsFrom(fc config.FeedbackConfig) Thresholds {
	return Thresholds{
		Cooldown: fc.Cooldown,
		Min: map[Kind]int64{
			SessionStart:   fc.MinSessions,
			ScanCompleted:  fc.MinScans,
			CleanupInvoked: fc.MinCleanups,
		},
	}
}

// ShouldRemind reports whether to prompt for feedback: never once feedback
// was sent, only after the cooldown since the last reminder has passed, and
// only when some counter grew by its minimum since then.
func ShouldRemind(c Counters, th Thresholds, now time.Time) bool {
	if c.FeedbackSent {
		return false
	}
	if !c.LastReminder.IsZero() && now.Sub(c.LastReminder) <= th.Cooldown {
		return false
	}
	for kind, min := range th.Min {
		if min > 0 && c.Since(kind) >= min {
			return true
		}
	}
	return false
}
