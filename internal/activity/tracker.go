package activity

import (
	"time"

	"go.uber.org/zap"

	"dirstat/internal/config"
	"dirstat/internal/logging"
	"dirstat/internal/metrics"
)

const (
	groupFeedback = "Feedback"
	groupBaseline = "FeedbackBaseline"
)

// Tracker owns the Counters of one window.
type Tracker struct {
	c   Counters
	th  Thresholds
	now func() time.Time
	log *zap.Logger
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(th Thresholds, opts ...Option) *Tracker {
	t := &Tracker{
		th:  th,
		now: time.Now,
		log: logging.Named("activity"),
	}
	t.c = Counters{Counts: map[Kind]int64{}, Baseline: map[Kind]int64{}}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) RecordActivity(kind Kind) {
	t.c.Counts[kind]++
	metrics.RecordActivity(string(kind))
}

func (t *Tracker) Count(kind Kind) int64 { return t.c.Counts[kind] }

// Counters returns a copy of the current record.
func (t *Tracker) Counters() Counters { return t.c.clone() }

func (t *Tracker) Thresholds() Thresholds { return t.th }

func (t *Tracker) SetThresholds(th Thresholds) { t.th = th }

func (t *Tracker) FeedbackSent() bool { return t.c.FeedbackSent }

func (t *Tracker) ShouldRemind() bool {
	remind := ShouldRemind(t.c, t.th, t.now())
	t.log.Debug("feedback reminder check", zap.Bool("remind", remind))
	return remind
}

// MarkReminded records that a reminder was shown. The user may still
// decline, so the sent flag is left alone.
func (t *Tracker) MarkReminded() {
	t.c.LastReminder = t.now()
	for k, v := range t.c.Counts {
		t.c.Baseline[k] = v
	}
}

// MarkFeedbackSent disables all future reminders.
func (t *Tracker) MarkFeedbackSent() {
	t.c.FeedbackSent = true
	t.log.Info("feedback sent, reminders disabled")
}

// Reset clears every counter and the sent flag. It only runs on explicit
// user request.
func (t *Tracker) Reset() {
	t.c = Counters{Counts: map[Kind]int64{}, Baseline: map[Kind]int64{}}
	t.log.Info("activity counters reset")
}

// Save writes the counters to s.
func (t *Tracker) Save(s *config.Store) {
	s.DeleteGroup(groupFeedback)
	s.DeleteGroup(groupBaseline)
	for k, v := range t.c.Counts {
		s.SetInt64(groupFeedback, string(k), v)
	}
	for k, v := range t.c.Baseline {
		s.SetInt64(groupBaseline, string(k), v)
	}
	s.SetTime(groupFeedback, "last_reminder", t.c.LastReminder)
	s.SetBool(groupFeedback, "sent", t.c.FeedbackSent)
}

// Load replaces the counters with the ones saved in s. A store that never
// held counters leaves them untouched.
func (t *Tracker) Load(s *config.Store) {
	if !s.Has(groupFeedback, "sent") {
		return
	}
	c := Counters{Counts: map[Kind]int64{}, Baseline: map[Kind]int64{}}
	for _, k := range Kinds {
		if v := s.GetInt64(groupFeedback, string(k), 0); v > 0 {
			c.Counts[k] = v
		}
		if v := s.GetInt64(groupBaseline, string(k), 0); v > 0 {
			c.Baseline[k] = v
		}
	}
	c.LastReminder = s.GetTime(groupFeedback, "last_reminder")
	c.FeedbackSent = s.GetBool(groupFeedback, "sent", false)
	t.c = c
}
