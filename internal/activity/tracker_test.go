package activity

import (
	"testing"
	"time"

	"dirstat/internal/config"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func thresholds() Thresholds {
	return Thresholds{
		Cooldown: 24 * time.Hour,
		Min:      map[Kind]int64{SessionStart: 3, ScanCompleted: 5},
	}
}

func newTracker() (*Tracker, *clock) {
	c := &clock{t: start}
	return NewTracker(thresholds(), WithClock(c.now)), c
}

func TestShouldRemind_Table(t *testing.T) {
	th := thresholds()
	cases := []struct {
		name string
		c    Counters
		now  time.Time
		want bool
	}{
		{
			name: "nothing happened",
			c:    Counters{},
			now:  start,
			want: false,
		},
		{
			name: "first reminder once sessions reach minimum",
			c:    Counters{Counts: map[Kind]int64{SessionStart: 3}},
			now:  start,
			want: true,
		},
		{
			name: "below every minimum",
			c:    Counters{Counts: map[Kind]int64{SessionStart: 2, ScanCompleted: 4}},
			now:  start,
			want: false,
		},
		{
			name: "inside cooldown",
			c: Counters{
				Counts:       map[Kind]int64{ScanCompleted: 50},
				LastReminder: start.Add(-time.Hour),
			},
			now:  start,
			want: false,
		},
		{
			name: "cooldown passed but no growth since reminder",
			c: Counters{
				Counts:       map[Kind]int64{ScanCompleted: 50},
				Baseline:     map[Kind]int64{ScanCompleted: 48},
				LastReminder: start.Add(-48 * time.Hour),
			},
			now:  start,
			want: false,
		},
		{
			name: "cooldown passed and scans grew",
			c: Counters{
				Counts:       map[Kind]int64{ScanCompleted: 50},
				Baseline:     map[Kind]int64{ScanCompleted: 45},
				LastReminder: start.Add(-48 * time.Hour),
			},
			now:  start,
			want: true,
		},
		{
			name: "sent",
			c: Counters{
				Counts:       map[Kind]int64{SessionStart: 100},
				FeedbackSent: true,
			},
			now:  start,
			want: false,
		},
		{
			name: "kind without threshold",
			c:    Counters{Counts: map[Kind]int64{TreemapUsed: 1000}},
			now:  start,
			want: false,
		},
	}
	for _, tc := range cases {
		if got := ShouldRemind(tc.c, th, tc.now); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestTracker_ReminderCycle(t *testing.T) {
	tr, clk := newTracker()
	for i := 0; i < 3; i++ {
		tr.RecordActivity(SessionStart)
	}
	if !tr.ShouldRemind() {
		t.Fatalf("expected reminder after 3 sessions")
	}
	tr.MarkReminded()
	if tr.FeedbackSent() {
		t.Fatalf("MarkReminded must not set the sent flag")
	}
	if tr.ShouldRemind() {
		t.Fatalf("reminded twice in a row")
	}

	clk.t = clk.t.Add(48 * time.Hour)
	if tr.ShouldRemind() {
		t.Fatalf("cooldown alone must not trigger a reminder")
	}
	for i := 0; i < 3; i++ {
		tr.RecordActivity(SessionStart)
	}
	if !tr.ShouldRemind() {
		t.Fatalf("expected reminder after new sessions and cooldown")
	}
}

func TestTracker_SentSilencesForever(t *testing.T) {
	tr, clk := newTracker()
	tr.MarkFeedbackSent()
	for i := 0; i < 100; i++ {
		tr.RecordActivity(SessionStart)
		tr.RecordActivity(ScanCompleted)
		clk.t = clk.t.Add(24 * time.Hour)
		if tr.ShouldRemind() {
			t.Fatalf("reminder after feedback was sent (iteration %d)", i)
		}
	}
}

func TestTracker_Reset(t *testing.T) {
	tr, _ := newTracker()
	tr.RecordActivity(CleanupInvoked)
	tr.MarkFeedbackSent()
	tr.Reset()
	if tr.Count(CleanupInvoked) != 0 || tr.FeedbackSent() {
		t.Fatalf("reset left state: %+v", tr.Counters())
	}
}

func TestTracker_CountersIsACopy(t *testing.T) {
	tr, _ := newTracker()
	tr.RecordActivity(ScanCompleted)
	c := tr.Counters()
	c.Counts[ScanCompleted] = 99
	if tr.Count(ScanCompleted) != 1 {
		t.Fatalf("caller mutated tracker state")
	}
}

func TestTracker_SaveLoad(t *testing.T) {
	s := config.NewMemory()
	tr, _ := newTracker()
	tr.RecordActivity(SessionStart)
	tr.RecordActivity(SessionStart)
	tr.RecordActivity(ScanCompleted)
	tr.MarkReminded()
	tr.RecordActivity(ScanCompleted)
	tr.Save(s)

	loaded, _ := newTracker()
	loaded.Load(s)
	got := loaded.Counters()
	if got.Counts[SessionStart] != 2 || got.Counts[ScanCompleted] != 2 {
		t.Fatalf("counts not restored: %+v", got.Counts)
	}
	if got.Since(ScanCompleted) != 1 {
		t.Fatalf("baseline not restored: %+v", got.Baseline)
	}
	if !got.LastReminder.Equal(start) {
		t.Fatalf("last reminder %v want %v", got.LastReminder, start)
	}
	if got.FeedbackSent {
		t.Fatalf("sent flag should be false")
	}
}

func TestThresholdsFrom(t *testing.T) {
	th := ThresholdsFrom(config.Default().Feedback)
	if th.Cooldown != 7*24*time.Hour || th.Min[ScanCompleted] != 20 {
		t.Fatalf("unexpected thresholds %+v", th)
	}
}
