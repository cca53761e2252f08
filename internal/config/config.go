package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config is the typed application configuration.
type Config struct {
	Scan     ScanConfig
	Treemap  TreemapConfig
	Feedback FeedbackConfig
	Log      LogConfig

	DryRun      bool
	MetricsAddr string
	Watch       bool
}

type ScanConfig struct {
	Concurrency      int
	MaxDepth         int // -1 unlimited
	FollowSymlinks   bool
	CrossFilesystems bool
	Excludes         []string // glob patterns matched against full path and base name
}

type TreemapConfig struct {
	ShowOnOpen  bool
	Height      int // percent of the body given to the treemap panel
	MaxDepth    int // nesting levels laid out below the anchor
	MinTileSize float64
}

// FeedbackConfig holds the reminder thresholds. A reminder needs the cooldown
// to have elapsed and at least one counter to have grown by its minimum since
// the previous reminder.
type FeedbackConfig struct {
	Cooldown    time.Duration
	MinSessions int64
	MinScans    int64
	MinCleanups int64
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			Concurrency: runtime.NumCPU(),
			MaxDepth:    -1,
		},
		Treemap: TreemapConfig{
			ShowOnOpen:  true,
			Height:      45,
			MaxDepth:    4,
			MinTileSize: 1,
		},
		Feedback: FeedbackConfig{
			Cooldown:    7 * 24 * time.Hour,
			MinSessions: 10,
			MinScans:    20,
			MinCleanups: 15,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Watch: true,
	}
}

const (
	groupScan     = "Scan"
	groupTreemap  = "Treemap"
	groupFeedback = "FeedbackThresholds"
	groupLog      = "Log"
	groupGeneral  = "General"
)

// FromStore overlays the values found in s onto the defaults.
func FromStore(s *Store) Config {
	c := Default()
	c.Scan.Concurrency = s.GetInt(groupScan, "concurrency", c.Scan.Concurrency)
	c.Scan.MaxDepth = s.GetInt(groupScan, "max_depth", c.Scan.MaxDepth)
	c.Scan.FollowSymlinks = s.GetBool(groupScan, "follow_symlinks", c.Scan.FollowSymlinks)
	c.Scan.CrossFilesystems = s.GetBool(groupScan, "cross_filesystems", c.Scan.CrossFilesystems)
	if ex := s.GetList(groupScan, "excludes"); ex != nil {
		c.Scan.Excludes = ex
	}

	c.Treemap.ShowOnOpen = s.GetBool(groupTreemap, "show_on_open", c.Treemap.ShowOnOpen)
	c.Treemap.Height = s.GetInt(groupTreemap, "height", c.Treemap.Height)
	c.Treemap.MaxDepth = s.GetInt(groupTreemap, "max_depth", c.Treemap.MaxDepth)
	c.Treemap.MinTileSize = s.GetFloat(groupTreemap, "min_tile_size", c.Treemap.MinTileSize)

	c.Feedback.Cooldown = s.GetDuration(groupFeedback, "cooldown", c.Feedback.Cooldown)
	c.Feedback.MinSessions = s.GetInt64(groupFeedback, "min_sessions", c.Feedback.MinSessions)
	c.Feedback.MinScans = s.GetInt64(groupFeedback, "min_scans", c.Feedback.MinScans)
	c.Feedback.MinCleanups = s.GetInt64(groupFeedback, "min_cleanups", c.Feedback.MinCleanups)

	c.Log.Level = s.Get(groupLog, "level", c.Log.Level)
	c.Log.Format = s.Get(groupLog, "format", c.Log.Format)
	c.Log.File = s.Get(groupLog, "file", c.Log.File)

	c.Watch = s.GetBool(groupGeneral, "watch", c.Watch)
	c.MetricsAddr = s.Get(groupGeneral, "metrics_addr", c.MetricsAddr)
	return c
}

// Save writes the persistent parts of c into s. DryRun is a per-run flag and
// is never persisted.
func (c Config) Save(s *Store) {
	s.SetInt(groupScan, "concurrency", c.Scan.Concurrency)
	s.SetInt(groupScan, "max_depth", c.Scan.MaxDepth)
	s.SetBool(groupScan, "follow_symlinks", c.Scan.FollowSymlinks)
	s.SetBool(groupScan, "cross_filesystems", c.Scan.CrossFilesystems)
	s.SetList(groupScan, "excludes", c.Scan.Excludes)

	s.SetBool(groupTreemap, "show_on_open", c.Treemap.ShowOnOpen)
	s.SetInt(groupTreemap, "height", c.Treemap.Height)
	s.SetInt(groupTreemap, "max_depth", c.Treemap.MaxDepth)
	s.SetFloat(groupTreemap, "min_tile_size", c.Treemap.MinTileSize)

	s.SetDuration(groupFeedback, "cooldown", c.Feedback.Cooldown)
	s.SetInt64(groupFeedback, "min_sessions", c.Feedback.MinSessions)
	s.SetInt64(groupFeedback, "min_scans", c.Feedback.MinScans)
	s.SetInt64(groupFeedback, "min_cleanups", c.Feedback.MinCleanups)

	s.Set(groupLog, "level", c.Log.Level)
	s.Set(groupLog, "format", c.Log.Format)
	s.Set(groupLog, "file", c.Log.File)

	s.SetBool(groupGeneral, "watch", c.Watch)
	s.Set(groupGeneral, "metrics_addr", c.MetricsAddr)
}

// ApplyEnv lets DIRSTAT_* environment variables override the logging and
// metrics settings.
func (c *Config) ApplyEnv() {
	c.Log.Level = envOr("DIRSTAT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("DIRSTAT_LOG_FORMAT", c.Log.Format)
	c.Log.File = envOr("DIRSTAT_LOG_FILE", c.Log.File)
	c.MetricsAddr = envOr("DIRSTAT_METRICS_ADDR", c.MetricsAddr)
	c.DryRun = envBool("DIRSTAT_DRY_RUN", c.DryRun)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
