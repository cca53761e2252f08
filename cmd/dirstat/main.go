package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"

	"dirstat/internal/config"
	"dirstat/internal/dirtree"
	"dirstat/internal/logging"
	"dirstat/internal/metrics"
	"dirstat/internal/tui"
	"dirstat/internal/window"
	"dirstat/pkg/utils"
)

var version = "0.3.0"

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "dirstat",
		Repository: "dirstat",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("A new version is available: %s (you have %s)\n", res.Current, currentVer)
	} else if pflag.Lookup("check-update").Changed {
		fmt.Printf("You are using the latest version: %s\n", currentVer)
	}
}

type entryJSON struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Dir   bool   `json:"dir"`
	Size  int64  `json:"size"`
	Items int64  `json:"items"`
	Error string `json:"error,omitempty"`
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dirstat [options] [path]\n\n")
		fmt.Fprintf(os.Stderr, "dirstat shows where the disk space below a directory goes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
	}

	root := pflag.StringP("path", "p", ".", "Root path to scan")
	cfgPath := pflag.String("config", config.DefaultPath(), "Config file")
	dryRun := pflag.BoolP("dry-run", "d", false, "Do not run cleanups; pretend they succeed")
	excludes := pflag.StringSliceP("exclude", "x", nil, "Glob pattern to exclude (can repeat). Matches full path or basename.")
	followLinks := pflag.BoolP("follow-symlinks", "L", false, "Follow symlinked directories")
	crossFS := pflag.Bool("cross-fs", false, "Read directories on other filesystems")
	concurrency := pflag.IntP("concurrency", "c", 0, "Directories read in parallel (default: number of CPUs)")
	maxDepth := pflag.IntP("max-depth", "m", -1, "Max depth for directory walk (-1 for unlimited)")
	logLevel := pflag.String("log-level", "", "Log level: debug, info, warn, error")
	logFile := pflag.String("log-file", "", "Write logs to this file")
	logFormat := pflag.String("log-format", "", "Log format: json or console")
	metricsAddr := pflag.String("metrics-addr", "", "Serve prometheus metrics on this address")
	noTUI := pflag.Bool("no-tui", false, "Print a summary instead of starting the UI")
	jsonOut := pflag.BoolP("json", "j", false, "Print the summary as JSON (implies --no-tui)")
	readCache := pflag.String("read-cache", "", "Load the tree from a cache file instead of reading the disk")
	writeCache := pflag.String("write-cache", "", "Write the tree to a cache file after reading (with --no-tui)")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("check-update", "u", false, "Check for a newer version")
	pflag.Parse()

	if *versionFlag {
		fmt.Printf("dirstat %s\n", version)
		return
	}
	if *updateFlag {
		checkUpdate(version)
		return
	}
	if pflag.NArg() > 0 {
		*root = pflag.Arg(0)
	}

	absRoot, err := filepath.Abs(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve path: %v\n", err)
		os.Exit(2)
	}

	store, err := config.Open(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	cfg := config.FromStore(store)
	cfg.ApplyEnv()

	changed := func(name string) bool { return pflag.Lookup(name).Changed }
	if changed("dry-run") {
		cfg.DryRun = *dryRun
	}
	if changed("exclude") {
		cfg.Scan.Excludes = *excludes
	}
	if changed("follow-symlinks") {
		cfg.Scan.FollowSymlinks = *followLinks
	}
	if changed("cross-fs") {
		cfg.Scan.CrossFilesystems = *crossFS
	}
	if changed("concurrency") && *concurrency > 0 {
		cfg.Scan.Concurrency = *concurrency
	}
	if changed("max-depth") {
		cfg.Scan.MaxDepth = *maxDepth
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	tuiMode := !*noTUI && !*jsonOut
	if tuiMode && cfg.Log.File == "" {
		if err := os.MkdirAll(config.Dir(), 0o755); err == nil {
			cfg.Log.File = filepath.Join(config.Dir(), "dirstat.log")
		}
	}

	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: cfg.Log.File}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(2)
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logging.Error("metrics listener stopped", logging.Err(err))
			}
		}()
	}

	if tuiMode {
		err := tui.Run(absRoot, tui.Options{
			Config:    cfg,
			Store:     store,
			Version:   version,
			CachePath: *readCache,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	start := time.Now()
	cfg.Watch = false
	win := window.New(window.Options{Config: cfg, Version: version})
	defer win.CloseDir()

	var scanErr error
	if *readCache != "" {
		scanErr = win.ReadCache(*readCache)
		if scanErr != nil {
			fmt.Fprintf(os.Stderr, "failed to read cache: %v\n", scanErr)
			os.Exit(1)
		}
	} else {
		s, err := win.Open(absRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		if scanErr = win.Wait(s); scanErr != nil {
			fmt.Fprintf(os.Stderr, "scan completed with errors: %v\n", scanErr)
		}
	}

	if *writeCache != "" {
		if err := win.WriteCache(*writeCache); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write cache: %v\n", err)
			os.Exit(1)
		}
	}

	tr := win.Tree()
	top := tr.Root()
	results := make([]entryJSON, 0)
	for _, h := range tr.SortedChildren(top) {
		n, _ := tr.Get(h)
		e := entryJSON{Name: n.Name, Path: tr.Path(h), Dir: n.IsDir(), Size: n.TotalSize, Items: n.Items}
		if n.Flags&dirtree.FlagReadError != 0 {
			e.Error = "read error"
		}
		results = append(results, e)
	}
	totalSize := tr.TotalSize(top)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		payload := struct {
			Root      string      `json:"root"`
			TotalSize int64       `json:"totalSize"`
			Items     int         `json:"items"`
			Results   []entryJSON `json:"results"`
			Duration  string      `json:"duration"`
		}{Root: tr.RootPath(), TotalSize: totalSize, Items: tr.Count(), Results: results, Duration: time.Since(start).String()}
		if err := enc.Encode(payload); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write json: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("dirstat\nroot: %s\nitems: %d\n", tr.RootPath(), tr.Count())
		fmt.Println("----------------------------------------------")
		for _, r := range results {
			name := r.Name
			if r.Dir {
				name += "/"
			}
			line := fmt.Sprintf("%9s  %6s  %s", utils.HumanizeBytes(r.Size), utils.Percent(r.Size, totalSize), name)
			if r.Error != "" {
				line += "\t(ERROR: " + r.Error + ")"
			}
			fmt.Println(line)
		}
		fmt.Println("----------------------------------------------")
		fmt.Printf("Total size: %s\n", utils.HumanizeBytes(totalSize))
		fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))
	}

	if scanErr != nil {
		os.Exit(1)
	}
}
