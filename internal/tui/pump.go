package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"dirstat/internal/cleanup"
	"dirstat/internal/scanner"
	"dirstat/internal/window"
)

// maxBatch caps how many directories one message carries so the screen
// keeps updating during large reads.
const maxBatch = 256

type scanBatchMsg struct {
	id   int
	dirs []scanner.Dir
	idle bool // nothing else was buffered
}

type scanDoneMsg struct {
	id  int
	err error
}

type watchMsg struct{ dirs []string }

type cleanupDoneMsg struct {
	job *window.CleanupJob
	res cleanup.Result
	err error
}

// waitScan blocks for the next directory of s and takes whatever else is
// already buffered along with it.
func waitScan(s *window.Scan) tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-s.Dirs
		if !ok {
			return scanDoneMsg{id: s.ID, err: <-s.Errs}
		}
		dirs := []scanner.Dir{d}
		for len(dirs) < maxBatch {
			select {
			case d, ok := <-s.Dirs:
				if !ok {
					return scanBatchMsg{id: s.ID, dirs: dirs, idle: true}
				}
				dirs = append(dirs, d)
			default:
				return scanBatchMsg{id: s.ID, dirs: dirs, idle: true}
			}
		}
		return scanBatchMsg{id: s.ID, dirs: dirs}
	}
}

func waitWatch(ch <-chan []string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		dirs, ok := <-ch
		if !ok {
			return nil
		}
		return watchMsg{dirs: dirs}
	}
}

// runJob runs a cleanup job off the event loop. Commands like a terminal
// emulator may take as long as the user keeps them open.
func runJob(j *window.CleanupJob) tea.Cmd {
	return func() tea.Msg {
		res, err := j.Run(context.Background())
		return cleanupDoneMsg{job: j, res: res, err: err}
	}
}
