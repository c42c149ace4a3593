// Package signalmon implements the signal monitor: each tick,
// polls the poll directory for the operator's flag-file control plane.
package signalmon

import (
	"os"
	"path/filepath"

	"github.com/koyomi-batch/koyomi/internal/koyomilog"
)

const (
	pauseFlag = "PAUSE.flg"
	stopFlag  = "STOP.flg"
	testFlag  = "TEST.flg"
	retryFlag = "RETRY.flg"
)

// State tracks pause/stop mode across ticks so transitions can be
// edge-triggered: logged exactly once on entry and exit.
type State struct {
	dir string

	Paused bool
	Stopped bool

	// AuditRetryRequested is set for one Poll call when RETRY.flg was
	// found and deleted, telling the audit table updater to clear its
	// WARN latch.
	AuditRetryRequested bool
}

// New creates a signal State watching dir.
func New(dir string) *State {
	return &State{dir: dir}
}

// TestModeRequested checks once, at startup only, whether TEST.flg is
// present in the poll directory ("present at startup only").
func (s *State) TestModeRequested() bool {
	return exists(filepath.Join(s.dir, testFlag))
}

// Poll re-reads the flag files and updates Paused/Stopped/
// AuditRetryRequested, logging edge transitions.
func (s *State) Poll() {
	pausedNow := exists(filepath.Join(s.dir, pauseFlag))
	stoppedNow := exists(filepath.Join(s.dir, stopFlag))

	if pausedNow && !s.Paused {
		koyomilog.Infof("signal: PAUSE.flg detected, suspending new launches")
	} else if !pausedNow && s.Paused {
		koyomilog.Infof("signal: PAUSE.flg cleared, resuming launches")
	}
	s.Paused = pausedNow

	if stoppedNow && !s.Stopped {
		koyomilog.Infof("signal: STOP.flg detected, draining running jobs before exit")
	} else if !stoppedNow && s.Stopped {
		koyomilog.Infof("signal: STOP.flg cleared")
	}
	s.Stopped = stoppedNow

	retryPath := filepath.Join(s.dir, retryFlag)
	if exists(retryPath) {
		if err := os.Remove(retryPath); err != nil {
			koyomilog.Warnf("signal: failed to remove %s: %v", retryPath, err)
		}
		s.AuditRetryRequested = true
		koyomilog.Infof("signal: RETRY.flg detected, clearing audit-disabled latch")
	} else {
		s.AuditRetryRequested = false
	}
}

// SuppressLaunch reports whether new process launches should be skipped
// this tick (paused or stopped).
func (s *State) SuppressLaunch() bool {
	return s.Paused || s.Stopped
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
