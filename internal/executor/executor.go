// Package executor spawns child
// processes with redirected output, polls their status, and normalizes
// anomalous exit codes. Real, milestone, and test-mode processes share
// the same start/poll/finalize contract behind the
// Job interface.
package executor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/koyomi-batch/koyomi/internal/exception"
)

const moduleName = "executor"

// Outcome is what Poll reports once a job has finished.
type Outcome struct {
	Running   bool
	Succeeded bool
}

// Job is the shared capability every process kind implements: start,
// poll, finalize.
type Job interface {
	// PID returns the OS process id, or 0 for milestone/test jobs.
	PID() int
	// Handle returns an opaque description of the running job for the
	// status record.
	Handle() string
	// Poll reports whether the job is still running and, once finished,
	// whether it succeeded.
	Poll() (Outcome, error)
}

// Executor launches real, milestone, and test-mode jobs.
type Executor struct {
	binDir string
	logDir string
}

// New creates an Executor rooted at the given binary and log
// directories.
func New(binDir, logDir string) *Executor {
	return &Executor{binDir: binDir, logDir: logDir}
}

// Start launches processName. isMilestone and testMode select the
// no-spawn variants.
func (e *Executor) Start(processName, configFile string, isMilestone, testMode bool) (Job, error) {
	if isMilestone || testMode {
		return newSimulatedJob(), nil
	}
	return e.startReal(processName, configFile)
}

// realJob wraps an *os/exec.Cmd for one spawned child process.
type realJob struct {
	cmd     *exec.Cmd
	logPath string
	logFile *os.File
	waitErr chan error
}

func (e *Executor) startReal(processName, configFile string) (Job, error) {
	logPath := fmt.Sprintf("%s/%s.log", e.logDir, processName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, exception.New(moduleName, fmt.Sprintf("cannot open log file %q for process %q", logPath, processName), err, false, false)
	}

	binPath := fmt.Sprintf("%s/%s", e.binDir, processName)
	cmd := exec.Command(binPath, configFile)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, exception.New(moduleName, fmt.Sprintf("failed to spawn process %q", processName), err, false, false)
	}

	j := &realJob{cmd: cmd, logPath: logPath, logFile: logFile, waitErr: make(chan error, 1)}
	go func() { j.waitErr <- cmd.Wait() }()
	return j, nil
}

func (j *realJob) PID() int { return j.cmd.Process.Pid }

func (j *realJob) Handle() string { return fmt.Sprintf("pid:%d", j.cmd.Process.Pid) }

// Poll is non-blocking: it selects on the Wait goroutine's channel
// without blocking when the process hasn't exited yet.
func (j *realJob) Poll() (Outcome, error) {
	select {
	case err := <-j.waitErr:
		defer j.logFile.Close()
		exitCode := exitCodeOf(err)
		if exitCode == -1 {
			recovered, recErr := recoverExitCode(j.logPath)
			if recErr != nil {
				return Outcome{}, recErr
			}
			exitCode = recovered
		}
		return Outcome{Running: false, Succeeded: exitCode == 0}, nil
	default:
		return Outcome{Running: true}, nil
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// recoverExitCode implements the anomalous -1 exit recovery:
// read the tail of the process log and parse a colon-delimited trailing
// integer; 0 means success, anything else is the reported failure.
//
// This log-tail parse is a legacy-spawn-library
// workaround kept only as a fallback, not the primary signal.
func recoverExitCode(logPath string) (int, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return 0, exception.New(moduleName, fmt.Sprintf("cannot reopen log %q for exit-code recovery", logPath), err, false, false)
	}
	defer f.Close()

	const tailBytes = 20
	info, err := f.Stat()
	if err != nil {
		return 0, exception.New(moduleName, fmt.Sprintf("cannot stat log %q for exit-code recovery", logPath), err, false, false)
	}

	offset := int64(0)
	if info.Size() > tailBytes {
		offset = info.Size() - tailBytes
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, exception.New(moduleName, fmt.Sprintf("cannot seek log %q for exit-code recovery", logPath), err, false, false)
	}

	tail, err := io.ReadAll(bufio.NewReader(f))
	if err != nil {
		return 0, exception.New(moduleName, fmt.Sprintf("cannot read log %q for exit-code recovery", logPath), err, false, false)
	}

	text := strings.TrimSpace(string(tail))
	idx := strings.LastIndex(text, ":")
	if idx < 0 || idx == len(text)-1 {
		return 1, nil // no parseable status; treat as failure
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(text[idx+1:]))
	if convErr != nil {
		return 1, nil
	}
	return code, nil
}

// simulatedJob models milestone and test-mode processes: no spawn, a
// tick counter that transitions to SUCCESSFUL on the second poll. Each
// gets a synthetic handle so concurrent simulated runs remain
// distinguishable in the status and audit records.
type simulatedJob struct {
	ticks  int
	handle string
}

func newSimulatedJob() *simulatedJob {
	return &simulatedJob{ticks: 0, handle: "sim:" + uuid.New().String()}
}

func (s *simulatedJob) PID() int { return 0 }

func (s *simulatedJob) Handle() string { return s.handle }

func (s *simulatedJob) Poll() (Outcome, error) {
	s.ticks++
	if s.ticks > 1 {
		return Outcome{Running: false, Succeeded: true}, nil
	}
	return Outcome{Running: true}, nil
}
