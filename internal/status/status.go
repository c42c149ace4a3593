// Package status is the in-memory status store: the scheduler
// loop's live view of every process's run state for the current batch.
package status

import (
	"sync"
	"time"

	"github.com/koyomi-batch/koyomi/internal/clock"
)

// State is a process's position in the WAITING -> RUNNING -> {SUCCESSFUL,
// FAILED} state machine.
type State string

const (
	StateWaiting    State = "WAITING"
	StateRunning    State = "RUNNING"
	StateSuccessful State = "SUCCESSFUL"
	StateFailed     State = "FAILED"
)

// Record is one process's full status row, matching the process-audit
// columns.
type Record struct {
	Name         string
	Predecessors []string
	NaturalOrder int
	RunNumber    int // 1-based; incremented on resurrection re-runs
	RunOrder     int // assigned at launch time; zero until launched
	Handle       string
	PID          int
	Status       State
	StartTime    string
	EndTime      string
}

// Store is a concurrency-safe table of Records keyed by process name.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	nextRun int
	clock   clock.Clock
}

// New creates an empty Store seeded with one WAITING record per process,
// in the given natural order.
func New(clk clock.Clock, names []string, predecessors map[string][]string) *Store {
	s := &Store{
		records: make(map[string]*Record, len(names)),
		order:   append([]string(nil), names...),
		nextRun: 1,
		clock:   clk,
	}
	for i, name := range names {
		s.records[name] = &Record{
			Name:         name,
			Predecessors: predecessors[name],
			NaturalOrder: i,
			RunNumber:    1,
			Status:       StateWaiting,
		}
	}
	return s
}

// Get returns a copy of a process's current record.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[name]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// All returns a copy of every record, in natural order.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.records[name])
	}
	return out
}

// Seed overwrites a record wholesale, used by the resurrection planner to
// restore SUCCESSFUL processes from a prior run before the loop starts.
// Later launches get a run_order above any seeded one.
func (s *Store) Seed(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.records[r.Name] = &cp
	if r.RunOrder >= s.nextRun {
		s.nextRun = r.RunOrder + 1
	}
}

// Launch transitions a WAITING process to RUNNING, assigning it the next
// run_order and recording its handle, pid, and start time. startTime is
// supplied by the caller rather than read from the clock here so every
// record touched within one scheduler tick shares that tick's single
// timestamp.
func (s *Store) Launch(name, handle string, pid int, startTime string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[name]
	r.Status = StateRunning
	r.Handle = handle
	r.PID = pid
	r.RunOrder = s.nextRun
	s.nextRun++
	r.StartTime = startTime
}

// Complete transitions a RUNNING process to SUCCESSFUL or FAILED and
// records its end time.
func (s *Store) Complete(name string, succeeded bool, when time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[name]
	if succeeded {
		r.Status = StateSuccessful
	} else {
		r.Status = StateFailed
	}
	r.EndTime = when.Format(clock.DefaultLayout)
}

// ReadyToLaunch returns the names of every WAITING process whose
// predecessors are all SUCCESSFUL, in natural order.
func (s *Store) ReadyToLaunch() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ready []string
	for _, name := range s.order {
		r := s.records[name]
		if r.Status != StateWaiting {
			continue
		}
		allDone := true
		for _, pred := range r.Predecessors {
			if pr, ok := s.records[pred]; !ok || pr.Status != StateSuccessful {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, name)
		}
	}
	return ready
}

// Running returns the names of every process currently RUNNING.
func (s *Store) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var running []string
	for _, name := range s.order {
		if s.records[name].Status == StateRunning {
			running = append(running, name)
		}
	}
	return running
}

// AnyFailed reports whether at least one process has FAILED.
func (s *Store) AnyFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		if s.records[name].Status == StateFailed {
			return true
		}
	}
	return false
}

// AllTerminal reports whether every process has reached SUCCESSFUL or
// FAILED (no WAITING or RUNNING remain).
func (s *Store) AllTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		st := s.records[name].Status
		if st == StateWaiting || st == StateRunning {
			return false
		}
	}
	return true
}

// Counts returns the number of processes in each terminal/non-terminal
// state, used for the aggregate batch_status rollup.
func (s *Store) Counts() (waiting, running, successful, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		switch s.records[name].Status {
		case StateWaiting:
			waiting++
		case StateRunning:
			running++
		case StateSuccessful:
			successful++
		case StateFailed:
			failed++
		}
	}
	return
}
