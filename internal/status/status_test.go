package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koyomi-batch/koyomi/internal/clock"
)

func newTestStore() (*Store, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	preds := map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"A", "B"},
	}
	return New(clk, []string{"A", "B", "C"}, preds), clk
}

func TestNew_SeedsAllWaiting(t *testing.T) {
	s, _ := newTestStore()
	waiting, running, successful, failed := s.Counts()
	assert.Equal(t, 3, waiting)
	assert.Equal(t, 0, running+successful+failed)

	rec, ok := s.Get("B")
	require.True(t, ok)
	assert.Equal(t, StateWaiting, rec.Status)
	assert.Equal(t, []string{"A"}, rec.Predecessors)
	assert.Equal(t, 1, rec.RunNumber)
}

func TestReadyToLaunch_RespectsPredecessors(t *testing.T) {
	s, clk := newTestStore()
	assert.Equal(t, []string{"A"}, s.ReadyToLaunch())

	s.Launch("A", "pid:1", 1, clk.NowString())
	s.Complete("A", true, time.Now())
	assert.Equal(t, []string{"B"}, s.ReadyToLaunch())

	s.Launch("B", "pid:2", 2, clk.NowString())
	s.Complete("B", true, time.Now())
	assert.Equal(t, []string{"C"}, s.ReadyToLaunch())
}

func TestLaunch_AssignsSequentialRunOrder(t *testing.T) {
	s, clk := newTestStore()
	s.Launch("A", "pid:1", 100, clk.NowString())
	recA, _ := s.Get("A")
	assert.Equal(t, 1, recA.RunOrder)
	assert.Equal(t, "pid:1", recA.Handle)
	assert.Equal(t, 100, recA.PID)
	assert.Equal(t, clk.NowString(), recA.StartTime)

	s.Complete("A", true, clk.Now())
	s.Launch("B", "pid:2", 200, clk.NowString())
	recB, _ := s.Get("B")
	assert.Equal(t, 2, recB.RunOrder)
}

func TestComplete_SetsTerminalStateAndEndTime(t *testing.T) {
	s, clk := newTestStore()
	s.Launch("A", "pid:1", 1, clk.NowString())

	when := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)
	s.Complete("A", false, when)

	rec, _ := s.Get("A")
	assert.Equal(t, StateFailed, rec.Status)
	assert.Equal(t, when.Format(clock.DefaultLayout), rec.EndTime)
	assert.True(t, s.AnyFailed())
}

func TestAllTerminal(t *testing.T) {
	s, clk := newTestStore()
	assert.False(t, s.AllTerminal())

	for _, name := range []string{"A", "B", "C"} {
		s.Launch(name, "h", 1, clk.NowString())
		s.Complete(name, true, time.Now())
	}
	assert.True(t, s.AllTerminal())
}

func TestSeed_OverwritesRecordWholesale(t *testing.T) {
	s, _ := newTestStore()
	s.Seed(Record{
		Name:      "A",
		RunNumber: 3,
		Status:    StateSuccessful,
		StartTime: "2025-01-01 00:00:00",
		EndTime:   "2025-01-01 00:01:00",
	})

	rec, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, StateSuccessful, rec.Status)
	assert.Equal(t, 3, rec.RunNumber)
	assert.Contains(t, s.ReadyToLaunch(), "B")
}

func TestRunning_ListsOnlyRunningProcesses(t *testing.T) {
	s, clk := newTestStore()
	s.Launch("A", "pid:1", 1, clk.NowString())
	assert.Equal(t, []string{"A"}, s.Running())

	s.Complete("A", true, time.Now())
	assert.Empty(t, s.Running())
}
