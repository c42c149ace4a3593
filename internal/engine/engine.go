// Package engine implements the scheduler loop, the tick-driven
// core of the batch engine. It bundles every
// collaborator as explicit fields on an Engine value rather than
// depending on process-wide globals, so each step is testable in
// isolation.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/koyomi-batch/koyomi/internal/audit/flatfile"
	"github.com/koyomi-batch/koyomi/internal/clock"
	"github.com/koyomi-batch/koyomi/internal/config"
	"github.com/koyomi-batch/koyomi/internal/executor"
	"github.com/koyomi-batch/koyomi/internal/graph"
	"github.com/koyomi-batch/koyomi/internal/koyomilog"
	"github.com/koyomi-batch/koyomi/internal/metrics"
	"github.com/koyomi-batch/koyomi/internal/notify"
	"github.com/koyomi-batch/koyomi/internal/signalmon"
	"github.com/koyomi-batch/koyomi/internal/status"

	"go.opentelemetry.io/otel/trace"
)

// Exit codes for the scheduler loop.
const (
	ExitSuccess             = 0
	ExitInitError           = 1
	ExitFatalEngineError    = 2
	ExitStoppedWithWaiting  = 5
	ExitJobFailed           = 6
)

// TableUpdater is the narrow capability the engine needs from the Audit
// Table Updater, kept as an interface so this package does not import
// gorm directly.
type TableUpdater interface {
	UpsertBatch(u TableBatchUpdate) error
	UpsertProcesses(systemName, batchNumber, batchName string, records []status.Record) error
}

// TableBatchUpdate mirrors table.BatchUpdate without importing the table
// package's gorm-backed types into this package's public surface.
type TableBatchUpdate struct {
	SystemName     string
	BatchNumber    string
	RunNumber      int
	BatchName      string
	ProcessDate    string
	BatchStatus    string
	BatchStartTime string
	BatchEndTime   string
	BatchType      string
	BatchAlias     string
	Heartbeat      string
}

// BatchMeta is the immutable identity of the batch run.
type BatchMeta struct {
	ApplicationName string
	BatchName       string
	BatchAlias      string
	BatchNumber     string
	RunNumber       int
	ProcessDate     string
	BatchType       string
	TestMode        bool
	ConfigFilePath  string
}

// Engine bundles every collaborator the scheduler loop steps through
// each tick.
type Engine struct {
	Meta   BatchMeta
	Config *config.Config
	Graph  *graph.Graph
	Status *status.Store
	Clock  clock.Clock

	Executor *executor.Executor
	Signals  *signalmon.State
	Notifier notify.Notifier

	FlatAudit *flatfile.Writer
	Table     TableUpdater // nil when PerformAuditTableUpdates is off

	Metrics *metrics.Recorder
	Tracer  *metrics.Tracer

	jobs map[string]executor.Job

	batchStatus    string
	batchStartTime string
	batchEndTime   string

	lastTick        time.Time
	lastAuditUpdate time.Time
	auditDisabled   bool // WARN-latched
	exitCode        int
}

// New creates an Engine ready to run. batchStartTime should be the
// clock's NowString() at batch start.
func New(meta BatchMeta, cfg *config.Config, g *graph.Graph, st *status.Store, clk clock.Clock,
	exec *executor.Executor, signals *signalmon.State, notifier notify.Notifier,
	flatAudit *flatfile.Writer, table TableUpdater, rec *metrics.Recorder, tracer *metrics.Tracer,
	batchStartTime string) *Engine {
	return &Engine{
		Meta:           meta,
		Config:         cfg,
		Graph:          g,
		Status:         st,
		Clock:          clk,
		Executor:       exec,
		Signals:        signals,
		Notifier:       notifier,
		FlatAudit:      flatAudit,
		Table:          table,
		Metrics:        rec,
		Tracer:         tracer,
		jobs:           make(map[string]executor.Job),
		batchStatus:    "RUNNING",
		batchStartTime: batchStartTime,
	}
}

// Run drives the scheduler loop until a terminal exit code is reached
// and returns it.
func (e *Engine) Run() int {
	for {
		time.Sleep(1 * time.Second)

		if !e.lastTick.IsZero() && time.Since(e.lastTick) < time.Duration(e.Config.JobPollInterval)*time.Second {
			continue
		}
		e.lastTick = e.Clock.Now()

		code, done := e.tick()
		if done {
			return code
		}
	}
}

// tick performs one full scheduler-loop iteration. The
// second return value is true once a terminal exit code has been
// reached.
func (e *Engine) tick() (int, bool) {
	tickStart := time.Now()
	if e.Metrics != nil {
		defer func() {
			e.Metrics.ObserveTick(time.Since(tickStart).Seconds())
		}()
	}

	ctx := context.Background()
	if e.Tracer != nil {
		var span trace.Span
		ctx, span = e.Tracer.StartTick(ctx)
		defer span.End()
	}

	nowEnd := e.Clock.NowString()

	e.Signals.Poll()
	if e.Signals.AuditRetryRequested && e.auditDisabled {
		e.auditDisabled = false
		koyomilog.Infof("engine: audit-disabled latch cleared by RETRY.flg")
	}

	if !e.Signals.SuppressLaunch() {
		if err := e.launchPhase(ctx, nowEnd); err != nil {
			koyomilog.Errorf("engine: fatal launch error: %v", err)
			e.exitCode = ExitFatalEngineError
			return e.finish(false)
		}
	}

	if err := e.pollPhase(nowEnd); err != nil {
		koyomilog.Errorf("engine: fatal poll error: %v", err)
		e.exitCode = ExitFatalEngineError
		return e.finish(false)
	}

	e.recomputeBatchStatus()

	if err := e.writeFlatAudit(nowEnd); err != nil {
		koyomilog.Errorf("engine: fatal audit-file error: %v", err)
		e.exitCode = ExitFatalEngineError
		return e.finish(false)
	}

	if e.Config.PerformAuditTableUpdates && !e.auditDisabled {
		if time.Since(e.lastAuditUpdate) >= time.Duration(e.Config.AuditTableUpdateInterval)*time.Second {
			if err := e.updateAuditTable(nowEnd); err != nil {
				if e.Config.AuditTableCriticality == config.CriticalityError {
					koyomilog.Errorf("engine: fatal audit table error: %v", err)
					e.exitCode = ExitFatalEngineError
					return e.finish(false)
				}
				koyomilog.Warnf("engine: audit table update failed, disabling updates until RETRY.flg: %v", err)
				e.auditDisabled = true
				if e.Metrics != nil {
					e.Metrics.RecordAuditFailure(string(e.Config.AuditTableCriticality))
				}
			}
			e.lastAuditUpdate = e.Clock.Now()
		}
	}

	waiting, running, _, failed := e.Status.Counts()

	switch {
	case failed == 0 && running == 0 && waiting == 0:
		e.exitCode = ExitSuccess
		return e.finish(true)
	case failed == 0 && waiting > 0 && running == 0 && e.Signals.Stopped:
		e.exitCode = ExitStoppedWithWaiting
		return e.finish(false)
	case failed > 0 && running == 0:
		e.exitCode = ExitJobFailed
		return e.finish(false)
	default:
		return 0, false
	}
}

// launchPhase launches every eligible WAITING
// process, in list order, under the concurrency cap and the global
// fail-fast rule.
func (e *Engine) launchPhase(ctx context.Context, nowEnd string) error {
	if e.Status.AnyFailed() {
		return nil
	}

	running := len(e.Status.Running())
	for _, name := range e.Graph.LaunchOrder() {
		rec, ok := e.Status.Get(name)
		if !ok || rec.Status != status.StateWaiting {
			continue
		}
		if e.Status.AnyFailed() {
			return nil
		}
		if e.Config.MaxParallelJobs > 0 && running >= e.Config.MaxParallelJobs {
			continue
		}
		if !e.predecessorsSatisfied(name) {
			continue
		}

		if e.Tracer != nil {
			_, span := e.Tracer.StartLaunch(ctx, name)
			span.End()
		}

		node, _ := e.Graph.Node(name)
		job, err := e.Executor.Start(name, e.Meta.ConfigFilePath, node.Process.IsMilestone(), e.Meta.TestMode)
		if err != nil {
			return err
		}

		e.jobs[name] = job
		e.Status.Launch(name, job.Handle(), job.PID(), nowEnd)
		rec, _ = e.Status.Get(name)
		running++
		if e.Metrics != nil {
			e.Metrics.RecordLaunch(name)
			e.Metrics.SetRunning(running)
		}
		koyomilog.Infof("engine: launched %q (run_order=%d)", name, rec.RunOrder)
	}
	return nil
}

func (e *Engine) predecessorsSatisfied(name string) bool {
	node, ok := e.Graph.Node(name)
	if !ok {
		return false
	}
	for _, pred := range node.Predecessors {
		predRec, ok := e.Status.Get(pred)
		if !ok || predRec.Status != status.StateSuccessful {
			return false
		}
	}
	return true
}

// pollPhase checks every RUNNING process.
func (e *Engine) pollPhase(nowEnd string) error {
	for name, job := range e.jobs {
		rec, ok := e.Status.Get(name)
		if !ok || rec.Status != status.StateRunning {
			delete(e.jobs, name)
			continue
		}

		outcome, err := job.Poll()
		if err != nil {
			return err
		}
		if outcome.Running {
			continue
		}

		when, _ := time.Parse(clock.DefaultLayout, nowEnd)
		e.Status.Complete(name, outcome.Succeeded, when)
		delete(e.jobs, name)

		finalStatus := "SUCCESSFUL"
		if !outcome.Succeeded {
			finalStatus = "FAILED"
			e.sendFailureAlert(name)
		}
		if e.Metrics != nil {
			e.Metrics.RecordCompletion(name, finalStatus)
		}
		koyomilog.Infof("engine: process %q finished with status %s", name, finalStatus)
	}
	if e.Metrics != nil {
		e.Metrics.SetRunning(len(e.Status.Running()))
	}
	return nil
}

func (e *Engine) sendFailureAlert(name string) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.NotifyFailure(notify.Alert{
		ApplicationName: e.Meta.ApplicationName,
		BatchName:       e.Meta.BatchName,
		BatchNumber:     e.Meta.BatchNumber,
		ProcessName:     name,
		User:            currentUser(),
		Host:            currentHost(),
		JobPath:         fmt.Sprintf("%s/%s", e.Config.BinFileDirectory, name),
		LogPath:         fmt.Sprintf("%s/%s.log", e.Config.LogFileDirectory, name),
	})
}

// currentUser is best-effort: an alert missing the operator's name is
// still useful, so a lookup failure falls back to an empty string
// rather than aborting the alert.
func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

func currentHost() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// recomputeBatchStatus rolls up the aggregate batch status.
func (e *Engine) recomputeBatchStatus() {
	_, running, _, _ := e.Status.Counts()
	if running > 0 {
		e.batchStatus = "RUNNING"
	} else {
		e.batchStatus = "WAITING"
	}
}

func (e *Engine) writeFlatAudit(nowEnd string) error {
	batchEnd := ""
	if e.batchStatus == "SUCCESSFUL" || e.batchStatus == "FAILED" {
		batchEnd = nowEnd
	}
	if err := e.FlatAudit.WriteBatch(flatfile.BatchRecord{
		BatchNumber:    e.Meta.BatchNumber,
		RunNumber:      e.Meta.RunNumber,
		BatchName:      e.Meta.BatchName,
		ProcessDate:    e.Meta.ProcessDate,
		BatchStatus:    e.batchStatus,
		BatchStartTime: e.batchStartTime,
		BatchEndTime:   batchEnd,
		BatchType:      e.Meta.BatchType,
		BatchAlias:     e.Meta.BatchAlias,
	}); err != nil {
		return err
	}
	return e.FlatAudit.WriteProcesses(e.Meta.BatchNumber, e.Status.All())
}

func (e *Engine) updateAuditTable(nowEnd string) error {
	if err := e.Table.UpsertBatch(TableBatchUpdate{
		SystemName:     e.Meta.ApplicationName,
		BatchNumber:    e.Meta.BatchNumber,
		RunNumber:      e.Meta.RunNumber,
		BatchName:      e.Meta.BatchName,
		ProcessDate:    e.Meta.ProcessDate,
		BatchStatus:    e.batchStatus,
		BatchStartTime: e.batchStartTime,
		BatchEndTime:   "",
		BatchType:      e.Meta.BatchType,
		BatchAlias:     e.Meta.BatchAlias,
		Heartbeat:      nowEnd,
	}); err != nil {
		return err
	}
	return e.Table.UpsertProcesses(e.Meta.ApplicationName, e.Meta.BatchNumber, e.Meta.BatchName, e.Status.All())
}

// finish finalizes batch_status, writes the closing audit records, and
// returns the exit code.
func (e *Engine) finish(succeeded bool) (int, bool) {
	nowEnd := e.Clock.NowString()
	if succeeded {
		e.batchStatus = "SUCCESSFUL"
	} else {
		e.batchStatus = "FAILED"
	}

	if err := e.writeFlatAudit(nowEnd); err != nil {
		koyomilog.Errorf("engine: failed to write final audit: %v", err)
	}
	if err := e.FlatAudit.AppendHistory(); err != nil {
		koyomilog.Errorf("engine: failed to append batch history: %v", err)
	}
	if e.Config.PerformAuditTableUpdates && e.Table != nil && !e.auditDisabled {
		if err := e.updateAuditTable(nowEnd); err != nil {
			koyomilog.Errorf("engine: failed final audit table update: %v", err)
		}
	}

	koyomilog.Infof("engine: batch %s run %d exiting with code %d", e.Meta.BatchNumber, e.Meta.RunNumber, e.exitCode)
	return e.exitCode, true
}
