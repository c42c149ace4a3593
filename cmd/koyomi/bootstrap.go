package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/koyomi-batch/koyomi/internal/archive"
	"github.com/koyomi-batch/koyomi/internal/audit/flatfile"
	"github.com/koyomi-batch/koyomi/internal/audit/table"
	"github.com/koyomi-batch/koyomi/internal/batchnum"
	"github.com/koyomi-batch/koyomi/internal/cliutil"
	"github.com/koyomi-batch/koyomi/internal/clock"
	"github.com/koyomi-batch/koyomi/internal/config"
	"github.com/koyomi-batch/koyomi/internal/engine"
	"github.com/koyomi-batch/koyomi/internal/executor"
	"github.com/koyomi-batch/koyomi/internal/graph"
	"github.com/koyomi-batch/koyomi/internal/koyomilog"
	"github.com/koyomi-batch/koyomi/internal/lastsuccess"
	"github.com/koyomi-batch/koyomi/internal/lock"
	"github.com/koyomi-batch/koyomi/internal/metrics"
	"github.com/koyomi-batch/koyomi/internal/notify"
	"github.com/koyomi-batch/koyomi/internal/proclist"
	"github.com/koyomi-batch/koyomi/internal/resurrection"
	"github.com/koyomi-batch/koyomi/internal/signalmon"
	"github.com/koyomi-batch/koyomi/internal/status"
)

// tableAdapter narrows *table.Store to engine.TableUpdater without
// exposing gorm-backed types across the package boundary.
type tableAdapter struct{ store *table.Store }

func (a *tableAdapter) UpsertBatch(u engine.TableBatchUpdate) error {
	return a.store.UpsertBatch(table.BatchUpdate(u))
}

func (a *tableAdapter) UpsertProcesses(systemName, batchNumber, batchName string, records []status.Record) error {
	return a.store.UpsertProcesses(systemName, batchNumber, batchName, records)
}

// runBatch drives one batch invocation end to end and returns the exit
// code.
func runBatch(opts *cliutil.Options) int {
	clk := clock.NewSystem()

	cfg, err := config.Load(opts.ConfigFile, os.Getenv("ENV_FILE_PATH"))
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		return cliutil.ExitUsageError
	}

	if err := os.MkdirAll(cfg.LogFileDirectory, 0o755); err != nil {
		koyomilog.Errorf("koyomi: cannot create log directory: %v", err)
		return cliutil.ExitUsageError
	}
	if err := os.MkdirAll(cfg.WorkFileDirectory, 0o755); err != nil {
		koyomilog.Errorf("koyomi: cannot create work directory: %v", err)
		return cliutil.ExitUsageError
	}
	if cfg.BfLogFileDirectory != "" {
		if err := os.MkdirAll(cfg.BfLogFileDirectory, 0o755); err != nil {
			koyomilog.Errorf("koyomi: cannot create common log directory: %v", err)
			return cliutil.ExitUsageError
		}
	}

	batchAlias := opts.Alias
	if batchAlias == "" {
		batchAlias = cfg.BatchName
	}

	lockPath := filepath.Join(cfg.BfLockFileDirectory, cfg.BatchName+".lock")
	batchLock, err := lock.Acquire(lockPath)
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		return cliutil.ExitUsageError
	}
	defer batchLock.Release()

	signals := signalmon.New(cfg.PollFileDirectory)
	testMode := opts.TestMode || signals.TestModeRequested()

	procPath := filepath.Join(cfg.BinFileDirectory, cfg.BatchName+".proc")
	parsed, err := proclist.Parse(procPath)
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		return cliutil.ExitUsageError
	}

	g, err := graph.Validate(parsed.Processes)
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		return cliutil.ExitUsageError
	}

	predecessors := make(map[string][]string, len(parsed.Processes))
	names := make([]string, len(parsed.Processes))
	for i, p := range parsed.Processes {
		predecessors[p.Name] = p.Predecessors
		names[i] = p.Name
	}

	allocatorPath := filepath.Join(cfg.BfLockFileDirectory, "batchnum.allocator")
	processAuditPath := flatfile.New(cfg.LogFileDirectory, cfg.BfLogFileDirectory, cfg.BatchName).ProcessAuditPath

	resurrectRequested := opts.Resurrect || exists(filepath.Join(cfg.PollFileDirectory, "RES.flg"))
	plan, err := resurrection.Evaluate(resurrectRequested, processAuditPath, names, predecessors)
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		return cliutil.ExitUsageError
	}

	var batchNumber string
	runNumber := 1
	if plan.Active {
		batchNumber = plan.BatchNumber
		runNumber = plan.RunNumber
	} else {
		batchNumber, err = batchnum.Allocate(opts.BatchNumber, allocatorPath, clk)
		if err != nil {
			koyomilog.Errorf("koyomi: %v", err)
			return cliutil.ExitUsageError
		}
	}

	statusStore := status.New(clk, names, predecessors)
	if plan.Active {
		for _, seed := range plan.Seeds {
			statusStore.Seed(seed)
		}
	}

	var tableUpdater engine.TableUpdater
	var tableStore *table.Store
	if cfg.PerformAuditTableUpdates {
		tableStore, err = table.Open(cfg.AuditTableDriver, cfg.BfConnectString)
		if err != nil {
			koyomilog.Errorf("koyomi: %v", err)
			return cliutil.ExitUsageError
		}
		defer tableStore.Close()
		tableUpdater = &tableAdapter{store: tableStore}
	}

	historyPath := filepath.Join(cfg.BfLogFileDirectory, cfg.BatchName+"_BatchHistory.log")
	var querier lastsuccess.TableQuerier
	if tableStore != nil {
		querier = tableStore
	}
	lastOK, err := lastsuccess.Resolve(cfg.PerformAuditTableUpdates, querier, cfg.ApplicationName, cfg.BatchName, historyPath)
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		return cliutil.ExitUsageError
	}
	exportLastSuccess(lastOK)

	batchType := string(opts.BatchType)
	if testMode {
		batchType = "TEST"
	}
	if batchType == "" {
		batchType = string(cliutil.BatchTypeManual)
	}

	processDate := opts.ProcessDate
	if processDate == "" {
		processDate = clk.NowString()
	}

	var notifier notify.Notifier = notify.NewDummyNotifier()
	if cfg.SendFailureMessage && cfg.AlertEMailList != "" {
		notifier = notify.NewSMTPNotifier("localhost", "25", cfg.ApplicationName+"@localhost", cfg.AlertEMailList)
	}

	meta := engine.BatchMeta{
		ApplicationName: cfg.ApplicationName,
		BatchName:       cfg.BatchName,
		BatchAlias:      batchAlias,
		BatchNumber:     batchNumber,
		RunNumber:       runNumber,
		ProcessDate:     processDate,
		BatchType:       batchType,
		TestMode:        testMode,
		ConfigFilePath:  opts.ConfigFile,
	}

	setenv("BatchName", cfg.BatchName)
	setenv("BatchNumber", batchNumber)
	setenv("RunNumber", fmt.Sprintf("%d", runNumber))
	setenv("ProcessDate", processDate)

	exec := executor.New(cfg.BinFileDirectory, cfg.LogFileDirectory)
	flatWriter := flatfile.New(cfg.LogFileDirectory, cfg.BfLogFileDirectory, cfg.BatchName)
	rec := metrics.NewRecorder()

	traceFile, shutdownTracing, err := openTracing(cfg)
	if err != nil {
		koyomilog.Warnf("koyomi: tracing setup failed, continuing without spans: %v", err)
	}
	if traceFile != nil {
		defer traceFile.Close()
	}
	defer shutdownTracing(context.Background())

	eng := engine.New(meta, cfg, g, statusStore, clk, exec, signals, notifier, flatWriter, tableUpdater, rec, metrics.NewTracer(), clk.NowString())

	koyomilog.Infof("koyomi: batch %s (%s) run %d starting, batch_number=%s", cfg.BatchName, batchAlias, runNumber, batchNumber)
	exitCode := eng.Run()
	koyomilog.Infof("koyomi: batch %s run %d finished with exit code %d", cfg.BatchName, runNumber, exitCode)

	if err := archive.Archive(cfg.LogFileDirectory, batchNumber, runNumber, cfg.MaxArchivedLogs); err != nil {
		koyomilog.Errorf("koyomi: archive failed: %v", err)
	}

	return exitCode
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func exportLastSuccess(r lastsuccess.Result) {
	setenv("LastSuccessfulBatchNumber", r.BatchNumber)
	setenv("LastSuccessfulRunNumber", fmt.Sprintf("%d", r.RunNumber))
	setenv("LastSuccessfulProcessDate", r.ProcessDate)
}

func setenv(key, value string) {
	if err := os.Setenv(key, value); err != nil {
		koyomilog.Warnf("koyomi: failed to export %s: %v", key, err)
	}
}

// openTracing wires metrics.SetupTracing to a file under the batch's log
// directory when EnableTracing is set, and returns a no-op shutdown
// otherwise.
func openTracing(cfg *config.Config) (*os.File, func(context.Context) error, error) {
	if !cfg.EnableTracing {
		shutdown, err := metrics.SetupTracing(cfg.ApplicationName, io.Discard, false)
		return nil, shutdown, err
	}

	path := filepath.Join(cfg.LogFileDirectory, cfg.BatchName+"_trace.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		shutdown, setupErr := metrics.SetupTracing(cfg.ApplicationName, io.Discard, false)
		if setupErr != nil {
			return nil, shutdown, setupErr
		}
		return nil, shutdown, err
	}

	shutdown, err := metrics.SetupTracing(cfg.ApplicationName, f, true)
	if err != nil {
		f.Close()
		noop, _ := metrics.SetupTracing(cfg.ApplicationName, io.Discard, false)
		return nil, noop, err
	}
	return f, shutdown, nil
}
