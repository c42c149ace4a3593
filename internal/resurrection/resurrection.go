// Package resurrection implements the resurrection planner: given
// a prior run's process-audit file, decides which jobs resume, which
// re-run from scratch, and what run_number and batch_number the new
// attempt uses.
package resurrection

import (
	"github.com/koyomi-batch/koyomi/internal/audit/flatfile"
	"github.com/koyomi-batch/koyomi/internal/status"
)

// Plan is the outcome of evaluating resurrection against a prior run.
type Plan struct {
	// Active is false when resurrection is a no-op (LastRunSucceeded):
	// the caller should proceed with a fresh batch number and run_number 1.
	Active bool
	// BatchNumber is the batch number to reuse. Only meaningful if Active.
	BatchNumber string
	// RunNumber is the new run_number the resumed batch will use.
	RunNumber int
	// Seeds are the status.Record values to preload into the Status Store
	// before the scheduler loop starts: SUCCESSFUL processes carry over
	// their original run_number and timings and get run_order 1, 2, ... in
	// process-list order; everything else starts WAITING.
	Seeds []status.Record
}

// Evaluate checks the process-audit file at processAuditPath against the
// active process list (in natural order, predecessors keyed by name) and
// returns the resurrection Plan.
//
// requested indicates resurrection was asked for (CLI -r flag or a
// RES.flg file present in the poll directory); if false, Evaluate returns an
// inactive plan without reading the file.
func Evaluate(requested bool, processAuditPath string, names []string, predecessors map[string][]string) (*Plan, error) {
	if !requested {
		return &Plan{Active: false}, nil
	}

	records, err := flatfile.ReadProcessAudit(processAuditPath)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Plan{Active: false}, nil
	}

	byName := make(map[string]flatfile.ProcessRecord, len(records))
	maxRunNumber := 0
	anyNonSuccessful := false
	for _, r := range records {
		byName[r.ProcessName] = r
		if r.RunNumber > maxRunNumber {
			maxRunNumber = r.RunNumber
		}
		if r.Status != "SUCCESSFUL" {
			anyNonSuccessful = true
		}
	}

	if !anyNonSuccessful {
		// LastRunSucceeded short-circuit: nothing to resurrect.
		return &Plan{Active: false}, nil
	}

	newRunNumber := maxRunNumber + 1
	batchNumber := records[0].BatchNumber

	seeds := make([]status.Record, 0, len(names))
	runOrder := 0
	for i, name := range names {
		prior, ok := byName[name]
		if ok && prior.Status == "SUCCESSFUL" {
			runOrder++
			seeds = append(seeds, status.Record{
				Name:         name,
				Predecessors: predecessors[name],
				NaturalOrder: i,
				RunOrder:     runOrder,
				Status:       status.StateSuccessful,
				RunNumber:    prior.RunNumber,
				StartTime:    prior.StartTime,
				EndTime:      prior.EndTime,
			})
			continue
		}
		seeds = append(seeds, status.Record{
			Name:         name,
			Predecessors: predecessors[name],
			NaturalOrder: i,
			Status:       status.StateWaiting,
			RunNumber:    newRunNumber,
		})
	}

	return &Plan{
		Active:      true,
		BatchNumber: batchNumber,
		RunNumber:   newRunNumber,
		Seeds:       seeds,
	}, nil
}
