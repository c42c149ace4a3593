// Package lastsuccess implements the last-success resolver: the
// batch number, run number, and process date of the most recent
// successful run, exported to every launched job's environment.
package lastsuccess

import (
	"github.com/koyomi-batch/koyomi/internal/audit/flatfile"
)

// Sentinel is returned when no prior successful run can be found, per
// the documented fallback.
var Sentinel = Result{
	BatchNumber: "19000101000001",
	RunNumber:   0,
	ProcessDate: "1900-01-01 00:00:01",
}

// Result is the resolved last-success triple.
type Result struct {
	BatchNumber string
	RunNumber   int
	ProcessDate string
}

// TableQuerier is the subset of the Audit Table Updater's capability the
// resolver needs, kept as a narrow interface here so this package never
// imports the GORM-backed table package directly.
type TableQuerier interface {
	LastSuccessful(applicationName, batchName string) (batchNumber string, runNumber int, processDate string, found bool, err error)
}

// Resolve looks up the last successful run for (applicationName,
// batchName). When tableEnabled is true and querier is non-nil, it
// queries the relational audit table; otherwise it scans the batch
// history flat file at historyPath.
func Resolve(tableEnabled bool, querier TableQuerier, applicationName, batchName, historyPath string) (Result, error) {
	if tableEnabled && querier != nil {
		batchNumber, runNumber, processDate, found, err := querier.LastSuccessful(applicationName, batchName)
		if err != nil {
			return Result{}, err
		}
		if found {
			return Result{BatchNumber: batchNumber, RunNumber: runNumber, ProcessDate: processDate}, nil
		}
		return Sentinel, nil
	}

	batchNumber, runNumber, processDate, found, err := flatfile.ScanHistoryForLastSuccess(historyPath, batchName)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Sentinel, nil
	}
	return Result{BatchNumber: batchNumber, RunNumber: runNumber, ProcessDate: processDate}, nil
}
