// Package flatfile implements the audit writers: the three
// `|`-delimited flat files that back resurrection and the history-based
// last-success resolver.
package flatfile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/koyomi-batch/koyomi/internal/exception"
	"github.com/koyomi-batch/koyomi/internal/status"
)

const moduleName = "flatfile"

const fieldSep = "|"

// BatchRecord mirrors the batch audit line's fields.
type BatchRecord struct {
	BatchNumber   string
	RunNumber     int
	BatchName     string
	ProcessDate   string
	BatchStatus   string
	BatchStartTime string
	BatchEndTime  string
	BatchType     string
	BatchAlias    string
}

// ProcessRecord mirrors one line of the process audit file.
type ProcessRecord struct {
	BatchNumber string
	RunNumber   int
	ProcessName string
	Status      string
	StartTime   string
	EndTime     string
}

// Writer owns the three files for one batch's log directory.
type Writer struct {
	BatchAuditPath   string
	ProcessAuditPath string
	HistoryPath      string
}

// New creates a Writer for the given per-batch and common log directories,
// following the documented naming convention.
func New(logDir, commonLogDir, batchName string) *Writer {
	return &Writer{
		BatchAuditPath:   fmt.Sprintf("%s/%s_BatchAudit.log", logDir, batchName),
		ProcessAuditPath: fmt.Sprintf("%s/%s_ProcessAudit.log", logDir, batchName),
		HistoryPath:      fmt.Sprintf("%s/%s_BatchHistory.log", commonLogDir, batchName),
	}
}

// WriteBatch overwrites the batch audit file with a single line.
func (w *Writer) WriteBatch(r BatchRecord) error {
	endTime := r.BatchEndTime
	if r.BatchStatus != "SUCCESSFUL" && r.BatchStatus != "FAILED" {
		endTime = ""
	}
	line := strings.Join([]string{
		r.BatchNumber,
		strconv.Itoa(r.RunNumber),
		r.BatchName,
		r.ProcessDate,
		r.BatchStatus,
		r.BatchStartTime,
		endTime,
		r.BatchType,
		r.BatchAlias,
	}, fieldSep)
	if err := os.WriteFile(w.BatchAuditPath, []byte(line+"\n"), 0o644); err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot write batch audit file %q", w.BatchAuditPath), err)
	}
	return nil
}

// WriteProcesses overwrites the process audit file, one line per active
// process in process-list order.
func (w *Writer) WriteProcesses(batchNumber string, records []status.Record) error {
	var b strings.Builder
	for _, r := range records {
		line := strings.Join([]string{
			batchNumber,
			strconv.Itoa(r.RunNumber),
			r.Name,
			string(r.Status),
			r.StartTime,
			r.EndTime,
		}, fieldSep)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(w.ProcessAuditPath, []byte(b.String()), 0o644); err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot write process audit file %q", w.ProcessAuditPath), err)
	}
	return nil
}

// AppendHistory appends the current batch audit file's contents verbatim
// to the batch history file, called once on final exit.
func (w *Writer) AppendHistory() error {
	line, err := os.ReadFile(w.BatchAuditPath)
	if err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot read batch audit file %q for history append", w.BatchAuditPath), err)
	}
	f, err := os.OpenFile(w.HistoryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot open batch history file %q", w.HistoryPath), err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot append to batch history file %q", w.HistoryPath), err)
	}
	return nil
}

// ReadProcessAudit parses a process audit file back into ProcessRecords,
// used by the resurrection planner. Returns (nil, nil) if the file does
// not exist.
func ReadProcessAudit(path string) ([]ProcessRecord, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("cannot read process audit file %q", path), err)
	}
	defer f.Close()

	var records []ProcessRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, fieldSep)
		if len(fields) != 6 {
			return nil, exception.Fatal(moduleName, fmt.Sprintf("malformed process audit line %q in %q", line, path), nil)
		}
		runNumber, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, exception.Fatal(moduleName, fmt.Sprintf("invalid run_number in process audit line %q", line), err)
		}
		records = append(records, ProcessRecord{
			BatchNumber: fields[0],
			RunNumber:   runNumber,
			ProcessName: fields[2],
			Status:      fields[3],
			StartTime:   fields[4],
			EndTime:     fields[5],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("error scanning process audit file %q", path), err)
	}
	return records, nil
}

// ScanHistoryForLastSuccess scans the batch history file for the latest
// line whose batch_name matches and whose batch_status is SUCCESSFUL,
// used by the Last-Success Resolver when audit-table updates are off.
func ScanHistoryForLastSuccess(path, batchName string) (batchNumber string, runNumber int, processDate string, found bool, err error) {
	f, openErr := os.Open(path)
	if os.IsNotExist(openErr) {
		return "", 0, "", false, nil
	}
	if openErr != nil {
		return "", 0, "", false, exception.Fatal(moduleName, fmt.Sprintf("cannot read batch history file %q", path), openErr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, fieldSep)
		if len(fields) != 9 {
			continue
		}
		if fields[2] != batchName || fields[4] != "SUCCESSFUL" {
			continue
		}
		rn, convErr := strconv.Atoi(fields[1])
		if convErr != nil {
			continue
		}
		batchNumber, runNumber, processDate, found = fields[0], rn, fields[3], true
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return "", 0, "", false, exception.Fatal(moduleName, fmt.Sprintf("error scanning batch history file %q", path), scanErr)
	}
	return batchNumber, runNumber, processDate, found, nil
}
