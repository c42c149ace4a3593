package flatfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koyomi-batch/koyomi/internal/status"
)

func TestNew_BuildsPathsFromConvention(t *testing.T) {
	w := New("/var/log/batch", "/var/log/common", "PAYROLL")
	assert.Equal(t, "/var/log/batch/PAYROLL_BatchAudit.log", w.BatchAuditPath)
	assert.Equal(t, "/var/log/batch/PAYROLL_ProcessAudit.log", w.ProcessAuditPath)
	assert.Equal(t, "/var/log/common/PAYROLL_BatchHistory.log", w.HistoryPath)
}

func TestWriteBatch_BlanksEndTimeUnlessTerminal(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, dir, "PAYROLL")

	require.NoError(t, w.WriteBatch(BatchRecord{
		BatchNumber: "20260102030405", RunNumber: 1, BatchName: "PAYROLL",
		BatchStatus: "RUNNING", BatchStartTime: "2026-01-02 03:04:05", BatchEndTime: "should be blanked",
	}))

	contents, err := os.ReadFile(w.BatchAuditPath)
	require.NoError(t, err)
	assert.Equal(t, "20260102030405|1|PAYROLL||RUNNING|2026-01-02 03:04:05|||\n", string(contents))
}

func TestWriteBatch_KeepsEndTimeWhenTerminal(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, dir, "PAYROLL")

	require.NoError(t, w.WriteBatch(BatchRecord{
		BatchNumber: "20260102030405", RunNumber: 1, BatchName: "PAYROLL",
		BatchStatus: "SUCCESSFUL", BatchStartTime: "2026-01-02 03:04:05", BatchEndTime: "2026-01-02 04:00:00",
	}))

	contents, err := os.ReadFile(w.BatchAuditPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "|SUCCESSFUL|2026-01-02 03:04:05|2026-01-02 04:00:00|")
}

func TestWriteProcesses_OneLinePerRecordInOrder(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, dir, "PAYROLL")

	records := []status.Record{
		{Name: "JobA", RunNumber: 1, Status: status.StateSuccessful, StartTime: "t1", EndTime: "t2"},
		{Name: "JobB", RunNumber: 1, Status: status.StateRunning, StartTime: "t3"},
	}
	require.NoError(t, w.WriteProcesses("20260102030405", records))

	parsed, err := ReadProcessAudit(w.ProcessAuditPath)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "JobA", parsed[0].ProcessName)
	assert.Equal(t, "SUCCESSFUL", parsed[0].Status)
	assert.Equal(t, "JobB", parsed[1].ProcessName)
	assert.Equal(t, "RUNNING", parsed[1].Status)
}

func TestReadProcessAudit_MissingFileReturnsNilNoError(t *testing.T) {
	records, err := ReadProcessAudit(filepath.Join(t.TempDir(), "missing.log"))
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestAppendHistory_AppendsBatchLineVerbatim(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, dir, "PAYROLL")
	require.NoError(t, w.WriteBatch(BatchRecord{
		BatchNumber: "20260102030405", RunNumber: 1, BatchName: "PAYROLL",
		ProcessDate: "2026-01-02", BatchStatus: "SUCCESSFUL",
		BatchStartTime: "2026-01-02 03:04:05", BatchEndTime: "2026-01-02 04:00:00",
		BatchType: "MANUAL", BatchAlias: "PAYROLL",
	}))
	require.NoError(t, w.AppendHistory())

	batchNumber, runNumber, processDate, found, err := ScanHistoryForLastSuccess(w.HistoryPath, "PAYROLL")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "20260102030405", batchNumber)
	assert.Equal(t, 1, runNumber)
	assert.Equal(t, "2026-01-02", processDate)
}

func TestScanHistoryForLastSuccess_KeepsLastMatchingLine(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "PAYROLL_BatchHistory.log")
	lines := "" +
		"20260101000000|1|PAYROLL|2026-01-01|SUCCESSFUL|s|e|MANUAL|PAYROLL\n" +
		"20260102000000|1|OTHER|2026-01-02|SUCCESSFUL|s|e|MANUAL|OTHER\n" +
		"20260103000000|1|PAYROLL|2026-01-03|FAILED|s||MANUAL|PAYROLL\n" +
		"20260104000000|2|PAYROLL|2026-01-04|SUCCESSFUL|s|e|MANUAL|PAYROLL\n"
	require.NoError(t, os.WriteFile(historyPath, []byte(lines), 0o644))

	batchNumber, runNumber, processDate, found, err := ScanHistoryForLastSuccess(historyPath, "PAYROLL")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "20260104000000", batchNumber)
	assert.Equal(t, 2, runNumber)
	assert.Equal(t, "2026-01-04", processDate)
}

func TestScanHistoryForLastSuccess_MissingFile(t *testing.T) {
	_, _, _, found, err := ScanHistoryForLastSuccess(filepath.Join(t.TempDir(), "missing.log"), "PAYROLL")
	assert.NoError(t, err)
	assert.False(t, found)
}
