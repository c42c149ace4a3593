package table

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/koyomi-batch/koyomi/internal/status"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &Store{db: gormDB}, mock
}

func TestUpsertBatch_InsertsWhenNoExistingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `etl_batch_audit`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `etl_batch_audit`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.UpsertBatch(BatchUpdate{
		SystemName: "koyomi", BatchNumber: "20260102030405", RunNumber: 1,
		BatchName: "PAYROLL", BatchStatus: "RUNNING",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_UpdatesWhenOneExistingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `etl_batch_audit`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `etl_batch_audit` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpsertBatch(BatchUpdate{
		SystemName: "koyomi", BatchNumber: "20260102030405", RunNumber: 1,
		BatchName: "PAYROLL", BatchStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_MoreThanOneExistingRowIsADataIntegrityError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `etl_batch_audit`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err := store.UpsertBatch(BatchUpdate{SystemName: "koyomi", BatchNumber: "20260102030405", RunNumber: 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data integrity error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_CountQueryFailureIsFatal(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `etl_batch_audit`")).
		WillReturnError(assert.AnError)

	err := store.UpsertBatch(BatchUpdate{SystemName: "koyomi", BatchNumber: "20260102030405", RunNumber: 1})
	assert.Error(t, err)
}

func TestUpsertProcesses_BranchesOnRowCountPerRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `etl_process_audit`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `etl_process_audit`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `etl_process_audit`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `etl_process_audit` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := []status.Record{
		{Name: "JobA", RunNumber: 1, Status: status.StateSuccessful},
		{Name: "JobB", RunNumber: 1, Status: status.StateFailed},
	}
	err := store.UpsertProcesses("koyomi", "20260102030405", "PAYROLL", records)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSuccessful_ReturnsFoundRow(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"system_name", "batch_number", "run_number", "batch_name", "process_date", "batch_status", "batch_start_time"}).
		AddRow("koyomi", "20260102030405", 3, "PAYROLL", "2026-01-02", "SUCCESSFUL", "2026-01-02 00:00:00")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `etl_batch_audit`")).WillReturnRows(rows)

	batchNumber, runNumber, processDate, found, err := store.LastSuccessful("koyomi", "PAYROLL")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "20260102030405", batchNumber)
	assert.Equal(t, 3, runNumber)
	assert.Equal(t, "2026-01-02", processDate)
}

func TestLastSuccessful_NoRowsReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `etl_batch_audit`")).
		WillReturnRows(sqlmock.NewRows([]string{"system_name"}))

	_, _, _, found, err := store.LastSuccessful("koyomi", "PAYROLL")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOpen_UnsupportedDriverIsAnError(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}
