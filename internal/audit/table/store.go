// Package table implements the audit table updater: relational
// upserts for batch and per-process audit rows with a heartbeat column.
// The WARN/ERROR criticality policy around update failures is applied by
// the caller (internal/engine), not here.
package table

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/koyomi-batch/koyomi/internal/exception"
	"github.com/koyomi-batch/koyomi/internal/status"
)

const moduleName = "audit_table"

// Store owns the GORM connection for the audit tables.
type Store struct {
	db *gorm.DB
}

// Open connects to the audit database using the given dialect ("mysql",
// "postgres", or "sqlite") and DSN, runs pending migrations, and returns
// a ready Store.
func Open(dialect, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, exception.Fatal(moduleName, fmt.Sprintf("unsupported audit table driver %q", dialect), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, exception.Fatal(moduleName, "failed to open audit table connection", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.Fatal(moduleName, "failed to obtain underlying sql.DB", err)
	}
	if err := runMigrations(sqlDB, dialect); err != nil {
		return nil, exception.Fatal(moduleName, "failed to migrate audit table schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BatchUpdate is the batch row the updater writes each cycle.
type BatchUpdate struct {
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

// UpsertBatch implements the row-count-then-branch rule: 0
// rows means insert, 1 means update, >1 is a fatal data error.
func (s *Store) UpsertBatch(u BatchUpdate) error {
	var count int64
	if err := s.db.Model(&BatchAudit{}).
		Where("system_name = ? AND batch_number = ? AND run_number = ?", u.SystemName, u.BatchNumber, u.RunNumber).
		Count(&count).Error; err != nil {
		return exception.Fatal(moduleName, "failed to count existing batch audit row", err)
	}

	row := BatchAudit{
		SystemName:     u.SystemName,
		BatchNumber:    u.BatchNumber,
		RunNumber:      u.RunNumber,
		BatchName:      u.BatchName,
		ProcessDate:    u.ProcessDate,
		BatchStatus:    u.BatchStatus,
		BatchStartTime: u.BatchStartTime,
		BatchEndTime:   u.BatchEndTime,
		BatchType:      u.BatchType,
		BatchAlias:     u.BatchAlias,
		Heartbeat:      u.Heartbeat,
	}

	switch count {
	case 0:
		if err := s.db.Create(&row).Error; err != nil {
			return exception.Fatal(moduleName, "failed to insert batch audit row", err)
		}
	case 1:
		if err := s.db.Model(&BatchAudit{}).
			Where("system_name = ? AND batch_number = ? AND run_number = ?", u.SystemName, u.BatchNumber, u.RunNumber).
			Updates(&row).Error; err != nil {
			return exception.Fatal(moduleName, "failed to update batch audit row", err)
		}
	default:
		return exception.Fatal(moduleName, fmt.Sprintf(
			"data integrity error: %d batch audit rows found for (%s, %s, %d)",
			count, u.SystemName, u.BatchNumber, u.RunNumber), nil)
	}
	return nil
}

// UpsertProcesses writes every process's current record using the same
// row-count-then-branch rule, one row at a time.
func (s *Store) UpsertProcesses(systemName, batchNumber, batchName string, records []status.Record) error {
	for _, r := range records {
		row := ProcessAudit{
			SystemName:       systemName,
			BatchNumber:      batchNumber,
			ProcessName:      r.Name,
			RunNumber:        r.RunNumber,
			BatchName:        batchName,
			ProcessStatus:    string(r.Status),
			ProcessStartTime: r.StartTime,
			ProcessEndTime:   r.EndTime,
		}

		var count int64
		if err := s.db.Model(&ProcessAudit{}).
			Where("system_name = ? AND batch_number = ? AND process_name = ? AND run_number = ?",
				systemName, batchNumber, r.Name, r.RunNumber).
			Count(&count).Error; err != nil {
			return exception.Fatal(moduleName, fmt.Sprintf("failed to count existing process audit row for %q", r.Name), err)
		}

		switch count {
		case 0:
			if err := s.db.Create(&row).Error; err != nil {
				return exception.Fatal(moduleName, fmt.Sprintf("failed to insert process audit row for %q", r.Name), err)
			}
		case 1:
			if err := s.db.Model(&ProcessAudit{}).
				Where("system_name = ? AND batch_number = ? AND process_name = ? AND run_number = ?",
					systemName, batchNumber, r.Name, r.RunNumber).
				Updates(&row).Error; err != nil {
				return exception.Fatal(moduleName, fmt.Sprintf("failed to update process audit row for %q", r.Name), err)
			}
		default:
			return exception.Fatal(moduleName, fmt.Sprintf(
				"data integrity error: %d process audit rows found for (%s, %s, %s, %d)",
				count, systemName, batchNumber, r.Name, r.RunNumber), nil)
		}
	}
	return nil
}

// LastSuccessful implements lastsuccess.TableQuerier: the most recent
// SUCCESSFUL row for (applicationName, batchName), by batch_start_time.
func (s *Store) LastSuccessful(applicationName, batchName string) (batchNumber string, runNumber int, processDate string, found bool, err error) {
	var row BatchAudit
	result := s.db.
		Where("system_name = ? AND batch_name = ? AND batch_status = ?", applicationName, batchName, "SUCCESSFUL").
		Order("batch_start_time DESC").
		Limit(1).
		Find(&row)
	if result.Error != nil {
		return "", 0, "", false, exception.Fatal(moduleName, "failed to query last successful batch", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", 0, "", false, nil
	}
	return row.BatchNumber, row.RunNumber, row.ProcessDate, true, nil
}
