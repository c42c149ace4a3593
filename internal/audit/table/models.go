package table

// BatchAudit mirrors etl_batch_audit.
type BatchAudit struct {
	SystemName     string `gorm:"column:system_name;primaryKey"`
	BatchNumber    string `gorm:"column:batch_number;primaryKey"`
	RunNumber      int    `gorm:"column:run_number;primaryKey"`
	BatchName      string `gorm:"column:batch_name"`
	ProcessDate    string `gorm:"column:process_date"`
	BatchStatus    string `gorm:"column:batch_status"`
	BatchStartTime string `gorm:"column:batch_start_time"`
	BatchEndTime   string `gorm:"column:batch_end_time"`
	BatchType      string `gorm:"column:batch_type"`
	BatchAlias     string `gorm:"column:batch_alias"`
	Heartbeat      string `gorm:"column:heartbeat"`
}

// TableName pins the GORM table name so it is never pluralized.
func (BatchAudit) TableName() string { return "etl_batch_audit" }

// ProcessAudit mirrors etl_process_audit.
type ProcessAudit struct {
	SystemName       string `gorm:"column:system_name;primaryKey"`
	BatchNumber      string `gorm:"column:batch_number;primaryKey"`
	ProcessName      string `gorm:"column:process_name;primaryKey"`
	RunNumber        int    `gorm:"column:run_number;primaryKey"`
	BatchName        string `gorm:"column:batch_name"`
	ProcessStatus    string `gorm:"column:process_status"`
	ProcessStartTime string `gorm:"column:process_start_time"`
	ProcessEndTime   string `gorm:"column:process_end_time"`
}

func (ProcessAudit) TableName() string { return "etl_process_audit" }
