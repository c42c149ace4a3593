// Package config parses the engine's flat `key=value` configuration file
// into a typed Config, the way a layered config.Config binds a merged set
// of sources into one struct (defaults, then file, then environment).
// Here there is only one file source, no YAML.
package config

// Criticality governs how the engine reacts to an audit-table update
// failure.
type Criticality string

const (
	CriticalityWarn  Criticality = "WARN"
	CriticalityError Criticality = "ERROR"
)

// Config holds every recognized flat-file configuration key.
type Config struct {
	ApplicationName          string      `mapstructure:"ApplicationName" validate:"required"`
	BatchName                string      `mapstructure:"BatchName" validate:"required"`
	JobPollInterval          int         `mapstructure:"JobPollInterval" validate:"min=1"`
	MaxParallelJobs          int         `mapstructure:"MaxParallelJobs" validate:"min=0"`
	MaxArchivedLogs          int         `mapstructure:"MaxArchivedLogs" validate:"min=0"`
	PerformAuditTableUpdates bool        `mapstructure:"-"`
	AuditTableUpdateInterval int         `mapstructure:"AuditTableUpdateInterval" validate:"min=1"`
	AuditTableCriticality    Criticality `mapstructure:"AuditTableCriticality" validate:"oneof=WARN ERROR"`
	// AuditTableDriver selects the GORM dialect for the audit table
	// connection. Not part of the original flat-file keys; the engine
	// needs it to pick among the mysql/postgres/sqlite dialects it wires.
	AuditTableDriver string `mapstructure:"AuditTableDriver" validate:"omitempty,oneof=mysql postgres sqlite"`
	BfConnectString          string      `mapstructure:"BfConnectString"`
	BfUserId                 string      `mapstructure:"BfUserId"`
	BfUserPassword           string      `mapstructure:"BfUserPassword"`
	BfBinFileDirectory       string      `mapstructure:"BfBinFileDirectory"`
	BfLogFileDirectory       string      `mapstructure:"BfLogFileDirectory"`
	BfLockFileDirectory      string      `mapstructure:"BfLockFileDirectory"`
	BinFileDirectory         string      `mapstructure:"BinFileDirectory" validate:"required"`
	LogFileDirectory         string      `mapstructure:"LogFileDirectory" validate:"required"`
	PollFileDirectory        string      `mapstructure:"PollFileDirectory" validate:"required"`
	WorkFileDirectory        string      `mapstructure:"WorkFileDirectory"`
	SendFailureMessage       bool        `mapstructure:"-"`
	AlertEMailList           string      `mapstructure:"AlertEMailList"`

	// EnableTracing turns on span emission for the scheduler loop. Not an
	// original flat-file key; there is no tracing collector in scope for
	// the documented deployment, so it defaults off and writes spans to
	// the engine's own log directory when turned on.
	EnableTracing bool `mapstructure:"-"`

	// raw string forms, converted into the typed fields above after binding.
	PerformAuditTableUpdatesRaw string `mapstructure:"PerformAuditTableUpdates"`
	SendFailureMessageRaw       string `mapstructure:"SendFailureMessage"`
	EnableTracingRaw            string `mapstructure:"EnableTracing"`
}

// Defaults returns a Config populated with the documented default values,
// before a file is merged in.
func Defaults() *Config {
	return &Config{
		JobPollInterval:          2,
		MaxParallelJobs:          0,
		MaxArchivedLogs:          3,
		AuditTableUpdateInterval: 2,
		AuditTableCriticality:    CriticalityWarn,
		AuditTableDriver:         "mysql",
	}
}

func yesNo(s string) bool {
	return s == "Y" || s == "y"
}

// normalize converts the Y/N raw string fields into bools. Called after
// mapstructure binding, which cannot itself express Y/N -> bool.
func (c *Config) normalize() {
	c.PerformAuditTableUpdates = yesNo(c.PerformAuditTableUpdatesRaw)
	c.SendFailureMessage = yesNo(c.SendFailureMessageRaw)
	c.EnableTracing = yesNo(c.EnableTracingRaw)
}
