package sync

// Config holds configuration for synchronization runs.
type Config struct {
	// Direction is the default direction (infoblox-to-inventory, inventory-to-infoblox).
	Direction string `mapstructure:"direction" default:"infoblox-to-inventory"`
	// Workers bounds concurrent operations within a phase.
	Workers int `mapstructure:"workers" default:"1"`
	// ArchiveReports stores every applied run report in object storage.
	ArchiveReports bool `mapstructure:"archive_reports" default:"false"`
	// ReportPrefix is the object key prefix of archived reports.
	ReportPrefix string `mapstructure:"report_prefix" default:"reports/sync"`
	// ReportRetention is the number of archived reports kept. Zero keeps all of them.
	ReportRetention int `mapstructure:"report_retention" default:"0"`
	// TimeoutSeconds is the deadline of a single run. Zero means no deadline.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"0"`
}
