package config

const (
	DefaultTimeZone = "Asia/Kolkata"

	// Parser paging and reporting
	BatchSize         = 1000
	MaxReportedErrors = 50

	// Ledger application
	DefaultWorkers            = 4
	DefaultMaxConflictRetries = 3
	DefaultPaymentAmount      = "0.00"
	ApplyDefaultAmount        = true

	// Arrangement sweep
	DefaultSweepSchedule = "5 0 * * *" // once a day, just after midnight
	SweepBatchSize       = 100
	SweepMaxConcurrent   = 10

	DefaultGatewayPort  = 8080
	DefaultServicesFile = "../services.yaml"
)
