package models

import "time"

// ErrorKind identifies a hard validation error that rejects a record.
type ErrorKind string

const (
	ErrInvalidEntityCode ErrorKind = "invalid_entity_code"
	ErrInvalidPeriod     ErrorKind = "invalid_period"
	ErrRowBuildFailed    ErrorKind = "row_build_failed"
)

// WarningKind identifies a soft finding that does not reject a record.
type WarningKind string

const (
	WarnLowCompleteness WarningKind = "low_completeness"
)

// ValidationVerdict is the per-record outcome of validation. Not persisted.
type ValidationVerdict struct {
	IsValid      bool
	Errors       []ErrorKind
	Warnings     []WarningKind
	Completeness float64
}

// RunState is the orchestrator's state for a single pipeline run.
type RunState string

const (
	StateIdle                  RunState = "idle"
	StateStreaming             RunState = "streaming"
	StateDraining              RunState = "draining"
	StateCompleted             RunState = "completed"
	StateCompletedWithFailures RunState = "completed_with_failures"
	StateAborted               RunState = "aborted"
)

// RunSummary is the terminal artifact of one pipeline run.
type RunSummary struct {
	RunID            string         `json:"run_id"`
	SourcePath       string         `json:"source_path"`
	State            RunState       `json:"state"`
	RowsRead         int            `json:"rows_read"`
	RecordsWritten   int            `json:"records_written"`
	RecordsRejected  int            `json:"records_rejected"`
	RecordsWarned    int            `json:"records_warned"`
	RejectionReasons map[string]int `json:"rejection_reasons"`
	FailedBatches    int            `json:"failed_batches"`
	DistinctEntities int            `json:"distinct_entities"`
	DistinctPeriods  int            `json:"distinct_periods"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
}

// Severity classifies how bad an audit discrepancy is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AuditReport summarizes a live-store snapshot against expected
// cardinalities. Created on demand, written out once, never mutated.
type AuditReport struct {
	ReportID         string    `json:"report_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	TotalRecords     int       `json:"total_records"`
	DistinctEntities int       `json:"distinct_entities"`
	ExpectedEntities int       `json:"expected_entities"`
	MissingEntities  int       `json:"missing_entities"`
	DistinctPeriods  int       `json:"distinct_periods"`
	ExpectedPeriods  int       `json:"expected_periods"`

	// AbsentMustHave lists the named must-have entities with no records
	// at all in the store.
	AbsentMustHave []string `json:"absent_must_have"`

	// CompletenessByDomain is the populated-leaf percentage per domain
	// across every scanned record, in [0,100].
	CompletenessByDomain map[string]float64 `json:"completeness_by_domain"`

	Severity        Severity `json:"severity"`
	Recommendations []string `json:"recommendations"`
}
