package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Run statuses stored in recon_runs.status.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// RunRow is one reconciliation run in <dataset>.recon_runs.
type RunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE
	RunDate    civil.Date             `bigquery:"run_date"`    // REQUIRED, partition column

	RegisteredSource string `bigquery:"registered_source"` // REQUIRED
	BilledSource     string `bigquery:"billed_source"`     // REQUIRED
	ReportMonth      string `bigquery:"report_month"`      // REQUIRED, YYYYMM

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	ReconciledRows bigquery.NullInt64  `bigquery:"reconciled_rows"` // NULLABLE
	UnmatchedKeys  bigquery.NullInt64  `bigquery:"unmatched_keys"`  // NULLABLE
	OutputURI      bigquery.NullString `bigquery:"output_uri"`      // NULLABLE
}

// RunOutcome is what a successful run reports back to recon_runs.
type RunOutcome struct {
	ReconciledRows int
	UnmatchedKeys  int
	OutputURI      string
}

// ReconciledRow is one joined (supplier, month) in <dataset>.reconciled_rows.
type ReconciledRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	Supplier   string     `bigquery:"supplier"`    // REQUIRED
	Month      string     `bigquery:"month"`       // REQUIRED, YYYYMM
	MonthStart civil.Date `bigquery:"month_start"` // REQUIRED

	Registered  *big.Rat `bigquery:"registered"`  // REQUIRED NUMERIC
	Billed      *big.Rat `bigquery:"billed"`      // REQUIRED NUMERIC
	Discrepancy *big.Rat `bigquery:"discrepancy"` // REQUIRED NUMERIC

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
