package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"google.golang.org/api/iterator"
)

const (
	runsTable           = "recon_runs"
	reconciledRowsTable = "reconciled_rows"

	maxErrorMessageLen = 2000
)

// StartRunWithClient inserts row into recon_runs with status=RUNNING. It uses
// a DML INSERT, not the streaming inserter: rows in the streaming buffer cannot
// be UPDATEd when the run finishes.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *RunRow) error {
	row.Status = StatusRunning

	sql, params := startRunQuery(datasetID, row)
	q := client.Query(sql)
	q.Parameters = params

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	return nil
}

func startRunQuery(datasetID string, row *RunRow) (string, []bigquery.QueryParameter) {
	sql := fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			started_ts,
			run_date,
			registered_source,
			billed_source,
			report_month,
			status
		)
		VALUES (
			@run_id,
			@started_ts,
			@run_date,
			@registered_source,
			@billed_source,
			@report_month,
			@status
		)
	`, datasetID, runsTable)

	params := []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "run_date", Value: row.RunDate},
		{Name: "registered_source", Value: row.RegisteredSource},
		{Name: "billed_source", Value: row.BilledSource},
		{Name: "report_month", Value: row.ReportMonth},
		{Name: "status", Value: row.Status},
	}
	return sql, params
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged, not returned: the run is already failing.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateErrorMessage(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update failed")
	}
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_ts and the run counters.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, outcome RunOutcome) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    reconciled_rows = @reconciled_rows,
		    unmatched_keys = @unmatched_keys,
		    output_uri = @output_uri
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "reconciled_rows", Value: int64(outcome.ReconciledRows)},
		{Name: "unmatched_keys", Value: int64(outcome.UnmatchedKeys)},
		{Name: "output_uri", Value: outcome.OutputURI},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// InsertReconciledRowsWithClient streams the joined rows of a run. These rows
// are never updated, so the streaming inserter is safe here.
func InsertReconciledRowsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*ReconciledRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(reconciledRowsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertReconciledRows: inserting rows: %w", err)
	}
	return nil
}

// ListRecentRunsWithClient returns the latest runs, newest first.
func ListRecentRunsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, limit int) ([]*RunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			started_ts,
			finished_ts,
			run_date,
			registered_source,
			billed_source,
			report_month,
			status,
			error_message,
			reconciled_rows,
			unmatched_keys,
			output_uri
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRuns: query read: %w", err)
	}

	var runs []*RunRow
	for {
		var r RunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentRuns: iter next: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
