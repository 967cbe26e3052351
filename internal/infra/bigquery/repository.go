package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DefaultDatasetID is used when no dataset is configured.
const DefaultDatasetID = "revenue"

// BigQueryRunRepository records reconciliation runs in BigQuery. It holds one
// client for the whole run.
type BigQueryRunRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryRunRepository creates a repository for projectID/datasetID.
func NewBigQueryRunRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRunRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryRunRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun inserts row with status=RUNNING.
func (r *BigQueryRunRepository) StartRun(ctx context.Context, row *RunRow) error {
	return StartRunWithClient(ctx, r.client, r.datasetID, row)
}

// MarkRunFailed sets status=FAILED for runID.
func (r *BigQueryRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.datasetID, runID, runErr)
}

// MarkRunSucceeded sets status=SUCCESS for runID.
func (r *BigQueryRunRepository) MarkRunSucceeded(ctx context.Context, runID string, outcome RunOutcome) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.datasetID, runID, outcome)
}

// InsertReconciledRows streams the joined rows of a run.
func (r *BigQueryRunRepository) InsertReconciledRows(ctx context.Context, rows []*ReconciledRow) error {
	return InsertReconciledRowsWithClient(ctx, r.client, r.datasetID, rows)
}

// ListRecentRuns returns up to limit runs, newest first.
func (r *BigQueryRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	return ListRecentRunsWithClient(ctx, r.client, r.datasetID, limit)
}

// Migrate creates or updates the run log tables.
func (r *BigQueryRunRepository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	return MigrateWithClient(ctx, r.client, r.client.Project(), r.datasetID, appliedBy)
}
