package pipeline

import (
	"context"

	infra "github.com/dvloznov/revenue-recon/internal/infra/bigquery"
)

// StorageService reads gs:// inputs and publishes output files.
// Implemented by gcsuploader.GCSStorageService and by test mocks.
type StorageService interface {
	// FetchFromGCS downloads the bytes of a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// UploadFile uploads a local file to bucketName/objectName.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error
}

// RunRepository records each run and its reconciled rows.
// Implemented by infra.BigQueryRunRepository and by test mocks.
type RunRepository interface {
	// StartRun inserts the run with status=RUNNING.
	StartRun(ctx context.Context, row *infra.RunRow) error

	// MarkRunFailed sets status=FAILED. Errors are logged by the implementation.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// MarkRunSucceeded sets status=SUCCESS with the run counters.
	MarkRunSucceeded(ctx context.Context, runID string, outcome infra.RunOutcome) error

	// InsertReconciledRows stores the joined rows of a run.
	InsertReconciledRows(ctx context.Context, rows []*infra.ReconciledRow) error
}
