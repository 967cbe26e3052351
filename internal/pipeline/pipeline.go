package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	bigquerylib "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/revenue-recon/internal/domain"
	infra "github.com/dvloznov/revenue-recon/internal/infra/bigquery"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"github.com/google/uuid"
)

// Options configures one reconciliation run.
type Options struct {
	RegisteredPath string
	BilledPath     string

	RegisteredSchema SourceSchema
	BilledSchema     SourceSchema

	Delimiter   rune
	OutputDir   string
	ReportMonth domain.MonthKey

	// Optional: upload the output file to gs://GCSBucket/GCSPrefix/.
	GCSBucket string
	GCSPrefix string
}

// DefaultOptions returns the fixed input contract.
func DefaultOptions() Options {
	return Options{
		RegisteredPath:   DefaultRegisteredPath,
		BilledPath:       DefaultBilledPath,
		RegisteredSchema: RegisteredSchema,
		BilledSchema:     BilledSchema,
		Delimiter:        DefaultDelimiter,
		OutputDir:        DefaultOutputDir,
		ReportMonth:      DefaultReportMonth,
	}
}

// Validate checks opts before any file is touched.
func (o Options) Validate() error {
	var errs []error
	if o.RegisteredPath == "" {
		errs = append(errs, errors.New("registered source path is empty"))
	}
	if o.BilledPath == "" {
		errs = append(errs, errors.New("billed source path is empty"))
	}
	if o.OutputDir == "" {
		errs = append(errs, errors.New("output directory is empty"))
	}
	if !o.ReportMonth.Valid() {
		errs = append(errs, fmt.Errorf("report month %q is not YYYYMM", o.ReportMonth))
	}
	if o.Delimiter == 0 {
		errs = append(errs, errors.New("delimiter is not set"))
	}
	if err := o.RegisteredSchema.Check(); err != nil {
		errs = append(errs, err)
	}
	if err := o.BilledSchema.Check(); err != nil {
		errs = append(errs, err)
	}
	if o.RegisteredSchema.Target != ColumnRegistered {
		errs = append(errs, fmt.Errorf("registered schema targets %q", o.RegisteredSchema.Target))
	}
	if o.BilledSchema.Target != ColumnBilled {
		errs = append(errs, fmt.Errorf("billed schema targets %q", o.BilledSchema.Target))
	}
	return errors.Join(errs...)
}

// Deps are the optional external services of a run. Both may be nil.
type Deps struct {
	Storage StorageService
	Runs    RunRepository

	// Now returns the run start time. Defaults to time.Now.
	Now func() time.Time
}

// Run executes one reconciliation. On error no report is produced and no
// output file is left behind, even when a step after the write failed.
func Run(ctx context.Context, opts Options, deps Deps) (*PipelineState, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("Run: invalid options: %w", err)
	}
	if opts.GCSBucket != "" && deps.Storage == nil {
		return nil, errors.New("Run: GCS bucket configured without a storage service")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	state := &PipelineState{
		RunID:     uuid.NewString(),
		StartedAt: now(),
	}

	log := logger.WithRun(logger.FromContext(ctx), state.RunID, state.StartedAt)
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("registered_source", opts.RegisteredPath).
		Str("billed_source", opts.BilledPath).
		Str("report_month", opts.ReportMonth.String()).
		Msg("Starting reconciliation run")

	if deps.Runs != nil {
		if err := deps.Runs.StartRun(ctx, newRunRow(state, opts)); err != nil {
			return nil, fmt.Errorf("Run: start run log: %w", err)
		}
	}

	if err := NewReconciliationPipeline(opts, deps).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Reconciliation run failed")
		discardOutput(ctx, state)
		if deps.Runs != nil {
			deps.Runs.MarkRunFailed(ctx, state.RunID, err)
		}
		return nil, err
	}

	if deps.Runs != nil {
		outcome := infra.RunOutcome{
			ReconciledRows: len(state.Join.Rows),
			UnmatchedKeys:  state.Join.Unmatched(),
			OutputURI:      state.OutputURI,
		}
		if err := deps.Runs.MarkRunSucceeded(ctx, state.RunID, outcome); err != nil {
			log.Error().Err(err).Msg("Recording run outcome failed")
			discardOutput(ctx, state)
			return nil, fmt.Errorf("Run: %w", err)
		}
	}

	log.Info().
		Str("output", state.OutputURI).
		Int("reconciled_rows", len(state.Join.Rows)).
		Msg("Reconciliation run completed")

	return state, nil
}

// discardOutput removes the output file of a run that failed after writing
// it. A failed run leaves nothing in the output directory.
func discardOutput(ctx context.Context, state *PipelineState) {
	if state.OutputPath == "" {
		return
	}
	log := logger.FromContext(ctx)
	if err := os.Remove(state.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Str("path", state.OutputPath).Msg("Removing output of failed run")
		return
	}
	log.Warn().Str("path", state.OutputPath).Msg("Removed output of failed run")
	state.OutputPath = ""
}

func newRunRow(state *PipelineState, opts Options) *infra.RunRow {
	return &infra.RunRow{
		RunID:            state.RunID,
		StartedTS:        state.StartedAt,
		RunDate:          civil.DateOf(state.StartedAt),
		RegisteredSource: opts.RegisteredPath,
		BilledSource:     opts.BilledPath,
		ReportMonth:      opts.ReportMonth.String(),
		Status:           infra.StatusRunning,
		OutputURI:        bigquerylib.NullString{Valid: false},
	}
}

// toReconciledRows maps joined records onto the reconciled_rows table schema.
func toReconciledRows(runID string, rows []domain.ReconciledRecord, created time.Time) []*infra.ReconciledRow {
	out := make([]*infra.ReconciledRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, &infra.ReconciledRow{
			RunID:       runID,
			Supplier:    r.Supplier,
			Month:       r.Month.String(),
			MonthStart:  civil.Date{Year: r.Month.Year(), Month: time.Month(r.Month.Month()), Day: 1},
			Registered:  r.Registered.Rat(),
			Billed:      r.Billed.Rat(),
			Discrepancy: r.Discrepancy().Rat(),
			CreatedTS:   created,
		})
	}
	return out
}
