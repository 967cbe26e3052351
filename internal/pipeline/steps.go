package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dvloznov/revenue-recon/internal/domain"
	"github.com/dvloznov/revenue-recon/internal/gcsuploader"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single step in the reconciliation pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	StartedAt time.Time

	RegisteredTable *Table
	BilledTable     *Table

	Registered []domain.NormalizedRecord
	Billed     []domain.NormalizedRecord

	RegisteredTotals AggregatedTable
	BilledTotals     AggregatedTable

	Join   JoinResult
	Report Report

	OutputPath string
	OutputURI  string // gs:// URI when uploaded, else OutputPath
}

// Step 1: LoadSourcesStep reads both extracts into tables.
type LoadSourcesStep struct {
	Options Options
	Storage StorageService
}

func (s *LoadSourcesStep) Name() string { return "load" }

func (s *LoadSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	registered, err := LoadFile(ctx, s.Storage, s.Options.RegisteredPath, s.Options.Delimiter)
	if err != nil {
		return err
	}
	billed, err := LoadFile(ctx, s.Storage, s.Options.BilledPath, s.Options.Delimiter)
	if err != nil {
		return err
	}
	state.RegisteredTable = registered
	state.BilledTable = billed
	return nil
}

// Step 2: NormalizeStep parses dates and amounts of both sources.
type NormalizeStep struct {
	Options Options
}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	registered, err := Normalize(ctx, state.RegisteredTable, s.Options.RegisteredSchema)
	if err != nil {
		return err
	}
	billed, err := Normalize(ctx, state.BilledTable, s.Options.BilledSchema)
	if err != nil {
		return err
	}
	state.Registered = registered
	state.Billed = billed
	return nil
}

// Step 3: AggregateStep sums each source per (supplier, month).
type AggregateStep struct{}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	state.RegisteredTotals = Aggregate(state.Registered)
	state.BilledTotals = Aggregate(state.Billed)

	log := logger.FromContext(ctx)
	logTotals(log, ColumnRegistered, state.RegisteredTotals)
	logTotals(log, ColumnBilled, state.BilledTotals)
	log.Info().
		Int("registered_keys", len(state.RegisteredTotals)).
		Int("billed_keys", len(state.BilledTotals)).
		Msg("Aggregated sources")
	return nil
}

func logTotals(log zerolog.Logger, column string, t AggregatedTable) {
	if log.GetLevel() > zerolog.DebugLevel {
		return
	}
	for _, r := range t.Records() {
		log.Debug().
			Str("column", column).
			Str("supplier", r.Entity).
			Str("month", r.Month.String()).
			Str("amount", r.Amount.String()).
			Msg("Aggregated total")
	}
}

// Step 4: ReconcileStep joins the totals and answers the analytical questions.
type ReconcileStep struct {
	Options Options
}

func (s *ReconcileStep) Name() string { return "reconcile" }

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	join, err := Reconcile(state.RegisteredTotals, state.BilledTotals)
	if err != nil {
		return err
	}
	state.Join = join
	state.Report = BuildReport(state.RegisteredTotals, join, s.Options.ReportMonth)

	for _, k := range join.RegisteredOnly {
		log.Warn().Str("supplier", k.Entity).Str("month", k.Month.String()).Msg("Registered amount has no billed counterpart")
	}
	for _, k := range join.BilledOnly {
		log.Warn().Str("supplier", k.Entity).Str("month", k.Month.String()).Msg("Billed amount has no registered counterpart")
	}
	log.Info().
		Int("reconciled_rows", len(join.Rows)).
		Int("unmatched_keys", join.Unmatched()).
		Msg("Reconciled sources")
	return nil
}

// Step 5: WriteOutputStep writes the timestamped output file.
type WriteOutputStep struct {
	Options Options
}

func (s *WriteOutputStep) Name() string { return "write" }

func (s *WriteOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	path, err := WriteOutput(s.Options.OutputDir, state.StartedAt, state.Join.Rows)
	if err != nil {
		return err
	}
	state.OutputPath = path
	state.OutputURI = path

	log := logger.FromContext(ctx)
	log.Info().Str("path", path).Msg("Wrote output file")
	return nil
}

// Step 6: UploadOutputStep copies the output file to Cloud Storage.
type UploadOutputStep struct {
	Options Options
	Storage StorageService
}

func (s *UploadOutputStep) Name() string { return "upload" }

func (s *UploadOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	object := gcsuploader.ObjectName(s.Options.GCSPrefix, filepath.Base(state.OutputPath))
	if err := s.Storage.UploadFile(ctx, s.Options.GCSBucket, object, state.OutputPath); err != nil {
		return err
	}
	state.OutputURI = gcsuploader.ObjectURI(s.Options.GCSBucket, object)

	log := logger.FromContext(ctx)
	log.Info().Str("uri", state.OutputURI).Msg("Uploaded output file")
	return nil
}

// Step 7: RecordRowsStep stores the reconciled rows in the run log.
type RecordRowsStep struct {
	Runs RunRepository
}

func (s *RecordRowsStep) Name() string { return "record" }

func (s *RecordRowsStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Runs.InsertReconciledRows(ctx, toReconciledRows(state.RunID, state.Join.Rows, time.Now()))
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first
// failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		log.Debug().Int("step", i+1).Str("name", step.Name()).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewReconciliationPipeline builds the standard pipeline. Upload and record
// steps are included only when their dependency is configured.
func NewReconciliationPipeline(opts Options, deps Deps) *Pipeline {
	steps := []PipelineStep{
		&LoadSourcesStep{Options: opts, Storage: deps.Storage},
		&NormalizeStep{Options: opts},
		&AggregateStep{},
		&ReconcileStep{Options: opts},
		&WriteOutputStep{Options: opts},
	}
	if opts.GCSBucket != "" && deps.Storage != nil {
		steps = append(steps, &UploadOutputStep{Options: opts, Storage: deps.Storage})
	}
	if deps.Runs != nil {
		steps = append(steps, &RecordRowsStep{Runs: deps.Runs})
	}
	return NewPipeline(steps...)
}
