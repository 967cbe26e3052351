package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/revenue-recon/internal/config"
	"github.com/dvloznov/revenue-recon/internal/gcsuploader"
	infra "github.com/dvloznov/revenue-recon/internal/infra/bigquery"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"github.com/dvloznov/revenue-recon/internal/pipeline"
	"github.com/spf13/cobra"
)

// runTimeout bounds one invocation, cloud calls included.
const runTimeout = 5 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "recon:", describe(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "recon",
		Short: "Reconcile registered (SFDC) and billed (RPM) revenue per supplier and month",
		Long: `recon loads the SFDC registration and RPM billing extracts, sums each per
(supplier, month), joins them and answers the analytical questions.

The joined rows are written to a new timestamped CSV in the output directory.

Examples:
  # Reference run: ./rpm_data.tsv and ./sfdc_data.tsv into ./output
  recon

  # Inputs from Cloud Storage, artifact uploaded and the run logged
  recon run --rpm gs://exports/rpm_data.tsv --sfdc gs://exports/sfdc_data.tsv \
    --gcs-bucket recon-artifacts --bq-project my-project`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecon(cmd, configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file")
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the reconciliation (same as the bare command)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRecon(cmd, configFile)
			},
		},
		newHistoryCmd(&configFile),
		newUploadCmd(&configFile),
		newMigrateCmd(&configFile),
	)
	return root
}

// setup loads the configuration and returns a context carrying the logger.
func setup(cmd *cobra.Command, configFile string) (context.Context, context.CancelFunc, *config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(level)

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	ctx = logger.WithContext(ctx, log)
	return ctx, cancel, cfg, nil
}

func runRecon(cmd *cobra.Command, configFile string) error {
	ctx, cancel, cfg, err := setup(cmd, configFile)
	if err != nil {
		return err
	}
	defer cancel()
	log := logger.FromContext(ctx)

	opts := cfg.PipelineOptions()
	var deps pipeline.Deps

	if opts.GCSBucket != "" || isGCS(opts.BilledPath) || isGCS(opts.RegisteredPath) {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return err
		}
		defer storage.Close()
		deps.Storage = storage
	}

	if cfg.BQProject != "" {
		repo, err := infra.NewBigQueryRunRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			return err
		}
		defer repo.Close()
		deps.Runs = repo
	}

	state, err := pipeline.Run(ctx, opts, deps)
	if err != nil {
		return err
	}

	if err := pipeline.WriteReport(cmd.OutOrStdout(), state.Report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	log.Debug().Str("run_id", state.RunID).Msg("Report written")
	return nil
}

func newHistoryCmd(configFile *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the BigQuery run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			defer cancel()

			if cfg.BQProject == "" {
				return errors.New("history: --bq-project is required")
			}
			repo, err := infra.NewBigQueryRunRepository(ctx, cfg.BQProject, cfg.BQDataset)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

func printRuns(w io.Writer, runs []*infra.RunRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tMONTH\tSTATUS\tROWS\tUNMATCHED\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			r.StartedTS.UTC().Format(time.RFC3339),
			r.ReportMonth,
			r.Status,
			nullInt(r.ReconciledRows.Valid, r.ReconciledRows.Int64),
			nullInt(r.UnmatchedKeys.Valid, r.UnmatchedKeys.Int64),
			r.OutputURI.StringVal,
		)
	}
	return tw.Flush()
}

func nullInt(valid bool, v int64) string {
	if !valid {
		return "-"
	}
	return fmt.Sprint(v)
}

func newUploadCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <output-file>",
		Short: "Copy an existing output file to Cloud Storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			defer cancel()

			if cfg.GCSBucket == "" {
				return errors.New("upload: --gcs-bucket is required")
			}
			// Refuse anything that is not a well-formed output file.
			if _, err := pipeline.ReadOutput(args[0]); err != nil {
				return err
			}

			storage, err := gcsuploader.NewGCSStorageService(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()

			object := gcsuploader.ObjectName(cfg.GCSPrefix, filepath.Base(args[0]))
			if err := storage.UploadFile(ctx, cfg.GCSBucket, object, args[0]); err != nil {
				return err
			}
			uri := gcsuploader.ObjectURI(cfg.GCSBucket, object)
			log := logger.FromContext(ctx)
			log.Info().Str("uri", uri).Msg("Uploaded output file")
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
}

func newMigrateCmd(configFile *string) *cobra.Command {
	var appliedBy string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the BigQuery run log tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			defer cancel()

			if cfg.BQProject == "" {
				return errors.New("migrate: --bq-project is required")
			}
			repo, err := infra.NewBigQueryRunRepository(ctx, cfg.BQProject, cfg.BQDataset)
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := repo.Migrate(ctx, appliedBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s.%s\n", n, cfg.BQProject, cfg.BQDataset)
			return nil
		},
	}
	cmd.Flags().StringVar(&appliedBy, "applied-by", "recon-migrate", "name recorded in schema_migrations")
	return cmd
}

func isGCS(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// describe turns a run failure into a one-line message for the operator.
func describe(err error) string {
	var (
		missing *pipeline.MissingFileError
		parse   *pipeline.ParseError
		format  *pipeline.FormatError
		schema  *pipeline.SchemaError
		empty   *pipeline.EmptyJoinError
		exists  *pipeline.OutputExistsError
	)
	switch {
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &schema):
		return "input columns changed: " + schema.Error()
	case errors.As(err, &parse):
		return "input is not well-formed: " + parse.Error()
	case errors.As(err, &format):
		return "unexpected value format: " + format.Error()
	case errors.As(err, &empty):
		return "nothing to reconcile: " + empty.Error()
	case errors.As(err, &exists):
		return exists.Error() + "; output files are never overwritten"
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %s: %v", runTimeout, err)
	default:
		return err.Error()
	}
}

