package config

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dvloznov/revenue-recon/internal/domain"
	infra "github.com/dvloznov/revenue-recon/internal/infra/bigquery"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"github.com/dvloznov/revenue-recon/internal/pipeline"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys double as flag names and config file keys.
const (
	KeyRPM       = "rpm"
	KeySFDC      = "sfdc"
	KeyOutputDir = "output-dir"
	KeyMonth     = "month"
	KeyDelimiter = "delimiter"
	KeyLogLevel  = "log-level"
	KeyGCSBucket = "gcs-bucket"
	KeyGCSPrefix = "gcs-prefix"
	KeyBQProject = "bq-project"
	KeyBQDataset = "bq-dataset"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	RPMPath   string `mapstructure:"rpm"`
	SFDCPath  string `mapstructure:"sfdc"`
	OutputDir string `mapstructure:"output-dir"`
	Month     string `mapstructure:"month"`
	Delimiter string `mapstructure:"delimiter"`
	LogLevel  string `mapstructure:"log-level"`

	// Optional artifact upload.
	GCSBucket string `mapstructure:"gcs-bucket"`
	GCSPrefix string `mapstructure:"gcs-prefix"`

	// Optional run log.
	BQProject string `mapstructure:"bq-project"`
	BQDataset string `mapstructure:"bq-dataset"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPM, pipeline.DefaultBilledPath)
	v.SetDefault(KeySFDC, pipeline.DefaultRegisteredPath)
	v.SetDefault(KeyOutputDir, pipeline.DefaultOutputDir)
	v.SetDefault(KeyMonth, string(pipeline.DefaultReportMonth))
	v.SetDefault(KeyDelimiter, string(pipeline.DefaultDelimiter))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyBQDataset, infra.DefaultDatasetID)
}

// AddFlags registers the settings on fs with their defaults.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyRPM, pipeline.DefaultBilledPath, "billing (RPM) extract, local path or gs:// URI")
	fs.String(KeySFDC, pipeline.DefaultRegisteredPath, "registration (SFDC) extract, local path or gs:// URI")
	fs.String(KeyOutputDir, pipeline.DefaultOutputDir, "directory that receives the timestamped output CSV")
	fs.String(KeyMonth, string(pipeline.DefaultReportMonth), "report month for the supplier count (YYYYMM)")
	fs.String(KeyLogLevel, "info", "log level: debug, info, warn, error")
	fs.String(KeyGCSBucket, "", "upload the output file to this GCS bucket")
	fs.String(KeyGCSPrefix, "", "object prefix inside the GCS bucket")
	fs.String(KeyBQProject, "", "record the run in BigQuery under this project")
	fs.String(KeyBQDataset, infra.DefaultDatasetID, "BigQuery dataset of the run log")
}

// Load resolves the configuration from defaults, an optional YAML file and
// the flags in fs. Flags set on the command line win.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RPMPath == "" {
		errs = append(errs, errors.New("rpm path is empty"))
	}
	if c.SFDCPath == "" {
		errs = append(errs, errors.New("sfdc path is empty"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output dir is empty"))
	}
	if !domain.MonthKey(c.Month).Valid() {
		errs = append(errs, fmt.Errorf("month %q is not YYYYMM", c.Month))
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("delimiter %q must be a single character", c.Delimiter))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// PipelineOptions maps c onto the options of one reconciliation run.
func (c *Config) PipelineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.BilledPath = c.RPMPath
	opts.RegisteredPath = c.SFDCPath
	opts.OutputDir = c.OutputDir
	opts.ReportMonth = domain.MonthKey(c.Month)
	opts.Delimiter, _ = utf8.DecodeRuneInString(c.Delimiter)
	opts.GCSBucket = c.GCSBucket
	opts.GCSPrefix = c.GCSPrefix
	return opts
}
