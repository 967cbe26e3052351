package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/revenue-recon/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlags(t), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		RPMPath:   "rpm_data.tsv",
		SFDCPath:  "sfdc_data.tsv",
		OutputDir: "output",
		Month:     "202208",
		Delimiter: "\t",
		LogLevel:  "info",
		BQDataset: "revenue",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(pipeline.DefaultOptions(), cfg.PipelineOptions()); diff != "" {
		t.Errorf("PipelineOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recon.yaml")
	yaml := "rpm: /data/rpm.tsv\nmonth: \"202207\"\ngcs-bucket: from-file\ndelimiter: \",\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlags(t, "--gcs-bucket", "from-flag", "--log-level", "debug"), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RPMPath != "/data/rpm.tsv" {
		t.Errorf("RPMPath = %q, want value from file", cfg.RPMPath)
	}
	if cfg.Month != "202207" {
		t.Errorf("Month = %q, want 202207", cfg.Month)
	}
	if cfg.GCSBucket != "from-flag" {
		t.Errorf("GCSBucket = %q, want flag to win over file", cfg.GCSBucket)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.SFDCPath != "sfdc_data.tsv" {
		t.Errorf("SFDCPath = %q, want default", cfg.SFDCPath)
	}

	opts := cfg.PipelineOptions()
	if opts.Delimiter != ',' || opts.BilledPath != "/data/rpm.tsv" || opts.GCSBucket != "from-flag" {
		t.Errorf("PipelineOptions() = %+v", opts)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	if _, err := Load(newFlags(t), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want read failure")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad month", func(c *Config) { c.Month = "2022-08" }, "month"},
		{"month zero", func(c *Config) { c.Month = "202200" }, "month"},
		{"empty rpm", func(c *Config) { c.RPMPath = "" }, "rpm path"},
		{"empty sfdc", func(c *Config) { c.SFDCPath = "" }, "sfdc path"},
		{"empty output", func(c *Config) { c.OutputDir = "" }, "output dir"},
		{"long delimiter", func(c *Config) { c.Delimiter = "||" }, "delimiter"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				RPMPath:   "rpm.tsv",
				SFDCPath:  "sfdc.tsv",
				OutputDir: "out",
				Month:     "202208",
				Delimiter: "\t",
				LogLevel:  "info",
			}
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
