package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dvloznov/revenue-recon/internal/domain"
	"github.com/shopspring/decimal"
)

// OutputFileName names the output file of a run started at t.
func OutputFileName(t time.Time) string {
	return t.Format(OutputTimeLayout) + ".csv"
}

// WriteOutput writes rows to dir under the run's timestamped name and returns
// the file path. The file appears complete or not at all, and an existing
// file is never replaced.
func WriteOutput(dir string, started time.Time, rows []domain.ReconciledRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("WriteOutput: create dir: %w", err)
	}

	final := filepath.Join(dir, OutputFileName(started))
	if _, err := os.Stat(final); err == nil {
		return "", &OutputExistsError{Path: final}
	}

	tmp, err := os.CreateTemp(dir, ".recon-*.csv.tmp")
	if err != nil {
		return "", fmt.Errorf("WriteOutput: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(OutputHeader); err != nil {
		tmp.Close()
		return "", fmt.Errorf("WriteOutput: write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.Supplier, r.Registered.String(), r.Billed.String(), string(r.Month)}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return "", fmt.Errorf("WriteOutput: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("WriteOutput: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("WriteOutput: close temp file: %w", err)
	}

	// Link fails if the name was taken meanwhile; Rename would overwrite it.
	if err := os.Link(tmp.Name(), final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", &OutputExistsError{Path: final}
		}
		return "", fmt.Errorf("WriteOutput: publish %q: %w", final, err)
	}

	return final, nil
}

// ReadOutput reads back a file written by WriteOutput.
func ReadOutput(path string) ([]domain.ReconciledRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingFileError{Path: path, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("ReadOutput: open: %w", err)
	}
	defer f.Close()

	t, err := LoadTable(f, path, ',')
	if err != nil {
		return nil, err
	}
	if !slices.Equal(t.Header, OutputHeader) {
		return nil, &ParseError{Source: path, Line: 1, Err: fmt.Errorf("%w %q, want %q", errUnexpectedHeader, t.Header, OutputHeader)}
	}

	out := make([]domain.ReconciledRecord, 0, t.Len())
	for i, row := range t.Rows {
		line := i + 2
		registered, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, &ParseError{Source: path, Line: line, Err: fmt.Errorf("%w: registered: %v", errInvalidOutputFile, err)}
		}
		billed, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, &ParseError{Source: path, Line: line, Err: fmt.Errorf("%w: billed: %v", errInvalidOutputFile, err)}
		}
		month := domain.MonthKey(row[3])
		if !month.Valid() {
			return nil, &ParseError{Source: path, Line: line, Err: fmt.Errorf("%w: month %q", errInvalidOutputFile, row[3])}
		}
		out = append(out, domain.ReconciledRecord{
			Supplier:   row[0],
			Month:      month,
			Registered: registered,
			Billed:     billed,
		})
	}
	return out, nil
}
