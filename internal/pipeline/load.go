package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/dvloznov/revenue-recon/internal/logger"
)

// Table is a delimited source held in memory with every column and the
// original row order.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// Column returns the position of the named header column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// LoadTable reads a delimited table with a header row from r. Every data row
// must have exactly as many fields as the header.
func LoadTable(r io.Reader, name string, delim rune) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	// Zero makes the header width binding for every following row.
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Source: name, Err: errMissingHeader}
	}
	if err != nil {
		return nil, csvParseError(name, err)
	}

	t := &Table{
		Name:   name,
		Header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, col := range header {
		col = strings.TrimSpace(col)
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		t.Header[i] = col
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvParseError(name, err)
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// LoadFile loads a table from a local path or, when the path is a gs:// URI,
// from Cloud Storage through storage. storage may be nil for local paths.
func LoadFile(ctx context.Context, storage StorageService, path string, delim rune) (*Table, error) {
	log := logger.FromContext(ctx)

	var data []byte
	if strings.HasPrefix(path, "gs://") {
		if storage == nil {
			return nil, fmt.Errorf("LoadFile: %s: no storage service configured for gs:// inputs", path)
		}
		b, err := storage.FetchFromGCS(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("LoadFile: %w", err)
		}
		data = b
	} else {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{Path: path, Err: err}
		}
		if err != nil {
			return nil, fmt.Errorf("LoadFile: read %q: %w", path, err)
		}
		data = b
	}

	t, err := LoadTable(bytes.NewReader(data), path, delim)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", path).
		Int("columns", len(t.Header)).
		Int("rows", t.Len()).
		Msg("Loaded source table")

	return t, nil
}

func csvParseError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Source: name, Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Source: name, Err: err}
}
