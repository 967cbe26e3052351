package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errEmptyValue        = errors.New("empty value")
	errUnbalancedParens  = errors.New("unbalanced parentheses")
	errDoubleNegative    = errors.New("negative value inside parentheses")
	errExponent          = errors.New("exponent notation in amount")
	errNumericDate       = errors.New("bare number is not a date")
	errMissingHeader     = errors.New("missing header row")
	errUnexpectedHeader  = errors.New("unexpected header")
	errInvalidOutputFile = errors.New("invalid output row")
)

// MissingFileError reports an input that does not exist.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("input file %q not found", e.Path)
}

func (e *MissingFileError) Unwrap() error { return e.Err }

// ParseError reports a source that is not a well-formed delimited table.
type ParseError struct {
	Source string
	Line   int // 0 when the error is not tied to a line
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatError reports a date, amount or supplier field that does not follow
// the expected textual convention.
type FormatError struct {
	Source string
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		fmt.Fprintf(&b, "%s: ", e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	fmt.Fprintf(&b, "invalid %s %q", e.Column, e.Value)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// SchemaError reports required columns that are absent from a source header.
type SchemaError struct {
	Source  string
	Missing []string
	Header  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source %s: missing required columns %q (header: %q)", e.Source, e.Missing, e.Header)
}

// EmptyJoinError reports that no (supplier, month) pair exists in both
// sources, which leaves the analytical questions undefined.
type EmptyJoinError struct {
	RegisteredKeys int
	BilledKeys     int
}

func (e *EmptyJoinError) Error() string {
	return fmt.Sprintf("join produced no rows (%d registered keys, %d billed keys)", e.RegisteredKeys, e.BilledKeys)
}

// OutputExistsError reports an output file that already exists for the run
// timestamp. Output files are never overwritten.
type OutputExistsError struct {
	Path string
}

func (e *OutputExistsError) Error() string {
	return fmt.Sprintf("output file %q already exists", e.Path)
}
