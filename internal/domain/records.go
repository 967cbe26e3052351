package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MonthKey is a calendar month in canonical YYYYMM form, e.g. "202208".
type MonthKey string

// NewMonthKey builds a MonthKey from a four-digit year and a month in 1..12.
func NewMonthKey(year, month int) (MonthKey, error) {
	if year < 1000 || year > 9999 {
		return "", fmt.Errorf("year %d is not four digits", year)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month %d out of range", month)
	}
	return MonthKey(fmt.Sprintf("%04d%02d", year, month)), nil
}

// Valid reports whether k is exactly six digits with a month in 01..12.
func (k MonthKey) Valid() bool {
	if len(k) != 6 {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return false
		}
	}
	m := (k[4]-'0')*10 + (k[5] - '0')
	return m >= 1 && m <= 12 && k[0] != '0'
}

// Year returns the year part of k. k must be valid.
func (k MonthKey) Year() int {
	y := 0
	for i := 0; i < 4; i++ {
		y = y*10 + int(k[i]-'0')
	}
	return y
}

// Month returns the month part of k (1..12). k must be valid.
func (k MonthKey) Month() int {
	return int(k[4]-'0')*10 + int(k[5]-'0')
}

func (k MonthKey) String() string { return string(k) }

// Key identifies one (supplier, month) group.
type Key struct {
	Entity string
	Month  MonthKey
}

// RawRecord is one source row reduced to the three fields the pipeline reads.
// The rest of the row stays in the loaded table and is ignored downstream.
type RawRecord struct {
	Line   int    // 1-based line in the source file, header is line 1
	Entity string // supplier / agency / advisory partner
	Date   string // free-form date text
	Amount string // currency text, e.g. "$(1,234.56)"
}

// NormalizedRecord is a RawRecord with a parsed month and amount.
type NormalizedRecord struct {
	Entity string
	Month  MonthKey
	Amount decimal.Decimal
}

// Key returns the grouping key of r.
func (r NormalizedRecord) Key() Key {
	return Key{Entity: r.Entity, Month: r.Month}
}

// AggregatedRecord is the summed amount of one (entity, month) group.
type AggregatedRecord struct {
	Entity string
	Month  MonthKey
	Amount decimal.Decimal
}

// ReconciledRecord pairs the registered and billed totals of a key present in
// both sources.
type ReconciledRecord struct {
	Supplier   string
	Month      MonthKey
	Registered decimal.Decimal
	Billed     decimal.Decimal
}

// Discrepancy is Registered minus Billed.
func (r ReconciledRecord) Discrepancy() decimal.Decimal {
	return r.Registered.Sub(r.Billed)
}
