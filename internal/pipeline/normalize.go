package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dvloznov/revenue-recon/internal/domain"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"github.com/shopspring/decimal"
)

// currencySymbols may lead an amount, inside or outside the parentheses.
var currencySymbols = []string{"$", "€", "£", "¥"}

// ParseMonthKey parses a free-form date and reduces it to its YYYYMM month.
// Ambiguous numeric dates are read month first (8/1/2022 is August).
func ParseMonthKey(s string) (domain.MonthKey, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return "", &FormatError{Column: "date", Value: s, Err: errEmptyValue}
	}

	// dateparse reads long digit runs as Unix timestamps.
	if len(value) > 8 && isDigits(value) {
		return "", &FormatError{Column: "date", Value: s, Err: errNumericDate}
	}

	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return "", &FormatError{Column: "date", Value: s, Err: err}
	}

	key, err := domain.NewMonthKey(t.Year(), int(t.Month()))
	if err != nil {
		return "", &FormatError{Column: "date", Value: s, Err: err}
	}
	return key, nil
}

// ParseAmount parses currency text such as "$1,234.56" or "$(1,234.56)".
// Parenthesized amounts are negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	fail := func(err error) (decimal.Decimal, error) {
		return decimal.Zero, &FormatError{Column: "amount", Value: s, Err: err}
	}

	value := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	value = trimCurrencySymbol(value)

	negative := false
	open, closed := strings.HasPrefix(value, "("), strings.HasSuffix(value, ")")
	if open != closed {
		return fail(errUnbalancedParens)
	}
	if open {
		negative = true
		value = trimCurrencySymbol(strings.TrimSpace(value[1 : len(value)-1]))
		if strings.HasPrefix(value, "-") {
			return fail(errDoubleNegative)
		}
	}

	// "-$5.00" carries its sign ahead of the symbol.
	if rest, ok := strings.CutPrefix(value, "-"); ok {
		negative = true
		value = trimCurrencySymbol(rest)
	}

	if value == "" {
		return fail(errEmptyValue)
	}

	if strings.ContainsAny(value, "eE") {
		return fail(errExponent)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return fail(err)
	}
	if d.IsNegative() {
		// A second sign survived the symbol strip, e.g. "--5".
		return fail(errDoubleNegative)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func trimCurrencySymbol(s string) string {
	for _, sym := range currencySymbols {
		if rest, ok := strings.CutPrefix(s, sym); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

// Extract pulls the schema columns out of every row of t.
func Extract(t *Table, schema SourceSchema) ([]domain.RawRecord, error) {
	idx, err := schema.resolve(t)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, t.Len())
	for i, row := range t.Rows {
		out = append(out, domain.RawRecord{
			Line:   i + 2,
			Entity: row[idx.entity],
			Date:   row[idx.date],
			Amount: row[idx.amount],
		})
	}
	return out, nil
}

// NormalizeRecords parses the month and amount of every record. The first
// failing record aborts the whole source.
func NormalizeRecords(raw []domain.RawRecord, schema SourceSchema) ([]domain.NormalizedRecord, error) {
	out := make([]domain.NormalizedRecord, 0, len(raw))
	for _, r := range raw {
		entity := strings.TrimSpace(r.Entity)
		if entity == "" {
			return nil, &FormatError{Source: schema.Name, Line: r.Line, Column: schema.EntityColumn, Value: r.Entity, Err: errEmptyValue}
		}

		month, err := ParseMonthKey(r.Date)
		if err != nil {
			return nil, located(err, schema.Name, r.Line, schema.DateColumn)
		}

		amount, err := ParseAmount(r.Amount)
		if err != nil {
			return nil, located(err, schema.Name, r.Line, schema.AmountColumn)
		}

		out = append(out, domain.NormalizedRecord{
			Entity: entity,
			Month:  month,
			Amount: amount,
		})
	}
	return out, nil
}

// Normalize extracts and normalizes one loaded source.
func Normalize(ctx context.Context, t *Table, schema SourceSchema) ([]domain.NormalizedRecord, error) {
	raw, err := Extract(t, schema)
	if err != nil {
		return nil, err
	}
	records, err := NormalizeRecords(raw, schema)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("source", schema.Name).
		Int("records", len(records)).
		Msg("Normalized source")

	return records, nil
}

// located fills in where a FormatError came from.
func located(err error, source string, line int, column string) error {
	if fe, ok := err.(*FormatError); ok {
		fe.Source = source
		fe.Line = line
		fe.Column = column
	}
	return err
}
