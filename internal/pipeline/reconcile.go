package pipeline

import (
	"slices"

	"github.com/dvloznov/revenue-recon/internal/domain"
	"github.com/shopspring/decimal"
)

// JoinResult is the inner join of the registered and billed tables.
// Keys present in only one source are kept aside so they can be reported;
// they never reach Rows.
type JoinResult struct {
	Rows           []domain.ReconciledRecord // ordered by supplier, then month
	RegisteredOnly []domain.Key
	BilledOnly     []domain.Key
}

// Unmatched returns the number of keys dropped by the join.
func (j JoinResult) Unmatched() int {
	return len(j.RegisteredOnly) + len(j.BilledOnly)
}

// Join inner-joins the two tables on (supplier, month).
func Join(registered, billed AggregatedTable) JoinResult {
	var res JoinResult
	for _, k := range registered.Keys() {
		b, ok := billed[k]
		if !ok {
			res.RegisteredOnly = append(res.RegisteredOnly, k)
			continue
		}
		res.Rows = append(res.Rows, domain.ReconciledRecord{
			Supplier:   k.Entity,
			Month:      k.Month,
			Registered: registered[k],
			Billed:     b,
		})
	}
	for _, k := range billed.Keys() {
		if _, ok := registered[k]; !ok {
			res.BilledOnly = append(res.BilledOnly, k)
		}
	}
	return res
}

// Reconcile joins the tables and fails with an EmptyJoinError when no key is
// shared.
func Reconcile(registered, billed AggregatedTable) (JoinResult, error) {
	res := Join(registered, billed)
	if len(res.Rows) == 0 {
		return res, &EmptyJoinError{RegisteredKeys: len(registered), BilledKeys: len(billed)}
	}
	return res, nil
}

// MonthCount answers how many suppliers have an amount in one month.
type MonthCount struct {
	Month     domain.MonthKey
	Suppliers []string // sorted, distinct
}

// Count returns the number of distinct suppliers.
func (c MonthCount) Count() int { return len(c.Suppliers) }

// CountInMonth lists the distinct suppliers of t in month.
func CountInMonth(t AggregatedTable, month domain.MonthKey) MonthCount {
	c := MonthCount{Month: month, Suppliers: []string{}}
	for _, k := range t.Keys() {
		if k.Month == month {
			c.Suppliers = append(c.Suppliers, k.Entity)
		}
	}
	// Keys is unique per (entity, month), so entities are already distinct.
	return c
}

// Discrepancy is a reconciled row together with Registered minus Billed.
type Discrepancy struct {
	Record     domain.ReconciledRecord
	Difference decimal.Decimal
}

// MaxPositiveDiscrepancy returns the row with the largest Registered minus
// Billed. Ties go to the lowest supplier, then the lowest month. ok is false
// when no row has a strictly positive difference.
func MaxPositiveDiscrepancy(rows []domain.ReconciledRecord) (d Discrepancy, ok bool) {
	ranked := RankDiscrepancies(rows)
	if len(ranked) == 0 || !ranked[0].Difference.IsPositive() {
		return Discrepancy{}, false
	}
	return ranked[0], true
}

// RankDiscrepancies orders rows by difference descending, then supplier and
// month ascending.
func RankDiscrepancies(rows []domain.ReconciledRecord) []Discrepancy {
	out := make([]Discrepancy, len(rows))
	for i, r := range rows {
		out[i] = Discrepancy{Record: r, Difference: r.Discrepancy()}
	}
	slices.SortStableFunc(out, func(a, b Discrepancy) int {
		if c := b.Difference.Cmp(a.Difference); c != 0 {
			return c
		}
		return compareKeys(
			domain.Key{Entity: a.Record.Supplier, Month: a.Record.Month},
			domain.Key{Entity: b.Record.Supplier, Month: b.Record.Month},
		)
	})
	return out
}
