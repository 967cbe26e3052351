package pipeline

import (
	"cmp"
	"slices"

	"github.com/dvloznov/revenue-recon/internal/domain"
	"github.com/shopspring/decimal"
)

// AggregatedTable holds one summed amount per (entity, month). It is an
// unordered collection; use Keys or Records for a stable order.
type AggregatedTable map[domain.Key]decimal.Decimal

// Aggregate sums record amounts per (entity, month).
func Aggregate(records []domain.NormalizedRecord) AggregatedTable {
	out := make(AggregatedTable)
	for _, r := range records {
		k := r.Key()
		if sum, ok := out[k]; ok {
			out[k] = sum.Add(r.Amount)
		} else {
			out[k] = r.Amount
		}
	}
	return out
}

// Keys returns the keys of t ordered by entity, then month.
func (t AggregatedTable) Keys() []domain.Key {
	keys := make([]domain.Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Records returns t as records ordered by entity, then month.
func (t AggregatedTable) Records() []domain.AggregatedRecord {
	keys := t.Keys()
	out := make([]domain.AggregatedRecord, len(keys))
	for i, k := range keys {
		out[i] = domain.AggregatedRecord{Entity: k.Entity, Month: k.Month, Amount: t[k]}
	}
	return out
}

func compareKeys(a, b domain.Key) int {
	if c := cmp.Compare(a.Entity, b.Entity); c != 0 {
		return c
	}
	return cmp.Compare(a.Month, b.Month)
}
