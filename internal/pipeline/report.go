package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/revenue-recon/internal/domain"
)

// Report carries the answers to the two analytical questions of a run.
type Report struct {
	MonthCount MonthCount

	// Discrepancy is nil when no reconciled row has Registered > Billed.
	Discrepancy *Discrepancy

	RegisteredOnly []domain.Key
	BilledOnly     []domain.Key
}

// BuildReport answers both questions for a finished join.
func BuildReport(registered AggregatedTable, join JoinResult, month domain.MonthKey) Report {
	r := Report{
		MonthCount:     CountInMonth(registered, month),
		RegisteredOnly: join.RegisteredOnly,
		BilledOnly:     join.BilledOnly,
	}
	if d, ok := MaxPositiveDiscrepancy(join.Rows); ok {
		r.Discrepancy = &d
	}
	return r
}

// WriteReport prints the human-readable answers.
func WriteReport(w io.Writer, r Report) error {
	label := monthLabel(r.MonthCount.Month)

	var b strings.Builder
	b.WriteString("Analytical Questions\n\n")

	fmt.Fprintf(&b, "1. How many Suppliers had revenue registered in %s?\n", label)
	fmt.Fprintf(&b, "Number of Suppliers with registered revenue in %s = %d\n", label, r.MonthCount.Count())
	fmt.Fprintf(&b, "Suppliers: %s\n\n", quoteList(r.MonthCount.Suppliers))

	b.WriteString("2. Which Supplier in which month had the largest positive discrepancy between what was registered and what was billed?\n")
	if r.Discrepancy != nil {
		fmt.Fprintf(&b, "Supplier: %s\nMonth: %s\n", r.Discrepancy.Record.Supplier, r.Discrepancy.Record.Month)
		fmt.Fprintf(&b, "Discrepancy: %s (Registered %s, Billed %s)\n",
			r.Discrepancy.Difference.StringFixed(2),
			r.Discrepancy.Record.Registered.StringFixed(2),
			r.Discrepancy.Record.Billed.StringFixed(2))
	} else {
		b.WriteString("There are no *positive* discrepancies (where Registered > Billed). All Suppliers for all Months either have (Billed = Registered) OR (Billed > Registered)\n")
	}

	if n := len(r.RegisteredOnly) + len(r.BilledOnly); n > 0 {
		fmt.Fprintf(&b, "\nWarning: %d (Supplier, Month) pairs exist in only one source and were left out of the join\n", n)
		for _, k := range r.RegisteredOnly {
			fmt.Fprintf(&b, "  registered only: %s %s\n", k.Entity, k.Month)
		}
		for _, k := range r.BilledOnly {
			fmt.Fprintf(&b, "  billed only:     %s %s\n", k.Entity, k.Month)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// monthLabel renders 202208 as "August of 2022".
func monthLabel(k domain.MonthKey) string {
	if !k.Valid() {
		return string(k)
	}
	return fmt.Sprintf("%s of %d", time.Month(k.Month()), k.Year())
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
