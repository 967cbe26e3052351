package pipeline

import (
	"strings"
	"testing"

	"github.com/dvloznov/revenue-recon/internal/domain"
)

func TestWriteReport(t *testing.T) {
	registered := Aggregate([]domain.NormalizedRecord{
		rec("Acme", "202208", "100"),
		rec("Beta", "202207", "9"),
	})
	billed := Aggregate([]domain.NormalizedRecord{
		rec("Acme", "202208", "80"),
		rec("Gamma", "202208", "3"),
	})
	report := BuildReport(registered, Join(registered, billed), "202208")

	var b strings.Builder
	if err := WriteReport(&b, report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"Analytical Questions\n",
		"1. How many Suppliers had revenue registered in August of 2022?\n",
		"Number of Suppliers with registered revenue in August of 2022 = 1\n",
		"Suppliers: ['Acme']\n",
		"Supplier: Acme\nMonth: 202208\n",
		"Discrepancy: 20.00 (Registered 100.00, Billed 80.00)\n",
		"Warning: 2 (Supplier, Month) pairs",
		"registered only: Beta 202207",
		"billed only:     Gamma 202208",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n--- report ---\n%s", want, out)
		}
	}
}

func TestWriteReport_NoPositiveDiscrepancy(t *testing.T) {
	table := Aggregate([]domain.NormalizedRecord{rec("Acme", "202208", "5")})
	report := BuildReport(table, Join(table, table), "202208")

	if report.Discrepancy != nil {
		t.Fatalf("Discrepancy = %+v, want nil", report.Discrepancy)
	}

	var b strings.Builder
	if err := WriteReport(&b, report); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, "There are no *positive* discrepancies") {
		t.Errorf("report does not state the absence of positive discrepancies:\n%s", out)
	}
	if strings.Contains(out, "Warning:") {
		t.Errorf("unexpected unmatched warning:\n%s", out)
	}
}

func TestMonthLabel(t *testing.T) {
	tests := map[domain.MonthKey]string{
		"202208": "August of 2022",
		"199901": "January of 1999",
		"2022":   "2022",
	}
	for in, want := range tests {
		if got := monthLabel(in); got != want {
			t.Errorf("monthLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
