package pipeline

import (
	"errors"
	"testing"

	"github.com/dvloznov/revenue-recon/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func reconciled(supplier string, month domain.MonthKey, registered, billed int64) domain.ReconciledRecord {
	return domain.ReconciledRecord{
		Supplier:   supplier,
		Month:      month,
		Registered: decimal.NewFromInt(registered),
		Billed:     decimal.NewFromInt(billed),
	}
}

func TestJoin(t *testing.T) {
	registered := Aggregate([]domain.NormalizedRecord{
		rec("Acme", "202208", "100"),
		rec("Beta", "202208", "50"),
		rec("Acme", "202207", "10"),
	})
	billed := Aggregate([]domain.NormalizedRecord{
		rec("Acme", "202208", "80"),
		rec("Acme", "202207", "10"),
		rec("Gamma", "202208", "5"),
	})

	got := Join(registered, billed)

	wantRows := []domain.ReconciledRecord{
		reconciled("Acme", "202207", 10, 10),
		reconciled("Acme", "202208", 100, 80),
	}
	if diff := cmp.Diff(wantRows, got.Rows, decimalEqual); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.Key{{Entity: "Beta", Month: "202208"}}, got.RegisteredOnly); diff != "" {
		t.Errorf("RegisteredOnly mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.Key{{Entity: "Gamma", Month: "202208"}}, got.BilledOnly); diff != "" {
		t.Errorf("BilledOnly mismatch (-want +got):\n%s", diff)
	}
	if got.Unmatched() != 2 {
		t.Errorf("Unmatched() = %d, want 2", got.Unmatched())
	}
}

func TestJoin_Containment(t *testing.T) {
	registered := Aggregate([]domain.NormalizedRecord{
		rec("Acme", "202208", "1"), rec("Beta", "202208", "2"), rec("Beta", "202209", "3"),
		rec("Delta", "202201", "4"), rec("Echo", "202208", "5"),
	})
	billed := Aggregate([]domain.NormalizedRecord{
		rec("Acme", "202208", "1"), rec("Beta", "202209", "2"), rec("Delta", "202202", "4"),
		rec("Echo", "202208", "6"), rec("Foxtrot", "202208", "7"),
	})

	res := Join(registered, billed)
	for _, r := range res.Rows {
		k := domain.Key{Entity: r.Supplier, Month: r.Month}
		if _, ok := registered[k]; !ok {
			t.Errorf("row %v missing from registered source", k)
		}
		if _, ok := billed[k]; !ok {
			t.Errorf("row %v missing from billed source", k)
		}
	}
	if n := len(res.Rows) + len(res.RegisteredOnly); n != len(registered) {
		t.Errorf("rows + registered-only = %d, want %d", n, len(registered))
	}
	if n := len(res.Rows) + len(res.BilledOnly); n != len(billed) {
		t.Errorf("rows + billed-only = %d, want %d", n, len(billed))
	}
}

func TestReconcile_EmptyJoin(t *testing.T) {
	registered := Aggregate([]domain.NormalizedRecord{rec("Acme", "202208", "1")})
	billed := Aggregate([]domain.NormalizedRecord{rec("Acme", "202207", "1")})

	_, err := Reconcile(registered, billed)

	var ee *EmptyJoinError
	if !errors.As(err, &ee) {
		t.Fatalf("Reconcile() error = %v, want *EmptyJoinError", err)
	}
	if ee.RegisteredKeys != 1 || ee.BilledKeys != 1 {
		t.Errorf("EmptyJoinError = %+v", ee)
	}
}

func TestCountInMonth(t *testing.T) {
	registered := Aggregate([]domain.NormalizedRecord{
		rec("Gamma", "202208", "1"),
		rec("Acme", "202208", "1"),
		rec("Acme", "202208", "2"),
		rec("Beta", "202207", "1"),
	})

	got := CountInMonth(registered, "202208")

	if got.Count() != 2 {
		t.Errorf("Count() = %d, want 2", got.Count())
	}
	if diff := cmp.Diff([]string{"Acme", "Gamma"}, got.Suppliers); diff != "" {
		t.Errorf("Suppliers mismatch (-want +got):\n%s", diff)
	}

	none := CountInMonth(registered, "201901")
	if none.Count() != 0 || none.Suppliers == nil {
		t.Errorf("CountInMonth(201901) = %+v, want empty non-nil list", none)
	}
}

func TestMaxPositiveDiscrepancy(t *testing.T) {
	tests := []struct {
		name         string
		rows         []domain.ReconciledRecord
		wantOK       bool
		wantSupplier string
		wantMonth    domain.MonthKey
		wantDiff     int64
	}{
		{
			name:         "single positive",
			rows:         []domain.ReconciledRecord{reconciled("Acme", "202208", 100, 80)},
			wantOK:       true,
			wantSupplier: "Acme",
			wantMonth:    "202208",
			wantDiff:     20,
		},
		{
			name: "largest wins",
			rows: []domain.ReconciledRecord{
				reconciled("Acme", "202208", 100, 80),
				reconciled("Beta", "202207", 500, 100),
				reconciled("Gamma", "202208", 0, 1000),
			},
			wantOK:       true,
			wantSupplier: "Beta",
			wantMonth:    "202207",
			wantDiff:     400,
		},
		{
			name: "tie broken by supplier then month",
			rows: []domain.ReconciledRecord{
				reconciled("Zulu", "202201", 50, 0),
				reconciled("Beta", "202209", 60, 10),
				reconciled("Beta", "202203", 70, 20),
			},
			wantOK:       true,
			wantSupplier: "Beta",
			wantMonth:    "202203",
			wantDiff:     50,
		},
		{
			name: "all equal",
			rows: []domain.ReconciledRecord{
				reconciled("Acme", "202208", 100, 100),
				reconciled("Beta", "202208", 5, 5),
			},
			wantOK: false,
		},
		{
			name: "all billed above registered",
			rows: []domain.ReconciledRecord{
				reconciled("Acme", "202208", 10, 100),
				reconciled("Beta", "202208", 0, 5),
			},
			wantOK: false,
		},
		{
			name:   "no rows",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MaxPositiveDiscrepancy(tt.rows)
			if ok != tt.wantOK {
				t.Fatalf("MaxPositiveDiscrepancy() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Record.Supplier != tt.wantSupplier || got.Record.Month != tt.wantMonth {
				t.Errorf("MaxPositiveDiscrepancy() = %s/%s, want %s/%s", got.Record.Supplier, got.Record.Month, tt.wantSupplier, tt.wantMonth)
			}
			if !got.Difference.Equal(decimal.NewFromInt(tt.wantDiff)) {
				t.Errorf("Difference = %s, want %d", got.Difference, tt.wantDiff)
			}
		})
	}
}

func TestRankDiscrepancies_Deterministic(t *testing.T) {
	rows := []domain.ReconciledRecord{
		reconciled("Gamma", "202208", 10, 0),
		reconciled("Alpha", "202208", 10, 0),
		reconciled("Beta", "202208", 20, 0),
		reconciled("Alpha", "202207", 10, 0),
	}

	var order []string
	for _, d := range RankDiscrepancies(rows) {
		order = append(order, d.Record.Supplier+"/"+d.Record.Month.String())
	}

	want := []string{"Beta/202208", "Alpha/202207", "Alpha/202208", "Gamma/202208"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("RankDiscrepancies() order mismatch (-want +got):\n%s", diff)
	}
}
