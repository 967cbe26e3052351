package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMonthKey(t *testing.T) {
	tests := []struct {
		year, month int
		want        MonthKey
		wantErr     bool
	}{
		{2022, 8, "202208", false},
		{1999, 12, "199912", false},
		{2022, 0, "", true},
		{2022, 13, "", true},
		{999, 1, "", true},
		{10000, 1, "", true},
	}

	for _, tt := range tests {
		got, err := NewMonthKey(tt.year, tt.month)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewMonthKey(%d, %d) error = %v, wantErr %v", tt.year, tt.month, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NewMonthKey(%d, %d) = %q, want %q", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestMonthKey_Valid(t *testing.T) {
	tests := map[MonthKey]bool{
		"202208":  true,
		"190001":  true,
		"202200":  false,
		"202213":  false,
		"20228":   false,
		"2022-08": false,
		"022208":  false,
		"2022ab":  false,
		"":        false,
	}
	for k, want := range tests {
		if got := k.Valid(); got != want {
			t.Errorf("MonthKey(%q).Valid() = %v, want %v", k, got, want)
		}
	}
}

func TestMonthKey_Parts(t *testing.T) {
	k := MonthKey("202208")
	if k.Year() != 2022 || k.Month() != 8 {
		t.Errorf("Year/Month = %d/%d, want 2022/8", k.Year(), k.Month())
	}
}

func TestReconciledRecord_Discrepancy(t *testing.T) {
	r := ReconciledRecord{
		Supplier:   "Acme",
		Month:      "202208",
		Registered: decimal.RequireFromString("100.10"),
		Billed:     decimal.RequireFromString("80.05"),
	}
	if got := r.Discrepancy(); !got.Equal(decimal.RequireFromString("20.05")) {
		t.Errorf("Discrepancy() = %s, want 20.05", got)
	}
}
