package bigquery

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func TestReadMigrations_Embedded(t *testing.T) {
	got, err := ReadMigrations(embeddedMigrations, "migrations", "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}

	var names []string
	for _, m := range got {
		names = append(names, m.Name)
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s still has placeholders", m.Name)
		}
		if !strings.Contains(m.SQL, "`proj.ds.") {
			t.Errorf("%s does not target proj.ds", m.Name)
		}
	}
	if diff := cmp.Diff([]string{"create_recon_runs", "create_reconciled_rows"}, names); diff != "" {
		t.Errorf("migrations mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMigrations_Errors(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"bad name": {
			"m/1_init.sql": {Data: []byte("SELECT 1")},
		},
		"duplicate version": {
			"m/0001_a.sql": {Data: []byte("SELECT 1")},
			"m/0001_b.sql": {Data: []byte("SELECT 2")},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadMigrations(fsys, "m", "p", "d"); err == nil {
				t.Error("ReadMigrations() error = nil")
			}
		})
	}
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("SELECT 2")},
		"m/0001_first.sql":  {Data: []byte("SELECT 1")},
		"m/0003_third.sql":  {Data: []byte("SELECT 3")},
	}
	all, err := ReadMigrations(fsys, "m", "p", "d")
	if err != nil {
		t.Fatal(err)
	}

	pending, err := PendingMigrations(all, []AppliedMigration{
		{Version: 1, Name: "first", Checksum: all[0].Checksum},
		{Version: 2, Name: "second"},
	})
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("PendingMigrations() = %+v, want only 0003", pending)
	}

	_, err = PendingMigrations(all, []AppliedMigration{{Version: 1, Name: "first", Checksum: "stale"}})
	if err == nil {
		t.Error("PendingMigrations() error = nil for a changed migration")
	}
}
