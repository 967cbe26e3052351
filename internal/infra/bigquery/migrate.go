package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/revenue-recon/internal/logger"
	"google.golang.org/api/iterator"
)

const migrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one versioned DDL file.
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// ReadMigrations loads the migrations in dir of fsys sorted by version, with
// the {{PROJECT_ID}} and {{DATASET_ID}} placeholders filled in. The checksum
// covers the file before substitution.
func ReadMigrations(fsys fs.FS, dir, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading %s: %w", dir, err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationPattern.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("ReadMigrations: %s does not match NNNN_name.sql", e.Name())
		}
		version, _ := strconv.Atoi(m[1])
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("ReadMigrations: version %04d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", e.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     m[2],
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
}

// PendingMigrations returns the migrations not yet applied. A migration whose
// file changed after it was applied is an error.
func PendingMigrations(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		done[a.Version] = a
	}

	var pending []Migration
	for _, m := range all {
		a, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if a.Checksum != "" && a.Checksum != m.Checksum {
			return nil, fmt.Errorf("migration %04d_%s changed after it was applied", m.Version, m.Name)
		}
	}
	return pending, nil
}

// MigrateWithClient applies the embedded migrations that are missing from
// projectID.datasetID and returns how many ran.
func MigrateWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	if err := runDML(ctx, client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, projectID, datasetID, migrationsTable))); err != nil {
		return 0, fmt.Errorf("Migrate: ensure %s: %w", migrationsTable, err)
	}

	all, err := ReadMigrations(embeddedMigrations, "migrations", projectID, datasetID)
	if err != nil {
		return 0, err
	}
	applied, err := appliedMigrations(ctx, client, projectID, datasetID)
	if err != nil {
		return 0, err
	}
	pending, err := PendingMigrations(all, applied)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	log.Info().
		Int("known", len(all)).
		Int("applied", len(applied)).
		Int("pending", len(pending)).
		Msg("Checked schema migrations")

	for _, m := range pending {
		if err := runDML(ctx, client.Query(m.SQL)); err != nil {
			return 0, fmt.Errorf("Migrate: %04d_%s: %w", m.Version, m.Name, err)
		}

		q := client.Query(fmt.Sprintf(`
			INSERT INTO `+"`%s.%s.%s`"+`
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, projectID, datasetID, migrationsTable))
		q.Parameters = []bigquery.QueryParameter{
			{Name: "version", Value: m.Version},
			{Name: "name", Value: m.Name},
			{Name: "checksum", Value: m.Checksum},
			{Name: "applied_by", Value: appliedBy},
		}
		if err := runDML(ctx, q); err != nil {
			return 0, fmt.Errorf("Migrate: recording %04d_%s: %w", m.Version, m.Name, err)
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration")
	}
	return len(pending), nil
}

func appliedMigrations(ctx context.Context, client *bigquery.Client, projectID, datasetID string) ([]AppliedMigration, error) {
	it, err := client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum
		FROM `+"`%s.%s.%s`"+`
		ORDER BY version ASC
	`, projectID, datasetID, migrationsTable)).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Migrate: reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time `bigquery:"applied_at"`
			Checksum  bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Migrate: iter next: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
		})
	}
	return applied, nil
}
