package db

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// schemaStep is one embedded migration file, e.g. 0001_ingest_events.sql.
type schemaStep struct {
	version int
	file    string
	body    string
}

// Migrate brings the journal schema up to date. Steps already listed in
// schema_migrations are skipped; each new step commits with its record.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version       INTEGER PRIMARY KEY,
  file          TEXT    NOT NULL DEFAULT '',
  applied_at_ms INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	steps, err := embeddedSteps(migrationsFS)
	if err != nil {
		return err
	}

	done, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if done[s.version] {
			continue
		}
		if err := applyStep(ctx, conn, s); err != nil {
			return err
		}
	}
	return nil
}

// embeddedSteps reads every *.sql file under migrations/ ordered by its
// numeric prefix. Two files with the same version are an error.
func embeddedSteps(fsys fs.FS) ([]schemaStep, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	steps := make([]schemaStep, 0, len(files))
	seen := make(map[int]string, len(files))
	for _, f := range files {
		name := path.Base(f)
		v, err := stepVersion(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, v)
		}
		seen[v] = name

		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		steps = append(steps, schemaStep{version: v, file: name, body: string(body)})
	}

	slices.SortFunc(steps, func(a, b schemaStep) int { return cmp.Compare(a.version, b.version) })
	return steps, nil
}

func appliedVersions(ctx context.Context, conn *sql.DB) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations;`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func applyStep(ctx context.Context, conn *sql.DB, s schemaStep) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", s.file, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.body); err != nil {
		return fmt.Errorf("apply migration %s: %w", s.file, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations(version, file, applied_at_ms) VALUES (?, ?, ?);`,
		s.version, s.file, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", s.file, err)
	}
	return tx.Commit()
}

// stepVersion parses the numeric prefix of "0001_ingest_events.sql".
func stepVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: want NNNN_name.sql", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %s: bad version %q", name, prefix)
	}
	return v, nil
}
