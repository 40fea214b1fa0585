package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/cal-sync/backend/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	Name    string
	Content string
}

// RunMigrations applies every embedded migrations/*.sql file not yet recorded
// in _migrations, in file name order. Each file runs in its own transaction.
func RunMigrations(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	pending, err := migrationFiles()
	if err != nil {
		return fmt.Errorf("reading migration files: %w", err)
	}

	for _, m := range pending {
		if applied[m.Name] {
			continue
		}

		logger := logging.Logger.WithField("migration", m.Name)
		logger.Info("Applying migration")
		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Content); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO _migrations (name) VALUES (?)", m.Name); err != nil {
				return fmt.Errorf("recording migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("applying migration %s: %w", m.Name, err)
		}
		logger.Info("Migration applied")
	}

	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM _migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}

func migrationFiles() ([]migration, error) {
	var migrations []migration

	err := fs.WalkDir(migrationsFS, "migrations", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		content, err := migrationsFS.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		migrations = append(migrations, migration{Name: path.Base(p), Content: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// numeric prefixes give the order
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})

	return migrations, nil
}
