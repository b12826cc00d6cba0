package db

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"regexp"
	"text/template"
	"time"
)

const schemaVersion = 1

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// validIdentifier guards table names that are spliced into SQL text.
func validIdentifier(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("invalid index name %q", name)
	}
	return nil
}

type bootstrapParams struct {
	Table   string
	Dim     int
	Version int
}

func renderBootstrap(table string, dim int) (string, error) {
	if err := validIdentifier(table); err != nil {
		return "", err
	}
	if dim <= 0 {
		return "", fmt.Errorf("invalid embedding dimension %d", dim)
	}
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	tmpl, err := template.New("initdb").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse initdb.sql: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, bootstrapParams{Table: table, Dim: dim, Version: schemaVersion}); err != nil {
		return "", fmt.Errorf("render initdb.sql: %w", err)
	}
	return buf.String(), nil
}

// EnsureBootstrapped creates the pgvector extension and the index table
// unless the meta table already records the current schema version for it.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, table string, dim int) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'ragline_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if !exists {
		return runBootstrap(ctxBoot, db, table, dim)
	}

	var hasVersion bool
	err = db.QueryRowContext(ctxBoot,
		`SELECT EXISTS (SELECT 1 FROM ragline_meta WHERE index_name = $1 AND version = $2)`,
		table, schemaVersion).Scan(&hasVersion)
	if err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, db, table, dim)
	}

	slog.Debug("index schema already bootstrapped", "component", "pgvector", "table", table)
	return nil
}

func runBootstrap(ctx context.Context, db *sql.DB, table string, dim int) error {
	script, err := renderBootstrap(table, dim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	slog.Info("index schema bootstrapped", "component", "pgvector", "table", table, "dim", dim)
	return nil
}
