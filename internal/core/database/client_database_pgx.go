package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/ragline/internal/config"
	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/retry"
	"github.com/markdave123-py/ragline/internal/models"
)

// PgVectorIndex stores index records in a Postgres table with a pgvector
// column and searches it by cosine distance.
type PgVectorIndex struct {
	db    *sql.DB
	table string
}

func NewPgVectorIndex(ctx context.Context, cfg *config.Config) (*PgVectorIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if err := validIdentifier(cfg.IndexName); err != nil {
		return nil, err
	}

	dsn, err := withSSL(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.IndexName, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PgVectorIndex{db: db, table: cfg.IndexName}, nil
}

// withSSL pins the server certificate when a CA file is configured.
func withSSL(databaseURL, certPath string) (string, error) {
	if certPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *PgVectorIndex) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Upload writes all records in one transaction. Records whose id already
// exists are overwritten.
func (c *PgVectorIndex) Upload(ctx context.Context, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return classifyPgError(err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s
			(id, content, content_vector, source_file, chunk_index, category, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			content_vector = EXCLUDED.content_vector,
			source_file = EXCLUDED.source_file,
			chunk_index = EXCLUDED.chunk_index,
			category = EXCLUDED.category,
			metadata = EXCLUDED.metadata
	`, c.table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return classifyPgError(err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return retry.Permanent(fmt.Errorf("encode metadata of %s: %w", r.ID, err))
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Content, pgvector.NewVector(r.Vector), r.Metadata.Source, r.Metadata.ChunkIndex,
			r.Metadata.Category, string(meta),
		); err != nil {
			_ = tx.Rollback()
			return classifyPgError(err)
		}
	}
	return classifyPgError(tx.Commit())
}

// Search returns the topK records closest to vector; Score is cosine similarity.
func (c *PgVectorIndex) Search(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	q := fmt.Sprintf(`
		SELECT id, content, source_file, chunk_index, 1 - (content_vector <=> $1) AS score
		FROM %s
		ORDER BY content_vector <=> $1
		LIMIT $2
	`, c.table)

	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Content, &r.Source, &r.ChunkIndex, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, classifyPgError(rows.Err())
}

// classifyPgError marks data and schema errors, such as a vector of the wrong
// dimension, as permanent. Connection problems stay retryable.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "42") {
			return retry.Permanent(err)
		}
	}
	return err
}

var _ core.VectorIndex = (*PgVectorIndex)(nil)
