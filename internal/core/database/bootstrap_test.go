package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragline/internal/core/retry"
)

func TestRenderBootstrap(t *testing.T) {
	script, err := renderBootstrap("document_chunks", 768)
	require.NoError(t, err)

	assert.Contains(t, script, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, script, "CREATE TABLE IF NOT EXISTS document_chunks")
	assert.Contains(t, script, "content_vector vector(768)")
	assert.Contains(t, script, "VALUES ('document_chunks', 1, 768)")
	assert.NotContains(t, script, "{{")
}

func TestRenderBootstrap_RejectsBadInput(t *testing.T) {
	_, err := renderBootstrap("chunks; DROP TABLE users", 768)
	assert.Error(t, err)
	_, err = renderBootstrap("chunks", 0)
	assert.Error(t, err)
}

func TestValidIdentifier(t *testing.T) {
	for _, ok := range []string{"document_chunks", "_x", "T1"} {
		assert.NoError(t, validIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "a-b", "a b", `a"b`} {
		assert.Error(t, validIdentifier(bad), bad)
	}
}

func TestClassifyPgError(t *testing.T) {
	assert.Nil(t, classifyPgError(nil))

	dim := &pgconn.PgError{Code: "22000", Message: "expected 768 dimensions, not 3"}
	assert.True(t, retry.IsPermanent(classifyPgError(fmt.Errorf("exec: %w", dim))))

	undefined := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	assert.True(t, retry.IsPermanent(classifyPgError(undefined)))

	shutdown := &pgconn.PgError{Code: "57P01", Message: "terminating connection"}
	assert.False(t, retry.IsPermanent(classifyPgError(shutdown)))

	assert.False(t, retry.IsPermanent(classifyPgError(errors.New("dial tcp: connection refused"))))
}

func TestWithSSL(t *testing.T) {
	dsn, err := withSSL("postgres://u:p@db:5432/rag", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/rag", dsn)

	cert := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(cert, []byte("pem"), 0o600))

	dsn, err = withSSL("postgres://u:p@db:5432/rag", cert)
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=verify-ca")
	assert.Contains(t, dsn, "sslrootcert=")

	_, err = withSSL("postgres://db/rag", filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}
