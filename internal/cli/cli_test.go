package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragline/internal/models"
)

// run executes ragctl with a local configuration and returns its stdout.
func run(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RUNNING_ENV", "local")
	t.Setenv("LOCAL_STORAGE_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", "")
	for k, v := range env {
		t.Setenv(k, v)
	}
	apiURL, askToken, askTopK, ingestContainer = "", "", 4, ""

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestIngest_UploadsThenTriggers(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ingest", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotURL = body["url"]
		_, _ = w.Write([]byte("Document documents/notes.txt ingested: 1 chunks indexed.\n"))
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	storage := t.TempDir()
	out, err := run(t, map[string]string{"LOCAL_STORAGE_DIR": storage}, "ingest", file, "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "ingested: 1 chunks indexed.")

	ref, err := models.ParseDocumentURL(gotURL)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentReference{Container: "documents", Name: "notes.txt"}, ref)

	data, err := os.ReadFile(filepath.Join(storage, "documents", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestIngest_ServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ingestion of documents/notes.txt failed: boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	_, err := run(t, nil, "ingest", file, "--api", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest failed (500)")
	assert.Contains(t, err.Error(), "boom")
}

func TestIngest_MissingFile(t *testing.T) {
	_, err := run(t, nil, "ingest", filepath.Join(t.TempDir(), "nope.txt"), "--api", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestAsk_SendsSignedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
		if err != nil || !tok.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "what is ragline?", req["question"])
		assert.EqualValues(t, 2, req["top_k"])
		_ = json.NewEncoder(w).Encode(models.Answer{Text: "A pipeline.", Sources: []string{"guide.pdf"}})
	}))
	defer srv.Close()

	out, err := run(t, map[string]string{"JWT_SECRET": "s3cret"}, "ask", "what is ragline?", "-k", "2", "--api", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "A pipeline.\n\nSources: guide.pdf\n", out)
}

func TestAsk_NoContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no indexed content matches the question"}`))
	}))
	defer srv.Close()

	_, err := run(t, nil, "ask", "anything", "--api", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed (404)")
}

func TestToken(t *testing.T) {
	out, err := run(t, map[string]string{"JWT_SECRET": "s3cret"}, "token", "--subject", "ana")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	sub, _ := claims.GetSubject()
	assert.Equal(t, "ana", sub)
}

func TestToken_NeedsSecret(t *testing.T) {
	_, err := run(t, nil, "token")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestCommands_RequireArgs(t *testing.T) {
	for _, name := range []string{"ingest", "ask"} {
		_, err := run(t, nil, name)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "accepts 1 arg(s)")
	}
}
