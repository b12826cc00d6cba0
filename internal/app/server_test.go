package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragline/internal/config"
	"github.com/markdave123-py/ragline/internal/core/coretest"
	"github.com/markdave123-py/ragline/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragline/internal/metrics"
	"github.com/markdave123-py/ragline/internal/models"
	"github.com/markdave123-py/ragline/internal/services"
)

type echoLLM struct{}

func (echoLLM) Generate(_ context.Context, _, user string) (string, error) { return "ok", nil }

func (echoLLM) Stream(_ context.Context, _, _ string, emit func(string) error) error {
	return emit("ok")
}

type testStack struct {
	store *coretest.ObjectStore
	index *coretest.Index
	srv   *httptest.Server
}

func newTestStack(t *testing.T, cfg *config.Config) *testStack {
	t.Helper()
	store := coretest.NewObjectStore()
	emb := coretest.NewEmbedder(16)
	idx := coretest.NewIndex()

	loader := ingestion_engine.NewContentLoader(store, ingestion_engine.NewPDFExtractor(), ingestion_engine.NewDocconvExtractor(false))
	ing, err := ingestion_engine.NewDocumentIngestor(loader, emb, idx, nil, ingestion_engine.DefaultIngestConfig(), nil)
	require.NoError(t, err)

	s := NewServer(cfg, Deps{
		Objects:  store,
		Ingestor: ing,
		Queue:    ingestion_engine.NewIngestQueue(ing, 4, time.Minute),
		Query:    services.NewQueryService(emb, idx, echoLLM{}),
		Metrics:  metrics.New(),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testStack{store: store, index: idx, srv: srv}
}

func localConfig() *config.Config {
	return &config.Config{
		RunningEnv:     config.EnvLocal,
		Port:           "0",
		CORSOrigins:    []string{"*"},
		BucketName:     "documents",
		IngestTimeout:  time.Minute,
		MetricsEnabled: true,
	}
}

func post(t *testing.T, url, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestServer_IngestThenQuery(t *testing.T) {
	st := newTestStack(t, localConfig())
	st.store.Put("documents", "guide.txt", []byte(strings.Repeat("abcdefghijklmnopqrstuvwx", 100)))

	resp, body := post(t, st.srv.URL+"/api/ingest", `{"url":"file:///data/blobs/documents/guide.txt"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Document documents/guide.txt ingested: 3 chunks indexed.\n", body)
	assert.Len(t, st.index.Records(), 3)

	resp, body = post(t, st.srv.URL+"/api/query", `{"question":"what does ragline do?"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var ans models.Answer
	require.NoError(t, json.Unmarshal([]byte(body), &ans))
	assert.Equal(t, "ok", ans.Text)
	assert.Equal(t, []string{"guide.txt"}, ans.Sources)
}

func TestServer_IngestMissingDocumentIs500(t *testing.T) {
	st := newTestStack(t, localConfig())

	resp, body := post(t, st.srv.URL+"/api/ingest", `{"url":"http://localhost:9000/documents/nope.txt"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "documents/nope.txt")
}

func TestServer_LocalEndpointsForbiddenInCloud(t *testing.T) {
	cfg := localConfig()
	cfg.RunningEnv = config.EnvCloud
	st := newTestStack(t, cfg)

	resp, _ := post(t, st.srv.URL+"/api/ingest", `{"url":"http://x/documents/a.txt"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = post(t, st.srv.URL+"/api/documents", ``, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_QueryRequiresTokenWhenSecretSet(t *testing.T) {
	cfg := localConfig()
	cfg.JWTSecret = "s3cret"
	st := newTestStack(t, cfg)

	resp, _ := post(t, st.srv.URL+"/api/query", `{"question":"q"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cli", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	// authorized, but nothing indexed yet
	resp, _ = post(t, st.srv.URL+"/api/query", `{"question":"q"}`, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	st := newTestStack(t, localConfig())

	resp, err := http.Get(st.srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","env":"local"}`, string(body))

	resp, err = http.Get(st.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := localConfig()
	cfg.MetricsEnabled = false
	st := newTestStack(t, cfg)

	resp, err := http.Get(st.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
