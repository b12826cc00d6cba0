package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/retry"
	"github.com/markdave123-py/ragline/internal/models"
)

// errNotFound is returned by do for 404 answers.
var errNotFound = errors.New("qdrant: not found")

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage is a minimal REST client to Qdrant. The collection is created with
// cosine distance on the first upload, sized after the first vector.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu    sync.Mutex
	ready bool
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant: url not set")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection not set")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type payload struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Container  string `json:"container"`
	ChunkIndex int    `json:"chunk_index"`
	Category   string `json:"category"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

// Upload upserts every record as a point; an existing id is overwritten.
func (s *Storage) Upload(ctx context.Context, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}

	points := make([]point, len(records))
	for i, r := range records {
		points[i] = point{
			ID:     r.ID,
			Vector: r.Vector,
			Payload: payload{
				Content:    r.Content,
				Source:     r.Metadata.Source,
				Container:  r.Metadata.Container,
				ChunkIndex: r.Metadata.ChunkIndex,
				Category:   r.Metadata.Category,
			},
		}
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	err := s.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil)
	if errors.Is(err, errNotFound) {
		// collection dropped behind our back; recreate on the next attempt
		s.mu.Lock()
		s.ready = false
		s.mu.Unlock()
	}
	return err
}

func (s *Storage) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if dim <= 0 {
		return retry.Permanent(errors.New("qdrant: cannot create collection for empty vectors"))
	}

	path := "/collections/" + s.collection
	err := s.do(ctx, http.MethodGet, path, nil, nil)
	if errors.Is(err, errNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dim,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, path, body, nil)
	}
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Search returns the topK nearest points. A missing collection means nothing
// has been indexed yet and yields no results.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", s.collection), req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, models.SearchResult{
			ID:         fmt.Sprint(r.ID),
			Content:    r.Payload.Content,
			Source:     r.Payload.Source,
			ChunkIndex: r.Payload.ChunkIndex,
			Score:      r.Score,
		})
	}
	return results, nil
}

func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("qdrant: encode request: %w", err))
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, rd)
	if err != nil {
		return retry.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(snippet)))
		return retry.ClassifyHTTPStatus(resp.StatusCode, err)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ core.VectorIndex = (*Storage)(nil)
