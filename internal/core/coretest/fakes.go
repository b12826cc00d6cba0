// Package coretest provides in-memory implementations of the core
// capabilities for tests.
package coretest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/models"
)

var (
	_ core.ObjectClient      = (*ObjectStore)(nil)
	_ core.EmbeddingProvider = (*Embedder)(nil)
	_ core.VectorIndex       = (*Index)(nil)
	_ core.OutcomeReporter   = (*Reporter)(nil)
)

// ErrTransient is the default error returned by scripted failures.
var ErrTransient = errors.New("503 service unavailable")

// ObjectStore keeps objects in a map keyed by container/name.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	GetErr  error
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

// Put stores data without going through UploadFile.
func (s *ObjectStore) Put(container, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[container+"/"+name] = data
}

func (s *ObjectStore) UploadFile(_ context.Context, container, name string, data []byte, _ string) (string, error) {
	s.Put(container, name, data)
	return "mem:///" + container + "/" + name, nil
}

func (s *ObjectStore) GetFile(_ context.Context, container, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	data, ok := s.objects[container+"/"+name]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return data, nil
}

func (s *ObjectStore) EnsureContainer(context.Context, string) error { return nil }

// Embedder returns deterministic vectors derived from the text. The first
// FailFirst calls fail with Err (ErrTransient when nil); FailAlways makes
// every call fail.
type Embedder struct {
	mu         sync.Mutex
	Dim        int
	FailFirst  int
	FailAlways bool
	Err        error
	calls      int
}

func NewEmbedder(dim int) *Embedder {
	return &Embedder{Dim: dim}
}

func (e *Embedder) ModelName() string { return "fake-embedder" }

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()

	if e.FailAlways || n <= e.FailFirst {
		if e.Err != nil {
			return nil, e.Err
		}
		return nil, ErrTransient
	}
	return Vector(text, e.Dim), nil
}

// Calls reports how many times Embed was invoked.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Vector hashes text into a unit vector of length dim.
func Vector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 8
	}
	v := make([]float32, dim)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	var norm float64
	for i := range v {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v[i] = float32(seed%1000)/1000 + 0.001
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Index is an in-memory cosine-similarity vector index with scripted failures.
type Index struct {
	mu         sync.Mutex
	records    []models.IndexRecord
	batches    []int
	calls      int
	FailFirst  int
	FailAlways bool
	Err        error
}

func NewIndex() *Index {
	return &Index{}
}

func (x *Index) Upload(_ context.Context, records []models.IndexRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls++
	if x.FailAlways || x.calls <= x.FailFirst {
		if x.Err != nil {
			return x.Err
		}
		return ErrTransient
	}
	x.records = append(x.records, records...)
	x.batches = append(x.batches, len(records))
	return nil
}

func (x *Index) Search(_ context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]models.SearchResult, 0, len(x.records))
	for _, r := range x.records {
		out = append(out, models.SearchResult{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Metadata.Source,
			ChunkIndex: r.Metadata.ChunkIndex,
			Score:      Cosine(vector, r.Vector),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Calls reports how many times Upload was invoked.
func (x *Index) Calls() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.calls
}

// Records returns a copy of everything accepted so far.
func (x *Index) Records() []models.IndexRecord {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]models.IndexRecord(nil), x.records...)
}

// Batches returns the size of every accepted Upload call.
func (x *Index) Batches() []int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]int(nil), x.batches...)
}

func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Reporter collects ingestion outcomes.
type Reporter struct {
	mu      sync.Mutex
	results []models.IngestResult
}

func (r *Reporter) Report(_ context.Context, result models.IngestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *Reporter) Results() []models.IngestResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.IngestResult(nil), r.results...)
}
