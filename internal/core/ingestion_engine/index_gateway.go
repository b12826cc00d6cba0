package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/retry"
	"github.com/markdave123-py/ragline/internal/metrics"
	"github.com/markdave123-py/ragline/internal/models"
)

// DefaultIndexBatchSize stays under the per-request document limit of hosted search indexes.
const DefaultIndexBatchSize = 1000

// IndexGateway uploads records to the vector index. Batches above maxBatch
// are sent as sequential sub-batches, each retried on its own.
type IndexGateway struct {
	index    core.VectorIndex
	policy   retry.Policy
	maxBatch int
	metrics  *metrics.Metrics
}

func NewIndexGateway(index core.VectorIndex, policy retry.Policy, maxBatch int, m *metrics.Metrics) *IndexGateway {
	if maxBatch <= 0 {
		maxBatch = DefaultIndexBatchSize
	}
	return &IndexGateway{index: index, policy: policy, maxBatch: maxBatch, metrics: m}
}

// Upload writes every record or returns an error wrapping ErrIndexUnavailable.
// Sub-batches accepted before a failing one stay in the index.
func (g *IndexGateway) Upload(ctx context.Context, records []models.IndexRecord) error {
	for start := 0; start < len(records); start += g.maxBatch {
		end := min(start+g.maxBatch, len(records))
		batch := records[start:end]

		err := retry.Do(ctx, "index upload", g.policy, func(ctx context.Context) error {
			err := g.index.Upload(ctx, batch)
			g.metrics.ObserveAttempt("index_upload", err)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: records %d-%d of %d: %w", core.ErrIndexUnavailable, start, end-1, len(records), err)
		}
	}
	return nil
}

// Search passes through to the index with the same retry policy.
func (g *IndexGateway) Search(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	var out []models.SearchResult
	err := retry.Do(ctx, "index search", g.policy, func(ctx context.Context) error {
		res, err := g.index.Search(ctx, vector, topK)
		g.metrics.ObserveAttempt("index_search", err)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	return out, nil
}

var _ core.VectorIndex = (*IndexGateway)(nil)
