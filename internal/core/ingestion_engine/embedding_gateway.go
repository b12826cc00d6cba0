package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/retry"
	"github.com/markdave123-py/ragline/internal/metrics"
)

var errEmptyVector = errors.New("backend returned an empty vector")

// EmbeddingGateway calls the embedding backend under the retry policy and an
// optional shared rate limit.
type EmbeddingGateway struct {
	provider core.EmbeddingProvider
	policy   retry.Policy
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
}

// NewEmbeddingGateway wraps provider. limiter and m may be nil.
func NewEmbeddingGateway(provider core.EmbeddingProvider, policy retry.Policy, limiter *rate.Limiter, m *metrics.Metrics) *EmbeddingGateway {
	return &EmbeddingGateway{provider: provider, policy: policy, limiter: limiter, metrics: m}
}

// Embed returns the vector for text, or an error wrapping ErrEmbeddingUnavailable.
func (g *EmbeddingGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, "embed", g.policy, func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}

		v, err := g.provider.Embed(ctx, text)
		if err == nil && len(v) == 0 {
			err = errEmptyVector
		}
		g.metrics.ObserveAttempt("embed", err)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// ModelName lets the gateway stand in for the provider it wraps.
func (g *EmbeddingGateway) ModelName() string {
	return g.provider.ModelName()
}

var _ core.EmbeddingProvider = (*EmbeddingGateway)(nil)
