package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

const (
	DefaultTopK = 4
	MaxTopK     = 10
)

const systemPrompt = "You are an expert assistant. Answer in the same language as the question. " +
	"Use only the information in the context to answer. " +
	"If the answer is not in the context, say so clearly."

// QueryService answers questions from the indexed chunks.
type QueryService struct {
	embedder core.EmbeddingProvider
	index    core.VectorIndex
	llm      core.LLMProvider
	logger   *slog.Logger
}

func NewQueryService(embedder core.EmbeddingProvider, index core.VectorIndex, llm core.LLMProvider) *QueryService {
	return &QueryService{
		embedder: embedder,
		index:    index,
		llm:      llm,
		logger:   logger.WithComponent("query"),
	}
}

// Search embeds the question and returns the closest chunks.
func (s *QueryService) Search(ctx context.Context, question string, topK int) ([]models.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", core.ErrInvalidInput)
	}
	topK = clampTopK(topK)

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.index.Search(ctx, vec, topK)
}

// Answer retrieves context for question and streams the model's answer
// through emit, which may be nil. The full text and the unique sources are
// returned once the stream ends.
func (s *QueryService) Answer(ctx context.Context, question string, topK int, emit func(string) error) (*models.Answer, error) {
	hits, err := s.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, core.ErrNoContext
	}

	var text strings.Builder
	err = s.llm.Stream(ctx, systemPrompt, buildPrompt(question, hits), func(fragment string) error {
		text.WriteString(fragment)
		if emit != nil {
			return emit(fragment)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := uniqueSources(hits)
	logger.FromContext(ctx).Info("question answered", "component", "query", "chunks", len(hits), "sources", len(sources))
	return &models.Answer{Text: text.String(), Sources: sources}, nil
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k > MaxTopK:
		return MaxTopK
	default:
		return k
	}
}

func buildPrompt(question string, hits []models.SearchResult) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", h.Source, h.Content)
	}
	return "### Context:\n" + strings.Join(blocks, "\n\n") + "\n\n### Question:\n" + strings.TrimSpace(question)
}

// uniqueSources keeps the first occurrence of every source, in rank order.
func uniqueSources(hits []models.SearchResult) []string {
	seen := make(map[string]bool, len(hits))
	var out []string
	for _, h := range hits {
		if h.Source == "" || seen[h.Source] {
			continue
		}
		seen[h.Source] = true
		out = append(out, h.Source)
	}
	return out
}
