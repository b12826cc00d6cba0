package app

import (
	"context"
	"fmt"

	"github.com/markdave123-py/ragline/internal/config"
	"github.com/markdave123-py/ragline/internal/core"
	db "github.com/markdave123-py/ragline/internal/core/database"
	"github.com/markdave123-py/ragline/internal/core/llm"
	objectclient "github.com/markdave123-py/ragline/internal/core/object-client"
	"github.com/markdave123-py/ragline/internal/core/qdrant"
)

// The factories below are the only code that branches on RUNNING_ENV.
// Everything downstream receives a capability interface.

// NewObjectClient returns the directory emulator locally and S3 in the cloud.
func NewObjectClient(ctx context.Context, cfg *config.Config) (core.ObjectClient, error) {
	if cfg.IsLocal() {
		return objectclient.NewDiskClient(cfg.LocalStorageDir)
	}
	return objectclient.NewS3Client(ctx, cfg)
}

// NewEmbedder returns an OpenAI-compatible embedder locally and Gemini in the cloud.
func NewEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	if cfg.IsLocal() {
		return llm.NewOpenAIEmbedder(llm.OpenAIConfig{
			BaseURL: cfg.LocalOpenAIBaseURL,
			APIKey:  cfg.LocalOpenAIAPIKey,
			Model:   cfg.LocalEmbeddingModel,
		})
	}
	emb, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	return emb, nil
}

// NewLLM returns the chat model used by the query side.
func NewLLM(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	if cfg.IsLocal() {
		return llm.NewOpenAIChat(llm.OpenAIConfig{
			BaseURL:     cfg.LocalOpenAIBaseURL,
			APIKey:      cfg.LocalOpenAIAPIKey,
			Model:       cfg.LocalChatModel,
			Temperature: cfg.ChatTemperature,
		})
	}
	gen, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel, cfg.ChatTemperature)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}
	return gen, nil
}

// NewVectorIndex returns Qdrant locally and Postgres with pgvector in the cloud.
func NewVectorIndex(ctx context.Context, cfg *config.Config) (core.VectorIndex, error) {
	if cfg.IsLocal() {
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		})
	}
	return db.NewPgVectorIndex(ctx, cfg)
}
