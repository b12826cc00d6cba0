package core

import (
	"context"

	"github.com/markdave123-py/ragline/internal/models"
)

// ObjectClient defines interactions with the blob store holding source documents.
// Cloud deployments use S3, local ones a directory-backed emulator.
type ObjectClient interface {
	UploadFile(ctx context.Context, container, name string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, container, name string) ([]byte, error)
	EnsureContainer(ctx context.Context, container string) error
}

// VectorIndex stores IndexRecords and answers nearest-neighbour queries.
// Upload either accepts the whole batch or returns an error.
type VectorIndex interface {
	Upload(ctx context.Context, records []models.IndexRecord) error
	Search(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error)
}

// OutcomeReporter receives the result of every ingestion run.
type OutcomeReporter interface {
	Report(ctx context.Context, result models.IngestResult) error
}
