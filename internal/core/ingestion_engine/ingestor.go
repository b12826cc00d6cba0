package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/ragline/internal/models"
)

// Ingestor runs the ingestion pipeline for one document reference.
type Ingestor interface {
	Ingest(ctx context.Context, ref models.DocumentReference) (*models.IngestResult, error)
}

var _ Ingestor = (*DocumentIngestor)(nil)
