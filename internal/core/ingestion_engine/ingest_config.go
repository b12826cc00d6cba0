package ingestion_engine

// IngestConfig tunes the pipeline.
//
// ChunkSize:        maximum characters per chunk (1000).
// ChunkOverlap:     characters carried from one chunk into the next (150).
// EmbedConcurrency: embedding calls in flight for one document (5).
// Category:         value stored in every record's category field.
type IngestConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	EmbedConcurrency int
	Category         string
}

// DefaultIngestConfig returns the parameters existing indexes were built with.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:        1000,
		ChunkOverlap:     150,
		EmbedConcurrency: 5,
		Category:         "automatic-ingest",
	}
}

func (c IngestConfig) withDefaults() IngestConfig {
	d := DefaultIngestConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = d.ChunkOverlap
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = d.EmbedConcurrency
	}
	if c.Category == "" {
		c.Category = d.Category
	}
	return c
}
