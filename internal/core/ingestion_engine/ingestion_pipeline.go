package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/metrics"
	"github.com/markdave123-py/ragline/internal/models"
)

// DocumentIngestor orchestrates one ingestion run per call:
//
// loader:   fetches and decodes the document.
// splitter: cuts the text into overlapping chunks.
// embedder: embedding provider, normally an EmbeddingGateway.
// index:    vector index, normally an IndexGateway.
// reporter: receives every outcome; may be nil.
type DocumentIngestor struct {
	loader   *ContentLoader
	splitter *RecursiveSplitter
	embedder core.EmbeddingProvider
	index    core.VectorIndex
	reporter core.OutcomeReporter
	metrics  *metrics.Metrics
	cfg      IngestConfig
	logger   *slog.Logger
	newID    func() string
}

// NewDocumentIngestor validates the chunking parameters and wires the pipeline.
func NewDocumentIngestor(
	loader *ContentLoader,
	embedder core.EmbeddingProvider,
	index core.VectorIndex,
	reporter core.OutcomeReporter,
	cfg IngestConfig,
	m *metrics.Metrics,
) (*DocumentIngestor, error) {
	cfg = cfg.withDefaults()
	splitter, err := NewRecursiveSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &DocumentIngestor{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		index:    index,
		reporter: reporter,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.WithComponent("ingestor"),
		newID:    uuid.NewString,
	}, nil
}

// ingestRun carries the state of a single Ingest call.
type ingestRun struct {
	ref    models.DocumentReference
	state  State
	chunks int
	logger *slog.Logger
}

func (r *ingestRun) advance(next State) {
	if !r.state.canAdvance(next) {
		panic(fmt.Sprintf("ingestion: illegal transition %s -> %s", r.state, next))
	}
	r.logger.Debug("state change", "from", r.state.String(), "to", next.String())
	r.state = next
}

// Ingest loads, chunks, embeds and indexes ref. Nothing reaches the index
// unless every chunk was embedded. A document without text finishes with
// zero records.
func (i *DocumentIngestor) Ingest(ctx context.Context, ref models.DocumentReference) (*models.IngestResult, error) {
	started := time.Now()
	run := &ingestRun{
		ref:    ref,
		state:  StateReceived,
		logger: logger.FromContext(ctx).With("component", "ingestor", "document", ref.String()),
	}

	records, err := i.run(ctx, run)
	if err != nil {
		run.advance(StateFailed)
	}

	result := &models.IngestResult{
		Ref:        ref,
		State:      run.state.String(),
		Chunks:     run.chunks,
		Records:    records,
		FinishedAt: time.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
		run.logger.Error("ingestion failed", "error", err, "elapsed", time.Since(started))
	} else {
		run.logger.Info("ingestion finished", "chunks", run.chunks, "records", records, "elapsed", time.Since(started))
	}

	i.metrics.ObserveIngestion(result.State, records, time.Since(started))
	if i.reporter != nil {
		if rerr := i.reporter.Report(context.WithoutCancel(ctx), *result); rerr != nil {
			run.logger.Warn("outcome not reported", "error", rerr)
		}
	}
	return result, err
}

// run returns the number of records written.
func (i *DocumentIngestor) run(ctx context.Context, run *ingestRun) (int, error) {
	doc, err := i.loader.Load(ctx, run.ref)
	if err != nil {
		return 0, err
	}
	run.advance(StateLoaded)

	chunks := i.splitter.Split(doc.Content)
	run.chunks = len(chunks)
	run.advance(StateChunked)

	if len(chunks) == 0 {
		run.logger.Info("document has no text, nothing to index")
		run.advance(StateDone)
		return 0, nil
	}

	run.advance(StateEmbedding)
	vectors, err := i.embedAll(ctx, chunks)
	if err != nil {
		return 0, err
	}

	run.advance(StateAssembled)
	records := i.assemble(run.ref, chunks, vectors)

	if err := i.index.Upload(ctx, records); err != nil {
		return 0, wrapAs(core.ErrIndexUnavailable, err)
	}
	run.advance(StateIndexed)
	run.advance(StateDone)
	return len(records), nil
}

// embedAll embeds every chunk with at most EmbedConcurrency calls in flight.
// vectors[k] always belongs to chunks[k].
func (i *DocumentIngestor) embedAll(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedConcurrency)
	for k := range chunks {
		g.Go(func() error {
			v, err := i.embedder.Embed(gctx, chunks[k].Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunks[k].Index, wrapAs(core.ErrEmbeddingUnavailable, err))
			}
			vectors[k] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for k, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, expected %d",
				core.ErrEmbeddingUnavailable, chunks[k].Index, len(v), dim)
		}
	}
	return vectors, nil
}

func (i *DocumentIngestor) assemble(ref models.DocumentReference, chunks []models.Chunk, vectors [][]float32) []models.IndexRecord {
	records := make([]models.IndexRecord, len(chunks))
	for k, c := range chunks {
		records[k] = models.IndexRecord{
			ID:      i.newID(),
			Content: c.Text,
			Vector:  vectors[k],
			Metadata: models.RecordMetadata{
				Source:     ref.Name,
				Container:  ref.Container,
				ChunkIndex: c.Index,
				Category:   i.cfg.Category,
			},
		}
	}
	return records
}

// wrapAs makes sure err carries sentinel exactly once.
func wrapAs(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
