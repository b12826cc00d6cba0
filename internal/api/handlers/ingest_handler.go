package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/markdave123-py/ragline/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

type IngestHandler struct {
	ingestor ingestion_engine.Ingestor
}

func NewIngestHandler(ing ingestion_engine.Ingestor) *IngestHandler {
	return &IngestHandler{ingestor: ing}
}

type IngestRequest struct {
	URL string `json:"url"`
}

// ManualIngest runs the pipeline synchronously for the document at the given
// URL and answers in plain text.
func (h *IngestHandler) ManualIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	ref, err := models.ParseDocumentURL(req.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.ingestor.Ingest(r.Context(), ref)
	if err != nil {
		logger.FromContext(r.Context()).Error("manual ingestion failed", "document", ref.String(), "error", err)
		http.Error(w, fmt.Sprintf("ingestion of %s failed: %v", ref, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Document %s ingested: %d chunks indexed.\n", ref, res.Records)
}
