package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

const maxUploadBytes = 50 << 20

// Enqueuer schedules background ingestion.
type Enqueuer interface {
	Enqueue(ref models.DocumentReference) error
}

type DocumentHandler struct {
	objectclient core.ObjectClient
	queue        Enqueuer
	container    string
}

func NewDocumentHandler(obj core.ObjectClient, queue Enqueuer, container string) *DocumentHandler {
	return &DocumentHandler{objectclient: obj, queue: queue, container: container}
}

type UploadResponse struct {
	Document models.DocumentReference `json:"document"`
	URL      string                   `json:"url"`
}

// UploadDocument stores the multipart "file" field and queues it for ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// Removes any path components
	name := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := h.objectclient.EnsureContainer(uploadCtx, h.container); err != nil {
		writeError(w, core.HTTPStatusCode(err), fmt.Sprintf("storage unavailable: %v", err))
		return
	}
	url, err := h.objectclient.UploadFile(uploadCtx, h.container, name, data, contentType)
	if err != nil {
		writeError(w, core.HTTPStatusCode(err), fmt.Sprintf("upload failed: %v", err))
		return
	}

	ref := models.DocumentReference{Container: h.container, Name: name}
	if err := h.queue.Enqueue(ref); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingestion_engine.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	logger.FromContext(r.Context()).Info("document uploaded", "document", ref.String(), "bytes", len(data))
	writeJSON(w, http.StatusAccepted, UploadResponse{Document: ref, URL: url})
}
