package core

import (
	"errors"
	"net/http"

	"github.com/markdave123-py/ragline/internal/models"
)

var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrObjectNotFound       = errors.New("object not found")
	ErrDecode               = errors.New("document could not be decoded")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrIndexUnavailable     = errors.New("index service unavailable")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNoContext            = errors.New("no relevant context found")
)

// HTTPStatusCode maps an error chain onto the status code handlers answer with.
func HTTPStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, models.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoContext):
		return http.StatusNotFound
	case errors.Is(err, ErrEmbeddingUnavailable), errors.Is(err, ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
