package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/ragline/internal/models"
)

func TestHTTPStatusCode(t *testing.T) {
	cause := errors.New("connection reset")

	assert.Equal(t, http.StatusOK, HTTPStatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusCode(fmt.Errorf("decode body: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusCode(fmt.Errorf("x: %w", models.ErrInvalidLocation)))
	assert.Equal(t, http.StatusNotFound, HTTPStatusCode(ErrNoContext))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusCode(fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, cause)))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusCode(fmt.Errorf("%w: %w", ErrIndexUnavailable, cause)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusCode(cause))
}
