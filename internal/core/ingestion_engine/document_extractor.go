package ingestion_engine

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/ragline/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// richContentTypes maps the extensions routed through docconv to their MIME type.
var richContentTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".html": "text/html",
	".htm":  "text/html",
}

// richContentType returns the MIME type for names docconv should handle.
func richContentType(name string) (string, bool) {
	ct, ok := richContentTypes[strings.ToLower(path.Ext(name))]
	return ct, ok
}

// ExtractText converts the document to plain text based on content type.
func (e *DocconvExtractor) ExtractText(data []byte, contentType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv %s: %w", contentType, err)
	}
	return res.Body, nil
}
