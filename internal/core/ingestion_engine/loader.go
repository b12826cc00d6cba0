package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ContentLoader fetches a document from object storage and decodes it to text.
type ContentLoader struct {
	obj    core.ObjectClient
	pages  core.PageExtractor
	docs   core.DocumentExtractor
	logger *slog.Logger
}

// NewContentLoader wires the loader. docs may be nil, in which case rich
// formats are read as plain text.
func NewContentLoader(obj core.ObjectClient, pages core.PageExtractor, docs core.DocumentExtractor) *ContentLoader {
	return &ContentLoader{
		obj:    obj,
		pages:  pages,
		docs:   docs,
		logger: logger.WithComponent("loader"),
	}
}

// Load returns the decoded text of ref. Storage failures are ErrSourceUnavailable,
// content that cannot be turned into text is ErrDecode.
func (l *ContentLoader) Load(ctx context.Context, ref models.DocumentReference) (models.RawDocument, error) {
	data, err := l.obj.GetFile(ctx, ref.Container, ref.Name)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("%w: %s: %w", core.ErrSourceUnavailable, ref, err)
	}

	text, err := l.decode(ref.Name, data)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("%w: %s: %w", core.ErrDecode, ref, err)
	}

	l.logger.Debug("document loaded", "document", ref.String(), "bytes", len(data), "chars", utf8.RuneCountInString(text))
	return models.RawDocument{Ref: ref, Content: text}, nil
}

func (l *ContentLoader) decode(name string, data []byte) (string, error) {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return l.decodePDF(data)
	}
	if ct, ok := richContentType(name); ok && l.docs != nil {
		return l.docs.ExtractText(data, ct)
	}
	return decodeUTF8(data)
}

// decodePDF appends every page that carries text, each followed by a newline.
func (l *ContentLoader) decodePDF(data []byte) (string, error) {
	pages, err := l.pages.ExtractPages(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		b.WriteString(page)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func decodeUTF8(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(data), nil
}
