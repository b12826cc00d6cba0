package ingestion_engine

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/ragline/internal/core"
)

var _ core.PageExtractor = (*PDFExtractor)(nil)

// PDFExtractor reads the text layer of a PDF one page at a time.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns one entry per page; pages without a text layer are "".
func (e *PDFExtractor) ExtractPages(data []byte) (pages []string, err error) {
	// the pdf package panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
