package core

// PageExtractor returns the plain text of every page of a paginated document,
// in page order. Pages without text come back as empty strings.
type PageExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}

// DocumentExtractor defines the interface for extracting text from rich document types.
// The `contentType` hint helps the extractor choose the right parsing strategy.
type DocumentExtractor interface {
	ExtractText(data []byte, contentType string) (string, error)
}
