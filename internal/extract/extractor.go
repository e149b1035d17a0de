// Package extract reads source documents into per-page text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrSourceUnavailable is returned when a source document is missing or cannot be parsed.
var ErrSourceUnavailable = errors.New("source document unavailable")

// Page is the text of one page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts page text from document files.
type Extractor struct {
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for per-page diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Pages reads the file at path and returns its pages in order.
// PDFs yield one page per PDF page. Plain text is split on form feeds.
// Word processor formats yield a single page.
// Any failure to open or parse the file wraps ErrSourceUnavailable.
func (e *Extractor) Pages(path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: parser panic: %v", ErrSourceUnavailable, path, r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".odt" || ext == ".rtf" {
		text, err := extractWithCat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
		}
		return singlePage(text), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	pages, err = e.PagesBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	return pages, nil
}

// PagesBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are treated as plain text.
func (e *Extractor) PagesBytes(content []byte, ext string) ([]Page, error) {
	switch ext {
	case ".pdf":
		return e.extractPDF(content)
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return singlePage(text), nil
	default:
		return extractPlain(content), nil
	}
}

func singlePage(text string) []Page {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Page{{Number: 1, Text: text}}
}
