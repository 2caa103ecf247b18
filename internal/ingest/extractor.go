// Package ingest extracts per-page text from uploaded PDF files. Pages
// are the chunk unit: one page of extractable text becomes one retrieval
// chunk.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperdesk/internal/retrieval"
)

// Extractor turns a PDF file into page chunks. A nil cache disables
// caching; extraction then always reads from disk.
type Extractor struct {
	cache *PageCache
}

// NewExtractor constructs an extractor with an optional page cache.
func NewExtractor(cache *PageCache) *Extractor {
	return &Extractor{cache: cache}
}

// ExtractPages reads the PDF at path and returns one chunk per page with
// extractable text. Page numbers are the physical 1-based indices, so
// gaps appear exactly where blank pages were skipped. File-level failures
// are logged and reported as an empty result, never an error: callers
// treat empty as "no usable content" and surface it at the ingestion
// boundary.
func (e *Extractor) ExtractPages(ctx context.Context, path string) []retrieval.Chunk {
	if cached, ok := e.cache.Get(ctx, path); ok {
		return cached
	}
	pageTexts, err := readPageTexts(path)
	if err != nil {
		slog.Error("pdf extraction failed", "path", path, "error", err)
		return nil
	}
	chunks := pagesToChunks(filepath.Base(path), pageTexts)
	e.cache.Put(ctx, path, chunks)
	return chunks
}

func readPageTexts(path string) ([]string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	totalPages := reader.NumPage()
	texts := make([]string, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing the document.
			slog.Debug("skipping unreadable page", "path", path, "page", i, "error", err)
			texts = append(texts, "")
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// pagesToChunks assigns 1-based page numbers in input order, dropping
// pages whose text is only whitespace.
func pagesToChunks(source string, pageTexts []string) []retrieval.Chunk {
	chunks := make([]retrieval.Chunk, 0, len(pageTexts))
	for i, raw := range pageTexts {
		text := normalizeText(raw)
		if text == "" {
			continue
		}
		chunks = append(chunks, retrieval.Chunk{
			Text:   text,
			Page:   i + 1,
			Source: source,
		})
	}
	return chunks
}

// FullText joins page chunks into a single document text for
// summarization, labeling each page.
func FullText(chunks []retrieval.Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "Page %d:\n%s\n\n", chunk.Page, chunk.Text)
	}
	return strings.TrimSpace(b.String())
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}
