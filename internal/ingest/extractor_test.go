package ingest

import (
	"context"
	"strings"
	"testing"

	"paperdesk/internal/papers"
)

func TestPagesToChunksNumbersWithGaps(t *testing.T) {
	pages := []string{"intro text", "   \n\t ", "methods section", "", "conclusion"}
	chunks := pagesToChunks("paper.pdf", pages)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantPages := []int{1, 3, 5}
	for i, c := range chunks {
		if c.Page != wantPages[i] {
			t.Fatalf("chunk %d: want page %d, got %d", i, wantPages[i], c.Page)
		}
		if c.Source != "paper.pdf" {
			t.Fatalf("chunk %d: wrong source %q", i, c.Source)
		}
	}
}

func TestPagesToChunksAllNonEmpty(t *testing.T) {
	pages := []string{"one", "two", "three"}
	chunks := pagesToChunks("doc.pdf", pages)
	if len(chunks) != len(pages) {
		t.Fatalf("expected %d chunks, got %d", len(pages), len(chunks))
	}
	for i, c := range chunks {
		if c.Page != i+1 {
			t.Fatalf("chunk %d: want page %d, got %d", i, i+1, c.Page)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("  hello\x00world\n\n  spaced\tout  ")
	if got != "hello world spaced out" {
		t.Fatalf("unexpected normalization: %q", got)
	}
	if normalizeText("\x00 \n\t") != "" {
		t.Fatal("whitespace-only text should normalize to empty")
	}
}

func TestFullTextLabelsPages(t *testing.T) {
	chunks := pagesToChunks("doc.pdf", []string{"alpha", "", "beta"})
	text := FullText(chunks)
	if !strings.Contains(text, "Page 1:\nalpha") {
		t.Fatalf("missing page 1 label: %q", text)
	}
	if !strings.Contains(text, "Page 3:\nbeta") {
		t.Fatalf("missing page 3 label: %q", text)
	}
	if strings.Contains(text, "Page 2:") {
		t.Fatalf("blank page should not be labeled: %q", text)
	}
}

func TestFullTextKeepsReferencesFindable(t *testing.T) {
	// Normalization collapses newlines, so the bibliography section
	// arrives as one long line; extraction must still locate it.
	pages := []string{
		"Introduction and body text about the topic.",
		"Results continue here.\n\nReferences\nSmith, J. (2020) A study of things. Journal of Stuff.\nDoe, A. (2019) Another investigation, with depth. Proceedings.\n\nAppendix A\nExtra material.",
	}
	text := FullText(pagesToChunks("paper.pdf", pages))
	if strings.Contains(text, "References\n") {
		t.Fatalf("expected normalized text without intra-page newlines: %q", text)
	}
	refs := papers.ExtractReferences(text)
	if len(refs) != 2 {
		t.Fatalf("expected 2 references through the pipeline, got %d: %v", len(refs), refs)
	}
	if !strings.HasPrefix(refs[0], "Smith, J.") || !strings.HasPrefix(refs[1], "Doe, A.") {
		t.Fatalf("unexpected references: %v", refs)
	}
}

func TestExtractPagesMissingFile(t *testing.T) {
	e := NewExtractor(nil)
	chunks := e.ExtractPages(context.Background(), "/nonexistent/file.pdf")
	if chunks != nil {
		t.Fatalf("missing file should yield empty result, got %d chunks", len(chunks))
	}
}
