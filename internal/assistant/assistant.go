// Package assistant is the narrow capability surface over the hosted
// language model: document summaries, question answering with inline
// citations, and related-paper suggestions. Remote failures never
// propagate as errors from Summarize or Answer; both return typed
// outcomes that carry a deterministic local fallback and the reason for
// the degradation.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"paperdesk/internal/retrieval"
	"paperdesk/pkg/ai"
)

const (
	// defaultCharBudget bounds request size: roughly 5000 tokens at
	// 4 chars/token.
	defaultCharBudget = 20000
	defaultTimeout    = 30 * time.Second

	// maxContextChunks caps the context blocks sent per question.
	maxContextChunks = 8

	elisionMarker = "\n\n[...]\n\n"

	fallbackPreviewChars = 300
)

var sourceMarkerPattern = regexp.MustCompile(`\[Source \d+[^\]]*\]`)

// Summary is the outcome of a summarization request. Degraded summaries
// carry a preview built locally from the document's leading characters.
type Summary struct {
	Text     string
	Degraded bool
	Reason   string
}

// Reply is the outcome of an answering request.
type Reply struct {
	Text     string
	Degraded bool
	Reason   string
}

// Assistant wraps a TextGenerator with prompt construction, input
// truncation, a bounded wait, and local fallbacks.
type Assistant struct {
	generator  ai.TextGenerator
	timeout    time.Duration
	charBudget int
}

// Config tunes the assistant; zero values select defaults.
type Config struct {
	Timeout    time.Duration
	CharBudget int
}

// New constructs an Assistant over the given generator.
func New(generator ai.TextGenerator, cfg Config) *Assistant {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	budget := cfg.CharBudget
	if budget <= 0 {
		budget = defaultCharBudget
	}
	return &Assistant{
		generator:  generator,
		timeout:    timeout,
		charBudget: budget,
	}
}

const summarizeSystemPrompt = "You are an expert research assistant analyzing academic papers."

// Summarize asks for a 3-4 sentence summary of a document. Long inputs
// are truncated to the character budget by keeping the first and last
// half joined by an elision marker.
func (a *Assistant) Summarize(ctx context.Context, docName, fullText string) Summary {
	text := truncateMiddle(fullText, a.charBudget)
	prompt := fmt.Sprintf(`Analyze this research document and provide a concise 3-4 sentence summary.

Focus on:
- Main research topic and field
- Key methodology or approach
- Primary findings or contributions

DOCUMENT TEXT:
%s

SUMMARY (3-4 sentences only):`, text)

	out, err := a.generate(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		return Summary{
			Text:     fallbackSummary(docName, fullText),
			Degraded: true,
			Reason:   err.Error(),
		}
	}
	return Summary{Text: strings.TrimSpace(out)}
}

// Answer asks a question over the retrieved chunks. Context blocks are
// labeled [Source i: file, Page p] so the model can cite them inline; at
// most maxContextChunks chunks are sent.
func (a *Assistant) Answer(ctx context.Context, question string, chunks []retrieval.Chunk) Reply {
	prompt := fmt.Sprintf(`Answer the user's question based ONLY on the provided context.

CONTEXT FROM UPLOADED DOCUMENTS:
%s

USER QUESTION: %s

INSTRUCTIONS:
1. Provide a clear, comprehensive answer based on the context
2. Use inline citations like [Source 1], [Source 2] when referencing specific information
3. If the answer requires information from multiple sources, cite all relevant sources
4. If the context doesn't contain enough information, say so clearly
5. Be precise and academic in your tone

ANSWER:`, buildContext(chunks), question)

	out, err := a.generate(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		return Reply{
			Text:     fmt.Sprintf("Error generating response: %v", err),
			Degraded: true,
			Reason:   err.Error(),
		}
	}
	return Reply{Text: strings.TrimSpace(out)}
}

// SuggestRelated asks for five plausible related papers based on stored
// document summaries and recent conversation context. The output is
// model-fabricated and must be presented as suggestions, never as
// verified citations.
func (a *Assistant) SuggestRelated(ctx context.Context, summaries []string, recent string) (string, error) {
	if len(summaries) > 3 {
		summaries = summaries[:3]
	}
	var combined strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&combined, "- %s\n", s)
	}
	recentRunes := []rune(recent)
	if len(recentRunes) > 500 {
		recent = string(recentRunes[:500])
	}
	prompt := fmt.Sprintf(`You are an academic research assistant. Based on the following research papers and discussion, suggest 5 highly relevant academic papers that would be valuable for further reading.

UPLOADED PAPERS SUMMARY:
%s
RECENT DISCUSSION CONTEXT:
%s

Generate 5 related papers in this EXACT format:

**Related Research Papers:**

1. **[Paper Title]** by Author1, Author2 et al. (Year)
   - *Field*: [Research area]
   - *Relevance*: [One sentence explaining why this is relevant]
   - *Key Finding*: [Main contribution in one sentence]

2. ...

REQUIREMENTS:
- Make titles sound realistic and academic
- Include a mix of foundational and recent works
- Focus on papers that complement the uploaded research
- Keep descriptions concise and specific

Generate exactly 5 papers:`, combined.String(), recent)

	out, err := a.generate(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("suggest related papers: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (a *Assistant) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.generator.GenerateText(ctx, systemPrompt, userPrompt)
}

// ExtractSourceMarkers collects the distinct [Source N] markers from a
// model reply, preserving first-occurrence order. Empty when the reply
// cited nothing.
func ExtractSourceMarkers(text string) string {
	markers := sourceMarkerPattern.FindAllString(text, -1)
	if len(markers) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(markers))
	unique := make([]string, 0, len(markers))
	for _, m := range markers {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		unique = append(unique, m)
	}
	return strings.Join(unique, ", ")
}

func buildContext(chunks []retrieval.Chunk) string {
	if len(chunks) > maxContextChunks {
		chunks = chunks[:maxContextChunks]
	}
	var b strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[Source %d: %s, Page %d]\n%s\n\n", i+1, chunk.Source, chunk.Page, chunk.Text)
	}
	return strings.TrimSpace(b.String())
}

// truncateMiddle keeps the first and last half of the budget, joined by
// an elision marker. Counted in runes so multi-byte text is never split.
func truncateMiddle(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	half := budget / 2
	return string(runes[:half]) + elisionMarker + string(runes[len(runes)-half:])
}

func fallbackSummary(docName, fullText string) string {
	preview := []rune(fullText)
	if len(preview) > fallbackPreviewChars {
		preview = preview[:fallbackPreviewChars]
	}
	return fmt.Sprintf("Document: %s. Preview: %s...", docName, strings.TrimSpace(string(preview)))
}
